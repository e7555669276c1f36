// Package server runs the notifyd HTTP surface: a graceful http.Server
// wrapper, the chi router with health, readiness and metrics endpoints, the
// notifications API mount and the live inbox stream.
package server
