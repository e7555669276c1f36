package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

type sendRequest struct {
	Type           string          `json:"type"`
	UserID         string          `json:"userId"`
	RecipientEmail string          `json:"recipientEmail"`
	Data           json.RawMessage `json:"data"`
}

type sendResponse struct {
	Delivered []notifications.ChannelName          `json:"delivered,omitempty"`
	Failed    map[notifications.ChannelName]string `json:"failed,omitempty"`
	Error     string                               `json:"error,omitempty"`
}

// sendHandler lets trusted backends trigger a notification over HTTP.
// It is only mounted when SEND_API_TOKEN is set.
func sendHandler(reg *notifications.Registry, cat catalog, token string, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			writeJSON(w, http.StatusUnauthorized, sendResponse{Error: "unauthorized"})
			return
		}

		var req sendRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, sendResponse{Error: "invalid JSON body"})
			return
		}
		decode, ok := cat.decoders[req.Type]
		if !ok {
			writeJSON(w, http.StatusNotFound, sendResponse{Error: "unknown notification type"})
			return
		}
		data, err := decode(req.Data)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, sendResponse{Error: err.Error()})
			return
		}

		err = reg.Send(r.Context(), notifications.SendParams{
			Type:           req.Type,
			UserID:         req.UserID,
			RecipientEmail: req.RecipientEmail,
			Data:           data,
		})

		var sendErr *notifications.SendError
		switch {
		case err == nil:
			writeJSON(w, http.StatusAccepted, sendResponse{})
		case errors.As(err, &sendErr):
			resp := sendResponse{Delivered: sendErr.Delivered, Failed: make(map[notifications.ChannelName]string, len(sendErr.Failed))}
			for ch, cause := range sendErr.Failed {
				resp.Failed[ch] = cause.Error()
			}
			log.LogAttrs(r.Context(), slog.LevelWarn, "notification partially failed",
				logger.NotificationType(req.Type), logger.UserID(req.UserID), logger.Error(err))
			writeJSON(w, http.StatusBadGateway, resp)
		default:
			log.LogAttrs(r.Context(), slog.LevelError, "notification send failed",
				logger.NotificationType(req.Type), logger.UserID(req.UserID), logger.Error(err))
			writeJSON(w, http.StatusInternalServerError, sendResponse{Error: err.Error()})
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
