// Package notifications delivers typed notification events over pluggable
// channels with per-user preferences, retries and a durable attempt history.
//
// # Architecture
//
//   - Definition: maps event data to per-channel content (Define).
//   - Channel: a plugin with a retry budget and a lazily built Handler
//     (EmailChannel, InAppChannel).
//   - ResolveChannelEnabled: the preference precedence rules.
//   - Engine: the attempt loop writing one Delivery row per attempt, each retry
//     linked to the attempt before it through RetryOf.
//   - Registry: definitions and channels put together, plus inbox and
//     preference operations.
//   - HTTPHandler: mark-read and preference endpoints for a frontend.
//
// Persistence is behind the Store interface. MemoryStore ships with the
// package; the pgstore and mongostore subpackages provide database backends.
//
// # Basic Usage
//
//	type MagicLink struct{ URL string }
//
//	magicLink := notifications.Define("magic-link", notifications.Channels[MagicLink]{
//	    Email: func(d MagicLink) notifications.EmailContent {
//	        return notifications.EmailContent{Subject: "Sign in", Text: d.URL}
//	    },
//	}, notifications.Critical())
//
//	reg, err := notifications.New(store,
//	    []notifications.Channel{
//	        notifications.EmailChannel(sendEmail),
//	        notifications.InAppChannel(),
//	    },
//	    []notifications.Definition{magicLink},
//	)
//
//	err = reg.Send(ctx, notifications.SendParams{
//	    Type:           "magic-link",
//	    Data:           MagicLink{URL: link},
//	    RecipientEmail: "user@example.com",
//	})
//
// # Errors
//
// Configuration problems (ErrUnknownType, ErrInvalidData, ErrChannelInit) are
// returned before any channel is attempted. When at least one channel exhausts
// its retries Send returns a *SendError; each failed channel's cause is a
// *DeliveryError reachable with errors.As.
//
// # Live Feed
//
// A Feed passed to InAppChannel through WithFeed receives every stored inbox
// row, so transports like SSE can stream them:
//
//	sub := feed.Subscribe(r.Context(), userID)
//	for n := range sub.Notifications() {
//	    // write n to the client
//	}
package notifications
