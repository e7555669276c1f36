// Package email provides transports for transactional email behind a single
// Sender interface: Postmark, Amazon SES, and a development sender that writes
// messages to disk.
//
// Every transport validates the Message before sending and returns the
// provider's message id, so it can be plugged straight into the notifications
// email channel:
//
//	sender := email.MustNewPostmarkSender(email.PostmarkConfig{
//	    Config:       email.Config{SenderEmail: "noreply@example.com", SupportEmail: "support@example.com"},
//	    ServerToken:  os.Getenv("POSTMARK_SERVER_TOKEN"),
//	    AccountToken: os.Getenv("POSTMARK_ACCOUNT_TOKEN"),
//	})
//
//	id, err := sender.SendEmail(ctx, email.Message{
//	    To:      "user@example.com",
//	    Subject: "Welcome",
//	    HTML:    "<p>Hello</p>",
//	    Tag:     "welcome",
//	})
//
// # Errors
//
// Invalid messages return ErrInvalidMessage, invalid configuration returns
// ErrInvalidConfig, and provider failures are joined with ErrFailedToSendEmail.
//
// # Development
//
// DevSender stores each message as HTML, optional plain text and JSON metadata
// files named after the timestamp and tag, which makes local testing of email
// flows possible without provider credentials.
package email
