package notifications

import (
	"encoding/json"
	"time"
)

// ChannelName identifies a delivery channel kind.
type ChannelName string

const (
	ChannelEmail ChannelName = "email"
	ChannelInApp ChannelName = "in-app"
)

// Wildcard matches every notification type or every channel in a preference row.
const Wildcard = "*"

// knownChannels is the closed set of channel kinds the registry accepts.
var knownChannels = map[ChannelName]struct{}{
	ChannelEmail: {},
	ChannelInApp: {},
}

// Status is the lifecycle state of a single delivery attempt.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	// StatusDelivered is reserved for channel-reported confirmation and is
	// never written by the delivery engine.
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Delivery is the persisted record of one physical send attempt.
// Empty strings stand for NULL in UserID, Error, RetryOf, RecipientEmail and ExternalID.
type Delivery struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId,omitempty"`
	Type           string          `json:"type"`
	Channel        ChannelName     `json:"channel"`
	Status         Status          `json:"status"`
	Content        json.RawMessage `json:"content,omitempty"`
	Error          string          `json:"error,omitempty"`
	RetryOf        string          `json:"retryOf,omitempty"`
	RetriesLeft    int             `json:"retriesLeft"`
	RecipientEmail string          `json:"recipientEmail,omitempty"`
	ExternalID     string          `json:"externalId,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// DeliveryUpdate carries the outcome written back onto a pending attempt row.
type DeliveryUpdate struct {
	Status     Status
	ExternalID string
	Error      string
	UpdatedAt  time.Time
}

// InAppNotification is an inbox row created by the in-app channel.
type InAppNotification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	URL       string    `json:"url,omitempty"`
	Icon      string    `json:"icon,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Preference is a stored per-user switch for a (type, channel) pair.
// Either side may be Wildcard.
type Preference struct {
	ID               string      `json:"id"`
	UserID           string      `json:"userId"`
	NotificationType string      `json:"notificationType"`
	Channel          ChannelName `json:"channel"`
	Enabled          bool        `json:"enabled"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// PreferenceUpdate is one requested change to a user's preferences.
type PreferenceUpdate struct {
	NotificationType string      `json:"notificationType"`
	Channel          ChannelName `json:"channel"`
	Enabled          bool        `json:"enabled"`
}

// ListOptions filters in-app notification listings.
type ListOptions struct {
	Limit      int  // Maximum rows to return; zero or negative means DefaultListLimit
	UnreadOnly bool // When true, only unread rows are returned
}

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 50

// Defaults are the system-wide preference fallbacks.
type Defaults struct {
	EnabledChannels []ChannelName
}

// DefaultPreferences enables every built-in channel.
func DefaultPreferences() Defaults {
	return Defaults{EnabledChannels: []ChannelName{ChannelEmail, ChannelInApp}}
}

// TableNames names the three tables (or collections) a store works against.
type TableNames struct {
	Deliveries  string
	InApp       string
	Preferences string
}

// DefaultTableNames returns the table names used by the bundled migrations.
func DefaultTableNames() TableNames {
	return TableNames{
		Deliveries:  "notification_delivery",
		InApp:       "in_app_notification",
		Preferences: "notification_preference",
	}
}

// WithDefaults fills empty names from DefaultTableNames.
func (t TableNames) WithDefaults() TableNames {
	d := DefaultTableNames()
	if t.Deliveries == "" {
		t.Deliveries = d.Deliveries
	}
	if t.InApp == "" {
		t.InApp = d.InApp
	}
	if t.Preferences == "" {
		t.Preferences = d.Preferences
	}
	return t
}
