package notifications

import "context"

// DeliveryStore persists delivery attempt rows.
type DeliveryStore interface {
	// CreateDelivery inserts a new attempt row.
	CreateDelivery(ctx context.Context, d Delivery) error

	// UpdateDelivery writes the outcome onto an existing attempt row.
	UpdateDelivery(ctx context.Context, id string, u DeliveryUpdate) error

	// GetDelivery returns a single attempt row or ErrDeliveryNotFound.
	GetDelivery(ctx context.Context, id string) (Delivery, error)
}

// InboxStore persists in-app notification rows.
type InboxStore interface {
	CreateInApp(ctx context.Context, n InAppNotification) error

	// ListInApp returns a user's rows newest first.
	ListInApp(ctx context.Context, userID string, opts ListOptions) ([]InAppNotification, error)

	// MarkRead flips read for the listed ids owned by userID.
	MarkRead(ctx context.Context, userID string, ids ...string) error

	// MarkAllRead flips read for every unread row owned by userID.
	MarkAllRead(ctx context.Context, userID string) error

	CountUnread(ctx context.Context, userID string) (int, error)
}

// PreferenceStore persists preference rows.
type PreferenceStore interface {
	ListPreferences(ctx context.Context, userID string) ([]Preference, error)

	// UpsertPreference inserts p, or updates Enabled and UpdatedAt on the row
	// already stored for (UserID, NotificationType, Channel). The existing
	// row keeps its id.
	UpsertPreference(ctx context.Context, p Preference) error
}

// Store is everything the registry and the bundled channels need.
type Store interface {
	DeliveryStore
	InboxStore
	PreferenceStore
}
