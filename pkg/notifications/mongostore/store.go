package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// Store implements notifications.Store on three MongoDB collections named
// after notifications.TableNames.
type Store struct {
	deliveries  *mongo.Collection
	inApp       *mongo.Collection
	preferences *mongo.Collection
}

var _ notifications.Store = (*Store)(nil)

// New creates a store over db using the given collection names; empty names
// fall back to the defaults.
func New(db *mongo.Database, tables notifications.TableNames) *Store {
	tables = tables.WithDefaults()
	return &Store{
		deliveries:  db.Collection(tables.Deliveries),
		inApp:       db.Collection(tables.InApp),
		preferences: db.Collection(tables.Preferences),
	}
}

// EnsureIndexes creates the indexes the store's queries rely on, including
// the unique (user, type, channel) index backing preference upserts.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.deliveries.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "retry_of", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("create delivery indexes: %w", err)
	}
	if _, err := s.inApp.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "read", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("create in-app indexes: %w", err)
	}
	if _, err := s.preferences.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "notification_type", Value: 1}, {Key: "channel", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create preference indexes: %w", err)
	}
	return nil
}

type deliveryDoc struct {
	ID             string    `bson:"_id"`
	UserID         string    `bson:"user_id,omitempty"`
	Type           string    `bson:"notification_type"`
	Channel        string    `bson:"channel"`
	Status         string    `bson:"status"`
	Content        string    `bson:"content,omitempty"`
	Error          string    `bson:"error,omitempty"`
	RetryOf        string    `bson:"retry_of,omitempty"`
	RetriesLeft    int       `bson:"retries_left"`
	RecipientEmail string    `bson:"recipient_email,omitempty"`
	ExternalID     string    `bson:"external_id,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

type inAppDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Type      string    `bson:"notification_type"`
	Title     string    `bson:"title"`
	Body      string    `bson:"body,omitempty"`
	URL       string    `bson:"url,omitempty"`
	Icon      string    `bson:"icon,omitempty"`
	Read      bool      `bson:"read"`
	CreatedAt time.Time `bson:"created_at"`
}

type preferenceDoc struct {
	ID               string    `bson:"_id"`
	UserID           string    `bson:"user_id"`
	NotificationType string    `bson:"notification_type"`
	Channel          string    `bson:"channel"`
	Enabled          bool      `bson:"enabled"`
	UpdatedAt        time.Time `bson:"updated_at"`
}

func (s *Store) CreateDelivery(ctx context.Context, d notifications.Delivery) error {
	doc := deliveryDoc{
		ID:             d.ID,
		UserID:         d.UserID,
		Type:           d.Type,
		Channel:        string(d.Channel),
		Status:         string(d.Status),
		Content:        string(d.Content),
		Error:          d.Error,
		RetryOf:        d.RetryOf,
		RetriesLeft:    d.RetriesLeft,
		RecipientEmail: d.RecipientEmail,
		ExternalID:     d.ExternalID,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if _, err := s.deliveries.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert delivery %s: %w", d.ID, err)
	}
	return nil
}

func (s *Store) UpdateDelivery(ctx context.Context, id string, u notifications.DeliveryUpdate) error {
	set := bson.D{
		{Key: "status", Value: string(u.Status)},
		{Key: "updated_at", Value: u.UpdatedAt},
	}
	var unset bson.D
	for key, value := range map[string]string{"external_id": u.ExternalID, "error": u.Error} {
		if value == "" {
			unset = append(unset, bson.E{Key: key, Value: ""})
			continue
		}
		set = append(set, bson.E{Key: key, Value: value})
	}
	update := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}

	res, err := s.deliveries.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("update delivery %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return notifications.ErrDeliveryNotFound
	}
	return nil
}

func (s *Store) GetDelivery(ctx context.Context, id string) (notifications.Delivery, error) {
	var doc deliveryDoc
	if err := s.deliveries.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return notifications.Delivery{}, notifications.ErrDeliveryNotFound
		}
		return notifications.Delivery{}, fmt.Errorf("get delivery %s: %w", id, err)
	}

	d := notifications.Delivery{
		ID:             doc.ID,
		UserID:         doc.UserID,
		Type:           doc.Type,
		Channel:        notifications.ChannelName(doc.Channel),
		Status:         notifications.Status(doc.Status),
		Error:          doc.Error,
		RetryOf:        doc.RetryOf,
		RetriesLeft:    doc.RetriesLeft,
		RecipientEmail: doc.RecipientEmail,
		ExternalID:     doc.ExternalID,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
	if doc.Content != "" {
		d.Content = json.RawMessage(doc.Content)
	}
	return d, nil
}

func (s *Store) CreateInApp(ctx context.Context, n notifications.InAppNotification) error {
	doc := inAppDoc{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Body:      n.Body,
		URL:       n.URL,
		Icon:      n.Icon,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
	if _, err := s.inApp.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert in-app notification: %w", err)
	}
	return nil
}

func (s *Store) ListInApp(ctx context.Context, userID string, opts notifications.ListOptions) ([]notifications.InAppNotification, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = notifications.DefaultListLimit
	}
	filter := bson.D{{Key: "user_id", Value: userID}}
	if opts.UnreadOnly {
		filter = append(filter, bson.E{Key: "read", Value: false})
	}

	cur, err := s.inApp.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("list in-app notifications: %w", err)
	}

	var docs []inAppDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode in-app notifications: %w", err)
	}

	out := make([]notifications.InAppNotification, len(docs))
	for i, doc := range docs {
		out[i] = notifications.InAppNotification{
			ID:        doc.ID,
			UserID:    doc.UserID,
			Type:      doc.Type,
			Title:     doc.Title,
			Body:      doc.Body,
			URL:       doc.URL,
			Icon:      doc.Icon,
			Read:      doc.Read,
			CreatedAt: doc.CreatedAt,
		}
	}
	return out, nil
}

func (s *Store) MarkRead(ctx context.Context, userID string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	filter := bson.D{
		{Key: "user_id", Value: userID},
		{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}},
	}
	if _, err := s.inApp.UpdateMany(ctx, filter, bson.D{{Key: "$set", Value: bson.D{{Key: "read", Value: true}}}}); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID string) error {
	filter := bson.D{{Key: "user_id", Value: userID}, {Key: "read", Value: false}}
	if _, err := s.inApp.UpdateMany(ctx, filter, bson.D{{Key: "$set", Value: bson.D{{Key: "read", Value: true}}}}); err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

func (s *Store) CountUnread(ctx context.Context, userID string) (int, error) {
	n, err := s.inApp.CountDocuments(ctx, bson.D{{Key: "user_id", Value: userID}, {Key: "read", Value: false}})
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return int(n), nil
}

func (s *Store) ListPreferences(ctx context.Context, userID string) ([]notifications.Preference, error) {
	cur, err := s.preferences.Find(ctx, bson.D{{Key: "user_id", Value: userID}},
		options.Find().SetSort(bson.D{{Key: "notification_type", Value: 1}, {Key: "channel", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}

	var docs []preferenceDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}

	out := make([]notifications.Preference, len(docs))
	for i, doc := range docs {
		out[i] = notifications.Preference{
			ID:               doc.ID,
			UserID:           doc.UserID,
			NotificationType: doc.NotificationType,
			Channel:          notifications.ChannelName(doc.Channel),
			Enabled:          doc.Enabled,
			UpdatedAt:        doc.UpdatedAt,
		}
	}
	return out, nil
}

func (s *Store) UpsertPreference(ctx context.Context, p notifications.Preference) error {
	filter := bson.D{
		{Key: "user_id", Value: p.UserID},
		{Key: "notification_type", Value: p.NotificationType},
		{Key: "channel", Value: string(p.Channel)},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "enabled", Value: p.Enabled},
			{Key: "updated_at", Value: p.UpdatedAt},
		}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "_id", Value: p.ID}}},
	}
	if _, err := s.preferences.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true)); err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}
