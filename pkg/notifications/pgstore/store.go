package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements notifications.Store on PostgreSQL.
type Store struct {
	db DBTX
	q  queries
}

var _ notifications.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithTables points the store at custom table names.
func WithTables(t notifications.TableNames) Option {
	return func(s *Store) { s.q = buildQueries(t.WithDefaults()) }
}

// New creates a store over db using the default table names unless
// overridden.
func New(db DBTX, opts ...Option) *Store {
	s := &Store{db: db, q: buildQueries(notifications.DefaultTableNames())}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type queries struct {
	createDelivery  string
	updateDelivery  string
	getDelivery     string
	createInApp     string
	listInApp       string
	listUnreadInApp string
	markRead        string
	markAllRead     string
	countUnread     string
	listPreferences string
	upsertPref      string
}

func buildQueries(t notifications.TableNames) queries {
	deliveries := pgx.Identifier{t.Deliveries}.Sanitize()
	inApp := pgx.Identifier{t.InApp}.Sanitize()
	prefs := pgx.Identifier{t.Preferences}.Sanitize()

	const deliveryColumns = `id, user_id, notification_type, channel, status, content, error,
		retry_of, retries_left, recipient_email, external_id, created_at, updated_at`
	const inAppColumns = `id, user_id, notification_type, title, body, url, icon, read, created_at`

	return queries{
		createDelivery: `INSERT INTO ` + deliveries + ` (` + deliveryColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		updateDelivery: `UPDATE ` + deliveries + `
			SET status = $2, external_id = $3, error = $4, updated_at = $5
			WHERE id = $1`,
		getDelivery: `SELECT ` + deliveryColumns + ` FROM ` + deliveries + ` WHERE id = $1`,

		createInApp: `INSERT INTO ` + inApp + ` (` + inAppColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		listInApp: `SELECT ` + inAppColumns + ` FROM ` + inApp + `
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2`,
		listUnreadInApp: `SELECT ` + inAppColumns + ` FROM ` + inApp + `
			WHERE user_id = $1 AND NOT read
			ORDER BY created_at DESC, id DESC
			LIMIT $2`,
		markRead:    `UPDATE ` + inApp + ` SET read = true WHERE user_id = $1 AND id = ANY($2)`,
		markAllRead: `UPDATE ` + inApp + ` SET read = true WHERE user_id = $1 AND NOT read`,
		countUnread: `SELECT count(*) FROM ` + inApp + ` WHERE user_id = $1 AND NOT read`,

		listPreferences: `SELECT id, user_id, notification_type, channel, enabled, updated_at
			FROM ` + prefs + ` WHERE user_id = $1
			ORDER BY notification_type, channel`,
		upsertPref: `INSERT INTO ` + prefs + ` (id, user_id, notification_type, channel, enabled, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, notification_type, channel)
			DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at`,
	}
}

func (s *Store) CreateDelivery(ctx context.Context, d notifications.Delivery) error {
	var content any
	if len(d.Content) > 0 {
		content = string(d.Content)
	}
	_, err := s.db.Exec(ctx, s.q.createDelivery,
		d.ID, null(d.UserID), d.Type, string(d.Channel), string(d.Status), content, null(d.Error),
		null(d.RetryOf), d.RetriesLeft, null(d.RecipientEmail), null(d.ExternalID), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery %s: %w", d.ID, err)
	}
	return nil
}

func (s *Store) UpdateDelivery(ctx context.Context, id string, u notifications.DeliveryUpdate) error {
	tag, err := s.db.Exec(ctx, s.q.updateDelivery, id, string(u.Status), null(u.ExternalID), null(u.Error), u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update delivery %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notifications.ErrDeliveryNotFound
	}
	return nil
}

func (s *Store) GetDelivery(ctx context.Context, id string) (notifications.Delivery, error) {
	var (
		d                                               notifications.Delivery
		userID, errMsg, retryOf, recipient, externalID *string
		channel, status                                 string
		content                                         []byte
	)
	err := s.db.QueryRow(ctx, s.q.getDelivery, id).Scan(
		&d.ID, &userID, &d.Type, &channel, &status, &content, &errMsg,
		&retryOf, &d.RetriesLeft, &recipient, &externalID, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if IsNotFoundError(err) {
			return notifications.Delivery{}, notifications.ErrDeliveryNotFound
		}
		return notifications.Delivery{}, fmt.Errorf("get delivery %s: %w", id, err)
	}

	d.UserID = deref(userID)
	d.Channel = notifications.ChannelName(channel)
	d.Status = notifications.Status(status)
	d.Content = json.RawMessage(content)
	d.Error = deref(errMsg)
	d.RetryOf = deref(retryOf)
	d.RecipientEmail = deref(recipient)
	d.ExternalID = deref(externalID)
	return d, nil
}

func (s *Store) CreateInApp(ctx context.Context, n notifications.InAppNotification) error {
	_, err := s.db.Exec(ctx, s.q.createInApp,
		n.ID, n.UserID, n.Type, n.Title, null(n.Body), null(n.URL), null(n.Icon), n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert in-app notification: %w", err)
	}
	return nil
}

func (s *Store) ListInApp(ctx context.Context, userID string, opts notifications.ListOptions) ([]notifications.InAppNotification, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = notifications.DefaultListLimit
	}
	query := s.q.listInApp
	if opts.UnreadOnly {
		query = s.q.listUnreadInApp
	}

	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list in-app notifications: %w", err)
	}
	defer rows.Close()

	out := []notifications.InAppNotification{}
	for rows.Next() {
		var (
			n               notifications.InAppNotification
			body, url, icon *string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &body, &url, &icon, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan in-app notification: %w", err)
		}
		n.Body, n.URL, n.Icon = deref(body), deref(url), deref(icon)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list in-app notifications: %w", err)
	}
	return out, nil
}

func (s *Store) MarkRead(ctx context.Context, userID string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, s.q.markRead, userID, ids); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID string) error {
	if _, err := s.db.Exec(ctx, s.q.markAllRead, userID); err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

func (s *Store) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, s.q.countUnread, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (s *Store) ListPreferences(ctx context.Context, userID string) ([]notifications.Preference, error) {
	rows, err := s.db.Query(ctx, s.q.listPreferences, userID)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}

	prefs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (notifications.Preference, error) {
		var (
			p       notifications.Preference
			channel string
		)
		err := row.Scan(&p.ID, &p.UserID, &p.NotificationType, &channel, &p.Enabled, &p.UpdatedAt)
		p.Channel = notifications.ChannelName(channel)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	return prefs, nil
}

func (s *Store) UpsertPreference(ctx context.Context, p notifications.Preference) error {
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.db.Exec(ctx, s.q.upsertPref,
		p.ID, p.UserID, p.NotificationType, string(p.Channel), p.Enabled, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}

// null maps the empty string to SQL NULL.
func null(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
