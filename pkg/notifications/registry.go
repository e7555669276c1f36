package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// SendParams describes one notification event.
type SendParams struct {
	Type string
	// UserID is optional; anonymous sends skip preference loading and the
	// in-app channel.
	UserID string
	// Data is passed to the definition's content functions.
	Data           any
	RecipientEmail string
}

// Registry holds notification definitions and channel plugins and
// orchestrates sends across them.
type Registry struct {
	store       Store
	definitions map[string]Definition
	handlers    map[ChannelName]*lazyHandler
	retries     map[ChannelName]int
	engine      *Engine
	defaults    Defaults
	tables      TableNames
	sequential  bool
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string

	engineOpts []EngineOption
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger for the registry and its delivery engine.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithDefaults sets the system-wide preference fallbacks.
func WithDefaults(d Defaults) Option {
	return func(r *Registry) { r.defaults = d }
}

// WithTables sets the table names handed to channels. Empty names fall back
// to DefaultTableNames.
func WithTables(t TableNames) Option {
	return func(r *Registry) { r.tables = t.WithDefaults() }
}

// WithBackoff overrides the retry delay schedule.
func WithBackoff(delays ...time.Duration) Option {
	return func(r *Registry) {
		r.engineOpts = append(r.engineOpts, WithEngineBackoff(Backoff(delays)))
	}
}

// WithSleeper replaces the wall-clock wait between attempts.
func WithSleeper(s Sleeper) Option {
	return func(r *Registry) {
		r.engineOpts = append(r.engineOpts, WithEngineSleeper(s))
	}
}

// WithObserver receives attempt outcomes, e.g. for metrics.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		r.engineOpts = append(r.engineOpts, WithEngineObserver(o))
	}
}

// WithClock sets the time source for every row the registry writes.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator sets the id source for every row the registry writes.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// WithSequentialDelivery delivers channels one after another in declaration
// order instead of concurrently.
func WithSequentialDelivery() Option {
	return func(r *Registry) { r.sequential = true }
}

// New builds a registry and checks that every channel used by a definition
// is registered.
func New(store Store, channels []Channel, definitions []Definition, opts ...Option) (*Registry, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	r := &Registry{
		store:       store,
		definitions: make(map[string]Definition, len(definitions)),
		handlers:    make(map[ChannelName]*lazyHandler, len(channels)),
		retries:     make(map[ChannelName]int, len(channels)),
		defaults:    DefaultPreferences(),
		tables:      DefaultTableNames(),
		logger:      slog.Default(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, ch := range channels {
		if ch == nil {
			return nil, fmt.Errorf("%w: nil channel", ErrUnknownChannel)
		}
		name := ch.Name()
		if _, ok := knownChannels[name]; !ok {
			return nil, fmt.Errorf("%w: unsupported channel kind %q", ErrUnknownChannel, name)
		}
		if _, dup := r.handlers[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateChannel, name)
		}
		r.handlers[name] = &lazyHandler{channel: ch}
		r.retries[name] = max(ch.Retries(), 0)
	}

	for _, def := range definitions {
		if def.Key == "" {
			return nil, fmt.Errorf("%w: empty key", ErrInvalidDefinition)
		}
		if _, dup := r.definitions[def.Key]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateDefinition, def.Key)
		}
		for _, name := range def.Channels() {
			if _, ok := r.handlers[name]; !ok {
				return nil, fmt.Errorf("%w: %q used by notification %q; available: %v",
					ErrUnknownChannel, name, def.Key, r.channelNames())
			}
		}
		r.definitions[def.Key] = def
	}

	engineOpts := append([]EngineOption{
		WithEngineLogger(r.logger),
		WithEngineClock(r.now),
		WithEngineIDGenerator(r.newID),
	}, r.engineOpts...)
	r.engine = NewEngine(store, engineOpts...)

	return r, nil
}

// MustNew is like New but panics on configuration errors.
func MustNew(store Store, channels []Channel, definitions []Definition, opts ...Option) *Registry {
	r, err := New(store, channels, definitions, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Send delivers a notification on every channel its definition renders.
//
// Configuration problems (unknown type, bad data, channel init failure) are
// returned before any channel is attempted. Channel failures do not stop
// other channels; they are collected into a *SendError returned after all
// channels finished.
func (r *Registry) Send(ctx context.Context, p SendParams) error {
	def, ok := r.definitions[p.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, p.Type)
	}

	var prefs []Preference
	if !def.Critical && p.UserID != "" {
		var err error
		prefs, err = r.store.ListPreferences(ctx, p.UserID)
		if err != nil {
			return fmt.Errorf("load preferences: %w", err)
		}
	}

	jobs := make([]Job, 0, len(def.renderers))
	for _, rd := range def.renderers {
		if !def.Critical && !ResolveChannelEnabled(prefs, r.defaults, p.Type, rd.channel) {
			r.logger.LogAttrs(ctx, slog.LevelDebug, "channel disabled by preferences",
				logger.NotificationType(p.Type),
				logger.Channel(string(rd.channel)),
				logger.UserID(p.UserID),
			)
			continue
		}

		content, err := rd.render(p.Data)
		if err != nil {
			return err
		}

		handler, err := r.handlers[rd.channel].get(r.initContext())
		if err != nil {
			return err
		}

		jobs = append(jobs, Job{
			UserID:         p.UserID,
			Type:           p.Type,
			Channel:        rd.channel,
			Content:        content,
			RecipientEmail: p.RecipientEmail,
			Retries:        r.retries[rd.channel],
			Handler:        handler,
		})
	}

	errs := r.dispatch(ctx, jobs)

	var delivered []ChannelName
	failed := make(map[ChannelName]error)
	for i, err := range errs {
		if err != nil {
			failed[jobs[i].Channel] = err
			continue
		}
		delivered = append(delivered, jobs[i].Channel)
	}
	if len(failed) == 0 {
		return nil
	}
	return &SendError{Type: p.Type, Delivered: delivered, Failed: failed}
}

// dispatch runs every job and returns per-job errors aligned with jobs.
func (r *Registry) dispatch(ctx context.Context, jobs []Job) []error {
	errs := make([]error, len(jobs))

	if r.sequential || len(jobs) < 2 {
		for i, job := range jobs {
			_, errs[i] = r.engine.Deliver(ctx, job)
		}
		return errs
	}

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = r.engine.Deliver(ctx, job)
		}()
	}
	wg.Wait()
	return errs
}

func (r *Registry) initContext() InitContext {
	return InitContext{
		Store:  r.store,
		Tables: r.tables,
		Logger: r.logger,
		Now:    r.now,
		NewID:  r.newID,
	}
}

func (r *Registry) channelNames() []ChannelName {
	names := make([]ChannelName, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// List returns a user's in-app notifications, newest first.
func (r *Registry) List(ctx context.Context, userID string, opts ListOptions) ([]InAppNotification, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	return r.store.ListInApp(ctx, userID, opts)
}

// MarkRead marks the given notifications owned by userID as read. With no ids
// it marks every unread notification of the user.
func (r *Registry) MarkRead(ctx context.Context, userID string, ids ...string) error {
	if userID == "" {
		return ErrUserRequired
	}
	if len(ids) == 0 {
		return r.store.MarkAllRead(ctx, userID)
	}
	return r.store.MarkRead(ctx, userID, ids...)
}

// MarkAllRead marks every unread notification of userID as read.
func (r *Registry) MarkAllRead(ctx context.Context, userID string) error {
	return r.MarkRead(ctx, userID)
}

func (r *Registry) CountUnread(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrUserRequired
	}
	return r.store.CountUnread(ctx, userID)
}

// GetPreferences returns the stored preference rows of userID.
func (r *Registry) GetPreferences(ctx context.Context, userID string) ([]Preference, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	return r.store.ListPreferences(ctx, userID)
}

// UpdatePreferences upserts one row per update. All updates are validated
// before anything is written.
func (r *Registry) UpdatePreferences(ctx context.Context, userID string, updates []PreferenceUpdate) error {
	if userID == "" {
		return ErrUserRequired
	}
	for i, u := range updates {
		if err := u.validate(); err != nil {
			return fmt.Errorf("%w: entry %d needs notificationType and channel", err, i)
		}
	}

	for _, u := range updates {
		if err := r.store.UpsertPreference(ctx, Preference{
			ID:               r.newID(),
			UserID:           userID,
			NotificationType: u.NotificationType,
			Channel:          u.Channel,
			Enabled:          u.Enabled,
			UpdatedAt:        r.now(),
		}); err != nil {
			return fmt.Errorf("update preference %s/%s: %w", u.NotificationType, u.Channel, err)
		}
	}
	return nil
}

// DeliveryHistory follows the retry chain from any attempt back to the first
// one and returns the attempts oldest first.
func (r *Registry) DeliveryHistory(ctx context.Context, deliveryID string) ([]Delivery, error) {
	var chain []Delivery
	seen := make(map[string]struct{})

	for id := deliveryID; id != ""; {
		if _, loop := seen[id]; loop {
			return nil, fmt.Errorf("%w at %q", ErrCorruptChain, id)
		}
		seen[id] = struct{}{}

		d, err := r.store.GetDelivery(ctx, id)
		if err != nil {
			return nil, err
		}
		chain = append(chain, d)
		id = d.RetryOf
	}

	slices.Reverse(chain)
	return chain, nil
}

// DefinitionInfo summarizes a registered notification type.
type DefinitionInfo struct {
	Key         string        `json:"key"`
	Description string        `json:"description,omitempty"`
	Critical    bool          `json:"critical"`
	Channels    []ChannelName `json:"channels"`
}

// Definitions lists the registered notification types sorted by key.
func (r *Registry) Definitions() []DefinitionInfo {
	out := make([]DefinitionInfo, 0, len(r.definitions))
	for _, d := range r.definitions {
		out = append(out, DefinitionInfo{
			Key:         d.Key,
			Description: d.Description,
			Critical:    d.Critical,
			Channels:    d.Channels(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
