package notifications_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// sequentialIDs returns an id generator producing "<prefix>-1", "<prefix>-2", ...
func sequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}

// noSleep records requested delays without waiting.
type noSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *noSleep) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func (s *noSleep) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// flakyHandler fails the first failures calls, then succeeds.
type flakyHandler struct {
	failures int32
	calls    atomic.Int32
	envs     chan notifications.Envelope
}

func (h *flakyHandler) Send(_ context.Context, env notifications.Envelope) (notifications.Receipt, error) {
	n := h.calls.Add(1)
	if h.envs != nil {
		h.envs <- env
	}
	if n <= h.failures {
		return notifications.Receipt{}, fmt.Errorf("transient failure %d", n)
	}
	return notifications.Receipt{ExternalID: fmt.Sprintf("ext-%d", n)}, nil
}

// stubChannel is a channel plugin with a configurable handler.
type stubChannel struct {
	name    notifications.ChannelName
	retries int
	handler notifications.Handler
	initErr error
	inits   atomic.Int32
}

func (c *stubChannel) Name() notifications.ChannelName { return c.name }
func (c *stubChannel) Retries() int                    { return c.retries }

func (c *stubChannel) Init(notifications.InitContext) (notifications.Handler, error) {
	c.inits.Add(1)
	if c.initErr != nil {
		return nil, c.initErr
	}
	return c.handler, nil
}

// alwaysFail is a handler that never succeeds.
var errAlwaysFail = errors.New("smtp unavailable")

var alwaysFail = notifications.HandlerFunc(func(context.Context, notifications.Envelope) (notifications.Receipt, error) {
	return notifications.Receipt{}, errAlwaysFail
})

// failingStore wraps a MemoryStore and fails selected operations.
type failingStore struct {
	*notifications.MemoryStore
	createErr error
	updateErr error
	prefsErr  error
}

func (s *failingStore) CreateDelivery(ctx context.Context, d notifications.Delivery) error {
	if s.createErr != nil {
		return s.createErr
	}
	return s.MemoryStore.CreateDelivery(ctx, d)
}

func (s *failingStore) UpdateDelivery(ctx context.Context, id string, u notifications.DeliveryUpdate) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.MemoryStore.UpdateDelivery(ctx, id, u)
}

func (s *failingStore) ListPreferences(ctx context.Context, userID string) ([]notifications.Preference, error) {
	if s.prefsErr != nil {
		return nil, s.prefsErr
	}
	return s.MemoryStore.ListPreferences(ctx, userID)
}

// countingObserver tallies attempt outcomes.
type countingObserver struct {
	mu        sync.Mutex
	attempts  map[notifications.Status]int
	exhausted map[notifications.ChannelName]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{
		attempts:  make(map[notifications.Status]int),
		exhausted: make(map[notifications.ChannelName]int),
	}
}

func (o *countingObserver) AttemptFinished(_ notifications.ChannelName, status notifications.Status, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts[status]++
}

func (o *countingObserver) DeliveryExhausted(channel notifications.ChannelName) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.exhausted[channel]++
}

func testEngine(store notifications.DeliveryStore, opts ...notifications.EngineOption) *notifications.Engine {
	base := []notifications.EngineOption{
		notifications.WithEngineBackoff(notifications.Backoff{0}),
		notifications.WithEngineSleeper((&noSleep{}).Sleep),
		notifications.WithEngineLogger(logger.Discard()),
		notifications.WithEngineClock(fixedClock),
		notifications.WithEngineIDGenerator(sequentialIDs("att")),
	}
	return notifications.NewEngine(store, append(base, opts...)...)
}
