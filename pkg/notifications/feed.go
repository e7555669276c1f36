package notifications

import (
	"context"
	"sync"
)

// Feed fans out freshly stored in-app notifications to live per-user
// subscribers, e.g. an SSE or websocket handler. Slow subscribers are dropped
// rather than blocking delivery. All methods are safe for concurrent use.
type Feed struct {
	mu         sync.RWMutex
	users      map[string]map[*Subscription]struct{}
	bufferSize int
	closed     bool
	done       chan struct{}
	cleanupWg  sync.WaitGroup
}

// NewFeed creates a feed whose subscriptions buffer up to bufferSize rows.
// A minimum buffer of 1 is enforced.
func NewFeed(bufferSize int) *Feed {
	return &Feed{
		users:      make(map[string]map[*Subscription]struct{}),
		bufferSize: max(bufferSize, 1),
		done:       make(chan struct{}),
	}
}

// Subscription receives a single user's in-app notifications.
type Subscription struct {
	userID string
	ch     chan InAppNotification
	once   sync.Once
}

// Notifications is closed when the subscription ends.
func (s *Subscription) Notifications() <-chan InAppNotification { return s.ch }

// UserID returns the subscribed user.
func (s *Subscription) UserID() string { return s.userID }

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

func (s *Subscription) send(n InAppNotification) bool {
	select {
	case s.ch <- n:
		return true
	default:
		return false
	}
}

// Subscribe registers a subscription for userID that ends when ctx is done,
// Unsubscribe is called, or the feed is closed. Subscribing to a closed feed
// returns an already closed subscription.
func (f *Feed) Subscribe(ctx context.Context, userID string) *Subscription {
	sub := &Subscription{userID: userID, ch: make(chan InAppNotification, f.bufferSize)}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		sub.close()
		return sub
	}

	subs, ok := f.users[userID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		f.users[userID] = subs
	}
	subs[sub] = struct{}{}

	if ctx.Done() != nil {
		f.cleanupWg.Add(1)
		go func() {
			defer f.cleanupWg.Done()
			select {
			case <-ctx.Done():
				f.Unsubscribe(sub)
			case <-f.done:
			}
		}()
	}

	return sub
}

// Unsubscribe removes sub and closes its channel. It is safe to call more than once.
func (f *Feed) Unsubscribe(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeLocked(sub)
}

func (f *Feed) removeLocked(sub *Subscription) {
	if subs, ok := f.users[sub.userID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(f.users, sub.userID)
		}
	}
	sub.close()
}

// Publish hands n to every subscription of n.UserID and returns how many
// received it. Subscriptions with a full buffer are dropped.
func (f *Feed) Publish(n InAppNotification) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0
	}

	delivered := 0
	for sub := range f.users[n.UserID] {
		if sub.send(n) {
			delivered++
			continue
		}
		f.removeLocked(sub)
	}
	return delivered
}

// Subscribers returns the number of live subscriptions for userID.
func (f *Feed) Subscribers(userID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.users[userID])
}

// Close ends every subscription. Publish becomes a no-op afterwards.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.done)
	for _, subs := range f.users {
		for sub := range subs {
			sub.close()
		}
	}
	clear(f.users)
	f.mu.Unlock()

	f.cleanupWg.Wait()
}
