package notifications

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// MemoryStore is an in-memory Store. Suitable for development and testing.
type MemoryStore struct {
	mu          sync.RWMutex
	deliveries  map[string]Delivery
	order       []string // delivery ids in insertion order
	inbox       map[string][]InAppNotification
	preferences map[string][]Preference
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		deliveries:  make(map[string]Delivery),
		inbox:       make(map[string][]InAppNotification),
		preferences: make(map[string][]Preference),
	}
}

func (s *MemoryStore) CreateDelivery(_ context.Context, d Delivery) error {
	if d.ID == "" {
		return errors.New("delivery id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.deliveries[d.ID]; exists {
		return errors.New("delivery already exists")
	}
	d.Content = slices.Clone(d.Content)
	s.deliveries[d.ID] = d
	s.order = append(s.order, d.ID)
	return nil
}

func (s *MemoryStore) UpdateDelivery(_ context.Context, id string, u DeliveryUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deliveries[id]
	if !ok {
		return ErrDeliveryNotFound
	}
	d.Status = u.Status
	d.ExternalID = u.ExternalID
	d.Error = u.Error
	d.UpdatedAt = u.UpdatedAt
	s.deliveries[id] = d
	return nil
}

func (s *MemoryStore) GetDelivery(_ context.Context, id string) (Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deliveries[id]
	if !ok {
		return Delivery{}, ErrDeliveryNotFound
	}
	d.Content = slices.Clone(d.Content)
	return d, nil
}

// Deliveries returns every attempt row in insertion order.
func (s *MemoryStore) Deliveries() []Delivery {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Delivery, 0, len(s.order))
	for _, id := range s.order {
		d := s.deliveries[id]
		d.Content = slices.Clone(d.Content)
		out = append(out, d)
	}
	return out
}

func (s *MemoryStore) CreateInApp(_ context.Context, n InAppNotification) error {
	if n.ID == "" {
		return errors.New("notification id is required")
	}
	if n.UserID == "" {
		return ErrUserRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.inbox[n.UserID] = append(s.inbox[n.UserID], n)
	return nil
}

func (s *MemoryStore) ListInApp(_ context.Context, userID string, opts ListOptions) ([]InAppNotification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.inbox[userID]
	out := make([]InAppNotification, 0, len(rows))
	// Walk backwards so that equal timestamps list the later insert first.
	for i := len(rows) - 1; i >= 0; i-- {
		if opts.UnreadOnly && rows[i].Read {
			continue
		}
		out = append(out, rows[i])
	}
	slices.SortStableFunc(out, func(a, b InAppNotification) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, userID string, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.inbox[userID]
	for i := range rows {
		if slices.Contains(ids, rows[i].ID) {
			rows[i].Read = true
		}
	}
	return nil
}

func (s *MemoryStore) MarkAllRead(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.inbox[userID]
	for i := range rows {
		rows[i].Read = true
	}
	return nil
}

func (s *MemoryStore) CountUnread(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.inbox[userID] {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) ListPreferences(_ context.Context, userID string) ([]Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.preferences[userID]), nil
}

func (s *MemoryStore) UpsertPreference(_ context.Context, p Preference) error {
	if p.UserID == "" {
		return ErrUserRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.preferences[p.UserID]
	for i := range rows {
		if rows[i].NotificationType == p.NotificationType && rows[i].Channel == p.Channel {
			rows[i].Enabled = p.Enabled
			rows[i].UpdatedAt = p.UpdatedAt
			return nil
		}
	}
	s.preferences[p.UserID] = append(rows, p)
	return nil
}
