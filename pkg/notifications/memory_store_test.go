package notifications_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

func TestMemoryStore_Deliveries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notifications.NewMemoryStore()

	require.Error(t, store.CreateDelivery(ctx, notifications.Delivery{}))

	d := notifications.Delivery{ID: "d1", Status: notifications.StatusPending, Content: json.RawMessage(`{"a":1}`)}
	require.NoError(t, store.CreateDelivery(ctx, d))
	require.Error(t, store.CreateDelivery(ctx, d), "duplicate id")

	require.NoError(t, store.UpdateDelivery(ctx, "d1", notifications.DeliveryUpdate{
		Status: notifications.StatusSent, ExternalID: "x", UpdatedAt: fixedNow,
	}))
	assert.ErrorIs(t, store.UpdateDelivery(ctx, "nope", notifications.DeliveryUpdate{}), notifications.ErrDeliveryNotFound)

	got, err := store.GetDelivery(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, notifications.StatusSent, got.Status)
	assert.Equal(t, "x", got.ExternalID)
	assert.JSONEq(t, `{"a":1}`, string(got.Content))

	// Returned content must not alias stored content.
	got.Content[0] = 'X'
	again, err := store.GetDelivery(ctx, "d1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(again.Content))

	_, err = store.GetDelivery(ctx, "nope")
	assert.ErrorIs(t, err, notifications.ErrDeliveryNotFound)
}

func TestMemoryStore_Inbox(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notifications.NewMemoryStore()

	require.ErrorIs(t, store.CreateInApp(ctx, notifications.InAppNotification{ID: "x"}), notifications.ErrUserRequired)

	rows := []notifications.InAppNotification{
		{ID: "n1", UserID: "u1", CreatedAt: fixedNow},
		{ID: "n2", UserID: "u1", CreatedAt: fixedNow.Add(time.Minute)},
		{ID: "n3", UserID: "u1", CreatedAt: fixedNow}, // ties with n1, inserted later
		{ID: "n4", UserID: "u2", CreatedAt: fixedNow},
	}
	for _, n := range rows {
		require.NoError(t, store.CreateInApp(ctx, n))
	}

	ids := func(ns []notifications.InAppNotification) []string {
		out := make([]string, len(ns))
		for i, n := range ns {
			out[i] = n.ID
		}
		return out
	}

	list, err := store.ListInApp(ctx, "u1", notifications.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"n2", "n3", "n1"}, ids(list))

	list, err = store.ListInApp(ctx, "u1", notifications.ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"n2"}, ids(list))

	require.NoError(t, store.MarkRead(ctx, "u1", "n3", "n4"))
	list, err = store.ListInApp(ctx, "u1", notifications.ListOptions{UnreadOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"n2", "n1"}, ids(list))

	count, err := store.CountUnread(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, store.MarkAllRead(ctx, "u1"))
	count, err = store.CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)

	list, err = store.ListInApp(ctx, "nobody", notifications.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryStore_Preferences(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := notifications.NewMemoryStore()

	require.ErrorIs(t, store.UpsertPreference(ctx, notifications.Preference{}), notifications.ErrUserRequired)

	p := notifications.Preference{ID: "p1", UserID: "u1", NotificationType: "*", Channel: notifications.ChannelEmail, Enabled: false, UpdatedAt: fixedNow}
	require.NoError(t, store.UpsertPreference(ctx, p))

	p.ID = "p2"
	p.Enabled = true
	p.UpdatedAt = fixedNow.Add(time.Hour)
	require.NoError(t, store.UpsertPreference(ctx, p))

	prefs, err := store.ListPreferences(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.Equal(t, "p1", prefs[0].ID)
	assert.True(t, prefs[0].Enabled)
	assert.Equal(t, fixedNow.Add(time.Hour), prefs[0].UpdatedAt)
}
