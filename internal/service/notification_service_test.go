package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/taskflow/internal/domain"
)

func TestNotificationInbox(t *testing.T) {
	h := newHarness(t)
	ana := h.user("ana@example.com")
	ben := h.user("ben@example.com")

	base := time.Now().UTC()
	var ids []uuid.UUID
	for i, title := range []string{"first", "second", "third"} {
		n := &domain.Notification{
			ID:        uuid.New(),
			UserID:    ana.ID,
			Type:      domain.NotificationTaskAssigned,
			Title:     title,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, h.repos.Notifications.Create(h.ctx, n))
		ids = append(ids, n.ID)
	}

	all, err := h.svc.Notifications.List(h.ctx, ana.ID, false, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Title, "newest first")

	require.NoError(t, h.svc.Notifications.MarkRead(h.ctx, ana.ID, ids[0]))
	require.NoError(t, h.svc.Notifications.MarkRead(h.ctx, ana.ID, ids[0]))
	assert.ErrorIs(t, h.svc.Notifications.MarkRead(h.ctx, ben.ID, ids[1]), ErrNotificationNotFound)

	unread, err := h.svc.Notifications.List(h.ctx, ana.ID, true, 10, 0)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	n, err := h.svc.Notifications.MarkAllRead(h.ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	unread, err = h.svc.Notifications.List(h.ctx, ana.ID, true, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, unread)

	none, err := h.svc.Notifications.List(h.ctx, ben.ID, false, 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
