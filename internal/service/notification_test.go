package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/notification"
	"github.com/scrumix/scrumix/internal/domain/project"
	"github.com/scrumix/scrumix/internal/domain/velocity"
	"github.com/scrumix/scrumix/internal/port/messagequeue"
)

type sent struct {
	users     []string
	eventType string
}

type fakeHub struct {
	mu   sync.Mutex
	sent []sent
}

func (h *fakeHub) SendToUsers(_ context.Context, userIDs []string, eventType string, _ any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, sent{users: userIDs, eventType: eventType})
}

func TestNotificationService_ProjectRecipients(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dev := f.member(t, "dev", project.RoleDeveloper)
	outsider := registerUser(t, f.auth, "outsider")

	n, err := f.notifications.Create(ctx, f.owner.ID, &notification.CreateRequest{
		Title:     "Release",
		Message:   "Release train leaves Friday",
		ProjectID: &f.project.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, notification.PriorityMedium, n.Priority)
	assert.Equal(t, notification.TypeAnnouncement, n.NotificationType)
	require.NotNil(t, n.CreatedBy)
	require.NotNil(t, n.ExpiresAt, "retention sets a default expiry")

	for _, uid := range []string{f.owner.ID, dev.ID} {
		list, err := f.notifications.List(ctx, notification.Filter{UserID: uid})
		require.NoError(t, err)
		found := false
		for _, d := range list {
			found = found || d.ID == n.ID
		}
		assert.True(t, found, "member %s receives it", uid)
	}
	list, err := f.notifications.List(ctx, notification.Filter{UserID: outsider.ID})
	require.NoError(t, err)
	assert.Empty(t, list)

	events := f.eventsOn(messagequeue.SubjectNotificationCreated)
	require.NotEmpty(t, events)
	var p messagequeue.NotificationCreatedPayload
	require.NoError(t, json.Unmarshal(events[len(events)-1].data, &p))
	assert.Equal(t, n.ID, p.NotificationID)
	assert.ElementsMatch(t, []string{f.owner.ID, dev.ID}, p.RecipientIDs)
}

func TestNotificationService_Broadcast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := registerUser(t, f.auth, "other")

	n, err := f.notifications.Create(ctx, "", &notification.CreateRequest{Title: "Maintenance", Message: "Tonight"})
	require.NoError(t, err)
	assert.Nil(t, n.CreatedBy)

	count, err := f.notifications.UnreadCount(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = f.notifications.Create(ctx, "", &notification.CreateRequest{Title: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNotificationService_ReadStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := f.owner.ID

	mk := func(title string) *notification.Notification {
		n, err := f.notifications.Create(ctx, "", &notification.CreateRequest{Title: title, Message: "m", RecipientIDs: []string{uid}})
		require.NoError(t, err)
		return n
	}
	a, b, c := mk("a"), mk("b"), mk("c")

	require.NoError(t, f.notifications.MarkRead(ctx, a.ID, uid))
	require.NoError(t, f.notifications.Dismiss(ctx, b.ID, uid))

	count, err := f.notifications.UnreadCount(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	unread, err := f.notifications.List(ctx, notification.Filter{UserID: uid, Status: notification.StatusUnread})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, c.ID, unread[0].ID)

	n, err := f.notifications.MarkAllRead(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.notifications.List(ctx, notification.Filter{UserID: uid, Status: "gone"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.ErrorIs(t, f.notifications.MarkRead(ctx, "missing", uid), domain.ErrNotFound)

	require.NoError(t, f.notifications.Delete(ctx, c.ID))
	_, err = f.notifications.Get(ctx, c.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNotificationService_PurgeExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)

	expired, err := f.notifications.Create(ctx, "", &notification.CreateRequest{
		Title: "old", Message: "m", RecipientIDs: []string{f.owner.ID}, ExpiresAt: &past,
	})
	require.NoError(t, err)
	fresh, err := f.notifications.Create(ctx, "", &notification.CreateRequest{
		Title: "new", Message: "m", RecipientIDs: []string{f.owner.ID},
	})
	require.NoError(t, err)

	list, err := f.notifications.List(ctx, notification.Filter{UserID: f.owner.ID})
	require.NoError(t, err)
	require.Len(t, list, 1, "expired notifications are hidden before purge")

	n, err := f.notifications.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.notifications.Get(ctx, expired.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.notifications.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestEventRelay_Handle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dev := f.member(t, "dev", project.RoleDeveloper)
	hub := &fakeHub{}
	relay := NewEventRelay(f.store, hub)

	data, err := json.Marshal(messagequeue.NotificationCreatedPayload{NotificationID: "n1", RecipientIDs: []string{dev.ID}})
	require.NoError(t, err)
	require.NoError(t, relay.Handle(ctx, messagequeue.SubjectNotificationCreated, data))

	data, err = json.Marshal(messagequeue.VelocityUpdatedPayload{ProjectID: f.project.ID, SprintID: "s1"})
	require.NoError(t, err)
	require.NoError(t, relay.Handle(ctx, messagequeue.SubjectVelocityUpdated, data))

	require.Len(t, hub.sent, 2)
	assert.Equal(t, notification.EventCreated, hub.sent[0].eventType)
	assert.Equal(t, []string{dev.ID}, hub.sent[0].users)
	assert.Equal(t, velocity.EventBurndownUpdated, hub.sent[1].eventType)
	assert.ElementsMatch(t, []string{f.owner.ID, dev.ID}, hub.sent[1].users)

	assert.Error(t, relay.Handle(ctx, messagequeue.SubjectVelocityUpdated, []byte("{")))
}

func TestEventPublisher_NilIsNoop(t *testing.T) {
	var p *EventPublisher
	assert.NotPanics(t, func() {
		p.Publish(context.Background(), messagequeue.SubjectVelocityUpdated, map[string]string{"sprint_id": "s"})
	})
}
