package memory

import (
	"context"
	"slices"
	"time"

	"github.com/scrumix/scrumix/internal/domain/notification"
)

func live(n notification.Notification, now time.Time) bool {
	return n.ExpiresAt == nil || n.ExpiresAt.After(now)
}

func (s *Store) CreateNotification(_ context.Context, n *notification.Notification, recipientIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; ok {
		return exists("notification %s", n.ID)
	}
	if err := s.requireUsers(recipientIDs); err != nil {
		return err
	}
	n.CreatedAt = s.now()
	s.notifications[n.ID] = *n
	for _, uid := range recipientIDs {
		key := linkKey{n.ID, uid}
		if _, ok := s.deliveries[key]; !ok {
			s.deliveries[key] = delivery{status: notification.StatusUnread}
		}
	}
	return nil
}

func (s *Store) GetNotification(_ context.Context, id string) (*notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, notFound("get notification %s", id)
	}
	return &n, nil
}

func (s *Store) ListDeliveries(_ context.Context, f notification.Filter, now time.Time) ([]notification.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []notification.Delivery
	for k, d := range s.deliveries {
		if k.otherID != f.UserID || (f.Status != "" && d.status != f.Status) {
			continue
		}
		n, ok := s.notifications[k.ownerID]
		if !ok || !live(n, now) {
			continue
		}
		out = append(out, notification.Delivery{Notification: n, UserID: k.otherID, Status: d.status, ReadAt: d.readAt})
	}
	slices.SortFunc(out, func(a, b notification.Delivery) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return page(out, f.Page), nil
}

func (s *Store) CountUnread(_ context.Context, userID string, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for k, d := range s.deliveries {
		if k.otherID == userID && d.status == notification.StatusUnread && live(s.notifications[k.ownerID], now) {
			count++
		}
	}
	return count, nil
}

func (s *Store) SetDeliveryStatus(_ context.Context, notificationID, userID string, status notification.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := linkKey{notificationID, userID}
	d, ok := s.deliveries[key]
	if !ok {
		return notFound("set notification %s status", notificationID)
	}
	d.status = status
	switch {
	case status == notification.StatusUnread:
		d.readAt = nil
	case d.readAt == nil:
		now := s.now()
		d.readAt = &now
	}
	s.deliveries[key] = d
	return nil
}

func (s *Store) MarkAllRead(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var n int64
	for k, d := range s.deliveries {
		if k.otherID == userID && d.status == notification.StatusUnread {
			d.status = notification.StatusRead
			d.readAt = &now
			s.deliveries[k] = d
			n++
		}
	}
	return n, nil
}

func (s *Store) dropNotification(id string) {
	delete(s.notifications, id)
	for k := range s.deliveries {
		if k.ownerID == id {
			delete(s.deliveries, k)
		}
	}
}

func (s *Store) DeleteNotification(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[id]; !ok {
		return notFound("delete notification %s", id)
	}
	s.dropNotification(id)
	return nil
}

func (s *Store) PurgeExpiredNotifications(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, no := range s.notifications {
		if no.ExpiresAt != nil && no.ExpiresAt.Before(before) {
			s.dropNotification(id)
			n++
		}
	}
	return n, nil
}
