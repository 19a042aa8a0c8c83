package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/scrumix/scrumix/internal/domain/notification"
)

const notificationColumns = `n.id, n.title, n.message, n.notification_type, n.priority, n.entity_type, n.entity_id,
	n.project_id, n.created_by, n.action_url, n.expires_at, n.created_at`

func scanNotification(row scannable) (notification.Notification, error) {
	var n notification.Notification
	err := row.Scan(&n.ID, &n.Title, &n.Message, &n.NotificationType, &n.Priority, &n.EntityType, &n.EntityID,
		&n.ProjectID, &n.CreatedBy, &n.ActionURL, &n.ExpiresAt, &n.CreatedAt)
	return n, err
}

func scanDelivery(row scannable) (notification.Delivery, error) {
	var d notification.Delivery
	n := &d.Notification
	err := row.Scan(&n.ID, &n.Title, &n.Message, &n.NotificationType, &n.Priority, &n.EntityType, &n.EntityID,
		&n.ProjectID, &n.CreatedBy, &n.ActionURL, &n.ExpiresAt, &n.CreatedAt,
		&d.UserID, &d.Status, &d.ReadAt)
	return d, err
}

func (s *Store) CreateNotification(ctx context.Context, n *notification.Notification, recipientIDs []string) error {
	n.CreatedAt = time.Now().UTC()
	return s.inTx(ctx, "create notification", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO notifications (id, title, message, notification_type, priority, entity_type, entity_id,
			                           project_id, created_by, action_url, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			n.ID, n.Title, n.Message, n.NotificationType, n.Priority, n.EntityType, n.EntityID,
			n.ProjectID, n.CreatedBy, n.ActionURL, n.ExpiresAt, n.CreatedAt,
		); err != nil {
			return constraintWrap(err, "create notification")
		}
		if len(recipientIDs) == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO notification_deliveries (notification_id, user_id)
			SELECT $1, unnest($2::uuid[])
			ON CONFLICT DO NOTHING`, n.ID, recipientIDs); err != nil {
			return constraintWrap(err, "deliver notification %s", n.ID)
		}
		return nil
	})
}

func (s *Store) GetNotification(ctx context.Context, id string) (*notification.Notification, error) {
	n, err := scanNotification(s.pool.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications n WHERE n.id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get notification %s", id)
	}
	return &n, nil
}

func (s *Store) ListDeliveries(ctx context.Context, f notification.Filter, now time.Time) ([]notification.Delivery, error) {
	var w where
	w.add("d.user_id = ?", f.UserID)
	w.add("(n.expires_at IS NULL OR n.expires_at > ?)", now)
	if f.Status != "" {
		w.add("d.status = ?", f.Status)
	}
	q := `SELECT ` + notificationColumns + `, d.user_id, d.status, d.read_at
		FROM notification_deliveries d JOIN notifications n ON n.id = d.notification_id` +
		w.sql() + ` ORDER BY n.created_at DESC` + w.page(f.Page)

	rows, err := s.pool.Query(ctx, q, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return collect(rows, scanDelivery)
}

func (s *Store) CountUnread(ctx context.Context, userID string, now time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM notification_deliveries d JOIN notifications n ON n.id = d.notification_id
		WHERE d.user_id = $1 AND d.status = 'unread' AND (n.expires_at IS NULL OR n.expires_at > $2)`,
		userID, now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

func (s *Store) SetDeliveryStatus(ctx context.Context, notificationID, userID string, status notification.Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET status = $3,
		    read_at = CASE WHEN $3 = 'unread' THEN NULL ELSE COALESCE(read_at, now()) END
		WHERE notification_id = $1 AND user_id = $2`,
		notificationID, userID, string(status))
	return execExpectOne(tag, err, "set notification %s status", notificationID)
}

func (s *Store) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notification_deliveries SET status = 'read', read_at = now()
		WHERE user_id = $1 AND status = 'unread'`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete notification %s", id)
}

func (s *Store) PurgeExpiredNotifications(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE expires_at IS NOT NULL AND expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge expired notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}
