package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sxotel "github.com/scrumix/scrumix/internal/adapter/otel"
	"github.com/scrumix/scrumix/internal/config"
	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/notification"
	"github.com/scrumix/scrumix/internal/port/database"
)

// NotificationService stores notifications, fans them out to recipients and
// purges expired ones.
type NotificationService struct {
	store   database.Store
	events  *EventPublisher
	cfg     config.Notifications
	metrics *sxotel.Metrics
}

// NewNotificationService creates a notification service. events and metrics may be nil.
func NewNotificationService(store database.Store, events *EventPublisher, cfg config.Notifications, metrics *sxotel.Metrics) *NotificationService {
	return &NotificationService{store: store, events: events, cfg: cfg, metrics: metrics}
}

// Create stores a notification. Recipients default to the members of the
// request's project, then to every enabled user.
func (s *NotificationService) Create(ctx context.Context, createdBy string, req *notification.CreateRequest) (*notification.Notification, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	recipients := dedupe(req.RecipientIDs)
	if len(recipients) == 0 {
		var err error
		if req.ProjectID != nil {
			recipients, err = s.memberIDs(ctx, *req.ProjectID, "")
		} else {
			recipients, err = s.store.ListUserIDs(ctx)
		}
		if err != nil {
			return nil, err
		}
	}
	if len(recipients) == 0 {
		return nil, domain.Invalid("notification has no recipients")
	}

	n := &notification.Notification{
		ID:               newID(),
		Title:            req.Title,
		Message:          req.Message,
		NotificationType: req.NotificationType,
		Priority:         req.Priority,
		EntityType:       req.EntityType,
		EntityID:         req.EntityID,
		ProjectID:        req.ProjectID,
		ActionURL:        req.ActionURL,
		ExpiresAt:        req.ExpiresAt,
		CreatedAt:        now(),
	}
	if createdBy != "" {
		// The synthetic admin used with auth disabled has no account row.
		if _, err := s.store.GetUser(ctx, createdBy); err == nil {
			n.CreatedBy = &createdBy
		}
	}
	if n.ExpiresAt == nil && s.cfg.Retention > 0 {
		exp := n.CreatedAt.Add(s.cfg.Retention)
		n.ExpiresAt = &exp
	}

	if err := s.store.CreateNotification(ctx, n, recipients); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	if s.metrics != nil {
		s.metrics.Add(ctx, s.metrics.NotificationsSent, int64(len(recipients)), n.NotificationType)
	}
	s.events.PublishNotification(ctx, n, recipients)
	return n, nil
}

// NotifyProject sends a notification to the project's members except skipUserID.
// Failures are logged; the triggering operation already succeeded.
func (s *NotificationService) NotifyProject(ctx context.Context, projectID, skipUserID string, req notification.CreateRequest) {
	if s == nil {
		return
	}
	ids, err := s.memberIDs(ctx, projectID, skipUserID)
	if err != nil {
		slog.Warn("notify project: list members", "project_id", projectID, "error", err)
		return
	}
	s.NotifyUsers(ctx, ids, skipUserID, req, projectID)
}

// NotifyUsers sends a notification to userIDs, attributed to createdBy.
func (s *NotificationService) NotifyUsers(ctx context.Context, userIDs []string, createdBy string, req notification.CreateRequest, projectID string) {
	if s == nil || len(userIDs) == 0 {
		return
	}
	req.RecipientIDs = userIDs
	if projectID != "" {
		req.ProjectID = &projectID
	}
	if _, err := s.Create(ctx, createdBy, &req); err != nil {
		slog.Warn("notification not sent", "type", req.NotificationType, "error", err)
	}
}

func (s *NotificationService) memberIDs(ctx context.Context, projectID, skip string) ([]string, error) {
	members, err := s.store.ListMembers(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for i := range members {
		if members[i].UserID != skip {
			ids = append(ids, members[i].UserID)
		}
	}
	return ids, nil
}

// Get returns a notification by ID.
func (s *NotificationService) Get(ctx context.Context, id string) (*notification.Notification, error) {
	return s.store.GetNotification(ctx, id)
}

// List returns the user's live notifications, newest first.
func (s *NotificationService) List(ctx context.Context, f notification.Filter) ([]notification.Delivery, error) {
	if f.Status != "" && !notification.ValidStatuses[f.Status] {
		return nil, domain.Invalid("invalid status %q", f.Status)
	}
	return s.store.ListDeliveries(ctx, f, time.Now())
}

// UnreadCount returns how many live notifications the user has not read.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnread(ctx, userID, time.Now())
}

// MarkRead marks one notification read for the user.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	return s.store.SetDeliveryStatus(ctx, id, userID, notification.StatusRead)
}

// Dismiss hides one notification for the user.
func (s *NotificationService) Dismiss(ctx context.Context, id, userID string) error {
	return s.store.SetDeliveryStatus(ctx, id, userID, notification.StatusDismissed)
}

// MarkAllRead marks every unread notification of the user read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.store.MarkAllRead(ctx, userID)
}

// Delete removes a notification for all recipients.
func (s *NotificationService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteNotification(ctx, id)
}

// PurgeExpired deletes notifications whose expiry has passed.
func (s *NotificationService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.PurgeExpiredNotifications(ctx, time.Now())
}

// StartPurge runs PurgeExpired every interval until ctx is cancelled.
func (s *NotificationService) StartPurge(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.PurgeExpired(ctx)
				if err != nil {
					slog.Warn("failed to purge expired notifications", "error", err)
				} else if n > 0 {
					slog.Info("purged expired notifications", "count", n)
				}
			}
		}
	}()
}
