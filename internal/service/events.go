package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	sxotel "github.com/scrumix/scrumix/internal/adapter/otel"
	"github.com/scrumix/scrumix/internal/domain/notification"
	"github.com/scrumix/scrumix/internal/domain/velocity"
	"github.com/scrumix/scrumix/internal/port/broadcast"
	"github.com/scrumix/scrumix/internal/port/database"
	"github.com/scrumix/scrumix/internal/port/messagequeue"
	"github.com/scrumix/scrumix/internal/resilience"
)

// EventPublisher puts domain events on the message bus. Publishing never
// fails the caller: when the bus is down the breaker opens and events are
// dropped with a warning. Without a queue, events go straight to the local
// handler.
type EventPublisher struct {
	queue   messagequeue.Queue
	breaker *resilience.Breaker
	local   messagequeue.Handler
	metrics *sxotel.Metrics
}

// NewEventPublisher creates a publisher. queue may be nil.
func NewEventPublisher(queue messagequeue.Queue, breaker *resilience.Breaker, metrics *sxotel.Metrics) *EventPublisher {
	return &EventPublisher{queue: queue, breaker: breaker, metrics: metrics}
}

// SetLocalHandler sets the handler used when no queue is configured.
func (p *EventPublisher) SetLocalHandler(h messagequeue.Handler) {
	p.local = h
}

// Publish encodes payload and sends it on subject. A nil publisher is a no-op.
func (p *EventPublisher) Publish(ctx context.Context, subject string, payload any) {
	if p == nil {
		return
	}
	ctx, span := sxotel.StartEventSpan(ctx, subject)
	defer span.End()

	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("encode event", "subject", subject, "error", err)
		return
	}
	if err := messagequeue.Validate(subject, data); err != nil {
		slog.Error("event failed schema validation", "subject", subject, "error", err)
		return
	}

	if p.queue == nil {
		if p.local != nil {
			if err := p.local(ctx, subject, data); err != nil {
				slog.Warn("local event handler failed", "subject", subject, "error", err)
			}
		}
		return
	}

	publish := func(ctx context.Context) error { return p.queue.Publish(ctx, subject, data) }
	if p.breaker != nil {
		err = p.breaker.Execute(ctx, publish)
	} else {
		err = publish(ctx)
	}
	if err != nil {
		if p.metrics != nil {
			p.metrics.Add(ctx, p.metrics.EventsDropped, 1, subject)
		}
		slog.Warn("event dropped", "subject", subject, "error", err)
		return
	}
	if p.metrics != nil {
		p.metrics.Add(ctx, p.metrics.EventsPublished, 1, subject)
	}
}

// PublishNotification announces a stored notification to its recipients.
func (p *EventPublisher) PublishNotification(ctx context.Context, n *notification.Notification, recipients []string) {
	payload := messagequeue.NotificationCreatedPayload{
		NotificationID: n.ID,
		Title:          n.Title,
		Message:        n.Message,
		Type:           n.NotificationType,
		Priority:       string(n.Priority),
		ActionURL:      n.ActionURL,
		RecipientIDs:   recipients,
		CreatedAt:      n.CreatedAt,
	}
	if n.ProjectID != nil {
		payload.ProjectID = *n.ProjectID
	}
	p.Publish(ctx, messagequeue.SubjectNotificationCreated, payload)
}

// PublishVelocity announces a sprint's new velocity and burndown snapshot.
func (p *EventPublisher) PublishVelocity(ctx context.Context, ev velocity.UpdatedEvent) {
	payload := messagequeue.VelocityUpdatedPayload{
		ProjectID:      ev.ProjectID,
		SprintID:       ev.SprintID,
		VelocityPoints: ev.Velocity,
	}
	if ev.Snapshot != nil {
		payload.CompletedPoints = ev.Snapshot.CompletedPoints
		payload.RemainingPoints = ev.Snapshot.RemainingPoints
		payload.SnapshotDate = ev.Snapshot.Date
	}
	p.Publish(ctx, messagequeue.SubjectVelocityUpdated, payload)
}

// EventRelay forwards bus events to connected websocket clients.
type EventRelay struct {
	store database.Store
	hub   broadcast.Broadcaster
}

// NewEventRelay creates a relay pushing to hub.
func NewEventRelay(store database.Store, hub broadcast.Broadcaster) *EventRelay {
	return &EventRelay{store: store, hub: hub}
}

// Handle implements messagequeue.Handler.
func (r *EventRelay) Handle(ctx context.Context, subject string, data []byte) error {
	switch subject {
	case messagequeue.SubjectNotificationCreated:
		var p messagequeue.NotificationCreatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", subject, err)
		}
		r.hub.SendToUsers(ctx, p.RecipientIDs, notification.EventCreated, p)
	case messagequeue.SubjectVelocityUpdated:
		var p messagequeue.VelocityUpdatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", subject, err)
		}
		members, err := r.store.ListMembers(ctx, p.ProjectID)
		if err != nil {
			return fmt.Errorf("list members of %s: %w", p.ProjectID, err)
		}
		ids := make([]string, 0, len(members))
		for i := range members {
			ids = append(ids, members[i].UserID)
		}
		r.hub.SendToUsers(ctx, ids, velocity.EventBurndownUpdated, p)
	}
	return nil
}

// Subscribe consumes notification and velocity subjects from q until the
// returned cancel function is called.
func (r *EventRelay) Subscribe(ctx context.Context, q messagequeue.Queue) (func(), error) {
	var cancels []func()
	cancelAll := func() {
		for _, c := range cancels {
			c()
		}
	}
	for _, subject := range messagequeue.RelaySubjects {
		c, err := q.Subscribe(ctx, subject, r.Handle)
		if err != nil {
			cancelAll()
			return nil, fmt.Errorf("subscribe %s: %w", subject, err)
		}
		cancels = append(cancels, c)
	}
	return cancelAll, nil
}
