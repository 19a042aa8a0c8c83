// Package messagequeue is the port for the durable event bus that fans
// domain events out to every ScrumiX instance.
package messagequeue

import "context"

// Event subjects. Payload schemas live in schemas.go.
const (
	SubjectNotificationCreated = "notifications.created"
	SubjectVelocityUpdated     = "velocity.updated"

	SubjectNotificationsAll = "notifications.>"
	SubjectVelocityAll      = "velocity.>"
)

// StreamSubjects are the wildcards a broker stream must capture.
var StreamSubjects = []string{SubjectNotificationsAll, SubjectVelocityAll}

// RelaySubjects are the concrete subjects pushed to WebSocket clients.
var RelaySubjects = []string{SubjectNotificationCreated, SubjectVelocityUpdated}

// Handler consumes one message. ctx carries the publisher's request ID when
// the broker transported one. A non-nil error asks for redelivery.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue publishes and consumes events.
type Queue interface {
	Publish(ctx context.Context, subject string, data []byte) error
	// Subscribe delivers messages on subject to handler until cancel is
	// called or ctx ends.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)
	// Drain finishes in-flight deliveries, then closes.
	Drain() error
	Close() error
	IsConnected() bool
}
