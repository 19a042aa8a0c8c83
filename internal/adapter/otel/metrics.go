package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "scrumix"

// Metrics holds the ScrumiX metric instruments.
type Metrics struct {
	VelocityUpdates     metric.Int64Counter
	SnapshotsRecorded   metric.Int64Counter
	NotificationsSent   metric.Int64Counter
	EventsPublished     metric.Int64Counter
	EventsDropped       metric.Int64Counter
	VelocityCacheHits   metric.Int64Counter
	VelocityCacheMisses metric.Int64Counter
	MetricsDuration     metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.VelocityUpdates, "scrumix.velocity.updates", "Sprint velocity point adjustments applied"},
		{&m.SnapshotsRecorded, "scrumix.burndown.snapshots", "Burndown snapshots upserted"},
		{&m.NotificationsSent, "scrumix.notifications.sent", "Notifications created"},
		{&m.EventsPublished, "scrumix.events.published", "Events published to the message bus"},
		{&m.EventsDropped, "scrumix.events.dropped", "Events dropped after publish failure"},
		{&m.VelocityCacheHits, "scrumix.velocity.cache.hits", "Velocity metric cache hits"},
		{&m.VelocityCacheMisses, "scrumix.velocity.cache.misses", "Velocity metric cache misses"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
	}

	m.MetricsDuration, err = meter.Float64Histogram("scrumix.velocity.compute_seconds",
		metric.WithDescription("Time spent computing project velocity metrics"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Add increments counter c by n tagged with the subject. A nil receiver is a no-op.
func (m *Metrics) Add(ctx context.Context, c metric.Int64Counter, n int64, subject string) {
	if m == nil || c == nil {
		return
	}
	c.Add(ctx, n, metric.WithAttributes(attribute.String("subject", subject)))
}
