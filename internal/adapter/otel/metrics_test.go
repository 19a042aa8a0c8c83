package otel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrumix/scrumix/internal/config"
)

func TestNewMetrics(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)
	assert.NotNil(t, m.VelocityUpdates)
	assert.NotNil(t, m.MetricsDuration)

	m.Add(context.Background(), m.VelocityUpdates, 3, "sprint")
}

func TestMetricsAdd_NilReceiver(t *testing.T) {
	var m *Metrics
	m.Add(context.Background(), nil, 1, "x")
}

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), config.OTEL{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartSpans(t *testing.T) {
	ctx, span := StartVelocitySpan(context.Background(), "adjust", "p1", "s1")
	span.End()
	_, span = StartHierarchySpan(ctx, "rebuild", "p1")
	span.End()
	_, span = StartEventSpan(ctx, "velocity.updated")
	span.End()
}

func TestSpanName(t *testing.T) {
	r := chi.NewRouter()
	var got string
	r.Get("/api/v1/projects/{id}", func(_ http.ResponseWriter, req *http.Request) {
		got = spanName("", req)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/projects/p1", http.NoBody))
	if got != "GET /api/v1/projects/{id}" {
		t.Errorf("span name = %q", got)
	}

	plain := httptest.NewRequest(http.MethodPost, "/ws", http.NoBody)
	if n := spanName("", plain); n != "POST /ws" {
		t.Errorf("unrouted span name = %q", n)
	}
}
