//go:build integration

package nats

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrumix/scrumix/internal/adapter/natskv"
	"github.com/scrumix/scrumix/internal/logger"
	"github.com/scrumix/scrumix/internal/port/messagequeue"
)

var natsURL string

// TestMain starts a JetStream-enabled NATS container unless NATS_URL is set.
func TestMain(m *testing.M) {
	natsURL = os.Getenv("NATS_URL")
	if natsURL != "" {
		os.Exit(m.Run())
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("docker pool: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "nats",
		Tag:        "2.10-alpine",
		Cmd:        []string{"-js"},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
	})
	if err != nil {
		log.Fatalf("start nats: %v", err)
	}
	_ = resource.Expire(300)

	natsURL = fmt.Sprintf("nats://localhost:%s", resource.GetPort("4222/tcp"))
	if err := pool.Retry(func() error {
		nc, err := nats.Connect(natsURL)
		if err != nil {
			return err
		}
		nc.Close()
		return nil
	}); err != nil {
		log.Fatalf("wait for nats: %v", err)
	}

	code := m.Run()
	_ = pool.Purge(resource)
	os.Exit(code)
}

func connect(t *testing.T) *Queue {
	t.Helper()
	q, err := Connect(context.Background(), natsURL, "SCRUMIX_TEST")
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

// collect consumes raw messages on subject, bypassing validation.
func collect(t *testing.T, q *Queue, subject string) <-chan jetstream.Msg {
	t.Helper()
	cons, err := q.js.CreateOrUpdateConsumer(context.Background(), q.stream, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	require.NoError(t, err)
	out := make(chan jetstream.Msg, 8)
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		_ = msg.Ack()
		out <- msg
	})
	require.NoError(t, err)
	t.Cleanup(cc.Stop)
	return out
}

func TestQueue_DeliversWithRequestID(t *testing.T) {
	q := connect(t)
	assert.True(t, q.IsConnected())

	type delivery struct {
		reqID string
		data  string
	}
	got := make(chan delivery, 1)
	stop, err := q.Subscribe(context.Background(), messagequeue.SubjectVelocityUpdated, func(ctx context.Context, _ string, data []byte) error {
		got <- delivery{reqID: logger.RequestID(ctx), data: string(data)}
		return nil
	})
	require.NoError(t, err)
	defer stop()

	ctx := logger.WithRequestID(context.Background(), "req-77")
	payload := `{"sprint_id":"s1","project_id":"p1","velocity_points":8}`
	require.NoError(t, q.Publish(ctx, messagequeue.SubjectVelocityUpdated, []byte(payload)))

	select {
	case d := <-got:
		assert.Equal(t, "req-77", d.reqID)
		assert.JSONEq(t, payload, d.data)
	case <-time.After(10 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestQueue_InvalidPayloadDeadLettered(t *testing.T) {
	q := connect(t)
	subject := messagequeue.SubjectNotificationCreated
	dlq := collect(t, q, subject+dlqSuffix)

	called := make(chan struct{}, 1)
	stop, err := q.Subscribe(context.Background(), subject, func(context.Context, string, []byte) error {
		called <- struct{}{}
		return nil
	})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, q.Publish(context.Background(), subject, []byte(`{"user_id":"u1"}`)))

	select {
	case msg := <-dlq:
		assert.JSONEq(t, `{"user_id":"u1"}`, string(msg.Data()))
		assert.Contains(t, msg.Headers().Get(headerDLQReason), "notification_id")
	case <-time.After(10 * time.Second):
		t.Fatal("invalid message never reached the dead letter subject")
	}
	assert.Empty(t, called, "handler must not see invalid payloads")
}

func TestQueue_RetriesThenDeadLetters(t *testing.T) {
	q := connect(t)
	subject := "velocity.retry-test"
	dlq := collect(t, q, subject+dlqSuffix)

	attempts := make(chan struct{}, maxRetries+2)
	stop, err := q.Subscribe(context.Background(), subject, func(context.Context, string, []byte) error {
		attempts <- struct{}{}
		return fmt.Errorf("downstream unavailable")
	})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, q.Publish(context.Background(), subject, []byte(`{"n":1}`)))

	select {
	case msg := <-dlq:
		assert.Equal(t, fmt.Sprint(maxRetries), msg.Headers().Get(headerRetryCount))
	case <-time.After(15 * time.Second):
		t.Fatal("retries never exhausted")
	}
	assert.Len(t, attempts, maxRetries+1)
}

func TestQueue_KeyValueBacksCache(t *testing.T) {
	q := connect(t)
	ctx := context.Background()

	kv, err := q.KeyValue(ctx, "scrumix-test-cache", time.Minute)
	require.NoError(t, err)
	again, err := q.KeyValue(ctx, "scrumix-test-cache", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, kv.Bucket(), again.Bucket())

	c := natskv.New(kv)
	require.NoError(t, c.Set(ctx, "velocity:p1", []byte(`{"average":3}`), 0))

	val, found, err := c.Get(ctx, "velocity:p1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"average":3}`, string(val))

	require.NoError(t, c.Delete(ctx, "velocity:p1"))
	_, found, err = c.Get(ctx, "velocity:p1")
	require.NoError(t, err)
	assert.False(t, found)
}
