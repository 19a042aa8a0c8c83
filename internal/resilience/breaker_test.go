package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBroker = errors.New("nats: no responders")

func fail(context.Context) error { return errBroker }
func succeed(context.Context) error { return nil }

// trippedBreaker returns an open breaker with a controllable clock.
func trippedBreaker(t *testing.T, maxFailures int) (*Breaker, *time.Time) {
	t.Helper()
	now := time.Unix(1_700_000_000, 0)
	b := NewBreaker("events", maxFailures, time.Second)
	b.now = func() time.Time { return now }
	for range maxFailures {
		require.ErrorIs(t, b.Execute(context.Background(), fail), errBroker)
	}
	require.Equal(t, "open", b.State())
	return b, &now
}

func TestBreaker_ClosedPassesThrough(t *testing.T) {
	b := NewBreaker("events", 3, time.Second)
	called := false
	require.NoError(t, b.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	}))
	assert.True(t, called)
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_OpensAndRejects(t *testing.T) {
	b, _ := trippedBreaker(t, 3)
	called := false
	err := b.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	tests := []struct {
		name  string
		probe func(context.Context) error
		want  string
	}{
		{"success closes", succeed, "closed"},
		{"failure reopens", fail, "open"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, now := trippedBreaker(t, 2)
			*now = now.Add(2 * time.Second)

			_ = b.Execute(context.Background(), tt.probe)
			assert.Equal(t, tt.want, b.State())
		})
	}
}

func TestBreaker_HalfOpenAdmitsOneProbe(t *testing.T) {
	b, now := trippedBreaker(t, 1)
	*now = now.Add(2 * time.Second)

	inProbe := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- b.Execute(context.Background(), func(context.Context) error {
			close(inProbe)
			<-release
			return nil
		})
	}()
	<-inProbe

	assert.ErrorIs(t, b.Execute(context.Background(), succeed), ErrCircuitOpen, "second caller during probe")
	assert.Equal(t, "half-open", b.State())

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, "closed", b.State())
	assert.NoError(t, b.Execute(context.Background(), succeed))
}

func TestBreaker_SuccessResetsFailureRun(t *testing.T) {
	b := NewBreaker("events", 3, time.Second)
	ctx := context.Background()
	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, succeed)
	_ = b.Execute(ctx, fail)
	_ = b.Execute(ctx, fail)
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_CancellationIgnored(t *testing.T) {
	b := NewBreaker("events", 1, time.Second)

	err := b.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "closed", b.State())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err = b.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
