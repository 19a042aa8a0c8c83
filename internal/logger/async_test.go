package logger

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// recordingHandler collects the messages and attribute keys it is handed.
type recordingHandler struct {
	mu    *sync.Mutex
	msgs  *[]string
	attrs []slog.Attr
	block chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{mu: &sync.Mutex{}, msgs: &[]string{}}
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface
	if h.block != nil {
		<-h.block
	}
	line := rec.Message
	for _, a := range h.attrs {
		line += " " + a.Key + "=" + a.Value.String()
	}
	rec.Attrs(func(a slog.Attr) bool {
		line += " " + a.Key + "=" + a.Value.String()
		return true
	})
	h.mu.Lock()
	*h.msgs = append(*h.msgs, line)
	h.mu.Unlock()
	return nil
}

func (h *recordingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &c
}

func (h *recordingHandler) WithGroup(string) slog.Handler { return h }

func (h *recordingHandler) lines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), *h.msgs...)
}

func TestAsyncHandler_WritesAfterClose(t *testing.T) {
	rec := newRecordingHandler()
	h := NewAsyncHandler(rec, 16, 1)
	log := slog.New(h)

	log.Info("sprint started", "sprint_id", "s1")
	h.Close()

	got := rec.lines()
	if len(got) != 1 || got[0] != "sprint started sprint_id=s1" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestAsyncHandler_DerivedLoggerKeepsAttrs(t *testing.T) {
	rec := newRecordingHandler()
	h := NewAsyncHandler(rec, 16, 2)

	slog.New(h).With("project_id", "p1").Info("item moved")
	h.Close()

	got := rec.lines()
	if len(got) != 1 || got[0] != "item moved project_id=p1" {
		t.Fatalf("derived attrs lost: %q", got)
	}
}

func TestAsyncHandler_ConcurrentWrites(t *testing.T) {
	rec := newRecordingHandler()
	h := NewAsyncHandler(rec, 1024, 4)
	log := slog.New(h)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				log.Info("tick", "worker", i, "n", j)
			}
		}()
	}
	wg.Wait()
	h.Close()

	if n := len(rec.lines()) + int(h.DroppedCount()); n != 400 {
		t.Fatalf("written+dropped = %d, want 400", n)
	}
}

func TestAsyncHandler_FullBufferDrops(t *testing.T) {
	rec := newRecordingHandler()
	rec.block = make(chan struct{})
	h := NewAsyncHandler(rec, 1, 1)
	log := slog.New(h)

	// One record is held by the blocked writer, one fills the buffer.
	log.Info("first")
	deadline := time.Now().Add(time.Second)
	for len(h.q.ch) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	log.Info("second")
	log.Info("third")
	log.Info("fourth")

	if got := h.DroppedCount(); got != 2 {
		t.Fatalf("dropped = %d, want 2", got)
	}
	close(rec.block)
	h.Close()
	if got := len(rec.lines()); got != 2 {
		t.Fatalf("written = %d, want 2", got)
	}
}

func TestAsyncHandler_CloseIsIdempotent(t *testing.T) {
	h := NewAsyncHandler(newRecordingHandler(), 4, 1)
	h.Close()
	h.Close()

	slog.New(h).Info("late")
	if got := h.DroppedCount(); got != 1 {
		t.Fatalf("record after close: dropped = %d, want 1", got)
	}
}
