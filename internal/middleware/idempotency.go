package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/scrumix/scrumix/internal/port/cache"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	maxIdempotencyBody   = 1 << 20
	maxIdempotencyKeyLen = 255
)

// replayHeaders are the response headers stored with a recorded response.
// Per-request headers such as X-Request-ID are regenerated on replay.
var replayHeaders = []string{"Content-Type", "Location"}

type recordedResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body"`
}

// Idempotency replays the first successful response to a mutating request
// carrying an Idempotency-Key header for ttl. Keys are scoped to the caller,
// method and path. A duplicate arriving while the first is still running is
// answered with 409. Responses outside 2xx are not recorded, so the client
// may retry them.
func Idempotency(c cache.Cache, ttl time.Duration) func(http.Handler) http.Handler {
	var inflight sync.Map

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(headerIdempotencyKey)
			if !mutating(r.Method) || !validIdempotencyKey(key) {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			key = idempotencyCacheKey(r, key)

			var prev recordedResponse
			found, err := cache.GetJSON(ctx, c, key, &prev)
			if err != nil {
				slog.WarnContext(ctx, "idempotency lookup failed", "error", err)
			}
			if found {
				for k, v := range prev.Headers {
					w.Header().Set(k, v)
				}
				w.Header().Set(headerReplayed, "true")
				w.WriteHeader(prev.Status)
				_, _ = w.Write(prev.Body)
				return
			}

			if _, busy := inflight.LoadOrStore(key, struct{}{}); busy {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"error":"a request with this Idempotency-Key is in progress"}`))
				return
			}
			defer inflight.Delete(key)

			tee := &teeWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(tee, r)

			if tee.status < 200 || tee.status >= 300 || tee.overflow {
				return
			}
			rec := recordedResponse{Status: tee.status, Body: tee.body.Bytes(), Headers: map[string]string{}}
			for _, h := range replayHeaders {
				if v := w.Header().Get(h); v != "" {
					rec.Headers[h] = v
				}
			}
			if err := cache.SetJSON(ctx, c, key, rec, ttl); err != nil {
				slog.WarnContext(ctx, "idempotency store failed", "error", err)
			}
		})
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// validIdempotencyKey accepts 1..255 printable ASCII characters.
func validIdempotencyKey(k string) bool {
	if k == "" || len(k) > maxIdempotencyKeyLen {
		return false
	}
	for i := 0; i < len(k); i++ {
		if k[i] < 0x21 || k[i] > 0x7e {
			return false
		}
	}
	return true
}

func idempotencyCacheKey(r *http.Request, key string) string {
	owner := "anon"
	if u := UserFromContext(r.Context()); u != nil {
		owner = u.ID
	}
	return cache.Key("idem", owner, r.Method, r.URL.Path, key)
}

// teeWriter copies the response body, up to maxIdempotencyBody, while it is
// written to the client.
type teeWriter struct {
	http.ResponseWriter
	status   int
	body     bytes.Buffer
	overflow bool
}

func (t *teeWriter) WriteHeader(code int) {
	t.status = code
	t.ResponseWriter.WriteHeader(code)
}

func (t *teeWriter) Write(b []byte) (int, error) {
	if !t.overflow {
		if t.body.Len()+len(b) > maxIdempotencyBody {
			t.overflow = true
			t.body.Reset()
		} else {
			t.body.Write(b)
		}
	}
	return t.ResponseWriter.Write(b)
}
