package nats

import (
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		verr    error
		herr    error
		retries int
		want    disposition
	}{
		{"handled", nil, nil, 0, ack},
		{"handled after retries", nil, nil, maxRetries, ack},
		{"invalid payload", boom, nil, 0, deadLetter},
		{"first failure", nil, boom, 0, retry},
		{"last retry", nil, boom, maxRetries - 1, retry},
		{"retries exhausted", nil, boom, maxRetries, deadLetter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decide(tt.verr, tt.herr, tt.retries))
		})
	}
}

func TestRetryCount(t *testing.T) {
	for value, want := range map[string]int{"": 0, "2": 2, "-1": 0, "abc": 0} {
		h := nats.Header{}
		if value != "" {
			h.Set(headerRetryCount, value)
		}
		assert.Equal(t, want, retryCount(h), "header %q", value)
	}
}

func TestCopyHeader(t *testing.T) {
	h := nats.Header{}
	h.Set(headerRequestID, "r1")
	c := copyHeader(h)
	c.Set(headerRequestID, "r2")
	assert.Equal(t, "r1", h.Get(headerRequestID))
	assert.Equal(t, "r2", c.Get(headerRequestID))
}
