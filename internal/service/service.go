// Package service implements business logic on top of ports.
package service

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// newID returns a fresh entity ID.
func newID() string {
	return uuid.NewString()
}

// now returns the current time truncated to microseconds, the precision
// postgres stores timestamps with.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// dedupe drops empty and repeated IDs while keeping their order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
