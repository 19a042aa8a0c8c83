// Package broadcast is the port through which services push events to the
// WebSocket sessions of specific users.
package broadcast

import "context"

// Broadcaster delivers typed events to every open session of the listed
// users. Delivery is best effort; offline users simply miss the event.
type Broadcaster interface {
	SendToUsers(ctx context.Context, userIDs []string, eventType string, payload any)
}
