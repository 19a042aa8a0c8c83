package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event types pushed to clients.
const (
	EventNotificationCreated = "notification.created"
	EventBurndownUpdated     = "burndown.updated"
	// EventServerShutdown tells clients to reconnect to another instance.
	EventServerShutdown = "server.shutdown"
)

// BroadcastEvent marshals a typed event and sends it to all clients.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	msg, ok := envelope(eventType, payload)
	if !ok {
		return
	}
	h.Broadcast(ctx, msg)
}

// SendToUsers marshals a typed event and sends it to the given users only.
func (h *Hub) SendToUsers(ctx context.Context, userIDs []string, eventType string, payload any) {
	msg, ok := envelope(eventType, payload)
	if !ok {
		return
	}
	h.SendTo(ctx, userIDs, msg)
}

func envelope(eventType string, payload any) (Message, bool) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("websocket event marshal failed", "type", eventType, "error", err)
		return Message{}, false
	}
	return Message{Type: eventType, Payload: data}, true
}
