package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func queryResolver(r *http.Request) (string, bool) {
	id := r.URL.Query().Get("user")
	return id, id != ""
}

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(queryResolver, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user=" + userID
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.CloseNow() })
	return c
}

func waitForConns(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for hub.ConnectionCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("connections = %d, want %d", hub.ConnectionCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMessage(t *testing.T, c *websocket.Conn, timeout time.Duration) (Message, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_, data, err := c.Read(ctx)
	if err != nil {
		return Message{}, false
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg, true
}

func TestNewHub(t *testing.T) {
	hub := NewHub(queryResolver, nil)
	if hub.ConnectionCount() != 0 || hub.UserCount() != 0 {
		t.Fatalf("expected empty hub, got %d conns", hub.ConnectionCount())
	}
}

func TestHubBroadcastNoConnections(t *testing.T) {
	hub := NewHub(queryResolver, nil)
	hub.Broadcast(context.Background(), Message{Type: "test", Payload: []byte(`{"key":"value"}`)})
	hub.SendToUsers(context.Background(), []string{"u1"}, EventNotificationCreated, map[string]string{"id": "n1"})
}

func TestHubBroadcastEventMarshalError(t *testing.T) {
	hub := NewHub(queryResolver, nil)
	hub.BroadcastEvent(context.Background(), "bad", make(chan int))
}

func TestHubRemoveNonexistent(t *testing.T) {
	hub := NewHub(queryResolver, nil)
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.remove(&conn{cancel: cancel, userID: "ghost"})
}

func TestHandleWS_RejectsAnonymous(t *testing.T) {
	hub := NewHub(queryResolver, nil)
	rec := httptest.NewRecorder()
	hub.HandleWS(rec, httptest.NewRequest(http.MethodGet, "/ws", http.NoBody))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestSendToUsers_TargetsOnlyRecipients(t *testing.T) {
	hub, srv := newTestServer(t)
	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	waitForConns(t, hub, 2)

	if hub.UserCount() != 2 {
		t.Fatalf("users = %d, want 2", hub.UserCount())
	}

	hub.SendToUsers(context.Background(), []string{"alice", "alice"}, EventNotificationCreated, map[string]string{"notification_id": "n1"})

	msg, ok := readMessage(t, alice, 5*time.Second)
	if !ok {
		t.Fatal("alice did not receive the notification")
	}
	if msg.Type != EventNotificationCreated {
		t.Errorf("type = %q", msg.Type)
	}
	if !strings.Contains(string(msg.Payload), "n1") {
		t.Errorf("payload = %s", msg.Payload)
	}

	if _, ok := readMessage(t, bob, 200*time.Millisecond); ok {
		t.Error("bob should not receive alice's notification")
	}
}

func TestBroadcastEvent_ReachesEveryone(t *testing.T) {
	hub, srv := newTestServer(t)
	a := dial(t, srv, "alice")
	b := dial(t, srv, "bob")
	waitForConns(t, hub, 2)

	hub.BroadcastEvent(context.Background(), EventBurndownUpdated, map[string]int{"remaining": 3})

	for _, c := range []*websocket.Conn{a, b} {
		msg, ok := readMessage(t, c, 5*time.Second)
		if !ok || msg.Type != EventBurndownUpdated {
			t.Fatalf("got %+v, %v", msg, ok)
		}
	}
}

func TestDisconnectRemovesConnection(t *testing.T) {
	hub, srv := newTestServer(t)
	c := dial(t, srv, "alice")
	waitForConns(t, hub, 1)

	_ = c.Close(websocket.StatusNormalClosure, "")
	waitForConns(t, hub, 0)
	if hub.UserCount() != 0 {
		t.Fatalf("users = %d, want 0", hub.UserCount())
	}
}
