package notify

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", n, h.Clients())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_BroadcastByDestination(t *testing.T) {
	hub := NewHub(nil, nil)
	server := httptest.NewServer(hub)
	defer server.Close()
	defer hub.Close()

	all := dialHub(t, server, "")
	defer all.Close()
	mine := dialHub(t, server, "?destination=D1")
	defer mine.Close()
	other := dialHub(t, server, "?destination=D2")
	defer other.Close()
	waitClients(t, hub, 3)

	if err := hub.Notify(context.Background(), "D1", "take a walk"); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	for name, conn := range map[string]*websocket.Conn{"all": all, "mine": mine} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("%s: read: %v", name, err)
		}
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("%s: decode: %v", name, err)
		}
		if ev.Destination != "D1" || ev.Text != "take a walk" {
			t.Errorf("%s: unexpected event %+v", name, ev)
		}
	}

	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("subscriber of D2 should not receive D1 messages")
	}
}

func TestHub_RemovesDisconnectedClients(t *testing.T) {
	hub := NewHub(nil, nil)
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dialHub(t, server, "")
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)
}
