package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHub_BroadcastReachesClients(t *testing.T) {
	hub := NewHub()
	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Registration happens in the upgrade handler before HandleWS returns,
	// but give the server goroutine a beat to settle.
	deadline := time.Now().Add(2 * time.Second)
	var got Event
	for time.Now().Before(deadline) {
		hub.Broadcast(EventFilesChanged, []string{"app.py"})

		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		_, data, err := conn.ReadMessage()
		if err != nil {
			continue
		}
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		break
	}

	if got.Type != EventFilesChanged {
		t.Fatalf("expected %q event, got %+v", EventFilesChanged, got)
	}
	payload, _ := got.Payload.([]any)
	if len(payload) != 1 || payload[0] != "app.py" {
		t.Errorf("unexpected payload %v", got.Payload)
	}
}

func TestHub_RemoveOnDisconnect(t *testing.T) {
	hub := NewHub()
	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.clients)
		hub.mu.RUnlock()
		if n == 0 {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Error("expected client removed after disconnect")
}

func TestHub_BroadcastWithNoClients(t *testing.T) {
	NewHub().Broadcast(EventThinking, true)
}
