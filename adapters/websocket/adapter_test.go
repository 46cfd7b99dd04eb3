package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"questboard/core"
	"questboard/realtime"
)

func queryAuth(r *http.Request) (core.UserID, error) {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return core.UserID(tok), nil
	}
	return "", errors.New("missing token")
}

func TestHandlerStreamsOwnEvents(t *testing.T) {
	hub := realtime.NewHub()
	server := httptest.NewServer(Handler(hub, queryAuth, Options{}))
	defer server.Close()

	wsURL := "ws" + server.URL[len("http"):] + "?token=alice"
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	defer conn.Close()

	// ensure subscriber goroutine is ready
	deadline := time.Now().Add(time.Second)
	for hub.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	hub.Broadcast(context.Background(), core.NewLevelUp("bob", 4, time.Now()))
	hub.Broadcast(context.Background(), core.NewLevelUp("alice", 2, time.Now()))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var received core.Event
	if err := json.Unmarshal(msg, &received); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if received.UserID != "alice" || received.Level != 2 {
		t.Fatalf("unexpected event: %+v", received)
	}
}

func TestHandlerRejectsAnonymous(t *testing.T) {
	hub := realtime.NewHub()
	server := httptest.NewServer(Handler(hub, queryAuth, Options{}))
	defer server.Close()

	_, resp, err := gorillaws.DefaultDialer.Dial("ws"+server.URL[len("http"):], nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}
