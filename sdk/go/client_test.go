package sdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	mem "questboard/adapters/memory"
	"questboard/api/httpapi"
	"questboard/auth"
	"questboard/core"
	"questboard/engine"
	"questboard/leaderboard"
	"questboard/realtime"
)

type testServer struct {
	*httptest.Server
	hub *realtime.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	svc := engine.NewService(mem.New(), engine.NewEventBus(engine.DispatchSync), engine.DefaultRuleEngine(),
		engine.WithLeaderboard(leaderboard.NewSkipList()))
	a, err := auth.New(auth.Config{Secret: "sdk-test-secret", BcryptCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	hub := realtime.NewHub()
	svc.SubscribeAll(hub.Broadcast)
	mux := httpapi.NewMux(httpapi.Deps{Service: svc, Auth: a, Hub: hub},
		httpapi.Options{PathPrefix: "/api", EnableDebug: true})
	srv := &testServer{Server: httptest.NewServer(mux), hub: hub}
	t.Cleanup(srv.Close)
	return srv
}

func newLoggedIn(t *testing.T, srv *testServer, name string) *Client {
	t.Helper()
	client, err := NewClient(srv.URL + "/api/")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Register(context.Background(), name, "correct-horse", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatal("expected error for empty base url")
	}
}

func TestClient_AuthAndProfile(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	client := newLoggedIn(t, srv, "alice")
	if client.Token() == "" {
		t.Fatal("register should keep the token")
	}

	other, _ := NewClient(srv.URL + "/api")
	if _, err := other.Me(ctx); !IsCode(err, "unauthorized") {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	s, err := other.Login(ctx, "alice", "correct-horse")
	if err != nil || s.User.Username != "alice" {
		t.Fatalf("login: %+v err=%v", s, err)
	}
	if _, err := other.Login(ctx, "alice", "nope-nope-nope"); err == nil {
		t.Fatal("expected bad password to fail")
	}

	p, err := client.UpdateDisplayName(ctx, "Alice L.")
	if err != nil || p.User.DisplayName != "Alice L." {
		t.Fatalf("update: %+v err=%v", p, err)
	}
	p, err = client.Me(ctx)
	if err != nil || p.RPG.Level != 1 || p.User.DisplayName != "Alice L." {
		t.Fatalf("me: %+v err=%v", p, err)
	}
}

func TestClient_TasksAndRewards(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	client := newLoggedIn(t, srv, "alice")

	res, err := client.CreateTask(ctx, TaskInput{Title: "Write docs", CampaignID: "launch"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := res.Task.ID

	sub, err := client.AddSubtask(ctx, id, SubtaskInput{Title: "outline"})
	if err != nil || len(sub.Task.Subtasks) != 1 {
		t.Fatalf("add subtask: %+v err=%v", sub, err)
	}
	done := core.StatusDone
	sres, err := client.UpdateSubtask(ctx, id, sub.Task.Subtasks[0].ID, SubtaskPatch{Status: &done})
	if err != nil || len(sres.XPEvents) != 1 {
		t.Fatalf("complete subtask: %+v err=%v", sres, err)
	}

	res, err = client.CompleteTask(ctx, id)
	if err != nil || len(res.XPEvents) != 1 || res.XPEvents[0].Amount != 50 {
		t.Fatalf("complete: %+v err=%v", res, err)
	}
	res, err = client.CompleteTask(ctx, id)
	if err != nil || len(res.XPEvents) != 0 {
		t.Fatalf("second completion should pay nothing: %+v err=%v", res, err)
	}

	tasks, err := client.ListTasks(ctx)
	if err != nil || len(tasks) != 1 {
		t.Fatalf("list: %v err=%v", tasks, err)
	}
	camps, err := client.Campaigns(ctx)
	if err != nil || len(camps) != 1 || camps[0].ID != "launch" {
		t.Fatalf("campaigns: %+v err=%v", camps, err)
	}

	daily, err := client.ClaimDaily(ctx)
	if err != nil || daily.Event == nil || daily.Event.Amount != 30 {
		t.Fatalf("daily: %+v err=%v", daily, err)
	}
	if _, err := client.ClaimDaily(ctx); !IsCode(err, "already_claimed") {
		t.Fatalf("expected already_claimed, got %v", err)
	}

	if _, err := client.AdjustXP(ctx, 0, ""); !IsCode(err, "invalid_amount") {
		t.Fatalf("expected invalid_amount, got %v", err)
	}

	lb, err := client.Leaderboard(ctx, 5)
	if err != nil || len(lb.Entries) != 1 || lb.Me == nil || lb.Me.Rank != 1 {
		t.Fatalf("leaderboard: %+v err=%v", lb, err)
	}

	if _, err := client.DeleteSubtask(ctx, id, sub.Task.Subtasks[0].ID); err != nil {
		t.Fatalf("delete subtask: %v", err)
	}
	if err := client.DeleteTask(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := client.GetTask(ctx, id); !IsCode(err, "not_found") {
		t.Fatalf("expected not_found, got %v", err)
	}
	if _, err := client.GetTask(ctx, ""); err != ErrEmptyID {
		t.Fatalf("expected ErrEmptyID, got %v", err)
	}

	health, err := client.Health(ctx)
	if err != nil || health.Status != "healthy" {
		t.Fatalf("health: %+v err=%v", health, err)
	}
}

func TestClient_SubscribeEvents(t *testing.T) {
	srv := newTestServer(t)
	client := newLoggedIn(t, srv, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := client.SubscribeEvents(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	for srv.hub.Subscribers() == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("timed out waiting for subscription")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if _, err := client.ClaimDaily(ctx); err != nil {
		t.Fatalf("daily: %v", err)
	}

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				t.Fatal("stream closed early")
			}
			if evt.Type == core.EventXPAwarded {
				if evt.XP == nil || evt.XP.Amount != 30 {
					t.Fatalf("unexpected event: %+v", evt)
				}
				return
			}
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestClient_SubscribeRequiresToken(t *testing.T) {
	client, _ := NewClient("http://localhost:1/api")
	if _, err := client.SubscribeEvents(context.Background()); err != ErrNoToken {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestDeriveWSURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080/api": "ws://localhost:8080/api/ws",
		"https://quest.example/api": "wss://quest.example/api/ws",
	}
	for in, want := range cases {
		if got := deriveWSURL(in); got != want {
			t.Fatalf("deriveWSURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAPIErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	client, _ := NewClient(srv.URL)
	_, err := client.Me(context.Background())
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("expected APIError 502, got %v", err)
	}
}
