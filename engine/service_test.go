package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	mem "questboard/adapters/memory"
	"questboard/core"
	"questboard/leaderboard"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T) (*Service, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc := NewService(mem.New(), NewEventBus(DispatchSync), DefaultRuleEngine(),
		WithProgression(core.NewProgression(core.WithClock(clock.Now))),
		WithLeaderboard(leaderboard.NewSkipList()),
	)
	return svc, clock
}

func register(t *testing.T, svc *Service, name string) core.User {
	t.Helper()
	u, err := svc.Register(context.Background(), name, "hash", "")
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return u
}

func statusPtr(s core.Status) *core.Status { return &s }

func TestRegisterAndProfile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	u := register(t, svc, "  Ada ")
	if u.Username != "ada" || u.DisplayName != "ada" {
		t.Fatalf("unexpected user %+v", u)
	}
	if _, err := svc.Register(ctx, "ada", "hash", ""); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("want conflict, got %v", err)
	}
	if _, err := svc.Register(ctx, "a", "hash", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want invalid input, got %v", err)
	}
	p, err := svc.Profile(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.RPG.Level != 1 || p.RPG.XP != 0 || p.RPG.Stats.HP != 100 {
		t.Fatalf("unexpected snapshot %+v", p.RPG)
	}
	name := "Ada L."
	p, err = svc.UpdateProfile(ctx, u.ID, ProfilePatch{DisplayName: &name})
	if err != nil || p.User.DisplayName != "Ada L." {
		t.Fatalf("update profile: %+v %v", p.User, err)
	}
}

func TestCompleteTaskOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	u := register(t, svc, "ada")
	created, err := svc.CreateTask(ctx, u.ID, TaskInput{Title: "write report"})
	if err != nil {
		t.Fatal(err)
	}
	if created.XPEvents != nil || created.Player != nil {
		t.Fatal("creating a todo task must not pay")
	}
	id := created.Task.ID

	res, err := svc.UpdateTask(ctx, u.ID, id, TaskPatch{Status: statusPtr(core.StatusDone)})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.XPEvents) != 1 || res.XPEvents[0].Amount != 50 || res.Player.XP != 50 {
		t.Fatalf("expected a 50 XP payout, got %+v", res.XPEvents)
	}
	if res.Task.RPG.XPAwarded != core.Awarded || len(res.Task.RPG.History) != 1 {
		t.Fatalf("task reward state not recorded: %+v", res.Task.RPG)
	}

	for _, st := range []core.Status{core.StatusTodo, core.StatusDone, core.StatusInProgress, core.StatusDone} {
		res, err = svc.UpdateTask(ctx, u.ID, id, TaskPatch{Status: statusPtr(st)})
		if err != nil {
			t.Fatal(err)
		}
		if res.XPEvents != nil {
			t.Fatalf("re-completion paid again on %s", st)
		}
	}
	p, _ := svc.Profile(ctx, u.ID)
	if p.RPG.XP != 50 || p.RPG.Counters.TasksCompleted != 1 {
		t.Fatalf("expected xp 50 and one completion, got %d/%d", p.RPG.XP, p.RPG.Counters.TasksCompleted)
	}
}

func TestCreateDoneTaskPaysAndUnlocks(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	u := register(t, svc, "ada")
	var unlocked []string
	svc.Subscribe(core.EventAchievementUnlocked, func(_ context.Context, e core.Event) {
		unlocked = append(unlocked, e.Achievement.ID)
	})
	res, err := svc.CreateTask(ctx, u.ID, TaskInput{Title: "ship", Status: core.StatusDone, Priority: core.PriorityHigh, TaskLevel: 3})
	if err != nil {
		t.Fatal(err)
	}
	// (50 + 2*12) * 1.15 = 85.1
	if len(res.XPEvents) != 1 || res.XPEvents[0].Amount != 85 {
		t.Fatalf("unexpected payout %+v", res.XPEvents)
	}
	if len(unlocked) != 1 || unlocked[0] != "first_quest" {
		t.Fatalf("expected first_quest unlock, got %v", unlocked)
	}
	p, _ := svc.Profile(ctx, u.ID)
	if len(p.RPG.Achievements) != 1 {
		t.Fatalf("achievement not persisted: %+v", p.RPG.Achievements)
	}
}

func TestLevelUpPublished(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	u := register(t, svc, "ada")
	levels := 0
	svc.Subscribe(core.EventLevelUp, func(_ context.Context, e core.Event) { levels = e.Level })
	if _, err := svc.AdjustXP(ctx, u.ID, 250, "seed"); err != nil {
		t.Fatal(err)
	}
	if levels != 3 {
		t.Fatalf("expected level_up to 3, got %d", levels)
	}
}

func TestSubtaskRewards(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	u := register(t, svc, "ada")
	task, _ := svc.CreateTask(ctx, u.ID, TaskInput{Title: "epic", Priority: core.PriorityLow})
	w := 0.1
	res, err := svc.AddSubtask(ctx, u.ID, task.Task.ID, SubtaskInput{Title: "tiny", Weight: &w})
	if err != nil {
		t.Fatal(err)
	}
	sid := res.Task.Subtasks[0].ID
	res, err = svc.UpdateSubtask(ctx, u.ID, task.Task.ID, sid, SubtaskPatch{Status: statusPtr(core.StatusDone)})
	if err != nil {
		t.Fatal(err)
	}
	// 18 * 0.9 * 0.35 = 5.67 -> 6
	if len(res.XPEvents) != 1 || res.XPEvents[0].Amount != 6 {
		t.Fatalf("unexpected subtask payout %+v", res.XPEvents)
	}
	if res.Task.RPG.History[0].SubtaskID != sid {
		t.Fatal("history entry should reference the subtask")
	}
	_, _ = svc.UpdateSubtask(ctx, u.ID, task.Task.ID, sid, SubtaskPatch{Status: statusPtr(core.StatusTodo)})
	res, _ = svc.UpdateSubtask(ctx, u.ID, task.Task.ID, sid, SubtaskPatch{Status: statusPtr(core.StatusDone)})
	if res.XPEvents != nil {
		t.Fatal("subtask paid twice")
	}
	if _, err := svc.UpdateSubtask(ctx, u.ID, task.Task.ID, "missing", SubtaskPatch{}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	after, err := svc.DeleteSubtask(ctx, u.ID, task.Task.ID, sid)
	if err != nil || len(after.Subtasks) != 0 {
		t.Fatalf("delete subtask: %v", err)
	}
}

func TestTaskOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := register(t, svc, "ada")
	b := register(t, svc, "bob")
	task, _ := svc.CreateTask(ctx, a.ID, TaskInput{Title: "mine"})
	if _, err := svc.UpdateTask(ctx, b.ID, task.Task.ID, TaskPatch{Status: statusPtr(core.StatusDone)}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("want forbidden, got %v", err)
	}
	if err := svc.DeleteTask(ctx, b.ID, task.Task.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("want forbidden, got %v", err)
	}
	list, _ := svc.ListTasks(ctx, b.ID)
	if len(list) != 0 {
		t.Fatal("bob should see no tasks")
	}
	if err := svc.DeleteTask(ctx, a.ID, task.Task.ID); err != nil {
		t.Fatal(err)
	}
	p, _ := svc.Profile(ctx, a.ID)
	if p.RPG.XP != 0 {
		t.Fatal("deleting an unpaid task changed xp")
	}
}

func TestTaskValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	u := register(t, svc, "ada")
	cases := []TaskInput{
		{Title: "   "},
		{Title: "x", Status: "archived"},
		{Title: "x", Priority: "urgent"},
		{Title: "x", TaskLevel: 11},
	}
	for _, in := range cases {
		if _, err := svc.CreateTask(ctx, u.ID, in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%+v: want invalid input, got %v", in, err)
		}
	}
	bad := -1.0
	task, _ := svc.CreateTask(ctx, u.ID, TaskInput{Title: "ok"})
	if _, err := svc.AddSubtask(ctx, u.ID, task.Task.ID, SubtaskInput{Title: "s", Weight: &bad}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want invalid weight, got %v", err)
	}
}

func TestClaimDailyStreak(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	u := register(t, svc, "ada")
	res, err := svc.ClaimDaily(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Event.Amount != 30 || res.Player.Streak != 1 || res.Player.LastDailyRewardAt != "2024-03-10" {
		t.Fatalf("unexpected first claim %+v", res.Player)
	}
	if _, err := svc.ClaimDaily(ctx, u.ID); !errors.Is(err, core.ErrDuplicateClaim) {
		t.Fatalf("want duplicate claim, got %v", err)
	}
	clock.Advance(24 * time.Hour)
	res, err = svc.ClaimDaily(ctx, u.ID)
	if err != nil || res.Player.Streak != 2 || res.Player.XP != 60 {
		t.Fatalf("second day: %+v %v", res.Player, err)
	}
	clock.Advance(72 * time.Hour)
	res, _ = svc.ClaimDaily(ctx, u.ID)
	if res.Player.Streak != 1 {
		t.Fatalf("gap should reset streak, got %d", res.Player.Streak)
	}
}

func TestAdjustXP(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	u := register(t, svc, "ada")
	if _, err := svc.AdjustXP(ctx, u.ID, 0, ""); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("want invalid amount, got %v", err)
	}
	_, _ = svc.AdjustXP(ctx, u.ID, 40, "")
	res, err := svc.AdjustXP(ctx, u.ID, -500, "oops")
	if err != nil {
		t.Fatal(err)
	}
	if res.Player.XP != 0 || res.Event.Amount != -500 || res.Event.XPAfter != 0 {
		t.Fatalf("expected clamp to zero, got xp=%d amount=%d", res.Player.XP, res.Event.Amount)
	}
}

func TestConcurrentCompletionPaysOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	u := register(t, svc, "ada")
	task, _ := svc.CreateTask(ctx, u.ID, TaskInput{Title: "race"})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.UpdateTask(ctx, u.ID, task.Task.ID, TaskPatch{Status: statusPtr(core.StatusDone)})
		}()
	}
	wg.Wait()
	p, _ := svc.Profile(ctx, u.ID)
	if p.RPG.XP != 50 {
		t.Fatalf("expected exactly one payout, xp=%d", p.RPG.XP)
	}
}

func TestLeaderboardAndCampaigns(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a := register(t, svc, "ada")
	b := register(t, svc, "bob")
	_, _ = svc.AdjustXP(ctx, a.ID, 120, "")
	_, _ = svc.AdjustXP(ctx, b.ID, 300, "")
	top, err := svc.Leaderboard(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].Username != "bob" || top[0].Level != 3 || top[1].Rank != 2 {
		t.Fatalf("unexpected leaderboard %+v", top)
	}

	_, _ = svc.CreateTask(ctx, a.ID, TaskInput{Title: "one", CampaignID: "launch", Status: core.StatusDone})
	_, _ = svc.CreateTask(ctx, a.ID, TaskInput{Title: "two", CampaignID: "launch"})
	_, _ = svc.CreateTask(ctx, a.ID, TaskInput{Title: "loose"})
	camps, err := svc.Campaigns(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(camps) != 2 || camps[0].ID != "launch" || camps[0].TasksDone != 1 || camps[0].XPEarned != 50 || camps[0].Progress != 0.5 {
		t.Fatalf("unexpected campaigns %+v", camps)
	}
	if camps[1].ID != Unassigned {
		t.Fatalf("expected unassigned bucket, got %s", camps[1].ID)
	}
}

func TestHealth(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.Health(context.Background()); err != nil {
		t.Fatal(err)
	}
}
