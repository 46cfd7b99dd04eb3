package core

import (
	"testing"
	"time"
)

func TestClaimDailyOncePerDay(t *testing.T) {
	now := time.Date(2026, 5, 10, 0, 5, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	g := NewProgression(WithClock(clock))
	p := g.CreateInitial()

	ev, err := g.ClaimDaily(&p)
	if err != nil || ev.Amount != 30 || ev.Reason != ReasonDailyFocus {
		t.Fatalf("first claim: %+v %v", ev, err)
	}
	if p.LastDailyRewardAt != "2026-05-10" || p.Counters.DailyRewardsClaimed != 1 || p.Streak != 1 {
		t.Fatalf("unexpected state: %+v", p)
	}

	now = now.Add(23 * time.Hour)
	if _, err := g.ClaimDaily(&p); err != ErrDuplicateClaim {
		t.Fatalf("expected duplicate claim, got %v", err)
	}
	if p.XP != 30 || p.Counters.DailyRewardsClaimed != 1 {
		t.Fatal("failed claim must not mutate")
	}

	// next calendar day, even though under an hour later
	now = now.Add(time.Hour)
	if _, err := g.ClaimDaily(&p); err != nil {
		t.Fatalf("next day claim: %v", err)
	}
	if p.Streak != 2 || p.XP != 60 {
		t.Fatalf("expected streak 2, got %d xp %d", p.Streak, p.XP)
	}

	now = now.Add(72 * time.Hour)
	if _, err := g.ClaimDaily(&p); err != nil {
		t.Fatal(err)
	}
	if p.Streak != 1 {
		t.Fatalf("gap should reset streak, got %d", p.Streak)
	}
}

func TestDayOf(t *testing.T) {
	loc := time.FixedZone("east", 10*3600)
	if got := DayOf(time.Date(2026, 1, 2, 3, 0, 0, 0, loc)); got != "2026-01-01" {
		t.Fatalf("day key must be UTC, got %s", got)
	}
	if DayKey("2026-13-40").Valid() || !DayKey("2026-02-28").Valid() {
		t.Fatal("unexpected validity")
	}
}
