package core

import (
	"context"
	"testing"
)

func TestDefaultEventRules(t *testing.T) {
	g := NewProgression()
	p := g.CreateInitial()
	task := &Task{ID: "t", TaskLevel: 10, Priority: PriorityHigh}
	ev := g.AwardTask(&p, task, StatusTodo, StatusDone)
	trigger := NewXPAwarded("u1", *ev)

	var levelUps, unlocks int
	for _, r := range DefaultEventRules() {
		for _, d := range r.Evaluate(context.Background(), p, trigger) {
			switch d.Type {
			case EventLevelUp:
				levelUps++
				if d.Level != 2 {
					t.Fatalf("unexpected level: %d", d.Level)
				}
			case EventAchievementUnlocked:
				unlocks++
				if d.Achievement.ID != "first_quest" {
					t.Fatalf("unexpected achievement: %+v", d.Achievement)
				}
				p.Unlock(*d.Achievement)
			}
		}
	}
	if levelUps != 1 || unlocks != 1 {
		t.Fatalf("want 1 level up and 1 unlock, got %d and %d", levelUps, unlocks)
	}
	for _, r := range DefaultEventRules() {
		for _, d := range r.Evaluate(context.Background(), p, trigger) {
			if d.Type == EventAchievementUnlocked {
				t.Fatal("achievement must unlock once")
			}
		}
	}
}
