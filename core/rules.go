package core

import "context"

// Rule determines whether given state and trigger event should emit derived events.
type Rule interface {
	Evaluate(ctx context.Context, state PlayerRPG, trigger Event) []Event
}

// LevelUpRule emits a level up when an XP award crossed a threshold.
type LevelUpRule struct{}

func (LevelUpRule) Evaluate(_ context.Context, _ PlayerRPG, trigger Event) []Event {
	if trigger.Type != EventXPAwarded || trigger.XP == nil || !trigger.XP.LeveledUp {
		return nil
	}
	return []Event{NewLevelUp(trigger.UserID, trigger.XP.LevelAfter, trigger.Time)}
}

// MilestoneRule unlocks an achievement the first time Reached holds after an award.
type MilestoneRule struct {
	ID      string
	Title   string
	Reached func(PlayerRPG) bool
}

func (m MilestoneRule) Evaluate(_ context.Context, state PlayerRPG, trigger Event) []Event {
	if trigger.Type != EventXPAwarded || m.Reached == nil || state.HasAchievement(m.ID) || !m.Reached(state) {
		return nil
	}
	return []Event{NewAchievementUnlocked(trigger.UserID, Achievement{ID: m.ID, Title: m.Title, UnlockedAt: trigger.Time})}
}

// DefaultEventRules returns the level-up rule plus the standard milestones.
func DefaultEventRules() []Rule {
	return []Rule{
		LevelUpRule{},
		MilestoneRule{ID: "first_quest", Title: "First quest", Reached: func(p PlayerRPG) bool { return p.Counters.TasksCompleted >= 1 }},
		MilestoneRule{ID: "quest_veteran", Title: "Ten quests", Reached: func(p PlayerRPG) bool { return p.Counters.TasksCompleted >= 10 }},
		MilestoneRule{ID: "side_quester", Title: "Twenty-five side quests", Reached: func(p PlayerRPG) bool { return p.Counters.SubtasksCompleted >= 25 }},
		MilestoneRule{ID: "focused_week", Title: "Seven daily claims", Reached: func(p PlayerRPG) bool { return p.Counters.DailyRewardsClaimed >= 7 }},
		MilestoneRule{ID: "level_5", Title: "Reached level 5", Reached: func(p PlayerRPG) bool { return p.Level >= 5 }},
		MilestoneRule{ID: "level_10", Title: "Reached level 10", Reached: func(p PlayerRPG) bool { return p.Level >= 10 }},
	}
}
