package core

import "time"

// EventType enumerates bus events.
type EventType string

const (
	EventXPAwarded           EventType = "xp_awarded"
	EventLevelUp             EventType = "level_up"
	EventAchievementUnlocked EventType = "achievement_unlocked"
	EventDailyClaimed        EventType = "daily_claimed"
)

// Event is what the service publishes after a ledger change.
type Event struct {
	Type        EventType      `json:"type"`
	Time        time.Time      `json:"time"`
	UserID      UserID         `json:"user_id"`
	XP          *PublicXPEvent `json:"xp,omitempty"`
	Total       int64          `json:"total,omitempty"`
	Level       int            `json:"level,omitempty"`
	Achievement *Achievement   `json:"achievement,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewXPAwarded(user UserID, ev XPEvent) Event {
	return Event{Type: EventXPAwarded, Time: ev.At, UserID: user, XP: PublicEvent(&ev), Total: ev.XPAfter, Level: ev.LevelAfter}
}

func NewLevelUp(user UserID, level int, at time.Time) Event {
	return Event{Type: EventLevelUp, Time: at.UTC(), UserID: user, Level: level}
}

func NewAchievementUnlocked(user UserID, a Achievement) Event {
	return Event{Type: EventAchievementUnlocked, Time: a.UnlockedAt, UserID: user, Achievement: &a}
}

// NewDailyClaimed records a daily focus claim; Metadata carries day and streak.
func NewDailyClaimed(user UserID, ev XPEvent) Event {
	meta := map[string]any{}
	for _, k := range []string{"day", "streak"} {
		if v, ok := ev.Metadata[k]; ok {
			meta[k] = v
		}
	}
	return Event{Type: EventDailyClaimed, Time: ev.At, UserID: user, Total: ev.XPAfter, Level: ev.LevelAfter, Metadata: meta}
}
