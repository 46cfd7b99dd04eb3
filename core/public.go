package core

import (
	"maps"
	"time"
)

// Stats is the combat-flavoured sub-object of the public snapshot.
type Stats struct {
	HP    float64 `json:"hp"`
	MP    float64 `json:"mp"`
	Coins float64 `json:"coins"`
}

// PublicXPEvent is an XPEvent without internal bookkeeping.
type PublicXPEvent struct {
	Amount      int64          `json:"amount"`
	Reason      Reason         `json:"reason"`
	Message     string         `json:"message"`
	Metadata    map[string]any `json:"metadata"`
	At          time.Time      `json:"at"`
	LevelBefore int            `json:"level_before"`
	LevelAfter  int            `json:"level_after"`
	XPAfter     int64          `json:"xp_after"`
	XPIntoLevel int64          `json:"xp_into_level"`
	XPForLevel  int64          `json:"xp_for_level"`
	XPToNext    int64          `json:"xp_to_next"`
	LeveledUp   bool           `json:"leveled_up"`
}

// PublicPlayerRPG is the read-only snapshot handed to clients.
type PublicPlayerRPG struct {
	Level             int           `json:"level"`
	XP                int64         `json:"xp"`
	XPIntoLevel       int64         `json:"xp_into_level"`
	XPForLevel        int64         `json:"xp_for_level"`
	XPToNext          int64         `json:"xp_to_next"`
	XPProgress        float64       `json:"xp_progress"`
	Streak            int           `json:"streak"`
	LastDailyRewardAt DayKey        `json:"last_daily_reward_at"`
	LastXPAwardAt     *time.Time    `json:"last_xp_award_at"`
	Counters          Counters      `json:"counters"`
	Stats             Stats         `json:"stats"`
	Achievements      []Achievement `json:"achievements"`
	Inventory         Inventory     `json:"inventory"`
	RecentEvents      []XPEvent     `json:"recent_events"`
}

// PublicEvent strips xp_before from ev. It returns nil for a nil event.
func PublicEvent(ev *XPEvent) *PublicXPEvent {
	if ev == nil {
		return nil
	}
	meta := maps.Clone(ev.Metadata)
	if meta == nil {
		meta = map[string]any{}
	}
	return &PublicXPEvent{
		Amount:      ev.Amount,
		Reason:      ev.Reason,
		Message:     ev.Message,
		Metadata:    meta,
		At:          ev.At,
		LevelBefore: ev.LevelBefore,
		LevelAfter:  ev.LevelAfter,
		XPAfter:     ev.XPAfter,
		XPIntoLevel: ev.XPIntoLevel,
		XPForLevel:  ev.XPForLevel,
		XPToNext:    ev.XPToNext,
		LeveledUp:   ev.LeveledUp,
	}
}

// PublicState normalizes a copy of rpg and projects it. The input is not
// modified.
func (g Progression) PublicState(rpg PlayerRPG) PublicPlayerRPG {
	cp := rpg.Clone()
	g.EnsureRPG(&cp)
	progress := g.rules.Curve.LevelProgress(cp.Level, cp.XP)

	recent := cp.XPLog
	if n := g.rules.RecentEvents; n >= 0 && len(recent) > n {
		recent = recent[:n]
	}
	return PublicPlayerRPG{
		Level:             cp.Level,
		XP:                cp.XP,
		XPIntoLevel:       progress.IntoLevel,
		XPForLevel:        progress.ForLevel,
		XPToNext:          progress.ToNext,
		XPProgress:        progress.Progress,
		Streak:            cp.Streak,
		LastDailyRewardAt: cp.LastDailyRewardAt,
		LastXPAwardAt:     cp.LastXPAwardAt,
		Counters:          cp.Counters,
		Stats:             Stats{HP: cp.HP, MP: cp.MP, Coins: cp.Coins},
		Achievements:      cp.Achievements,
		Inventory:         cp.Inventory,
		RecentEvents:      append([]XPEvent{}, recent...),
	}
}
