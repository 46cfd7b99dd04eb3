package core

import (
	"encoding/json"
	"maps"
	"time"
)

// Reason classifies why XP changed.
type Reason string

const (
	ReasonTaskComplete    Reason = "task_complete"
	ReasonSubtaskComplete Reason = "subtask_complete"
	ReasonDailyFocus      Reason = "daily_focus"
	ReasonDebugAdjustment Reason = "debug_adjustment"
	ReasonXPGain          Reason = "xp_gain"
	ReasonLegacy          Reason = "legacy"
)

// Valid reports whether r is a known reason.
func (r Reason) Valid() bool {
	switch r {
	case ReasonTaskComplete, ReasonSubtaskComplete, ReasonDailyFocus,
		ReasonDebugAdjustment, ReasonXPGain, ReasonLegacy:
		return true
	}
	return false
}

// UnmarshalJSON maps unknown reasons found in stored logs to ReasonLegacy.
func (r *Reason) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*r = Reason(s)
	if !r.Valid() {
		*r = ReasonLegacy
	}
	return nil
}

const dayLayout = "2006-01-02"

// DayKey is a UTC calendar day formatted YYYY-MM-DD. The zero value means
// "never" and encodes as JSON null.
type DayKey string

// DayOf returns the UTC day key of t.
func DayOf(t time.Time) DayKey { return DayKey(t.UTC().Format(dayLayout)) }

// Valid reports whether k parses as a calendar day.
func (k DayKey) Valid() bool {
	if k == "" {
		return false
	}
	_, err := time.Parse(dayLayout, string(k))
	return err == nil
}

func (k DayKey) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(string(k))
}

// UnmarshalJSON never fails; anything that is not a day string becomes "".
func (k *DayKey) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*k = ""
		return nil
	}
	*k = DayKey(s)
	if !k.Valid() {
		*k = ""
	}
	return nil
}

// Counters tracks lifetime totals.
type Counters struct {
	TasksCompleted      int64 `json:"tasks_completed"`
	SubtasksCompleted   int64 `json:"subtasks_completed"`
	DailyRewardsClaimed int64 `json:"daily_rewards_claimed"`
}

// Achievement is an unlocked milestone.
type Achievement struct {
	ID         string    `json:"id"`
	Title      string    `json:"title,omitempty"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// Item is an inventory entry.
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Inventory holds a player's items.
type Inventory struct {
	Items []Item `json:"items"`
}

// XPEvent is the immutable record of one XP change. Only the ledger
// creates them.
type XPEvent struct {
	Amount      int64          `json:"amount"`
	Reason      Reason         `json:"reason"`
	Message     string         `json:"message"`
	Metadata    map[string]any `json:"metadata"`
	At          time.Time      `json:"at"`
	LevelBefore int            `json:"level_before"`
	LevelAfter  int            `json:"level_after"`
	XPBefore    int64          `json:"xp_before"`
	XPAfter     int64          `json:"xp_after"`
	XPIntoLevel int64          `json:"xp_into_level"`
	XPForLevel  int64          `json:"xp_for_level"`
	XPToNext    int64          `json:"xp_to_next"`
	LeveledUp   bool           `json:"leveled_up"`
}

// Clone copies the event including its metadata map.
func (e XPEvent) Clone() XPEvent {
	e.Metadata = maps.Clone(e.Metadata)
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	return e
}

// PlayerRPG is the per-user progression record. Level is always derived
// from XP; it is stored for readers but never trusted on load.
type PlayerRPG struct {
	Level             int            `json:"level"`
	XP                int64          `json:"xp"`
	HP                float64        `json:"hp"`
	MP                float64        `json:"mp"`
	Coins             float64        `json:"coins"`
	Streak            int            `json:"streak"`
	Achievements      []Achievement  `json:"achievements"`
	Inventory         Inventory      `json:"inventory"`
	XPLog             []XPEvent      `json:"xp_log"`
	LastDailyRewardAt DayKey         `json:"last_daily_reward_at"`
	LastXPAwardAt     *time.Time     `json:"last_xp_award_at"`
	Counters          Counters       `json:"counters"`
	Flags             map[string]any `json:"flags"`
	Metrics           map[string]any `json:"metrics"`
}

// Clone returns a deep copy.
func (p PlayerRPG) Clone() PlayerRPG {
	cp := p
	if p.Achievements != nil {
		cp.Achievements = append([]Achievement(nil), p.Achievements...)
	}
	if p.Inventory.Items != nil {
		cp.Inventory.Items = append([]Item(nil), p.Inventory.Items...)
	}
	if p.XPLog != nil {
		cp.XPLog = make([]XPEvent, len(p.XPLog))
		for i, ev := range p.XPLog {
			cp.XPLog[i] = ev.Clone()
		}
	}
	if p.LastXPAwardAt != nil {
		t := *p.LastXPAwardAt
		cp.LastXPAwardAt = &t
	}
	cp.Flags = maps.Clone(p.Flags)
	cp.Metrics = maps.Clone(p.Metrics)
	return cp
}

// HasAchievement reports whether id is already unlocked.
func (p PlayerRPG) HasAchievement(id string) bool {
	for _, a := range p.Achievements {
		if a.ID == id {
			return true
		}
	}
	return false
}

// Unlock appends a once; it reports whether the achievement was new.
func (p *PlayerRPG) Unlock(a Achievement) bool {
	if a.ID == "" || p.HasAchievement(a.ID) {
		return false
	}
	p.Achievements = append(p.Achievements, a)
	return true
}
