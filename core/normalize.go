package core

import (
	"bytes"
	"encoding/json"
	"math"
)

var std = NewProgression()

// EnsureRPG repairs p in place using the default rules. See
// Progression.EnsureRPG.
func EnsureRPG(p *PlayerRPG) *PlayerRPG { return std.EnsureRPG(p) }

// CreateInitial builds a fresh record using the default rules. See
// Progression.CreateInitial.
func CreateInitial(overrides ...func(*PlayerRPG)) PlayerRPG { return std.CreateInitial(overrides...) }

// EnsureRPG repairs every field of p that is out of range, fills empty
// collections and recomputes Level from XP. It is idempotent and returns p,
// or nil when p is nil.
func (g Progression) EnsureRPG(p *PlayerRPG) *PlayerRPG {
	if p == nil {
		return nil
	}
	r := g.rules
	if p.XP < 0 {
		p.XP = 0
	}
	p.HP = statOr(p.HP, r.DefaultHP)
	p.MP = statOr(p.MP, r.DefaultMP)
	p.Coins = statOr(p.Coins, r.DefaultCoins)
	if p.Streak < 0 {
		p.Streak = 0
	}

	achievements := make([]Achievement, 0, len(p.Achievements))
	seen := make(map[string]struct{}, len(p.Achievements))
	for _, a := range p.Achievements {
		if a.ID == "" {
			continue
		}
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		achievements = append(achievements, a)
	}
	p.Achievements = achievements

	if p.Inventory.Items == nil {
		p.Inventory.Items = []Item{}
	}
	for i := range p.Inventory.Items {
		if p.Inventory.Items[i].Quantity < 0 {
			p.Inventory.Items[i].Quantity = 0
		}
	}

	if p.XPLog == nil {
		p.XPLog = []XPEvent{}
	}
	if limit := r.XPLogLimit; limit >= 0 && len(p.XPLog) > limit {
		p.XPLog = p.XPLog[:limit]
	}
	for i := range p.XPLog {
		if !p.XPLog[i].Reason.Valid() {
			p.XPLog[i].Reason = ReasonLegacy
		}
		if p.XPLog[i].Metadata == nil {
			p.XPLog[i].Metadata = map[string]any{}
		}
	}

	if !p.LastDailyRewardAt.Valid() {
		p.LastDailyRewardAt = ""
	}
	if p.LastXPAwardAt != nil && p.LastXPAwardAt.IsZero() {
		p.LastXPAwardAt = nil
	}

	p.Counters.TasksCompleted = max(0, p.Counters.TasksCompleted)
	p.Counters.SubtasksCompleted = max(0, p.Counters.SubtasksCompleted)
	p.Counters.DailyRewardsClaimed = max(0, p.Counters.DailyRewardsClaimed)

	if p.Flags == nil {
		p.Flags = map[string]any{}
	}
	if p.Metrics == nil {
		p.Metrics = map[string]any{}
	}

	// stored level is never authoritative
	p.Level = r.Curve.LevelFromXP(p.XP)
	return p
}

// CreateInitial builds the zero-state record, applies overrides and
// normalizes the result, so overrides cannot break invariants.
func (g Progression) CreateInitial(overrides ...func(*PlayerRPG)) PlayerRPG {
	p := PlayerRPG{
		Level: 1,
		HP:    g.rules.DefaultHP,
		MP:    g.rules.DefaultMP,
		Coins: g.rules.DefaultCoins,
	}
	for _, o := range overrides {
		if o != nil {
			o(&p)
		}
	}
	g.EnsureRPG(&p)
	return p
}

func statOr(v, def float64) float64 {
	if !finite(v) || v < 0 {
		return def
	}
	return v
}

// UnmarshalJSON decodes a stored record field by field. A field with the
// wrong type or range falls back to its default instead of failing the
// whole document; a document that is not an object yields a fresh record.
func (p *PlayerRPG) UnmarshalJSON(b []byte) error {
	*p = decodeRPG(b, std)
	return nil
}

func decodeRPG(b []byte, g Progression) PlayerRPG {
	var raw map[string]json.RawMessage
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '{' || json.Unmarshal(trimmed, &raw) != nil {
		return g.CreateInitial()
	}
	r := g.rules
	p := PlayerRPG{}

	if xp, ok := decodeNumber(raw, "xp"); ok && xp >= 0 {
		p.XP = int64(math.Min(math.Floor(xp), math.MaxInt64/2))
	}
	p.HP = r.DefaultHP
	if v, ok := decodeNumber(raw, "hp"); ok {
		p.HP = v
	}
	p.MP = r.DefaultMP
	if v, ok := decodeNumber(raw, "mp"); ok {
		p.MP = v
	}
	p.Coins = r.DefaultCoins
	if v, ok := decodeNumber(raw, "coins"); ok {
		p.Coins = v
	}
	if v, ok := decodeNumber(raw, "streak"); ok && v >= 0 && v < math.MaxInt32 {
		p.Streak = int(v)
	}

	for _, item := range decodeList(raw, "achievements") {
		var a Achievement
		if json.Unmarshal(item, &a) == nil {
			p.Achievements = append(p.Achievements, a)
			continue
		}
		// bare ids are accepted for hand-edited files
		var id string
		if json.Unmarshal(item, &id) == nil {
			p.Achievements = append(p.Achievements, Achievement{ID: id})
		}
	}

	if invRaw, ok := raw["inventory"]; ok {
		var inv map[string]json.RawMessage
		if json.Unmarshal(invRaw, &inv) == nil {
			for _, item := range decodeList(inv, "items") {
				var it Item
				if json.Unmarshal(item, &it) == nil {
					p.Inventory.Items = append(p.Inventory.Items, it)
				}
			}
		}
	}

	for _, item := range decodeList(raw, "xp_log") {
		var ev XPEvent
		if json.Unmarshal(item, &ev) == nil {
			p.XPLog = append(p.XPLog, ev)
		}
	}

	if v, ok := raw["last_daily_reward_at"]; ok {
		_ = p.LastDailyRewardAt.UnmarshalJSON(v)
	}
	if v, ok := raw["last_xp_award_at"]; ok {
		_ = json.Unmarshal(v, &p.LastXPAwardAt)
	}

	if cRaw, ok := raw["counters"]; ok {
		var counters map[string]json.RawMessage
		if json.Unmarshal(cRaw, &counters) == nil {
			p.Counters.TasksCompleted = decodeCount(counters, "tasks_completed")
			p.Counters.SubtasksCompleted = decodeCount(counters, "subtasks_completed")
			p.Counters.DailyRewardsClaimed = decodeCount(counters, "daily_rewards_claimed")
		}
	}

	if v, ok := raw["flags"]; ok {
		_ = json.Unmarshal(v, &p.Flags)
	}
	if v, ok := raw["metrics"]; ok {
		_ = json.Unmarshal(v, &p.Metrics)
	}

	g.EnsureRPG(&p)
	return p
}

func decodeNumber(raw map[string]json.RawMessage, key string) (float64, bool) {
	v, ok := raw[key]
	if !ok {
		return 0, false
	}
	var f *float64
	if err := json.Unmarshal(v, &f); err != nil || f == nil || !finite(*f) {
		return 0, false
	}
	return *f, true
}

func decodeCount(raw map[string]json.RawMessage, key string) int64 {
	f, ok := decodeNumber(raw, key)
	if !ok || f < 0 {
		return 0
	}
	return int64(math.Min(math.Floor(f), math.MaxInt64/2))
}

func decodeList(raw map[string]json.RawMessage, key string) []json.RawMessage {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return nil
	}
	return items
}
