package core

import "time"

// ClaimDaily pays the daily focus bonus once per UTC calendar day. A second
// claim on the same day fails with ErrDuplicateClaim and leaves p untouched.
// Claiming on consecutive days grows the streak; a gap resets it to 1.
func (g Progression) ClaimDaily(p *PlayerRPG) (*XPEvent, error) {
	if p == nil {
		return nil, errNilPlayer
	}
	now := g.clock()
	today := DayOf(now)
	if p.LastDailyRewardAt == today {
		return nil, ErrDuplicateClaim
	}
	g.EnsureRPG(p)

	streak := 1
	if p.LastDailyRewardAt == DayOf(now.Add(-24*time.Hour)) {
		streak = p.Streak + 1
	}
	reward := g.DailyReward()
	ev := g.ApplyXP(p, float64(reward.Amount), reward.Reason, map[string]any{
		"day":    string(today),
		"streak": streak,
	})
	if ev == nil {
		return nil, ErrInvalidAmount
	}
	p.Counters.DailyRewardsClaimed++
	p.LastDailyRewardAt = today
	p.Streak = streak
	return ev, nil
}
