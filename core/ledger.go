package core

import (
	"fmt"
	"maps"
	"math"
)

// largest delta accepted in one call; keeps float->int conversion exact
const maxDelta = 1 << 53

// ApplyXP adds a signed amount to p and records the change. It returns nil
// without touching p when amount is not finite or floors to zero. XP never
// drops below zero and Level is recomputed from XP.
func (g Progression) ApplyXP(p *PlayerRPG, amount float64, reason Reason, metadata map[string]any) *XPEvent {
	if p == nil || !finite(amount) {
		return nil
	}
	delta := math.Floor(amount)
	if delta == 0 {
		return nil
	}
	delta = math.Max(-maxDelta, math.Min(maxDelta, delta))
	if !reason.Valid() {
		reason = ReasonXPGain
	}

	g.EnsureRPG(p)
	curve := g.rules.Curve
	xpBefore, levelBefore := p.XP, p.Level

	next, err := AddSafe(xpBefore, int64(delta))
	if err != nil {
		next = math.MaxInt64
	}
	p.XP = max(0, next)
	p.Level = curve.LevelFromXP(p.XP)
	now := g.clock()
	p.LastXPAwardAt = &now

	progress := curve.LevelProgress(p.Level, p.XP)
	meta := maps.Clone(metadata)
	if meta == nil {
		meta = map[string]any{}
	}
	ev := XPEvent{
		Amount:      int64(delta),
		Reason:      reason,
		Message:     xpMessage(reason, int64(delta), meta),
		Metadata:    meta,
		At:          now,
		LevelBefore: levelBefore,
		LevelAfter:  p.Level,
		XPBefore:    xpBefore,
		XPAfter:     p.XP,
		XPIntoLevel: progress.IntoLevel,
		XPForLevel:  progress.ForLevel,
		XPToNext:    progress.ToNext,
		LeveledUp:   p.Level > levelBefore,
	}

	// rolling window, newest first; the oldest entries fall off
	p.XPLog = append([]XPEvent{ev.Clone()}, p.XPLog...)
	if limit := g.rules.XPLogLimit; limit >= 0 && len(p.XPLog) > limit {
		p.XPLog = p.XPLog[:limit]
	}
	return &ev
}

// AdjustXP applies an operator adjustment. Unlike ApplyXP it reports a zero
// or non-finite amount as ErrInvalidAmount.
func (g Progression) AdjustXP(p *PlayerRPG, amount float64, metadata map[string]any) (*XPEvent, error) {
	if p == nil {
		return nil, errNilPlayer
	}
	if !finite(amount) || math.Floor(amount) == 0 {
		return nil, ErrInvalidAmount
	}
	ev := g.ApplyXP(p, amount, ReasonDebugAdjustment, metadata)
	if ev == nil {
		return nil, ErrInvalidAmount
	}
	return ev, nil
}

func xpMessage(reason Reason, amount int64, meta map[string]any) string {
	var label string
	switch reason {
	case ReasonTaskComplete:
		label = "Quest complete"
	case ReasonSubtaskComplete:
		label = "Side quest complete"
	case ReasonDailyFocus:
		label = "Daily focus bonus"
	case ReasonDebugAdjustment:
		label = "XP adjusted"
	default:
		label = "XP gained"
	}
	if title, ok := meta["title"].(string); ok && title != "" {
		label += ": " + title
	}
	return fmt.Sprintf("%s %+d XP", label, amount)
}
