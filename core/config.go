package core

import "time"

// Multipliers scales rewards by priority.
type Multipliers struct {
	Low    float64
	Medium float64
	High   float64
}

// For returns the multiplier for p, 1.0 for unknown priorities.
func (m Multipliers) For(p Priority) float64 {
	switch p {
	case PriorityLow:
		return m.Low
	case PriorityMedium:
		return m.Medium
	case PriorityHigh:
		return m.High
	default:
		return 1.0
	}
}

// Rules holds every constant the progression engine uses. It is a plain
// value: copies are independent and nothing in this package mutates one.
type Rules struct {
	Curve Curve

	TaskBaseXP        float64
	TaskXPPerLevel    float64
	SubtaskBaseXP     float64
	SubtaskXPPerLevel float64
	MaxTaskLevel      int
	MinSubtaskWeight  float64
	Multipliers       Multipliers

	DailyRewardXP int64

	XPLogLimit   int
	HistoryLimit int
	RecentEvents int

	DefaultHP    float64
	DefaultMP    float64
	DefaultCoins float64
}

// DefaultRules returns the standard tuning.
func DefaultRules() Rules {
	return Rules{
		Curve:             Curve{Base: 100, Step: 40, Cap: 99},
		TaskBaseXP:        50,
		TaskXPPerLevel:    12,
		SubtaskBaseXP:     18,
		SubtaskXPPerLevel: 6,
		MaxTaskLevel:      10,
		MinSubtaskWeight:  0.35,
		Multipliers:       Multipliers{Low: 0.9, Medium: 1.0, High: 1.15},
		DailyRewardXP:     30,
		XPLogLimit:        30,
		HistoryLimit:      10,
		RecentEvents:      5,
		DefaultHP:         100,
		DefaultMP:         50,
		DefaultCoins:      0,
	}
}

// Progression bundles the rules with a clock. All engine operations are
// methods on it; it holds no other state and is safe to copy.
type Progression struct {
	rules Rules
	now   func() time.Time
}

// Option configures a Progression.
type Option func(*Progression)

// WithRules replaces the default tuning.
func WithRules(r Rules) Option { return func(p *Progression) { p.rules = r } }

// WithClock overrides time.Now, mostly for tests.
func WithClock(fn func() time.Time) Option {
	return func(p *Progression) {
		if fn != nil {
			p.now = fn
		}
	}
}

// NewProgression builds a Progression with DefaultRules and the wall clock.
func NewProgression(opts ...Option) Progression {
	p := Progression{rules: DefaultRules(), now: time.Now}
	for _, o := range opts {
		o(&p)
	}
	return p
}

// Rules returns a copy of the active tuning.
func (g Progression) Rules() Rules { return g.rules }

// Curve returns the active level curve.
func (g Progression) Curve() Curve { return g.rules.Curve }

func (g Progression) clock() time.Time {
	if g.now == nil {
		return time.Now().UTC()
	}
	return g.now().UTC()
}

// Now reads the configured clock in UTC.
func (g Progression) Now() time.Time { return g.clock() }
