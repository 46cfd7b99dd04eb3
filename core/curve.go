package core

// Curve is an arithmetic-progression level curve: going from level L to L+1
// costs Base + (L-1)*Step XP. Levels are capped at Cap.
type Curve struct {
	Base int64
	Step int64
	Cap  int
}

// LevelProgress describes how far a player is through their current level.
type LevelProgress struct {
	Level     int     `json:"level"`
	IntoLevel int64   `json:"xp_into_level"`
	ForLevel  int64   `json:"xp_for_level"`
	ToNext    int64   `json:"xp_to_next"`
	Progress  float64 `json:"progress"`
}

func (c Curve) cap() int {
	if c.Cap < 1 {
		return 1
	}
	return c.Cap
}

// XPRequiredForLevel returns the cumulative XP threshold of level.
// Level 1 (and anything below) requires 0 XP.
func (c Curve) XPRequiredForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	n := int64(level - 1)
	return n*c.Base + c.Step*n*(n-1)/2
}

// LevelFromXP returns the highest level whose threshold is <= xp.
// Non-positive XP is level 1.
//
// TODO: invert the quadratic instead of scanning if Cap ever grows well past 99.
func (c Curve) LevelFromXP(xp int64) int {
	level := 1
	if xp <= 0 {
		return level
	}
	limit := c.cap()
	for level < limit && c.XPRequiredForLevel(level+1) <= xp {
		level++
	}
	return level
}

// LevelProgress reports progress through level given total xp.
func (c Curve) LevelProgress(level int, xp int64) LevelProgress {
	if level < 1 {
		level = 1
	}
	if xp < 0 {
		xp = 0
	}
	cur := c.XPRequiredForLevel(level)
	next := c.XPRequiredForLevel(level + 1)
	lp := LevelProgress{
		Level:     level,
		IntoLevel: max(0, xp-cur),
		ForLevel:  max(1, next-cur),
		ToNext:    max(0, next-xp),
	}
	lp.Progress = float64(lp.IntoLevel) / float64(lp.ForLevel)
	if lp.Progress < 0 {
		lp.Progress = 0
	}
	if lp.Progress > 1 {
		lp.Progress = 1
	}
	return lp
}
