package analytics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"questboard/core"
)

// Hook receives domain events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// DAU tracks daily active players.
type DAU struct {
	mu   sync.Mutex
	days map[string]map[core.UserID]struct{}
}

func NewDAU() *DAU { return &DAU{days: map[string]map[core.UserID]struct{}{}} }

func (d *DAU) OnEvent(e core.Event) {
	day := string(core.DayOf(e.Time))
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[day]
	if m == nil {
		m = map[core.UserID]struct{}{}
		d.days[day] = m
	}
	m[e.UserID] = struct{}{}
}

func (d *DAU) Count(day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[day])
}

// Metrics aggregates ledger activity in memory. Keys are UTC day keys
// (2006-01-02) and ISO week keys (2006-W01).
type Metrics struct {
	mu sync.RWMutex

	dailyActive  map[string]map[core.UserID]struct{}
	weeklyActive map[string]map[core.UserID]struct{}

	xpByDay       map[string]int64
	xpByReason    map[core.Reason]int64
	xpRemoved     int64
	levelUpsByDay map[string]int64
	levelReached  map[int]int // level -> players who reached it
	achievements  map[string]int64
	dailyClaims   map[string]int64
	events        int64
	since         time.Time
	now           func() time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{
		dailyActive:   map[string]map[core.UserID]struct{}{},
		weeklyActive:  map[string]map[core.UserID]struct{}{},
		xpByDay:       map[string]int64{},
		xpByReason:    map[core.Reason]int64{},
		levelUpsByDay: map[string]int64{},
		levelReached:  map[int]int{},
		achievements:  map[string]int64{},
		dailyClaims:   map[string]int64{},
		since:         time.Now().UTC(),
		now:           time.Now,
	}
}

func (m *Metrics) OnEvent(e core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := string(core.DayOf(e.Time))
	m.events++
	track(m.dailyActive, day, e.UserID)
	track(m.weeklyActive, weekKey(e.Time), e.UserID)

	switch e.Type {
	case core.EventXPAwarded:
		if e.XP == nil {
			return
		}
		if e.XP.Amount > 0 {
			m.xpByDay[day] += e.XP.Amount
			m.xpByReason[e.XP.Reason] += e.XP.Amount
		} else {
			m.xpRemoved -= e.XP.Amount
		}
	case core.EventLevelUp:
		m.levelUpsByDay[day]++
		m.levelReached[e.Level]++
	case core.EventAchievementUnlocked:
		if e.Achievement != nil {
			m.achievements[e.Achievement.ID]++
		}
	case core.EventDailyClaimed:
		m.dailyClaims[day]++
	}
}

func track(m map[string]map[core.UserID]struct{}, key string, user core.UserID) {
	if m[key] == nil {
		m[key] = map[core.UserID]struct{}{}
	}
	m[key][user] = struct{}{}
}

func weekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func (m *Metrics) DailyActive(day string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.dailyActive[day])
}

func (m *Metrics) WeeklyActive(week string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.weeklyActive[week])
}

func (m *Metrics) XPByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.xpByDay[day]
}

func (m *Metrics) XPByReason(r core.Reason) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.xpByReason[r]
}

// AchievementCount is one row of Snapshot.TopAchievements.
type AchievementCount struct {
	ID    string `json:"id"`
	Count int64  `json:"count"`
}

// Snapshot is the /stats payload.
type Snapshot struct {
	Since             time.Time             `json:"since"`
	Day               string                `json:"day"`
	Events            int64                 `json:"events"`
	DailyActive       int                   `json:"daily_active_players"`
	WeeklyActive      int                   `json:"weekly_active_players"`
	XPToday           int64                 `json:"xp_awarded_today"`
	XPByReason        map[core.Reason]int64 `json:"xp_by_reason"`
	XPRemoved         int64                 `json:"xp_removed"`
	LevelUpsToday     int64                 `json:"level_ups_today"`
	LevelDistribution map[int]int           `json:"level_distribution"`
	DailyClaimsToday  int64                 `json:"daily_claims_today"`
	TopAchievements   []AchievementCount    `json:"top_achievements"`
}

// Snapshot summarizes today (by the metrics clock) and all-time totals.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now().UTC()
	day := string(core.DayOf(now))
	s := Snapshot{
		Since:             m.since,
		Day:               day,
		Events:            m.events,
		DailyActive:       len(m.dailyActive[day]),
		WeeklyActive:      len(m.weeklyActive[weekKey(now)]),
		XPToday:           m.xpByDay[day],
		XPByReason:        make(map[core.Reason]int64, len(m.xpByReason)),
		XPRemoved:         m.xpRemoved,
		LevelUpsToday:     m.levelUpsByDay[day],
		LevelDistribution: make(map[int]int, len(m.levelReached)),
		DailyClaimsToday:  m.dailyClaims[day],
		TopAchievements:   make([]AchievementCount, 0, len(m.achievements)),
	}
	for k, v := range m.xpByReason {
		s.XPByReason[k] = v
	}
	for k, v := range m.levelReached {
		s.LevelDistribution[k] = v
	}
	for id, n := range m.achievements {
		s.TopAchievements = append(s.TopAchievements, AchievementCount{ID: id, Count: n})
	}
	sort.Slice(s.TopAchievements, func(i, j int) bool {
		a, b := s.TopAchievements[i], s.TopAchievements[j]
		if a.Count == b.Count {
			return a.ID < b.ID
		}
		return a.Count > b.Count
	})
	if len(s.TopAchievements) > 10 {
		s.TopAchievements = s.TopAchievements[:10]
	}
	return s
}
