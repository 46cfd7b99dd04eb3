package core

import "math"

// Reward is a quoted payout, not yet applied.
type Reward struct {
	Amount   int64          `json:"amount"`
	Reason   Reason         `json:"reason"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (g Progression) taskLevel(t *Task) int {
	return clampInt(t.TaskLevel, 1, max(1, g.rules.MaxTaskLevel))
}

// TaskReward quotes the XP for completing t. A nil task quotes 0.
func (g Progression) TaskReward(t *Task) Reward {
	if t == nil {
		return Reward{Reason: ReasonTaskComplete}
	}
	r := g.rules
	level := g.taskLevel(t)
	base := r.TaskBaseXP + float64(level-1)*r.TaskXPPerLevel
	amount := max(1, int64(math.Round(base*r.Multipliers.For(t.Priority))))
	return Reward{
		Amount: amount,
		Reason: ReasonTaskComplete,
		Metadata: map[string]any{
			"task_id":    t.ID,
			"title":      t.Title,
			"task_level": level,
			"priority":   string(t.Priority),
		},
	}
}

// SubtaskReward quotes the XP for completing s, a subtask of t.
func (g Progression) SubtaskReward(t *Task, s *Subtask) Reward {
	if t == nil || s == nil {
		return Reward{Reason: ReasonSubtaskComplete}
	}
	r := g.rules
	level := g.taskLevel(t)
	base := r.SubtaskBaseXP + float64(level-1)*r.SubtaskXPPerLevel
	priority := s.Priority
	if priority == "" {
		priority = t.Priority
	}
	weight := 1.0
	if s.Weight != nil && finite(*s.Weight) {
		weight = math.Max(r.MinSubtaskWeight, *s.Weight)
	}
	amount := max(1, int64(math.Round(base*r.Multipliers.For(priority)*weight)))
	return Reward{
		Amount: amount,
		Reason: ReasonSubtaskComplete,
		Metadata: map[string]any{
			"task_id":    t.ID,
			"subtask_id": s.ID,
			"title":      s.Title,
			"task_level": level,
			"priority":   string(priority),
			"weight":     weight,
		},
	}
}

// DailyReward quotes the once-a-day focus bonus.
func (g Progression) DailyReward() Reward {
	return Reward{Amount: g.rules.DailyRewardXP, Reason: ReasonDailyFocus}
}
