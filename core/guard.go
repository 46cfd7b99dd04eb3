package core

// Qualifies reports whether moving a unit from prev to next pays its
// completion reward: it must land on done, must not already have been done,
// and must never have paid out before.
func Qualifies(prev, next Status, state AwardState) bool {
	return next == StatusDone && prev != StatusDone && state == NotAwarded
}

// AwardTask pays t's completion reward into p if the prev -> next transition
// qualifies. t.Status is expected to already hold next. On payout the task is
// marked Awarded for good, its history gains an entry and the player's
// tasks_completed counter is bumped. It returns nil when nothing was paid.
func (g Progression) AwardTask(p *PlayerRPG, t *Task, prev, next Status) *XPEvent {
	if p == nil || t == nil || !Qualifies(prev, next, t.RPG.XPAwarded) {
		return nil
	}
	reward := g.TaskReward(t)
	ev := g.ApplyXP(p, float64(reward.Amount), reward.Reason, reward.Metadata)
	if ev == nil {
		return nil
	}
	t.RPG.XPAwarded.markAwarded()
	at := ev.At
	t.RPG.LastRewardAt = &at
	g.pushHistory(t, RewardHistoryEntry{At: at, Amount: ev.Amount, Reason: ev.Reason})
	p.Counters.TasksCompleted++
	return ev
}

// AwardSubtask is AwardTask for s, a subtask of t. The history entry is
// recorded on the parent task.
func (g Progression) AwardSubtask(p *PlayerRPG, t *Task, s *Subtask, prev, next Status) *XPEvent {
	if p == nil || t == nil || s == nil || !Qualifies(prev, next, s.RPG.XPAwarded) {
		return nil
	}
	reward := g.SubtaskReward(t, s)
	ev := g.ApplyXP(p, float64(reward.Amount), reward.Reason, reward.Metadata)
	if ev == nil {
		return nil
	}
	s.RPG.XPAwarded.markAwarded()
	at := ev.At
	s.RPG.LastRewardAt = &at
	g.pushHistory(t, RewardHistoryEntry{At: at, Amount: ev.Amount, Reason: ev.Reason, SubtaskID: s.ID})
	p.Counters.SubtasksCompleted++
	return ev
}

func (g Progression) pushHistory(t *Task, e RewardHistoryEntry) {
	t.RPG.History = append([]RewardHistoryEntry{e}, t.RPG.History...)
	if limit := g.rules.HistoryLimit; limit >= 0 && len(t.RPG.History) > limit {
		t.RPG.History = t.RPG.History[:limit]
	}
}
