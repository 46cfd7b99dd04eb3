package engine

import (
	"context"
	"sort"

	"questboard/core"
)

// Unassigned groups tasks with no campaign.
const Unassigned = "unassigned"

// CampaignSummary rolls up the tasks sharing a campaign id.
type CampaignSummary struct {
	ID           string  `json:"id"`
	Tasks        int     `json:"tasks"`
	TasksDone    int     `json:"tasks_done"`
	Subtasks     int     `json:"subtasks"`
	SubtasksDone int     `json:"subtasks_done"`
	XPEarned     int64   `json:"xp_earned"`
	Progress     float64 `json:"progress"`
}

// Campaigns groups owner's tasks by campaign. XPEarned sums the retained
// reward history, so very old payouts on busy tasks may be missing.
func (s *Service) Campaigns(ctx context.Context, owner core.UserID) ([]CampaignSummary, error) {
	tasks, err := s.ListTasks(ctx, owner)
	if err != nil {
		return nil, err
	}
	byID := map[string]*CampaignSummary{}
	var order []string
	for _, t := range tasks {
		id := t.CampaignID
		if id == "" {
			id = Unassigned
		}
		c, ok := byID[id]
		if !ok {
			c = &CampaignSummary{ID: id}
			byID[id] = c
			order = append(order, id)
		}
		c.Tasks++
		if t.Status == core.StatusDone {
			c.TasksDone++
		}
		for _, sub := range t.Subtasks {
			c.Subtasks++
			if sub.Status == core.StatusDone {
				c.SubtasksDone++
			}
		}
		for _, h := range t.RPG.History {
			c.XPEarned += h.Amount
		}
	}
	out := make([]CampaignSummary, 0, len(order))
	for _, id := range order {
		c := byID[id]
		if units := c.Tasks + c.Subtasks; units > 0 {
			c.Progress = float64(c.TasksDone+c.SubtasksDone) / float64(units)
		}
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
