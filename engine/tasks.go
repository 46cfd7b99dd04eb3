package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"questboard/core"
)

// TaskInput creates a task. Zero values pick todo, medium and level 1.
type TaskInput struct {
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	CampaignID  string        `json:"campaign_id,omitempty"`
	Status      core.Status   `json:"status,omitempty"`
	Priority    core.Priority `json:"priority,omitempty"`
	TaskLevel   int           `json:"task_level,omitempty"`
}

// TaskPatch updates the non-nil fields of a task.
type TaskPatch struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	CampaignID  *string        `json:"campaign_id,omitempty"`
	Status      *core.Status   `json:"status,omitempty"`
	Priority    *core.Priority `json:"priority,omitempty"`
	TaskLevel   *int           `json:"task_level,omitempty"`
}

// SubtaskInput creates a subtask. An empty priority inherits the task's.
type SubtaskInput struct {
	Title    string        `json:"title"`
	Status   core.Status   `json:"status,omitempty"`
	Priority core.Priority `json:"priority,omitempty"`
	Weight   *float64      `json:"weight,omitempty"`
}

// SubtaskPatch updates the non-nil fields of a subtask.
type SubtaskPatch struct {
	Title    *string        `json:"title,omitempty"`
	Status   *core.Status   `json:"status,omitempty"`
	Priority *core.Priority `json:"priority,omitempty"`
	Weight   *float64       `json:"weight,omitempty"`
}

// TaskResult is the task after a mutation plus any XP it paid. XPEvents
// and Player are omitted when nothing was awarded.
type TaskResult struct {
	Task     core.Task             `json:"task"`
	XPEvents []core.PublicXPEvent  `json:"xp_events,omitempty"`
	Player   *core.PublicPlayerRPG `json:"player_rpg,omitempty"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func validStatus(st core.Status) error {
	if !st.Valid() {
		return invalid("unknown status %q", st)
	}
	return nil
}

func validPriority(p core.Priority) error {
	switch p {
	case core.PriorityLow, core.PriorityMedium, core.PriorityHigh:
		return nil
	}
	return invalid("unknown priority %q", p)
}

func (s *Service) validLevel(level int) error {
	if limit := s.prog.Rules().MaxTaskLevel; level < 1 || level > limit {
		return invalid("task_level must be between 1 and %d", limit)
	}
	return nil
}

func validWeight(w *float64) error {
	if w != nil && (math.IsNaN(*w) || math.IsInf(*w, 0) || *w <= 0) {
		return invalid("weight must be a positive number")
	}
	return nil
}

func trimTitle(title string) (string, error) {
	t := strings.TrimSpace(title)
	if t == "" {
		return "", invalid("title is required")
	}
	if len(t) > 200 {
		return "", invalid("title too long")
	}
	return t, nil
}

// ownedTask loads a task and checks it belongs to owner.
func (s *Service) ownedTask(ctx context.Context, owner core.UserID, id string) (core.Task, error) {
	t, err := s.storage.GetTask(ctx, id)
	if err != nil {
		return core.Task{}, err
	}
	if t.OwnerID != owner {
		return core.Task{}, ErrForbidden
	}
	s.prog.EnsureTask(&t)
	return t, nil
}

// commitTask persists t and, if anything paid out, the owner. The task is
// written first so a failed user write can lose XP but never pay it twice.
func (s *Service) commitTask(ctx context.Context, u core.User, t core.Task, events []*core.XPEvent, create bool) (TaskResult, error) {
	paid := publicEvents(events)
	var bus []core.Event
	if len(paid) > 0 {
		bus = s.settle(ctx, &u, events)
	}
	var err error
	if create {
		err = s.storage.CreateTask(ctx, t)
	} else {
		err = s.storage.SaveTask(ctx, t)
	}
	if err != nil {
		return TaskResult{}, err
	}
	res := TaskResult{Task: t}
	if len(paid) == 0 {
		return res, nil
	}
	u.UpdatedAt = s.prog.Now()
	if err := s.storage.SaveUser(ctx, u); err != nil {
		s.log.Error("task saved but xp not persisted", "user", u.ID, "task", t.ID, "err", err)
		return TaskResult{}, err
	}
	s.publishAll(ctx, u, bus)
	snap := s.prog.PublicState(u.RPG)
	res.XPEvents = paid
	res.Player = &snap
	return res, nil
}

// CreateTask stores a new task. Creating it already done pays the reward.
func (s *Service) CreateTask(ctx context.Context, owner core.UserID, in TaskInput) (TaskResult, error) {
	title, err := trimTitle(in.Title)
	if err != nil {
		return TaskResult{}, err
	}
	if in.Status == "" {
		in.Status = core.StatusTodo
	}
	if in.Priority == "" {
		in.Priority = core.PriorityMedium
	}
	if in.TaskLevel == 0 {
		in.TaskLevel = 1
	}
	if err := validStatus(in.Status); err != nil {
		return TaskResult{}, err
	}
	if err := validPriority(in.Priority); err != nil {
		return TaskResult{}, err
	}
	if err := s.validLevel(in.TaskLevel); err != nil {
		return TaskResult{}, err
	}

	unlock := s.lock(owner)
	defer unlock()
	u, err := s.loadUser(ctx, owner)
	if err != nil {
		return TaskResult{}, err
	}
	now := s.prog.Now()
	t := core.Task{
		ID:          uuid.NewString(),
		OwnerID:     u.ID,
		CampaignID:  strings.TrimSpace(in.CampaignID),
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Status:      in.Status,
		Priority:    in.Priority,
		TaskLevel:   in.TaskLevel,
		Subtasks:    []core.Subtask{},
		RPG:         core.TaskRewardState{History: []core.RewardHistoryEntry{}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	ev := s.prog.AwardTask(&u.RPG, &t, "", t.Status)
	return s.commitTask(ctx, u, t, []*core.XPEvent{ev}, true)
}

// ListTasks returns owner's tasks, oldest first.
func (s *Service) ListTasks(ctx context.Context, owner core.UserID) ([]core.Task, error) {
	tasks, err := s.storage.ListTasks(ctx, owner)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		s.prog.EnsureTask(&tasks[i])
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
	return tasks, nil
}

// GetTask returns one of owner's tasks.
func (s *Service) GetTask(ctx context.Context, owner core.UserID, id string) (core.Task, error) {
	return s.ownedTask(ctx, owner, id)
}

// UpdateTask applies patch. A status move onto done pays the completion
// reward once per task lifetime, priced with the patched priority and level.
func (s *Service) UpdateTask(ctx context.Context, owner core.UserID, id string, patch TaskPatch) (TaskResult, error) {
	unlock := s.lock(owner)
	defer unlock()
	t, err := s.ownedTask(ctx, owner, id)
	if err != nil {
		return TaskResult{}, err
	}
	if patch.Title != nil {
		if t.Title, err = trimTitle(*patch.Title); err != nil {
			return TaskResult{}, err
		}
	}
	if patch.Description != nil {
		t.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.CampaignID != nil {
		t.CampaignID = strings.TrimSpace(*patch.CampaignID)
	}
	if patch.Priority != nil {
		if err := validPriority(*patch.Priority); err != nil {
			return TaskResult{}, err
		}
		t.Priority = *patch.Priority
	}
	if patch.TaskLevel != nil {
		if err := s.validLevel(*patch.TaskLevel); err != nil {
			return TaskResult{}, err
		}
		t.TaskLevel = *patch.TaskLevel
	}
	prev := t.Status
	if patch.Status != nil {
		if err := validStatus(*patch.Status); err != nil {
			return TaskResult{}, err
		}
		t.Status = *patch.Status
	}
	t.Touch(s.prog.Now())

	var events []*core.XPEvent
	var u core.User
	if core.Qualifies(prev, t.Status, t.RPG.XPAwarded) {
		if u, err = s.loadUser(ctx, owner); err != nil {
			return TaskResult{}, err
		}
		events = append(events, s.prog.AwardTask(&u.RPG, &t, prev, t.Status))
	}
	return s.commitTask(ctx, u, t, events, false)
}

// DeleteTask removes a task. Paid XP stays with the player.
func (s *Service) DeleteTask(ctx context.Context, owner core.UserID, id string) error {
	unlock := s.lock(owner)
	defer unlock()
	if _, err := s.ownedTask(ctx, owner, id); err != nil {
		return err
	}
	return s.storage.DeleteTask(ctx, id)
}

// AddSubtask appends a subtask. Adding it already done pays the reward.
func (s *Service) AddSubtask(ctx context.Context, owner core.UserID, taskID string, in SubtaskInput) (TaskResult, error) {
	title, err := trimTitle(in.Title)
	if err != nil {
		return TaskResult{}, err
	}
	if in.Status == "" {
		in.Status = core.StatusTodo
	}
	if err := validStatus(in.Status); err != nil {
		return TaskResult{}, err
	}
	if in.Priority != "" {
		if err := validPriority(in.Priority); err != nil {
			return TaskResult{}, err
		}
	}
	if err := validWeight(in.Weight); err != nil {
		return TaskResult{}, err
	}

	unlock := s.lock(owner)
	defer unlock()
	t, err := s.ownedTask(ctx, owner, taskID)
	if err != nil {
		return TaskResult{}, err
	}
	t.Subtasks = append(t.Subtasks, core.Subtask{
		ID:       uuid.NewString(),
		Title:    title,
		Status:   in.Status,
		Priority: in.Priority,
		Weight:   in.Weight,
	})
	sub := &t.Subtasks[len(t.Subtasks)-1]
	t.Touch(s.prog.Now())

	var events []*core.XPEvent
	var u core.User
	if core.Qualifies("", sub.Status, sub.RPG.XPAwarded) {
		if u, err = s.loadUser(ctx, owner); err != nil {
			return TaskResult{}, err
		}
		events = append(events, s.prog.AwardSubtask(&u.RPG, &t, sub, "", sub.Status))
	}
	return s.commitTask(ctx, u, t, events, false)
}

// UpdateSubtask applies patch to one subtask, paying its reward on the
// first move onto done.
func (s *Service) UpdateSubtask(ctx context.Context, owner core.UserID, taskID, subtaskID string, patch SubtaskPatch) (TaskResult, error) {
	unlock := s.lock(owner)
	defer unlock()
	t, err := s.ownedTask(ctx, owner, taskID)
	if err != nil {
		return TaskResult{}, err
	}
	sub := t.Subtask(subtaskID)
	if sub == nil {
		return TaskResult{}, core.ErrNotFound
	}
	if patch.Title != nil {
		if sub.Title, err = trimTitle(*patch.Title); err != nil {
			return TaskResult{}, err
		}
	}
	if patch.Priority != nil {
		if *patch.Priority != "" {
			if err := validPriority(*patch.Priority); err != nil {
				return TaskResult{}, err
			}
		}
		sub.Priority = *patch.Priority
	}
	if patch.Weight != nil {
		if err := validWeight(patch.Weight); err != nil {
			return TaskResult{}, err
		}
		w := *patch.Weight
		sub.Weight = &w
	}
	prev := sub.Status
	if patch.Status != nil {
		if err := validStatus(*patch.Status); err != nil {
			return TaskResult{}, err
		}
		sub.Status = *patch.Status
	}
	t.Touch(s.prog.Now())

	var events []*core.XPEvent
	var u core.User
	if core.Qualifies(prev, sub.Status, sub.RPG.XPAwarded) {
		if u, err = s.loadUser(ctx, owner); err != nil {
			return TaskResult{}, err
		}
		events = append(events, s.prog.AwardSubtask(&u.RPG, &t, sub, prev, sub.Status))
	}
	return s.commitTask(ctx, u, t, events, false)
}

// DeleteSubtask drops a subtask from its task.
func (s *Service) DeleteSubtask(ctx context.Context, owner core.UserID, taskID, subtaskID string) (core.Task, error) {
	unlock := s.lock(owner)
	defer unlock()
	t, err := s.ownedTask(ctx, owner, taskID)
	if err != nil {
		return core.Task{}, err
	}
	idx := -1
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == subtaskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return core.Task{}, core.ErrNotFound
	}
	t.Subtasks = append(t.Subtasks[:idx], t.Subtasks[idx+1:]...)
	t.Touch(s.prog.Now())
	if err := s.storage.SaveTask(ctx, t); err != nil {
		return core.Task{}, err
	}
	return t, nil
}
