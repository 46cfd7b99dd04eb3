package core

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a task or subtask.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusTodo || s == StatusInProgress || s == StatusDone
}

// Priority weights the reward of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// AwardState records whether a completable unit has ever paid out. The only
// transition is NotAwarded -> Awarded; nothing moves it back.
type AwardState uint8

const (
	NotAwarded AwardState = iota
	Awarded
)

func (s AwardState) String() string {
	if s == Awarded {
		return "awarded"
	}
	return "not_awarded"
}

// MarshalJSON keeps the stored shape a boolean xp_awarded flag.
func (s AwardState) MarshalJSON() ([]byte, error) { return json.Marshal(s == Awarded) }

// UnmarshalJSON accepts a boolean or the state name.
func (s *AwardState) UnmarshalJSON(b []byte) error {
	var flag bool
	if err := json.Unmarshal(b, &flag); err == nil {
		*s = NotAwarded
		if flag {
			*s = Awarded
		}
		return nil
	}
	var name string
	if err := json.Unmarshal(b, &name); err == nil && name == "awarded" {
		*s = Awarded
		return nil
	}
	*s = NotAwarded
	return nil
}

func (s *AwardState) markAwarded() { *s = Awarded }

// RewardHistoryEntry is the compact per-task payout record.
type RewardHistoryEntry struct {
	At        time.Time `json:"at"`
	Amount    int64     `json:"amount"`
	Reason    Reason    `json:"reason"`
	SubtaskID string    `json:"subtask_id,omitempty"`
}

// TaskRewardState is embedded in every task.
type TaskRewardState struct {
	XPAwarded    AwardState           `json:"xp_awarded"`
	LastRewardAt *time.Time           `json:"last_reward_at"`
	History      []RewardHistoryEntry `json:"history"`
}

// SubtaskRewardState is embedded in every subtask.
type SubtaskRewardState struct {
	XPAwarded    AwardState `json:"xp_awarded"`
	LastRewardAt *time.Time `json:"last_reward_at"`
}

// Subtask is a side-quest of a task. An empty Priority inherits the task's.
type Subtask struct {
	ID       string             `json:"id"`
	Title    string             `json:"title"`
	Status   Status             `json:"status"`
	Priority Priority           `json:"priority,omitempty"`
	Weight   *float64           `json:"weight,omitempty"`
	RPG      SubtaskRewardState `json:"rpg"`
}

// Task is a quest owned by one user.
type Task struct {
	ID          string          `json:"id"`
	OwnerID     UserID          `json:"owner_id"`
	CampaignID  string          `json:"campaign_id,omitempty"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Status      Status          `json:"status"`
	Priority    Priority        `json:"priority"`
	TaskLevel   int             `json:"task_level"`
	Subtasks    []Subtask       `json:"subtasks"`
	RPG         TaskRewardState `json:"rpg"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Clone returns a deep copy.
func (t Task) Clone() Task {
	cp := t
	if t.Subtasks != nil {
		cp.Subtasks = make([]Subtask, len(t.Subtasks))
		for i, s := range t.Subtasks {
			if s.Weight != nil {
				w := *s.Weight
				s.Weight = &w
			}
			if s.RPG.LastRewardAt != nil {
				at := *s.RPG.LastRewardAt
				s.RPG.LastRewardAt = &at
			}
			cp.Subtasks[i] = s
		}
	}
	if t.RPG.History != nil {
		cp.RPG.History = append([]RewardHistoryEntry(nil), t.RPG.History...)
	}
	if t.RPG.LastRewardAt != nil {
		at := *t.RPG.LastRewardAt
		cp.RPG.LastRewardAt = &at
	}
	return cp
}

// Subtask returns a pointer into t.Subtasks for id, or nil.
func (t *Task) Subtask(id string) *Subtask {
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == id {
			return &t.Subtasks[i]
		}
	}
	return nil
}

// Touch stamps UpdatedAt.
func (t *Task) Touch(now time.Time) { t.UpdatedAt = now.UTC() }

// EnsureTask repairs a stored task: unknown statuses become todo, empty
// collections are filled and the reward history is bounded.
func (g Progression) EnsureTask(t *Task) *Task {
	if t == nil {
		return nil
	}
	if !t.Status.Valid() {
		t.Status = StatusTodo
	}
	if t.Subtasks == nil {
		t.Subtasks = []Subtask{}
	}
	for i := range t.Subtasks {
		if !t.Subtasks[i].Status.Valid() {
			t.Subtasks[i].Status = StatusTodo
		}
	}
	if t.RPG.History == nil {
		t.RPG.History = []RewardHistoryEntry{}
	}
	if limit := g.rules.HistoryLimit; limit >= 0 && len(t.RPG.History) > limit {
		t.RPG.History = t.RPG.History[:limit]
	}
	return t
}
