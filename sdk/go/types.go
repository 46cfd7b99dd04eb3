package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"questboard/core"
	"questboard/engine"
)

// Request and response shapes shared with the server.
type (
	TaskInput        = engine.TaskInput
	TaskPatch        = engine.TaskPatch
	SubtaskInput     = engine.SubtaskInput
	SubtaskPatch     = engine.SubtaskPatch
	TaskResult       = engine.TaskResult
	Player           = engine.Player
	RewardResult     = engine.RewardResult
	LeaderboardEntry = engine.LeaderboardEntry
	CampaignSummary  = engine.CampaignSummary
)

// Session is returned by Register and Login.
type Session struct {
	Token     string               `json:"token"`
	ExpiresAt time.Time            `json:"expires_at"`
	User      core.UserProfile     `json:"user"`
	RPG       core.PublicPlayerRPG `json:"player_rpg"`
}

// Leaderboard is the ranked list plus the caller's own standing.
type Leaderboard struct {
	Entries []LeaderboardEntry `json:"entries"`
	Me      *LeaderboardEntry  `json:"me,omitempty"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string         `json:"status"`
	Checks map[string]any `json:"checks"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed: status %d", e.Status)
	}
	return fmt.Sprintf("request failed: status %d: %s: %s", e.Status, e.Code, e.Message)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(apiErr)
		return apiErr
	}
	if target == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyID is returned when a task or subtask id is empty.
var ErrEmptyID = errors.New("id is required")

// ErrNoToken is returned by calls that need a session before one exists.
var ErrNoToken = errors.New("not logged in")
