package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"questboard/analytics"
	"questboard/auth"
	"questboard/core"
	"questboard/engine"
)

const maxBody = 1 << 20

type handlers struct {
	svc     *engine.Service
	auth    *auth.Auth
	metrics *analytics.Metrics
}

// writeServiceError maps domain errors onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	case errors.Is(err, core.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid_amount", err.Error(), nil)
	case errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password", nil)
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
	case errors.Is(err, engine.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error(), nil)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, core.ErrDuplicateClaim):
		writeError(w, http.StatusConflict, "already_claimed", err.Error(), nil)
	case errors.Is(err, core.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
	return false
}

func userID(r *http.Request) core.UserID {
	c, _ := auth.FromContext(r.Context())
	return c.UserID()
}

type credentials struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type session struct {
	Token     string               `json:"token"`
	ExpiresAt time.Time            `json:"expires_at"`
	User      core.UserProfile     `json:"user"`
	RPG       core.PublicPlayerRPG `json:"player_rpg"`
}

func (h *handlers) session(w http.ResponseWriter, status int, u core.User) {
	tok, exp, err := h.auth.Issue(u)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	p := h.svc.Progression()
	writeStatus(w, status, session{Token: tok, ExpiresAt: exp, User: u.Profile(), RPG: p.PublicState(*p.EnsureRPG(&u.RPG))})
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decode(w, r, &in) {
		return
	}
	hash, err := h.auth.HashPassword(in.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	u, err := h.svc.Register(r.Context(), in.Username, hash, in.DisplayName)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.session(w, http.StatusCreated, u)
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decode(w, r, &in) {
		return
	}
	u, err := h.svc.UserByUsername(r.Context(), in.Username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) || errors.Is(err, engine.ErrInvalidInput) {
			err = auth.ErrInvalidCredentials
		}
		writeServiceError(w, err)
		return
	}
	if err := h.auth.CheckPassword(u.PasswordHash, in.Password); err != nil {
		writeServiceError(w, err)
		return
	}
	h.session(w, http.StatusOK, u)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Profile(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, p)
}

func (h *handlers) updateMe(w http.ResponseWriter, r *http.Request) {
	var patch engine.ProfilePatch
	if !decode(w, r, &patch) {
		return
	}
	p, err := h.svc.UpdateProfile(r.Context(), userID(r), patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, p)
}

func (h *handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.svc.ListTasks(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"tasks": tasks})
}

func (h *handlers) createTask(w http.ResponseWriter, r *http.Request) {
	var in engine.TaskInput
	if !decode(w, r, &in) {
		return
	}
	res, err := h.svc.CreateTask(r.Context(), userID(r), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeStatus(w, http.StatusCreated, res)
}

func (h *handlers) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTask(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"task": t})
}

func (h *handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	var patch engine.TaskPatch
	if !decode(w, r, &patch) {
		return
	}
	res, err := h.svc.UpdateTask(r.Context(), userID(r), r.PathValue("id"), patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, res)
}

func (h *handlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTask(r.Context(), userID(r), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) addSubtask(w http.ResponseWriter, r *http.Request) {
	var in engine.SubtaskInput
	if !decode(w, r, &in) {
		return
	}
	res, err := h.svc.AddSubtask(r.Context(), userID(r), r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeStatus(w, http.StatusCreated, res)
}

func (h *handlers) updateSubtask(w http.ResponseWriter, r *http.Request) {
	var patch engine.SubtaskPatch
	if !decode(w, r, &patch) {
		return
	}
	res, err := h.svc.UpdateSubtask(r.Context(), userID(r), r.PathValue("id"), r.PathValue("sid"), patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, res)
}

func (h *handlers) deleteSubtask(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.DeleteSubtask(r.Context(), userID(r), r.PathValue("id"), r.PathValue("sid"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"task": t})
}

func (h *handlers) claimDaily(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ClaimDaily(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, res)
}

type adjustment struct {
	Amount float64 `json:"amount"`
	Note   string  `json:"note,omitempty"`
}

func (h *handlers) debugXP(w http.ResponseWriter, r *http.Request) {
	var in adjustment
	if !decode(w, r, &in) {
		return
	}
	res, err := h.svc.AdjustXP(r.Context(), userID(r), in.Amount, in.Note)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, res)
}

func (h *handlers) campaigns(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Campaigns(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, map[string]any{"campaigns": c})
}

func (h *handlers) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 100", nil)
			return
		}
		limit = n
	}
	entries, err := h.svc.Leaderboard(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := map[string]any{"entries": entries}
	if me, ok := h.svc.Standing(r.Context(), userID(r)); ok {
		resp["me"] = me
	}
	writeJSON(w, resp)
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	if h.metrics == nil {
		writeError(w, http.StatusNotFound, "not_found", "analytics disabled", nil)
		return
	}
	writeJSON(w, h.metrics.Snapshot())
}

// health verifies storage with a lookup that is expected to miss.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{"storage": "ok"},
	}
	code := http.StatusOK
	if err := h.svc.Health(r.Context()); err != nil {
		code = http.StatusServiceUnavailable
		status["status"] = "unhealthy"
		status["checks"] = map[string]any{"storage": "failed"}
	}
	writeStatus(w, code, status)
}
