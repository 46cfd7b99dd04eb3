package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"questboard/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the questboard HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header

	mu    sync.RWMutex
	token string
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken starts the client with an existing session token.
func WithAuthToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithAdminKey adds the X-Admin-Key header used by debug routes.
func WithAdminKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-Admin-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken replaces the session token.
func (c *Client) SetToken(tok string) {
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
}

// Register creates an account and keeps the returned token.
func (c *Client) Register(ctx context.Context, username, password, displayName string) (Session, error) {
	return c.authenticate(ctx, "/auth/register", map[string]string{
		"username": username, "password": password, "display_name": displayName,
	})
}

// Login exchanges credentials for a token and keeps it.
func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	return c.authenticate(ctx, "/auth/login", map[string]string{"username": username, "password": password})
}

func (c *Client) authenticate(ctx context.Context, path string, body map[string]string) (Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodPost, path, body, &s); err != nil {
		return Session{}, err
	}
	c.SetToken(s.Token)
	return s, nil
}

// Me returns the caller's profile and progression.
func (c *Client) Me(ctx context.Context) (Player, error) {
	var p Player
	err := c.do(ctx, http.MethodGet, "/me", nil, &p)
	return p, err
}

// UpdateDisplayName changes the caller's display name. Empty resets it.
func (c *Client) UpdateDisplayName(ctx context.Context, name string) (Player, error) {
	var p Player
	err := c.do(ctx, http.MethodPatch, "/me", map[string]string{"display_name": name}, &p)
	return p, err
}

// ListTasks returns the caller's tasks oldest first.
func (c *Client) ListTasks(ctx context.Context) ([]core.Task, error) {
	var body struct {
		Tasks []core.Task `json:"tasks"`
	}
	err := c.do(ctx, http.MethodGet, "/tasks", nil, &body)
	return body.Tasks, err
}

// CreateTask creates a task. A task created done pays out immediately.
func (c *Client) CreateTask(ctx context.Context, in TaskInput) (TaskResult, error) {
	var res TaskResult
	err := c.do(ctx, http.MethodPost, "/tasks", in, &res)
	return res, err
}

// GetTask fetches one task.
func (c *Client) GetTask(ctx context.Context, id string) (core.Task, error) {
	if strings.TrimSpace(id) == "" {
		return core.Task{}, ErrEmptyID
	}
	var body struct {
		Task core.Task `json:"task"`
	}
	err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, &body)
	return body.Task, err
}

// UpdateTask applies patch to a task.
func (c *Client) UpdateTask(ctx context.Context, id string, patch TaskPatch) (TaskResult, error) {
	if strings.TrimSpace(id) == "" {
		return TaskResult{}, ErrEmptyID
	}
	var res TaskResult
	err := c.do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(id), patch, &res)
	return res, err
}

// CompleteTask marks a task done.
func (c *Client) CompleteTask(ctx context.Context, id string) (TaskResult, error) {
	done := core.StatusDone
	return c.UpdateTask(ctx, id, TaskPatch{Status: &done})
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyID
	}
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil)
}

// AddSubtask appends a subtask.
func (c *Client) AddSubtask(ctx context.Context, taskID string, in SubtaskInput) (TaskResult, error) {
	if strings.TrimSpace(taskID) == "" {
		return TaskResult{}, ErrEmptyID
	}
	var res TaskResult
	err := c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/subtasks", in, &res)
	return res, err
}

// UpdateSubtask applies patch to one subtask.
func (c *Client) UpdateSubtask(ctx context.Context, taskID, subtaskID string, patch SubtaskPatch) (TaskResult, error) {
	if strings.TrimSpace(taskID) == "" || strings.TrimSpace(subtaskID) == "" {
		return TaskResult{}, ErrEmptyID
	}
	var res TaskResult
	err := c.do(ctx, http.MethodPatch, subtaskPath(taskID, subtaskID), patch, &res)
	return res, err
}

// DeleteSubtask removes one subtask and returns the task.
func (c *Client) DeleteSubtask(ctx context.Context, taskID, subtaskID string) (core.Task, error) {
	if strings.TrimSpace(taskID) == "" || strings.TrimSpace(subtaskID) == "" {
		return core.Task{}, ErrEmptyID
	}
	var body struct {
		Task core.Task `json:"task"`
	}
	err := c.do(ctx, http.MethodDelete, subtaskPath(taskID, subtaskID), nil, &body)
	return body.Task, err
}

func subtaskPath(taskID, subtaskID string) string {
	return "/tasks/" + url.PathEscape(taskID) + "/subtasks/" + url.PathEscape(subtaskID)
}

// ClaimDaily claims today's reward. A second claim returns an APIError
// with code already_claimed.
func (c *Client) ClaimDaily(ctx context.Context) (RewardResult, error) {
	var res RewardResult
	err := c.do(ctx, http.MethodPost, "/rewards/daily", nil, &res)
	return res, err
}

// AdjustXP calls the debug adjustment route.
func (c *Client) AdjustXP(ctx context.Context, amount float64, note string) (RewardResult, error) {
	var res RewardResult
	err := c.do(ctx, http.MethodPost, "/debug/xp", map[string]any{"amount": amount, "note": note}, &res)
	return res, err
}

// Campaigns returns per-campaign progress.
func (c *Client) Campaigns(ctx context.Context) ([]CampaignSummary, error) {
	var body struct {
		Campaigns []CampaignSummary `json:"campaigns"`
	}
	err := c.do(ctx, http.MethodGet, "/campaigns", nil, &body)
	return body.Campaigns, err
}

// Leaderboard fetches the top limit players. Zero uses the server default.
func (c *Client) Leaderboard(ctx context.Context, limit int) (Leaderboard, error) {
	path := "/leaderboard"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var lb Leaderboard
	err := c.do(ctx, http.MethodGet, path, nil, &lb)
	return lb, err
}

// Health probes /healthz and returns status + storage check. A 503 still
// decodes the body.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	err := c.do(ctx, http.MethodGet, "/healthz", nil, &hs)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable {
		return HealthStatus{Status: "unhealthy"}, nil
	}
	return hs, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyHeaders(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, out)
}

// SubscribeEvents connects to the WebSocket stream and emits the caller's
// events. The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	if c.Token() == "" {
		return nil, ErrNoToken
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	h := make(http.Header)
	c.applyHeaders(h)
	conn, _, err := dialer.DialContext(ctx, c.wsURL, h)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var evt core.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return
			default:
				// drop if consumer is slow
			}
		}
	}()
	return out, nil
}

func (c *Client) applyHeaders(h http.Header) {
	for k, vals := range c.headers {
		for _, v := range vals {
			h.Add(k, v)
		}
	}
	if tok := c.Token(); tok != "" {
		h.Set("Authorization", "Bearer "+tok)
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
