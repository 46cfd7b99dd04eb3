package gamify

import (
	"context"
	"log/slog"

	mem "questboard/adapters/memory"
	"questboard/analytics"
	"questboard/core"
	"questboard/engine"
	"questboard/integrations/webhook"
	"questboard/leaderboard"
	"questboard/realtime"
)

// Option configures the service builder.
type Option func(*config)

type config struct {
	storage engine.Storage
	mode    engine.DispatchMode
	rules   engine.RuleEngine
	prog    *core.Progression
	logger  *slog.Logger
	board   leaderboard.Board
	hub     *realtime.Hub
	hooks   []analytics.Hook
	subs    []func(context.Context, core.Event)
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithRuleEngine sets the rule engine.
func WithRuleEngine(r engine.RuleEngine) Option { return func(c *config) { c.rules = r } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithProgression replaces the default rules and clock.
func WithProgression(p core.Progression) Option { return func(c *config) { c.prog = &p } }

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option { return func(c *config) { c.logger = l } }

// WithLeaderboard keeps board in sync with XP totals.
func WithLeaderboard(b leaderboard.Board) Option { return func(c *config) { c.board = b } }

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithAnalytics feeds every event to the given hooks.
func WithAnalytics(hooks ...analytics.Hook) Option {
	return func(c *config) { c.hooks = append(c.hooks, hooks...) }
}

// WithWebhook delivers events to sink.
func WithWebhook(sink *webhook.Sink) Option {
	return func(c *config) {
		if sink != nil {
			c.subs = append(c.subs, sink.Handler())
		}
	}
}

// WithSubscriber registers an arbitrary handler for all events.
func WithSubscriber(fn func(context.Context, core.Event)) Option {
	return func(c *config) { c.subs = append(c.subs, fn) }
}

// New builds a configured Service. If not provided, defaults are used:
//   - storage: in-memory
//   - rules: DefaultRuleEngine
//   - dispatch: async
func New(opts ...Option) *engine.Service {
	cfg := &config{mode: engine.DispatchAsync, rules: engine.DefaultRuleEngine()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = mem.New()
	}
	var sopts []engine.ServiceOption
	if cfg.prog != nil {
		sopts = append(sopts, engine.WithProgression(*cfg.prog))
	}
	if cfg.logger != nil {
		sopts = append(sopts, engine.WithLogger(cfg.logger))
	}
	if cfg.board != nil {
		sopts = append(sopts, engine.WithLeaderboard(cfg.board))
	}
	svc := engine.NewService(cfg.storage, engine.NewEventBus(cfg.mode), cfg.rules, sopts...)
	if cfg.hub != nil {
		svc.SubscribeAll(cfg.hub.Broadcast)
	}
	if len(cfg.hooks) > 0 {
		svc.SubscribeAll(analytics.NewBridge(cfg.hooks...).Handler())
	}
	for _, fn := range cfg.subs {
		svc.SubscribeAll(fn)
	}
	return svc
}
