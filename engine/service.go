package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"questboard/core"
	"questboard/leaderboard"
)

// Service wires storage, event bus, and rules into the task tracker API.
// Mutations for one user are serialized in-process; separate processes
// sharing a store still race last-write-wins.
type Service struct {
	storage Storage
	bus     *EventBus
	rules   RuleEngine
	prog    core.Progression
	board   leaderboard.Board
	log     *slog.Logger
	locks   sync.Map // core.UserID -> *sync.Mutex
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithProgression swaps the reward tuning and clock.
func WithProgression(p core.Progression) ServiceOption {
	return func(s *Service) { s.prog = p }
}

// WithLogger sets the logger used for ledger activity.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithLeaderboard keeps board in sync with XP totals.
func WithLeaderboard(b leaderboard.Board) ServiceOption {
	return func(s *Service) { s.board = b }
}

func NewService(storage Storage, bus *EventBus, rules RuleEngine, opts ...ServiceOption) *Service {
	if storage == nil || bus == nil || rules == nil {
		panic("NewService requires non-nil storage, bus, and rules")
	}
	s := &Service{
		storage: storage,
		bus:     bus,
		rules:   rules,
		prog:    core.NewProgression(),
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func DefaultRuleEngine() RuleEngine {
	return &simpleRuleEngine{rules: core.DefaultEventRules()}
}

// Progression exposes the active tuning.
func (s *Service) Progression() core.Progression { return s.prog }

// Subscribe convenience method.
func (s *Service) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return s.bus.Subscribe(typ, handler)
}

// SubscribeAll receives every published event.
func (s *Service) SubscribeAll(handler func(context.Context, core.Event)) func() {
	return s.bus.SubscribeAll(handler)
}

func (s *Service) Publish(ctx context.Context, ev core.Event) {
	s.bus.Publish(ctx, ev)
}

func (s *Service) Close() { s.bus.Close() }

// Health probes the store with a lookup that is expected to miss.
func (s *Service) Health(ctx context.Context) error {
	if _, err := s.storage.GetUser(ctx, "healthcheck-probe"); err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}
	return nil
}

func (s *Service) lock(id core.UserID) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Service) loadUser(ctx context.Context, id core.UserID) (core.User, error) {
	normalized, err := core.NormalizeUserID(id)
	if err != nil {
		return core.User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	u, err := s.storage.GetUser(ctx, normalized)
	if err != nil {
		return core.User{}, err
	}
	s.prog.EnsureRPG(&u.RPG)
	return u, nil
}

// settle turns ledger events into bus events, applying derived achievements
// to u before it is persisted.
func (s *Service) settle(ctx context.Context, u *core.User, events []*core.XPEvent) []core.Event {
	var out []core.Event
	for _, ev := range events {
		if ev == nil {
			continue
		}
		trigger := core.NewXPAwarded(u.ID, *ev)
		out = append(out, trigger)
		for _, d := range s.rules.Evaluate(ctx, u.RPG, trigger) {
			if d.Type == core.EventAchievementUnlocked && d.Achievement != nil {
				if !u.RPG.Unlock(*d.Achievement) {
					continue
				}
				s.log.Info("achievement unlocked", "user", u.ID, "achievement", d.Achievement.ID)
			}
			if d.Type == core.EventLevelUp {
				s.log.Info("level up", "user", u.ID, "level", d.Level)
			}
			out = append(out, d)
		}
		s.log.Debug("xp awarded", "user", u.ID, "amount", ev.Amount, "reason", ev.Reason, "total", ev.XPAfter)
	}
	return out
}

func (s *Service) publishAll(ctx context.Context, u core.User, events []core.Event) {
	if len(events) == 0 {
		return
	}
	if s.board != nil {
		s.board.Update(u.ID, u.RPG.XP)
	}
	for _, ev := range events {
		s.bus.Publish(ctx, ev)
	}
}

func publicEvents(events []*core.XPEvent) []core.PublicXPEvent {
	var out []core.PublicXPEvent
	for _, ev := range events {
		if p := core.PublicEvent(ev); p != nil {
			out = append(out, *p)
		}
	}
	return out
}

type simpleRuleEngine struct{ rules []core.Rule }

func (s *simpleRuleEngine) Evaluate(ctx context.Context, state core.PlayerRPG, trigger core.Event) []core.Event {
	var out []core.Event
	for _, r := range s.rules {
		out = append(out, r.Evaluate(ctx, state, trigger)...)
	}
	return out
}
