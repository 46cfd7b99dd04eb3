package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"questboard/core"
	"questboard/leaderboard"
)

// Player pairs an account with its public progression snapshot.
type Player struct {
	User core.UserProfile    `json:"user"`
	RPG  core.PublicPlayerRPG `json:"player_rpg"`
}

// RewardResult is returned by the daily and debug XP endpoints.
type RewardResult struct {
	Event  *core.PublicXPEvent  `json:"xp_event"`
	Player core.PublicPlayerRPG `json:"player_rpg"`
}

// ProfilePatch lists the editable account fields.
type ProfilePatch struct {
	DisplayName *string `json:"display_name,omitempty"`
}

// LeaderboardEntry is one ranked player.
type LeaderboardEntry struct {
	Rank        int         `json:"rank"`
	UserID      core.UserID `json:"user_id"`
	Username    string      `json:"username"`
	DisplayName string      `json:"display_name,omitempty"`
	XP          int64       `json:"xp"`
	Level       int         `json:"level"`
}

// Register creates an account with a fresh progression record.
// passwordHash must already be hashed.
func (s *Service) Register(ctx context.Context, username, passwordHash, displayName string) (core.User, error) {
	name, err := core.NormalizeUsername(username)
	if err != nil {
		return core.User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if passwordHash == "" {
		return core.User{}, fmt.Errorf("%w: empty password", ErrInvalidInput)
	}
	now := s.prog.Now()
	u := core.User{
		ID:           core.UserID(uuid.NewString()),
		Username:     name,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
		RPG:          s.prog.CreateInitial(),
	}
	if u.DisplayName == "" {
		u.DisplayName = name
	}
	if err := s.storage.CreateUser(ctx, u); err != nil {
		return core.User{}, err
	}
	if s.board != nil {
		s.board.Update(u.ID, 0)
	}
	s.log.Info("user registered", "user", u.ID, "username", u.Username)
	return u, nil
}

// UserByUsername looks up an account for login.
func (s *Service) UserByUsername(ctx context.Context, username string) (core.User, error) {
	name, err := core.NormalizeUsername(username)
	if err != nil {
		return core.User{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.storage.GetUserByUsername(ctx, name)
}

// Profile returns the account and its normalized public snapshot.
func (s *Service) Profile(ctx context.Context, id core.UserID) (Player, error) {
	u, err := s.loadUser(ctx, id)
	if err != nil {
		return Player{}, err
	}
	return Player{User: u.Profile(), RPG: s.prog.PublicState(u.RPG)}, nil
}

// UpdateProfile edits account fields. Progression is untouched.
func (s *Service) UpdateProfile(ctx context.Context, id core.UserID, patch ProfilePatch) (Player, error) {
	unlock := s.lock(id)
	defer unlock()
	u, err := s.loadUser(ctx, id)
	if err != nil {
		return Player{}, err
	}
	if patch.DisplayName != nil {
		name := strings.TrimSpace(*patch.DisplayName)
		if len(name) > 64 {
			return Player{}, fmt.Errorf("%w: display name too long", ErrInvalidInput)
		}
		if name == "" {
			name = u.Username
		}
		u.DisplayName = name
	}
	u.UpdatedAt = s.prog.Now()
	if err := s.storage.SaveUser(ctx, u); err != nil {
		return Player{}, err
	}
	return Player{User: u.Profile(), RPG: s.prog.PublicState(u.RPG)}, nil
}

// ClaimDaily pays the once-per-UTC-day focus bonus.
func (s *Service) ClaimDaily(ctx context.Context, id core.UserID) (RewardResult, error) {
	unlock := s.lock(id)
	defer unlock()
	u, err := s.loadUser(ctx, id)
	if err != nil {
		return RewardResult{}, err
	}
	ev, err := s.prog.ClaimDaily(&u.RPG)
	if err != nil {
		return RewardResult{}, err
	}
	res, err := s.commitReward(ctx, u, ev)
	if err != nil {
		return RewardResult{}, err
	}
	s.bus.Publish(ctx, core.NewDailyClaimed(u.ID, *ev))
	return res, nil
}

// AdjustXP applies a manual correction. Zero and non-finite amounts are rejected.
func (s *Service) AdjustXP(ctx context.Context, id core.UserID, amount float64, note string) (RewardResult, error) {
	unlock := s.lock(id)
	defer unlock()
	u, err := s.loadUser(ctx, id)
	if err != nil {
		return RewardResult{}, err
	}
	var meta map[string]any
	if note = strings.TrimSpace(note); note != "" {
		meta = map[string]any{"note": note}
	}
	ev, err := s.prog.AdjustXP(&u.RPG, amount, meta)
	if err != nil {
		return RewardResult{}, err
	}
	s.log.Warn("manual xp adjustment", "user", u.ID, "amount", ev.Amount, "note", note)
	return s.commitReward(ctx, u, ev)
}

func (s *Service) commitReward(ctx context.Context, u core.User, ev *core.XPEvent) (RewardResult, error) {
	events := s.settle(ctx, &u, []*core.XPEvent{ev})
	u.UpdatedAt = s.prog.Now()
	if err := s.storage.SaveUser(ctx, u); err != nil {
		return RewardResult{}, err
	}
	s.publishAll(ctx, u, events)
	return RewardResult{Event: core.PublicEvent(ev), Player: s.prog.PublicState(u.RPG)}, nil
}

// SeedLeaderboard loads every stored XP total into the board.
func (s *Service) SeedLeaderboard(ctx context.Context) error {
	if s.board == nil {
		return nil
	}
	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		s.board.Update(u.ID, u.RPG.XP)
	}
	return nil
}

// Leaderboard ranks the top n players by total XP.
func (s *Service) Leaderboard(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	if n <= 0 || n > 100 {
		n = 10
	}
	var ranked []leaderboard.Entry
	if s.board != nil {
		ranked = s.board.TopN(n)
	} else {
		users, err := s.storage.ListUsers(ctx)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			ranked = append(ranked, leaderboard.Entry{User: u.ID, Score: u.RPG.XP})
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].Score == ranked[j].Score {
				return ranked[i].User < ranked[j].User
			}
			return ranked[i].Score > ranked[j].Score
		})
		if len(ranked) > n {
			ranked = ranked[:n]
		}
	}
	curve := s.prog.Curve()
	out := make([]LeaderboardEntry, 0, len(ranked))
	for i, e := range ranked {
		entry := LeaderboardEntry{Rank: i + 1, UserID: e.User, XP: e.Score, Level: curve.LevelFromXP(e.Score)}
		if u, err := s.storage.GetUser(ctx, e.User); err == nil {
			entry.Username = u.Username
			entry.DisplayName = u.DisplayName
		}
		out = append(out, entry)
	}
	return out, nil
}

// Standing reports id's rank on the board, if one is configured.
func (s *Service) Standing(ctx context.Context, id core.UserID) (LeaderboardEntry, bool) {
	if s.board == nil {
		return LeaderboardEntry{}, false
	}
	e, ok := s.board.Get(id)
	if !ok {
		return LeaderboardEntry{}, false
	}
	rank, _ := s.board.Rank(id)
	entry := LeaderboardEntry{Rank: rank, UserID: id, XP: e.Score, Level: s.prog.Curve().LevelFromXP(e.Score)}
	if u, err := s.storage.GetUser(ctx, id); err == nil {
		entry.Username = u.Username
		entry.DisplayName = u.DisplayName
	}
	return entry, true
}
