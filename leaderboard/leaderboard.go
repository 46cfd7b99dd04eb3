package leaderboard

import "questboard/core"

// Entry is one player's XP total.
type Entry struct {
	User  core.UserID `json:"user_id"`
	Score int64       `json:"xp"`
}

// Board ranks players by XP, highest first; ties break on user id.
type Board interface {
	Update(user core.UserID, score int64)
	Remove(user core.UserID)
	TopN(n int) []Entry
	Get(user core.UserID) (Entry, bool)
	// Rank is 1-based.
	Rank(user core.UserID) (int, bool)
	Len() int
}
