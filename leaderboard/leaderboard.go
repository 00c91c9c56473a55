package leaderboard

import (
	"time"

	"gameservices/core"
)

// Entry represents a player's best score on a board.
type Entry struct {
	Player core.PlayerID
	Score  int64
	Date   time.Time
}

// Board abstracts leaderboard operations.
type Board interface {
	Update(player core.PlayerID, score int64, at time.Time)
	Remove(player core.PlayerID)
	TopN(n int) []Entry
	Range(start, n int) []Entry
	Rank(player core.PlayerID) (int, bool)
	Get(player core.PlayerID) (Entry, bool)
	Len() int
}
