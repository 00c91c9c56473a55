package gameservices

import (
	"gameservices/core"
	"gameservices/platform"
)

// query is the current leaderboard fetch. Every completion carries the token of the query that
// issued it; a completion whose token no longer matches is discarded.
type query struct {
	token         string
	leaderboardID string
	setID         string
	// handle is nil until the leaderboard is resolved.
	handle       platform.Leaderboard
	pageSize     int
	players      core.PlayerScope
	time         core.TimeScope
	rangeStart   int
	playersCount int
	window       core.TimeWindow
}

func (q *query) request() platform.EntriesRequest {
	return platform.EntriesRequest{
		Players:    q.players,
		Time:       q.time,
		RangeStart: q.rangeStart,
		Length:     q.pageSize,
	}
}

// current reports whether token still identifies the active query.
func (s *Service) current(token string) bool {
	return s.query != nil && s.query.token == token
}

func (s *Service) discard(op, token string) {
	s.metrics.StaleCompletion(op)
	s.logger.Debug("discarding stale completion", "op", op, "token", token)
}
