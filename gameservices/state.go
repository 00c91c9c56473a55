package gameservices

import (
	"slices"
	"time"

	"github.com/samber/lo"

	"gameservices/core"
)

// State is a read-only view of the service used by the debug surface.
type State struct {
	Service      string          `json:"service"`
	Initialized  bool            `json:"initialized"`
	SignedIn     bool            `json:"signed_in"`
	LocalPlayer  *core.Player    `json:"local_player,omitempty"`
	Query        *QueryState     `json:"query,omitempty"`
	Leaderboards []string        `json:"leaderboards"`
	Friends      []core.PlayerID `json:"friends"`
}

type QueryState struct {
	Token          string        `json:"token"`
	LeaderboardID  string        `json:"leaderboard_id"`
	SetID          string        `json:"set_id,omitempty"`
	Resolved       bool          `json:"resolved"`
	PageSize       int           `json:"page_size"`
	Players        string        `json:"players"`
	Time           string        `json:"time"`
	RangeStart     int           `json:"range_start"`
	PlayersCount   int           `json:"players_count"`
	WindowStart    time.Time     `json:"window_start,omitzero"`
	WindowDuration time.Duration `json:"window_duration"`
}

// Snapshot captures the session. Call it on the engine goroutine, e.g. through MainLoop.Do.
func (s *Service) Snapshot() State {
	st := State{
		Service:      s.platform.Name(),
		Initialized:  s.initialized,
		Leaderboards: lo.Keys(s.registry),
		Friends:      slices.Clone(s.friendOrder),
	}
	slices.Sort(st.Leaderboards)
	if st.Friends == nil {
		st.Friends = []core.PlayerID{}
	}
	if pl, ok := s.platform.LocalPlayer(); ok {
		st.SignedIn = true
		st.LocalPlayer = &pl
	}
	if q := s.query; q != nil {
		st.Query = &QueryState{
			Token:          q.token,
			LeaderboardID:  q.leaderboardID,
			SetID:          q.setID,
			Resolved:       q.handle != nil,
			PageSize:       q.pageSize,
			Players:        q.players.String(),
			Time:           q.time.String(),
			RangeStart:     q.rangeStart,
			PlayersCount:   q.playersCount,
			WindowStart:    q.window.Start,
			WindowDuration: q.window.Duration,
		}
	}
	return st
}

// FriendIDs lists the friend registry in load order.
func (s *Service) FriendIDs() []core.PlayerID { return slices.Clone(s.friendOrder) }
