package gameservices

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gameservices/core"
	"gameservices/errs"
	"gameservices/platform"
)

// FetchTopScores makes id the current query and loads the page starting at rangeStart.
// Results arrive as leaderboard_scores_loaded or leaderboard_scores_failed.
func (s *Service) FetchTopScores(id string, pageSize int, players core.PlayerScope, time core.TimeScope, rangeStart int) {
	s.fetchTop("fetch_top_scores", "", id, pageSize, players, time, rangeStart)
}

// FetchTopScoresFromSet is FetchTopScores for a leaderboard discovered through set setID.
// When the set does not yield the leaderboard it is looked up directly.
func (s *Service) FetchTopScoresFromSet(setID, id string, pageSize int, players core.PlayerScope, time core.TimeScope, rangeStart int) {
	s.fetchTop("fetch_top_scores_from_set", setID, id, pageSize, players, time, rangeStart)
}

func (s *Service) fetchTop(op, setID, id string, pageSize int, players core.PlayerScope, time core.TimeScope, rangeStart int) {
	s.metrics.Operation(op)
	id, setID = strings.TrimSpace(id), strings.TrimSpace(setID)
	if err := s.ready(op); err != nil {
		s.post(func() { s.emitScoresFailed(op, "", id, setID, err) })
		return
	}
	if err := validateFetch(op, setID, id, pageSize); err != nil {
		s.post(func() { s.emitScoresFailed(op, "", id, setID, err) })
		return
	}

	q := &query{
		token:         s.newToken(),
		leaderboardID: id,
		setID:         setID,
		pageSize:      min(pageSize, s.maxPage),
		players:       players,
		time:          time,
		rangeStart:    max(rangeStart, 1),
	}
	s.query = q
	if h, ok := s.registry[id]; ok {
		q.handle = h
		s.loadScores(op, q)
		return
	}
	s.resolve(op, q)
}

func validateFetch(op, setID, id string, pageSize int) *errs.E {
	if err := core.ValidateIdentifier(id); err != nil {
		return errs.New(op, errs.CodeInvalid, errs.WithMessage("leaderboard id: "+err.Error()), errs.WithCause(err))
	}
	if setID != "" {
		if err := core.ValidateIdentifier(setID); err != nil {
			return errs.New(op, errs.CodeInvalid, errs.WithMessage("set id: "+err.Error()), errs.WithCause(err))
		}
	}
	if pageSize < 1 {
		return errs.New(op, errs.CodeInvalid, errs.WithMessage(fmt.Sprintf("page size must be at least 1, got %d", pageSize)))
	}
	return nil
}

// FetchNextScores advances the current query by one page. It fails synchronously when no query
// exists or its leaderboard is still being resolved.
func (s *Service) FetchNextScores() *errs.E {
	const op = "fetch_next_scores"
	s.metrics.Operation(op)
	if err := s.ready(op); err != nil {
		return err
	}
	q := s.query
	if q == nil {
		return errs.New(op, errs.CodeNoActiveQuery, errs.WithMessage("no leaderboard query to continue"))
	}
	if q.handle == nil {
		return errs.New(op, errs.CodeQueryPending, errs.WithMessage(fmt.Sprintf("leaderboard %q is still loading", q.leaderboardID)))
	}
	q.rangeStart += q.pageSize
	s.loadScores(op, q)
	return nil
}

// resolve looks the query's leaderboard up and then loads its first page.
func (s *Service) resolve(op string, q *query) {
	token, id, setID := q.token, q.leaderboardID, q.setID
	done := func(h platform.Leaderboard, err error) {
		s.post(func() {
			if h != nil {
				s.registry[id] = h
			}
			if !s.current(token) {
				s.discard(op, token)
				return
			}
			if h == nil {
				s.query = nil
				if err == nil {
					err = errs.New(op, errs.CodeNotFound, errs.WithMessage(fmt.Sprintf("leaderboard %q not found", id)))
				}
				s.emitScoresFailed(op, token, id, setID, err)
				return
			}
			q.handle = h
			s.loadScores(op, q)
		})
	}
	if setID == "" {
		s.lookup(id, done)
		return
	}
	s.lookupInSet(op, setID, id, done)
}

// lookup resolves id directly. Runs on platform goroutines.
func (s *Service) lookup(id string, done func(platform.Leaderboard, error)) {
	s.platform.LoadLeaderboards([]string{id}, func(lbs []platform.Leaderboard, err error) {
		for _, lb := range lbs {
			if lb != nil && lb.Info().ID == id {
				done(lb, nil)
				return
			}
		}
		done(nil, err)
	})
}

// lookupInSet resolves id through setID and falls back to a direct lookup. When both fail one
// error describing both is reported.
func (s *Service) lookupInSet(op, setID, id string, done func(platform.Leaderboard, error)) {
	fallback := func() {
		s.lookup(id, func(lb platform.Leaderboard, err error) {
			if lb != nil {
				done(lb, nil)
				return
			}
			code := errs.CodeNotFound
			if err != nil && errs.CodeOf(err) != errs.CodeUnknown {
				code = errs.CodeOf(err)
			}
			done(nil, errs.New(op, code,
				errs.WithMessage(fmt.Sprintf("leaderboard %q not found in set %q or by id", id, setID)),
				errs.WithCause(err)))
		})
	}
	s.platform.LoadLeaderboardSets(func(sets []platform.LeaderboardSet, err error) {
		var match platform.LeaderboardSet
		for _, set := range sets {
			if set != nil && set.Info().ID == setID {
				match = set
				break
			}
		}
		if match == nil {
			fallback()
			return
		}
		match.LoadLeaderboards(func(lbs []platform.Leaderboard, err error) {
			for _, lb := range lbs {
				if lb != nil && lb.Info().ID == id {
					done(lb, nil)
					return
				}
			}
			fallback()
		})
	})
}

func (s *Service) loadScores(op string, q *query) {
	token, req := q.token, q.request()
	q.handle.LoadEntries(req, func(page platform.EntriesPage, err error) {
		s.post(func() {
			if !s.current(token) {
				s.discard(op, token)
				return
			}
			if err != nil {
				s.emitScoresFailed(op, token, q.leaderboardID, q.setID, err)
				return
			}
			q.playersCount = page.TotalPlayerCount
			q.window = page.Window
			s.emitScores(q, req, page)
		})
	})
}

func (s *Service) emitScores(q *query, req platform.EntriesRequest, page platform.EntriesPage) {
	entries := append([]core.ScoreEntry(nil), page.Entries...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Rank < entries[j].Rank })
	if len(entries) > req.Length {
		entries = entries[:req.Length]
	}
	local := s.localPlayerID()

	var localScore any
	if page.Local != nil {
		localScore = core.ScoreDict(*page.Local, true)
	}
	var windowStart int64
	if !q.window.Start.IsZero() {
		windowStart = q.window.Start.Unix()
	}
	info := q.handle.Info()
	if info.ID == "" {
		info.ID = q.leaderboardID
	}
	s.emit(core.EventLeaderboardScoresLoaded, core.Dictionary{
		"token":              q.token,
		"leaderboard":        core.LeaderboardDict(info),
		"scores":             core.ScoreDicts(entries, local),
		"local_player_score": localScore,
		"players_count":      q.playersCount,
		"range_start":        req.RangeStart,
		"page_size":          req.Length,
		"players":            int(req.Players),
		"time":               int(req.Time),
		"window_start":       windowStart,
		"window_duration":    int64(q.window.Duration / time.Second),
	})
}

func (s *Service) emitScoresFailed(op, token, id, setID string, err error) {
	s.emit(core.EventLeaderboardScoresFailed, core.Dictionary{
		"token":          token,
		"leaderboard_id": id,
		"set_id":         setID,
		"error":          s.failure(op, err),
	})
}

// SubmitScore reports score with an opaque context value to leaderboard id and emits score_submitted.
func (s *Service) SubmitScore(id string, score int64, context uint64) {
	const op = "submit_score"
	s.metrics.Operation(op)
	id = strings.TrimSpace(id)
	emit := func(err error) {
		s.emit(core.EventScoreSubmitted, s.outcome(op, err, core.Dictionary{
			"leaderboard_id": id,
			"score":          score,
			"context":        context,
		}))
	}
	if err := s.ready(op); err != nil {
		s.post(func() { emit(err) })
		return
	}
	if err := core.ValidateIdentifier(id); err != nil {
		e := errs.New(op, errs.CodeInvalid, errs.WithMessage("leaderboard id: "+err.Error()), errs.WithCause(err))
		s.post(func() { emit(e) })
		return
	}
	s.platform.SubmitScore(score, context, []string{id}, func(err error) {
		s.post(func() { emit(err) })
	})
}

// ShowLeaderboard presents the native leaderboard view and emits leaderboard_view_dismissed when it closes.
func (s *Service) ShowLeaderboard(id string, players core.PlayerScope, time core.TimeScope) {
	const op = "show_leaderboard"
	s.metrics.Operation(op)
	dismissed := func() {
		s.post(func() {
			s.emit(core.EventLeaderboardViewDismissed, core.Dictionary{"leaderboard_id": id})
		})
	}
	if s.ready(op) != nil {
		dismissed()
		return
	}
	s.presenter.ShowLeaderboard(id, players, time, dismissed)
}

// ShowAllLeaderboards presents the platform dashboard.
func (s *Service) ShowAllLeaderboards() {
	const op = "show_all_leaderboards"
	s.metrics.Operation(op)
	dismissed := func() {
		s.post(func() {
			s.emit(core.EventLeaderboardViewDismissed, core.Dictionary{"leaderboard_id": ""})
		})
	}
	if s.ready(op) != nil {
		dismissed()
		return
	}
	s.presenter.ShowDashboard(dismissed)
}
