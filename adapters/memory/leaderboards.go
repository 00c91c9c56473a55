package memory

import (
	"fmt"
	"time"

	"gameservices/core"
	"gameservices/leaderboard"
	"gameservices/platform"
)

// AddLeaderboard registers an empty board. Re-adding keeps existing scores and updates the info.
func (p *Platform) AddLeaderboard(info core.Leaderboard) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addLeaderboardLocked(info)
}

func (p *Platform) addLeaderboardLocked(info core.Leaderboard) *board {
	if b, ok := p.boards[info.ID]; ok {
		b.info = info
		return b
	}
	b := &board{info: info, ranking: leaderboard.NewSkipList(), best: map[core.PlayerID]submission{}}
	p.boards[info.ID] = b
	p.boardOrder = append(p.boardOrder, info.ID)
	return b
}

// AddSet registers a leaderboard set containing the given board ids.
func (p *Platform) AddSet(info core.LeaderboardSet, boardIDs ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sets[info.ID]; !ok {
		p.setOrder = append(p.setOrder, info.ID)
	}
	p.sets[info.ID] = &set{info: info, boards: append([]string(nil), boardIDs...)}
}

// RecordScore stores a score for any player at the given time, bypassing authentication.
func (p *Platform) RecordScore(id string, player core.PlayerID, score int64, context uint64, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.boards[id]
	if !ok {
		return fmt.Errorf("leaderboard %q: %w", id, platform.ErrNotFound)
	}
	b.record(submission{player: player, score: score, context: context, at: at})
	return nil
}

func (b *board) record(s submission) {
	b.submissions = append(b.submissions, s)
	if prev, ok := b.best[s.player]; ok && prev.score >= s.score {
		return
	}
	b.best[s.player] = s
	b.ranking.Update(s.player, s.score, s.at)
}

type handle struct {
	p  *Platform
	id string
}

func (h handle) Info() core.Leaderboard {
	h.p.mu.RLock()
	defer h.p.mu.RUnlock()
	if b, ok := h.p.boards[h.id]; ok {
		return b.info
	}
	return core.Leaderboard{ID: h.id}
}

func (h handle) LoadEntries(req platform.EntriesRequest, done func(platform.EntriesPage, error)) {
	h.p.async(func() {
		page, err := h.p.entries(h.id, req)
		done(page, err)
	})
}

type setHandle struct {
	p  *Platform
	id string
}

func (s setHandle) Info() core.LeaderboardSet {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()
	if st, ok := s.p.sets[s.id]; ok {
		return st.info
	}
	return core.LeaderboardSet{ID: s.id}
}

func (s setHandle) LoadLeaderboards(done func([]platform.Leaderboard, error)) {
	s.p.async(func() {
		s.p.mu.RLock()
		err := s.p.guardLocked()
		var out []platform.Leaderboard
		if st, ok := s.p.sets[s.id]; err == nil && ok {
			for _, id := range st.boards {
				if _, ok := s.p.boards[id]; ok {
					out = append(out, handle{p: s.p, id: id})
				}
			}
		} else if err == nil {
			err = fmt.Errorf("leaderboard set %q: %w", s.id, platform.ErrNotFound)
		}
		s.p.mu.RUnlock()
		done(out, err)
	})
}

// LoadLeaderboards resolves ids; unknown ids are skipped. A nil ids slice loads every board.
func (p *Platform) LoadLeaderboards(ids []string, done func([]platform.Leaderboard, error)) {
	p.async(func() {
		p.mu.RLock()
		err := p.guardLocked()
		var out []platform.Leaderboard
		if err == nil {
			if ids == nil {
				ids = p.boardOrder
			}
			for _, id := range ids {
				if _, ok := p.boards[id]; ok {
					out = append(out, handle{p: p, id: id})
				}
			}
		}
		p.mu.RUnlock()
		done(out, err)
	})
}

func (p *Platform) LoadLeaderboardSets(done func([]platform.LeaderboardSet, error)) {
	p.async(func() {
		p.mu.RLock()
		err := p.guardLocked()
		var out []platform.LeaderboardSet
		if err == nil {
			for _, id := range p.setOrder {
				out = append(out, setHandle{p: p, id: id})
			}
		}
		p.mu.RUnlock()
		done(out, err)
	})
}

func (p *Platform) SubmitScore(score int64, context uint64, ids []string, done func(error)) {
	p.async(func() {
		p.mu.Lock()
		err := p.guardLocked()
		if err == nil {
			for _, id := range ids {
				if _, ok := p.boards[id]; !ok {
					err = fmt.Errorf("leaderboard %q: %w", id, platform.ErrNotFound)
					break
				}
			}
		}
		if err == nil {
			at := p.now()
			for _, id := range ids {
				p.boards[id].record(submission{player: p.local, score: score, context: context, at: at})
			}
		}
		p.mu.Unlock()
		done(err)
	})
}

func (p *Platform) entries(id string, req platform.EntriesRequest) (platform.EntriesPage, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if err := p.guardLocked(); err != nil {
		return platform.EntriesPage{}, err
	}
	b, ok := p.boards[id]
	if !ok {
		return platform.EntriesPage{}, fmt.Errorf("leaderboard %q: %w", id, platform.ErrNotFound)
	}
	if req.Players == core.PlayersFriendsOnly && p.friendsAuth != core.FriendsAuthorized {
		return platform.EntriesPage{}, fmt.Errorf("friends scope: %w", platform.ErrPermissionDenied)
	}

	window := core.WindowFor(req.Time, p.now())
	ranking := b.ranking
	best := b.best
	if req.Time != core.TimeAllTime || req.Players == core.PlayersFriendsOnly {
		ranking, best = p.filteredRankingLocked(b, req.Players, window)
	}

	start := max(req.RangeStart, 1)
	page := platform.EntriesPage{TotalPlayerCount: ranking.Len(), Window: window}
	for i, e := range ranking.Range(start, req.Length) {
		page.Entries = append(page.Entries, p.entryLocked(e, start+i, best))
	}
	if rank, ok := ranking.Rank(p.local); ok {
		e, _ := ranking.Get(p.local)
		local := p.entryLocked(e, rank, best)
		page.Local = &local
	}
	return page, nil
}

// filteredRankingLocked ranks the best score per player inside the window, optionally restricted to friends.
func (p *Platform) filteredRankingLocked(b *board, players core.PlayerScope, window core.TimeWindow) (*leaderboard.SkipList, map[core.PlayerID]submission) {
	var allowed map[core.PlayerID]bool
	if players == core.PlayersFriendsOnly {
		allowed = map[core.PlayerID]bool{p.local: true}
		for _, f := range p.friends {
			allowed[f] = true
		}
	}
	ranking := leaderboard.NewSkipList()
	best := map[core.PlayerID]submission{}
	for _, s := range b.submissions {
		if allowed != nil && !allowed[s.player] {
			continue
		}
		if !window.Start.IsZero() && s.at.Before(window.Start) {
			continue
		}
		if prev, ok := best[s.player]; ok && prev.score >= s.score {
			continue
		}
		best[s.player] = s
		ranking.Update(s.player, s.score, s.at)
	}
	return ranking, best
}

func (p *Platform) entryLocked(e leaderboard.Entry, rank int, best map[core.PlayerID]submission) core.ScoreEntry {
	return core.ScoreEntry{
		Rank:           rank,
		Score:          e.Score,
		FormattedScore: core.FormatScore(e.Score),
		Context:        best[e.Player].context,
		Date:           e.Date,
		Player:         p.playerLocked(e.Player),
	}
}
