package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"gameservices/core"
	"gameservices/platform"
)

const (
	boardsKey = "gs:lbs"
	setsKey   = "gs:sets"
)

func boardMetaKey(id string) string { return "gs:lb:" + id + ":meta" }

func setMetaKey(id string) string { return "gs:set:" + id + ":meta" }

func setBoardsKey(id string) string { return "gs:set:" + id + ":boards" }

// scoreKey names the sorted set holding best scores for a board within a window.
func scoreKey(id string, scope core.TimeScope, w core.TimeWindow) string {
	switch scope {
	case core.TimeToday:
		return "gs:lb:" + id + ":day:" + w.Start.Format("2006-01-02")
	case core.TimeWeek:
		year, week := w.Start.ISOWeek()
		return fmt.Sprintf("gs:lb:%s:week:%d-%02d", id, year, week)
	default:
		return "gs:lb:" + id + ":all"
	}
}

func detailKey(scores string) string { return scores + ":detail" }

// recordScoreScript keeps the best score per member and its context in one round trip.
var recordScoreScript = redis.NewScript(`
	local changed = redis.call('ZADD', KEYS[1], 'GT', 'CH', ARGV[2], ARGV[1])
	if changed == 1 then
		redis.call('HSET', KEYS[2], ARGV[1], ARGV[3])
	end
	local ttl = tonumber(ARGV[4])
	if ttl > 0 then
		redis.call('EXPIRE', KEYS[1], ttl)
		redis.call('EXPIRE', KEYS[2], ttl)
	end
	return changed
`)

// AddLeaderboard registers a board. Re-adding keeps existing scores and updates the info.
func (p *Platform) AddLeaderboard(ctx context.Context, info core.Leaderboard) error {
	var start int64
	if !info.StartDate.IsZero() {
		start = info.StartDate.Unix()
	}
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, boardMetaKey(info.ID),
			"title", info.Title,
			"type", string(info.Type),
			"group_id", info.GroupID,
			"start_date", start,
			"duration", int64(info.Duration/time.Second),
		)
		pipe.ZAddNX(ctx, boardsKey, redis.Z{Score: float64(p.now().UnixNano()), Member: info.ID})
		return nil
	})
	return netErr(err)
}

// AddSet registers a leaderboard set containing the given board ids.
func (p *Platform) AddSet(ctx context.Context, info core.LeaderboardSet, boardIDs ...string) error {
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, setMetaKey(info.ID), "title", info.Title, "group_id", info.GroupID)
		pipe.Del(ctx, setBoardsKey(info.ID))
		if len(boardIDs) > 0 {
			ids := make([]any, len(boardIDs))
			for i, id := range boardIDs {
				ids[i] = id
			}
			pipe.RPush(ctx, setBoardsKey(info.ID), ids...)
		}
		pipe.ZAddNX(ctx, setsKey, redis.Z{Score: float64(p.now().UnixNano()), Member: info.ID})
		return nil
	})
	return netErr(err)
}

// RecordScore stores a score for any player at the given time, bypassing authentication.
func (p *Platform) RecordScore(ctx context.Context, id string, player core.PlayerID, score int64, scoreCtx uint64, at time.Time) error {
	exists, err := p.client.Exists(ctx, boardMetaKey(id)).Result()
	if err != nil {
		return netErr(err)
	}
	if exists == 0 {
		return fmt.Errorf("leaderboard %q: %w", id, platform.ErrNotFound)
	}
	return p.record(ctx, id, player, score, scoreCtx, at)
}

func (p *Platform) record(ctx context.Context, id string, player core.PlayerID, score int64, scoreCtx uint64, at time.Time) error {
	detail := strconv.FormatUint(scoreCtx, 10) + ":" + strconv.FormatInt(at.UnixNano(), 10)
	now := p.now()
	for _, scope := range []core.TimeScope{core.TimeAllTime, core.TimeToday, core.TimeWeek} {
		w := core.WindowFor(scope, at)
		var ttl int64
		if scope != core.TimeAllTime {
			ttl = int64(w.End().Add(p.retention).Sub(now) / time.Second)
			if ttl <= 0 {
				continue
			}
		}
		key := scoreKey(id, scope, w)
		err := recordScoreScript.Run(ctx, p.client, []string{key, detailKey(key)}, string(player), score, detail, ttl).Err()
		if err != nil {
			return netErr(err)
		}
	}
	return nil
}

type handle struct {
	p    *Platform
	info core.Leaderboard
}

func (h handle) Info() core.Leaderboard { return h.info }

func (h handle) LoadEntries(req platform.EntriesRequest, done func(platform.EntriesPage, error)) {
	h.p.async(func(ctx context.Context) {
		page, err := h.p.entries(ctx, h.info.ID, req)
		done(page, err)
	})
}

type setHandle struct {
	p    *Platform
	info core.LeaderboardSet
}

func (s setHandle) Info() core.LeaderboardSet { return s.info }

func (s setHandle) LoadLeaderboards(done func([]platform.Leaderboard, error)) {
	s.p.async(func(ctx context.Context) {
		if err := s.p.guard(); err != nil {
			done(nil, err)
			return
		}
		ids, err := s.p.client.LRange(ctx, setBoardsKey(s.info.ID), 0, -1).Result()
		if err != nil {
			done(nil, netErr(err))
			return
		}
		exists, err := s.p.client.Exists(ctx, setMetaKey(s.info.ID)).Result()
		if err != nil {
			done(nil, netErr(err))
			return
		}
		if exists == 0 {
			done(nil, fmt.Errorf("leaderboard set %q: %w", s.info.ID, platform.ErrNotFound))
			return
		}
		out, err := s.p.resolve(ctx, ids)
		done(out, err)
	})
}

// LoadLeaderboards resolves ids; unknown ids are skipped. A nil ids slice loads every board.
func (p *Platform) LoadLeaderboards(ids []string, done func([]platform.Leaderboard, error)) {
	p.async(func(ctx context.Context) {
		if err := p.guard(); err != nil {
			done(nil, err)
			return
		}
		if ids == nil {
			all, err := p.client.ZRange(ctx, boardsKey, 0, -1).Result()
			if err != nil {
				done(nil, netErr(err))
				return
			}
			ids = all
		}
		out, err := p.resolve(ctx, ids)
		done(out, err)
	})
}

func (p *Platform) resolve(ctx context.Context, ids []string) ([]platform.Leaderboard, error) {
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, boardMetaKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, netErr(err)
	}
	var out []platform.Leaderboard
	for i, id := range ids {
		vals := cmds[i].Val()
		if len(vals) == 0 {
			continue
		}
		out = append(out, handle{p: p, info: boardFromHash(id, vals)})
	}
	return out, nil
}

func boardFromHash(id string, vals map[string]string) core.Leaderboard {
	info := core.Leaderboard{
		ID:      id,
		Title:   vals["title"],
		Type:    core.LeaderboardType(vals["type"]),
		GroupID: vals["group_id"],
	}
	if start, _ := strconv.ParseInt(vals["start_date"], 10, 64); start > 0 {
		info.StartDate = time.Unix(start, 0).UTC()
	}
	if secs, _ := strconv.ParseInt(vals["duration"], 10, 64); secs > 0 {
		info.Duration = time.Duration(secs) * time.Second
	}
	return info
}

func (p *Platform) LoadLeaderboardSets(done func([]platform.LeaderboardSet, error)) {
	p.async(func(ctx context.Context) {
		if err := p.guard(); err != nil {
			done(nil, err)
			return
		}
		ids, err := p.client.ZRange(ctx, setsKey, 0, -1).Result()
		if err != nil {
			done(nil, netErr(err))
			return
		}
		cmds := make([]*redis.MapStringStringCmd, len(ids))
		_, err = p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, id := range ids {
				cmds[i] = pipe.HGetAll(ctx, setMetaKey(id))
			}
			return nil
		})
		if err != nil {
			done(nil, netErr(err))
			return
		}
		out := make([]platform.LeaderboardSet, 0, len(ids))
		for i, id := range ids {
			vals := cmds[i].Val()
			out = append(out, setHandle{p: p, info: core.LeaderboardSet{ID: id, Title: vals["title"], GroupID: vals["group_id"]}})
		}
		done(out, nil)
	})
}

func (p *Platform) SubmitScore(score int64, scoreCtx uint64, ids []string, done func(error)) {
	p.async(func(ctx context.Context) {
		if err := p.guard(); err != nil {
			done(err)
			return
		}
		for _, id := range ids {
			exists, err := p.client.Exists(ctx, boardMetaKey(id)).Result()
			if err != nil {
				done(netErr(err))
				return
			}
			if exists == 0 {
				done(fmt.Errorf("leaderboard %q: %w", id, platform.ErrNotFound))
				return
			}
		}
		at := p.now()
		for _, id := range ids {
			if err := p.record(ctx, id, p.local, score, scoreCtx, at); err != nil {
				done(err)
				return
			}
		}
		done(nil)
	})
}

type ranked struct {
	player core.PlayerID
	score  int64
}

func (p *Platform) entries(ctx context.Context, id string, req platform.EntriesRequest) (platform.EntriesPage, error) {
	if err := p.guard(); err != nil {
		return platform.EntriesPage{}, err
	}
	exists, err := p.client.Exists(ctx, boardMetaKey(id)).Result()
	if err != nil {
		return platform.EntriesPage{}, netErr(err)
	}
	if exists == 0 {
		return platform.EntriesPage{}, fmt.Errorf("leaderboard %q: %w", id, platform.ErrNotFound)
	}

	window := core.WindowFor(req.Time, p.now())
	key := scoreKey(id, req.Time, window)
	start := max(req.RangeStart, 1)

	var (
		rows  []ranked
		total int
		local *ranked
		rank  int
	)
	if req.Players == core.PlayersFriendsOnly {
		rows, total, local, rank, err = p.friendsRanking(ctx, key, start, req.Length)
	} else {
		rows, total, local, rank, err = p.globalRanking(ctx, key, start, req.Length)
	}
	if err != nil {
		return platform.EntriesPage{}, err
	}

	page := platform.EntriesPage{TotalPlayerCount: total, Window: window}
	members := make([]core.PlayerID, 0, len(rows)+1)
	for _, r := range rows {
		members = append(members, r.player)
	}
	if local != nil {
		members = append(members, local.player)
	}
	if len(members) == 0 {
		return page, nil
	}
	players, err := p.loadPlayers(ctx, members)
	if err != nil {
		return platform.EntriesPage{}, err
	}
	fields := make([]string, len(members))
	for i, m := range members {
		fields[i] = string(m)
	}
	details, err := p.client.HMGet(ctx, detailKey(key), fields...).Result()
	if err != nil {
		return platform.EntriesPage{}, netErr(err)
	}
	entry := func(r ranked, rank int, detail any) core.ScoreEntry {
		ctxVal, at := parseDetail(detail)
		return core.ScoreEntry{
			Rank:           rank,
			Score:          r.score,
			FormattedScore: core.FormatScore(r.score),
			Context:        ctxVal,
			Date:           at,
			Player:         players[r.player],
		}
	}
	for i, r := range rows {
		page.Entries = append(page.Entries, entry(r, start+i, details[i]))
	}
	if local != nil {
		e := entry(*local, rank, details[len(details)-1])
		page.Local = &e
	}
	return page, nil
}

func (p *Platform) globalRanking(ctx context.Context, key string, start, length int) ([]ranked, int, *ranked, int, error) {
	var (
		card   *redis.IntCmd
		window *redis.ZSliceCmd
		rank   *redis.IntCmd
		score  *redis.FloatCmd
	)
	_, err := p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		card = pipe.ZCard(ctx, key)
		if length > 0 {
			window = pipe.ZRevRangeWithScores(ctx, key, int64(start-1), int64(start-1+length-1))
		}
		rank = pipe.ZRevRank(ctx, key, string(p.local))
		score = pipe.ZScore(ctx, key, string(p.local))
		return nil
	})
	if err != nil && !isNil(err) {
		return nil, 0, nil, 0, netErr(err)
	}
	var rows []ranked
	if window != nil {
		for _, z := range window.Val() {
			rows = append(rows, ranked{player: core.PlayerID(z.Member.(string)), score: int64(z.Score)})
		}
	}
	var local *ranked
	localRank := 0
	if rank.Err() == nil {
		local = &ranked{player: p.local, score: int64(score.Val())}
		localRank = int(rank.Val()) + 1
	}
	return rows, int(card.Val()), local, localRank, nil
}

// friendsRanking ranks the local player and their friends client side.
func (p *Platform) friendsRanking(ctx context.Context, key string, start, length int) ([]ranked, int, *ranked, int, error) {
	vals, err := p.client.HGet(ctx, playerKey(p.local), "friends_auth").Result()
	if err != nil && !isNil(err) {
		return nil, 0, nil, 0, netErr(err)
	}
	if core.FriendsAuthorization(vals) != core.FriendsAuthorized {
		return nil, 0, nil, 0, fmt.Errorf("friends scope: %w", platform.ErrPermissionDenied)
	}
	friends, err := p.client.SMembers(ctx, friendsKey(p.local)).Result()
	if err != nil {
		return nil, 0, nil, 0, netErr(err)
	}
	members := append([]string{string(p.local)}, friends...)
	cmds := make([]*redis.FloatCmd, len(members))
	_, err = p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, m := range members {
			cmds[i] = pipe.ZScore(ctx, key, m)
		}
		return nil
	})
	if err != nil && !isNil(err) {
		return nil, 0, nil, 0, netErr(err)
	}
	var all []ranked
	for i, m := range members {
		if cmds[i].Err() != nil {
			continue
		}
		all = append(all, ranked{player: core.PlayerID(m), score: int64(cmds[i].Val())})
	}
	// same order as ZREVRANGE: score desc, then member desc
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].player > all[j].player
	})
	var local *ranked
	localRank := 0
	for i := range all {
		if all[i].player == p.local {
			r := all[i]
			local, localRank = &r, i+1
			break
		}
	}
	from := min(start-1, len(all))
	to := min(from+max(length, 0), len(all))
	return all[from:to], len(all), local, localRank, nil
}

func parseDetail(v any) (uint64, time.Time) {
	s, ok := v.(string)
	if !ok {
		return 0, time.Time{}
	}
	ctxPart, atPart, _ := strings.Cut(s, ":")
	ctxVal, _ := strconv.ParseUint(ctxPart, 10, 64)
	nanos, _ := strconv.ParseInt(atPart, 10, 64)
	if nanos == 0 {
		return ctxVal, time.Time{}
	}
	return ctxVal, time.Unix(0, nanos).UTC()
}
