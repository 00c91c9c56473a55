package redis

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"gameservices/adapters/memory"
	"gameservices/core"
)

// Seed writes a fixture into Redis. The fixture's friends and authorization apply to the
// configured local player.
func (p *Platform) Seed(ctx context.Context, f memory.Fixture) error {
	for _, pl := range f.Players {
		if err := p.AddPlayer(ctx, pl); err != nil {
			return err
		}
	}
	for _, lb := range f.Leaderboards {
		if err := p.AddLeaderboard(ctx, lb); err != nil {
			return err
		}
	}
	for _, s := range f.Sets {
		if err := p.AddSet(ctx, core.LeaderboardSet{ID: s.ID, Title: s.Title}, s.Leaderboards...); err != nil {
			return err
		}
	}
	for _, sc := range f.Scores {
		at := sc.Date
		if at.IsZero() {
			at = p.now()
		}
		if err := p.RecordScore(ctx, sc.Leaderboard, sc.Player, sc.Score, sc.Context, at); err != nil {
			return fmt.Errorf("seed score: %w", err)
		}
	}
	for _, d := range f.Achievements {
		if err := p.AddAchievement(ctx, d); err != nil {
			return err
		}
	}
	if len(f.Progress) > 0 {
		updates := make(map[string]any, len(f.Progress))
		for _, a := range f.Progress {
			raw, err := json.Marshal(a)
			if err != nil {
				return err
			}
			updates[a.ID] = raw
		}
		if err := p.client.HSet(ctx, progressKey(p.local), updates).Err(); err != nil {
			return netErr(err)
		}
	}
	if f.FriendsAuthorization != "" {
		if err := p.SetFriendsAuthorization(ctx, f.FriendsAuthorization); err != nil {
			return err
		}
	}
	if f.Friends != nil {
		if err := p.SetFriends(ctx, f.Friends...); err != nil {
			return err
		}
	}
	for id, raw := range f.Avatars {
		if err := p.client.Set(ctx, avatarKey(id), raw, 0).Err(); err != nil {
			return netErr(err)
		}
	}
	return nil
}
