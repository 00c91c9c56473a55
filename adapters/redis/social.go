package redis

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sort"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"gameservices/core"
	"gameservices/platform"
)

const achievementsKey = "gs:ach:desc"

func progressKey(id core.PlayerID) string { return playerKey(id) + ":ach" }

func friendsKey(id core.PlayerID) string { return playerKey(id) + ":friends" }

func avatarKey(id core.PlayerID) string { return playerKey(id) + ":avatar" }

// AddAchievement registers an achievement definition.
func (p *Platform) AddAchievement(ctx context.Context, d core.AchievementDescription) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return netErr(p.client.HSet(ctx, achievementsKey, d.ID, raw).Err())
}

func (p *Platform) ReportAchievements(reports []core.AchievementReport, done func(error)) {
	p.async(func(ctx context.Context) {
		if err := p.guard(); err != nil {
			done(err)
			return
		}
		for _, r := range reports {
			ok, err := p.client.HExists(ctx, achievementsKey, r.ID).Result()
			if err != nil {
				done(netErr(err))
				return
			}
			if !ok {
				done(fmt.Errorf("achievement %q: %w", r.ID, platform.ErrNotFound))
				return
			}
		}
		key := progressKey(p.local)
		now := p.now()
		err := p.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.HGetAll(ctx, key).Result()
			if err != nil {
				return err
			}
			updates := make(map[string]any, len(reports))
			for _, r := range reports {
				var a core.Achievement
				if raw, ok := current[r.ID]; ok {
					if err := json.Unmarshal([]byte(raw), &a); err != nil {
						return err
					}
				}
				a.ID = r.ID
				// progress never goes backwards
				if r.PercentComplete > a.PercentComplete {
					a.PercentComplete = r.PercentComplete
				}
				a.Completed = a.PercentComplete >= 100
				a.LastReported = now
				raw, err := json.Marshal(a)
				if err != nil {
					return err
				}
				updates[r.ID] = raw
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if len(updates) > 0 {
					pipe.HSet(ctx, key, updates)
				}
				return nil
			})
			return err
		}, key)
		done(netErr(err))
	})
}

func (p *Platform) LoadAchievementDescriptions(done func([]core.AchievementDescription, error)) {
	p.async(func(ctx context.Context) {
		if err := p.guard(); err != nil {
			done(nil, err)
			return
		}
		vals, err := p.client.HGetAll(ctx, achievementsKey).Result()
		if err != nil {
			done(nil, netErr(err))
			return
		}
		out := make([]core.AchievementDescription, 0, len(vals))
		for _, raw := range vals {
			var d core.AchievementDescription
			if err := json.Unmarshal([]byte(raw), &d); err != nil {
				done(nil, err)
				return
			}
			out = append(out, d)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		done(out, nil)
	})
}

func (p *Platform) LoadAchievements(done func([]core.Achievement, error)) {
	p.async(func(ctx context.Context) {
		if err := p.guard(); err != nil {
			done(nil, err)
			return
		}
		vals, err := p.client.HGetAll(ctx, progressKey(p.local)).Result()
		if err != nil {
			done(nil, netErr(err))
			return
		}
		out := make([]core.Achievement, 0, len(vals))
		for _, raw := range vals {
			var a core.Achievement
			if err := json.Unmarshal([]byte(raw), &a); err != nil {
				done(nil, err)
				return
			}
			out = append(out, a)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		done(out, nil)
	})
}

func (p *Platform) ResetAchievements(done func(error)) {
	p.async(func(ctx context.Context) {
		if err := p.guard(); err != nil {
			done(err)
			return
		}
		done(netErr(p.client.Del(ctx, progressKey(p.local)).Err()))
	})
}

// SetFriendsAuthorization changes the consent state of the local player.
func (p *Platform) SetFriendsAuthorization(ctx context.Context, status core.FriendsAuthorization) error {
	return netErr(p.client.HSet(ctx, playerKey(p.local), "friends_auth", string(status)).Err())
}

// SetFriends replaces the local player's friend list.
func (p *Platform) SetFriends(ctx context.Context, ids ...core.PlayerID) error {
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, friendsKey(p.local))
		if len(ids) > 0 {
			members := make([]any, len(ids))
			for i, id := range ids {
				members[i] = string(id)
			}
			pipe.SAdd(ctx, friendsKey(p.local), members...)
		}
		return nil
	})
	return netErr(err)
}

// SetAvatar stores a player's photo as PNG.
func (p *Platform) SetAvatar(ctx context.Context, id core.PlayerID, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	return netErr(p.client.Set(ctx, avatarKey(id), buf.Bytes(), 0).Err())
}

func (p *Platform) FriendsAuthorizationStatus(done func(core.FriendsAuthorization, error)) {
	p.async(func(ctx context.Context) {
		if err := p.guard(); err != nil {
			done(core.FriendsNotDetermined, err)
			return
		}
		status, err := p.client.HGet(ctx, playerKey(p.local), "friends_auth").Result()
		switch {
		case isNil(err) || (err == nil && status == ""):
			done(core.FriendsNotDetermined, nil)
		case err != nil:
			done(core.FriendsNotDetermined, netErr(err))
		default:
			done(core.FriendsAuthorization(status), nil)
		}
	})
}

func (p *Platform) LoadFriends(done func([]core.Friend, error)) {
	p.async(func(ctx context.Context) {
		if err := p.guard(); err != nil {
			done(nil, err)
			return
		}
		status, err := p.client.HGet(ctx, playerKey(p.local), "friends_auth").Result()
		if err != nil && !isNil(err) {
			done(nil, netErr(err))
			return
		}
		if core.FriendsAuthorization(status) != core.FriendsAuthorized {
			done(nil, fmt.Errorf("friends list: %w", platform.ErrPermissionDenied))
			return
		}
		members, err := p.client.SMembers(ctx, friendsKey(p.local)).Result()
		if err != nil {
			done(nil, netErr(err))
			return
		}
		sort.Strings(members)
		ids := make([]core.PlayerID, len(members))
		for i, m := range members {
			ids[i] = core.PlayerID(m)
		}
		players, err := p.loadPlayers(ctx, ids)
		if err != nil {
			done(nil, err)
			return
		}
		avatars := make([]*redis.IntCmd, len(ids))
		_, err = p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, id := range ids {
				avatars[i] = pipe.Exists(ctx, avatarKey(id))
			}
			return nil
		})
		if err != nil {
			done(nil, netErr(err))
			return
		}
		out := make([]core.Friend, len(ids))
		for i, id := range ids {
			out[i] = core.Friend{Player: players[id], HasAvatar: avatars[i].Val() > 0}
		}
		done(out, nil)
	})
}

func (p *Platform) LoadPhoto(id core.PlayerID, done func(image.Image, error)) {
	p.async(func(ctx context.Context) {
		if err := p.guard(); err != nil {
			done(nil, err)
			return
		}
		raw, err := p.client.Get(ctx, avatarKey(id)).Bytes()
		if isNil(err) {
			done(nil, fmt.Errorf("photo for %q: %w", id, platform.ErrNotFound))
			return
		}
		if err != nil {
			done(nil, netErr(err))
			return
		}
		img, err := png.Decode(bytes.NewReader(raw))
		done(img, err)
	})
}
