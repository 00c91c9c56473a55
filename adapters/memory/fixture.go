package memory

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sort"
	"time"

	"gameservices/core"
)

// Fixture is a serialisable picture of a platform's world.
type Fixture struct {
	LocalPlayer          core.PlayerID                 `json:"local_player"`
	Authenticated        bool                          `json:"authenticated"`
	FriendsAuthorization core.FriendsAuthorization     `json:"friends_authorization,omitempty"`
	Players              []core.Player                 `json:"players"`
	Friends              []core.PlayerID               `json:"friends,omitempty"`
	Leaderboards         []core.Leaderboard            `json:"leaderboards"`
	Sets                 []FixtureSet                  `json:"sets,omitempty"`
	Scores               []FixtureScore                `json:"scores,omitempty"`
	Achievements         []core.AchievementDescription `json:"achievements,omitempty"`
	Progress             []core.Achievement            `json:"progress,omitempty"`
	// Avatars holds PNG-encoded photos keyed by player.
	Avatars map[core.PlayerID][]byte `json:"avatars,omitempty"`
}

type FixtureSet struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Leaderboards []string `json:"leaderboards"`
}

type FixtureScore struct {
	Leaderboard string        `json:"leaderboard"`
	Player      core.PlayerID `json:"player"`
	Score       int64         `json:"score"`
	Context     uint64        `json:"context,omitempty"`
	Date        time.Time     `json:"date"`
}

// Seed loads f on top of the current world.
func (p *Platform) Seed(f Fixture) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pl := range f.Players {
		p.players[pl.ID] = pl
	}
	if f.LocalPlayer != "" {
		p.local = f.LocalPlayer
		p.authenticated = f.Authenticated
	}
	if f.FriendsAuthorization != "" {
		p.friendsAuth = f.FriendsAuthorization
	}
	if f.Friends != nil {
		p.friends = append([]core.PlayerID(nil), f.Friends...)
	}
	for _, lb := range f.Leaderboards {
		p.addLeaderboardLocked(lb)
	}
	for _, s := range f.Sets {
		if _, ok := p.sets[s.ID]; !ok {
			p.setOrder = append(p.setOrder, s.ID)
		}
		p.sets[s.ID] = &set{info: core.LeaderboardSet{ID: s.ID, Title: s.Title}, boards: append([]string(nil), s.Leaderboards...)}
	}
	for _, sc := range f.Scores {
		b, ok := p.boards[sc.Leaderboard]
		if !ok {
			return fmt.Errorf("seed score for unknown leaderboard %q", sc.Leaderboard)
		}
		at := sc.Date
		if at.IsZero() {
			at = p.now()
		}
		b.record(submission{player: sc.Player, score: sc.Score, context: sc.Context, at: at})
	}
	for _, d := range f.Achievements {
		if !p.hasDescriptionLocked(d.ID) {
			p.descriptions = append(p.descriptions, d)
		}
	}
	for _, a := range f.Progress {
		p.progress[a.ID] = a
	}
	for id, raw := range f.Avatars {
		img, err := png.Decode(bytes.NewReader(raw))
		if err != nil {
			return fmt.Errorf("decode avatar for %q: %w", id, err)
		}
		p.avatars[id] = img
	}
	return nil
}

// Snapshot captures the current world as a fixture.
func (p *Platform) Snapshot() (Fixture, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f := Fixture{
		LocalPlayer:          p.local,
		Authenticated:        p.authenticated,
		FriendsAuthorization: p.friendsAuth,
		Friends:              append([]core.PlayerID(nil), p.friends...),
		Achievements:         append([]core.AchievementDescription(nil), p.descriptions...),
	}
	for _, pl := range p.players {
		f.Players = append(f.Players, pl)
	}
	sort.Slice(f.Players, func(i, j int) bool { return f.Players[i].ID < f.Players[j].ID })
	for _, id := range p.boardOrder {
		b := p.boards[id]
		f.Leaderboards = append(f.Leaderboards, b.info)
		for _, s := range b.submissions {
			f.Scores = append(f.Scores, FixtureScore{Leaderboard: id, Player: s.player, Score: s.score, Context: s.context, Date: s.at})
		}
	}
	for _, id := range p.setOrder {
		s := p.sets[id]
		f.Sets = append(f.Sets, FixtureSet{ID: id, Title: s.info.Title, Leaderboards: append([]string(nil), s.boards...)})
	}
	for _, d := range p.descriptions {
		if a, ok := p.progress[d.ID]; ok {
			f.Progress = append(f.Progress, a)
		}
	}
	if len(p.avatars) > 0 {
		f.Avatars = make(map[core.PlayerID][]byte, len(p.avatars))
		for id, img := range p.avatars {
			raw, err := encodePNG(img)
			if err != nil {
				return Fixture{}, fmt.Errorf("encode avatar for %q: %w", id, err)
			}
			f.Avatars[id] = raw
		}
	}
	return f, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
