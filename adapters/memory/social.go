package memory

import (
	"fmt"
	"image"

	"gameservices/core"
	"gameservices/platform"
)

// AddAchievement registers an achievement definition.
func (p *Platform) AddAchievement(d core.AchievementDescription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.descriptions {
		if existing.ID == d.ID {
			p.descriptions[i] = d
			return
		}
	}
	p.descriptions = append(p.descriptions, d)
}

// Progress returns the local player's progress on id.
func (p *Platform) Progress(id string) (core.Achievement, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.progress[id]
	return a, ok
}

func (p *Platform) ReportAchievements(reports []core.AchievementReport, done func(error)) {
	p.async(func() {
		p.mu.Lock()
		err := p.guardLocked()
		if err == nil {
			for _, r := range reports {
				if !p.hasDescriptionLocked(r.ID) {
					err = fmt.Errorf("achievement %q: %w", r.ID, platform.ErrNotFound)
					break
				}
			}
		}
		if err == nil {
			now := p.now()
			for _, r := range reports {
				a := p.progress[r.ID]
				a.ID = r.ID
				// progress never goes backwards
				if r.PercentComplete > a.PercentComplete {
					a.PercentComplete = r.PercentComplete
				}
				a.Completed = a.PercentComplete >= 100
				a.LastReported = now
				p.progress[r.ID] = a
			}
		}
		p.mu.Unlock()
		done(err)
	})
}

func (p *Platform) hasDescriptionLocked(id string) bool {
	for _, d := range p.descriptions {
		if d.ID == id {
			return true
		}
	}
	return false
}

func (p *Platform) LoadAchievementDescriptions(done func([]core.AchievementDescription, error)) {
	p.async(func() {
		p.mu.RLock()
		err := p.guardLocked()
		var out []core.AchievementDescription
		if err == nil {
			out = append(out, p.descriptions...)
		}
		p.mu.RUnlock()
		done(out, err)
	})
}

func (p *Platform) LoadAchievements(done func([]core.Achievement, error)) {
	p.async(func() {
		p.mu.RLock()
		err := p.guardLocked()
		var out []core.Achievement
		if err == nil {
			for _, d := range p.descriptions {
				if a, ok := p.progress[d.ID]; ok {
					out = append(out, a)
				}
			}
		}
		p.mu.RUnlock()
		done(out, err)
	})
}

func (p *Platform) ResetAchievements(done func(error)) {
	p.async(func() {
		p.mu.Lock()
		err := p.guardLocked()
		if err == nil {
			p.progress = map[string]core.Achievement{}
		}
		p.mu.Unlock()
		done(err)
	})
}

// SetFriendsAuthorization changes the consent state reported to the bridge.
func (p *Platform) SetFriendsAuthorization(status core.FriendsAuthorization) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.friendsAuth = status
}

// SetFriends replaces the local player's friend list.
func (p *Platform) SetFriends(ids ...core.PlayerID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.friends = append([]core.PlayerID(nil), ids...)
}

// SetAvatar stores a player's photo; nil removes it.
func (p *Platform) SetAvatar(id core.PlayerID, img image.Image) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if img == nil {
		delete(p.avatars, id)
		return
	}
	p.avatars[id] = img
}

func (p *Platform) FriendsAuthorizationStatus(done func(core.FriendsAuthorization, error)) {
	p.async(func() {
		p.mu.RLock()
		err := p.guardLocked()
		status := p.friendsAuth
		p.mu.RUnlock()
		done(status, err)
	})
}

func (p *Platform) LoadFriends(done func([]core.Friend, error)) {
	p.async(func() {
		p.mu.RLock()
		err := p.guardLocked()
		if err == nil && p.friendsAuth != core.FriendsAuthorized {
			err = fmt.Errorf("friends list: %w", platform.ErrPermissionDenied)
		}
		var out []core.Friend
		if err == nil {
			for _, id := range p.friends {
				_, hasAvatar := p.avatars[id]
				out = append(out, core.Friend{Player: p.playerLocked(id), HasAvatar: hasAvatar})
			}
		}
		p.mu.RUnlock()
		done(out, err)
	})
}

func (p *Platform) LoadPhoto(id core.PlayerID, done func(image.Image, error)) {
	p.async(func() {
		p.mu.RLock()
		err := p.guardLocked()
		img, ok := p.avatars[id]
		if err == nil && !ok {
			err = fmt.Errorf("photo for %q: %w", id, platform.ErrNotFound)
		}
		p.mu.RUnlock()
		done(img, err)
	})
}

// ShowLeaderboard records the view and dismisses it after the configured latency.
func (p *Platform) ShowLeaderboard(id string, players core.PlayerScope, time core.TimeScope, dismissed func()) {
	p.mu.Lock()
	p.shown = append(p.shown, fmt.Sprintf("leaderboard:%s:%s:%s", id, players, time))
	p.mu.Unlock()
	p.async(dismissed)
}

func (p *Platform) ShowDashboard(dismissed func()) {
	p.mu.Lock()
	p.shown = append(p.shown, "dashboard")
	p.mu.Unlock()
	p.async(dismissed)
}

// ShownViews lists presented views in order.
func (p *Platform) ShownViews() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.shown...)
}
