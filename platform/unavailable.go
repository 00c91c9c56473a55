package platform

import (
	"image"

	"gameservices/core"
)

// Unavailable is the platform used where social services do not exist.
// Completions fire synchronously with ErrUnavailable.
type Unavailable struct{}

func (Unavailable) Name() string                    { return "Unavailable" }
func (Unavailable) Available() bool                 { return false }
func (Unavailable) CanAuthenticate() bool           { return false }
func (Unavailable) LocalPlayer() (core.Player, bool) { return core.Player{}, false }

func (Unavailable) Authenticate(done func(core.Player, error)) { done(core.Player{}, ErrUnavailable) }

func (Unavailable) LoadLeaderboards(_ []string, done func([]Leaderboard, error)) {
	done(nil, ErrUnavailable)
}

func (Unavailable) LoadLeaderboardSets(done func([]LeaderboardSet, error)) { done(nil, ErrUnavailable) }

func (Unavailable) SubmitScore(_ int64, _ uint64, _ []string, done func(error)) { done(ErrUnavailable) }

func (Unavailable) ReportAchievements(_ []core.AchievementReport, done func(error)) {
	done(ErrUnavailable)
}

func (Unavailable) LoadAchievementDescriptions(done func([]core.AchievementDescription, error)) {
	done(nil, ErrUnavailable)
}

func (Unavailable) LoadAchievements(done func([]core.Achievement, error)) { done(nil, ErrUnavailable) }

func (Unavailable) ResetAchievements(done func(error)) { done(ErrUnavailable) }

func (Unavailable) FriendsAuthorizationStatus(done func(core.FriendsAuthorization, error)) {
	done(core.FriendsRestricted, ErrUnavailable)
}

func (Unavailable) LoadFriends(done func([]core.Friend, error)) { done(nil, ErrUnavailable) }

func (Unavailable) LoadPhoto(_ core.PlayerID, done func(image.Image, error)) { done(nil, ErrUnavailable) }

// ShowLeaderboard dismisses immediately.
func (Unavailable) ShowLeaderboard(_ string, _ core.PlayerScope, _ core.TimeScope, dismissed func()) {
	dismissed()
}

func (Unavailable) ShowDashboard(dismissed func()) { dismissed() }

var (
	_ Platform  = Unavailable{}
	_ Presenter = Unavailable{}
)
