// Package platform defines the social-gaming SDK contract consumed by the bridge.
//
// Every method returns immediately. Completions may run on any goroutine, exactly once.
package platform

import (
	"errors"
	"image"

	"gameservices/core"
)

var (
	ErrUnavailable      = errors.New("social gaming services unavailable")
	ErrNotAuthenticated = errors.New("local player is not authenticated")
	ErrCancelled        = errors.New("cancelled by player")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrNetwork          = errors.New("network error")
)

// EntriesRequest selects a page of a leaderboard. RangeStart is 1-based.
type EntriesRequest struct {
	Players    core.PlayerScope
	Time       core.TimeScope
	RangeStart int
	Length     int
}

// EntriesPage is the platform's answer to an EntriesRequest.
type EntriesPage struct {
	Local            *core.ScoreEntry
	Entries          []core.ScoreEntry
	TotalPlayerCount int
	Window           core.TimeWindow
}

// Leaderboard is a resolved platform leaderboard handle.
type Leaderboard interface {
	Info() core.Leaderboard
	LoadEntries(req EntriesRequest, done func(EntriesPage, error))
}

// LeaderboardSet is a platform grouping of leaderboards.
type LeaderboardSet interface {
	Info() core.LeaderboardSet
	LoadLeaderboards(done func([]Leaderboard, error))
}

// Platform is the account, leaderboard, achievement and social surface of the SDK.
type Platform interface {
	Name() string
	// Available is false where social services do not exist at all.
	Available() bool
	// CanAuthenticate reports an authenticable account without presenting UI.
	CanAuthenticate() bool
	LocalPlayer() (core.Player, bool)
	Authenticate(done func(core.Player, error))

	LoadLeaderboards(ids []string, done func([]Leaderboard, error))
	LoadLeaderboardSets(done func([]LeaderboardSet, error))
	SubmitScore(score int64, context uint64, ids []string, done func(error))

	ReportAchievements(reports []core.AchievementReport, done func(error))
	LoadAchievementDescriptions(done func([]core.AchievementDescription, error))
	LoadAchievements(done func([]core.Achievement, error))
	ResetAchievements(done func(error))

	FriendsAuthorizationStatus(done func(core.FriendsAuthorization, error))
	LoadFriends(done func([]core.Friend, error))
	LoadPhoto(id core.PlayerID, done func(image.Image, error))
}

// Presenter shows native dialogs. dismissed runs once the player closes the view.
type Presenter interface {
	ShowLeaderboard(id string, players core.PlayerScope, time core.TimeScope, dismissed func())
	ShowDashboard(dismissed func())
}
