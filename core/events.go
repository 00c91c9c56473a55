package core

import "time"

// EventType enumerates the signals emitted to the scripting layer.
type EventType string

const (
	EventSignInCompleted               EventType = "sign_in_completed"
	EventLeaderboardScoresLoaded       EventType = "leaderboard_scores_loaded"
	EventLeaderboardScoresFailed       EventType = "leaderboard_scores_failed"
	EventScoreSubmitted                EventType = "score_submitted"
	EventLeaderboardViewDismissed      EventType = "leaderboard_view_dismissed"
	EventAchievementDescriptionsLoaded EventType = "achievement_descriptions_loaded"
	EventAchievementsLoaded            EventType = "achievements_loaded"
	EventAchievementAwarded            EventType = "achievement_awarded"
	EventAchievementsReset             EventType = "achievements_reset"
	EventFriendsAuthorizationStatus    EventType = "friends_authorization_status"
	EventFriendsLoaded                 EventType = "friends_loaded"
	EventFriendsLoadFailed             EventType = "friends_load_failed"
	EventFriendAvatarLoaded            EventType = "friend_avatar_loaded"
)

// AllEventTypes lists the full signal catalogue in registration order.
var AllEventTypes = []EventType{
	EventSignInCompleted,
	EventLeaderboardScoresLoaded,
	EventLeaderboardScoresFailed,
	EventScoreSubmitted,
	EventLeaderboardViewDismissed,
	EventAchievementDescriptionsLoaded,
	EventAchievementsLoaded,
	EventAchievementAwarded,
	EventAchievementsReset,
	EventFriendsAuthorizationStatus,
	EventFriendsLoaded,
	EventFriendsLoadFailed,
	EventFriendAvatarLoaded,
}

// KnownEventType reports whether t is part of the catalogue.
func KnownEventType(t EventType) bool {
	for _, known := range AllEventTypes {
		if known == t {
			return true
		}
	}
	return false
}

// Event is an immutable signal emission.
type Event struct {
	Type    EventType  `json:"type"`
	Time    time.Time  `json:"time"`
	Payload Dictionary `json:"payload"`
}

// NewEvent stamps a signal with the current time.
func NewEvent(typ EventType, payload Dictionary) Event {
	if payload == nil {
		payload = Dictionary{}
	}
	return Event{Type: typ, Time: time.Now().UTC(), Payload: payload}
}
