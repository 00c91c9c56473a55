package core

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// PlayerID uniquely identifies a player on the platform.
type PlayerID string

// PlayerScope selects whose scores a leaderboard query returns.
type PlayerScope int

const (
	PlayersGlobal PlayerScope = iota
	PlayersFriendsOnly
)

// PlayerScopeFromInt maps a script integer onto a scope; unknown values fall back to global.
func PlayerScopeFromInt(v int64) PlayerScope {
	if v == int64(PlayersFriendsOnly) {
		return PlayersFriendsOnly
	}
	return PlayersGlobal
}

func (s PlayerScope) String() string {
	if s == PlayersFriendsOnly {
		return "friends"
	}
	return "global"
}

// TimeScope selects the time window of a leaderboard query.
type TimeScope int

const (
	TimeToday TimeScope = iota
	TimeWeek
	TimeAllTime
)

// TimeScopeFromInt maps a script integer onto a scope; unknown values fall back to all-time.
func TimeScopeFromInt(v int64) TimeScope {
	switch TimeScope(v) {
	case TimeToday:
		return TimeToday
	case TimeWeek:
		return TimeWeek
	default:
		return TimeAllTime
	}
}

func (s TimeScope) String() string {
	switch s {
	case TimeToday:
		return "today"
	case TimeWeek:
		return "week"
	default:
		return "all_time"
	}
}

// Player is the platform's view of an account.
type Player struct {
	ID          PlayerID `json:"id"`
	DisplayName string   `json:"display_name"`
	Alias       string   `json:"alias"`
}

// Friend is a player from the local player's friend list.
type Friend struct {
	Player    `json:"player"`
	HasAvatar bool `json:"has_avatar"`
}

// LeaderboardType distinguishes permanent boards from recurring ones.
type LeaderboardType string

const (
	LeaderboardClassic   LeaderboardType = "classic"
	LeaderboardRecurring LeaderboardType = "recurring"
)

// Leaderboard describes a resolved platform leaderboard.
type Leaderboard struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Type      LeaderboardType `json:"type,omitempty"`
	GroupID   string          `json:"group_id,omitempty"`
	StartDate time.Time       `json:"start_date,omitempty"`
	Duration  time.Duration   `json:"duration,omitempty"`
}

// LeaderboardSet groups leaderboards under one identifier.
type LeaderboardSet struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	GroupID string `json:"group_id,omitempty"`
}

// TimeWindow is the period a page of scores was computed over. Zero for all-time queries.
type TimeWindow struct {
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
}

// WindowFor returns the UTC day or ISO week (Monday start) containing now. All-time yields the zero window.
func WindowFor(scope TimeScope, now time.Time) TimeWindow {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch scope {
	case TimeToday:
		return TimeWindow{Start: day, Duration: 24 * time.Hour}
	case TimeWeek:
		offset := (int(day.Weekday()) + 6) % 7
		return TimeWindow{Start: day.AddDate(0, 0, -offset), Duration: 7 * 24 * time.Hour}
	default:
		return TimeWindow{}
	}
}

// End is the first instant after the window; zero for all-time.
func (w TimeWindow) End() time.Time {
	if w.Start.IsZero() {
		return time.Time{}
	}
	return w.Start.Add(w.Duration)
}

// ScoreEntry is one ranked row of a leaderboard.
type ScoreEntry struct {
	Rank           int       `json:"rank"`
	Score          int64     `json:"score"`
	FormattedScore string    `json:"formatted_score,omitempty"`
	Context        uint64    `json:"context,omitempty"`
	Date           time.Time `json:"date"`
	Player         Player    `json:"player"`
}

// AchievementDescription is the static definition of an achievement.
type AchievementDescription struct {
	ID                    string `json:"id"`
	Title                 string `json:"title"`
	AchievedDescription   string `json:"achieved_description"`
	UnachievedDescription string `json:"unachieved_description"`
	Points                int    `json:"points"`
	Hidden                bool   `json:"hidden"`
	Replayable            bool   `json:"replayable"`
}

// Achievement is the local player's progress on one achievement.
type Achievement struct {
	ID              string    `json:"id"`
	PercentComplete float64   `json:"percent_complete"`
	Completed       bool      `json:"completed"`
	LastReported    time.Time `json:"last_reported"`
}

// AchievementReport is a progress update sent to the platform.
type AchievementReport struct {
	ID              string
	PercentComplete float64
	ShowBanner      bool
}

// FriendsAuthorization is the local player's consent state for friend list access.
type FriendsAuthorization string

const (
	FriendsNotDetermined FriendsAuthorization = "not_determined"
	FriendsRestricted    FriendsAuthorization = "restricted"
	FriendsDenied        FriendsAuthorization = "denied"
	FriendsAuthorized    FriendsAuthorization = "authorized"
)

// PixelFormatRGBA8 is four bytes per pixel, R G B A order, straight alpha.
const PixelFormatRGBA8 = "rgba8"

// PixelBuffer is a portable, engine-ready image.
type PixelBuffer struct {
	Width  int
	Height int
	Stride int
	Format string
	Data   []byte
}

// NormalizePlayerID trims player identifiers. Case is preserved; platform ids are case sensitive.
func NormalizePlayerID(id PlayerID) (PlayerID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty player id")
	}
	return PlayerID(s), nil
}

// ValidateIdentifier ensures a non-empty leaderboard or achievement id with a simple charset check.
func ValidateIdentifier(id string) error {
	s := strings.TrimSpace(id)
	if s == "" {
		return errors.New("empty identifier")
	}
	// reverse-DNS style ids: alnum, dot, dash, underscore
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '-' || r == '_' {
			continue
		}
		return errors.New("invalid identifier")
	}
	return nil
}

// FormatScore renders a score with grouped thousands, e.g. 1234567 -> "1,234,567".
func FormatScore(score int64) string {
	raw := strconv.FormatInt(score, 10)
	sign := ""
	if strings.HasPrefix(raw, "-") {
		sign, raw = "-", raw[1:]
	}
	if len(raw) <= 3 {
		return sign + raw
	}
	var b strings.Builder
	head := len(raw) % 3
	if head > 0 {
		b.WriteString(raw[:head])
	}
	for i := head; i < len(raw); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(raw[i : i+3])
	}
	return sign + b.String()
}
