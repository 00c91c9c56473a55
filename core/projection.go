package core

import (
	"time"

	"github.com/samber/lo"
)

// Dictionary is the engine-native key/value record every outward result is flattened into.
type Dictionary = map[string]any

// PlayerDict projects a player. Display name falls back to alias, then id.
func PlayerDict(p Player) Dictionary {
	return Dictionary{
		"id":           string(p.ID),
		"display_name": displayName(p),
		"alias":        p.Alias,
	}
}

// LeaderboardDict projects a leaderboard.
func LeaderboardDict(lb Leaderboard) Dictionary {
	typ := lb.Type
	if typ == "" {
		typ = LeaderboardClassic
	}
	return Dictionary{
		"id":         lb.ID,
		"title":      lb.Title,
		"type":       string(typ),
		"group_id":   lb.GroupID,
		"start_date": unixOrZero(lb.StartDate),
		"duration":   int64(lb.Duration / time.Second),
	}
}

// ScoreDict projects a score entry; forLocal marks the authenticated player's own row.
func ScoreDict(e ScoreEntry, forLocal bool) Dictionary {
	formatted := e.FormattedScore
	if formatted == "" {
		formatted = FormatScore(e.Score)
	}
	return Dictionary{
		"rank":            e.Rank,
		"score":           e.Score,
		"formatted_score": formatted,
		"context":         e.Context,
		"date":            unixOrZero(e.Date),
		"player_id":       string(e.Player.ID),
		"display_name":    displayName(e.Player),
		"alias":           e.Player.Alias,
		"is_local_player": forLocal,
	}
}

// ScoreDicts projects entries, flagging rows that belong to local.
func ScoreDicts(entries []ScoreEntry, local PlayerID) []Dictionary {
	return lo.Map(entries, func(e ScoreEntry, _ int) Dictionary {
		return ScoreDict(e, local != "" && e.Player.ID == local)
	})
}

// AchievementDescriptionDict projects an achievement definition.
// description carries the text a player sees before unlocking.
func AchievementDescriptionDict(d AchievementDescription) Dictionary {
	return Dictionary{
		"identifier":           d.ID,
		"title":                d.Title,
		"description":          d.UnachievedDescription,
		"achieved_description": d.AchievedDescription,
		"points":               d.Points,
		"is_hidden":            d.Hidden,
		"is_replayable":        d.Replayable,
	}
}

// AchievementDict projects achievement progress.
func AchievementDict(a Achievement) Dictionary {
	return Dictionary{
		"identifier":         a.ID,
		"percent_complete":   a.PercentComplete,
		"is_completed":       a.Completed || a.PercentComplete >= 100,
		"last_reported_date": unixOrZero(a.LastReported),
	}
}

// FriendDict projects a friend record.
func FriendDict(f Friend) Dictionary {
	d := PlayerDict(f.Player)
	d["has_avatar"] = f.HasAvatar
	return d
}

// PixelBufferDict projects a converted image.
func PixelBufferDict(b PixelBuffer) Dictionary {
	return Dictionary{
		"width":  b.Width,
		"height": b.Height,
		"stride": b.Stride,
		"format": b.Format,
		"data":   b.Data,
	}
}

func displayName(p Player) string {
	switch {
	case p.DisplayName != "":
		return p.DisplayName
	case p.Alias != "":
		return p.Alias
	default:
		return string(p.ID)
	}
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
