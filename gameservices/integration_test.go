package gameservices

import (
	"fmt"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gameservices/adapters/memory"
	"gameservices/core"
	"gameservices/engine"
)

var simulatedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

// waitFor ticks the loop until n signals of typ have arrived.
func waitFor(t *testing.T, loop *engine.MainLoop, rec *recorder, typ core.EventType, n int) []core.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		loop.Tick()
		if evs := rec.of(typ); len(evs) >= n {
			return evs
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d %s signals, got %d", n, typ, len(rec.of(typ)))
		}
		time.Sleep(time.Millisecond)
	}
}

func newSimulated(t *testing.T) (*memory.Platform, *Service, *engine.MainLoop, *recorder) {
	t.Helper()
	mp := memory.New(
		memory.WithLocalPlayer(core.Player{ID: "p00", DisplayName: "Local"}),
		memory.WithClock(func() time.Time { return simulatedNow }),
	)
	mp.AddLeaderboard(core.Leaderboard{ID: "global", Title: "Global"})
	for i := 1; i <= 25; i++ {
		id := core.PlayerID(fmt.Sprintf("p%02d", i))
		mp.AddPlayer(core.Player{ID: id, DisplayName: fmt.Sprintf("Player %d", i)})
		require.NoError(t, mp.RecordScore("global", id, int64(i*10), 0, simulatedNow.Add(-time.Duration(i)*time.Minute)))
	}
	s, loop, rec := newTestService(t, mp)
	t.Cleanup(mp.Close)

	s.SignIn()
	ev := waitFor(t, loop, rec, core.EventSignInCompleted, 1)[0]
	require.Equal(t, true, ev.Payload["success"])
	return mp, s, loop, rec
}

func TestPagingThroughSimulatedLeaderboard(t *testing.T) {
	_, s, loop, rec := newSimulated(t)

	s.FetchTopScores("global", 10, core.PlayersGlobal, core.TimeAllTime, 1)
	waitFor(t, loop, rec, core.EventLeaderboardScoresLoaded, 1)
	require.Nil(t, s.FetchNextScores())
	waitFor(t, loop, rec, core.EventLeaderboardScoresLoaded, 2)
	require.Nil(t, s.FetchNextScores())
	pages := waitFor(t, loop, rec, core.EventLeaderboardScoresLoaded, 3)

	var ranks []int
	for i, page := range pages {
		assert.Equal(t, pages[0].Payload["token"], page.Payload["token"])
		assert.Equal(t, 25, page.Payload["players_count"])
		assert.Equal(t, 1+10*i, page.Payload["range_start"])
		for _, sc := range page.Payload["scores"].([]core.Dictionary) {
			ranks = append(ranks, sc["rank"].(int))
		}
	}
	want := make([]int, 25)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, ranks)
	assert.Len(t, pages[2].Payload["scores"], 5)

	top := pages[0].Payload["scores"].([]core.Dictionary)[0]
	assert.Equal(t, "p25", top["player_id"])
	assert.Equal(t, int64(250), top["score"])
	assert.Nil(t, pages[0].Payload["local_player_score"], "local player has not submitted")
}

func TestSubmittedScoreShowsUpForLocalPlayer(t *testing.T) {
	_, s, loop, rec := newSimulated(t)

	s.SubmitScore("global", 1000, 3)
	ev := waitFor(t, loop, rec, core.EventScoreSubmitted, 1)[0]
	require.Equal(t, true, ev.Payload["success"])

	s.FetchTopScores("global", 5, core.PlayersGlobal, core.TimeToday, 1)
	page := waitFor(t, loop, rec, core.EventLeaderboardScoresLoaded, 1)[0]
	local := page.Payload["local_player_score"].(core.Dictionary)
	assert.Equal(t, 1, local["rank"])
	assert.Equal(t, uint64(3), local["context"])
	assert.Equal(t, simulatedNow.Truncate(24*time.Hour).Unix(), page.Payload["window_start"])
	assert.Equal(t, int64(24*60*60), page.Payload["window_duration"])
	first := page.Payload["scores"].([]core.Dictionary)[0]
	assert.Equal(t, true, first["is_local_player"])
	assert.Equal(t, "1,000", first["formatted_score"])

	s.SubmitScore("missing", 1, 0)
	ev = waitFor(t, loop, rec, core.EventScoreSubmitted, 2)[1]
	assert.Equal(t, "not_found", errorCode(t, ev))
}

func TestSimulatedAchievementsAndFriends(t *testing.T) {
	mp, s, loop, rec := newSimulated(t)
	mp.AddAchievement(core.AchievementDescription{ID: "first_win", Title: "First win", Points: 10})
	mp.SetFriendsAuthorization(core.FriendsAuthorized)
	mp.SetFriends("p03", "p07")
	avatar := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	avatar.SetNRGBA(0, 0, color.NRGBA{R: 9, G: 8, B: 7, A: 6})
	mp.SetAvatar("p07", avatar)

	require.Nil(t, s.AwardAchievement(core.Dictionary{"identifier": "first_win", "percent_complete": 40}))
	waitFor(t, loop, rec, core.EventAchievementAwarded, 1)
	s.RequestAchievements()
	progress := waitFor(t, loop, rec, core.EventAchievementsLoaded, 1)[0].Payload["achievements"].([]core.Dictionary)
	require.Len(t, progress, 1)
	assert.Equal(t, 40.0, progress[0]["percent_complete"])
	assert.Equal(t, false, progress[0]["is_completed"])

	s.LoadFriends()
	waitFor(t, loop, rec, core.EventFriendsLoaded, 1)
	assert.Equal(t, []core.PlayerID{"p03", "p07"}, s.FriendIDs())

	require.Nil(t, s.FetchFriendAvatar("p07"))
	ev := waitFor(t, loop, rec, core.EventFriendAvatarLoaded, 1)[0]
	buf := ev.Payload["image"].(core.Dictionary)
	assert.Equal(t, 4, buf["width"])
	assert.Equal(t, 2, buf["height"])
	assert.Equal(t, []byte{9, 8, 7, 6}, buf["data"].([]byte)[:4])

	require.Nil(t, s.FetchFriendAvatar("p03"))
	ev = waitFor(t, loop, rec, core.EventFriendAvatarLoaded, 2)[1]
	assert.Equal(t, "not_found", errorCode(t, ev))
}
