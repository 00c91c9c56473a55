package redis

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gameservices/adapters/memory"
	"gameservices/core"
	"gameservices/platform"
)

var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

// newTestPlatform spins up a miniredis server and returns a signed-out platform for "me".
func newTestPlatform(t *testing.T) (*Platform, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	p := NewWithClient(client, WithLocalPlayer("me"), WithClock(func() time.Time { return fixedNow }))
	t.Cleanup(func() { _ = p.Close() })
	return p, mr
}

func signIn(t *testing.T, p *Platform) core.Player {
	t.Helper()
	type result struct {
		pl  core.Player
		err error
	}
	ch := make(chan result, 1)
	p.Authenticate(func(pl core.Player, err error) { ch <- result{pl, err} })
	r := <-ch
	require.NoError(t, r.err)
	return r.pl
}

func loadEntries(t *testing.T, p *Platform, id string, req platform.EntriesRequest) (platform.EntriesPage, error) {
	t.Helper()
	type result struct {
		page platform.EntriesPage
		err  error
	}
	ch := make(chan result, 1)
	handle{p: p, info: core.Leaderboard{ID: id}}.LoadEntries(req, func(page platform.EntriesPage, err error) { ch <- result{page, err} })
	r := <-ch
	return r.page, r.err
}

func TestAuthenticateLoadsPlayer(t *testing.T) {
	p, _ := newTestPlatform(t)
	ctx := context.Background()
	require.NoError(t, p.AddPlayer(ctx, core.Player{ID: "me", DisplayName: "Me", Alias: "m"}))

	_, ok := p.LocalPlayer()
	assert.False(t, ok)

	pl := signIn(t, p)
	assert.Equal(t, "Me", pl.DisplayName)
	local, ok := p.LocalPlayer()
	assert.True(t, ok)
	assert.Equal(t, "m", local.Alias)
}

func TestCallsRequireSignIn(t *testing.T) {
	p, _ := newTestPlatform(t)
	ch := make(chan error, 1)
	p.ResetAchievements(func(err error) { ch <- err })
	assert.ErrorIs(t, <-ch, platform.ErrNotAuthenticated)
}

func TestNetworkErrorsAreClassified(t *testing.T) {
	p, mr := newTestPlatform(t)
	signIn(t, p)
	mr.Close()

	ch := make(chan error, 1)
	p.ResetAchievements(func(err error) { ch <- err })
	assert.ErrorIs(t, <-ch, platform.ErrNetwork)
}

func TestConnectRetriesUntilBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 50 * time.Millisecond
	cfg.ConnectTimeout = 300 * time.Millisecond
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	p, err := New(context.Background(), cfg, WithName("Cloud"))
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, "Cloud", p.Name())
	assert.True(t, p.Available())
}

func TestSubmitKeepsBestScore(t *testing.T) {
	p, mr := newTestPlatform(t)
	ctx := context.Background()
	require.NoError(t, p.AddLeaderboard(ctx, core.Leaderboard{ID: "lb", Title: "Main", Duration: time.Hour}))
	require.NoError(t, p.AddPlayer(ctx, core.Player{ID: "bob", DisplayName: "Bob"}))
	require.NoError(t, p.RecordScore(ctx, "lb", "bob", 500, 7, fixedNow.Add(-time.Hour)))
	signIn(t, p)

	ch := make(chan error, 1)
	p.SubmitScore(300, 1, []string{"lb"}, func(err error) { ch <- err })
	require.NoError(t, <-ch)
	p.SubmitScore(100, 2, []string{"lb"}, func(err error) { ch <- err })
	require.NoError(t, <-ch)

	score, err := mr.ZScore("gs:lb:lb:all", "me")
	require.NoError(t, err)
	assert.Equal(t, 300.0, score)
	assert.True(t, mr.Exists("gs:lb:lb:day:2026-10-14"))
	assert.True(t, mr.Exists("gs:lb:lb:week:2026-42"))
	assert.Greater(t, mr.TTL("gs:lb:lb:day:2026-10-14"), time.Duration(0))

	page, err := loadEntries(t, p, "lb", platform.EntriesRequest{Time: core.TimeAllTime, RangeStart: 1, Length: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalPlayerCount)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, "Bob", page.Entries[0].Player.DisplayName)
	assert.Equal(t, uint64(7), page.Entries[0].Context)
	assert.Equal(t, fixedNow.Add(-time.Hour), page.Entries[0].Date)
	assert.Equal(t, "500", page.Entries[0].FormattedScore)
	require.NotNil(t, page.Local)
	assert.Equal(t, 2, page.Local.Rank)
	assert.Equal(t, uint64(1), page.Local.Context)

	p.SubmitScore(1, 0, []string{"missing"}, func(err error) { ch <- err })
	assert.ErrorIs(t, <-ch, platform.ErrNotFound)
}

func TestEntriesWindowsAndPaging(t *testing.T) {
	p, _ := newTestPlatform(t)
	ctx := context.Background()
	require.NoError(t, p.AddLeaderboard(ctx, core.Leaderboard{ID: "lb"}))
	require.NoError(t, p.RecordScore(ctx, "lb", "a", 10, 0, fixedNow.Add(-10*24*time.Hour)))
	require.NoError(t, p.RecordScore(ctx, "lb", "b", 20, 0, fixedNow.Add(-2*24*time.Hour)))
	require.NoError(t, p.RecordScore(ctx, "lb", "c", 30, 0, fixedNow.Add(-time.Hour)))
	signIn(t, p)

	page, err := loadEntries(t, p, "lb", platform.EntriesRequest{Time: core.TimeAllTime, RangeStart: 2, Length: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalPlayerCount)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, core.PlayerID("b"), page.Entries[0].Player.ID)
	assert.Equal(t, 2, page.Entries[0].Rank)
	assert.Nil(t, page.Local)

	page, err = loadEntries(t, p, "lb", platform.EntriesRequest{Time: core.TimeWeek, RangeStart: 1, Length: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalPlayerCount)

	page, err = loadEntries(t, p, "lb", platform.EntriesRequest{Time: core.TimeToday, RangeStart: 1, Length: 10})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, core.PlayerID("c"), page.Entries[0].Player.ID)

	_, err = loadEntries(t, p, "ghost", platform.EntriesRequest{Time: core.TimeAllTime, RangeStart: 1, Length: 10})
	assert.ErrorIs(t, err, platform.ErrNotFound)
}

func TestFriendsScope(t *testing.T) {
	p, _ := newTestPlatform(t)
	ctx := context.Background()
	require.NoError(t, p.AddLeaderboard(ctx, core.Leaderboard{ID: "lb"}))
	require.NoError(t, p.RecordScore(ctx, "lb", "friend", 10, 0, fixedNow))
	require.NoError(t, p.RecordScore(ctx, "lb", "stranger", 99, 0, fixedNow))
	require.NoError(t, p.RecordScore(ctx, "lb", "me", 5, 0, fixedNow))
	require.NoError(t, p.SetFriends(ctx, "friend"))
	signIn(t, p)

	req := platform.EntriesRequest{Players: core.PlayersFriendsOnly, Time: core.TimeAllTime, RangeStart: 1, Length: 10}
	_, err := loadEntries(t, p, "lb", req)
	assert.ErrorIs(t, err, platform.ErrPermissionDenied)

	require.NoError(t, p.SetFriendsAuthorization(ctx, core.FriendsAuthorized))
	page, err := loadEntries(t, p, "lb", req)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalPlayerCount)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, core.PlayerID("friend"), page.Entries[0].Player.ID)
	require.NotNil(t, page.Local)
	assert.Equal(t, 2, page.Local.Rank)
}

func TestLoadLeaderboardsAndSets(t *testing.T) {
	p, _ := newTestPlatform(t)
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, p.AddLeaderboard(ctx, core.Leaderboard{ID: "a", Title: "A"}))
	require.NoError(t, p.AddLeaderboard(ctx, core.Leaderboard{ID: "b", Title: "B", Type: core.LeaderboardRecurring, StartDate: start, Duration: 24 * time.Hour}))
	require.NoError(t, p.AddSet(ctx, core.LeaderboardSet{ID: "s", Title: "Season"}, "b", "ghost"))
	signIn(t, p)

	ch := make(chan []platform.Leaderboard, 1)
	p.LoadLeaderboards([]string{"b", "missing"}, func(lbs []platform.Leaderboard, err error) {
		assert.NoError(t, err)
		ch <- lbs
	})
	lbs := <-ch
	require.Len(t, lbs, 1)
	info := lbs[0].Info()
	assert.Equal(t, core.LeaderboardRecurring, info.Type)
	assert.Equal(t, start, info.StartDate)
	assert.Equal(t, 24*time.Hour, info.Duration)

	p.LoadLeaderboards(nil, func(lbs []platform.Leaderboard, err error) { ch <- lbs })
	assert.Len(t, <-ch, 2)

	setCh := make(chan []platform.LeaderboardSet, 1)
	p.LoadLeaderboardSets(func(sets []platform.LeaderboardSet, err error) { setCh <- sets })
	sets := <-setCh
	require.Len(t, sets, 1)
	assert.Equal(t, "Season", sets[0].Info().Title)
	sets[0].LoadLeaderboards(func(lbs []platform.Leaderboard, err error) { ch <- lbs })
	inSet := <-ch
	require.Len(t, inSet, 1)
	assert.Equal(t, "b", inSet[0].Info().ID)
}

func TestAchievements(t *testing.T) {
	p, _ := newTestPlatform(t)
	ctx := context.Background()
	require.NoError(t, p.AddAchievement(ctx, core.AchievementDescription{ID: "first", Title: "First", Points: 10}))
	signIn(t, p)

	ch := make(chan error, 1)
	p.ReportAchievements([]core.AchievementReport{{ID: "first", PercentComplete: 60}}, func(err error) { ch <- err })
	require.NoError(t, <-ch)
	p.ReportAchievements([]core.AchievementReport{{ID: "first", PercentComplete: 20}}, func(err error) { ch <- err })
	require.NoError(t, <-ch)

	listCh := make(chan []core.Achievement, 1)
	p.LoadAchievements(func(as []core.Achievement, err error) {
		assert.NoError(t, err)
		listCh <- as
	})
	as := <-listCh
	require.Len(t, as, 1)
	assert.Equal(t, 60.0, as[0].PercentComplete)
	assert.False(t, as[0].Completed)
	assert.Equal(t, fixedNow, as[0].LastReported)

	p.ReportAchievements([]core.AchievementReport{{ID: "nope", PercentComplete: 100}}, func(err error) { ch <- err })
	assert.ErrorIs(t, <-ch, platform.ErrNotFound)

	descCh := make(chan []core.AchievementDescription, 1)
	p.LoadAchievementDescriptions(func(ds []core.AchievementDescription, err error) { descCh <- ds })
	ds := <-descCh
	require.Len(t, ds, 1)
	assert.Equal(t, 10, ds[0].Points)

	p.ResetAchievements(func(err error) { ch <- err })
	require.NoError(t, <-ch)
	p.LoadAchievements(func(as []core.Achievement, err error) { listCh <- as })
	assert.Empty(t, <-listCh)
}

func TestFriendsAndPhotos(t *testing.T) {
	p, _ := newTestPlatform(t)
	ctx := context.Background()
	require.NoError(t, p.AddPlayer(ctx, core.Player{ID: "f1", DisplayName: "Friend"}))
	require.NoError(t, p.SetFriends(ctx, "f2", "f1"))
	avatar := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	avatar.SetNRGBA(1, 0, color.NRGBA{R: 9, G: 8, B: 7, A: 255})
	require.NoError(t, p.SetAvatar(ctx, "f1", avatar))
	signIn(t, p)

	statusCh := make(chan core.FriendsAuthorization, 1)
	p.FriendsAuthorizationStatus(func(s core.FriendsAuthorization, err error) { statusCh <- s })
	assert.Equal(t, core.FriendsNotDetermined, <-statusCh)

	errCh := make(chan error, 1)
	p.LoadFriends(func(_ []core.Friend, err error) { errCh <- err })
	assert.ErrorIs(t, <-errCh, platform.ErrPermissionDenied)

	require.NoError(t, p.SetFriendsAuthorization(ctx, core.FriendsAuthorized))
	friendsCh := make(chan []core.Friend, 1)
	p.LoadFriends(func(fs []core.Friend, err error) {
		assert.NoError(t, err)
		friendsCh <- fs
	})
	fs := <-friendsCh
	require.Len(t, fs, 2)
	assert.Equal(t, "Friend", fs[0].DisplayName)
	assert.True(t, fs[0].HasAvatar)
	assert.False(t, fs[1].HasAvatar)

	imgCh := make(chan image.Image, 1)
	p.LoadPhoto("f1", func(img image.Image, err error) {
		assert.NoError(t, err)
		imgCh <- img
	})
	img := <-imgCh
	require.NotNil(t, img)
	r, g, b, a := img.At(1, 0).RGBA()
	assert.Equal(t, []uint32{9, 8, 7, 255}, []uint32{r >> 8, g >> 8, b >> 8, a >> 8})

	p.LoadPhoto("f2", func(_ image.Image, err error) { errCh <- err })
	assert.ErrorIs(t, <-errCh, platform.ErrNotFound)
}

func TestSeedFromFixture(t *testing.T) {
	p, _ := newTestPlatform(t)
	ctx := context.Background()
	require.NoError(t, p.Seed(ctx, memory.Fixture{
		Players:              []core.Player{{ID: "me", DisplayName: "Me"}, {ID: "bob", DisplayName: "Bob"}},
		FriendsAuthorization: core.FriendsAuthorized,
		Friends:              []core.PlayerID{"bob"},
		Leaderboards:         []core.Leaderboard{{ID: "lb", Title: "Main"}},
		Sets:                 []memory.FixtureSet{{ID: "s", Title: "S", Leaderboards: []string{"lb"}}},
		Scores:               []memory.FixtureScore{{Leaderboard: "lb", Player: "bob", Score: 42, Date: fixedNow}},
		Achievements:         []core.AchievementDescription{{ID: "a1", Title: "A1"}},
		Progress:             []core.Achievement{{ID: "a1", PercentComplete: 50}},
	}))
	signIn(t, p)

	page, err := loadEntries(t, p, "lb", platform.EntriesRequest{Players: core.PlayersFriendsOnly, Time: core.TimeAllTime, RangeStart: 1, Length: 5})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, int64(42), page.Entries[0].Score)

	listCh := make(chan []core.Achievement, 1)
	p.LoadAchievements(func(as []core.Achievement, err error) { listCh <- as })
	as := <-listCh
	require.Len(t, as, 1)
	assert.Equal(t, 50.0, as[0].PercentComplete)
}

func TestScoreKey(t *testing.T) {
	w := core.WindowFor(core.TimeWeek, fixedNow)
	assert.Equal(t, "gs:lb:x:week:2026-42", scoreKey("x", core.TimeWeek, w))
	assert.Equal(t, "gs:lb:x:day:2026-10-14", scoreKey("x", core.TimeToday, core.WindowFor(core.TimeToday, fixedNow)))
	assert.Equal(t, "gs:lb:x:all", scoreKey("x", core.TimeAllTime, core.TimeWindow{}))
}

func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, "localhost:6379", config.Addr)
	assert.Equal(t, 10, config.PoolSize)
	assert.Equal(t, 5*time.Second, config.DialTimeout)
	assert.Equal(t, 15*time.Second, config.ConnectTimeout)
	assert.Equal(t, 24*time.Hour, config.WindowRetention)
}
