package gameservices

import (
	"context"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"gameservices/core"
	"gameservices/engine"
	"gameservices/platform"
)

type pendingEntries struct {
	board string
	req   platform.EntriesRequest
	done  func(platform.EntriesPage, error)
}

type fakeBoard struct {
	f    *fakePlatform
	info core.Leaderboard
}

func (b *fakeBoard) Info() core.Leaderboard { return b.info }

func (b *fakeBoard) LoadEntries(req platform.EntriesRequest, done func(platform.EntriesPage, error)) {
	b.f.mu.Lock()
	defer b.f.mu.Unlock()
	b.f.entries = append(b.f.entries, pendingEntries{board: b.info.ID, req: req, done: done})
}

type fakeSet struct {
	info   core.LeaderboardSet
	boards []platform.Leaderboard
}

func (s *fakeSet) Info() core.LeaderboardSet { return s.info }

func (s *fakeSet) LoadLeaderboards(done func([]platform.Leaderboard, error)) { done(s.boards, nil) }

// fakePlatform completes synchronously except for LoadEntries, which tests complete by hand.
type fakePlatform struct {
	mu sync.Mutex

	signedIn   *core.Player
	authPlayer core.Player
	authErr    error

	boards    map[string]*fakeBoard
	sets      []platform.LeaderboardSet
	lookupErr error
	entries   []pendingEntries

	submitErr   error
	submissions []string
	reports     []core.AchievementReport
	reportErr   error

	descriptions []core.AchievementDescription
	progress     []core.Achievement
	resetErr     error

	friendsAuth core.FriendsAuthorization
	friends     []core.Friend
	friendsErr  error
	photos      map[core.PlayerID]image.Image

	calls map[string]int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		authPlayer:  core.Player{ID: "me", DisplayName: "Me", Alias: "me_alias"},
		boards:      map[string]*fakeBoard{},
		photos:      map[core.PlayerID]image.Image{},
		friendsAuth: core.FriendsAuthorized,
		calls:       map[string]int{},
	}
}

func (f *fakePlatform) addBoard(info core.Leaderboard) *fakeBoard {
	b := &fakeBoard{f: f, info: info}
	f.boards[info.ID] = b
	return b
}

func (f *fakePlatform) called(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakePlatform) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakePlatform) pending() []pendingEntries {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pendingEntries(nil), f.entries...)
}

func (f *fakePlatform) Name() string          { return "Fake" }
func (f *fakePlatform) Available() bool       { return true }
func (f *fakePlatform) CanAuthenticate() bool { return f.authErr == nil }

func (f *fakePlatform) LocalPlayer() (core.Player, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signedIn == nil {
		return core.Player{}, false
	}
	return *f.signedIn, true
}

func (f *fakePlatform) Authenticate(done func(core.Player, error)) {
	f.called("authenticate")
	if f.authErr != nil {
		done(core.Player{}, f.authErr)
		return
	}
	f.mu.Lock()
	pl := f.authPlayer
	f.signedIn = &pl
	f.mu.Unlock()
	done(pl, nil)
}

func (f *fakePlatform) LoadLeaderboards(ids []string, done func([]platform.Leaderboard, error)) {
	f.called("load_leaderboards")
	if f.lookupErr != nil {
		done(nil, f.lookupErr)
		return
	}
	var out []platform.Leaderboard
	for _, id := range ids {
		if b, ok := f.boards[id]; ok {
			out = append(out, b)
		}
	}
	done(out, nil)
}

func (f *fakePlatform) LoadLeaderboardSets(done func([]platform.LeaderboardSet, error)) {
	f.called("load_leaderboard_sets")
	done(f.sets, nil)
}

func (f *fakePlatform) SubmitScore(score int64, _ uint64, ids []string, done func(error)) {
	f.called("submit_score")
	f.submissions = append(f.submissions, ids...)
	done(f.submitErr)
}

func (f *fakePlatform) ReportAchievements(reports []core.AchievementReport, done func(error)) {
	f.called("report_achievements")
	f.reports = append(f.reports, reports...)
	done(f.reportErr)
}

func (f *fakePlatform) LoadAchievementDescriptions(done func([]core.AchievementDescription, error)) {
	f.called("load_achievement_descriptions")
	done(f.descriptions, nil)
}

func (f *fakePlatform) LoadAchievements(done func([]core.Achievement, error)) {
	f.called("load_achievements")
	done(f.progress, nil)
}

func (f *fakePlatform) ResetAchievements(done func(error)) {
	f.called("reset_achievements")
	done(f.resetErr)
}

func (f *fakePlatform) FriendsAuthorizationStatus(done func(core.FriendsAuthorization, error)) {
	f.called("friends_authorization_status")
	done(f.friendsAuth, nil)
}

func (f *fakePlatform) LoadFriends(done func([]core.Friend, error)) {
	f.called("load_friends")
	done(f.friends, f.friendsErr)
}

func (f *fakePlatform) LoadPhoto(id core.PlayerID, done func(image.Image, error)) {
	f.called("load_photo")
	img, ok := f.photos[id]
	if !ok {
		done(nil, platform.ErrNotFound)
		return
	}
	done(img, nil)
}

var _ platform.Platform = (*fakePlatform)(nil)

type fakePresenter struct {
	shown []string
}

func (p *fakePresenter) ShowLeaderboard(id string, _ core.PlayerScope, _ core.TimeScope, dismissed func()) {
	p.shown = append(p.shown, id)
	dismissed()
}

func (p *fakePresenter) ShowDashboard(dismissed func()) {
	p.shown = append(p.shown, "dashboard")
	dismissed()
}

// recorder collects every signal published on the bus.
type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) handle(_ context.Context, ev core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) of(typ core.EventType) []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) last(t *testing.T, typ core.EventType) core.Event {
	t.Helper()
	evs := r.of(typ)
	require.NotEmpty(t, evs, "no %s signal", typ)
	return evs[len(evs)-1]
}

func newTestService(t *testing.T, p platform.Platform, opts ...Option) (*Service, *engine.MainLoop, *recorder) {
	t.Helper()
	loop := engine.NewMainLoop(nil)
	bus := engine.NewEventBus(engine.DispatchSync)
	rec := &recorder{}
	bus.SubscribeAll(rec.handle)
	s := New(p, loop, append([]Option{WithBus(bus)}, opts...)...)
	s.Initialize()
	t.Cleanup(func() {
		s.Close()
		loop.Close()
		bus.Close()
	})
	return s, loop, rec
}

func errorCode(t *testing.T, ev core.Event) string {
	t.Helper()
	e, ok := ev.Payload["error"].(map[string]any)
	require.True(t, ok, "signal %s carries no error: %v", ev.Type, ev.Payload)
	return e["code"].(string)
}
