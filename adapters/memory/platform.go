package memory

import (
	"image"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"gameservices/core"
	"gameservices/leaderboard"
	"gameservices/platform"
)

// Platform is an in-process social-gaming backend. Completions run on their own goroutines,
// the way a device SDK delivers them.
type Platform struct {
	mu sync.RWMutex

	name          string
	available     bool
	local         core.PlayerID
	authenticated bool
	authErr       error
	latency       time.Duration
	now           func() time.Time

	players      map[core.PlayerID]core.Player
	boards       map[string]*board
	boardOrder   []string
	sets         map[string]*set
	setOrder     []string
	descriptions []core.AchievementDescription
	progress     map[string]core.Achievement
	friends      []core.PlayerID
	friendsAuth  core.FriendsAuthorization
	avatars      map[core.PlayerID]image.Image
	shown        []string

	wg conc.WaitGroup
}

type board struct {
	info        core.Leaderboard
	ranking     *leaderboard.SkipList
	best        map[core.PlayerID]submission
	submissions []submission
}

type submission struct {
	player  core.PlayerID
	score   int64
	context uint64
	at      time.Time
}

type set struct {
	info   core.LeaderboardSet
	boards []string
}

// Option configures a Platform.
type Option func(*Platform)

// WithName sets the service name reported to scripts.
func WithName(name string) Option { return func(p *Platform) { p.name = name } }

// WithLatency delays every completion.
func WithLatency(d time.Duration) Option { return func(p *Platform) { p.latency = d } }

// WithClock overrides the time source used for submissions and windows.
func WithClock(now func() time.Time) Option {
	return func(p *Platform) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLocalPlayer configures the account that Authenticate signs in.
func WithLocalPlayer(pl core.Player) Option {
	return func(p *Platform) {
		p.local = pl.ID
		p.players[pl.ID] = pl
	}
}

// WithUnavailable simulates a device without social services.
func WithUnavailable() Option { return func(p *Platform) { p.available = false } }

func New(opts ...Option) *Platform {
	p := &Platform{
		name:        "Simulated",
		available:   true,
		now:         func() time.Time { return time.Now().UTC() },
		players:     map[core.PlayerID]core.Player{},
		boards:      map[string]*board{},
		sets:        map[string]*set{},
		progress:    map[string]core.Achievement{},
		friendsAuth: core.FriendsNotDetermined,
		avatars:     map[core.PlayerID]image.Image{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Close waits for in-flight completions.
func (p *Platform) Close() { p.wg.Wait() }

func (p *Platform) async(fn func()) {
	latency := p.latency
	p.wg.Go(func() {
		if latency > 0 {
			time.Sleep(latency)
		}
		fn()
	})
}

func (p *Platform) Name() string { return p.name }

func (p *Platform) Available() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.available
}

func (p *Platform) CanAuthenticate() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.available && p.local != "" && p.authErr == nil
}

func (p *Platform) LocalPlayer() (core.Player, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.authenticated {
		return core.Player{}, false
	}
	return p.playerLocked(p.local), true
}

// SetAuthError makes the next Authenticate calls fail with err (nil restores success).
func (p *Platform) SetAuthError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authErr = err
}

// SignOut drops the authenticated session.
func (p *Platform) SignOut() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authenticated = false
}

func (p *Platform) Authenticate(done func(core.Player, error)) {
	p.async(func() {
		p.mu.Lock()
		var (
			pl  core.Player
			err error
		)
		switch {
		case !p.available:
			err = platform.ErrUnavailable
		case p.authenticated:
			pl = p.playerLocked(p.local)
		case p.authErr != nil:
			err = p.authErr
		case p.local == "":
			err = platform.ErrNotAuthenticated
		default:
			p.authenticated = true
			pl = p.playerLocked(p.local)
		}
		p.mu.Unlock()
		done(pl, err)
	})
}

// guardLocked reports the error every authenticated call fails with.
func (p *Platform) guardLocked() error {
	if !p.available {
		return platform.ErrUnavailable
	}
	if !p.authenticated {
		return platform.ErrNotAuthenticated
	}
	return nil
}

func (p *Platform) playerLocked(id core.PlayerID) core.Player {
	if pl, ok := p.players[id]; ok {
		return pl
	}
	return core.Player{ID: id}
}

// AddPlayer registers or replaces a player record.
func (p *Platform) AddPlayer(pl core.Player) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.players[pl.ID] = pl
}

var (
	_ platform.Platform  = (*Platform)(nil)
	_ platform.Presenter = (*Platform)(nil)
)
