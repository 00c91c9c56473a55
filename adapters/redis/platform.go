package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc"

	"gameservices/core"
	"gameservices/platform"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" yaml:"addr" env:"GAMESERVICES_REDIS_ADDR"`
	Password     string        `json:"password" yaml:"password" env:"GAMESERVICES_REDIS_PASSWORD"`
	DB           int           `json:"db" yaml:"db" env:"GAMESERVICES_REDIS_DB"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size" env:"GAMESERVICES_REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" yaml:"min_idle_conns" env:"GAMESERVICES_REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout" env:"GAMESERVICES_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" env:"GAMESERVICES_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" env:"GAMESERVICES_REDIS_WRITE_TIMEOUT"`
	// ConnectTimeout bounds the retries of the initial ping.
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout" env:"GAMESERVICES_REDIS_CONNECT_TIMEOUT"`
	// OpTimeout bounds each platform call.
	OpTimeout time.Duration `json:"op_timeout" yaml:"op_timeout" env:"GAMESERVICES_REDIS_OP_TIMEOUT"`
	// WindowRetention keeps day and week boards around after their window closes.
	WindowRetention time.Duration `json:"window_retention" yaml:"window_retention" env:"GAMESERVICES_REDIS_WINDOW_RETENTION"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:            "localhost:6379",
		Password:        "",
		DB:              0,
		PoolSize:        10,
		MinIdleConns:    2,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		ConnectTimeout:  15 * time.Second,
		OpTimeout:       5 * time.Second,
		WindowRetention: 24 * time.Hour,
	}
}

// Platform is a social-gaming backend kept in Redis.
// Data structure:
//   - gs:player:{id} -> hash of display_name, alias, friends_auth
//   - gs:lbs, gs:sets -> sorted sets of ids scored by registration time
//   - gs:lb:{id}:meta -> hash describing the board
//   - gs:lb:{id}:all|day:{date}|week:{year-week} -> sorted set of best scores, plus a :detail hash
//   - gs:set:{id}:meta, gs:set:{id}:boards -> set title and board list
//   - gs:ach:desc -> hash of achievement id to JSON description
//   - gs:player:{id}:ach -> hash of achievement id to JSON progress
//   - gs:player:{id}:friends -> set of player ids
//   - gs:player:{id}:avatar -> PNG bytes
type Platform struct {
	client    *redis.Client
	name      string
	local     core.PlayerID
	opTimeout time.Duration
	retention time.Duration
	now       func() time.Time

	mu            sync.RWMutex
	authenticated bool
	player        core.Player

	wg conc.WaitGroup
}

// Option configures a Platform.
type Option func(*Platform)

func WithName(name string) Option { return func(p *Platform) { p.name = name } }

// WithLocalPlayer sets the account Authenticate signs in.
func WithLocalPlayer(id core.PlayerID) Option { return func(p *Platform) { p.local = id } }

func WithClock(now func() time.Time) Option {
	return func(p *Platform) {
		if now != nil {
			p.now = now
		}
	}
}

// New connects to Redis, retrying the initial ping with exponential backoff.
func New(ctx context.Context, config Config, opts ...Option) (*Platform, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})
	if err := connect(ctx, client, config.ConnectTimeout); err != nil {
		_ = client.Close()
		return nil, err
	}
	p := NewWithClient(client, opts...)
	if config.OpTimeout > 0 {
		p.opTimeout = config.OpTimeout
	}
	if config.WindowRetention > 0 {
		p.retention = config.WindowRetention
	}
	return p, nil
}

func connect(ctx context.Context, client *redis.Client, budget time.Duration) error {
	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = 100 * time.Millisecond
	backoffCfg.MaxInterval = 2 * time.Second
	deadline := time.Now().Add(budget)

	for {
		err := client.Ping(ctx).Err()
		if err == nil {
			return nil
		}
		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop || time.Now().Add(sleep).After(deadline) {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// NewWithClient creates a Platform using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client, opts ...Option) *Platform {
	p := &Platform{
		client:    client,
		name:      "Redis",
		opTimeout: 5 * time.Second,
		retention: 24 * time.Hour,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Close waits for in-flight completions and closes the Redis connection.
func (p *Platform) Close() error {
	p.wg.Wait()
	return p.client.Close()
}

func (p *Platform) async(fn func(ctx context.Context)) {
	p.wg.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.opTimeout)
		defer cancel()
		fn(ctx)
	})
}

func netErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", platform.ErrNetwork, err)
}

func playerKey(id core.PlayerID) string { return "gs:player:" + string(id) }

func (p *Platform) Name() string { return p.name }

func (p *Platform) Available() bool { return p.client != nil }

func (p *Platform) CanAuthenticate() bool { return p.local != "" }

func (p *Platform) LocalPlayer() (core.Player, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.player, p.authenticated
}

// SignOut drops the authenticated session.
func (p *Platform) SignOut() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authenticated = false
	p.player = core.Player{}
}

func (p *Platform) Authenticate(done func(core.Player, error)) {
	p.async(func(ctx context.Context) {
		if p.local == "" {
			done(core.Player{}, platform.ErrNotAuthenticated)
			return
		}
		pl, err := p.loadPlayer(ctx, p.local)
		if err != nil {
			done(core.Player{}, err)
			return
		}
		p.mu.Lock()
		p.authenticated = true
		p.player = pl
		p.mu.Unlock()
		done(pl, nil)
	})
}

func (p *Platform) guard() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.authenticated {
		return platform.ErrNotAuthenticated
	}
	return nil
}

func (p *Platform) loadPlayer(ctx context.Context, id core.PlayerID) (core.Player, error) {
	vals, err := p.client.HGetAll(ctx, playerKey(id)).Result()
	if err != nil {
		return core.Player{}, netErr(err)
	}
	return playerFromHash(id, vals), nil
}

func (p *Platform) loadPlayers(ctx context.Context, ids []core.PlayerID) (map[core.PlayerID]core.Player, error) {
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, playerKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, netErr(err)
	}
	out := make(map[core.PlayerID]core.Player, len(ids))
	for i, id := range ids {
		out[id] = playerFromHash(id, cmds[i].Val())
	}
	return out, nil
}

func playerFromHash(id core.PlayerID, vals map[string]string) core.Player {
	return core.Player{ID: id, DisplayName: vals["display_name"], Alias: vals["alias"]}
}

// AddPlayer registers or replaces a player record.
func (p *Platform) AddPlayer(ctx context.Context, pl core.Player) error {
	return netErr(p.client.HSet(ctx, playerKey(pl.ID), "display_name", pl.DisplayName, "alias", pl.Alias).Err())
}

func isNil(err error) bool { return errors.Is(err, redis.Nil) }

var _ platform.Platform = (*Platform)(nil)
