package plugin

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gameservices/adapters/memory"
	"gameservices/core"
	"gameservices/engine"
	"gameservices/platform"
	"gameservices/script"
)

func setup(t *testing.T, p platform.Platform) (*Plugin, *script.Host) {
	t.Helper()
	loop := engine.NewMainLoop(nil)
	host := script.NewHost(loop)
	pl := New(p, nil)
	require.NoError(t, pl.Init(host))
	t.Cleanup(func() {
		pl.Deinit()
		loop.Close()
	})
	return pl, host
}

func eval(t *testing.T, h *script.Host, src string) string {
	t.Helper()
	v, err := h.RunString("test.js", src)
	require.NoError(t, err)
	return v.String()
}

// tickUntil ticks the loop until the expression is truthy.
func tickUntil(t *testing.T, h *script.Host, expr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		h.Loop().Tick()
		v, err := h.RunString("wait.js", expr)
		require.NoError(t, err)
		if v.ToBoolean() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", expr)
		}
		time.Sleep(time.Millisecond)
	}
}

func simulated(t *testing.T) *memory.Platform {
	t.Helper()
	mp := memory.New(memory.WithLocalPlayer(core.Player{ID: "local", DisplayName: "Local"}))
	mp.AddLeaderboard(core.Leaderboard{ID: "global", Title: "Global"})
	for i := 1; i <= 5; i++ {
		require.NoError(t, mp.RecordScore("global", core.PlayerID(fmt.Sprintf("p%d", i)), int64(i), 0, time.Now()))
	}
	t.Cleanup(mp.Close)
	return mp
}

func TestUnavailablePlatformThroughScript(t *testing.T) {
	_, h := setup(t, nil)

	assert.Equal(t, "Unavailable:false:false", eval(t, h,
		`GameServices.get_service_name() + ":" + GameServices.can_sign_in() + ":" + GameServices.is_initialized()`))
	eval(t, h, `
		var result = null;
		GameServices.connect("sign_in_completed", function (r) { result = r; });
		GameServices.sign_in();
	`)
	h.Loop().Tick()
	assert.Equal(t, "false:unavailable", eval(t, h, `result.success + ":" + result.error.code`))
}

func TestPagingFromScript(t *testing.T) {
	_, h := setup(t, simulated(t))

	eval(t, h, `
		var signedIn = false, pages = [];
		GameServices.connect("sign_in_completed", function (r) { signedIn = r.success; });
		GameServices.connect("leaderboard_scores_loaded", function (r) { pages.push(r); });
		GameServices.sign_in();
	`)
	tickUntil(t, h, `signedIn`)

	eval(t, h, `GameServices.fetch_top_scores("global", 2, GameServices.PLAYERS_GLOBAL, GameServices.TIME_ALL_TIME)`)
	tickUntil(t, h, `pages.length === 1`)
	assert.Equal(t, "null", eval(t, h, `String(GameServices.fetch_next_scores())`))
	tickUntil(t, h, `pages.length === 2`)

	assert.Equal(t, "1,2,3,4", eval(t, h, `
		pages.map(function (p) { return p.scores.map(function (s) { return s.rank }).join(",") }).join(",")`))
	assert.Equal(t, "true:5:3", eval(t, h,
		`(pages[0].token === pages[1].token) + ":" + pages[1].players_count + ":" + pages[1].range_start`))
	assert.Equal(t, "p5:Global", eval(t, h, `pages[0].scores[0].player_id + ":" + pages[0].leaderboard.title`))
}

func TestSynchronousErrorsFromScript(t *testing.T) {
	_, h := setup(t, simulated(t))

	assert.Equal(t, "no_active_query", eval(t, h, `GameServices.fetch_next_scores().code`))
	assert.Equal(t, "invalid_request", eval(t, h, `GameServices.award_achievement({percent_complete: 150}).code`))
	assert.Equal(t, "invalid_request", eval(t, h, `GameServices.award_achievement("first_win").code`))
	assert.Equal(t, "not_found", eval(t, h, `GameServices.fetch_friend_avatar("unknown_id").code`))
	assert.Contains(t, eval(t, h, `GameServices.fetch_friend_avatar("unknown_id").message`), "unknown_id")
}

func TestConnectAndDisconnect(t *testing.T) {
	_, h := setup(t, nil)

	_, err := h.RunString("bad.js", `GameServices.connect("no_such_signal", function () {})`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown signal")
	_, err = h.RunString("bad.js", `GameServices.connect("friends_loaded", 42)`)
	require.Error(t, err)

	eval(t, h, `
		var calls = 0;
		var id = GameServices.connect("friends_load_failed", function () { calls++; });
		GameServices.load_friends();
	`)
	h.Loop().Tick()
	assert.Equal(t, "1", eval(t, h, `calls`))

	assert.Equal(t, "true:false", eval(t, h, `GameServices.disconnect(id) + ":" + GameServices.disconnect(id)`))
	eval(t, h, `GameServices.load_friends()`)
	h.Loop().Tick()
	assert.Equal(t, "1", eval(t, h, `calls`))
}

func TestHandlerExceptionsDoNotStopDelivery(t *testing.T) {
	_, h := setup(t, nil)

	eval(t, h, `
		var second = false;
		GameServices.connect("achievements_reset", function () { throw new Error("broken handler"); });
		GameServices.connect("achievements_reset", function () { second = true; });
		GameServices.reset_achievements();
	`)
	h.Loop().Tick()
	assert.Equal(t, "true", eval(t, h, `second`))
}

func TestLifecycle(t *testing.T) {
	loop := engine.NewMainLoop(nil)
	defer loop.Close()
	host := script.NewHost(loop)
	pl := New(simulated(t), nil)

	require.NoError(t, pl.Init(host))
	require.Error(t, pl.Init(host))
	require.NotNil(t, pl.Service())
	assert.True(t, pl.Service().Initialized())
	_, ok := host.Singleton(SingletonName)
	assert.True(t, ok)

	var seen []core.EventType
	pl.Bus().SubscribeAll(func(_ context.Context, ev core.Event) { seen = append(seen, ev.Type) })
	eval(t, host, `var fired = 0; GameServices.connect("score_submitted", function () { fired++; });`)

	pl.Deinit()
	pl.Deinit()
	assert.Nil(t, pl.Service())
	assert.Equal(t, "undefined", eval(t, host, `typeof GameServices`))
	loop.Tick()
	assert.Empty(t, seen)

	require.NoError(t, pl.Init(host), "a deinitialised plugin can be registered again")
	pl.Deinit()
}

func TestStateFromAnotherGoroutine(t *testing.T) {
	pl := New(simulated(t), nil)
	_, err := pl.State(context.Background())
	require.ErrorIs(t, err, ErrNotRegistered)
	require.ErrorIs(t, pl.Ping(context.Background()), ErrNotRegistered)

	loop := engine.NewMainLoop(nil)
	defer loop.Close()
	host := script.NewHost(loop)
	require.NoError(t, pl.Init(host))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		loop.Run(ctx, time.Millisecond)
	}()

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer reqCancel()
	require.NoError(t, pl.Ping(reqCtx))
	st, err := pl.State(reqCtx)
	require.NoError(t, err)
	assert.Equal(t, "Simulated", st.Service)
	assert.True(t, st.Initialized)
	assert.False(t, st.SignedIn)
	assert.Nil(t, st.Query)

	cancel()
	<-stopped
	pl.Deinit()
}
