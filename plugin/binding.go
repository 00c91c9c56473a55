package plugin

import (
	"context"
	"fmt"

	"github.com/dop251/goja"

	"gameservices/core"
	"gameservices/engine"
	"gameservices/errs"
	"gameservices/gameservices"
	"gameservices/script"
)

// Scope constants published on the singleton.
var constants = map[string]int{
	"PLAYERS_GLOBAL":  int(core.PlayersGlobal),
	"PLAYERS_FRIENDS": int(core.PlayersFriendsOnly),
	"TIME_TODAY":      int(core.TimeToday),
	"TIME_WEEK":       int(core.TimeWeek),
	"TIME_ALL_TIME":   int(core.TimeAllTime),
}

// binding projects a Service onto a script object with snake_case methods.
type binding struct {
	host *script.Host
	svc  *gameservices.Service
	bus  *engine.EventBus

	conns  map[int64]func()
	nextID int64
}

func newBinding(host *script.Host, svc *gameservices.Service, bus *engine.EventBus) *binding {
	return &binding{host: host, svc: svc, bus: bus, conns: map[int64]func(){}}
}

func (b *binding) object() *goja.Object {
	rt := b.host.Runtime()
	obj := rt.NewObject()
	set := func(name string, fn func(goja.FunctionCall) goja.Value) {
		_ = obj.Set(name, fn)
	}
	for name, v := range constants {
		_ = obj.Set(name, v)
	}

	set("get_service_name", func(goja.FunctionCall) goja.Value { return rt.ToValue(b.svc.GetServiceName()) })
	set("is_initialized", func(goja.FunctionCall) goja.Value { return rt.ToValue(b.svc.Initialized()) })
	set("can_sign_in", func(goja.FunctionCall) goja.Value { return rt.ToValue(b.svc.CanSignIn()) })
	set("sign_in", func(goja.FunctionCall) goja.Value {
		b.svc.SignIn()
		return goja.Undefined()
	})

	set("fetch_top_scores", func(call goja.FunctionCall) goja.Value {
		b.svc.FetchTopScores(
			call.Argument(0).String(),
			intArg(call, 1, 0),
			core.PlayerScopeFromInt(int64(intArg(call, 2, int(core.PlayersGlobal)))),
			core.TimeScopeFromInt(int64(intArg(call, 3, int(core.TimeAllTime)))),
			intArg(call, 4, 1),
		)
		return goja.Undefined()
	})
	set("fetch_top_scores_from_set", func(call goja.FunctionCall) goja.Value {
		b.svc.FetchTopScoresFromSet(
			call.Argument(0).String(),
			call.Argument(1).String(),
			intArg(call, 2, 0),
			core.PlayerScopeFromInt(int64(intArg(call, 3, int(core.PlayersGlobal)))),
			core.TimeScopeFromInt(int64(intArg(call, 4, int(core.TimeAllTime)))),
			intArg(call, 5, 1),
		)
		return goja.Undefined()
	})
	set("fetch_next_scores", func(goja.FunctionCall) goja.Value { return b.result(b.svc.FetchNextScores()) })
	set("submit_score", func(call goja.FunctionCall) goja.Value {
		var scoreCtx uint64
		if v := call.Argument(2); !missing(v) {
			scoreCtx = uint64(v.ToInteger())
		}
		b.svc.SubmitScore(call.Argument(0).String(), call.Argument(1).ToInteger(), scoreCtx)
		return goja.Undefined()
	})
	set("show_leaderboard", func(call goja.FunctionCall) goja.Value {
		b.svc.ShowLeaderboard(
			call.Argument(0).String(),
			core.PlayerScopeFromInt(int64(intArg(call, 1, int(core.PlayersGlobal)))),
			core.TimeScopeFromInt(int64(intArg(call, 2, int(core.TimeAllTime)))),
		)
		return goja.Undefined()
	})
	set("show_all_leaderboards", func(goja.FunctionCall) goja.Value {
		b.svc.ShowAllLeaderboards()
		return goja.Undefined()
	})

	set("award_achievement", func(call goja.FunctionCall) goja.Value {
		params, ok := call.Argument(0).Export().(map[string]any)
		if !ok {
			return b.result(errs.New("award_achievement", errs.CodeInvalid, errs.WithMessage("params must be an object")))
		}
		return b.result(b.svc.AwardAchievement(params))
	})
	set("request_achievement_descriptions", func(goja.FunctionCall) goja.Value {
		b.svc.RequestAchievementDescriptions()
		return goja.Undefined()
	})
	set("request_achievements", func(goja.FunctionCall) goja.Value {
		b.svc.RequestAchievements()
		return goja.Undefined()
	})
	set("reset_achievements", func(goja.FunctionCall) goja.Value {
		b.svc.ResetAchievements()
		return goja.Undefined()
	})

	set("get_friends_authorization_status", func(goja.FunctionCall) goja.Value {
		b.svc.GetFriendsAuthorizationStatus()
		return goja.Undefined()
	})
	set("load_friends", func(goja.FunctionCall) goja.Value {
		b.svc.LoadFriends()
		return goja.Undefined()
	})
	set("fetch_friend_avatar", func(call goja.FunctionCall) goja.Value {
		return b.result(b.svc.FetchFriendAvatar(core.PlayerID(call.Argument(0).String())))
	})

	set("connect", b.connect)
	set("disconnect", func(call goja.FunctionCall) goja.Value {
		return rt.ToValue(b.disconnect(call.Argument(0).ToInteger()))
	})
	return obj
}

// connect(signal, fn) subscribes fn to a signal and returns a connection id. Unknown signals and
// non-function handlers throw, since they are script bugs rather than bridge failures.
func (b *binding) connect(call goja.FunctionCall) goja.Value {
	rt := b.host.Runtime()
	signal := core.EventType(call.Argument(0).String())
	if !core.KnownEventType(signal) {
		panic(rt.NewTypeError(fmt.Sprintf("unknown signal %q", signal)))
	}
	fn, ok := goja.AssertFunction(call.Argument(1))
	if !ok {
		panic(rt.NewTypeError("connect expects a function"))
	}
	b.nextID++
	id := b.nextID
	label := string(signal)
	// the bus may dispatch off the engine goroutine; handlers always run from the loop
	unsubscribe := b.bus.Subscribe(signal, func(_ context.Context, ev core.Event) {
		b.host.Loop().Post(func() {
			if _, live := b.conns[id]; !live {
				return
			}
			b.host.Call(label, fn, b.host.ToValue(ev.Payload))
		})
	})
	b.conns[id] = unsubscribe
	return rt.ToValue(id)
}

func (b *binding) disconnect(id int64) bool {
	unsubscribe, ok := b.conns[id]
	if !ok {
		return false
	}
	unsubscribe()
	delete(b.conns, id)
	return true
}

func (b *binding) disconnectAll() {
	for id := range b.conns {
		b.disconnect(id)
	}
}

// result maps a synchronous error onto {code, message}, or null on success.
func (b *binding) result(e *errs.E) goja.Value {
	if e == nil {
		return goja.Null()
	}
	return b.host.ToValue(e.Dict())
}

func missing(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

func intArg(call goja.FunctionCall, i, def int) int {
	v := call.Argument(i)
	if missing(v) {
		return def
	}
	return int(v.ToInteger())
}
