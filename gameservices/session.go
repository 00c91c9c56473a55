package gameservices

import (
	"gameservices/core"
)

// CanSignIn reports whether the platform has an account it can authenticate without UI.
func (s *Service) CanSignIn() bool {
	return s.initialized && s.platform.CanAuthenticate()
}

// SignIn authenticates the local player and emits sign_in_completed. An existing session
// completes successfully on the next tick.
func (s *Service) SignIn() {
	const op = "sign_in"
	s.metrics.Operation(op)
	if err := s.ready(op); err != nil {
		s.post(func() { s.emitSignIn(core.Player{}, err) })
		return
	}
	if pl, ok := s.platform.LocalPlayer(); ok {
		s.post(func() { s.emitSignIn(pl, nil) })
		return
	}
	s.platform.Authenticate(func(pl core.Player, err error) {
		s.post(func() { s.emitSignIn(pl, err) })
	})
}

func (s *Service) emitSignIn(pl core.Player, err error) {
	payload := core.Dictionary{"player": nil}
	if err == nil {
		payload["player"] = core.PlayerDict(pl)
		s.logger.Info("player signed in", "player_id", pl.ID)
	}
	s.emit(core.EventSignInCompleted, s.outcome("sign_in", err, payload))
}
