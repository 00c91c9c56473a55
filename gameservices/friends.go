package gameservices

import (
	"fmt"
	"image"

	"github.com/samber/lo"

	"gameservices/core"
	"gameservices/errs"
	"gameservices/imageconv"
)

// GetFriendsAuthorizationStatus emits friends_authorization_status with the platform's consent state.
func (s *Service) GetFriendsAuthorizationStatus() {
	const op = "get_friends_authorization_status"
	s.metrics.Operation(op)
	emit := func(status core.FriendsAuthorization, err error) {
		if status == "" {
			status = core.FriendsNotDetermined
		}
		s.emit(core.EventFriendsAuthorizationStatus, s.outcome(op, err, core.Dictionary{
			"status": string(status),
		}))
	}
	if err := s.ready(op); err != nil {
		s.post(func() { emit(core.FriendsNotDetermined, err) })
		return
	}
	s.platform.FriendsAuthorizationStatus(func(status core.FriendsAuthorization, err error) {
		s.post(func() { emit(status, err) })
	})
}

// LoadFriends replaces the friend registry with the platform's list and emits friends_loaded.
// Denials and errors emit friends_load_failed and leave the registry untouched.
func (s *Service) LoadFriends() {
	const op = "load_friends"
	s.metrics.Operation(op)
	if err := s.ready(op); err != nil {
		s.post(func() { s.emitFriendsFailed(op, err) })
		return
	}
	s.platform.LoadFriends(func(friends []core.Friend, err error) {
		s.post(func() {
			if err != nil {
				s.emitFriendsFailed(op, err)
				return
			}
			s.replaceFriends(friends)
			s.emit(core.EventFriendsLoaded, core.Dictionary{
				"friends": lo.Map(s.friendOrder, func(id core.PlayerID, _ int) core.Dictionary {
					return core.FriendDict(s.friends[id])
				}),
			})
		})
	})
}

func (s *Service) replaceFriends(friends []core.Friend) {
	s.friends = make(map[core.PlayerID]core.Friend, len(friends))
	s.friendOrder = make([]core.PlayerID, 0, len(friends))
	for _, f := range friends {
		if f.ID == "" {
			continue
		}
		if _, dup := s.friends[f.ID]; !dup {
			s.friendOrder = append(s.friendOrder, f.ID)
		}
		s.friends[f.ID] = f
	}
}

func (s *Service) emitFriendsFailed(op string, err error) {
	s.emit(core.EventFriendsLoadFailed, core.Dictionary{"error": s.failure(op, err)})
}

// FetchFriendAvatar loads a friend's photo and emits friend_avatar_loaded with an RGBA8 pixel buffer.
// Players missing from the friend registry fail synchronously without a platform request.
func (s *Service) FetchFriendAvatar(id core.PlayerID) *errs.E {
	const op = "fetch_friend_avatar"
	s.metrics.Operation(op)
	emit := func(buf *core.PixelBuffer, err error) {
		payload := core.Dictionary{"player_id": string(id), "image": nil}
		if buf != nil {
			payload["image"] = core.PixelBufferDict(*buf)
		}
		s.emit(core.EventFriendAvatarLoaded, s.outcome(op, err, payload))
	}
	if err := s.ready(op); err != nil {
		s.post(func() { emit(nil, err) })
		return nil
	}
	if _, ok := s.friends[id]; !ok {
		return errs.New(op, errs.CodeNotFound, errs.WithMessage(fmt.Sprintf("player %q is not a loaded friend", id)))
	}
	maxSize := s.avatarMax
	s.platform.LoadPhoto(id, func(img image.Image, err error) {
		// conversion stays off the engine goroutine
		var buf *core.PixelBuffer
		if err == nil {
			converted, cerr := imageconv.ToPixelBuffer(img, maxSize)
			if cerr != nil {
				err = cerr
			} else {
				buf = &converted
			}
		}
		s.post(func() { emit(buf, err) })
	})
	return nil
}
