package bloom

import (
	"github.com/ethereum/go-ethereum/common"

	"bloomsocial/core/events"
)

// Follow creates the directed edge follower -> followee.
func (e *Engine) Follow(follower, followee common.Address) error {
	if err := e.writable(); err != nil {
		return err
	}
	if follower == followee {
		return ErrCannotFollowSelf
	}
	if _, exists, err := e.state.BloomFollowGet(follower, followee); err != nil {
		return err
	} else if exists {
		return ErrAlreadyFollowing
	}
	now := e.nowFn()
	if err := e.state.BloomFollowPut(&Follow{Follower: follower, Followee: followee, FollowedAt: now}); err != nil {
		return err
	}
	if err := e.updateUser(follower, func(u *UserStats) { u.FollowingCount++ }); err != nil {
		return err
	}
	if err := e.updateUser(followee, func(u *UserStats) { u.FollowersCount++ }); err != nil {
		return err
	}
	e.emitter.Emit(events.Followed{Follower: follower, Followee: followee, FollowedAt: now})
	return nil
}

// Unfollow removes the edge follower -> followee. A missing edge is a no-op
// unless strict unfollow is enabled.
func (e *Engine) Unfollow(follower, followee common.Address) error {
	if err := e.writable(); err != nil {
		return err
	}
	_, exists, err := e.state.BloomFollowGet(follower, followee)
	if err != nil {
		return err
	}
	if !exists {
		if e.strictUnfollow {
			return ErrNotFollowing
		}
		return nil
	}
	if err := e.state.BloomFollowDelete(follower, followee); err != nil {
		return err
	}
	if err := e.updateUser(follower, func(u *UserStats) { u.FollowingCount = decrement(u.FollowingCount) }); err != nil {
		return err
	}
	if err := e.updateUser(followee, func(u *UserStats) { u.FollowersCount = decrement(u.FollowersCount) }); err != nil {
		return err
	}
	e.emitter.Emit(events.Unfollowed{Follower: follower, Followee: followee, UnfollowedAt: e.nowFn()})
	return nil
}

// IsFollowing reports whether the edge follower -> followee exists.
func (e *Engine) IsFollowing(follower, followee common.Address) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	_, exists, err := e.state.BloomFollowGet(follower, followee)
	return exists, err
}

// GetFollow returns the active edge, if any.
func (e *Engine) GetFollow(follower, followee common.Address) (*Follow, bool, error) {
	if err := e.ready(); err != nil {
		return nil, false, err
	}
	follow, ok, err := e.state.BloomFollowGet(follower, followee)
	if err != nil || !ok || follow == nil {
		return nil, false, err
	}
	clone := *follow
	return &clone, true, nil
}

func decrement(v uint64) uint64 {
	if v == 0 {
		return 0
	}
	return v - 1
}
