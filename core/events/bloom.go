package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"bloomsocial/core/types"
)

const (
	// TypeContentCreated is emitted when an author registers new content.
	TypeContentCreated = "bloom.content.created"
	// TypeContentLiked is emitted when a liker stakes on content.
	TypeContentLiked = "bloom.content.liked"
	// TypeAuthorRewardClaimed is emitted when an author withdraws the author pool.
	TypeAuthorRewardClaimed = "bloom.reward.author_claimed"
	// TypeLikerRewardClaimed is emitted when a liker withdraws their weighted share.
	TypeLikerRewardClaimed = "bloom.reward.liker_claimed"
	// TypeFollowed is emitted when a follow edge is created.
	TypeFollowed = "bloom.follow.followed"
	// TypeUnfollowed is emitted when a follow edge is removed.
	TypeUnfollowed = "bloom.follow.unfollowed"
)

// ContentCreated carries every immutable field of a new content record.
type ContentCreated struct {
	ContentID   uint64
	Author      common.Address
	LikeAmount  *big.Int
	CreatedAt   int64
	Deadline    int64
	ContentURI  string
	ContentHash [32]byte
}

func (ContentCreated) EventType() string { return TypeContentCreated }

func (e ContentCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeContentCreated,
		Attributes: map[string]string{
			"contentId":   formatUint(e.ContentID),
			"author":      e.Author.Hex(),
			"likeAmount":  formatAmount(e.LikeAmount),
			"createdAt":   formatInt(e.CreatedAt),
			"deadline":    formatInt(e.Deadline),
			"contentUri":  e.ContentURI,
			"contentHash": formatHash(e.ContentHash),
		},
	}
}

// ParseContentCreated decodes a persisted content creation event.
func ParseContentCreated(evt *types.Event) (ContentCreated, error) {
	r := newAttrReader(evt, TypeContentCreated)
	out := ContentCreated{
		ContentID:   r.uint("contentId"),
		Author:      r.address("author"),
		LikeAmount:  r.amount("likeAmount"),
		CreatedAt:   r.int("createdAt"),
		Deadline:    r.int("deadline"),
		ContentHash: r.hash("contentHash"),
	}
	if r.err == nil {
		out.ContentURI = evt.Attributes["contentUri"]
	}
	return out, r.err
}

// ContentLiked records a single accepted stake.
type ContentLiked struct {
	ContentID uint64
	Liker     common.Address
	LikeIndex uint64
	Weight    *big.Int
	Amount    *big.Int
	LikedAt   int64
}

func (ContentLiked) EventType() string { return TypeContentLiked }

func (e ContentLiked) Event() *types.Event {
	return &types.Event{
		Type: TypeContentLiked,
		Attributes: map[string]string{
			"contentId": formatUint(e.ContentID),
			"liker":     e.Liker.Hex(),
			"likeIndex": formatUint(e.LikeIndex),
			"weight":    formatAmount(e.Weight),
			"amount":    formatAmount(e.Amount),
			"likedAt":   formatInt(e.LikedAt),
		},
	}
}

// ParseContentLiked decodes a persisted like event.
func ParseContentLiked(evt *types.Event) (ContentLiked, error) {
	r := newAttrReader(evt, TypeContentLiked)
	out := ContentLiked{
		ContentID: r.uint("contentId"),
		Liker:     r.address("liker"),
		LikeIndex: r.uint("likeIndex"),
		Weight:    r.amount("weight"),
		Amount:    r.amount("amount"),
		LikedAt:   r.int("likedAt"),
	}
	return out, r.err
}

// AuthorRewardClaimed records an author pool payout.
type AuthorRewardClaimed struct {
	ContentID uint64
	Author    common.Address
	Amount    *big.Int
}

func (AuthorRewardClaimed) EventType() string { return TypeAuthorRewardClaimed }

func (e AuthorRewardClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeAuthorRewardClaimed,
		Attributes: map[string]string{
			"contentId": formatUint(e.ContentID),
			"author":    e.Author.Hex(),
			"amount":    formatAmount(e.Amount),
		},
	}
}

// ParseAuthorRewardClaimed decodes a persisted author claim event.
func ParseAuthorRewardClaimed(evt *types.Event) (AuthorRewardClaimed, error) {
	r := newAttrReader(evt, TypeAuthorRewardClaimed)
	out := AuthorRewardClaimed{
		ContentID: r.uint("contentId"),
		Author:    r.address("author"),
		Amount:    r.amount("amount"),
	}
	return out, r.err
}

// LikerRewardClaimed records a liker payout.
type LikerRewardClaimed struct {
	ContentID uint64
	Liker     common.Address
	Amount    *big.Int
}

func (LikerRewardClaimed) EventType() string { return TypeLikerRewardClaimed }

func (e LikerRewardClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeLikerRewardClaimed,
		Attributes: map[string]string{
			"contentId": formatUint(e.ContentID),
			"liker":     e.Liker.Hex(),
			"amount":    formatAmount(e.Amount),
		},
	}
}

// ParseLikerRewardClaimed decodes a persisted liker claim event.
func ParseLikerRewardClaimed(evt *types.Event) (LikerRewardClaimed, error) {
	r := newAttrReader(evt, TypeLikerRewardClaimed)
	out := LikerRewardClaimed{
		ContentID: r.uint("contentId"),
		Liker:     r.address("liker"),
		Amount:    r.amount("amount"),
	}
	return out, r.err
}

// Followed records a new follow edge.
type Followed struct {
	Follower   common.Address
	Followee   common.Address
	FollowedAt int64
}

func (Followed) EventType() string { return TypeFollowed }

func (e Followed) Event() *types.Event {
	return &types.Event{
		Type: TypeFollowed,
		Attributes: map[string]string{
			"follower":   e.Follower.Hex(),
			"followee":   e.Followee.Hex(),
			"followedAt": formatInt(e.FollowedAt),
		},
	}
}

// ParseFollowed decodes a persisted follow event.
func ParseFollowed(evt *types.Event) (Followed, error) {
	r := newAttrReader(evt, TypeFollowed)
	out := Followed{
		Follower:   r.address("follower"),
		Followee:   r.address("followee"),
		FollowedAt: r.int("followedAt"),
	}
	return out, r.err
}

// Unfollowed records the removal of a follow edge.
type Unfollowed struct {
	Follower     common.Address
	Followee     common.Address
	UnfollowedAt int64
}

func (Unfollowed) EventType() string { return TypeUnfollowed }

func (e Unfollowed) Event() *types.Event {
	return &types.Event{
		Type: TypeUnfollowed,
		Attributes: map[string]string{
			"follower":     e.Follower.Hex(),
			"followee":     e.Followee.Hex(),
			"unfollowedAt": formatInt(e.UnfollowedAt),
		},
	}
}

// ParseUnfollowed decodes a persisted unfollow event.
func ParseUnfollowed(evt *types.Event) (Unfollowed, error) {
	r := newAttrReader(evt, TypeUnfollowed)
	out := Unfollowed{
		Follower:     r.address("follower"),
		Followee:     r.address("followee"),
		UnfollowedAt: r.int("unfollowedAt"),
	}
	return out, r.err
}
