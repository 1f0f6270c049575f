package bloom

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Content is a registered post together with the reward pools accrued from its
// likes. Everything except the pools, weight, counters and claim flag is fixed
// at creation.
type Content struct {
	ID          uint64         `json:"id"`
	Author      common.Address `json:"author"`
	LikeAmount  *big.Int       `json:"likeAmount"`
	CreatedAt   int64          `json:"createdAt"`
	Deadline    int64          `json:"deadline"`
	ContentURI  string         `json:"contentUri"`
	ContentHash [32]byte       `json:"contentHash"`

	AuthorPool      *big.Int `json:"authorPool"`
	LikerRewardPool *big.Int `json:"likerRewardPool"`
	TotalWeight     *big.Int `json:"totalWeight"`
	LikeCount       uint64   `json:"likeCount"`
	AuthorClaimed   bool     `json:"authorClaimed"`

	// ProtocolFees is the protocol share already forwarded to the fee
	// recipient for this content.
	ProtocolFees *big.Int `json:"protocolFees"`
	// LikerRewardPaid is the sum of liker payouts. The difference to
	// LikerRewardPool is rounding dust once every liker has claimed.
	LikerRewardPaid *big.Int `json:"likerRewardPaid"`
}

// Expired reports whether the deadline has been reached at the supplied time.
func (c *Content) Expired(now int64) bool {
	return c != nil && now >= c.Deadline
}

// Clone returns a deep copy of the content record.
func (c *Content) Clone() *Content {
	if c == nil {
		return nil
	}
	clone := *c
	clone.LikeAmount = copyAmount(c.LikeAmount)
	clone.AuthorPool = copyAmount(c.AuthorPool)
	clone.LikerRewardPool = copyAmount(c.LikerRewardPool)
	clone.TotalWeight = copyAmount(c.TotalWeight)
	clone.ProtocolFees = copyAmount(c.ProtocolFees)
	clone.LikerRewardPaid = copyAmount(c.LikerRewardPaid)
	return &clone
}

func (c *Content) normalize() {
	c.LikeAmount = nonNil(c.LikeAmount)
	c.AuthorPool = nonNil(c.AuthorPool)
	c.LikerRewardPool = nonNil(c.LikerRewardPool)
	c.TotalWeight = nonNil(c.TotalWeight)
	c.ProtocolFees = nonNil(c.ProtocolFees)
	c.LikerRewardPaid = nonNil(c.LikerRewardPaid)
}

// Like is a liker's single stake on a piece of content.
type Like struct {
	ContentID uint64         `json:"contentId"`
	Liker     common.Address `json:"liker"`
	LikeIndex uint64         `json:"likeIndex"`
	Weight    *big.Int       `json:"weight"`
	Amount    *big.Int       `json:"amount"`
	LikedAt   int64          `json:"likedAt"`
	Claimed   bool           `json:"claimed"`
	Reward    *big.Int       `json:"reward"`
}

// Clone returns a deep copy of the like record.
func (l *Like) Clone() *Like {
	if l == nil {
		return nil
	}
	clone := *l
	clone.Weight = copyAmount(l.Weight)
	clone.Amount = copyAmount(l.Amount)
	clone.Reward = copyAmount(l.Reward)
	return &clone
}

// LikeInfo is the view returned for a (content, liker) pair. A liker that never
// liked the content yields the zero value.
type LikeInfo struct {
	LikeIndex uint64   `json:"likeIndex"`
	Weight    *big.Int `json:"weight"`
	Claimed   bool     `json:"claimed"`
}

// Follow is an active directed edge in the follow graph.
type Follow struct {
	Follower   common.Address `json:"follower"`
	Followee   common.Address `json:"followee"`
	FollowedAt int64          `json:"followedAt"`
}

// UserStats caches per-account aggregates so profile reads stay O(1).
type UserStats struct {
	Address         common.Address `json:"address"`
	TotalEarned     *big.Int       `json:"totalEarned"`
	TotalLiked      uint64         `json:"totalLiked"`
	FollowersCount  uint64         `json:"followersCount"`
	FollowingCount  uint64         `json:"followingCount"`
	ContentsCreated uint64         `json:"contentsCreated"`
}

// Clone returns a deep copy of the user aggregates.
func (u *UserStats) Clone() *UserStats {
	if u == nil {
		return nil
	}
	clone := *u
	clone.TotalEarned = copyAmount(u.TotalEarned)
	return &clone
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func copyAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
