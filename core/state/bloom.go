package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"bloomsocial/native/bloom"
)

var (
	bloomNextContentKey = []byte("bloom/content/next")
	bloomContentPrefix  = []byte("bloom/content/")
	bloomLikePrefix     = []byte("bloom/like/")
	bloomFollowPrefix   = []byte("bloom/follow/")
	bloomUserPrefix     = []byte("bloom/user/")
)

func bloomContentKey(id uint64) []byte {
	buf := make([]byte, len(bloomContentPrefix)+8)
	copy(buf, bloomContentPrefix)
	binary.BigEndian.PutUint64(buf[len(bloomContentPrefix):], id)
	return buf
}

func bloomLikeKey(contentID uint64, liker common.Address) []byte {
	buf := make([]byte, 0, len(bloomLikePrefix)+8+common.AddressLength)
	buf = append(buf, bloomLikePrefix...)
	buf = binary.BigEndian.AppendUint64(buf, contentID)
	return append(buf, liker.Bytes()...)
}

func bloomFollowKey(follower, followee common.Address) []byte {
	buf := make([]byte, 0, len(bloomFollowPrefix)+2*common.AddressLength)
	buf = append(buf, bloomFollowPrefix...)
	buf = append(buf, follower.Bytes()...)
	return append(buf, followee.Bytes()...)
}

func bloomUserKey(addr common.Address) []byte {
	return append(append([]byte(nil), bloomUserPrefix...), addr.Bytes()...)
}

// Timestamps are stored unsigned; RLP has no signed integer encoding.
type storedContent struct {
	ID              uint64
	Author          common.Address
	LikeAmount      *big.Int
	CreatedAt       uint64
	Deadline        uint64
	ContentURI      string
	ContentHash     [32]byte
	AuthorPool      *big.Int
	LikerRewardPool *big.Int
	TotalWeight     *big.Int
	LikeCount       uint64
	AuthorClaimed   bool
	ProtocolFees    *big.Int
	LikerRewardPaid *big.Int
}

type storedLike struct {
	ContentID uint64
	Liker     common.Address
	LikeIndex uint64
	Weight    *big.Int
	Amount    *big.Int
	LikedAt   uint64
	Claimed   bool
	Reward    *big.Int
}

type storedFollow struct {
	Follower   common.Address
	Followee   common.Address
	FollowedAt uint64
}

type storedUser struct {
	TotalEarned     *big.Int
	TotalLiked      uint64
	FollowersCount  uint64
	FollowingCount  uint64
	ContentsCreated uint64
}

func toUnix(ts int64) (uint64, error) {
	if ts < 0 {
		return 0, fmt.Errorf("state: negative timestamp %d", ts)
	}
	return uint64(ts), nil
}

func fromUnix(ts uint64) int64 { return int64(ts) }

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// BloomNextContentID returns the identifier the next content record receives.
func (m *Manager) BloomNextContentID() (uint64, error) {
	var next uint64
	if _, err := m.KVGet(bloomNextContentKey, &next); err != nil {
		return 0, err
	}
	return next, nil
}

func (m *Manager) BloomSetNextContentID(next uint64) error {
	return m.KVPut(bloomNextContentKey, next)
}

func (m *Manager) BloomContentGet(id uint64) (*bloom.Content, bool, error) {
	var stored storedContent
	ok, err := m.KVGet(bloomContentKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &bloom.Content{
		ID:              stored.ID,
		Author:          stored.Author,
		LikeAmount:      amountOrZero(stored.LikeAmount),
		CreatedAt:       fromUnix(stored.CreatedAt),
		Deadline:        fromUnix(stored.Deadline),
		ContentURI:      stored.ContentURI,
		ContentHash:     stored.ContentHash,
		AuthorPool:      amountOrZero(stored.AuthorPool),
		LikerRewardPool: amountOrZero(stored.LikerRewardPool),
		TotalWeight:     amountOrZero(stored.TotalWeight),
		LikeCount:       stored.LikeCount,
		AuthorClaimed:   stored.AuthorClaimed,
		ProtocolFees:    amountOrZero(stored.ProtocolFees),
		LikerRewardPaid: amountOrZero(stored.LikerRewardPaid),
	}, true, nil
}

func (m *Manager) BloomContentPut(content *bloom.Content) error {
	if content == nil {
		return fmt.Errorf("state: nil content")
	}
	createdAt, err := toUnix(content.CreatedAt)
	if err != nil {
		return err
	}
	deadline, err := toUnix(content.Deadline)
	if err != nil {
		return err
	}
	stored := storedContent{
		ID:              content.ID,
		Author:          content.Author,
		LikeAmount:      amountOrZero(content.LikeAmount),
		CreatedAt:       createdAt,
		Deadline:        deadline,
		ContentURI:      content.ContentURI,
		ContentHash:     content.ContentHash,
		AuthorPool:      amountOrZero(content.AuthorPool),
		LikerRewardPool: amountOrZero(content.LikerRewardPool),
		TotalWeight:     amountOrZero(content.TotalWeight),
		LikeCount:       content.LikeCount,
		AuthorClaimed:   content.AuthorClaimed,
		ProtocolFees:    amountOrZero(content.ProtocolFees),
		LikerRewardPaid: amountOrZero(content.LikerRewardPaid),
	}
	return m.KVPut(bloomContentKey(content.ID), &stored)
}

func (m *Manager) BloomLikeGet(contentID uint64, liker common.Address) (*bloom.Like, bool, error) {
	var stored storedLike
	ok, err := m.KVGet(bloomLikeKey(contentID, liker), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &bloom.Like{
		ContentID: stored.ContentID,
		Liker:     stored.Liker,
		LikeIndex: stored.LikeIndex,
		Weight:    amountOrZero(stored.Weight),
		Amount:    amountOrZero(stored.Amount),
		LikedAt:   fromUnix(stored.LikedAt),
		Claimed:   stored.Claimed,
		Reward:    amountOrZero(stored.Reward),
	}, true, nil
}

func (m *Manager) BloomLikePut(like *bloom.Like) error {
	if like == nil {
		return fmt.Errorf("state: nil like")
	}
	likedAt, err := toUnix(like.LikedAt)
	if err != nil {
		return err
	}
	stored := storedLike{
		ContentID: like.ContentID,
		Liker:     like.Liker,
		LikeIndex: like.LikeIndex,
		Weight:    amountOrZero(like.Weight),
		Amount:    amountOrZero(like.Amount),
		LikedAt:   likedAt,
		Claimed:   like.Claimed,
		Reward:    amountOrZero(like.Reward),
	}
	return m.KVPut(bloomLikeKey(like.ContentID, like.Liker), &stored)
}

func (m *Manager) BloomFollowGet(follower, followee common.Address) (*bloom.Follow, bool, error) {
	var stored storedFollow
	ok, err := m.KVGet(bloomFollowKey(follower, followee), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &bloom.Follow{
		Follower:   stored.Follower,
		Followee:   stored.Followee,
		FollowedAt: fromUnix(stored.FollowedAt),
	}, true, nil
}

func (m *Manager) BloomFollowPut(follow *bloom.Follow) error {
	if follow == nil {
		return fmt.Errorf("state: nil follow")
	}
	followedAt, err := toUnix(follow.FollowedAt)
	if err != nil {
		return err
	}
	stored := storedFollow{Follower: follow.Follower, Followee: follow.Followee, FollowedAt: followedAt}
	return m.KVPut(bloomFollowKey(follow.Follower, follow.Followee), &stored)
}

func (m *Manager) BloomFollowDelete(follower, followee common.Address) error {
	return m.KVDelete(bloomFollowKey(follower, followee))
}

func (m *Manager) BloomUserGet(addr common.Address) (*bloom.UserStats, bool, error) {
	var stored storedUser
	ok, err := m.KVGet(bloomUserKey(addr), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &bloom.UserStats{
		Address:         addr,
		TotalEarned:     amountOrZero(stored.TotalEarned),
		TotalLiked:      stored.TotalLiked,
		FollowersCount:  stored.FollowersCount,
		FollowingCount:  stored.FollowingCount,
		ContentsCreated: stored.ContentsCreated,
	}, true, nil
}

func (m *Manager) BloomUserPut(stats *bloom.UserStats) error {
	if stats == nil {
		return fmt.Errorf("state: nil user stats")
	}
	stored := storedUser{
		TotalEarned:     amountOrZero(stats.TotalEarned),
		TotalLiked:      stats.TotalLiked,
		FollowersCount:  stats.FollowersCount,
		FollowingCount:  stats.FollowingCount,
		ContentsCreated: stats.ContentsCreated,
	}
	return m.KVPut(bloomUserKey(stats.Address), &stored)
}
