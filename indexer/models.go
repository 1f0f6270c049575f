package indexer

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// amountKeyWidth fits any uint256 in decimal.
const amountKeyWidth = 78

// Content is the projected view of a content record. Amounts are stored as
// decimal strings; the *Key columns hold zero-padded copies so ordering works
// the same on every driver.
type Content struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	ContentID          uint64    `gorm:"uniqueIndex" json:"contentId"`
	Author             string    `gorm:"size:42;index" json:"author"`
	LikeAmount         string    `json:"likeAmount"`
	Deadline           int64     `json:"deadline"`
	ContentURI         string    `json:"contentUri"`
	ContentHash        string    `gorm:"size:66" json:"contentHash"`
	Created            int64     `gorm:"column:created_at;index" json:"createdAt"`
	LikeCount          uint64    `gorm:"index" json:"likeCount"`
	TotalStaked        string    `json:"totalStaked"`
	TotalWeight        string    `json:"totalWeight"`
	AuthorPool         string    `json:"authorPool"`
	AuthorPoolKey      string    `gorm:"size:78;index" json:"-"`
	LikerRewardPool    string    `json:"likerRewardPool"`
	LikerRewardPoolKey string    `gorm:"size:78;index" json:"-"`
	ProtocolFees       string    `json:"protocolFees"`
	AuthorClaimed      bool      `json:"authorClaimed"`
	AuthorPayout       string    `json:"authorPayout"`
}

// Like is one accepted stake on a content record.
type Like struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	ContentID uint64    `gorm:"uniqueIndex:idx_like_content_liker" json:"contentId"`
	Liker     string    `gorm:"size:42;uniqueIndex:idx_like_content_liker;index" json:"liker"`
	LikeIndex uint64    `json:"likeIndex"`
	Weight    string    `json:"weight"`
	Amount    string    `json:"amount"`
	LikedAt   int64     `json:"likedAt"`
	Claimed   bool      `json:"claimed"`
	Reward    string    `json:"reward"`
}

// User aggregates per-account activity.
type User struct {
	Address         string `gorm:"size:42;primaryKey" json:"address"`
	TotalEarned     string `json:"totalEarned"`
	TotalEarnedKey  string `gorm:"size:78;index" json:"-"`
	TotalLiked      uint64 `json:"totalLiked"`
	FollowersCount  uint64 `json:"followersCount"`
	FollowingCount  uint64 `json:"followingCount"`
	ContentsCreated uint64 `json:"contentsCreated"`
	Balance         string `json:"balance"`
}

// Follow keeps the history of an edge. Inactive rows are never returned by
// queries; a later follow reactivates the same row.
type Follow struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	Follower     string    `gorm:"size:42;uniqueIndex:idx_follow_edge" json:"follower"`
	Followee     string    `gorm:"size:42;uniqueIndex:idx_follow_edge;index" json:"followee"`
	Active       bool      `gorm:"index" json:"-"`
	FollowedAt   int64     `json:"followedAt"`
	UnfollowedAt int64     `json:"-"`
}

// Claim kinds.
const (
	ClaimAuthor = "author"
	ClaimLiker  = "liker"
)

// Claim records a single payout for exports.
type Claim struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	Sequence  uint64    `gorm:"uniqueIndex" json:"sequence"`
	ContentID uint64    `gorm:"index" json:"contentId"`
	Kind      string    `gorm:"size:16;index" json:"kind"`
	Account   string    `gorm:"size:42;index" json:"account"`
	Amount    string    `json:"amount"`
	ClaimedAt int64     `gorm:"index" json:"claimedAt"`
}

// Cursor stores the last projected sequence and its chain digest.
type Cursor struct {
	ID       uint   `gorm:"primaryKey"`
	Sequence uint64 `gorm:"not null"`
	Digest   string `gorm:"size:66"`
}

const cursorRowID = 1

// AutoMigrate creates or updates the projection schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Content{},
		&Like{},
		&User{},
		&Follow{},
		&Claim{},
		&Cursor{},
	)
}

func amountKey(amount string) string {
	if len(amount) >= amountKeyWidth {
		return amount
	}
	return strings.Repeat("0", amountKeyWidth-len(amount)) + amount
}

func parseStored(amount string) (*big.Int, error) {
	if amount == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, fmt.Errorf("indexer: corrupt stored amount %q", amount)
	}
	return v, nil
}

func addStored(stored string, delta *big.Int) (string, error) {
	current, err := parseStored(stored)
	if err != nil {
		return "", err
	}
	if delta != nil {
		current.Add(current, delta)
	}
	if current.Sign() < 0 {
		current.SetInt64(0)
	}
	return current.String(), nil
}

func decrement(v uint64) uint64 {
	if v == 0 {
		return 0
	}
	return v - 1
}
