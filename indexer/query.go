package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a queried entity does not exist.
var ErrNotFound = errors.New("indexer: not found")

// Content orderings accepted by ListContents.
const (
	OrderCreatedAt       = "createdAt"
	OrderLikeCount       = "likeCount"
	OrderLikerRewardPool = "likerRewardPool"
	OrderAuthorPool      = "authorPool"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var contentOrderColumns = map[string]string{
	OrderCreatedAt:       "created_at",
	OrderLikeCount:       "like_count",
	OrderLikerRewardPool: "liker_reward_pool_key",
	OrderAuthorPool:      "author_pool_key",
}

// Page selects a window of a list query.
type Page struct {
	First int
	Skip  int
}

func (p Page) normalize() Page {
	if p.First <= 0 {
		p.First = defaultPageSize
	}
	if p.First > maxPageSize {
		p.First = maxPageSize
	}
	if p.Skip < 0 {
		p.Skip = 0
	}
	return p
}

// ContentQuery parameterises ListContents.
type ContentQuery struct {
	OrderBy    string
	Descending bool
	Author     string
	Page       Page
}

// ContentDetail is a content record with its likers in arrival order.
type ContentDetail struct {
	Content
	Likes []Like `json:"likes"`
}

// Queries serves the read side of the projection.
type Queries struct {
	db    *gorm.DB
	cache *ProfileCache
	log   *slog.Logger
}

func NewQueries(db *gorm.DB, cache *ProfileCache, log *slog.Logger) *Queries {
	if log == nil {
		log = slog.Default()
	}
	return &Queries{db: db, cache: cache, log: log}
}

func (q *Queries) ListContents(ctx context.Context, query ContentQuery) ([]Content, error) {
	orderBy := query.OrderBy
	if orderBy == "" {
		orderBy = OrderCreatedAt
	}
	column, ok := contentOrderColumns[orderBy]
	if !ok {
		return nil, fmt.Errorf("indexer: unsupported orderBy %q", orderBy)
	}
	direction := "ASC"
	if query.Descending {
		direction = "DESC"
	}
	page := query.Page.normalize()
	tx := q.db.WithContext(ctx).Model(&Content{})
	if query.Author != "" {
		tx = tx.Where("author = ?", query.Author)
	}
	var out []Content
	err := tx.Order(column + " " + direction).
		Order("content_id " + direction).
		Limit(page.First).
		Offset(page.Skip).
		Find(&out).Error
	return out, err
}

func (q *Queries) GetContent(ctx context.Context, contentID uint64) (*ContentDetail, error) {
	detail := &ContentDetail{}
	err := q.db.WithContext(ctx).Where("content_id = ?", contentID).Take(&detail.Content).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := q.db.WithContext(ctx).
		Where("content_id = ?", contentID).
		Order("like_index ASC").
		Find(&detail.Likes).Error; err != nil {
		return nil, err
	}
	return detail, nil
}

// GetUser reads a profile through the cache when one is configured.
func (q *Queries) GetUser(ctx context.Context, address string) (*User, error) {
	if q.cache != nil {
		user, hit, err := q.cache.Get(ctx, address)
		if err != nil {
			q.log.Warn("profile cache read failed", slog.String("address", address), slog.Any("error", err))
		} else if hit {
			return user, nil
		}
	}
	user := &User{}
	err := q.db.WithContext(ctx).Where("address = ?", address).Take(user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if q.cache != nil {
		if err := q.cache.Put(ctx, user); err != nil {
			q.log.Warn("profile cache write failed", slog.String("address", address), slog.Any("error", err))
		}
	}
	return user, nil
}

// UserLikes lists the likes placed by address, newest first.
func (q *Queries) UserLikes(ctx context.Context, address string, page Page) ([]Like, error) {
	page = page.normalize()
	var out []Like
	err := q.db.WithContext(ctx).
		Where("liker = ?", address).
		Order("liked_at DESC").
		Order("content_id DESC").
		Limit(page.First).
		Offset(page.Skip).
		Find(&out).Error
	return out, err
}

// Following lists the active edges out of address.
func (q *Queries) Following(ctx context.Context, address string, page Page) ([]Follow, error) {
	return q.follows(ctx, "follower = ?", address, page)
}

// Followers lists the active edges into address.
func (q *Queries) Followers(ctx context.Context, address string, page Page) ([]Follow, error) {
	return q.follows(ctx, "followee = ?", address, page)
}

func (q *Queries) follows(ctx context.Context, clause, address string, page Page) ([]Follow, error) {
	page = page.normalize()
	var out []Follow
	err := q.db.WithContext(ctx).
		Where(clause, address).
		Where("active = ?", true).
		Order("followed_at DESC").
		Limit(page.First).
		Offset(page.Skip).
		Find(&out).Error
	return out, err
}

// Claims returns every payout with claimedAt in [from, to), oldest first.
// A zero to means no upper bound.
func (q *Queries) Claims(ctx context.Context, from, to int64) ([]Claim, error) {
	tx := q.db.WithContext(ctx).Where("claimed_at >= ?", from)
	if to > 0 {
		tx = tx.Where("claimed_at < ?", to)
	}
	var out []Claim
	err := tx.Order("sequence ASC").Find(&out).Error
	return out, err
}
