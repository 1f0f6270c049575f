package indexer

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"bloomsocial/core/events"
	"bloomsocial/core/state"
	"bloomsocial/core/types"
	"bloomsocial/native/bloom"
	"bloomsocial/observability/metrics"
)

var (
	// ErrSequenceGap is returned when a record does not directly follow the
	// stored cursor.
	ErrSequenceGap = errors.New("indexer: sequence gap")
	// ErrDigestMismatch is returned when a record does not chain onto the
	// stored cursor digest.
	ErrDigestMismatch = errors.New("indexer: digest mismatch")
)

// profileInvalidator drops cached user profiles after their rows change.
type profileInvalidator interface {
	Invalidate(ctx context.Context, addresses ...string) error
}

// Projector folds ledger event records into the relational read model. Each
// record is applied in one transaction together with the cursor, so a
// restarted indexer resumes exactly after the last committed record.
type Projector struct {
	db      *gorm.DB
	log     *slog.Logger
	cache   profileInvalidator
	metrics *metrics.IndexerMetrics
}

func NewProjector(db *gorm.DB, log *slog.Logger) *Projector {
	if log == nil {
		log = slog.Default()
	}
	return &Projector{db: db, log: log, metrics: metrics.Indexer()}
}

// SetCache registers the profile cache to invalidate on user changes.
func (p *Projector) SetCache(cache profileInvalidator) { p.cache = cache }

// Cursor returns the last applied sequence and its digest.
func (p *Projector) Cursor(ctx context.Context) (uint64, [32]byte, error) {
	cur, err := loadCursor(p.db.WithContext(ctx))
	if err != nil {
		return 0, [32]byte{}, err
	}
	digest, err := cur.digest()
	if err != nil {
		return 0, [32]byte{}, err
	}
	return cur.Sequence, digest, nil
}

// Apply projects rec. Records at or below the cursor are ignored.
func (p *Projector) Apply(ctx context.Context, rec types.EventRecord) error {
	if rec.Event == nil {
		return fmt.Errorf("indexer: record %d has no event", rec.Sequence)
	}
	touched := make(map[string]struct{})
	applied := false
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := loadCursor(tx)
		if err != nil {
			return err
		}
		if rec.Sequence <= cur.Sequence {
			return nil
		}
		if rec.Sequence != cur.Sequence+1 {
			return fmt.Errorf("%w: cursor %d, record %d", ErrSequenceGap, cur.Sequence, rec.Sequence)
		}
		prev, err := cur.digest()
		if err != nil {
			return err
		}
		want, err := state.RecordDigest(prev, rec)
		if err != nil {
			return err
		}
		if want != rec.Digest {
			return fmt.Errorf("%w at %d", ErrDigestMismatch, rec.Sequence)
		}
		if err := p.project(tx, rec, touched); err != nil {
			return err
		}
		cur.Sequence = rec.Sequence
		cur.Digest = "0x" + hex.EncodeToString(rec.Digest[:])
		if err := tx.Save(cur).Error; err != nil {
			return err
		}
		applied = true
		return nil
	})
	p.metrics.ObserveApplied(rec.Event.Type, err)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	p.metrics.SetCursor(rec.Sequence)
	if p.cache != nil && len(touched) > 0 {
		addrs := make([]string, 0, len(touched))
		for addr := range touched {
			addrs = append(addrs, addr)
		}
		if err := p.cache.Invalidate(ctx, addrs...); err != nil {
			p.log.Warn("profile cache invalidation failed", slog.Any("error", err))
		}
	}
	return nil
}

func (p *Projector) project(tx *gorm.DB, rec types.EventRecord, touched map[string]struct{}) error {
	switch rec.Event.Type {
	case events.TypeContentCreated:
		evt, err := events.ParseContentCreated(rec.Event)
		if err != nil {
			return err
		}
		return projectContentCreated(tx, evt, touched)
	case events.TypeContentLiked:
		evt, err := events.ParseContentLiked(rec.Event)
		if err != nil {
			return err
		}
		return projectContentLiked(tx, evt, touched)
	case events.TypeAuthorRewardClaimed:
		evt, err := events.ParseAuthorRewardClaimed(rec.Event)
		if err != nil {
			return err
		}
		return projectAuthorClaim(tx, rec, evt, touched)
	case events.TypeLikerRewardClaimed:
		evt, err := events.ParseLikerRewardClaimed(rec.Event)
		if err != nil {
			return err
		}
		return projectLikerClaim(tx, rec, evt, touched)
	case events.TypeFollowed:
		evt, err := events.ParseFollowed(rec.Event)
		if err != nil {
			return err
		}
		return projectFollowed(tx, evt, touched)
	case events.TypeUnfollowed:
		evt, err := events.ParseUnfollowed(rec.Event)
		if err != nil {
			return err
		}
		return projectUnfollowed(tx, evt, touched)
	case events.TypeTokenTransfer:
		evt, err := events.ParseTokenTransfer(rec.Event)
		if err != nil {
			return err
		}
		return projectTransfer(tx, evt, touched)
	default:
		// Approvals and unknown types only advance the cursor.
		return nil
	}
}

func projectContentCreated(tx *gorm.DB, evt events.ContentCreated, touched map[string]struct{}) error {
	content := &Content{
		ID:                 uuid.New(),
		ContentID:          evt.ContentID,
		Author:             addressKey(evt.Author),
		LikeAmount:         amountString(evt.LikeAmount),
		Deadline:           evt.Deadline,
		ContentURI:         evt.ContentURI,
		ContentHash:        "0x" + hex.EncodeToString(evt.ContentHash[:]),
		Created:            evt.CreatedAt,
		TotalStaked:        "0",
		TotalWeight:        "0",
		AuthorPool:         "0",
		AuthorPoolKey:      amountKey("0"),
		LikerRewardPool:    "0",
		LikerRewardPoolKey: amountKey("0"),
		ProtocolFees:       "0",
		AuthorPayout:       "0",
	}
	if err := tx.Create(content).Error; err != nil {
		return fmt.Errorf("indexer: create content %d: %w", evt.ContentID, err)
	}
	return updateUser(tx, content.Author, touched, func(u *User) error {
		u.ContentsCreated++
		return nil
	})
}

func projectContentLiked(tx *gorm.DB, evt events.ContentLiked, touched map[string]struct{}) error {
	content, err := loadContent(tx, evt.ContentID)
	if err != nil {
		return err
	}
	author, liker, protocol := bloom.SplitStake(evt.Amount)
	if content.AuthorPool, err = addStored(content.AuthorPool, author); err != nil {
		return err
	}
	if content.LikerRewardPool, err = addStored(content.LikerRewardPool, liker); err != nil {
		return err
	}
	if content.ProtocolFees, err = addStored(content.ProtocolFees, protocol); err != nil {
		return err
	}
	if content.TotalStaked, err = addStored(content.TotalStaked, evt.Amount); err != nil {
		return err
	}
	if content.TotalWeight, err = addStored(content.TotalWeight, evt.Weight); err != nil {
		return err
	}
	content.AuthorPoolKey = amountKey(content.AuthorPool)
	content.LikerRewardPoolKey = amountKey(content.LikerRewardPool)
	content.LikeCount++
	if err := tx.Save(content).Error; err != nil {
		return err
	}
	like := &Like{
		ID:        uuid.New(),
		ContentID: evt.ContentID,
		Liker:     addressKey(evt.Liker),
		LikeIndex: evt.LikeIndex,
		Weight:    amountString(evt.Weight),
		Amount:    amountString(evt.Amount),
		LikedAt:   evt.LikedAt,
		Reward:    "0",
	}
	if err := tx.Create(like).Error; err != nil {
		return fmt.Errorf("indexer: create like %d/%s: %w", evt.ContentID, like.Liker, err)
	}
	return updateUser(tx, like.Liker, touched, func(u *User) error {
		u.TotalLiked++
		return nil
	})
}

func projectAuthorClaim(tx *gorm.DB, rec types.EventRecord, evt events.AuthorRewardClaimed, touched map[string]struct{}) error {
	content, err := loadContent(tx, evt.ContentID)
	if err != nil {
		return err
	}
	content.AuthorClaimed = true
	content.AuthorPayout = amountString(evt.Amount)
	if err := tx.Save(content).Error; err != nil {
		return err
	}
	account := addressKey(evt.Author)
	if err := recordClaim(tx, rec, evt.ContentID, ClaimAuthor, account, evt.Amount); err != nil {
		return err
	}
	return creditEarnings(tx, account, evt.Amount, touched)
}

func projectLikerClaim(tx *gorm.DB, rec types.EventRecord, evt events.LikerRewardClaimed, touched map[string]struct{}) error {
	account := addressKey(evt.Liker)
	like := &Like{}
	err := tx.Where("content_id = ? AND liker = ?", evt.ContentID, account).Take(like).Error
	if err != nil {
		return fmt.Errorf("indexer: like %d/%s: %w", evt.ContentID, account, err)
	}
	like.Claimed = true
	like.Reward = amountString(evt.Amount)
	if err := tx.Save(like).Error; err != nil {
		return err
	}
	if err := recordClaim(tx, rec, evt.ContentID, ClaimLiker, account, evt.Amount); err != nil {
		return err
	}
	return creditEarnings(tx, account, evt.Amount, touched)
}

func projectFollowed(tx *gorm.DB, evt events.Followed, touched map[string]struct{}) error {
	follower, followee := addressKey(evt.Follower), addressKey(evt.Followee)
	edge := &Follow{}
	err := tx.Where("follower = ? AND followee = ?", follower, followee).Take(edge).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		edge = &Follow{ID: uuid.New(), Follower: follower, Followee: followee}
	case err != nil:
		return err
	}
	edge.Active = true
	edge.FollowedAt = evt.FollowedAt
	edge.UnfollowedAt = 0
	if err := tx.Save(edge).Error; err != nil {
		return err
	}
	if err := updateUser(tx, follower, touched, func(u *User) error {
		u.FollowingCount++
		return nil
	}); err != nil {
		return err
	}
	return updateUser(tx, followee, touched, func(u *User) error {
		u.FollowersCount++
		return nil
	})
}

func projectUnfollowed(tx *gorm.DB, evt events.Unfollowed, touched map[string]struct{}) error {
	follower, followee := addressKey(evt.Follower), addressKey(evt.Followee)
	edge := &Follow{}
	err := tx.Where("follower = ? AND followee = ?", follower, followee).Take(edge).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err == nil {
		edge.Active = false
		edge.UnfollowedAt = evt.UnfollowedAt
		if err := tx.Save(edge).Error; err != nil {
			return err
		}
	}
	if err := updateUser(tx, follower, touched, func(u *User) error {
		u.FollowingCount = decrement(u.FollowingCount)
		return nil
	}); err != nil {
		return err
	}
	return updateUser(tx, followee, touched, func(u *User) error {
		u.FollowersCount = decrement(u.FollowersCount)
		return nil
	})
}

func projectTransfer(tx *gorm.DB, evt events.TokenTransfer, touched map[string]struct{}) error {
	if evt.From != (common.Address{}) {
		negative := new(big.Int).Neg(nonNilAmount(evt.Amount))
		if err := updateUser(tx, addressKey(evt.From), touched, func(u *User) (err error) {
			u.Balance, err = addStored(u.Balance, negative)
			return err
		}); err != nil {
			return err
		}
	}
	return updateUser(tx, addressKey(evt.To), touched, func(u *User) (err error) {
		u.Balance, err = addStored(u.Balance, evt.Amount)
		return err
	})
}

func recordClaim(tx *gorm.DB, rec types.EventRecord, contentID uint64, kind, account string, amount *big.Int) error {
	claim := &Claim{
		ID:        uuid.New(),
		Sequence:  rec.Sequence,
		ContentID: contentID,
		Kind:      kind,
		Account:   account,
		Amount:    amountString(amount),
		ClaimedAt: rec.Timestamp,
	}
	return tx.Create(claim).Error
}

func creditEarnings(tx *gorm.DB, account string, amount *big.Int, touched map[string]struct{}) error {
	return updateUser(tx, account, touched, func(u *User) (err error) {
		u.TotalEarned, err = addStored(u.TotalEarned, amount)
		u.TotalEarnedKey = amountKey(u.TotalEarned)
		return err
	})
}

func loadContent(tx *gorm.DB, contentID uint64) (*Content, error) {
	content := &Content{}
	if err := tx.Where("content_id = ?", contentID).Take(content).Error; err != nil {
		return nil, fmt.Errorf("indexer: content %d: %w", contentID, err)
	}
	return content, nil
}

func updateUser(tx *gorm.DB, address string, touched map[string]struct{}, mutate func(*User) error) error {
	user := &User{}
	err := tx.Where("address = ?", address).Take(user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = newUser(address)
	case err != nil:
		return err
	}
	if err := mutate(user); err != nil {
		return err
	}
	if err := tx.Save(user).Error; err != nil {
		return fmt.Errorf("indexer: save user %s: %w", address, err)
	}
	touched[address] = struct{}{}
	return nil
}

func newUser(address string) *User {
	return &User{
		Address:        address,
		TotalEarned:    "0",
		TotalEarnedKey: amountKey("0"),
		Balance:        "0",
	}
}

func loadCursor(tx *gorm.DB) (*Cursor, error) {
	cur := &Cursor{}
	err := tx.Where("id = ?", cursorRowID).Take(cur).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Cursor{ID: cursorRowID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("indexer: load cursor: %w", err)
	}
	return cur, nil
}

func (c *Cursor) digest() ([32]byte, error) {
	var out [32]byte
	if c.Digest == "" {
		return out, nil
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(c.Digest, "0x"))
	if err != nil || len(raw) != len(out) {
		return out, fmt.Errorf("indexer: corrupt cursor digest %q", c.Digest)
	}
	copy(out[:], raw)
	return out, nil
}

// addressKey is the canonical checksummed form used in every table.
func addressKey(addr common.Address) string { return addr.Hex() }

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func nonNilAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
