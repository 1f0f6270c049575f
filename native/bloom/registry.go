package bloom

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"bloomsocial/core/events"
)

// CreateContent registers new content and returns its identifier. Nothing is
// charged to the author.
func (e *Engine) CreateContent(author common.Address, likeAmount *big.Int, durationSeconds uint64, contentURI string, contentHash [32]byte) (uint64, error) {
	if err := e.writable(); err != nil {
		return 0, err
	}
	if likeAmount == nil || likeAmount.Sign() <= 0 {
		return 0, ErrInvalidLikeAmount
	}
	if durationSeconds == 0 {
		return 0, ErrInvalidDuration
	}
	now := e.nowFn()
	if durationSeconds > uint64(math.MaxInt64-now) {
		return 0, errDeadlineOverflow
	}
	id, err := e.state.BloomNextContentID()
	if err != nil {
		return 0, err
	}
	if id == math.MaxUint64 {
		return 0, errContentIDOverflow
	}
	content := &Content{
		ID:              id,
		Author:          author,
		LikeAmount:      new(big.Int).Set(likeAmount),
		CreatedAt:       now,
		Deadline:        now + int64(durationSeconds),
		ContentURI:      contentURI,
		ContentHash:     contentHash,
		AuthorPool:      big.NewInt(0),
		LikerRewardPool: big.NewInt(0),
		TotalWeight:     big.NewInt(0),
		ProtocolFees:    big.NewInt(0),
		LikerRewardPaid: big.NewInt(0),
	}
	if err := e.state.BloomContentPut(content); err != nil {
		return 0, err
	}
	if err := e.state.BloomSetNextContentID(id + 1); err != nil {
		return 0, err
	}
	if err := e.updateUser(author, func(u *UserStats) { u.ContentsCreated++ }); err != nil {
		return 0, err
	}
	e.emitter.Emit(events.ContentCreated{
		ContentID:   id,
		Author:      author,
		LikeAmount:  new(big.Int).Set(likeAmount),
		CreatedAt:   content.CreatedAt,
		Deadline:    content.Deadline,
		ContentURI:  content.ContentURI,
		ContentHash: contentHash,
	})
	return id, nil
}

// GetContent returns a snapshot of the content record.
func (e *Engine) GetContent(contentID uint64) (*Content, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	content, err := e.loadContent(contentID)
	if err != nil {
		return nil, err
	}
	return content.Clone(), nil
}

// ContentCount returns the number of content records ever created.
func (e *Engine) ContentCount() (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.state.BloomNextContentID()
}

// GetLike returns the full like record for a liker.
func (e *Engine) GetLike(contentID uint64, liker common.Address) (*Like, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, err := e.loadContent(contentID); err != nil {
		return nil, err
	}
	like, ok, err := e.state.BloomLikeGet(contentID, liker)
	if err != nil {
		return nil, err
	}
	if !ok || like == nil {
		return nil, ErrLikeNotFound
	}
	return like.Clone(), nil
}

// GetLikeInfo returns the liker's index, weight and claim flag. A liker that
// never liked the content gets the zero record.
func (e *Engine) GetLikeInfo(contentID uint64, liker common.Address) (LikeInfo, error) {
	if err := e.ready(); err != nil {
		return LikeInfo{}, err
	}
	if _, err := e.loadContent(contentID); err != nil {
		return LikeInfo{}, err
	}
	like, ok, err := e.state.BloomLikeGet(contentID, liker)
	if err != nil {
		return LikeInfo{}, err
	}
	if !ok || like == nil {
		return LikeInfo{Weight: big.NewInt(0)}, nil
	}
	return LikeInfo{LikeIndex: like.LikeIndex, Weight: copyAmount(like.Weight), Claimed: like.Claimed}, nil
}
