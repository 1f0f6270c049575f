package bloom

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"bloomsocial/core/events"
)

// ClaimAuthorReward pays the author pool to the author once the deadline has
// passed. The claim flag is persisted before funds move.
func (e *Engine) ClaimAuthorReward(contentID uint64, caller common.Address) (*big.Int, error) {
	if err := e.writable(); err != nil {
		return nil, err
	}
	if err := e.funded(); err != nil {
		return nil, err
	}
	content, err := e.loadContent(contentID)
	if err != nil {
		return nil, err
	}
	if caller != content.Author {
		return nil, ErrNotAuthorized
	}
	if !content.Expired(e.nowFn()) {
		return nil, ErrContentNotExpired
	}
	if content.AuthorClaimed {
		return nil, ErrAlreadyClaimed
	}

	payout := new(big.Int).Set(content.AuthorPool)
	content.AuthorClaimed = true
	if err := e.state.BloomContentPut(content); err != nil {
		return nil, err
	}
	if err := e.creditEarnings(caller, payout); err != nil {
		return nil, err
	}
	if payout.Sign() > 0 {
		if err := e.token.Transfer(e.custody, caller, payout); err != nil {
			return nil, err
		}
	}
	e.emitter.Emit(events.AuthorRewardClaimed{ContentID: contentID, Author: caller, Amount: new(big.Int).Set(payout)})
	return payout, nil
}

// ClaimLikerReward pays the caller's weighted share of the liker pool once the
// deadline has passed. The like is marked claimed before funds move.
func (e *Engine) ClaimLikerReward(contentID uint64, caller common.Address) (*big.Int, error) {
	if err := e.writable(); err != nil {
		return nil, err
	}
	if err := e.funded(); err != nil {
		return nil, err
	}
	content, err := e.loadContent(contentID)
	if err != nil {
		return nil, err
	}
	like, ok, err := e.state.BloomLikeGet(contentID, caller)
	if err != nil {
		return nil, err
	}
	if !ok || like == nil {
		return nil, ErrLikeNotFound
	}
	if !content.Expired(e.nowFn()) {
		return nil, ErrContentNotExpired
	}
	if like.Claimed {
		return nil, ErrAlreadyClaimed
	}

	share := LikerShare(content.LikerRewardPool, like.Weight, content.TotalWeight)
	paid := new(big.Int).Add(content.LikerRewardPaid, share)
	if paid.Cmp(content.LikerRewardPool) > 0 {
		return nil, errCorruptContentTotals
	}
	like.Claimed = true
	like.Reward = new(big.Int).Set(share)
	if err := e.state.BloomLikePut(like); err != nil {
		return nil, err
	}
	content.LikerRewardPaid = paid
	if err := e.state.BloomContentPut(content); err != nil {
		return nil, err
	}
	if err := e.creditEarnings(caller, share); err != nil {
		return nil, err
	}
	if share.Sign() > 0 {
		if err := e.token.Transfer(e.custody, caller, share); err != nil {
			return nil, err
		}
	}
	e.emitter.Emit(events.LikerRewardClaimed{ContentID: contentID, Liker: caller, Amount: new(big.Int).Set(share)})
	return share, nil
}

// GetEstimatedReward returns the liker's share of the current pool using the
// same arithmetic as ClaimLikerReward. Before the deadline the value can still
// shift as new likes arrive.
func (e *Engine) GetEstimatedReward(contentID uint64, liker common.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	content, err := e.loadContent(contentID)
	if err != nil {
		return nil, err
	}
	like, ok, err := e.state.BloomLikeGet(contentID, liker)
	if err != nil {
		return nil, err
	}
	if !ok || like == nil {
		return big.NewInt(0), nil
	}
	return LikerShare(content.LikerRewardPool, like.Weight, content.TotalWeight), nil
}

func (e *Engine) creditEarnings(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	return e.updateUser(addr, func(u *UserStats) {
		u.TotalEarned = new(big.Int).Add(u.TotalEarned, amount)
	})
}
