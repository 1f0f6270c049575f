package bloom

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"bloomsocial/core/events"
	nativecommon "bloomsocial/native/common"
)

// ModuleName identifies the bloom engine in pause configuration.
const ModuleName = "bloom"

type engineState interface {
	BloomNextContentID() (uint64, error)
	BloomSetNextContentID(next uint64) error
	BloomContentGet(id uint64) (*Content, bool, error)
	BloomContentPut(content *Content) error
	BloomLikeGet(contentID uint64, liker common.Address) (*Like, bool, error)
	BloomLikePut(like *Like) error
	BloomFollowGet(follower, followee common.Address) (*Follow, bool, error)
	BloomFollowPut(follow *Follow) error
	BloomFollowDelete(follower, followee common.Address) error
	BloomUserGet(addr common.Address) (*UserStats, bool, error)
	BloomUserPut(stats *UserStats) error
}

// tokenLedger is the subset of the BLOOM token the engine moves funds through.
type tokenLedger interface {
	Transfer(from, to common.Address, amount *big.Int) error
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
}

// Engine implements the content reward ledger: registry, staking, pool
// accounting, claims and the follow graph.
type Engine struct {
	state          engineState
	token          tokenLedger
	emitter        events.Emitter
	nowFn          func() int64
	weights        WeightPolicy
	custody        common.Address
	feeRecipient   common.Address
	strictUnfollow bool
	pauses         nativecommon.PauseView
}

// NewEngine constructs a bloom engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
		weights: HarmonicWeight{},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetToken configures the token the engine stakes and pays out in.
func (e *Engine) SetToken(token tokenLedger) { e.token = token }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetWeightPolicy replaces the liker weight function. Nil restores the
// harmonic default.
func (e *Engine) SetWeightPolicy(policy WeightPolicy) {
	if policy == nil {
		e.weights = HarmonicWeight{}
		return
	}
	e.weights = policy
}

// SetCustody configures the account that holds staked funds until claimed.
func (e *Engine) SetCustody(addr common.Address) { e.custody = addr }

// Custody returns the configured custody account.
func (e *Engine) Custody() common.Address { return e.custody }

// SetProtocolFeeRecipient configures the account receiving the protocol share.
func (e *Engine) SetProtocolFeeRecipient(addr common.Address) { e.feeRecipient = addr }

// SetStrictUnfollow makes Unfollow of a missing edge fail with ErrNotFollowing
// instead of succeeding silently.
func (e *Engine) SetStrictUnfollow(strict bool) { e.strictUnfollow = strict }

// SetPauses configures the pause view consulted before every mutation.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

func (e *Engine) ready() error {
	if e.state == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) writable() error {
	if err := e.ready(); err != nil {
		return err
	}
	return nativecommon.Guard(e.pauses, ModuleName)
}

func (e *Engine) funded() error {
	if e.token == nil {
		return errNilToken
	}
	if e.custody == (common.Address{}) {
		return errCustodyNotSet
	}
	return nil
}

func (e *Engine) loadContent(id uint64) (*Content, error) {
	content, ok, err := e.state.BloomContentGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || content == nil {
		return nil, fmt.Errorf("%w: %d", ErrContentNotFound, id)
	}
	content.normalize()
	return content, nil
}

// Like stakes the content's like amount from the liker into custody and
// records the liker's weight. The stake is pulled before any ledger record is
// touched.
func (e *Engine) Like(contentID uint64, liker common.Address) (*Like, error) {
	if err := e.writable(); err != nil {
		return nil, err
	}
	if err := e.funded(); err != nil {
		return nil, err
	}
	if e.feeRecipient == (common.Address{}) {
		return nil, errFeeRecipientNotSet
	}
	content, err := e.loadContent(contentID)
	if err != nil {
		return nil, err
	}
	now := e.nowFn()
	if content.Expired(now) {
		return nil, ErrContentExpired
	}
	if _, exists, err := e.state.BloomLikeGet(contentID, liker); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrAlreadyLiked
	}

	amount := new(big.Int).Set(content.LikeAmount)
	if err := e.token.TransferFrom(e.custody, liker, e.custody, amount); err != nil {
		return nil, err
	}

	index := content.LikeCount + 1
	weight := e.weights.Weight(index)
	if weight == nil || weight.Sign() <= 0 {
		return nil, fmt.Errorf("bloom engine: weight policy returned non-positive weight for index %d", index)
	}
	content.LikeCount = index
	content.TotalWeight = new(big.Int).Add(content.TotalWeight, weight)

	like := &Like{
		ContentID: contentID,
		Liker:     liker,
		LikeIndex: index,
		Weight:    new(big.Int).Set(weight),
		Amount:    amount,
		LikedAt:   now,
		Reward:    big.NewInt(0),
	}
	if err := e.state.BloomLikePut(like); err != nil {
		return nil, err
	}
	if err := e.updateUser(liker, func(u *UserStats) { u.TotalLiked++ }); err != nil {
		return nil, err
	}
	if err := e.distribute(content, amount); err != nil {
		return nil, err
	}

	e.emitter.Emit(events.ContentLiked{
		ContentID: contentID,
		Liker:     liker,
		LikeIndex: index,
		Weight:    new(big.Int).Set(weight),
		Amount:    new(big.Int).Set(amount),
		LikedAt:   now,
	})
	return like.Clone(), nil
}

// distribute credits the author and liker shares of a stake to the content
// pools, persists the content and forwards the protocol share.
func (e *Engine) distribute(content *Content, amount *big.Int) error {
	authorShare, likerShare, protocolShare := SplitStake(amount)
	content.AuthorPool = new(big.Int).Add(content.AuthorPool, authorShare)
	content.LikerRewardPool = new(big.Int).Add(content.LikerRewardPool, likerShare)
	content.ProtocolFees = new(big.Int).Add(content.ProtocolFees, protocolShare)
	if err := e.state.BloomContentPut(content); err != nil {
		return err
	}
	if protocolShare.Sign() == 0 {
		return nil
	}
	return e.token.Transfer(e.custody, e.feeRecipient, protocolShare)
}
