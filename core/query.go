package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"bloomsocial/native/bloom"
)

// Reads run under the shared lock and observe the last committed state only;
// the journal is always closed while a read holds the lock.

func (l *Ledger) GetContent(contentID uint64) (*bloom.Content, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bloom.GetContent(contentID)
}

func (l *Ledger) ContentCount() (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bloom.ContentCount()
}

func (l *Ledger) GetLikeInfo(contentID uint64, liker common.Address) (bloom.LikeInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bloom.GetLikeInfo(contentID, liker)
}

func (l *Ledger) GetLike(contentID uint64, liker common.Address) (*bloom.Like, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bloom.GetLike(contentID, liker)
}

func (l *Ledger) GetEstimatedReward(contentID uint64, liker common.Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bloom.GetEstimatedReward(contentID, liker)
}

func (l *Ledger) IsFollowing(follower, followee common.Address) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bloom.IsFollowing(follower, followee)
}

func (l *Ledger) GetFollow(follower, followee common.Address) (*bloom.Follow, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bloom.GetFollow(follower, followee)
}

func (l *Ledger) GetUser(addr common.Address) (*bloom.UserStats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.bloom.GetUser(addr)
}

func (l *Ledger) BalanceOf(addr common.Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.token.BalanceOf(addr)
}

func (l *Ledger) Allowance(owner, spender common.Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.token.Allowance(owner, spender)
}

func (l *Ledger) TotalSupply() (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.token.TotalSupply()
}

// Custody returns the account holding staked funds.
func (l *Ledger) Custody() common.Address { return l.bloom.Custody() }

// Events returns up to limit committed records after cursor.
func (l *Ledger) Events(cursor uint64, limit int) ([]EventRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.EventsAfter(cursor, limit)
}

// EventHead returns the sequence of the newest committed event.
func (l *Ledger) EventHead() (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	head, _, err := l.state.EventHead()
	return head, err
}

// VerifyEvents recomputes the event log digest chain.
func (l *Ledger) VerifyEvents() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.VerifyEventChain()
}

// Now returns the ledger clock in unix seconds.
func (l *Ledger) Now() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nowFn()
}
