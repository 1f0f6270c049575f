package bloom

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// GetUser returns the cached aggregates for an account. Unknown accounts yield
// zeroed stats.
func (e *Engine) GetUser(addr common.Address) (*UserStats, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	stats, err := e.loadUser(addr)
	if err != nil {
		return nil, err
	}
	return stats.Clone(), nil
}

func (e *Engine) loadUser(addr common.Address) (*UserStats, error) {
	stats, ok, err := e.state.BloomUserGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok || stats == nil {
		return &UserStats{Address: addr, TotalEarned: big.NewInt(0)}, nil
	}
	if stats.TotalEarned == nil {
		stats.TotalEarned = big.NewInt(0)
	}
	stats.Address = addr
	return stats, nil
}

func (e *Engine) updateUser(addr common.Address, mutate func(*UserStats)) error {
	stats, err := e.loadUser(addr)
	if err != nil {
		return err
	}
	mutate(stats)
	return e.state.BloomUserPut(stats)
}
