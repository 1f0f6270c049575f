package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	tokenSupplyKey     = []byte("token/supply")
	tokenBalancePrefix = []byte("token/balance/")
	tokenAllowPrefix   = []byte("token/allowance/")
	tokenFaucetPrefix  = []byte("token/faucet/")
)

func tokenBalanceKey(addr common.Address) []byte {
	return append(append([]byte(nil), tokenBalancePrefix...), addr.Bytes()...)
}

func tokenAllowanceKey(owner, spender common.Address) []byte {
	buf := append(append([]byte(nil), tokenAllowPrefix...), owner.Bytes()...)
	return append(buf, spender.Bytes()...)
}

func tokenFaucetKey(addr common.Address) []byte {
	return append(append([]byte(nil), tokenFaucetPrefix...), addr.Bytes()...)
}

func (m *Manager) loadAmount(key []byte) (*big.Int, error) {
	value := new(big.Int)
	if _, err := m.KVGet(key, value); err != nil {
		return nil, err
	}
	return value, nil
}

func (m *Manager) TokenBalance(addr common.Address) (*big.Int, error) {
	return m.loadAmount(tokenBalanceKey(addr))
}

func (m *Manager) SetTokenBalance(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return m.KVDelete(tokenBalanceKey(addr))
	}
	return m.KVPut(tokenBalanceKey(addr), amount)
}

func (m *Manager) TokenAllowance(owner, spender common.Address) (*big.Int, error) {
	return m.loadAmount(tokenAllowanceKey(owner, spender))
}

func (m *Manager) SetTokenAllowance(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return m.KVDelete(tokenAllowanceKey(owner, spender))
	}
	return m.KVPut(tokenAllowanceKey(owner, spender), amount)
}

func (m *Manager) TokenSupply() (*big.Int, error) {
	return m.loadAmount(tokenSupplyKey)
}

func (m *Manager) SetTokenSupply(amount *big.Int) error {
	return m.KVPut(tokenSupplyKey, amountOrZero(amount))
}

// TokenFaucetLast returns the unix time of the account's last faucet drip.
func (m *Manager) TokenFaucetLast(addr common.Address) (int64, bool, error) {
	var ts uint64
	ok, err := m.KVGet(tokenFaucetKey(addr), &ts)
	if err != nil || !ok {
		return 0, false, err
	}
	return fromUnix(ts), true, nil
}

func (m *Manager) SetTokenFaucetLast(addr common.Address, ts int64) error {
	stored, err := toUnix(ts)
	if err != nil {
		return err
	}
	return m.KVPut(tokenFaucetKey(addr), stored)
}
