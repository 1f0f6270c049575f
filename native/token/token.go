package token

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"bloomsocial/core/events"
	nativecommon "bloomsocial/native/common"
)

const (
	// ModuleName identifies the token engine in pause configuration.
	ModuleName = "token"

	Name     = "Bloom"
	Symbol   = "BLOOM"
	Decimals = 18
)

var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrFaucetCooldown        = errors.New("token: faucet cooldown active")
	ErrInvalidAmount         = errors.New("token: amount must not be negative")
	ErrZeroAddress           = errors.New("token: zero address")
	ErrBalanceOverflow       = errors.New("token: balance exceeds uint256")

	errNilState       = errors.New("token engine: state not configured")
	errFaucetDisabled = errors.New("token engine: faucet disabled")
)

// OneToken is a single whole BLOOM in base units.
var OneToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

type engineState interface {
	TokenBalance(addr common.Address) (*big.Int, error)
	SetTokenBalance(addr common.Address, amount *big.Int) error
	TokenAllowance(owner, spender common.Address) (*big.Int, error)
	SetTokenAllowance(owner, spender common.Address, amount *big.Int) error
	TokenSupply() (*big.Int, error)
	SetTokenSupply(amount *big.Int) error
	TokenFaucetLast(addr common.Address) (int64, bool, error)
	SetTokenFaucetLast(addr common.Address, ts int64) error
}

// TransferHook observes a completed balance movement. Hooks run synchronously
// inside the transfer call after balances are written.
type TransferHook func(from, to common.Address, amount *big.Int) error

// Engine implements the BLOOM fungible balance primitive.
type Engine struct {
	state          engineState
	emitter        events.Emitter
	nowFn          func() int64
	faucetAmount   *big.Int
	faucetCooldown time.Duration
	hooks          []TransferHook
	pauses         nativecommon.PauseView
}

// NewEngine constructs a token engine with default dependencies and the faucet
// disabled.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

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

// SetFaucet configures the fixed drip amount and per-account cooldown. A nil or
// non-positive amount disables the faucet.
func (e *Engine) SetFaucet(amount *big.Int, cooldown time.Duration) {
	if amount == nil || amount.Sign() <= 0 {
		e.faucetAmount = nil
	} else {
		e.faucetAmount = new(big.Int).Set(amount)
	}
	e.faucetCooldown = cooldown
}

// SetPauses configures the pause view consulted before user-initiated
// mutations.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// AddTransferHook registers a hook invoked after every successful transfer.
func (e *Engine) AddTransferHook(hook TransferHook) {
	if hook != nil {
		e.hooks = append(e.hooks, hook)
	}
}

func (e *Engine) TotalSupply() (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.TokenSupply()
}

func (e *Engine) BalanceOf(addr common.Address) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.TokenBalance(addr)
}

func (e *Engine) Allowance(owner, spender common.Address) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.TokenAllowance(owner, spender)
}

// Approve sets the allowance spender may draw from owner, replacing any
// previous value.
func (e *Engine) Approve(owner, spender common.Address, amount *big.Int) error {
	if e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return ErrBalanceOverflow
	}
	if err := e.state.SetTokenAllowance(owner, spender, new(big.Int).Set(amount)); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenApproval{Owner: owner, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

// Transfer moves amount from the sender's balance to the recipient.
func (e *Engine) Transfer(from, to common.Address, amount *big.Int) error {
	if e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	return e.move(from, to, amount)
}

// TransferFrom moves amount from owner to recipient on behalf of spender,
// consuming allowance. Balance and allowance are both checked before anything
// is written.
func (e *Engine) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	allowance, err := e.state.TokenAllowance(from, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientAllowance, allowance, amount)
	}
	balance, err := e.state.TokenBalance(from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance, amount)
	}
	remaining := new(big.Int).Sub(allowance, amount)
	if err := e.state.SetTokenAllowance(from, spender, remaining); err != nil {
		return err
	}
	return e.move(from, to, amount)
}

// Mint credits newly issued tokens. It is only used for genesis allocations and
// the faucet.
func (e *Engine) Mint(to common.Address, amount *big.Int) error {
	if e.state == nil {
		return errNilState
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	supply, err := e.state.TokenSupply()
	if err != nil {
		return err
	}
	nextSupply := new(big.Int).Add(supply, amount)
	if _, overflow := uint256.FromBig(nextSupply); overflow {
		return ErrBalanceOverflow
	}
	balance, err := e.state.TokenBalance(to)
	if err != nil {
		return err
	}
	if err := e.state.SetTokenBalance(to, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	if err := e.state.SetTokenSupply(nextSupply); err != nil {
		return err
	}
	e.emitter.Emit(events.TokenTransfer{To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Faucet mints the configured drip to the caller, at most once per cooldown.
func (e *Engine) Faucet(to common.Address) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if e.faucetAmount == nil {
		return nil, errFaucetDisabled
	}
	now := e.nowFn()
	last, ok, err := e.state.TokenFaucetLast(to)
	if err != nil {
		return nil, err
	}
	if ok {
		next := last + int64(e.faucetCooldown/time.Second)
		if now < next {
			return nil, fmt.Errorf("%w: retry after %d", ErrFaucetCooldown, next)
		}
	}
	if err := e.Mint(to, e.faucetAmount); err != nil {
		return nil, err
	}
	if err := e.state.SetTokenFaucetLast(to, now); err != nil {
		return nil, err
	}
	return new(big.Int).Set(e.faucetAmount), nil
}

func (e *Engine) move(from, to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	fromBalance, err := e.state.TokenBalance(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBalance, amount)
	}
	if from != to {
		toBalance, err := e.state.TokenBalance(to)
		if err != nil {
			return err
		}
		nextTo := new(big.Int).Add(toBalance, amount)
		if _, overflow := uint256.FromBig(nextTo); overflow {
			return ErrBalanceOverflow
		}
		if err := e.state.SetTokenBalance(from, new(big.Int).Sub(fromBalance, amount)); err != nil {
			return err
		}
		if err := e.state.SetTokenBalance(to, nextTo); err != nil {
			return err
		}
	}
	e.emitter.Emit(events.TokenTransfer{From: from, To: to, Amount: new(big.Int).Set(amount)})
	for _, hook := range e.hooks {
		if err := hook(from, to, amount); err != nil {
			return err
		}
	}
	return nil
}
