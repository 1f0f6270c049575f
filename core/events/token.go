package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"bloomsocial/core/types"
)

const (
	// TypeTokenTransfer is emitted for every BLOOM balance movement. Mints use
	// the zero address as sender.
	TypeTokenTransfer = "token.transfer"
	// TypeTokenApproval is emitted when an allowance is set.
	TypeTokenApproval = "token.approval"
)

type TokenTransfer struct {
	From   common.Address
	To     common.Address
	Amount *big.Int
}

func (TokenTransfer) EventType() string { return TypeTokenTransfer }

func (e TokenTransfer) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenTransfer,
		Attributes: map[string]string{
			"from":   e.From.Hex(),
			"to":     e.To.Hex(),
			"amount": formatAmount(e.Amount),
		},
	}
}

// ParseTokenTransfer decodes a persisted transfer event.
func ParseTokenTransfer(evt *types.Event) (TokenTransfer, error) {
	r := newAttrReader(evt, TypeTokenTransfer)
	out := TokenTransfer{
		From:   r.address("from"),
		To:     r.address("to"),
		Amount: r.amount("amount"),
	}
	return out, r.err
}

type TokenApproval struct {
	Owner   common.Address
	Spender common.Address
	Amount  *big.Int
}

func (TokenApproval) EventType() string { return TypeTokenApproval }

func (e TokenApproval) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenApproval,
		Attributes: map[string]string{
			"owner":   e.Owner.Hex(),
			"spender": e.Spender.Hex(),
			"amount":  formatAmount(e.Amount),
		},
	}
}
