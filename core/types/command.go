package types

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CommandType defines the purpose of a ledger command.
type CommandType byte

const (
	CommandCreateContent     CommandType = 0x01
	CommandLike              CommandType = 0x02
	CommandClaimAuthorReward CommandType = 0x03
	CommandClaimLikerReward  CommandType = 0x04
	CommandFollow            CommandType = 0x05
	CommandUnfollow          CommandType = 0x06

	CommandTokenApprove  CommandType = 0x10
	CommandTokenTransfer CommandType = 0x11
	CommandTokenFaucet   CommandType = 0x12
)

// String returns the human readable label for the command type.
func (t CommandType) String() string {
	switch t {
	case CommandCreateContent:
		return "CreateContent"
	case CommandLike:
		return "Like"
	case CommandClaimAuthorReward:
		return "ClaimAuthorReward"
	case CommandClaimLikerReward:
		return "ClaimLikerReward"
	case CommandFollow:
		return "Follow"
	case CommandUnfollow:
		return "Unfollow"
	case CommandTokenApprove:
		return "TokenApprove"
	case CommandTokenTransfer:
		return "TokenTransfer"
	case CommandTokenFaucet:
		return "TokenFaucet"
	default:
		return fmt.Sprintf("0x%02x", byte(t))
	}
}

// Command is a single mutating request submitted to the ledger. Only the
// fields relevant to Type are read; the rest are ignored.
type Command struct {
	Type   CommandType    `json:"type"`
	Caller common.Address `json:"caller"`

	ContentID uint64 `json:"contentId,omitempty"`

	// Target is the followee for follow commands, the spender for approvals
	// and the recipient for transfers.
	Target common.Address `json:"target,omitempty"`

	// Amount is the per-like stake for CreateContent and the token amount for
	// approvals and transfers.
	Amount *big.Int `json:"amount,omitempty"`

	Duration    uint64   `json:"duration,omitempty"`
	ContentURI  string   `json:"contentUri,omitempty"`
	ContentHash [32]byte `json:"contentHash,omitempty"`
}

var errZeroCaller = errors.New("command: caller required")

// ValidateBasic performs stateless shape checks. Business rules (amount
// positivity, deadlines, duplicates) belong to the engines.
func (c *Command) ValidateBasic() error {
	if c == nil {
		return errors.New("command: nil command")
	}
	if c.Caller == (common.Address{}) {
		return errZeroCaller
	}
	switch c.Type {
	case CommandCreateContent:
		if c.Amount == nil {
			return errors.New("command: like amount required")
		}
	case CommandLike, CommandClaimAuthorReward, CommandClaimLikerReward, CommandTokenFaucet:
	case CommandFollow, CommandUnfollow:
		if c.Target == (common.Address{}) {
			return errors.New("command: followee required")
		}
	case CommandTokenApprove, CommandTokenTransfer:
		if c.Target == (common.Address{}) {
			return errors.New("command: target required")
		}
		if c.Amount == nil || c.Amount.Sign() < 0 {
			return errors.New("command: amount must be non-negative")
		}
	default:
		return fmt.Errorf("command: unknown type %s", c.Type)
	}
	return nil
}
