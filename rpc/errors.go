package rpc

import (
	"context"
	"errors"
	"net/http"

	"bloomsocial/core"
	"bloomsocial/native/bloom"
	nativecommon "bloomsocial/native/common"
	"bloomsocial/native/token"
)

// Ledger error codes. Each rejection kind has its own stable code so clients
// can branch without parsing messages.
const (
	codeInvalidLikeAmount     = -32100
	codeInvalidDuration       = -32101
	codeContentExpired        = -32102
	codeAlreadyLiked          = -32103
	codeContentNotExpired     = -32104
	codeAlreadyClaimed        = -32105
	codeNotAuthorized         = -32106
	codeCannotFollowSelf      = -32107
	codeAlreadyFollowing      = -32108
	codeNotFollowing          = -32109
	codeContentNotFound       = -32110
	codeLikeNotFound          = -32111
	codeInsufficientBalance   = -32120
	codeInsufficientAllowance = -32121
	codeFaucetCooldown        = -32122
	codeModulePaused          = -32130
	codeLedgerClosed          = -32131
	codeReservedAccount       = -32132
)

var ledgerErrorCodes = []struct {
	err  error
	code int
}{
	{bloom.ErrInvalidLikeAmount, codeInvalidLikeAmount},
	{bloom.ErrInvalidDuration, codeInvalidDuration},
	{bloom.ErrContentExpired, codeContentExpired},
	{bloom.ErrAlreadyLiked, codeAlreadyLiked},
	{bloom.ErrContentNotExpired, codeContentNotExpired},
	{bloom.ErrAlreadyClaimed, codeAlreadyClaimed},
	{bloom.ErrNotAuthorized, codeNotAuthorized},
	{bloom.ErrCannotFollowSelf, codeCannotFollowSelf},
	{bloom.ErrAlreadyFollowing, codeAlreadyFollowing},
	{bloom.ErrNotFollowing, codeNotFollowing},
	{bloom.ErrContentNotFound, codeContentNotFound},
	{bloom.ErrLikeNotFound, codeLikeNotFound},
	{token.ErrInsufficientBalance, codeInsufficientBalance},
	{token.ErrInsufficientAllowance, codeInsufficientAllowance},
	{token.ErrFaucetCooldown, codeFaucetCooldown},
	{nativecommon.ErrModulePaused, codeModulePaused},
	{core.ErrClosed, codeLedgerClosed},
	{core.ErrReservedAccount, codeReservedAccount},
}

// ledgerError converts a ledger failure into a JSON-RPC error.
func ledgerError(message string, err error) *RPCError {
	if err == nil {
		return nil
	}
	for _, entry := range ledgerErrorCodes {
		if errors.Is(err, entry.err) {
			status := http.StatusBadRequest
			if entry.code == codeContentNotFound || entry.code == codeLikeNotFound {
				status = http.StatusNotFound
			}
			return &RPCError{Code: entry.code, Message: message, Data: err.Error(), status: status}
		}
	}
	switch {
	case errors.Is(err, core.ErrInvalidCommand),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, token.ErrZeroAddress),
		errors.Is(err, token.ErrBalanceOverflow):
		return invalidParams(message, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &RPCError{Code: codeServerError, Message: message, Data: err.Error(), status: http.StatusServiceUnavailable}
	}
	return &RPCError{Code: codeServerError, Message: message, Data: err.Error(), status: http.StatusInternalServerError}
}
