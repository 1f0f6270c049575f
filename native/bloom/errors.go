package bloom

import (
	"errors"
	"fmt"

	"bloomsocial/native/token"
)

var (
	// ErrNotFound is the parent of every missing-record error.
	ErrNotFound = errors.New("bloom: not found")

	ErrContentNotFound = fmt.Errorf("bloom: content %w", ErrNotFound)
	ErrLikeNotFound    = fmt.Errorf("bloom: like %w", ErrNotFound)

	ErrInvalidLikeAmount = errors.New("bloom: like amount must be positive")
	ErrInvalidDuration   = errors.New("bloom: duration must be positive")
	ErrContentExpired    = errors.New("bloom: content expired")
	ErrAlreadyLiked      = errors.New("bloom: already liked")
	ErrContentNotExpired = errors.New("bloom: content not expired")
	ErrAlreadyClaimed    = errors.New("bloom: already claimed")
	ErrNotAuthorized     = errors.New("bloom: caller is not the author")
	ErrCannotFollowSelf  = errors.New("bloom: cannot follow self")
	ErrAlreadyFollowing  = errors.New("bloom: already following")
	ErrNotFollowing      = errors.New("bloom: not following")

	// Token failures are surfaced unchanged so callers can match either package.
	ErrInsufficientBalance   = token.ErrInsufficientBalance
	ErrInsufficientAllowance = token.ErrInsufficientAllowance

	errNilState             = errors.New("bloom engine: state not configured")
	errNilToken             = errors.New("bloom engine: token not configured")
	errCustodyNotSet        = errors.New("bloom engine: custody address not configured")
	errFeeRecipientNotSet   = errors.New("bloom engine: protocol fee recipient not configured")
	errContentIDOverflow    = errors.New("bloom engine: content id space exhausted")
	errDeadlineOverflow     = errors.New("bloom engine: deadline overflows")
	errCorruptContentTotals = errors.New("bloom engine: content totals corrupt")
)
