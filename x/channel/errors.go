package channel

import (
	"github.com/iov-one/chanledger/errors"
)

// Generic failures reuse the root errors so that callers can test them
// without importing this package.
var (
	ErrUnauthorized        = errors.ErrUnauthorized
	ErrInvalidAmount       = errors.ErrAmount
	ErrChannelNotFound     = errors.ErrNotFound
	ErrInsufficientBalance = errors.ErrInsufficientAmount
)

// channel takes 1021-1029
var (
	ErrChannelAlreadyExists = errors.Register(1021, "channel already funded")
	ErrChannelClosed        = errors.Register(1022, "channel closed")
	ErrTimeoutNotReached    = errors.Register(1023, "timeout not reached")
	ErrDisputeActive        = errors.Register(1024, "dispute active")
	ErrInvalidNonce         = errors.Register(1025, "invalid nonce")
	ErrMaxChannelsExceeded  = errors.Register(1026, "max channels exceeded")
)
