package services

import "errors"

// Every failure a caller can provoke is a named, recoverable error. The
// handlers translate these to stable wire codes; nothing in this package
// panics on a request path.
var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidItem        = errors.New("invalid item")
	ErrMessageTooLong     = errors.New("message too long")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientItems  = errors.New("insufficient items")
	ErrMaxExceeded        = errors.New("max balance exceeded")
	ErrNotParticipant     = errors.New("not a participant")
	ErrNotFound           = errors.New("not found")
	ErrExpired            = errors.New("expired")
	ErrTooManyPending     = errors.New("too many pending")
	ErrDailyLimitReached  = errors.New("daily limit reached")
	ErrRateLimited        = errors.New("rate limited")
	ErrProfileUnavailable = errors.New("profile unavailable")
	ErrBusy               = errors.New("checkout already in flight")
	ErrTimeout            = errors.New("checkout timed out")
	ErrSelfTrade          = errors.New("cannot trade with yourself")
	ErrSelfGift           = errors.New("cannot gift yourself")
	ErrOptedOut           = errors.New("counterpart opted out")
	ErrBanned             = errors.New("account banned")
	ErrDuplicateReceipt   = errors.New("receipt already granted")
)

// SystemActor is the sentinel identity for maintenance-initiated actions
// (expiry sweeps, forced cancellation on session end).
const SystemActor = "system"
