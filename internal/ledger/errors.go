package ledger

import "errors"

// Validation and state errors returned by ledger operations. The command
// router maps each of these to a user-facing reply; anything else that comes
// out of the ledger is an infrastructure failure and is reported generically.
var (
	// CreateMarket
	ErrAlreadyExists     = errors.New("market already exists")
	ErrInvalidPrediction = errors.New("prediction text is empty")
	ErrInvalidDuration   = errors.New("duration out of range")

	// PlaceBet
	ErrNotFound         = errors.New("market not found")
	ErrInactive         = errors.New("market is not active")
	ErrResolved         = errors.New("market already resolved")
	ErrExpired          = errors.New("market deadline has passed")
	ErrAmountOutOfRange = errors.New("bet amount out of range")

	// Resolve
	ErrAlreadyResolved = errors.New("market already resolved, outcome is final")
	ErrNotYetExpired   = errors.New("market cannot be resolved before its deadline")
	ErrNotAuthorized   = errors.New("account is not an authorized resolver")

	// Withdraw
	ErrNoFunds = errors.New("no claimable balance")
)

// ErrDuplicateEvent means the originating mention event id was already
// applied by an earlier delivery. The feed is at-least-once; a duplicate is
// expected traffic, not a user mistake, so it is deliberately not part of
// the user-facing taxonomy. Callers treat it as already-handled.
var ErrDuplicateEvent = errors.New("mention event already applied")

// IsUserFacing reports whether err belongs to the validation/state taxonomy
// above, i.e. it is safe and useful to echo to the reply channel.
func IsUserFacing(err error) bool {
	for _, e := range []error{
		ErrAlreadyExists, ErrInvalidPrediction, ErrInvalidDuration,
		ErrNotFound, ErrInactive, ErrResolved, ErrExpired, ErrAmountOutOfRange,
		ErrAlreadyResolved, ErrNotYetExpired, ErrNotAuthorized,
		ErrNoFunds,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
