package lease

import (
	"errors"
	"fmt"
)

// Sentinel errors grouped by the abstract error kinds a lease can surface.
// Validation/unauthorized/unsupported errors fail the current stimulus with
// no state change; dex/timeout/decode errors are routed through the anomaly
// and recovery machinery instead of being returned to the caller directly.
var (
	// ErrInvariant marks a programmer error: a persisted invariant was
	// violated. Callers should treat this as unrecoverable.
	ErrInvariant = errors.New("lease: invariant violated")

	ErrUnauthorized        = errors.New("lease: sender is not the expected principal")
	ErrUnsupportedInState  = errors.New("lease: stimulus not accepted in current state")
	ErrValidation          = errors.New("lease: validation failed")
	ErrUnknownCurrency     = errors.New("lease: unknown currency")
	ErrBelowMinTransaction = errors.New("lease: amount below min_transaction")
	ErrBelowMinAsset       = errors.New("lease: amount would leave position below min_asset")
	ErrClosePolicyOrdering = errors.New("lease: close policy violates ordering")
	ErrClosePolicyFires    = errors.New("lease: close policy would fire immediately")

	ErrFetch    = errors.New("lease: collaborator query failed")
	ErrNoPrice  = errors.New("lease: oracle price unavailable")
	ErrNoLoan   = errors.New("lease: lpp loan record missing")

	ErrFinanceOverflow = errors.New("lease: finance overflow")

	ErrDexError   = errors.New("lease: dex returned an error ack")
	ErrDexTimeout = errors.New("lease: dex ibc timeout elapsed")
	ErrDecode     = errors.New("lease: response payload malformed")

	ErrAlreadyClosed   = errors.New("lease: lease already in a terminal state")
	ErrNilState        = errors.New("lease: nil state")
)

// Unauthorizedf wraps ErrUnauthorized with a human-readable reason.
func Unauthorizedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}

// Unsupportedf wraps ErrUnsupportedInState with the offending stimulus name.
func Unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedInState, fmt.Sprintf(format, args...))
}

// Validationf wraps ErrValidation with a human-readable reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
