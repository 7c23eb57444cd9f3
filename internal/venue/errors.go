package venue

import "errors"

// Error taxonomy for venue interactions. Callers classify with errors.Is and
// resolve every recoverable case locally; only infrastructure faults travel
// further up.
var (
	// ErrUnavailable marks a transient transport or venue failure. Retried
	// with bounded backoff, then treated as a zero-fill timeout.
	ErrUnavailable = errors.New("venue unavailable")

	// ErrRejected marks an order the venue refused (bad params, insufficient
	// balance). The attempt aborts immediately with no exposure taken.
	ErrRejected = errors.New("order rejected")

	// ErrOrderNotFound marks a status query for an unknown order ID.
	ErrOrderNotFound = errors.New("order not found")
)
