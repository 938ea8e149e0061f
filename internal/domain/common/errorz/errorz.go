package errorz

import "errors"

var (
	// ErrStoreUnavailable marks a transient store failure; the next trigger or poll retries.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotFound is returned when a record is missing. Callers usually treat it as a skip.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateState reports more than one reminder stored for the same (user, event).
	ErrDuplicateState = errors.New("duplicate reminder state")
	// ErrDeliveryFailed wraps push gateway failures. Deliveries are not retried.
	ErrDeliveryFailed = errors.New("push delivery failed")
	ErrInvalidChange = errors.New("invalid change message")
)
