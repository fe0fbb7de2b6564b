package provision

import "errors"

// Sentinel errors shared by the coordinator and all Store implementations.
// Adapters map their backend's native failures onto these so the
// coordinator always reasons about a closed set.
var (
	// ErrNotFound: the uid is absent in the queried store. Expected, not fatal.
	ErrNotFound = errors.New("subscriber not found")

	// ErrConflict: a create collided with an existing uid, msisdn, or imsi
	// in that store. Reported to the caller, never retried automatically.
	ErrConflict = errors.New("subscriber uniqueness conflict")

	// ErrStoreUnavailable: network failure or timeout. Retried with bounded
	// backoff by the retry decorator before it ever reaches the coordinator.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUnresolvedConflict: an update was attempted on a CONFLICT-classified
	// pair without a resolution strategy. The caller must supply one.
	ErrUnresolvedConflict = errors.New("stores are in conflict: resolution strategy required")
)

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
