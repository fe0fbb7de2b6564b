// Package normalize maps each backing store's native subscriber
// representation onto the canonical comparison shape, and back.
//
// Everything here is pure: no I/O, no side effects. A valid native record
// maps to exactly one canonical record; a malformed one fails with an
// *Error naming the offending field.
package normalize

import (
	"fmt"

	"github.com/ignite/subscriber-sync/internal/domain"
)

// Error is returned when a native record cannot be mapped onto the
// canonical shape. Fatal for that subscriber only; bulk runs log and skip.
type Error struct {
	Store  domain.StoreID
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("normalize %s record: field %q: %s", e.Store, e.Field, e.Reason)
}

func errf(store domain.StoreID, field, format string, args ...any) *Error {
	return &Error{Store: store, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// requireIdentity checks the fields shared by both native shapes.
func requireIdentity(store domain.StoreID, uid, imsi, msisdn string) *Error {
	if uid == "" {
		return errf(store, "uid", "missing")
	}
	if imsi == "" {
		return errf(store, "imsi", "missing")
	}
	if msisdn == "" {
		return errf(store, "msisdn", "missing")
	}
	return nil
}
