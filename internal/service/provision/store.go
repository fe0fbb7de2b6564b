package provision

import (
	"context"
	"errors"

	"github.com/ignite/subscriber-sync/internal/domain"
)

// Store is the uniform adapter contract over one backing store.
// Implementations must be safe for concurrent use and must map their
// native failures onto the sentinel errors in this package.
type Store interface {
	// ID names the store for results and audit records.
	ID() domain.StoreID

	// Get returns the canonical view of one subscriber.
	// Returns ErrNotFound if the uid is absent.
	Get(ctx context.Context, uid string) (*domain.CanonicalSubscriber, error)

	// Create inserts a new subscriber. Returns ErrConflict if a record
	// with the same uid, msisdn, or imsi already exists in this store.
	// Must be conditional on uid so that a timed-out create retried by
	// the caller never produces a duplicate.
	Create(ctx context.Context, rec *domain.CanonicalSubscriber) (*domain.CanonicalSubscriber, error)

	// Update upserts by uid. Safe to retry. Returns ErrConflict only when
	// the write would steal an msisdn/imsi owned by a different uid.
	Update(ctx context.Context, rec *domain.CanonicalSubscriber) (*domain.CanonicalSubscriber, error)

	// Delete removes the subscriber. Returns ErrNotFound if absent.
	Delete(ctx context.Context, uid string) error

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}

// Outcome is the definite per-store result of one adapter call. Timeouts
// surface as OutcomeError, never as "unknown", so downstream logic always
// has a three-way state (success / error / absent) to reason about.
type Outcome string

const (
	OutcomeOK       Outcome = "OK"
	OutcomeConflict Outcome = "CONFLICT"
	OutcomeNotFound Outcome = "NOT_FOUND"
	OutcomeError    Outcome = "ERROR"
	// OutcomeSkipped: the provisioning mode did not target this store.
	OutcomeSkipped Outcome = "SKIPPED"
)

// StoreResult reports how one store fared in a dual operation.
type StoreResult struct {
	Store   domain.StoreID `json:"store"`
	Outcome Outcome        `json:"outcome"`
	Error   string         `json:"error,omitempty"`
}

// OK reports whether the call succeeded outright.
func (r StoreResult) OK() bool { return r.Outcome == OutcomeOK }

// Counts reports whether this store participated in the operation.
func (r StoreResult) Counts() bool { return r.Outcome != OutcomeSkipped }

func resultFor(id domain.StoreID, err error) StoreResult {
	res := StoreResult{Store: id}
	switch {
	case err == nil:
		res.Outcome = OutcomeOK
	case errors.Is(err, ErrConflict):
		res.Outcome = OutcomeConflict
		res.Error = err.Error()
	case errors.Is(err, ErrNotFound):
		res.Outcome = OutcomeNotFound
		res.Error = err.Error()
	default:
		res.Outcome = OutcomeError
		res.Error = err.Error()
	}
	return res
}

func skipped(id domain.StoreID) StoreResult {
	return StoreResult{Store: id, Outcome: OutcomeSkipped}
}

// DualResult is the combined envelope for a dual-store write. Partial
// success is labeled explicitly; it is never folded into OverallSuccess.
type DualResult struct {
	Subscriber     *domain.CanonicalSubscriber `json:"subscriber,omitempty"`
	Cloud          StoreResult                 `json:"cloud_result"`
	Legacy         StoreResult                 `json:"legacy_result"`
	Conflicts      []domain.FieldDiff          `json:"conflicts,omitempty"`
	OverallSuccess bool                        `json:"overall_success"`
	PartialSuccess bool                        `json:"partial_success"`
}

// SyncStatusResult is the envelope for a sync-status query.
type SyncStatusResult struct {
	SyncStatus   domain.SyncStatus  `json:"sync_status"`
	Conflicts    []domain.FieldDiff `json:"conflicts,omitempty"`
	CloudExists  bool               `json:"cloud_exists"`
	LegacyExists bool               `json:"legacy_exists"`
}

// ResolveResult is the envelope for a conflict-resolution call.
// When the MANUAL strategy declines to decide, Resolved is false and
// Conflicts carries the field diffs awaiting operator choices.
type ResolveResult struct {
	Subscriber *domain.CanonicalSubscriber `json:"subscriber,omitempty"`
	Resolved   bool                        `json:"resolved"`
	Conflicts  []domain.FieldDiff          `json:"conflicts,omitempty"`
	Cloud      StoreResult                 `json:"cloud_result"`
	Legacy     StoreResult                 `json:"legacy_result"`
}
