package provision

import (
	"context"
	"errors"

	"github.com/ignite/subscriber-sync/internal/domain"
	"github.com/ignite/subscriber-sync/internal/pkg/backoff"
	"github.com/ignite/subscriber-sync/internal/pkg/logger"
)

// retryStore decorates a Store with bounded exponential backoff on
// transient failures. Only ErrStoreUnavailable is retried: conflicts and
// not-found answers are definite and retrying them would just repeat the
// same answer slower. Safe because adapters guarantee idempotent writes.
type retryStore struct {
	inner  Store
	policy backoff.Policy
}

// WithRetry wraps a store so transient failures are retried locally
// before they surface to the coordinator.
func WithRetry(s Store, p backoff.Policy) Store {
	if p.MaxAttempts <= 1 {
		return s
	}
	return &retryStore{inner: s, policy: p}
}

func (r *retryStore) ID() domain.StoreID { return r.inner.ID() }

func (r *retryStore) Get(ctx context.Context, uid string) (*domain.CanonicalSubscriber, error) {
	var rec *domain.CanonicalSubscriber
	err := r.do(ctx, "get", uid, func() error {
		var e error
		rec, e = r.inner.Get(ctx, uid)
		return e
	})
	return rec, err
}

func (r *retryStore) Create(ctx context.Context, in *domain.CanonicalSubscriber) (*domain.CanonicalSubscriber, error) {
	var rec *domain.CanonicalSubscriber
	err := r.do(ctx, "create", in.UID, func() error {
		var e error
		rec, e = r.inner.Create(ctx, in)
		return e
	})
	return rec, err
}

func (r *retryStore) Update(ctx context.Context, in *domain.CanonicalSubscriber) (*domain.CanonicalSubscriber, error) {
	var rec *domain.CanonicalSubscriber
	err := r.do(ctx, "update", in.UID, func() error {
		var e error
		rec, e = r.inner.Update(ctx, in)
		return e
	})
	return rec, err
}

func (r *retryStore) Delete(ctx context.Context, uid string) error {
	return r.do(ctx, "delete", uid, func() error {
		return r.inner.Delete(ctx, uid)
	})
}

func (r *retryStore) Ping(ctx context.Context) error {
	return r.inner.Ping(ctx)
}

func (r *retryStore) do(ctx context.Context, op, uid string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !errors.Is(lastErr, ErrStoreUnavailable) {
			return lastErr
		}
		if attempt == r.policy.MaxAttempts {
			break
		}
		logger.Warn("retrying store call",
			"store", string(r.inner.ID()), "op", op, "uid", uid,
			"attempt", attempt, "error", lastErr)
		if err := r.policy.Sleep(ctx, attempt); err != nil {
			return lastErr
		}
	}
	return lastErr
}
