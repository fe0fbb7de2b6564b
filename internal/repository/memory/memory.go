// Package memory provides an in-memory Store implementation for tests and
// the stub binary. It enforces the same uniqueness rules as the real
// backends and supports fault injection so partial-failure paths can be
// exercised without a network.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/subscriber-sync/internal/domain"
	"github.com/ignite/subscriber-sync/internal/service/provision"
)

// Store is a mutex-guarded map keyed by uid.
type Store struct {
	id domain.StoreID

	mu   sync.RWMutex
	recs map[string]*domain.CanonicalSubscriber

	// fault injection
	globalErr error
	uidErr    map[string]error
}

// New creates an empty in-memory store reporting the given identity.
func New(id domain.StoreID) *Store {
	return &Store{
		id:     id,
		recs:   map[string]*domain.CanonicalSubscriber{},
		uidErr: map[string]error{},
	}
}

// SetError makes every subsequent call fail with err. Pass nil to clear.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalErr = err
}

// SetUIDError makes calls touching the given uid fail with err.
func (s *Store) SetUIDError(uid string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.uidErr, uid)
	} else {
		s.uidErr[uid] = err
	}
}

// Seed inserts a record directly, bypassing uniqueness checks.
func (s *Store) Seed(rec *domain.CanonicalSubscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.UID] = rec.Clone()
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

func (s *Store) ID() domain.StoreID { return s.id }

func (s *Store) injected(uid string) error {
	if s.globalErr != nil {
		return s.globalErr
	}
	return s.uidErr[uid]
}

func (s *Store) Get(_ context.Context, uid string) (*domain.CanonicalSubscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.injected(uid); err != nil {
		return nil, err
	}
	rec, ok := s.recs[uid]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", s.id, uid, provision.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (s *Store) Create(_ context.Context, rec *domain.CanonicalSubscriber) (*domain.CanonicalSubscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(rec.UID); err != nil {
		return nil, err
	}
	if _, exists := s.recs[rec.UID]; exists {
		return nil, fmt.Errorf("%s uid %s already exists: %w", s.id, rec.UID, provision.ErrConflict)
	}
	if uid := s.owner(rec); uid != "" {
		return nil, fmt.Errorf("%s msisdn/imsi owned by uid %s: %w", s.id, uid, provision.ErrConflict)
	}
	stored := rec.Clone()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}
	s.recs[rec.UID] = stored
	return stored.Clone(), nil
}

func (s *Store) Update(_ context.Context, rec *domain.CanonicalSubscriber) (*domain.CanonicalSubscriber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(rec.UID); err != nil {
		return nil, err
	}
	if uid := s.owner(rec); uid != "" {
		return nil, fmt.Errorf("%s msisdn/imsi owned by uid %s: %w", s.id, uid, provision.ErrConflict)
	}
	stored := rec.Clone()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}
	s.recs[rec.UID] = stored
	return stored.Clone(), nil
}

func (s *Store) Delete(_ context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected(uid); err != nil {
		return err
	}
	if _, ok := s.recs[uid]; !ok {
		return fmt.Errorf("%s %s: %w", s.id, uid, provision.ErrNotFound)
	}
	delete(s.recs, uid)
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.globalErr
}

// owner returns the uid of a different record already holding rec's
// msisdn or imsi, or "" when both are free.
func (s *Store) owner(rec *domain.CanonicalSubscriber) string {
	for uid, existing := range s.recs {
		if uid == rec.UID {
			continue
		}
		if existing.MSISDN == rec.MSISDN || existing.IMSI == rec.IMSI {
			return uid
		}
	}
	return ""
}
