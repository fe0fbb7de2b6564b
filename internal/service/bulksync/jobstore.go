package bulksync

import (
	"context"
	"errors"
	"sync"

	"github.com/ignite/subscriber-sync/internal/domain"
)

// ErrJobNotFound is returned when the requested job id is unknown.
var ErrJobNotFound = errors.New("bulk sync job not found")

// JobStore persists job snapshots so progress can be polled, including
// from a different instance than the one running the job.
type JobStore interface {
	Save(ctx context.Context, job *domain.BulkSyncJob) error
	Get(ctx context.Context, id string) (*domain.BulkSyncJob, error)
	List(ctx context.Context) ([]*domain.BulkSyncJob, error)
}

// MemoryJobStore is a mutex-guarded map, used in tests and the stub
// binary.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.BulkSyncJob
}

// NewMemoryJobStore creates an empty in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: map[string]*domain.BulkSyncJob{}}
}

func (s *MemoryJobStore) Save(_ context.Context, job *domain.BulkSyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryJobStore) Get(_ context.Context, id string) (*domain.BulkSyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

func (s *MemoryJobStore) List(_ context.Context) ([]*domain.BulkSyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.BulkSyncJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Clone())
	}
	return out, nil
}
