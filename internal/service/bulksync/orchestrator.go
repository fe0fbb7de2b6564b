package bulksync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/subscriber-sync/internal/domain"
	"github.com/ignite/subscriber-sync/internal/pkg/distlock"
	"github.com/ignite/subscriber-sync/internal/pkg/logger"
	"github.com/ignite/subscriber-sync/internal/service/provision"
)

var (
	// ErrNotRunning is returned when pause/cancel targets a job this
	// instance is not executing.
	ErrNotRunning = errors.New("job is not running on this instance")

	// ErrNotPaused is returned when resume targets a job that is not
	// paused. Terminal jobs are never revived; retry via a new job.
	ErrNotPaused = errors.New("only paused jobs can be resumed")
)

// LockFactory builds the distributed lock guarding one job against
// concurrent execution by multiple instances. May be nil (no locking,
// single-instance deployments and tests).
type LockFactory func(jobID string) distlock.Lock

// Orchestrator fans the reconciliation pipeline out over many uids with
// a bounded worker pool.
type Orchestrator struct {
	writer  *provision.DualWriter
	jobs    JobStore
	workers int
	lockFor LockFactory

	mu      sync.Mutex
	running map[string]*runState
}

type runState struct {
	stopOnce sync.Once
	stopCh   chan struct{}
	outcome  domain.JobStatus
}

// stop requests the run loop to stop dispatching. In-flight uids finish;
// the final status becomes the given one.
func (rs *runState) stop(status domain.JobStatus) {
	rs.stopOnce.Do(func() {
		rs.outcome = status
		close(rs.stopCh)
	})
}

// NewOrchestrator creates a bulk sync orchestrator. workers bounds the
// number of uids processed concurrently; <= 0 defaults to 4.
func NewOrchestrator(writer *provision.DualWriter, jobs JobStore, workers int, lockFor LockFactory) *Orchestrator {
	if workers <= 0 {
		workers = 4
	}
	return &Orchestrator{
		writer:  writer,
		jobs:    jobs,
		workers: workers,
		lockFor: lockFor,
		running: map[string]*runState{},
	}
}

// Start creates a job over the given uids and begins executing it in the
// background. The returned snapshot has status PENDING or RUNNING;
// callers poll GetJob for progress.
func (o *Orchestrator) Start(ctx context.Context, uids []string, strategy domain.ResolutionStrategy) (*domain.BulkSyncJob, error) {
	if len(uids) == 0 {
		return nil, fmt.Errorf("bulk sync requires at least one uid")
	}
	if !strategy.Valid() || strategy == domain.StrategyApplyManual {
		return nil, fmt.Errorf("invalid bulk sync strategy %q", strategy)
	}

	job := &domain.BulkSyncJob{
		ID:        uuid.New().String(),
		UIDs:      append([]string(nil), uids...),
		Strategy:  strategy,
		Status:    domain.JobPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}
	o.launch(job)
	return job.Clone(), nil
}

// Pause stops dispatching new uids; in-flight ones drain so no write is
// left half-applied to one store. The job records the next unprocessed
// index and can be resumed later.
func (o *Orchestrator) Pause(_ context.Context, id string) error {
	o.mu.Lock()
	rs, ok := o.running[id]
	o.mu.Unlock()
	if !ok {
		return ErrNotRunning
	}
	rs.stop(domain.JobPaused)
	return nil
}

// Cancel terminally stops a job with the same drain semantics as Pause.
// A paused job can also be cancelled.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	o.mu.Lock()
	rs, ok := o.running[id]
	o.mu.Unlock()
	if ok {
		rs.stop(domain.JobCancelled)
		return nil
	}

	job, err := o.jobs.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != domain.JobPaused {
		return ErrNotRunning
	}
	now := time.Now().UTC()
	job.Status = domain.JobCancelled
	job.FinishedAt = &now
	return o.jobs.Save(ctx, job)
}

// Resume continues a paused job from its recorded next index.
func (o *Orchestrator) Resume(ctx context.Context, id string) error {
	o.mu.Lock()
	_, alreadyRunning := o.running[id]
	o.mu.Unlock()
	if alreadyRunning {
		return nil
	}

	job, err := o.jobs.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != domain.JobPaused {
		return ErrNotPaused
	}
	o.launch(job)
	return nil
}

// GetJob returns the latest persisted snapshot of a job.
func (o *Orchestrator) GetJob(ctx context.Context, id string) (*domain.BulkSyncJob, error) {
	return o.jobs.Get(ctx, id)
}

// ListJobs returns snapshots of all known jobs.
func (o *Orchestrator) ListJobs(ctx context.Context) ([]*domain.BulkSyncJob, error) {
	return o.jobs.List(ctx)
}

func (o *Orchestrator) launch(job *domain.BulkSyncJob) {
	rs := &runState{stopCh: make(chan struct{})}
	o.mu.Lock()
	o.running[job.ID] = rs
	o.mu.Unlock()
	go o.run(job, rs)
}

func (o *Orchestrator) run(job *domain.BulkSyncJob, rs *runState) {
	defer func() {
		o.mu.Lock()
		delete(o.running, job.ID)
		o.mu.Unlock()
	}()

	ctx := context.Background()

	if o.lockFor != nil {
		lock := o.lockFor(job.ID)
		ok, err := lock.Acquire(ctx)
		if err != nil {
			logger.Error("acquire job lock", "job_id", job.ID, "error", err)
			return
		}
		if !ok {
			logger.Warn("job already running on another instance", "job_id", job.ID)
			return
		}
		defer lock.Release(ctx)
	}

	// Preflight: the job itself fails only when neither store can be
	// reached at all. Everything after this is per-uid detail.
	cloudErr, legacyErr := o.writer.Ping(ctx)
	if cloudErr != nil && legacyErr != nil {
		now := time.Now().UTC()
		job.Status = domain.JobFailed
		job.Error = fmt.Sprintf("both stores unreachable: cloud: %v; legacy: %v", cloudErr, legacyErr)
		job.FinishedAt = &now
		o.save(ctx, job)
		logger.Error("bulk sync preflight failed", "job_id", job.ID, "error", job.Error)
		return
	}

	job.Status = domain.JobRunning
	if job.StartedAt == nil {
		now := time.Now().UTC()
		job.StartedAt = &now
	}
	o.save(ctx, job)
	logger.Info("bulk sync started",
		"job_id", job.ID, "uids", len(job.UIDs), "from_index", job.NextIndex,
		"strategy", string(job.Strategy), "workers", o.workers)

	var jmu sync.Mutex // guards job fields during the run
	var wg sync.WaitGroup
	idxCh := make(chan int)

	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Each worker takes one uid end-to-end before the next.
			for i := range idxCh {
				outcome := o.processUID(ctx, job.UIDs[i], job.Strategy)
				jmu.Lock()
				job.Results = append(job.Results, outcome)
				job.Processed++
				if outcome.Success {
					job.Succeeded++
				} else {
					job.Failed++
				}
				snapshot := job.Clone()
				jmu.Unlock()
				o.saveSnapshot(ctx, snapshot)
			}
		}()
	}

	stopped := false
dispatch:
	for i := job.NextIndex; i < len(job.UIDs); i++ {
		select {
		case <-rs.stopCh:
			stopped = true
			break dispatch
		case idxCh <- i:
			jmu.Lock()
			job.NextIndex = i + 1
			jmu.Unlock()
		}
	}
	close(idxCh)
	wg.Wait()

	jmu.Lock()
	if stopped {
		job.Status = rs.outcome
		if job.Status == domain.JobCancelled {
			now := time.Now().UTC()
			job.FinishedAt = &now
		}
	} else {
		now := time.Now().UTC()
		job.Status = domain.JobCompleted
		job.FinishedAt = &now
	}
	snapshot := job.Clone()
	jmu.Unlock()
	o.saveSnapshot(ctx, snapshot)

	logger.Info("bulk sync finished",
		"job_id", job.ID, "status", string(snapshot.Status),
		"processed", snapshot.Processed, "succeeded", snapshot.Succeeded,
		"failed", snapshot.Failed)
}

// processUID runs the full pipeline for one subscriber: read both sides,
// classify, resolve under the job's strategy, write the plan out.
func (o *Orchestrator) processUID(ctx context.Context, uid string, strategy domain.ResolutionStrategy) domain.UIDOutcome {
	res, err := o.writer.ResolveConflicts(ctx, uid, strategy, nil)
	if err != nil {
		logger.Warn("bulk sync uid failed", "uid", uid, "error", err)
		return domain.UIDOutcome{UID: uid, Success: false, Error: err.Error()}
	}
	if !res.Resolved {
		if len(res.Conflicts) > 0 {
			return domain.UIDOutcome{
				UID:        uid,
				Success:    false,
				SyncStatus: domain.SyncConflict,
				Error:      fmt.Sprintf("manual resolution required (%d conflicting fields)", len(res.Conflicts)),
			}
		}
		return domain.UIDOutcome{
			UID:     uid,
			Success: false,
			Error:   fmt.Sprintf("partial write: cloud %s, legacy %s", res.Cloud.Outcome, res.Legacy.Outcome),
		}
	}
	return domain.UIDOutcome{UID: uid, Success: true, SyncStatus: domain.SyncSynced}
}

func (o *Orchestrator) save(ctx context.Context, job *domain.BulkSyncJob) {
	o.saveSnapshot(ctx, job.Clone())
}

func (o *Orchestrator) saveSnapshot(ctx context.Context, snapshot *domain.BulkSyncJob) {
	if err := o.jobs.Save(ctx, snapshot); err != nil {
		logger.Warn("persist job snapshot", "job_id", snapshot.ID, "error", err)
	}
}
