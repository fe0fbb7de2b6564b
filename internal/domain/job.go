package domain

import "time"

// JobStatus enumerates the lifecycle states of a bulk sync job.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobPaused    JobStatus = "PAUSED"
	JobCompleted JobStatus = "COMPLETED"
	JobCancelled JobStatus = "CANCELLED"
	JobFailed    JobStatus = "FAILED"
)

// Terminal reports whether the job can never run again. Paused jobs are
// not terminal; they resume from NextIndex. Terminal jobs are never
// revived — retrying failures means creating a new job.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobCancelled || s == JobFailed
}

// UIDOutcome records the result of processing a single subscriber within
// a bulk sync job.
type UIDOutcome struct {
	UID        string     `json:"uid"`
	Success    bool       `json:"success"`
	SyncStatus SyncStatus `json:"sync_status,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// BulkSyncJob tracks a bulk reconciliation run over an ordered list of
// subscriber UIDs. Only the bulk sync orchestrator mutates it; everyone
// else polls snapshots.
type BulkSyncJob struct {
	ID       string             `json:"id"`
	UIDs     []string           `json:"uids"`
	Strategy ResolutionStrategy `json:"strategy"`
	Status   JobStatus          `json:"status"`

	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`

	// NextIndex is the position of the first undispatched UID. A paused
	// job resumes from here.
	NextIndex int `json:"next_index"`

	Results []UIDOutcome `json:"results,omitempty"`

	// Error holds the job-level failure reason when Status is FAILED.
	// Per-UID failures live in Results, not here.
	Error string `json:"error,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Clone returns a deep copy safe to hand to pollers while the
// orchestrator keeps mutating the original.
func (j *BulkSyncJob) Clone() *BulkSyncJob {
	if j == nil {
		return nil
	}
	out := *j
	out.UIDs = append([]string(nil), j.UIDs...)
	out.Results = append([]UIDOutcome(nil), j.Results...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		out.FinishedAt = &t
	}
	return &out
}
