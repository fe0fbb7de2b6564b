// Package bulksync drives the reconciliation pipeline over many
// subscribers at once: a bounded worker pool classifies, resolves, and
// rewrites one uid at a time per worker, while the job's counters stay
// pollable mid-run.
//
// A single uid's failure never aborts the job; failure detail lives in
// the job's per-uid results. Jobs are pausable (dispatch stops, in-flight
// uids drain, the next unprocessed index is recorded) and resumable from
// that index. Terminal jobs are never revived.
package bulksync
