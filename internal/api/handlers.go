package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/subscriber-sync/internal/domain"
	"github.com/ignite/subscriber-sync/internal/pkg/httputil"
	"github.com/ignite/subscriber-sync/internal/reconcile"
	"github.com/ignite/subscriber-sync/internal/service/bulksync"
	"github.com/ignite/subscriber-sync/internal/service/provision"
)

// Handlers is the thin HTTP surface over the provisioning engine. It
// translates envelopes and status codes; all behavior lives below.
type Handlers struct {
	writer      *provision.DualWriter
	orch        *bulksync.Orchestrator
	defaultMode domain.ProvisioningMode
}

// NewHandlers wires the API layer to the engine.
func NewHandlers(writer *provision.DualWriter, orch *bulksync.Orchestrator, defaultMode domain.ProvisioningMode) *Handlers {
	if !defaultMode.Valid() {
		defaultMode = domain.ModeDual
	}
	return &Handlers{writer: writer, orch: orch, defaultMode: defaultMode}
}

// mode resolves the provisioning mode for a request: explicit value if
// given, configured default otherwise. Callers always decide per request;
// the default is just what "unspecified" means.
func (h *Handlers) mode(explicit string) domain.ProvisioningMode {
	if explicit == "" {
		return h.defaultMode
	}
	return domain.ProvisioningMode(explicit)
}

// writeDual picks the status code for a dual-write envelope: 207 for
// partial success so it can never be mistaken for full success or full
// failure.
func writeDual(w http.ResponseWriter, res *provision.DualResult, successCode int) {
	switch {
	case res.OverallSuccess:
		httputil.JSON(w, successCode, res)
	case res.PartialSuccess:
		httputil.MultiStatus(w, res)
	case res.Cloud.Outcome == provision.OutcomeConflict || res.Legacy.Outcome == provision.OutcomeConflict:
		httputil.JSON(w, http.StatusConflict, res)
	default:
		httputil.JSON(w, http.StatusBadGateway, res)
	}
}

type createRequest struct {
	UID        string            `json:"uid"`
	IMSI       string            `json:"imsi"`
	MSISDN     string            `json:"msisdn"`
	Status     string            `json:"status"`
	PlanID     string            `json:"plan_id"`
	Email      string            `json:"email"`
	FirstName  string            `json:"first_name"`
	LastName   string            `json:"last_name"`
	Attributes map[string]string `json:"attributes"`
	Mode       string            `json:"mode"`
}

// CreateSubscriber handles POST /api/v1/subscribers.
func (h *Handlers) CreateSubscriber(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	rec := &domain.CanonicalSubscriber{
		UID:        req.UID,
		IMSI:       req.IMSI,
		MSISDN:     req.MSISDN,
		Status:     domain.SubscriberStatus(req.Status),
		PlanID:     req.PlanID,
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Attributes: req.Attributes,
	}
	res, err := h.writer.CreateDual(r.Context(), rec, h.mode(req.Mode))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	writeDual(w, res, http.StatusCreated)
}

type updateRequest struct {
	provision.Patch
	Mode string `json:"mode"`
}

// UpdateSubscriber handles PUT /api/v1/subscribers/{uid}.
func (h *Handlers) UpdateSubscriber(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	var req updateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	res, err := h.writer.UpdateDual(r.Context(), uid, req.Patch, h.mode(req.Mode))
	switch {
	case errors.Is(err, provision.ErrUnresolvedConflict):
		// res carries the conflicting fields
		httputil.JSON(w, http.StatusConflict, res)
	case errors.Is(err, provision.ErrNotFound):
		httputil.NotFound(w, "subscriber not found in either store")
	case err != nil:
		httputil.BadRequest(w, err.Error())
	default:
		writeDual(w, res, http.StatusOK)
	}
}

// DeleteSubscriber handles DELETE /api/v1/subscribers/{uid}.
func (h *Handlers) DeleteSubscriber(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	res, err := h.writer.DeleteDual(r.Context(), uid, h.mode(r.URL.Query().Get("mode")))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	writeDual(w, res, http.StatusOK)
}

// GetSyncStatus handles GET /api/v1/subscribers/{uid}/sync-status.
func (h *Handlers) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	res, err := h.writer.GetSyncStatus(r.Context(), uid)
	switch {
	case errors.Is(err, provision.ErrNotFound):
		httputil.NotFound(w, "subscriber not found in either store")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, res)
	}
}

type resolveRequest struct {
	Strategy string                    `json:"strategy"`
	Choices  map[string]domain.StoreID `json:"choices,omitempty"`
}

// ResolveConflicts handles POST /api/v1/subscribers/{uid}/resolve.
func (h *Handlers) ResolveConflicts(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	var req resolveRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	res, err := h.writer.ResolveConflicts(r.Context(), uid,
		domain.ResolutionStrategy(req.Strategy), req.Choices)
	switch {
	case errors.Is(err, provision.ErrNotFound):
		httputil.NotFound(w, "subscriber not found in either store")
	case errors.Is(err, reconcile.ErrIncompleteChoices):
		httputil.BadRequest(w, err.Error())
	case err != nil:
		httputil.BadRequest(w, err.Error())
	default:
		httputil.OK(w, res)
	}
}

type bulkSyncRequest struct {
	UIDs     []string `json:"uids"`
	Strategy string   `json:"strategy"`
}

// StartBulkSync handles POST /api/v1/sync/jobs.
func (h *Handlers) StartBulkSync(w http.ResponseWriter, r *http.Request) {
	var req bulkSyncRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	job, err := h.orch.Start(r.Context(), req.UIDs, domain.ResolutionStrategy(req.Strategy))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.Accepted(w, map[string]any{"job_id": job.ID, "job": job})
}

// GetJob handles GET /api/v1/sync/jobs/{id}.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.orch.GetJob(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, bulksync.ErrJobNotFound):
		httputil.NotFound(w, "job not found")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, job)
	}
}

// ListJobs handles GET /api/v1/sync/jobs.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.orch.ListJobs(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"jobs": jobs, "count": len(jobs)})
}

// PauseJob handles POST /api/v1/sync/jobs/{id}/pause.
func (h *Handlers) PauseJob(w http.ResponseWriter, r *http.Request) {
	h.jobControl(w, r, h.orch.Pause)
}

// ResumeJob handles POST /api/v1/sync/jobs/{id}/resume.
func (h *Handlers) ResumeJob(w http.ResponseWriter, r *http.Request) {
	h.jobControl(w, r, h.orch.Resume)
}

// CancelJob handles POST /api/v1/sync/jobs/{id}/cancel.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	h.jobControl(w, r, h.orch.Cancel)
}

// jobControl is shared by pause/resume/cancel: map the orchestrator's
// sentinels to status codes and return the fresh snapshot on success.
func (h *Handlers) jobControl(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) error) {
	id := chi.URLParam(r, "id")
	err := fn(r.Context(), id)
	switch {
	case errors.Is(err, bulksync.ErrJobNotFound):
		httputil.NotFound(w, "job not found")
	case errors.Is(err, bulksync.ErrNotRunning), errors.Is(err, bulksync.ErrNotPaused):
		httputil.Conflict(w, err.Error())
	case err != nil:
		httputil.InternalError(w, err)
	default:
		job, err := h.orch.GetJob(r.Context(), id)
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
		httputil.OK(w, job)
	}
}

// HealthCheck handles GET /health, reporting per-store reachability.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	cloudErr, legacyErr := h.writer.Ping(r.Context())
	body := map[string]any{
		"status": "healthy",
		"cloud":  storeHealth(cloudErr),
		"legacy": storeHealth(legacyErr),
	}
	switch {
	case cloudErr != nil && legacyErr != nil:
		body["status"] = "unhealthy"
		httputil.JSON(w, http.StatusServiceUnavailable, body)
	case cloudErr != nil || legacyErr != nil:
		body["status"] = "degraded"
		httputil.OK(w, body)
	default:
		httputil.OK(w, body)
	}
}

func storeHealth(err error) map[string]any {
	if err != nil {
		return map[string]any{"reachable": false, "error": err.Error()}
	}
	return map[string]any{"reachable": true}
}
