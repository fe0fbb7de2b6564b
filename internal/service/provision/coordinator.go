package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/subscriber-sync/internal/domain"
	"github.com/ignite/subscriber-sync/internal/pkg/logger"
	"github.com/ignite/subscriber-sync/internal/reconcile"
)

// DualWriter coordinates subscriber writes across the cloud and legacy
// stores. There is no cross-store transaction: a dual write is
// at-least-one-success and eventually consistent, with every partial
// outcome labeled explicitly. All methods are safe for concurrent use.
type DualWriter struct {
	cloud  Store
	legacy Store
	audit  Auditor
}

// NewDualWriter creates a coordinator over the two stores. A nil auditor
// falls back to the structured log sink.
func NewDualWriter(cloud, legacy Store, audit Auditor) *DualWriter {
	if audit == nil {
		audit = LogAuditor{}
	}
	return &DualWriter{cloud: cloud, legacy: legacy, audit: audit}
}

// Patch holds the mutable fields for a subscriber update.
// Nil fields are not applied. Attributes are merged key-by-key.
type Patch struct {
	Status     *domain.SubscriberStatus `json:"status,omitempty"`
	PlanID     *string                  `json:"plan_id,omitempty"`
	Email      *string                  `json:"email,omitempty"`
	FirstName  *string                  `json:"first_name,omitempty"`
	LastName   *string                  `json:"last_name,omitempty"`
	Attributes map[string]string        `json:"attributes,omitempty"`
}

func (p Patch) apply(base *domain.CanonicalSubscriber) *domain.CanonicalSubscriber {
	out := base.Clone()
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.PlanID != nil {
		out.PlanID = *p.PlanID
	}
	if p.Email != nil {
		out.Email = *p.Email
	}
	if p.FirstName != nil {
		out.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		out.LastName = *p.LastName
	}
	if len(p.Attributes) > 0 {
		if out.Attributes == nil {
			out.Attributes = map[string]string{}
		}
		for k, v := range p.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

// storeCall runs fn against each targeted store concurrently and joins
// both before returning. The surviving call is never cancelled when its
// sibling fails; the outcome of each side must be definite.
func (w *DualWriter) storeCall(ctx context.Context, mode domain.ProvisioningMode, fn func(Store) error) (cloud, legacy StoreResult) {
	cloud = skipped(domain.StoreCloud)
	legacy = skipped(domain.StoreLegacy)

	type settled struct {
		id  domain.StoreID
		err error
	}
	ch := make(chan settled, 2)
	n := 0
	if mode == domain.ModeDual || mode == domain.ModeCloud {
		n++
		go func() { ch <- settled{domain.StoreCloud, fn(w.cloud)} }()
	}
	if mode == domain.ModeDual || mode == domain.ModeLegacy {
		n++
		go func() { ch <- settled{domain.StoreLegacy, fn(w.legacy)} }()
	}
	for i := 0; i < n; i++ {
		s := <-ch
		if s.id == domain.StoreCloud {
			cloud = resultFor(domain.StoreCloud, s.err)
		} else {
			legacy = resultFor(domain.StoreLegacy, s.err)
		}
	}
	return cloud, legacy
}

// CreateDual provisions a new subscriber against the store(s) selected by
// mode. When one side succeeds and the other fails, nothing is rolled
// back; the result is labeled partial and the subscriber stays
// single-sided until a sync runs.
func (w *DualWriter) CreateDual(ctx context.Context, rec *domain.CanonicalSubscriber, mode domain.ProvisioningMode) (*DualResult, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("invalid provisioning mode %q", mode)
	}
	if rec == nil || rec.UID == "" || rec.IMSI == "" || rec.MSISDN == "" {
		return nil, fmt.Errorf("create requires uid, imsi, and msisdn")
	}
	if rec.Status == "" {
		rec = rec.Clone()
		rec.Status = domain.StatusActive
	}
	if !rec.Status.Valid() {
		return nil, fmt.Errorf("invalid subscriber status %q", rec.Status)
	}
	rec = rec.Clone()
	rec.UpdatedAt = time.Now().UTC()
	rec.ExistsIn = nil

	cloudRes, legacyRes := w.storeCall(ctx, mode, func(s Store) error {
		_, err := s.Create(ctx, rec)
		return err
	})

	res := combine(cloudRes, legacyRes)
	res.Subscriber = rec.Clone()
	res.Subscriber.ExistsIn = existsIn(cloudRes, legacyRes)

	w.audit.Record(ctx, AuditRecord{
		ID:        newAuditID(),
		Operation: OpCreate,
		UID:       rec.UID,
		Mode:      mode,
		Cloud:     cloudRes,
		Legacy:    legacyRes,
		Timestamp: time.Now().UTC(),
	})
	return res, nil
}

// UpdateDual reads both sides, refuses to blind-overwrite a conflicted
// pair, and otherwise applies the patch to the targeted store(s) with the
// same partial-failure semantics as CreateDual.
func (w *DualWriter) UpdateDual(ctx context.Context, uid string, patch Patch, mode domain.ProvisioningMode) (*DualResult, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("invalid provisioning mode %q", mode)
	}

	cloudRec, legacyRec, err := w.readBoth(ctx, uid)
	if err != nil {
		return nil, err
	}
	if cloudRec == nil && legacyRec == nil {
		return nil, fmt.Errorf("update %s: %w", uid, ErrNotFound)
	}

	if cloudRec != nil && legacyRec != nil {
		status, diffs, cerr := reconcile.Classify(cloudRec, legacyRec)
		if cerr != nil {
			return nil, cerr
		}
		if status == domain.SyncConflict {
			return &DualResult{
				Cloud:     skipped(domain.StoreCloud),
				Legacy:    skipped(domain.StoreLegacy),
				Conflicts: diffs,
			}, ErrUnresolvedConflict
		}
	}

	base := cloudRec
	if base == nil {
		base = legacyRec
	}
	updated := patch.apply(base)
	updated.UpdatedAt = time.Now().UTC()
	if !updated.Status.Valid() {
		return nil, fmt.Errorf("invalid subscriber status %q", updated.Status)
	}

	cloudRes, legacyRes := w.storeCall(ctx, mode, func(s Store) error {
		_, err := s.Update(ctx, updated)
		return err
	})

	res := combine(cloudRes, legacyRes)
	res.Subscriber = updated.Clone()
	res.Subscriber.ExistsIn = existsIn(cloudRes, legacyRes)

	w.audit.Record(ctx, AuditRecord{
		ID:        newAuditID(),
		Operation: OpUpdate,
		UID:       uid,
		Mode:      mode,
		Cloud:     cloudRes,
		Legacy:    legacyRes,
		Timestamp: time.Now().UTC(),
	})
	return res, nil
}

// DeleteDual removes the subscriber from the targeted store(s),
// best-effort. NotFound from either adapter counts as success for that
// side: deleting an already-deleted subscriber is idempotent.
func (w *DualWriter) DeleteDual(ctx context.Context, uid string, mode domain.ProvisioningMode) (*DualResult, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("invalid provisioning mode %q", mode)
	}
	if uid == "" {
		return nil, fmt.Errorf("delete requires a uid")
	}

	cloudRes, legacyRes := w.storeCall(ctx, mode, func(s Store) error {
		return s.Delete(ctx, uid)
	})
	// Idempotent delete: absent already means done.
	if cloudRes.Outcome == OutcomeNotFound {
		cloudRes.Outcome = OutcomeOK
		cloudRes.Error = ""
	}
	if legacyRes.Outcome == OutcomeNotFound {
		legacyRes.Outcome = OutcomeOK
		legacyRes.Error = ""
	}

	res := combine(cloudRes, legacyRes)

	w.audit.Record(ctx, AuditRecord{
		ID:        newAuditID(),
		Operation: OpDelete,
		UID:       uid,
		Mode:      mode,
		Cloud:     cloudRes,
		Legacy:    legacyRes,
		Timestamp: time.Now().UTC(),
	})
	return res, nil
}

// GetSyncStatus reads both stores and classifies the pair. The status is
// derived fresh on every call and never cached.
func (w *DualWriter) GetSyncStatus(ctx context.Context, uid string) (*SyncStatusResult, error) {
	cloudRec, legacyRec, err := w.readBoth(ctx, uid)
	if err != nil {
		return nil, err
	}
	status, diffs, err := reconcile.Classify(cloudRec, legacyRec)
	if err != nil {
		return nil, fmt.Errorf("sync status %s: %w", uid, ErrNotFound)
	}
	return &SyncStatusResult{
		SyncStatus:   status,
		Conflicts:    diffs,
		CloudExists:  cloudRec != nil,
		LegacyExists: legacyRec != nil,
	}, nil
}

// ResolveConflicts reconciles one subscriber under the given strategy and
// writes the merged record out. Single-sided subscribers are copied to
// the missing store. choices is only consulted for APPLY_MANUAL.
func (w *DualWriter) ResolveConflicts(ctx context.Context, uid string, strategy domain.ResolutionStrategy, choices map[string]domain.StoreID) (*ResolveResult, error) {
	if !strategy.Valid() {
		return nil, fmt.Errorf("invalid resolution strategy %q", strategy)
	}

	cloudRec, legacyRec, err := w.readBoth(ctx, uid)
	if err != nil {
		return nil, err
	}

	res := &ResolveResult{
		Cloud:  skipped(domain.StoreCloud),
		Legacy: skipped(domain.StoreLegacy),
	}

	status, diffs, err := reconcile.Classify(cloudRec, legacyRec)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", uid, ErrNotFound)
	}

	var plan *domain.WritePlan
	switch status {
	case domain.SyncSynced:
		res.Subscriber = cloudRec.Clone()
		res.Resolved = true
		return res, nil

	case domain.SyncCloudOnly:
		rec := cloudRec.Clone()
		rec.ExistsIn = []domain.StoreID{domain.StoreCloud, domain.StoreLegacy}
		plan = &domain.WritePlan{
			TargetStore: domain.TargetLegacy,
			Record:      rec,
			Reason:      "copy cloud-only subscriber to legacy",
		}

	case domain.SyncLegacyOnly:
		rec := legacyRec.Clone()
		rec.ExistsIn = []domain.StoreID{domain.StoreCloud, domain.StoreLegacy}
		plan = &domain.WritePlan{
			TargetStore: domain.TargetCloud,
			Record:      rec,
			Reason:      "copy legacy-only subscriber to cloud",
		}

	default: // OUT_OF_SYNC or CONFLICT
		plan, err = reconcile.Resolve(cloudRec, legacyRec, diffs, strategy, choices)
		if err != nil {
			return nil, err
		}
		if plan.TargetStore == domain.TargetNone {
			// MANUAL: the operator owns the decision now.
			res.Conflicts = plan.Diffs
			return res, nil
		}
	}

	mode := modeForTarget(plan.TargetStore)
	cloudRes, legacyRes := w.storeCall(ctx, mode, func(s Store) error {
		_, err := s.Update(ctx, plan.Record)
		return err
	})
	res.Cloud = cloudRes
	res.Legacy = legacyRes
	res.Subscriber = plan.Record.Clone()
	res.Resolved = (!cloudRes.Counts() || cloudRes.OK()) && (!legacyRes.Counts() || legacyRes.OK())

	logger.Info("conflict resolution executed",
		"uid", uid, "strategy", string(strategy), "status", string(status),
		"reason", plan.Reason, "resolved", res.Resolved)

	w.audit.Record(ctx, AuditRecord{
		ID:        newAuditID(),
		Operation: OpResolve,
		UID:       uid,
		Strategy:  strategy,
		Cloud:     cloudRes,
		Legacy:    legacyRes,
		Timestamp: time.Now().UTC(),
	})
	return res, nil
}

// Ping reports reachability of each store.
func (w *DualWriter) Ping(ctx context.Context) (cloudErr, legacyErr error) {
	return w.cloud.Ping(ctx), w.legacy.Ping(ctx)
}

// readBoth fetches the subscriber from both stores in parallel. Absence
// is represented as a nil record; any other failure aborts, because
// classification over an unknown side would be a guess.
func (w *DualWriter) readBoth(ctx context.Context, uid string) (cloudRec, legacyRec *domain.CanonicalSubscriber, err error) {
	type read struct {
		id  domain.StoreID
		rec *domain.CanonicalSubscriber
		err error
	}
	ch := make(chan read, 2)
	go func() {
		rec, err := w.cloud.Get(ctx, uid)
		ch <- read{domain.StoreCloud, rec, err}
	}()
	go func() {
		rec, err := w.legacy.Get(ctx, uid)
		ch <- read{domain.StoreLegacy, rec, err}
	}()

	for i := 0; i < 2; i++ {
		r := <-ch
		switch {
		case r.err == nil:
			if r.rec != nil {
				r.rec.ExistsIn = []domain.StoreID{r.id}
			}
			if r.id == domain.StoreCloud {
				cloudRec = r.rec
			} else {
				legacyRec = r.rec
			}
		case isNotFound(r.err):
			// absent side stays nil
		default:
			err = fmt.Errorf("read %s from %s: %w", uid, r.id, r.err)
		}
	}
	if err != nil {
		return nil, nil, err
	}
	if cloudRec != nil && legacyRec != nil {
		both := []domain.StoreID{domain.StoreCloud, domain.StoreLegacy}
		cloudRec.ExistsIn = both
		legacyRec.ExistsIn = append([]domain.StoreID(nil), both...)
	}
	return cloudRec, legacyRec, nil
}

func combine(cloud, legacy StoreResult) *DualResult {
	participated := 0
	succeeded := 0
	for _, r := range []StoreResult{cloud, legacy} {
		if r.Counts() {
			participated++
			if r.OK() {
				succeeded++
			}
		}
	}
	return &DualResult{
		Cloud:          cloud,
		Legacy:         legacy,
		OverallSuccess: participated > 0 && succeeded == participated,
		PartialSuccess: succeeded > 0 && succeeded < participated,
	}
}

func existsIn(cloud, legacy StoreResult) []domain.StoreID {
	var out []domain.StoreID
	if cloud.OK() {
		out = append(out, domain.StoreCloud)
	}
	if legacy.OK() {
		out = append(out, domain.StoreLegacy)
	}
	return out
}

func modeForTarget(t domain.TargetStore) domain.ProvisioningMode {
	switch t {
	case domain.TargetCloud:
		return domain.ModeCloud
	case domain.TargetLegacy:
		return domain.ModeLegacy
	default:
		return domain.ModeDual
	}
}
