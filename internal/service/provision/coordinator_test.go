package provision_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ignite/subscriber-sync/internal/domain"
	"github.com/ignite/subscriber-sync/internal/repository/memory"
	"github.com/ignite/subscriber-sync/internal/service/provision"
)

func newWriter() (*provision.DualWriter, *memory.Store, *memory.Store) {
	cloud := memory.New(domain.StoreCloud)
	legacy := memory.New(domain.StoreLegacy)
	return provision.NewDualWriter(cloud, legacy, nil), cloud, legacy
}

func newSubscriber(uid string) *domain.CanonicalSubscriber {
	return &domain.CanonicalSubscriber{
		UID:    uid,
		IMSI:   "31015" + uid,
		MSISDN: "+1415555" + uid,
		Status: domain.StatusActive,
		PlanID: "PLAN_5G_UNLIM",
	}
}

func TestCreateDualBothStores(t *testing.T) {
	w, cloud, legacy := newWriter()

	res, err := w.CreateDual(context.Background(), newSubscriber("0100"), domain.ModeDual)
	if err != nil {
		t.Fatalf("CreateDual: %v", err)
	}
	if !res.OverallSuccess || res.PartialSuccess {
		t.Errorf("overall=%v partial=%v, want overall only", res.OverallSuccess, res.PartialSuccess)
	}
	if cloud.Len() != 1 || legacy.Len() != 1 {
		t.Errorf("stored cloud=%d legacy=%d, want 1/1", cloud.Len(), legacy.Len())
	}
	if len(res.Subscriber.ExistsIn) != 2 {
		t.Errorf("exists_in = %v, want both stores", res.Subscriber.ExistsIn)
	}
}

func TestCreateDualDefaultsStatus(t *testing.T) {
	w, _, _ := newWriter()
	sub := newSubscriber("0101")
	sub.Status = ""

	res, err := w.CreateDual(context.Background(), sub, domain.ModeDual)
	if err != nil {
		t.Fatalf("CreateDual: %v", err)
	}
	if res.Subscriber.Status != domain.StatusActive {
		t.Errorf("status = %s, want ACTIVE default", res.Subscriber.Status)
	}
}

func TestCreateDualRejectsMissingIdentity(t *testing.T) {
	w, _, _ := newWriter()
	sub := newSubscriber("0102")
	sub.IMSI = ""
	if _, err := w.CreateDual(context.Background(), sub, domain.ModeDual); err == nil {
		t.Fatal("expected validation error for missing imsi")
	}
}

func TestCreateDualPartialFailure(t *testing.T) {
	w, cloud, legacy := newWriter()
	legacy.SetError(fmt.Errorf("connection refused: %w", provision.ErrStoreUnavailable))

	res, err := w.CreateDual(context.Background(), newSubscriber("0103"), domain.ModeDual)
	if err != nil {
		t.Fatalf("CreateDual: %v", err)
	}
	if res.OverallSuccess {
		t.Error("overall success despite legacy failure")
	}
	if !res.PartialSuccess {
		t.Error("partial success not flagged")
	}
	if res.Cloud.Outcome != provision.OutcomeOK {
		t.Errorf("cloud outcome = %s, want OK", res.Cloud.Outcome)
	}
	if res.Legacy.Outcome != provision.OutcomeError {
		t.Errorf("legacy outcome = %s, want ERROR", res.Legacy.Outcome)
	}
	if cloud.Len() != 1 || legacy.Len() != 0 {
		t.Errorf("no rollback expected: cloud=%d legacy=%d", cloud.Len(), legacy.Len())
	}

	// the surviving single-sided record must classify as CLOUD_ONLY
	legacy.SetError(nil)
	status, err := w.GetSyncStatus(context.Background(), "0103")
	if err != nil {
		t.Fatalf("GetSyncStatus: %v", err)
	}
	if status.SyncStatus != domain.SyncCloudOnly {
		t.Errorf("sync status = %s, want CLOUD_ONLY", status.SyncStatus)
	}
}

func TestCreateDualConflictOutcome(t *testing.T) {
	w, _, legacy := newWriter()
	existing := newSubscriber("0104")
	legacy.Seed(existing)

	other := newSubscriber("0105")
	other.MSISDN = existing.MSISDN // uniqueness collision on legacy only

	res, err := w.CreateDual(context.Background(), other, domain.ModeDual)
	if err != nil {
		t.Fatalf("CreateDual: %v", err)
	}
	if res.Legacy.Outcome != provision.OutcomeConflict {
		t.Errorf("legacy outcome = %s, want CONFLICT", res.Legacy.Outcome)
	}
	if !res.PartialSuccess {
		t.Error("cloud side succeeded, result must be partial")
	}
}

func TestCreateDualSingleStoreMode(t *testing.T) {
	w, cloud, legacy := newWriter()

	res, err := w.CreateDual(context.Background(), newSubscriber("0106"), domain.ModeCloud)
	if err != nil {
		t.Fatalf("CreateDual: %v", err)
	}
	if !res.OverallSuccess {
		t.Error("single-store create should be overall success")
	}
	if res.Legacy.Outcome != provision.OutcomeSkipped {
		t.Errorf("legacy outcome = %s, want SKIPPED", res.Legacy.Outcome)
	}
	if cloud.Len() != 1 || legacy.Len() != 0 {
		t.Errorf("cloud=%d legacy=%d, want 1/0", cloud.Len(), legacy.Len())
	}
}

func TestUpdateDualAppliesPatch(t *testing.T) {
	w, _, _ := newWriter()
	if _, err := w.CreateDual(context.Background(), newSubscriber("0107"), domain.ModeDual); err != nil {
		t.Fatalf("seed: %v", err)
	}

	plan := "PLAN_4G_BASIC"
	status := domain.StatusSuspended
	res, err := w.UpdateDual(context.Background(), "0107",
		provision.Patch{PlanID: &plan, Status: &status}, domain.ModeDual)
	if err != nil {
		t.Fatalf("UpdateDual: %v", err)
	}
	if !res.OverallSuccess {
		t.Errorf("overall=%v cloud=%s legacy=%s", res.OverallSuccess, res.Cloud.Outcome, res.Legacy.Outcome)
	}
	if res.Subscriber.PlanID != plan || res.Subscriber.Status != status {
		t.Errorf("patch not applied: %+v", res.Subscriber)
	}
}

func TestUpdateDualRefusesConflictedPair(t *testing.T) {
	w, cloud, legacy := newWriter()
	sub := newSubscriber("0108")
	cloud.Seed(sub)
	diverged := sub.Clone()
	diverged.Status = domain.StatusSuspended // conflict-sensitive
	legacy.Seed(diverged)

	email := "new@example.com"
	res, err := w.UpdateDual(context.Background(), "0108", provision.Patch{Email: &email}, domain.ModeDual)
	if !errors.Is(err, provision.ErrUnresolvedConflict) {
		t.Fatalf("err = %v, want ErrUnresolvedConflict", err)
	}
	if res == nil || len(res.Conflicts) == 0 {
		t.Fatal("conflicting fields must be surfaced")
	}
	if res.Cloud.Outcome != provision.OutcomeSkipped || res.Legacy.Outcome != provision.OutcomeSkipped {
		t.Error("no write may happen on a conflicted pair")
	}

	// stores untouched
	got, err := cloud.Get(context.Background(), "0108")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Email != sub.Email {
		t.Error("cloud record was modified despite refusal")
	}
}

func TestUpdateDualNotFound(t *testing.T) {
	w, _, _ := newWriter()
	_, err := w.UpdateDual(context.Background(), "nope", provision.Patch{}, domain.ModeDual)
	if !errors.Is(err, provision.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateDualSingleSidedBase(t *testing.T) {
	// Subscriber exists only on legacy; updating in DUAL mode writes the
	// patched record to both, healing the missing side.
	w, cloud, legacy := newWriter()
	legacy.Seed(newSubscriber("0109"))

	email := "healed@example.com"
	res, err := w.UpdateDual(context.Background(), "0109", provision.Patch{Email: &email}, domain.ModeDual)
	if err != nil {
		t.Fatalf("UpdateDual: %v", err)
	}
	if !res.OverallSuccess {
		t.Errorf("cloud=%s legacy=%s", res.Cloud.Outcome, res.Legacy.Outcome)
	}
	if cloud.Len() != 1 || legacy.Len() != 1 {
		t.Errorf("cloud=%d legacy=%d, want 1/1", cloud.Len(), legacy.Len())
	}
}

func TestDeleteDualIdempotent(t *testing.T) {
	w, _, legacy := newWriter()
	// present only on legacy; cloud delete reports NotFound which counts
	// as success
	legacy.Seed(newSubscriber("0110"))

	res, err := w.DeleteDual(context.Background(), "0110", domain.ModeDual)
	if err != nil {
		t.Fatalf("DeleteDual: %v", err)
	}
	if !res.OverallSuccess {
		t.Errorf("overall=%v cloud=%s legacy=%s", res.OverallSuccess, res.Cloud.Outcome, res.Legacy.Outcome)
	}

	// deleting again is still success
	res, err = w.DeleteDual(context.Background(), "0110", domain.ModeDual)
	if err != nil {
		t.Fatalf("second DeleteDual: %v", err)
	}
	if !res.OverallSuccess {
		t.Error("repeat delete must be idempotent success")
	}
}

func TestDeleteDualPartialFailure(t *testing.T) {
	w, cloud, legacy := newWriter()
	sub := newSubscriber("0111")
	cloud.Seed(sub)
	legacy.Seed(sub)
	legacy.SetError(fmt.Errorf("timeout: %w", provision.ErrStoreUnavailable))

	res, err := w.DeleteDual(context.Background(), "0111", domain.ModeDual)
	if err != nil {
		t.Fatalf("DeleteDual: %v", err)
	}
	if res.OverallSuccess || !res.PartialSuccess {
		t.Errorf("overall=%v partial=%v, want partial", res.OverallSuccess, res.PartialSuccess)
	}
	if cloud.Len() != 0 {
		t.Error("cloud delete should have gone through")
	}
	if legacy.Len() != 1 {
		t.Error("legacy record must survive the failed delete")
	}
}

func TestGetSyncStatusVariants(t *testing.T) {
	w, cloud, legacy := newWriter()
	ctx := context.Background()

	synced := newSubscriber("0112")
	cloud.Seed(synced)
	legacy.Seed(synced)

	conflicted := newSubscriber("0113")
	cloud.Seed(conflicted)
	diverged := conflicted.Clone()
	diverged.PlanID = "PLAN_4G_BASIC"
	legacy.Seed(diverged)

	legacyOnly := newSubscriber("0114")
	legacy.Seed(legacyOnly)

	tests := []struct {
		uid  string
		want domain.SyncStatus
	}{
		{"0112", domain.SyncSynced},
		{"0113", domain.SyncConflict},
		{"0114", domain.SyncLegacyOnly},
	}
	for _, tt := range tests {
		res, err := w.GetSyncStatus(ctx, tt.uid)
		if err != nil {
			t.Fatalf("GetSyncStatus(%s): %v", tt.uid, err)
		}
		if res.SyncStatus != tt.want {
			t.Errorf("uid %s: status = %s, want %s", tt.uid, res.SyncStatus, tt.want)
		}
	}

	if _, err := w.GetSyncStatus(ctx, "absent"); !errors.Is(err, provision.ErrNotFound) {
		t.Errorf("absent uid: err = %v, want ErrNotFound", err)
	}
}

func TestResolveConflictsCloudWins(t *testing.T) {
	w, cloud, legacy := newWriter()
	sub := newSubscriber("0115")
	cloud.Seed(sub)
	diverged := sub.Clone()
	diverged.Status = domain.StatusSuspended
	legacy.Seed(diverged)

	res, err := w.ResolveConflicts(context.Background(), "0115", domain.StrategyCloudWins, nil)
	if err != nil {
		t.Fatalf("ResolveConflicts: %v", err)
	}
	if !res.Resolved {
		t.Fatalf("not resolved: cloud=%s legacy=%s", res.Cloud.Outcome, res.Legacy.Outcome)
	}

	status, err := w.GetSyncStatus(context.Background(), "0115")
	if err != nil {
		t.Fatalf("GetSyncStatus: %v", err)
	}
	if status.SyncStatus != domain.SyncSynced {
		t.Errorf("after resolution: %s, want SYNCED", status.SyncStatus)
	}
	got, _ := legacy.Get(context.Background(), "0115")
	if got.Status != domain.StatusActive {
		t.Errorf("legacy status = %s, want cloud's ACTIVE", got.Status)
	}
}

func TestResolveConflictsCopiesSingleSided(t *testing.T) {
	w, cloud, legacy := newWriter()
	legacy.Seed(newSubscriber("0116"))

	res, err := w.ResolveConflicts(context.Background(), "0116", domain.StrategyCloudWins, nil)
	if err != nil {
		t.Fatalf("ResolveConflicts: %v", err)
	}
	if !res.Resolved {
		t.Fatal("single-sided copy should resolve")
	}
	if res.Cloud.Outcome != provision.OutcomeOK {
		t.Errorf("cloud outcome = %s, want OK (copy target)", res.Cloud.Outcome)
	}
	if res.Legacy.Outcome != provision.OutcomeSkipped {
		t.Errorf("legacy outcome = %s, want SKIPPED (already correct)", res.Legacy.Outcome)
	}
	if cloud.Len() != 1 {
		t.Error("record not copied to cloud")
	}
}

func TestResolveConflictsManualDefers(t *testing.T) {
	w, cloud, legacy := newWriter()
	sub := newSubscriber("0117")
	cloud.Seed(sub)
	diverged := sub.Clone()
	diverged.IMSI = "310150999999999"
	legacy.Seed(diverged)

	res, err := w.ResolveConflicts(context.Background(), "0117", domain.StrategyManual, nil)
	if err != nil {
		t.Fatalf("ResolveConflicts: %v", err)
	}
	if res.Resolved {
		t.Error("MANUAL must not resolve")
	}
	if len(res.Conflicts) == 0 {
		t.Error("diffs must be surfaced for the operator")
	}

	// replay with explicit choices completes the resolution
	res, err = w.ResolveConflicts(context.Background(), "0117", domain.StrategyApplyManual,
		map[string]domain.StoreID{"imsi": domain.StoreLegacy})
	if err != nil {
		t.Fatalf("APPLY_MANUAL: %v", err)
	}
	if !res.Resolved {
		t.Fatal("APPLY_MANUAL with complete choices should resolve")
	}
	got, _ := cloud.Get(context.Background(), "0117")
	if got.IMSI != "310150999999999" {
		t.Errorf("cloud imsi = %s, want legacy value", got.IMSI)
	}
}

func TestResolveConflictsSyncedNoop(t *testing.T) {
	w, cloud, legacy := newWriter()
	sub := newSubscriber("0118")
	cloud.Seed(sub)
	legacy.Seed(sub)

	res, err := w.ResolveConflicts(context.Background(), "0118", domain.StrategyLegacyWins, nil)
	if err != nil {
		t.Fatalf("ResolveConflicts: %v", err)
	}
	if !res.Resolved {
		t.Error("already-synced pair should report resolved")
	}
	if res.Cloud.Outcome != provision.OutcomeSkipped || res.Legacy.Outcome != provision.OutcomeSkipped {
		t.Error("no write should happen for a synced pair")
	}
}

func TestResolveConflictsUnknownUID(t *testing.T) {
	w, _, _ := newWriter()
	_, err := w.ResolveConflicts(context.Background(), "absent", domain.StrategyCloudWins, nil)
	if !errors.Is(err, provision.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
