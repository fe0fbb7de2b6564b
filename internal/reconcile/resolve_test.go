package reconcile

import (
	"errors"
	"testing"

	"github.com/ignite/subscriber-sync/internal/domain"
)

func divergedPair() (cloud, legacy *domain.CanonicalSubscriber) {
	cloud = baseSubscriber()
	legacy = baseSubscriber()
	legacy.Status = domain.StatusSuspended
	legacy.Email = "kai.alt@example.com"
	legacy.Attributes["billing_cycle"] = "quarterly"
	return cloud, legacy
}

func TestResolveCloudWins(t *testing.T) {
	cloud, legacy := divergedPair()
	_, diffs, err := Classify(cloud, legacy)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	plan, err := Resolve(cloud, legacy, diffs, domain.StrategyCloudWins, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if plan.TargetStore != domain.TargetBoth {
		t.Errorf("target = %s, want BOTH", plan.TargetStore)
	}

	// Resolving with CLOUD_WINS must yield a record identical to the
	// cloud view on every compared field.
	status, diffs, err := Classify(cloud, plan.Record)
	if err != nil {
		t.Fatalf("re-Classify: %v", err)
	}
	if status != domain.SyncSynced {
		t.Errorf("merged record vs cloud = %s with diffs %v, want SYNCED", status, diffs)
	}
}

func TestResolveLegacyWins(t *testing.T) {
	cloud, legacy := divergedPair()
	_, diffs, err := Classify(cloud, legacy)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	plan, err := Resolve(cloud, legacy, diffs, domain.StrategyLegacyWins, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	status, diffs, err := Classify(plan.Record, legacy)
	if err != nil {
		t.Fatalf("re-Classify: %v", err)
	}
	if status != domain.SyncSynced {
		t.Errorf("merged record vs legacy = %s with diffs %v, want SYNCED", status, diffs)
	}
}

func TestResolveManualDefersDecision(t *testing.T) {
	cloud, legacy := divergedPair()
	_, diffs, err := Classify(cloud, legacy)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	plan, err := Resolve(cloud, legacy, diffs, domain.StrategyManual, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if plan.TargetStore != domain.TargetNone {
		t.Errorf("target = %s, want NONE", plan.TargetStore)
	}
	if plan.Record != nil {
		t.Error("MANUAL plan must not carry a merged record")
	}
	if len(plan.Diffs) != len(diffs) {
		t.Errorf("plan.Diffs = %d entries, want %d", len(plan.Diffs), len(diffs))
	}
}

func TestResolveApplyManual(t *testing.T) {
	cloud, legacy := divergedPair()
	_, diffs, err := Classify(cloud, legacy)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	choices := map[string]domain.StoreID{
		"status":             domain.StoreLegacy,
		"email":              domain.StoreCloud,
		"attr.billing_cycle": domain.StoreLegacy,
	}
	plan, err := Resolve(cloud, legacy, diffs, domain.StrategyApplyManual, choices)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if plan.TargetStore != domain.TargetBoth {
		t.Errorf("target = %s, want BOTH", plan.TargetStore)
	}
	rec := plan.Record
	if rec.Status != domain.StatusSuspended {
		t.Errorf("status = %s, want legacy SUSPENDED", rec.Status)
	}
	if rec.Email != "kai@example.com" {
		t.Errorf("email = %q, want cloud value", rec.Email)
	}
	if rec.Attributes["billing_cycle"] != "quarterly" {
		t.Errorf("billing_cycle = %q, want legacy quarterly", rec.Attributes["billing_cycle"])
	}
}

func TestResolveApplyManualMissingChoice(t *testing.T) {
	cloud, legacy := divergedPair()
	_, diffs, err := Classify(cloud, legacy)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	_, err = Resolve(cloud, legacy, diffs, domain.StrategyApplyManual,
		map[string]domain.StoreID{"status": domain.StoreLegacy})
	if !errors.Is(err, ErrIncompleteChoices) {
		t.Fatalf("err = %v, want ErrIncompleteChoices", err)
	}
}

func TestResolveApplyManualStrayChoice(t *testing.T) {
	cloud, legacy := divergedPair()
	_, diffs, err := Classify(cloud, legacy)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	choices := map[string]domain.StoreID{
		"status":             domain.StoreLegacy,
		"email":              domain.StoreCloud,
		"attr.billing_cycle": domain.StoreLegacy,
		"plan_id":            domain.StoreCloud, // not a differing field
	}
	if _, err := Resolve(cloud, legacy, diffs, domain.StrategyApplyManual, choices); err == nil {
		t.Fatal("expected error for choice on a non-differing field")
	}
}

func TestResolveApplyManualRemovesAbsentAttr(t *testing.T) {
	cloud := baseSubscriber()
	legacy := baseSubscriber()
	cloud.Attributes["vpn_addon"] = "enabled"
	// legacy side has no vpn_addon; choosing LEGACY must delete it

	_, diffs, err := Classify(cloud, legacy)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	plan, err := Resolve(cloud, legacy, diffs, domain.StrategyApplyManual,
		map[string]domain.StoreID{"attr.vpn_addon": domain.StoreLegacy})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := plan.Record.Attributes["vpn_addon"]; ok {
		t.Error("vpn_addon should be absent after taking the legacy side")
	}
}

func TestResolveRequiresBothSides(t *testing.T) {
	sub := baseSubscriber()
	if _, err := Resolve(sub, nil, nil, domain.StrategyCloudWins, nil); !errors.Is(err, ErrMissingSide) {
		t.Errorf("err = %v, want ErrMissingSide", err)
	}
	if _, err := Resolve(nil, sub, nil, domain.StrategyLegacyWins, nil); !errors.Is(err, ErrMissingSide) {
		t.Errorf("err = %v, want ErrMissingSide", err)
	}
}

func TestResolveUnknownStrategy(t *testing.T) {
	cloud, legacy := divergedPair()
	_, err := Resolve(cloud, legacy, nil, "NEWEST_WINS", nil)
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("err = %v, want ErrUnknownStrategy", err)
	}
}
