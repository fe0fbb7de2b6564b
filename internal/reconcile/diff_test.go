package reconcile

import (
	"errors"
	"testing"

	"github.com/ignite/subscriber-sync/internal/domain"
)

func baseSubscriber() *domain.CanonicalSubscriber {
	return &domain.CanonicalSubscriber{
		UID:       "SUB001",
		IMSI:      "310150123456789",
		MSISDN:    "+14155550100",
		Status:    domain.StatusActive,
		PlanID:    "PLAN_5G_UNLIM",
		Email:     "kai@example.com",
		FirstName: "Kai",
		LastName:  "Rivera",
		Attributes: map[string]string{
			"billing_cycle": "monthly",
		},
	}
}

func TestClassifySynced(t *testing.T) {
	cloud := baseSubscriber()
	legacy := baseSubscriber()

	status, diffs, err := Classify(cloud, legacy)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if status != domain.SyncSynced {
		t.Errorf("status = %s, want SYNCED", status)
	}
	if len(diffs) != 0 {
		t.Errorf("diffs = %v, want none", diffs)
	}
}

func TestClassifyIgnoresUpdatedAtAndExistsIn(t *testing.T) {
	cloud := baseSubscriber()
	legacy := baseSubscriber()
	legacy.UpdatedAt = cloud.UpdatedAt.Add(1000)
	cloud.ExistsIn = []domain.StoreID{domain.StoreCloud}
	legacy.ExistsIn = []domain.StoreID{domain.StoreLegacy}

	status, _, err := Classify(cloud, legacy)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if status != domain.SyncSynced {
		t.Errorf("status = %s, want SYNCED (metadata must not participate)", status)
	}
}

func TestClassifySingleSided(t *testing.T) {
	sub := baseSubscriber()

	status, diffs, err := Classify(sub, nil)
	if err != nil {
		t.Fatalf("Classify(cloud, nil): %v", err)
	}
	if status != domain.SyncCloudOnly || len(diffs) != 0 {
		t.Errorf("got %s with %d diffs, want CLOUD_ONLY with none", status, len(diffs))
	}

	status, diffs, err = Classify(nil, sub)
	if err != nil {
		t.Fatalf("Classify(nil, legacy): %v", err)
	}
	if status != domain.SyncLegacyOnly || len(diffs) != 0 {
		t.Errorf("got %s with %d diffs, want LEGACY_ONLY with none", status, len(diffs))
	}
}

func TestClassifyBothAbsent(t *testing.T) {
	_, _, err := Classify(nil, nil)
	if !errors.Is(err, ErrBothAbsent) {
		t.Fatalf("err = %v, want ErrBothAbsent", err)
	}
}

func TestClassifyOutOfSync(t *testing.T) {
	// Divergence limited to non-sensitive fields is recoverable noise,
	// not an operational conflict.
	cloud := baseSubscriber()
	legacy := baseSubscriber()
	legacy.Email = "kai.rivera@example.com"
	legacy.FirstName = "K."

	status, diffs, err := Classify(cloud, legacy)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if status != domain.SyncOutOfSync {
		t.Errorf("status = %s, want OUT_OF_SYNC", status)
	}
	if len(diffs) != 2 {
		t.Fatalf("got %d diffs, want 2: %v", len(diffs), diffs)
	}
	// deterministic ordering: scalar comparison order
	if diffs[0].Field != "email" || diffs[1].Field != "first_name" {
		t.Errorf("diff order = [%s %s], want [email first_name]", diffs[0].Field, diffs[1].Field)
	}
}

func TestClassifyConflict(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.CanonicalSubscriber)
	}{
		{"status", func(s *domain.CanonicalSubscriber) { s.Status = domain.StatusSuspended }},
		{"plan_id", func(s *domain.CanonicalSubscriber) { s.PlanID = "PLAN_4G_BASIC" }},
		{"msisdn", func(s *domain.CanonicalSubscriber) { s.MSISDN = "+14155550199" }},
		{"imsi", func(s *domain.CanonicalSubscriber) { s.IMSI = "310150987654321" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cloud := baseSubscriber()
			legacy := baseSubscriber()
			tt.mutate(legacy)
			// a harmless diff alongside must not dilute the conflict
			legacy.Email = "other@example.com"

			status, diffs, err := Classify(cloud, legacy)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if status != domain.SyncConflict {
				t.Errorf("status = %s, want CONFLICT", status)
			}
			found := false
			for _, d := range diffs {
				if d.Field == tt.name {
					found = true
				}
			}
			if !found {
				t.Errorf("diffs %v missing field %s", diffs, tt.name)
			}
		})
	}
}

func TestClassifyAttributeDiffs(t *testing.T) {
	cloud := baseSubscriber()
	legacy := baseSubscriber()
	legacy.Attributes["billing_cycle"] = "quarterly"
	cloud.Attributes["vpn_addon"] = "enabled" // absent on legacy side

	status, diffs, err := Classify(cloud, legacy)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if status != domain.SyncOutOfSync {
		t.Errorf("status = %s, want OUT_OF_SYNC", status)
	}
	want := map[string]bool{"attr.billing_cycle": false, "attr.vpn_addon": false}
	for _, d := range diffs {
		if _, ok := want[d.Field]; !ok {
			t.Errorf("unexpected diff field %s", d.Field)
			continue
		}
		want[d.Field] = true
	}
	for f, seen := range want {
		if !seen {
			t.Errorf("missing diff for %s", f)
		}
	}
	// absent key reads as empty string
	for _, d := range diffs {
		if d.Field == "attr.vpn_addon" && d.LegacyValue != "" {
			t.Errorf("legacy value for absent attr = %q, want empty", d.LegacyValue)
		}
	}
}

func TestClassifyAttributeOrderDeterministic(t *testing.T) {
	cloud := baseSubscriber()
	legacy := baseSubscriber()
	cloud.Attributes = map[string]string{"zeta": "1", "alpha": "2", "mid": "3"}
	legacy.Attributes = map[string]string{}

	_, diffs, err := Classify(cloud, legacy)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	var got []string
	for _, d := range diffs {
		got = append(got, d.Field)
	}
	want := []string{"attr.alpha", "attr.mid", "attr.zeta"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("diff[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
