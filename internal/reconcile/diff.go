package reconcile

import (
	"errors"
	"sort"

	"github.com/ignite/subscriber-sync/internal/domain"
)

// ErrBothAbsent is returned when Classify is invoked with neither side
// present; callers should not ask about a subscriber that exists nowhere.
var ErrBothAbsent = errors.New("reconcile: subscriber absent from both stores")

// attrPrefix namespaces attribute-map entries in field diffs.
const attrPrefix = "attr."

// conflictSensitive lists the fields whose divergence is an operational
// risk (double-billing, mis-routing) and therefore classifies as CONFLICT
// rather than OUT_OF_SYNC. A stale first name can be merged automatically;
// a diverged status or identifier cannot.
var conflictSensitive = map[string]bool{
	"status":  true,
	"plan_id": true,
	"msisdn":  true,
	"imsi":    true,
}

// Classify compares the cloud and legacy views of one subscriber and
// derives the sync status plus the list of disagreeing fields.
// updated_at and exists_in never participate in the comparison.
//
// Either side may be nil (absent from that store). Both nil is a caller
// error and returns ErrBothAbsent.
func Classify(cloud, legacy *domain.CanonicalSubscriber) (domain.SyncStatus, []domain.FieldDiff, error) {
	switch {
	case cloud == nil && legacy == nil:
		return "", nil, ErrBothAbsent
	case legacy == nil:
		return domain.SyncCloudOnly, nil, nil
	case cloud == nil:
		return domain.SyncLegacyOnly, nil, nil
	}

	diffs := compare(cloud, legacy)
	if len(diffs) == 0 {
		return domain.SyncSynced, nil, nil
	}
	for _, d := range diffs {
		if conflictSensitive[d.Field] {
			return domain.SyncConflict, diffs, nil
		}
	}
	return domain.SyncOutOfSync, diffs, nil
}

// compare returns one FieldDiff per disagreeing field, in a deterministic
// order: scalar fields first, then attribute keys sorted.
func compare(cloud, legacy *domain.CanonicalSubscriber) []domain.FieldDiff {
	var diffs []domain.FieldDiff

	scalar := []struct {
		name          string
		cloud, legacy string
	}{
		{"imsi", cloud.IMSI, legacy.IMSI},
		{"msisdn", cloud.MSISDN, legacy.MSISDN},
		{"status", string(cloud.Status), string(legacy.Status)},
		{"plan_id", cloud.PlanID, legacy.PlanID},
		{"email", cloud.Email, legacy.Email},
		{"first_name", cloud.FirstName, legacy.FirstName},
		{"last_name", cloud.LastName, legacy.LastName},
	}
	for _, f := range scalar {
		if f.cloud != f.legacy {
			diffs = append(diffs, domain.FieldDiff{Field: f.name, CloudValue: f.cloud, LegacyValue: f.legacy})
		}
	}

	keys := map[string]bool{}
	for k := range cloud.Attributes {
		keys[k] = true
	}
	for k := range legacy.Attributes {
		keys[k] = true
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)
	for _, k := range sorted {
		cv, lv := cloud.Attributes[k], legacy.Attributes[k]
		if cv != lv {
			diffs = append(diffs, domain.FieldDiff{Field: attrPrefix + k, CloudValue: cv, LegacyValue: lv})
		}
	}
	return diffs
}
