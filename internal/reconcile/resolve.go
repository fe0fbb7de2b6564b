package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ignite/subscriber-sync/internal/domain"
)

var (
	// ErrMissingSide is returned when resolution is attempted without
	// both canonical records; single-sided pairs are a copy, not a merge.
	ErrMissingSide = errors.New("reconcile: resolution requires both cloud and legacy records")

	// ErrIncompleteChoices is returned by APPLY_MANUAL when a differing
	// field has no operator-supplied source. Every field in the merged
	// record must trace to one side; nothing is silently defaulted.
	ErrIncompleteChoices = errors.New("reconcile: every differing field needs an explicit choice")

	// ErrUnknownStrategy is returned for strategies this engine does not
	// implement.
	ErrUnknownStrategy = errors.New("reconcile: unknown resolution strategy")
)

// Resolve turns a classified diff into a write plan under the given
// strategy. choices is only consulted for APPLY_MANUAL and maps a diff
// field name to the store whose value wins.
//
// The merged record never contains a fabricated value: every field comes
// from the cloud record, the legacy record, or an explicit choice
// between the two.
func Resolve(cloud, legacy *domain.CanonicalSubscriber, diffs []domain.FieldDiff, strategy domain.ResolutionStrategy, choices map[string]domain.StoreID) (*domain.WritePlan, error) {
	if cloud == nil || legacy == nil {
		return nil, ErrMissingSide
	}

	switch strategy {
	case domain.StrategyCloudWins:
		return winnerPlan(cloud, diffs, domain.StoreCloud), nil

	case domain.StrategyLegacyWins:
		return winnerPlan(legacy, diffs, domain.StoreLegacy), nil

	case domain.StrategyManual:
		// The resolver does not decide; surface the diffs so the
		// operator can choose per field and replay via APPLY_MANUAL.
		return &domain.WritePlan{
			TargetStore: domain.TargetNone,
			Reason:      "manual resolution requested: awaiting per-field choices",
			Diffs:       diffs,
		}, nil

	case domain.StrategyApplyManual:
		return applyManual(cloud, legacy, diffs, choices)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// winnerPlan builds the store-wins plan: the merged record takes the
// winning store's value for every differing field, so re-classifying it
// against the winner always yields SYNCED.
func winnerPlan(winner *domain.CanonicalSubscriber, diffs []domain.FieldDiff, side domain.StoreID) *domain.WritePlan {
	rec := winner.Clone()
	rec.ExistsIn = []domain.StoreID{domain.StoreCloud, domain.StoreLegacy}

	fields := make([]string, 0, len(diffs))
	for _, d := range diffs {
		fields = append(fields, d.Field)
	}
	return &domain.WritePlan{
		TargetStore: domain.TargetBoth,
		Record:      rec,
		Reason:      fmt.Sprintf("%s wins: overwrote %s", side, strings.Join(fields, ", ")),
	}
}

func applyManual(cloud, legacy *domain.CanonicalSubscriber, diffs []domain.FieldDiff, choices map[string]domain.StoreID) (*domain.WritePlan, error) {
	// Non-differing fields are identical on both sides, so the cloud
	// record is a valid starting point for them.
	rec := cloud.Clone()
	rec.ExistsIn = []domain.StoreID{domain.StoreCloud, domain.StoreLegacy}

	seen := make(map[string]bool, len(diffs))
	for _, d := range diffs {
		side, ok := choices[d.Field]
		if !ok {
			return nil, fmt.Errorf("%w: missing choice for %q", ErrIncompleteChoices, d.Field)
		}
		seen[d.Field] = true
		switch side {
		case domain.StoreCloud:
			// already holds the cloud value
		case domain.StoreLegacy:
			if err := takeFrom(rec, legacy, d.Field); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("reconcile: choice for %q names unknown store %q", d.Field, side)
		}
	}
	for f := range choices {
		if !seen[f] {
			return nil, fmt.Errorf("reconcile: choice for %q does not match any differing field", f)
		}
	}

	return &domain.WritePlan{
		TargetStore: domain.TargetBoth,
		Record:      rec,
		Reason:      fmt.Sprintf("manual merge: %d field choice(s) applied", len(diffs)),
	}, nil
}

// takeFrom copies one diffable field from src onto rec.
func takeFrom(rec, src *domain.CanonicalSubscriber, field string) error {
	if strings.HasPrefix(field, attrPrefix) {
		key := strings.TrimPrefix(field, attrPrefix)
		if v, ok := src.Attributes[key]; ok {
			if rec.Attributes == nil {
				rec.Attributes = map[string]string{}
			}
			rec.Attributes[key] = v
		} else {
			delete(rec.Attributes, key)
		}
		return nil
	}
	switch field {
	case "imsi":
		rec.IMSI = src.IMSI
	case "msisdn":
		rec.MSISDN = src.MSISDN
	case "status":
		rec.Status = src.Status
	case "plan_id":
		rec.PlanID = src.PlanID
	case "email":
		rec.Email = src.Email
	case "first_name":
		rec.FirstName = src.FirstName
	case "last_name":
		rec.LastName = src.LastName
	default:
		return fmt.Errorf("reconcile: unknown field %q", field)
	}
	return nil
}
