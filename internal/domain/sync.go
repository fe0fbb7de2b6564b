package domain

// SyncStatus classifies the consistency of one subscriber across the two
// stores. It is derived fresh on every read and never persisted; a stored
// copy would go stale the moment either side is written.
type SyncStatus string

const (
	SyncSynced     SyncStatus = "SYNCED"
	SyncOutOfSync  SyncStatus = "OUT_OF_SYNC"
	SyncCloudOnly  SyncStatus = "CLOUD_ONLY"
	SyncLegacyOnly SyncStatus = "LEGACY_ONLY"
	SyncConflict   SyncStatus = "CONFLICT"
)

// FieldDiff records one field on which the two stores disagree.
// Attribute-map entries use the field name "attr.<key>".
type FieldDiff struct {
	Field       string `json:"field"`
	CloudValue  string `json:"cloud_value"`
	LegacyValue string `json:"legacy_value"`
}

// ResolutionStrategy selects how a diff is turned into a write plan.
type ResolutionStrategy string

const (
	StrategyCloudWins  ResolutionStrategy = "CLOUD_WINS"
	StrategyLegacyWins ResolutionStrategy = "LEGACY_WINS"
	StrategyManual     ResolutionStrategy = "MANUAL"
	// StrategyApplyManual replays operator-supplied per-field choices.
	StrategyApplyManual ResolutionStrategy = "APPLY_MANUAL"
)

// Valid reports whether s is a known resolution strategy.
func (s ResolutionStrategy) Valid() bool {
	switch s {
	case StrategyCloudWins, StrategyLegacyWins, StrategyManual, StrategyApplyManual:
		return true
	}
	return false
}

// TargetStore names the destination of a write plan.
type TargetStore string

const (
	TargetCloud  TargetStore = "CLOUD"
	TargetLegacy TargetStore = "LEGACY"
	TargetBoth   TargetStore = "BOTH"
	// TargetNone means the resolver declined to decide (MANUAL strategy);
	// the caller must collect per-field choices and replay.
	TargetNone TargetStore = "NONE"
)

// WritePlan is the output of conflict resolution: which store(s) to write,
// the merged record, and a human-readable reason. It is ephemeral and
// consumed immediately by the dual write coordinator.
type WritePlan struct {
	TargetStore TargetStore          `json:"target_store"`
	Record      *CanonicalSubscriber `json:"record,omitempty"`
	Reason      string               `json:"reason"`
	// Diffs is populated when TargetStore is NONE so the operator can
	// make field-level choices.
	Diffs []FieldDiff `json:"diffs,omitempty"`
}
