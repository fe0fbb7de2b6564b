package domain

import "time"

// SubscriberStatus enumerates the lifecycle states a subscriber can be in.
type SubscriberStatus string

const (
	StatusActive    SubscriberStatus = "ACTIVE"
	StatusInactive  SubscriberStatus = "INACTIVE"
	StatusSuspended SubscriberStatus = "SUSPENDED"
	StatusDeleted   SubscriberStatus = "DELETED"
)

// Valid reports whether s is one of the known subscriber statuses.
func (s SubscriberStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusDeleted:
		return true
	}
	return false
}

// StoreID identifies one of the two backing stores.
type StoreID string

const (
	StoreCloud  StoreID = "CLOUD"
	StoreLegacy StoreID = "LEGACY"
)

// ProvisioningMode selects which store(s) a provisioning call targets.
// Callers choose the mode explicitly per request; there is no ambient
// global setting.
type ProvisioningMode string

const (
	ModeCloud  ProvisioningMode = "CLOUD"
	ModeLegacy ProvisioningMode = "LEGACY"
	ModeDual   ProvisioningMode = "DUAL"
)

// Valid reports whether m is a known provisioning mode.
func (m ProvisioningMode) Valid() bool {
	return m == ModeCloud || m == ModeLegacy || m == ModeDual
}

// CanonicalSubscriber is the comparison-ready representation of a
// subscriber, independent of which backing store it came from.
//
// UID is the join key between stores: two canonical records sharing a UID
// are the same logical subscriber regardless of internal store keys.
type CanonicalSubscriber struct {
	UID       string           `json:"uid"`
	IMSI      string           `json:"imsi"`
	MSISDN    string           `json:"msisdn"`
	Status    SubscriberStatus `json:"status"`
	PlanID    string           `json:"plan_id,omitempty"`
	Email     string           `json:"email,omitempty"`
	FirstName string           `json:"first_name,omitempty"`
	LastName  string           `json:"last_name,omitempty"`

	// Attributes carries store-specific extension fields that still
	// participate in comparison (diffed as "attr.<key>").
	Attributes map[string]string `json:"attributes,omitempty"`

	// UpdatedAt is the store-local last-write time. Excluded from
	// comparison; used only for tie-breaking and display.
	UpdatedAt time.Time `json:"updated_at"`

	// ExistsIn records which store(s) held this UID at read time.
	ExistsIn []StoreID `json:"exists_in,omitempty"`
}

// Clone returns a deep copy of the record.
func (c *CanonicalSubscriber) Clone() *CanonicalSubscriber {
	if c == nil {
		return nil
	}
	out := *c
	if c.Attributes != nil {
		out.Attributes = make(map[string]string, len(c.Attributes))
		for k, v := range c.Attributes {
			out.Attributes[k] = v
		}
	}
	if c.ExistsIn != nil {
		out.ExistsIn = append([]StoreID(nil), c.ExistsIn...)
	}
	return &out
}
