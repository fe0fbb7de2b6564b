package normalize

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ignite/subscriber-sync/internal/domain"
)

// LegacyRecord is the native relational row shape for a subscriber.
// The legacy schema predates the cloud store: status is a single-char
// code, optional columns are nullable, and extension fields live in a
// JSONB bag.
type LegacyRecord struct {
	UID        string
	IMSI       string
	MSISDN     string
	StatusCode string // "A", "I", "S", "D"
	PlanID     sql.NullString
	Email      sql.NullString
	FirstName  sql.NullString
	LastName   sql.NullString
	AttrsJSON  []byte // raw JSONB, may be nil
	UpdatedAt  time.Time
}

var legacyStatusByCode = map[string]domain.SubscriberStatus{
	"A": domain.StatusActive,
	"I": domain.StatusInactive,
	"S": domain.StatusSuspended,
	"D": domain.StatusDeleted,
}

var legacyCodeByStatus = map[domain.SubscriberStatus]string{
	domain.StatusActive:    "A",
	domain.StatusInactive:  "I",
	domain.StatusSuspended: "S",
	domain.StatusDeleted:   "D",
}

// FromLegacy maps a native relational row onto the canonical shape.
func FromLegacy(r *LegacyRecord) (*domain.CanonicalSubscriber, error) {
	if err := requireIdentity(domain.StoreLegacy, r.UID, r.IMSI, r.MSISDN); err != nil {
		return nil, err
	}
	status, ok := legacyStatusByCode[r.StatusCode]
	if !ok {
		return nil, errf(domain.StoreLegacy, "status", "unknown code %q", r.StatusCode)
	}

	c := &domain.CanonicalSubscriber{
		UID:       r.UID,
		IMSI:      r.IMSI,
		MSISDN:    r.MSISDN,
		Status:    status,
		PlanID:    r.PlanID.String,
		Email:     r.Email.String,
		FirstName: r.FirstName.String,
		LastName:  r.LastName.String,
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if len(r.AttrsJSON) > 0 {
		attrs := map[string]string{}
		if err := json.Unmarshal(r.AttrsJSON, &attrs); err != nil {
			return nil, errf(domain.StoreLegacy, "attributes", "invalid JSON: %v", err)
		}
		if len(attrs) > 0 {
			c.Attributes = attrs
		}
	}
	return c, nil
}

// ToLegacy maps a canonical record onto the native relational row shape.
func ToLegacy(c *domain.CanonicalSubscriber) (*LegacyRecord, error) {
	code, ok := legacyCodeByStatus[c.Status]
	if !ok {
		return nil, errf(domain.StoreLegacy, "status", "no legacy code for status %q", c.Status)
	}
	r := &LegacyRecord{
		UID:        c.UID,
		IMSI:       c.IMSI,
		MSISDN:     c.MSISDN,
		StatusCode: code,
		PlanID:     nullString(c.PlanID),
		Email:      nullString(c.Email),
		FirstName:  nullString(c.FirstName),
		LastName:   nullString(c.LastName),
		UpdatedAt:  c.UpdatedAt.UTC(),
	}
	if len(c.Attributes) > 0 {
		b, err := json.Marshal(c.Attributes)
		if err != nil {
			return nil, errf(domain.StoreLegacy, "attributes", "marshal: %v", err)
		}
		r.AttrsJSON = b
	}
	return r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
