package normalize

import (
	"time"

	"github.com/ignite/subscriber-sync/internal/domain"
)

// CloudRecord is the native DynamoDB item shape for a subscriber.
// The table uses a single-table PK/SK layout (PK = "SUB#<uid>",
// SK = "PROFILE"); msisdn and imsi are projected into GSIs for
// store-local uniqueness checks.
type CloudRecord struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	UID    string `dynamodbav:"uid"`
	IMSI   string `dynamodbav:"imsi"`
	MSISDN string `dynamodbav:"msisdn"`
	// Status is the full status word, e.g. "ACTIVE".
	Status    string            `dynamodbav:"status"`
	PlanID    string            `dynamodbav:"plan_id,omitempty"`
	Email     string            `dynamodbav:"email,omitempty"`
	FirstName string            `dynamodbav:"first_name,omitempty"`
	LastName  string            `dynamodbav:"last_name,omitempty"`
	Attrs     map[string]string `dynamodbav:"attrs,omitempty"`
	// UpdatedAtMS is epoch milliseconds, the store's native clock format.
	UpdatedAtMS int64 `dynamodbav:"updated_at_ms"`
}

// CloudKeyPrefix is the partition-key prefix for subscriber items.
const CloudKeyPrefix = "SUB#"

// CloudProfileSK is the sort key of the subscriber profile item.
const CloudProfileSK = "PROFILE"

// FromCloud maps a native DynamoDB item onto the canonical shape.
func FromCloud(r *CloudRecord) (*domain.CanonicalSubscriber, error) {
	if err := requireIdentity(domain.StoreCloud, r.UID, r.IMSI, r.MSISDN); err != nil {
		return nil, err
	}
	status := domain.SubscriberStatus(r.Status)
	if !status.Valid() {
		return nil, errf(domain.StoreCloud, "status", "unknown value %q", r.Status)
	}
	if r.UpdatedAtMS < 0 {
		return nil, errf(domain.StoreCloud, "updated_at_ms", "negative timestamp %d", r.UpdatedAtMS)
	}

	c := &domain.CanonicalSubscriber{
		UID:       r.UID,
		IMSI:      r.IMSI,
		MSISDN:    r.MSISDN,
		Status:    status,
		PlanID:    r.PlanID,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		UpdatedAt: time.UnixMilli(r.UpdatedAtMS).UTC(),
	}
	if len(r.Attrs) > 0 {
		c.Attributes = make(map[string]string, len(r.Attrs))
		for k, v := range r.Attrs {
			c.Attributes[k] = v
		}
	}
	return c, nil
}

// ToCloud maps a canonical record onto the native DynamoDB item shape.
func ToCloud(c *domain.CanonicalSubscriber) *CloudRecord {
	r := &CloudRecord{
		PK:          CloudKeyPrefix + c.UID,
		SK:          CloudProfileSK,
		UID:         c.UID,
		IMSI:        c.IMSI,
		MSISDN:      c.MSISDN,
		Status:      string(c.Status),
		PlanID:      c.PlanID,
		Email:       c.Email,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		UpdatedAtMS: c.UpdatedAt.UnixMilli(),
	}
	if len(c.Attributes) > 0 {
		r.Attrs = make(map[string]string, len(c.Attributes))
		for k, v := range c.Attributes {
			r.Attrs[k] = v
		}
	}
	return r
}
