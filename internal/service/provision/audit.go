package provision

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/subscriber-sync/internal/domain"
	"github.com/ignite/subscriber-sync/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Operation names for audit records.
const (
	OpCreate  = "CREATE"
	OpUpdate  = "UPDATE"
	OpDelete  = "DELETE"
	OpResolve = "RESOLVE"
)

// AuditRecord captures one provisioning operation: what was attempted,
// for whom, and how each store answered. Exactly one record is emitted
// per coordinator operation; an external collector consumes them.
type AuditRecord struct {
	ID        string                    `json:"id"`
	Operation string                    `json:"operation"`
	UID       string                    `json:"uid"`
	Mode      domain.ProvisioningMode   `json:"mode,omitempty"`
	Strategy  domain.ResolutionStrategy `json:"strategy,omitempty"`
	Cloud     StoreResult               `json:"cloud_result"`
	Legacy    StoreResult               `json:"legacy_result"`
	Timestamp time.Time                 `json:"timestamp"`
}

// Auditor receives one record per provisioning operation. Implementations
// must not block the provisioning path.
type Auditor interface {
	Record(ctx context.Context, rec AuditRecord)
}

func newAuditID() string { return uuid.New().String() }

// LogAuditor writes audit records to the structured log. Used as the
// fallback sink when no Redis stream is configured.
type LogAuditor struct{}

func (LogAuditor) Record(_ context.Context, rec AuditRecord) {
	logger.Info("audit",
		"audit_id", rec.ID,
		"operation", rec.Operation,
		"uid", rec.UID,
		"cloud_outcome", string(rec.Cloud.Outcome),
		"legacy_outcome", string(rec.Legacy.Outcome),
	)
}

// RedisAuditor publishes audit records to a Redis stream, fire-and-forget
// with its own timeout so a slow audit backend never stalls provisioning.
type RedisAuditor struct {
	client *redis.Client
	stream string
}

// NewRedisAuditor creates an auditor that appends to the given stream.
func NewRedisAuditor(client *redis.Client, stream string) *RedisAuditor {
	return &RedisAuditor{client: client, stream: stream}
}

func (a *RedisAuditor) Record(_ context.Context, rec AuditRecord) {
	body, err := json.Marshal(rec)
	if err != nil {
		logger.Error("marshal audit record", "error", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := a.client.XAdd(ctx, &redis.XAddArgs{
			Stream: a.stream,
			Values: map[string]any{"data": string(body)},
		}).Err()
		if err != nil {
			logger.Error("publish audit record", "error", err, "stream", a.stream)
		}
	}()
}
