// Package postgres implements the legacy-side provision.Store against the
// pre-existing relational subscriber system of record.
//
// Expected schema:
//
//	CREATE TABLE legacy_subscribers (
//	    uid         TEXT PRIMARY KEY,
//	    imsi        TEXT NOT NULL UNIQUE,
//	    msisdn      TEXT NOT NULL UNIQUE,
//	    status_code CHAR(1) NOT NULL,
//	    plan_id     TEXT,
//	    email       TEXT,
//	    first_name  TEXT,
//	    last_name   TEXT,
//	    attributes  JSONB,
//	    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/subscriber-sync/internal/domain"
	"github.com/ignite/subscriber-sync/internal/normalize"
	"github.com/ignite/subscriber-sync/internal/service/provision"
)

// LegacyStore implements provision.Store over PostgreSQL.
type LegacyStore struct {
	db      *sql.DB
	timeout time.Duration
}

// NewLegacyStore creates a Postgres-backed legacy store. timeout bounds
// every individual query; the legacy system is expected to be slower than
// the cloud store, so it is configured independently.
func NewLegacyStore(db *sql.DB, timeout time.Duration) *LegacyStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LegacyStore{db: db, timeout: timeout}
}

func (s *LegacyStore) ID() domain.StoreID { return domain.StoreLegacy }

const selectColumns = `uid, imsi, msisdn, status_code, plan_id, email, first_name, last_name, attributes, updated_at`

func (s *LegacyStore) Get(ctx context.Context, uid string) (*domain.CanonicalSubscriber, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var row normalize.LegacyRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM legacy_subscribers WHERE uid = $1`,
		uid,
	).Scan(&row.UID, &row.IMSI, &row.MSISDN, &row.StatusCode, &row.PlanID,
		&row.Email, &row.FirstName, &row.LastName, &row.AttrsJSON, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("legacy %s: %w", uid, provision.ErrNotFound)
	}
	if err != nil {
		return nil, classify("get", uid, err)
	}
	return normalize.FromLegacy(&row)
}

func (s *LegacyStore) Create(ctx context.Context, rec *domain.CanonicalSubscriber) (*domain.CanonicalSubscriber, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row, err := normalize.ToLegacy(rec)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO legacy_subscribers
			(uid, imsi, msisdn, status_code, plan_id, email, first_name, last_name, attributes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, row.UID, row.IMSI, row.MSISDN, row.StatusCode, row.PlanID,
		row.Email, row.FirstName, row.LastName, nullBytes(row.AttrsJSON), row.UpdatedAt)
	if err != nil {
		return nil, classify("create", rec.UID, err)
	}
	return rec.Clone(), nil
}

func (s *LegacyStore) Update(ctx context.Context, rec *domain.CanonicalSubscriber) (*domain.CanonicalSubscriber, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row, err := normalize.ToLegacy(rec)
	if err != nil {
		return nil, err
	}
	// Upsert by uid so a retried write is harmless. A unique violation
	// here can only come from msisdn/imsi owned by a different uid.
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO legacy_subscribers
			(uid, imsi, msisdn, status_code, plan_id, email, first_name, last_name, attributes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (uid) DO UPDATE SET
			imsi = EXCLUDED.imsi,
			msisdn = EXCLUDED.msisdn,
			status_code = EXCLUDED.status_code,
			plan_id = EXCLUDED.plan_id,
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			attributes = EXCLUDED.attributes,
			updated_at = EXCLUDED.updated_at
	`, row.UID, row.IMSI, row.MSISDN, row.StatusCode, row.PlanID,
		row.Email, row.FirstName, row.LastName, nullBytes(row.AttrsJSON), row.UpdatedAt)
	if err != nil {
		return nil, classify("update", rec.UID, err)
	}
	return rec.Clone(), nil
}

func (s *LegacyStore) Delete(ctx context.Context, uid string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM legacy_subscribers WHERE uid = $1`, uid)
	if err != nil {
		return classify("delete", uid, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("legacy %s: %w", uid, provision.ErrNotFound)
	}
	return nil
}

func (s *LegacyStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return classify("ping", "", err)
	}
	return nil
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// classify maps database failures onto the adapter error taxonomy.
func classify(op, uid string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("legacy %s %s timed out: %w", op, uid, provision.ErrStoreUnavailable)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return fmt.Errorf("legacy %s %s: unique violation on %s: %w", op, uid, pqErr.Constraint, provision.ErrConflict)
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "57":
			// connection failure / operator cancellation
			return fmt.Errorf("legacy %s %s: %s: %w", op, uid, pqErr.Code, provision.ErrStoreUnavailable)
		}
		return fmt.Errorf("legacy %s %s: %w", op, uid, err)
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return fmt.Errorf("legacy %s %s: %v: %w", op, uid, err, provision.ErrStoreUnavailable)
	}
	return fmt.Errorf("legacy %s %s: %w", op, uid, err)
}
