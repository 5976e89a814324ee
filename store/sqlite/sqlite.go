/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements billing.Store and checkout.LinkStore using SQLite. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  The payments table is append-only:
  - No UPDATE statements on payments
  - No DELETE statements on payments
  - Corrections via new negative-amount records only

KEY TABLES:
  tenants:       Tenant display records (name, property, spot)
  leases:        One lease per tenant, replaced on administrative edits
  payments:      Immutable record of executed payments
  payment_links: Issued hosted-checkout links with the dedup key

IDEMPOTENCY:
  payments.session_id is UNIQUE: a webhook retry that re-submits the
  same gateway session is rejected at the database level. Dedup of link
  creation above this layer is handled by checkout.Issuer.

WAL MODE:
  SQLite is opened with WAL for better concurrency: multiple readers
  don't block and crash recovery is cleaner.

USAGE:
  store, err := sqlite.New("./data/rent.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - billing/store.go: Interface definitions
  - billing/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/lodgeline/rent-engine/billing"
	"github.com/lodgeline/rent-engine/checkout"
)

// Store implements billing.Store and checkout.LinkStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tenants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		property_name TEXT,
		spot_number TEXT,
		created_at TEXT NOT NULL
	);

	-- One lease per tenant; replaced on administrative edits.
	CREATE TABLE IF NOT EXISTS leases (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL UNIQUE,
		lease_start TEXT NOT NULL,
		lease_end TEXT,
		monthly_rent TEXT NOT NULL,
		deposit TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leases_tenant ON leases(tenant_id);

	-- Payments (append-only)
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		late_fee TEXT NOT NULL,
		paid_date TEXT NOT NULL,
		session_id TEXT UNIQUE,
		applies_to_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_tenant_date
		ON payments(tenant_id, paid_date);
	CREATE INDEX IF NOT EXISTS idx_payments_session
		ON payments(session_id) WHERE session_id IS NOT NULL;

	-- Hosted-checkout links
	CREATE TABLE IF NOT EXISTS payment_links (
		id TEXT PRIMARY KEY,
		idem_key TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		period_ref TEXT NOT NULL,
		url TEXT NOT NULL,
		gateway_ref TEXT,
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		redeemed INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_links_key ON payment_links(idem_key);
	CREATE INDEX IF NOT EXISTS idx_links_tenant ON payment_links(tenant_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TENANTS (billing.Store)
// =============================================================================

func (s *Store) SaveTenant(ctx context.Context, t billing.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, email, property_name, spot_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			property_name = excluded.property_name,
			spot_number = excluded.spot_number`,
		string(t.ID), t.Name, t.Email, t.PropertyName, t.SpotNumber,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *Store) GetTenant(ctx context.Context, id billing.TenantID) (*billing.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, property_name, spot_number
		FROM tenants WHERE id = ?`, string(id))

	var t billing.Tenant
	var tid string
	if err := row.Scan(&tid, &t.Name, &t.Email, &t.PropertyName, &t.SpotNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, billing.ErrTenantNotFound
		}
		return nil, err
	}
	t.ID = billing.TenantID(tid)
	return &t, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]billing.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, property_name, spot_number
		FROM tenants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.Tenant
	for rows.Next() {
		var t billing.Tenant
		var tid string
		if err := rows.Scan(&tid, &t.Name, &t.Email, &t.PropertyName, &t.SpotNumber); err != nil {
			return nil, err
		}
		t.ID = billing.TenantID(tid)
		out = append(out, t)
	}
	return out, rows.Err()
}

// =============================================================================
// LEASES (billing.Store)
// =============================================================================

func (s *Store) SaveLease(ctx context.Context, lease billing.LeaseAgreement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var end any
	if !lease.End.IsZero() {
		end = lease.End.Format("2006-01-02")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leases (id, tenant_id, lease_start, lease_end, monthly_rent, deposit, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET
			id = excluded.id,
			lease_start = excluded.lease_start,
			lease_end = excluded.lease_end,
			monthly_rent = excluded.monthly_rent,
			deposit = excluded.deposit,
			updated_at = excluded.updated_at`,
		string(lease.ID), string(lease.TenantID),
		lease.Start.Format("2006-01-02"), end,
		lease.MonthlyRent.String(), lease.Deposit.String(),
		time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *Store) LeaseByTenant(ctx context.Context, id billing.TenantID) (*billing.LeaseAgreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, lease_start, lease_end, monthly_rent, deposit
		FROM leases WHERE tenant_id = ?`, string(id))

	var (
		lid, tid, start, rent, deposit string
		end                            sql.NullString
	)
	if err := row.Scan(&lid, &tid, &start, &end, &rent, &deposit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	lease := billing.LeaseAgreement{
		ID:          billing.LeaseID(lid),
		TenantID:    billing.TenantID(tid),
		MonthlyRent: billing.MustMoney(rent),
		Deposit:     billing.MustMoney(deposit),
	}
	var err error
	if lease.Start, err = time.Parse("2006-01-02", start); err != nil {
		return nil, fmt.Errorf("corrupt lease_start for %s: %w", lid, err)
	}
	if end.Valid && end.String != "" {
		if lease.End, err = time.Parse("2006-01-02", end.String); err != nil {
			return nil, fmt.Errorf("corrupt lease_end for %s: %w", lid, err)
		}
	}
	return &lease, nil
}

// =============================================================================
// PAYMENTS (billing.Store, append-only)
// =============================================================================

func (s *Store) AppendPayment(ctx context.Context, p billing.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	appliesJSON, err := json.Marshal(p.AppliesTo)
	if err != nil {
		return err
	}

	var session any
	if p.SessionID != "" {
		session = p.SessionID
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO payments (id, tenant_id, amount, late_fee, paid_date, session_id, applies_to_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.ID), string(p.TenantID),
		p.Amount.String(), p.LateFee.String(),
		p.PaidDate.Format("2006-01-02"), session, string(appliesJSON),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil && isUniqueViolation(err) {
		return billing.ErrDuplicateIdempotencyKey
	}
	return err
}

func (s *Store) PaymentsByTenant(ctx context.Context, id billing.TenantID) ([]billing.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, amount, late_fee, paid_date, session_id, applies_to_json
		FROM payments WHERE tenant_id = ? ORDER BY paid_date, created_at`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []billing.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ReceiptBySession(ctx context.Context, sessionID string) (*billing.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.tenant_id, p.amount, p.late_fee, p.paid_date, p.session_id, p.applies_to_json,
		       COALESCE(t.name, ''), COALESCE(t.property_name, ''), COALESCE(t.spot_number, '')
		FROM payments p
		LEFT JOIN tenants t ON t.id = p.tenant_id
		WHERE p.session_id = ?`, sessionID)

	var r billing.Receipt
	var err error
	r.Payment, err = scanPaymentFrom(row, &r.TenantName, &r.PropertyName, &r.SpotNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, billing.ErrPaymentNotFound
		}
		return nil, err
	}
	return &r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (billing.PaymentRecord, error) {
	return scanPaymentFrom(row)
}

// scanPaymentFrom scans the payment columns plus any trailing extras.
func scanPaymentFrom(row rowScanner, extras ...any) (billing.PaymentRecord, error) {
	var (
		pid, tid, amount, lateFee, paidDate string
		session                             sql.NullString
		appliesJSON                         string
	)
	dest := []any{&pid, &tid, &amount, &lateFee, &paidDate, &session, &appliesJSON}
	dest = append(dest, extras...)
	if err := row.Scan(dest...); err != nil {
		return billing.PaymentRecord{}, err
	}

	p := billing.PaymentRecord{
		ID:        billing.PaymentID(pid),
		TenantID:  billing.TenantID(tid),
		Amount:    billing.MustMoney(amount),
		LateFee:   billing.MustMoney(lateFee),
		SessionID: session.String,
	}
	var err error
	if p.PaidDate, err = time.Parse("2006-01-02", paidDate); err != nil {
		return billing.PaymentRecord{}, fmt.Errorf("corrupt paid_date for %s: %w", pid, err)
	}
	if err := json.Unmarshal([]byte(appliesJSON), &p.AppliesTo); err != nil {
		return billing.PaymentRecord{}, fmt.Errorf("corrupt applies_to for %s: %w", pid, err)
	}
	return p, nil
}

// =============================================================================
// PAYMENT LINKS (checkout.LinkStore)
// =============================================================================

func (s *Store) SaveLink(ctx context.Context, link checkout.PaymentLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_links (id, idem_key, tenant_id, amount, period_ref, url, gateway_ref, created_at, expires_at, redeemed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		link.ID, link.Key, string(link.TenantID),
		link.Amount.String(), string(link.PeriodRef),
		link.URL, link.GatewayRef,
		link.CreatedAt.UTC().Format(time.RFC3339),
		link.ExpiresAt.UTC().Format(time.RFC3339),
		boolToInt(link.Redeemed))
	return err
}

func (s *Store) ActiveLink(ctx context.Context, key string, now time.Time) (*checkout.PaymentLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, idem_key, tenant_id, amount, period_ref, url, gateway_ref, created_at, expires_at, redeemed
		FROM payment_links
		WHERE idem_key = ? AND redeemed = 0 AND expires_at > ?
		ORDER BY created_at DESC LIMIT 1`,
		key, now.UTC().Format(time.RFC3339))

	var (
		link                           checkout.PaymentLink
		tid, amount, ref, created, exp string
		gatewayRef                     sql.NullString
		redeemed                       int
	)
	err := row.Scan(&link.ID, &link.Key, &tid, &amount, &ref, &link.URL,
		&gatewayRef, &created, &exp, &redeemed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	link.TenantID = billing.TenantID(tid)
	link.Amount = billing.MustMoney(amount)
	link.PeriodRef = billing.PeriodRef(ref)
	link.GatewayRef = gatewayRef.String
	link.Redeemed = redeemed != 0
	if link.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return nil, fmt.Errorf("corrupt created_at for link %s: %w", link.ID, err)
	}
	if link.ExpiresAt, err = time.Parse(time.RFC3339, exp); err != nil {
		return nil, fmt.Errorf("corrupt expires_at for link %s: %w", link.ID, err)
	}
	return &link, nil
}

func (s *Store) MarkRedeemed(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE payment_links SET redeemed = 1 WHERE idem_key = ?`, key)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
