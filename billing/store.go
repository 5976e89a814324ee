/*
store.go - Persistence interface for leases and payment records

PURPOSE:
  Defines the interface between the billing engine and the database.
  The engine itself stores nothing; callers load a lease and its payment
  ledger through this interface and hand them to Summarize.

APPEND-ONLY CONTRACT:
  Payment records are append-only: created only by a successful gateway
  confirmation, never updated or deleted. Corrections are new
  negative-amount records. AppendPayment is idempotent on the gateway
  session identifier so webhook retries cannot double-record.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - billing/store: in-memory store for tests and development
*/
package billing

import "context"

// Tenant carries the display fields receipts and summaries are joined
// with. Tenant CRUD beyond this is out of engine scope.
type Tenant struct {
	ID           TenantID
	Name         string
	Email        string
	PropertyName string
	SpotNumber   string
}

// Receipt is the read-only projection returned for a completed payment.
type Receipt struct {
	Payment      PaymentRecord
	TenantName   string
	PropertyName string
	SpotNumber   string
}

// Store handles persistence of tenants, leases and payment records.
type Store interface {
	// SaveTenant inserts or updates a tenant record.
	SaveTenant(ctx context.Context, t Tenant) error

	// GetTenant returns a tenant, or ErrTenantNotFound.
	GetTenant(ctx context.Context, id TenantID) (*Tenant, error)

	// ListTenants returns all tenants. Used by the overdue sweep.
	ListTenants(ctx context.Context) ([]Tenant, error)

	// SaveLease inserts or replaces the tenant's lease. Administrative
	// lease edits go through here; leases are never deleted while the
	// tenant is active.
	SaveLease(ctx context.Context, lease LeaseAgreement) error

	// LeaseByTenant returns the tenant's lease, or nil if none exists.
	LeaseByTenant(ctx context.Context, id TenantID) (*LeaseAgreement, error)

	// AppendPayment records an executed payment. Returns
	// ErrDuplicateIdempotencyKey if the session was already recorded.
	AppendPayment(ctx context.Context, p PaymentRecord) error

	// PaymentsByTenant returns all payment records, oldest first.
	PaymentsByTenant(ctx context.Context, id TenantID) ([]PaymentRecord, error)

	// ReceiptBySession returns the receipt projection for a completed
	// payment, or ErrPaymentNotFound.
	ReceiptBySession(ctx context.Context, sessionID string) (*Receipt, error)
}
