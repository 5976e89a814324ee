// Package store provides billing.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/lodgeline/rent-engine/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	tenants  map[billing.TenantID]billing.Tenant
	leases   map[billing.TenantID]billing.LeaseAgreement
	payments map[billing.TenantID][]billing.PaymentRecord
	sessions map[string]billing.PaymentRecord
}

func NewMemory() *Memory {
	return &Memory{
		tenants:  make(map[billing.TenantID]billing.Tenant),
		leases:   make(map[billing.TenantID]billing.LeaseAgreement),
		payments: make(map[billing.TenantID][]billing.PaymentRecord),
		sessions: make(map[string]billing.PaymentRecord),
	}
}

func (m *Memory) SaveTenant(_ context.Context, t billing.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[t.ID] = t
	return nil
}

func (m *Memory) GetTenant(_ context.Context, id billing.TenantID) (*billing.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, billing.ErrTenantNotFound
	}
	return &t, nil
}

func (m *Memory) ListTenants(_ context.Context) ([]billing.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]billing.Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveLease(_ context.Context, lease billing.LeaseAgreement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leases[lease.TenantID] = lease
	return nil
}

func (m *Memory) LeaseByTenant(_ context.Context, id billing.TenantID) (*billing.LeaseAgreement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lease, ok := m.leases[id]
	if !ok {
		return nil, nil
	}
	return &lease, nil
}

// AppendPayment is append-only and idempotent on the gateway session.
func (m *Memory) AppendPayment(_ context.Context, p billing.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.SessionID != "" {
		if _, exists := m.sessions[p.SessionID]; exists {
			return billing.ErrDuplicateIdempotencyKey
		}
		m.sessions[p.SessionID] = p
	}

	txs := m.payments[p.TenantID]
	// Insert keeping PaidDate order.
	i := sort.Search(len(txs), func(i int) bool {
		return txs[i].PaidDate.After(p.PaidDate)
	})
	txs = append(txs, billing.PaymentRecord{})
	copy(txs[i+1:], txs[i:])
	txs[i] = p
	m.payments[p.TenantID] = txs
	return nil
}

func (m *Memory) PaymentsByTenant(_ context.Context, id billing.TenantID) ([]billing.PaymentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]billing.PaymentRecord, len(m.payments[id]))
	copy(out, m.payments[id])
	return out, nil
}

func (m *Memory) ReceiptBySession(_ context.Context, sessionID string) (*billing.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.sessions[sessionID]
	if !ok {
		return nil, billing.ErrPaymentNotFound
	}

	r := billing.Receipt{Payment: p}
	if t, ok := m.tenants[p.TenantID]; ok {
		r.TenantName = t.Name
		r.PropertyName = t.PropertyName
		r.SpotNumber = t.SpotNumber
	}
	return &r, nil
}
