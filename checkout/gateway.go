/*
Package checkout brokers hosted-checkout payment links.

PURPOSE:
  The billing engine decides what may be paid; this package turns a
  chosen total into a redirect URL from the external payment gateway.
  It is a thin pass-through except for one hard contract:

  AT MOST ONE ACTIVE LINK per (tenant, amount, billing cycle). Two
  concurrent requests with the same pending amount must resolve to the
  same link, never two chargeable links for one obligation.

TIMEOUT:
  A link request the gateway does not acknowledge within the configured
  timeout is treated as failed and surfaced as ErrGatewayUnavailable.
  No automatic retry; the caller decides.

SEE ALSO:
  - issuer.go: The idempotent issuing logic
  - razorpay.go: Hosted-checkout adapter
*/
package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lodgeline/rent-engine/billing"
)

// =============================================================================
// PAYMENT LINK
// =============================================================================

// PaymentLink is a hosted-checkout URL a tenant can be redirected to.
type PaymentLink struct {
	ID         string
	Key        string // idempotency key: tenant|amount|cycle
	TenantID   billing.TenantID
	Amount     billing.Money
	PeriodRef  billing.PeriodRef
	URL        string
	GatewayRef string // gateway-side identifier
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Redeemed   bool
}

// Active reports whether the link is still chargeable.
func (l PaymentLink) Active(now time.Time) bool {
	return !l.Redeemed && now.Before(l.ExpiresAt)
}

// IdempotencyKey builds the dedup key for a link request.
func IdempotencyKey(tenantID billing.TenantID, amount billing.Money, cycle billing.PeriodRef) string {
	return fmt.Sprintf("%s|%s|%s", tenantID, amount.StringFixed(2), cycle)
}

// =============================================================================
// GATEWAY - External collaborator boundary
// =============================================================================

// LinkRequest is what the gateway needs to create a hosted checkout.
type LinkRequest struct {
	ReferenceID string
	TenantID    billing.TenantID
	TenantName  string
	Amount      billing.Money
	Description string
	ExpiresAt   time.Time
}

// Gateway creates hosted-checkout links. Implementations wrap a real
// payment provider; tests use a fake.
type Gateway interface {
	// CreateLink requests a checkout URL. Returns the URL and the
	// gateway-side link identifier.
	CreateLink(ctx context.Context, req LinkRequest) (url, gatewayRef string, err error)
}

// =============================================================================
// LINK STORE
// =============================================================================

// LinkStore persists issued links for the dedup window.
type LinkStore interface {
	SaveLink(ctx context.Context, link PaymentLink) error

	// ActiveLink returns the unexpired, unredeemed link for the key,
	// or nil if none exists.
	ActiveLink(ctx context.Context, key string, now time.Time) (*PaymentLink, error)

	// MarkRedeemed retires a link once its payment is confirmed.
	MarkRedeemed(ctx context.Context, key string) error
}

// MemoryLinks is an in-memory LinkStore for tests and development.
type MemoryLinks struct {
	mu    sync.RWMutex
	links map[string]PaymentLink
}

func NewMemoryLinks() *MemoryLinks {
	return &MemoryLinks{links: make(map[string]PaymentLink)}
}

func (m *MemoryLinks) SaveLink(_ context.Context, link PaymentLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[link.Key] = link
	return nil
}

func (m *MemoryLinks) ActiveLink(_ context.Context, key string, now time.Time) (*PaymentLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	link, ok := m.links[key]
	if !ok || !link.Active(now) {
		return nil, nil
	}
	return &link, nil
}

func (m *MemoryLinks) MarkRedeemed(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if link, ok := m.links[key]; ok {
		link.Redeemed = true
		m.links[key] = link
	}
	return nil
}
