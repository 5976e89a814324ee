/*
issuer.go - Idempotent payment-link issuing

PURPOSE:
  Serializes link creation per idempotency key. A second request for the
  same (tenant, amount, cycle) while a link is active returns the
  existing link rather than creating a new one - including two requests
  racing each other.

MECHANISM:
  One mutex per key. The winner of the race checks the store, calls the
  gateway, persists, and releases; the loser then finds the stored link.
  The gateway call runs under a bounded timeout; an unacknowledged
  request fails with ErrGatewayUnavailable and nothing is persisted.
*/
package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lodgeline/rent-engine/billing"
)

const (
	// DefaultLinkTTL is how long an issued link stays chargeable.
	DefaultLinkTTL = 24 * time.Hour

	// DefaultGatewayTimeout bounds a single gateway acknowledgement.
	DefaultGatewayTimeout = 10 * time.Second
)

// Issuer creates payment links with per-key dedup.
type Issuer struct {
	Gateway Gateway
	Links   LinkStore

	// LinkTTL and GatewayTimeout fall back to the defaults when zero.
	LinkTTL        time.Duration
	GatewayTimeout time.Duration

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	keyLock map[string]*sync.Mutex
}

func NewIssuer(gateway Gateway, links LinkStore) *Issuer {
	return &Issuer{
		Gateway: gateway,
		Links:   links,
		keyLock: make(map[string]*sync.Mutex),
	}
}

// IssueRequest describes the link to create, taken from a resolved
// summary: the chosen total and the current billing cycle.
type IssueRequest struct {
	TenantID    billing.TenantID
	TenantName  string
	Amount      billing.Money
	Cycle       billing.PeriodRef
	Description string
}

// Issue returns the active link for the request's idempotency key,
// creating one through the gateway if none exists.
func (is *Issuer) Issue(ctx context.Context, req IssueRequest) (*PaymentLink, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("payment link amount must be positive, got %s", req.Amount)
	}

	key := IdempotencyKey(req.TenantID, req.Amount, req.Cycle)
	lock := is.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	now := is.now()
	if existing, err := is.Links.ActiveLink(ctx, key, now); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	expiresAt := now.Add(is.ttl())
	url, gatewayRef, err := is.createWithTimeout(ctx, LinkRequest{
		ReferenceID: key,
		TenantID:    req.TenantID,
		TenantName:  req.TenantName,
		Amount:      req.Amount,
		Description: req.Description,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return nil, err
	}

	link := PaymentLink{
		ID:         uuid.NewString(),
		Key:        key,
		TenantID:   req.TenantID,
		Amount:     req.Amount,
		PeriodRef:  req.Cycle,
		URL:        url,
		GatewayRef: gatewayRef,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
	}
	if err := is.Links.SaveLink(ctx, link); err != nil {
		return nil, err
	}
	return &link, nil
}

// Redeem retires the active link for a confirmed payment.
func (is *Issuer) Redeem(ctx context.Context, tenantID billing.TenantID, amount billing.Money, cycle billing.PeriodRef) error {
	return is.Links.MarkRedeemed(ctx, IdempotencyKey(tenantID, amount, cycle))
}

// createWithTimeout runs the gateway call under a bounded deadline even
// when the underlying SDK does not honor contexts.
func (is *Issuer) createWithTimeout(ctx context.Context, req LinkRequest) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, is.timeout())
	defer cancel()

	type result struct {
		url, ref string
		err      error
	}
	done := make(chan result, 1)
	go func() {
		url, ref, err := is.Gateway.CreateLink(ctx, req)
		done <- result{url, ref, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", "", fmt.Errorf("%w: %v", billing.ErrGatewayUnavailable, r.err)
		}
		return r.url, r.ref, nil
	case <-ctx.Done():
		return "", "", fmt.Errorf("%w: %v", billing.ErrGatewayUnavailable, ctx.Err())
	}
}

func (is *Issuer) lockFor(key string) *sync.Mutex {
	is.mu.Lock()
	defer is.mu.Unlock()
	if l, ok := is.keyLock[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	is.keyLock[key] = l
	return l
}

func (is *Issuer) now() time.Time {
	if is.Now != nil {
		return is.Now()
	}
	return time.Now().UTC()
}

func (is *Issuer) ttl() time.Duration {
	if is.LinkTTL > 0 {
		return is.LinkTTL
	}
	return DefaultLinkTTL
}

func (is *Issuer) timeout() time.Duration {
	if is.GatewayTimeout > 0 {
		return is.GatewayTimeout
	}
	return DefaultGatewayTimeout
}
