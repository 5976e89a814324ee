package checkout_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgeline/rent-engine/billing"
	"github.com/lodgeline/rent-engine/checkout"
)

// =============================================================================
// FAKE GATEWAY
// =============================================================================

// fakeGateway counts calls and can be made slow or failing.
type fakeGateway struct {
	calls int64
	delay time.Duration
	err   error
}

func (g *fakeGateway) CreateLink(ctx context.Context, req checkout.LinkRequest) (string, string, error) {
	n := atomic.AddInt64(&g.calls, 1)
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return "", "", ctx.Err()
		}
	}
	if g.err != nil {
		return "", "", g.err
	}
	return "https://pay.example.com/" + req.ReferenceID, "gw-" + string(rune('a'+n-1)), nil
}

func (g *fakeGateway) callCount() int64 { return atomic.LoadInt64(&g.calls) }

func request() checkout.IssueRequest {
	return checkout.IssueRequest{
		TenantID:    "tenant-1",
		TenantName:  "Ada",
		Amount:      billing.Dollars(500),
		Cycle:       "2024-02",
		Description: "Rent for February 2024",
	}
}

// =============================================================================
// IDEMPOTENCY
// =============================================================================

func TestIssue_RepeatedRequestReturnsSameLink(t *testing.T) {
	// GIVEN: A link already issued for (tenant, amount, cycle)
	// WHEN: Issuing the same request again
	// THEN: The stored link is returned and the gateway is not called twice

	gw := &fakeGateway{}
	issuer := checkout.NewIssuer(gw, checkout.NewMemoryLinks())

	first, err := issuer.Issue(context.Background(), request())
	require.NoError(t, err)
	second, err := issuer.Issue(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, first.URL, second.URL)
	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 1, gw.callCount())
}

func TestIssue_DifferentAmountsGetDifferentLinks(t *testing.T) {
	gw := &fakeGateway{}
	issuer := checkout.NewIssuer(gw, checkout.NewMemoryLinks())

	first, err := issuer.Issue(context.Background(), request())
	require.NoError(t, err)

	other := request()
	other.Amount = billing.Dollars(1000)
	second, err := issuer.Issue(context.Background(), other)
	require.NoError(t, err)

	assert.NotEqual(t, first.URL, second.URL)
	assert.EqualValues(t, 2, gw.callCount())
}

func TestIssue_ConcurrentIdenticalRequestsCreateOneLink(t *testing.T) {
	// Two goroutines racing on the same key: the loser must find the
	// winner's stored link instead of creating a second one.

	gw := &fakeGateway{delay: 20 * time.Millisecond}
	issuer := checkout.NewIssuer(gw, checkout.NewMemoryLinks())

	const workers = 8
	urls := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			link, err := issuer.Issue(context.Background(), request())
			if assert.NoError(t, err) {
				urls[i] = link.URL
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, gw.callCount())
	for _, url := range urls[1:] {
		assert.Equal(t, urls[0], url)
	}
}

// =============================================================================
// LINK LIFECYCLE
// =============================================================================

func TestIssue_ExpiredLinkIsReplaced(t *testing.T) {
	gw := &fakeGateway{}
	issuer := checkout.NewIssuer(gw, checkout.NewMemoryLinks())
	issuer.LinkTTL = time.Hour

	base := time.Date(2024, time.February, 10, 12, 0, 0, 0, time.UTC)
	now := base
	issuer.Now = func() time.Time { return now }

	first, err := issuer.Issue(context.Background(), request())
	require.NoError(t, err)

	// Past the TTL the old link is no longer returned
	now = base.Add(2 * time.Hour)
	second, err := issuer.Issue(context.Background(), request())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.EqualValues(t, 2, gw.callCount())
}

func TestIssue_RedeemedLinkIsNotReused(t *testing.T) {
	gw := &fakeGateway{}
	issuer := checkout.NewIssuer(gw, checkout.NewMemoryLinks())

	req := request()
	first, err := issuer.Issue(context.Background(), req)
	require.NoError(t, err)

	require.NoError(t, issuer.Redeem(context.Background(), req.TenantID, req.Amount, req.Cycle))

	second, err := issuer.Issue(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

// =============================================================================
// FAILURE MODES
// =============================================================================

func TestIssue_GatewayTimeoutFailsRetryable(t *testing.T) {
	// GIVEN: A gateway that never acknowledges within the deadline
	// WHEN: Issuing
	// THEN: ErrGatewayUnavailable; nothing is persisted, so a retry works

	gw := &fakeGateway{delay: time.Second}
	links := checkout.NewMemoryLinks()
	issuer := checkout.NewIssuer(gw, links)
	issuer.GatewayTimeout = 10 * time.Millisecond

	_, err := issuer.Issue(context.Background(), request())
	require.Error(t, err)
	assert.ErrorIs(t, err, billing.ErrGatewayUnavailable)
	assert.True(t, billing.IsRetryable(err))

	// The failed attempt left no active link behind
	stored, err := links.ActiveLink(context.Background(), checkout.IdempotencyKey("tenant-1", billing.Dollars(500), "2024-02"), time.Now())
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestIssue_GatewayErrorWrapped(t *testing.T) {
	gw := &fakeGateway{err: errors.New("upstream 502")}
	issuer := checkout.NewIssuer(gw, checkout.NewMemoryLinks())

	_, err := issuer.Issue(context.Background(), request())
	require.Error(t, err)
	assert.ErrorIs(t, err, billing.ErrGatewayUnavailable)
	assert.Contains(t, err.Error(), "upstream 502")
}

func TestIssue_RejectsNonPositiveAmount(t *testing.T) {
	issuer := checkout.NewIssuer(&fakeGateway{}, checkout.NewMemoryLinks())

	req := request()
	req.Amount = billing.ZeroMoney()
	_, err := issuer.Issue(context.Background(), req)
	assert.Error(t, err)
}

func TestIdempotencyKey_NormalizesAmount(t *testing.T) {
	// 500 and 500.00 must map to the same key
	a := checkout.IdempotencyKey("t1", billing.MustMoney("500"), "2024-02")
	b := checkout.IdempotencyKey("t1", billing.MustMoney("500.00"), "2024-02")
	assert.Equal(t, a, b)
	assert.Equal(t, "t1|500.00|2024-02", a)
}
