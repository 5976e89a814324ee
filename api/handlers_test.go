/*
handlers_test.go - HTTP-level tests for the rent engine API

Tests exercise the full request path (router, handlers, engine) against
the in-memory store and a fake gateway. Evaluation dates are passed via
as_of so nothing here depends on the wall clock.
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgeline/rent-engine/api"
	"github.com/lodgeline/rent-engine/billing"
	"github.com/lodgeline/rent-engine/billing/store"
	"github.com/lodgeline/rent-engine/checkout"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fakeGateway struct{ calls int }

func (g *fakeGateway) CreateLink(_ context.Context, req checkout.LinkRequest) (string, string, error) {
	g.calls++
	return "https://pay.example.com/" + req.ReferenceID, fmt.Sprintf("gw-%d", g.calls), nil
}

type testEnv struct {
	store   *store.Memory
	gateway *fakeGateway
	server  *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mem := store.NewMemory()
	gw := &fakeGateway{}
	issuer := checkout.NewIssuer(gw, checkout.NewMemoryLinks())

	handler := api.NewHandler(mem, issuer, 0)
	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)

	return &testEnv{store: mem, gateway: gw, server: srv}
}

func (e *testEnv) seedTenant(t *testing.T, id string, leaseStart time.Time, rent int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.store.SaveTenant(ctx, billing.Tenant{
		ID:           billing.TenantID(id),
		Name:         "Test Tenant",
		PropertyName: "Lakeside Court",
		SpotNumber:   "12",
	}))
	require.NoError(t, e.store.SaveLease(ctx, billing.LeaseAgreement{
		ID:          billing.LeaseID(id + "-lease"),
		TenantID:    billing.TenantID(id),
		Start:       leaseStart,
		MonthlyRent: billing.Dollars(rent),
		Deposit:     billing.ZeroMoney(),
	}))
}

func (e *testEnv) seedPayment(t *testing.T, tenantID, session string, amount int64, paid time.Time, refs ...string) {
	t.Helper()
	appliesTo := make([]billing.PeriodRef, 0, len(refs))
	for _, ref := range refs {
		appliesTo = append(appliesTo, billing.PeriodRef(ref))
	}
	require.NoError(t, e.store.AppendPayment(context.Background(), billing.PaymentRecord{
		ID:        billing.PaymentID("pay-" + session),
		TenantID:  billing.TenantID(tenantID),
		Amount:    billing.Dollars(amount),
		LateFee:   billing.ZeroMoney(),
		PaidDate:  paid,
		SessionID: session,
		AppliesTo: appliesTo,
	}))
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func (e *testEnv) post(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// =============================================================================
// RENT SUMMARY
// =============================================================================

func TestGetRentSummary_Overdue(t *testing.T) {
	// December is settled, January is not; evaluated February 10.

	env := newTestEnv(t)
	env.seedTenant(t, "t1", billing.Date(2023, time.December, 1), 500)
	env.seedPayment(t, "t1", "sess-dec", 500, billing.Date(2023, time.December, 1), "2023-12")

	resp, body := env.get(t, "/api/tenants/t1/rent-summary?as_of=2024-02-10")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "CURRENT_MONTH_OVERDUE", body["payment_action"])
	assert.Equal(t, float64(1), body["overdue_count"])
	assert.Equal(t, "500.00", body["total_overdue_amount"])
	assert.Equal(t, "1000.00", body["total_due"])
	assert.Equal(t, true, body["can_pay_current_and_overdue"])
	assert.Equal(t, "2024-02", body["billing_cycle"])

	options, ok := body["payment_options"].([]any)
	require.True(t, ok)
	assert.Len(t, options, 3)
}

func TestGetRentSummary_FirstTimeProrated(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, "t1", billing.Date(2024, time.March, 15), 900)

	resp, body := env.get(t, "/api/tenants/t1/rent-summary?as_of=2024-03-20")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "FIRST_TIME_PAYMENT", body["payment_action"])
	assert.Equal(t, true, body["is_pro_rated"])
	assert.Equal(t, float64(17), body["pro_rated_days"])
	assert.Equal(t, "493.55", body["pro_rated_rent_amount"])
	assert.Equal(t, "493.55", body["total_due"])
}

func TestGetRentSummary_NoLease(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.SaveTenant(context.Background(), billing.Tenant{ID: "t1", Name: "No Lease"}))

	resp, body := env.get(t, "/api/tenants/t1/rent-summary?as_of=2024-02-10")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["has_active_lease"])
	assert.Equal(t, "0.00", body["total_due"])
}

func TestGetRentSummary_UnknownTenant(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.get(t, "/api/tenants/ghost/rent-summary?as_of=2024-02-10")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetRentSummary_BadDate(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, "t1", billing.Date(2024, time.January, 1), 500)

	resp, _ := env.get(t, "/api/tenants/t1/rent-summary?as_of=tomorrow")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// PAYMENT LINKS
// =============================================================================

func TestCreatePaymentLink_IdempotentAcrossRetries(t *testing.T) {
	// GIVEN: An overdue tenant
	// WHEN: Requesting a COMBINED link twice
	// THEN: Both responses carry the same URL and the gateway was called once

	env := newTestEnv(t)
	env.seedTenant(t, "t1", billing.Date(2023, time.December, 1), 500)
	env.seedPayment(t, "t1", "sess-dec", 500, billing.Date(2023, time.December, 1), "2023-12")

	req := map[string]any{"option_type": "COMBINED", "as_of": "2024-02-10"}

	resp, first := env.post(t, "/api/tenants/t1/payment-links", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "1000.00", first["amount"])
	assert.Equal(t, "2024-02", first["billing_cycle"])

	resp, second := env.post(t, "/api/tenants/t1/payment-links", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, first["url"], second["url"])
	assert.Equal(t, 1, env.gateway.calls)
}

func TestCreatePaymentLink_DefaultsToFirstOption(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, "t1", billing.Date(2024, time.March, 15), 900)

	resp, body := env.post(t, "/api/tenants/t1/payment-links", map[string]any{"as_of": "2024-03-20"})

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "493.55", body["amount"])
}

func TestCreatePaymentLink_RejectedWhenLimitReached(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, "t1", billing.Date(2024, time.January, 1), 500)

	for i, ref := range []string{"2024-01", "2024-02", "2024-03"} {
		env.seedPayment(t, "t1", fmt.Sprintf("sess-%d", i), 500, billing.Date(2024, time.February, 1+i), ref)
	}

	resp, _ := env.post(t, "/api/tenants/t1/payment-links", map[string]any{"as_of": "2024-02-10"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, 0, env.gateway.calls)
}

func TestCreatePaymentLink_UnknownOptionType(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, "t1", billing.Date(2024, time.January, 1), 500)

	resp, _ := env.post(t, "/api/tenants/t1/payment-links",
		map[string]any{"option_type": "LOTTERY", "as_of": "2024-02-10"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// PAYMENT CONFIRMATION AND RECEIPTS
// =============================================================================

func TestConfirmPayment_RecordsAndSettles(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, "t1", billing.Date(2024, time.January, 1), 500)

	resp, body := env.post(t, "/api/payments/confirm", map[string]any{
		"tenant_id":          "t1",
		"session_id":         "sess-abc",
		"amount":             "500.00",
		"paid_date":          "2024-01-03",
		"applies_to_periods": []string{"2024-01"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "recorded", body["status"])

	// The summary reflects the settlement
	_, summary := env.get(t, "/api/tenants/t1/rent-summary?as_of=2024-01-10")
	assert.Equal(t, "CAN_PAY_NEXT_MONTH", summary["payment_action"])
}

func TestConfirmPayment_DuplicateSessionIsSafe(t *testing.T) {
	// Webhook retries replay the same session ID; the second call must
	// not double-record the payment.

	env := newTestEnv(t)
	env.seedTenant(t, "t1", billing.Date(2024, time.January, 1), 500)

	payload := map[string]any{
		"tenant_id":          "t1",
		"session_id":         "sess-abc",
		"amount":             "500.00",
		"paid_date":          "2024-01-03",
		"applies_to_periods": []string{"2024-01"},
	}

	resp, _ := env.post(t, "/api/payments/confirm", payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := env.post(t, "/api/payments/confirm", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "already_recorded", body["status"])

	payments, err := env.store.PaymentsByTenant(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestConfirmPayment_RetiresLinkAcrossMonthBoundary(t *testing.T) {
	// GIVEN: A link minted February 28 for the February cycle
	// WHEN: The gateway settles it on March 1
	// THEN: The link is retired; an identical later request mints a fresh
	//       link instead of returning one whose obligation is settled

	env := newTestEnv(t)
	env.seedTenant(t, "t1", billing.Date(2023, time.December, 1), 500)
	env.seedPayment(t, "t1", "sess-dec", 500, billing.Date(2023, time.December, 1), "2023-12")
	env.seedPayment(t, "t1", "sess-jan", 500, billing.Date(2024, time.January, 1), "2024-01")

	resp, _ := env.post(t, "/api/tenants/t1/payment-links", map[string]any{"as_of": "2024-02-28"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, 1, env.gateway.calls)

	resp, _ = env.post(t, "/api/payments/confirm", map[string]any{
		"tenant_id":          "t1",
		"session_id":         "sess-feb",
		"amount":             "500.00",
		"paid_date":          "2024-03-01",
		"billing_cycle":      "2024-02",
		"applies_to_periods": []string{"2024-02"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = env.post(t, "/api/tenants/t1/payment-links", map[string]any{"as_of": "2024-02-28"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 2, env.gateway.calls, "a settled link must not be handed out again")
}

func TestGetReceipt(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, "t1", billing.Date(2024, time.January, 1), 500)

	env.post(t, "/api/payments/confirm", map[string]any{
		"tenant_id":          "t1",
		"session_id":         "sess-abc",
		"amount":             "500.00",
		"paid_date":          "2024-01-03",
		"applies_to_periods": []string{"2024-01"},
	})

	resp, body := env.get(t, "/api/payments/receipt/sess-abc")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "sess-abc", body["session_id"])
	assert.Equal(t, "500.00", body["amount"])
	assert.Equal(t, "Test Tenant", body["tenant_name"])
	assert.Equal(t, "Lakeside Court", body["property_name"])

	resp, _ = env.get(t, "/api/payments/receipt/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// TENANT AND LEASE MANAGEMENT
// =============================================================================

func TestCreateTenantAndLease(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.post(t, "/api/tenants", map[string]any{
		"id":   "t9",
		"name": "New Tenant",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "t9", body["id"])

	leaseReq, err := json.Marshal(map[string]any{
		"lease_start":  "2024-03-15",
		"monthly_rent": "900",
		"deposit":      "300",
	})
	require.NoError(t, err)

	httpReq, err := http.NewRequest(http.MethodPut, env.server.URL+"/api/tenants/t9/lease", bytes.NewReader(leaseReq))
	require.NoError(t, err)
	leaseResp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, leaseResp.StatusCode)
	leaseResp.Body.Close()

	_, summary := env.get(t, "/api/tenants/t9/rent-summary?as_of=2024-03-20")
	assert.Equal(t, "FIRST_TIME_PAYMENT", summary["payment_action"])
	assert.Equal(t, "793.55", summary["total_due"])
}

func TestGetLedger(t *testing.T) {
	env := newTestEnv(t)
	env.seedTenant(t, "t1", billing.Date(2024, time.January, 1), 500)

	resp, body := env.get(t, "/api/tenants/t1/ledger?as_of=2024-02-10")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	periods, ok := body["periods"].([]any)
	require.True(t, ok)
	require.Len(t, periods, 2)

	first := periods[0].(map[string]any)
	assert.Equal(t, "2024-01", first["ref"])
	assert.Equal(t, "OVERDUE", first["status"])
}
