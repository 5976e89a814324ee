/*
handlers.go - HTTP API handlers for the rent engine

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic. Handlers never
  compute obligations themselves; they ask the billing package.

ENDPOINTS:
  Tenants:
    POST   /api/tenants                          Create tenant
    GET    /api/tenants/{id}                     Get tenant details
    PUT    /api/tenants/{id}/lease               Create or edit lease

  Billing:
    GET    /api/tenants/{id}/rent-summary        Rent state at a date
    GET    /api/tenants/{id}/ledger              Classified periods

  Payments:
    POST   /api/tenants/{id}/payment-links       Issue hosted checkout link
    POST   /api/payments/confirm                 Record settled payment
    GET    /api/payments/receipt/{sessionID}     Receipt projection

EVALUATION DATES:
  Reads accept an as_of query parameter (YYYY-MM-DD). When omitted the
  server clock is used. The same as_of against the same ledger always
  produces the same response.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Tenant, receipt, or active lease not found
  - 409: Conflict (nothing payable, limit reached)
  - 429: Payment-link rate limit
  - 503: Payment gateway unavailable (retryable)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Overdue sweep
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/lodgeline/rent-engine/billing"
	"github.com/lodgeline/rent-engine/checkout"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds the dependencies shared by all endpoints.
type Handler struct {
	Store  billing.Store
	Issuer *checkout.Issuer

	// linkLimiter bounds payment-link creation across all tenants. The
	// gateway bills per created link, so a runaway client retry loop is a
	// cost problem, not just a load problem.
	linkLimiter *rate.Limiter

	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time
}

// NewHandler builds a Handler. linksPerMinute <= 0 disables rate limiting.
func NewHandler(store billing.Store, issuer *checkout.Issuer, linksPerMinute float64) *Handler {
	h := &Handler{
		Store:  store,
		Issuer: issuer,
		Now:    time.Now,
	}
	if linksPerMinute > 0 {
		burst := int(linksPerMinute)
		if burst < 1 {
			burst = 1
		}
		h.linkLimiter = rate.NewLimiter(rate.Limit(linksPerMinute/60.0), burst)
	}
	return h
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// =============================================================================
// TENANT ENDPOINTS
// =============================================================================

// CreateTenant registers a tenant.
// POST /api/tenants
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	tenant := billing.Tenant{
		ID:           billing.TenantID(req.ID),
		Name:         req.Name,
		Email:        req.Email,
		PropertyName: req.PropertyName,
		SpotNumber:   req.SpotNumber,
	}
	if tenant.ID == "" {
		tenant.ID = billing.TenantID(uuid.NewString())
	}

	if err := h.Store.SaveTenant(ctx, tenant); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save tenant", err)
		return
	}

	writeJSON(w, http.StatusCreated, toTenantDTO(tenant))
}

// GetTenant returns a tenant by ID.
// GET /api/tenants/{tenantID}
func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := billing.TenantID(chi.URLParam(r, "tenantID"))

	tenant, err := h.Store.GetTenant(ctx, tenantID)
	if err != nil {
		writeEngineError(w, "Failed to get tenant", err)
		return
	}

	writeJSON(w, http.StatusOK, toTenantDTO(*tenant))
}

// UpsertLease creates or replaces the tenant's lease agreement.
// PUT /api/tenants/{tenantID}/lease
func (h *Handler) UpsertLease(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := billing.TenantID(chi.URLParam(r, "tenantID"))

	if _, err := h.Store.GetTenant(ctx, tenantID); err != nil {
		writeEngineError(w, "Failed to get tenant", err)
		return
	}

	var req UpsertLeaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	lease, err := leaseFromRequest(tenantID, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid lease", err)
		return
	}

	if err := h.Store.SaveLease(ctx, lease); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save lease", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"lease_id":  string(lease.ID),
		"tenant_id": string(lease.TenantID),
	})
}

func leaseFromRequest(tenantID billing.TenantID, req UpsertLeaseRequest) (billing.LeaseAgreement, error) {
	start, err := time.Parse("2006-01-02", req.LeaseStart)
	if err != nil {
		return billing.LeaseAgreement{}, err
	}

	var end time.Time
	if req.LeaseEnd != "" {
		end, err = time.Parse("2006-01-02", req.LeaseEnd)
		if err != nil {
			return billing.LeaseAgreement{}, err
		}
	}

	rent, err := billing.ParseMoney(req.MonthlyRent)
	if err != nil {
		return billing.LeaseAgreement{}, err
	}

	deposit := billing.ZeroMoney()
	if req.Deposit != "" {
		deposit, err = billing.ParseMoney(req.Deposit)
		if err != nil {
			return billing.LeaseAgreement{}, err
		}
	}

	lease := billing.LeaseAgreement{
		ID:          billing.LeaseID(uuid.NewString()),
		TenantID:    tenantID,
		Start:       billing.DateOnly(start),
		End:         end,
		MonthlyRent: rent,
		Deposit:     deposit,
	}
	if err := lease.Validate(start); err != nil {
		return billing.LeaseAgreement{}, err
	}
	return lease, nil
}

// =============================================================================
// RENT SUMMARY AND LEDGER
// =============================================================================

// GetRentSummary returns the tenant's rent state at an evaluation date.
// GET /api/tenants/{tenantID}/rent-summary?as_of=2024-02-10
func (h *Handler) GetRentSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := billing.TenantID(chi.URLParam(r, "tenantID"))

	if _, err := h.Store.GetTenant(ctx, tenantID); err != nil {
		writeEngineError(w, "Failed to get tenant", err)
		return
	}

	asOf, err := h.parseAsOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date, expected YYYY-MM-DD", err)
		return
	}

	summary, err := h.summarize(ctx, tenantID, asOf)
	if err != nil {
		writeEngineError(w, "Failed to compute rent summary", err)
		return
	}

	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// GetLedger returns the obligation periods with their settlement status.
// GET /api/tenants/{tenantID}/ledger?as_of=2024-02-10
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := billing.TenantID(chi.URLParam(r, "tenantID"))

	asOf, err := h.parseAsOf(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date, expected YYYY-MM-DD", err)
		return
	}

	lease, err := h.Store.LeaseByTenant(ctx, tenantID)
	if err != nil {
		writeEngineError(w, "Failed to load lease", err)
		return
	}
	if lease == nil || !lease.ActiveAt(asOf) {
		writeError(w, http.StatusNotFound, "No active lease", billing.ErrNoActiveLease)
		return
	}

	payments, err := h.Store.PaymentsByTenant(ctx, tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load payments", err)
		return
	}

	periods, err := billing.Schedule(*lease, asOf)
	if err != nil {
		writeEngineError(w, "Failed to build schedule", err)
		return
	}
	view := billing.Aggregate(periods, payments, asOf)
	h.logInconsistencies(tenantID, view.Inconsistencies)

	dtos := make([]PeriodDTO, 0, len(view.Periods))
	for _, p := range view.Periods {
		dtos = append(dtos, toPeriodDTO(p))
	}
	writeJSON(w, http.StatusOK, LedgerDTO{
		TenantID:    string(tenantID),
		EvaluatedAt: asOf.Format("2006-01-02"),
		Periods:     dtos,
	})
}

func (h *Handler) summarize(ctx context.Context, tenantID billing.TenantID, asOf time.Time) (billing.RentSummary, error) {
	lease, err := h.Store.LeaseByTenant(ctx, tenantID)
	if err != nil {
		return billing.RentSummary{}, err
	}

	payments, err := h.Store.PaymentsByTenant(ctx, tenantID)
	if err != nil {
		return billing.RentSummary{}, err
	}

	summary, err := billing.Summarize(lease, payments, asOf)
	if err != nil {
		return billing.RentSummary{}, err
	}
	summary.TenantID = tenantID
	h.logInconsistencies(tenantID, summary.Inconsistencies)
	return summary, nil
}

func (h *Handler) logInconsistencies(tenantID billing.TenantID, incs []billing.LedgerInconsistency) {
	for i := range incs {
		log.Printf("ledger inconsistency for tenant %s: %v", tenantID, &incs[i])
	}
}

// =============================================================================
// PAYMENT LINKS
// =============================================================================

// CreatePaymentLink issues a hosted checkout link for one of the tenant's
// payment options. Repeated identical requests return the same link while
// it is still active.
// POST /api/tenants/{tenantID}/payment-links
func (h *Handler) CreatePaymentLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := billing.TenantID(chi.URLParam(r, "tenantID"))

	if h.linkLimiter != nil && !h.linkLimiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "Too many payment link requests, retry later", nil)
		return
	}

	var req CreatePaymentLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	asOf := billing.DateOnly(h.now())
	if req.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", req.AsOf)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of date, expected YYYY-MM-DD", err)
			return
		}
		asOf = parsed
	}

	tenant, err := h.Store.GetTenant(ctx, tenantID)
	if err != nil {
		writeEngineError(w, "Failed to get tenant", err)
		return
	}

	summary, err := h.summarize(ctx, tenantID, asOf)
	if err != nil {
		writeEngineError(w, "Failed to compute rent summary", err)
		return
	}
	if !summary.HasActiveLease {
		writeError(w, http.StatusConflict, "No active lease, nothing to pay", billing.ErrNoActiveLease)
		return
	}
	if summary.PaymentAction == billing.ActionPaymentLimitReached {
		writeError(w, http.StatusConflict, summary.WarningMessage, nil)
		return
	}

	option, err := selectOption(summary, req.OptionType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown payment option", err)
		return
	}

	link, err := h.Issuer.Issue(ctx, checkout.IssueRequest{
		TenantID:    tenantID,
		TenantName:  tenant.Name,
		Amount:      option.Amount,
		Cycle:       summary.CurrentPeriodRef,
		Description: option.Description,
	})
	if err != nil {
		writeEngineError(w, "Failed to create payment link", err)
		return
	}

	writeJSON(w, http.StatusCreated, toLinkDTO(link))
}

// selectOption picks the payment option matching the requested type, or
// the first offered option when no type is given.
func selectOption(summary billing.RentSummary, optionType string) (billing.PaymentOption, error) {
	if len(summary.PaymentOptions) == 0 {
		return billing.PaymentOption{}, errors.New("no payment options available")
	}
	if optionType == "" {
		return summary.PaymentOptions[0], nil
	}
	for _, opt := range summary.PaymentOptions {
		if string(opt.Type) == optionType {
			return opt, nil
		}
	}
	return billing.PaymentOption{}, errors.New("option type not offered: " + optionType)
}

// =============================================================================
// PAYMENT CONFIRMATION AND RECEIPTS
// =============================================================================

// ConfirmPayment records a settled payment. The session ID is the
// idempotency key, so gateway webhook retries are safe.
// POST /api/payments/confirm
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ConfirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.TenantID == "" || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id and session_id are required", nil)
		return
	}

	payment, err := paymentFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payment", err)
		return
	}

	if err := h.Store.AppendPayment(ctx, payment); err != nil {
		if errors.Is(err, billing.ErrDuplicateIdempotencyKey) {
			// Webhook retry for a payment we already recorded.
			writeJSON(w, http.StatusOK, map[string]any{
				"session_id": payment.SessionID,
				"status":     "already_recorded",
			})
			return
		}
		writeEngineError(w, "Failed to record payment", err)
		return
	}

	// Retire the payment link so the next summary can mint a fresh one.
	// The link was keyed on the billing cycle it was minted for, which is
	// not the calendar month of the paid date when the gateway settles
	// across a month boundary.
	if h.Issuer != nil {
		for _, cycle := range redeemCycles(req, payment) {
			if err := h.Issuer.Redeem(ctx, payment.TenantID, payment.Amount, cycle); err != nil {
				log.Printf("redeem payment link for session %s: %v", payment.SessionID, err)
			}
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"payment_id": string(payment.ID),
		"session_id": payment.SessionID,
		"status":     "recorded",
	})
}

func paymentFromRequest(req ConfirmPaymentRequest) (billing.PaymentRecord, error) {
	amount, err := billing.ParseMoney(req.Amount)
	if err != nil {
		return billing.PaymentRecord{}, err
	}

	lateFee := billing.ZeroMoney()
	if req.LateFee != "" {
		lateFee, err = billing.ParseMoney(req.LateFee)
		if err != nil {
			return billing.PaymentRecord{}, err
		}
	}

	paidDate, err := time.Parse("2006-01-02", req.PaidDate)
	if err != nil {
		return billing.PaymentRecord{}, err
	}

	appliesTo := make([]billing.PeriodRef, 0, len(req.AppliesTo))
	for _, ref := range req.AppliesTo {
		appliesTo = append(appliesTo, billing.PeriodRef(ref))
	}

	return billing.PaymentRecord{
		ID:        billing.PaymentID(uuid.NewString()),
		TenantID:  billing.TenantID(req.TenantID),
		Amount:    amount,
		LateFee:   lateFee,
		PaidDate:  billing.DateOnly(paidDate),
		SessionID: req.SessionID,
		AppliesTo: appliesTo,
	}, nil
}

// redeemCycles lists the billing cycles whose link may have produced this
// payment. Confirmations that echo the link's billing_cycle name it
// exactly; otherwise the applies-to periods cover every cycle a link
// could have been keyed on. Redeeming a cycle with no link is a no-op.
func redeemCycles(req ConfirmPaymentRequest, payment billing.PaymentRecord) []billing.PeriodRef {
	if req.BillingCycle != "" {
		return []billing.PeriodRef{billing.PeriodRef(req.BillingCycle)}
	}
	if len(payment.AppliesTo) > 0 {
		return payment.AppliesTo
	}
	return []billing.PeriodRef{billing.RefFor(payment.PaidDate)}
}

// GetReceipt returns the receipt projection for a settled session.
// GET /api/payments/receipt/{sessionID}
func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "sessionID")

	receipt, err := h.Store.ReceiptBySession(ctx, sessionID)
	if err != nil {
		writeEngineError(w, "Failed to get receipt", err)
		return
	}

	writeJSON(w, http.StatusOK, toReceiptDTO(receipt))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) parseAsOf(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return billing.DateOnly(h.now()), nil
	}
	return time.Parse("2006-01-02", raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case billing.IsNotFound(err), errors.Is(err, billing.ErrNoActiveLease):
		writeError(w, http.StatusNotFound, message, err)
	case billing.IsRetryable(err):
		writeError(w, http.StatusServiceUnavailable, message, err)
	case billing.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
