/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Monetary amounts are serialized as fixed two-decimal strings. Clients
  must not do float math on them; they are display and charge values.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/lodgeline/rent-engine/billing"
	"github.com/lodgeline/rent-engine/checkout"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// TenantDTO represents a tenant in API responses.
type TenantDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	PropertyName string `json:"property_name,omitempty"`
	SpotNumber   string `json:"spot_number,omitempty"`
}

// CreateTenantRequest is the request to create a tenant.
type CreateTenantRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PropertyName string `json:"property_name"`
	SpotNumber   string `json:"spot_number"`
}

// UpsertLeaseRequest creates or administratively edits a lease.
type UpsertLeaseRequest struct {
	LeaseStart  string `json:"lease_start"`          // YYYY-MM-DD
	LeaseEnd    string `json:"lease_end,omitempty"`  // empty = open-ended
	MonthlyRent string `json:"monthly_rent"`         // decimal string
	Deposit     string `json:"deposit"`              // decimal string
}

// RentSummaryDTO is the engine's billing snapshot for a tenant.
type RentSummaryDTO struct {
	TenantID      string `json:"tenant_id"`
	EvaluatedAt   string `json:"evaluated_at"`
	PaymentAction string `json:"payment_action"`

	TotalDue           string `json:"total_due"`
	CurrentMonthAmount string `json:"current_month_amount"`
	RentAmount         string `json:"rent_amount"`
	DepositAmount      string `json:"deposit_amount"`

	IsProRated         bool   `json:"is_pro_rated"`
	ProRatedDays       int    `json:"pro_rated_days"`
	ProRatedRentAmount string `json:"pro_rated_rent_amount"`

	HasOverduePayments     bool               `json:"has_overdue_payments"`
	OverdueCount           int                `json:"overdue_count"`
	TotalOverdueAmount     string             `json:"total_overdue_amount"`
	OverduePaymentsDetails []OverdueDetailDTO `json:"overdue_payments_details"`

	PaymentOptions          []PaymentOptionDTO `json:"payment_options"`
	CanPayCurrentAndOverdue bool               `json:"can_pay_current_and_overdue"`
	CanPayNextMonth         bool               `json:"can_pay_next_month"`

	IsLeaseExpiringSoon bool   `json:"is_lease_expiring_soon"`
	HasActiveLease      bool   `json:"has_active_lease"`
	WarningMessage      string `json:"warning_message,omitempty"`

	BillingCycle string `json:"billing_cycle"`
}

// OverdueDetailDTO describes one overdue period.
type OverdueDetailDTO struct {
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
	DaysOverdue int    `json:"days_overdue"`
	Amount      string `json:"amount"`
}

// PaymentOptionDTO is one selectable payment choice.
type PaymentOptionDTO struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
	Amount      string `json:"amount"`
}

// LedgerDTO exposes the classified periods (admin view).
type LedgerDTO struct {
	TenantID    string      `json:"tenant_id"`
	EvaluatedAt string      `json:"evaluated_at"`
	Periods     []PeriodDTO `json:"periods"`
}

// PeriodDTO is one classified obligation period.
type PeriodDTO struct {
	Ref       string `json:"ref"`
	Start     string `json:"start"`
	End       string `json:"end"`
	DueDate   string `json:"due_date"`
	AmountDue string `json:"amount_due"`
	Prorated  bool   `json:"prorated"`
	Status    string `json:"status"`
}

// CreatePaymentLinkRequest selects the option set total to charge.
type CreatePaymentLinkRequest struct {
	// OptionType selects one of the offered options; empty means the
	// first option in the summary.
	OptionType string `json:"option_type,omitempty"`

	// AsOf overrides the evaluation date (YYYY-MM-DD). Defaults to today.
	AsOf string `json:"as_of,omitempty"`
}

// PaymentLinkDTO is the issued hosted-checkout link.
type PaymentLinkDTO struct {
	URL          string `json:"url"`
	Amount       string `json:"amount"`
	BillingCycle string `json:"billing_cycle"`
	ExpiresAt    string `json:"expires_at"`
}

// ConfirmPaymentRequest records a gateway-confirmed payment.
type ConfirmPaymentRequest struct {
	TenantID  string `json:"tenant_id"`
	SessionID string `json:"session_id"`
	Amount    string `json:"amount"`
	LateFee   string `json:"late_fee,omitempty"`
	PaidDate  string `json:"paid_date"` // YYYY-MM-DD

	// BillingCycle echoes the billing_cycle of the link being settled,
	// so the link can be retired even when the payment lands in a
	// different calendar month than the cycle it was minted for.
	BillingCycle string `json:"billing_cycle,omitempty"`

	AppliesTo []string `json:"applies_to_periods"`
}

// ReceiptDTO is the read-only projection for a completed payment.
type ReceiptDTO struct {
	PaymentID    string   `json:"payment_id"`
	SessionID    string   `json:"session_id"`
	TenantID     string   `json:"tenant_id"`
	TenantName   string   `json:"tenant_name"`
	PropertyName string   `json:"property_name"`
	SpotNumber   string   `json:"spot_number"`
	Amount       string   `json:"amount"`
	LateFee      string   `json:"late_fee"`
	PaidDate     string   `json:"paid_date"`
	AppliesTo    []string `json:"applies_to_periods"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toTenantDTO(t billing.Tenant) TenantDTO {
	return TenantDTO{
		ID:           string(t.ID),
		Name:         t.Name,
		Email:        t.Email,
		PropertyName: t.PropertyName,
		SpotNumber:   t.SpotNumber,
	}
}

func toSummaryDTO(s billing.RentSummary) RentSummaryDTO {
	dto := RentSummaryDTO{
		TenantID:      string(s.TenantID),
		EvaluatedAt:   s.EvaluatedAt.Format("2006-01-02"),
		PaymentAction: string(s.PaymentAction),

		TotalDue:           s.TotalDue.StringFixed(2),
		CurrentMonthAmount: s.CurrentMonthAmount.StringFixed(2),
		RentAmount:         s.RentAmount.StringFixed(2),
		DepositAmount:      s.DepositAmount.StringFixed(2),

		IsProRated:         s.IsProRated,
		ProRatedDays:       s.ProRatedDays,
		ProRatedRentAmount: s.ProRatedRentAmount.StringFixed(2),

		HasOverduePayments:     s.HasOverduePayments,
		OverdueCount:           s.OverdueCount,
		TotalOverdueAmount:     s.TotalOverdueAmount.StringFixed(2),
		OverduePaymentsDetails: make([]OverdueDetailDTO, 0, len(s.OverduePaymentsDetails)),

		PaymentOptions:          make([]PaymentOptionDTO, 0, len(s.PaymentOptions)),
		CanPayCurrentAndOverdue: s.CanPayCurrentAndOverdue,
		CanPayNextMonth:         s.CanPayNextMonth,

		IsLeaseExpiringSoon: s.IsLeaseExpiringSoon,
		HasActiveLease:      s.HasActiveLease,
		WarningMessage:      s.WarningMessage,

		BillingCycle: string(s.CurrentPeriodRef),
	}

	for _, d := range s.OverduePaymentsDetails {
		dto.OverduePaymentsDetails = append(dto.OverduePaymentsDetails, OverdueDetailDTO{
			Description: d.Description,
			DueDate:     d.DueDate.Format("2006-01-02"),
			DaysOverdue: d.DaysOverdue,
			Amount:      d.Amount.StringFixed(2),
		})
	}
	for _, o := range s.PaymentOptions {
		dto.PaymentOptions = append(dto.PaymentOptions, PaymentOptionDTO{
			Type:        string(o.Type),
			Description: o.Description,
			DueDate:     o.DueDate.Format("2006-01-02"),
			Amount:      o.Amount.StringFixed(2),
		})
	}
	return dto
}

func toPeriodDTO(p billing.ObligationPeriod) PeriodDTO {
	return PeriodDTO{
		Ref:       string(p.Ref),
		Start:     p.Start.Format("2006-01-02"),
		End:       p.End.Format("2006-01-02"),
		DueDate:   p.DueDate.Format("2006-01-02"),
		AmountDue: p.AmountDue.StringFixed(2),
		Prorated:  p.Prorated,
		Status:    string(p.Status),
	}
}

func toLinkDTO(link *checkout.PaymentLink) PaymentLinkDTO {
	return PaymentLinkDTO{
		URL:          link.URL,
		Amount:       link.Amount.StringFixed(2),
		BillingCycle: string(link.PeriodRef),
		ExpiresAt:    link.ExpiresAt.Format(time.RFC3339),
	}
}

func toReceiptDTO(r *billing.Receipt) ReceiptDTO {
	applies := make([]string, 0, len(r.Payment.AppliesTo))
	for _, ref := range r.Payment.AppliesTo {
		applies = append(applies, string(ref))
	}
	return ReceiptDTO{
		PaymentID:    string(r.Payment.ID),
		SessionID:    r.Payment.SessionID,
		TenantID:     string(r.Payment.TenantID),
		TenantName:   r.TenantName,
		PropertyName: r.PropertyName,
		SpotNumber:   r.SpotNumber,
		Amount:       r.Payment.Amount.StringFixed(2),
		LateFee:      r.Payment.LateFee.StringFixed(2),
		PaidDate:     r.Payment.PaidDate.Format("2006-01-02"),
		AppliesTo:    applies,
	}
}
