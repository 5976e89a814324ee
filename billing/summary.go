/*
summary.go - RentSummary assembly

PURPOSE:
  Composes the calendar, ledger aggregation, action classification and
  option building into the single RentSummary snapshot returned to
  callers. The summary is a pure function of (lease, payments,
  evaluationDate): computed on demand, never persisted.

SHORT-CIRCUIT:
  An absent or already-ended lease yields a summary with HasActiveLease
  false, zero monetary fields and no options. That is a normal outcome,
  not an error.
*/
package billing

import (
	"time"
)

// LeaseExpiryWindow is how close to its end date a fixed-term lease is
// flagged as expiring soon.
const LeaseExpiryWindow = 30 * 24 * time.Hour

// =============================================================================
// RENT SUMMARY - The engine's sole output
// =============================================================================

type RentSummary struct {
	TenantID      TenantID
	EvaluatedAt   time.Time
	PaymentAction PaymentAction

	TotalDue           Money
	CurrentMonthAmount Money
	RentAmount         Money
	DepositAmount      Money

	IsProRated         bool
	ProRatedDays       int
	ProRatedRentAmount Money

	HasOverduePayments     bool
	OverdueCount           int
	TotalOverdueAmount     Money
	OverduePaymentsDetails []OverdueDetail

	PaymentOptions          []PaymentOption
	CanPayCurrentAndOverdue bool
	CanPayNextMonth         bool

	IsLeaseExpiringSoon bool
	HasActiveLease      bool
	WarningMessage      string

	// CurrentPeriodRef is the billing-cycle component of payment-link
	// idempotency keys.
	CurrentPeriodRef PeriodRef

	// Inconsistencies found while settling the ledger, for caller-side
	// logging. Not part of the API contract.
	Inconsistencies []LedgerInconsistency
}

// =============================================================================
// ASSEMBLER
// =============================================================================

// Summarize computes the billing snapshot for a tenant's lease and
// payment history at the evaluation date. A nil lease or one that has
// already ended short-circuits to an inactive summary.
func Summarize(lease *LeaseAgreement, payments []PaymentRecord, evaluationDate time.Time) (RentSummary, error) {
	eval := DateOnly(evaluationDate)

	if lease == nil || (!lease.OpenEnded() && DateOnly(lease.End).Before(eval)) {
		return inactiveSummary(lease, eval), nil
	}

	schedule, err := Schedule(*lease, eval)
	if err != nil {
		return RentSummary{}, err
	}

	view := Aggregate(schedule, payments, eval)
	action := Classify(view, !view.FirstSettled)
	options := BuildOptions(action, *lease, view)

	summary := RentSummary{
		TenantID:      lease.TenantID,
		EvaluatedAt:   eval,
		PaymentAction: action,

		TotalDue:           options.TotalDue,
		CurrentMonthAmount: view.CurrentOutstanding,
		RentAmount:         lease.MonthlyRent,
		DepositAmount:      lease.Deposit,

		HasOverduePayments:     view.OverdueCount > 0,
		OverdueCount:           view.OverdueCount,
		TotalOverdueAmount:     view.TotalOverdue,
		OverduePaymentsDetails: view.OverdueDetails,

		PaymentOptions:          options.Options,
		CanPayCurrentAndOverdue: options.CanPayCurrentAndOverdue,
		CanPayNextMonth:         options.CanPayNextMonth,

		IsLeaseExpiringSoon: lease.ExpiringSoon(eval, LeaseExpiryWindow),
		HasActiveLease:      true,
		WarningMessage:      options.WarningMessage,

		CurrentPeriodRef: view.Current.Ref,
		Inconsistencies:  view.Inconsistencies,
	}

	if first := schedule[0]; first.Prorated {
		days, amount := ProratedRent(lease.MonthlyRent, lease.Start)
		summary.IsProRated = true
		summary.ProRatedDays = days
		summary.ProRatedRentAmount = amount
	} else {
		summary.ProRatedRentAmount = ZeroMoney()
	}

	return summary, nil
}

func inactiveSummary(lease *LeaseAgreement, eval time.Time) RentSummary {
	s := RentSummary{
		EvaluatedAt:        eval,
		TotalDue:           ZeroMoney(),
		CurrentMonthAmount: ZeroMoney(),
		RentAmount:         ZeroMoney(),
		DepositAmount:      ZeroMoney(),
		TotalOverdueAmount: ZeroMoney(),
		ProRatedRentAmount: ZeroMoney(),
		HasActiveLease:     false,
	}
	if lease != nil {
		s.TenantID = lease.TenantID
	}
	return s
}
