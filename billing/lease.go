/*
lease.go - Lease agreements and the obligation schedule

PURPOSE:
  A LeaseAgreement is the source record from which obligation periods are
  generated lazily: one period per billing cycle that has begun by the
  evaluation date, plus the following cycle (needed to detect paying
  ahead). The schedule is never persisted - it is recomputed on demand,
  which eliminates the drift that creeps in when amounts are recomputed
  ad hoc in multiple places.

VALIDATION:
  - leaseStart must be set and must not be after the evaluation date
  - leaseEnd, when set, must not precede leaseStart
  - monthlyRent must be positive, deposit non-negative

SEE ALSO:
  - calendar.go: Cycle boundaries and proration
  - ledger.go: Applies payments to the schedule
*/
package billing

import (
	"time"
)

// =============================================================================
// LEASE AGREEMENT
// =============================================================================

// LeaseAgreement is immutable until renewed; mutated only by
// administrative lease edits, never deleted while the tenant is active.
type LeaseAgreement struct {
	ID       LeaseID
	TenantID TenantID

	Start time.Time
	// End is zero for open-ended leases.
	End time.Time

	MonthlyRent Money
	Deposit     Money
}

// OpenEnded reports whether the lease has no fixed end date.
func (l LeaseAgreement) OpenEnded() bool { return l.End.IsZero() }

// ActiveAt reports whether the lease is in effect on the given day.
func (l LeaseAgreement) ActiveAt(day time.Time) bool {
	d := DateOnly(day)
	if d.Before(DateOnly(l.Start)) {
		return false
	}
	return l.OpenEnded() || !d.After(DateOnly(l.End))
}

// ExpiringSoon reports whether a fixed-term lease ends within the window.
func (l LeaseAgreement) ExpiringSoon(day time.Time, window time.Duration) bool {
	if l.OpenEnded() {
		return false
	}
	d, end := DateOnly(day), DateOnly(l.End)
	return !end.Before(d) && end.Sub(d) <= window
}

// Validate checks the lease against an evaluation date.
func (l LeaseAgreement) Validate(evaluationDate time.Time) error {
	if l.Start.IsZero() {
		return &LeaseStateError{LeaseID: l.ID, Reason: "lease start date is missing"}
	}
	if !l.End.IsZero() && DateOnly(l.End).Before(DateOnly(l.Start)) {
		return &LeaseStateError{LeaseID: l.ID, Reason: "lease end precedes lease start"}
	}
	if !l.MonthlyRent.IsPositive() {
		return &LeaseStateError{LeaseID: l.ID, Reason: "monthly rent must be positive"}
	}
	if l.Deposit.IsNegative() {
		return &LeaseStateError{LeaseID: l.ID, Reason: "deposit cannot be negative"}
	}
	if DateOnly(l.Start).After(DateOnly(evaluationDate)) {
		return ErrLeaseNotStarted
	}
	return nil
}

// =============================================================================
// OBLIGATION SCHEDULE
// =============================================================================

// Schedule generates every obligation period that has begun by the
// evaluation date, plus one future period. Statuses are left UNPAID;
// ledger.go settles them against payment records.
//
// The returned slice is ordered oldest first. The period at index
// len-2 contains the evaluation date; the last entry is the upcoming
// cycle used for pay-ahead detection.
func Schedule(lease LeaseAgreement, evaluationDate time.Time) ([]ObligationPeriod, error) {
	if err := lease.Validate(evaluationDate); err != nil {
		return nil, err
	}

	current := MonthsSinceStart(lease.Start, evaluationDate)
	periods := make([]ObligationPeriod, 0, current+2)

	for offset := 0; offset <= current+1; offset++ {
		cycle := CycleFor(lease.Start, offset)
		p := ObligationPeriod{
			Ref:       RefFor(cycle.Start),
			Sequence:  offset,
			Start:     cycle.Start,
			End:       cycle.End,
			DueDate:   cycle.DueDate,
			AmountDue: lease.MonthlyRent,
			Status:    StatusUnpaid,
		}
		if offset == 0 {
			if _, amount := ProratedRent(lease.MonthlyRent, lease.Start); !amount.Equal(lease.MonthlyRent) {
				p.AmountDue = amount
				p.Prorated = true
			}
		}
		periods = append(periods, p)
	}
	return periods, nil
}
