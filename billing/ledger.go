/*
ledger.go - Period classification from payment records

PURPOSE:
  Applies a tenant's payment records to the obligation schedule and
  classifies every period as PAID, UNPAID, or OVERDUE. This is the single
  place amounts owed are derived; nothing else in the repo recomputes
  settlement state.

SETTLEMENT ORDER:
  When one payment covers multiple periods it settles the oldest unpaid
  period first. This keeps the overdue count monotonic: paying anything
  can only shrink the overdue tail, never reorder it.

FAIL-SAFE:
  A payment referencing a period that is not in the schedule settles
  nothing for that reference. The inconsistency is reported to the caller
  for logging; the affected period stays unpaid. Ambiguity biases toward
  charging correctness, never under-billing.

IDEMPOTENCE:
  Aggregate is a pure function of (periods, payments, evaluationDate).
  Running it twice on the same inputs yields identical statuses.

SEE ALSO:
  - lease.go: Produces the schedule consumed here
  - classifier.go: Maps the aggregated view to a payment action
*/
package billing

import (
	"sort"
	"time"
)

// =============================================================================
// LEDGER VIEW - Aggregated settlement state at an evaluation date
// =============================================================================

// LedgerView is the classified ledger the rest of the engine works from.
type LedgerView struct {
	// Periods through the one containing the evaluation date, oldest
	// first, statuses set.
	Periods []ObligationPeriod

	// Current is the period containing the evaluation date; Next is the
	// upcoming cycle (used to detect paying ahead).
	Current ObligationPeriod
	Next    ObligationPeriod

	// CurrentOutstanding is what remains unpaid on the current period.
	CurrentOutstanding Money

	// Overdue aggregation covers periods strictly before the current one.
	// An unpaid current period is surfaced through CurrentOutstanding,
	// not the overdue tail.
	OverdueCount   int
	TotalOverdue   Money
	OverdueDetails []OverdueDetail

	// FirstSettled is true once the first obligation period is fully paid.
	// Its negation is the lease's "first payment" flag.
	FirstSettled bool

	// Inconsistencies lists payments referencing unknown periods.
	Inconsistencies []LedgerInconsistency

	EvaluatedAt time.Time
}

// NextPaid reports whether the upcoming cycle is already settled.
func (v LedgerView) NextPaid() bool { return v.Next.Status == StatusPaid }

// CurrentPaid reports whether the current period is fully settled.
func (v LedgerView) CurrentPaid() bool { return v.Current.Status == StatusPaid }

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregate settles payments against the schedule and classifies each
// period as of the evaluation date. The schedule must include the period
// containing evaluationDate and the one after it (see Schedule).
func Aggregate(periods []ObligationPeriod, payments []PaymentRecord, evaluationDate time.Time) LedgerView {
	eval := DateOnly(evaluationDate)

	index := make(map[PeriodRef]int, len(periods))
	for i, p := range periods {
		index[p.Ref] = i
	}

	// Settle payments in the order they were made, each payment oldest
	// period first.
	allocated := make([]Money, len(periods))
	for i := range allocated {
		allocated[i] = ZeroMoney()
	}

	ordered := make([]PaymentRecord, len(payments))
	copy(ordered, payments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].PaidDate.Before(ordered[j].PaidDate)
	})

	var inconsistencies []LedgerInconsistency
	for _, pay := range ordered {
		remaining := pay.Amount.Sub(pay.LateFee)
		if !remaining.IsPositive() {
			continue // refunds and pure late-fee records settle nothing
		}

		targets := make([]int, 0, len(pay.AppliesTo))
		for _, ref := range pay.AppliesTo {
			i, ok := index[ref]
			if !ok {
				inconsistencies = append(inconsistencies, LedgerInconsistency{
					PaymentID: pay.ID,
					Ref:       ref,
					PaidDate:  pay.PaidDate,
				})
				continue
			}
			targets = append(targets, i)
		}
		sort.Ints(targets) // oldest unpaid period is settled first

		for _, i := range targets {
			if !remaining.IsPositive() {
				break
			}
			need := periods[i].AmountDue.Sub(allocated[i])
			if !need.IsPositive() {
				continue
			}
			slice := decimalMin(remaining, need)
			allocated[i] = allocated[i].Add(slice)
			remaining = remaining.Sub(slice)
		}
	}

	// Classify. The last schedule entry is the upcoming cycle and is only
	// ever UNPAID or PAID.
	currentIdx := len(periods) - 2
	for i := range periods {
		switch {
		case allocated[i].GreaterThanOrEqual(periods[i].AmountDue):
			periods[i].Status = StatusPaid
		case periods[i].DueDate.Before(eval):
			periods[i].Status = StatusOverdue
		default:
			periods[i].Status = StatusUnpaid
		}
	}

	view := LedgerView{
		Periods:            periods[:currentIdx+1],
		Current:            periods[currentIdx],
		Next:               periods[currentIdx+1],
		CurrentOutstanding: ZeroMoney(),
		TotalOverdue:       ZeroMoney(),
		FirstSettled:       periods[0].Status == StatusPaid,
		Inconsistencies:    inconsistencies,
		EvaluatedAt:        eval,
	}

	if view.Current.Status != StatusPaid {
		view.CurrentOutstanding = view.Current.AmountDue.Sub(allocated[currentIdx])
	}

	for i := 0; i < currentIdx; i++ {
		p := periods[i]
		if p.Status != StatusOverdue {
			continue
		}
		outstanding := p.AmountDue.Sub(allocated[i])
		view.OverdueCount++
		view.TotalOverdue = view.TotalOverdue.Add(outstanding)
		view.OverdueDetails = append(view.OverdueDetails, OverdueDetail{
			Ref:         p.Ref,
			Description: "Rent for " + p.Start.Format("January 2006"),
			DueDate:     p.DueDate,
			DaysOverdue: DaysBetween(p.DueDate, eval),
			Amount:      outstanding,
		})
	}

	return view
}

func decimalMin(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}
