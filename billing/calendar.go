/*
calendar.go - Billing-cycle date arithmetic

PURPOSE:
  Pure date math for monthly billing cycles anchored on the lease start.
  No I/O, no wall clock: every function takes its dates explicitly.

CYCLE MODEL:
  Cycle 0 runs from the lease start to the end of that calendar month and
  is the only cycle that can be prorated. Every later cycle is a full
  calendar month. The due date in each cycle is the day-of-month the
  lease started on, clamped to the last day of shorter months:

    lease starts Mar 15  ->  cycle 0: Mar 15 - Mar 31, due Mar 15
                             cycle 1: Apr  1 - Apr 30, due Apr 15
    lease starts Jan 31  ->  cycle 1: Feb  1 - Feb 28, due Feb 28

PRORATION:
  For a lease starting on day D of an N-day month the first cycle covers
  N-D+1 days and owes monthlyRent * (N-D+1)/N, rounded half-up to cents.

SEE ALSO:
  - lease.go: Generates the obligation schedule from these cycles
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CYCLE BOUNDARIES
// =============================================================================

// Cycle holds the boundaries of one billing cycle.
type Cycle struct {
	Start   time.Time
	End     time.Time
	DueDate time.Time
}

// CycleFor returns the billing cycle at the given month offset from the
// lease start. Offset 0 is the (possibly partial) first cycle.
func CycleFor(leaseStart time.Time, monthOffset int) Cycle {
	start := DateOnly(leaseStart)
	if monthOffset == 0 {
		return Cycle{
			Start:   start,
			End:     endOfMonth(start),
			DueDate: start,
		}
	}

	// Advance by whole months from the first day of the start month so
	// that a Jan 31 lease lands in February, not March.
	first := Date(start.Year(), start.Month(), 1).AddDate(0, monthOffset, 0)
	return Cycle{
		Start:   first,
		End:     endOfMonth(first),
		DueDate: clampDay(first, start.Day()),
	}
}

// MonthsSinceStart returns how many whole billing cycles have begun
// between the lease start and the evaluation date. The result is the
// offset of the cycle containing the evaluation date.
func MonthsSinceStart(leaseStart, evaluationDate time.Time) int {
	s, e := DateOnly(leaseStart), DateOnly(evaluationDate)
	return (e.Year()-s.Year())*12 + int(e.Month()) - int(s.Month())
}

// =============================================================================
// PRORATION
// =============================================================================

// ProrationFraction returns the billable day count of the first cycle and
// the fraction of the month it represents. A lease starting on the 1st
// yields the whole month (fraction 1).
func ProrationFraction(leaseStart time.Time) (days int, fraction decimal.Decimal) {
	start := DateOnly(leaseStart)
	total := daysInMonth(start)
	days = total - start.Day() + 1
	fraction = decimal.NewFromInt(int64(days)).Div(decimal.NewFromInt(int64(total)))
	return days, fraction
}

// ProratedRent returns monthlyRent scaled by the first cycle's fraction,
// rounded half-up to cent precision.
func ProratedRent(monthlyRent Money, leaseStart time.Time) (days int, amount Money) {
	start := DateOnly(leaseStart)
	total := daysInMonth(start)
	days = total - start.Day() + 1
	amount = RoundCurrency(monthlyRent.
		Mul(decimal.NewFromInt(int64(days))).
		Div(decimal.NewFromInt(int64(total))))
	return days, amount
}

// =============================================================================
// HELPERS
// =============================================================================

func daysInMonth(t time.Time) int {
	return endOfMonth(t).Day()
}

func endOfMonth(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), 1).AddDate(0, 1, -1)
}

// clampDay returns the given day-of-month within t's month, clamped to
// the month's last day.
func clampDay(t time.Time, day int) time.Time {
	last := daysInMonth(t)
	if day > last {
		day = last
	}
	return Date(t.Year(), t.Month(), day)
}
