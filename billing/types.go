/*
Package billing provides the rent obligation and payment-option engine.

PURPOSE:
  This package contains the pure domain types and algorithms that decide,
  for a tenant's lease and payment history at a given evaluation date,
  what is owed, which payment actions are available, and the exact
  monetary breakdown (base rent, proration, deposit, overdue aggregation)
  to present and to charge.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A currency amount backed by decimal.Decimal
  - PaymentRecord: An immutable record of an executed payment
  - PaymentAction: The single classified state governing what can be paid
  - PaymentOption: One selectable amount/description/due-date triple
  - Tenant/Lease/Period IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Determinism: Every computation takes an explicit evaluation date.
     Nothing in this package reads the wall clock.
  2. Precision: Uses decimal.Decimal to avoid floating-point errors.
  3. Immutability: PaymentRecords are never mutated; refunds are modeled
     as new negative-amount records.
  4. Fail-safe: Ambiguous ledger states bias toward overestimating the
     amount due, never underestimating.

USAGE:
  lease, _ := store.LeaseByTenant(ctx, tenantID)
  payments, _ := store.PaymentsByTenant(ctx, tenantID)
  summary, err := billing.Summarize(lease, payments, evalDate)

SEE ALSO:
  - calendar.go: Billing-cycle boundaries and proration
  - ledger.go: Period classification from payment records
  - classifier.go: The payment-action decision table
  - summary.go: RentSummary assembly
*/
package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency amount (single currency, cent precision)
// =============================================================================

type Money = decimal.Decimal

func Cents(units int64, cents int64) Money {
	return decimal.NewFromInt(units).Add(decimal.New(cents, -2))
}

func Dollars(units int64) Money { return decimal.NewFromInt(units) }

func ZeroMoney() Money { return decimal.Zero }

func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseMoney parses a decimal amount from its string form.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// RoundCurrency rounds to cent precision using round-half-up.
func RoundCurrency(m Money) Money { return m.Round(2) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type LeaseID string
type PaymentID string

// PeriodRef identifies an obligation period by its calendar month,
// formatted "2006-01". Payments reference the periods they settle
// through these keys.
type PeriodRef string

func RefFor(t time.Time) PeriodRef { return PeriodRef(t.Format("2006-01")) }

// =============================================================================
// PERIOD STATUS
// =============================================================================

type PeriodStatus string

const (
	StatusUnpaid  PeriodStatus = "UNPAID"
	StatusPaid    PeriodStatus = "PAID"
	StatusOverdue PeriodStatus = "OVERDUE"
)

// ObligationPeriod is one calendar month of rent liability.
//
// INVARIANTS:
//   - Periods are contiguous and non-overlapping.
//   - Exactly one period contains any evaluation date after lease start.
//   - Only the first period (Sequence 0) is ever prorated.
type ObligationPeriod struct {
	Ref       PeriodRef
	Sequence  int
	Start     time.Time
	End       time.Time
	DueDate   time.Time
	AmountDue Money
	Prorated  bool
	Status    PeriodStatus
}

// Contains reports whether the day falls within [Start, End].
func (p ObligationPeriod) Contains(day time.Time) bool {
	d := DateOnly(day)
	return !d.Before(DateOnly(p.Start)) && !d.After(DateOnly(p.End))
}

// =============================================================================
// PAYMENT RECORD - Executed payment (append-only)
// =============================================================================

// PaymentRecord is created only by a successful gateway confirmation and
// never mutated afterwards. Refunds are new negative-amount records.
type PaymentRecord struct {
	ID        PaymentID
	TenantID  TenantID
	Amount    Money
	LateFee   Money
	PaidDate  time.Time
	SessionID string // external gateway session identifier

	// Periods this payment settles, oldest first.
	AppliesTo []PeriodRef
}

// =============================================================================
// PAYMENT ACTION - Classified billing state
// =============================================================================

type PaymentAction string

const (
	ActionFirstTimePayment    PaymentAction = "FIRST_TIME_PAYMENT"
	ActionCurrentMonthOverdue PaymentAction = "CURRENT_MONTH_OVERDUE"
	ActionPaymentLimitReached PaymentAction = "PAYMENT_LIMIT_REACHED"
	ActionCanPayNextMonth     PaymentAction = "CAN_PAY_NEXT_MONTH"
	ActionRegularPayment      PaymentAction = "REGULAR_PAYMENT"
)

// =============================================================================
// PAYMENT OPTION - Ephemeral, non-persisted choice offered to the payer
// =============================================================================

type OptionType string

const (
	OptionCurrent   OptionType = "CURRENT"
	OptionOverdue   OptionType = "OVERDUE"
	OptionCombined  OptionType = "COMBINED"
	OptionNextMonth OptionType = "NEXT_MONTH"
)

type PaymentOption struct {
	Type        OptionType
	Amount      Money
	Description string
	DueDate     time.Time
}

// OverdueDetail describes one overdue period in a summary.
type OverdueDetail struct {
	Ref         PeriodRef
	Description string
	DueDate     time.Time
	DaysOverdue int
	Amount      Money
}

// =============================================================================
// TIME HELPERS
// =============================================================================

// DateOnly truncates to midnight UTC. All engine comparisons happen at
// day granularity.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func DaysBetween(from, to time.Time) int {
	return int(DateOnly(to).Sub(DateOnly(from)).Hours() / 24)
}
