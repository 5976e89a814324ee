/*
classifier.go - The payment-action decision table

PURPOSE:
  Maps an aggregated ledger view to exactly one PaymentAction. This is a
  strict decision table with fixed precedence, not a state machine: there
  is no stored state, the action is recomputed from the ledger on every
  evaluation, which makes it idempotent and side-effect-free.

PRECEDENCE (first match wins):
  1. FIRST_TIME_PAYMENT     first obligation not yet settled
  2. CURRENT_MONTH_OVERDUE  any overdue periods exist
  3. PAYMENT_LIMIT_REACHED  current and next period both already paid
  4. CAN_PAY_NEXT_MONTH     current paid, next open, nothing overdue
  5. REGULAR_PAYMENT        default: current period open, nothing overdue

  Rule 2 outranks rule 3: PAYMENT_LIMIT_REACHED is unreachable while any
  overdue period exists. The one-month-ahead limit is fixed at exactly
  one month.
*/
package billing

// Classify returns the single payment action for the ledger view.
// isFirstPayment is derived lease state: true until the lease's first
// obligation is fully paid.
func Classify(view LedgerView, isFirstPayment bool) PaymentAction {
	switch {
	case isFirstPayment:
		return ActionFirstTimePayment
	case view.OverdueCount > 0:
		return ActionCurrentMonthOverdue
	case view.CurrentPaid() && view.NextPaid():
		return ActionPaymentLimitReached
	case view.CurrentPaid():
		return ActionCanPayNextMonth
	default:
		return ActionRegularPayment
	}
}
