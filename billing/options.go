/*
options.go - Building the selectable payment options

PURPOSE:
  Given the classified action and the ledger view, builds the ordered
  list of PaymentOptions the tenant may choose from, plus the default
  total due. Options are ephemeral: built fresh on every summary request
  and never stored.

OPTIONS PER ACTION:
  FIRST_TIME_PAYMENT     one option: (prorated) first rent + deposit
  CURRENT_MONTH_OVERDUE  up to three: CURRENT, OVERDUE, COMBINED
  PAYMENT_LIMIT_REACHED  none; a warning message explains the limit
  CAN_PAY_NEXT_MONTH     one NEXT_MONTH option at full monthly rent
  REGULAR_PAYMENT        one CURRENT option at the period's amount due

  Only the first period is ever prorated, so NEXT_MONTH is always the
  full monthly rent. The builder does not format currency; descriptions
  and due dates are used verbatim by the caller.
*/
package billing

import "strconv"

// OptionSet is the computed option list with its derived flags.
type OptionSet struct {
	Options  []PaymentOption
	TotalDue Money

	// CanPayCurrentAndOverdue is true only when both individual
	// components are non-zero.
	CanPayCurrentAndOverdue bool
	CanPayNextMonth         bool
	WarningMessage          string
}

// BuildOptions computes the payment options for a classified action.
func BuildOptions(action PaymentAction, lease LeaseAgreement, view LedgerView) OptionSet {
	switch action {
	case ActionFirstTimePayment:
		return firstTimeOptions(lease, view)
	case ActionCurrentMonthOverdue:
		return overdueOptions(view)
	case ActionPaymentLimitReached:
		return OptionSet{
			TotalDue: ZeroMoney(),
			WarningMessage: "Rent is already paid through " +
				view.Next.End.Format("January 2006") +
				". Payments more than one month in advance are not accepted.",
		}
	case ActionCanPayNextMonth:
		return nextMonthOptions(lease, view)
	default:
		return regularOptions(view)
	}
}

func firstTimeOptions(lease LeaseAgreement, view LedgerView) OptionSet {
	first := view.Periods[0]
	total := first.AmountDue.Add(lease.Deposit)

	desc := "First payment: rent for " + first.Start.Format("January 2006")
	if first.Prorated {
		desc = "First payment: prorated rent for " + first.Start.Format("January 2006")
	}
	if lease.Deposit.IsPositive() {
		desc += " plus security deposit"
	}

	return OptionSet{
		Options: []PaymentOption{{
			Type:        OptionCurrent,
			Amount:      total,
			Description: desc,
			DueDate:     first.DueDate,
		}},
		TotalDue: total,
	}
}

func overdueOptions(view LedgerView) OptionSet {
	current := view.CurrentOutstanding
	overdue := view.TotalOverdue
	combined := current.Add(overdue)

	set := OptionSet{TotalDue: combined}
	if current.IsPositive() {
		set.Options = append(set.Options, PaymentOption{
			Type:        OptionCurrent,
			Amount:      current,
			Description: "Rent for " + view.Current.Start.Format("January 2006"),
			DueDate:     view.Current.DueDate,
		})
	}
	if overdue.IsPositive() {
		set.Options = append(set.Options, PaymentOption{
			Type:        OptionOverdue,
			Amount:      overdue,
			Description: overdueDescription(view.OverdueCount),
			DueDate:     view.OverdueDetails[0].DueDate, // oldest first
		})
	}
	if current.IsPositive() && overdue.IsPositive() {
		set.CanPayCurrentAndOverdue = true
		set.Options = append(set.Options, PaymentOption{
			Type:        OptionCombined,
			Amount:      combined,
			Description: "Current rent plus all overdue payments",
			DueDate:     view.Current.DueDate,
		})
	}
	return set
}

func nextMonthOptions(lease LeaseAgreement, view LedgerView) OptionSet {
	return OptionSet{
		Options: []PaymentOption{{
			Type:        OptionNextMonth,
			Amount:      lease.MonthlyRent,
			Description: "Rent for " + view.Next.Start.Format("January 2006"),
			DueDate:     view.Next.DueDate,
		}},
		TotalDue:        lease.MonthlyRent,
		CanPayNextMonth: true,
	}
}

func regularOptions(view LedgerView) OptionSet {
	return OptionSet{
		Options: []PaymentOption{{
			Type:        OptionCurrent,
			Amount:      view.CurrentOutstanding,
			Description: "Rent for " + view.Current.Start.Format("January 2006"),
			DueDate:     view.Current.DueDate,
		}},
		TotalDue: view.CurrentOutstanding,
	}
}

func overdueDescription(count int) string {
	if count == 1 {
		return "1 overdue payment"
	}
	return strconv.Itoa(count) + " overdue payments"
}
