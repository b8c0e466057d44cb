package pricing

import "rentdesk/internal/domain/shared/daterange"

// Billing period lengths in whole days. Months and years are fixed-length
// billing periods, deliberately not calendar-aware.
const (
	daysPerWeek  = 7
	daysPerMonth = 30
	daysPerYear  = 365
	hoursPerDay  = 24
)

// BillableUnits converts a rental window into the whole number of billing
// periods charged for the given rental type. The window is first rounded up
// to whole calendar days, then each partial period is billed as a full
// period. Rounding up always is the business rule, not an approximation.
func BillableUnits(window daterange.DateRange, rentalType RentalType) (int, error) {
	days := window.Days()
	switch rentalType {
	case Hourly:
		return days * hoursPerDay, nil
	case Daily:
		return days, nil
	case Weekly:
		return ceilDiv(days, daysPerWeek), nil
	case Monthly:
		return ceilDiv(days, daysPerMonth), nil
	case Yearly:
		return ceilDiv(days, daysPerYear), nil
	default:
		return 0, ErrUnknownRentalType
	}
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
