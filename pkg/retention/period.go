package retention

import "time"

// Unit multipliers. Months and years are fixed approximations, not calendar
// arithmetic.
const (
	Day   = 24 * time.Hour
	Month = 30 * Day
	Year  = 365 * Day
)

// Duration converts the period to a fixed-length duration.
// Unknown units yield zero.
func (p RetentionPeriod) Duration() time.Duration {
	var unit time.Duration
	switch p.Unit {
	case UnitDays:
		unit = Day
	case UnitMonths:
		unit = Month
	case UnitYears:
		unit = Year
	default:
		return 0
	}
	return time.Duration(p.Value) * unit
}

// ComputeCutoffDate returns the instant before which records governed by p
// are eligible for deletion.
func ComputeCutoffDate(p *Policy, now time.Time) time.Time {
	return now.Add(-p.RetentionPeriod.Duration())
}
