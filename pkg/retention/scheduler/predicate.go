package scheduler

import (
	"time"

	"chryso-hq/forms/pkg/retention"
)

// Minimum elapsed time since the last run, per frequency. Comparisons are
// strict.
const (
	dailyInterval   = 23 * time.Hour
	weeklyInterval  = 6 * retention.Day
	monthlyInterval = 25 * retention.Day
)

// ShouldExecute reports whether p is due at now.
//
// The schedule hour, weekday and day of month are compared against now in
// now's own location. ExecutionSchedule.Timezone is not consulted.
func ShouldExecute(p *retention.Policy, now time.Time) bool {
	if !p.IsActive {
		return false
	}

	sched := p.ExecutionSchedule
	if now.Hour() != sched.Hour {
		return false
	}

	last := p.Stats.LastExecuted
	if last == nil {
		return true
	}
	elapsed := now.Sub(*last)

	switch sched.Frequency {
	case retention.FrequencyDaily:
		return elapsed > dailyInterval
	case retention.FrequencyWeekly:
		return int(now.Weekday()) == sched.DayOfWeek && elapsed > weeklyInterval
	case retention.FrequencyMonthly:
		return now.Day() == sched.DayOfMonth && elapsed > monthlyInterval
	default:
		return false
	}
}
