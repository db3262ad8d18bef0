// Package scheduler decides when retention policies run and runs them.
//
// ShouldExecute is the eligibility predicate. A policy is due when it is
// active, the current hour equals its schedule hour, and either it has
// never run or, depending on frequency:
//
//   - daily: more than 23 hours have passed since the last run
//   - weekly: today is the schedule weekday and more than 6 days passed
//   - monthly: today is the schedule day of month and more than 25 days passed
//
// Scheduler ticks on a cron expression (hourly by default), evaluates every
// active policy and runs the due ones concurrently up to a limit. Before a
// run it takes a time-bounded lease on the policy in the policy store; a
// policy whose lease is held elsewhere is skipped for that tick.
//
// Schedulers are constructed explicitly and own their cron handle:
//
//	s, err := scheduler.New(store, eng,
//	    scheduler.WithSchedule("0 * * * *"),
//	    scheduler.WithMaxConcurrent(4),
//	    scheduler.WithInstanceID(hostname),
//	)
//	if err := s.Start(ctx); err != nil {
//	    return err
//	}
//	defer s.Stop()
package scheduler
