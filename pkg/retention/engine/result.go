package engine

import (
	"time"

	"chryso-hq/forms/pkg/retention"
)

// Result describes one policy run.
type Result struct {
	RunID          string
	PolicyID       string
	OrganizationID string
	EntityType     retention.EntityType

	// Cutoff is the instant records had to be created before to match.
	Cutoff time.Time

	// Matched is the number of candidate records found.
	Matched int64

	Archived      int64
	ArchivedBytes int64
	Deleted       int64

	// ArchiveLocations lists the archive files written by this run.
	ArchiveLocations []string

	// HeldExcluded is the number of record-level holds applied to the
	// candidate filter.
	HeldExcluded int

	// PolicyHeld is set when a policy-level legal hold suppressed the run.
	PolicyHeld bool

	// DryRun is set for previews. Nothing was archived, deleted or recorded.
	DryRun bool

	StartedAt time.Time
	Duration  time.Duration

	// Err is nil for a successful run.
	Err error
}

// Succeeded reports whether the run completed without error.
func (r *Result) Succeeded() bool {
	return r.Err == nil
}

// Outcome returns the terminal state of the run.
func (r *Result) Outcome() retention.Outcome {
	if r.Err != nil {
		return retention.OutcomeFailed
	}
	return retention.OutcomeSucceeded
}

// Event converts the result to the notification payload.
func (r *Result) Event() *retention.RunEvent {
	ev := &retention.RunEvent{
		RunID:          r.RunID,
		PolicyID:       r.PolicyID,
		OrganizationID: r.OrganizationID,
		EntityType:     r.EntityType,
		Outcome:        r.Outcome(),
		Cutoff:         r.Cutoff,
		Archived:       r.Archived,
		Deleted:        r.Deleted,
		ArchivedBytes:  r.ArchivedBytes,
		PolicyHeld:     r.PolicyHeld,
		StartedAt:      r.StartedAt,
		Duration:       r.Duration,
	}
	if r.Err != nil {
		ev.Error = r.Err.Error()
	}
	return ev
}
