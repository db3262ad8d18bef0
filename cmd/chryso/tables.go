package main

import (
	"strconv"
	"time"

	"chryso-hq/forms/pkg/retention"
	"chryso-hq/forms/pkg/retention/engine"
	"chryso-hq/forms/pkg/server"
)

// policyTable renders policies as rows; JSON output keeps the full policy.
type policyTable []*retention.Policy

func (t policyTable) Header() []string {
	return []string{"ID", "ORGANIZATION", "ENTITY", "RETAIN", "SCHEDULE", "ACTIVE", "LAST RUN", "DELETED"}
}

func (t policyTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, p := range t {
		lastRun := "never"
		if p.Stats.LastExecuted != nil {
			lastRun = p.Stats.LastExecuted.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{
			p.ID,
			p.OrganizationID,
			string(p.EntityType),
			strconv.Itoa(p.RetentionPeriod.Value) + " " + string(p.RetentionPeriod.Unit),
			scheduleString(p.ExecutionSchedule),
			strconv.FormatBool(p.IsActive),
			lastRun,
			strconv.FormatInt(p.Stats.RecordsDeleted, 10),
		})
	}
	return rows
}

func scheduleString(s retention.ExecutionSchedule) string {
	hour := strconv.Itoa(s.Hour) + "h"
	switch s.Frequency {
	case retention.FrequencyWeekly:
		return "weekly " + time.Weekday(s.DayOfWeek).String()[:3] + " " + hour
	case retention.FrequencyMonthly:
		return "monthly day " + strconv.Itoa(s.DayOfMonth) + " " + hour
	default:
		return string(s.Frequency) + " " + hour
	}
}

// runTable renders run and preview results, reusing the admin API shape
// for JSON output.
type runTable []server.RunResponse

func newRunTable(results ...*engine.Result) runTable {
	t := make(runTable, 0, len(results))
	for _, res := range results {
		if res != nil {
			t = append(t, server.NewRunResponse(res))
		}
	}
	return t
}

func (t runTable) Header() []string {
	return []string{"POLICY", "ORGANIZATION", "ENTITY", "OUTCOME", "CUTOFF", "MATCHED", "ARCHIVED", "DELETED", "HELD", "ERROR"}
}

func (t runTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		outcome := string(r.Outcome)
		switch {
		case r.DryRun:
			outcome = "preview"
		case r.PolicyHeld:
			outcome = "held"
		}
		rows = append(rows, []string{
			r.PolicyID,
			r.OrganizationID,
			string(r.EntityType),
			outcome,
			r.Cutoff.UTC().Format(time.RFC3339),
			strconv.FormatInt(r.Matched, 10),
			strconv.FormatInt(r.Archived, 10),
			strconv.FormatInt(r.Deleted, 10),
			strconv.Itoa(r.HeldExcluded),
			r.Error,
		})
	}
	return rows
}

// failures counts runs that ended with an error.
func (t runTable) failures() int {
	n := 0
	for _, r := range t {
		if r.Outcome == retention.OutcomeFailed {
			n++
		}
	}
	return n
}
