package retention

import (
	"fmt"
	"path/filepath"
	"strings"
)

var (
	validUnits = map[PeriodUnit]bool{
		UnitDays:   true,
		UnitMonths: true,
		UnitYears:  true,
	}
	validFormats = map[ArchiveFormat]bool{
		FormatJSON:       true,
		FormatCSV:        true,
		FormatCompressed: true,
	}
	validOperators = map[Operator]bool{
		OpEquals:      true,
		OpNotEquals:   true,
		OpGreaterThan: true,
		OpLessThan:    true,
		OpContains:    true,
		OpExists:      true,
	}
	validFrequencies = map[Frequency]bool{
		FrequencyDaily:   true,
		FrequencyWeekly:  true,
		FrequencyMonthly: true,
	}
)

// ApplyDefaults fills optional fields left at their zero value.
func (p *Policy) ApplyDefaults() {
	if p.ArchiveFormat == "" {
		p.ArchiveFormat = FormatJSON
	}
	if p.ExecutionSchedule.Frequency == "" {
		p.ExecutionSchedule.Frequency = FrequencyDaily
	}
	if p.ExecutionSchedule.Frequency == FrequencyMonthly && p.ExecutionSchedule.DayOfMonth == 0 {
		p.ExecutionSchedule.DayOfMonth = 1
	}
}

// Validate checks p and returns a *ValidationError listing every problem,
// or nil when p is well-formed.
//
// An archiving policy without an archive location is not rejected here; it
// fails at run time with a ConfigurationError.
func (p *Policy) Validate() error {
	var errs []FieldError

	if strings.TrimSpace(p.OrganizationID) == "" {
		errs = append(errs, FieldError{Field: "organizationId", Message: "organization id is required"})
	}
	if !p.EntityType.Valid() {
		errs = append(errs, FieldError{
			Field:   "entityType",
			Message: fmt.Sprintf("invalid entity type %q", p.EntityType),
		})
	}

	if p.RetentionPeriod.Value < 1 {
		errs = append(errs, FieldError{
			Field:   "retentionPeriod.value",
			Message: fmt.Sprintf("must be at least 1, got %d", p.RetentionPeriod.Value),
		})
	}
	if !validUnits[p.RetentionPeriod.Unit] {
		errs = append(errs, FieldError{
			Field:   "retentionPeriod.unit",
			Message: fmt.Sprintf("invalid unit %q: must be 'days', 'months', or 'years'", p.RetentionPeriod.Unit),
		})
	}

	if p.ArchiveFormat != "" && !validFormats[p.ArchiveFormat] {
		errs = append(errs, FieldError{
			Field:   "archiveFormat",
			Message: fmt.Sprintf("invalid archive format %q: must be 'json', 'csv', or 'compressed'", p.ArchiveFormat),
		})
	}

	if loc := strings.TrimPrefix(p.ArchiveLocation, "file://"); loc != "" && !filepath.IsAbs(loc) && !filepath.IsLocal(loc) {
		errs = append(errs, FieldError{
			Field:   "archiveLocation",
			Message: fmt.Sprintf("relative location %q must not leave the archive root", p.ArchiveLocation),
		})
	}

	for i, c := range p.Conditions {
		prefix := fmt.Sprintf("conditions[%d]", i)
		if strings.TrimSpace(c.Field) == "" {
			errs = append(errs, FieldError{Field: prefix + ".field", Message: "field is required"})
		}
		if !validOperators[c.Operator] {
			errs = append(errs, FieldError{
				Field:   prefix + ".operator",
				Message: fmt.Sprintf("invalid operator %q", c.Operator),
			})
		}
	}

	errs = append(errs, validateSchedule(&p.ExecutionSchedule)...)

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func validateSchedule(s *ExecutionSchedule) []FieldError {
	var errs []FieldError

	if !validFrequencies[s.Frequency] {
		errs = append(errs, FieldError{
			Field:   "executionSchedule.frequency",
			Message: fmt.Sprintf("invalid frequency %q: must be 'daily', 'weekly', or 'monthly'", s.Frequency),
		})
	}
	if s.Hour < 0 || s.Hour > 23 {
		errs = append(errs, FieldError{
			Field:   "executionSchedule.hour",
			Message: fmt.Sprintf("must be between 0 and 23, got %d", s.Hour),
		})
	}
	if s.DayOfWeek < 0 || s.DayOfWeek > 6 {
		errs = append(errs, FieldError{
			Field:   "executionSchedule.dayOfWeek",
			Message: fmt.Sprintf("must be between 0 and 6, got %d", s.DayOfWeek),
		})
	}

	// Day of month is optional outside monthly schedules.
	if s.Frequency == FrequencyMonthly || s.DayOfMonth != 0 {
		if s.DayOfMonth < 1 || s.DayOfMonth > 31 {
			errs = append(errs, FieldError{
				Field:   "executionSchedule.dayOfMonth",
				Message: fmt.Sprintf("must be between 1 and 31, got %d", s.DayOfMonth),
			})
		}
	}

	return errs
}
