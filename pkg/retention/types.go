package retention

import (
	"context"
	"time"
)

// EntityType selects the collection(s) a retention policy governs.
type EntityType string

const (
	EntityForm      EntityType = "form"
	EntityAuditLog  EntityType = "auditLog"
	EntityReport    EntityType = "report"
	EntityUser      EntityType = "user"
	EntityTemplate  EntityType = "template"
	EntityDashboard EntityType = "dashboard"
	EntityAll       EntityType = "all"
)

// collectionByEntity maps each concrete entity type to its backing collection.
var collectionByEntity = map[EntityType]string{
	EntityForm:      "forms",
	EntityAuditLog:  "audit_logs",
	EntityReport:    "reports",
	EntityUser:      "users",
	EntityTemplate:  "templates",
	EntityDashboard: "dashboards",
}

// governedEntities lists concrete entity types in a stable order.
var governedEntities = []EntityType{
	EntityForm,
	EntityAuditLog,
	EntityReport,
	EntityUser,
	EntityTemplate,
	EntityDashboard,
}

// Valid reports whether e is a known entity type.
func (e EntityType) Valid() bool {
	if e == EntityAll {
		return true
	}
	_, ok := collectionByEntity[e]
	return ok
}

// Collections returns the collection names governed by e.
// EntityAll expands to every governed collection.
func (e EntityType) Collections() []string {
	if e == EntityAll {
		return GovernedCollections()
	}
	if c, ok := collectionByEntity[e]; ok {
		return []string{c}
	}
	return nil
}

// GovernedCollections returns every collection a policy may target.
func GovernedCollections() []string {
	out := make([]string, 0, len(governedEntities))
	for _, e := range governedEntities {
		out = append(out, collectionByEntity[e])
	}
	return out
}

// PeriodUnit is the unit of a RetentionPeriod.
type PeriodUnit string

const (
	UnitDays   PeriodUnit = "days"
	UnitMonths PeriodUnit = "months"
	UnitYears  PeriodUnit = "years"
)

// RetentionPeriod is how long records are kept before they become eligible
// for deletion.
type RetentionPeriod struct {
	Value int        `json:"value" yaml:"value"`
	Unit  PeriodUnit `json:"unit" yaml:"unit"`
}

// ArchiveFormat is the serialization used when archiving before deletion.
type ArchiveFormat string

const (
	FormatJSON       ArchiveFormat = "json"
	FormatCSV        ArchiveFormat = "csv"
	FormatCompressed ArchiveFormat = "compressed"
)

// Operator is a condition comparison operator.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpContains    Operator = "contains"
	OpExists      Operator = "exists"
)

// Condition is an additional filter ANDed with the age cutoff.
type Condition struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value,omitempty" yaml:"value,omitempty"`
}

// LegalHold exempts a policy's records from deletion while active.
type LegalHold struct {
	Enabled            bool       `json:"enabled" yaml:"enabled"`
	Reason             string     `json:"reason,omitempty" yaml:"reason,omitempty"`
	HoldUntil          *time.Time `json:"holdUntil,omitempty" yaml:"hold_until,omitempty"`
	ExemptFromDeletion bool       `json:"exemptFromDeletion" yaml:"exempt_from_deletion"`
}

// Active reports whether the hold is enabled and not yet expired at now.
func (h LegalHold) Active(now time.Time) bool {
	if !h.Enabled {
		return false
	}
	return h.HoldUntil == nil || now.Before(*h.HoldUntil)
}

// Frequency is how often a policy runs.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ExecutionSchedule controls when a policy is eligible to run.
type ExecutionSchedule struct {
	Frequency Frequency `json:"frequency" yaml:"frequency"`

	// DayOfWeek is 0 (Sunday) through 6; consulted for weekly policies only.
	DayOfWeek int `json:"dayOfWeek" yaml:"day_of_week"`

	// DayOfMonth is 1 through 31; consulted for monthly policies only.
	DayOfMonth int `json:"dayOfMonth,omitempty" yaml:"day_of_month,omitempty"`

	// Hour is 0 through 23 in the server's local time.
	Hour int `json:"hour" yaml:"hour"`

	// Timezone is stored but not applied when evaluating eligibility.
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// ErrorStats tracks run failures.
type ErrorStats struct {
	Count       int64      `json:"count"`
	LastError   string     `json:"lastError,omitempty"`
	LastErrorAt *time.Time `json:"lastErrorAt,omitempty"`
}

// Stats is the cumulative bookkeeping updated after each run.
type Stats struct {
	LastExecuted      *time.Time `json:"lastExecuted,omitempty"`
	RecordsArchived   int64      `json:"recordsArchived"`
	RecordsDeleted    int64      `json:"recordsDeleted"`
	TotalSizeArchived int64      `json:"totalSizeArchived"`
	Errors            ErrorStats `json:"errors"`
}

// Lease is a time-bounded claim on a policy held by one scheduler instance.
type Lease struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Held reports whether the lease is still in force at now.
func (l *Lease) Held(now time.Time) bool {
	return l != nil && l.Owner != "" && now.Before(l.ExpiresAt)
}

// Policy is a retention rule scoping one entity type within one organization.
type Policy struct {
	ID             string     `json:"id" yaml:"id,omitempty"`
	OrganizationID string     `json:"organizationId" yaml:"organization_id"`
	Name           string     `json:"name,omitempty" yaml:"name,omitempty"`
	Description    string     `json:"description,omitempty" yaml:"description,omitempty"`
	EntityType     EntityType `json:"entityType" yaml:"entity_type"`

	RetentionPeriod RetentionPeriod `json:"retentionPeriod" yaml:"retention_period"`

	ArchiveBeforeDelete bool          `json:"archiveBeforeDelete" yaml:"archive_before_delete"`
	ArchiveLocation     string        `json:"archiveLocation,omitempty" yaml:"archive_location,omitempty"`
	ArchiveFormat       ArchiveFormat `json:"archiveFormat,omitempty" yaml:"archive_format,omitempty"`

	Conditions        []Condition       `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	LegalHold         LegalHold         `json:"legalHold" yaml:"legal_hold"`
	ExecutionSchedule ExecutionSchedule `json:"executionSchedule" yaml:"execution_schedule"`

	Stats    Stats `json:"stats" yaml:"-"`
	IsActive bool  `json:"isActive" yaml:"is_active"`

	Lease *Lease `json:"lease,omitempty" yaml:"-"`

	CreatedBy string    `json:"createdBy,omitempty" yaml:"created_by,omitempty"`
	CreatedAt time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`
}

// Clone returns a deep copy of p.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	c := *p
	if p.Conditions != nil {
		c.Conditions = append([]Condition(nil), p.Conditions...)
	}
	c.LegalHold.HoldUntil = cloneTime(p.LegalHold.HoldUntil)
	c.Stats.LastExecuted = cloneTime(p.Stats.LastExecuted)
	c.Stats.Errors.LastErrorAt = cloneTime(p.Stats.Errors.LastErrorAt)
	if p.Lease != nil {
		l := *p.Lease
		c.Lease = &l
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Record is one document in a governed collection.
type Record struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organizationId"`
	Collection     string         `json:"collection"`
	CreatedAt      time.Time      `json:"createdAt"`
	SizeBytes      int64          `json:"sizeBytes,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

// RecordHold is a legal hold placed on a single record.
type RecordHold struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organizationId"`
	Collection     string     `json:"collection"`
	RecordID       string     `json:"recordId"`
	Reason         string     `json:"reason"`
	PlacedBy       string     `json:"placedBy,omitempty"`
	HoldUntil      *time.Time `json:"holdUntil,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Active reports whether the hold is in force at now.
func (h *RecordHold) Active(now time.Time) bool {
	return h.HoldUntil == nil || now.Before(*h.HoldUntil)
}

// PolicyFilter narrows List results. Zero fields match everything.
type PolicyFilter struct {
	OrganizationID string
	EntityType     EntityType
	ActiveOnly     bool
}

// RecordFilter selects candidate records from one collection.
type RecordFilter struct {
	Collection     string
	OrganizationID string

	// CreatedBefore is exclusive.
	CreatedBefore time.Time

	// ExcludeIDs are never returned.
	ExcludeIDs []string

	// Conditions are ANDed with the other criteria.
	Conditions []Condition
}

// PolicyStore persists retention policies and the bookkeeping the scheduler
// owns on them. Implementations must be safe for concurrent use.
type PolicyStore interface {
	// FindActivePolicies returns every policy with IsActive set, unordered.
	FindActivePolicies(ctx context.Context) ([]*Policy, error)

	// Get returns ErrPolicyNotFound if id is unknown.
	Get(ctx context.Context, id string) (*Policy, error)

	List(ctx context.Context, filter PolicyFilter) ([]*Policy, error)

	// Create assigns an ID when p.ID is empty. A second policy for the same
	// organization and entity type fails with ErrPolicyConflict.
	Create(ctx context.Context, p *Policy) error

	// Update replaces the administrative fields of p. Stats and lease are
	// left untouched.
	Update(ctx context.Context, p *Policy) error

	// Deactivate clears IsActive. Policies are never physically removed.
	Deactivate(ctx context.Context, id string) error

	// RecordSuccess adds to the cumulative counters and sets LastExecuted.
	RecordSuccess(ctx context.Context, id string, archived, deleted, archivedBytes int64, at time.Time) error

	// RecordFailure increments the error count and sets the last error.
	RecordFailure(ctx context.Context, id string, message string, at time.Time) error

	// AcquireLease claims id for owner until now+ttl. It returns false while
	// any unexpired lease exists, including one held by owner itself.
	AcquireLease(ctx context.Context, id, owner string, ttl time.Duration, now time.Time) (bool, error)

	// ReleaseLease drops owner's lease on id. Releasing a lease held by
	// someone else is a no-op.
	ReleaseLease(ctx context.Context, id, owner string) error

	Ping(ctx context.Context) error
	Close() error
}

// HoldStore persists record-level legal holds.
type HoldStore interface {
	PlaceHold(ctx context.Context, h *RecordHold) error
	ReleaseHold(ctx context.Context, id string) error
	ListHolds(ctx context.Context, organizationID string) ([]*RecordHold, error)

	// HeldRecordIDs returns ids in collection under a hold active at now.
	HeldRecordIDs(ctx context.Context, organizationID, collection string, now time.Time) ([]string, error)
}

// RecordStore is the document store holding governed collections.
type RecordStore interface {
	Find(ctx context.Context, filter RecordFilter) ([]*Record, error)

	// Delete removes records by id and returns how many were removed.
	// Deleting an id that no longer exists is not an error.
	Delete(ctx context.Context, collection string, ids []string) (int64, error)

	Insert(ctx context.Context, r *Record) error
	Close() error
}

// ArchiveRequest describes one batch of records to archive.
type ArchiveRequest struct {
	Location       string
	Format         ArchiveFormat
	Collection     string
	OrganizationID string
	Records        []*Record
}

// ArchiveResult reports where an archive was written and its size.
type ArchiveResult struct {
	Path    string
	Bytes   int64
	Records int
}

// Archiver writes records to an archive sink before they are deleted.
type Archiver interface {
	Archive(ctx context.Context, req *ArchiveRequest) (*ArchiveResult, error)
}

// Outcome is the terminal state of a run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// RunEvent is emitted once per policy run.
type RunEvent struct {
	RunID          string        `json:"runId"`
	PolicyID       string        `json:"policyId"`
	OrganizationID string        `json:"organizationId"`
	EntityType     EntityType    `json:"entityType"`
	Outcome        Outcome       `json:"outcome"`
	Cutoff         time.Time     `json:"cutoff"`
	Archived       int64         `json:"archived"`
	Deleted        int64         `json:"deleted"`
	ArchivedBytes  int64         `json:"archivedBytes"`
	PolicyHeld     bool          `json:"policyHeld,omitempty"`
	Error          string        `json:"error,omitempty"`
	StartedAt      time.Time     `json:"startedAt"`
	Duration       time.Duration `json:"duration"`
}

// Notifier receives run events for auditing and alerting.
type Notifier interface {
	Notify(ctx context.Context, ev *RunEvent) error
}
