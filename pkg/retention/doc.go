// Package retention defines the data-retention domain for Chryso Forms:
// retention policies, the records they govern, and the interfaces through
// which the scheduler and execution engine reach storage, archives and
// notification sinks.
//
// # Policies
//
// A Policy scopes one entity type (or "all") within one organization. It
// names a retention period, optional ANDed conditions, an optional legal
// hold, archive settings and an execution schedule. Administrators create
// and update policies; the scheduler only writes to Stats and the lease.
//
// # Cutoff
//
// ComputeCutoffDate subtracts the retention period from now using fixed
// multipliers: a day is 86400000 ms, a month 30 days, a year 365 days.
//
//	p := &retention.Policy{RetentionPeriod: retention.RetentionPeriod{Value: 30, Unit: retention.UnitDays}}
//	cutoff := retention.ComputeCutoffDate(p, now) // now - 720h
//
// # Conditions
//
// Conditions address envelope fields ("id", "organizationId", "createdAt")
// or keys of Record.Data using dotted paths. Operators are equals,
// not_equals, greater_than, less_than, contains and exists.
//
// # Subpackages
//
//   - policystore: PolicyStore and HoldStore backends (memory, SQLite)
//   - recordstore: RecordStore backends (memory, SQLite, PostgreSQL)
//   - archive: JSON, CSV and gzip archive writers
//   - engine: executes one policy
//   - scheduler: eligibility predicate and the periodic tick
//   - notify: run event sinks (log, NATS)
//   - policyfile: YAML policy files and hot reload
package retention

//go:generate mockgen -destination=mocks/mock_retention.go -package=mock_retention chryso-hq/forms/pkg/retention Notifier,Archiver
