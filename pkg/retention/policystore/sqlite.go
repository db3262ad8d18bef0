package policystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"chryso-hq/forms/pkg/retention"
)

const backendName = "sqlite"

// SQLiteConfig configures the SQLite policy store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteStore implements retention.PolicyStore and retention.HoldStore on a
// pure-Go SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	now    func() time.Time
	logger *slog.Logger
}

// NewSQLiteStore opens (creating if needed) the policy database at cfg.Path.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, retention.NewStorageError(backendName, "open", err)
	}

	// SQLite only supports a single writer; serializing connections keeps
	// the lease compare-and-set atomic.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		path:   cfg.Path,
		now:    time.Now,
		logger: slog.Default().With("component", "retention.policystore.sqlite"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("policy store initialized", "path", cfg.Path)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return retention.NewStorageError(backendName, "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return retention.NewStorageError(backendName, "insert_schema_version", err)
	}

	var version sql.NullInt64
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return retention.NewStorageError(backendName, "get_schema_version", err)
	}
	if version.Int64 != SchemaVersion {
		return retention.NewStorageError(backendName, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version.Int64))
	}
	return nil
}

// FindActivePolicies returns all active policies.
func (s *SQLiteStore) FindActivePolicies(ctx context.Context) ([]*retention.Policy, error) {
	return s.List(ctx, retention.PolicyFilter{ActiveOnly: true})
}

// Get returns the policy with the given id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*retention.Policy, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+policyColumns+" FROM retention_policies WHERE id = ?", id)

	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, retention.ErrPolicyNotFound
	}
	if err != nil {
		return nil, retention.NewStorageError(backendName, "get", err)
	}
	return p, nil
}

// List returns policies matching filter ordered by creation time.
func (s *SQLiteStore) List(ctx context.Context, filter retention.PolicyFilter) ([]*retention.Policy, error) {
	var (
		conds []string
		args  []any
	)
	if filter.ActiveOnly {
		conds = append(conds, "is_active = 1")
	}
	if filter.OrganizationID != "" {
		conds = append(conds, "organization_id = ?")
		args = append(args, filter.OrganizationID)
	}
	if filter.EntityType != "" {
		conds = append(conds, "entity_type = ?")
		args = append(args, string(filter.EntityType))
	}

	query := "SELECT " + policyColumns + " FROM retention_policies"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, retention.NewStorageError(backendName, "list", err)
	}
	defer rows.Close()

	out := make([]*retention.Policy, 0)
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, retention.NewStorageError(backendName, "scan", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, retention.NewStorageError(backendName, "list", err)
	}
	return out, nil
}

// Create inserts a new policy.
func (s *SQLiteStore) Create(ctx context.Context, p *retention.Policy) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	conditions, legalHold, schedule, err := encodeDocuments(p)
	if err != nil {
		return retention.NewStorageError(backendName, "encode", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO retention_policies (
			id, organization_id, entity_type, name, description,
			retention_value, retention_unit,
			archive_before_delete, archive_location, archive_format,
			conditions, legal_hold, execution_schedule,
			is_active, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrganizationID, string(p.EntityType), p.Name, p.Description,
		p.RetentionPeriod.Value, string(p.RetentionPeriod.Unit),
		p.ArchiveBeforeDelete, p.ArchiveLocation, string(p.ArchiveFormat),
		conditions, legalHold, schedule,
		p.IsActive, p.CreatedBy, p.CreatedAt.UnixMilli(), p.UpdatedAt.UnixMilli(),
	)
	if isUniqueViolation(err) {
		return retention.ErrPolicyConflict
	}
	if err != nil {
		return retention.NewStorageError(backendName, "create", err)
	}
	return nil
}

// Update replaces administrative fields. Stats and lease columns are not
// written.
func (s *SQLiteStore) Update(ctx context.Context, p *retention.Policy) error {
	conditions, legalHold, schedule, err := encodeDocuments(p)
	if err != nil {
		return retention.NewStorageError(backendName, "encode", err)
	}
	p.UpdatedAt = s.now()

	res, err := s.db.ExecContext(ctx, `
		UPDATE retention_policies SET
			organization_id = ?, entity_type = ?, name = ?, description = ?,
			retention_value = ?, retention_unit = ?,
			archive_before_delete = ?, archive_location = ?, archive_format = ?,
			conditions = ?, legal_hold = ?, execution_schedule = ?,
			is_active = ?, updated_at = ?
		WHERE id = ?`,
		p.OrganizationID, string(p.EntityType), p.Name, p.Description,
		p.RetentionPeriod.Value, string(p.RetentionPeriod.Unit),
		p.ArchiveBeforeDelete, p.ArchiveLocation, string(p.ArchiveFormat),
		conditions, legalHold, schedule,
		p.IsActive, p.UpdatedAt.UnixMilli(),
		p.ID,
	)
	if isUniqueViolation(err) {
		return retention.ErrPolicyConflict
	}
	if err != nil {
		return retention.NewStorageError(backendName, "update", err)
	}
	return s.requireOne(res, "update")
}

// Deactivate soft-deletes a policy.
func (s *SQLiteStore) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE retention_policies SET is_active = 0, updated_at = ? WHERE id = ?",
		s.now().UnixMilli(), id)
	if err != nil {
		return retention.NewStorageError(backendName, "deactivate", err)
	}
	return s.requireOne(res, "deactivate")
}

// RecordSuccess adds run counts to the policy's stats.
func (s *SQLiteStore) RecordSuccess(ctx context.Context, id string, archived, deleted, archivedBytes int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE retention_policies SET
			records_archived = records_archived + ?,
			records_deleted = records_deleted + ?,
			total_size_archived = total_size_archived + ?,
			last_executed = ?
		WHERE id = ?`,
		archived, deleted, archivedBytes, at.UnixMilli(), id)
	if err != nil {
		return retention.NewStorageError(backendName, "record_success", err)
	}
	return s.requireOne(res, "record_success")
}

// RecordFailure bumps the policy's error count.
func (s *SQLiteStore) RecordFailure(ctx context.Context, id string, message string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE retention_policies SET
			error_count = error_count + 1,
			last_error = ?,
			last_error_at = ?
		WHERE id = ?`,
		message, at.UnixMilli(), id)
	if err != nil {
		return retention.NewStorageError(backendName, "record_failure", err)
	}
	return s.requireOne(res, "record_failure")
}

// AcquireLease is a compare-and-set on the lease columns: it succeeds only
// when the lease is free or expired, whoever holds it.
func (s *SQLiteStore) AcquireLease(ctx context.Context, id, owner string, ttl time.Duration, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE retention_policies SET lease_owner = ?, lease_expires_at = ?
		WHERE id = ?
		  AND (lease_owner IS NULL OR lease_owner = '' OR lease_expires_at <= ?)`,
		owner, now.Add(ttl).UnixMilli(), id, now.UnixMilli())
	if err != nil {
		return false, retention.NewStorageError(backendName, "acquire_lease", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, retention.NewStorageError(backendName, "acquire_lease", err)
	}
	if n == 1 {
		return true, nil
	}

	// Distinguish a held lease from a missing policy.
	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM retention_policies WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, retention.ErrPolicyNotFound
	}
	if err != nil {
		return false, retention.NewStorageError(backendName, "acquire_lease", err)
	}
	return false, nil
}

// ReleaseLease drops owner's lease on the policy.
func (s *SQLiteStore) ReleaseLease(ctx context.Context, id, owner string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE retention_policies SET lease_owner = NULL, lease_expires_at = NULL
		WHERE id = ? AND lease_owner = ?`, id, owner)
	if err != nil {
		return retention.NewStorageError(backendName, "release_lease", err)
	}
	return nil
}

// PlaceHold inserts a record hold.
func (s *SQLiteStore) PlaceHold(ctx context.Context, h *retention.RecordHold) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO record_holds ("+holdColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		h.ID, h.OrganizationID, h.Collection, h.RecordID, h.Reason, h.PlacedBy,
		nullMillis(h.HoldUntil), h.CreatedAt.UnixMilli())
	if err != nil {
		return retention.NewStorageError(backendName, "place_hold", err)
	}
	return nil
}

// ReleaseHold deletes a record hold.
func (s *SQLiteStore) ReleaseHold(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM record_holds WHERE id = ?", id)
	if err != nil {
		return retention.NewStorageError(backendName, "release_hold", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return retention.NewStorageError(backendName, "release_hold", err)
	}
	if n == 0 {
		return retention.ErrHoldNotFound
	}
	return nil
}

// ListHolds returns holds for an organization, or all holds when
// organizationID is empty.
func (s *SQLiteStore) ListHolds(ctx context.Context, organizationID string) ([]*retention.RecordHold, error) {
	query := "SELECT " + holdColumns + " FROM record_holds"
	var args []any
	if organizationID != "" {
		query += " WHERE organization_id = ?"
		args = append(args, organizationID)
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, retention.NewStorageError(backendName, "list_holds", err)
	}
	defer rows.Close()

	out := make([]*retention.RecordHold, 0)
	for rows.Next() {
		var (
			h         retention.RecordHold
			placedBy  sql.NullString
			holdUntil sql.NullInt64
			createdAt int64
		)
		if err := rows.Scan(&h.ID, &h.OrganizationID, &h.Collection, &h.RecordID,
			&h.Reason, &placedBy, &holdUntil, &createdAt); err != nil {
			return nil, retention.NewStorageError(backendName, "scan_hold", err)
		}
		h.PlacedBy = placedBy.String
		h.HoldUntil = timeFromMillis(holdUntil)
		h.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, retention.NewStorageError(backendName, "list_holds", err)
	}
	return out, nil
}

// HeldRecordIDs returns ids of records under a hold active at now.
func (s *SQLiteStore) HeldRecordIDs(ctx context.Context, organizationID, collection string, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id FROM record_holds
		WHERE organization_id = ? AND collection = ?
		  AND (hold_until IS NULL OR hold_until > ?)`,
		organizationID, collection, now.UnixMilli())
	if err != nil {
		return nil, retention.NewStorageError(backendName, "held_record_ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, retention.NewStorageError(backendName, "held_record_ids", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return retention.NewStorageError(backendName, "close", err)
	}
	s.logger.Info("policy store closed", "path", s.path)
	return nil
}

func (s *SQLiteStore) requireOne(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return retention.NewStorageError(backendName, op, err)
	}
	if n == 0 {
		return retention.ErrPolicyNotFound
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*retention.Policy, error) {
	var (
		p              retention.Policy
		entityType     string
		name, desc     sql.NullString
		unit           string
		archiveLoc     sql.NullString
		archiveFormat  sql.NullString
		conditions     sql.NullString
		legalHold      sql.NullString
		schedule       string
		lastExecuted   sql.NullInt64
		lastError      sql.NullString
		lastErrorAt    sql.NullInt64
		leaseOwner     sql.NullString
		leaseExpiresAt sql.NullInt64
		createdBy      sql.NullString
		createdAt      int64
		updatedAt      int64
	)

	err := row.Scan(
		&p.ID, &p.OrganizationID, &entityType, &name, &desc,
		&p.RetentionPeriod.Value, &unit,
		&p.ArchiveBeforeDelete, &archiveLoc, &archiveFormat,
		&conditions, &legalHold, &schedule,
		&p.IsActive,
		&lastExecuted, &p.Stats.RecordsArchived, &p.Stats.RecordsDeleted, &p.Stats.TotalSizeArchived,
		&p.Stats.Errors.Count, &lastError, &lastErrorAt,
		&leaseOwner, &leaseExpiresAt,
		&createdBy, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.EntityType = retention.EntityType(entityType)
	p.Name = name.String
	p.Description = desc.String
	p.RetentionPeriod.Unit = retention.PeriodUnit(unit)
	p.ArchiveLocation = archiveLoc.String
	p.ArchiveFormat = retention.ArchiveFormat(archiveFormat.String)
	p.Stats.LastExecuted = timeFromMillis(lastExecuted)
	p.Stats.Errors.LastError = lastError.String
	p.Stats.Errors.LastErrorAt = timeFromMillis(lastErrorAt)
	p.CreatedBy = createdBy.String
	p.CreatedAt = time.UnixMilli(createdAt)
	p.UpdatedAt = time.UnixMilli(updatedAt)

	if leaseOwner.Valid && leaseOwner.String != "" {
		p.Lease = &retention.Lease{Owner: leaseOwner.String}
		if t := timeFromMillis(leaseExpiresAt); t != nil {
			p.Lease.ExpiresAt = *t
		}
	}

	if conditions.Valid && conditions.String != "" {
		if err := json.Unmarshal([]byte(conditions.String), &p.Conditions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
		}
	}
	if legalHold.Valid && legalHold.String != "" {
		if err := json.Unmarshal([]byte(legalHold.String), &p.LegalHold); err != nil {
			return nil, fmt.Errorf("failed to unmarshal legal hold: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(schedule), &p.ExecutionSchedule); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution schedule: %w", err)
	}

	return &p, nil
}

func encodeDocuments(p *retention.Policy) (conditions, legalHold, schedule string, err error) {
	if len(p.Conditions) > 0 {
		b, err := json.Marshal(p.Conditions)
		if err != nil {
			return "", "", "", fmt.Errorf("failed to marshal conditions: %w", err)
		}
		conditions = string(b)
	}
	b, err := json.Marshal(p.LegalHold)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal legal hold: %w", err)
	}
	legalHold = string(b)

	b, err = json.Marshal(p.ExecutionSchedule)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal execution schedule: %w", err)
	}
	schedule = string(b)
	return conditions, legalHold, schedule, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timeFromMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}
