package recordstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver ("pgx")
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver ("sqlite3")
	"github.com/pkg/errors"

	"chryso-hq/forms/pkg/retention"
)

// Supported SQL dialects.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

const recordsTable = "records"

// Schema creates the shared records table. Every governed collection lives
// in this table keyed by (collection, id); created_at is Unix milliseconds
// and data is the JSON document body.
const Schema = `
CREATE TABLE IF NOT EXISTS records (
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    organization_id TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    size_bytes BIGINT NOT NULL DEFAULT 0,
    data TEXT,
    PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_records_scope ON records(collection, organization_id, created_at);
`

// SQLConfig configures a SQL-backed record store.
type SQLConfig struct {
	// Dialect is "sqlite" or "postgres".
	Dialect string

	// DSN is the file path for SQLite or the connection string for
	// PostgreSQL.
	DSN string

	// MaxOpenConns caps the connection pool. Default: 10 (1 for SQLite).
	MaxOpenConns int

	// Migrate creates the records table when it does not exist.
	Migrate bool
}

// SQLStore implements retention.RecordStore on SQLite or PostgreSQL.
// Age, organization and exclusion filters run in SQL; conditions are
// evaluated on the decoded documents.
type SQLStore struct {
	db      *sqlx.DB
	dialect string
	builder sq.StatementBuilderType
	logger  *slog.Logger
}

type recordRow struct {
	ID             string  `db:"id"`
	Collection     string  `db:"collection"`
	OrganizationID string  `db:"organization_id"`
	CreatedAt      int64   `db:"created_at"`
	SizeBytes      int64   `db:"size_bytes"`
	Data           *string `db:"data"`
}

// OpenSQL connects to the database described by cfg.
func OpenSQL(cfg SQLConfig) (*SQLStore, error) {
	var driver string
	switch cfg.Dialect {
	case DialectSQLite:
		driver = "sqlite3"
	case DialectPostgres:
		driver = "pgx"
	default:
		return nil, errors.Errorf("unsupported record store dialect %q", cfg.Dialect)
	}
	if cfg.DSN == "" {
		return nil, errors.New("record store dsn cannot be empty")
	}

	db, err := sqlx.Open(driver, cfg.DSN)
	if err != nil {
		return nil, retention.NewStorageError(cfg.Dialect, "open", err)
	}

	maxOpen := cfg.MaxOpenConns
	if cfg.Dialect == DialectSQLite {
		maxOpen = 1
	} else if maxOpen == 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)

	s := NewSQLStore(db, cfg.Dialect)
	if cfg.Migrate {
		if err := s.Migrate(context.Background()); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewSQLStore wraps an existing connection.
func NewSQLStore(db *sqlx.DB, dialect string) *SQLStore {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if dialect == DialectPostgres {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &SQLStore{
		db:      db,
		dialect: dialect,
		builder: builder,
		logger:  slog.Default().With("component", "retention.recordstore."+dialect),
	}
}

// Migrate creates the records table and index.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return retention.NewStorageError(s.dialect, "migrate", errors.Wrap(err, "failed to create records schema"))
	}
	return nil
}

// Find returns records matching filter, oldest first.
func (s *SQLStore) Find(ctx context.Context, filter retention.RecordFilter) ([]*retention.Record, error) {
	query := s.builder.
		Select("id", "collection", "organization_id", "created_at", "size_bytes", "data").
		From(recordsTable).
		Where(sq.Eq{"collection": filter.Collection})

	if !filter.CreatedBefore.IsZero() {
		query = query.Where(sq.Lt{"created_at": filter.CreatedBefore.UnixMilli()})
	}
	if filter.OrganizationID != "" {
		query = query.Where(sq.Eq{"organization_id": filter.OrganizationID})
	}
	query = query.OrderBy("created_at ASC", "id ASC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build find query")
	}

	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, retention.NewStorageError(s.dialect, "find", errors.Wrapf(err, "failed to select from %s", filter.Collection))
	}

	// Held ids are filtered here so the query binds a fixed number of
	// parameters however many holds exist.
	excluded := make(map[string]struct{}, len(filter.ExcludeIDs))
	for _, id := range filter.ExcludeIDs {
		excluded[id] = struct{}{}
	}

	out := make([]*retention.Record, 0, len(rows))
	for _, row := range rows {
		if _, ok := excluded[row.ID]; ok {
			continue
		}
		rec, err := row.toRecord()
		if err != nil {
			return nil, retention.NewStorageError(s.dialect, "decode", err)
		}
		if retention.MatchAll(filter.Conditions, rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Delete removes records by id.
func (s *SQLStore) Delete(ctx context.Context, collection string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	sqlStr, args, err := s.builder.
		Delete(recordsTable).
		Where(sq.Eq{"collection": collection}).
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "failed to build delete query")
	}

	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, retention.NewStorageError(s.dialect, "delete", errors.Wrapf(err, "failed to delete from %s", collection))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, retention.NewStorageError(s.dialect, "delete", errors.Wrap(err, "failed to read rows affected"))
	}
	return n, nil
}

// Insert stores r, replacing any record with the same collection and id.
func (s *SQLStore) Insert(ctx context.Context, r *retention.Record) error {
	var data *string
	if r.Data != nil {
		b, err := json.Marshal(r.Data)
		if err != nil {
			return errors.Wrap(err, "failed to marshal record data")
		}
		str := string(b)
		data = &str
	}

	sqlStr, args, err := s.builder.
		Insert(recordsTable).
		Columns("collection", "id", "organization_id", "created_at", "size_bytes", "data").
		Values(r.Collection, r.ID, r.OrganizationID, r.CreatedAt.UnixMilli(), r.SizeBytes, data).
		Suffix("ON CONFLICT (collection, id) DO UPDATE SET organization_id = excluded.organization_id, created_at = excluded.created_at, size_bytes = excluded.size_bytes, data = excluded.data").
		ToSql()
	if err != nil {
		return errors.Wrap(err, "failed to build insert query")
	}

	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return retention.NewStorageError(s.dialect, "insert", errors.Wrapf(err, "failed to insert into %s", r.Collection))
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (row recordRow) toRecord() (*retention.Record, error) {
	rec := &retention.Record{
		ID:             row.ID,
		Collection:     row.Collection,
		OrganizationID: row.OrganizationID,
		CreatedAt:      time.UnixMilli(row.CreatedAt),
		SizeBytes:      row.SizeBytes,
	}
	if row.Data != nil && *row.Data != "" {
		if err := json.Unmarshal([]byte(*row.Data), &rec.Data); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal record %s", row.ID)
		}
	}
	return rec, nil
}
