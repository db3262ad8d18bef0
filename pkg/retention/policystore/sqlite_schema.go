package policystore

// SchemaVersion is the current policy database schema version.
const SchemaVersion = 1

// Schema creates the policy and record hold tables. Timestamps are stored as
// Unix milliseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS retention_policies (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    name TEXT,
    description TEXT,

    retention_value INTEGER NOT NULL,
    retention_unit TEXT NOT NULL,

    archive_before_delete INTEGER NOT NULL DEFAULT 0,
    archive_location TEXT,
    archive_format TEXT,

    -- JSON documents
    conditions TEXT,
    legal_hold TEXT,
    execution_schedule TEXT NOT NULL,

    is_active INTEGER NOT NULL DEFAULT 1,

    -- Stats, owned by the scheduler
    last_executed INTEGER,
    records_archived INTEGER NOT NULL DEFAULT 0,
    records_deleted INTEGER NOT NULL DEFAULT 0,
    total_size_archived INTEGER NOT NULL DEFAULT 0,
    error_count INTEGER NOT NULL DEFAULT 0,
    last_error TEXT,
    last_error_at INTEGER,

    -- Run lease
    lease_owner TEXT,
    lease_expires_at INTEGER,

    created_by TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_policies_org_entity_active
    ON retention_policies(organization_id, entity_type) WHERE is_active = 1;
CREATE INDEX IF NOT EXISTS idx_policies_active ON retention_policies(is_active);

CREATE TABLE IF NOT EXISTS record_holds (
    id TEXT PRIMARY KEY,
    organization_id TEXT NOT NULL,
    collection TEXT NOT NULL,
    record_id TEXT NOT NULL,
    reason TEXT NOT NULL,
    placed_by TEXT,
    hold_until INTEGER,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_holds_org_collection ON record_holds(organization_id, collection);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`

// InsertSchemaVersion records the schema version once.
const InsertSchemaVersion = `
INSERT OR IGNORE INTO schema_version (version, applied_at)
VALUES (?, CAST(strftime('%s', 'now') AS INTEGER) * 1000);
`

// GetSchemaVersion returns the highest applied schema version.
const GetSchemaVersion = `SELECT MAX(version) FROM schema_version;`

const policyColumns = `id, organization_id, entity_type, name, description,
    retention_value, retention_unit,
    archive_before_delete, archive_location, archive_format,
    conditions, legal_hold, execution_schedule,
    is_active,
    last_executed, records_archived, records_deleted, total_size_archived,
    error_count, last_error, last_error_at,
    lease_owner, lease_expires_at,
    created_by, created_at, updated_at`

const holdColumns = `id, organization_id, collection, record_id, reason, placed_by, hold_until, created_at`
