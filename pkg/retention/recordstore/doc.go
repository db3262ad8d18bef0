// Package recordstore provides retention.RecordStore backends for the
// governed document collections.
//
// SQLStore keeps every collection in a single "records" table and builds
// its statements with squirrel, so the same code serves SQLite (mattn
// go-sqlite3) and PostgreSQL (pgx stdlib) by switching placeholder format.
// MemoryStore is an in-process equivalent for tests.
package recordstore
