// Package policystore provides retention.PolicyStore and retention.HoldStore
// backends.
//
// MemoryStore keeps everything in process and is used by tests and by the
// "memory" storage backend. SQLiteStore persists policies and record holds
// in a pure-Go SQLite database (modernc.org/sqlite) using WAL mode.
//
// Both backends implement the per-policy run lease as a compare-and-set: a
// lease is granted when it is free, expired, or already held by the caller.
//
//	store, err := policystore.NewSQLiteStore(policystore.SQLiteConfig{Path: "data/policies.db"})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	ok, err := store.AcquireLease(ctx, policyID, "scheduler-a", 30*time.Minute, time.Now())
package policystore
