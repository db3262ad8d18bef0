// Package engine executes retention policies.
//
// A run of a policy proceeds in order:
//
//  1. The cutoff is computed from the retention period.
//  2. Candidates are records of the policy's organization created strictly
//     before the cutoff that satisfy every condition and are not under a
//     record-level legal hold. An active policy-level hold selects nothing.
//  3. Candidates are fetched from the entity type's collection, or from every
//     governed collection for entity type "all".
//  4. With archiveBeforeDelete, candidates are archived per collection. A
//     policy without an archive location fails with a ConfigurationError.
//  5. Candidates are deleted in batches, optionally throttled.
//  6. Success adds to the policy's counters and sets lastExecuted; failure
//     increments the error count.
//
// Nothing is rolled back on failure. Deleting by id is idempotent, so the
// next run simply picks up whatever survived.
//
// Usage:
//
//	eng, err := engine.New(engine.DefaultConfig(), engine.Deps{
//	    Policies: policies,
//	    Records:  records,
//	    Holds:    policies,
//	    Archiver: archive.NewFileArchiver(root),
//	})
//	res := eng.Execute(ctx, policy, time.Now())
//	if res.Err != nil {
//	    ...
//	}
package engine
