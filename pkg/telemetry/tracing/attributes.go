package tracing

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span names.
const (
	SpanRetentionRun  = "retention.run"
	SpanRetentionTick = "retention.tick"
	SpanArchive       = "retention.archive"
	SpanDelete        = "retention.delete"
)

// Attribute keys. Standard http.* keys come from semconv; everything
// retention specific lives under "chryso.".
const (
	AttrOrganizationID = "chryso.organization.id"
	AttrPolicyID       = "chryso.policy.id"
	AttrEntityType     = "chryso.entity_type"
	AttrCollection     = "chryso.collection"

	AttrRunID      = "chryso.run.id"
	AttrDryRun     = "chryso.run.dry_run"
	AttrCutoff     = "chryso.run.cutoff"
	AttrOutcome    = "chryso.run.outcome"
	AttrPolicyHeld = "chryso.run.policy_held"

	AttrMatched       = "chryso.records.matched"
	AttrArchived      = "chryso.records.archived"
	AttrArchivedBytes = "chryso.archive.bytes"
	AttrArchiveFormat = "chryso.archive.format"
	AttrDeleted       = "chryso.records.deleted"
	AttrHeldExcluded  = "chryso.records.held_excluded"

	AttrInstanceID = "chryso.scheduler.instance_id"
	AttrEvaluated  = "chryso.tick.evaluated"
	AttrEligible   = "chryso.tick.eligible"
	AttrSucceeded  = "chryso.tick.succeeded"
	AttrFailed     = "chryso.tick.failed"
	AttrSkipped    = "chryso.tick.skipped"
)

// PolicyAttributes identifies the policy a span works on.
func PolicyAttributes(organizationID, policyID, entityType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrOrganizationID, organizationID),
		attribute.String(AttrPolicyID, policyID),
		attribute.String(AttrEntityType, entityType),
	}
}
