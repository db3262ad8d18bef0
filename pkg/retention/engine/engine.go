package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"chryso-hq/forms/pkg/retention"
	"chryso-hq/forms/pkg/telemetry/logging"
	"chryso-hq/forms/pkg/telemetry/tracing"
)

// Engine executes retention policies: it selects expired records, archives
// them when the policy asks for it, deletes them and records the outcome on
// the policy. Engine is safe for concurrent use; runs of different policies
// share only the delete limiter.
type Engine struct {
	config   *Config
	policies retention.PolicyStore
	records  retention.RecordStore
	holds    retention.HoldStore
	archiver retention.Archiver
	notifier retention.Notifier
	observer Observer
	limiter  *rate.Limiter
	tracer   trace.Tracer
	logger   *slog.Logger
}

// New creates an engine. A nil config uses DefaultConfig.
func New(config *Config, deps Deps) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if deps.Policies == nil {
		return nil, fmt.Errorf("policy store cannot be nil")
	}
	if deps.Records == nil {
		return nil, fmt.Errorf("record store cannot be nil")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		config:   config,
		policies: deps.Policies,
		records:  deps.Records,
		holds:    deps.Holds,
		archiver: deps.Archiver,
		notifier: deps.Notifier,
		observer: deps.Observer,
		tracer:   tracing.OrNoop(deps.Tracer),
		logger:   logger.With("component", "retention.engine"),
	}
	if config.DeleteRate > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(config.DeleteRate), config.DeleteBurst)
	}
	return e, nil
}

// Execute runs p as of now and records the outcome on the policy.
// The returned Result is never nil; Result.Err carries the failure.
//
// Deletions already performed are not rolled back when a later step fails.
func (e *Engine) Execute(ctx context.Context, p *retention.Policy, now time.Time) *Result {
	return e.run(ctx, p, now, false)
}

// Preview selects the records Execute would act on without archiving,
// deleting, recording or notifying.
func (e *Engine) Preview(ctx context.Context, p *retention.Policy, now time.Time) *Result {
	return e.run(ctx, p, now, true)
}

// collectionBatch is the candidate set found in one collection.
type collectionBatch struct {
	collection string
	records    []*retention.Record
}

func (e *Engine) run(ctx context.Context, p *retention.Policy, now time.Time, dryRun bool) *Result {
	res := &Result{
		RunID:          uuid.NewString(),
		PolicyID:       p.ID,
		OrganizationID: p.OrganizationID,
		EntityType:     p.EntityType,
		DryRun:         dryRun,
		StartedAt:      now,
	}
	started := time.Now()

	ctx, span := e.tracer.Start(ctx, tracing.SpanRetentionRun,
		trace.WithAttributes(tracing.PolicyAttributes(p.OrganizationID, p.ID, string(p.EntityType))...),
		trace.WithAttributes(
			attribute.String(tracing.AttrRunID, res.RunID),
			attribute.Bool(tracing.AttrDryRun, dryRun),
		),
	)
	defer span.End()

	ctx = logging.WithOrganizationID(ctx, p.OrganizationID)
	ctx = logging.WithPolicyID(ctx, p.ID)
	ctx = logging.WithRunID(ctx, res.RunID)

	e.logger.DebugContext(ctx, "retention run started",
		"entity_type", p.EntityType,
		"dry_run", dryRun,
	)

	res.Err = e.process(ctx, p, now, res)
	res.Duration = time.Since(started)

	if !dryRun {
		e.finish(ctx, p, now, res)
	}
	e.log(ctx, res)
	annotate(span, res)
	return res
}

// annotate copies the run counters onto span and sets its status.
func annotate(span trace.Span, res *Result) {
	span.SetAttributes(
		attribute.String(tracing.AttrCutoff, res.Cutoff.Format(time.RFC3339)),
		attribute.Int64(tracing.AttrMatched, res.Matched),
		attribute.Int64(tracing.AttrArchived, res.Archived),
		attribute.Int64(tracing.AttrArchivedBytes, res.ArchivedBytes),
		attribute.Int64(tracing.AttrDeleted, res.Deleted),
		attribute.Int(tracing.AttrHeldExcluded, res.HeldExcluded),
		attribute.Bool(tracing.AttrPolicyHeld, res.PolicyHeld),
		attribute.String(tracing.AttrOutcome, string(res.Outcome())),
	)
	tracing.SetStatus(span, res.Err)
}

// process performs the selection, archive and delete steps, filling res as
// it goes.
func (e *Engine) process(ctx context.Context, p *retention.Policy, now time.Time, res *Result) error {
	res.Cutoff = retention.ComputeCutoffDate(p, now)

	collections := p.EntityType.Collections()
	if len(collections) == 0 {
		return retention.NewConfigurationError(p.ID, "entityType",
			fmt.Sprintf("entity type %q has no collections", p.EntityType))
	}

	if p.LegalHold.Active(now) {
		res.PolicyHeld = true
		return nil
	}

	if p.ArchiveBeforeDelete {
		if p.ArchiveLocation == "" {
			return retention.NewConfigurationError(p.ID, "archiveLocation",
				"archiveBeforeDelete is enabled but no archive location is set")
		}
		if e.archiver == nil {
			return retention.NewConfigurationError(p.ID, "archiveLocation",
				"archiveBeforeDelete is enabled but no archiver is configured")
		}
	}

	batches, err := e.collect(ctx, p, collections, now, res)
	if err != nil {
		return err
	}
	if res.DryRun || res.Matched == 0 {
		return nil
	}

	if p.ArchiveBeforeDelete {
		if err := e.archive(ctx, p, batches, res); err != nil {
			return err
		}
	}

	return e.delete(ctx, batches, res)
}

// collect fetches candidate records from every collection of the policy.
func (e *Engine) collect(ctx context.Context, p *retention.Policy, collections []string, now time.Time, res *Result) ([]collectionBatch, error) {
	batches := make([]collectionBatch, 0, len(collections))
	for _, collection := range collections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var held []string
		if e.holds != nil {
			ids, err := e.holds.HeldRecordIDs(ctx, p.OrganizationID, collection, now)
			if err != nil {
				return nil, fmt.Errorf("load record holds for %s: %w", collection, err)
			}
			held = ids
		}
		res.HeldExcluded += len(held)

		records, err := e.records.Find(ctx, retention.RecordFilter{
			Collection:     collection,
			OrganizationID: p.OrganizationID,
			CreatedBefore:  res.Cutoff,
			ExcludeIDs:     held,
			Conditions:     p.Conditions,
		})
		if err != nil {
			return nil, fmt.Errorf("find expired records in %s: %w", collection, err)
		}

		res.Matched += int64(len(records))
		batches = append(batches, collectionBatch{collection: collection, records: records})
	}
	return batches, nil
}

// archive writes one archive per non-empty collection.
func (e *Engine) archive(ctx context.Context, p *retention.Policy, batches []collectionBatch, res *Result) error {
	for _, b := range batches {
		if len(b.records) == 0 {
			continue
		}
		actx, span := e.tracer.Start(ctx, tracing.SpanArchive, trace.WithAttributes(
			attribute.String(tracing.AttrCollection, b.collection),
			attribute.String(tracing.AttrArchiveFormat, string(p.ArchiveFormat)),
		))
		out, err := e.archiver.Archive(actx, &retention.ArchiveRequest{
			Location:       p.ArchiveLocation,
			Format:         p.ArchiveFormat,
			Collection:     b.collection,
			OrganizationID: p.OrganizationID,
			Records:        b.records,
		})
		if err != nil {
			err = fmt.Errorf("archive %s: %w", b.collection, err)
			tracing.SetStatus(span, err)
			span.End()
			return err
		}
		span.SetAttributes(
			attribute.Int(tracing.AttrArchived, out.Records),
			attribute.Int64(tracing.AttrArchivedBytes, out.Bytes),
		)
		span.End()
		res.Archived += int64(out.Records)
		res.ArchivedBytes += out.Bytes
		res.ArchiveLocations = append(res.ArchiveLocations, out.Path)
	}
	return nil
}

// delete removes the candidates in batches of at most BatchSize ids.
func (e *Engine) delete(ctx context.Context, batches []collectionBatch, res *Result) error {
	for _, b := range batches {
		if len(b.records) == 0 {
			continue
		}
		if err := e.deleteCollection(ctx, b, res); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) deleteCollection(ctx context.Context, b collectionBatch, res *Result) (err error) {
	ctx, span := e.tracer.Start(ctx, tracing.SpanDelete,
		trace.WithAttributes(attribute.String(tracing.AttrCollection, b.collection)))
	var deleted int64
	defer func() {
		span.SetAttributes(attribute.Int64(tracing.AttrDeleted, deleted))
		tracing.SetStatus(span, err)
		span.End()
	}()

	for start := 0; start < len(b.records); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(b.records))

		if err := ctx.Err(); err != nil {
			return err
		}
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("delete throttle: %w", err)
			}
		}

		ids := make([]string, 0, end-start)
		for _, r := range b.records[start:end] {
			ids = append(ids, r.ID)
		}

		n, err := e.records.Delete(ctx, b.collection, ids)
		deleted += n
		res.Deleted += n
		if err != nil {
			return fmt.Errorf("delete from %s: %w", b.collection, err)
		}
	}
	return nil
}

// finish persists the outcome and emits the run event. Bookkeeping ignores
// cancellation of ctx.
func (e *Engine) finish(ctx context.Context, p *retention.Policy, now time.Time, res *Result) {
	bctx := context.WithoutCancel(ctx)

	if res.Err == nil {
		if err := e.policies.RecordSuccess(bctx, p.ID, res.Archived, res.Deleted, res.ArchivedBytes, now); err != nil {
			res.Err = fmt.Errorf("record success: %w", err)
		}
	}
	if res.Err != nil {
		if err := e.policies.RecordFailure(bctx, p.ID, res.Err.Error(), now); err != nil {
			e.logger.ErrorContext(ctx, "failed to record retention failure", "error", err)
			res.Err = errors.Join(res.Err, fmt.Errorf("record failure: %w", err))
		}
	}

	if e.observer != nil {
		e.observer.ObserveRun(res)
	}
	if e.notifier != nil {
		if err := e.notifier.Notify(bctx, res.Event()); err != nil {
			e.logger.WarnContext(ctx, "failed to publish retention event", "error", err)
		}
	}
}

func (e *Engine) log(ctx context.Context, res *Result) {
	attrs := []any{
		"entity_type", res.EntityType,
		"cutoff", res.Cutoff,
		"matched", res.Matched,
		"archived", res.Archived,
		"archived_bytes", res.ArchivedBytes,
		"deleted", res.Deleted,
		"held_excluded", res.HeldExcluded,
		"duration", res.Duration,
	}
	switch {
	case res.Err != nil:
		e.logger.ErrorContext(ctx, "retention run failed", append(attrs, "error", res.Err)...)
	case res.PolicyHeld:
		e.logger.InfoContext(ctx, "retention run skipped by legal hold", attrs...)
	case res.DryRun:
		e.logger.InfoContext(ctx, "retention preview completed", attrs...)
	default:
		e.logger.InfoContext(ctx, "retention run completed", attrs...)
	}
}
