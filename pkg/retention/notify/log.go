package notify

import (
	"context"
	"log/slog"

	"chryso-hq/forms/pkg/retention"
)

// LogNotifier writes run events to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "retention.audit")}
}

// Notify logs ev. Failed runs are logged at warn level.
func (n *LogNotifier) Notify(ctx context.Context, ev *retention.RunEvent) error {
	attrs := []any{
		"run_id", ev.RunID,
		"policy_id", ev.PolicyID,
		"organization_id", ev.OrganizationID,
		"entity_type", ev.EntityType,
		"outcome", ev.Outcome,
		"cutoff", ev.Cutoff,
		"archived", ev.Archived,
		"deleted", ev.Deleted,
		"archived_bytes", ev.ArchivedBytes,
		"policy_held", ev.PolicyHeld,
		"duration", ev.Duration,
	}
	if ev.Outcome == retention.OutcomeFailed {
		n.logger.WarnContext(ctx, "retention run audit", append(attrs, "error", ev.Error)...)
		return nil
	}
	n.logger.InfoContext(ctx, "retention run audit", attrs...)
	return nil
}
