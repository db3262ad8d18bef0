package engine

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"chryso-hq/forms/pkg/retention"
)

// Config contains configuration for the execution engine.
type Config struct {
	// BatchSize is the maximum number of ids passed to a single
	// RecordStore.Delete call.
	// Default: 500.
	BatchSize int

	// DeleteRate limits delete batches per second across all runs sharing
	// the engine. Zero disables throttling.
	// Default: 0.
	DeleteRate float64

	// DeleteBurst is the token bucket size used with DeleteRate.
	// Default: 1.
	DeleteBurst int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:   500,
		DeleteRate:  0,
		DeleteBurst: 1,
	}
}

// Validate validates the engine configuration.
func (c *Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.DeleteRate < 0 {
		return fmt.Errorf("delete rate must not be negative, got %v", c.DeleteRate)
	}
	if c.DeleteRate > 0 && c.DeleteBurst < 1 {
		return fmt.Errorf("delete burst must be at least 1 when delete rate is set, got %d", c.DeleteBurst)
	}
	return nil
}

// Deps are the collaborators an Engine runs against. Policies and Records
// are required.
type Deps struct {
	Policies retention.PolicyStore
	Records  retention.RecordStore

	// Holds supplies record-level legal holds. Nil means no record is held.
	Holds retention.HoldStore

	// Archiver is required only by policies with ArchiveBeforeDelete.
	Archiver retention.Archiver

	// Notifier receives one event per non-dry run.
	Notifier retention.Notifier

	// Observer is told about every finished run, typically a metrics
	// collector.
	Observer Observer

	// Tracer starts the run, archive and delete spans. Nil disables
	// tracing.
	Tracer trace.Tracer

	Logger *slog.Logger
}

// Observer receives finished run results.
type Observer interface {
	ObserveRun(res *Result)
}
