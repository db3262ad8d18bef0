package archive

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"

	"chryso-hq/forms/pkg/retention"
)

// Exporter serializes records to a writer.
type Exporter interface {
	Export(ctx context.Context, records []*retention.Record, w io.Writer) error

	// Extension is the file extension without a leading dot.
	Extension() string
}

// NewExporter returns the exporter for format.
func NewExporter(format retention.ArchiveFormat) (Exporter, error) {
	switch format {
	case retention.FormatJSON, "":
		return NewJSONExporter(true), nil
	case retention.FormatCSV:
		return NewCSVExporter(true), nil
	case retention.FormatCompressed:
		return NewCompressedExporter(gzip.DefaultCompression), nil
	}
	return nil, fmt.Errorf("unsupported archive format %q", format)
}

// JSONExporter writes records as a JSON array.
type JSONExporter struct {
	// Pretty enables indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Extension implements Exporter.
func (e *JSONExporter) Extension() string { return "json" }

// Export writes records as a single JSON array. An empty slice is "[]".
func (e *JSONExporter) Export(ctx context.Context, records []*retention.Record, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []*retention.Record{}
	}

	enc := json.NewEncoder(w)
	if e.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(records); err != nil {
		return retention.NewArchiveError(retention.FormatJSON, len(records), err)
	}
	return nil
}

// CSVExporter writes one row per record. The document body is embedded as
// a JSON string in the last column.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Extension implements Exporter.
func (e *CSVExporter) Extension() string { return "csv" }

var csvHeader = []string{"id", "organization_id", "collection", "created_at", "size_bytes", "data"}

// Export writes records in CSV format.
func (e *CSVExporter) Export(ctx context.Context, records []*retention.Record, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(csvHeader); err != nil {
			return retention.NewArchiveError(retention.FormatCSV, len(records), err)
		}
	}

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := recordToRow(r)
		if err != nil {
			return retention.NewArchiveError(retention.FormatCSV, len(records), err)
		}
		if err := writer.Write(row); err != nil {
			return retention.NewArchiveError(retention.FormatCSV, len(records), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return retention.NewArchiveError(retention.FormatCSV, len(records), err)
	}
	return nil
}

func recordToRow(r *retention.Record) ([]string, error) {
	data := ""
	if r.Data != nil {
		b, err := json.Marshal(r.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data for record %s: %w", r.ID, err)
		}
		data = string(b)
	}
	return []string{
		r.ID,
		r.OrganizationID,
		r.Collection,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
		strconv.FormatInt(r.SizeBytes, 10),
		data,
	}, nil
}

// CompressedExporter writes gzip-compressed JSON Lines, one record per line.
type CompressedExporter struct {
	Level int
}

// NewCompressedExporter creates a gzip exporter at the given level.
func NewCompressedExporter(level int) *CompressedExporter {
	return &CompressedExporter{Level: level}
}

// Extension implements Exporter.
func (e *CompressedExporter) Extension() string { return "jsonl.gz" }

// Export writes records as gzip-compressed JSON Lines.
func (e *CompressedExporter) Export(ctx context.Context, records []*retention.Record, w io.Writer) error {
	zw, err := gzip.NewWriterLevel(w, e.Level)
	if err != nil {
		return retention.NewArchiveError(retention.FormatCompressed, len(records), err)
	}

	enc := json.NewEncoder(zw)
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return err
		}
		if err := enc.Encode(r); err != nil {
			zw.Close()
			return retention.NewArchiveError(retention.FormatCompressed, len(records), err)
		}
	}

	if err := zw.Close(); err != nil {
		return retention.NewArchiveError(retention.FormatCompressed, len(records), err)
	}
	return nil
}
