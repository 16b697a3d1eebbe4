// Package artifact provides the storage boundary for the per-day delay
// tables and quality reports, addressed by date-partitioned object names.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/transitdatalab/delaylake/business/cleaning"
	"github.com/transitdatalab/delaylake/business/reconcile"
)

const (
	parquetContentType = "application/octet-stream"
	jsonContentType    = "application/json"
)

// Store is the object storage collaborator. A day's artifacts overwrite
// any prior run for that day.
type Store interface {
	// Upload writes data under objectName, replacing any existing object.
	Upload(ctx context.Context, objectName string, data []byte, contentType string) error
	// Download retrieves the object stored under objectName.
	Download(ctx context.Context, objectName string) ([]byte, error)
}

// ProcessedDelayObject names the flat reconciled table for one day.
func ProcessedDelayObject(day string) string {
	return fmt.Sprintf("processed/gtfs_with_delays/date=%s/mta_delays_%s.parquet", day, day)
}

// CleanedSubsetObject names a cleaned subset table for one day. subset is
// "scheduled" or "unscheduled".
func CleanedSubsetObject(day, subset string) string {
	return fmt.Sprintf("cleaned/gtfs_clean_%s/date=%s/gtfs_%s_%s.parquet", subset, day, subset, day)
}

// QualityReportObject names the quality report mirroring a cleaned subset.
func QualityReportObject(day, subset string) string {
	return fmt.Sprintf("cleaned/gtfs_clean_%s/date=%s/quality_report_%s.json", subset, day, day)
}

// WriteReconciled stores a day's reconciled table in parquet form.
func WriteReconciled(ctx context.Context, store Store, day string, rows []reconcile.ReconciledStopEvent) error {
	data, err := encodeParquet(rows)
	if err != nil {
		return fmt.Errorf("encoding reconciled table for %s: %w", day, err)
	}
	return store.Upload(ctx, ProcessedDelayObject(day), data, parquetContentType)
}

// ReadReconciled retrieves a day's reconciled table along with the column
// names present in the stored file, for schema validation before cleaning.
func ReadReconciled(ctx context.Context, store Store, day string) ([]reconcile.ReconciledStopEvent, []string, error) {
	data, err := store.Download(ctx, ProcessedDelayObject(day))
	if err != nil {
		return nil, nil, err
	}
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("opening reconciled table for %s: %w", day, err)
	}
	columns := make([]string, 0, len(file.Schema().Fields()))
	for _, field := range file.Schema().Fields() {
		columns = append(columns, field.Name())
	}
	rows, err := parquet.Read[reconcile.ReconciledStopEvent](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("reading reconciled table for %s: %w", day, err)
	}
	return rows, columns, nil
}

// WriteCleanedSubset stores one cleaned subset table in parquet form.
func WriteCleanedSubset(ctx context.Context, store Store, day, subset string, rows []cleaning.CleanedStopEvent) error {
	data, err := encodeParquet(rows)
	if err != nil {
		return fmt.Errorf("encoding cleaned %s table for %s: %w", subset, day, err)
	}
	return store.Upload(ctx, CleanedSubsetObject(day, subset), data, parquetContentType)
}

// ReadCleanedSubset retrieves one cleaned subset table.
func ReadCleanedSubset(ctx context.Context, store Store, day, subset string) ([]cleaning.CleanedStopEvent, error) {
	data, err := store.Download(ctx, CleanedSubsetObject(day, subset))
	if err != nil {
		return nil, err
	}
	return parquet.Read[cleaning.CleanedStopEvent](bytes.NewReader(data), int64(len(data)))
}

// WriteQualityReport stores a subset's quality report as json.
func WriteQualityReport(ctx context.Context, store Store, day string, report cleaning.QualityReport) error {
	data, err := json.MarshalIndent(report, "", " ")
	if err != nil {
		return fmt.Errorf("encoding %s quality report for %s: %w", report.Dataset, day, err)
	}
	return store.Upload(ctx, QualityReportObject(day, report.Dataset), data, jsonContentType)
}

// encodeParquet writes rows into an in-memory parquet file.
func encodeParquet[T any](rows []T) ([]byte, error) {
	var buffer bytes.Buffer
	if err := parquet.Write[T](&buffer, rows); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
