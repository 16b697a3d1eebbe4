// Package cleaning validates, deduplicates and enriches a day's
// reconciled delay table and splits it into scheduled and unscheduled
// subsets with a quality report for each.
package cleaning

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/transitdatalab/delaylake/business/reconcile"
)

// RequiredColumns are the reconciled-table columns the pipeline refuses to
// run without. trip_uid is carried through when present but not required.
var RequiredColumns = []string{
	"match_key",
	"route_id",
	"stop_id",
	"is_unscheduled",
	"scheduled_seconds",
	"actual_seconds",
	"delay_seconds",
	"delay_minutes",
}

// SchemaError reports reconciled-table columns missing before cleaning.
// Fatal for the day's cleaning step.
type SchemaError struct {
	MissingColumns []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("reconciled table is missing required columns: %s",
		strings.Join(e.MissingColumns, ", "))
}

// Options carries the cleaning constants. The outlier bound is a deliberate
// carry-over from the source pipeline, overridable per run.
type Options struct {
	// OutlierBoundSeconds drops rows whose corrected delay magnitude
	// exceeds it, as presumed data-quality noise. Default 9000 (2.5 hours).
	OutlierBoundSeconds float64
	// Holidays marks cleaned rows falling on observed agency holidays.
	// Optional.
	Holidays *HolidayCalendar
}

// DefaultOptions returns cleaning options with the standard 2.5 hour
// outlier bound and the agency holiday calendar.
func DefaultOptions() Options {
	return Options{
		OutlierBoundSeconds: 9000,
		Holidays:            MakeHolidayCalendar(),
	}
}

// CleanedStopEvent is a reconciled stop event enriched with calendar and
// cyclic features. Never mutated after creation.
type CleanedStopEvent struct {
	TripUID          string   `parquet:"trip_uid" json:"trip_uid" db:"trip_uid"`
	MatchKey         string   `parquet:"match_key" json:"match_key" db:"match_key"`
	RouteID          *string  `parquet:"route_id,optional" json:"route_id" db:"route_id"`
	StopID           string   `parquet:"stop_id" json:"stop_id" db:"stop_id"`
	IsUnscheduled    bool     `parquet:"is_unscheduled" json:"is_unscheduled" db:"is_unscheduled"`
	ScheduledSeconds *float64 `parquet:"scheduled_seconds,optional" json:"scheduled_seconds" db:"scheduled_seconds"`
	ActualSeconds    *float64 `parquet:"actual_seconds,optional" json:"actual_seconds" db:"actual_seconds"`
	DelaySeconds     *float64 `parquet:"delay_seconds,optional" json:"delay_seconds" db:"delay_seconds"`
	DelayMinutes     *float64 `parquet:"delay_minutes,optional" json:"delay_minutes" db:"delay_minutes"`
	ServiceDate      string   `parquet:"service_date" json:"service_date" db:"service_date"`
	Hour             *int32   `parquet:"hour,optional" json:"hour" db:"hour"`
	HourSin          *float64 `parquet:"hour_sin,optional" json:"hour_sin" db:"hour_sin"`
	HourCos          *float64 `parquet:"hour_cos,optional" json:"hour_cos" db:"hour_cos"`
	Dow              int32    `parquet:"dow" json:"dow" db:"dow"`
	IsWeekend        bool     `parquet:"is_weekend" json:"is_weekend" db:"is_weekend"`
	IsHoliday        bool     `parquet:"is_holiday" json:"is_holiday" db:"is_holiday"`
	ScheduledTime    *string  `parquet:"scheduled_time,optional" json:"scheduled_time" db:"scheduled_time"`
	ActualTime       *string  `parquet:"actual_time,optional" json:"actual_time" db:"actual_time"`
}

// Result holds the two disjoint cleaned subsets for a day with their
// quality reports.
type Result struct {
	Scheduled         []CleanedStopEvent
	Unscheduled       []CleanedStopEvent
	ScheduledReport   QualityReport
	UnscheduledReport QualityReport
}

// ValidateSchema checks the reconciled table carries every required column.
func ValidateSchema(columns []string) error {
	var missing []string
	for _, required := range RequiredColumns {
		if indexOf(required, columns) < 0 {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{MissingColumns: missing}
	}
	return nil
}

func indexOf(name string, elements []string) int {
	for i, value := range elements {
		if name == value {
			return i
		}
	}
	return -1
}

// CleanDay runs the full cleaning pass over one day's reconciled table.
// columns is the column set of the stored table, checked before any row
// work. serviceDate is the batch calendar day in YYYY-MM-DD form.
func CleanDay(rows []reconcile.ReconciledStopEvent, columns []string, serviceDate string, opts Options) (*Result, error) {
	if err := ValidateSchema(columns); err != nil {
		return nil, err
	}
	serviceDay, err := time.Parse("2006-01-02", serviceDate)
	if err != nil {
		return nil, fmt.Errorf("invalid service date %q: %w", serviceDate, err)
	}

	rowsBefore := len(rows)

	kept := make([]reconcile.ReconciledStopEvent, 0, len(rows))
	for _, row := range rows {
		coerced := coerceTypes(row)
		// rows without both identifiers cannot name a stop event
		if len(coerced.MatchKey) == 0 || len(coerced.StopID) == 0 {
			continue
		}
		kept = append(kept, coerced)
	}
	kept = Deduplicate(kept)
	kept = filterDelayOutliers(kept, opts.OutlierBoundSeconds)

	cleaned := make([]CleanedStopEvent, 0, len(kept))
	for _, row := range kept {
		cleaned = append(cleaned, deriveFeatures(row, serviceDate, serviceDay, opts.Holidays))
	}

	result := Result{}
	for _, row := range cleaned {
		if row.IsUnscheduled {
			// rows with neither observed nor scheduled time carry no information
			if row.ActualSeconds == nil {
				continue
			}
			result.Unscheduled = append(result.Unscheduled, row)
			continue
		}
		// a scheduled row lacking its own schedule reference is contradictory
		if row.RouteID == nil || row.ScheduledSeconds == nil {
			continue
		}
		result.Scheduled = append(result.Scheduled, row)
	}
	result.ScheduledReport = BuildQualityReport("scheduled", rowsBefore, result.Scheduled)
	result.UnscheduledReport = BuildQualityReport("unscheduled", rowsBefore, result.Unscheduled)
	return &result, nil
}

// coerceTypes normalizes one reconciled row: identifier whitespace is
// trimmed and numeric NaN sentinels, which parquet frames written by other
// tooling sometimes carry instead of nulls, become missing values.
func coerceTypes(row reconcile.ReconciledStopEvent) reconcile.ReconciledStopEvent {
	row.TripUID = strings.TrimSpace(row.TripUID)
	row.MatchKey = strings.TrimSpace(row.MatchKey)
	row.StopID = strings.TrimSpace(row.StopID)
	if row.RouteID != nil {
		routeID := strings.TrimSpace(*row.RouteID)
		row.RouteID = &routeID
	}
	row.ScheduledSeconds = dropNaN(row.ScheduledSeconds)
	row.ActualSeconds = dropNaN(row.ActualSeconds)
	row.DelaySeconds = dropNaN(row.DelaySeconds)
	row.DelayMinutes = dropNaN(row.DelayMinutes)
	return row
}

func dropNaN(value *float64) *float64 {
	if value != nil && math.IsNaN(*value) {
		return nil
	}
	return value
}

// dedupeKey is the intended identity of a stop event. A retried feed poll
// or feed overlap can produce row-identical duplicates, so identity is the
// triple rather than a full-row comparison.
type dedupeKey struct {
	matchKey      string
	stopID        string
	actualSeconds float64
	actualMissing bool
}

// Deduplicate keeps the first row for each (match key, stop id, actual
// seconds) triple. Running it on already-deduplicated rows returns an
// identical table.
func Deduplicate(rows []reconcile.ReconciledStopEvent) []reconcile.ReconciledStopEvent {
	seen := make(map[dedupeKey]bool, len(rows))
	results := make([]reconcile.ReconciledStopEvent, 0, len(rows))
	for _, row := range rows {
		key := dedupeKey{matchKey: row.MatchKey, stopID: row.StopID}
		if row.ActualSeconds == nil {
			key.actualMissing = true
		} else {
			key.actualSeconds = *row.ActualSeconds
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		results = append(results, row)
	}
	return results
}

// filterDelayOutliers drops rows whose corrected delay lies outside the
// bound. Rows with a missing delay pass through.
func filterDelayOutliers(rows []reconcile.ReconciledStopEvent, bound float64) []reconcile.ReconciledStopEvent {
	results := make([]reconcile.ReconciledStopEvent, 0, len(rows))
	for _, row := range rows {
		if row.DelaySeconds != nil && (*row.DelaySeconds < -bound || *row.DelaySeconds > bound) {
			continue
		}
		results = append(results, row)
	}
	return results
}

// deriveFeatures attaches calendar and cyclic features to one row. The
// hour bucket uses the scheduled time when present, the observed time
// otherwise, and stays missing when the row has neither.
func deriveFeatures(row reconcile.ReconciledStopEvent, serviceDate string, serviceDay time.Time, holidays *HolidayCalendar) CleanedStopEvent {
	cleaned := CleanedStopEvent{
		TripUID:          row.TripUID,
		MatchKey:         row.MatchKey,
		RouteID:          row.RouteID,
		StopID:           row.StopID,
		IsUnscheduled:    row.IsUnscheduled,
		ScheduledSeconds: row.ScheduledSeconds,
		ActualSeconds:    row.ActualSeconds,
		DelaySeconds:     row.DelaySeconds,
		DelayMinutes:     row.DelayMinutes,
		ServiceDate:      serviceDate,
	}

	baseSeconds := row.ScheduledSeconds
	if baseSeconds == nil {
		baseSeconds = row.ActualSeconds
	}
	if baseSeconds != nil {
		hour := int32(int(*baseSeconds)/3600) % 24
		hourSin := math.Sin(2 * math.Pi * float64(hour) / 24)
		hourCos := math.Cos(2 * math.Pi * float64(hour) / 24)
		cleaned.Hour = &hour
		cleaned.HourSin = &hourSin
		cleaned.HourCos = &hourCos
	}

	// Monday=0 through Sunday=6, weekend is Saturday or Sunday
	cleaned.Dow = int32((int(serviceDay.Weekday()) + 6) % 7)
	cleaned.IsWeekend = cleaned.Dow >= 5
	cleaned.IsHoliday = holidays.IsHoliday(serviceDay)

	if formatted := secondsToWallClock(row.ScheduledSeconds); formatted != nil {
		cleaned.ScheduledTime = formatted
	}
	if formatted := secondsToWallClock(row.ActualSeconds); formatted != nil {
		cleaned.ActualTime = formatted
	}
	return cleaned
}

// secondsToWallClock formats float seconds as HH:MM:SS on a civil day,
// nil-safe so a missing value never renders as a textual "nan".
func secondsToWallClock(seconds *float64) *string {
	if seconds == nil {
		return nil
	}
	whole := int(*seconds)
	formatted := reconcile.WallClockString(&whole)
	return &formatted
}

// sortedDelays collects the non-missing delay values of rows in ascending
// order, for distribution statistics.
func sortedDelays(rows []CleanedStopEvent) []float64 {
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		if row.DelaySeconds != nil {
			values = append(values, *row.DelaySeconds)
		}
	}
	sort.Float64s(values)
	return values
}
