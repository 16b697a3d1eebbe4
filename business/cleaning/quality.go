package cleaning

// DelayStats describes the distribution of delay seconds over the
// non-missing values of a cleaned subset. All fields are nil when the
// subset holds no delay values.
type DelayStats struct {
	Min  *float64 `json:"min"`
	Max  *float64 `json:"max"`
	Mean *float64 `json:"mean"`
	P50  *float64 `json:"p50"`
	P95  *float64 `json:"p95"`
}

// QualityReport is the machine-readable cleaning summary for one subset of
// one day. Write-only artifact, never read back by the pipeline.
type QualityReport struct {
	Dataset           string         `json:"dataset"`
	RowsBefore        int            `json:"rows_before"`
	RowsAfter         int            `json:"rows_after"`
	DroppedRows       int            `json:"dropped_rows"`
	NullsAfter        map[string]int `json:"nulls_after"`
	DelaySecondsStats DelayStats     `json:"delay_seconds_stats"`
}

// BuildQualityReport summarizes one cleaned subset. rowsBefore is the row
// count of the full reconciled table the subset was cleaned from.
func BuildQualityReport(dataset string, rowsBefore int, rows []CleanedStopEvent) QualityReport {
	report := QualityReport{
		Dataset:     dataset,
		RowsBefore:  rowsBefore,
		RowsAfter:   len(rows),
		DroppedRows: rowsBefore - len(rows),
		NullsAfter:  countNulls(rows),
	}
	delays := sortedDelays(rows)
	if len(delays) > 0 {
		minDelay := delays[0]
		maxDelay := delays[len(delays)-1]
		mean := meanOf(delays)
		p50 := quantile(delays, 0.5)
		p95 := quantile(delays, 0.95)
		report.DelaySecondsStats = DelayStats{
			Min:  &minDelay,
			Max:  &maxDelay,
			Mean: &mean,
			P50:  &p50,
			P95:  &p95,
		}
	}
	return report
}

// countNulls tallies missing values per column after cleaning. Columns
// that cannot be missing report zero so consumers see every column name.
func countNulls(rows []CleanedStopEvent) map[string]int {
	counts := map[string]int{
		"trip_uid":          0,
		"match_key":         0,
		"route_id":          0,
		"stop_id":           0,
		"is_unscheduled":    0,
		"scheduled_seconds": 0,
		"actual_seconds":    0,
		"delay_seconds":     0,
		"delay_minutes":     0,
		"service_date":      0,
		"hour":              0,
		"hour_sin":          0,
		"hour_cos":          0,
		"dow":               0,
		"is_weekend":        0,
		"is_holiday":        0,
		"scheduled_time":    0,
		"actual_time":       0,
	}
	for _, row := range rows {
		if row.RouteID == nil {
			counts["route_id"]++
		}
		if row.ScheduledSeconds == nil {
			counts["scheduled_seconds"]++
		}
		if row.ActualSeconds == nil {
			counts["actual_seconds"]++
		}
		if row.DelaySeconds == nil {
			counts["delay_seconds"]++
		}
		if row.DelayMinutes == nil {
			counts["delay_minutes"]++
		}
		if row.Hour == nil {
			counts["hour"]++
		}
		if row.HourSin == nil {
			counts["hour_sin"]++
		}
		if row.HourCos == nil {
			counts["hour_cos"]++
		}
		if row.ScheduledTime == nil {
			counts["scheduled_time"]++
		}
		if row.ActualTime == nil {
			counts["actual_time"]++
		}
	}
	return counts
}

func meanOf(values []float64) float64 {
	total := 0.0
	for _, value := range values {
		total += value
	}
	return total / float64(len(values))
}

// quantile returns the q quantile of ascending values using linear
// interpolation between closest ranks.
func quantile(values []float64, q float64) float64 {
	if len(values) == 1 {
		return values[0]
	}
	position := q * float64(len(values)-1)
	lower := int(position)
	if lower >= len(values)-1 {
		return values[len(values)-1]
	}
	fraction := position - float64(lower)
	return values[lower] + fraction*(values[lower+1]-values[lower])
}
