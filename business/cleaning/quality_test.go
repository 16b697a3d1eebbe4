package cleaning

import (
	"math"
	"testing"

	"github.com/matryer/is"
)

func TestBuildQualityReport(t *testing.T) {
	is := is.New(t)

	rows := []CleanedStopEvent{
		cleanedRowWithDelay(float64Pointer(-60)),
		cleanedRowWithDelay(float64Pointer(0)),
		cleanedRowWithDelay(float64Pointer(60)),
		cleanedRowWithDelay(float64Pointer(120)),
		cleanedRowWithDelay(nil),
	}

	report := BuildQualityReport("scheduled", 12, rows)
	is.Equal(report.Dataset, "scheduled")
	is.Equal(report.RowsBefore, 12)
	is.Equal(report.RowsAfter, 5)
	is.Equal(report.DroppedRows, 7)

	// statistics cover the four non-missing delays
	is.Equal(*report.DelaySecondsStats.Min, float64(-60))
	is.Equal(*report.DelaySecondsStats.Max, float64(120))
	is.Equal(*report.DelaySecondsStats.Mean, float64(30))
	is.Equal(*report.DelaySecondsStats.P50, float64(30))
	is.True(math.Abs(*report.DelaySecondsStats.P95-111) < 1e-9)

	is.Equal(report.NullsAfter["delay_seconds"], 1)
	is.Equal(report.NullsAfter["match_key"], 0)
}

func TestBuildQualityReport_emptySubset(t *testing.T) {
	is := is.New(t)

	report := BuildQualityReport("unscheduled", 8, nil)
	is.Equal(report.RowsAfter, 0)
	is.Equal(report.DroppedRows, 8)

	// no rows means no distribution, fields stay missing rather than zero
	is.Equal(report.DelaySecondsStats.Min, nil)
	is.Equal(report.DelaySecondsStats.Max, nil)
	is.Equal(report.DelaySecondsStats.Mean, nil)
	is.Equal(report.DelaySecondsStats.P50, nil)
	is.Equal(report.DelaySecondsStats.P95, nil)

	// every column still appears in the null counts
	is.Equal(len(report.NullsAfter), 18)
	is.Equal(report.NullsAfter["scheduled_time"], 0)
}

func TestQuantile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		q      float64
		want   float64
	}{
		{
			name:   "single value",
			values: []float64{42},
			q:      0.95,
			want:   42,
		},
		{
			name:   "median of even count interpolates",
			values: []float64{0, 10, 20, 30},
			q:      0.5,
			want:   15,
		},
		{
			name:   "maximum",
			values: []float64{0, 10, 20, 30},
			q:      1,
			want:   30,
		},
		{
			name:   "upper quartile interpolates between closest ranks",
			values: []float64{0, 10, 20, 30},
			q:      0.75,
			want:   22.5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := quantile(tt.values, tt.q); got != tt.want {
				t.Errorf("quantile() = %v, want %v", got, tt.want)
			}
		})
	}
}

func cleanedRowWithDelay(delay *float64) CleanedStopEvent {
	route := "2"
	return CleanedStopEvent{
		TripUID:      "2023-07-04_021150_2..S08R",
		MatchKey:     "021150_2..S08R",
		RouteID:      &route,
		StopID:       "201S",
		ServiceDate:  "2023-07-04",
		DelaySeconds: delay,
	}
}
