package artifact

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/matryer/is"

	"github.com/transitdatalab/delaylake/business/cleaning"
	"github.com/transitdatalab/delaylake/business/reconcile"
)

func TestObjectNames(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "processed delay table",
			got:  ProcessedDelayObject("2023-03-01"),
			want: "processed/gtfs_with_delays/date=2023-03-01/mta_delays_2023-03-01.parquet",
		},
		{
			name: "cleaned scheduled subset",
			got:  CleanedSubsetObject("2023-03-01", "scheduled"),
			want: "cleaned/gtfs_clean_scheduled/date=2023-03-01/gtfs_scheduled_2023-03-01.parquet",
		},
		{
			name: "cleaned unscheduled subset",
			got:  CleanedSubsetObject("2023-03-01", "unscheduled"),
			want: "cleaned/gtfs_clean_unscheduled/date=2023-03-01/gtfs_unscheduled_2023-03-01.parquet",
		},
		{
			name: "quality report",
			got:  QualityReportObject("2023-03-01", "scheduled"),
			want: "cleaned/gtfs_clean_scheduled/date=2023-03-01/quality_report_2023-03-01.json",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("object name = %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestReconciledRoundTrip(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := &FSStore{Root: t.TempDir()}

	route := "2"
	scheduled := float64(86280)
	actual := float64(86520)
	delay := float64(240)
	delayMinutes := float64(4)
	rows := []reconcile.ReconciledStopEvent{
		{
			TripUID:          "2023-03-01_021150_2..S08R",
			MatchKey:         "021150_2..S08R",
			RouteID:          &route,
			StopID:           "201S",
			ScheduledSeconds: &scheduled,
			ActualSeconds:    &actual,
			DelaySeconds:     &delay,
			DelayMinutes:     &delayMinutes,
		},
		{
			TripUID:       "2023-03-01_550000_GS.S01R",
			MatchKey:      "550000_GS.S01R",
			StopID:        "901N",
			IsUnscheduled: true,
			ActualSeconds: &actual,
		},
	}

	is.NoErr(WriteReconciled(ctx, store, "2023-03-01", rows))
	readBack, columns, err := ReadReconciled(ctx, store, "2023-03-01")
	is.NoErr(err)
	is.Equal(len(readBack), 2)
	is.Equal(readBack[0].MatchKey, "021150_2..S08R")
	is.Equal(*readBack[0].DelaySeconds, delay)
	is.Equal(readBack[1].IsUnscheduled, true)
	is.Equal(readBack[1].ScheduledSeconds, nil)

	// stored column set feeds schema validation before cleaning
	is.NoErr(cleaning.ValidateSchema(columns))
}

func TestQualityReportRoundTrip(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	store := &FSStore{Root: t.TempDir()}

	report := cleaning.BuildQualityReport("unscheduled", 10, nil)
	is.NoErr(WriteQualityReport(ctx, store, "2023-03-01", report))

	data, err := store.Download(ctx, QualityReportObject("2023-03-01", "unscheduled"))
	is.NoErr(err)
	readBack := cleaning.QualityReport{}
	is.NoErr(json.Unmarshal(data, &readBack))
	is.Equal(readBack.Dataset, "unscheduled")
	is.Equal(readBack.RowsBefore, 10)
	is.Equal(readBack.DroppedRows, 10)
	is.Equal(readBack.DelaySecondsStats.Mean, nil)
}

func TestReadReconciled_missingDay(t *testing.T) {
	store := &FSStore{Root: t.TempDir()}
	_, _, err := ReadReconciled(context.Background(), store, "2023-03-02")
	if err == nil {
		t.Errorf("Expected error reading a day that was never built")
	}
}
