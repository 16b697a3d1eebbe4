package cleaning

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/transitdatalab/delaylake/business/reconcile"
)

// testColumns is the column set of a complete stored reconciled table.
var testColumns = []string{
	"trip_uid",
	"match_key",
	"route_id",
	"stop_id",
	"is_unscheduled",
	"scheduled_seconds",
	"actual_seconds",
	"delay_seconds",
	"delay_minutes",
}

func TestValidateSchema(t *testing.T) {
	tests := []struct {
		name        string
		give        []string
		wantMissing []string
	}{
		{
			name: "complete table",
			give: testColumns,
		},
		{
			name: "extra columns tolerated",
			give: append([]string{"extra_column"}, testColumns...),
		},
		{
			name:        "missing delay columns",
			give:        []string{"match_key", "route_id", "stop_id", "is_unscheduled", "scheduled_seconds", "actual_seconds"},
			wantMissing: []string{"delay_seconds", "delay_minutes"},
		},
		{
			name:        "empty table",
			give:        []string{},
			wantMissing: RequiredColumns,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchema(tt.give)
			if tt.wantMissing == nil {
				if err != nil {
					t.Errorf("ValidateSchema() unexpected error: %v", err)
				}
				return
			}
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Errorf("ValidateSchema() error is not a SchemaError: %v", err)
				return
			}
			if !reflect.DeepEqual(schemaErr.MissingColumns, tt.wantMissing) {
				t.Errorf("ValidateSchema() missing = %v, want %v", schemaErr.MissingColumns, tt.wantMissing)
			}
		})
	}
}

func TestCleanDay_schemaErrorIsFatal(t *testing.T) {
	rows := []reconcile.ReconciledStopEvent{reconciledRow("key-1", "201S", float64Pointer(600), float64Pointer(660))}
	_, err := CleanDay(rows, []string{"match_key", "stop_id"}, "2023-03-01", DefaultOptions())
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Errorf("Expected SchemaError cleaning a table with missing columns, got %v", err)
	}
}

func TestCleanDay(t *testing.T) {
	is := is.New(t)

	route := "2"
	rows := []reconcile.ReconciledStopEvent{
		// healthy scheduled row, identifiers carrying stray whitespace
		{
			TripUID:          "2023-07-04_021150_2..S08R",
			MatchKey:         " 021150_2..S08R ",
			RouteID:          &route,
			StopID:           "201S ",
			ScheduledSeconds: float64Pointer(94200), // 26:10:00 service time
			ActualSeconds:    float64Pointer(94500),
			DelaySeconds:     float64Pointer(300),
			DelayMinutes:     float64Pointer(5),
		},
		// exact duplicate of the row above, dropped by deduplication
		{
			TripUID:          "2023-07-04_021150_2..S08R",
			MatchKey:         "021150_2..S08R",
			RouteID:          &route,
			StopID:           "201S",
			ScheduledSeconds: float64Pointer(94200),
			ActualSeconds:    float64Pointer(94500),
			DelaySeconds:     float64Pointer(300),
			DelayMinutes:     float64Pointer(5),
		},
		// delay beyond the outlier bound, dropped
		reconciledRow("021150_2..S08R", "202S", float64Pointer(600), float64Pointer(10100)),
		// unscheduled row with an observed arrival, kept in the unscheduled subset
		{
			TripUID:       "2023-07-04_550000_GS.S01R",
			MatchKey:      "550000_GS.S01R",
			StopID:        "901N",
			IsUnscheduled: true,
			ActualSeconds: float64Pointer(36900),
		},
		// unscheduled row with no observed arrival carries no information, dropped
		{
			TripUID:       "2023-07-04_550000_GS.S01R",
			MatchKey:      "550000_GS.S01R",
			StopID:        "902N",
			IsUnscheduled: true,
		},
		// NaN schedule from foreign tooling becomes missing, row leaves the scheduled subset
		{
			TripUID:          "2023-07-04_088000_4..N05R",
			MatchKey:         "088000_4..N05R",
			RouteID:          &route,
			StopID:           "401N",
			ScheduledSeconds: float64Pointer(math.NaN()),
			ActualSeconds:    float64Pointer(50000),
		},
		// row missing both identifiers cannot name a stop event, dropped
		reconciledRow("", "", float64Pointer(600), float64Pointer(660)),
	}
	result, err := CleanDay(rows, testColumns, "2023-07-04", DefaultOptions())
	is.NoErr(err)

	is.Equal(len(result.Scheduled), 1)
	is.Equal(len(result.Unscheduled), 1)

	kept := result.Scheduled[0]
	is.Equal(kept.MatchKey, "021150_2..S08R") // identifier whitespace trimmed
	is.Equal(kept.StopID, "201S")
	is.Equal(kept.ServiceDate, "2023-07-04")
	is.Equal(*kept.Hour, int32(2)) // 26:10 service time buckets to hour 2
	is.Equal(kept.Dow, int32(1))   // 2023-07-04 is a Tuesday
	is.Equal(kept.IsWeekend, false)
	is.Equal(kept.IsHoliday, true) // Independence Day
	is.Equal(*kept.ScheduledTime, "02:10:00")
	is.Equal(*kept.ActualTime, "02:15:00")

	unscheduled := result.Unscheduled[0]
	is.Equal(unscheduled.StopID, "901N")
	is.Equal(*unscheduled.Hour, int32(10)) // no schedule, hour from the observed arrival
	is.Equal(unscheduled.ScheduledTime, nil)
	is.Equal(unscheduled.DelaySeconds, nil)

	is.Equal(result.ScheduledReport.RowsBefore, len(rows))
	is.Equal(result.ScheduledReport.RowsAfter, 1)
	is.Equal(result.UnscheduledReport.RowsAfter, 1)
}

func TestCleanDay_invalidServiceDate(t *testing.T) {
	_, err := CleanDay(nil, testColumns, "07/04/2023", DefaultOptions())
	if err == nil {
		t.Errorf("Expected error cleaning with a non ISO service date")
	}
}

func TestDeduplicate(t *testing.T) {
	first := reconciledRow("key-1", "201S", float64Pointer(600), float64Pointer(660))
	sameArrival := reconciledRow("key-1", "201S", float64Pointer(600), float64Pointer(660))
	laterArrival := reconciledRow("key-1", "201S", float64Pointer(600), float64Pointer(720))
	otherStop := reconciledRow("key-1", "202S", float64Pointer(600), float64Pointer(660))
	missingArrival := reconciledRow("key-1", "201S", float64Pointer(600), nil)
	missingArrivalAgain := reconciledRow("key-1", "201S", float64Pointer(600), nil)

	rows := []reconcile.ReconciledStopEvent{first, sameArrival, laterArrival, otherStop, missingArrival, missingArrivalAgain}
	deduped := Deduplicate(rows)
	if len(deduped) != 4 {
		t.Errorf("Deduplicate() kept %d rows, want 4", len(deduped))
	}

	// a second pass over deduplicated rows changes nothing
	again := Deduplicate(deduped)
	if !reflect.DeepEqual(deduped, again) {
		t.Errorf("Deduplicate() is not idempotent")
	}
}

func TestFilterDelayOutliers(t *testing.T) {
	tests := []struct {
		name  string
		delay *float64
		keep  bool
	}{
		{
			name:  "on time",
			delay: float64Pointer(0),
			keep:  true,
		},
		{
			name:  "at positive bound",
			delay: float64Pointer(9000),
			keep:  true,
		},
		{
			name:  "at negative bound",
			delay: float64Pointer(-9000),
			keep:  true,
		},
		{
			name:  "beyond positive bound",
			delay: float64Pointer(9001),
			keep:  false,
		},
		{
			name:  "beyond negative bound",
			delay: float64Pointer(-9001),
			keep:  false,
		},
		{
			name: "missing delay passes through",
			keep: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := reconciledRow("key-1", "201S", nil, nil)
			row.DelaySeconds = tt.delay
			kept := filterDelayOutliers([]reconcile.ReconciledStopEvent{row}, 9000)
			if tt.keep != (len(kept) == 1) {
				t.Errorf("filterDelayOutliers() kept=%v, want kept=%v", len(kept) == 1, tt.keep)
			}
		})
	}
}

func TestHolidayCalendar(t *testing.T) {
	is := is.New(t)
	holidays := MakeHolidayCalendar()
	is.Equal(holidays.IsHoliday(testDate(2023, 7, 4)), true)   // Independence Day
	is.Equal(holidays.IsHoliday(testDate(2023, 12, 25)), true) // Christmas
	is.Equal(holidays.IsHoliday(testDate(2023, 3, 1)), false)

	var none *HolidayCalendar
	is.Equal(none.IsHoliday(testDate(2023, 7, 4)), false) // nil calendar marks nothing
}

func reconciledRow(matchKey, stopID string, scheduled, actual *float64) reconcile.ReconciledStopEvent {
	row := reconcile.ReconciledStopEvent{
		TripUID:          "2023-07-04_" + matchKey,
		MatchKey:         matchKey,
		StopID:           stopID,
		ScheduledSeconds: scheduled,
		ActualSeconds:    actual,
	}
	if scheduled == nil {
		row.IsUnscheduled = true
	}
	if scheduled != nil && actual != nil {
		delay := *actual - *scheduled
		minutes := delay / 60
		row.DelaySeconds = &delay
		row.DelayMinutes = &minutes
	}
	if row.ScheduledSeconds != nil {
		route := "2"
		row.RouteID = &route
	}
	return row
}

func float64Pointer(value float64) *float64 {
	return &value
}

func testDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
