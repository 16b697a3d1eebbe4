package reconcile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestFeedFileParser_getString(t *testing.T) {
	headers := "trip_uid,stop_id"
	tests := []struct {
		name         string
		askForColumn string
		optional     bool
		line         string
		want         string
		expectError  bool
	}{
		{
			name:         "missing",
			askForColumn: "arrival_time",
			optional:     false,
			line:         "first,second",
			want:         "",
			expectError:  true,
		},
		{
			name:         "missing optional",
			askForColumn: "arrival_time",
			optional:     true,
			line:         "first,second",
			want:         "",
			expectError:  false,
		},
		{
			name:         "first",
			askForColumn: "trip_uid",
			optional:     false,
			line:         "first,second",
			want:         "first",
			expectError:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fileContents := headers + "\n" + tt.line
			p, _ := makeFeedFileParser(strings.NewReader(fileContents), tt.name)
			_ = p.nextLine()
			got := p.getString(tt.askForColumn, tt.optional)
			if tt.expectError {
				if p.getError() == nil {
					t.Errorf("Expected error after asking for %v ", tt.askForColumn)
				}
			} else {
				if p.getError() != nil {
					t.Errorf("Received error after asking for %v ", tt.askForColumn)
				}
			}
			if got != tt.want {
				t.Errorf("getString() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFeedFileParser_getInt64Pointer(t *testing.T) {
	headers := "arrival_time,stop_id"
	tests := []struct {
		name      string
		line      string
		want      int64
		expectNil bool
	}{
		{
			name: "timestamp",
			line: "1677682800,201S",
			want: 1677682800,
		},
		{
			name:      "empty is missing",
			line:      ",201S",
			expectNil: true,
		},
		{
			name:      "unparseable is missing",
			line:      "not-a-timestamp,201S",
			expectNil: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fileContents := headers + "\n" + tt.line
			p, _ := makeFeedFileParser(strings.NewReader(fileContents), tt.name)
			_ = p.nextLine()
			got := p.getInt64Pointer("arrival_time")
			if tt.expectNil {
				if got != nil {
					t.Errorf("Expected nil value")
				}
			} else if got == nil {
				t.Errorf("getInt64Pointer() = nil, want %v", tt.want)
			} else if *got != tt.want {
				t.Errorf("getInt64Pointer() = %v, want %v", *got, tt.want)
			}
		})
	}
}

func TestFeedFileParser_removesByteOrderMark(t *testing.T) {
	is := is.New(t)
	fileContents := "\uFEFFtrip_uid,trip_id\nuid-1,key-1"
	p, err := makeFeedFileParser(strings.NewReader(fileContents), "bom test")
	is.NoErr(err)
	is.NoErr(p.nextLine())
	is.Equal(p.getString("trip_uid", false), "uid-1")
	is.NoErr(p.getError())
}

func TestReadStaticFeed(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	tripsPath := writeTestFeedFile(t, dir, "trips.txt",
		"route_id,service_id,trip_id\n"+
			"2,WKD,A20230301WKD_021150_2..S08R\n")
	stopTimesPath := writeTestFeedFile(t, dir, "stop_times.txt",
		"trip_id,arrival_time,departure_time,stop_id\n"+
			"A20230301WKD_021150_2..S08R,23:58:00,23:58:30,201S\n"+
			"A20230301WKD_021150_2..S08R,,,202S\n")

	feed, err := ReadStaticFeed(tripsPath, stopTimesPath)
	is.NoErr(err)
	is.Equal(len(feed.Trips), 1)
	is.Equal(feed.Trips[0].RouteID, "2")
	is.Equal(len(feed.StopTimes), 2)
	is.Equal(feed.StopTimes[0].ArrivalTime, "23:58:00")
	// empty optional arrival time survives as empty, resolved downstream
	is.Equal(feed.StopTimes[1].ArrivalTime, "")
}

func TestReadStaticFeed_missingRequiredHeader(t *testing.T) {
	dir := t.TempDir()
	tripsPath := writeTestFeedFile(t, dir, "trips.txt",
		"service_id,trip_id\nWKD,A20230301WKD_021150_2..S08R\n")
	stopTimesPath := writeTestFeedFile(t, dir, "stop_times.txt",
		"trip_id,arrival_time,stop_id\n")

	_, err := ReadStaticFeed(tripsPath, stopTimesPath)
	if err == nil {
		t.Errorf("Expected error reading trips file without route_id header")
	}
}

func TestReadRealtimeFeed(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	tripsPath := writeTestFeedFile(t, dir, "rt_trips.csv",
		"trip_uid,trip_id\n"+
			"2023-03-01_021150_2..S08R,021150_2..S08R\n")
	stopTimesPath := writeTestFeedFile(t, dir, "rt_stop_times.csv",
		"trip_uid,stop_id,arrival_time\n"+
			"2023-03-01_021150_2..S08R,201S,1677682800\n"+
			"2023-03-01_021150_2..S08R,202S,\n")

	feed, err := ReadRealtimeFeed(tripsPath, stopTimesPath)
	is.NoErr(err)
	is.Equal(len(feed.Trips), 1)
	is.Equal(feed.Trips[0].TripID, "021150_2..S08R")
	is.Equal(len(feed.StopTimes), 2)
	is.Equal(*feed.StopTimes[0].ArrivalTime, int64(1677682800))
	is.Equal(feed.StopTimes[1].ArrivalTime, nil)
}

func writeTestFeedFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("unable to write test feed file %s: %v", name, err)
	}
	return path
}
