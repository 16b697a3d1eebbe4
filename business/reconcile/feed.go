package reconcile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// StaticTrip contains trip metadata from a static feed trips.txt file.
type StaticTrip struct {
	TripID  string
	RouteID string
}

// StaticStopTime contains a planned arrival from a static feed
// stop_times.txt file. ArrivalTime keeps the raw clock string so the
// joiner can treat malformed values as missing rather than dropping rows.
type StaticStopTime struct {
	TripID      string
	StopID      string
	ArrivalTime string
}

// StaticFeed holds one day's static timetable inputs.
type StaticFeed struct {
	Trips     []StaticTrip
	StopTimes []StaticStopTime
}

// RealtimeTrip maps a realtime trip_uid to the feed's native trip_id,
// which doubles as the match key into the static timetable.
type RealtimeTrip struct {
	TripUID string
	TripID  string
}

// RealtimeStopTime contains one observed arrival. ArrivalTime is a unix
// timestamp, nil when the field was absent or unparseable.
type RealtimeStopTime struct {
	TripUID     string
	StopID      string
	ArrivalTime *int64
}

// RealtimeFeed holds one day's realtime inputs.
type RealtimeFeed struct {
	Trips     []RealtimeTrip
	StopTimes []RealtimeStopTime
}

// feedFileParser reads a headed csv file and retrieves columns by name for
// the current row. Per-field extraction problems are accumulated so one
// bad value does not halt the file.
type feedFileParser struct {
	filename       string
	line           int
	csvReader      *csv.Reader
	headers        []string
	currentRecords []string
	errors         []error
}

// makeFeedFileParser creates a feedFileParser from an io.Reader
func makeFeedFileParser(r io.Reader, filename string) (*feedFileParser, error) {
	csvReader := csv.NewReader(r)
	headers, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("unable to load header in %s: %v", filename, err)
	}
	removeBOMIfPresent(headers)
	return &feedFileParser{
		filename:       filename,
		line:           1,
		csvReader:      csvReader,
		headers:        headers,
		currentRecords: headers,
	}, nil
}

func removeBOMIfPresent(headers []string) {
	if len(headers) < 1 || len(headers[0]) < 1 {
		return
	}
	runes := []rune(headers[0])
	if runes[0] == '\uFEFF' {
		headers[0] = string(runes[1:])
	}
}

// nextLine moves csvReader one line forward
func (p *feedFileParser) nextLine() error {
	var err error
	p.currentRecords, err = p.csvReader.Read()
	p.line += 1
	return err
}

// getString retrieves a column value from the current row.
// Missing required columns are recorded as errors and return empty.
func (p *feedFileParser) getString(name string, optional bool) string {
	index := indexOf(name, p.headers)
	if index < 0 {
		if !optional {
			p.errors = append(p.errors, fmt.Errorf("unable to find header: %s", name))
		}
		return ""
	}
	if len(p.currentRecords) <= index {
		p.errors = append(p.errors, fmt.Errorf("row too short for column %s at %d", name, index))
		return ""
	}
	return p.currentRecords[index]
}

// getInt64Pointer retrieves a column as int64, nil when empty or
// unparseable. Unparseable values become missing rather than fatal.
func (p *feedFileParser) getInt64Pointer(name string) *int64 {
	value := p.getString(name, false)
	if len(value) == 0 {
		return nil
	}
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil
	}
	return &result
}

// getError collapses accumulated parse errors for the file, or nil.
func (p *feedFileParser) getError() error {
	if len(p.errors) > 0 {
		return fmt.Errorf("in file %v, line %v: %v", p.filename, p.line, p.errors)
	}
	return nil
}

// find index of element that matches name string. returns -1 if not found
func indexOf(name string, elements []string) int {
	for i, value := range elements {
		if name == value {
			return i
		}
	}
	return -1
}

// ReadStaticFeed loads a static timetable from trips and stop_times csv
// files. A missing file or missing required header is fatal for the feed.
func ReadStaticFeed(tripsPath, stopTimesPath string) (*StaticFeed, error) {
	feed := StaticFeed{}
	err := withFeedFile(tripsPath, func(p *feedFileParser) {
		feed.Trips = append(feed.Trips, StaticTrip{
			TripID:  p.getString("trip_id", false),
			RouteID: p.getString("route_id", false),
		})
	})
	if err != nil {
		return nil, err
	}
	err = withFeedFile(stopTimesPath, func(p *feedFileParser) {
		feed.StopTimes = append(feed.StopTimes, StaticStopTime{
			TripID:      p.getString("trip_id", false),
			StopID:      p.getString("stop_id", false),
			ArrivalTime: p.getString("arrival_time", true),
		})
	})
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

// ReadRealtimeFeed loads a day of observed arrivals from realtime trips and
// stop_times csv files.
func ReadRealtimeFeed(tripsPath, stopTimesPath string) (*RealtimeFeed, error) {
	feed := RealtimeFeed{}
	err := withFeedFile(tripsPath, func(p *feedFileParser) {
		feed.Trips = append(feed.Trips, RealtimeTrip{
			TripUID: p.getString("trip_uid", false),
			TripID:  p.getString("trip_id", false),
		})
	})
	if err != nil {
		return nil, err
	}
	err = withFeedFile(stopTimesPath, func(p *feedFileParser) {
		feed.StopTimes = append(feed.StopTimes, RealtimeStopTime{
			TripUID:     p.getString("trip_uid", false),
			StopID:      p.getString("stop_id", false),
			ArrivalTime: p.getInt64Pointer("arrival_time"),
		})
	})
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

// withFeedFile opens path and feeds every row into addRow, returning any
// accumulated parse errors once the file is exhausted.
func withFeedFile(path string, addRow func(*feedFileParser)) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()
	parser, err := makeFeedFileParser(file, path)
	if err != nil {
		return err
	}
	return loadFeedRows(parser, addRow)
}

// loadFeedRows iterates all rows in parser and feeds them into addRow.
func loadFeedRows(parser *feedFileParser, addRow func(*feedFileParser)) error {
	for {
		err := parser.nextLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		addRow(parser)
	}
	return parser.getError()
}
