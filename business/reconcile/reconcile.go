// Package reconcile joins a day of static timetable stops against observed
// realtime arrivals and computes per-stop delays.
package reconcile

import (
	"fmt"
	"time"
)

// ScheduledStopEvent is one planned arrival from the static timetable,
// with the realtime join key and route attached from trip metadata.
type ScheduledStopEvent struct {
	TripID           string
	MatchKey         *string
	RouteID          string
	StopID           string
	ScheduledSeconds *int
}

// RealtimeStopEvent is one observed arrival from the realtime feed.
type RealtimeStopEvent struct {
	TripUID       string
	MatchKey      string
	StopID        string
	ArrivalTime   int64
	ActualSeconds *int
}

// ReconciledStopEvent is the outer-join result for one observed stop
// arrival. RouteId and ScheduledSeconds are nil when no timetable
// counterpart exists, in which case IsUnscheduled is true.
type ReconciledStopEvent struct {
	TripUID          string   `parquet:"trip_uid" db:"trip_uid"`
	MatchKey         string   `parquet:"match_key" db:"match_key"`
	RouteID          *string  `parquet:"route_id,optional" db:"route_id"`
	StopID           string   `parquet:"stop_id" db:"stop_id"`
	IsUnscheduled    bool     `parquet:"is_unscheduled" db:"is_unscheduled"`
	ScheduledSeconds *float64 `parquet:"scheduled_seconds,optional" db:"scheduled_seconds"`
	ActualSeconds    *float64 `parquet:"actual_seconds,optional" db:"actual_seconds"`
	DelaySeconds     *float64 `parquet:"delay_seconds,optional" db:"delay_seconds"`
	DelayMinutes     *float64 `parquet:"delay_minutes,optional" db:"delay_minutes"`
}

// Options carries the reconciliation constants. The rollover threshold and
// service day length are deliberate carry-overs from the source pipeline
// and can be overridden per run rather than being process-wide state.
type Options struct {
	// Zone is the civil time zone observed arrivals are normalized into.
	Zone *time.Location
	// RolloverThresholdSeconds is the naive-delay magnitude above which a
	// midnight wraparound is assumed. Default 43200 (12 hours).
	RolloverThresholdSeconds int
	// ServiceDaySeconds is the correction applied on wraparound.
	// Default 86400.
	ServiceDaySeconds int
}

// DefaultOptions returns reconciliation options for zone, with the standard
// 12 hour rollover threshold.
func DefaultOptions(zone *time.Location) Options {
	return Options{
		Zone:                     zone,
		RolloverThresholdSeconds: 43200,
		ServiceDaySeconds:        SecondsPerDay,
	}
}

// CorrectRollover adjusts a naive delay for service-day midnight
// wraparound. A train scheduled just after midnight that reports arriving
// just before midnight is early, not 24 hours late, and vice versa. The
// corrected delay always lies within the rollover threshold.
func CorrectRollover(delaySeconds int, opts Options) int {
	if delaySeconds > opts.RolloverThresholdSeconds {
		return delaySeconds - opts.ServiceDaySeconds
	}
	if delaySeconds < -opts.RolloverThresholdSeconds {
		return delaySeconds + opts.ServiceDaySeconds
	}
	return delaySeconds
}

// scheduleKey identifies a planned stop arrival in the realtime key space.
type scheduleKey struct {
	matchKey string
	stopID   string
}

// BuildScheduledStopEvents joins static stop_times rows to their trip
// metadata, derives the realtime match key and parses scheduled arrival
// clock strings. Rows with unparseable arrival times keep a nil
// ScheduledSeconds rather than failing the batch. Rows referencing an
// unknown trip_id are skipped.
func BuildScheduledStopEvents(feed *StaticFeed) []ScheduledStopEvent {
	trips := make(map[string]StaticTrip, len(feed.Trips))
	for _, trip := range feed.Trips {
		trips[trip.TripID] = trip
	}
	events := make([]ScheduledStopEvent, 0, len(feed.StopTimes))
	for _, stopTime := range feed.StopTimes {
		trip, present := trips[stopTime.TripID]
		if !present {
			continue
		}
		scheduledSeconds, err := ParseClockString(stopTime.ArrivalTime)
		if err != nil {
			// malformed clock string, field becomes missing
			scheduledSeconds = nil
		}
		events = append(events, ScheduledStopEvent{
			TripID:           stopTime.TripID,
			MatchKey:         DeriveMatchKey(stopTime.TripID),
			RouteID:          trip.RouteID,
			StopID:           stopTime.StopID,
			ScheduledSeconds: scheduledSeconds,
		})
	}
	return events
}

// BuildRealtimeStopEvents joins realtime stop_times rows to their trip
// metadata on trip_uid and converts arrival instants to seconds past
// midnight in the configured zone. Rows referencing an unknown trip_uid
// cannot be identified and are skipped.
func BuildRealtimeStopEvents(feed *RealtimeFeed, opts Options) []RealtimeStopEvent {
	trips := make(map[string]RealtimeTrip, len(feed.Trips))
	for _, trip := range feed.Trips {
		trips[trip.TripUID] = trip
	}
	events := make([]RealtimeStopEvent, 0, len(feed.StopTimes))
	for _, stopTime := range feed.StopTimes {
		trip, present := trips[stopTime.TripUID]
		if !present {
			continue
		}
		event := RealtimeStopEvent{
			TripUID:  stopTime.TripUID,
			MatchKey: trip.TripID,
			StopID:   stopTime.StopID,
		}
		if stopTime.ArrivalTime != nil {
			event.ArrivalTime = *stopTime.ArrivalTime
			actual := UnixToLocalSeconds(*stopTime.ArrivalTime, opts.Zone)
			event.ActualSeconds = &actual
		}
		events = append(events, event)
	}
	return events
}

// BuildDelayTable outer-joins a day of observed arrivals against the
// static timetable on (match key, stop id) and computes corrected delays.
// The join preserves the realtime side: every observed stop event appears
// exactly once in the result, flagged unscheduled when no timetable
// counterpart exists.
func BuildDelayTable(static *StaticFeed, realtime *RealtimeFeed, opts Options) ([]ReconciledStopEvent, error) {
	if opts.Zone == nil {
		return nil, fmt.Errorf("reconcile options require a civil time zone")
	}
	scheduled := BuildScheduledStopEvents(static)
	observed := BuildRealtimeStopEvents(realtime, opts)

	timetable := make(map[scheduleKey]*ScheduledStopEvent, len(scheduled))
	for i := range scheduled {
		event := &scheduled[i]
		if event.MatchKey == nil {
			// no key to join on, preserved upstream but unmatchable
			continue
		}
		key := scheduleKey{matchKey: *event.MatchKey, stopID: event.StopID}
		if _, present := timetable[key]; !present {
			timetable[key] = event
		}
	}

	results := make([]ReconciledStopEvent, 0, len(observed))
	for _, event := range observed {
		result := ReconciledStopEvent{
			TripUID:  event.TripUID,
			MatchKey: event.MatchKey,
			StopID:   event.StopID,
		}
		if event.ActualSeconds != nil {
			actual := float64(*event.ActualSeconds)
			result.ActualSeconds = &actual
		}
		counterpart := timetable[scheduleKey{matchKey: event.MatchKey, stopID: event.StopID}]
		if counterpart != nil {
			routeID := counterpart.RouteID
			result.RouteID = &routeID
			if counterpart.ScheduledSeconds != nil {
				scheduledSeconds := float64(*counterpart.ScheduledSeconds)
				result.ScheduledSeconds = &scheduledSeconds
			}
		}
		result.IsUnscheduled = result.ScheduledSeconds == nil
		if result.ScheduledSeconds != nil && result.ActualSeconds != nil {
			naive := int(*result.ActualSeconds) - int(*result.ScheduledSeconds)
			delaySeconds := float64(CorrectRollover(naive, opts))
			delayMinutes := delaySeconds / 60
			result.DelaySeconds = &delaySeconds
			result.DelayMinutes = &delayMinutes
		}
		results = append(results, result)
	}
	return results, nil
}
