package builder

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/transitdatalab/delaylake/business/data/warehouse"
)

// RangeRunner iterates a closed date range, building and cleaning each
// day. The range is a best-effort batch: a day's failure is captured in
// its outcome and iteration continues.
type RangeRunner struct {
	log       *log.Logger
	processor *DayProcessor
	cleaner   *DayCleaner
	publisher *OutcomePublisher
}

// MakeRangeRunner creates a RangeRunner. publisher may be nil.
func MakeRangeRunner(log *log.Logger,
	processor *DayProcessor,
	cleaner *DayCleaner,
	publisher *OutcomePublisher) *RangeRunner {
	return &RangeRunner{
		log:       log,
		processor: processor,
		cleaner:   cleaner,
		publisher: publisher,
	}
}

// ParseDay parses a YYYY-MM-DD service date.
func ParseDay(value string) (time.Time, error) {
	day, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", value, err)
	}
	return day, nil
}

// Run processes every date in [start, end] inclusive. It returns one
// outcome per date, and a non-nil error naming the failed dates when any
// date failed, after complete artifacts were produced for the dates that
// succeeded.
func (r *RangeRunner) Run(start time.Time, end time.Time) ([]warehouse.BuildRun, error) {
	var outcomes []warehouse.BuildRun
	var failedDates []string

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		serviceDate := day.Format("2006-01-02")
		r.log.Printf("building %s", serviceDate)

		run := warehouse.BuildRun{ServiceDate: serviceDate}
		reconciledRows, err := r.processor.ProcessDay(serviceDate)
		if err == nil {
			run.ReconciledRows = reconciledRows
			result, cleanErr := r.cleaner.CleanDay(serviceDate)
			if result != nil {
				run.ScheduledRows = len(result.Scheduled)
				run.UnscheduledRows = len(result.Unscheduled)
			}
			err = cleanErr
		}
		if err != nil {
			r.log.Printf("build failed for %s: %v", serviceDate, err)
			errorText := err.Error()
			run.ErrorText = &errorText
			failedDates = append(failedDates, serviceDate)
		} else {
			run.Ok = true
		}
		if r.publisher != nil {
			r.publisher.Publish(&run)
		}
		outcomes = append(outcomes, run)
	}

	if len(failedDates) > 0 {
		return outcomes, fmt.Errorf("build failed for %d of %d dates: %s",
			len(failedDates), len(outcomes), strings.Join(failedDates, ", "))
	}
	return outcomes, nil
}
