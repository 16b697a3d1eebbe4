package builder

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/transitdatalab/delaylake/business/cleaning"
	"github.com/transitdatalab/delaylake/business/data/artifact"
	"github.com/transitdatalab/delaylake/business/data/warehouse"
)

// DayCleaner runs the cleaning pipeline over a day's stored reconciled
// table and writes the two cleaned subsets plus their quality reports.
type DayCleaner struct {
	log   *log.Logger
	store artifact.Store
	opts  cleaning.Options
	// db enables warehouse recording of cleaned rows when non-nil
	db *sqlx.DB
}

// MakeDayCleaner creates a DayCleaner. db may be nil to skip warehouse
// recording.
func MakeDayCleaner(log *log.Logger, store artifact.Store, opts cleaning.Options, db *sqlx.DB) *DayCleaner {
	return &DayCleaner{
		log:   log,
		store: store,
		opts:  opts,
		db:    db,
	}
}

// CleanDay cleans one day. The four output artifacts are independent: a
// failure writing one is collected and the rest are still attempted, so a
// bad scheduled write never blocks the unscheduled outputs.
func (c *DayCleaner) CleanDay(day string) (*cleaning.Result, error) {
	ctx := context.Background()
	rows, columns, err := artifact.ReadReconciled(ctx, c.store, day)
	if err != nil {
		return nil, err
	}
	result, err := cleaning.CleanDay(rows, columns, day, c.opts)
	if err != nil {
		return nil, err
	}
	c.log.Printf("cleaned %s: scheduled=%d unscheduled=%d",
		day, len(result.Scheduled), len(result.Unscheduled))

	var problems []string
	collect := func(err error) {
		if err != nil {
			c.log.Printf("cleaning output failed for %s: %v", day, err)
			problems = append(problems, err.Error())
		}
	}
	collect(artifact.WriteCleanedSubset(ctx, c.store, day, "scheduled", result.Scheduled))
	collect(artifact.WriteQualityReport(ctx, c.store, day, result.ScheduledReport))
	collect(artifact.WriteCleanedSubset(ctx, c.store, day, "unscheduled", result.Unscheduled))
	collect(artifact.WriteQualityReport(ctx, c.store, day, result.UnscheduledReport))

	if c.db != nil {
		collect(warehouse.RecordCleanedDay(c.log, c.db, day, "scheduled", result.Scheduled))
		collect(warehouse.RecordCleanedDay(c.log, c.db, day, "unscheduled", result.Unscheduled))
	}

	if len(problems) > 0 {
		return result, fmt.Errorf("cleaning outputs failed for %s: %s", day, strings.Join(problems, "; "))
	}
	return result, nil
}
