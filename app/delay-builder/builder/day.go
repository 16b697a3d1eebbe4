// Package builder orchestrates per-day delay table builds across a date
// range: feed retrieval, reconciliation, cleaning and artifact storage.
package builder

import (
	"context"
	"log"
	"os"

	"github.com/transitdatalab/delaylake/business/data/artifact"
	"github.com/transitdatalab/delaylake/business/reconcile"
)

// DayProcessor builds the flat reconciled delay table for one calendar
// day and stores it at the day's processed location.
type DayProcessor struct {
	log      *log.Logger
	static   StaticSource
	realtime RealtimeSource
	store    artifact.Store
	opts     reconcile.Options
}

// MakeDayProcessor creates a DayProcessor.
func MakeDayProcessor(log *log.Logger,
	static StaticSource,
	realtime RealtimeSource,
	store artifact.Store,
	opts reconcile.Options) *DayProcessor {
	return &DayProcessor{
		log:      log,
		static:   static,
		realtime: realtime,
		store:    store,
		opts:     opts,
	}
}

// ProcessDay fetches both feeds for day, reconciles them and writes the
// flat table. All scratch files live in a per-day temporary directory
// removed on every exit path. Returns the reconciled row count.
func (p *DayProcessor) ProcessDay(day string) (int, error) {
	scratchDir, err := os.MkdirTemp("", "delaylake-"+day+"-")
	if err != nil {
		return 0, err
	}
	defer func() {
		if removeErr := os.RemoveAll(scratchDir); removeErr != nil {
			p.log.Printf("unable to remove scratch directory %s, error: %v", scratchDir, removeErr)
		}
	}()

	rtTripsPath, rtStopTimesPath, err := p.realtime.FetchRealtime(scratchDir, day)
	if err != nil {
		return 0, err
	}
	staticTripsPath, staticStopTimesPath, err := p.static.FetchStatic(scratchDir, day)
	if err != nil {
		return 0, err
	}

	realtimeFeed, err := reconcile.ReadRealtimeFeed(rtTripsPath, rtStopTimesPath)
	if err != nil {
		return 0, err
	}
	staticFeed, err := reconcile.ReadStaticFeed(staticTripsPath, staticStopTimesPath)
	if err != nil {
		return 0, err
	}

	rows, err := reconcile.BuildDelayTable(staticFeed, realtimeFeed, p.opts)
	if err != nil {
		return 0, err
	}
	p.log.Printf("reconciled %d observed stop events for %s", len(rows), day)

	if err = artifact.WriteReconciled(context.Background(), p.store, day, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
