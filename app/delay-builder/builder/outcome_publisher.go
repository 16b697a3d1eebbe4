package builder

import (
	"encoding/json"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"

	"github.com/transitdatalab/delaylake/business/data/warehouse"
)

// outcomeSubject is the NATS subject per-day build outcomes are sent to.
const outcomeSubject = "delay-build-outcomes"

// OutcomePublisher takes per-day build outcomes from the range runner and
// sends them to their destinations (such as database and nats). Delivery
// problems are logged and never fail the build.
type OutcomePublisher struct {
	log              *log.Logger
	db               *sqlx.DB
	natsConnection   *nats.Conn
	recordToDatabase bool
	publishOverNats  bool
}

// MakeOutcomePublisher creates an OutcomePublisher.
func MakeOutcomePublisher(log *log.Logger,
	db *sqlx.DB,
	natsConnection *nats.Conn,
	recordToDatabase bool,
	publishOverNats bool) *OutcomePublisher {
	return &OutcomePublisher{
		log:              log,
		db:               db,
		natsConnection:   natsConnection,
		recordToDatabase: recordToDatabase,
		publishOverNats:  publishOverNats,
	}
}

// Publish sends a warehouse.BuildRun over NATS and records it to the
// database according to publishOverNats and recordToDatabase.
func (p *OutcomePublisher) Publish(run *warehouse.BuildRun) {
	if p.publishOverNats {
		p.sendOverNats(run)
	}
	if p.recordToDatabase {
		p.record(run)
	}
}

func (p *OutcomePublisher) sendOverNats(run *warehouse.BuildRun) {
	jsonData, err := json.Marshal(run)
	if err != nil {
		p.log.Printf("failed to marshal BuildRun in OutcomePublisher.sendOverNats, error:%v", err)
		return
	}
	err = p.natsConnection.Publish(outcomeSubject, jsonData)
	if err != nil {
		p.log.Printf("failed to send BuildRun in OutcomePublisher.sendOverNats, error:%v", err)
	}
}

func (p *OutcomePublisher) record(run *warehouse.BuildRun) {
	err := warehouse.RecordBuildRun(p.db, run)
	if err != nil {
		p.log.Printf("Error saving build run %+v. error: %v", run, err)
	}
}
