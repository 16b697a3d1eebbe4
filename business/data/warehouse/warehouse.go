// Package warehouse provides optional Postgres recording of cleaned stop
// events and per-day build outcomes.
package warehouse

import (
	"log"

	"github.com/jmoiron/sqlx"

	"github.com/transitdatalab/delaylake/business/cleaning"
)

// insertBatchSize limits rows per NamedExec so statements stay under the
// driver's parameter limit.
const insertBatchSize = 500

// RecordCleanedDay replaces the warehouse rows for one day and subset with
// rows, inside a single transaction so reruns fully supersede prior runs.
func RecordCleanedDay(log *log.Logger, db *sqlx.DB, day string, subset string, rows []cleaning.CleanedStopEvent) error {
	return transact(log, db, func(tx *sqlx.Tx) error {
		deleteStatement := tx.Rebind("delete from cleaned_stop_event where service_date = ? and is_unscheduled = ?")
		_, err := tx.Exec(deleteStatement, day, subset == "unscheduled")
		if err != nil {
			return err
		}
		for start := 0; start < len(rows); start += insertBatchSize {
			end := start + insertBatchSize
			if end > len(rows) {
				end = len(rows)
			}
			if err = insertCleanedStopEvents(tx, rows[start:end]); err != nil {
				return err
			}
		}
		return nil
	})
}

// insertCleanedStopEvents saves cleaned stop events to database in batch
func insertCleanedStopEvents(tx *sqlx.Tx, rows []cleaning.CleanedStopEvent) error {
	statementString := "insert into cleaned_stop_event ( " +
		"trip_uid, " +
		"match_key, " +
		"route_id, " +
		"stop_id, " +
		"is_unscheduled, " +
		"scheduled_seconds, " +
		"actual_seconds, " +
		"delay_seconds, " +
		"delay_minutes, " +
		"service_date, " +
		"hour, " +
		"hour_sin, " +
		"hour_cos, " +
		"dow, " +
		"is_weekend, " +
		"is_holiday, " +
		"scheduled_time, " +
		"actual_time) " +
		"values (" +
		":trip_uid, " +
		":match_key, " +
		":route_id, " +
		":stop_id, " +
		":is_unscheduled, " +
		":scheduled_seconds, " +
		":actual_seconds, " +
		":delay_seconds, " +
		":delay_minutes, " +
		":service_date, " +
		":hour, " +
		":hour_sin, " +
		":hour_cos, " +
		":dow, " +
		":is_weekend, " +
		":is_holiday, " +
		":scheduled_time, " +
		":actual_time)"
	statementString = tx.Rebind(statementString)
	_, err := tx.NamedExec(statementString, rows)
	return err
}

/*
transact starts a Transaction on sqlx.DB, calls txFunc and commits or rolls back the transaction depending on the
return code of the txFunc result
*/
func transact(log *log.Logger, db *sqlx.DB, txFunc func(*sqlx.Tx) error) (err error) {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			rollbackErr := tx.Rollback() // err is non-nil; don't change it
			if rollbackErr != nil {
				log.Printf("Received error while attempting to rollback transaction. error:%v", rollbackErr)
			}
			return
		}
		err = tx.Commit() // err is nil; if Commit returns error update err
	}()
	err = txFunc(tx)
	return err
}
