package warehouse

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/transitdatalab/delaylake/foundation/database"
)

// BuildRun records the outcome of one day's build: whether both the
// reconciliation and cleaning steps completed, and how many rows each
// cleaned subset kept. Failed days carry the error text.
type BuildRun struct {
	ServiceDate     string    `db:"service_date" json:"service_date"`
	Ok              bool      `db:"ok" json:"ok"`
	ErrorText       *string   `db:"error_text" json:"error_text"`
	ReconciledRows  int       `db:"reconciled_rows" json:"reconciled_rows"`
	ScheduledRows   int       `db:"scheduled_rows" json:"scheduled_rows"`
	UnscheduledRows int       `db:"unscheduled_rows" json:"unscheduled_rows"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// RecordBuildRun saves one build outcome.
func RecordBuildRun(db *sqlx.DB, run *BuildRun) error {
	run.CreatedAt = time.Now()
	statementString := "insert into build_run ( " +
		"service_date, " +
		"ok, " +
		"error_text, " +
		"reconciled_rows, " +
		"scheduled_rows, " +
		"unscheduled_rows, " +
		"created_at) " +
		"values (" +
		":service_date, " +
		":ok, " +
		":error_text, " +
		":reconciled_rows, " +
		":scheduled_rows, " +
		":unscheduled_rows, " +
		":created_at)"
	statementString = db.Rebind(statementString)
	_, err := db.NamedExec(statementString, run)
	return err
}

// GetBuildRuns retrieves the recorded outcomes for the given service
// dates, newest first.
func GetBuildRuns(db *sqlx.DB, serviceDates []string) ([]BuildRun, error) {
	statementString := "select * from build_run where service_date in (:service_dates) " +
		"order by created_at desc"
	rows, err := database.PrepareNamedQueryRowsFromMap(statementString, db, map[string]interface{}{
		"service_dates": serviceDates,
	})
	if err != nil {
		return nil, err
	}
	var results []BuildRun
	for rows.Next() {
		run := BuildRun{}
		if err = rows.StructScan(&run); err != nil {
			return nil, err
		}
		results = append(results, run)
	}
	return results, nil
}
