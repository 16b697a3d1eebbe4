// Package reportsvc serves quality reports and build outcomes for cleaned
// delay datasets over http.
package reportsvc

import (
	"context"
	"encoding/json"
	logger "log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"

	"github.com/transitdatalab/delaylake/business/data/artifact"
	"github.com/transitdatalab/delaylake/business/data/warehouse"
)

//defaultHttpHandler simple default http handler for default route
type defaultHttpHandler struct {
}

//ServeHTTP implements defaultHttpHandler http.Handler interface
func (h *defaultHttpHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Application-Status", "OK")
}

//qualityReportHandler serves stored per-day quality reports
type qualityReportHandler struct {
	log   *logger.Logger
	store artifact.Store
}

//ServeHTTP implements qualityReportHandler's http.Handler interface
func (q *qualityReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	day := mux.Vars(r)["date"]
	subset := strings.ToLower(r.FormValue("subset"))
	if subset == "" {
		subset = "scheduled"
	}
	if subset != "scheduled" && subset != "unscheduled" {
		http.Error(w, "subset must be scheduled or unscheduled", http.StatusBadRequest)
		return
	}
	jsonData, err := q.store.Download(r.Context(), artifact.QualityReportObject(day, subset))
	if err != nil {
		q.log.Printf("no %s quality report for %s: %v", subset, day, err)
		http.Error(w, "no quality report for date", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(jsonData); err != nil {
		q.log.Printf("Error writing json response: %s", err)
	}
}

//buildRunHandler serves recorded build outcomes for a service date
type buildRunHandler struct {
	log *logger.Logger
	db  *sqlx.DB
}

//ServeHTTP implements buildRunHandler's http.Handler interface
func (b *buildRunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if b.db == nil {
		http.Error(w, "build run recording is not enabled", http.StatusNotImplemented)
		return
	}
	day := mux.Vars(r)["date"]
	runs, err := warehouse.GetBuildRuns(b.db, []string{day})
	if err != nil {
		b.log.Printf("Error loading build runs for %s: %v", day, err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	jsonData, err := json.Marshal(makeBuildRunResponse(day, runs))
	if err != nil {
		b.log.Printf("Error marshaling build runs to json: error:%v\n", err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(jsonData); err != nil {
		b.log.Printf("Error writing json response: %s", err)
	}
}

//BuildRunResponse wraps the build runs recorded for one service date
type BuildRunResponse struct {
	ServiceDate string               `json:"service_date"`
	BuildRuns   []warehouse.BuildRun `json:"build_runs"`
}

func makeBuildRunResponse(day string, runs []warehouse.BuildRun) *BuildRunResponse {
	if runs == nil {
		runs = make([]warehouse.BuildRun, 0)
	}
	return &BuildRunResponse{
		ServiceDate: day,
		BuildRuns:   runs,
	}
}

//createServer creates configured http.Server for responding to report requests
func createServer(log *logger.Logger,
	store artifact.Store,
	db *sqlx.DB,
	httpPort int) *http.Server {

	r := mux.NewRouter()
	r.Handle("/", &defaultHttpHandler{})
	r.Handle("/qualityReport/{date}", &qualityReportHandler{log: log, store: store})
	r.Handle("/buildRuns/{date}", &buildRunHandler{log: log, db: db})
	srv := &http.Server{
		Addr: strings.Join([]string{"0.0.0.0", strconv.Itoa(httpPort)}, ":"),
		// Good practice to set timeouts to avoid Slowloris attacks.
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      r,
	}
	return srv
}

//RunWebService starts up the report web service, and terminates on shutdown signal
func RunWebService(log *logger.Logger,
	wg *sync.WaitGroup,
	store artifact.Store,
	db *sqlx.DB,
	httpPort int,
	shutdownSignal chan bool,
) {
	wg.Add(1)
	defer wg.Done()
	srv := createServer(log, store, db, httpPort)
	log.Printf("Starting server on port %d", httpPort)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Printf("server ListenAndServe ended. %s", err)
		}
	}()
	<-shutdownSignal
	log.Printf("ending webservice on shutdown signal")
	shutdownCtx, serverCancelFunc := context.WithTimeout(context.Background(), time.Duration(5)*time.Second)
	defer serverCancelFunc()
	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		log.Printf("error shutting down webservice, error:%s", err)
	}
}
