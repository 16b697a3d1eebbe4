package main

import (
	"fmt"
	logger "log"
	"os"
	"strings"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"

	"github.com/transitdatalab/delaylake/app/delay-builder/builder"
	"github.com/transitdatalab/delaylake/business/cleaning"
	"github.com/transitdatalab/delaylake/business/data/artifact"
	"github.com/transitdatalab/delaylake/business/reconcile"
	"github.com/transitdatalab/delaylake/foundation/database"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "DELAY_BUILDER : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	var cfg struct {
		conf.Version
		Args conf.Args
		DB   struct {
			Enabled    bool   `conf:"default:false"`
			User       string `conf:"default:postgres"`
			Password   string `conf:"default:postgres,noprint"`
			Host       string `conf:"default:0.0.0.0"`
			Name       string `conf:"default:postgres"`
			DisableTLS bool   `conf:"default:true"`
		}
		Store struct {
			LocalDir  string `conf:"default:"`
			Endpoint  string `conf:"default:localhost:9000"`
			AccessKey string `conf:"default:minioadmin"`
			SecretKey string `conf:"default:minioadmin,noprint"`
			Bucket    string `conf:"default:delaylake"`
			Secure    bool   `conf:"default:false"`
		}
		Feeds struct {
			Timezone            string `conf:"default:America/New_York"`
			RegistryURL         string `conf:"default:https://api.mobilitydatabase.org/v1"`
			RegistryFeedID      string `conf:"default:mdb-511"`
			RegistryToken       string `conf:"default:,noprint"`
			ArchiveURL          string `conf:"default:https://subwaydata.nyc/data"`
			LiveCapture         bool   `conf:"default:false"`
			LiveTripUpdatesUrls string `conf:"default:"`
		}
		Nats struct {
			Enabled bool   `conf:"default:false"`
			Url     string `conf:"default:nats://localhost:4222"`
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Build reconciled and cleaned delay tables over a date range"
	const prefix = "BUILDER"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			fmt.Println(usage)
			fmt.Println("arguments: <start-date> [end-date], dates formatted YYYY-MM-DD")
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	start, end, err := dateRangeFromArgs(cfg.Args)
	if err != nil {
		return err
	}

	zone, err := time.LoadLocation(cfg.Feeds.Timezone)
	if err != nil {
		return fmt.Errorf("loading timezone %s: %w", cfg.Feeds.Timezone, err)
	}

	// =========================================================================
	// Artifact store

	var store artifact.Store
	if len(cfg.Store.LocalDir) > 0 {
		log.Printf("main: storing artifacts under local directory %s", cfg.Store.LocalDir)
		store = &artifact.FSStore{Root: cfg.Store.LocalDir}
	} else {
		log.Printf("main: storing artifacts in bucket %s at %s", cfg.Store.Bucket, cfg.Store.Endpoint)
		store, err = artifact.NewMinioStore(artifact.MinioConfig{
			Endpoint:  cfg.Store.Endpoint,
			AccessKey: cfg.Store.AccessKey,
			SecretKey: cfg.Store.SecretKey,
			Bucket:    cfg.Store.Bucket,
			Secure:    cfg.Store.Secure,
		})
		if err != nil {
			return err
		}
	}

	// =========================================================================
	// Optional database and nats destinations

	var db *sqlx.DB
	if cfg.DB.Enabled {
		log.Println("main: Initializing database support")
		db, err = database.Open(database.Config{
			User:       cfg.DB.User,
			Password:   cfg.DB.Password,
			Host:       cfg.DB.Host,
			Name:       cfg.DB.Name,
			DisableTLS: cfg.DB.DisableTLS,
		})
		if err != nil {
			return fmt.Errorf("connecting to db: %w", err)
		}
		defer func() {
			log.Printf("main: Database Stopping : %s", cfg.DB.Host)
			if closeErr := db.Close(); closeErr != nil {
				log.Printf("main: error closing database: %v", closeErr)
			}
		}()
	}

	var natsConnection *nats.Conn
	if cfg.Nats.Enabled {
		log.Printf("main: connecting to nats at %s", cfg.Nats.Url)
		natsConnection, err = nats.Connect(cfg.Nats.Url)
		if err != nil {
			return fmt.Errorf("connecting to nats at %s: %w", cfg.Nats.Url, err)
		}
		defer natsConnection.Close()
	}

	var publisher *builder.OutcomePublisher
	if cfg.DB.Enabled || cfg.Nats.Enabled {
		publisher = builder.MakeOutcomePublisher(log, db, natsConnection, cfg.DB.Enabled, cfg.Nats.Enabled)
	}

	// =========================================================================
	// Feed sources

	static := &builder.MobilityDatabaseSource{
		Log:          log,
		RefreshToken: cfg.Feeds.RegistryToken,
		APIBaseURL:   cfg.Feeds.RegistryURL,
		FeedID:       cfg.Feeds.RegistryFeedID,
	}

	var realtime builder.RealtimeSource
	if cfg.Feeds.LiveCapture {
		realtime = &builder.LiveCaptureSource{
			Log:      log,
			FeedURLs: splitURLList(cfg.Feeds.LiveTripUpdatesUrls),
		}
	} else {
		realtime = &builder.ArchiveRealtimeSource{
			Log:     log,
			BaseURL: cfg.Feeds.ArchiveURL,
		}
	}

	// =========================================================================
	// Run the range

	processor := builder.MakeDayProcessor(log, static, realtime, store, reconcile.DefaultOptions(zone))
	cleaner := builder.MakeDayCleaner(log, store, cleaning.DefaultOptions(), db)
	runner := builder.MakeRangeRunner(log, processor, cleaner, publisher)

	outcomes, err := runner.Run(start, end)
	for _, outcome := range outcomes {
		if outcome.Ok {
			log.Printf("main: %s ok, reconciled=%d scheduled=%d unscheduled=%d",
				outcome.ServiceDate, outcome.ReconciledRows, outcome.ScheduledRows, outcome.UnscheduledRows)
		}
	}
	return err
}

// dateRangeFromArgs reads the start date and optional end date arguments. A
// single date builds just that day.
func dateRangeFromArgs(args conf.Args) (time.Time, time.Time, error) {
	if len(args) < 1 || len(args) > 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("expected arguments <start-date> [end-date]")
	}
	start, err := builder.ParseDay(args[0])
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end := start
	if len(args) == 2 {
		if end, err = builder.ParseDay(args[1]); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s is before start date %s", args[1], args[0])
	}
	return start, end, nil
}

func splitURLList(value string) []string {
	var urls []string
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		if len(part) > 0 {
			urls = append(urls, part)
		}
	}
	return urls
}
