package main

import (
	"fmt"
	logger "log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ardanlabs/conf"
	"github.com/jmoiron/sqlx"

	"github.com/transitdatalab/delaylake/app/delay-report-svc/reportsvc"
	"github.com/transitdatalab/delaylake/business/data/artifact"
	"github.com/transitdatalab/delaylake/foundation/database"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "DELAY_REPORT_SVC : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	var cfg struct {
		conf.Version
		Web struct {
			HttpPort int `conf:"default:8100"`
		}
		DB struct {
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
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Serve quality reports and build outcomes for cleaned delay datasets"
	const prefix = "REPORT_SVC"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			fmt.Println(usage)
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

	// =========================================================================
	// Artifact store

	var store artifact.Store
	if len(cfg.Store.LocalDir) > 0 {
		log.Printf("main: serving artifacts from local directory %s", cfg.Store.LocalDir)
		store = &artifact.FSStore{Root: cfg.Store.LocalDir}
	} else {
		log.Printf("main: serving artifacts from bucket %s at %s", cfg.Store.Bucket, cfg.Store.Endpoint)
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
	// Optional database for build run lookups

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

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	shutdownWebService := make(chan bool)
	wg := sync.WaitGroup{}
	go reportsvc.RunWebService(log, &wg, store, db, cfg.Web.HttpPort, shutdownWebService)

	<-shutdown
	log.Println("main: shutdown signal received")
	shutdownWebService <- true
	wg.Wait()
	return nil
}
