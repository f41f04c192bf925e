package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hairizuanbinnoorazman/shotdiff/config"
	"github.com/hairizuanbinnoorazman/shotdiff/database"
	"github.com/hairizuanbinnoorazman/shotdiff/logger"
	"github.com/hairizuanbinnoorazman/shotdiff/pipeline"
	"github.com/hairizuanbinnoorazman/shotdiff/run"
	"gorm.io/gorm"
)

// app bundles what every command needs: settings and a logger.
type app struct {
	settings *Settings
	logger   logger.Logger
}

func loadApp() (*app, error) {
	s, err := LoadSettings(flagSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if flagLogLevel != "" {
		s.Log.Level = flagLogLevel
	}
	return &app{
		settings: s,
		logger:   logger.NewLogrusLogger(s.Log.Level, logger.WithFormat(s.Log.Format)),
	}, nil
}

// loadConfig loads and validates a capture config. A config with verbose
// set raises the log level to debug.
func (a *app) loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Verbose && flagLogLevel == "" {
		a.logger = logger.NewLogrusLogger("debug", logger.WithFormat(a.settings.Log.Format))
	}
	return cfg, nil
}

// openDB connects to the run database, applying migrations when enabled.
func (a *app) openDB(ctx context.Context) (*gorm.DB, func(), error) {
	db, err := database.Connect(a.settings.DatabaseConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	closeDB := func() { sqlDB.Close() }

	if a.settings.Database.AutoMigrate {
		if err := database.RunMigrations(sqlDB, a.settings.Database.Driver); err != nil {
			closeDB()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	a.logger.Debug(ctx, "database connected", map[string]interface{}{
		"driver": a.settings.Database.Driver,
	})
	return db, closeDB, nil
}

// runStore opens the run store, or returns nil when recording is disabled.
func (a *app) runStore(ctx context.Context) (run.Store, func(), error) {
	if !a.settings.Database.Enabled {
		return nil, func() {}, nil
	}
	db, closeDB, err := a.openDB(ctx)
	if err != nil {
		return nil, nil, err
	}
	return run.NewSQLStore(db, a.logger), closeDB, nil
}

func (a *app) pipeline(cfg *config.Config, store run.Store, forceSpider bool) *pipeline.Pipeline {
	opts := pipeline.Options{
		Engine:      a.settings.EngineOptions(),
		Workers:     a.settings.Capture.Workers,
		Retries:     a.settings.Capture.Retries,
		Spider:      a.settings.SpiderOptions(),
		ForceSpider: forceSpider,
	}
	var options []pipeline.Option
	if store != nil {
		options = append(options, pipeline.WithRunStore(store))
	}
	return pipeline.New(cfg, opts, a.logger, options...)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
