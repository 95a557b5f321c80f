// Package app wires configuration, logging, the run database and the
// services partnest commands use.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/tildaslashalef/partnest/internal/config"
	"github.com/tildaslashalef/partnest/internal/database"
	"github.com/tildaslashalef/partnest/internal/loggy"
	"github.com/tildaslashalef/partnest/internal/runs"
	"github.com/urfave/cli/v2"
)

// metadataKey is where main stores the App in cli.App.Metadata
const metadataKey = "app"

// App holds the services shared by every command
type App struct {
	Config   *config.Config
	Settings *config.SettingsService
	Runs     *runs.Service
	Logger   *loggy.Logger
}

// New loads the configuration, starts logging, opens and migrates the run
// database and builds the services on top of it
func New(version string) (*App, error) {
	cfg, err := config.LoadFromEnv("", "", false)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	err = loggy.Init(loggy.Config{
		Level:      config.ParseLogLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := loggy.GetGlobalLogger()
	logger.Info("Application initializing", "version", version, "log_level", cfg.Logging.Level)

	if err := database.InitDB(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	// Runs can be stored before an explicit init
	if applied, err := database.RunMigrations(); err != nil {
		return nil, err
	} else if applied > 0 {
		logger.Info("Applied pending migrations", "count", applied)
	}

	db, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	settings := config.NewSettingsService(db, cfg, logger)
	if err := settings.LoadSkeletonSettings(context.Background()); err != nil {
		logger.Warn("Failed to load settings from database, using environment", "error", err)
	}

	return &App{
		Config:   cfg,
		Settings: settings,
		Runs:     runs.NewService(db, logger),
		Logger:   logger,
	}, nil
}

// Attach stores app in the metadata of the running cli.App
func (app *App) Attach(c *cli.Context) {
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[metadataKey] = app
}

// Shutdown closes the run database
func (app *App) Shutdown() error {
	app.Logger.Info("Shutting down application")
	if err := database.CloseDB(); err != nil {
		app.Logger.Error("Error closing database connection", "error", err)
		return err
	}
	return nil
}

// FromContext returns the App attached to the running cli.App
func FromContext(c *cli.Context) (*App, error) {
	app, ok := c.App.Metadata[metadataKey].(*App)
	if !ok || app == nil {
		return nil, errors.New("app not initialized")
	}
	return app, nil
}
