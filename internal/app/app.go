// Package app provides the application initialization and lifecycle management
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/decbridge/internal/bridge"
	"github.com/tildaslashalef/decbridge/internal/config"
	"github.com/tildaslashalef/decbridge/internal/database"
	"github.com/tildaslashalef/decbridge/internal/decsync"
	"github.com/tildaslashalef/decbridge/internal/loggy"
	"github.com/tildaslashalef/decbridge/internal/pim"
	"github.com/tildaslashalef/decbridge/internal/utils"
)

// App represents the application instance with its dependencies
type App struct {
	Config   *config.Config
	Settings *config.SettingsService
	Engine   decsync.Engine
	PIM      *pim.Service
	Bridge   *bridge.Service
}

// New initializes a new application instance with all its dependencies
func New() (*App, error) {
	cfg, err := initConfig()
	if err != nil {
		return nil, err
	}

	if err := initLogger(cfg); err != nil {
		return nil, err
	}

	loggy.Info("Application initializing",
		"version", os.Getenv("VERSION"),
		"log_level", cfg.Logging.Level,
	)

	if err := database.InitDB(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	db, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	app, err := initServices(cfg, db)
	if err != nil {
		return nil, err
	}

	loggy.Info("Application initialized successfully")
	return app, nil
}

// initConfig loads and sets up the application configuration
func initConfig() (*config.Config, error) {
	cfg, err := config.LoadFromEnv("", "")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	config.Set(cfg)
	return cfg, nil
}

// initLogger initializes the logging system
func initLogger(cfg *config.Config) error {
	err := loggy.Init(loggy.Config{
		Level:      config.ParseLogLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// initServices initializes all application services
func initServices(cfg *config.Config, db *sql.DB) (*App, error) {
	logger := loggy.GetGlobalLogger()
	ctx := context.Background()

	settingsService := config.NewSettingsService(db, cfg, logger)
	if err := settingsService.LoadSettings(ctx); err != nil {
		loggy.Warn("Failed to load settings from database", "error", err)
		// Continue anyway, using defaults
	}

	instanceName, err := settingsService.EnsureInstanceName(ctx, utils.GenerateInstanceName())
	if err != nil {
		loggy.Warn("Failed to persist instance name", "error", err)
		instanceName = cfg.DecSync.InstanceName
	}

	engine := decsync.NewLocalEngine(decsync.DeriveAppID(instanceName))
	pimService := pim.NewService(db, logger)
	bridgeService := bridge.NewService(cfg, engine, pimService, pimService, logger)

	return &App{
		Config:   cfg,
		Settings: settingsService,
		Engine:   engine,
		PIM:      pimService,
		Bridge:   bridgeService,
	}, nil
}

// Shutdown gracefully shuts down the application
func (app *App) Shutdown() error {
	loggy.Info("Shutting down application")

	if err := database.CloseDB(); err != nil {
		loggy.Error("Error closing database connection", "error", err)
	}

	return nil
}

// FromContext retrieves the App instance from the CLI context
func FromContext(c *cli.Context) (*App, error) {
	if c.App.Metadata == nil {
		return nil, fmt.Errorf("app metadata not found in context")
	}

	app, ok := c.App.Metadata["app"].(*App)
	if !ok {
		return nil, fmt.Errorf("app instance not found in context")
	}

	return app, nil
}
