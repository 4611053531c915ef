// Package config holds the decbridge configuration: the synchronization
// storage location, the local PIM database, and logging. Configuration is an
// explicit object handed to each component; the storage directory is the one
// user-mutable setting and takes effect on the next operation after
// SetDirectory.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	// Global configuration instance
	globalConfig *Config
	configMutex  sync.RWMutex
)

// Get returns the global configuration instance
// If the configuration has not been initialized, it will return an error
func Get() (*Config, error) {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	return globalConfig, nil
}

// Set sets the global configuration instance
func Set(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()

	globalConfig = cfg
}

// Config represents the complete application configuration
type Config struct {
	DecSync   DecSyncConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	configDir string // Internal: Directory where config was loaded from
}

// DecSyncConfig configures access to the synchronization storage directory.
type DecSyncConfig struct {
	Directory          string        // Storage location; empty disables all operations
	InstanceName       string        // Distinguishes installs sharing a hostname; part of the app ID
	MaxCollections     int           // Upper bound on collections listed per type
	CheckRetries       int           // Storage check attempts before the bridge goes offline
	CheckRetryDelay    time.Duration // Constant delay between storage check attempts
	OfflineRetryWindow time.Duration // Fixed window the host must wait after a broken status
}

// DatabaseConfig represents the local PIM database configuration
type DatabaseConfig struct {
	Path            string        // Path to the SQLite database file
	JournalMode     string        // Journal mode (WAL recommended)
	SynchronousMode string        // Synchronous mode
	BusyTimeout     int           // Busy timeout in milliseconds
	CacheSize       int           // Cache size in KiB
	ForeignKeys     bool          // Whether to enforce foreign key constraints
	ConnMaxLife     time.Duration // Maximum connection lifetime
	QueryTimeout    time.Duration // Query timeout
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string // debug, info, warn, error
	Format     string // text or json
	Output     string // stdout, stderr, or file path
	AddSource  bool   // Include source code position in logs
	TimeFormat string // Time format for logs (empty uses RFC3339)
}

// New returns a new empty Config
func New() *Config {
	return &Config{
		DecSync:  DecSyncConfig{},
		Database: DatabaseConfig{},
		Logging:  LoggingConfig{},
	}
}

// SetDirectory updates the storage location. This is the single mutation
// point for the setting; subsequent bridge operations observe the new value
// immediately.
func (c *Config) SetDirectory(dir string) {
	c.DecSync.Directory = dir
}

// ConfigDir returns the directory configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validateDecSync(); err != nil {
		return fmt.Errorf("decsync config: %w", err)
	}

	if err := c.validateDatabase(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func (c *Config) validateDecSync() error {
	// An empty directory is valid: the bridge reports empty results until
	// the user configures one.
	if c.DecSync.MaxCollections <= 0 {
		return fmt.Errorf("max_collections must be positive")
	}

	if c.DecSync.CheckRetries < 0 {
		return fmt.Errorf("check_retries cannot be negative")
	}

	if c.DecSync.CheckRetryDelay <= 0 {
		return fmt.Errorf("check_retry_delay must be positive")
	}

	if c.DecSync.OfflineRetryWindow <= 0 {
		return fmt.Errorf("offline_retry_window must be positive")
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if c.Database.BusyTimeout <= 0 {
		return fmt.Errorf("busy_timeout must be positive")
	}

	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("query_timeout must be positive")
	}

	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error", "none":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// ParseLogLevel parses a log level string to a slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none":
		// Set to a very high level that won't be triggered
		return slog.Level(9999)
	default:
		return slog.LevelInfo
	}
}
