package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// LoadFromEnv loads configuration from environment variables
// Parameters:
// - configDir: Directory containing config files (or empty for default)
// - configFilePath: Path to .env file (or empty for default)
func LoadFromEnv(configDir string, configFilePath string) (*Config, error) {
	// Load empty configuration
	cfg := New()

	// If configDir is empty, use the default
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".decbridge")

		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	cfg.configDir = configDir

	// Default database and log paths live in the config directory
	defaultDBPath := filepath.Join(configDir, "decbridge.db")
	defaultLogPath := filepath.Join(configDir, "decbridge.log")

	// Use provided config file path or default
	if configFilePath == "" {
		configFilePath = filepath.Join(configDir, ".env")
	}

	// Check if ENV_FILE_PATH is set to load from a custom .env file
	envFilePath := getEnvString("ENV_FILE_PATH", "")
	if envFilePath != "" {
		// User specified a custom env file path
		if err := godotenv.Load(envFilePath); err != nil {
			return nil, fmt.Errorf("failed to load env file from %s: %w", envFilePath, err)
		}
	} else {
		// Try to load from config directory first
		if err := godotenv.Load(configFilePath); err != nil {
			// Then try current directory as fallback
			_ = godotenv.Load() // Ignore errors if file doesn't exist
		}
	}

	// DecSync Configuration
	cfg.DecSync = DecSyncConfig{
		Directory:          getEnvString("DECBRIDGE_DECSYNC_DIR", ""),
		InstanceName:       getEnvString("DECBRIDGE_INSTANCE_NAME", ""),
		MaxCollections:     getEnvInt("DECBRIDGE_MAX_COLLECTIONS", 16),
		CheckRetries:       getEnvInt("DECBRIDGE_CHECK_RETRIES", 2),
		CheckRetryDelay:    getEnvDuration("DECBRIDGE_CHECK_RETRY_DELAY", 2*time.Second),
		OfflineRetryWindow: getEnvDuration("DECBRIDGE_OFFLINE_RETRY_WINDOW", 60*time.Second),
	}

	// Database Configuration
	cfg.Database = DatabaseConfig{
		Path:            getEnvString("DECBRIDGE_DB_PATH", defaultDBPath),
		BusyTimeout:     getEnvInt("DECBRIDGE_DB_BUSY_TIMEOUT", 5000),
		JournalMode:     getEnvString("DECBRIDGE_DB_JOURNAL_MODE", "WAL"),
		SynchronousMode: getEnvString("DECBRIDGE_DB_SYNCHRONOUS_MODE", "NORMAL"),
		CacheSize:       getEnvInt("DECBRIDGE_DB_CACHE_SIZE", -64000), // ~64MB
		ForeignKeys:     getEnvBool("DECBRIDGE_DB_FOREIGN_KEYS", true),
		ConnMaxLife:     getEnvDuration("DECBRIDGE_DB_CONN_MAX_LIFE", 5*time.Minute),
		QueryTimeout:    getEnvDuration("DECBRIDGE_DB_QUERY_TIMEOUT", 30*time.Second),
	}

	// Logging Configuration
	cfg.Logging = LoggingConfig{
		Level:      getEnvString("DECBRIDGE_LOG_LEVEL", "info"),
		Format:     getEnvString("DECBRIDGE_LOG_FORMAT", "text"),
		Output:     getEnvString("DECBRIDGE_LOG_OUTPUT", defaultLogPath),
		AddSource:  getEnvBool("DECBRIDGE_LOG_ADD_SOURCE", true),
		TimeFormat: getEnvString("DECBRIDGE_LOG_TIME_FORMAT", time.RFC3339),
	}

	// Validate the configuration
	return cfg, cfg.Validate()
}

// getEnvString retrieves a string environment variable or returns the default
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		var parsed int
		if _, err := fmt.Sscanf(value, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		switch value {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
