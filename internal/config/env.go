package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// DefaultDirName is the name of the configuration directory under the user's home
const DefaultDirName = ".partnest"

// DefaultConfigDir returns ~/.partnest
func DefaultConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, DefaultDirName), nil
}

// LoadFromEnv loads configuration from environment variables
// Parameters:
// - configDir: Directory containing config files (or empty for default)
// - configFilePath: Path to .env file (or empty for default)
// - isInitializing: Whether this is being called from the init command, in which case
// a missing .env file is expected and nothing is loaded from the working directory
func LoadFromEnv(configDir string, configFilePath string, isInitializing bool) (*Config, error) {
	cfg := New()

	if configDir == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		configDir = dir
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	cfg.configDir = configDir

	defaultDBPath := filepath.Join(configDir, "partnest.db")
	defaultLogPath := filepath.Join(configDir, "partnest.log")

	if configFilePath == "" {
		configFilePath = filepath.Join(configDir, ".env")
	}

	// ENV_FILE_PATH overrides the config directory .env
	if envFilePath := getEnvString("ENV_FILE_PATH", ""); envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			return nil, fmt.Errorf("failed to load env file from %s: %w", envFilePath, err)
		}
	} else if err := godotenv.Load(configFilePath); err != nil && !isInitializing {
		// Then try current directory as fallback
		_ = godotenv.Load()
	}

	cfg.Database = DatabaseConfig{
		Path:            getEnvString("PARTNEST_DB_PATH", defaultDBPath),
		BusyTimeout:     getEnvInt("PARTNEST_DB_BUSY_TIMEOUT", 5000),
		JournalMode:     getEnvString("PARTNEST_DB_JOURNAL_MODE", "WAL"),
		SynchronousMode: getEnvString("PARTNEST_DB_SYNCHRONOUS_MODE", "NORMAL"),
		CacheSize:       getEnvInt("PARTNEST_DB_CACHE_SIZE", -16000), // ~16MB
		ForeignKeys:     getEnvBool("PARTNEST_DB_FOREIGN_KEYS", true),
		ConnMaxLife:     getEnvDuration("PARTNEST_DB_CONN_MAX_LIFE", 5*time.Minute),
		QueryTimeout:    getEnvDuration("PARTNEST_DB_QUERY_TIMEOUT", 30*time.Second),
	}

	cfg.Logging = LoggingConfig{
		Level:      getEnvString("PARTNEST_LOG_LEVEL", "info"),
		Format:     getEnvString("PARTNEST_LOG_FORMAT", "text"),
		Output:     getEnvString("PARTNEST_LOG_OUTPUT", defaultLogPath),
		AddSource:  getEnvBool("PARTNEST_LOG_ADD_SOURCE", true),
		TimeFormat: getTimeFormat(getEnvString("PARTNEST_LOG_TIME_FORMAT", "RFC3339")),
	}

	cfg.Skeleton = SkeletonConfig{
		LenientCrossings: getEnvBool("PARTNEST_SKELETON_LENIENT_CROSSINGS", false),
		WarningsAsErrors: getEnvBool("PARTNEST_SKELETON_WARNINGS_AS_ERRORS", false),
		AutoSave:         getEnvBool("PARTNEST_SKELETON_AUTO_SAVE", false),
	}

	cfg.Output = OutputConfig{
		Format:        getEnvString("PARTNEST_OUTPUT_FORMAT", FormatText),
		WrapWidth:     getEnvInt("PARTNEST_OUTPUT_WRAP_WIDTH", 100),
		ShowPositions: getEnvBool("PARTNEST_OUTPUT_SHOW_POSITIONS", true),
	}

	return cfg, cfg.Validate()
}
