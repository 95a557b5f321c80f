package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Output formats understood by the report package
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// levelNone is above every slog level, so nothing is logged
const levelNone = slog.Level(9999)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
	"none":  levelNone,
}

// Named layouts accepted by PARTNEST_LOG_TIME_FORMAT
var timeFormats = map[string]string{
	"RFC3339":     time.RFC3339,
	"RFC3339Nano": time.RFC3339Nano,
	"RFC822":      time.RFC822,
	"Kitchen":     time.Kitchen,
	"Stamp":       time.Stamp,
	"StampMilli":  time.StampMilli,
	"DateTime":    time.DateTime,
	"DateTimeMS":  "2006-01-02 15:04:05.000",
	"Date":        time.DateOnly,
	"Time":        time.TimeOnly,
}

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig
	Logging   LoggingConfig
	Skeleton  SkeletonConfig
	Output    OutputConfig
	configDir string
}

// DatabaseConfig holds the SQLite connection settings
type DatabaseConfig struct {
	Path            string
	JournalMode     string // WAL recommended
	SynchronousMode string
	BusyTimeout     int // milliseconds
	CacheSize       int // negative values are KiB
	ForeignKeys     bool
	ConnMaxLife     time.Duration
	QueryTimeout    time.Duration
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string // debug, info, warn, error or none
	Format     string // text or json
	Output     string // stdout, stderr, or file path
	AddSource  bool
	TimeFormat string // Go layout, empty uses RFC3339
}

// SkeletonConfig controls how part lists are turned into trees
type SkeletonConfig struct {
	LenientCrossings bool // Resolve crossing group markers by range instead of failing
	WarningsAsErrors bool // Exit non-zero when any warning is reported
	AutoSave         bool // Persist every analysed file as a run
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Format        string // text, markdown or json
	WrapWidth     int    // Column at which diagnostic messages are wrapped, 0 disables
	ShowPositions bool   // Print part positions and group ranges in the tree
}

// New returns a new empty Config
func New() *Config {
	return &Config{}
}

// ConfigDir returns the directory the configuration was loaded from
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Validate checks every section and normalizes the output format
func (c *Config) Validate() error {
	checks := []struct {
		section string
		check   func() error
	}{
		{"database", c.validateDatabase},
		{"logging", c.validateLogging},
		{"output", c.validateOutput},
	}
	for _, ch := range checks {
		if err := ch.check(); err != nil {
			return fmt.Errorf("%s config: %w", ch.section, err)
		}
	}
	return nil
}

// ParseLogLevel maps a level name to a slog.Level, defaulting to info
func ParseLogLevel(level string) slog.Level {
	if l, ok := logLevels[strings.ToLower(level)]; ok {
		return l
	}
	return slog.LevelInfo
}

// ValidFormat reports whether format names a report renderer
func ValidFormat(format string) bool {
	switch strings.ToLower(format) {
	case FormatText, FormatMarkdown, FormatJSON:
		return true
	}
	return false
}

func (c *Config) validateDatabase() error {
	db := c.Database
	if db.Path == "" {
		return errors.New("database path cannot be empty")
	}

	dir := filepath.Dir(db.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory for database: %w", err)
	}
	if err := checkDirectoryWritable(dir); err != nil {
		return fmt.Errorf("database directory: %w", err)
	}

	switch {
	case db.BusyTimeout <= 0:
		return errors.New("busy timeout must be positive")
	case db.ConnMaxLife <= 0:
		return errors.New("connection max life must be positive")
	case db.QueryTimeout <= 0:
		return errors.New("query timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if _, ok := logLevels[strings.ToLower(c.Logging.Level)]; !ok {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
		return nil
	}
	return fmt.Errorf("invalid log format: %s", c.Logging.Format)
}

func (c *Config) validateOutput() error {
	if !ValidFormat(c.Output.Format) {
		return fmt.Errorf("invalid output format: %s", c.Output.Format)
	}
	c.Output.Format = strings.ToLower(c.Output.Format)

	if c.Output.WrapWidth < 0 {
		return errors.New("wrap width cannot be negative")
	}
	return nil
}

// lookupEnv parses the variable key, falling back to def when it is unset or malformed
func lookupEnv[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func getEnvString(key, defaultValue string) string {
	return lookupEnv(key, defaultValue, func(s string) (string, error) { return s, nil })
}

func getEnvInt(key string, defaultValue int) int {
	return lookupEnv(key, defaultValue, strconv.Atoi)
}

func getEnvBool(key string, defaultValue bool) bool {
	return lookupEnv(key, defaultValue, strconv.ParseBool)
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return lookupEnv(key, defaultValue, time.ParseDuration)
}

// getTimeFormat resolves a named layout; anything else is used as a layout itself
func getTimeFormat(name string) string {
	if layout, ok := timeFormats[name]; ok {
		return layout
	}
	return name
}

func checkDirectoryWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".partnest-write-*")
	if err != nil {
		return fmt.Errorf("directory not writable: %w", err)
	}
	f.Close()
	return os.Remove(f.Name())
}
