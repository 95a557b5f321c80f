package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tildaslashalef/partnest/internal/loggy"
)

var (
	// ErrUnknownSetting is returned for keys that do not map onto the configuration
	ErrUnknownSetting = errors.New("unknown setting")

	// ErrInvalidSetting is returned when a value does not parse for its key
	ErrInvalidSetting = errors.New("invalid setting value")
)

// Persisted setting keys. They overlay the matching PARTNEST_* variables.
const (
	KeyLenientCrossings = "skeleton.lenient_crossings"
	KeyWarningsAsErrors = "skeleton.warnings_as_errors"
	KeyAutoSave         = "skeleton.auto_save"
	KeyOutputFormat     = "output.format"
	KeyWrapWidth        = "output.wrap_width"
	KeyShowPositions    = "output.show_positions"
)

type settingDef struct {
	description string
	get         func(c *Config) string
	apply       func(c *Config, value string) error
}

var settingDefs = map[string]settingDef{
	KeyLenientCrossings: {
		description: "resolve crossing part-group markers by range",
		get:         func(c *Config) string { return strconv.FormatBool(c.Skeleton.LenientCrossings) },
		apply:       boolSetting(func(c *Config, v bool) { c.Skeleton.LenientCrossings = v }),
	},
	KeyWarningsAsErrors: {
		description: "fail when any warning is reported",
		get:         func(c *Config) string { return strconv.FormatBool(c.Skeleton.WarningsAsErrors) },
		apply:       boolSetting(func(c *Config, v bool) { c.Skeleton.WarningsAsErrors = v }),
	},
	KeyAutoSave: {
		description: "store every analysed file as a run",
		get:         func(c *Config) string { return strconv.FormatBool(c.Skeleton.AutoSave) },
		apply:       boolSetting(func(c *Config, v bool) { c.Skeleton.AutoSave = v }),
	},
	KeyOutputFormat: {
		description: "report format: text, markdown or json",
		get:         func(c *Config) string { return c.Output.Format },
		apply: func(c *Config, value string) error {
			if !ValidFormat(value) {
				return fmt.Errorf("%w: format %q", ErrInvalidSetting, value)
			}
			c.Output.Format = strings.ToLower(value)
			return nil
		},
	},
	KeyWrapWidth: {
		description: "wrap diagnostic messages at this column, 0 disables",
		get:         func(c *Config) string { return strconv.Itoa(c.Output.WrapWidth) },
		apply: func(c *Config, value string) error {
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return fmt.Errorf("%w: wrap width %q", ErrInvalidSetting, value)
			}
			c.Output.WrapWidth = n
			return nil
		},
	},
	KeyShowPositions: {
		description: "print positions and group ranges in the tree",
		get:         func(c *Config) string { return strconv.FormatBool(c.Output.ShowPositions) },
		apply:       boolSetting(func(c *Config, v bool) { c.Output.ShowPositions = v }),
	},
}

func boolSetting(set func(c *Config, v bool)) func(*Config, string) error {
	return func(c *Config, value string) error {
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %q is not a boolean", ErrInvalidSetting, value)
		}
		set(c, v)
		return nil
	}
}

// SettingKeys returns every persisted setting key in sorted order
func SettingKeys() []string {
	keys := make([]string, 0, len(settingDefs))
	for k := range settingDefs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SettingValue is the effective value of a setting
type SettingValue struct {
	Key         string
	Value       string
	Description string
	Stored      bool // overridden in the database rather than taken from the environment
}

// SettingsService provides operations for managing application settings
type SettingsService struct {
	repo   SettingsRepository
	config *Config
	logger *loggy.Logger
}

// NewSettingsService creates a new settings service
func NewSettingsService(db *sql.DB, config *Config, logger *loggy.Logger) *SettingsService {
	return NewSettingsServiceWithRepository(NewSQLSettingsRepository(db, logger), config, logger)
}

// NewSettingsServiceWithRepository creates a settings service over an existing repository
func NewSettingsServiceWithRepository(repo SettingsRepository, config *Config, logger *loggy.Logger) *SettingsService {
	return &SettingsService{
		repo:   repo,
		config: config,
		logger: logger,
	}
}

// Get returns the effective value of key
func (s *SettingsService) Get(key string) (string, error) {
	def, ok := settingDefs[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	return def.get(s.config), nil
}

// Set validates value, applies it to the running configuration and stores it
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	def, ok := settingDefs[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}

	value = strings.TrimSpace(value)
	if err := def.apply(s.config, value); err != nil {
		return err
	}

	// Store the normalised form
	if err := s.repo.SetSetting(ctx, key, def.get(s.config)); err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}

	s.logger.Info("Setting saved", "key", key, "value", def.get(s.config))
	return nil
}

// Delete removes a stored override so the environment value applies again on the next run
func (s *SettingsService) Delete(ctx context.Context, key string) error {
	if _, ok := settingDefs[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	if err := s.repo.DeleteSetting(ctx, key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

// List returns every setting with its effective value
func (s *SettingsService) List(ctx context.Context) ([]SettingValue, error) {
	stored, err := s.storedSettings(ctx)
	if err != nil {
		return nil, err
	}

	values := make([]SettingValue, 0, len(settingDefs))
	for _, key := range SettingKeys() {
		def := settingDefs[key]
		_, isStored := stored[key]
		values = append(values, SettingValue{
			Key:         key,
			Value:       def.get(s.config),
			Description: def.description,
			Stored:      isStored,
		})
	}
	return values, nil
}

// LoadSkeletonSettings overlays stored skeleton.* and output.* settings on the configuration.
// Stored values that no longer parse are logged and skipped.
func (s *SettingsService) LoadSkeletonSettings(ctx context.Context) error {
	stored, err := s.storedSettings(ctx)
	if err != nil {
		return err
	}

	for _, key := range SettingKeys() {
		value, ok := stored[key]
		if !ok {
			continue
		}
		if err := settingDefs[key].apply(s.config, value); err != nil {
			s.logger.Warn("Ignoring stored setting", "key", key, "error", err)
		}
	}
	return nil
}

// SaveSkeletonSettings stores the current skeleton and output configuration
func (s *SettingsService) SaveSkeletonSettings(ctx context.Context) error {
	for _, key := range SettingKeys() {
		if err := s.repo.SetSetting(ctx, key, settingDefs[key].get(s.config)); err != nil {
			return fmt.Errorf("saving %s: %w", key, err)
		}
	}
	return nil
}

func (s *SettingsService) storedSettings(ctx context.Context) (map[string]string, error) {
	stored := make(map[string]string)
	for _, prefix := range []string{"skeleton.", "output."} {
		settings, err := s.repo.GetSettings(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("loading %s settings: %w", strings.TrimSuffix(prefix, "."), err)
		}
		for k, v := range settings {
			stored[k] = v
		}
	}
	return stored, nil
}
