package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/tildaslashalef/partnest/internal/loggy"
	"github.com/tildaslashalef/partnest/internal/ulid"
)

// SettingsRepository stores setting overrides keyed by their dotted name
type SettingsRepository interface {
	// GetSettings returns every stored setting whose key starts with prefix
	GetSettings(ctx context.Context, prefix string) (map[string]string, error)
	// SetSetting inserts the key or replaces its value
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
}

// SQLSettingsRepository keeps settings in the settings table
type SQLSettingsRepository struct {
	db     *sql.DB
	logger *loggy.Logger
}

// NewSQLSettingsRepository creates a new SQL settings repository
func NewSQLSettingsRepository(db *sql.DB, logger *loggy.Logger) SettingsRepository {
	return &SQLSettingsRepository{db: db, logger: logger}
}

func (r *SQLSettingsRepository) exec(ctx context.Context, op string, q squirrel.Sqlizer) (sql.Result, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building %s query: %w", op, err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing %s query: %w", op, err)
	}
	return res, nil
}

// GetSettings returns stored settings by key prefix
func (r *SQLSettingsRepository) GetSettings(ctx context.Context, prefix string) (map[string]string, error) {
	query, args, err := squirrel.Select("key", "value").
		From("settings").
		Where(squirrel.Like{"key": prefix + "%"}).
		OrderBy("key").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building get settings query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing get settings query: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning setting row: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// SetSetting upserts on the unique key column
func (r *SQLSettingsRepository) SetSetting(ctx context.Context, key, value string) error {
	now := time.Now().UTC()
	q := squirrel.Insert("settings").
		Columns("id", "key", "value", "created_at", "updated_at").
		Values(ulid.SettingID(), key, value, now, now).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at")

	if _, err := r.exec(ctx, "set setting", q); err != nil {
		return err
	}
	r.logger.Debug("Setting stored", "key", key)
	return nil
}

// DeleteSetting removes a stored setting; deleting a missing key is not an error
func (r *SQLSettingsRepository) DeleteSetting(ctx context.Context, key string) error {
	res, err := r.exec(ctx, "delete setting", squirrel.Delete("settings").Where(squirrel.Eq{"key": key}))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		r.logger.Debug("Setting removed", "key", key)
	}
	return nil
}
