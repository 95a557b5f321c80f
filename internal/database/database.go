// Package database provides SQLite database management for partnest
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/mattn/go-sqlite3"
	"github.com/tildaslashalef/partnest/internal/config"
	"github.com/tildaslashalef/partnest/internal/loggy"
	"github.com/tildaslashalef/partnest/internal/migrations"
)

var (
	// ErrNotInitialized is returned when the database has not been initialized
	ErrNotInitialized = errors.New("database not initialized")

	db     *sql.DB
	dbLock sync.Mutex
)

// DB returns the database connection
func DB() (*sql.DB, error) {
	dbLock.Lock()
	defer dbLock.Unlock()

	if db == nil {
		return nil, ErrNotInitialized
	}
	return db, nil
}

// InitDB opens the database connection described by cfg
func InitDB(cfg *config.Config) error {
	dbLock.Lock()
	defer dbLock.Unlock()

	if db != nil {
		return nil
	}

	loggy.Info("Initializing database", "path", cfg.Database.Path)

	conn, err := Open(&cfg.Database)
	if err != nil {
		return err
	}
	db = conn

	loggy.Info("Database initialized successfully")
	return nil
}

// Open opens and pings a SQLite connection without touching the package connection
func Open(cfg *config.DatabaseConfig) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", buildSQLiteDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	conn.SetConnMaxLifetime(cfg.ConnMaxLife)
	conn.SetMaxOpenConns(1) // SQLite supports only one writer at a time
	conn.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return conn, nil
}

// buildSQLiteDSN builds a SQLite DSN with additional parameters
func buildSQLiteDSN(cfg *config.DatabaseConfig) string {
	if cfg.Path == ":memory:" || strings.HasPrefix(cfg.Path, "file::memory:") {
		return cfg.Path
	}

	params := url.Values{
		"_busy_timeout": {strconv.Itoa(cfg.BusyTimeout)},
		"_journal_mode": {cfg.JournalMode},
		"_synchronous":  {cfg.SynchronousMode},
		"_foreign_keys": {strconv.FormatBool(cfg.ForeignKeys)},
		"cache":         {"shared"},
	}
	if cfg.CacheSize != 0 {
		params.Set("_cache_size", strconv.Itoa(cfg.CacheSize))
	}
	return cfg.Path + "?" + params.Encode()
}

// CloseDB closes the database connection
func CloseDB() error {
	dbLock.Lock()
	defer dbLock.Unlock()

	if db == nil {
		return nil
	}

	err := db.Close()
	db = nil
	return err
}

// WithTransaction executes fn within a transaction on conn, committing when fn returns nil
func WithTransaction(ctx context.Context, conn *sql.DB, fn func(*sql.Tx) error) error {
	if conn == nil {
		return ErrNotInitialized
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			loggy.Error("Failed to rollback transaction", "error", rbErr)
		}
		return err
	}

	return tx.Commit()
}

// IsBusy reports whether err is SQLite refusing work because another
// connection holds the lock
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// withMigrate runs fn against a migrator bound to the package connection
func withMigrate(fn func(m *migrate.Migrate) error) error {
	dbLock.Lock()
	defer dbLock.Unlock()

	if db == nil {
		return ErrNotInitialized
	}

	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	src, err := migrations.GetSource()
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	return fn(m)
}

// version is m.Version with an empty schema reported as version 0
func version(m *migrate.Migrate) (uint, bool, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return v, dirty, nil
}

// RunMigrations applies all pending embedded migrations and returns how many were applied
func RunMigrations() (int, error) {
	var applied int
	err := withMigrate(func(m *migrate.Migrate) error {
		before, _, err := version(m)
		if err != nil {
			return err
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			loggy.Error("Failed to apply migrations", "error", err)
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
		after, dirty, err := version(m)
		if err != nil {
			return err
		}
		applied = int(after) - int(before)
		loggy.Info("Database migration complete", "version", after, "dirty", dirty)
		return nil
	})
	return applied, err
}

// RevertMigrations rolls the schema back by steps migrations
func RevertMigrations(steps int) error {
	return withMigrate(func(m *migrate.Migrate) error {
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			loggy.Error("Failed to revert migrations", "error", err)
			return fmt.Errorf("failed to revert migrations: %w", err)
		}
		v, dirty, err := version(m)
		if err != nil {
			return err
		}
		loggy.Info("Database migration reversion complete", "version", v, "dirty", dirty)
		return nil
	})
}

// MigrationVersion reports the applied schema version. Version 0 means no migration has run.
func MigrationVersion() (v uint, dirty bool, err error) {
	err = withMigrate(func(m *migrate.Migrate) error {
		v, dirty, err = version(m)
		return err
	})
	return v, dirty, err
}
