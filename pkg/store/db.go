// Package store persists trips, profiles and preferences in SQLite.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/NERVsystems/ecoroute/pkg/monitoring"
	"github.com/NERVsystems/ecoroute/pkg/tracing"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	_ "modernc.org/sqlite"
)

// Config holds database configuration
type Config struct {
	Path         string
	MaxOpenConns int
}

// DB is an open, migrated database
type DB struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens the database at cfg.Path and applies pending migrations.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	// foreign_keys and busy_timeout are per connection, so they go in the DSN.
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", cfg.Path)
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 4
	}
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(maxOpen)

	if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	d := &DB{
		db:     conn,
		logger: slog.Default().With("component", "store"),
		now:    time.Now,
	}
	if err := d.migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	d.logger.Info("database ready", "path", cfg.Path)
	return d, nil
}

// Ping checks that the database is reachable. Used by the health monitor.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

// SetClock replaces the time source used for created_at and updated_at.
func (d *DB) SetClock(now func() time.Time) {
	d.now = now
}

// Trips returns the trip history store
func (d *DB) Trips() *TripStore {
	return &TripStore{db: d}
}

// Profiles returns the profile store
func (d *DB) Profiles() *ProfileStore {
	return &ProfileStore{db: d}
}

// Preferences returns the preferences store
func (d *DB) Preferences() *PreferencesStore {
	return &PreferencesStore{db: d}
}

// observe wraps a database call in a span and a latency metric.
func (d *DB) observe(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartSpan(ctx, "store."+op,
		trace.WithAttributes(attribute.String(tracing.AttrStoreOperation, op)),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	monitoring.RecordStoreOperation(op, time.Since(start), err == nil)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.logger.Error("database operation failed", "operation", op, "error", err)
	}
	return err
}
