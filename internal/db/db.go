package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/unklstewy/ads-btrack/pkg/config"
)

//go:embed schema.sql
var schemaSQL string

// DB wraps a database connection with helper methods.
type DB struct {
	*sql.DB
	config config.DatabaseConfig
}

// Connect opens and pings the database described by cfg. Driver "postgres"
// connects to a server; "sqlite3" opens cfg.Database as a file.
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	var dsn string
	switch cfg.Driver {
	case "postgres":
		dsn = fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host,
			cfg.Port,
			cfg.Username,
			cfg.Password,
			cfg.Database,
			cfg.SSLMode,
		)
	case "sqlite3":
		dsn = "file:" + cfg.Database + "?_busy_timeout=5000&_journal_mode=WAL"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	sqlDB, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool; SQLite allows a single writer
	if cfg.Driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{
		DB:     sqlDB,
		config: cfg,
	}, nil
}

// Driver returns the driver name the connection was opened with.
func (db *DB) Driver() string {
	return db.config.Driver
}

// Rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
// Queries are written once with ? and rebound per driver.
func (db *DB) Rebind(query string) string {
	if db.config.Driver != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// InitSchema creates the tables if they do not exist.
// This should be called once at application startup.
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// CleanupOldData removes position history older than maxAge and aircraft
// not seen within it. Should be called periodically to prevent unbounded
// growth.
func (db *DB) CleanupOldData(ctx context.Context, maxAge time.Duration) error {
	cutoff := time.Now().UTC().Add(-maxAge)

	_, err := db.ExecContext(ctx,
		db.Rebind(`DELETE FROM aircraft_positions WHERE timestamp < ?`),
		cutoff,
	)
	if err != nil {
		return fmt.Errorf("failed to delete old positions: %w", err)
	}

	_, err = db.ExecContext(ctx,
		db.Rebind(`DELETE FROM aircraft WHERE last_seen < ?`),
		cutoff,
	)
	if err != nil {
		return fmt.Errorf("failed to delete old aircraft: %w", err)
	}

	return nil
}

// GetStats returns database statistics.
func (db *DB) GetStats(ctx context.Context) (map[string]any, error) {
	stats := make(map[string]any)

	var aircraftCount int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM aircraft`,
	).Scan(&aircraftCount)
	if err != nil {
		return nil, err
	}
	stats["aircraft"] = aircraftCount

	var positionedCount int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM aircraft WHERE latitude IS NOT NULL`,
	).Scan(&positionedCount)
	if err != nil {
		return nil, err
	}
	stats["positioned_aircraft"] = positionedCount

	var positionCount int64
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM aircraft_positions`,
	).Scan(&positionCount)
	if err != nil {
		return nil, err
	}
	stats["position_records"] = positionCount

	return stats, nil
}
