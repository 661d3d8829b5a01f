package storage

import (
	"context"
	"errors"
	"fmt"
)

// Config holds connection settings for every backend. Empty hosts and paths
// disable the corresponding backend.
type Config struct {
	ClickHouse ClickHouseConfig
	Postgres   PostgresConfig
	SQLitePath string
}

// DefaultConfig returns a configuration with default local development settings.
func DefaultConfig() Config {
	return Config{
		ClickHouse: ClickHouseConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "ogn",
			User:     "default",
			Password: "",
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "ogn_state",
			User:     "ogn",
			Password: "ogn",
		},
		SQLitePath: "ogn_beacons.db",
	}
}

// Stores holds the opened backends. Any field may be nil.
type Stores struct {
	CH     *ClickHouseDB // ClickHouse for beacon history.
	PG     *PostgresDB   // PostgreSQL for descriptors and latest state.
	SQLite *SQLiteDB     // SQLite for the local raw-line archive.
}

// Open opens every configured backend. On failure the backends opened so far
// are closed.
func Open(ctx context.Context, cfg Config) (*Stores, error) {
	s := &Stores{}

	if cfg.ClickHouse.Host != "" {
		ch, err := OpenClickHouse(ctx, cfg.ClickHouse)
		if err != nil {
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		s.CH = ch
	}

	if cfg.Postgres.Host != "" {
		pg, err := OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		s.PG = pg
	}

	if cfg.SQLitePath != "" {
		lite, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		s.SQLite = lite
	}

	return s, nil
}

// Close closes every opened backend.
func (s *Stores) Close() error {
	var errs []error
	if s.CH != nil {
		if err := s.CH.Close(); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse: %w", err))
		}
	}
	if s.PG != nil {
		s.PG.Close()
	}
	if s.SQLite != nil {
		if err := s.SQLite.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sqlite: %w", err))
		}
	}
	return errors.Join(errs...)
}

// CreateSchemas creates the schemas of the server backends. SQLite creates its
// schema on open.
func (s *Stores) CreateSchemas(ctx context.Context) error {
	if s.CH != nil {
		if err := s.CH.CreateSchema(ctx); err != nil {
			return fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	if s.PG != nil {
		if err := s.PG.CreateSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}
