package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ha1tch/fieldsync/pkg/sqlb"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/rs/zerolog"
)

// PostgresStore implements Store on PostgreSQL through pgx
type PostgresStore struct {
	*baseStore
	config PostgresConfig
}

// PostgresConfig holds PostgreSQL-specific configuration
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Logger          zerolog.Logger
}

// NewPostgresStore connects to dsn, verifies the connection and applies the
// schema
func NewPostgresStore(ctx context.Context, config PostgresConfig) (*PostgresStore, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	db, err := sql.Open("pgx", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	store := &PostgresStore{
		baseStore: &baseStore{
			db:      db,
			dialect: sqlb.Postgres,
			schema:  withIndexes(postgresSchema),
			logger:  config.Logger.With().Str("store", "postgres").Logger(),
		},
		config: config,
	}

	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// Info returns store information
func (s *PostgresStore) Info() StoreInfo {
	return StoreInfo{
		Type:          "postgres",
		Version:       "pgx/v5",
		SchemaVersion: SchemaVersion,
		// pgx rejects a query while another result set is open on the conn
		ConcurrentStatements: false,
	}
}
