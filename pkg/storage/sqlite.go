package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/ha1tch/fieldsync/pkg/sqlb"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore implements Store using an SQLite database file
type SQLiteStore struct {
	*baseStore
	dbPath string
	config SQLiteConfig
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	DBPath       string
	EnableWAL    bool // Write-Ahead Logging for better concurrency
	CacheSize    int  // Page cache size in KB
	BusyTimeout  int  // Milliseconds to wait on locked database
	MaxOpenConns int
	Logger       zerolog.Logger
}

// DefaultSQLiteConfig returns the settings used when none are given
func DefaultSQLiteConfig(dbPath string) SQLiteConfig {
	return SQLiteConfig{
		DBPath:       dbPath,
		EnableWAL:    true,
		CacheSize:    2000,
		BusyTimeout:  5000,
		MaxOpenConns: 8,
		Logger:       zerolog.Nop(),
	}
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// applies the schema
func NewSQLiteStore(dbPath string, config SQLiteConfig) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "fieldsync.db"
	}

	db, err := sql.Open("sqlite", sqliteDSN(dbPath, config))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := config.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 8
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)

	store := &SQLiteStore{
		baseStore: &baseStore{
			db:      db,
			dialect: sqlb.SQLite,
			schema:  withIndexes(sqliteSchema),
			logger:  config.Logger.With().Str("store", "sqlite").Logger(),
		},
		dbPath: dbPath,
		config: config,
	}

	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// sqliteDSN builds the connection string. Pragmas go in the DSN so that
// every pooled connection gets them, not only the first.
func sqliteDSN(dbPath string, config SQLiteConfig) string {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	busy := config.BusyTimeout
	if busy <= 0 {
		busy = 5000
	}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy))
	if config.EnableWAL {
		params.Add("_pragma", "journal_mode(WAL)")
		params.Add("_pragma", "synchronous(NORMAL)")
	}
	if config.CacheSize > 0 {
		params.Add("_pragma", fmt.Sprintf("cache_size(-%d)", config.CacheSize))
	}
	// writers take the lock up front instead of failing on upgrade
	params.Set("_txlock", "immediate")

	path := dbPath
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + "?" + params.Encode()
}

// Info returns store information
func (s *SQLiteStore) Info() StoreInfo {
	return StoreInfo{
		Type:                 "sqlite",
		Version:              "3",
		SchemaVersion:        SchemaVersion,
		ConcurrentStatements: true,
	}
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.dbPath
}
