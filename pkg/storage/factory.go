package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// StoreFactory is a function that creates a new Store instance
type StoreFactory func(ctx context.Context, config map[string]interface{}) (Store, error)

var (
	storeMu       sync.RWMutex
	storeRegistry = make(map[string]StoreFactory)
)

// RegisterStore registers a new store implementation
func RegisterStore(name string, factory StoreFactory) {
	storeMu.Lock()
	defer storeMu.Unlock()
	storeRegistry[name] = factory
}

// NewStore creates a new store instance by name
func NewStore(ctx context.Context, name string, config map[string]interface{}) (Store, error) {
	storeMu.RLock()
	factory, exists := storeRegistry[name]
	storeMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStore, name)
	}

	return factory(ctx, config)
}

// ListStores returns all registered store types
func ListStores() []string {
	storeMu.RLock()
	defer storeMu.RUnlock()

	stores := make([]string, 0, len(storeRegistry))
	for name := range storeRegistry {
		stores = append(stores, name)
	}
	sort.Strings(stores)
	return stores
}

func loggerFrom(config map[string]interface{}) zerolog.Logger {
	if logger, ok := config["logger"].(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// init registers built-in stores
func init() {
	RegisterStore("sqlite", func(ctx context.Context, config map[string]interface{}) (Store, error) {
		dbPath, ok := config["db_path"].(string)
		if !ok {
			dbPath = "fieldsync.db"
		}

		sqliteConfig := DefaultSQLiteConfig(dbPath)
		sqliteConfig.Logger = loggerFrom(config)

		// Allow overriding config options
		if wal, ok := config["enable_wal"].(bool); ok {
			sqliteConfig.EnableWAL = wal
		}
		if cache, ok := config["cache_size"].(int); ok {
			sqliteConfig.CacheSize = cache
		}
		if timeout, ok := config["busy_timeout"].(int); ok {
			sqliteConfig.BusyTimeout = timeout
		}
		if conns, ok := config["max_open_conns"].(int); ok {
			sqliteConfig.MaxOpenConns = conns
		}

		return NewSQLiteStore(dbPath, sqliteConfig)
	})

	RegisterStore("postgres", func(ctx context.Context, config map[string]interface{}) (Store, error) {
		pgConfig := PostgresConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			Logger:          loggerFrom(config),
		}
		if dsn, ok := config["dsn"].(string); ok {
			pgConfig.DSN = dsn
		}
		if conns, ok := config["max_open_conns"].(int); ok {
			pgConfig.MaxOpenConns = conns
		}

		return NewPostgresStore(ctx, pgConfig)
	})
}
