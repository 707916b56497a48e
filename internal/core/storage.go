package core

import (
	"context"
	"fmt"
	"os"

	"elwinator/internal/infra/persistence/memory"
	"elwinator/internal/infra/persistence/postgres"
	"elwinator/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageOptions selects and configures a persistent store.
type StorageOptions struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// StorageOptionsFromEnv reads the storage environment variables. The driver defaults
// to sqlite when unset.
//
//	ELWINATOR_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	ELWINATOR_SQLITE_PATH: path to sqlite file (default ./elwinator.db)
//	ELWINATOR_POSTGRES_DSN: postgres DSN when driver=postgres
func StorageOptionsFromEnv() StorageOptions {
	driver := StorageDriver(os.Getenv("ELWINATOR_STORAGE_DRIVER"))
	if driver == "" {
		driver = StorageSQLite
	}
	return StorageOptions{
		Driver:      driver,
		SQLitePath:  os.Getenv("ELWINATOR_SQLITE_PATH"),
		PostgresDSN: os.Getenv("ELWINATOR_POSTGRES_DSN"),
	}
}

// OpenPersistentStore opens the backend named by opts.Driver.
func OpenPersistentStore(ctx context.Context, opts StorageOptions) (PersistentStore, error) {
	switch opts.Driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite, "":
		store, err := sqlite.NewStore(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", opts.Driver)
	}
}
