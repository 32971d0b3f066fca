package database

import (
	"embed"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies all pending migrations for the connection's dialect.
// The underlying *sql.DB is left open.
func Migrate(db *DB) error {
	src, err := iofs.New(migrationsFS, "migrations/"+db.Dialect.MigrationsDir())
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	var driver migratedb.Driver
	switch db.Dialect.(type) {
	case PostgresDialect:
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{})
	case SQLiteDialect:
		driver, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
	default:
		return fmt.Errorf("no migration driver for dialect %s", db.Dialect.Name())
	}
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, db.Dialect.Name(), driver)
	if err != nil {
		return fmt.Errorf("migration setup: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, _ := m.Version()
	log.Printf("[database] schema at version %d (dirty=%v)", version, dirty)
	return nil
}
