package database

import (
	"database/sql"
	"regexp"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect hides the differences between the SQL engines the service runs on.
// Queries are written once with ? placeholders.
type Dialect interface {
	Name() string
	DriverName() string
	// Rebind converts ? placeholders to the driver's native syntax.
	Rebind(query string) string
	ConfigureConnection(db *sql.DB) error
	// MigrationsDir is the directory under migrations/ holding this dialect's files.
	MigrationsDir() string
}

var placeholderRegexp = regexp.MustCompile(`\?`)

func rebindNumbered(query string) string {
	n := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(string) string {
		n++
		return "$" + strconv.Itoa(n)
	})
}

type PostgresDialect struct{}

func (PostgresDialect) Name() string       { return "postgres" }
func (PostgresDialect) DriverName() string { return "postgres" }

func (PostgresDialect) Rebind(query string) string {
	return rebindNumbered(query)
}

func (PostgresDialect) ConfigureConnection(db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return nil
}

func (PostgresDialect) MigrationsDir() string { return "postgres" }

type SQLiteDialect struct{}

func (SQLiteDialect) Name() string       { return "sqlite" }
func (SQLiteDialect) DriverName() string { return "sqlite" }

func (SQLiteDialect) Rebind(query string) string {
	return query
}

func (SQLiteDialect) ConfigureConnection(db *sql.DB) error {
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		return err
	}
	return nil
}

func (SQLiteDialect) MigrationsDir() string { return "sqlite" }
