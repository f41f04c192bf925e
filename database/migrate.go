package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// newMigrate builds a migrator over the embedded migrations. The driver is
// not closed with the migrator, since closing it closes db as well.
func newMigrate(db *sql.DB, driver string) (*migrate.Migrate, func(), error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, nil, fmt.Errorf("load migrations: %w", err)
	}

	var m *migrate.Migrate
	switch driver {
	case DriverSQLite, "":
		target, err := sqlite3.WithInstance(db, &sqlite3.Config{})
		if err != nil {
			src.Close()
			return nil, nil, fmt.Errorf("sqlite migration driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "sqlite3", target)
		if err != nil {
			src.Close()
			return nil, nil, err
		}
	case DriverMySQL:
		target, err := migratemysql.WithInstance(db, &migratemysql.Config{})
		if err != nil {
			src.Close()
			return nil, nil, fmt.Errorf("mysql migration driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", src, "mysql", target)
		if err != nil {
			src.Close()
			return nil, nil, err
		}
	default:
		src.Close()
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	return m, func() { src.Close() }, nil
}

// RunMigrations applies every pending migration.
func RunMigrations(db *sql.DB, driver string) error {
	m, done, err := newMigrate(db, driver)
	if err != nil {
		return err
	}
	defer done()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// RollbackMigration reverts the most recent migration.
func RollbackMigration(db *sql.DB, driver string) error {
	m, done, err := newMigrate(db, driver)
	if err != nil {
		return err
	}
	defer done()

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	return nil
}

// Version reports the applied schema version and whether it is dirty.
// A database without migrations reports version 0.
func Version(db *sql.DB, driver string) (uint, bool, error) {
	m, done, err := newMigrate(db, driver)
	if err != nil {
		return 0, false, err
	}
	defer done()

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}
