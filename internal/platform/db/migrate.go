package db

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DirectionUp   = "up"
	DirectionDown = "down"
)

// ErrNoChange is returned by Migrate when the schema is already at the target.
var ErrNoChange = migrate.ErrNoChange

// Migrate applies the embedded migrations for driver in direction. For sqlite
// dsn is the database path; for postgres it is the connection URL.
func Migrate(driver, dsn, direction string) error {
	if direction != DirectionUp && direction != DirectionDown {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}
	m, err := newMigrator(driver, dsn)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	switch direction {
	case DirectionUp:
		err = m.Up()
	case DirectionDown:
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	return err
}

// Version reports the applied schema version. ok is false on an empty database.
func Version(driver, dsn string) (version uint, dirty bool, ok bool, err error) {
	m, err := newMigrator(driver, dsn)
	if err != nil {
		return 0, false, false, err
	}
	defer func() { _, _ = m.Close() }()
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("migration version: %w", err)
	}
	return version, dirty, true, nil
}

func newMigrator(driver, dsn string) (*migrate.Migrate, error) {
	if dsn == "" {
		return nil, errors.New("migrate: dsn is required")
	}
	var url string
	switch driver {
	case DriverSQLite:
		url = "sqlite://" + dsn
	case DriverPostgres:
		url = dsn
	default:
		return nil, fmt.Errorf("migrate: unknown driver %q", driver)
	}
	source, err := iofs.New(migrationFS, "migrations/"+driver)
	if err != nil {
		return nil, fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return m, nil
}
