package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// MigrationStatus is the schema version recorded by golang-migrate.
type MigrationStatus struct {
	Version uint
	Dirty   bool
}

// opener returns a fresh database handle. Migrations run on their own handle
// so closing the migrate instance leaves the repository's pool intact.
type opener func() (*sql.DB, error)

func newMigrator(openDB opener, dialect Dialect) (*migrate.Migrate, error) {
	db, err := openDB()
	if err != nil {
		return nil, fmt.Errorf("open migration database: %w", err)
	}

	var (
		driver database.Driver
		dir    string
	)
	switch dialect {
	case SQLite:
		dir = "migrations/sqlite"
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	case Postgres:
		dir = "migrations/postgres"
		driver, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	default:
		err = fmt.Errorf("unsupported dialect %q", dialect)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create %s migration driver: %w", dialect, err)
	}

	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(dialect), driver)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

// RunMigrations applies every pending up migration.
func RunMigrations(openDB opener, dialect Dialect) error {
	m, err := newMigrator(openDB, dialect)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// RollbackMigrations reverts the given number of migrations.
func RollbackMigrations(openDB opener, dialect Dialect, steps int) error {
	if steps < 1 {
		return fmt.Errorf("invalid rollback steps %d: must be at least 1", steps)
	}
	m, err := newMigrator(openDB, dialect)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback migrations: %w", err)
	}
	return nil
}

// CurrentMigration reports the applied schema version. A database with no
// migrations applied reports version 0.
func CurrentMigration(openDB opener, dialect Dialect) (MigrationStatus, error) {
	m, err := newMigrator(openDB, dialect)
	if err != nil {
		return MigrationStatus{}, err
	}
	defer m.Close()

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("read migration version: %w", err)
	}
	return MigrationStatus{Version: v, Dirty: dirty}, nil
}

// Migrate applies pending migrations to the repository's database.
func (r *Repository) Migrate() error {
	return RunMigrations(r.openDB, r.dialect)
}

// Rollback reverts the last steps migrations.
func (r *Repository) Rollback(steps int) error {
	return RollbackMigrations(r.openDB, r.dialect, steps)
}

func (r *Repository) MigrationStatus() (MigrationStatus, error) {
	return CurrentMigration(r.openDB, r.dialect)
}
