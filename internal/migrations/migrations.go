// Package migrations embeds the SQL schema and applies it with
// golang-migrate.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/lapublica/platform/internal/pkg/logger"
)

//go:embed sql/*.sql
var FS embed.FS

// Runner applies schema migrations to one database.
type Runner struct {
	m *migrate.Migrate
}

// New creates a Runner over db. The caller keeps ownership of db but must
// not use it after Close.
func New(db *sql.DB) (*Runner, error) {
	src, err := iofs.New(FS, "sql")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	drv, err := migratepg.WithInstance(db, &migratepg.Config{MigrationsTable: "schema_migrations"})
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", drv)
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	m.Log = migrateLogger{}
	return &Runner{m: m}, nil
}

// Up applies every pending migration. No pending migration is not an error.
func (r *Runner) Up() error {
	if err := r.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down rolls back the last n migrations.
func (r *Runner) Down(n int) error {
	if n <= 0 {
		return fmt.Errorf("migrate down: steps must be positive, got %d", n)
	}
	if err := r.m.Steps(-n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Version returns the applied version. ok is false on an empty database.
func (r *Runner) Version() (version uint, dirty, ok bool, err error) {
	v, dirty, err := r.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("migrate version: %w", err)
	}
	return v, dirty, true, nil
}

// Force sets the version without running migrations, clearing the dirty
// flag after a failed run has been repaired by hand.
func (r *Runner) Force(version int) error {
	if err := r.m.Force(version); err != nil {
		return fmt.Errorf("migrate force: %w", err)
	}
	return nil
}

// Close releases the source and the database driver.
func (r *Runner) Close() error {
	srcErr, dbErr := r.m.Close()
	return errors.Join(srcErr, dbErr)
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) {
	logger.Info("migrate: " + strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (migrateLogger) Verbose() bool { return false }
