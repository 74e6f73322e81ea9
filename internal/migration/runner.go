// Package migration runs the two disjoint migration sets: shared-schema
// migrations applied once to the platform schema, and tenant-schema
// migrations applied once per tenant schema. The two sets target different
// namespace scopes and are never interleaved in a single run.
package migration

import (
	"database/sql"
	"errors"
	"fmt"

	gomigrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
)

// sharedSchema is the platform-wide namespace holding the tenant directory.
const sharedSchema = "public"

// migrationsTable lives inside the schema being migrated, so every tenant
// schema tracks its own applied set independently.
const migrationsTable = "schema_migrations"

// Runner applies migrations against one database, selecting the target
// schema through the connection search_path.
type Runner struct {
	databaseURL string
	sharedPath  string
	tenantPath  string
}

func NewRunner(databaseURL, sharedPath, tenantPath string) *Runner {
	return &Runner{
		databaseURL: databaseURL,
		sharedPath:  sharedPath,
		tenantPath:  tenantPath,
	}
}

// RunShared applies all pending shared-schema migrations. A failure here is
// fatal to the whole system: nothing routes correctly without the shared
// schema, so callers must treat the error as a startup/readiness failure.
func (r *Runner) RunShared() error {
	if err := r.run(sharedSchema, r.sharedPath); err != nil {
		return fmt.Errorf("shared migrations: %w", err)
	}
	return nil
}

// RunTenant applies all pending tenant-set migrations to one tenant schema.
// Failures are scoped to that tenant.
func (r *Runner) RunTenant(schemaName string) error {
	if err := r.run(schemaName, r.tenantPath); err != nil {
		return fmt.Errorf("tenant migrations for %q: %w", schemaName, err)
	}
	return nil
}

// DownShared reverts all shared-schema migrations. Destructive; used by
// operators only.
func (r *Runner) DownShared() error {
	m, cleanup, err := r.migrator(sharedSchema, r.sharedPath)
	if err != nil {
		return err
	}
	defer cleanup()
	if err := m.Down(); err != nil && !errors.Is(err, gomigrate.ErrNoChange) {
		return fmt.Errorf("shared migrations down: %w", err)
	}
	return nil
}

// ForceShared overrides the recorded shared migration version after a manual
// repair.
func (r *Runner) ForceShared(version int) error {
	m, cleanup, err := r.migrator(sharedSchema, r.sharedPath)
	if err != nil {
		return err
	}
	defer cleanup()
	return m.Force(version)
}

func (r *Runner) run(schemaName, path string) error {
	m, cleanup, err := r.migrator(schemaName, path)
	if err != nil {
		return err
	}
	defer cleanup()
	if err := m.Up(); err != nil && !errors.Is(err, gomigrate.ErrNoChange) {
		return err
	}
	return nil
}

// migrator builds a golang-migrate instance bound to one schema. The
// search_path runtime parameter scopes every statement in the migration
// files to the target schema, so the same tenant set applies to any schema
// without qualified names.
func (r *Runner) migrator(schemaName, path string) (*gomigrate.Migrate, func(), error) {
	config, err := pgx.ParseConfig(r.databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database url: %w", err)
	}
	config.RuntimeParams["search_path"] = schemaName

	db := stdlib.OpenDB(*config)

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: migrationsTable,
		SchemaName:      schemaName,
	})
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create migration driver: %w", err)
	}

	m, err := gomigrate.NewWithDatabaseInstance("file://"+path, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create migrator: %w", err)
	}

	cleanup := func() { closeDB(db) }
	return m, cleanup, nil
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close migration connection")
	}
}
