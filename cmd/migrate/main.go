package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/teresa-solution/tenant-schema-router/internal/config"
	"github.com/teresa-solution/tenant-schema-router/internal/crypto"
	"github.com/teresa-solution/tenant-schema-router/internal/migration"
	"github.com/teresa-solution/tenant-schema-router/internal/monitoring"
	"github.com/teresa-solution/tenant-schema-router/internal/schema"
	"github.com/teresa-solution/tenant-schema-router/internal/store"
)

func main() {
	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Parse command line flags
	var (
		scope     = flag.String("scope", "shared", "Migration scope (shared, tenant, all)")
		schemaArg = flag.String("schema", "", "Tenant schema name (required for -scope tenant)")
		command   = flag.String("command", "up", "Migration command (up, down, force)")
		version   = flag.Int("version", 1, "Version for -command force")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.EncryptionKey != "" {
		if err := crypto.SetKey([]byte(cfg.EncryptionKey)); err != nil {
			log.Fatal().Err(err).Msg("Invalid encryption key")
		}
	}

	runner := migration.NewRunner(cfg.DatabaseURL, cfg.SharedMigrationsPath, cfg.TenantMigrationsPath)

	switch *command {
	case "up":
		runUp(cfg, runner, *scope, *schemaArg)
	case "down":
		if *scope != "shared" {
			log.Fatal().Msg("-command down only supports -scope shared")
		}
		log.Info().Msg("Reverting shared migrations...")
		if err := runner.DownShared(); err != nil {
			log.Fatal().Err(err).Msg("Failed to revert migrations")
		}
		log.Info().Msg("Migrations reverted successfully")
	case "force":
		if *scope != "shared" {
			log.Fatal().Msg("-command force only supports -scope shared")
		}
		log.Info().Msg("Forcing migration version...")
		if err := runner.ForceShared(*version); err != nil {
			log.Fatal().Err(err).Msg("Failed to force migration version")
		}
		log.Info().Msg("Migration version forced successfully")
	default:
		log.Fatal().Msgf("Unknown command: %s", *command)
	}
}

func runUp(cfg *config.Config, runner *migration.Runner, scope, schemaName string) {
	switch scope {
	case "shared":
		applyShared(runner)
	case "tenant":
		if schemaName == "" {
			log.Fatal().Msg("-schema is required for -scope tenant")
		}
		log.Info().Str("schema", schemaName).Msg("Applying tenant migrations...")
		if err := runner.RunTenant(schemaName); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply tenant migrations")
		}
		log.Info().Str("schema", schemaName).Msg("Tenant migrations applied successfully")
	case "all":
		// Shared first, always: tenant runs depend on the directory tables.
		applyShared(runner)
		migrateAllTenants(cfg, runner)
	default:
		log.Fatal().Msgf("Unknown scope: %s", scope)
	}
}

// applyShared treats a shared migration failure as fatal: nothing routes
// correctly without the shared schema.
func applyShared(runner *migration.Runner) {
	log.Info().Msg("Applying shared migrations...")
	if err := runner.RunShared(); err != nil {
		monitoring.Alert("shared migration failed", map[string]string{"scope": "shared"})
		log.Fatal().Err(err).Msg("Failed to apply shared migrations")
	}
	log.Info().Msg("Shared migrations applied successfully")
}

func migrateAllTenants(cfg *config.Config, runner *migration.Runner) {
	ctx := context.Background()
	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	repo := store.NewTenantRepository(pool, nil)
	provisioner := schema.NewProvisioner(pool, repo, runner, cfg.MigrateConcurrency)

	log.Info().Msg("Applying tenant migrations to all active tenants...")
	report, err := provisioner.MigrateAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to run tenant migration sweep")
	}

	for _, schemaName := range report.Succeeded {
		log.Info().Str("schema", schemaName).Msg("Tenant migrated")
	}
	for _, failure := range report.Failed {
		log.Error().Err(failure.Err).Str("schema", failure.SchemaName).Msg("Tenant migration failed")
	}
	log.Info().
		Int("succeeded", len(report.Succeeded)).
		Int("failed", len(report.Failed)).
		Msg("Tenant migration sweep finished")

	if len(report.Failed) > 0 {
		os.Exit(1)
	}
}
