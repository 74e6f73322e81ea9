package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/teresa-solution/tenant-schema-router/internal/config"
	"github.com/teresa-solution/tenant-schema-router/internal/crypto"
	"github.com/teresa-solution/tenant-schema-router/internal/migration"
	"github.com/teresa-solution/tenant-schema-router/internal/model"
	"github.com/teresa-solution/tenant-schema-router/internal/schema"
	"github.com/teresa-solution/tenant-schema-router/internal/service"
	"github.com/teresa-solution/tenant-schema-router/internal/store"
)

// app wires the administrative dependency graph for one command run.
type app struct {
	cfg  *config.Config
	pool *pgxpool.Pool
	repo *store.TenantRepository
	prov *schema.Provisioner
	svc  *service.DirectoryService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.EncryptionKey != "" {
		if err := crypto.SetKey([]byte(cfg.EncryptionKey)); err != nil {
			return nil, err
		}
	}

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	// Same cache as the server: admin mutations must invalidate the host
	// mappings the server resolves from, or routing changes sit stale for
	// the full cache TTL.
	var cache store.RedisClient
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	repo := store.NewTenantRepository(pool, cache)
	runner := migration.NewRunner(cfg.DatabaseURL, cfg.SharedMigrationsPath, cfg.TenantMigrationsPath)
	prov := schema.NewProvisioner(pool, repo, runner, cfg.MigrateConcurrency)
	// Administrative runs provision synchronously; no background queue.
	svc := service.NewDirectoryService(repo, prov, nil)

	return &app{cfg: cfg, pool: pool, repo: repo, prov: prov, svc: svc}, nil
}

func (a *app) Close() {
	if err := a.repo.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close cache: %v\n", err)
	}
	a.pool.Close()
}

// tenantBySchema resolves the --schema argument shared by most commands.
func (a *app) tenantBySchema(ctx context.Context, schemaName string) (*model.Tenant, error) {
	tenant, err := a.repo.GetBySchemaName(ctx, schemaName)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, fmt.Errorf("tenant with schema %q does not exist", schemaName)
	}
	return tenant, nil
}
