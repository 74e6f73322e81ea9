// Package schema provisions and deprovisions isolated tenant namespaces:
// schema creation, tenant migration application, and bulk migration sweeps.
package schema

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/teresa-solution/tenant-schema-router/internal/migration"
	"github.com/teresa-solution/tenant-schema-router/internal/model"
	"github.com/teresa-solution/tenant-schema-router/internal/monitoring"
	"github.com/teresa-solution/tenant-schema-router/internal/store"
)

// Provisioner creates and destroys tenant schemas and keeps them at the
// current tenant migration level.
type Provisioner struct {
	pool        *pgxpool.Pool
	repo        *store.TenantRepository
	runner      *migration.Runner
	concurrency int
}

func NewProvisioner(pool *pgxpool.Pool, repo *store.TenantRepository, runner *migration.Runner, concurrency int) *Provisioner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Provisioner{pool: pool, repo: repo, runner: runner, concurrency: concurrency}
}

// Provision creates the tenant's schema and applies the full tenant
// migration set. Only after both succeed is the tenant published as active
// and provisioned. Partial failure leaves it in the error state so traffic
// is rejected and an operator can retry with an explicit re-provision;
// CREATE SCHEMA IF NOT EXISTS plus the per-schema migrations table make the
// retry safe.
func (p *Provisioner) Provision(ctx context.Context, tenant *model.Tenant) error {
	start := time.Now()
	if err := model.ValidateSchemaName(tenant.SchemaName); err != nil {
		return err
	}

	if err := p.repo.CreateProvisioningLog(ctx, tenant.ID, "schema_create", "pending", nil); err != nil {
		return err
	}

	createSchema := "CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{tenant.SchemaName}.Sanitize()
	if _, err := p.pool.Exec(ctx, createSchema); err != nil {
		return p.failProvisioning(ctx, tenant, "schema_create", err)
	}
	if err := p.repo.CreateProvisioningLog(ctx, tenant.ID, "schema_create", "success", nil); err != nil {
		return err
	}

	if err := p.repo.CreateProvisioningLog(ctx, tenant.ID, "migrate", "pending", nil); err != nil {
		return err
	}
	if err := p.runTenantMigrations(ctx, tenant.SchemaName); err != nil {
		return p.failProvisioning(ctx, tenant, "migrate", err)
	}
	if err := p.repo.CreateProvisioningLog(ctx, tenant.ID, "migrate", "success", nil); err != nil {
		return err
	}

	tenant.Status = model.StatusActive
	tenant.Provisioned = true
	if err := p.repo.Update(ctx, tenant); err != nil {
		return err
	}

	monitoring.TenantsProvisioned.WithLabelValues("success").Inc()
	monitoring.ProvisioningDuration.Observe(time.Since(start).Seconds())
	log.Info().Str("schema", tenant.SchemaName).Msg("Tenant provisioned")
	return nil
}

// runTenantMigrations applies the tenant set under the caller's deadline.
// The migration library has no context support, so a run that outlives the
// deadline is abandoned and the tenant stays unprovisioned.
func (p *Provisioner) runTenantMigrations(ctx context.Context, schemaName string) error {
	done := make(chan error, 1)
	go func() {
		done <- p.runner.RunTenant(schemaName)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("tenant migrations for %q: %w", schemaName, ctx.Err())
	}
}

func (p *Provisioner) failProvisioning(ctx context.Context, tenant *model.Tenant, step string, cause error) error {
	if err := p.repo.CreateProvisioningLog(ctx, tenant.ID, step, "failed", map[string]interface{}{"error": cause.Error()}); err != nil {
		log.Error().Err(err).Str("schema", tenant.SchemaName).Msg("Failed to record provisioning failure")
	}

	tenant.Status = model.StatusError
	tenant.Provisioned = false
	if err := p.repo.Update(ctx, tenant); err != nil {
		log.Error().Err(err).Str("schema", tenant.SchemaName).Msg("Failed to mark tenant as failed")
	}

	monitoring.TenantsProvisioned.WithLabelValues("error").Inc()
	monitoring.Alert("tenant provisioning failed", map[string]string{
		"schema": tenant.SchemaName,
		"step":   step,
	})
	return fmt.Errorf("provision %q (%s): %w", tenant.SchemaName, step, cause)
}

// Deprovision drops the tenant's schema and all contained data.
// Irreversible.
func (p *Provisioner) Deprovision(ctx context.Context, tenant *model.Tenant) error {
	if err := model.ValidateSchemaName(tenant.SchemaName); err != nil {
		return err
	}
	dropSchema := "DROP SCHEMA IF EXISTS " + pgx.Identifier{tenant.SchemaName}.Sanitize() + " CASCADE"
	if _, err := p.pool.Exec(ctx, dropSchema); err != nil {
		return fmt.Errorf("drop schema %q: %w", tenant.SchemaName, err)
	}
	log.Info().Str("schema", tenant.SchemaName).Msg("Tenant schema dropped")
	return nil
}

// Failure is one tenant's migration failure within a bulk sweep.
type Failure struct {
	SchemaName string
	Err        error
}

// Report collects per-tenant results of a bulk migration sweep.
type Report struct {
	Succeeded []string
	Failed    []Failure
}

// MigrateAll applies pending tenant migrations to every routable tenant
// schema. Failure on one tenant never blocks the others; the report carries
// both outcomes.
func (p *Provisioner) MigrateAll(ctx context.Context) (*Report, error) {
	tenants, err := p.repo.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	var (
		mu     sync.Mutex
		report Report
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, tenant := range tenants {
		tenant := tenant
		g.Go(func() error {
			err := p.runTenantMigrations(ctx, tenant.SchemaName)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error().Err(err).Str("schema", tenant.SchemaName).Msg("Tenant migration failed")
				monitoring.TenantMigrations.WithLabelValues("error").Inc()
				report.Failed = append(report.Failed, Failure{SchemaName: tenant.SchemaName, Err: err})
			} else {
				monitoring.TenantMigrations.WithLabelValues("success").Inc()
				report.Succeeded = append(report.Succeeded, tenant.SchemaName)
			}
			// Per-tenant failures are reported, never propagated, so the
			// sweep continues for the remaining tenants.
			return nil
		})
	}

	_ = g.Wait()
	return &report, nil
}
