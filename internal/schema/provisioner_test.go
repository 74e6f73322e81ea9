package schema

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teresa-solution/tenant-schema-router/internal/binder"
	"github.com/teresa-solution/tenant-schema-router/internal/migration"
	"github.com/teresa-solution/tenant-schema-router/internal/model"
	"github.com/teresa-solution/tenant-schema-router/internal/store"
)

type provisionFixture struct {
	pool   *pgxpool.Pool
	repo   *store.TenantRepository
	prov   *Provisioner
	runner *migration.Runner
}

func setupProvisioner(t *testing.T) *provisionFixture {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	runner := migration.NewRunner(dsn, "../../migrations/shared", "../../migrations/tenant")
	require.NoError(t, runner.RunShared())

	pool, err := store.Connect(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(context.Background(),
		"TRUNCATE TABLE tenants, domains, tenant_provisioning_logs RESTART IDENTITY CASCADE")
	require.NoError(t, err)

	repo := store.NewTenantRepository(pool, nil)
	return &provisionFixture{
		pool:   pool,
		repo:   repo,
		prov:   NewProvisioner(pool, repo, runner, 2),
		runner: runner,
	}
}

// newTenant registers a tenant row and arranges for its schema to be
// dropped when the test finishes.
func (f *provisionFixture) newTenant(t *testing.T, schemaName string) *model.Tenant {
	t.Helper()
	tenant := &model.Tenant{
		SchemaName: schemaName,
		Name:       schemaName,
		Status:     model.StatusProvisioning,
	}
	require.NoError(t, f.repo.Create(context.Background(), tenant))
	t.Cleanup(func() {
		_, _ = f.pool.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+schemaName+" CASCADE")
	})
	return tenant
}

func schemaExists(t *testing.T, pool *pgxpool.Pool, schemaName string) bool {
	t.Helper()
	var exists bool
	err := pool.QueryRow(context.Background(),
		"SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)",
		schemaName).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func TestProvision(t *testing.T) {
	f := setupProvisioner(t)
	ctx := context.Background()

	tenant := f.newTenant(t, "prov_acme")
	require.NoError(t, f.prov.Provision(ctx, tenant))

	assert.Equal(t, model.StatusActive, tenant.Status)
	assert.True(t, tenant.Provisioned)
	assert.True(t, schemaExists(t, f.pool, "prov_acme"))

	// The tenant baseline landed inside the new schema.
	var count int
	err := f.pool.QueryRow(ctx, "SELECT count(*) FROM prov_acme.users").Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Provisioning steps were recorded.
	var steps int
	err = f.pool.QueryRow(ctx,
		"SELECT count(*) FROM tenant_provisioning_logs WHERE tenant_id = $1 AND status = 'success'",
		tenant.ID).Scan(&steps)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, steps, 2)
}

func TestProvisionIdempotent(t *testing.T) {
	f := setupProvisioner(t)
	ctx := context.Background()

	tenant := f.newTenant(t, "prov_twice")
	require.NoError(t, f.prov.Provision(ctx, tenant))
	require.NoError(t, f.prov.Provision(ctx, tenant))
	assert.Equal(t, model.StatusActive, tenant.Status)
}

func TestProvisionFailureMarksTenant(t *testing.T) {
	f := setupProvisioner(t)
	ctx := context.Background()

	dsn := os.Getenv("TEST_DATABASE_URL")
	broken := migration.NewRunner(dsn, "../../migrations/shared", "testdata/nonexistent")
	prov := NewProvisioner(f.pool, f.repo, broken, 2)

	tenant := f.newTenant(t, "prov_broken")
	err := prov.Provision(ctx, tenant)
	require.Error(t, err)

	fetched, err := f.repo.GetByID(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, fetched.Status)
	assert.False(t, fetched.Provisioned)

	var failed int
	err = f.pool.QueryRow(ctx,
		"SELECT count(*) FROM tenant_provisioning_logs WHERE tenant_id = $1 AND status = 'failed'",
		tenant.ID).Scan(&failed)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
}

// Writes made while bound to one tenant must never be visible from
// another tenant's scope.
func TestTenantIsolation(t *testing.T) {
	f := setupProvisioner(t)
	ctx := context.Background()

	alpha := f.newTenant(t, "iso_alpha")
	beta := f.newTenant(t, "iso_beta")
	require.NoError(t, f.prov.Provision(ctx, alpha))
	require.NoError(t, f.prov.Provision(ctx, beta))

	b := binder.New(f.repo, f.pool, nil, 5*time.Second)

	bindingA, err := b.BindSchema(ctx, "iso_alpha")
	require.NoError(t, err)
	_, err = bindingA.Scope().DB.Exec(ctx,
		"INSERT INTO users (email, full_name) VALUES ($1, $2)",
		"alice@alpha.example.com", "Alice")
	require.NoError(t, err)
	require.NoError(t, bindingA.Release(ctx))

	bindingB, err := b.BindSchema(ctx, "iso_beta")
	require.NoError(t, err)
	var count int
	err = bindingB.Scope().DB.QueryRow(ctx, "SELECT count(*) FROM users").Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count, "tenant beta must not see tenant alpha's rows")
	require.NoError(t, bindingB.Release(ctx))

	bindingA2, err := b.BindSchema(ctx, "iso_alpha")
	require.NoError(t, err)
	err = bindingA2.Scope().DB.QueryRow(ctx, "SELECT count(*) FROM users").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.NoError(t, bindingA2.Release(ctx))
}

func TestDeprovision(t *testing.T) {
	f := setupProvisioner(t)
	ctx := context.Background()

	tenant := f.newTenant(t, "prov_gone")
	require.NoError(t, f.prov.Provision(ctx, tenant))
	require.True(t, schemaExists(t, f.pool, "prov_gone"))

	require.NoError(t, f.prov.Deprovision(ctx, tenant))
	assert.False(t, schemaExists(t, f.pool, "prov_gone"))

	// Dropping an absent schema is not an error.
	require.NoError(t, f.prov.Deprovision(ctx, tenant))
}

func TestMigrateAll(t *testing.T) {
	f := setupProvisioner(t)
	ctx := context.Background()

	alpha := f.newTenant(t, "mig_alpha")
	beta := f.newTenant(t, "mig_beta")
	require.NoError(t, f.prov.Provision(ctx, alpha))
	require.NoError(t, f.prov.Provision(ctx, beta))

	report, err := f.prov.MigrateAll(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"mig_alpha", "mig_beta"}, report.Succeeded)
	assert.Empty(t, report.Failed)
}
