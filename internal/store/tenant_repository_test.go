package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teresa-solution/tenant-schema-router/internal/migration"
	"github.com/teresa-solution/tenant-schema-router/internal/model"
)

func setupTestDB(t *testing.T) *TenantRepository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	runner := migration.NewRunner(dsn, "../../migrations/shared", "../../migrations/tenant")
	require.NoError(t, runner.RunShared())

	pool, err := Connect(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	// Clear the directory before each test
	_, err = pool.Exec(context.Background(),
		"TRUNCATE TABLE tenants, domains, tenant_provisioning_logs RESTART IDENTITY CASCADE")
	require.NoError(t, err)

	return NewTenantRepository(pool, nil)
}

func TestTenantRepository_CreateAndGet(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	tenant := &model.Tenant{
		SchemaName:   "acme",
		Name:         "Acme Corp",
		ContactEmail: "ops@acme.example.com",
		Status:       model.StatusActive,
		Provisioned:  true,
	}
	require.NoError(t, repo.Create(ctx, tenant))

	fetched, err := repo.GetByID(ctx, tenant.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, tenant.ID, fetched.ID)
	assert.Equal(t, "acme", fetched.SchemaName)
	assert.Equal(t, "Acme Corp", fetched.Name)
	assert.Equal(t, "ops@acme.example.com", fetched.ContactEmail)
	assert.True(t, fetched.Provisioned)

	bySchema, err := repo.GetBySchemaName(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, bySchema)
	assert.Equal(t, tenant.ID, bySchema.ID)

	missing, err := repo.GetBySchemaName(ctx, "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTenantRepository_DuplicateSchema(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	first := &model.Tenant{SchemaName: "acme", Name: "Acme"}
	require.NoError(t, repo.Create(ctx, first))

	second := &model.Tenant{SchemaName: "acme", Name: "Imposter"}
	err := repo.Create(ctx, second)
	assert.ErrorIs(t, err, ErrDuplicateSchema)
}

func TestTenantRepository_ResolveByHost(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	tenant := &model.Tenant{SchemaName: "acme", Name: "Acme", Status: model.StatusActive, Provisioned: true}
	require.NoError(t, repo.Create(ctx, tenant))
	require.NoError(t, repo.AddDomain(ctx, &model.Domain{
		TenantID: tenant.ID, Hostname: "acme.example.com", IsPrimary: true,
	}))

	resolved, err := repo.ResolveByHost(ctx, "acme.example.com")
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, tenant.ID, resolved.ID)

	unknown, err := repo.ResolveByHost(ctx, "unknown.example.com")
	require.NoError(t, err)
	assert.Nil(t, unknown)
}

func TestTenantRepository_DuplicateDomain(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	acme := &model.Tenant{SchemaName: "acme", Name: "Acme"}
	beta := &model.Tenant{SchemaName: "beta", Name: "Beta"}
	require.NoError(t, repo.Create(ctx, acme))
	require.NoError(t, repo.Create(ctx, beta))

	require.NoError(t, repo.AddDomain(ctx, &model.Domain{TenantID: acme.ID, Hostname: "acme.example.com"}))

	// Same hostname for a different tenant
	err := repo.AddDomain(ctx, &model.Domain{TenantID: beta.ID, Hostname: "acme.example.com"})
	assert.ErrorIs(t, err, ErrDuplicateDomain)

	// And for the same tenant again
	err = repo.AddDomain(ctx, &model.Domain{TenantID: acme.ID, Hostname: "acme.example.com"})
	assert.ErrorIs(t, err, ErrDuplicateDomain)
}

func TestTenantRepository_RemoveDomain(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	tenant := &model.Tenant{SchemaName: "acme", Name: "Acme"}
	require.NoError(t, repo.Create(ctx, tenant))
	require.NoError(t, repo.AddDomain(ctx, &model.Domain{TenantID: tenant.ID, Hostname: "acme.example.com"}))

	require.NoError(t, repo.RemoveDomain(ctx, "acme.example.com"))

	resolved, err := repo.ResolveByHost(ctx, "acme.example.com")
	require.NoError(t, err)
	assert.Nil(t, resolved, "tenant must be unreachable after its last domain is removed")

	// Data persists: the tenant row is still there.
	fetched, err := repo.GetByID(ctx, tenant.ID)
	require.NoError(t, err)
	assert.NotNil(t, fetched)

	assert.ErrorIs(t, repo.RemoveDomain(ctx, "acme.example.com"), ErrDomainNotFound)
}

func TestTenantRepository_UpdateStatus(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	tenant := &model.Tenant{SchemaName: "acme", Name: "Acme", Status: model.StatusActive, Provisioned: true}
	require.NoError(t, repo.Create(ctx, tenant))

	tenant.Status = model.StatusInactive
	require.NoError(t, repo.Update(ctx, tenant))

	fetched, err := repo.GetByID(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInactive, fetched.Status)
	assert.True(t, fetched.Provisioned, "deactivation must not touch provisioning state")
}

func TestTenantRepository_Delete(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	tenant := &model.Tenant{SchemaName: "acme", Name: "Acme"}
	require.NoError(t, repo.Create(ctx, tenant))
	require.NoError(t, repo.AddDomain(ctx, &model.Domain{TenantID: tenant.ID, Hostname: "acme.example.com"}))
	require.NoError(t, repo.CreateProvisioningLog(ctx, tenant.ID, "schema_create", "success", nil))

	require.NoError(t, repo.Delete(ctx, tenant.ID))

	fetched, err := repo.GetByID(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched)

	resolved, err := repo.ResolveByHost(ctx, "acme.example.com")
	require.NoError(t, err)
	assert.Nil(t, resolved)

	assert.ErrorIs(t, repo.Delete(ctx, uuid.New()), ErrTenantNotFound)
}

func TestTenantRepository_ListActiveOnly(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	ready := &model.Tenant{SchemaName: "ready", Name: "Ready", Status: model.StatusActive, Provisioned: true}
	pending := &model.Tenant{SchemaName: "pending", Name: "Pending", Status: model.StatusProvisioning}
	inactive := &model.Tenant{SchemaName: "dormant", Name: "Dormant", Status: model.StatusInactive, Provisioned: true}
	for _, tenant := range []*model.Tenant{ready, pending, inactive} {
		require.NoError(t, repo.Create(ctx, tenant))
	}

	all, err := repo.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := repo.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "ready", active[0].SchemaName)
}
