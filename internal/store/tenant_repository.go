package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teresa-solution/tenant-schema-router/internal/crypto"
	"github.com/teresa-solution/tenant-schema-router/internal/model"
)

const hostCacheTTL = 1 * time.Hour

// TenantRepository is the tenant directory: the durable hostname -> tenant ->
// schema mapping held in the shared schema. All mutations here touch the
// shared schema only; tenant schemas are the provisioner's job.
type TenantRepository struct {
	pool  *pgxpool.Pool
	cache RedisClient // optional, nil disables caching
}

// NewTenantRepository creates a repository over the shared-schema pool.
// cache may be nil to run without Redis.
func NewTenantRepository(pool *pgxpool.Pool, cache RedisClient) *TenantRepository {
	return &TenantRepository{pool: pool, cache: cache}
}

func (r *TenantRepository) Close() error {
	if r.cache != nil {
		return r.cache.Close()
	}
	return nil
}

const tenantColumns = `id, schema_name, name, encrypted_email, email_iv, status, provisioned, created_at, updated_at`

func scanTenant(row pgx.Row) (*model.Tenant, error) {
	tenant := &model.Tenant{}
	err := row.Scan(&tenant.ID, &tenant.SchemaName, &tenant.Name,
		&tenant.EncryptedEmail, &tenant.EmailIV, &tenant.Status,
		&tenant.Provisioned, &tenant.CreatedAt, &tenant.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(tenant.EncryptedEmail) > 0 && len(tenant.EmailIV) > 0 {
		contactEmail, err := crypto.Decrypt(tenant.EncryptedEmail, tenant.EmailIV)
		if err != nil {
			return nil, err
		}
		tenant.ContactEmail = contactEmail
	}
	return tenant, nil
}

// Create inserts a new tenant into the directory. The schema name must
// already be validated; a uniqueness conflict surfaces as ErrDuplicateSchema.
func (r *TenantRepository) Create(ctx context.Context, tenant *model.Tenant) error {
	tenant.ID = uuid.New()
	tenant.CreatedAt = time.Now()
	tenant.UpdatedAt = tenant.CreatedAt
	if tenant.Status == "" {
		tenant.Status = model.StatusProvisioning
	}

	if tenant.ContactEmail != "" {
		encryptedEmail, iv, err := crypto.Encrypt(tenant.ContactEmail)
		if err != nil {
			return err
		}
		tenant.EncryptedEmail = encryptedEmail
		tenant.EmailIV = iv
	}

	query := `INSERT INTO tenants (id, schema_name, name, encrypted_email, email_iv, status, provisioned, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query, tenant.ID, tenant.SchemaName, tenant.Name,
		tenant.EncryptedEmail, tenant.EmailIV, tenant.Status, tenant.Provisioned,
		tenant.CreatedAt, tenant.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateSchema
	}
	return err
}

// GetByID retrieves a tenant by ID. Returns (nil, nil) when absent.
func (r *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return scanTenant(r.pool.QueryRow(ctx, query, id))
}

// GetBySchemaName retrieves a tenant by schema name. Returns (nil, nil) when
// absent.
func (r *TenantRepository) GetBySchemaName(ctx context.Context, schemaName string) (*model.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE schema_name = $1`
	return scanTenant(r.pool.QueryRow(ctx, query, schemaName))
}

// List returns directory tenants, optionally only routable-eligible ones.
func (r *TenantRepository) List(ctx context.Context, activeOnly bool) ([]*model.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY created_at`
	if activeOnly {
		query = `SELECT ` + tenantColumns + ` FROM tenants WHERE status = 'active' AND provisioned ORDER BY created_at`
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*model.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

// Update persists tenant fields and invalidates any cached host mappings.
func (r *TenantRepository) Update(ctx context.Context, tenant *model.Tenant) error {
	if tenant.ContactEmail != "" {
		encryptedEmail, iv, err := crypto.Encrypt(tenant.ContactEmail)
		if err != nil {
			return err
		}
		tenant.EncryptedEmail = encryptedEmail
		tenant.EmailIV = iv
	}

	tenant.UpdatedAt = time.Now()
	query := `UPDATE tenants SET name = $2, encrypted_email = $3, email_iv = $4, status = $5, provisioned = $6, updated_at = $7
              WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, tenant.ID, tenant.Name,
		tenant.EncryptedEmail, tenant.EmailIV, tenant.Status, tenant.Provisioned, tenant.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return r.invalidateTenant(ctx, tenant.ID)
}

// Delete removes a tenant and its domains from the directory in one
// transaction. The caller is responsible for dropping the schema first.
func (r *TenantRepository) Delete(ctx context.Context, id uuid.UUID) error {
	hostnames, err := r.tenantHostnames(ctx, id)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM domains WHERE tenant_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM tenant_provisioning_logs WHERE tenant_id = $1`, id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	r.dropHostKeys(ctx, hostnames)
	return nil
}

// ResolveByHost maps a hostname to its tenant via the domains table. Exact
// match only; wildcard patterns are not inferred. Returns (nil, nil) when the
// hostname is not registered.
func (r *TenantRepository) ResolveByHost(ctx context.Context, hostname string) (*model.Tenant, error) {
	if r.cache != nil {
		cached, err := r.cache.Get(ctx, hostKey(hostname)).Result()
		if err == nil {
			tenant := &model.Tenant{}
			if err := json.Unmarshal([]byte(cached), tenant); err == nil {
				return tenant, nil
			}
		}
	}

	query := `SELECT t.id, t.schema_name, t.name, t.encrypted_email, t.email_iv, t.status, t.provisioned, t.created_at, t.updated_at
              FROM tenants t
              JOIN domains d ON d.tenant_id = t.id
              WHERE d.hostname = $1`
	tenant, err := scanTenant(r.pool.QueryRow(ctx, query, hostname))
	if err != nil || tenant == nil {
		return tenant, err
	}

	if r.cache != nil {
		if data, err := json.Marshal(tenant); err == nil {
			r.cache.SetEx(ctx, hostKey(hostname), data, hostCacheTTL)
		}
	}
	return tenant, nil
}

// AddDomain registers a hostname for a tenant. A hostname already mapped to
// any tenant surfaces as ErrDuplicateDomain.
func (r *TenantRepository) AddDomain(ctx context.Context, domain *model.Domain) error {
	domain.ID = uuid.New()
	domain.CreatedAt = time.Now()

	query := `INSERT INTO domains (id, tenant_id, hostname, is_primary, created_at)
              VALUES ($1, $2, $3, $4, $5)`
	_, err := r.pool.Exec(ctx, query, domain.ID, domain.TenantID, domain.Hostname, domain.IsPrimary, domain.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateDomain
	}
	if err != nil {
		return err
	}
	r.dropHostKeys(ctx, []string{domain.Hostname})
	return nil
}

// RemoveDomain unregisters a hostname. Removing the last domain of a tenant
// makes it unreachable by routing; its data persists.
func (r *TenantRepository) RemoveDomain(ctx context.Context, hostname string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM domains WHERE hostname = $1`, hostname)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDomainNotFound
	}
	r.dropHostKeys(ctx, []string{hostname})
	return nil
}

// ListDomains returns the domains registered for a tenant, primary first.
func (r *TenantRepository) ListDomains(ctx context.Context, tenantID uuid.UUID) ([]*model.Domain, error) {
	query := `SELECT id, tenant_id, hostname, is_primary, created_at
              FROM domains WHERE tenant_id = $1 ORDER BY is_primary DESC, created_at`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []*model.Domain
	for rows.Next() {
		domain := &model.Domain{}
		if err := rows.Scan(&domain.ID, &domain.TenantID, &domain.Hostname, &domain.IsPrimary, &domain.CreatedAt); err != nil {
			return nil, err
		}
		domains = append(domains, domain)
	}
	return domains, rows.Err()
}

// CreateProvisioningLog records one provisioning step for audit and retry
// diagnostics.
func (r *TenantRepository) CreateProvisioningLog(ctx context.Context, tenantID uuid.UUID, step, status string, details interface{}) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}
	query := `INSERT INTO tenant_provisioning_logs (tenant_id, step, status, details, created_at)
              VALUES ($1, $2, $3, $4, $5)`
	_, err = r.pool.Exec(ctx, query, tenantID, step, status, detailsJSON, time.Now())
	return err
}

func (r *TenantRepository) tenantHostnames(ctx context.Context, tenantID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT hostname FROM domains WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hostnames []string
	for rows.Next() {
		var hostname string
		if err := rows.Scan(&hostname); err != nil {
			return nil, err
		}
		hostnames = append(hostnames, hostname)
	}
	return hostnames, rows.Err()
}

// invalidateTenant drops cached host mappings after a tenant mutation so
// status changes take effect on the next request, not after cache expiry.
func (r *TenantRepository) invalidateTenant(ctx context.Context, tenantID uuid.UUID) error {
	if r.cache == nil {
		return nil
	}
	hostnames, err := r.tenantHostnames(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("invalidate cache: %w", err)
	}
	r.dropHostKeys(ctx, hostnames)
	return nil
}

func (r *TenantRepository) dropHostKeys(ctx context.Context, hostnames []string) {
	if r.cache == nil || len(hostnames) == 0 {
		return
	}
	keys := make([]string, len(hostnames))
	for i, hostname := range hostnames {
		keys[i] = hostKey(hostname)
	}
	r.cache.Del(ctx, keys...)
}

func hostKey(hostname string) string {
	return "host:" + hostname
}
