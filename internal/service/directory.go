package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/teresa-solution/tenant-schema-router/internal/model"
	"github.com/teresa-solution/tenant-schema-router/internal/store"
)

var (
	// ErrDeleteNotConfirmed guards the destructive delete path: the caller
	// must state destructive intent explicitly.
	ErrDeleteNotConfirmed = errors.New("tenant deletion requires explicit confirmation")

	// ErrInvalidHostname is returned when a domain hostname fails format
	// checks.
	ErrInvalidHostname = errors.New("invalid hostname")

	// ErrInvalidEmail is returned when a contact email fails format checks.
	ErrInvalidEmail = errors.New("invalid contact email")
)

// Enqueuer queues tenants for background provisioning. The payload is the
// schema identifier only; the worker re-resolves the tenant at execution
// time.
type Enqueuer interface {
	Enqueue(schemaName string)
}

// TenantStore is the directory persistence surface the service drives.
// *store.TenantRepository is the production implementation.
type TenantStore interface {
	Create(ctx context.Context, tenant *model.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
	GetBySchemaName(ctx context.Context, schemaName string) (*model.Tenant, error)
	List(ctx context.Context, activeOnly bool) ([]*model.Tenant, error)
	Update(ctx context.Context, tenant *model.Tenant) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddDomain(ctx context.Context, domain *model.Domain) error
	RemoveDomain(ctx context.Context, hostname string) error
	ListDomains(ctx context.Context, tenantID uuid.UUID) ([]*model.Domain, error)
}

// Provisioner manages tenant schema lifecycles. *schema.Provisioner is the
// production implementation.
type Provisioner interface {
	Provision(ctx context.Context, tenant *model.Tenant) error
	Deprovision(ctx context.Context, tenant *model.Tenant) error
}

// DirectoryService implements the administrative operations on the tenant
// directory. Validation and the error taxonomy live here; persistence is the
// repository's job.
type DirectoryService struct {
	repo  TenantStore
	prov  Provisioner
	queue Enqueuer
}

func NewDirectoryService(repo TenantStore, prov Provisioner, queue Enqueuer) *DirectoryService {
	return &DirectoryService{repo: repo, prov: prov, queue: queue}
}

// CreateTenant registers a tenant in the directory and queues it for
// provisioning. The tenant is not routable until provisioning completes.
func (s *DirectoryService) CreateTenant(ctx context.Context, schemaName, displayName, contactEmail string) (*model.Tenant, error) {
	if err := model.ValidateSchemaName(schemaName); err != nil {
		return nil, err
	}
	if displayName == "" {
		return nil, errors.New("display name is required")
	}
	if contactEmail != "" && !isValidEmail(contactEmail) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEmail, contactEmail)
	}

	tenant := &model.Tenant{
		SchemaName:   schemaName,
		Name:         displayName,
		ContactEmail: contactEmail,
		Status:       model.StatusProvisioning,
	}
	if err := s.repo.Create(ctx, tenant); err != nil {
		return nil, err
	}
	log.Info().Str("schema", schemaName).Msg("Tenant created, queued for provisioning")

	if s.queue != nil {
		s.queue.Enqueue(tenant.SchemaName)
	}
	return tenant, nil
}

// AddDomain maps a hostname to a tenant. Hostnames are stored lowercased so
// routing lookups are case-insensitive.
func (s *DirectoryService) AddDomain(ctx context.Context, tenantID uuid.UUID, hostname string, isPrimary bool) (*model.Domain, error) {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	if !isValidHostname(hostname) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHostname, hostname)
	}

	tenant, err := s.repo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, store.ErrTenantNotFound
	}

	domain := &model.Domain{TenantID: tenantID, Hostname: hostname, IsPrimary: isPrimary}
	if err := s.repo.AddDomain(ctx, domain); err != nil {
		return nil, err
	}
	return domain, nil
}

// RemoveDomain unregisters a hostname.
func (s *DirectoryService) RemoveDomain(ctx context.Context, hostname string) error {
	return s.repo.RemoveDomain(ctx, strings.ToLower(strings.TrimSpace(hostname)))
}

// Deactivate excludes a tenant from routing without touching its data.
func (s *DirectoryService) Deactivate(ctx context.Context, tenantID uuid.UUID) error {
	return s.setStatus(ctx, tenantID, model.StatusInactive)
}

// Activate restores routing eligibility. A tenant that never finished
// provisioning cannot be activated this way; it needs a re-provision.
func (s *DirectoryService) Activate(ctx context.Context, tenantID uuid.UUID) error {
	tenant, err := s.repo.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant == nil {
		return store.ErrTenantNotFound
	}
	if !tenant.Provisioned {
		return fmt.Errorf("tenant %q is not provisioned, re-provision instead", tenant.SchemaName)
	}
	tenant.Status = model.StatusActive
	return s.repo.Update(ctx, tenant)
}

// Reprovision retries provisioning for a tenant stuck in the error state.
func (s *DirectoryService) Reprovision(ctx context.Context, tenantID uuid.UUID) error {
	tenant, err := s.repo.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant == nil {
		return store.ErrTenantNotFound
	}
	if tenant.Provisioned {
		return fmt.Errorf("tenant %q is already provisioned", tenant.SchemaName)
	}
	return s.prov.Provision(ctx, tenant)
}

// Delete removes the tenant from the directory and drops its schema.
// Irreversible, so it refuses without the force flag. Directory rows go
// first: if the schema drop then fails, the tenant is already unroutable and
// its data is still intact, instead of a routable entry pointing at a
// dropped schema.
func (s *DirectoryService) Delete(ctx context.Context, tenantID uuid.UUID, force bool) error {
	if !force {
		return ErrDeleteNotConfirmed
	}
	tenant, err := s.repo.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant == nil {
		return store.ErrTenantNotFound
	}

	if err := s.repo.Delete(ctx, tenantID); err != nil {
		return err
	}
	if err := s.prov.Deprovision(ctx, tenant); err != nil {
		log.Error().Err(err).Str("schema", tenant.SchemaName).Msg("Tenant removed from directory but schema drop failed")
		return fmt.Errorf("tenant %q removed from directory, schema drop failed: %w", tenant.SchemaName, err)
	}
	log.Info().Str("schema", tenant.SchemaName).Msg("Tenant deleted")
	return nil
}

// List returns directory tenants.
func (s *DirectoryService) List(ctx context.Context, activeOnly bool) ([]*model.Tenant, error) {
	return s.repo.List(ctx, activeOnly)
}

// Get returns one tenant with its domains.
func (s *DirectoryService) Get(ctx context.Context, tenantID uuid.UUID) (*model.Tenant, []*model.Domain, error) {
	tenant, err := s.repo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	if tenant == nil {
		return nil, nil, store.ErrTenantNotFound
	}
	domains, err := s.repo.ListDomains(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	return tenant, domains, nil
}

func (s *DirectoryService) setStatus(ctx context.Context, tenantID uuid.UUID, status string) error {
	tenant, err := s.repo.GetByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant == nil {
		return store.ErrTenantNotFound
	}
	tenant.Status = status
	return s.repo.Update(ctx, tenant)
}

// isValidHostname checks a fully-qualified hostname: dot-separated labels of
// [a-z0-9-], no leading/trailing hyphen, at least two labels.
func isValidHostname(hostname string) bool {
	if len(hostname) < 3 || len(hostname) > 253 {
		return false
	}
	labels := strings.Split(hostname, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if len(label) < 1 || len(label) > 63 {
			return false
		}
		for i, r := range label {
			switch {
			case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			case r == '-' && i > 0 && i < len(label)-1:
			default:
				return false
			}
		}
	}
	return true
}

// isValidEmail performs a basic email validation.
func isValidEmail(email string) bool {
	if len(email) < 3 || !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return false
	}
	return true
}
