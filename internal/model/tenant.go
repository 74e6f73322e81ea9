package model

import (
	"time"

	"github.com/google/uuid"
)

// Tenant statuses. A tenant is routable only when it is active and its
// schema migrations have completed (Provisioned).
const (
	StatusProvisioning = "provisioning"
	StatusActive       = "active"
	StatusInactive     = "inactive"
	StatusError        = "error"
)

// Tenant represents a row in the tenants table (shared schema).
type Tenant struct {
	ID             uuid.UUID `json:"id"`
	SchemaName     string    `json:"schema_name"`
	Name           string    `json:"name"`
	ContactEmail   string    `json:"-"` // Plaintext (transient, not stored in DB)
	EncryptedEmail []byte    `json:"-"`
	EmailIV        []byte    `json:"-"`
	Status         string    `json:"status"`
	Provisioned    bool      `json:"provisioned"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Routable reports whether the tenant may receive live traffic. Readiness is
// an explicit state transition: the directory row existing is not enough,
// migrations must have completed and the tenant must not be deactivated.
func (t *Tenant) Routable() bool {
	return t.Status == StatusActive && t.Provisioned
}

// Domain maps a fully-qualified hostname to its owning tenant. A hostname
// resolves to at most one tenant (unique constraint in the shared schema).
type Domain struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Hostname  string    `json:"hostname"`
	IsPrimary bool      `json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}
