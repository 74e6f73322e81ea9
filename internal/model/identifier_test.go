package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSchemaName(t *testing.T) {
	valid := []string{"acme", "acme_corp", "_internal", "a1", "tenant_42"}
	for _, name := range valid {
		assert.NoError(t, ValidateSchemaName(name), name)
	}

	invalid := []string{
		"",
		"Acme",           // uppercase
		"1acme",          // leading digit
		"acme corp",      // space
		"acme-corp",      // hyphen
		"public",         // reserved
		"pg_catalog",     // reserved
		"pg_anything",    // reserved prefix
		"information_schema",
		strings.Repeat("a", 64), // too long
	}
	for _, name := range invalid {
		err := ValidateSchemaName(name)
		assert.Error(t, err, name)
		assert.ErrorIs(t, err, ErrInvalidIdentifier, name)
	}
}

func TestValidateSchemaName_MaxLength(t *testing.T) {
	assert.NoError(t, ValidateSchemaName(strings.Repeat("a", 63)))
}

func TestTenantRoutable(t *testing.T) {
	tenant := &Tenant{Status: StatusActive, Provisioned: true}
	assert.True(t, tenant.Routable())

	tenant.Status = StatusInactive
	assert.False(t, tenant.Routable())

	tenant.Status = StatusActive
	tenant.Provisioned = false
	assert.False(t, tenant.Routable())

	tenant.Status = StatusProvisioning
	assert.False(t, tenant.Routable())

	tenant.Status = StatusError
	tenant.Provisioned = true
	assert.False(t, tenant.Routable())
}
