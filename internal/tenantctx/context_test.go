package tenantctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/teresa-solution/tenant-schema-router/internal/model"
)

func TestWithScopeAndFromContext(t *testing.T) {
	scope := &Scope{Tenant: &model.Tenant{SchemaName: "acme"}}
	ctx := WithScope(context.Background(), scope)

	got, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Same(t, scope, got)
	assert.Equal(t, "acme", got.SchemaName())
}

func TestFromContext_Empty(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
}

func TestSharedScopeSchemaName(t *testing.T) {
	scope := &Scope{Shared: true}
	assert.Equal(t, "public", scope.SchemaName())
}

func TestMustFromContext_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustFromContext(context.Background())
	})
}
