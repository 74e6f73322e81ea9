// Package tenantctx carries the resolved tenant scope of a unit of work
// through the call chain. The scope is explicit context state, never a
// process-global "current tenant": a reused worker can never leak one
// request's binding into the next.
package tenantctx

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/teresa-solution/tenant-schema-router/internal/model"
)

// Querier is the query surface handed to business logic. For a tenant scope
// it is a pooled connection pinned to the tenant schema; for the shared
// scope it is the plain pool (search_path defaults to the shared schema).
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Scope is the active namespace of one unit of work: either exactly one
// tenant's schema, or the shared schema, never both.
type Scope struct {
	Tenant *model.Tenant // nil when Shared
	Shared bool
	DB     Querier
}

// SchemaName returns the active schema of this scope.
func (s *Scope) SchemaName() string {
	if s.Shared {
		return "public"
	}
	return s.Tenant.SchemaName
}

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// WithScope returns a derived context carrying the scope.
func WithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, contextKey{}, scope)
}

// FromContext retrieves the scope from the context.
func FromContext(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(contextKey{}).(*Scope)
	return scope, ok
}

// MustFromContext retrieves the scope and panics if none is present. Only
// for handlers that run strictly behind the binder middleware.
func MustFromContext(ctx context.Context) *Scope {
	scope, ok := FromContext(ctx)
	if !ok || scope == nil {
		panic("tenantctx: no scope in context")
	}
	return scope
}
