// Package binder governs which storage namespace is active for a unit of
// work: it resolves the request host against the tenant directory, pins a
// connection to the tenant's schema, and guarantees the binding is released
// on every exit path.
package binder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/teresa-solution/tenant-schema-router/internal/model"
	"github.com/teresa-solution/tenant-schema-router/internal/monitoring"
	"github.com/teresa-solution/tenant-schema-router/internal/tenantctx"
)

// State of a binding. One binding walks Unbound -> Resolving ->
// Bound/BoundShared -> Released. A resolution failure leaves the binding in
// Resolving with no connection scoped; releasing it is the terminal step on
// that path too.
type State int

const (
	StateUnbound State = iota
	StateResolving
	StateBound
	StateBoundShared
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateResolving:
		return "resolving"
	case StateBound:
		return "bound"
	case StateBoundShared:
		return "bound_shared"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Directory is the tenant lookup surface the binder needs.
type Directory interface {
	ResolveByHost(ctx context.Context, hostname string) (*model.Tenant, error)
	GetBySchemaName(ctx context.Context, schemaName string) (*model.Tenant, error)
}

// Binder resolves hosts and binds connection contexts.
type Binder struct {
	dir           Directory
	conns         ConnSource
	shared        tenantctx.Querier
	platformHosts map[string]struct{}
	timeout       time.Duration
}

// New creates a binder over the production pgx pool. platformHosts bind to
// the shared schema instead of a tenant schema.
func New(dir Directory, pool *pgxpool.Pool, platformHosts []string, timeout time.Duration) *Binder {
	return NewWithSource(dir, &poolSource{pool: pool}, pool, platformHosts, timeout)
}

// NewWithSource creates a binder with an explicit connection source and
// shared-scope querier.
func NewWithSource(dir Directory, conns ConnSource, shared tenantctx.Querier, platformHosts []string, timeout time.Duration) *Binder {
	hosts := make(map[string]struct{}, len(platformHosts))
	for _, h := range platformHosts {
		hosts[strings.ToLower(h)] = struct{}{}
	}
	return &Binder{
		dir:           dir,
		conns:         conns,
		shared:        shared,
		platformHosts: hosts,
		timeout:       timeout,
	}
}

// Binding is the connection context of one unit of work. The zero value is
// Unbound.
type Binding struct {
	state State
	scope *tenantctx.Scope
	conn  Conn
}

func (b *Binding) State() State            { return b.state }
func (b *Binding) Scope() *tenantctx.Scope { return b.scope }

// Release clears the binding unconditionally. Idempotent; safe to defer on
// every path including panics. A binding that never reached Bound has no
// connection, so releasing it only marks the terminal state.
func (b *Binding) Release(ctx context.Context) error {
	if b.state == StateReleased {
		return nil
	}
	b.state = StateReleased
	if b.conn == nil {
		return nil
	}
	err := b.conn.Release(ctx)
	b.conn = nil
	return err
}

// Bind resolves host to a tenant (or the shared scope for platform hosts)
// and pins a connection to the resolved schema. The whole operation runs
// under the configured timeout. The binding is returned on failure too, in
// whatever state it reached; callers release it on every path.
func (b *Binder) Bind(ctx context.Context, host string) (*Binding, error) {
	start := time.Now()
	binding := &Binding{}
	err := b.bind(ctx, binding, host)
	monitoring.BindDuration.Observe(time.Since(start).Seconds())
	monitoring.BindsTotal.WithLabelValues(bindOutcome(binding, err)).Inc()
	return binding, err
}

func (b *Binder) bind(ctx context.Context, binding *Binding, host string) error {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	binding.state = StateResolving

	hostname := normalizeHost(host)
	if _, ok := b.platformHosts[hostname]; ok {
		binding.state = StateBoundShared
		binding.scope = &tenantctx.Scope{Shared: true, DB: b.shared}
		return nil
	}

	tenant, err := b.dir.ResolveByHost(ctx, hostname)
	if err != nil {
		return fmt.Errorf("resolve host %q: %w", hostname, err)
	}
	if tenant == nil {
		return ErrUnknownTenant
	}
	return b.bindTenant(ctx, binding, tenant)
}

// BindSchema binds directly to a tenant schema by its identifier. Background
// tasks carry the schema name in their payload and re-resolve here at
// execution time; a binding is never inherited from the enqueuing request.
func (b *Binder) BindSchema(ctx context.Context, schemaName string) (*Binding, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	binding := &Binding{state: StateResolving}
	tenant, err := b.dir.GetBySchemaName(ctx, schemaName)
	if err != nil {
		return binding, fmt.Errorf("resolve schema %q: %w", schemaName, err)
	}
	if tenant == nil {
		return binding, ErrUnknownTenant
	}
	return binding, b.bindTenant(ctx, binding, tenant)
}

func (b *Binder) bindTenant(ctx context.Context, binding *Binding, tenant *model.Tenant) error {
	switch {
	case tenant.Status == model.StatusInactive:
		return ErrTenantInactive
	case !tenant.Routable():
		return ErrTenantNotReady
	}

	conn, err := b.conns.AcquireSchema(ctx, tenant.SchemaName)
	if err != nil {
		return fmt.Errorf("bind schema %q: %w", tenant.SchemaName, err)
	}
	binding.state = StateBound
	binding.scope = &tenantctx.Scope{Tenant: tenant, DB: conn}
	binding.conn = conn
	return nil
}

func normalizeHost(host string) string {
	// Strip a port suffix; IPv6 literals keep their brackets intact.
	if idx := strings.LastIndex(host, ":"); idx != -1 && !strings.Contains(host[idx:], "]") {
		host = host[:idx]
	}
	return strings.ToLower(strings.TrimSuffix(host, "."))
}

func bindOutcome(binding *Binding, err error) string {
	switch {
	case err == nil && binding.state == StateBoundShared:
		return monitoring.OutcomeShared
	case err == nil:
		return monitoring.OutcomeBound
	case errors.Is(err, ErrUnknownTenant):
		return monitoring.OutcomeUnknownTenant
	case errors.Is(err, ErrTenantInactive):
		return monitoring.OutcomeTenantInactive
	case errors.Is(err, ErrTenantNotReady):
		return monitoring.OutcomeTenantNotReady
	default:
		return monitoring.OutcomeError
	}
}
