package binder

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teresa-solution/tenant-schema-router/internal/model"
	"github.com/teresa-solution/tenant-schema-router/internal/tenantctx"
)

func newMiddlewareFixture() (*fakeDirectory, *fakeSource, func(http.Handler) http.Handler) {
	dir := &fakeDirectory{byHost: map[string]*model.Tenant{
		"acme.example.com": activeTenant("acme"),
	}}
	src := &fakeSource{}
	b := NewWithSource(dir, src, nil, []string{"platform.example.com"}, time.Second)
	return dir, src, Middleware(b)
}

func doRequest(mw func(http.Handler) http.Handler, host string, handler http.HandlerFunc) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "http://"+host+"/", nil)
	req.Host = host
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_BindsTenantScope(t *testing.T) {
	_, src, mw := newMiddlewareFixture()

	var seen *tenantctx.Scope
	rec := doRequest(mw, "acme.example.com", func(w http.ResponseWriter, r *http.Request) {
		seen = tenantctx.MustFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "acme", seen.SchemaName())
	require.Len(t, src.conns, 1)
	assert.True(t, src.conns[0].released, "binding must be released after the handler returns")
}

func TestMiddleware_SharedScopeForPlatformHost(t *testing.T) {
	_, _, mw := newMiddlewareFixture()

	var seen *tenantctx.Scope
	rec := doRequest(mw, "platform.example.com", func(w http.ResponseWriter, r *http.Request) {
		seen = tenantctx.MustFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.True(t, seen.Shared)
}

func TestMiddleware_UnknownHostRejected(t *testing.T) {
	_, src, mw := newMiddlewareFixture()

	called := false
	rec := doRequest(mw, "unknown.example.com", func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, called, "business logic must not run when resolution fails")
	assert.Empty(t, src.conns)
}

func TestMiddleware_InactiveTenantRejected(t *testing.T) {
	dir, _, mw := newMiddlewareFixture()
	dir.byHost["acme.example.com"].Status = model.StatusInactive

	rec := doRequest(mw, "acme.example.com", func(w http.ResponseWriter, r *http.Request) {})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMiddleware_NotReadyTenantRejected(t *testing.T) {
	dir, _, mw := newMiddlewareFixture()
	dir.byHost["acme.example.com"].Provisioned = false
	dir.byHost["acme.example.com"].Status = model.StatusProvisioning

	rec := doRequest(mw, "acme.example.com", func(w http.ResponseWriter, r *http.Request) {})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMiddleware_ReleasesOnPanic(t *testing.T) {
	_, src, mw := newMiddlewareFixture()

	req := httptest.NewRequest(http.MethodGet, "http://acme.example.com/", nil)
	req.Host = "acme.example.com"
	rec := httptest.NewRecorder()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("business logic failure")
	}))

	assert.Panics(t, func() { handler.ServeHTTP(rec, req) })
	require.Len(t, src.conns, 1)
	assert.True(t, src.conns[0].released, "binding must be released even when the handler panics")
}

func TestMiddleware_DeactivateThenReactivateScenario(t *testing.T) {
	dir, _, mw := newMiddlewareFixture()
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

	assert.Equal(t, http.StatusOK, doRequest(mw, "acme.example.com", ok).Code)

	dir.byHost["acme.example.com"].Status = model.StatusInactive
	assert.Equal(t, http.StatusForbidden, doRequest(mw, "acme.example.com", ok).Code)

	dir.byHost["acme.example.com"].Status = model.StatusActive
	assert.Equal(t, http.StatusOK, doRequest(mw, "acme.example.com", ok).Code)
}
