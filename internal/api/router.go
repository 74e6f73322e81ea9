// Package api exposes the tenant-scoped data plane. All /api routes run
// behind the binder middleware: handlers read the bound scope from the
// request context and never pick a schema themselves.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/teresa-solution/tenant-schema-router/internal/binder"
	"github.com/teresa-solution/tenant-schema-router/internal/store"
)

// NewRouter builds the data-plane router. Health stays unscoped; everything
// under /api is bound to a namespace before any handler runs.
func NewRouter(b *binder.Binder, repo *store.TenantRepository) chi.Router {
	h := &handlers{repo: repo}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(binder.Middleware(b))
		r.Get("/scope", h.scope)
		r.Get("/users", h.listUsers)
		r.Get("/tenants", h.listTenants)
	})

	return r
}
