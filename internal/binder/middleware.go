package binder

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/teresa-solution/tenant-schema-router/internal/tenantctx"
)

// Middleware binds the connection context before any business handler runs
// and releases it on every exit path, panics included. Resolution failures
// short-circuit with a clean rejection; raw storage errors never reach
// business logic or the client.
func Middleware(b *Binder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			binding, err := b.Bind(r.Context(), r.Host)
			// WithoutCancel: the search_path reset must survive a client
			// that disconnected mid-request.
			defer func() {
				if err := binding.Release(context.WithoutCancel(r.Context())); err != nil {
					log.Error().Err(err).Str("host", r.Host).Msg("Failed to release connection context")
				}
			}()
			if err != nil {
				rejectRequest(w, r, err)
				return
			}

			ctx := tenantctx.WithScope(r.Context(), binding.Scope())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func rejectRequest(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUnknownTenant):
		http.Error(w, "unknown tenant", http.StatusNotFound)
	case errors.Is(err, ErrTenantInactive):
		http.Error(w, "tenant is inactive", http.StatusForbidden)
	case errors.Is(err, ErrTenantNotReady):
		http.Error(w, "tenant is not ready", http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		log.Error().Err(err).Str("host", r.Host).Msg("Tenant resolution timed out")
		http.Error(w, "resolution timeout", http.StatusGatewayTimeout)
	default:
		log.Error().Err(err).Str("host", r.Host).Msg("Tenant resolution failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
