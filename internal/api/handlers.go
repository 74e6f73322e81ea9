package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/teresa-solution/tenant-schema-router/internal/store"
	"github.com/teresa-solution/tenant-schema-router/internal/tenantctx"
)

type handlers struct {
	repo *store.TenantRepository
}

// scope reports the namespace the request is bound to. Useful for smoke
// tests and debugging host routing.
func (h *handlers) scope(w http.ResponseWriter, r *http.Request) {
	scope := tenantctx.MustFromContext(r.Context())

	resp := map[string]any{
		"schema": scope.SchemaName(),
		"shared": scope.Shared,
	}
	if scope.Tenant != nil {
		resp["tenant"] = scope.Tenant.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}

// listUsers reads the users table of the bound tenant schema. The query is
// unqualified: the schema is selected by the connection's search_path, which
// is exactly the isolation mechanism under test.
func (h *handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	scope := tenantctx.MustFromContext(r.Context())
	if scope.Shared {
		http.Error(w, "tenant scope required", http.StatusBadRequest)
		return
	}

	rows, err := scope.DB.Query(r.Context(),
		`SELECT id, email, full_name, created_at FROM users ORDER BY created_at`)
	if err != nil {
		log.Error().Err(err).Str("schema", scope.SchemaName()).Msg("Failed to list users")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	users := []userResponse{}
	for rows.Next() {
		var u userResponse
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.CreatedAt); err != nil {
			log.Error().Err(err).Msg("Failed to scan user row")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		users = append(users, u)
	}
	writeJSON(w, http.StatusOK, users)
}

// listTenants lists the directory. Shared scope only: tenant hosts cannot
// enumerate the platform.
func (h *handlers) listTenants(w http.ResponseWriter, r *http.Request) {
	scope := tenantctx.MustFromContext(r.Context())
	if !scope.Shared {
		http.Error(w, "platform scope required", http.StatusForbidden)
		return
	}

	tenants, err := h.repo.List(r.Context(), false)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list tenants")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tenants)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
