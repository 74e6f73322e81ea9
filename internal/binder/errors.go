package binder

import "errors"

var (
	// ErrUnknownTenant is returned when the host has no registered domain.
	// Surfaced at the request boundary as "not found", never as a storage
	// error.
	ErrUnknownTenant = errors.New("unknown tenant host")

	// ErrTenantInactive is returned when the host resolves to a deactivated
	// tenant.
	ErrTenantInactive = errors.New("tenant is inactive")

	// ErrTenantNotReady is returned when the tenant exists but provisioning
	// has not completed (or failed). The tenant must never be bound until its
	// migrations have finished.
	ErrTenantNotReady = errors.New("tenant is not provisioned")
)
