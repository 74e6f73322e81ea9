package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	BindsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_binds_total",
			Help: "Total number of connection context bind attempts by outcome",
		},
		[]string{"outcome"},
	)
	BindDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tenant_bind_duration_seconds",
			Help:    "Duration of host resolution and schema binding in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)
	TenantsProvisioned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenants_provisioned_total",
			Help: "Total number of tenants provisioned by status",
		},
		[]string{"status"},
	)
	ProvisioningDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tenant_provisioning_duration_seconds",
			Help:    "Duration of tenant provisioning in seconds",
			Buckets: prometheus.LinearBuckets(0, 1, 10),
		},
	)
	TenantMigrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_migrations_total",
			Help: "Per-tenant migration runs by result",
		},
		[]string{"result"},
	)
)

// Bind outcome labels.
const (
	OutcomeBound          = "bound"
	OutcomeShared         = "shared"
	OutcomeUnknownTenant  = "unknown_tenant"
	OutcomeTenantInactive = "tenant_inactive"
	OutcomeTenantNotReady = "tenant_not_ready"
	OutcomeError          = "error"
)

func InitMetrics() {
	collectors := map[string]prometheus.Collector{
		"BindsTotal":           BindsTotal,
		"BindDuration":         BindDuration,
		"TenantsProvisioned":   TenantsProvisioned,
		"ProvisioningDuration": ProvisioningDuration,
		"TenantMigrations":     TenantMigrations,
	}
	for name, collector := range collectors {
		if err := prometheus.Register(collector); err != nil {
			log.Error().Err(err).Msgf("Failed to register %s metric", name)
		}
	}
}
