package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ProvisioningQueue runs tenant provisioning in the background. Queued jobs
// carry the tenant's schema identifier only: the worker re-resolves the
// tenant from the directory at execution time instead of trusting state
// captured at enqueue time.
type ProvisioningQueue struct {
	repo    TenantStore
	prov    Provisioner
	timeout time.Duration
	jobs    chan string
	done    chan struct{}
}

func NewProvisioningQueue(repo TenantStore, prov Provisioner, timeout time.Duration) *ProvisioningQueue {
	q := &ProvisioningQueue{
		repo:    repo,
		prov:    prov,
		timeout: timeout,
		jobs:    make(chan string, 10),
		done:    make(chan struct{}),
	}
	go q.worker()
	return q
}

// Enqueue queues a tenant for provisioning by schema identifier.
func (q *ProvisioningQueue) Enqueue(schemaName string) {
	q.jobs <- schemaName
}

// Close stops accepting jobs and waits for the worker to drain.
func (q *ProvisioningQueue) Close() {
	close(q.jobs)
	<-q.done
}

func (q *ProvisioningQueue) worker() {
	defer close(q.done)
	for schemaName := range q.jobs {
		q.provision(schemaName)
	}
}

func (q *ProvisioningQueue) provision(schemaName string) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	tenant, err := q.repo.GetBySchemaName(ctx, schemaName)
	if err != nil {
		log.Error().Err(err).Str("schema", schemaName).Msg("Failed to load tenant for provisioning")
		return
	}
	if tenant == nil {
		// Deleted between enqueue and execution; nothing to do.
		log.Warn().Str("schema", schemaName).Msg("Queued tenant no longer exists")
		return
	}

	log.Info().Str("schema", schemaName).Msg("Starting provisioning process")
	if err := q.prov.Provision(ctx, tenant); err != nil {
		log.Error().Err(err).Str("schema", schemaName).Msg("Provisioning failed")
	}
}
