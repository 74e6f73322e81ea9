package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/teresa-solution/tenant-schema-router/internal/api"
	"github.com/teresa-solution/tenant-schema-router/internal/binder"
	"github.com/teresa-solution/tenant-schema-router/internal/config"
	"github.com/teresa-solution/tenant-schema-router/internal/crypto"
	"github.com/teresa-solution/tenant-schema-router/internal/migration"
	"github.com/teresa-solution/tenant-schema-router/internal/monitoring"
	"github.com/teresa-solution/tenant-schema-router/internal/schema"
	"github.com/teresa-solution/tenant-schema-router/internal/service"
	"github.com/teresa-solution/tenant-schema-router/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.EncryptionKey != "" {
		if err := crypto.SetKey([]byte(cfg.EncryptionKey)); err != nil {
			log.Fatal().Err(err).Msg("Invalid encryption key")
		}
	}

	ctx := context.Background()
	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	var cache store.RedisClient
	if cfg.RedisAddr != "" {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	repo := store.NewTenantRepository(pool, cache)
	defer repo.Close()

	runner := migration.NewRunner(cfg.DatabaseURL, cfg.SharedMigrationsPath, cfg.TenantMigrationsPath)
	provisioner := schema.NewProvisioner(pool, repo, runner, cfg.MigrateConcurrency)
	queue := service.NewProvisioningQueue(repo, provisioner, cfg.ProvisionTimeout)
	defer queue.Close()

	b := binder.New(repo, pool, cfg.PlatformHosts, cfg.BindTimeout)

	monitoring.InitMetrics()

	router := api.NewRouter(b, repo)
	appServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Info().Msgf("Tenant schema router listening on %s", cfg.HTTPAddr)
		if err := appServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// Separate server for health checks and metrics so operational probes
	// never pass through tenant resolution.
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		metricsServer := &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: mux,
		}

		log.Info().Msgf("HTTP server for health checks and metrics started on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := appServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}
	log.Info().Msg("Server exiting")
}
