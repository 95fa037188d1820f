package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"beacon/internal/api"
	"beacon/internal/api/handlers"
	"beacon/internal/api/middleware"
	"beacon/internal/engine/alerting"
	"beacon/internal/engine/channels"
	"beacon/internal/engine/notify"
	"beacon/internal/engine/registry"
	"beacon/internal/engine/webhooks"
	"beacon/internal/pkg/logger"
	"beacon/internal/platform/audit"
	"beacon/internal/platform/auth"
	"beacon/internal/platform/config"
	"beacon/internal/platform/database"
	"beacon/internal/platform/metrics"
	"beacon/internal/platform/repositories"
	"beacon/migrations"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before the config")
	flag.Parse()

	// a missing dotenv file is not an error; real env vars take precedence
	_ = godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	applied, err := database.Migrate(db, migrations.FS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}
	log.Info().Strs("migrations", applied).Msg("database ready")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Repositories
	webhookRepo := repositories.NewWebhookRepository(db)
	ruleRepo := repositories.NewRuleRepository(db)
	deliveryRepo := repositories.NewDeliveryRepository(db)

	// Engines
	executor := webhooks.NewExecutor(cfg.Webhooks)
	adapters := channels.NewDefaultRegistry(executor, cfg.Channels, log.Logger)
	if missing := adapters.Missing(); len(missing) > 0 {
		log.Fatal().Interface("channels", missing).Msg("channels without an adapter")
	}

	registrySvc := registry.NewService(webhookRepo, ruleRepo, adapters, log.Logger)
	orchestrator := notify.NewOrchestrator(notify.Deps{
		Webhooks:   webhookRepo,
		Rules:      ruleRepo,
		Ledger:     deliveryRepo,
		Deliverer:  executor,
		Dispatcher: adapters,
		Metrics:    m,
	}, cfg.Webhooks.Concurrency, log.Logger)

	alertPoster := webhooks.NewExecutor(config.WebhooksConfig{
		Product: cfg.Webhooks.Product,
		Version: cfg.Webhooks.Version,
		Timeout: cfg.Alerting.Timeout,
	})
	bridge := alerting.NewBridge(alertPoster, cfg.Alerting, m, log.Logger)
	if !bridge.Enabled() {
		log.Warn().Msg("alerting.receiver_url not set; incident alerts are disabled")
	}

	auditLog := audit.NewLogger(db, log.Logger)
	tokenSvc := auth.NewTokenService(cfg.JWT)

	deps := &api.Dependencies{
		WebhookHandler:   handlers.NewWebhookHandler(registrySvc, orchestrator, auditLog),
		RuleHandler:      handlers.NewRuleHandler(registrySvc, orchestrator, auditLog),
		EventHandler:     handlers.NewEventHandler(orchestrator),
		IncidentHandler:  handlers.NewIncidentHandler(bridge),
		AuditHandler:     handlers.NewAuditHandler(auditLog),
		HealthHandler:    handlers.NewHealthHandler(db),
		MetricsHandler:   handlers.NewMetricsHandler(reg),
		AuthMiddleware:   middleware.NewAuthMiddleware(tokenSvc),
		TenantMiddleware: middleware.NewTenantMiddleware(),
		RateLimiter:      middleware.NewRateLimiter(ctx, cfg.Server.RateLimits),
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	// in-flight broadcasts are bounded by the webhook timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Webhooks.Timeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
