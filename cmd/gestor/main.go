package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/imovelgestor/imovel-gestor-go/internal/config"
	"github.com/imovelgestor/imovel-gestor-go/internal/domain"
	"github.com/imovelgestor/imovel-gestor-go/internal/handler"
	"github.com/imovelgestor/imovel-gestor-go/internal/infra/cache"
	"github.com/imovelgestor/imovel-gestor-go/internal/infra/client"
	"github.com/imovelgestor/imovel-gestor-go/internal/infra/observability"
	"github.com/imovelgestor/imovel-gestor-go/internal/infra/resilience"
	"github.com/imovelgestor/imovel-gestor-go/internal/infra/supabase"
	"github.com/imovelgestor/imovel-gestor-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("ipca_timeout", cfg.IPCATimeout),
		zap.Duration("correction_cache_ttl", cfg.CorrectionCacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Bool("auth_required", cfg.AuthRequired),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "imovel-gestor-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	correctionCache := cache.New[*domain.Correction](cfg.CorrectionCacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	supabaseCB := resilience.NewCircuitBreaker("supabase")
	ipcaCB := resilience.NewCircuitBreaker("ipca")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	supabaseClient := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		supabaseCB,
		resilienceCfg,
		logger,
	)
	ipcaClient := client.NewIPCAClient(httpClient, cfg.IPCAAPIURL, cfg.IPCATimeout, ipcaCB, logger)

	// --- Services ---
	marcoZeroSvc := service.NewMarcoZeroService(supabaseClient, supabaseClient, metrics, logger)
	reconciliationSvc := service.NewReconciliationService(supabaseClient, logger)
	analyticsSvc := service.NewAnalyticsService(
		supabaseClient,
		supabaseClient,
		supabaseClient,
		supabaseClient,
		ipcaClient,
		correctionCache,
		metrics,
		logger,
	)

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		MarcoZero:      marcoZeroSvc,
		Reconciliation: reconciliationSvc,
		Analytics:      analyticsSvc,
		Properties:     supabaseClient,
		Metrics:        metrics,
		Config:         cfg,
		Logger:         logger,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
