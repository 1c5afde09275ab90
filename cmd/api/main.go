// Package main is the entry point for the ledger gateway API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/trapeze-h2020/ledger-gateway/internal/api"
	"github.com/trapeze-h2020/ledger-gateway/internal/auth"
	"github.com/trapeze-h2020/ledger-gateway/internal/config"
	"github.com/trapeze-h2020/ledger-gateway/internal/health"
	"github.com/trapeze-h2020/ledger-gateway/internal/ledger"
	"github.com/trapeze-h2020/ledger-gateway/internal/middleware"
	"github.com/trapeze-h2020/ledger-gateway/internal/tracing"
	"github.com/trapeze-h2020/ledger-gateway/internal/wallet"
)

const serviceName = "ledger-gateway"

func main() {
	configFile := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Ledger Gateway API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Tracing (no-op provider when disabled)
	tracingProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.SamplingRate,
		InsecureMode: cfg.OTLPInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingProvider.Shutdown(ctx); err != nil {
			logger.Error("failed to shut down tracing", "error", err)
		}
	}()

	// Metrics
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register HTTP metrics", "error", err)
		os.Exit(1)
	}
	ledgerMetrics := ledger.NewMetrics()
	if err := ledgerMetrics.Register(registry); err != nil {
		logger.Error("failed to register ledger metrics", "error", err)
		os.Exit(1)
	}

	// Wallet and ledger connector
	store := wallet.New(cfg.WalletDir, cfg.MSPID)
	connector := ledger.NewConnector(
		ledger.Profile{
			PeerEndpoint: cfg.PeerEndpoint,
			GatewayPeer:  cfg.GatewayPeer,
			TLSCertPath:  cfg.TLSCertPath,
		},
		store,
		ledger.DiscoveryConfig{
			Enabled:     cfg.DiscoveryEnabled,
			AsLocalhost: cfg.DiscoveryLocalhost,
		},
		ledger.Timeouts{
			Evaluate:     cfg.EvaluateTimeout,
			Endorse:      cfg.EndorseTimeout,
			Submit:       cfg.SubmitTimeout,
			CommitStatus: cfg.CommitStatusTimeout,
		},
		ledgerMetrics,
	)

	// Redis-backed rate limiting when configured, in-memory otherwise
	var counterStore middleware.CounterStore = middleware.NewMemoryCounterStore()
	var redisChecker api.HealthChecker
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("failed to close redis client", "error", err)
			}
		}()
		counterStore = middleware.NewRedisCounterStore(redisClient)
		redisChecker = health.NewRedisChecker(redisClient)
	}

	// Handlers
	policyHandlers := api.NewPolicyHandlers(connector, cfg.Channel, cfg.Chaincode)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		PeerChecker:   health.NewPeerChecker(cfg.PeerEndpoint),
		WalletChecker: health.NewWalletChecker(store),
		RedisChecker:  redisChecker,
	})

	routerCfg := api.RouterConfig{
		Policies:   policyHandlers,
		Health:     healthHandlers,
		Metrics:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		WriteLimit: middleware.RateLimit(middleware.DefaultWriteLimit(), counterStore, httpMetrics),
	}
	if cfg.AuthEnabled() {
		tokens := auth.NewService(cfg.JWTSecret)
		routerCfg.Auth = api.NewAuthHandlers(tokens, store)
		routerCfg.RequireAuth = middleware.RequireAuth(tokens)
	}
	router := api.NewRouter(routerCfg)

	// Middleware chain, outermost first: RequestID -> Tracing -> Logging ->
	// HTTPMetrics -> global RateLimit -> router
	var handler http.Handler = router
	handler = middleware.RateLimit(middleware.DefaultGlobalLimit(), counterStore, httpMetrics)(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	if tracingProvider.IsEnabled() {
		handler = middleware.Tracing(serviceName)(handler)
	}
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // submits wait for commit status
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "channel", cfg.Channel, "chaincode", cfg.Chaincode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
