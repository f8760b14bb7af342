// API server entry point for merchant-advisor.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/storepilot/merchant-advisor/internal/application/advisory"
	"github.com/storepilot/merchant-advisor/internal/application/metrics"
	"github.com/storepilot/merchant-advisor/internal/application/resolver"
	"github.com/storepilot/merchant-advisor/internal/application/websearch"
	"github.com/storepilot/merchant-advisor/internal/config"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/database/postgres"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/database/redis"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/messaging/kafka"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/prometheus"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/search/opensearch"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/search/serper"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/search/tavily"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/weather"
	"github.com/storepilot/merchant-advisor/internal/intelligence/forecast"
	"github.com/storepilot/merchant-advisor/internal/intelligence/intent"
	"github.com/storepilot/merchant-advisor/internal/intelligence/llm"
	httpserver "github.com/storepilot/merchant-advisor/internal/interfaces/http"
	"github.com/storepilot/merchant-advisor/internal/interfaces/http/handlers"
	"github.com/storepilot/merchant-advisor/internal/interfaces/http/middleware"
)

const (
	defaultConfigPath = "configs/config.yaml"
	startupTimeout    = 30 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	grpcPort := flag.Int("grpc-port", 0, "gRPC server port (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: using default configuration: %v\n", err)
		cfg = config.NewDefaultConfig()
	}
	if *httpPort > 0 {
		cfg.Server.HTTP.Port = *httpPort
	}
	if *grpcPort > 0 {
		cfg.Server.GRPC.Port = *grpcPort
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	logger.Info("starting merchant-advisor API server",
		logging.String("version", config.Version),
		logging.Int("http_port", cfg.Server.HTTP.Port),
		logging.Int("grpc_port", cfg.Server.GRPC.Port))

	startCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	// Storage.
	conn, err := postgres.NewConnection(startCtx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("postgres connection failed", logging.Err(err))
	}
	defer conn.Close()
	if cfg.Postgres.MigrationsPath != "" {
		if err := conn.RunMigrations(cfg.Postgres.MigrationsPath); err != nil {
			logger.Fatal("migrations failed", logging.Err(err))
		}
	}
	merchantStore := postgres.NewMerchantStore(conn, logger)
	tradeAreaStore := postgres.NewTradeAreaStore(conn, logger)
	historyStore := redis.NewHistoryStore(cfg.Redis, cfg.Conversation.MaxTurns, logger)

	// Observability and events.
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "advisor",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		logger.Fatal("metrics collector init failed", logging.Err(err))
	}
	appMetrics := prometheus.NewAppMetrics(collector)
	publisher := kafka.NewPublisher(cfg.Kafka, logger)
	defer publisher.Close()

	observeLLM := func(operation, status string, elapsed time.Duration) {
		appMetrics.LLMRequestsTotal.WithLabelValues(operation, status).Inc()
		appMetrics.LLMRequestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	}
	observeProvider := func(provider string, elapsed time.Duration) {
		appMetrics.ProviderDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
	}

	// Intelligence.
	llmClient := llm.NewClient(cfg.LLM, logger)
	router := intent.NewRouter(llm.Instrument(llmClient, "classify", observeLLM), logger)
	merchantResolver := resolver.New(merchantStore,
		llm.Instrument(llmClient, "extract", observeLLM), logger)
	predictor := forecast.NewPredictor(cfg.Forecast, logger)

	// Web search providers, in fallback order.
	var providers []websearch.Provider
	if p := tavily.New(cfg.WebSearch.Tavily, logger); p.Configured() {
		providers = append(providers, websearch.InstrumentProvider(p, observeProvider))
	}
	if p := serper.New(cfg.WebSearch.Serper, logger); p.Configured() {
		providers = append(providers, websearch.InstrumentProvider(p, observeProvider))
	}
	if p, err := opensearch.NewProvider(cfg.OpenSearch, logger); err == nil {
		providers = append(providers, websearch.InstrumentProvider(p, observeProvider))
	}
	aggregator := websearch.NewAggregator(cfg.WebSearch, providers,
		llm.Instrument(llmClient, "rewrite", observeLLM), logger)

	var weatherProvider metrics.WeatherProvider
	if w := weather.New(cfg.Weather, logger); w.Configured() {
		weatherProvider = w
	}

	// Turn pipeline.
	orchestrator := advisory.NewOrchestrator(advisory.Dependencies{
		Router:     router,
		Resolver:   merchantResolver,
		Merchants:  merchantStore,
		TradeAreas: tradeAreaStore,
		Metrics:    metrics.NewRegistry(weatherProvider),
		Web:        aggregator,
		Generator:  advisory.NewResponseGenerator(llm.Instrument(llmClient, "generate", observeLLM), logger),
		Gate:       advisory.NewRelevanceGate(),
		Memory:     advisory.NewMemoryUpdater(historyStore, cfg.Conversation.SummaryThreshold, logger),
		Histories:  historyStore,
		Predictor:  predictor,
		Publisher:  publisher,
		AppMetrics: appMetrics,
	}, cfg.Conversation, logger)

	// HTTP.
	handler := httpserver.NewRouter(httpserver.RouterConfig{
		TurnHandler:     handlers.NewTurnHandler(orchestrator, logger),
		MerchantHandler: handlers.NewMerchantHandler(merchantResolver, merchantStore, logger),
		SearchHandler:   handlers.NewSearchHandler(aggregator, logger),
		HealthHandler: handlers.NewHealthHandler(config.Version,
			namedChecker{name: "postgres", check: conn.HealthCheck}),
		Logger:           logger,
		LoggingConfig:    middleware.DefaultLoggingConfig(),
		MetricsCollector: collector,
	})
	httpSrv := httpserver.NewServer(cfg.Server.HTTP, handler, logger)

	go func() {
		if err := httpSrv.Start(); err != nil {
			logger.Error("http server error", logging.Err(err))
		}
	}()

	// gRPC listener placeholder; no services registered yet.
	grpcSrv := grpc.NewServer()
	go func() {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPC.Port))
		if err != nil {
			logger.Error("grpc listen failed", logging.Err(err))
			return
		}
		logger.Info("grpc server listening", logging.Int("port", cfg.Server.GRPC.Port))
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server error", logging.Err(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := httpSrv.Stop(ctx); err != nil {
		logger.Error("http shutdown error", logging.Err(err))
	}
	grpcSrv.GracefulStop()
	logger.Info("stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return config.Load(path)
}
