// CLI entry point for merchant-advisor.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/storepilot/merchant-advisor/internal/application/advisory"
	"github.com/storepilot/merchant-advisor/internal/application/metrics"
	"github.com/storepilot/merchant-advisor/internal/application/resolver"
	"github.com/storepilot/merchant-advisor/internal/application/websearch"
	"github.com/storepilot/merchant-advisor/internal/config"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/database/postgres"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/database/redis"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/monitoring/logging"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/search/opensearch"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/search/serper"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/search/tavily"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/storage/minio"
	"github.com/storepilot/merchant-advisor/internal/infrastructure/weather"
	"github.com/storepilot/merchant-advisor/internal/intelligence/forecast"
	"github.com/storepilot/merchant-advisor/internal/intelligence/intent"
	"github.com/storepilot/merchant-advisor/internal/intelligence/llm"
	"github.com/storepilot/merchant-advisor/internal/interfaces/cli"
)

const connectTimeout = 10 * time.Second

func main() {
	cfg := loadConfig()

	// CLI logs go to stderr so stdout stays clean for command output.
	logger, err := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      "console",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}

	deps := buildDependencies(cfg, logger)

	root := cli.NewRootCommand(deps)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	path := os.Getenv("ADVISOR_CONFIG")
	if path == "" {
		path = "configs/config.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		if cfg, err := config.Load(path); err == nil {
			return cfg
		}
		fmt.Fprintf(os.Stderr, "warning: config %s unreadable, using defaults\n", path)
	}
	return config.NewDefaultConfig()
}

// buildDependencies wires what it can; an unreachable backend disables the
// commands that need it rather than aborting the whole CLI.
func buildDependencies(cfg *config.Config, logger logging.Logger) cli.CommandDependencies {
	deps := cli.CommandDependencies{Logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	llmClient := llm.NewClient(cfg.LLM, logger)

	var providers []websearch.Provider
	if p := tavily.New(cfg.WebSearch.Tavily, logger); p.Configured() {
		providers = append(providers, p)
	}
	if p := serper.New(cfg.WebSearch.Serper, logger); p.Configured() {
		providers = append(providers, p)
	}
	if p, err := opensearch.NewProvider(cfg.OpenSearch, logger); err == nil {
		providers = append(providers, p)
	}
	deps.Web = websearch.NewAggregator(cfg.WebSearch, providers, llmClient, logger)

	deps.Histories = redis.NewHistoryStore(cfg.Redis, cfg.Conversation.MaxTurns, logger)
	if archiver, err := minio.NewArchiver(cfg.Minio, logger); err == nil {
		deps.Archiver = archiver
	}

	conn, err := postgres.NewConnection(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Warn("merchant store unavailable, chat and resolve are disabled", logging.Err(err))
		return deps
	}
	merchantStore := postgres.NewMerchantStore(conn, logger)
	deps.Resolver = resolver.New(merchantStore, llmClient, logger)

	var weatherProvider metrics.WeatherProvider
	if w := weather.New(cfg.Weather, logger); w.Configured() {
		weatherProvider = w
	}

	deps.Orchestrator = advisory.NewOrchestrator(advisory.Dependencies{
		Router:     intent.NewRouter(llmClient, logger),
		Resolver:   deps.Resolver,
		Merchants:  merchantStore,
		TradeAreas: postgres.NewTradeAreaStore(conn, logger),
		Metrics:    metrics.NewRegistry(weatherProvider),
		Web:        deps.Web,
		Generator:  advisory.NewResponseGenerator(llmClient, logger),
		Gate:       advisory.NewRelevanceGate(),
		Memory:     advisory.NewMemoryUpdater(deps.Histories, cfg.Conversation.SummaryThreshold, logger),
		Histories:  deps.Histories,
		Predictor:  forecast.NewPredictor(cfg.Forecast, logger),
	}, cfg.Conversation, logger)

	return deps
}
