// shipmentqa is the server binary. It answers shipment questions over HTTP
// by orchestrating intent classification, scoped hybrid search, and scoped
// dataset analytics.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mcs-logistics/shipmentqa/pkg/analytics"
	"github.com/mcs-logistics/shipmentqa/pkg/api"
	"github.com/mcs-logistics/shipmentqa/pkg/config"
	"github.com/mcs-logistics/shipmentqa/pkg/dataset"
	"github.com/mcs-logistics/shipmentqa/pkg/domainref"
	"github.com/mcs-logistics/shipmentqa/pkg/graph"
	"github.com/mcs-logistics/shipmentqa/pkg/graph/nodes"
	"github.com/mcs-logistics/shipmentqa/pkg/llm"
	"github.com/mcs-logistics/shipmentqa/pkg/retrieval"
	"github.com/mcs-logistics/shipmentqa/pkg/scope"
	"github.com/mcs-logistics/shipmentqa/pkg/session"
	"github.com/mcs-logistics/shipmentqa/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env from the config directory before anything reads the env.
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	}

	slog.Info("Starting shipmentqa", "version", version.Full(), "config_dir", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// Domain reference: external file if configured, built-in otherwise.
	ref := domainref.Builtin()
	if cfg.DomainRef.Path != "" {
		ref, err = domainref.Load(cfg.DomainRef.Path)
		if err != nil {
			slog.Error("Failed to load domain reference", "path", cfg.DomainRef.Path, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("Domain reference loaded", "version", ref.Version, "columns", len(ref.Columns))

	scopes, err := buildScopeResolver(cfg.Scope)
	if err != nil {
		slog.Error("Failed to initialize scope resolver", "error", err)
		os.Exit(1)
	}

	store, err := buildSessionStore(ctx, cfg.Session)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("Error closing session store", "error", err)
		}
	}()

	data, err := dataset.NewManager(ctx, dataset.Config{
		CacheDir: cfg.Dataset.CacheDir,
		Bucket:   cfg.Dataset.Bucket,
		Object:   cfg.Dataset.Object,
		TestMode: cfg.Dataset.TestMode,
	})
	if err != nil {
		slog.Error("Failed to initialize dataset manager", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := data.Close(); err != nil {
			slog.Error("Error closing dataset manager", "error", err)
		}
	}()

	llmClient, err := buildLLMClient(cfg.LLM)
	if err != nil {
		slog.Error("Failed to initialize LLM client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := llmClient.Close(); err != nil {
			slog.Error("Error closing LLM client", "error", err)
		}
	}()
	slog.Info("LLM client initialized", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)

	searcher, err := retrieval.NewWeaviateSearcher(retrieval.WeaviateConfig{
		Host:   cfg.Retrieval.Host,
		Scheme: cfg.Retrieval.Scheme,
		Class:  cfg.Retrieval.Class,
		Alpha:  float32(cfg.Retrieval.Alpha),
	})
	if err != nil {
		slog.Error("Failed to initialize searcher", "host", cfg.Retrieval.Host, "error", err)
		os.Exit(1)
	}

	runtime, err := graph.NewRuntime(
		graph.Config{TurnTimeout: cfg.Graph.TurnTimeout.Std()},
		store,
		scopes,
		nodes.All(nodes.Deps{
			LLM:       llmClient,
			Searcher:  searcher,
			Discovery: analytics.NewDiscovery(data),
			Planner:   analytics.NewPlanner(llmClient, ref),
			Executor: analytics.NewExecutor(analytics.ExecutorConfig{
				Timeout:  cfg.Analytics.Timeout.Std(),
				RowCap:   cfg.Analytics.RowCap,
				GroupCap: cfg.Analytics.GroupCap,
			}, data, ref),
			Ref:               ref,
			ChartEnabled:      cfg.Analytics.ChartEnabled,
			JudgeRetryCeiling: cfg.Graph.JudgeRetryCeiling,
			ReplanCeiling:     cfg.Graph.ReplanCeiling,
			SearchLimit:       cfg.Graph.SearchLimit,
		}),
	)
	if err != nil {
		slog.Error("Failed to build orchestration runtime", "error", err)
		os.Exit(1)
	}

	server := api.NewServer(cfg.Server, runtime)
	if err := server.Run(ctx); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}

func buildScopeResolver(cfg config.ScopeConfig) (*scope.Resolver, error) {
	var registry *scope.Registry
	if cfg.RegistryPath != "" {
		var err error
		registry, err = scope.LoadRegistry(cfg.RegistryPath)
		if err != nil {
			return nil, err
		}
	} else {
		registry = scope.NewRegistry(nil)
	}
	return scope.NewResolver(registry, cfg.Production, cfg.DevOverrideCodes), nil
}

func buildSessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, error) {
	switch cfg.Backend {
	case "redis":
		return session.NewRedisStore(ctx, session.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.TTL.Std(),
		})
	default:
		return session.NewMemoryStore(cfg.TTL.Std()), nil
	}
}

func buildLLMClient(cfg config.LLMConfig) (llm.Client, error) {
	if cfg.Provider == "mock" {
		return llm.NewMock().WithFallback("OK"), nil
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return llm.NewOpenAIClient(llm.OpenAIConfig{
		Model:   cfg.Model,
		Token:   apiKey,
		BaseURL: cfg.BaseURL,
	})
}
