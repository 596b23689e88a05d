// deepthink is the marketing assistant's deep-thinking engine server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/deepthink-ai/deepthink/pkg/api"
	"github.com/deepthink-ai/deepthink/pkg/assistant"
	"github.com/deepthink-ai/deepthink/pkg/bus"
	"github.com/deepthink-ai/deepthink/pkg/cache"
	"github.com/deepthink-ai/deepthink/pkg/config"
	"github.com/deepthink-ai/deepthink/pkg/document"
	"github.com/deepthink-ai/deepthink/pkg/graph"
	"github.com/deepthink-ai/deepthink/pkg/intent"
	"github.com/deepthink-ai/deepthink/pkg/llm"
	"github.com/deepthink-ai/deepthink/pkg/memory"
	"github.com/deepthink-ai/deepthink/pkg/narrative"
	"github.com/deepthink-ai/deepthink/pkg/orchestrator"
	"github.com/deepthink-ai/deepthink/pkg/planner"
	"github.com/deepthink-ai/deepthink/pkg/plugin"
	"github.com/deepthink-ai/deepthink/pkg/plugins"
	"github.com/deepthink-ai/deepthink/pkg/ports"
	"github.com/deepthink-ai/deepthink/pkg/session"
	"github.com/deepthink-ai/deepthink/pkg/store"
)

const (
	defaultConfigDir   = "config"
	defaultListenAddr  = ":8080"
	shutdownTimeout    = 10 * time.Second
	analysisStepBudget = 90 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is a development convenience; absence is not an error
	_ = godotenv.Load()
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configDir := envOr("DEEPTHINK_CONFIG_DIR", defaultConfigDir)
	cfg, err := config.Initialize(ctx, configDir)
	if err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}

	// Cache and session KV share one Redis client; without an address both
	// degrade to process-local memory (development mode).
	var (
		cacheStore cache.Store
		sessionKV  session.KV
		redisCli   *redis.Client
	)
	if cfg.Cache != nil && cfg.Cache.RedisAddr != "" {
		redisCli = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		cacheStore = cache.NewRedisStore(redisCli)
		sessionKV = session.NewRedisKV(redisCli)
		defer redisCli.Close()
	} else {
		slog.Warn("No Redis configured, using in-memory cache and sessions")
		cacheStore = cache.NewMemoryStore()
		sessionKV = session.NewMemKV()
	}
	smartCache := cache.New(cacheStore)

	// Postgres is optional the same way: absent DATABASE_HOST runs the
	// in-memory stores.
	var (
		profiles  store.ProfileStore
		histories store.HistoryStore
		documents store.DocumentStore
		health    api.HealthFunc
	)
	if os.Getenv("DATABASE_HOST") != "" {
		client, cerr := store.NewClient(ctx, storeConfigFromEnv())
		if cerr != nil {
			return fmt.Errorf("database setup failed: %w", cerr)
		}
		defer client.Close()
		profiles = store.NewPGProfileStore(client)
		histories = store.NewPGHistoryStore(client)
		documents = store.NewPGDocumentStore(client)
		health = client.HealthCheck
	} else {
		slog.Warn("No database configured, using in-memory stores")
		profiles = store.NewMemProfileStore()
		histories = store.NewMemHistoryStore()
		documents = store.NewMemDocumentStore()
	}

	portsCfg := config.PortsConfig{}
	if cfg.Ports != nil {
		portsCfg = *cfg.Ports
	}
	capabilities := ports.NewCapabilities(portsCfg)

	router := llm.NewRouter(cfg.LLMRegistry)
	memoryService := memory.NewService(profiles, histories, smartCache)
	documentService := document.NewService(documents)

	// Brain centers and their built-in plugins
	analysisCenter := plugin.NewCenter("analysis")
	generationCenter := plugin.NewCenter("generation")
	builders := plugins.Builders(plugins.Deps{
		Cache: smartCache,
		Ports: capabilities,
		LLM:   router,
	})
	plugin.LoadPluginsForBrain(analysisCenter, cfg, builders)
	plugin.LoadPluginsForBrain(generationCenter, cfg, builders)

	registry := plugin.NewRegistry()
	plugins.RegisterWorkflows(registry, generationCenter)
	registry.InitWorkflows(cfg)

	orch := orchestrator.New(orchestrator.Deps{
		Planner:       planner.New(router, registry.WorkflowNames()...),
		Analysis:      graph.NewAnalysisGraph(analysisCenter, router, smartCache, analysisStepBudget),
		Generation:    graph.NewGenerationGraph(generationCenter, router, cfg),
		Memory:        memoryService,
		Documents:     documentService,
		Search:        capabilities.Search,
		HotspotCenter: analysisCenter,
		Registry:      registry,
		Synthesizer:   narrative.NewSynthesizer(router),
		LLM:           router,
		Config:        cfg,
	})

	sessionCfg := config.SessionConfig{}
	if cfg.Session != nil {
		sessionCfg = *cfg.Session
	}

	asst := assistant.New(assistant.Deps{
		Intent:    intent.NewProcessor(router),
		Orch:      orch,
		Advisor:   narrative.NewAdvisor(router),
		Memory:    memoryService,
		Sessions:  session.NewManager(sessionKV, sessionCfg),
		Histories: histories,
		Documents: documents,
		DataLoop:  capabilities.DataLoop,
		Bus:       bus.New(),
		LLM:       router,
	})

	// Background services: scheduled plugin refreshes and document retention
	analysisCenter.StartScheduledTasks(ctx)
	generationCenter.StartScheduledTasks(ctx)
	analysisCenter.RunInitialRefresh(ctx)
	defer analysisCenter.StopScheduledTasks()
	defer generationCenter.StopScheduledTasks()

	var retentionPeriod, retentionInterval time.Duration
	if cfg.Defaults != nil {
		retentionPeriod = cfg.Defaults.DocumentRetention
		retentionInterval = cfg.Defaults.RetentionInterval
	}
	retention := store.NewRetentionService(documents, retentionPeriod, retentionInterval)
	retention.Start(ctx)
	defer retention.Stop()

	server := &http.Server{
		Addr:    envOr("DEEPTHINK_LISTEN_ADDR", defaultListenAddr),
		Handler: api.NewServer(asst, health).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", server.Addr)
		if serr := server.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func setupLogging() {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(envOr("LOG_LEVEL", "info"))); err != nil {
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func storeConfigFromEnv() store.Config {
	port := 5432
	if p, err := strconv.Atoi(envOr("DATABASE_PORT", "5432")); err == nil {
		port = p
	}
	return store.Config{
		Host:     envOr("DATABASE_HOST", "localhost"),
		Port:     port,
		User:     envOr("DATABASE_USER", "deepthink"),
		Password: os.Getenv("DATABASE_PASSWORD"),
		Database: envOr("DATABASE_NAME", "deepthink"),
		SSLMode:  envOr("DATABASE_SSL_MODE", "disable"),
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
