package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-pharmacy/backend/internal/analysis/alias"
	"github.com/zhouzirui/z-pharmacy/backend/internal/cache"
	"github.com/zhouzirui/z-pharmacy/backend/internal/config"
	"github.com/zhouzirui/z-pharmacy/backend/internal/handler"
	"github.com/zhouzirui/z-pharmacy/backend/internal/metrics"
	"github.com/zhouzirui/z-pharmacy/backend/internal/model/catalog"
	"github.com/zhouzirui/z-pharmacy/backend/internal/observability"
	"github.com/zhouzirui/z-pharmacy/backend/internal/service/assistant"
	chatService "github.com/zhouzirui/z-pharmacy/backend/internal/service/chat"
	"github.com/zhouzirui/z-pharmacy/backend/internal/service/health"
	"github.com/zhouzirui/z-pharmacy/backend/internal/service/session"
	"github.com/zhouzirui/z-pharmacy/backend/internal/store/sqlstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := observability.NewLogger(observability.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if envErr != nil {
		logger.Debug().Err(envErr).Msg("no .env file, using system environment variables only")
	}

	store, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer closeStore()

	aliases := alias.Default()
	if cfg.Assistant.AliasFile != "" {
		aliases, err = alias.LoadFile(cfg.Assistant.AliasFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load alias file")
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(registry)

	sessions := session.NewStore(session.Options{TTL: cfg.Session.TTL, MaxEntries: cfg.Session.MaxEntries})
	defer sessions.Close()

	opts := assistant.Options{
		Sessions:     sessions,
		Aliases:      aliases,
		BulkQuantity: cfg.Assistant.BulkQuantity,
		StoreHours:   cfg.Assistant.StoreHours,
		Metrics:      recorder,
		Logger:       &logger,
	}

	healthCache, closeCache := openCache(ctx, cfg.Cache, logger)
	defer closeCache()

	if cfg.Health.Enabled {
		healthSvc, err := openHealth(ctx, cfg, healthCache, recorder, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("health knowledge base unavailable, continuing without it")
		} else {
			opts.Health = healthSvc
		}
	} else {
		logger.Info().Msg("health knowledge base disabled by configuration")
	}

	engine := assistant.NewEngine(store, opts)
	if err := engine.RefreshVocabulary(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to load catalog vocabulary, retrying on first turn")
	}

	router := handler.NewRouter(handler.Deps{
		Engine:         engine,
		Cart:           store,
		Transcripts:    chatService.NewService(cfg.Session.HistoryLimit),
		Gatherer:       registry,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	startServer(ctx, cfg.Server, router, logger)
}

// openStore picks the inventory and cart backend.
func openStore(ctx context.Context, cfg config.StoreConfig, logger zerolog.Logger) (assistant.Store, func(), error) {
	if cfg.Driver == "" || cfg.Driver == "memory" {
		logger.Info().Str("driver", "memory").Msg("store ready")
		return catalog.NewMemoryStore(catalog.Seed()), func() {}, nil
	}

	db, err := sqlstore.Open(ctx, sqlstore.Config{Driver: cfg.Driver, DSN: cfg.DSN})
	if err != nil {
		return nil, nil, err
	}
	if cfg.Seed {
		n, err := db.Seed(ctx, catalog.Seed())
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info().Int("inserted", n).Msg("catalog seeded")
	}
	logger.Info().Str("driver", cfg.Driver).Msg("store ready")
	return db, func() { _ = db.Close() }, nil
}

// openCache prefers redis and falls back to process memory.
func openCache(ctx context.Context, cfg config.CacheConfig, logger zerolog.Logger) (cache.Client, func()) {
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err == nil {
			logger.Info().Str("addr", cfg.RedisAddr).Msg("redis cache connected")
			return client, func() { _ = client.Close() }
		}
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory cache")
	}
	client := cache.NewMemoryClient(cfg.MemoryEntries)
	return client, func() { _ = client.Close() }
}

func openHealth(ctx context.Context, cfg *config.Config, c cache.Client, recorder *metrics.Recorder, logger zerolog.Logger) (*health.Service, error) {
	docs := health.SeedCorpus()
	if cfg.Health.CorpusPath != "" {
		loaded, err := health.LoadCorpus(cfg.Health.CorpusPath)
		if err != nil {
			return nil, err
		}
		docs = loaded
	}

	embed := health.LocalEmbedding(health.DefaultDimensions)
	if cfg.Health.EmbeddingBaseURL != "" {
		embed = health.OpenAIEmbedding(cfg.Health.EmbeddingBaseURL, cfg.Health.EmbeddingAPIKey, cfg.Health.EmbeddingModel)
	}

	opts := health.Options{
		TopK:      cfg.Health.TopK,
		Threshold: float32(cfg.Health.Threshold),
		Cache:     c,
		CacheTTL:  cfg.Health.CacheTTL,
		Metrics:   recorder,
		Logger:    &logger,
	}

	if cfg.Health.Summarize {
		if !cfg.AI.Enabled() {
			logger.Info().Msg("Ark 凭证未配置，健康问答不使用大模型摘要")
		} else if chatModel, err := cfg.AI.NewChatModel(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to create chat model, summaries disabled")
		} else if summarizer, err := health.NewChainSummarizer(ctx, chatModel); err != nil {
			logger.Warn().Err(err).Msg("failed to build summary chain, summaries disabled")
		} else {
			opts.Summarizer = summarizer
		}
	}

	return health.NewService(ctx, docs, embed, opts)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger zerolog.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", addr).Msg("pharmacy assistant listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
