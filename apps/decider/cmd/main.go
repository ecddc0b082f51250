package main

import (
	"context"

	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/config"
	"github.com/pitabwire/frame/datastore"
	"github.com/pitabwire/frame/datastore/pool"
	"github.com/pitabwire/util"

	appconfig "github.com/antinvestor/decider/apps/decider/config"
	"github.com/antinvestor/decider/apps/decider/middleware"
	"github.com/antinvestor/decider/apps/decider/service/analysis"
	"github.com/antinvestor/decider/apps/decider/service/handlers"
	"github.com/antinvestor/decider/apps/decider/service/repository"
	"github.com/antinvestor/decider/internal/cache"
	"github.com/antinvestor/decider/internal/embedding"
	"github.com/antinvestor/decider/internal/llm"
	"github.com/antinvestor/decider/internal/pipeline"
)

func main() {
	ctx := context.Background()

	// Initialize configuration
	cfg, err := config.LoadWithOIDC[appconfig.DeciderConfig](ctx)
	if err != nil {
		util.Log(ctx).With("err", err).Error("could not process configs")
		return
	}

	if cfg.Name() == "" {
		cfg.ServiceName = "decider"
	}

	ctx, svc := frame.NewServiceWithContext(
		ctx,
		frame.WithConfig(&cfg),
		frame.WithDatastore(),
	)
	defer svc.Stop(ctx)
	log := svc.Log(ctx)

	dbPool := svc.DatastoreManager().GetPool(ctx, datastore.DefaultPoolName)

	if handleDatabaseMigration(ctx, dbPool, cfg) {
		return
	}

	// ==========================================================================
	// Setup Collaborators
	// ==========================================================================

	repo := repository.NewRepository(ctx, dbPool,
		repository.WithCandidateWindow(cfg.SimilarityCandidateWindow))

	embedder, closeCache, err := setupEmbedder(ctx, &cfg)
	if err != nil {
		log.WithError(err).Fatal("could not create embedding engine")
	}
	defer closeCache()

	orchestrator, err := setupOrchestrator(&cfg)
	if err != nil {
		log.WithError(err).Fatal("could not create pipeline")
	}

	analysisService := analysis.NewService(repo, embedder, orchestrator,
		analysis.WithSimilarityLimit(cfg.SimilarityLimit))

	// ==========================================================================
	// Setup HTTP Server
	// ==========================================================================

	limiter := middleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurstSize)
	defer limiter.Stop()

	router := handlers.NewRouter(analysisService, handlers.RouterConfig{
		ServiceName:     cfg.Name(),
		MaxArtifactSize: cfg.MaxArtifactSize,
		Limiter:         limiter,
	})

	svc.Init(ctx, frame.WithHTTPHandler(router))

	log.Info("Starting decider service...",
		"embedding", embedder.Name(),
		"similarity_limit", cfg.SimilarityLimit,
	)
	err = svc.Run(ctx, "")
	if err != nil {
		log.WithError(err).Fatal("could not run server")
	}
}

func handleDatabaseMigration(ctx context.Context, dbPool pool.Pool, cfg appconfig.DeciderConfig) bool {
	if cfg.DoDatabaseMigrate() {
		err := repository.Migrate(ctx, dbPool)
		if err != nil {
			util.Log(ctx).WithError(err).Fatal("could not migrate")
		}
		return true
	}
	return false
}

func setupEmbedder(ctx context.Context, cfg *appconfig.DeciderConfig) (embedding.Engine, func(), error) {
	engine, err := embedding.NewEngine(ctx, cfg.EmbeddingConfig())
	if err != nil {
		return nil, nil, err
	}

	store, err := cache.NewStoreWithFallback(ctx, cfg.CacheConfig())
	if err != nil {
		util.Log(ctx).WithError(err).Warn("embedding cache disabled")
		store = nil
	}
	closeStore := func() {
		if store != nil {
			_ = store.Close()
		}
	}
	return embedding.NewCachedEngine(engine, store, cfg.EmbeddingCacheTTL()), closeStore, nil
}

func setupOrchestrator(cfg *appconfig.DeciderConfig) (*pipeline.Orchestrator, error) {
	client, err := llm.NewProviderClient(cfg.LLMClientConfig())
	if err != nil {
		return nil, err
	}

	composer, err := pipeline.NewComposer(cfg.SimilarityLimit)
	if err != nil {
		return nil, err
	}

	reasoner := pipeline.NewLLMReasoner(client, llm.Model(cfg.LLMModel))
	return pipeline.NewOrchestrator(composer, pipeline.NewExecutor(reasoner),
		pipeline.WithRetryPolicy(cfg.RetryPolicy())), nil
}
