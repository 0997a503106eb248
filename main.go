package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/tourwise/server/internal/agent"
	"github.com/tourwise/server/internal/agent/graph"
	"github.com/tourwise/server/internal/agent/graph/conversations"
	"github.com/tourwise/server/internal/agent/handlers"
	"github.com/tourwise/server/internal/agent/model"
	"github.com/tourwise/server/internal/agent/repo"
	"github.com/tourwise/server/internal/booking"
	"github.com/tourwise/server/internal/classify"
	"github.com/tourwise/server/internal/core"
	"github.com/tourwise/server/internal/embedding"
	"github.com/tourwise/server/internal/ingest"
	"github.com/tourwise/server/internal/llm"
	"github.com/tourwise/server/internal/ranking"
	"github.com/tourwise/server/internal/retrieval"
	"github.com/tourwise/server/internal/server"
	"github.com/tourwise/server/internal/vectorstore"
	logx "github.com/tourwise/server/pkg/logger"
	pkgredis "github.com/tourwise/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the service, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis    pkgredis.Config
	Qdrant   model.QdrantConfig
	Postgres model.PostgresConfig

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	ClassifyModel model.ClassifyModelConfig
	PlannerModel  model.PlannerModelConfig
	Planning      model.PlanningConfig
	Policy        model.PolicyConfig
	Embedding     model.EmbeddingConfig
	Ranking       model.RankingConfig
	Conversation  model.ConversationConfig
	Server        model.ServerConfig
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
	}
	defer rdb.Close()

	cacheTTL, err := time.ParseDuration(cfg.Embedding.CacheTTL)
	if err != nil {
		logx.Fatal().Err(err).Str("value", cfg.Embedding.CacheTTL).Msg("Invalid EMBEDDING_CACHE_TTL")
	}
	sessions := repo.NewRedisSessionRepository(rdb, cfg.Conversation.MaxMessages, cacheTTL)

	// Vector store and retrieval stack
	qdrant := vectorstore.NewQdrantClient(cfg.Qdrant.BaseURL, cfg.Embedding.Dimension)
	if err := qdrant.EnsureCollection(ctx, cfg.Qdrant.Collection); err != nil {
		logx.Fatal().Err(err).Str("collection", cfg.Qdrant.Collection).Msg("Failed to ensure Qdrant collection")
	}

	encoder := embedding.NewCachedEncoder(
		embedding.NewHTTPEncoder(cfg.Embedding.BaseURL, cfg.Embedding.Model),
		sessions,
	)
	searcher := retrieval.NewSearchService(encoder, qdrant, cfg.Qdrant.Collection)
	ranker := ranking.NewRanker(ranking.NewHTTPScorer(cfg.Ranking.Endpoint, cfg.Ranking.Model), cfg.Ranking.Workers)

	// LLM completers
	client, err := llm.NewGeminiClient(ctx, cfg.APIKey, cfg.BaseURL)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	classifyCompleter, err := llm.NewGeminiCompleter(ctx, client, cfg.ClassifyModel.Model, cfg.ClassifyModel.Temperature, cfg.ClassifyModel.MaxTokens)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create classify model")
	}
	plannerCompleter, err := llm.NewGeminiCompleter(ctx, client, cfg.PlannerModel.Model, cfg.PlannerModel.Temperature, cfg.PlannerModel.MaxTokens)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create planner model")
	}

	// Bookings
	bookings, err := booking.NewStore(ctx, cfg.Postgres.URL)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise booking store")
	}
	defer bookings.Close()

	// Turn graph
	history := conversations.NewHistoryFormatter(cfg.Conversation)
	runner, err := graph.BuildTurnGraph(ctx, &graph.Config{
		Classifier: classify.NewClassifier(classifyCompleter, history),
		Policy:     handlers.NewPolicyHandler(searcher, ranker, plannerCompleter, cfg.Policy),
		Planner:    handlers.NewPlannerHandler(searcher, plannerCompleter, history, cfg.Planning, cfg.Conversation.ClarificationLimit),
		Confirm:    handlers.NewConfirmHandler(classifyCompleter, history),
		Booking:    handlers.NewBookingHandler(bookings),
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build turn graph")
	}

	engine, err := agent.NewEngine(runner, sessions, cfg.Conversation)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to create engine")
	}

	ingestSvc := ingest.NewService(encoder, qdrant, cfg.Qdrant.Collection)

	srv := server.New(engine, ingestSvc, bookings, cfg.Server)
	if err := srv.Start(ctx); err != nil {
		logx.Fatal().Err(err).Msg("Server exited with error")
	}
	logx.Info().Msg("Server stopped")
}
