package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	lk "github.com/PredixionAI/collections-voice-service/internal/adapters/livekit"
	"github.com/PredixionAI/collections-voice-service/internal/config"
	"github.com/PredixionAI/collections-voice-service/internal/events"
	"github.com/PredixionAI/collections-voice-service/internal/handler"
	"github.com/PredixionAI/collections-voice-service/internal/knowledge"
	"github.com/PredixionAI/collections-voice-service/internal/repository"
	"github.com/PredixionAI/collections-voice-service/internal/services/arbiter"
	"github.com/PredixionAI/collections-voice-service/internal/services/dispatch"
	"github.com/PredixionAI/collections-voice-service/internal/services/session"
	"github.com/PredixionAI/collections-voice-service/internal/services/summary"
	"github.com/PredixionAI/collections-voice-service/pkg/gcs"
	"github.com/PredixionAI/collections-voice-service/pkg/logger"
	"github.com/PredixionAI/collections-voice-service/pkg/redisutil"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Server is the outbound collections voice service.
type Server struct {
	config *config.Config
	router *mux.Router
}

func NewServer(cfg *config.Config) (*Server, error) {
	if err := cfg.Database.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.LiveKit.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.OpenAI.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.PubSub.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Redis.Validate(); err != nil {
		return nil, err
	}

	ctx := context.Background()

	repoManager, err := repository.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	lkConfig, err := lk.NewConfig(
		cfg.LiveKit.ServerURL,
		cfg.LiveKit.APIKey,
		cfg.LiveKit.APISecret,
		cfg.LiveKit.SIPTrunkID,
		cfg.LiveKit.AgentName,
	)
	if err != nil {
		return nil, err
	}
	telephony, err := lk.NewTelephony(lkConfig)
	if err != nil {
		return nil, err
	}

	gcsClient, err := gcs.NewClient(ctx, cfg.Storage.MetricsBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}

	publisher, err := events.NewPublisher(ctx, &events.Config{
		ProjectID: cfg.PubSub.ProjectID,
		TopicName: cfg.PubSub.TopicName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create events publisher: %w", err)
	}

	redisService, err := redisutil.NewService(&redisutil.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis service: %w", err)
	}

	openaiClient := openai.NewClient(cfg.OpenAI.APIKey)
	summarizer := summary.NewSummarizer(openaiClient, cfg.OpenAI.SummaryModel)
	channelArbiter := arbiter.NewChannelArbiter(openaiClient, cfg.OpenAI.ChatModel)
	retriever := knowledge.NewRetriever(
		knowledge.NewOpenAIEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.EmbeddingModel),
		knowledge.NewPgVectorIndex(repoManager.DB()),
	)

	sessionManager := session.NewManager(
		telephony,
		lk.NewConversationFactory(lkConfig),
		openaiClient,
		cfg.OpenAI.ChatModel,
		repoManager.Borrowers(),
		repoManager.Conversations(),
		retriever,
		gcsClient,
		cfg.Telemetry.LocalDir,
		redisService,
		publisher,
	)

	coordinator := dispatch.NewCoordinator(
		repoManager.Borrowers(),
		repoManager.Conversations(),
		summarizer,
		telephony,
		redisService,
		sessionManager,
		cfg.LiveKit.CountryCode,
	)

	router := mux.NewRouter()
	handlerManager := handler.NewManager(coordinator, channelArbiter, repoManager, cfg.Server.AuthSecret)
	handlerManager.SetupRoutes(router)

	return &Server{
		config: cfg,
		router: router,
	}, nil
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.config.Server.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Base().Info("Starting server", zap.String("addr", addr))
	return server.ListenAndServe()
}

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Base().Info("No .env file found, using environment variables")
	}

	if _, err := logger.Init(os.Getenv("LOG_ENV")); err != nil {
		logger.Base().Error("Failed to initialize zap logger, falling back to std log")
	}
	defer logger.Sync()

	cfg := config.LoadFromEnv()

	server, err := NewServer(cfg)
	if err != nil {
		logger.Base().Fatal("Failed to initialize server", zap.Error(err))
	}

	if err := server.Start(); err != nil {
		logger.Base().Fatal("Server stopped", zap.Error(err))
	}
}
