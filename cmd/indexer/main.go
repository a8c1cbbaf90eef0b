// The indexer ingests policy documents into the vector index used by the
// in-call knowledge retriever. Run it offline whenever policy documents
// change.
//
// Re-running against an unchanged directory appends duplicate chunks; clear
// the policy_chunks table first when re-indexing from scratch.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/PredixionAI/collections-voice-service/internal/config"
	"github.com/PredixionAI/collections-voice-service/internal/knowledge"
	"github.com/PredixionAI/collections-voice-service/internal/repository"
	"github.com/PredixionAI/collections-voice-service/pkg/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	dir := flag.String("dir", "documents", "directory of policy documents (.txt, .md)")
	query := flag.String("query", "", "optional smoke-test query to run after indexing")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logger.Base().Info("No .env file found, using environment variables")
	}
	if _, err := logger.Init(os.Getenv("LOG_ENV")); err != nil {
		logger.Base().Error("Failed to initialize zap logger, falling back to std log")
	}
	defer logger.Sync()

	cfg := config.LoadFromEnv()
	if err := cfg.Database.Validate(); err != nil {
		logger.Base().Fatal("invalid configuration", zap.Error(err))
	}
	if err := cfg.OpenAI.Validate(); err != nil {
		logger.Base().Fatal("invalid configuration", zap.Error(err))
	}

	repoManager, err := repository.Open(cfg.Database.DSN)
	if err != nil {
		logger.Base().Fatal("failed to open repository", zap.Error(err))
	}
	defer repoManager.Close()

	embedder := knowledge.NewOpenAIEmbedder(cfg.OpenAI.APIKey, cfg.OpenAI.EmbeddingModel)
	index := knowledge.NewPgVectorIndex(repoManager.DB())
	chunker := knowledge.NewChunker(knowledge.DefaultChunkSize, knowledge.DefaultOverlap)
	indexer := knowledge.NewIndexer(chunker, embedder, index)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	total, err := indexer.IndexDirectory(ctx, *dir)
	if err != nil {
		logger.Base().Fatal("indexing failed", zap.Error(err))
	}
	logger.Base().Info("indexing complete",
		zap.String("dir", *dir),
		zap.Int("chunks", total))

	if *query != "" {
		retriever := knowledge.NewRetriever(embedder, index)
		answer := retriever.AnswerPolicyQuestion(ctx, *query)
		logger.Base().Info("smoke-test query",
			zap.String("query", *query),
			zap.String("answer", answer))
	}
}
