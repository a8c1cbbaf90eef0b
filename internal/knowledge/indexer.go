package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PredixionAI/collections-voice-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Indexer is the offline/batch pipeline: load policy documents from a
// directory, chunk, embed, and upsert into the index.
//
// Re-running the indexer over an unchanged directory appends duplicate
// chunks; there is no re-index guard. Kept to match the source pipeline's
// behavior until the intended semantics are confirmed.
type Indexer struct {
	chunker  *Chunker
	embedder Embedder
	index    VectorIndex
}

func NewIndexer(chunker *Chunker, embedder Embedder, index VectorIndex) *Indexer {
	return &Indexer{
		chunker:  chunker,
		embedder: embedder,
		index:    index,
	}
}

// IndexDirectory ingests every document under dir and returns the number of
// chunks written.
func (x *Indexer) IndexDirectory(ctx context.Context, dir string) (int, error) {
	docs, err := loadDirectory(dir)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		logger.Base().Warn("no documents found to index", zap.String("dir", dir))
		return 0, nil
	}

	total := 0
	for path, text := range docs {
		pieces := x.chunker.Split(text)
		if len(pieces) == 0 {
			continue
		}

		chunks := make([]Chunk, 0, len(pieces))
		vectors := make([][]float32, 0, len(pieces))
		for _, piece := range pieces {
			vector, err := x.embedder.Embed(ctx, piece)
			if err != nil {
				return total, fmt.Errorf("failed to embed chunk of %s: %w", path, err)
			}
			chunks = append(chunks, Chunk{
				ID:       uuid.New().String(),
				Text:     piece,
				Metadata: map[string]string{"source": path},
			})
			vectors = append(vectors, vector)
		}

		if err := x.index.Upsert(ctx, chunks, vectors); err != nil {
			return total, fmt.Errorf("failed to index %s: %w", path, err)
		}

		logger.Base().Info("indexed document",
			zap.String("path", path),
			zap.Int("chunks", len(chunks)))
		total += len(chunks)
	}

	return total, nil
}

// loadDirectory reads the text documents directly under dir, keyed by path.
func loadDirectory(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read document directory: %w", err)
	}

	docs := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		docs[path] = string(content)
	}
	return docs, nil
}
