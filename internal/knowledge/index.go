package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CollectionName is the single collection all policy chunks live under.
const CollectionName = "policies"

// Chunk is one embedded slice of a policy document.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// VectorIndex stores embedded chunks and answers nearest-neighbour queries.
type VectorIndex interface {
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) error
	Query(ctx context.Context, vector []float32, topK int) ([]Chunk, error)
}

// PolicyChunk is the pgvector-backed row for one chunk.
type PolicyChunk struct {
	ID         string          `gorm:"column:id;primaryKey"`
	Collection string          `gorm:"column:collection;index"`
	Content    string          `gorm:"column:content"`
	Metadata   datatypes.JSON  `gorm:"column:metadata"`
	Embedding  pgvector.Vector `gorm:"column:embedding;type:vector(1536)"`
	CreatedAt  time.Time       `gorm:"column:created_at"`
}

func (PolicyChunk) TableName() string {
	return "policy_chunks"
}

type pgVectorIndex struct {
	db *gorm.DB
}

func NewPgVectorIndex(db *gorm.DB) VectorIndex {
	return &pgVectorIndex{db: db}
}

func (i *pgVectorIndex) Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	rows := make([]PolicyChunk, 0, len(chunks))
	for idx, chunk := range chunks {
		metadata, err := encodeMetadata(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for chunk %s: %w", chunk.ID, err)
		}
		rows = append(rows, PolicyChunk{
			ID:         chunk.ID,
			Collection: CollectionName,
			Content:    chunk.Text,
			Metadata:   metadata,
			Embedding:  pgvector.NewVector(vectors[idx]),
			CreatedAt:  time.Now(),
		})
	}

	if err := i.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}
	return nil
}

func (i *pgVectorIndex) Query(ctx context.Context, vector []float32, topK int) ([]Chunk, error) {
	var rows []PolicyChunk
	err := i.db.WithContext(ctx).
		Raw(`SELECT id, collection, content, metadata
		     FROM policy_chunks
		     WHERE collection = ?
		     ORDER BY embedding <=> ?
		     LIMIT ?`, CollectionName, pgvector.NewVector(vector), topK).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}

	chunks := make([]Chunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, Chunk{
			ID:   row.ID,
			Text: row.Content,
		})
	}
	return chunks, nil
}

func encodeMetadata(metadata map[string]string) (datatypes.JSON, error) {
	if len(metadata) == 0 {
		return datatypes.JSON([]byte("{}")), nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
