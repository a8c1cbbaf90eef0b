package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingIndex struct {
	chunks  []Chunk
	upserts int
}

func (r *recordingIndex) Upsert(_ context.Context, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		panic("chunk/vector count mismatch")
	}
	r.chunks = append(r.chunks, chunks...)
	r.upserts++
	return nil
}

func (r *recordingIndex) Query(_ context.Context, _ []float32, _ int) ([]Chunk, error) {
	return nil, nil
}

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestIndexDirectoryChunksAndUpserts(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "policy.txt", "Loan recovery policy for overdue accounts.")
	writeDoc(t, dir, "fees.md", "Late fees accrue monthly on the outstanding balance.")

	index := &recordingIndex{}
	indexer := NewIndexer(NewChunker(DefaultChunkSize, DefaultOverlap), &fakeEmbedder{}, index)

	total, err := indexer.IndexDirectory(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, index.upserts)
	for _, chunk := range index.chunks {
		assert.NotEmpty(t, chunk.ID)
		assert.Contains(t, chunk.Metadata["source"], dir)
	}
}

func TestIndexDirectorySkipsNonTextFiles(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "policy.txt", "Loan recovery policy.")
	writeDoc(t, dir, "scan.pdf", "%PDF-1.4 binary payload")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	docs, err := loadDirectory(dir)

	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs, filepath.Join(dir, "policy.txt"))
}

func TestIndexDirectoryEmpty(t *testing.T) {
	index := &recordingIndex{}
	indexer := NewIndexer(NewChunker(DefaultChunkSize, DefaultOverlap), &fakeEmbedder{}, index)

	total, err := indexer.IndexDirectory(context.Background(), t.TempDir())

	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, index.upserts)
}

func TestIndexDirectoryMissingDir(t *testing.T) {
	indexer := NewIndexer(NewChunker(DefaultChunkSize, DefaultOverlap), &fakeEmbedder{}, &recordingIndex{})

	_, err := indexer.IndexDirectory(context.Background(), filepath.Join(t.TempDir(), "absent"))

	assert.Error(t, err)
}
