package knowledge

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"
)

// Embedder turns text into a vector for index storage and queries.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type openAIEmbedder struct {
	client *openai.Client
	model  string
}

func NewOpenAIEmbedder(apiKey, model string) Embedder {
	return &openAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (e *openAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	rsp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, err
	}

	if len(rsp.Data) == 0 || len(rsp.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding in response")
	}

	return rsp.Data[0].Embedding, nil
}
