package catalog

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder turns text into a vector for similarity comparison.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder produces embeddings through the embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder creates an embedder backed by the given client. An
// empty model falls back to text-embedding-3-small.
func NewOpenAIEmbedder(client *openai.Client, model string) *OpenAIEmbedder {
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{
		client: client,
		model:  openai.EmbeddingModel(model),
	}
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	return resp.Data[0].Embedding, nil
}
