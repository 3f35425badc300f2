package inference

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// DefaultEmbeddingBatchSize is the provider limit on inputs per embeddings request.
const DefaultEmbeddingBatchSize = 2048

// NewOpenAIEmbedder returns an embedder that calls the OpenAI embeddings API in sub-batches.
func NewOpenAIEmbedder(apiKey, baseURL, model string, batchSize int) (*embeddings.EmbedderImpl, error) {
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
		openai.WithHTTPClient(&http.Client{Timeout: 2 * time.Minute}),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings client: %w", err)
	}
	return newBatchedEmbedder(llm, batchSize)
}

// NewOllamaEmbedder embeds through a local Ollama server, one text per request.
func NewOllamaEmbedder(model string, batchSize int) (*embeddings.EmbedderImpl, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	embed := func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			resp, err := client.Embeddings(ctx, &api.EmbeddingRequest{
				Model:     model,
				Prompt:    text,
				KeepAlive: &api.Duration{Duration: 10 * time.Minute},
			})
			if err != nil {
				return nil, fmt.Errorf("ollama embedding %d/%d failed: %w", i+1, len(texts), err)
			}
			vec := make([]float32, len(resp.Embedding))
			for j, v := range resp.Embedding {
				vec[j] = float32(v)
			}
			out[i] = vec
		}
		return out, nil
	}
	return newBatchedEmbedder(embeddings.EmbedderClientFunc(embed), batchSize)
}

func newBatchedEmbedder(client embeddings.EmbedderClient, batchSize int) (*embeddings.EmbedderImpl, error) {
	if batchSize <= 0 {
		batchSize = DefaultEmbeddingBatchSize
	}
	return embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(batchSize),
		embeddings.WithStripNewLines(false),
	)
}
