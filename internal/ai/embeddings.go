package ai

import (
	"context"
	"fmt"
	"time"

	"tutorbot-backend/internal/retry"
	"tutorbot-backend/models"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Embedder turns text into a vector. Implementations must be safe for
// concurrent use; the ingestion pipeline embeds chunks from a worker
// pool.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GeminiEmbedder embeds text with the Google Generative AI embedding
// model (text-embedding-004 by default).
type GeminiEmbedder struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	policy  retry.Policy
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string, timeout time.Duration, policy retry.Policy) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: model, timeout: timeout, policy: policy}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var values []float32
	err := e.policy.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		model := e.client.EmbeddingModel(e.model)
		resp, err := model.EmbedContent(callCtx, genai.Text(text))
		if err != nil {
			return err
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return fmt.Errorf("no embedding returned")
		}
		values = resp.Embedding.Values
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbedding, err)
	}
	return values, nil
}

func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}
