package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for embeddings
	DefaultEmbeddingModel = openai.LargeEmbedding3
	// DefaultEmbeddingDimensions is the dimension of text-embedding-3-large vectors
	DefaultEmbeddingDimensions = 3072
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when the OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// Embedding is one provider response: the vector plus the token usage the
// call consumed, accumulated upstream for cost accounting.
type Embedding struct {
	Values []float32
	Tokens int
}

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbedding(ctx context.Context, text string) (*Embedding, error)
}

// EmbeddingClient wraps the embedding provider with dimension checking.
type EmbeddingClient struct {
	api        EmbeddingAPI
	dimensions int
}

type openAIEmbeddingAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func newOpenAIEmbeddingAdapter(apiKey string, model openai.EmbeddingModel) *openAIEmbeddingAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &openAIEmbeddingAdapter{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// CreateEmbedding calls the OpenAI API for a single text.
func (a *openAIEmbeddingAdapter) CreateEmbedding(ctx context.Context, text string) (*Embedding, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return &Embedding{
		Values: resp.Data[0].Embedding,
		Tokens: resp.Usage.TotalTokens,
	}, nil
}

// EmbeddingConfig configures the embedding client.
type EmbeddingConfig struct {
	APIKey     string
	Model      string
	Dimensions int
}

// NewEmbeddingClient creates an embedding client with explicit configuration.
func NewEmbeddingClient(cfg EmbeddingConfig) *EmbeddingClient {
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &EmbeddingClient{
		api:        newOpenAIEmbeddingAdapter(cfg.APIKey, openai.EmbeddingModel(cfg.Model)),
		dimensions: dimensions,
	}
}

// NewEmbeddingClientFromEnv creates a client using OPENAI_API_KEY.
func NewEmbeddingClientFromEnv() (*EmbeddingClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewEmbeddingClient(EmbeddingConfig{APIKey: apiKey}), nil
}

// GenerateEmbedding embeds a single text and returns the vector plus the
// tokens consumed.
func (c *EmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, int, error) {
	if text == "" {
		return nil, 0, ErrEmptyText
	}

	embedding, err := c.api.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(embedding.Values) != c.dimensions {
		return nil, 0, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(embedding.Values))
	}

	return embedding.Values, embedding.Tokens, nil
}
