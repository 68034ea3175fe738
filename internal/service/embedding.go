package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// defaultEmbedConcurrency caps the embedding fan-out during ingestion.
const defaultEmbedConcurrency = 8

// EmbeddingProvider defines the interface for generating embeddings with
// token-usage accounting.
type EmbeddingProvider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, int, error)
}

// EmbeddingBatcher embeds a batch of chunk texts, one provider call per
// text, fanned out concurrently. The batch is all-or-nothing: any single
// failure fails the whole batch so partial embedding sets are never
// committed to the index.
type EmbeddingBatcher struct {
	client      EmbeddingProvider
	concurrency int
}

func NewEmbeddingBatcher(client EmbeddingProvider) *EmbeddingBatcher {
	return &EmbeddingBatcher{
		client:      client,
		concurrency: defaultEmbedConcurrency,
	}
}

// EmbedBatch returns one vector per input text, in input order, plus the
// total tokens consumed across the batch.
func (b *EmbeddingBatcher) EmbedBatch(ctx context.Context, texts []string) ([][]float32, int, error) {
	if len(texts) == 0 {
		return nil, 0, nil
	}

	vectors := make([][]float32, len(texts))
	tokens := make([]int, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, text := range texts {
		g.Go(func() error {
			vec, used, err := b.client.GenerateEmbedding(gctx, text)
			if err != nil {
				return fmt.Errorf("failed to embed chunk %d: %w", i, err)
			}
			vectors[i] = vec
			tokens[i] = used
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	total := 0
	for _, t := range tokens {
		total += t
	}
	return vectors, total, nil
}

// EmbedQuery embeds a single query string.
func (b *EmbeddingBatcher) EmbedQuery(ctx context.Context, text string) ([]float32, int, error) {
	return b.client.GenerateEmbedding(ctx, text)
}
