package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/recallio/recallio/internal/domain"
	"github.com/recallio/recallio/internal/llm"
	"github.com/recallio/recallio/internal/telemetry"
)

// DefaultRetrievalTopK is how many raw hits the index is asked for before
// diversification narrows them down.
const DefaultRetrievalTopK = 40

// QueryEmbedder embeds a single query string.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, int, error)
}

// VectorSearcher runs similarity queries against the index.
type VectorSearcher interface {
	Query(ctx context.Context, embedding []float32, topK int, filter domain.VectorFilter) ([]domain.SearchHit, error)
}

// Resolver decides the key tier before any provider call and settles credits
// after a successful one.
type Resolver interface {
	Resolve(ctx context.Context, userID, byokKey string, action domain.CreditAction) (*Resolution, error)
	Settle(ctx context.Context, res *Resolution, userID string, action domain.CreditAction, metadata string) int
}

// CompletionClient dispatches a prompt to a completion provider.
type CompletionClient interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Result, error)
}

// AskService runs the retrieval-augmented pipelines: answer a question or
// generate flashcards over the caller's indexed documents.
//
// The key tier is resolved before the query is even embedded, so a request
// that cannot be funded never generates provider traffic. Credits are
// deducted only after the artifact exists: a failed completion, a failed
// parse, or an empty context window all cost nothing.
type AskService struct {
	resolver Resolver
	embedder QueryEmbedder
	index    VectorSearcher
	llm      CompletionClient
	topK     int
}

func NewAskService(resolver Resolver, embedder QueryEmbedder, index VectorSearcher, completions CompletionClient) *AskService {
	return &AskService{
		resolver: resolver,
		embedder: embedder,
		index:    index,
		llm:      completions,
		topK:     DefaultRetrievalTopK,
	}
}

// AskInput is one question over the user's documents. Sources and
// DocumentID optionally narrow retrieval. Premium selects the higher-cost
// action tier.
type AskInput struct {
	Query      string
	Sources    []string
	DocumentID string
	Provider   string
	Model      string
	Premium    bool
	BYOKKey    string
}

// AskOutput is the pipeline result. NoContext is set when retrieval found
// nothing usable; in that case Answer is empty and nothing was billed.
type AskOutput struct {
	Answer           string
	Sources          []string
	KeySource        domain.KeySource
	RemainingCredits int
	TokensUsed       int
	NoContext        bool
}

// Ask answers a question grounded in the user's indexed documents.
func (s *AskService) Ask(ctx context.Context, userID string, in AskInput) (*AskOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "AskService.Ask", telemetry.SpanAttributes{
		UserID:    userID,
		Provider:  in.Provider,
		Operation: "ask",
	})
	defer span.End()

	action := domain.ActionAsk
	if in.Premium {
		action = domain.ActionAskPremium
	}

	res, window, err := s.prepare(ctx, userID, in.Query, in.BYOKKey, action, in.Sources, in.DocumentID)
	if err != nil {
		return nil, err
	}

	if len(window.Hits) == 0 {
		return &AskOutput{KeySource: res.Source, NoContext: true}, nil
	}

	result, err := s.llm.Complete(ctx, llm.Request{
		Prompt:    BuildAnswerPrompt(in.Query, window),
		Provider:  llm.ParseProvider(in.Provider),
		Model:     in.Model,
		CallerKey: res.CallerKey,
	})
	if err != nil {
		return nil, err
	}

	balance := s.resolver.Settle(ctx, res, userID, action, "ask")
	return &AskOutput{
		Answer:           result.Text,
		Sources:          window.Sources,
		KeySource:        res.Source,
		RemainingCredits: balance,
		TokensUsed:       result.TokensUsed,
	}, nil
}

// FlashcardsInput requests card generation over the user's documents.
type FlashcardsInput struct {
	Query      string
	Count      int
	Sources    []string
	DocumentID string
	Provider   string
	Model      string
	BYOKKey    string
}

// FlashcardsOutput carries the generated cards and how they were parsed.
type FlashcardsOutput struct {
	Cards            []llm.Flashcard
	ParseMode        llm.ParseMode
	Sources          []string
	KeySource        domain.KeySource
	RemainingCredits int
	TokensUsed       int
	NoContext        bool
}

// Flashcards generates study cards from the retrieved material. An
// unparseable response is a failure: nothing is billed and no placeholder
// cards are returned.
func (s *AskService) Flashcards(ctx context.Context, userID string, in FlashcardsInput) (*FlashcardsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "AskService.Flashcards", telemetry.SpanAttributes{
		UserID:    userID,
		Provider:  in.Provider,
		Operation: "flashcards",
	})
	defer span.End()

	action := domain.ActionFlashcards

	// Cards are usually requested over a whole document rather than a
	// question, so an empty query falls back to a broad retrieval probe.
	query := strings.TrimSpace(in.Query)
	if query == "" {
		query = "key facts, definitions, and concepts"
	}

	res, window, err := s.prepare(ctx, userID, query, in.BYOKKey, action, in.Sources, in.DocumentID)
	if err != nil {
		return nil, err
	}

	if len(window.Hits) == 0 {
		return &FlashcardsOutput{KeySource: res.Source, NoContext: true}, nil
	}

	result, err := s.llm.Complete(ctx, llm.Request{
		Prompt:    BuildFlashcardPrompt(in.Count, window),
		Provider:  llm.ParseProvider(in.Provider),
		Model:     in.Model,
		CallerKey: res.CallerKey,
	})
	if err != nil {
		return nil, err
	}

	cards, mode, err := llm.ExtractFlashcards(result.Text)
	if err != nil {
		return nil, err
	}

	balance := s.resolver.Settle(ctx, res, userID, action, "flashcards")
	return &FlashcardsOutput{
		Cards:            cards,
		ParseMode:        mode,
		Sources:          window.Sources,
		KeySource:        res.Source,
		RemainingCredits: balance,
		TokensUsed:       result.TokensUsed,
	}, nil
}

// prepare runs the shared front half of both pipelines: validate, resolve
// the key tier, embed the query, retrieve, and diversify.
func (s *AskService) prepare(ctx context.Context, userID, query, byokKey string, action domain.CreditAction, sources []string, documentID string) (*Resolution, ContextWindow, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ContextWindow{}, domain.ErrEmptyQuery
	}

	res, err := s.resolver.Resolve(ctx, userID, byokKey, action)
	if err != nil {
		return nil, ContextWindow{}, err
	}

	embedding, _, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, ContextWindow{}, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := s.index.Query(ctx, embedding, s.topK, domain.VectorFilter{
		UserID:     userID,
		Sources:    sources,
		DocumentID: documentID,
	})
	if err != nil {
		return nil, ContextWindow{}, fmt.Errorf("failed to search index: %w", err)
	}

	return res, SelectContext(hits, DefaultMaxPerSource, DefaultMaxContextHits), nil
}
