package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/recallio/recallio/internal/domain"
	"github.com/recallio/recallio/internal/llm"
)

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, userID, byokKey string, action domain.CreditAction) (*Resolution, error) {
	args := m.Called(ctx, userID, byokKey, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Resolution), args.Error(1)
}

func (m *MockResolver) Settle(ctx context.Context, res *Resolution, userID string, action domain.CreditAction, metadata string) int {
	args := m.Called(ctx, res, userID, action, metadata)
	return args.Int(0)
}

type MockQueryEmbedder struct {
	mock.Mock
}

func (m *MockQueryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, int, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]float32), args.Int(1), args.Error(2)
}

type MockVectorSearcher struct {
	mock.Mock
}

func (m *MockVectorSearcher) Query(ctx context.Context, embedding []float32, topK int, filter domain.VectorFilter) ([]domain.SearchHit, error) {
	args := m.Called(ctx, embedding, topK, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchHit), args.Error(1)
}

type MockCompletionClient struct {
	mock.Mock
}

func (m *MockCompletionClient) Complete(ctx context.Context, req llm.Request) (*llm.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.Result), args.Error(1)
}

func contextHit(source, text string, score float32) domain.SearchHit {
	return domain.SearchHit{
		Text:   text + " " + strings.Repeat("filler ", 10),
		Source: source,
		Score:  score,
	}
}

func newAskFixture() (*MockResolver, *MockQueryEmbedder, *MockVectorSearcher, *MockCompletionClient, *AskService) {
	resolver := new(MockResolver)
	embedder := new(MockQueryEmbedder)
	index := new(MockVectorSearcher)
	completions := new(MockCompletionClient)
	svc := NewAskService(resolver, embedder, index, completions)
	return resolver, embedder, index, completions, svc
}

func TestAsk_EmptyQueryRejected(t *testing.T) {
	resolver, embedder, _, _, svc := newAskFixture()

	_, err := svc.Ask(context.Background(), "user-1", AskInput{Query: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)

	resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	embedder.AssertNotCalled(t, "EmbedQuery", mock.Anything, mock.Anything)
}

func TestAsk_ResolutionFailureBlocksAllProviderCalls(t *testing.T) {
	resolver, embedder, index, completions, svc := newAskFixture()
	resolver.On("Resolve", mock.Anything, "user-1", "", domain.ActionAsk).
		Return(nil, domain.ErrNoUsableKey)

	_, err := svc.Ask(context.Background(), "user-1", AskInput{Query: "what is X?"})
	assert.ErrorIs(t, err, domain.ErrNoUsableKey)

	// The credit gate: no embedding or completion traffic on rejection
	embedder.AssertNotCalled(t, "EmbedQuery", mock.Anything, mock.Anything)
	index.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	completions.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestAsk_HappyPathWithCredits(t *testing.T) {
	resolver, embedder, index, completions, svc := newAskFixture()

	res := &Resolution{Source: domain.KeySourceCredits, Cost: 1, Balance: 10}
	resolver.On("Resolve", mock.Anything, "user-1", "", domain.ActionAsk).Return(res, nil)
	embedder.On("EmbedQuery", mock.Anything, "what is X?").Return([]float32{0.1, 0.2}, 4, nil)
	index.On("Query", mock.Anything, []float32{0.1, 0.2}, DefaultRetrievalTopK, domain.VectorFilter{UserID: "user-1"}).
		Return([]domain.SearchHit{contextHit("notes.pdf", "X is a thing.", 0.9)}, nil)
	completions.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return strings.Contains(req.Prompt, "what is X?") &&
			strings.Contains(req.Prompt, "notes.pdf") &&
			req.CallerKey == ""
	})).Return(&llm.Result{Text: "X is a thing.", TokensUsed: 42}, nil)
	resolver.On("Settle", mock.Anything, res, "user-1", domain.ActionAsk, "ask").Return(9)

	out, err := svc.Ask(context.Background(), "user-1", AskInput{Query: "what is X?"})
	require.NoError(t, err)
	assert.Equal(t, "X is a thing.", out.Answer)
	assert.Equal(t, []string{"notes.pdf"}, out.Sources)
	assert.Equal(t, domain.KeySourceCredits, out.KeySource)
	assert.Equal(t, 9, out.RemainingCredits)
	assert.Equal(t, 42, out.TokensUsed)
	assert.False(t, out.NoContext)

	resolver.AssertExpectations(t)
	completions.AssertExpectations(t)
}

func TestAsk_PremiumSelectsHigherCostAction(t *testing.T) {
	resolver, embedder, index, completions, svc := newAskFixture()

	res := &Resolution{Source: domain.KeySourceCredits, Cost: 3, Balance: 10}
	resolver.On("Resolve", mock.Anything, "user-1", "", domain.ActionAskPremium).Return(res, nil)
	embedder.On("EmbedQuery", mock.Anything, mock.Anything).Return([]float32{0.5}, 2, nil)
	index.On("Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.SearchHit{contextHit("a.pdf", "answer", 0.8)}, nil)
	completions.On("Complete", mock.Anything, mock.Anything).Return(&llm.Result{Text: "done"}, nil)
	resolver.On("Settle", mock.Anything, res, "user-1", domain.ActionAskPremium, "ask").Return(7)

	out, err := svc.Ask(context.Background(), "user-1", AskInput{Query: "q", Premium: true})
	require.NoError(t, err)
	assert.Equal(t, 7, out.RemainingCredits)
	resolver.AssertExpectations(t)
}

func TestAsk_BYOKKeyFlowsToCompletion(t *testing.T) {
	resolver, embedder, index, completions, svc := newAskFixture()

	res := &Resolution{Source: domain.KeySourceBYOK, CallerKey: "sk-mine"}
	resolver.On("Resolve", mock.Anything, "user-1", "sk-mine", domain.ActionAsk).Return(res, nil)
	embedder.On("EmbedQuery", mock.Anything, mock.Anything).Return([]float32{0.5}, 2, nil)
	index.On("Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.SearchHit{contextHit("a.pdf", "answer", 0.8)}, nil)
	completions.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.CallerKey == "sk-mine"
	})).Return(&llm.Result{Text: "done"}, nil)
	resolver.On("Settle", mock.Anything, res, "user-1", domain.ActionAsk, "ask").Return(0)

	out, err := svc.Ask(context.Background(), "user-1", AskInput{Query: "q", BYOKKey: "sk-mine"})
	require.NoError(t, err)
	assert.Equal(t, domain.KeySourceBYOK, out.KeySource)
	completions.AssertExpectations(t)
}

func TestAsk_EmptyContextSkipsCompletionAndBilling(t *testing.T) {
	resolver, embedder, index, completions, svc := newAskFixture()

	res := &Resolution{Source: domain.KeySourceCredits, Cost: 1, Balance: 10}
	resolver.On("Resolve", mock.Anything, "user-1", "", domain.ActionAsk).Return(res, nil)
	embedder.On("EmbedQuery", mock.Anything, mock.Anything).Return([]float32{0.5}, 2, nil)
	index.On("Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.SearchHit{}, nil)

	out, err := svc.Ask(context.Background(), "user-1", AskInput{Query: "q"})
	require.NoError(t, err)
	assert.True(t, out.NoContext)
	assert.Empty(t, out.Answer)

	completions.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	resolver.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAsk_CompletionFailureIsNotBilled(t *testing.T) {
	resolver, embedder, index, completions, svc := newAskFixture()

	res := &Resolution{Source: domain.KeySourceCredits, Cost: 1, Balance: 10}
	resolver.On("Resolve", mock.Anything, "user-1", "", domain.ActionAsk).Return(res, nil)
	embedder.On("EmbedQuery", mock.Anything, mock.Anything).Return([]float32{0.5}, 2, nil)
	index.On("Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.SearchHit{contextHit("a.pdf", "answer", 0.8)}, nil)
	completions.On("Complete", mock.Anything, mock.Anything).
		Return(nil, domain.NewDomainError(domain.ErrCodeUpstream, "completion call failed (provider: openai)"))

	_, err := svc.Ask(context.Background(), "user-1", AskInput{Query: "q"})
	require.Error(t, err)
	resolver.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAsk_SourceFilterReachesIndex(t *testing.T) {
	resolver, embedder, index, completions, svc := newAskFixture()

	res := &Resolution{Source: domain.KeySourceBYOK, CallerKey: "sk"}
	resolver.On("Resolve", mock.Anything, "user-1", "sk", domain.ActionAsk).Return(res, nil)
	embedder.On("EmbedQuery", mock.Anything, mock.Anything).Return([]float32{0.5}, 2, nil)
	index.On("Query", mock.Anything, mock.Anything, DefaultRetrievalTopK, domain.VectorFilter{
		UserID:     "user-1",
		Sources:    []string{"notes.pdf"},
		DocumentID: "doc-9",
	}).Return([]domain.SearchHit{contextHit("notes.pdf", "answer", 0.8)}, nil)
	completions.On("Complete", mock.Anything, mock.Anything).Return(&llm.Result{Text: "ok"}, nil)
	resolver.On("Settle", mock.Anything, res, "user-1", domain.ActionAsk, "ask").Return(0)

	_, err := svc.Ask(context.Background(), "user-1", AskInput{
		Query:      "q",
		Sources:    []string{"notes.pdf"},
		DocumentID: "doc-9",
		BYOKKey:    "sk",
	})
	require.NoError(t, err)
	index.AssertExpectations(t)
}

func TestFlashcards_ParsesCardsAndBills(t *testing.T) {
	resolver, embedder, index, completions, svc := newAskFixture()

	res := &Resolution{Source: domain.KeySourceCredits, Cost: 2, Balance: 10}
	resolver.On("Resolve", mock.Anything, "user-1", "", domain.ActionFlashcards).Return(res, nil)
	embedder.On("EmbedQuery", mock.Anything, mock.Anything).Return([]float32{0.5}, 2, nil)
	index.On("Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.SearchHit{contextHit("a.pdf", "material", 0.8)}, nil)
	completions.On("Complete", mock.Anything, mock.Anything).
		Return(&llm.Result{Text: `[{"front":"Q1","back":"A1"},{"front":"Q2","back":"A2"}]`, TokensUsed: 30}, nil)
	resolver.On("Settle", mock.Anything, res, "user-1", domain.ActionFlashcards, "flashcards").Return(8)

	out, err := svc.Flashcards(context.Background(), "user-1", FlashcardsInput{Query: "topic"})
	require.NoError(t, err)
	require.Len(t, out.Cards, 2)
	assert.Equal(t, "Q1", out.Cards[0].Front)
	assert.Equal(t, llm.ParseStrict, out.ParseMode)
	assert.Equal(t, 8, out.RemainingCredits)
}

func TestFlashcards_UnparseableResponseIsNotBilled(t *testing.T) {
	resolver, embedder, index, completions, svc := newAskFixture()

	res := &Resolution{Source: domain.KeySourceCredits, Cost: 2, Balance: 10}
	resolver.On("Resolve", mock.Anything, "user-1", "", domain.ActionFlashcards).Return(res, nil)
	embedder.On("EmbedQuery", mock.Anything, mock.Anything).Return([]float32{0.5}, 2, nil)
	index.On("Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.SearchHit{contextHit("a.pdf", "material", 0.8)}, nil)
	completions.On("Complete", mock.Anything, mock.Anything).
		Return(&llm.Result{Text: "Sorry, I cannot do that."}, nil)

	_, err := svc.Flashcards(context.Background(), "user-1", FlashcardsInput{Query: "topic"})
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeParse, domainErr.Code)

	resolver.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFlashcards_EmptyQueryUsesBroadProbe(t *testing.T) {
	resolver, embedder, index, completions, svc := newAskFixture()

	res := &Resolution{Source: domain.KeySourceBYOK, CallerKey: "sk"}
	resolver.On("Resolve", mock.Anything, "user-1", "sk", domain.ActionFlashcards).Return(res, nil)
	embedder.On("EmbedQuery", mock.Anything, "key facts, definitions, and concepts").Return([]float32{0.5}, 2, nil)
	index.On("Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.SearchHit{contextHit("a.pdf", "material", 0.8)}, nil)
	completions.On("Complete", mock.Anything, mock.Anything).
		Return(&llm.Result{Text: `[{"front":"Q","back":"A"}]`}, nil)
	resolver.On("Settle", mock.Anything, res, "user-1", domain.ActionFlashcards, "flashcards").Return(0)

	_, err := svc.Flashcards(context.Background(), "user-1", FlashcardsInput{BYOKKey: "sk"})
	require.NoError(t, err)
	embedder.AssertExpectations(t)
}
