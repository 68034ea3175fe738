package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallio/recallio/internal/domain"
)

type fakeCompleter struct {
	provider Provider
	apiKey   string
	model    string
	result   *Result
	err      error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (*Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// recordingFactory captures the last adapter it built so tests can assert
// which provider, key, and model the orchestrator dispatched to.
type recordingFactory struct {
	last *fakeCompleter
	err  error
}

func (r *recordingFactory) build(provider Provider, apiKey, model string) Completer {
	r.last = &fakeCompleter{
		provider: provider,
		apiKey:   apiKey,
		model:    model,
		result:   &Result{Text: "ok", TokensUsed: 42},
		err:      r.err,
	}
	return r.last
}

func TestParseProvider(t *testing.T) {
	assert.Equal(t, ProviderAnthropic, ParseProvider("anthropic"))
	assert.Equal(t, ProviderOpenAI, ParseProvider("openai"))
	assert.Equal(t, ProviderOpenAI, ParseProvider(""))
	assert.Equal(t, ProviderOpenAI, ParseProvider("gemini"))
}

func TestComplete_CallerKeyUsedAsIs(t *testing.T) {
	factory := &recordingFactory{}
	o := NewOrchestrator(OrchestratorConfig{OpenAIKey: "sk-server"}).WithFactory(factory.build)

	result, err := o.Complete(context.Background(), Request{
		Prompt:    "hello",
		Provider:  ProviderAnthropic,
		Model:     "claude-sonnet-4-5",
		CallerKey: "sk-byok",
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Text)
	assert.Equal(t, ProviderAnthropic, factory.last.provider)
	assert.Equal(t, "sk-byok", factory.last.apiKey)
	assert.Equal(t, "claude-sonnet-4-5", factory.last.model)
}

func TestComplete_ServerKeyPerProvider(t *testing.T) {
	factory := &recordingFactory{}
	o := NewOrchestrator(OrchestratorConfig{
		OpenAIKey:    "sk-openai",
		AnthropicKey: "sk-anthropic",
		DefaultModel: "gpt-4o-mini",
	}).WithFactory(factory.build)

	_, err := o.Complete(context.Background(), Request{Prompt: "p", Provider: ProviderAnthropic, Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "sk-anthropic", factory.last.apiKey)

	_, err = o.Complete(context.Background(), Request{Prompt: "p", Provider: ProviderOpenAI, Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "sk-openai", factory.last.apiKey)
}

func TestComplete_FallsBackToDefaultProvider(t *testing.T) {
	factory := &recordingFactory{}
	o := NewOrchestrator(OrchestratorConfig{
		OpenAIKey:       "sk-openai",
		DefaultProvider: ProviderOpenAI,
		DefaultModel:    "gpt-4o-mini",
	}).WithFactory(factory.build)

	// Anthropic requested but only the OpenAI server key exists
	_, err := o.Complete(context.Background(), Request{Prompt: "p", Provider: ProviderAnthropic, Model: "claude-sonnet-4-5"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, factory.last.provider)
	assert.Equal(t, "sk-openai", factory.last.apiKey)
	assert.Equal(t, "gpt-4o-mini", factory.last.model)
}

func TestComplete_NoServerKeyAtAll(t *testing.T) {
	factory := &recordingFactory{}
	o := NewOrchestrator(OrchestratorConfig{DefaultModel: "gpt-4o-mini"}).WithFactory(factory.build)

	_, err := o.Complete(context.Background(), Request{Prompt: "p", Provider: ProviderOpenAI})
	assert.ErrorIs(t, err, domain.ErrNoServerKey)
	assert.Nil(t, factory.last)
}

func TestComplete_EmptyModelUsesDefault(t *testing.T) {
	factory := &recordingFactory{}
	o := NewOrchestrator(OrchestratorConfig{
		OpenAIKey:    "sk-openai",
		DefaultModel: "gpt-4o-mini",
	}).WithFactory(factory.build)

	_, err := o.Complete(context.Background(), Request{Prompt: "p", Provider: ProviderOpenAI})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", factory.last.model)
}

func TestComplete_UpstreamErrorNeverLeaksKey(t *testing.T) {
	factory := &recordingFactory{err: errors.New("401 unauthorized")}
	o := NewOrchestrator(OrchestratorConfig{OpenAIKey: "sk-secret-server-key"}).WithFactory(factory.build)

	_, err := o.Complete(context.Background(), Request{Prompt: "p", Provider: ProviderOpenAI})
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeUpstream, domainErr.Code)
	assert.NotContains(t, err.Error(), "sk-secret-server-key")
	assert.Contains(t, domainErr.Message, "openai")
}

func TestHasServerKey(t *testing.T) {
	assert.False(t, NewOrchestrator(OrchestratorConfig{}).HasServerKey())
	assert.True(t, NewOrchestrator(OrchestratorConfig{AnthropicKey: "sk-a"}).HasServerKey())
}
