package llm

import (
	"context"
	"log"

	"github.com/recallio/recallio/internal/domain"
)

// Provider identifies a completion backend. The set is closed: responses
// from each backend are normalized into Result by its adapter.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// ParseProvider maps a request string onto the closed provider set,
// defaulting unknown values to OpenAI.
func ParseProvider(s string) Provider {
	if s == string(ProviderAnthropic) {
		return ProviderAnthropic
	}
	return ProviderOpenAI
}

// Result is the normalized outcome of a completion call regardless of
// provider response shape.
type Result struct {
	Text       string
	TokensUsed int
}

// Completer is the single capability every provider adapter exposes.
type Completer interface {
	Complete(ctx context.Context, prompt string) (*Result, error)
}

// CompleterFactory builds a provider adapter for a concrete key and model.
// Injected so tests can substitute fakes for the real SDK clients.
type CompleterFactory func(provider Provider, apiKey, model string) Completer

func defaultFactory(provider Provider, apiKey, model string) Completer {
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicCompleter(apiKey, model)
	default:
		return NewOpenAICompleter(apiKey, model)
	}
}

// Request is one completion dispatch. CallerKey is set when the key was
// resolved from the BYOK or team tier and applies to the requested
// provider; when empty the orchestrator uses its own server key.
type Request struct {
	Prompt    string
	Provider  Provider
	Model     string
	CallerKey string
}

// Orchestrator dispatches prompts to whichever provider serves the request,
// falling back to the default provider/model when the requested provider's
// server credential is absent.
type Orchestrator struct {
	serverKeys      map[Provider]string
	defaultProvider Provider
	defaultModel    string
	factory         CompleterFactory
}

// OrchestratorConfig wires explicit credentials in at construction time.
type OrchestratorConfig struct {
	OpenAIKey       string
	AnthropicKey    string
	DefaultProvider Provider
	DefaultModel    string
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	keys := map[Provider]string{}
	if cfg.OpenAIKey != "" {
		keys[ProviderOpenAI] = cfg.OpenAIKey
	}
	if cfg.AnthropicKey != "" {
		keys[ProviderAnthropic] = cfg.AnthropicKey
	}
	defProvider := cfg.DefaultProvider
	if defProvider == "" {
		defProvider = ProviderOpenAI
	}
	return &Orchestrator{
		serverKeys:      keys,
		defaultProvider: defProvider,
		defaultModel:    cfg.DefaultModel,
		factory:         defaultFactory,
	}
}

// WithFactory replaces the adapter factory. Used by tests.
func (o *Orchestrator) WithFactory(f CompleterFactory) *Orchestrator {
	o.factory = f
	return o
}

// HasServerKey reports whether any server-funded provider credential is
// configured, i.e. whether the credits tier can serve requests at all.
func (o *Orchestrator) HasServerKey() bool {
	return len(o.serverKeys) > 0
}

// Complete dispatches the prompt. The returned error is an upstream domain
// error; the provider key is never included in it.
func (o *Orchestrator) Complete(ctx context.Context, req Request) (*Result, error) {
	provider := req.Provider
	model := req.Model
	key := req.CallerKey

	if key == "" {
		var ok bool
		key, ok = o.serverKeys[provider]
		if !ok {
			// Requested provider has no server credential; fall back
			// rather than failing the whole request.
			fallbackKey, fallbackOK := o.serverKeys[o.defaultProvider]
			if !fallbackOK {
				return nil, domain.ErrNoServerKey
			}
			log.Printf("completion: no server key for provider %s, falling back to %s/%s", provider, o.defaultProvider, o.defaultModel)
			provider = o.defaultProvider
			model = o.defaultModel
			key = fallbackKey
		}
	}
	if model == "" {
		model = o.defaultModel
	}

	result, err := o.factory(provider, key, model).Complete(ctx, req.Prompt)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "completion call failed (provider: "+string(provider)+")", err)
	}
	return result, nil
}
