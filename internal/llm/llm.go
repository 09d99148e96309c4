package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Provider names an interchangeable generation backend.
type Provider string

const (
	// ProviderMock is the deterministic test double. It returns
	// pre-programmed text with zero network cost and is only selected by
	// explicit test/offline configuration.
	ProviderMock Provider = "mock"

	// ProviderGemini is Google Gemini via google.golang.org/genai.
	ProviderGemini Provider = "gemini"

	// ProviderOpenAI is OpenAI via langchaingo.
	ProviderOpenAI Provider = "openai"
)

// GenerationResult is the provider-agnostic output of one generation call.
type GenerationResult struct {
	// Text is the raw model output before any decoding.
	Text string

	// TokensUsed is the total token count reported by the provider, or 0
	// when the provider does not report usage.
	TokensUsed int

	// Metadata carries provider-specific details, opaque to callers.
	Metadata map[string]any
}

// Client is the minimal generation capability every provider implements.
// Implementations defer expensive initialization (SDK handles, credential
// checks) to the first Generate call, so constructing a client for an
// unused provider never requires its credentials.
type Client interface {
	Generate(ctx context.Context, prompt string) (*GenerationResult, error)
}

// Options configures the generation service.
type Options struct {
	Provider Provider
	Model    string
	APIKey   string

	// RequestsPerMinute caps the client-side request rate shared by every
	// caller of this service. Zero disables client-side limiting.
	RequestsPerMinute float64
	Burst             int
}

// Service wraps a provider client with a shared client-side rate limiter.
// One Service instance is shared by all concurrent workers so throttling is
// coordinated through a single primitive rather than per worker.
type Service struct {
	provider Provider
	client   Client
	limiter  *rate.Limiter
	log      zerolog.Logger
}

// NewService builds the service for the configured provider. The concrete
// client is constructed eagerly but initializes its backend lazily.
func NewService(opts Options, log zerolog.Logger) (*Service, error) {
	client, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	return NewServiceWithClient(opts, client, log), nil
}

// NewServiceWithClient wraps an existing client, used by tests to inject a
// pre-programmed mock while keeping the rate-limiting path intact.
func NewServiceWithClient(opts Options, client Client, log zerolog.Logger) *Service {
	var limiter *rate.Limiter
	if opts.RequestsPerMinute > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerMinute/60.0), burst)
	}
	return &Service{
		provider: opts.Provider,
		client:   client,
		limiter:  limiter,
		log:      log,
	}
}

func newClient(opts Options) (Client, error) {
	switch opts.Provider {
	case ProviderMock:
		return NewMockClient(), nil
	case ProviderGemini:
		return NewGeminiClient(opts.Model), nil
	case ProviderOpenAI:
		return NewOpenAIClient(opts.Model, opts.APIKey), nil
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", opts.Provider)
	}
}

// Provider reports which backend this service routes to.
func (s *Service) Provider() Provider { return s.provider }

// Generate runs one generation call through the shared rate limiter.
func (s *Service) Generate(ctx context.Context, prompt string) (*GenerationResult, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, &ProviderError{Provider: s.provider, Kind: KindTimeout, Err: err}
		}
	}

	res, err := s.client.Generate(ctx, prompt)
	if err != nil {
		s.log.Warn().
			Str("provider", string(s.provider)).
			Str("kind", string(KindOf(err))).
			Err(err).
			Msg("Generation call failed")
		return nil, err
	}

	s.log.Debug().
		Str("provider", string(s.provider)).
		Int("tokens_used", res.TokensUsed).
		Msg("Generation call succeeded")
	return res, nil
}
