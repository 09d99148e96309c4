package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// DefaultOpenAIModel is used when no model identifier is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient generates text through the OpenAI API via langchaingo.
// Like the Gemini client it initializes lazily: the API key is only
// required once the provider is actually used.
type OpenAIClient struct {
	model  string
	apiKey string

	once    sync.Once
	llm     *openai.LLM
	initErr error
}

// NewOpenAIClient creates an OpenAI-backed client.
func NewOpenAIClient(model, apiKey string) *OpenAIClient {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIClient{model: model, apiKey: apiKey}
}

func (c *OpenAIClient) init() error {
	c.once.Do(func() {
		if c.apiKey == "" {
			c.initErr = &ProviderError{
				Provider: ProviderOpenAI,
				Kind:     KindConfig,
				Err:      fmt.Errorf("API key required for openai provider"),
			}
			return
		}
		llm, err := openai.New(
			openai.WithModel(c.model),
			openai.WithToken(c.apiKey),
		)
		if err != nil {
			c.initErr = &ProviderError{
				Provider: ProviderOpenAI,
				Kind:     KindConfig,
				Err:      fmt.Errorf("create openai client: %w", err),
			}
			return
		}
		c.llm = llm
	})
	return c.initErr
}

// Generate implements Client.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (*GenerationResult, error) {
	if err := c.init(); err != nil {
		return nil, err
	}

	// Low temperature for consistent structured output.
	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
		llms.WithTemperature(0.1),
		llms.WithMaxTokens(500),
	)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderOpenAI, Kind: classify(err), Err: err}
	}

	return &GenerationResult{
		Text:     out,
		Metadata: map[string]any{"model": c.model},
	}, nil
}
