package llm

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model identifier is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiClient generates text through Google Gemini. The underlying genai
// client is created on first use so that selecting another provider never
// requires Google credentials to be present.
type GeminiClient struct {
	model string

	once    sync.Once
	client  *genai.Client
	initErr error
}

// NewGeminiClient creates a Gemini-backed client for the given model.
func NewGeminiClient(model string) *GeminiClient {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{model: model}
}

func (c *GeminiClient) init(ctx context.Context) error {
	c.once.Do(func() {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
		})
		if err != nil {
			c.initErr = &ProviderError{
				Provider: ProviderGemini,
				Kind:     KindConfig,
				Err:      fmt.Errorf("create genai client: %w", err),
			}
			return
		}
		c.client = client
	})
	return c.initErr
}

// Generate implements Client.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (*GenerationResult, error) {
	if err := c.init(ctx); err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return nil, &ProviderError{Provider: ProviderGemini, Kind: classify(err), Err: err}
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, &ProviderError{
			Provider: ProviderGemini,
			Kind:     KindUnavailable,
			Err:      fmt.Errorf("empty response from model %s", c.model),
		}
	}

	tokens := 0
	metadata := map[string]any{"model": c.model}
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
		metadata["prompt_tokens"] = resp.UsageMetadata.PromptTokenCount
		metadata["candidate_tokens"] = resp.UsageMetadata.CandidatesTokenCount
	}

	return &GenerationResult{
		Text:       rawText,
		TokensUsed: tokens,
		Metadata:   metadata,
	}, nil
}
