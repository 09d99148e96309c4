package llm

import (
	"context"
	"sync"
)

// MockResponse is one pre-programmed reply for the mock provider.
type MockResponse struct {
	Text string
	Err  error
}

// MockClient is the deterministic test-double provider. It replays queued
// responses in order and keeps replaying the last one once the queue is
// exhausted. With an empty queue it returns a fixed well-formed candidate,
// which keeps offline runs working end to end.
type MockClient struct {
	mu        sync.Mutex
	responses []MockResponse
	calls     int
}

// defaultMockOutput mirrors the shape real providers are prompted to return.
const defaultMockOutput = `{
  "is_transaction": true,
  "transaction_type": "debit",
  "amount": "25.00",
  "currency": "USD",
  "merchant": "Test Merchant",
  "description": "Test transaction",
  "transaction_date": null,
  "confidence": 0.85,
  "extracted_fields": {}
}`

// NewMockClient creates a mock provider with an optional response queue.
func NewMockClient(responses ...MockResponse) *MockClient {
	return &MockClient{responses: responses}
}

// Generate implements Client.
func (c *MockClient) Generate(ctx context.Context, prompt string) (*GenerationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ProviderError{Provider: ProviderMock, Kind: KindTimeout, Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.calls
	c.calls++

	if len(c.responses) == 0 {
		return &GenerationResult{
			Text:       defaultMockOutput,
			TokensUsed: 100,
			Metadata:   map[string]any{"mock": true},
		}, nil
	}

	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	r := c.responses[idx]
	if r.Err != nil {
		return nil, r.Err
	}
	return &GenerationResult{
		Text:       r.Text,
		TokensUsed: 100,
		Metadata:   map[string]any{"mock": true},
	}, nil
}

// Calls reports how many times Generate was invoked. Tests use it to verify
// idempotency and that accepted generative results skip the rule path.
func (c *MockClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
