package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewServiceProviderSelection(t *testing.T) {
	tests := []struct {
		name     string
		provider Provider
		wantErr  bool
	}{
		{name: "mock", provider: ProviderMock},
		{name: "gemini", provider: ProviderGemini},
		{name: "openai", provider: ProviderOpenAI},
		{name: "unsupported", provider: Provider("anthropic"), wantErr: true},
		{name: "empty", provider: Provider(""), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(Options{Provider: tt.provider}, zerolog.Nop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewService() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && svc.Provider() != tt.provider {
				t.Errorf("Provider() = %v, want %v", svc.Provider(), tt.provider)
			}
		})
	}
}

func TestOpenAIClientMissingKeyIsConfigError(t *testing.T) {
	// Construction must not require credentials; the first Generate must
	// fail with a non-recoverable config error.
	c := NewOpenAIClient("", "")

	_, err := c.Generate(context.Background(), "hello")
	if err == nil {
		t.Fatal("Generate() = nil error, want config error")
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ProviderError", err)
	}
	if pe.Kind != KindConfig {
		t.Errorf("Kind = %v, want %v", pe.Kind, KindConfig)
	}
	if pe.Recoverable() {
		t.Error("config error reported as recoverable")
	}

	// The failure is sticky across calls.
	_, err2 := c.Generate(context.Background(), "again")
	if !errors.As(err2, &pe) || pe.Kind != KindConfig {
		t.Errorf("second call error = %v, want the same config error", err2)
	}
}

func TestMockClientReplay(t *testing.T) {
	mock := NewMockClient(
		MockResponse{Text: "first"},
		MockResponse{Text: "second"},
	)
	ctx := context.Background()

	for i, want := range []string{"first", "second", "second", "second"} {
		res, err := mock.Generate(ctx, "p")
		if err != nil {
			t.Fatalf("call %d error = %v", i, err)
		}
		if res.Text != want {
			t.Errorf("call %d Text = %q, want %q", i, res.Text, want)
		}
	}
	if mock.Calls() != 4 {
		t.Errorf("Calls() = %d, want 4", mock.Calls())
	}
}

func TestMockClientDefaultOutput(t *testing.T) {
	mock := NewMockClient()

	res, err := mock.Generate(context.Background(), "p")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if res.Text == "" || res.TokensUsed == 0 {
		t.Errorf("default result = %+v, want populated text and token count", res)
	}
}

func TestServiceRateLimiterShared(t *testing.T) {
	// 60 requests per minute is one per second; a burst of 1 means the
	// second call has to wait roughly a second.
	mock := NewMockClient()
	svc := NewServiceWithClient(Options{
		Provider:          ProviderMock,
		RequestsPerMinute: 60,
		Burst:             1,
	}, mock, zerolog.Nop())

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 2; i++ {
		if _, err := svc.Generate(ctx, "p"); err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 500*time.Millisecond {
		t.Errorf("two calls completed in %v, limiter did not throttle", elapsed)
	}
}

func TestServiceRateLimiterRespectsCancellation(t *testing.T) {
	mock := NewMockClient()
	svc := NewServiceWithClient(Options{
		Provider:          ProviderMock,
		RequestsPerMinute: 1,
		Burst:             1,
	}, mock, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// First call consumes the burst; the second blocks on the limiter
	// until the context gives up.
	if _, err := svc.Generate(ctx, "p"); err != nil {
		t.Fatalf("first Generate() error = %v", err)
	}
	_, err := svc.Generate(ctx, "p")
	if err == nil {
		t.Fatal("second Generate() = nil error, want timeout")
	}
	if KindOf(err) != KindTimeout {
		t.Errorf("KindOf(err) = %v, want %v", KindOf(err), KindTimeout)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: KindTimeout},
		{name: "http 429 text", err: fmt.Errorf("API returned unexpected status code: 429"), want: KindRateLimited},
		{name: "quota text", err: fmt.Errorf("quota exceeded for project"), want: KindRateLimited},
		{name: "auth text", err: fmt.Errorf("Incorrect API key provided"), want: KindAuth},
		{name: "forbidden text", err: fmt.Errorf("status 403 Forbidden"), want: KindAuth},
		{name: "timeout text", err: fmt.Errorf("net/http: request timeout"), want: KindTimeout},
		{name: "unknown", err: fmt.Errorf("connection reset by peer"), want: KindUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want ErrorKind
	}{
		{code: http.StatusUnauthorized, want: KindAuth},
		{code: http.StatusForbidden, want: KindAuth},
		{code: http.StatusTooManyRequests, want: KindRateLimited},
		{code: http.StatusGatewayTimeout, want: KindTimeout},
		{code: http.StatusInternalServerError, want: KindUnavailable},
		{code: http.StatusServiceUnavailable, want: KindUnavailable},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.code); got != tt.want {
			t.Errorf("classifyStatus(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", &ProviderError{
		Provider: ProviderGemini, Kind: KindRateLimited, Err: errors.New("429"),
	})
	if got := KindOf(wrapped); got != KindRateLimited {
		t.Errorf("KindOf(wrapped) = %v, want %v", got, KindRateLimited)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %v, want empty", got)
	}
}
