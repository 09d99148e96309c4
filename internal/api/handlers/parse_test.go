package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dvloznov/mailparse/internal/api/middleware"
	"github.com/dvloznov/mailparse/internal/domain"
	"github.com/dvloznov/mailparse/internal/infra/memory"
	"github.com/dvloznov/mailparse/internal/jobs"
	"github.com/dvloznov/mailparse/internal/llm"
	"github.com/dvloznov/mailparse/internal/parsing"
)

// capturingPublisher records published jobs instead of running them.
type capturingPublisher struct {
	published []*jobs.ParseEmailJob
	err       error
}

func (p *capturingPublisher) PublishParseEmail(ctx context.Context, job *jobs.ParseEmailJob) error {
	if p.err != nil {
		return p.err
	}
	job.JobID = "job-1"
	job.Status = jobs.JobStatusPending
	p.published = append(p.published, job)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

const handlerMockOutput = `{
	"is_transaction": true,
	"transaction_type": "debit",
	"amount": "49.99",
	"currency": "USD",
	"merchant": "Amazon",
	"confidence": 0.9
}`

func newTestHandler(t *testing.T, publisher jobs.Publisher) (*ParseHandler, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	store.AddEmail(&domain.RawEmail{
		EmailID: "e1",
		Subject: "Payment Confirmation",
		Sender:  "alerts@chase.com",
		Body:    "Your card was charged $49.99 at Amazon.",
	})

	mock := llm.NewMockClient(llm.MockResponse{Text: handlerMockOutput})
	svc := llm.NewServiceWithClient(llm.Options{Provider: llm.ProviderMock}, mock, zerolog.Nop())
	engine := parsing.NewEngine(parsing.DefaultOptions(), svc, store, store, store, store, zerolog.Nop())

	return NewParseHandler(engine, publisher, zerolog.Nop()), store
}

func TestParseEmailSync(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/parse/email",
		strings.NewReader(`{"email_id": "e1"}`))
	rec := httptest.NewRecorder()
	h.ParseEmail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		EmailID   string                      `json:"email_id"`
		Candidate *domain.ExtractionCandidate `json:"candidate"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.EmailID != "e1" {
		t.Errorf("email_id = %q, want %q", resp.EmailID, "e1")
	}
	if resp.Candidate == nil || resp.Candidate.Merchant != "Amazon" {
		t.Errorf("candidate = %+v, want merchant Amazon", resp.Candidate)
	}
}

func TestParseEmailValidation(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "missing email_id", body: `{}`, want: http.StatusBadRequest},
		{name: "malformed json", body: `{"email_id": `, want: http.StatusBadRequest},
		{name: "unknown email", body: `{"email_id": "nope"}`, want: http.StatusNotFound},
		{name: "async without queue", body: `{"email_id": "e1", "async": true}`, want: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/parse/email", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ParseEmail(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d; body %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestParseEmailAsync(t *testing.T) {
	pub := &capturingPublisher{}
	h, _ := newTestHandler(t, pub)

	req := httptest.NewRequest(http.MethodPost, "/api/parse/email",
		strings.NewReader(`{"email_id": "e1", "force_reparse": true, "async": true}`))
	rec := httptest.NewRecorder()
	h.ParseEmail(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}
	if len(pub.published) != 1 {
		t.Fatalf("published jobs = %d, want 1", len(pub.published))
	}
	job := pub.published[0]
	if job.EmailID != "e1" || !job.ForceReparse {
		t.Errorf("job = %+v, want e1 with force_reparse", job)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["job_id"] == "" {
		t.Error("response is missing job_id")
	}
}

func TestParseBatchEndpoint(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/parse/batch", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.ParseBatch(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var stats parsing.BatchStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Fetched != 1 || stats.Processed != 1 {
		t.Errorf("stats = %+v, want 1 fetched and processed", stats)
	}
}

func TestParseBatchEmptyBody(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/parse/batch", strings.NewReader(""))
	rec := httptest.NewRecorder()
	h.ParseBatch(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d for empty body", rec.Code, http.StatusOK)
	}
}

func TestParseBatchThresholdValidation(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/parse/batch",
		strings.NewReader(`{"confidence_threshold": 1.5}`))
	rec := httptest.NewRecorder()
	h.ParseBatch(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetStats(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	// Parse once so the counters move.
	parseReq := httptest.NewRequest(http.MethodPost, "/api/parse/email",
		strings.NewReader(`{"email_id": "e1"}`))
	h.ParseEmail(httptest.NewRecorder(), parseReq)

	req := httptest.NewRequest(http.MethodGet, "/api/parse/stats", nil)
	rec := httptest.NewRecorder()
	h.GetStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var stats parsing.BatchStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Processed != 1 || stats.GenerativeUsed != 1 {
		t.Errorf("stats = %+v, want one generative parse recorded", stats)
	}
}

func TestParseErrorLogsRequestID(t *testing.T) {
	store := memory.NewStore()
	store.AddEmail(&domain.RawEmail{
		EmailID: "e1",
		Sender:  "alerts@chase.com",
		Body:    "Your card was charged $5.00",
	})

	mock := llm.NewMockClient(llm.MockResponse{Err: &llm.ProviderError{
		Provider: llm.ProviderMock,
		Kind:     llm.KindConfig,
		Err:      errors.New("missing api key"),
	}})
	svc := llm.NewServiceWithClient(llm.Options{Provider: llm.ProviderMock}, mock, zerolog.Nop())
	engine := parsing.NewEngine(parsing.DefaultOptions(), svc, store, store, store, store, zerolog.Nop())

	var buf bytes.Buffer
	h := NewParseHandler(engine, nil, zerolog.New(&buf))

	wrapped := middleware.RequestID(http.HandlerFunc(h.ParseEmail))
	req := httptest.NewRequest(http.MethodPost, "/api/parse/email",
		strings.NewReader(`{"email_id": "e1"}`))
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	reqID := rec.Header().Get("X-Request-ID")
	if reqID == "" {
		t.Fatal("X-Request-ID header is not set")
	}
	if !strings.Contains(buf.String(), reqID) {
		t.Errorf("error log does not carry the request ID %s: %s", reqID, buf.String())
	}
}
