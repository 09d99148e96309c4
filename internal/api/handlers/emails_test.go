package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dvloznov/mailparse/internal/domain"
	"github.com/dvloznov/mailparse/internal/infra/memory"
)

// fakeArchiver records uploads instead of touching GCS.
type fakeArchiver struct {
	calls      int
	lastBucket string
	lastObject string
	err        error
}

func (f *fakeArchiver) ArchiveBody(ctx context.Context, bucketName, objectName, body string) (string, error) {
	f.calls++
	f.lastBucket = bucketName
	f.lastObject = objectName
	if f.err != nil {
		return "", f.err
	}
	return "gs://" + bucketName + "/" + objectName, nil
}

func TestCreateEmailInline(t *testing.T) {
	store := memory.NewStore()
	h := NewEmailsHandler(store, nil, "", zerolog.Nop())

	body := `{
		"message_id": "m1",
		"subject": "Payment Confirmation",
		"sender": "alerts@chase.com",
		"body": "Your card was charged $9.99",
		"received_at": "2024-03-01T10:00:00Z"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/emails", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateEmail(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["email_id"] == "" {
		t.Fatal("response is missing email_id")
	}
	if resp["status"] != string(domain.EmailPending) {
		t.Errorf("status = %q, want %q", resp["status"], domain.EmailPending)
	}

	stored, err := store.GetEmail(context.Background(), resp["email_id"])
	if err != nil || stored == nil {
		t.Fatalf("GetEmail() = %v, %v", stored, err)
	}
	if stored.Body != "Your card was charged $9.99" {
		t.Errorf("stored body = %q, want inline body", stored.Body)
	}
	if stored.BodyURI != "" {
		t.Errorf("BodyURI = %q, want empty for inline body", stored.BodyURI)
	}
	if stored.ReceivedAt.Format("2006-01-02") != "2024-03-01" {
		t.Errorf("ReceivedAt = %v", stored.ReceivedAt)
	}
}

func TestCreateEmailArchivesOversizedBody(t *testing.T) {
	store := memory.NewStore()
	archiver := &fakeArchiver{}
	h := NewEmailsHandler(store, archiver, "mail-bodies", zerolog.Nop())

	big := strings.Repeat("x", inlineBodyLimit+1)
	payload, _ := json.Marshal(map[string]string{
		"sender": "alerts@chase.com",
		"body":   big,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/emails", strings.NewReader(string(payload)))
	rec := httptest.NewRecorder()
	h.CreateEmail(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if archiver.calls != 1 {
		t.Fatalf("archiver calls = %d, want 1", archiver.calls)
	}
	if archiver.lastBucket != "mail-bodies" {
		t.Errorf("bucket = %q, want mail-bodies", archiver.lastBucket)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !strings.HasPrefix(resp["body_uri"], "gs://mail-bodies/emails/") {
		t.Errorf("body_uri = %q, want gs://mail-bodies/emails/ prefix", resp["body_uri"])
	}

	stored, err := store.GetEmail(context.Background(), resp["email_id"])
	if err != nil || stored == nil {
		t.Fatalf("GetEmail() = %v, %v", stored, err)
	}
	if stored.Body != "" {
		t.Error("oversized body was stored inline")
	}
	if stored.BodyURI != resp["body_uri"] {
		t.Errorf("stored BodyURI = %q, want %q", stored.BodyURI, resp["body_uri"])
	}
}

func TestCreateEmailSmallBodyNotArchived(t *testing.T) {
	store := memory.NewStore()
	archiver := &fakeArchiver{}
	h := NewEmailsHandler(store, archiver, "mail-bodies", zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/emails",
		strings.NewReader(`{"sender": "alerts@chase.com", "body": "charged $5.00"}`))
	rec := httptest.NewRecorder()
	h.CreateEmail(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if archiver.calls != 0 {
		t.Errorf("archiver calls = %d, want 0 for a small body", archiver.calls)
	}
}

func TestCreateEmailValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"body":`},
		{name: "missing body", body: `{"sender": "alerts@chase.com"}`},
		{name: "bad received_at", body: `{"body": "charged $5.00", "received_at": "yesterday"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewEmailsHandler(memory.NewStore(), nil, "", zerolog.Nop())
			req := httptest.NewRequest(http.MethodPost, "/api/emails", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.CreateEmail(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}
