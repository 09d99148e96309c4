package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/mailparse/internal/api/middleware"
	"github.com/dvloznov/mailparse/internal/domain"
)

// inlineBodyLimit is the largest body stored inline on the email row.
// Anything bigger goes to the archive bucket and the row keeps a gs:// URI.
const inlineBodyLimit = 64 * 1024

// EmailSink registers ingested emails with the backing store.
type EmailSink interface {
	InsertEmail(ctx context.Context, email *domain.RawEmail) error
}

// BodyArchiver offloads oversized email bodies to object storage.
type BodyArchiver interface {
	ArchiveBody(ctx context.Context, bucketName, objectName, body string) (string, error)
}

// EmailsHandler handles email ingestion endpoints.
type EmailsHandler struct {
	sink    EmailSink
	archive BodyArchiver
	bucket  string
	log     zerolog.Logger
}

// NewEmailsHandler creates a new emails handler. archive may be nil, in
// which case every body is stored inline regardless of size.
func NewEmailsHandler(sink EmailSink, archive BodyArchiver, bucket string, log zerolog.Logger) *EmailsHandler {
	return &EmailsHandler{
		sink:    sink,
		archive: archive,
		bucket:  bucket,
		log:     log,
	}
}

// CreateEmail handles POST /api/emails.
func (h *EmailsHandler) CreateEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MessageID  string `json:"message_id"`
		Subject    string `json:"subject"`
		Sender     string `json:"sender"`
		Body       string `json:"body"`
		ReceivedAt string `json:"received_at"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Body == "" {
		middleware.WriteError(w, http.StatusBadRequest, "body is required")
		return
	}

	receivedAt := time.Now().UTC()
	if req.ReceivedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ReceivedAt)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "received_at must be RFC 3339")
			return
		}
		receivedAt = parsed
	}

	ctx := r.Context()
	email := &domain.RawEmail{
		EmailID:    uuid.NewString(),
		MessageID:  req.MessageID,
		Subject:    req.Subject,
		Sender:     req.Sender,
		Body:       req.Body,
		ReceivedAt: receivedAt,
		Status:     domain.EmailPending,
	}

	if h.archive != nil && h.bucket != "" && len(req.Body) > inlineBodyLimit {
		uri, err := h.archive.ArchiveBody(ctx, h.bucket, "emails/"+email.EmailID+".txt", req.Body)
		if err != nil {
			h.log.Error().Err(err).
				Str("email_id", email.EmailID).
				Str("request_id", middleware.GetRequestID(ctx)).
				Msg("Failed to archive email body")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to archive email body")
			return
		}
		email.BodyURI = uri
		email.Body = ""
	}

	if err := h.sink.InsertEmail(ctx, email); err != nil {
		h.log.Error().Err(err).
			Str("email_id", email.EmailID).
			Str("request_id", middleware.GetRequestID(ctx)).
			Msg("Failed to insert email")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to insert email")
		return
	}

	h.log.Info().
		Str("email_id", email.EmailID).
		Str("sender", email.Sender).
		Bool("archived", email.BodyURI != "").
		Msg("Email ingested")

	resp := map[string]string{
		"email_id": email.EmailID,
		"status":   string(email.Status),
	}
	if email.BodyURI != "" {
		resp["body_uri"] = email.BodyURI
	}
	middleware.WriteJSON(w, http.StatusCreated, resp)
}
