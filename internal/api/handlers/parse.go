// Package handlers wires the parsing engine and job queue into HTTP
// endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/mailparse/internal/api/middleware"
	"github.com/dvloznov/mailparse/internal/jobs"
	"github.com/dvloznov/mailparse/internal/llm"
	"github.com/dvloznov/mailparse/internal/parsing"
)

// ParseHandler handles parse-related endpoints.
type ParseHandler struct {
	engine    *parsing.Engine
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewParseHandler creates a new parse handler. publisher may be nil, in
// which case async requests are rejected.
func NewParseHandler(engine *parsing.Engine, publisher jobs.Publisher, log zerolog.Logger) *ParseHandler {
	return &ParseHandler{
		engine:    engine,
		publisher: publisher,
		log:       log,
	}
}

// ParseEmail handles POST /api/parse/email.
func (h *ParseHandler) ParseEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EmailID      string `json:"email_id"`
		ForceReparse bool   `json:"force_reparse"`
		Async        bool   `json:"async"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.EmailID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "email_id is required")
		return
	}

	ctx := r.Context()

	if req.Async {
		if h.publisher == nil {
			middleware.WriteError(w, http.StatusServiceUnavailable, "Async parsing is not enabled")
			return
		}

		job := &jobs.ParseEmailJob{
			EmailID:      req.EmailID,
			ForceReparse: req.ForceReparse,
		}
		if err := h.publisher.PublishParseEmail(ctx, job); err != nil {
			h.log.Error().Err(err).Str("email_id", req.EmailID).Msg("Failed to enqueue parse job")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue parse job")
			return
		}

		h.log.Info().Str("job_id", job.JobID).Str("email_id", req.EmailID).Msg("Parse job enqueued")
		middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
			"job_id":   job.JobID,
			"email_id": req.EmailID,
			"status":   string(job.Status),
		})
		return
	}

	cand, err := h.engine.ParseOne(ctx, req.EmailID, req.ForceReparse)
	if err != nil {
		h.writeParseError(w, r, req.EmailID, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"email_id":  req.EmailID,
		"candidate": cand,
	})
}

// ParseBatch handles POST /api/parse/batch.
func (h *ParseHandler) ParseBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EmailIDs            []string `json:"email_ids"`
		Sender              string   `json:"sender"`
		MaxItems            int      `json:"max_items"`
		ConfidenceThreshold *float64 `json:"confidence_threshold"`
	}

	// An empty body means "parse everything pending".
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ConfidenceThreshold != nil {
		t := *req.ConfidenceThreshold
		if t < 0 || t > 1 {
			middleware.WriteError(w, http.StatusBadRequest, "confidence_threshold must be in [0, 1]")
			return
		}
	}

	filter := parsing.EmailFilter{
		EmailIDs: req.EmailIDs,
		Sender:   req.Sender,
		MaxItems: req.MaxItems,
	}
	stats, err := h.engine.ParseBatch(r.Context(), filter, parsing.BatchOptions{
		ConfidenceThreshold: req.ConfidenceThreshold,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("Batch parse failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Batch parse failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, stats)
}

// GetStats handles GET /api/parse/stats.
func (h *ParseHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.engine.Stats())
}

func (h *ParseHandler) writeParseError(w http.ResponseWriter, r *http.Request, emailID string, err error) {
	log := h.log.With().
		Str("email_id", emailID).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Logger()

	var (
		provErr  *llm.ProviderError
		fmtErr   *parsing.ResponseFormatError
		storeErr *parsing.PersistenceError
	)
	switch {
	case errors.Is(err, parsing.ErrEmailNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Email not found")
	case errors.As(err, &provErr):
		log.Error().Err(err).Str("kind", string(provErr.Kind)).Msg("Provider error")
		middleware.WriteError(w, http.StatusBadGateway, "Generation provider error")
	case errors.As(err, &fmtErr):
		log.Error().Err(err).Msg("Malformed provider response")
		middleware.WriteError(w, http.StatusBadGateway, "Malformed provider response")
	case errors.As(err, &storeErr):
		log.Error().Err(err).Msg("Persistence failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Persistence failed")
	default:
		log.Error().Err(err).Msg("Parse failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Parse failed")
	}
}

// JobsHandler handles job-status endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		EmailID: query.Get("email_id"),
		Status:  jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
