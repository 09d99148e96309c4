package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/mailparse/internal/api/middleware"
	"github.com/dvloznov/mailparse/internal/domain"
	"github.com/dvloznov/mailparse/internal/parsing"
)

// TransactionLister serves stored extraction results.
type TransactionLister interface {
	ListTransactions(ctx context.Context, filter parsing.TransactionFilter) ([]*domain.StoredTransaction, error)
}

// TransactionsHandler handles stored-transaction endpoints.
type TransactionsHandler struct {
	store TransactionLister
	log   zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(store TransactionLister, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		store: store,
		log:   log,
	}
}

// ListTransactions handles GET /api/transactions.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := parsing.TransactionFilter{
		EmailID: query.Get("email_id"),
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

	txns, err := h.store.ListTransactions(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txns,
		"count":        len(txns),
	})
}
