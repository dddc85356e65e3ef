package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"knowledge-graph-service/internal/contextutil"
	"knowledge-graph-service/internal/ingest"
	"knowledge-graph-service/internal/service"
	"knowledge-graph-service/internal/storage"
)

const (
	defaultFailureLimit = 50
	maxFailureLimit     = 500
)

// FailureHandler exposes the dead-letter ledger.
type FailureHandler struct {
	failures  storage.FailureStore
	publisher ingest.EventPublisher
}

// NewFailureHandler creates a new FailureHandler. publisher may be nil, which
// disables replay.
func NewFailureHandler(failures storage.FailureStore, publisher ingest.EventPublisher) *FailureHandler {
	return &FailureHandler{failures: failures, publisher: publisher}
}

// FailureListResponse is a page of the ledger.
type FailureListResponse struct {
	Failures []storage.Failure `json:"failures"`
	Count    int               `json:"count"`
}

// ReplayResponse reports a republished failure.
type ReplayResponse struct {
	FailureID int64  `json:"failure_id"`
	MessageID string `json:"message_id"`
}

// List returns recent failures. include_replayed=true also lists replayed ones.
func (h *FailureHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, err := queryInt(r, "limit", defaultFailureLimit)
	if err == nil && (limit < 1 || limit > maxFailureLimit) {
		err = &service.ValidationError{Field: "limit", Message: "must be between 1 and 500"}
	}
	if err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}
	includeReplayed, _ := strconv.ParseBool(r.URL.Query().Get("include_replayed"))

	failures, err := h.failures.List(ctx, limit, includeReplayed)
	if err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to list ingestion failures", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list ingestion failures")
		return
	}
	writeJSON(ctx, w, http.StatusOK, FailureListResponse{Failures: failures, Count: len(failures)})
}

// Replay republishes one failure onto the event exchange.
func (h *FailureHandler) Replay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "Replay is not configured")
		return
	}
	id, err := int64Param(r, "failureID")
	if err != nil {
		handleServiceError(w, ctx, err, "")
		return
	}

	messageID, err := ingest.Replay(ctx, h.failures, h.publisher, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Resource not found")
		return
	}
	if errors.Is(err, ingest.ErrAlreadyReplayed) {
		writeError(w, http.StatusConflict, "Failure already replayed")
		return
	}
	if err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to replay ingestion failure", "failure_id", id, "error", err)
		writeError(w, http.StatusBadGateway, "Failed to replay ingestion failure")
		return
	}
	writeJSON(ctx, w, http.StatusAccepted, ReplayResponse{FailureID: id, MessageID: messageID})
}
