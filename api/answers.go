package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/showroomlabs/showroom/internal/audit"
	"github.com/showroomlabs/showroom/internal/log"
	"github.com/showroomlabs/showroom/internal/router"
)

// AnswerReader reads persisted answers from the audit store.
type AnswerReader interface {
	Recent(ctx context.Context, limit int) ([]audit.Summary, error)
	Get(ctx context.Context, id uuid.UUID) (*router.Answer, error)
}

// AnswersHandler serves the persisted-answer readback routes.
type AnswersHandler struct {
	store  AnswerReader
	logger log.Logger
}

// NewAnswersHandler creates an answers handler.
func NewAnswersHandler(store AnswerReader, logger log.Logger) *AnswersHandler {
	return &AnswersHandler{store: store, logger: logger}
}

// RegisterRoutes registers answer readback routes on the given mux.
func (h *AnswersHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/answers", h.list)
	mux.HandleFunc("GET /api/answers/{id}", h.get)
}

type answersResponse struct {
	Answers []audit.Summary `json:"answers"`
	Count   int             `json:"count"`
}

// list returns recent answer summaries, newest first. The optional limit
// query parameter caps the page; the store clamps it to its maximum.
func (h *AnswersHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer", h.logger)
			return
		}
		limit = n
	}

	summaries, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing answers", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list answers", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, answersResponse{Answers: summaries, Count: len(summaries)}, h.logger)
}

// get returns one persisted answer with its full invocation trace.
func (h *AnswersHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "answer id must be a UUID", h.logger)
		return
	}

	ans, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "answer not found", h.logger)
			return
		}
		h.logger.Error("getting answer", "answer_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed", "failed to load answer", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, ans, h.logger)
}
