package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/showroomlabs/showroom/internal/log"
	"github.com/showroomlabs/showroom/internal/router"
)

// Asker runs one question to a terminal answer.
type Asker interface {
	Ask(ctx context.Context, question string, opts ...router.AskOption) (*router.Answer, error)
}

type askRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

// AskHandler serves POST /api/ask.
type AskHandler struct {
	asker  Asker
	logger log.Logger
}

// NewAskHandler creates an ask handler.
func NewAskHandler(asker Asker, logger log.Logger) *AskHandler {
	return &AskHandler{asker: asker, logger: logger}
}

// RegisterRoutes registers the ask route on the given mux.
func (h *AskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ask", h.ask)
}

// ask runs one question and returns the full answer, trace included. Failed
// answers are returned the same way: the trace is the product, and the HTTP
// status carries the failure reason.
func (h *AskHandler) ask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with a question field", h.logger)
		return
	}

	var opts []router.AskOption
	if req.TopK > 0 {
		opts = append(opts, router.WithTopK(req.TopK))
	}

	ans, err := h.asker.Ask(r.Context(), req.Question, opts...)
	if err != nil {
		switch {
		case errors.Is(err, router.ErrEmptyQuestion):
			writeError(w, http.StatusBadRequest, "empty_question", "question is required", h.logger)
		case errors.Is(err, router.ErrQuestionTooLong):
			writeError(w, http.StatusBadRequest, "question_too_long", err.Error(), h.logger)
		default:
			h.logger.Error("ask failed before the answer cycle", "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
		}
		return
	}

	writeJSON(w, statusForAnswer(ans), ans, h.logger)
}

// statusForAnswer maps a terminal answer to its HTTP status. Done answers
// are 200; failed ones map by reason so clients can branch on the status
// alone while the body carries the full trace.
func statusForAnswer(ans *router.Answer) int {
	if ans.State == router.StateDone {
		return http.StatusOK
	}
	switch ans.Reason {
	case router.ReasonTimeout:
		return http.StatusGatewayTimeout
	case router.ReasonIndexUnavailable:
		return http.StatusServiceUnavailable
	case router.ReasonInvalidQuery:
		return http.StatusUnprocessableEntity
	case router.ReasonPlanningFailure, router.ReasonExecutionError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
