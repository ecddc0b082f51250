package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/pitabwire/util"

	"github.com/antinvestor/decider/apps/decider/middleware"
	"github.com/antinvestor/decider/apps/decider/service/analysis"
	"github.com/antinvestor/decider/internal/pipeline"
)

const maxHistoryLimit = 100

// DecisionService is what the handlers need from the analysis service.
type DecisionService interface {
	Analyze(ctx context.Context, content string) (*pipeline.Response, error)
	History(ctx context.Context, limit int) ([]analysis.HistoryEntry, error)
}

// ErrorResponse is the error body returned to API clients.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// AnalyzeRequest is the body of POST /api/analyze. ArtifactContent is
// decoded loosely so a non-string value can be rejected with a clear message.
type AnalyzeRequest struct {
	ArtifactContent any `json:"artifactContent"`
}

// AnalyzeHandler serves POST /api/analyze.
type AnalyzeHandler struct {
	service DecisionService
	maxBody int64
}

// NewAnalyzeHandler creates the analyze handler. maxBody caps the request
// body in bytes.
func NewAnalyzeHandler(service DecisionService, maxBody int) *AnalyzeHandler {
	return &AnalyzeHandler{service: service, maxBody: int64(maxBody)}
}

// ServeHTTP handles one analysis request.
func (h *AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := util.Log(ctx)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(ctx, w, http.StatusMethodNotAllowed, "Only POST method is allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(ctx, w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", h.maxBody))
			return
		}
		writeError(ctx, w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	var req AnalyzeRequest
	if unmarshalErr := json.Unmarshal(body, &req); unmarshalErr != nil {
		writeError(ctx, w, http.StatusBadRequest, "Failed to parse JSON request body")
		return
	}

	content, ok := req.ArtifactContent.(string)
	if !ok || content == "" {
		writeError(ctx, w, http.StatusBadRequest, analysis.ErrInvalidArtifact.Error())
		return
	}

	resp, err := h.service.Analyze(ctx, content)
	if err != nil {
		var validationErr *analysis.ValidationError
		if errors.As(err, &validationErr) {
			writeError(ctx, w, http.StatusBadRequest, validationErr.Message)
			return
		}

		logEntry := log.WithError(err)
		if stage, found := pipeline.StageOf(err); found {
			logEntry = logEntry.WithField("stage", string(stage))
		}
		logEntry.Error("analysis failed")
		writeError(ctx, w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}

// HistoryHandler serves GET /api/decisions.
type HistoryHandler struct {
	service DecisionService
}

// NewHistoryHandler creates the decision history handler.
func NewHistoryHandler(service DecisionService) *HistoryHandler {
	return &HistoryHandler{service: service}
}

// HistoryResponse lists recent decisions, newest first.
type HistoryResponse struct {
	Decisions []analysis.HistoryEntry `json:"decisions"`
}

// ServeHTTP handles one history request.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(ctx, w, http.StatusMethodNotAllowed, "Only GET method is allowed")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			writeError(ctx, w, http.StatusBadRequest,
				fmt.Sprintf("limit must be an integer between 1 and %d", maxHistoryLimit))
			return
		}
		limit = n
	}

	entries, err := h.service.History(ctx, limit)
	if err != nil {
		util.Log(ctx).WithError(err).Error("listing decisions failed")
		writeError(ctx, w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(ctx, w, http.StatusOK, HistoryResponse{Decisions: entries})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		util.Log(ctx).WithError(err).Error("failed to encode response")
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	writeJSON(ctx, w, status, ErrorResponse{
		Error:     message,
		RequestID: middleware.GetRequestID(ctx),
	})
}
