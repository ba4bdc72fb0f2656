package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/sqlroom/sqlroom/internal/app"
	"github.com/sqlroom/sqlroom/internal/engine"
	"github.com/sqlroom/sqlroom/internal/metrics"
	"github.com/sqlroom/sqlroom/internal/sqlguard"
)

type QueryHandler struct {
	service *app.Service
}

func NewQueryHandler(service *app.Service) *QueryHandler {
	return &QueryHandler{
		service: service,
	}
}

type queryRequest struct {
	Query string `json:"query"`
}

type playgroundRequest struct {
	Database string `json:"database"`
	Query    string `json:"query"`
}

type gradeResponse struct {
	IsCorrect bool   `json:"is_correct"`
	Feedback  string `json:"feedback"`
	Score     int    `json:"score"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error.Printf("Failed to encode response: %v", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses with a JSON body.
// Query mistakes are the student's problem (4xx); reference-query failures
// and everything unexpected are ours (5xx).
func writeError(w http.ResponseWriter, err error) {
	var validationErr *sqlguard.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": validationErr.Error(),
			"rule":  string(validationErr.Rule),
		})
		return
	}

	var engineErr *engine.Error
	if errors.As(err, &engineErr) {
		status := http.StatusBadRequest
		switch engineErr.Category {
		case engine.CategoryTimeout:
			status = http.StatusRequestTimeout
		case engine.CategoryConnection:
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]string{
			"error":    engineErr.Message,
			"category": engineErr.Category,
		})
		return
	}

	switch {
	case errors.Is(err, app.ErrQuestionNotFound),
		errors.Is(err, app.ErrSchemaImportNotFound),
		errors.Is(err, app.ErrNotInAssignment):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, app.ErrForbidden), errors.Is(err, app.ErrDatabaseNotAllowed):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, app.ErrSchemaNotDeployed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrReferenceQuery):
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "the reference answer for this question failed to execute",
		})
	default:
		logger.Error.Printf("Unhandled error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (h *QueryHandler) auth(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusForbidden)
		return 0, false
	}
	userID, err := h.service.UserID(r)
	if err != nil {
		http.Error(w, "Invalid user id specified", http.StatusUnauthorized)
		return 0, false
	}
	return userID, true
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

// HandleRunQuery executes a practice query against a question's database.
func (h *QueryHandler) HandleRunQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.APIRequestDuration.WithLabelValues(
			r.URL.Path,
			r.Method,
			"200",
		).Observe(time.Since(start).Seconds())
	}()

	userID, ok := h.auth(w, r)
	if !ok {
		return
	}

	questionID, err := pathID(r, "questionID")
	if err != nil {
		http.Error(w, "Invalid question id", http.StatusBadRequest)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.RunQuery(r.Context(), userID, questionID, req.Query)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("question", "error").Inc()
		writeError(w, err)
		return
	}

	metrics.QueriesTotal.WithLabelValues("question", "ok").Inc()
	metrics.QueryDuration.WithLabelValues("question").Observe(time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, result)
}

// HandleGradeSubmission grades a student answer against the reference answer
// and records the attempt.
func (h *QueryHandler) HandleGradeSubmission(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.APIRequestDuration.WithLabelValues(
			r.URL.Path,
			r.Method,
			"200",
		).Observe(time.Since(start).Seconds())
	}()

	userID, ok := h.auth(w, r)
	if !ok {
		return
	}

	assignmentID, err := pathID(r, "assignmentID")
	if err != nil {
		http.Error(w, "Invalid assignment id", http.StatusBadRequest)
		return
	}
	questionID, err := pathID(r, "questionID")
	if err != nil {
		http.Error(w, "Invalid question id", http.StatusBadRequest)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	verdict, score, err := h.service.GradeSubmission(r.Context(), userID, questionID, assignmentID, req.Query)
	if err != nil {
		metrics.GradingsTotal.WithLabelValues("unknown", "error").Inc()
		writeError(w, err)
		return
	}

	outcome := "incorrect"
	if verdict.IsCorrect {
		outcome = "correct"
	}
	metrics.GradingsTotal.WithLabelValues("question", outcome).Inc()

	writeJSON(w, http.StatusOK, gradeResponse{
		IsCorrect: verdict.IsCorrect,
		Feedback:  verdict.Feedback,
		Score:     score,
	})
}

// HandlePlayground executes a free-form query against an allowed database or
// a deployed schema.
func (h *QueryHandler) HandlePlayground(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.APIRequestDuration.WithLabelValues(
			r.URL.Path,
			r.Method,
			"200",
		).Observe(time.Since(start).Seconds())
	}()

	userID, ok := h.auth(w, r)
	if !ok {
		return
	}

	var req playgroundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.RunPlayground(r.Context(), userID, req.Database, req.Query)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("playground", "error").Inc()
		writeError(w, err)
		return
	}

	metrics.QueriesTotal.WithLabelValues("playground", "ok").Inc()
	metrics.QueryDuration.WithLabelValues("playground").Observe(time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, result)
}

// HandleAvailableDatabases lists the databases the playground picker offers.
func (h *QueryHandler) HandleAvailableDatabases(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.auth(w, r)
	if !ok {
		return
	}

	databases, err := h.service.AvailableDatabases(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"databases": databases})
}
