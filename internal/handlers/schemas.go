package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/sqlroom/sqlroom/internal/app"
	"github.com/sqlroom/sqlroom/internal/metrics"
	"github.com/sqlroom/sqlroom/internal/schema"
)

type SchemaHandler struct {
	service *app.Service
}

func NewSchemaHandler(service *app.Service) *SchemaHandler {
	return &SchemaHandler{
		service: service,
	}
}

func (h *SchemaHandler) auth(w http.ResponseWriter, r *http.Request) (int64, bool) {
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

// HandleList returns the caller's schema imports with their deployment state.
func (h *SchemaHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.auth(w, r)
	if !ok {
		return
	}

	imports, err := h.service.ListSchemaImports(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"schemas": imports})
}

// HandleDeploy deploys a schema import into the shared database.
func (h *SchemaHandler) HandleDeploy(w http.ResponseWriter, r *http.Request) {
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

	importID, err := pathID(r, "schemaID")
	if err != nil {
		http.Error(w, "Invalid schema id", http.StatusBadRequest)
		return
	}

	result, err := h.service.DeploySchema(r.Context(), userID, importID)
	if err != nil {
		metrics.SchemaDeploysTotal.WithLabelValues("error").Inc()
		if errors.Is(err, schema.ErrNoTables) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		writeError(w, err)
		return
	}

	metrics.SchemaDeploysTotal.WithLabelValues("ok").Inc()
	logger.Info.Printf("User %d deployed schema import %d as %s", userID, importID, result.Prefix)
	writeJSON(w, http.StatusOK, result)
}

// HandleTeardown drops a deployed schema's tables.
func (h *SchemaHandler) HandleTeardown(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.auth(w, r)
	if !ok {
		return
	}

	importID, err := pathID(r, "schemaID")
	if err != nil {
		http.Error(w, "Invalid schema id", http.StatusBadRequest)
		return
	}

	if err := h.service.TeardownSchema(r.Context(), userID, importID); err != nil {
		writeError(w, err)
		return
	}

	logger.Info.Printf("User %d tore down schema import %d", userID, importID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "torn down"})
}
