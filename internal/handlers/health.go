package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"talk-to-krishna/internal/contextutil"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "talk-to-krishna"

// CollectionChecker reports whether a vector collection exists.
type CollectionChecker interface {
	CollectionExists(ctx context.Context, collection string) (bool, error)
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	version            string
	passages           int
	vectorStore        CollectionChecker
	collectionName     string
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler. vectorStore is nil when
// dense retrieval runs in memory.
func NewHealthHandler(version string, passages int, vectorStore CollectionChecker, collectionName string) *HealthHandler {
	return &HealthHandler{
		version:            version,
		passages:           passages,
		vectorStore:        vectorStore,
		collectionName:     collectionName,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall health status: "ok" or "degraded"
	Status string `json:"status"`

	Service string `json:"service"`
	Version string `json:"version"`

	// Number of passages in the loaded corpus
	CorpusPassages int `json:"corpus_passages"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// List of issues (only present if status is degraded)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP handles HTTP requests for health checks.
//
// Returns 200 OK when healthy and 503 Service Unavailable when degraded.
// A missing vector collection only degrades dense retrieval, the pipeline
// keeps answering from lexical and curated scores.
//
// swagger:route GET /api/health healthCheck
//
// # Health check endpoint
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: System is healthy
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
//	'503':
//	  description: System is degraded
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"corpus": "ok"}
	var issues []string

	if h.passages == 0 {
		checks["corpus"] = "empty"
		issues = append(issues, "corpus_empty")
	}

	if h.vectorStore == nil {
		checks["vector_store"] = "memory"
	} else if h.checkVectorStore(checkCtx, logger) {
		checks["vector_store"] = "ok"
	} else {
		checks["vector_store"] = "error"
		issues = append(issues, "vector_store_unavailable")
	}

	status := "ok"
	httpStatus := http.StatusOK
	if len(issues) > 0 {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(ctx, w, httpStatus, HealthResponse{
		Status:         status,
		Service:        ServiceName,
		Version:        h.version,
		CorpusPassages: h.passages,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		Checks:         checks,
		Issues:         issues,
	})
}

// checkVectorStore checks if the vector store is accessible.
func (h *HealthHandler) checkVectorStore(ctx context.Context, logger *slog.Logger) bool {
	exists, err := h.vectorStore.CollectionExists(ctx, h.collectionName)
	if err != nil {
		logger.WarnContext(ctx, "vector store health check failed", "error", err)
		return false
	}
	if !exists {
		logger.WarnContext(ctx, "vector store collection does not exist", "collection", h.collectionName)
		return false
	}
	return true
}
