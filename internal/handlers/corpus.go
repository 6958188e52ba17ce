package handlers

import (
	"net/http"

	"talk-to-krishna/internal/contextutil"
	"talk-to-krishna/internal/indexer"
)

// CorpusHandler reports the metadata of the loaded corpus snapshot.
type CorpusHandler struct {
	stats *indexer.BuildStats
}

// NewCorpusHandler creates a new CorpusHandler.
func NewCorpusHandler(stats *indexer.BuildStats) *CorpusHandler {
	return &CorpusHandler{stats: stats}
}

// ServeHTTP handles HTTP requests for corpus metadata.
//
// swagger:route GET /api/corpus corpusInfo
//
// # Corpus snapshot metadata
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Snapshot statistics
func (h *CorpusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if h.stats == nil {
		writeError(ctx, w, http.StatusServiceUnavailable, "Corpus not loaded")
		return
	}
	writeJSON(ctx, w, http.StatusOK, h.stats)
}
