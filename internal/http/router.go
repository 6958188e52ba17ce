package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"talk-to-krishna/internal/handlers"
	"talk-to-krishna/internal/indexer"
	"talk-to-krishna/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	AskService service.AskService
	// Clips is nil when audio is disabled.
	Clips     handlers.ClipSource
	AudioWait time.Duration
	// VectorStore is nil when dense retrieval runs in memory.
	VectorStore    handlers.CollectionChecker
	CollectionName string
	CorpusStats    *indexer.BuildStats
	Version        string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	passages := 0
	if deps.CorpusStats != nil {
		passages = deps.CorpusStats.Passages
	}

	askHandler := handlers.NewAskHandler(deps.AskService)
	audioHandler := handlers.NewAudioHandler(deps.Clips, deps.AudioWait)
	healthHandler := handlers.NewHealthHandler(deps.Version, passages, deps.VectorStore, deps.CollectionName)
	corpusHandler := handlers.NewCorpusHandler(deps.CorpusStats)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/ask", askHandler)
		r.Method(http.MethodGet, "/audio/{id}", audioHandler)
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Method(http.MethodGet, "/corpus", corpusHandler)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/health", http.StatusFound)
	})

	return r
}
