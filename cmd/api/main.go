package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"talk-to-krishna/internal/app"
	"talk-to-krishna/internal/audio"
	"talk-to-krishna/internal/config"
	"talk-to-krishna/internal/handlers"
	"talk-to-krishna/internal/http"
	"talk-to-krishna/internal/indexer"
	"talk-to-krishna/internal/llm"
	"talk-to-krishna/internal/logging"
	"talk-to-krishna/internal/rag"
	"talk-to-krishna/internal/service"
	"talk-to-krishna/internal/storage"
	"talk-to-krishna/internal/tracer"
	"talk-to-krishna/internal/vectorstore"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API answers emotional and spiritual questions with guidance grounded
// in cited Bhagavad Gita verses.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: Talk to Krishna API
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	_, closeLog := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	defer func() {
		_ = closeLog()
	}()
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Init(ctx, tracer.Options{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		ServiceName: handlers.ServiceName,
	})
	if err != nil {
		slog.Warn("Tracing disabled", "error", err)
	}

	tuning, err := config.LoadTuning(cfg.TuningFile)
	if err != nil {
		log.Fatalf("Failed to load tuning: %v", err)
	}

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()
	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// The corpus is immutable for the life of the process. Any load failure
	// stops startup.
	store, err := indexer.LoadStore(ctx, storage.NewPassageRepo(db), tuning)
	if err != nil {
		log.Fatalf("Failed to load corpus: %v", err)
	}
	meta := store.Meta()
	stats := indexer.ComputeStats(store)
	slog.Info("Corpus loaded",
		"passages", store.Len(),
		"dimension", store.Dim(),
		"embedding_model", meta.EmbeddingModel,
		"index_version", stats.IndexVersion,
	)
	if meta.EmbeddingModel != "" && meta.EmbeddingModel != cfg.EmbeddingModelName {
		slog.Warn("Embedding model differs from the one the corpus was built with",
			"configured", cfg.EmbeddingModelName, "corpus", meta.EmbeddingModel)
	}

	completer, err := app.NewCompleter(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}
	baseEmbedder, err := app.NewEmbedder(ctx, cfg, store.Dim())
	if err != nil {
		log.Fatalf("Failed to create embedding client: %v", err)
	}
	embedder := llm.NewCachedEmbedder(baseEmbedder, cfg.EmbeddingCacheSize, cfg.EmbeddingCacheTTL)

	// Validate the embedding dimension (fail-fast). An unreachable provider
	// only degrades dense retrieval, so it is not fatal.
	checkCtx, cancelCheck := context.WithTimeout(ctx, 10*time.Second)
	sample, err := embedder.EmbedTexts(checkCtx, []string{"test"})
	cancelCheck()
	switch {
	case err != nil:
		slog.Warn("Embedding client unavailable, dense retrieval will fall back", "error", err)
	case len(sample) == 0 || len(sample[0]) != store.Dim():
		log.Fatalf("Embedding vector size mismatch: corpus has %d dimensions", store.Dim())
	default:
		slog.Info("Embedding client validated", "vector_size", store.Dim())
	}

	var dense rag.DenseIndex = vectorstore.NewMemoryIndex(store)
	var healthVectorStore handlers.CollectionChecker
	if cfg.DenseBackend == "qdrant" {
		qdrantStore, err := app.NewQdrant(cfg)
		if err != nil {
			log.Fatalf("Failed to create Qdrant client: %v", err)
		}
		defer func() {
			_ = qdrantStore.Close()
		}()
		if exists, err := qdrantStore.CollectionExists(ctx, cfg.QdrantCollection); err != nil || !exists {
			slog.Warn("Qdrant collection not ready, run corpusctl sync-qdrant", "collection", cfg.QdrantCollection, "error", err)
		}
		dense = vectorstore.NewQdrantIndex(qdrantStore, cfg.QdrantCollection, store)
		healthVectorStore = qdrantStore
	}
	slog.Info("Dense retrieval configured", "backend", cfg.DenseBackend)

	engine, err := rag.NewPipeline(store, dense, completer, embedder, tuning, rag.Options{
		AnswerModel: cfg.LLMModelName,
		FastModel:   cfg.LLMFastModelName,
		Timeout:     cfg.RequestTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}

	var dispatcher service.AudioDispatcher
	var clips handlers.ClipSource
	var audioDispatcher *audio.Dispatcher
	if cfg.AudioEnabled() {
		clipStore := audio.NewStore(cfg.AudioTTL)
		synth := llm.NewSpeechClient(cfg.TTSBaseURL, cfg.TTSAPIKey, cfg.TTSModelName)
		audioDispatcher, err = audio.NewDispatcher(synth, clipStore, audio.Options{
			Workers: cfg.AudioWorkers,
			Voice:   cfg.TTSVoice,
		})
		if err != nil {
			log.Fatalf("Failed to create audio dispatcher: %v", err)
		}
		dispatcher = audioDispatcher
		clips = clipStore
		slog.Info("Audio enabled", "workers", cfg.AudioWorkers, "voice", cfg.TTSVoice)
	} else {
		slog.Info("Audio disabled (set TTS_BASE_URL to enable)")
	}

	router := http.NewRouter(&http.Deps{
		AskService:     service.NewAskService(engine, dispatcher),
		Clips:          clips,
		AudioWait:      cfg.AudioWait,
		VectorStore:    healthVectorStore,
		CollectionName: cfg.QdrantCollection,
		CorpusStats:    stats,
		Version:        version,
	})

	// Start API server
	server := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("Starting API server", "addr", server.Addr, "version", version)
		slog.Debug("LLM configuration", "provider", cfg.LLMProvider, "model", cfg.LLMModelName, "fast_model", cfg.LLMFastModelName)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("API server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	if audioDispatcher != nil {
		if err := audioDispatcher.Release(5 * time.Second); err != nil {
			slog.Warn("Audio jobs still running at shutdown", "error", err)
		}
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		slog.Warn("Tracer shutdown failed", "error", err)
	}
}
