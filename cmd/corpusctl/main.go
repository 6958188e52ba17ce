package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"talk-to-krishna/internal/app"
	"talk-to-krishna/internal/config"
	"talk-to-krishna/internal/corpus"
	"talk-to-krishna/internal/indexer"
	"talk-to-krishna/internal/logging"
	"talk-to-krishna/internal/storage"
	"talk-to-krishna/internal/vectorstore"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("corpusctl failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "corpusctl",
		Usage: "Build and inspect the verse corpus snapshot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Embed the dataset and replace the stored snapshot",
				Action: buildCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dataset",
						Aliases:  []string{"d"},
						Usage:    "Path to the verse dataset JSON file",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of passages embedded per request",
						Value: indexer.DefaultBatchSize,
					},
					&cli.BoolFlag{
						Name:  "sync-qdrant",
						Usage: "Upsert the new snapshot into Qdrant after building",
					},
				},
			},
			{
				Name:   "inspect",
				Usage:  "Print statistics of the stored snapshot",
				Action: inspectCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "passage",
						Usage: "Print one passage by id (e.g. 2.47) instead of statistics",
					},
				},
			},
			{
				Name:   "sync-qdrant",
				Usage:  "Upsert the stored snapshot into the Qdrant collection",
				Action: syncCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of points per upsert",
						Value: 64,
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(c.String("log-level")))); err != nil {
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.String("log-level"))
	}
	slog.SetDefault(slog.New(logging.NewHandler(os.Stderr, logging.Options{Level: level})))
	return nil
}

// environment loads configuration and opens the migrated database.
func environment() (*config.Config, *config.Tuning, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	tuning, err := config.LoadTuning(cfg.TuningFile)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return cfg, tuning, db, nil
}

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func buildCommand(c *cli.Context) error {
	ctx, stop := commandContext()
	defer stop()

	cfg, tuning, db, err := environment()
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	embedder, err := app.NewEmbedder(ctx, cfg, 0)
	if err != nil {
		return fmt.Errorf("failed to create embedding client: %w", err)
	}

	pipeline := indexer.NewPipeline(embedder, storage.NewPassageRepo(db), tuning, indexer.Options{
		EmbeddingModel: cfg.EmbeddingModelName,
		BatchSize:      c.Int("batch-size"),
	})
	store, stats, err := pipeline.BuildFile(ctx, c.String("dataset"))
	if err != nil {
		return err
	}

	if c.Bool("sync-qdrant") {
		if err := syncStore(ctx, cfg, store, 64); err != nil {
			return err
		}
	}
	return printJSON(c, stats)
}

type passageView struct {
	ID          string   `json:"id"`
	Speaker     string   `json:"speaker"`
	SourceText  string   `json:"source_text"`
	Translation string   `json:"translation"`
	Hindi       string   `json:"translation_hindi"`
	EmotionTags []string `json:"emotion_tags"`
	Keywords    []string `json:"keywords"`
	Dimension   int      `json:"dimension"`
}

func inspectCommand(c *cli.Context) error {
	ctx, stop := commandContext()
	defer stop()

	_, tuning, db, err := environment()
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	store, err := indexer.LoadStore(ctx, storage.NewPassageRepo(db), tuning)
	if err != nil {
		return err
	}

	if id := c.String("passage"); id != "" {
		p, ok := store.Get(id)
		if !ok {
			return fmt.Errorf("passage %s not found", id)
		}
		return printJSON(c, passageView{
			ID:          p.ID,
			Speaker:     p.Speaker,
			SourceText:  p.SourceText,
			Translation: p.Translation,
			Hindi:       p.TranslationHindi,
			EmotionTags: p.EmotionTags,
			Keywords:    p.Keywords,
			Dimension:   len(p.Embedding),
		})
	}
	return printJSON(c, indexer.ComputeStats(store))
}

func syncCommand(c *cli.Context) error {
	ctx, stop := commandContext()
	defer stop()

	cfg, tuning, db, err := environment()
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	store, err := indexer.LoadStore(ctx, storage.NewPassageRepo(db), tuning)
	if err != nil {
		return err
	}
	return syncStore(ctx, cfg, store, c.Int("batch-size"))
}

func syncStore(ctx context.Context, cfg *config.Config, store *corpus.Store, batchSize int) error {
	qdrantStore, err := app.NewQdrant(cfg)
	if err != nil {
		return fmt.Errorf("failed to create Qdrant client: %w", err)
	}
	defer func() {
		_ = qdrantStore.Close()
	}()

	synced, err := vectorstore.Sync(ctx, qdrantStore, cfg.QdrantCollection, store, batchSize)
	if err != nil {
		return fmt.Errorf("qdrant sync failed after %d points: %w", synced, err)
	}
	slog.Info("Qdrant collection synced", "collection", cfg.QdrantCollection, "points", synced)
	return nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
