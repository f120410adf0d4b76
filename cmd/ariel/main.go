// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/ariel"
	"github.com/poiesic/ariel/config"
	"github.com/poiesic/ariel/ingestion"
	"github.com/poiesic/ariel/reembed"
	"github.com/poiesic/ariel/search"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "ariel",
		Usage: "Operational logbook ingestion and retrieval engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				Value:   "ariel.yaml",
			},
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
				Name:   "migrate",
				Usage:  "Apply pending schema migrations in dependency order",
				Action: migrateCommand,
			},
			{
				Name:   "ingest",
				Usage:  "Poll the source system once and ingest new entries",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "source",
						Usage: "Override the configured source URL or file path",
					},
					&cli.StringFlag{
						Name:  "adapter",
						Usage: "Override the configured adapter kind (http, file)",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Stream and count entries without writing anything",
					},
				},
			},
			{
				Name:   "watch",
				Usage:  "Poll the source system continuously with backoff",
				Action: watchCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "once",
						Usage: "Run a single poll and exit",
					},
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Override the configured poll interval",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Stream and count entries without writing anything",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Query the logbook",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "mode",
						Aliases: []string{"m"},
						Usage:   "Search mode (keyword, semantic, multi, rag, auto)",
						Value:   "auto",
					},
					&cli.IntFlag{
						Name:  "max-results",
						Usage: "Maximum number of entries to return",
						Value: 10,
					},
				},
			},
			{
				Name:   "enhance",
				Usage:  "Rerun one enhancement module over incomplete entries",
				Action: enhanceCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "module",
						Usage:    "Enhancement module name (text_embedding, semantic_processor)",
						Required: true,
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Backfill the embedding table for one model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "dimension",
						Usage: "Vector dimension (creates the table if missing)",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Report how many entries would be embedded",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-embed every entry, not just the incomplete ones",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of entries to process in each batch",
						Value: 100,
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show entry count, embedding tables, and last ingestion run",
				Action: statusCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openService loads the configuration and connects the engine.
func openService(c *cli.Context) (*ariel.Service, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	return ariel.Open(c.Context, cfg)
}

func migrateCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Migrate(c.Context); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Println("Migrations applied.")
	return nil
}

func ingestCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	if source := c.String("source"); source != "" {
		svc.Config().Ingestion.SourceURL = source
	}

	scheduler, err := svc.NewScheduler(c.String("adapter"))
	if err != nil {
		return err
	}
	defer scheduler.Release()

	result, err := scheduler.PollOnce(c.Context, c.Bool("dry-run"))
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	printPollResult(result)
	return nil
}

func watchCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	if interval := c.Duration("interval"); interval > 0 {
		svc.Config().Ingestion.PollIntervalSeconds = int(interval / time.Second)
	}

	scheduler, err := svc.NewScheduler("")
	if err != nil {
		return err
	}
	defer scheduler.Release()

	if c.Bool("once") {
		result, pollErr := scheduler.PollOnce(c.Context, c.Bool("dry-run"))
		if pollErr != nil {
			return fmt.Errorf("poll failed: %w", pollErr)
		}
		printPollResult(result)
		return nil
	}

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintln(os.Stderr, "Watching source system. Press Ctrl+C to stop.")
	if err := scheduler.Start(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("watch stopped: %w", err)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a query argument is required")
	}

	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	mode, err := search.ParseMode(c.String("mode"), svc.Config().Pipelines.RAG.Enabled)
	if err != nil {
		return err
	}

	searcher, err := svc.NewSearcher(search.WithTimeout(svc.SearchTimeout()))
	if err != nil {
		return err
	}

	result, err := searcher.Search(c.Context, mode, search.Query{
		Text:       query,
		MaxResults: c.Int("max-results"),
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if result.Answer != "" {
		fmt.Println(result.Answer)
		fmt.Println()
	}
	for _, entry := range result.Entries {
		when := "Unknown"
		if !entry.Timestamp.IsZero() {
			when = entry.Timestamp.UTC().Format(time.RFC3339)
		}
		fmt.Printf("[#%s] %s by %s\n", entry.EntryID, when, entry.Author)
		if entry.Title != "" {
			fmt.Printf("  %s\n", entry.Title)
		}
	}
	if len(result.Citations) > 0 {
		fmt.Printf("\nCited: %s\n", strings.Join(result.Citations, ", "))
	}
	return nil
}

func enhanceCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	processed, failed, err := svc.Enhance(c.Context, c.String("module"))
	if err != nil {
		return fmt.Errorf("enhancement failed: %w", err)
	}
	fmt.Printf("Enhanced %d entries (%d failed).\n", processed, failed)
	return nil
}

func reembedCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	model := c.String("model")
	if dimension := c.Int("dimension"); dimension > 0 {
		if err := svc.EnsureEmbeddingTable(c.Context, model, dimension); err != nil {
			return fmt.Errorf("create embedding table: %w", err)
		}
	}

	rcfg := reembed.DefaultConfig()
	rcfg.BatchSize = c.Int("batch-size")
	rcfg.DryRun = c.Bool("dry-run")
	rcfg.Force = c.Bool("force")

	reembedder, err := svc.NewReembedder(model, rcfg, os.Stderr)
	if err != nil {
		return err
	}

	if err := reembedder.Run(c.Context); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	svc, err := openService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	status, err := svc.Status(c.Context)
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}

	fmt.Printf("Entries: %d\n", status.Entries)
	if len(status.EmbeddingTables) == 0 {
		fmt.Println("Embedding tables: none")
	} else {
		fmt.Println("Embedding tables:")
		for _, table := range status.EmbeddingTables {
			fmt.Printf("  %s (%s): %d rows, %d dimensions\n", table.Model, table.Table, table.Rows, table.Dimension)
		}
	}
	if status.LastRun == nil {
		fmt.Println("Last successful run: none")
	} else {
		fmt.Printf("Last successful run: #%d at %s (+%d ~%d !%d)\n",
			status.LastRun.ID,
			status.LastRun.CompletedAt.UTC().Format(time.RFC3339),
			status.LastRun.EntriesAdded,
			status.LastRun.EntriesUpdated,
			status.LastRun.EntriesFailed)
	}
	return nil
}

func printPollResult(result *ingestion.PollResult) {
	if result.Skipped {
		fmt.Println("Skipped: initial ingest required (run with a full window first).")
		return
	}
	verb := "Ingested"
	if result.DryRun {
		verb = "Would ingest"
	}
	fmt.Printf("%s %d entries: %d added, %d updated, %d failed.\n",
		verb, result.EntriesSeen, result.EntriesAdded, result.EntriesUpdated, result.EntriesFailed)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
