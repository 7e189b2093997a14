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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/ragkit"
	"github.com/poiesic/ragkit/ai"
	"github.com/poiesic/ragkit/core"
	"github.com/poiesic/ragkit/search"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "ragkit",
		Usage: "Retrieval-augmented query engine over document collections",
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
				Name:   "ingest",
				Usage:  "Ingest JSONL documents into a collection",
				Action: ingestCommand,
				Flags: append(engineFlags(),
					&cli.StringFlag{
						Name:     "collection",
						Aliases:  []string{"c"},
						Usage:    "Collection to ingest into",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "JSONL input file (one document per line); '-' reads stdin",
						Value:   "-",
					},
				),
			},
			{
				Name:      "query",
				Usage:     "Run a hybrid query against a collection",
				ArgsUsage: "<query text>",
				Action:    queryCommand,
				Flags: append(engineFlags(),
					&cli.StringFlag{
						Name:    "collection",
						Aliases: []string{"c"},
						Usage:   "Collection to search (empty searches all)",
					},
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results",
						Value:   5,
					},
					&cli.StringSliceFlag{
						Name:  "filter",
						Usage: "Metadata filter as key=value (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "no-cache",
						Usage: "Bypass the result cache",
					},
					&cli.BoolFlag{
						Name:    "answer",
						Aliases: []string{"a"},
						Usage:   "Generate an answer grounded in the results",
					},
				),
			},
			{
				Name:   "collections",
				Usage:  "List stored collections",
				Action: collectionsCommand,
				Flags:  engineFlags(),
			},
			{
				Name:      "delete-collection",
				Usage:     "Delete a collection from storage, indexes, and cache",
				ArgsUsage: "<collection>",
				Action:    deleteCollectionCommand,
				Flags:     engineFlags(),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// engineFlags returns the flags shared by every command that opens an engine.
func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "host",
			Usage: "OpenAI-compatible service host URL for embedding and generation",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:  "generation-model",
			Usage: "Generation model name",
			Value: "qwen2.5:3b",
		},
		&cli.IntFlag{
			Name:  "dimension",
			Usage: "Embedding vector dimension (must match the embedding model)",
			Value: ragkit.DefaultDimension,
		},
	}
}

// openEngine builds an engine from the shared command flags.
func openEngine(c *cli.Context) (*ragkit.Engine, error) {
	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithGenerationModel(c.String("generation-model")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	engine, err := ragkit.NewEngine(c.String("db"),
		ragkit.WithAIConfig(aiConfig),
		ragkit.WithDimension(c.Int("dimension")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}

// ingestDocument is the JSONL wire format for one document.
type ingestDocument struct {
	ID       string            `json:"id,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	input := os.Stdin
	if path := c.String("file"); path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		input = f
	}

	var docs []*core.Document
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var in ingestDocument
		if err := json.Unmarshal([]byte(text), &in); err != nil {
			return fmt.Errorf("line %d: invalid JSON: %w", line, err)
		}
		docs = append(docs, &core.Document{
			ID:       in.ID,
			Content:  in.Content,
			Metadata: in.Metadata,
		})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents to ingest")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	collection := c.String("collection")
	if err := engine.Ingest(ctx, collection, docs...); err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Ingested %d documents into %q\n", len(docs), collection)
	return nil
}

func queryCommand(c *cli.Context) error {
	ctx := context.Background()

	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return fmt.Errorf("query text is required")
	}

	filters, err := parseFilters(c.StringSlice("filter"))
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	resp, err := engine.Query(ctx, search.QueryRequest{
		Text:           text,
		Collection:     c.String("collection"),
		TopK:           c.Int("top-k"),
		Filters:        filters,
		UseCache:       !c.Bool("no-cache"),
		GenerateAnswer: c.Bool("answer"),
	})
	if resp != nil {
		for i, r := range resp.Results {
			fmt.Printf("%d. [%.4f] %s\n   %s\n", i+1, r.Score, r.DocumentID, r.Content)
		}
		if resp.Answer != "" {
			fmt.Printf("\nAnswer:\n%s\n", resp.Answer)
		}
		if resp.CacheHit {
			fmt.Fprintln(os.Stderr, "(served from cache)")
		}
	}
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	return nil
}

func collectionsCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	collections, err := engine.Collections(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		fmt.Println(name)
	}
	return nil
}

func deleteCollectionCommand(c *cli.Context) error {
	collection := c.Args().First()
	if collection == "" {
		return fmt.Errorf("collection name is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	removed, err := engine.DeleteCollection(context.Background(), collection)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Deleted %d documents from %q\n", removed, collection)
	return nil
}

// parseFilters converts key=value strings into a filter map.
func parseFilters(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	filters := make(map[string]string, len(raw))
	for _, pair := range raw {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q: expected key=value", pair)
		}
		filters[key] = value
	}
	return filters, nil
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
