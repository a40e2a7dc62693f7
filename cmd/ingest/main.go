// Copyright 2025 RAG Assistant Project
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

// Command ingest loads markdown documents into the vector index: parse,
// chunk, embed, store. Chunk provenance goes to the metadata database so a
// re-run replaces a document's chunks instead of duplicating them.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/your-org/rag-assistant/internal/chroma"
	"github.com/your-org/rag-assistant/internal/chunker"
	"github.com/your-org/rag-assistant/internal/config"
	"github.com/your-org/rag-assistant/internal/genai"
	"github.com/your-org/rag-assistant/internal/metadata"
)

var (
	dataDir    string
	configPath string
	chunkSize  int
	overlap    int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest markdown documents into the vector index",
		RunE:  runIngest,
	}

	rootCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "directory containing markdown documents")
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.Flags().IntVar(&chunkSize, "chunk-size", chunker.DefaultChunkSize, "target chunk size in characters")
	rootCmd.Flags().IntVar(&overlap, "overlap", chunker.DefaultOverlap, "overlap between neighboring chunks")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runIngest(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	embedder, err := genai.NewEmbeddingClient(cfg.OpenAI.APIKey, cfg.OpenAI.Endpoint, logger)
	if err != nil {
		return fmt.Errorf("embedding client: %w", err)
	}

	chromaClient := chroma.NewClient(cfg.Chroma.URL, cfg.Chroma.CollectionName, logger)

	store, err := metadata.NewStore(cfg.Metadata.DBPath)
	if err != nil {
		return fmt.Errorf("metadata store: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := chromaClient.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("failed to prepare collection: %w", err)
	}

	files, err := findMarkdownFiles(dataDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no markdown files found in %s", dataDir)
	}

	splitter := chunker.NewSplitter(chunkSize, overlap)
	totalChunks := 0

	for _, path := range files {
		count, err := ingestFile(ctx, path, splitter, embedder, chromaClient, store, logger)
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}
		totalChunks += count
	}

	logger.Info("Ingestion complete",
		zap.Int("documents", len(files)),
		zap.Int("chunks", totalChunks),
	)
	return nil
}

// findMarkdownFiles lists .md files under dir, recursively
func findMarkdownFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(path), ".md") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return files, nil
}

// ingestFile pushes one document through parse, chunk, embed, store
func ingestFile(
	ctx context.Context,
	path string,
	splitter *chunker.Splitter,
	embedder *genai.EmbeddingClient,
	chromaClient *chroma.Client,
	store *metadata.Store,
	logger *zap.Logger,
) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}

	source := filepath.Base(path)
	title := documentTitle(string(raw), source)
	chunks := splitter.Split(chunker.ParseMarkdown(string(raw)))
	if len(chunks) == 0 {
		logger.Warn("Skipping empty document", zap.String("source", source))
		return 0, nil
	}

	embeddings, err := embedder.EmbedTexts(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}

	// Drop stale chunks from a previous run of the same document
	if _, err := store.DeleteSource(source); err != nil {
		return 0, fmt.Errorf("failed to clear old chunk metadata: %w", err)
	}

	documents := make([]chroma.Document, len(chunks))
	for i, chunk := range chunks {
		chunkID := fmt.Sprintf("%s-%d", strings.TrimSuffix(source, ".md"), i)
		documents[i] = chroma.Document{
			ID:      chunkID,
			Content: chunk,
			Metadata: map[string]string{
				"source": source,
				"title":  title,
			},
		}

		if err := store.Add(metadata.Entry{
			ChunkID:    chunkID,
			Source:     source,
			Title:      title,
			ChunkIndex: i,
		}); err != nil {
			return 0, fmt.Errorf("failed to record chunk metadata: %w", err)
		}
	}

	if err := chromaClient.AddDocuments(ctx, documents, embeddings); err != nil {
		return 0, fmt.Errorf("failed to store documents: %w", err)
	}

	logger.Info("Ingested document",
		zap.String("source", source),
		zap.Int("chunks", len(chunks)),
	)
	return len(chunks), nil
}

// documentTitle takes the first markdown heading, falling back to the filename
func documentTitle(content, fallback string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		}
	}
	return strings.TrimSuffix(fallback, ".md")
}
