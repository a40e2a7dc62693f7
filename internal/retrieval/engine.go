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

// Package retrieval implements the vector-index query engine: it embeds a
// query, fetches the nearest passages from ChromaDB, and generates an answer
// grounded strictly in those passages.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/your-org/rag-assistant/internal/chroma"
	"github.com/your-org/rag-assistant/internal/genai"
)

// DefaultTopK is the default number of passages fetched per query
const DefaultTopK = 5

const groundedAnswerPrompt = "Generate a response based ONLY on the source information. " +
	"You can make abbreviations and assign variables if needed but do not assume any numerical " +
	"or categorical value which is not present in the source information. " +
	"Formulate your answers in a proper fashion like writing the answers for an exam."

// Embedder turns query text into a vector
type Embedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Searcher performs a vector search against the index
type Searcher interface {
	Query(ctx context.Context, queryEmbedding []float32, nResults int) ([]chroma.SearchResult, error)
}

// Generator produces text from a chat prompt
type Generator interface {
	Chat(ctx context.Context, messages []genai.Message) (string, error)
}

// QueryResult holds the generated answer and the raw passages backing it
type QueryResult struct {
	Response    string
	SourceNodes []string
}

// Engine is the retrieval service
type Engine struct {
	embedder  Embedder
	searcher  Searcher
	generator Generator
	topK      int
	logger    *zap.Logger
}

// NewEngine creates a retrieval engine. topK <= 0 falls back to DefaultTopK.
func NewEngine(embedder Embedder, searcher Searcher, generator Generator, topK int, logger *zap.Logger) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		embedder:  embedder,
		searcher:  searcher,
		generator: generator,
		topK:      topK,
		logger:    logger,
	}
}

// Query answers a question from the vector index. The returned SourceNodes are
// the raw passages the answer was grounded in, kept for auditability and for
// the escalation prompt.
func (e *Engine) Query(ctx context.Context, query string) (QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return QueryResult{}, fmt.Errorf("query cannot be empty")
	}

	embedding, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return QueryResult{}, fmt.Errorf("failed to embed query: %w", err)
	}

	passages, err := e.searcher.Query(ctx, embedding, e.topK)
	if err != nil {
		return QueryResult{}, fmt.Errorf("vector search failed: %w", err)
	}

	sourceNodes := make([]string, len(passages))
	for i, p := range passages {
		sourceNodes[i] = p.Content
	}

	e.logger.Debug("Retrieved passages for query",
		zap.String("query", query),
		zap.Int("passage_count", len(sourceNodes)),
	)

	response, err := e.generator.Chat(ctx, []genai.Message{
		{Role: genai.RoleSystem, Content: groundedAnswerPrompt},
		{Role: genai.RoleUser, Content: fmt.Sprintf("Query: %s\n\nSource Information:\n%s", query, strings.Join(sourceNodes, " "))},
	})
	if err != nil {
		return QueryResult{}, fmt.Errorf("failed to generate grounded answer: %w", err)
	}

	return QueryResult{
		Response:    response,
		SourceNodes: sourceNodes,
	}, nil
}
