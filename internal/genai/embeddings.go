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

package genai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	// EmbeddingModel defines the model to use for embeddings
	EmbeddingModel = openai.SmallEmbedding3
	// ExpectedEmbeddingDimensions defines the expected embedding dimensions
	ExpectedEmbeddingDimensions = 1536
)

// EmbeddingClient generates vector embeddings for queries and document chunks
type EmbeddingClient struct {
	client *openai.Client
	logger *zap.Logger
	model  openai.EmbeddingModel
}

// NewEmbeddingClient creates a new embedding client
func NewEmbeddingClient(apiKey, endpoint string, logger *zap.Logger) (*EmbeddingClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}

	return &EmbeddingClient{
		client: openai.NewClientWithConfig(cfg),
		logger: logger,
		model:  EmbeddingModel,
	}, nil
}

// EmbedTexts generates embeddings for multiple text chunks in one batch request
func (c *EmbeddingClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	c.logger.Debug("Creating embeddings",
		zap.Int("text_count", len(texts)),
		zap.String("model", string(c.model)),
	)

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, wrapAPIError("create embeddings", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("unexpected response: got %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, embedding := range resp.Data {
		if len(embedding.Embedding) != ExpectedEmbeddingDimensions {
			return nil, fmt.Errorf("embedding %d has %d dimensions, expected %d",
				i, len(embedding.Embedding), ExpectedEmbeddingDimensions)
		}
		embeddings[i] = embedding.Embedding
	}

	return embeddings, nil
}

// EmbedQuery generates an embedding for a single query text
func (c *EmbeddingClient) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if query == "" {
		return nil, fmt.Errorf("query text cannot be empty")
	}

	embeddings, err := c.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned for query")
	}

	return embeddings[0], nil
}
