// Package chroma wraps the ChromaDB REST API for vector storage and search.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client wraps the ChromaDB REST API
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new ChromaDB client
func NewClient(baseURL, collection string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Document represents a document chunk stored in ChromaDB
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// SearchResult represents a single passage returned by a vector search
type SearchResult struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Distance float64           `json:"distance"`
}

// queryRequest is the ChromaDB query payload
type queryRequest struct {
	QueryEmbeddings [][]float32 `json:"query_embeddings"`
	NResults        int         `json:"n_results"`
}

// queryResponse is the ChromaDB query response
type queryResponse struct {
	IDs       [][]string                 `json:"ids"`
	Documents [][]string                 `json:"documents"`
	Metadatas [][]map[string]interface{} `json:"metadatas"`
	Distances [][]float64                `json:"distances"`
}

// ChromaError represents an error response from ChromaDB
type ChromaError struct {
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

func (e ChromaError) Error() string {
	return fmt.Sprintf("ChromaDB error [%s]: %s", e.Type, e.Detail)
}

// makeRequest performs an HTTP request with structured error handling
func (c *Client) makeRequest(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		var chromaErr ChromaError
		if json.Unmarshal(body, &chromaErr) == nil && chromaErr.Detail != "" {
			return nil, chromaErr
		}

		return nil, fmt.Errorf("ChromaDB returned status %d: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}

// postJSON issues a POST with a JSON body against a collection endpoint
func (c *Client) postJSON(ctx context.Context, url string, payload interface{}) (*http.Response, error) {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.makeRequest(req)
}

// EnsureCollection creates the collection if it does not already exist
func (c *Client) EnsureCollection(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/v1/collections", c.baseURL)

	payload := map[string]interface{}{
		"name":          c.collection,
		"get_or_create": true,
	}

	resp, err := c.postJSON(ctx, url, payload)
	if err != nil {
		return fmt.Errorf("failed to ensure collection %q: %w", c.collection, err)
	}
	defer resp.Body.Close()

	c.logger.Info("Collection ready", zap.String("collection", c.collection))
	return nil
}

// AddDocuments adds documents with precomputed embeddings to the collection
func (c *Client) AddDocuments(ctx context.Context, documents []Document, embeddings [][]float32) error {
	if len(documents) != len(embeddings) {
		return fmt.Errorf("document count %d does not match embedding count %d", len(documents), len(embeddings))
	}

	url := fmt.Sprintf("%s/api/v1/collections/%s/add", c.baseURL, c.collection)

	var metadatas []map[string]string
	var ids []string
	var docTexts []string
	for _, doc := range documents {
		metadatas = append(metadatas, doc.Metadata)
		ids = append(ids, doc.ID)
		docTexts = append(docTexts, doc.Content)
	}

	payload := map[string]interface{}{
		"documents":  docTexts,
		"metadatas":  metadatas,
		"ids":        ids,
		"embeddings": embeddings,
	}

	resp, err := c.postJSON(ctx, url, payload)
	if err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Info("Added documents to ChromaDB",
		zap.String("collection", c.collection),
		zap.Int("document_count", len(documents)),
	)

	return nil
}

// Query performs a vector search and returns the nearest passages
func (c *Client) Query(ctx context.Context, queryEmbedding []float32, nResults int) ([]SearchResult, error) {
	url := fmt.Sprintf("%s/api/v1/collections/%s/query", c.baseURL, c.collection)

	resp, err := c.postJSON(ctx, url, queryRequest{
		QueryEmbeddings: [][]float32{queryEmbedding},
		NResults:        nResults,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer resp.Body.Close()

	var searchResp queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	var results []SearchResult
	if len(searchResp.IDs) > 0 {
		for i, id := range searchResp.IDs[0] {
			result := SearchResult{
				ID:      id,
				Content: searchResp.Documents[0][i],
			}
			if len(searchResp.Distances) > 0 && len(searchResp.Distances[0]) > i {
				result.Distance = searchResp.Distances[0][i]
			}
			if len(searchResp.Metadatas) > 0 && len(searchResp.Metadatas[0]) > i {
				result.Metadata = make(map[string]string)
				for k, v := range searchResp.Metadatas[0][i] {
					if str, ok := v.(string); ok {
						result.Metadata[k] = str
					}
				}
			}
			results = append(results, result)
		}
	}

	c.logger.Debug("Vector search completed",
		zap.String("collection", c.collection),
		zap.Int("result_count", len(results)),
	)

	return results, nil
}

// HealthCheck checks if ChromaDB is reachable
func (c *Client) HealthCheck(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/v1/heartbeat", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to check ChromaDB health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ChromaDB health check failed with status %d", resp.StatusCode)
	}

	return nil
}
