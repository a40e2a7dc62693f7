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

package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/your-org/rag-assistant/internal/serpapi"
)

const (
	// NoResultsResponse is returned verbatim when the search yields nothing
	NoResultsResponse = "No results found."
	// WebSource marks results that came from the live web
	WebSource = "Web"
	// DefaultMaxWebResults caps how many organic results are formatted
	DefaultMaxWebResults = 5

	resultSeparator = "\n---\n"
	cacheTTL        = 5 * time.Minute
)

// WebSearcher performs a live web search
type WebSearcher interface {
	Search(ctx context.Context, query string, num int) ([]serpapi.OrganicResult, error)
}

// WebSearchTool wraps the web-search service with a short-lived result cache
type WebSearchTool struct {
	searcher   WebSearcher
	maxResults int
	cache      *gocache.Cache
}

// NewWebSearchTool creates the web-search adapter
func NewWebSearchTool(searcher WebSearcher, maxResults int) *WebSearchTool {
	if maxResults <= 0 {
		maxResults = DefaultMaxWebResults
	}
	return &WebSearchTool{
		searcher:   searcher,
		maxResults: maxResults,
		cache:      gocache.New(cacheTTL, 2*cacheTTL),
	}
}

// Name returns the tool name
func (t *WebSearchTool) Name() string { return KindWebSearch.String() }

// Description returns the tool description
func (t *WebSearchTool) Description() string {
	return "Searches the web for the query."
}

// Execute searches the web for p.Query. Requires Query. Zero results produce
// the literal NoResultsResponse, never an error.
func (t *WebSearchTool) Execute(ctx context.Context, p Params) (Result, error) {
	if strings.TrimSpace(p.Query) == "" {
		return Result{}, fmt.Errorf("%s: query parameter is required", t.Name())
	}

	if cached, found := t.cache.Get(p.Query); found {
		if result, ok := cached.(Result); ok {
			return result, nil
		}
	}

	organic, err := t.searcher.Search(ctx, p.Query, t.maxResults)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Response: formatOrganicResults(organic),
		Source:   WebSource,
	}

	t.cache.Set(p.Query, result, gocache.DefaultExpiration)
	return result, nil
}

// formatOrganicResults renders results as Title / Snippet / Link blocks
func formatOrganicResults(results []serpapi.OrganicResult) string {
	if len(results) == 0 {
		return NoResultsResponse
	}

	formatted := make([]string, len(results))
	for i, r := range results {
		formatted[i] = fmt.Sprintf("Title: %s\nSnippet: %s\nLink: %s", r.Title, r.Snippet, r.Link)
	}
	return strings.Join(formatted, resultSeparator)
}
