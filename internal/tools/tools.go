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

// Package tools provides the uniform adapters around the retrieval,
// generation, and web-search services. The set of tools is closed: a tagged
// Kind resolved through a static registry replaces runtime name lookup, so an
// unknown tool cannot be requested by a well-typed caller.
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/your-org/rag-assistant/internal/genai"
	"github.com/your-org/rag-assistant/internal/retrieval"
)

// Kind identifies one tool in the closed set
type Kind int

const (
	// KindRetrieval fetches results from the vector index
	KindRetrieval Kind = iota
	// KindWebSearch searches the web
	KindWebSearch
	// KindAnalyze determines whether more information is needed
	KindAnalyze
	// KindFinalAnswer synthesizes the final answer after escalation
	KindFinalAnswer
)

// String returns the tool name for logging
func (k Kind) String() string {
	switch k {
	case KindRetrieval:
		return "query_engine"
	case KindWebSearch:
		return "web_search_tool"
	case KindAnalyze:
		return "analyze_response"
	case KindFinalAnswer:
		return "generate_final_answer"
	default:
		return fmt.Sprintf("unknown_tool(%d)", int(k))
	}
}

// Params carries the inputs a tool may need. Each tool documents which
// fields it requires; missing required fields are an error.
type Params struct {
	Query           string
	InitialResponse string
	AdditionalInfo  string
}

// Result is a tool's output. Response is always set on success.
type Result struct {
	Response    string
	SourceNodes []string
	Source      string
}

// Tool is the single capability contract all adapters expose
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, p Params) (Result, error)
}

// Generator produces text from a chat prompt
type Generator interface {
	Chat(ctx context.Context, messages []genai.Message) (string, error)
}

// Retriever answers a query from the vector index
type Retriever interface {
	Query(ctx context.Context, query string) (retrieval.QueryResult, error)
}

// Registry is the static dispatch table over the closed tool set.
// All fields are populated at construction and shared read-only.
// The greeting adapter is deliberately absent: a friendly reply is an action
// of the classification step, not a dispatchable tool.
type Registry struct {
	retrieval   Tool
	webSearch   Tool
	analyze     Tool
	finalAnswer Tool
}

// NewRegistry builds the dispatch table from the three underlying services
func NewRegistry(retriever Retriever, searcher WebSearcher, generator Generator, maxWebResults int) *Registry {
	return &Registry{
		retrieval:   NewRetrievalTool(retriever),
		webSearch:   NewWebSearchTool(searcher, maxWebResults),
		analyze:     NewAnalyzeTool(generator),
		finalAnswer: NewFinalAnswerTool(generator),
	}
}

// Resolve returns the tool for a Kind
func (r *Registry) Resolve(kind Kind) (Tool, error) {
	switch kind {
	case KindRetrieval:
		return r.retrieval, nil
	case KindWebSearch:
		return r.webSearch, nil
	case KindAnalyze:
		return r.analyze, nil
	case KindFinalAnswer:
		return r.finalAnswer, nil
	default:
		return nil, fmt.Errorf("unknown tool kind %d", int(kind))
	}
}

// RetrievalTool wraps the vector-index query engine
type RetrievalTool struct {
	retriever Retriever
}

// NewRetrievalTool creates the retrieval adapter
func NewRetrievalTool(retriever Retriever) *RetrievalTool {
	return &RetrievalTool{retriever: retriever}
}

// Name returns the tool name
func (t *RetrievalTool) Name() string { return KindRetrieval.String() }

// Description returns the tool description
func (t *RetrievalTool) Description() string {
	return "Fetches results from the vector index based on the query."
}

// Execute answers p.Query from the index. Requires Query.
func (t *RetrievalTool) Execute(ctx context.Context, p Params) (Result, error) {
	if strings.TrimSpace(p.Query) == "" {
		return Result{}, fmt.Errorf("%s: query parameter is required", t.Name())
	}

	qr, err := t.retriever.Query(ctx, p.Query)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Response:    qr.Response,
		SourceNodes: qr.SourceNodes,
	}, nil
}
