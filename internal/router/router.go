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

// Package router classifies a raw user query into one of three intents using
// the generation service.
package router

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/your-org/rag-assistant/internal/genai"
)

// Intent is the coarse category assigned to a query
type Intent string

const (
	// IntentGreeting marks casual messages answered directly by the model
	IntentGreeting Intent = "greeting"
	// IntentIndexSearch marks queries answered from the vector index
	IntentIndexSearch Intent = "index_search"
	// IntentWebSearch marks everything else, answered by a live web search
	IntentWebSearch Intent = "web_search"
)

const classifyPrompt = `You are an expert in routing user queries to the appropriate category: 'greeting', 'index_search', or 'web_search'.

If the user's message is a greeting or a casual interaction, categorize it as 'greeting'.
Use 'index_search' for queries related to sound and its properties. This includes but is not limited to:
Production and propagation of sound waves
Wave characteristics (frequency, amplitude, etc.)
Sound reflection, echo, and reverberation
Speed of sound in different media
Human hearing and perception of sound
Infrasound, ultrasound, and their applications (e.g., medical, industrial)
You do not need to rely strictly on keywords but should focus on whether the query is broadly related to sound and its scientific aspects.
For all other queries that don't fit these categories, choose 'web_search'.

Your only response should be one of the following: 'greeting', 'index_search', or 'web_search'.`

// Generator produces text from a chat prompt
type Generator interface {
	Chat(ctx context.Context, messages []genai.Message) (string, error)
}

// Router classifies queries with a single generation call
type Router struct {
	generator Generator
	logger    *zap.Logger
}

// New creates a Router
func New(generator Generator, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		generator: generator,
		logger:    logger,
	}
}

// Classify assigns an intent to the query. Model output that matches none of
// the three labels falls back to web_search, the broadest category, so no
// query is silently dropped. A generation failure propagates without retry.
func (r *Router) Classify(ctx context.Context, query string) (Intent, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query cannot be empty")
	}

	raw, err := r.generator.Chat(ctx, []genai.Message{
		{Role: genai.RoleSystem, Content: classifyPrompt},
		{Role: genai.RoleUser, Content: fmt.Sprintf("Query: %s", query)},
	})
	if err != nil {
		return "", fmt.Errorf("classification call failed: %w", err)
	}

	normalized := strings.ToLower(strings.TrimSpace(raw))

	var intent Intent
	switch normalized {
	case string(IntentGreeting):
		intent = IntentGreeting
	case string(IntentIndexSearch):
		intent = IntentIndexSearch
	case string(IntentWebSearch):
		intent = IntentWebSearch
	default:
		r.logger.Warn("Unrecognized classification output, defaulting to web search",
			zap.String("raw_output", raw),
		)
		intent = IntentWebSearch
	}

	r.logger.Info("Query classified",
		zap.String("query", query),
		zap.String("intent", string(intent)),
	)

	return intent, nil
}
