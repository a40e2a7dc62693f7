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

	"github.com/your-org/rag-assistant/internal/genai"
)

// Prompts for the generation-tool variants. Each variant issues exactly one
// deterministic two-message (system + user) call with no streaming and no
// memory beyond what is passed in Params.
const (
	greetingPrompt = "Respond as a friendly assistant. If the message seems like a greeting " +
		"or informal question, reply accordingly."

	analyzePrompt = "Analyze the initial_response and determine if additional information is " +
		"needed based on what the query is asking and what is required to complete the answer. " +
		"If so, specify it as a simple, direct question without using any variables or abbreviations."

	finalAnswerPrompt = "Generate a comprehensive final answer based on the given information."
)

// GreetingTool generates a friendly reply to a casual message. It is not part
// of the dispatch Registry; the workflow engine invokes it directly on the
// greeting path.
type GreetingTool struct {
	generator Generator
}

// NewGreetingTool creates the greeting adapter
func NewGreetingTool(generator Generator) *GreetingTool {
	return &GreetingTool{generator: generator}
}

// Name returns the tool name
func (t *GreetingTool) Name() string { return "handle_human_message" }

// Description returns the tool description
func (t *GreetingTool) Description() string {
	return "Replies to greetings and casual messages."
}

// Execute generates a friendly reply to p.Query. Requires Query.
func (t *GreetingTool) Execute(ctx context.Context, p Params) (Result, error) {
	if strings.TrimSpace(p.Query) == "" {
		return Result{}, fmt.Errorf("%s: query parameter is required", t.Name())
	}

	reply, err := t.generator.Chat(ctx, []genai.Message{
		{Role: genai.RoleSystem, Content: greetingPrompt},
		{Role: genai.RoleUser, Content: fmt.Sprintf("Message: %s", p.Query)},
	})
	if err != nil {
		return Result{}, err
	}

	return Result{Response: reply}, nil
}

// AnalyzeTool decides whether the initial response needs supplementing and
// phrases the gap as a follow-up question suited to a vector-store query
type AnalyzeTool struct {
	generator Generator
}

// NewAnalyzeTool creates the analysis adapter
func NewAnalyzeTool(generator Generator) *AnalyzeTool {
	return &AnalyzeTool{generator: generator}
}

// Name returns the tool name
func (t *AnalyzeTool) Name() string { return KindAnalyze.String() }

// Description returns the tool description
func (t *AnalyzeTool) Description() string {
	return "Analyzes the response and determines if more information is needed."
}

// Execute analyzes the initial response. Requires Query and InitialResponse.
func (t *AnalyzeTool) Execute(ctx context.Context, p Params) (Result, error) {
	if strings.TrimSpace(p.Query) == "" {
		return Result{}, fmt.Errorf("%s: query parameter is required", t.Name())
	}
	if strings.TrimSpace(p.InitialResponse) == "" {
		return Result{}, fmt.Errorf("%s: initial_response parameter is required", t.Name())
	}

	analysis, err := t.generator.Chat(ctx, []genai.Message{
		{Role: genai.RoleSystem, Content: analyzePrompt},
		{Role: genai.RoleUser, Content: fmt.Sprintf(
			"Query: %s\nInitial Response: %s\n\nIs additional information required? "+
				"If yes, what specific information is needed? Please provide the follow-up question "+
				"in simple, clear language that is formulated to ask a vector store. "+
				"Only generate the follow-up question.",
			p.Query, p.InitialResponse)},
	})
	if err != nil {
		return Result{}, err
	}

	return Result{Response: analysis}, nil
}

// FinalAnswerTool synthesizes the final answer from the original draft and
// the additionally retrieved information
type FinalAnswerTool struct {
	generator Generator
}

// NewFinalAnswerTool creates the synthesis adapter
func NewFinalAnswerTool(generator Generator) *FinalAnswerTool {
	return &FinalAnswerTool{generator: generator}
}

// Name returns the tool name
func (t *FinalAnswerTool) Name() string { return KindFinalAnswer.String() }

// Description returns the tool description
func (t *FinalAnswerTool) Description() string {
	return "Generates the final answer based on the analysis."
}

// Execute synthesizes the final answer. Requires Query, InitialResponse, and
// AdditionalInfo.
func (t *FinalAnswerTool) Execute(ctx context.Context, p Params) (Result, error) {
	if strings.TrimSpace(p.Query) == "" {
		return Result{}, fmt.Errorf("%s: query parameter is required", t.Name())
	}
	if strings.TrimSpace(p.InitialResponse) == "" {
		return Result{}, fmt.Errorf("%s: initial_response parameter is required", t.Name())
	}
	if strings.TrimSpace(p.AdditionalInfo) == "" {
		return Result{}, fmt.Errorf("%s: additional_info parameter is required", t.Name())
	}

	answer, err := t.generator.Chat(ctx, []genai.Message{
		{Role: genai.RoleSystem, Content: finalAnswerPrompt},
		{Role: genai.RoleUser, Content: fmt.Sprintf(
			"Original query: %s\nInitial response: %s\nAdditional information: %s\n\n"+
				"Please provide a complete and accurate final answer.",
			p.Query, p.InitialResponse, p.AdditionalInfo)},
	})
	if err != nil {
		return Result{}, err
	}

	return Result{Response: answer}, nil
}
