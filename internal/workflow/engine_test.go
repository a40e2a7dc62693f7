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

package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/rag-assistant/internal/genai"
	"github.com/your-org/rag-assistant/internal/retrieval"
	"github.com/your-org/rag-assistant/internal/router"
	"github.com/your-org/rag-assistant/internal/serpapi"
	"github.com/your-org/rag-assistant/internal/tools"
)

type fakeClassifier struct {
	intent router.Intent
	err    error
	calls  int
}

func (f *fakeClassifier) Classify(_ context.Context, _ string) (router.Intent, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.intent, nil
}

// blockingClassifier waits for the cycle deadline
type blockingClassifier struct{}

func (blockingClassifier) Classify(ctx context.Context, _ string) (router.Intent, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// fakeRetriever records the queries it served, in order, into ops
type fakeRetriever struct {
	responses []string
	queries   []string
	err       error
	ops       *[]string
}

func (f *fakeRetriever) Query(_ context.Context, query string) (retrieval.QueryResult, error) {
	if f.ops != nil {
		*f.ops = append(*f.ops, "retrieve")
	}
	f.queries = append(f.queries, query)
	if f.err != nil {
		return retrieval.QueryResult{}, f.err
	}
	response := "retrieved"
	if len(f.responses) > 0 {
		response = f.responses[0]
		f.responses = f.responses[1:]
	}
	return retrieval.QueryResult{Response: response, SourceNodes: []string{"node"}}, nil
}

type fakeSearcher struct {
	results []serpapi.OrganicResult
	calls   int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ int) ([]serpapi.OrganicResult, error) {
	f.calls++
	return f.results, nil
}

// fakeGenerator serves responses from a queue, one per Chat call
type fakeGenerator struct {
	responses []string
	calls     int
	ops       *[]string
}

func (f *fakeGenerator) Chat(_ context.Context, _ []genai.Message) (string, error) {
	if f.ops != nil {
		*f.ops = append(*f.ops, "generate")
	}
	f.calls++
	if len(f.responses) == 0 {
		return "generated", nil
	}
	response := f.responses[0]
	f.responses = f.responses[1:]
	return response, nil
}

type fakeGreeting struct {
	response string
	err      error
	calls    int
}

func (f *fakeGreeting) Name() string        { return "handle_human_message" }
func (f *fakeGreeting) Description() string { return "test greeting" }

func (f *fakeGreeting) Execute(_ context.Context, _ tools.Params) (tools.Result, error) {
	f.calls++
	if f.err != nil {
		return tools.Result{}, f.err
	}
	return tools.Result{Response: f.response}, nil
}

type engineFixture struct {
	classifier *fakeClassifier
	retriever  *fakeRetriever
	searcher   *fakeSearcher
	generator  *fakeGenerator
	greeting   *fakeGreeting
	engine     *Engine
}

func newEngineFixture(intent router.Intent) *engineFixture {
	f := &engineFixture{
		classifier: &fakeClassifier{intent: intent},
		retriever:  &fakeRetriever{},
		searcher:   &fakeSearcher{},
		generator:  &fakeGenerator{},
		greeting:   &fakeGreeting{response: "Hello! How can I help you today?"},
	}
	registry := tools.NewRegistry(f.retriever, f.searcher, f.generator, 5)
	f.engine = NewEngine(f.classifier, registry, f.greeting, time.Second, zap.NewNop())
	return f
}

func TestGreetingBypassesToolDispatch(t *testing.T) {
	f := newEngineFixture(router.IntentGreeting)
	sc := NewSessionContext("hello there")

	result := f.engine.ProcessQuery(context.Background(), "hello there", sc)

	require.Empty(t, result.Error)
	assert.Equal(t, "Hello! How can I help you today?", result.Response)
	assert.False(t, result.RequiresFeedback)

	assert.Equal(t, 1, f.greeting.calls)
	assert.Empty(t, f.retriever.queries, "greeting must not hit the index")
	assert.Zero(t, f.searcher.calls, "greeting must not hit the web")
	assert.Zero(t, f.generator.calls, "greeting must not dispatch a generation tool")
}

func TestIndexSearchPausesForFeedback(t *testing.T) {
	f := newEngineFixture(router.IntentIndexSearch)
	f.retriever.responses = []string{"Sound travels at 344 m/s in air."}
	sc := NewSessionContext("speed of sound")

	result := f.engine.ProcessQuery(context.Background(), "speed of sound", sc)

	require.Empty(t, result.Error)
	assert.True(t, result.RequiresFeedback)
	assert.Equal(t, "Sound travels at 344 m/s in air.", result.Response)
	assert.Equal(t, "Initial response", result.Message)

	// The draft is stored so feedback can act on it later
	assert.Equal(t, "Sound travels at 344 m/s in air.", sc.InitialResponse)
	assert.Equal(t, "speed of sound", sc.OriginalQuery)
	assert.Equal(t, []string{"speed of sound"}, f.retriever.queries)
}

func TestWebSearchIsTerminal(t *testing.T) {
	f := newEngineFixture(router.IntentWebSearch)
	f.searcher.results = []serpapi.OrganicResult{
		{Title: "Election news", Snippet: "latest results", Link: "https://news.example"},
	}
	sc := NewSessionContext("election results")

	result := f.engine.ProcessQuery(context.Background(), "election results", sc)

	require.Empty(t, result.Error)
	assert.False(t, result.RequiresFeedback, "web path never asks for feedback")
	assert.Equal(t, "Web search results provided.", result.Message)
	assert.Contains(t, result.Response, "Title: Election news")
	assert.Empty(t, sc.InitialResponse)
}

func TestWebSearchNoResultsStillSucceeds(t *testing.T) {
	f := newEngineFixture(router.IntentWebSearch)
	sc := NewSessionContext("zxqv")

	result := f.engine.ProcessQuery(context.Background(), "zxqv", sc)

	require.Empty(t, result.Error)
	assert.Equal(t, tools.NoResultsResponse, result.Response)
}

func TestFeedbackYesFinalizesVerbatim(t *testing.T) {
	for _, feedback := range []string{"yes", "YES", "Yes", "  yes  "} {
		t.Run(feedback, func(t *testing.T) {
			f := newEngineFixture(router.IntentIndexSearch)
			sc := &SessionContext{
				OriginalQuery:   "what is an echo",
				InitialResponse: "An echo is a reflected sound wave.",
			}

			result := f.engine.HandleFeedback(context.Background(), feedback, sc)

			require.Empty(t, result.Error)
			assert.Equal(t, "An echo is a reflected sound wave.", result.Response)
			assert.Equal(t, "User confirmed satisfactory response.", result.Message)
			assert.False(t, result.RequiresFeedback)

			// Confirmation must not touch any service
			assert.Zero(t, f.classifier.calls)
			assert.Zero(t, f.generator.calls)
			assert.Empty(t, f.retriever.queries)

			// Confirming twice yields the same answer
			again := f.engine.HandleFeedback(context.Background(), feedback, sc)
			assert.Equal(t, result, again)
		})
	}
}

func TestFeedbackNoRunsEscalationChain(t *testing.T) {
	var ops []string
	f := newEngineFixture(router.IntentIndexSearch)
	f.generator.ops = &ops
	f.retriever.ops = &ops
	f.generator.responses = []string{
		"What is the difference between echo and reverberation?",
		"final synthesized answer",
	}
	f.retriever.responses = []string{"Reverberation is the persistence of sound."}

	sc := &SessionContext{
		OriginalQuery:   "what is an echo",
		InitialResponse: "An echo is a reflected sound wave.",
	}

	result := f.engine.HandleFeedback(context.Background(), "no", sc)

	require.Empty(t, result.Error)
	assert.Equal(t, "final synthesized answer", result.Response)
	assert.False(t, result.RequiresFeedback)

	// Analysis runs before the escalation retrieval, synthesis last
	assert.Equal(t, []string{"generate", "retrieve", "generate"}, ops)

	assert.Equal(t, "What is the difference between echo and reverberation?", sc.FollowUpQuery)
	assert.Equal(t, "Reverberation is the persistence of sound.", sc.AdditionalInfo)
	assert.Equal(t, []string{"What is the difference between echo and reverberation?"}, f.retriever.queries)
}

func TestFeedbackWithoutInitialResponse(t *testing.T) {
	f := newEngineFixture(router.IntentIndexSearch)
	sc := &SessionContext{OriginalQuery: "what is an echo"}

	result := f.engine.HandleFeedback(context.Background(), "no", sc)

	require.NotEmpty(t, result.Error, "absent prerequisite must surface as an error result")
	assert.Contains(t, result.Error, "initial_response")
	assert.Empty(t, result.Response)
}

func TestClassificationFailureReturnedAsData(t *testing.T) {
	f := newEngineFixture(router.IntentIndexSearch)
	f.classifier.err = errors.New("model unavailable")
	sc := NewSessionContext("speed of sound")

	result := f.engine.ProcessQuery(context.Background(), "speed of sound", sc)

	require.NotEmpty(t, result.Error)
	assert.Contains(t, result.Error, "classification")
	assert.Empty(t, result.Response)
}

func TestToolFailureReturnedAsData(t *testing.T) {
	f := newEngineFixture(router.IntentIndexSearch)
	f.retriever.err = errors.New("index unreachable")
	sc := NewSessionContext("speed of sound")

	result := f.engine.ProcessQuery(context.Background(), "speed of sound", sc)

	require.NotEmpty(t, result.Error)
	assert.Contains(t, result.Error, "query_engine")
	assert.False(t, result.RequiresFeedback)
}

func TestGreetingFailureReturnedAsData(t *testing.T) {
	f := newEngineFixture(router.IntentGreeting)
	f.greeting.err = errors.New("model unavailable")
	sc := NewSessionContext("hi")

	result := f.engine.ProcessQuery(context.Background(), "hi", sc)

	require.NotEmpty(t, result.Error)
	assert.Contains(t, result.Error, "generation")
}

func TestCycleTimeout(t *testing.T) {
	registry := tools.NewRegistry(&fakeRetriever{}, &fakeSearcher{}, &fakeGenerator{}, 5)
	engine := NewEngine(blockingClassifier{}, registry, &fakeGreeting{}, 10*time.Millisecond, zap.NewNop())
	sc := NewSessionContext("slow query")

	result := engine.ProcessQuery(context.Background(), "slow query", sc)

	assert.Equal(t, "timeout", result.Error)
	assert.Empty(t, result.Response)
}

func TestNormalizeDecision(t *testing.T) {
	testCases := []struct {
		feedback string
		want     Decision
	}{
		{"yes", DecisionSatisfied},
		{"YES", DecisionSatisfied},
		{"  Yes ", DecisionSatisfied},
		{"no", DecisionUnsatisfied},
		{"yes please", DecisionUnsatisfied},
		{"", DecisionUnsatisfied},
		{"y", DecisionUnsatisfied},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, NormalizeDecision(tc.feedback), "feedback %q", tc.feedback)
	}
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateStart:            "start",
		StateClassifying:      "classifying",
		StateDispatching:      "dispatching",
		StateAwaitingFeedback: "awaiting_feedback",
		StateAnalyzing:        "analyzing",
		StateEscalating:       "escalating",
		StateSynthesizing:     "synthesizing",
		StateDone:             "done",
	}
	for state, want := range states {
		assert.Equal(t, want, state.String())
	}
}
