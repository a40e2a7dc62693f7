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

// Package workflow implements the query-answering orchestrator: an explicit
// finite-state machine that classifies a query, dispatches exactly one tool,
// pauses for user feedback, and on dissatisfaction runs the
// analyze → re-retrieve → synthesize escalation chain.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/rag-assistant/internal/router"
	"github.com/your-org/rag-assistant/internal/tools"
)

// DefaultCycleTimeout bounds the wall-clock time of one cycle
const DefaultCycleTimeout = 20 * time.Second

// State enumerates the machine's positions
type State int

const (
	// StateStart receives the InputEvent
	StateStart State = iota
	// StateClassifying acts on the routing decision
	StateClassifying
	// StateDispatching executes the first tool call
	StateDispatching
	// StateAwaitingFeedback waits for the user's verdict
	StateAwaitingFeedback
	// StateAnalyzing derives the follow-up query
	StateAnalyzing
	// StateEscalating re-queries the index with the follow-up
	StateEscalating
	// StateSynthesizing produces the final answer
	StateSynthesizing
	// StateDone is terminal
	StateDone
)

// String returns the state name for logging
func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateClassifying:
		return "classifying"
	case StateDispatching:
		return "dispatching"
	case StateAwaitingFeedback:
		return "awaiting_feedback"
	case StateAnalyzing:
		return "analyzing"
	case StateEscalating:
		return "escalating"
	case StateSynthesizing:
		return "synthesizing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Classifier assigns an intent to a raw query
type Classifier interface {
	Classify(ctx context.Context, query string) (router.Intent, error)
}

// Engine sequences one query/feedback cycle through the state machine.
// It is stateless with respect to session data and safe for concurrent use:
// all per-request state lives in the SessionContext owned by the caller.
type Engine struct {
	classifier   Classifier
	registry     *tools.Registry
	greeting     tools.Tool
	cycleTimeout time.Duration
	logger       *zap.Logger
}

// NewEngine creates a workflow engine. cycleTimeout <= 0 falls back to
// DefaultCycleTimeout.
func NewEngine(classifier Classifier, registry *tools.Registry, greeting tools.Tool, cycleTimeout time.Duration, logger *zap.Logger) *Engine {
	if cycleTimeout <= 0 {
		cycleTimeout = DefaultCycleTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		classifier:   classifier,
		registry:     registry,
		greeting:     greeting,
		cycleTimeout: cycleTimeout,
		logger:       logger,
	}
}

// ProcessQuery runs the initial cycle for a new query. The result is either
// terminal (greeting or web search), a draft awaiting feedback
// (RequiresFeedback set), or an error carried as data.
func (e *Engine) ProcessQuery(ctx context.Context, query string, sc *SessionContext) Result {
	ctx, cancel := context.WithTimeout(ctx, e.cycleTimeout)
	defer cancel()

	return e.run(ctx, StateStart, InputEvent{Query: query}, sc)
}

// HandleFeedback resumes a paused cycle with the user's verdict. This is the
// feedback-handler entry point: "yes" in any case finalizes the stored
// initial response without further service calls; anything else drives the
// escalation chain.
func (e *Engine) HandleFeedback(ctx context.Context, feedback string, sc *SessionContext) Result {
	ctx, cancel := context.WithTimeout(ctx, e.cycleTimeout)
	defer cancel()

	decision := NormalizeDecision(feedback)
	return e.run(ctx, StateAwaitingFeedback, UserDecisionEvent{Decision: decision}, sc)
}

// run drives the machine until a StopEvent
func (e *Engine) run(ctx context.Context, state State, ev Event, sc *SessionContext) Result {
	for {
		next, out, err := e.step(ctx, state, ev, sc)
		if err != nil {
			return e.errorResult(ctx, state, err)
		}

		e.logger.Debug("State transition",
			zap.String("from", state.String()),
			zap.String("to", next.String()),
		)

		if stop, ok := out.(StopEvent); ok {
			return stop.Result
		}
		state, ev = next, out
	}
}

// step is the transition function: one event in, one event out
func (e *Engine) step(ctx context.Context, state State, ev Event, sc *SessionContext) (State, Event, error) {
	switch state {
	case StateStart:
		input, ok := ev.(InputEvent)
		if !ok {
			return StateDone, nil, fmt.Errorf("unexpected event %T in state %s", ev, state)
		}
		return e.stepStart(ctx, input, sc)

	case StateClassifying:
		classified, ok := ev.(classifiedEvent)
		if !ok {
			return StateDone, nil, fmt.Errorf("unexpected event %T in state %s", ev, state)
		}
		return e.stepClassifying(ctx, classified)

	case StateDispatching:
		call, ok := ev.(ToolCallEvent)
		if !ok {
			return StateDone, nil, fmt.Errorf("unexpected event %T in state %s", ev, state)
		}
		return e.stepDispatching(ctx, call, sc)

	case StateAwaitingFeedback:
		decision, ok := ev.(UserDecisionEvent)
		if !ok {
			return StateDone, nil, fmt.Errorf("unexpected event %T in state %s", ev, state)
		}
		return e.stepAwaitingFeedback(decision, sc)

	case StateAnalyzing:
		call, ok := ev.(ToolCallEvent)
		if !ok {
			return StateDone, nil, fmt.Errorf("unexpected event %T in state %s", ev, state)
		}
		return e.stepAnalyzing(ctx, call, sc)

	case StateEscalating:
		call, ok := ev.(ToolCallEvent)
		if !ok {
			return StateDone, nil, fmt.Errorf("unexpected event %T in state %s", ev, state)
		}
		return e.stepEscalating(ctx, call, sc)

	case StateSynthesizing:
		call, ok := ev.(ToolCallEvent)
		if !ok {
			return StateDone, nil, fmt.Errorf("unexpected event %T in state %s", ev, state)
		}
		return e.stepSynthesizing(ctx, call)

	default:
		return StateDone, nil, fmt.Errorf("no transition defined for state %s", state)
	}
}

// stepStart records the query and classifies it
func (e *Engine) stepStart(ctx context.Context, input InputEvent, sc *SessionContext) (State, Event, error) {
	if sc.OriginalQuery == "" {
		sc.OriginalQuery = input.Query
	}

	intent, err := e.classifier.Classify(ctx, input.Query)
	if err != nil {
		return StateDone, nil, &ClassificationError{Err: err}
	}

	return StateClassifying, classifiedEvent{Intent: intent, Query: input.Query}, nil
}

// stepClassifying turns the routing decision into an action. The greeting
// path replies inline without dispatching a tool; the other two intents emit
// a ToolCallEvent.
func (e *Engine) stepClassifying(ctx context.Context, classified classifiedEvent) (State, Event, error) {
	switch classified.Intent {
	case router.IntentGreeting:
		reply, err := e.greeting.Execute(ctx, tools.Params{Query: classified.Query})
		if err != nil {
			return StateDone, nil, &UpstreamServiceError{Service: "generation", Err: err}
		}
		return StateDone, StopEvent{Result: Result{
			Message:  reply.Response,
			Response: reply.Response,
		}}, nil

	case router.IntentIndexSearch:
		return StateDispatching, ToolCallEvent{
			ID:     "initial_query",
			Tool:   tools.KindRetrieval,
			Params: tools.Params{Query: classified.Query},
		}, nil

	default:
		return StateDispatching, ToolCallEvent{
			ID:     "web_search",
			Tool:   tools.KindWebSearch,
			Params: tools.Params{Query: classified.Query},
		}, nil
	}
}

// stepDispatching executes the first tool call. The web path terminates; the
// index path stores the draft and pauses for feedback.
func (e *Engine) stepDispatching(ctx context.Context, call ToolCallEvent, sc *SessionContext) (State, Event, error) {
	result, err := e.invoke(ctx, call)
	if err != nil {
		return StateDone, nil, err
	}

	if call.ID == "web_search" {
		return StateDone, StopEvent{Result: Result{
			Message:  "Web search results provided.",
			Response: result.Response,
		}}, nil
	}

	sc.InitialResponse = result.Response

	return StateAwaitingFeedback, StopEvent{Result: Result{
		Message:          "Initial response",
		Response:         result.Response,
		RequiresFeedback: true,
	}}, nil
}

// stepAwaitingFeedback finalizes or starts the escalation chain
func (e *Engine) stepAwaitingFeedback(decision UserDecisionEvent, sc *SessionContext) (State, Event, error) {
	if sc.InitialResponse == "" {
		return StateDone, nil, &MissingContextError{Field: "initial_response"}
	}

	if decision.Decision == DecisionSatisfied {
		return StateDone, StopEvent{Result: Result{
			Message:  "User confirmed satisfactory response.",
			Response: sc.InitialResponse,
		}}, nil
	}

	if sc.OriginalQuery == "" {
		return StateDone, nil, &MissingContextError{Field: "original_query"}
	}

	e.logger.Info("Starting escalation chain",
		zap.String("query", sc.OriginalQuery),
	)

	return StateAnalyzing, ToolCallEvent{
		ID:   "analyze_response",
		Tool: tools.KindAnalyze,
		Params: tools.Params{
			Query:           sc.OriginalQuery,
			InitialResponse: sc.InitialResponse,
		},
	}, nil
}

// stepAnalyzing stores the follow-up query and re-queries the index
func (e *Engine) stepAnalyzing(ctx context.Context, call ToolCallEvent, sc *SessionContext) (State, Event, error) {
	result, err := e.invoke(ctx, call)
	if err != nil {
		return StateDone, nil, err
	}

	sc.FollowUpQuery = result.Response

	return StateEscalating, ToolCallEvent{
		ID:     "additional_query",
		Tool:   tools.KindRetrieval,
		Params: tools.Params{Query: sc.FollowUpQuery},
	}, nil
}

// stepEscalating stores the newly retrieved information and requests synthesis
func (e *Engine) stepEscalating(ctx context.Context, call ToolCallEvent, sc *SessionContext) (State, Event, error) {
	result, err := e.invoke(ctx, call)
	if err != nil {
		return StateDone, nil, err
	}

	sc.AdditionalInfo = result.Response

	return StateSynthesizing, ToolCallEvent{
		ID:   "generate_final_answer",
		Tool: tools.KindFinalAnswer,
		Params: tools.Params{
			Query:           sc.OriginalQuery,
			InitialResponse: sc.InitialResponse,
			AdditionalInfo:  sc.AdditionalInfo,
		},
	}, nil
}

// stepSynthesizing produces the terminal final answer
func (e *Engine) stepSynthesizing(ctx context.Context, call ToolCallEvent) (State, Event, error) {
	result, err := e.invoke(ctx, call)
	if err != nil {
		return StateDone, nil, err
	}

	return StateDone, StopEvent{Result: Result{Response: result.Response}}, nil
}

// invoke resolves and executes one tool call
func (e *Engine) invoke(ctx context.Context, call ToolCallEvent) (tools.Result, error) {
	tool, err := e.registry.Resolve(call.Tool)
	if err != nil {
		return tools.Result{}, &ToolInvocationError{Tool: call.Tool.String(), Err: err}
	}

	e.logger.Info("Invoking tool",
		zap.String("tool_call_id", call.ID),
		zap.String("tool", tool.Name()),
	)

	result, err := tool.Execute(ctx, call.Params)
	if err != nil {
		return tools.Result{}, &ToolInvocationError{Tool: tool.Name(), Err: err}
	}

	return result, nil
}

// errorResult converts a step failure into terminal result data
func (e *Engine) errorResult(ctx context.Context, state State, err error) Result {
	var timeoutErr *TimeoutError
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.As(err, &timeoutErr) {
		e.logger.Warn("Cycle exceeded its time budget",
			zap.String("state", state.String()),
			zap.Duration("cycle_timeout", e.cycleTimeout),
		)
		return Result{Error: "timeout"}
	}

	e.logger.Error("Cycle failed",
		zap.String("state", state.String()),
		zap.Error(err),
	)
	return Result{Error: err.Error()}
}
