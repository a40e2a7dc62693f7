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
	"strings"

	"github.com/your-org/rag-assistant/internal/router"
	"github.com/your-org/rag-assistant/internal/tools"
)

// Event is the tagged union driving the state machine. Every step consumes
// exactly one Event and produces exactly one Event; a StopEvent is terminal
// for the cycle that produced it.
type Event interface {
	isEvent()
}

// InputEvent enters a new query into the machine
type InputEvent struct {
	Query string
}

func (InputEvent) isEvent() {}

// classifiedEvent carries the routing decision from Start to Classifying
type classifiedEvent struct {
	Intent router.Intent
	Query  string
}

func (classifiedEvent) isEvent() {}

// ToolCallEvent requests the invocation of one tool
type ToolCallEvent struct {
	ID     string
	Tool   tools.Kind
	Params tools.Params
}

func (ToolCallEvent) isEvent() {}

// UserDecisionEvent resumes a paused cycle with the user's verdict
type UserDecisionEvent struct {
	Decision Decision
}

func (UserDecisionEvent) isEvent() {}

// StopEvent terminates a cycle with its result
type StopEvent struct {
	Result Result
}

func (StopEvent) isEvent() {}

// Decision is the normalized user verdict on the initial response
type Decision string

const (
	// DecisionSatisfied finalizes the initial response
	DecisionSatisfied Decision = "satisfied"
	// DecisionUnsatisfied triggers the escalation chain
	DecisionUnsatisfied Decision = "unsatisfied"
)

// NormalizeDecision maps raw feedback to a Decision. Only a case-insensitive
// "yes" counts as satisfied; any other input is dissatisfaction, not ambiguity.
func NormalizeDecision(feedback string) Decision {
	if strings.EqualFold(strings.TrimSpace(feedback), "yes") {
		return DecisionSatisfied
	}
	return DecisionUnsatisfied
}

// Result is the terminal payload of a cycle. Errors travel here as data so
// the caller can render a message without crashing.
type Result struct {
	Message          string `json:"message,omitempty"`
	Response         string `json:"response,omitempty"`
	RequiresFeedback bool   `json:"requires_feedback,omitempty"`
	Error            string `json:"error,omitempty"`
}
