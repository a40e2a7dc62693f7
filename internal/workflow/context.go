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

// SessionContext is the mutable per-request state threaded through one
// query/feedback cycle. Fields are populated monotonically, in order:
// OriginalQuery at entry, InitialResponse after the first retrieval,
// FollowUpQuery after analysis, AdditionalInfo after the escalation
// retrieval. A field is never cleared mid-cycle, and a step may only read
// fields written by the steps before it; reading an absent prerequisite is a
// MissingContextError.
//
// A SessionContext is owned by exactly one in-flight cycle and is never
// shared between concurrent cycles, so it needs no locking.
type SessionContext struct {
	OriginalQuery   string `json:"original_query"`
	InitialResponse string `json:"initial_response,omitempty"`
	FollowUpQuery   string `json:"follow_up_query,omitempty"`
	AdditionalInfo  string `json:"additional_info,omitempty"`
}

// NewSessionContext creates the context for a fresh query
func NewSessionContext(query string) *SessionContext {
	return &SessionContext{OriginalQuery: query}
}
