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

import "fmt"

// The workflow error taxonomy. No error here is retried: each one
// short-circuits the active cycle into a terminal StopEvent carrying the
// message as data. Partial SessionContext state from a failed cycle is
// discarded by the caller, not persisted for retry.

// ClassificationError indicates the generation service failed during routing
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("query classification failed: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// ToolInvocationError indicates a tool could not be resolved or its
// underlying service call failed
type ToolInvocationError struct {
	Tool string
	Err  error
}

func (e *ToolInvocationError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolInvocationError) Unwrap() error { return e.Err }

// MissingContextError indicates a step ran without the context field its
// predecessor should have populated
type MissingContextError struct {
	Field string
}

func (e *MissingContextError) Error() string {
	return fmt.Sprintf("missing required context field %q", e.Field)
}

// UpstreamServiceError indicates a generic transport failure from an
// external service
type UpstreamServiceError struct {
	Service string
	Err     error
}

func (e *UpstreamServiceError) Error() string {
	return fmt.Sprintf("upstream service %s failed: %v", e.Service, e.Err)
}

func (e *UpstreamServiceError) Unwrap() error { return e.Err }

// TimeoutError indicates the cycle exceeded its wall-clock budget
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string { return "timeout" }

func (e *TimeoutError) Unwrap() error { return e.Err }
