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

// Package health aggregates dependency checks for the /health endpoint
package health

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"

	// DefaultTimeout bounds one full health sweep
	DefaultTimeout = 5 * time.Second
)

// CheckResult is the outcome of one dependency check
type CheckResult struct {
	Status    string        `json:"status"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Response is the full health report
type Response struct {
	Status         string                 `json:"status"`
	Service        string                 `json:"service"`
	Version        string                 `json:"version"`
	Uptime         time.Duration          `json:"uptime"`
	RAGInitialized bool                   `json:"rag_system_initialized"`
	Dependencies   map[string]CheckResult `json:"dependencies,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
}

// Checker probes one dependency
type Checker interface {
	Check(ctx context.Context) CheckResult
}

// CheckerFunc adapts a function to the Checker interface
type CheckerFunc func(ctx context.Context) CheckResult

// Check implements Checker
func (f CheckerFunc) Check(ctx context.Context) CheckResult {
	return f(ctx)
}

// Manager runs the registered checks and tracks whether the retrieval
// pipeline finished initializing
type Manager struct {
	serviceName string
	version     string
	startTime   time.Time
	checkers    map[string]Checker
	timeout     time.Duration
	initialized atomic.Bool
	logger      *zap.Logger
}

// NewManager creates a health manager
func NewManager(serviceName, version string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		checkers:    make(map[string]Checker),
		timeout:     DefaultTimeout,
		logger:      logger,
	}
}

// SetTimeout overrides the sweep timeout
func (m *Manager) SetTimeout(timeout time.Duration) {
	m.timeout = timeout
}

// SetInitialized marks the retrieval pipeline ready. Registration happens at
// startup, before the manager serves traffic.
func (m *Manager) SetInitialized(ready bool) {
	m.initialized.Store(ready)
}

// AddChecker registers a dependency check under a name
func (m *Manager) AddChecker(name string, checker Checker) {
	m.checkers[name] = checker
}

// AddCheckerFunc registers a check function under a name
func (m *Manager) AddCheckerFunc(name string, checkFunc func(ctx context.Context) CheckResult) {
	m.checkers[name] = CheckerFunc(checkFunc)
}

// Check runs every registered check and aggregates the worst status
func (m *Manager) Check(ctx context.Context) Response {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	dependencies := make(map[string]CheckResult)
	overallStatus := StatusHealthy

	for name, checker := range m.checkers {
		start := time.Now()
		result := checker.Check(ctx)
		result.Latency = time.Since(start)
		result.Timestamp = time.Now()

		dependencies[name] = result

		switch result.Status {
		case StatusUnhealthy:
			overallStatus = StatusUnhealthy
		case StatusDegraded:
			if overallStatus != StatusUnhealthy {
				overallStatus = StatusDegraded
			}
		}
	}

	if !m.initialized.Load() && overallStatus == StatusHealthy {
		overallStatus = StatusDegraded
	}

	return Response{
		Status:         overallStatus,
		Service:        m.serviceName,
		Version:        m.version,
		Uptime:         time.Since(m.startTime),
		RAGInitialized: m.initialized.Load(),
		Dependencies:   dependencies,
		Timestamp:      time.Now(),
	}
}

// ServiceChecker wraps a ping function as a dependency check. Timeouts and
// connection errors count as degraded rather than unhealthy so a flaky
// upstream does not flip the whole service.
func ServiceChecker(name string, ping func(ctx context.Context) error) Checker {
	return CheckerFunc(func(ctx context.Context) CheckResult {
		if err := ping(ctx); err != nil {
			status := StatusUnhealthy
			if ctx.Err() != nil {
				status = StatusDegraded
			}
			return CheckResult{
				Status: status,
				Error:  fmt.Sprintf("%s check failed: %v", name, err),
			}
		}
		return CheckResult{Status: StatusHealthy}
	})
}
