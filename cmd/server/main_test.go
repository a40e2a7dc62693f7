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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/your-org/rag-assistant/internal/config"
	"github.com/your-org/rag-assistant/internal/feedback"
	"github.com/your-org/rag-assistant/internal/genai"
	"github.com/your-org/rag-assistant/internal/health"
	"github.com/your-org/rag-assistant/internal/retrieval"
	"github.com/your-org/rag-assistant/internal/router"
	"github.com/your-org/rag-assistant/internal/serpapi"
	"github.com/your-org/rag-assistant/internal/session"
	"github.com/your-org/rag-assistant/internal/tools"
	"github.com/your-org/rag-assistant/internal/workflow"
)

type stubClassifier struct {
	intent router.Intent
}

func (s stubClassifier) Classify(_ context.Context, _ string) (router.Intent, error) {
	return s.intent, nil
}

type stubRetriever struct {
	response string
}

func (s stubRetriever) Query(_ context.Context, _ string) (retrieval.QueryResult, error) {
	return retrieval.QueryResult{Response: s.response}, nil
}

type stubSearcher struct{}

func (stubSearcher) Search(_ context.Context, _ string, _ int) ([]serpapi.OrganicResult, error) {
	return nil, nil
}

type stubGenerator struct {
	response string
}

func (s stubGenerator) Chat(_ context.Context, _ []genai.Message) (string, error) {
	return s.response, nil
}

func newTestApp(t *testing.T, intent router.Intent) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := tools.NewRegistry(
		stubRetriever{response: "An echo is a reflected sound wave."},
		stubSearcher{},
		stubGenerator{response: "generated text"},
		5,
	)
	engine := workflow.NewEngine(
		stubClassifier{intent: intent},
		registry,
		tools.NewGreetingTool(stubGenerator{response: "Hello!"}),
		time.Second,
		zap.NewNop(),
	)

	sessions, err := session.NewManager(session.Config{
		StorageType: session.MemoryStorageType,
		TTL:         time.Minute,
		MaxSessions: 10,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sessions.Close() })

	audit, err := feedback.NewLogger(feedback.Config{
		StorageType: feedback.StorageTypeFile,
		FilePath:    filepath.Join(t.TempDir(), "feedback.jsonl"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = audit.Close() })

	healthManager := health.NewManager("rag-assistant", serviceVersion, zap.NewNop())
	healthManager.SetInitialized(true)

	return &app{
		cfg:      &config.Config{},
		engine:   engine,
		sessions: sessions,
		audit:    audit,
		health:   healthManager,
		logger:   zap.NewNop(),
	}
}

func newTestRouter(a *app) *gin.Engine {
	engine := gin.New()
	engine.POST("/query", a.handleQuery)
	engine.POST("/feedback", a.handleFeedback)
	engine.GET("/health", a.handleHealth)
	return engine
}

func postJSON(t *testing.T, engine *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	return recorder
}

func TestQueryEndpointReturnsSessionForDraft(t *testing.T) {
	a := newTestApp(t, router.IntentIndexSearch)
	engine := newTestRouter(a)

	recorder := postJSON(t, engine, "/query", gin.H{"query": "what is an echo"})
	require.Equal(t, http.StatusOK, recorder.Code)

	var response QueryResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))

	assert.True(t, response.RequiresFeedback)
	assert.Equal(t, "An echo is a reflected sound wave.", response.Response)
	assert.NotEmpty(t, response.SessionID)
}

func TestQueryEndpointGreetingHasNoSession(t *testing.T) {
	a := newTestApp(t, router.IntentGreeting)
	engine := newTestRouter(a)

	recorder := postJSON(t, engine, "/query", gin.H{"query": "hi"})
	require.Equal(t, http.StatusOK, recorder.Code)

	var response QueryResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))

	assert.False(t, response.RequiresFeedback)
	assert.Empty(t, response.SessionID)
	assert.Equal(t, "Hello!", response.Response)
}

func TestQueryEndpointRejectsMissingQuery(t *testing.T) {
	a := newTestApp(t, router.IntentIndexSearch)
	engine := newTestRouter(a)

	recorder := postJSON(t, engine, "/query", gin.H{})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestFeedbackEndpointRoundTrip(t *testing.T) {
	a := newTestApp(t, router.IntentIndexSearch)
	engine := newTestRouter(a)

	recorder := postJSON(t, engine, "/query", gin.H{"query": "what is an echo"})
	require.Equal(t, http.StatusOK, recorder.Code)

	var queryResponse QueryResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &queryResponse))
	require.NotEmpty(t, queryResponse.SessionID)

	recorder = postJSON(t, engine, "/feedback", gin.H{
		"session_id": queryResponse.SessionID,
		"feedback":   "yes",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var result workflow.Result
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Equal(t, "An echo is a reflected sound wave.", result.Response)
	assert.Empty(t, result.Error)

	// The session is spent after feedback
	recorder = postJSON(t, engine, "/feedback", gin.H{
		"session_id": queryResponse.SessionID,
		"feedback":   "yes",
	})
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestFeedbackEndpointWithoutSession(t *testing.T) {
	a := newTestApp(t, router.IntentIndexSearch)
	engine := newTestRouter(a)

	recorder := postJSON(t, engine, "/feedback", gin.H{
		"query":            "what is an echo",
		"feedback":         "no",
		"initial_response": "An echo is a reflected sound wave.",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var result workflow.Result
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Empty(t, result.Error)
	assert.Equal(t, "generated text", result.Response)
}

func TestFeedbackEndpointMissingContextAsData(t *testing.T) {
	a := newTestApp(t, router.IntentIndexSearch)
	engine := newTestRouter(a)

	recorder := postJSON(t, engine, "/feedback", gin.H{
		"query":    "what is an echo",
		"feedback": "no",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var result workflow.Result
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Contains(t, result.Error, "initial_response")
}

func TestHealthEndpoint(t *testing.T) {
	a := newTestApp(t, router.IntentIndexSearch)
	engine := newTestRouter(a)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)

	var response health.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, health.StatusHealthy, response.Status)
	assert.True(t, response.RAGInitialized)
}
