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
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/your-org/rag-assistant/internal/chroma"
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

const serviceVersion = "1.0.0"

// QueryRequest is the incoming query payload
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// FeedbackRequest resumes a paused cycle. SessionID restores the stored
// context; without it the caller supplies the query and draft directly.
type FeedbackRequest struct {
	SessionID       string `json:"session_id"`
	Query           string `json:"query"`
	Feedback        string `json:"feedback" binding:"required"`
	InitialResponse string `json:"initial_response"`
}

// QueryResponse is a workflow result plus the session handle the client
// needs for the feedback call
type QueryResponse struct {
	workflow.Result
	SessionID string `json:"session_id,omitempty"`
}

type app struct {
	cfg      *config.Config
	engine   *workflow.Engine
	sessions *session.Manager
	audit    *feedback.Logger
	health   *health.Manager
	logger   *zap.Logger
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initializeLogger(cfg)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	maskedConfig := cfg.MaskSensitiveValues()
	logger.Info("Configuration loaded successfully",
		zap.String("service", "server"),
		zap.String("environment", os.Getenv("ENVIRONMENT")),
		zap.String("groq_model", maskedConfig.Groq.Model),
		zap.String("groq_api_key", maskedConfig.Groq.APIKey),
		zap.String("chroma_url", maskedConfig.Chroma.URL),
		zap.String("session_storage", maskedConfig.Session.StorageType),
	)

	application, cleanup, err := buildApp(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer cleanup()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.Default()
	engine.POST("/query", application.handleQuery)
	engine.POST("/feedback", application.handleFeedback)
	engine.GET("/health", application.handleHealth)

	logger.Info("Starting server", zap.String("addr", cfg.Server.Addr))
	if err := engine.Run(cfg.Server.Addr); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

// buildApp wires the workflow engine and its dependencies
func buildApp(cfg *config.Config, logger *zap.Logger) (*app, func(), error) {
	generator, err := genai.NewClient(cfg.Groq.APIKey, cfg.Groq.Endpoint, cfg.Groq.Model, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("generation client: %w", err)
	}

	embedder, err := genai.NewEmbeddingClient(cfg.OpenAI.APIKey, cfg.OpenAI.Endpoint, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("embedding client: %w", err)
	}

	chromaClient := chroma.NewClient(cfg.Chroma.URL, cfg.Chroma.CollectionName, logger)

	searcher, err := serpapi.NewClient(cfg.SerpAPI.APIKey, cfg.SerpAPI.Endpoint, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("web search client: %w", err)
	}

	queryEngine := retrieval.NewEngine(embedder, chromaClient, generator, cfg.Retrieval.TopK, logger)
	registry := tools.NewRegistry(queryEngine, searcher, generator, cfg.WebSearch.MaxResults)
	greeting := tools.NewGreetingTool(generator)

	workflowEngine := workflow.NewEngine(
		router.New(generator, logger),
		registry,
		greeting,
		cfg.Workflow.CycleTimeout,
		logger,
	)

	sessions, err := session.NewManager(session.Config{
		StorageType:     session.StorageType(cfg.Session.StorageType),
		RedisURL:        cfg.Session.RedisURL,
		TTL:             cfg.Session.TTL,
		MaxSessions:     cfg.Session.MaxSessions,
		CleanupInterval: 5 * time.Minute,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("session manager: %w", err)
	}

	audit, err := feedback.NewLogger(feedback.Config{
		StorageType: cfg.Feedback.StorageType,
		FilePath:    cfg.Feedback.FilePath,
		DBPath:      cfg.Feedback.DBPath,
	}, logger)
	if err != nil {
		_ = sessions.Close()
		return nil, nil, fmt.Errorf("feedback logger: %w", err)
	}

	healthManager := health.NewManager("rag-assistant", serviceVersion, logger)
	healthManager.AddChecker("chroma", health.ServiceChecker("chroma", chromaClient.HealthCheck))

	// The vector index must exist before the first retrieval
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := chromaClient.EnsureCollection(ctx); err != nil {
		logger.Warn("ChromaDB collection not ready at startup", zap.Error(err))
	} else {
		healthManager.SetInitialized(true)
	}

	application := &app{
		cfg:      cfg,
		engine:   workflowEngine,
		sessions: sessions,
		audit:    audit,
		health:   healthManager,
		logger:   logger,
	}

	cleanup := func() {
		_ = audit.Close()
		_ = sessions.Close()
	}

	return application, cleanup, nil
}

// handleQuery runs the initial workflow cycle. Workflow failures come back as
// result data with HTTP 200; only malformed requests get a 4xx.
func (a *app) handleQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	a.logger.Info("Query received",
		zap.String("client_ip", c.ClientIP()),
		zap.String("query", req.Query),
	)

	sc := workflow.NewSessionContext(req.Query)
	result := a.engine.ProcessQuery(c.Request.Context(), req.Query, sc)

	response := QueryResponse{Result: result}

	// A draft awaiting feedback needs its context stored for the next call
	if result.RequiresFeedback {
		stored, err := a.sessions.Create(c.Request.Context(), sc)
		if err != nil {
			a.logger.Error("Failed to persist session", zap.Error(err))
		} else {
			response.SessionID = stored.ID
		}
	}

	c.JSON(http.StatusOK, response)
}

// handleFeedback resumes the cycle stored under the session, or rebuilds the
// context from the request body when no session is given
func (a *app) handleFeedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	var sc *workflow.SessionContext
	var stored *session.Session

	if req.SessionID != "" {
		var err error
		stored, err = a.sessions.Get(c.Request.Context(), req.SessionID)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found or expired"})
				return
			}
			a.logger.Error("Failed to load session", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
			return
		}
		sc = stored.Context
	} else {
		sc = &workflow.SessionContext{
			OriginalQuery:   req.Query,
			InitialResponse: req.InitialResponse,
		}
	}

	decision := workflow.NormalizeDecision(req.Feedback)
	result := a.engine.HandleFeedback(c.Request.Context(), req.Feedback, sc)

	escalated := decision == workflow.DecisionUnsatisfied && result.Error == ""
	if err := a.audit.Log(req.SessionID, sc.OriginalQuery, string(decision), escalated); err != nil {
		a.logger.Warn("Failed to record feedback", zap.Error(err))
	}

	// The cycle is finished either way; the stored context is spent
	if stored != nil {
		if err := a.sessions.Delete(c.Request.Context(), stored.ID); err != nil {
			a.logger.Warn("Failed to delete session", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, result)
}

func (a *app) handleHealth(c *gin.Context) {
	response := a.health.Check(c.Request.Context())

	statusCode := http.StatusOK
	if response.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}

// initializeLogger creates a logger based on configuration settings
func initializeLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.Logging.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	switch cfg.Logging.Level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	if cfg.Logging.Output == "file" {
		zapConfig.OutputPaths = []string{"server.log"}
		zapConfig.ErrorOutputPaths = []string{"server.log"}
	} else {
		zapConfig.OutputPaths = []string{"stdout"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	}

	return zapConfig.Build()
}
