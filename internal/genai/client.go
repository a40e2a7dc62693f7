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

// Package genai wraps the generation and embedding services behind small,
// substitutable clients. Generation talks to a Groq OpenAI-compatible chat
// endpoint; embeddings use the OpenAI embeddings API. Neither client retries:
// a failed call surfaces immediately so the workflow can short-circuit.
package genai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Message is one turn of a chat prompt
type Message struct {
	Role    string
	Content string
}

// Chat prompt roles
const (
	RoleSystem = openai.ChatMessageRoleSystem
	RoleUser   = openai.ChatMessageRoleUser
)

// Client is the generation-service client
type Client struct {
	client *openai.Client
	logger *zap.Logger
	model  string
}

// NewClient creates a generation client against an OpenAI-compatible endpoint
func NewClient(apiKey, endpoint, model string, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("generation API key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("generation model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}

	logger.Info("Generation client initialized",
		zap.String("endpoint", cfg.BaseURL),
		zap.String("model", model),
	)

	return &Client{
		client: openai.NewClientWithConfig(cfg),
		logger: logger,
		model:  model,
	}, nil
}

// Chat sends an ordered sequence of messages and returns the model's reply content.
// Exactly one request is made; errors propagate without retry.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("at least one message is required")
	}

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}

	c.logger.Debug("Sending chat completion request",
		zap.String("model", c.model),
		zap.Int("message_count", len(messages)),
	)

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", wrapAPIError("chat completion", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from generation service")
	}

	c.logger.Debug("Chat completion successful",
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return resp.Choices[0].Message.Content, nil
}

// wrapAPIError translates go-openai errors into descriptive failures
func wrapAPIError(operation string, err error) error {
	if apiErr, ok := err.(*openai.APIError); ok {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: invalid API key or unauthorized access: %w", operation, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%s: rate limited by upstream service: %w", operation, err)
		default:
			return fmt.Errorf("%s: upstream API error (status %d): %s", operation, apiErr.HTTPStatusCode, apiErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", operation, err)
}
