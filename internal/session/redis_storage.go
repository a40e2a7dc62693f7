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

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "rag:session:"

// RedisStorage keeps sessions in Redis. Expiry rides on the Redis key TTL, so
// Cleanup is a no-op.
type RedisStorage struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStorage connects to Redis and verifies the connection
func NewRedisStorage(redisURL string, logger *zap.Logger) (*RedisStorage, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStorage{
		client: client,
		logger: logger,
	}, nil
}

// Get retrieves a session by ID
func (r *RedisStorage) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// Set stores a session with its TTL
func (r *RedisStorage) Set(ctx context.Context, session *Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, redisKeyPrefix+session.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session in Redis: %w", err)
	}

	return nil
}

// Delete removes a session
func (r *RedisStorage) Delete(ctx context.Context, sessionID string) error {
	deleted, err := r.client.Del(ctx, redisKeyPrefix+sessionID).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	return nil
}

// Exists reports whether a session is stored
func (r *RedisStorage) Exists(ctx context.Context, sessionID string) (bool, error) {
	count, err := r.client.Exists(ctx, redisKeyPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}

	return count > 0, nil
}

// Cleanup is a no-op; Redis evicts expired keys itself
func (r *RedisStorage) Cleanup(_ context.Context) error {
	return nil
}

// Close closes the Redis connection
func (r *RedisStorage) Close() error {
	return r.client.Close()
}
