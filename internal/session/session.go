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

// Package session persists the per-query workflow context between the query
// call and the feedback call. A session is keyed by a UUID handed to the
// client and expires after a configurable TTL. Both in-memory and Redis
// backends are supported.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/your-org/rag-assistant/internal/workflow"
)

// ErrNotFound is returned when a session ID is unknown or expired
var ErrNotFound = errors.New("session not found")

// StorageType selects the storage backend
type StorageType string

const (
	// MemoryStorageType keeps sessions in process memory
	MemoryStorageType StorageType = "memory"
	// RedisStorageType keeps sessions in Redis
	RedisStorageType StorageType = "redis"
)

// Config holds session management settings
type Config struct {
	StorageType     StorageType   `json:"storage_type"`
	RedisURL        string        `json:"redis_url,omitempty"`
	TTL             time.Duration `json:"ttl"`
	MaxSessions     int           `json:"max_sessions"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

// DefaultConfig returns the default session configuration
func DefaultConfig() Config {
	return Config{
		StorageType:     MemoryStorageType,
		TTL:             30 * time.Minute,
		MaxSessions:     1000,
		CleanupInterval: 5 * time.Minute,
	}
}

// Session binds one workflow context to its public ID and expiry
type Session struct {
	ID        string                   `json:"id"`
	Context   *workflow.SessionContext `json:"context"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// Storage is the backend contract. Implementations must make Get and Set
// atomic per session.
type Storage interface {
	Get(ctx context.Context, sessionID string) (*Session, error)
	Set(ctx context.Context, session *Session, ttl time.Duration) error
	Delete(ctx context.Context, sessionID string) error
	Exists(ctx context.Context, sessionID string) (bool, error)
	Cleanup(ctx context.Context) error
	Close() error
}

// Manager handles session lifecycle on top of a storage backend
type Manager struct {
	storage Storage
	config  Config
	logger  *zap.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewManager creates a session manager with the configured backend
func NewManager(config Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var storage Storage
	var err error

	switch config.StorageType {
	case MemoryStorageType:
		storage = NewMemoryStorage(config.MaxSessions)
	case RedisStorageType:
		storage, err = NewRedisStorage(config.RedisURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis storage: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.StorageType)
	}

	manager := &Manager{
		storage: storage,
		config:  config,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		manager.wg.Add(1)
		go manager.cleanupLoop()
	}

	return manager, nil
}

// Create stores a fresh workflow context under a new session ID
func (m *Manager) Create(ctx context.Context, sc *workflow.SessionContext) (*Session, error) {
	now := time.Now()
	session := &Session{
		ID:        uuid.NewString(),
		Context:   sc,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(m.config.TTL),
	}

	if err := m.storage.Set(ctx, session, m.config.TTL); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m.logger.Info("Created session", zap.String("session_id", session.ID))
	return session, nil
}

// Get retrieves a live session by ID. Expired sessions surface as ErrNotFound.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	session, err := m.storage.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.ExpiresAt.Before(time.Now()) {
		return nil, ErrNotFound
	}

	return session, nil
}

// Update persists a modified session and extends its expiry
func (m *Manager) Update(ctx context.Context, session *Session) error {
	now := time.Now()
	session.UpdatedAt = now
	session.ExpiresAt = now.Add(m.config.TTL)

	if err := m.storage.Set(ctx, session, m.config.TTL); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return nil
}

// Delete removes a session
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	if err := m.storage.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	m.logger.Info("Deleted session", zap.String("session_id", sessionID))
	return nil
}

// cleanupLoop periodically drops expired sessions
func (m *Manager) cleanupLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := m.storage.Cleanup(ctx); err != nil {
				m.logger.Error("Failed to cleanup expired sessions", zap.Error(err))
			}
			cancel()
		case <-m.stopCh:
			return
		}
	}
}

// Close stops the cleanup loop and closes the backend
func (m *Manager) Close() error {
	close(m.stopCh)
	m.wg.Wait()

	if err := m.storage.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}

	return nil
}
