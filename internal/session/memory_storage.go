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
	"fmt"
	"sync"
	"time"
)

// MemoryStorage keeps sessions in process memory with LRU eviction once
// maxSessions is reached
type MemoryStorage struct {
	sessions    map[string]*Session
	accessTime  map[string]time.Time
	maxSessions int
	mutex       sync.RWMutex
}

// NewMemoryStorage creates an in-memory session store
func NewMemoryStorage(maxSessions int) *MemoryStorage {
	if maxSessions <= 0 {
		maxSessions = 1000
	}
	return &MemoryStorage{
		sessions:    make(map[string]*Session),
		accessTime:  make(map[string]time.Time),
		maxSessions: maxSessions,
	}
}

// Get retrieves a session by ID
func (m *MemoryStorage) Get(_ context.Context, sessionID string) (*Session, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, ErrNotFound
	}

	m.accessTime[sessionID] = time.Now()

	// Copy so callers cannot mutate stored state without a Set
	sessionCopy := *session
	if session.Context != nil {
		contextCopy := *session.Context
		sessionCopy.Context = &contextCopy
	}

	return &sessionCopy, nil
}

// Set stores a session, evicting the least recently used entry when full
func (m *MemoryStorage) Set(_ context.Context, session *Session, ttl time.Duration) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.sessions[session.ID]; !exists && len(m.sessions) >= m.maxSessions {
		m.evictOldest()
	}

	sessionCopy := *session
	if session.Context != nil {
		contextCopy := *session.Context
		sessionCopy.Context = &contextCopy
	}
	if ttl > 0 {
		sessionCopy.ExpiresAt = time.Now().Add(ttl)
	}

	m.sessions[session.ID] = &sessionCopy
	m.accessTime[session.ID] = time.Now()

	return nil
}

// Delete removes a session
func (m *MemoryStorage) Delete(_ context.Context, sessionID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.sessions[sessionID]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	delete(m.sessions, sessionID)
	delete(m.accessTime, sessionID)
	return nil
}

// Exists reports whether a session is stored
func (m *MemoryStorage) Exists(_ context.Context, sessionID string) (bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	_, exists := m.sessions[sessionID]
	return exists, nil
}

// Cleanup removes expired sessions
func (m *MemoryStorage) Cleanup(_ context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := time.Now()
	for sessionID, session := range m.sessions {
		if session.ExpiresAt.Before(now) {
			delete(m.sessions, sessionID)
			delete(m.accessTime, sessionID)
		}
	}

	return nil
}

// Close clears all stored sessions
func (m *MemoryStorage) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.sessions = make(map[string]*Session)
	m.accessTime = make(map[string]time.Time)
	return nil
}

// evictOldest drops the least recently accessed session. Caller holds mutex.
func (m *MemoryStorage) evictOldest() {
	var oldestID string
	var oldestTime time.Time

	for sessionID, accessTime := range m.accessTime {
		if oldestID == "" || accessTime.Before(oldestTime) {
			oldestID = sessionID
			oldestTime = accessTime
		}
	}

	if oldestID != "" {
		delete(m.sessions, oldestID)
		delete(m.accessTime, oldestID)
	}
}
