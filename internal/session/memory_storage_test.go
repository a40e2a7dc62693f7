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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/rag-assistant/internal/workflow"
)

func newStoredSession(id, query string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		Context:   workflow.NewSessionContext(query),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestMemoryStorageSetGet(t *testing.T) {
	storage := NewMemoryStorage(10)
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, newStoredSession("s1", "what is an echo"), time.Hour))

	got, err := storage.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "what is an echo", got.Context.OriginalQuery)

	exists, err := storage.Exists(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryStorageGetReturnsCopy(t *testing.T) {
	storage := NewMemoryStorage(10)
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, newStoredSession("s1", "q"), time.Hour))

	first, err := storage.Get(ctx, "s1")
	require.NoError(t, err)
	first.Context.InitialResponse = "mutated without Set"

	second, err := storage.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, second.Context.InitialResponse, "mutation must not leak into storage")
}

func TestMemoryStorageEvictsOldest(t *testing.T) {
	storage := NewMemoryStorage(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, storage.Set(ctx, newStoredSession(fmt.Sprintf("s%d", i), "q"), time.Hour))
	}

	// Touch s0 and s1 so s2 ends up least recently used
	time.Sleep(time.Millisecond)
	_, err := storage.Get(ctx, "s0")
	require.NoError(t, err)
	_, err = storage.Get(ctx, "s1")
	require.NoError(t, err)

	require.NoError(t, storage.Set(ctx, newStoredSession("s3", "q"), time.Hour))

	exists, err := storage.Exists(ctx, "s2")
	require.NoError(t, err)
	assert.False(t, exists, "least recently used session must be evicted")

	for _, id := range []string{"s0", "s1", "s3"} {
		exists, err := storage.Exists(ctx, id)
		require.NoError(t, err)
		assert.True(t, exists, "session %s must survive eviction", id)
	}
}

func TestMemoryStorageCleanupRemovesExpired(t *testing.T) {
	storage := NewMemoryStorage(10)
	ctx := context.Background()

	expired := newStoredSession("expired", "q")
	require.NoError(t, storage.Set(ctx, expired, time.Hour))
	// Force past expiry directly through UpdateExpiry semantics of Set
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, storage.Set(ctx, expired, 0))

	require.NoError(t, storage.Set(ctx, newStoredSession("live", "q"), time.Hour))

	require.NoError(t, storage.Cleanup(ctx))

	exists, err := storage.Exists(ctx, "expired")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = storage.Exists(ctx, "live")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryStorageDeleteUnknown(t *testing.T) {
	storage := NewMemoryStorage(10)

	err := storage.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
