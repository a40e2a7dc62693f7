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

package metadata

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "metadata.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestStoreAddAndGet(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Add(Entry{
		ChunkID:    "doc1-0",
		Source:     "sound.md",
		Title:      "Sound",
		ChunkIndex: 0,
	}))

	entry, err := store.Get("doc1-0")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "sound.md", entry.Source)
	assert.Equal(t, "Sound", entry.Title)
}

func TestStoreGetUnknownReturnsNil(t *testing.T) {
	store := newTestStore(t)

	entry, err := store.Get("missing")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestStoreChunksForSourceOrdered(t *testing.T) {
	store := newTestStore(t)

	for i, id := range []string{"c2", "c0", "c1"} {
		index := map[string]int{"c0": 0, "c1": 1, "c2": 2}[id]
		require.NoError(t, store.Add(Entry{
			ChunkID:    id,
			Source:     "sound.md",
			ChunkIndex: index,
		}), "insert %d", i)
	}
	require.NoError(t, store.Add(Entry{ChunkID: "other", Source: "waves.md", ChunkIndex: 0}))

	chunkIDs, err := store.ChunksForSource("sound.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"c0", "c1", "c2"}, chunkIDs)
}

func TestStoreDeleteSource(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Add(Entry{ChunkID: "c0", Source: "sound.md", ChunkIndex: 0}))
	require.NoError(t, store.Add(Entry{ChunkID: "c1", Source: "sound.md", ChunkIndex: 1}))
	require.NoError(t, store.Add(Entry{ChunkID: "k0", Source: "waves.md", ChunkIndex: 0}))

	deleted, err := store.DeleteSource("sound.md")
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStoreAddReplacesExisting(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Add(Entry{ChunkID: "c0", Source: "sound.md", ChunkIndex: 0}))
	require.NoError(t, store.Add(Entry{ChunkID: "c0", Source: "sound.md", Title: "updated", ChunkIndex: 0}))

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	entry, err := store.Get("c0")
	require.NoError(t, err)
	assert.Equal(t, "updated", entry.Title)
}
