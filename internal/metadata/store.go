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

// Package metadata tracks which chunks were ingested from which source
// document, so re-ingestion can replace a document's chunks cleanly.
package metadata

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists chunk provenance in SQLite
type Store struct {
	db *sql.DB
}

// Entry records one ingested chunk
type Entry struct {
	ChunkID    string `json:"chunk_id"`
	Source     string `json:"source"`
	Title      string `json:"title"`
	ChunkIndex int    `json:"chunk_index"`
}

// NewStore opens the metadata database, creating the schema if needed
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	query := `
		CREATE TABLE IF NOT EXISTS chunks (
			chunk_id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			title TEXT,
			chunk_index INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
	`

	_, err := s.db.Exec(query)
	return err
}

// Add records one chunk
func (s *Store) Add(entry Entry) error {
	query := `
		INSERT OR REPLACE INTO chunks (chunk_id, source, title, chunk_index)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.Exec(query, entry.ChunkID, entry.Source, entry.Title, entry.ChunkIndex)
	if err != nil {
		return fmt.Errorf("failed to insert chunk metadata: %w", err)
	}

	return nil
}

// ChunksForSource returns the chunk IDs ingested from one source document,
// in chunk order
func (s *Store) ChunksForSource(source string) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT chunk_id FROM chunks WHERE source = ? ORDER BY chunk_index`, source)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chunkIDs []string
	for rows.Next() {
		var chunkID string
		if err := rows.Scan(&chunkID); err != nil {
			return nil, fmt.Errorf("failed to scan chunk_id: %w", err)
		}
		chunkIDs = append(chunkIDs, chunkID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunk rows: %w", err)
	}

	return chunkIDs, nil
}

// DeleteSource removes all chunk records for a source document and returns
// how many were removed
func (s *Store) DeleteSource(source string) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM chunks WHERE source = ?`, source)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}

	return result.RowsAffected()
}

// Get returns the record for one chunk, or nil when unknown
func (s *Store) Get(chunkID string) (*Entry, error) {
	row := s.db.QueryRow(
		`SELECT chunk_id, source, title, chunk_index FROM chunks WHERE chunk_id = ?`, chunkID)

	var entry Entry
	err := row.Scan(&entry.ChunkID, &entry.Source, &entry.Title, &entry.ChunkIndex)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan chunk metadata: %w", err)
	}

	return &entry, nil
}

// Count returns the total number of recorded chunks
func (s *Store) Count() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
