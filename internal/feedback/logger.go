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

// Package feedback records user verdicts on draft answers so escalation
// behavior can be audited later. Records go to a JSON-lines file or a SQLite
// database.
package feedback

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	StorageTypeFile   = "file"
	StorageTypeSQLite = "sqlite"
)

// Record is one audited feedback event
type Record struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Query     string    `json:"query"`
	Decision  string    `json:"decision"`
	Escalated bool      `json:"escalated"`
	Timestamp time.Time `json:"timestamp"`
}

// Config holds feedback audit settings
type Config struct {
	StorageType string `json:"storage_type"`
	FilePath    string `json:"file_path"`
	DBPath      string `json:"db_path"`
}

// Logger appends feedback records to the configured backend
type Logger struct {
	config Config
	logger *zap.Logger
	db     *sql.DB
	mu     sync.Mutex
}

// NewLogger creates a feedback logger
func NewLogger(config Config, logger *zap.Logger) (*Logger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fl := &Logger{
		config: config,
		logger: logger,
	}

	switch config.StorageType {
	case StorageTypeFile:
		if err := fl.initFileStorage(); err != nil {
			return nil, fmt.Errorf("failed to initialize file storage: %w", err)
		}
	case StorageTypeSQLite:
		if err := fl.initSQLiteStorage(); err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite storage: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.StorageType)
	}

	return fl, nil
}

func (fl *Logger) initFileStorage() error {
	dir := filepath.Dir(fl.config.FilePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create feedback directory: %w", err)
	}

	file, err := os.OpenFile(fl.config.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open feedback file: %w", err)
	}
	return file.Close()
}

func (fl *Logger) initSQLiteStorage() error {
	dir := filepath.Dir(fl.config.DBPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create feedback database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", fl.config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS feedback (
			id TEXT PRIMARY KEY,
			session_id TEXT,
			query TEXT NOT NULL,
			decision TEXT NOT NULL,
			escalated INTEGER NOT NULL DEFAULT 0,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create feedback table: %w", err)
	}

	fl.db = db
	return nil
}

// Log records one feedback event
func (fl *Logger) Log(sessionID, query, decision string, escalated bool) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	record := Record{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Query:     query,
		Decision:  decision,
		Escalated: escalated,
		Timestamp: time.Now(),
	}

	var err error
	switch fl.config.StorageType {
	case StorageTypeFile:
		err = fl.logToFile(record)
	case StorageTypeSQLite:
		err = fl.logToSQLite(record)
	default:
		err = fmt.Errorf("unsupported storage type: %s", fl.config.StorageType)
	}
	if err != nil {
		return err
	}

	fl.logger.Info("Feedback recorded",
		zap.String("id", record.ID),
		zap.String("session_id", sessionID),
		zap.String("decision", decision),
		zap.Bool("escalated", escalated),
	)
	return nil
}

func (fl *Logger) logToFile(record Record) error {
	file, err := os.OpenFile(fl.config.FilePath, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open feedback file: %w", err)
	}
	defer func() { _ = file.Close() }()

	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback record: %w", err)
	}

	if _, err := file.WriteString(string(jsonData) + "\n"); err != nil {
		return fmt.Errorf("failed to write feedback record: %w", err)
	}

	return nil
}

func (fl *Logger) logToSQLite(record Record) error {
	if fl.db == nil {
		return fmt.Errorf("SQLite database not initialized")
	}

	insertSQL := `
		INSERT INTO feedback (id, session_id, query, decision, escalated, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := fl.db.Exec(insertSQL,
		record.ID,
		record.SessionID,
		record.Query,
		record.Decision,
		record.Escalated,
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert feedback record: %w", err)
	}

	return nil
}

// Recent returns the newest records, SQLite backend only
func (fl *Logger) Recent(limit int) ([]Record, error) {
	if fl.config.StorageType != StorageTypeSQLite {
		return nil, fmt.Errorf("Recent only supported for SQLite storage")
	}
	if fl.db == nil {
		return nil, fmt.Errorf("SQLite database not initialized")
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()

	query := `
		SELECT id, session_id, query, decision, escalated, timestamp
		FROM feedback
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := fl.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var record Record
		var sessionID sql.NullString

		if err := rows.Scan(
			&record.ID,
			&sessionID,
			&record.Query,
			&record.Decision,
			&record.Escalated,
			&record.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}

		if sessionID.Valid {
			record.SessionID = sessionID.String
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback rows: %w", err)
	}

	return records, nil
}

// Stats returns record counts grouped by decision, SQLite backend only
func (fl *Logger) Stats() (map[string]int, error) {
	if fl.config.StorageType != StorageTypeSQLite {
		return nil, fmt.Errorf("Stats only supported for SQLite storage")
	}
	if fl.db == nil {
		return nil, fmt.Errorf("SQLite database not initialized")
	}

	fl.mu.Lock()
	defer fl.mu.Unlock()

	rows, err := fl.db.Query(`SELECT decision, COUNT(*) FROM feedback GROUP BY decision`)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := make(map[string]int)
	for rows.Next() {
		var decision string
		var count int
		if err := rows.Scan(&decision, &count); err != nil {
			return nil, fmt.Errorf("failed to scan feedback stats row: %w", err)
		}
		stats[decision] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback stats rows: %w", err)
	}

	return stats, nil
}

// Close releases the backend resources
func (fl *Logger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.db != nil {
		return fl.db.Close()
	}
	return nil
}
