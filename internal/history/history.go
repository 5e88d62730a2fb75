// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

// Package history persists per-module pass outcomes in a local SQLite
// database so operators can answer "what did retread do to this plugin,
// and when" long after the logs are gone.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/retreadlabs/retread/internal/errors"
)

// Pass outcome statuses.
const (
	StatusClean     = "clean"
	StatusRewritten = "rewritten"
	StatusFailed    = "failed"
	StatusRejected  = "rejected"
)

// Entry records one pass over one module.
type Entry struct {
	ID        int64     `json:"id"`
	Module    string    `json:"module"`
	Status    string    `json:"status"`
	ABI       string    `json:"abi"`
	Visited   int       `json:"visited"`
	Rewritten int       `json:"rewritten"`
	Phrases   []string  `json:"phrases"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// Store handles database operations.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.WrapStoreUnavailable(fmt.Errorf("create data dir: %w", err))
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapStoreUnavailable(err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, errors.WrapStoreUnavailable(err)
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS passes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		module TEXT NOT NULL,
		status TEXT NOT NULL,
		abi TEXT,
		visited INTEGER,
		rewritten INTEGER,
		phrases TEXT,
		detail TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_passes_module ON passes(module);
	CREATE INDEX IF NOT EXISTS idx_passes_status ON passes(status);
	`
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Save persists one entry, filling in its ID and timestamp.
func (s *Store) Save(e *Entry) error {
	phrasesJSON, err := json.Marshal(e.Phrases)
	if err != nil {
		return fmt.Errorf("marshal phrases: %w", err)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	res, err := s.db.Exec(`
	INSERT INTO passes (module, status, abi, visited, rewritten, phrases, detail, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Module, e.Status, e.ABI, e.Visited, e.Rewritten, string(phrasesJSON), e.Detail, e.Timestamp)
	if err != nil {
		return fmt.Errorf("insert pass: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

// Recent returns the latest n entries, newest first.
func (s *Store) Recent(n int) ([]Entry, error) {
	return s.query(`
	SELECT id, module, status, abi, visited, rewritten, phrases, detail, timestamp
	FROM passes ORDER BY timestamp DESC, id DESC LIMIT ?`, n)
}

// ByModule returns every entry recorded for one module, newest first.
func (s *Store) ByModule(module string) ([]Entry, error) {
	return s.query(`
	SELECT id, module, status, abi, visited, rewritten, phrases, detail, timestamp
	FROM passes WHERE module = ? ORDER BY timestamp DESC, id DESC`, module)
}

func (s *Store) query(q string, args ...any) ([]Entry, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	var results []Entry
	for rows.Next() {
		var e Entry
		var phrasesRaw string
		if err := rows.Scan(&e.ID, &e.Module, &e.Status, &e.ABI, &e.Visited, &e.Rewritten, &phrasesRaw, &e.Detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		if err := json.Unmarshal([]byte(phrasesRaw), &e.Phrases); err != nil {
			return nil, fmt.Errorf("unmarshal phrases for pass %d: %w", e.ID, err)
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
