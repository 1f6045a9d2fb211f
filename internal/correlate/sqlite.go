// Copyright (c) 2026 John Earle
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

package correlate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the original-message map in a local SQLite file.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists. An empty path opens an in-memory database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	inMemory := path == "" || path == ":memory:" || strings.Contains(path, "mode=memory")
	if path == "" {
		path = ":memory:"
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One connection keeps :memory: databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if !inMemory {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure correlation schema: %w", err)
	}
	slog.Info("correlation store initialised", "backend", "sqlite", "path", path)
	return s, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS original_messages (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			subject    TEXT NOT NULL UNIQUE,
			rest_id    TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`)
	return err
}

func (s *SQLiteStore) Put(ctx context.Context, subject, restID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO original_messages (subject, rest_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(subject) DO UPDATE SET rest_id = excluded.rest_id`,
		subject, restID, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("storing original for %q: %w", subject, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, subject string) (string, bool, error) {
	var restID string
	err := s.db.GetContext(ctx, &restID, "SELECT rest_id FROM original_messages WHERE subject = ?", subject)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up original for %q: %w", subject, err)
	}
	return restID, true, nil
}

func (s *SQLiteStore) Trim(ctx context.Context, max int) (int, error) {
	if max < 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM original_messages
		WHERE seq NOT IN (SELECT seq FROM original_messages ORDER BY seq DESC LIMIT ?)`,
		max,
	)
	if err != nil {
		return 0, fmt.Errorf("trimming original messages: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type sqliteEntry struct {
	Subject   string `db:"subject"`
	RestID    string `db:"rest_id"`
	CreatedAt int64  `db:"created_at"`
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	var rows []sqliteEntry
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT subject, rest_id, created_at FROM original_messages ORDER BY seq"); err != nil {
		return nil, fmt.Errorf("listing original messages: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, Entry{Subject: r.Subject, RestID: r.RestID, CreatedAt: time.UnixMilli(r.CreatedAt).UTC()})
	}
	return out, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
