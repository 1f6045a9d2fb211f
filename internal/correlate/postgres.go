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
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the original-message map in Postgres so several desks
// can share it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by the given pool and ensures the
// table exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure correlation schema: %w", err)
	}
	slog.Info("correlation store initialised", "backend", "postgres")
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS original_messages (
			seq        BIGSERIAL PRIMARY KEY,
			subject    TEXT NOT NULL UNIQUE,
			rest_id    TEXT NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
	`)
	return err
}

func (s *PostgresStore) Put(ctx context.Context, subject, restID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO original_messages (subject, rest_id)
		VALUES ($1, $2)
		ON CONFLICT (subject) DO UPDATE SET rest_id = EXCLUDED.rest_id
	`, subject, restID)
	if err != nil {
		return fmt.Errorf("storing original for %q: %w", subject, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, subject string) (string, bool, error) {
	var restID string
	err := s.pool.QueryRow(ctx,
		`SELECT rest_id FROM original_messages WHERE subject = $1`, subject,
	).Scan(&restID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up original for %q: %w", subject, err)
	}
	return restID, true, nil
}

func (s *PostgresStore) Trim(ctx context.Context, max int) (int, error) {
	if max < 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM original_messages
		WHERE seq NOT IN (SELECT seq FROM original_messages ORDER BY seq DESC LIMIT $1)
	`, max)
	if err != nil {
		return 0, fmt.Errorf("trimming original messages: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT subject, rest_id, created_at FROM original_messages ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("listing original messages: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Subject, &e.RestID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan original message: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }
