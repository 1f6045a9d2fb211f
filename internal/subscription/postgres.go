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

package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps subscription records in Postgres so a restarted
// watcher renews the existing subscription instead of creating another.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a subscription store backed by the given pool.
// It ensures the table exists on creation.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure subscription schema: %w", err)
	}
	slog.Info("subscription store initialised", "backend", "postgres")
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rfq_subscriptions (
			mailbox           TEXT PRIMARY KEY,
			subscription_id   TEXT NOT NULL UNIQUE,
			client_state      TEXT NOT NULL,
			expires_at        TIMESTAMPTZ NOT NULL,
			status            TEXT DEFAULT 'active',
			last_notification TIMESTAMPTZ,
			updated_at        TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_rfq_subs_expires ON rfq_subscriptions(expires_at);
	`)
	return err
}

// Upsert inserts or replaces the mailbox's subscription.
func (s *PostgresStore) Upsert(ctx context.Context, r Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rfq_subscriptions
			(mailbox, subscription_id, client_state, expires_at, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (mailbox) DO UPDATE SET
			subscription_id = EXCLUDED.subscription_id,
			client_state    = EXCLUDED.client_state,
			expires_at      = EXCLUDED.expires_at,
			status          = EXCLUDED.status,
			updated_at      = NOW()
	`, r.Mailbox, r.SubscriptionID, r.ClientState, r.ExpiresAt, r.Status)
	return err
}

const selectRecord = `
	SELECT mailbox, subscription_id, client_state, expires_at, status, last_notification
	FROM rfq_subscriptions`

func (s *PostgresStore) Get(ctx context.Context, mailbox string) (*Record, error) {
	return scanRecord(s.pool.QueryRow(ctx, selectRecord+` WHERE mailbox = $1`, mailbox))
}

func (s *PostgresStore) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*Record, error) {
	return scanRecord(s.pool.QueryRow(ctx, selectRecord+` WHERE subscription_id = $1`, subscriptionID))
}

// ListExpiringSoon returns active subscriptions expiring within the given buffer.
func (s *PostgresStore) ListExpiringSoon(ctx context.Context, buffer time.Duration) ([]Record, error) {
	rows, err := s.pool.Query(ctx, selectRecord+`
		WHERE status = 'active' AND expires_at < NOW() + $1::interval
		ORDER BY expires_at
	`, fmt.Sprintf("%d seconds", int(buffer.Seconds())))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

func (s *PostgresStore) UpdateExpiry(ctx context.Context, subscriptionID string, expiry time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE rfq_subscriptions SET expires_at = $1, updated_at = NOW()
		WHERE subscription_id = $2
	`, expiry, subscriptionID)
	return err
}

func (s *PostgresStore) MarkStatus(ctx context.Context, subscriptionID, status string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE rfq_subscriptions SET status = $1, updated_at = NOW()
		WHERE subscription_id = $2
	`, status, subscriptionID)
	return err
}

func (s *PostgresStore) TouchNotification(ctx context.Context, mailbox string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE rfq_subscriptions SET last_notification = NOW(), updated_at = NOW()
		WHERE mailbox = $1
	`, mailbox)
	return err
}

// scanRecord scans a single row into a Record.
func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(&r.Mailbox, &r.SubscriptionID, &r.ClientState, &r.ExpiresAt, &r.Status, &r.LastNotification)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
