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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/hexa/rfqdesk/internal/config"
	"github.com/hexa/rfqdesk/internal/correlate"
	"github.com/hexa/rfqdesk/internal/credential"
	"github.com/hexa/rfqdesk/internal/dedup"
	"github.com/hexa/rfqdesk/internal/graph"
	"github.com/hexa/rfqdesk/internal/queue"
	"github.com/hexa/rfqdesk/internal/sidefx"
	"github.com/hexa/rfqdesk/internal/workflow"
)

// app holds the connections and the session shared by every subcommand.
type app struct {
	cfg     *config.Config
	graph   *graph.Client // nil when no client secret is available
	pool    *pgxpool.Pool
	rdb     *redis.Client
	store   correlate.Store
	corr    *correlate.Correlator
	events  *queue.Publisher
	fx      *sidefx.Queue
	session *workflow.Session
}

// newApp loads configuration and connects the backends it names.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	slog.Debug("configuration loaded",
		"sales", cfg.Mailboxes.Sales,
		"correlation_backend", cfg.Correlation.Backend,
		"redis", cfg.RedisURL != "",
	)

	a := &app{cfg: cfg}
	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) connect(ctx context.Context) error {
	cfg := a.cfg

	// --- PostgreSQL (optional) ---
	if cfg.Correlation.Backend == "postgres" {
		pool, err := pgxpool.New(ctx, cfg.Correlation.DatabaseURL)
		if err != nil {
			return fmt.Errorf("create Postgres pool: %w", err)
		}
		a.pool = pool
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("connect to PostgreSQL: %w", err)
		}
		slog.Info("connected to PostgreSQL")
	}

	// --- Correlation store ---
	switch cfg.Correlation.Backend {
	case "memory":
		a.store = correlate.NewMemoryStore()
	case "sqlite":
		store, err := correlate.NewSQLiteStore(ctx, cfg.Correlation.SQLitePath)
		if err != nil {
			return err
		}
		a.store = store
	case "postgres":
		store, err := correlate.NewPostgresStore(ctx, a.pool)
		if err != nil {
			return err
		}
		a.store = store
	}

	// --- Redis (optional) ---
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		a.rdb = redis.NewClient(opt)
		a.events = queue.NewPublisher(a.rdb, cfg.EventsQueue)
		if err := a.events.Ping(ctx); err != nil {
			return fmt.Errorf("connect to Redis: %w", err)
		}
		slog.Info("connected to Redis", "queue", cfg.EventsQueue)
	}

	// --- Graph ---
	httpClient, err := graphHTTPClient(ctx, cfg.Graph)
	if err != nil {
		return err
	}
	if httpClient != nil {
		a.graph = graph.NewClient(httpClient, cfg.Graph.BaseURL)
	}

	// --- Session ---
	a.fx = sidefx.New(sidefx.DefaultSize)
	a.fx.Start(ctx)

	opts := workflow.Options{
		SalesMailbox:       cfg.Mailboxes.Sales,
		EngineeringMailbox: cfg.Mailboxes.Engineering,
		CustomerMailbox:    cfg.Mailboxes.Customer,
		LocateAttempts:     cfg.Workflow.LocateAttempts,
		LocateDelay:        cfg.Workflow.LocateDelay,
		QuoteFiles:         cfg.Workflow.QuoteFiles,
	}
	a.corr = correlate.New(a.store, cfg.Workflow.OutboundPrefix,
		correlate.WithMaxEntries(cfg.Correlation.MaxEntries))

	// Typed nils must not leak into the interfaces.
	if a.events != nil {
		opts.Events = a.events
	}
	var g workflow.Graph
	if a.graph != nil {
		g = a.graph
	}

	opts.SessionID = uuid.NewString()
	if a.rdb != nil {
		// Keyed by session so a restarted desk propagates each thread again.
		opts.Seen = dedup.NewRedisFilter(a.rdb, opts.SessionID)
	}

	a.session = workflow.New(g, a.corr, a.fx, opts)
	slog.Info("session started", "session", a.session.ID())
	return nil
}

// graphHTTPClient returns an http.Client carrying client-credentials tokens,
// or nil when no client secret is configured or stored.
func graphHTTPClient(ctx context.Context, gc config.GraphConfig) (*http.Client, error) {
	secret := gc.ClientSecret
	if secret == "" {
		var err error
		secret, err = storedSecret(gc.ClientID)
		if err != nil {
			return nil, err
		}
	}
	if secret == "" {
		slog.Warn("no Graph client secret configured; actions will ask to sign in")
		return nil, nil
	}

	creds := &clientcredentials.Config{
		ClientID:     gc.ClientID,
		ClientSecret: secret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", gc.TenantID),
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
	return creds.Client(ctx), nil
}

// storedSecret reads the client secret from the OS keyring. A missing
// keyring or entry yields "".
func storedSecret(clientID string) (string, error) {
	store, err := credential.Open()
	if err != nil {
		slog.Debug("keyring unavailable", "error", err)
		return "", nil
	}
	secret, err := store.Get(credential.ClientSecretKey(clientID))
	if errors.Is(err, credential.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read client secret from keyring: %w", err)
	}
	return secret, nil
}

// Close drains pending side effects and releases connections.
func (a *app) Close() {
	if a.fx != nil {
		a.fx.Stop()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("failed to close correlation store", "error", err)
		}
	}
	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
