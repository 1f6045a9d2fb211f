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
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hexa/rfqdesk/internal/graph"
)

// Maximum subscription lifetime for messages is 4230 minutes (~2.94 days).
const maxSubscriptionMinutes = 4230

// API is the subset of the Graph client the manager needs.
type API interface {
	CreateSubscription(ctx context.Context, req graph.SubscriptionRequest, expiry time.Time) (graph.Subscription, error)
	RenewSubscription(ctx context.Context, id string, expiry time.Time) (graph.Subscription, error)
}

// LifecycleManager handles creation, renewal, and recovery of the inbox
// subscription. It runs a background renewal loop and responds to
// lifecycle notifications.
type LifecycleManager struct {
	api         API
	store       Store
	mailbox     string
	webhookURL  string
	renewBuffer time.Duration
	now         func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ManagerConfig holds the configuration for the lifecycle manager.
type ManagerConfig struct {
	API         API
	Store       Store
	Mailbox     string
	WebhookURL  string
	RenewBuffer time.Duration
}

// NewManager creates a new subscription lifecycle manager.
func NewManager(cfg ManagerConfig) *LifecycleManager {
	if cfg.RenewBuffer <= 0 {
		cfg.RenewBuffer = 6 * time.Hour
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	return &LifecycleManager{
		api:         cfg.API,
		store:       cfg.Store,
		mailbox:     cfg.Mailbox,
		webhookURL:  strings.TrimRight(cfg.WebhookURL, "/"),
		renewBuffer: cfg.RenewBuffer,
		now:         time.Now,
	}
}

// Store returns the record store, shared with the webhook handler for
// clientState validation.
func (m *LifecycleManager) Store() Store { return m.store }

// Start ensures the subscription exists and starts the renewal loop.
func (m *LifecycleManager) Start(ctx context.Context) error {
	if err := m.ensureSubscription(ctx); err != nil {
		return fmt.Errorf("ensure subscription for %s: %w", m.mailbox, err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	go m.renewalLoop(loopCtx)

	slog.Info("subscription lifecycle manager started",
		"mailbox", m.mailbox,
		"renewal_interval", m.renewalInterval(),
	)
	return nil
}

// Stop gracefully shuts down the renewal loop.
func (m *LifecycleManager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	slog.Info("subscription lifecycle manager stopped")
}

// ensureSubscription creates a subscription if none is active, or renews it
// if it is about to expire.
func (m *LifecycleManager) ensureSubscription(ctx context.Context) error {
	existing, err := m.store.Get(ctx, m.mailbox)
	if err != nil {
		return fmt.Errorf("check existing subscription: %w", err)
	}

	if existing != nil && existing.Status == StatusActive {
		if existing.ExpiresAt.Sub(m.now()) < m.renewBuffer {
			slog.Info("renewing near-expiry subscription",
				"mailbox", m.mailbox,
				"expires_in", existing.ExpiresAt.Sub(m.now()).Round(time.Minute),
			)
			return m.renewSubscription(ctx, *existing)
		}
		slog.Debug("subscription already active",
			"mailbox", m.mailbox,
			"expires_at", existing.ExpiresAt,
		)
		return nil
	}

	slog.Info("creating subscription", "mailbox", m.mailbox)
	return m.createSubscription(ctx)
}

// createSubscription registers a new Graph subscription for new inbox mail.
func (m *LifecycleManager) createSubscription(ctx context.Context) error {
	clientState := generateClientState()
	expiry := m.now().UTC().Add(time.Duration(maxSubscriptionMinutes) * time.Minute)

	req := graph.SubscriptionRequest{
		ChangeType:               "created",
		NotificationURL:          m.webhookURL + "/webhook/" + url.PathEscape(m.mailbox),
		LifecycleNotificationURL: m.webhookURL + "/lifecycle/" + url.PathEscape(m.mailbox),
		Resource:                 fmt.Sprintf("/users/%s/mailFolders('inbox')/messages", m.mailbox),
		ClientState:              clientState,
	}

	sub, err := m.api.CreateSubscription(ctx, req, expiry)
	if err != nil {
		return err
	}

	record := Record{
		SubscriptionID: sub.ID,
		Mailbox:        m.mailbox,
		ClientState:    clientState,
		ExpiresAt:      sub.ExpiresAt,
		Status:         StatusActive,
	}
	if err := m.store.Upsert(ctx, record); err != nil {
		return fmt.Errorf("persist subscription: %w", err)
	}

	slog.Info("subscription created",
		"mailbox", m.mailbox,
		"subscription_id", sub.ID,
		"expires_at", sub.ExpiresAt,
	)
	return nil
}

// renewSubscription extends the expiry, re-creating the subscription when
// Graph has already removed it.
func (m *LifecycleManager) renewSubscription(ctx context.Context, rec Record) error {
	newExpiry := m.now().UTC().Add(time.Duration(maxSubscriptionMinutes) * time.Minute)

	sub, err := m.api.RenewSubscription(ctx, rec.SubscriptionID, newExpiry)
	if graph.IsNotFound(err) {
		slog.Warn("subscription removed by Graph, re-creating",
			"subscription_id", rec.SubscriptionID,
			"mailbox", rec.Mailbox,
		)
		if err := m.store.MarkStatus(ctx, rec.SubscriptionID, StatusRemoved); err != nil {
			slog.Error("failed to mark subscription removed", "error", err)
		}
		return m.createSubscription(ctx)
	}
	if err != nil {
		return err
	}

	if err := m.store.UpdateExpiry(ctx, rec.SubscriptionID, sub.ExpiresAt); err != nil {
		return fmt.Errorf("update expiry in store: %w", err)
	}

	slog.Info("subscription renewed",
		"subscription_id", rec.SubscriptionID,
		"mailbox", rec.Mailbox,
		"new_expiry", sub.ExpiresAt,
	)
	return nil
}

func (m *LifecycleManager) renewalInterval() time.Duration {
	interval := m.renewBuffer / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	return interval
}

// renewalLoop runs periodically to renew expiring subscriptions.
func (m *LifecycleManager) renewalLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.renewalInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.renewExpiring(ctx)
		}
	}
}

// renewExpiring renews subscriptions close to expiry and recreates removed ones.
func (m *LifecycleManager) renewExpiring(ctx context.Context) {
	records, err := m.store.ListExpiringSoon(ctx, m.renewBuffer)
	if err != nil {
		slog.Error("failed to list expiring subscriptions", "error", err)
		return
	}

	for _, rec := range records {
		if err := m.renewSubscription(ctx, rec); err != nil {
			slog.Error("renewal failed",
				"subscription_id", rec.SubscriptionID,
				"mailbox", rec.Mailbox,
				"error", err,
			)
		}
	}

	if err := m.ensureSubscription(ctx); err != nil {
		slog.Error("failed to ensure subscription", "mailbox", m.mailbox, "error", err)
	}
}

// HandleLifecycleEvent processes a lifecycle notification from Graph.
func (m *LifecycleManager) HandleLifecycleEvent(ctx context.Context, lifecycleEvent, subscriptionID string) {
	switch lifecycleEvent {
	case "subscriptionRemoved":
		slog.Warn("subscription removed by Graph", "subscription_id", subscriptionID)
		if err := m.store.MarkStatus(ctx, subscriptionID, StatusRemoved); err != nil {
			slog.Error("failed to mark removed", "error", err)
		}
		if err := m.ensureSubscription(ctx); err != nil {
			slog.Error("failed to re-create subscription", "error", err)
		}

	case "reauthorizationRequired":
		slog.Info("reauthorization required", "subscription_id", subscriptionID)
		// Token refresh is handled by the oauth2 transport; renewing is enough.
		rec, err := m.store.GetBySubscriptionID(ctx, subscriptionID)
		if err != nil || rec == nil {
			slog.Error("could not find subscription for reauth", "subscription_id", subscriptionID)
			return
		}
		if err := m.renewSubscription(ctx, *rec); err != nil {
			slog.Error("reauthorization renewal failed", "error", err)
		}

	case "missed":
		// The inbox poller catches up on its next tick.
		slog.Warn("missed notifications detected", "subscription_id", subscriptionID)

	default:
		slog.Warn("unknown lifecycle event", "event", lifecycleEvent)
	}
}

// generateClientState creates a random secret for webhook validation.
func generateClientState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
