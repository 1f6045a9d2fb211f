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

// Package webhook handles incoming Graph API change notifications and
// lifecycle events. When the sales inbox receives a new message, Graph
// POSTs a notification here and the message is published to the
// active-item stream.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/hexa/rfqdesk/internal/activeitem"
	"github.com/hexa/rfqdesk/internal/dedup"
	"github.com/hexa/rfqdesk/internal/subscription"
)

// ChangeNotification represents a single Graph API change notification.
type ChangeNotification struct {
	SubscriptionID                 string `json:"subscriptionId"`
	ChangeType                     string `json:"changeType"`
	Resource                       string `json:"resource"`
	ClientState                    string `json:"clientState"`
	TenantID                       string `json:"tenantId"`
	LifecycleEvent                 string `json:"lifecycleEvent"`
	SubscriptionExpirationDateTime string `json:"subscriptionExpirationDateTime"`
}

// NotificationPayload is the wrapper Graph sends.
type NotificationPayload struct {
	Value []ChangeNotification `json:"value"`
}

// LifecycleHandler reacts to subscription lifecycle events.
type LifecycleHandler interface {
	HandleLifecycleEvent(ctx context.Context, lifecycleEvent, subscriptionID string)
}

// Handler turns change notifications into active-item events.
type Handler struct {
	store     subscription.Store
	lifecycle LifecycleHandler
	stream    *activeitem.Stream
	filter    dedup.Filter
}

// NewHandler creates a change notification handler. store and lifecycle may
// be nil when no subscription is managed; filter nil uses an in-memory filter.
func NewHandler(store subscription.Store, lifecycle LifecycleHandler, stream *activeitem.Stream, filter dedup.Filter) *Handler {
	if filter == nil {
		filter = dedup.NewMemoryFilter()
	}
	return &Handler{
		store:     store,
		lifecycle: lifecycle,
		stream:    stream,
		filter:    filter,
	}
}

// ServeNotification handles change notification webhook requests.
//
// Graph API validation flow:
//   - When creating a subscription, Graph sends a POST with ?validationToken=<token>
//   - We must respond 200 OK with the token in plain text
//
// Normal notification flow:
//   - Graph POSTs a JSON body with an array of ChangeNotification objects
//   - We respond 202 Accepted and publish each new message to the stream
func (h *Handler) ServeNotification(w http.ResponseWriter, r *http.Request) {
	if writeValidationToken(w, r) {
		return
	}

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusOK)
		return
	}

	payload, ok := readPayload(r)
	// Always 202 so Graph does not retry a payload we cannot use
	w.WriteHeader(http.StatusAccepted)
	if !ok {
		return
	}

	h.processNotifications(r.Context(), payload.Value)
}

// ServeLifecycle handles lifecycle notification webhook requests.
func (h *Handler) ServeLifecycle(w http.ResponseWriter, r *http.Request) {
	if writeValidationToken(w, r) {
		return
	}

	payload, ok := readPayload(r)
	w.WriteHeader(http.StatusAccepted)
	if !ok || h.lifecycle == nil {
		return
	}

	for _, n := range payload.Value {
		if n.LifecycleEvent == "" {
			continue
		}
		// Renewal talks to Graph; don't hold the response.
		go h.lifecycle.HandleLifecycleEvent(context.Background(), n.LifecycleEvent, n.SubscriptionID)
	}
}

// ServeHealth reports liveness.
func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeValidationToken(w http.ResponseWriter, r *http.Request) bool {
	token := r.URL.Query().Get("validationToken")
	if token == "" {
		return false
	}
	slog.Info("subscription validation probe received", "path", r.URL.Path)
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(token))
	return true
}

func readPayload(r *http.Request) (NotificationPayload, bool) {
	var payload NotificationPayload

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		slog.Error("failed to read notification body", "error", err)
		return payload, false
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.Info("notification body not valid JSON, treating as probe",
			"body_len", len(body),
		)
		return payload, false
	}
	return payload, true
}

// processNotifications publishes each new message to the active-item stream.
func (h *Handler) processNotifications(ctx context.Context, notifications []ChangeNotification) {
	for _, n := range notifications {
		// Skip non-creation events (we only care about new messages)
		if n.ChangeType != "created" {
			slog.Debug("skipping non-created notification",
				"change_type", n.ChangeType,
				"resource", n.Resource,
			)
			continue
		}

		mailbox, messageID, err := parseResource(n.Resource)
		if err != nil {
			slog.Warn("failed to parse notification resource",
				"resource", n.Resource,
				"error", err,
			)
			continue
		}

		mailbox, ok := h.validClientState(ctx, n, mailbox)
		if !ok {
			continue
		}

		if !h.isNew(ctx, messageID) {
			slog.Debug("skipping duplicate notification", "message_id", messageID)
			continue
		}

		slog.Info("change notification received",
			"mailbox", mailbox,
			"message_id", messageID,
		)

		if h.stream != nil {
			h.stream.Publish(activeitem.Event{
				MessageID: messageID,
				Mailbox:   mailbox,
				Source:    activeitem.SourceWebhook,
			})
		}
	}
}

// isNew reports whether the message has not been notified before. Dedup
// failures let the notification through.
func (h *Handler) isNew(ctx context.Context, messageID string) bool {
	if h.filter == nil {
		return true
	}
	isNew, err := h.filter.IsNew(ctx, "notification:"+messageID)
	if err != nil {
		slog.Warn("dedup check failed, proceeding", "error", err)
		return true
	}
	return isNew
}

// validClientState checks the notification against the stored subscription,
// found by subscription id or else by mailbox, and returns the mailbox the
// subscription is for. Lookup failures let the notification through so it
// is not lost.
func (h *Handler) validClientState(ctx context.Context, n ChangeNotification, mailbox string) (string, bool) {
	if h.store == nil {
		return mailbox, true
	}

	rec, err := h.store.GetBySubscriptionID(ctx, n.SubscriptionID)
	if err == nil && rec == nil {
		// Graph names the user by id in the resource; the mailbox only
		// matches when it was addressed by UPN.
		rec, err = h.store.Get(ctx, mailbox)
	}
	if err != nil {
		slog.Error("failed to look up subscription for validation",
			"subscription_id", n.SubscriptionID,
			"error", err,
		)
		return mailbox, true
	}
	if rec == nil {
		return mailbox, true
	}
	if rec.ClientState != n.ClientState {
		slog.Warn("clientState mismatch, possible spoofed notification",
			"subscription_id", n.SubscriptionID,
			"mailbox", rec.Mailbox,
		)
		return rec.Mailbox, false
	}

	if err := h.store.TouchNotification(ctx, rec.Mailbox); err != nil {
		slog.Debug("failed to record notification time", "error", err)
	}
	return rec.Mailbox, true
}

// parseResource extracts the mailbox and message id from a Graph
// notification resource string.
// Format: "users/{mailbox}/messages/{messageId}"
func parseResource(resource string) (mailbox, messageID string, err error) {
	// Remove leading slash if present
	resource = strings.TrimPrefix(resource, "/")

	parts := strings.Split(resource, "/")
	// Expected: ["users", "{mailbox}", "messages", "{messageId}"]
	// Graph may send capitalised variants: "Users", "Messages"
	if len(parts) != 4 || !strings.EqualFold(parts[0], "users") || !strings.EqualFold(parts[2], "messages") {
		return "", "", fmt.Errorf("unexpected resource format: %s", resource)
	}

	return strings.ToLower(parts[1]), parts[3], nil
}

// Serve starts the webhook HTTP server on the given port.
// It binds the port immediately and signals readiness via the returned channel
// before starting to accept connections.
func Serve(ctx context.Context, port int, handler *Handler) (<-chan struct{}, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/", handler.ServeNotification)
	mux.HandleFunc("/lifecycle/", handler.ServeLifecycle)
	mux.HandleFunc("/healthz", handler.ServeHealth)

	server := &http.Server{
		Handler: mux,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind webhook port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("webhook server shutting down")
		server.Close()
	}()

	go func() {
		slog.Info("webhook server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("webhook server error", "error", err)
		}
	}()

	return ready, nil
}
