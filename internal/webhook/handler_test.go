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

package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hexa/rfqdesk/internal/activeitem"
	"github.com/hexa/rfqdesk/internal/dedup"
	"github.com/hexa/rfqdesk/internal/subscription"
)

// TestParseResource verifies the resource path parser.
func TestParseResource(t *testing.T) {
	tests := []struct {
		resource  string
		wantUser  string
		wantMsg   string
		wantError bool
	}{
		{
			resource: "users/abc123/messages/msg456",
			wantUser: "abc123",
			wantMsg:  "msg456",
		},
		{
			resource: "Users/Sales@Example.com/Messages/msg456",
			wantUser: "sales@example.com",
			wantMsg:  "msg456",
		},
		{
			resource: "/users/abc123/messages/msg456",
			wantUser: "abc123",
			wantMsg:  "msg456",
		},
		{
			resource:  "users/abc123/mailFolders/inbox",
			wantError: true,
		},
		{
			resource:  "invalid",
			wantError: true,
		},
		{
			resource:  "",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.resource, func(t *testing.T) {
			userID, msgID, err := parseResource(tt.resource)
			if tt.wantError {
				if err == nil {
					t.Errorf("expected error for resource %q, got none", tt.resource)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if userID != tt.wantUser {
				t.Errorf("userID = %q, want %q", userID, tt.wantUser)
			}
			if msgID != tt.wantMsg {
				t.Errorf("messageID = %q, want %q", msgID, tt.wantMsg)
			}
		})
	}
}

// TestServeNotification_ValidationToken verifies the validation probe flow.
func TestServeNotification_ValidationToken(t *testing.T) {
	h := &Handler{}

	req := httptest.NewRequest(http.MethodPost, "/webhook/sales@example.com?validationToken=test-token-123", nil)
	rr := httptest.NewRecorder()

	h.ServeNotification(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	body := rr.Body.String()
	if body != "test-token-123" {
		t.Errorf("body = %q, want %q", body, "test-token-123")
	}

	if ct := rr.Header().Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
}

// TestServeLifecycle_ValidationToken verifies lifecycle endpoint validation probes.
func TestServeLifecycle_ValidationToken(t *testing.T) {
	h := &Handler{}

	req := httptest.NewRequest(http.MethodPost, "/lifecycle/sales@example.com?validationToken=lifecycle-token", nil)
	rr := httptest.NewRecorder()

	h.ServeLifecycle(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	if body := rr.Body.String(); body != "lifecycle-token" {
		t.Errorf("body = %q, want %q", body, "lifecycle-token")
	}
}

// TestServeNotification_AcceptsNotifications verifies that notification payloads
// are accepted with 202 and processed.
func TestServeNotification_AcceptsNotifications(t *testing.T) {
	h := &Handler{} // nil deps, processNotifications handles them

	payload := NotificationPayload{
		Value: []ChangeNotification{
			{
				SubscriptionID: "sub-1",
				ChangeType:     "created",
				Resource:       "users/sales@example.com/messages/msg1",
				ClientState:    "secret",
				TenantID:       "tenant-1",
			},
		},
	}

	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/webhook/sales@example.com", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	h.ServeNotification(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusAccepted)
	}
}

// TestServeNotification_NonPostReturnsOK verifies GET requests return 200.
func TestServeNotification_NonPostReturnsOK(t *testing.T) {
	h := &Handler{}

	req := httptest.NewRequest(http.MethodGet, "/webhook/sales@example.com", nil)
	rr := httptest.NewRecorder()

	h.ServeNotification(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

// TestServeNotification_InvalidJSON verifies graceful handling of bad payloads.
func TestServeNotification_InvalidJSON(t *testing.T) {
	h := &Handler{}

	req := httptest.NewRequest(http.MethodPost, "/webhook/sales@example.com", strings.NewReader("not json"))
	rr := httptest.NewRecorder()

	h.ServeNotification(rr, req)

	// Should still return 202 so Graph does not retry
	if rr.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusAccepted)
	}
}

// collect drains the stream into a slice until the handler has published
// want events or the deadline passes.
func collect(t *testing.T, stream *activeitem.Stream, want int) []activeitem.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var (
		mu  sync.Mutex
		got []activeitem.Event
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		stream.Consume(ctx, func(_ context.Context, ev activeitem.Event) error {
			mu.Lock()
			got = append(got, ev)
			n := len(got)
			mu.Unlock()
			if n >= want {
				cancel()
			}
			return nil
		})
	}()
	<-done

	mu.Lock()
	defer mu.Unlock()
	return got
}

func post(t *testing.T, h *Handler, notifications ...ChangeNotification) {
	t.Helper()
	body, _ := json.Marshal(NotificationPayload{Value: notifications})
	req := httptest.NewRequest(http.MethodPost, "/webhook/sales@example.com", strings.NewReader(string(body)))
	rr := httptest.NewRecorder()
	h.ServeNotification(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusAccepted)
	}
}

// TestServeNotification_PublishesCreated verifies that a created notification
// with a matching clientState lands on the active-item stream once.
func TestServeNotification_PublishesCreated(t *testing.T) {
	store := subscription.NewMemoryStore()
	ctx := context.Background()
	if err := store.Upsert(ctx, subscription.Record{
		SubscriptionID: "sub-1",
		Mailbox:        "sales@example.com",
		ClientState:    "secret",
		ExpiresAt:      time.Now().Add(time.Hour),
		Status:         subscription.StatusActive,
	}); err != nil {
		t.Fatal(err)
	}
	stream := activeitem.NewStream(8)
	h := NewHandler(store, nil, stream, dedup.NewMemoryFilter())

	n := ChangeNotification{
		SubscriptionID: "sub-1",
		ChangeType:     "created",
		Resource:       "Users/sales@example.com/Messages/msg-1",
		ClientState:    "secret",
	}
	post(t, h, n)
	post(t, h, n) // duplicate delivery
	post(t, h, ChangeNotification{ChangeType: "updated", Resource: "users/sales@example.com/messages/msg-2", ClientState: "secret"})
	post(t, h, ChangeNotification{ChangeType: "created", Resource: "users/sales@example.com/messages/msg-3", ClientState: "secret"})

	got := collect(t, stream, 2)
	if len(got) != 2 {
		t.Fatalf("published %d events, want 2: %+v", len(got), got)
	}
	if got[0].MessageID != "msg-1" || got[0].Source != activeitem.SourceWebhook || got[0].Mailbox != "sales@example.com" {
		t.Errorf("first event = %+v", got[0])
	}
	if got[1].MessageID != "msg-3" {
		t.Errorf("second event = %+v, want msg-3", got[1])
	}

	rec, err := store.Get(ctx, "sales@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if rec.LastNotification == nil {
		t.Error("LastNotification not recorded")
	}
}

// TestServeNotification_ClientStateMismatch verifies spoofed notifications are dropped.
func TestServeNotification_ClientStateMismatch(t *testing.T) {
	store := subscription.NewMemoryStore()
	if err := store.Upsert(context.Background(), subscription.Record{
		SubscriptionID: "sub-1",
		Mailbox:        "sales@example.com",
		ClientState:    "secret",
		Status:         subscription.StatusActive,
	}); err != nil {
		t.Fatal(err)
	}
	stream := activeitem.NewStream(8)
	h := NewHandler(store, nil, stream, nil)

	post(t, h, ChangeNotification{
		ChangeType:  "created",
		Resource:    "users/sales@example.com/messages/msg-1",
		ClientState: "wrong",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	stream.Consume(ctx, func(_ context.Context, ev activeitem.Event) error {
		t.Errorf("unexpected event %+v", ev)
		return nil
	})
}

type fakeLifecycle struct {
	mu     sync.Mutex
	events []string
	done   chan struct{}
}

func (f *fakeLifecycle) HandleLifecycleEvent(_ context.Context, event, subscriptionID string) {
	f.mu.Lock()
	f.events = append(f.events, event+":"+subscriptionID)
	f.mu.Unlock()
	f.done <- struct{}{}
}

// TestServeLifecycle_Dispatches verifies lifecycle events reach the manager.
func TestServeLifecycle_Dispatches(t *testing.T) {
	lc := &fakeLifecycle{done: make(chan struct{}, 1)}
	h := NewHandler(nil, lc, nil, nil)

	body, _ := json.Marshal(NotificationPayload{Value: []ChangeNotification{
		{SubscriptionID: "sub-9", LifecycleEvent: "reauthorizationRequired"},
	}})
	req := httptest.NewRequest(http.MethodPost, "/lifecycle/sales@example.com", strings.NewReader(string(body)))
	rr := httptest.NewRecorder()
	h.ServeLifecycle(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusAccepted)
	}

	select {
	case <-lc.done:
	case <-time.After(time.Second):
		t.Fatal("lifecycle event not dispatched")
	}
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if len(lc.events) != 1 || lc.events[0] != "reauthorizationRequired:sub-9" {
		t.Errorf("events = %v", lc.events)
	}
}

// TestServeHealth verifies the liveness endpoint.
func TestServeHealth(t *testing.T) {
	h := &Handler{}
	rr := httptest.NewRecorder()
	h.ServeHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "ok") {
		t.Errorf("health = %d %q", rr.Code, rr.Body.String())
	}
}

// TestServeNotification_UserIDResource verifies that notifications naming the
// user by id are validated through the subscription id and carry the
// subscribed mailbox.
func TestServeNotification_UserIDResource(t *testing.T) {
	store := subscription.NewMemoryStore()
	if err := store.Upsert(context.Background(), subscription.Record{
		SubscriptionID: "sub-1",
		Mailbox:        "sales@example.com",
		ClientState:    "secret",
		Status:         subscription.StatusActive,
	}); err != nil {
		t.Fatal(err)
	}
	stream := activeitem.NewStream(8)
	h := NewHandler(store, nil, stream, nil)

	post(t, h,
		ChangeNotification{
			SubscriptionID: "sub-1",
			ChangeType:     "created",
			Resource:       "Users/5f0c1d2e-0000-4000-8000-000000000001/Messages/msg-spoof",
			ClientState:    "guess",
		},
		ChangeNotification{
			SubscriptionID: "sub-1",
			ChangeType:     "created",
			Resource:       "Users/5f0c1d2e-0000-4000-8000-000000000001/Messages/msg-9",
			ClientState:    "secret",
		},
	)

	got := collect(t, stream, 1)
	if len(got) != 1 {
		t.Fatalf("published %d events, want 1: %+v", len(got), got)
	}
	if got[0].MessageID != "msg-9" || got[0].Mailbox != "sales@example.com" {
		t.Errorf("event = %+v", got[0])
	}
}
