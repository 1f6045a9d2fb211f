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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hexa/rfqdesk/internal/correlate"
	"github.com/hexa/rfqdesk/internal/workflow"
)

// TestParseLevel verifies the accepted --log-level values.
func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := parseLevel(in)
		if err != nil || got != want {
			t.Errorf("parseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := parseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

// TestResolveWebhookURL_Static verifies non-auto values pass through.
func TestResolveWebhookURL_Static(t *testing.T) {
	if got := resolveWebhookURL("  https://desk.example.com "); got != "https://desk.example.com" {
		t.Errorf("got %q", got)
	}
	if got := resolveWebhookURL(""); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

// TestNgrokTunnel verifies https tunnels are preferred.
func TestNgrokTunnel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"tunnels": []map[string]string{
			{"public_url": "http://abc.ngrok.app", "proto": "http"},
			{"public_url": "https://abc.ngrok.app", "proto": "https"},
		}})
	}))
	defer srv.Close()

	got, err := ngrokTunnel(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://abc.ngrok.app" {
		t.Errorf("got %q", got)
	}
}

// TestReport verifies error lines carry remediation hints.
func TestReport(t *testing.T) {
	var buf bytes.Buffer
	report(&buf, fmt.Errorf("notify: %w", workflow.ErrNotSignedIn))
	if !strings.Contains(buf.String(), "rfqdesk secret set") {
		t.Errorf("missing sign-in hint: %q", buf.String())
	}

	buf.Reset()
	report(&buf, &workflow.PermissionError{Mailbox: "sales@example.com", Err: errors.New("403")})
	if !strings.Contains(buf.String(), "grant Full Access to mailbox sales@example.com") {
		t.Errorf("missing permission hint: %q", buf.String())
	}
}

// TestPrintEntries verifies each correlation is listed with its original.
func TestPrintEntries(t *testing.T) {
	var buf bytes.Buffer
	printEntries(&buf, nil)
	if !strings.Contains(buf.String(), "no outbound subjects recorded") {
		t.Errorf("empty listing = %q", buf.String())
	}

	buf.Reset()
	printEntries(&buf, []correlate.Entry{
		{Subject: "Review – 2026-01-02T03:04:05.000Z", RestID: "rfq-1", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
		{Subject: "Review – 2026-01-02T03:04:05.001Z", RestID: "rfq-2"},
	})
	out := buf.String()
	for _, want := range []string{"original rfq-1, 2026-01-02 03:04:05", "original rfq-2", "2 entries"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q: %q", want, out)
		}
	}
}
