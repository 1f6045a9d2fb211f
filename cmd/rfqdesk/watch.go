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
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hexa/rfqdesk/internal/activeitem"
	"github.com/hexa/rfqdesk/internal/dedup"
	"github.com/hexa/rfqdesk/internal/subscription"
	"github.com/hexa/rfqdesk/internal/webhook"
	"github.com/hexa/rfqdesk/internal/workflow"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the sales inbox and classify each new active message",
	Long: `watch polls the sales inbox every poll interval and, when webhook.url is
set, also receives Graph change notifications for it. Each new message
becomes the active item: it is classified and its RFQ category applied.

Stops on SIGINT or SIGTERM after draining queued category updates.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
		defer cancel()
		return runWatch(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(ctx context.Context) error {
	// Shutdown is driven by ctx; the app outlives it so queued work drains.
	a, err := newApp(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}
	defer a.Close()

	if a.graph == nil {
		return workflow.ErrNotSignedIn
	}
	cfg := a.cfg

	slog.Info("starting RFQ desk",
		"sales", cfg.Mailboxes.Sales,
		"poll_interval", cfg.Workflow.PollInterval,
		"session", a.session.ID(),
	)

	if err := a.session.EnsureCategories(ctx); err != nil {
		slog.Warn("failed to ensure RFQ categories", "error", err)
	}

	stream := activeitem.NewStream(64)

	// --- Webhook + subscription (optional) ---
	var mgr *subscription.LifecycleManager
	if webhookURL := resolveWebhookURL(cfg.WebhookURL); webhookURL != "" {
		var store subscription.Store = subscription.NewMemoryStore()
		if a.pool != nil {
			pgStore, err := subscription.NewPostgresStore(ctx, a.pool)
			if err != nil {
				return fmt.Errorf("initialise subscription store: %w", err)
			}
			store = pgStore
		}

		mgr = subscription.NewManager(subscription.ManagerConfig{
			API:        a.graph,
			Store:      store,
			Mailbox:    cfg.Mailboxes.Sales,
			WebhookURL: webhookURL,
		})

		var filter dedup.Filter = dedup.NewMemoryFilter()
		if a.rdb != nil {
			filter = dedup.NewRedisFilter(a.rdb, a.session.ID())
		}

		// Graph validates the endpoint while the subscription is created,
		// so the server must be up first.
		handler := webhook.NewHandler(store, mgr, stream, filter)
		ready, err := webhook.Serve(ctx, cfg.WebhookPort, handler)
		if err != nil {
			return err
		}
		<-ready

		if err := mgr.Start(ctx); err != nil {
			// Polling still works without notifications.
			slog.Error("failed to start subscription manager", "error", err)
			mgr = nil
		}
	} else {
		slog.Info("webhook url not set, relying on polling only")
	}

	// --- Producers and the single consumer ---
	var wg sync.WaitGroup
	poller := activeitem.NewPoller(a.graph, cfg.Mailboxes.Sales, cfg.Workflow.PollInterval, stream)
	wg.Add(2)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		stream.Consume(ctx, a.session.HandleEvent)
	}()

	// --- Health Check Server ---
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      healthMux(a),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("health server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("health server error", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("received shutdown signal")

	if mgr != nil {
		mgr.Stop()
	}
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("RFQ desk stopped")
	return nil
}

// healthMux reports the state of the backends the desk is connected to and
// the currently open message.
func healthMux(a *app) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if a.events != nil {
			if err := a.events.Ping(r.Context()); err != nil {
				http.Error(w, "redis unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		if a.pool != nil {
			if err := a.pool.Ping(r.Context()); err != nil {
				http.Error(w, "postgres unhealthy", http.StatusServiceUnavailable)
				return
			}
		}

		body := map[string]string{"status": "healthy", "session": a.session.ID()}
		if ref, stage, _, ok := a.session.Current(); ok {
			body["message_id"] = ref.RestID
			body["stage"] = stage.String()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	})
	return mux
}

// resolveWebhookURL resolves the webhook URL from config.
//
//   - Empty string → "" (polling only)
//   - "auto" → discover the public URL from a local ngrok agent
//   - Any other string → use as-is
func resolveWebhookURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ToLower(raw) != "auto" {
		return raw
	}

	ngrokAPI := os.Getenv("NGROK_API_URL")
	if ngrokAPI == "" {
		ngrokAPI = "http://127.0.0.1:4040"
	}

	slog.Info("discovering webhook URL from ngrok", "api", ngrokAPI)

	var lastErr error
	for attempt := 0; attempt < 10; attempt++ {
		url, err := ngrokTunnel(ngrokAPI)
		if err == nil {
			slog.Info("ngrok tunnel discovered", "url", url)
			return url
		}
		lastErr = err
		slog.Debug("ngrok not ready, retrying", "attempt", attempt+1, "error", err)
		time.Sleep(2 * time.Second)
	}

	slog.Error("failed to discover ngrok tunnel", "error", lastErr)
	return ""
}

// ngrokTunnel returns the public URL of the first tunnel, preferring https.
func ngrokTunnel(api string) (string, error) {
	resp, err := http.Get(api + "/api/tunnels")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		Tunnels []struct {
			PublicURL string `json:"public_url"`
			Proto     string `json:"proto"`
		} `json:"tunnels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	for _, t := range result.Tunnels {
		if t.Proto == "https" {
			return t.PublicURL, nil
		}
	}
	if len(result.Tunnels) > 0 {
		return result.Tunnels[0].PublicURL, nil
	}
	return "", fmt.Errorf("no tunnels found")
}
