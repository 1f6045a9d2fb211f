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

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultOutboundPrefix is the subject prefix of engineering review notifications.
const DefaultOutboundPrefix = "Technical Review Required - RFQ #41260018 (NRL - 2 FBG Arrays)"

// GraphConfig holds the app registration used for Graph calls.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	BaseURL      string
}

// Mailboxes names the three parties in the RFQ workflow.
type Mailboxes struct {
	Sales       string // mailbox the desk operates on
	Engineering string
	Customer    string
}

// WorkflowConfig tunes the active-item loop and message lookups.
type WorkflowConfig struct {
	OutboundPrefix string
	PollInterval   time.Duration
	LocateAttempts int
	LocateDelay    time.Duration
	QuoteFiles     []string
}

// CorrelationConfig selects the original-message map backend.
type CorrelationConfig struct {
	Backend     string // "memory", "sqlite" or "postgres"
	SQLitePath  string
	DatabaseURL string
	MaxEntries  int
}

// Config holds all configuration for the RFQ desk.
type Config struct {
	Graph       GraphConfig
	Mailboxes   Mailboxes
	Workflow    WorkflowConfig
	Correlation CorrelationConfig

	// Redis (optional). Empty URL disables the event feed and shared dedup.
	RedisURL    string
	EventsQueue string

	// Webhook
	WebhookURL  string
	WebhookPort int

	// Server (health check only)
	Port int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Graph struct {
		TenantID     string `yaml:"tenant_id"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		BaseURL      string `yaml:"base_url"`
	} `yaml:"graph"`
	Mailboxes struct {
		Sales       string `yaml:"sales"`
		Engineering string `yaml:"engineering"`
		Customer    string `yaml:"customer"`
	} `yaml:"mailboxes"`
	Workflow struct {
		OutboundSubjectPrefix string   `yaml:"outbound_subject_prefix"`
		PollInterval          string   `yaml:"poll_interval"`
		LocateAttempts        int      `yaml:"locate_attempts"`
		LocateDelay           string   `yaml:"locate_delay"`
		QuoteFiles            []string `yaml:"quote_files"`
	} `yaml:"workflow"`
	Correlation struct {
		Backend     string `yaml:"backend"`
		SQLitePath  string `yaml:"sqlite_path"`
		DatabaseURL string `yaml:"database_url"`
		MaxEntries  int    `yaml:"max_entries"`
	} `yaml:"correlation"`
	Redis struct {
		URL    string `yaml:"url"`
		Queues struct {
			Events string `yaml:"events"`
		} `yaml:"queues"`
	} `yaml:"redis"`
	Webhook struct {
		URL  string `yaml:"url"`
		Port int    `yaml:"port"`
	} `yaml:"webhook"`
	Port int `yaml:"port"`
}

// Load reads configuration from the YAML file at path (with env var expansion)
// and environment variables. A .env file in the working directory is loaded
// first if present. An empty path falls back to CONFIG_PATH, then config.yaml.
// A missing file is not an error: everything can come from the environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	configPath := firstNonEmpty(path, envOrDefault("CONFIG_PATH", "config.yaml"))

	var raw rawConfig
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	default:
		// Expand ${VAR} references in the YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	}

	return build(&raw)
}

// Parse builds a Config from YAML bytes, applying the same defaults and
// environment overrides as Load.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}
	return build(&raw)
}

func build(raw *rawConfig) (*Config, error) {
	cfg := &Config{
		Graph: GraphConfig{
			TenantID:     firstNonEmpty(raw.Graph.TenantID, os.Getenv("AZURE_TENANT_ID")),
			ClientID:     firstNonEmpty(raw.Graph.ClientID, os.Getenv("AZURE_CLIENT_ID")),
			ClientSecret: firstNonEmpty(raw.Graph.ClientSecret, os.Getenv("AZURE_CLIENT_SECRET")),
			BaseURL: strings.TrimRight(firstNonEmpty(raw.Graph.BaseURL,
				envOrDefault("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0")), "/"),
		},
		Mailboxes: Mailboxes{
			Sales:       strings.ToLower(firstNonEmpty(raw.Mailboxes.Sales, os.Getenv("SALES_MAILBOX"))),
			Engineering: strings.ToLower(firstNonEmpty(raw.Mailboxes.Engineering, os.Getenv("ENGINEERING_MAILBOX"))),
			Customer:    strings.ToLower(firstNonEmpty(raw.Mailboxes.Customer, os.Getenv("CUSTOMER_MAILBOX"))),
		},
		Workflow: WorkflowConfig{
			OutboundPrefix: firstNonEmpty(raw.Workflow.OutboundSubjectPrefix,
				envOrDefault("OUTBOUND_SUBJECT_PREFIX", DefaultOutboundPrefix)),
			PollInterval:   durationOr(raw.Workflow.PollInterval, envOrDefaultDuration("POLL_INTERVAL", 2*time.Second)),
			LocateAttempts: positiveOr(raw.Workflow.LocateAttempts, envOrDefaultInt("LOCATE_ATTEMPTS", 5)),
			LocateDelay:    durationOr(raw.Workflow.LocateDelay, envOrDefaultDuration("LOCATE_DELAY", 3*time.Second)),
			QuoteFiles:     raw.Workflow.QuoteFiles,
		},
		Correlation: CorrelationConfig{
			Backend:     strings.ToLower(firstNonEmpty(raw.Correlation.Backend, envOrDefault("CORRELATION_BACKEND", "sqlite"))),
			SQLitePath:  firstNonEmpty(raw.Correlation.SQLitePath, envOrDefault("SQLITE_PATH", "rfqdesk.db")),
			DatabaseURL: firstNonEmpty(raw.Correlation.DatabaseURL, os.Getenv("DATABASE_URL")),
			MaxEntries:  positiveOr(raw.Correlation.MaxEntries, envOrDefaultInt("CORRELATION_MAX_ENTRIES", 50)),
		},
		RedisURL:    firstNonEmpty(raw.Redis.URL, os.Getenv("REDIS_URL")),
		EventsQueue: firstNonEmpty(raw.Redis.Queues.Events, envOrDefault("EVENTS_QUEUE", "rfq_events")),
		WebhookURL:  firstNonEmpty(raw.Webhook.URL, os.Getenv("WEBHOOK_URL")),
		WebhookPort: positiveOr(raw.Webhook.Port, envOrDefaultInt("WEBHOOK_PORT", 8443)),
		Port:        positiveOr(raw.Port, envOrDefaultInt("PORT", 8080)),
	}

	if len(cfg.Workflow.QuoteFiles) == 0 {
		if v := os.Getenv("QUOTE_FILES"); v != "" {
			cfg.Workflow.QuoteFiles = strings.Split(v, ",")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields every command needs. The client secret is not
// required here since it may come from the OS keyring.
func (c *Config) Validate() error {
	var missing []string
	if c.Graph.TenantID == "" {
		missing = append(missing, "graph.tenant_id")
	}
	if c.Graph.ClientID == "" {
		missing = append(missing, "graph.client_id")
	}
	if c.Mailboxes.Sales == "" {
		missing = append(missing, "mailboxes.sales")
	}
	if c.Mailboxes.Engineering == "" {
		missing = append(missing, "mailboxes.engineering")
	}
	if c.Mailboxes.Customer == "" {
		missing = append(missing, "mailboxes.customer")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	switch c.Correlation.Backend {
	case "memory", "sqlite":
	case "postgres":
		if c.Correlation.DatabaseURL == "" {
			return fmt.Errorf("correlation backend postgres requires correlation.database_url")
		}
	default:
		return fmt.Errorf("unknown correlation backend %q", c.Correlation.Backend)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func durationOr(v string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
