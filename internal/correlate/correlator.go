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

// Package correlate threads replies to engineering notifications back to the
// customer message that triggered them. Each notification gets a unique,
// timestamped subject which is stored against the original message's REST id.
package correlate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hexa/rfqdesk/internal/models"
)

// DefaultMaxEntries bounds the original-message map.
const DefaultMaxEntries = 50

// subjectSeparator joins the prefix and the timestamp. It is an en dash.
const subjectSeparator = " – "

// timestampLayout is ISO-8601 UTC with millisecond resolution.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Correlator generates outbound subjects and resolves replies to them.
type Correlator struct {
	store      Store
	prefix     string
	maxEntries int
	now        func() time.Time

	mu   sync.Mutex
	last time.Time
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Correlator) { c.now = now }
}

// WithMaxEntries overrides DefaultMaxEntries. Values below 1 are ignored.
func WithMaxEntries(n int) Option {
	return func(c *Correlator) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// New creates a Correlator that prefixes generated subjects with prefix.
func New(store Store, prefix string, opts ...Option) *Correlator {
	c := &Correlator{
		store:      store,
		prefix:     strings.TrimSpace(prefix),
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Prefix returns the outbound subject prefix.
func (c *Correlator) Prefix() string { return c.prefix }

// RecordOutbound generates a fresh outbound subject, stores it against
// original.RestID and evicts the oldest entries beyond the bound.
func (c *Correlator) RecordOutbound(ctx context.Context, original models.MessageRef) (string, error) {
	if original.RestID == "" {
		return "", fmt.Errorf("record outbound: original message has no REST id")
	}

	subject := c.prefix + subjectSeparator + c.nextTimestamp().Format(timestampLayout)

	if err := c.store.Put(ctx, subject, original.RestID); err != nil {
		return "", fmt.Errorf("record outbound: %w", err)
	}

	evicted, err := c.store.Trim(ctx, c.maxEntries)
	if err != nil {
		// The entry itself is stored; an oversized map is harmless.
		slog.Warn("failed to trim original-message map", "error", err)
	} else if evicted > 0 {
		slog.Debug("evicted original-message entries", "count", evicted, "max", c.maxEntries)
	}

	slog.Info("recorded outbound subject",
		"subject", subject,
		"original_id", original.RestID,
	)
	return subject, nil
}

// ResolveOriginal looks up normalizedSubject verbatim.
func (c *Correlator) ResolveOriginal(ctx context.Context, normalizedSubject string) (string, bool, error) {
	restID, ok, err := c.store.Get(ctx, normalizedSubject)
	if err != nil {
		return "", false, fmt.Errorf("resolve original: %w", err)
	}
	return restID, ok, nil
}

// Entries lists the stored map, oldest first.
func (c *Correlator) Entries(ctx context.Context) ([]Entry, error) {
	return c.store.List(ctx)
}

// nextTimestamp returns the current millisecond, bumped past the previous
// value so that two calls never produce the same subject.
func (c *Correlator) nextTimestamp() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := c.now().UTC().Truncate(time.Millisecond)
	if !ts.After(c.last) {
		ts = c.last.Add(time.Millisecond)
	}
	c.last = ts
	return ts
}
