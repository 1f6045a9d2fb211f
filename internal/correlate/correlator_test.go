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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hexa/rfqdesk/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"pgregory.net/rapid"
)

const testPrefix = "Technical Review Required - RFQ #41260018 (NRL - 2 FBG Arrays)"

// fixedClock always returns the same instant.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func original(id string) models.MessageRef {
	return models.NewMessageRef(id, "conv-"+id, "RFQ for Widgets", "customer-1@example.com")
}

// storeFactories lists every backend the conformance tests run against.
func storeFactories(t *testing.T) map[string]func(t *testing.T) Store {
	f := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "rfq.db"))
			if err != nil {
				t.Fatalf("NewSQLiteStore: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		f["postgres"] = func(t *testing.T) Store {
			ctx := context.Background()
			pool, err := pgxpool.New(ctx, dsn)
			if err != nil {
				t.Fatalf("pgxpool.New: %v", err)
			}
			t.Cleanup(pool.Close)
			s, err := NewPostgresStore(ctx, pool)
			if err != nil {
				t.Fatalf("NewPostgresStore: %v", err)
			}
			if _, err := pool.Exec(ctx, "TRUNCATE original_messages"); err != nil {
				t.Fatalf("truncate: %v", err)
			}
			return s
		}
	}
	return f
}

// TestRecordOutbound_Format verifies the subject layout and the stored mapping.
func TestRecordOutbound_Format(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := New(newStore(t), testPrefix, WithClock(fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))))

			subject, err := c.RecordOutbound(ctx, original("AAMk-original"))
			if err != nil {
				t.Fatalf("RecordOutbound: %v", err)
			}

			want := testPrefix + " – 2024-01-01T00:00:00.000Z"
			if subject != want {
				t.Errorf("subject = %q, want %q", subject, want)
			}

			got, ok, err := c.ResolveOriginal(ctx, subject)
			if err != nil || !ok || got != "AAMk-original" {
				t.Errorf("ResolveOriginal = %q, %v, %v", got, ok, err)
			}

			if _, ok, _ := c.ResolveOriginal(ctx, "RE: "+subject); ok {
				t.Error("ResolveOriginal matched a non-normalized subject")
			}
			if _, ok, _ := c.ResolveOriginal(ctx, testPrefix); ok {
				t.Error("ResolveOriginal matched the bare prefix")
			}
		})
	}
}

// TestRecordOutbound_SameInstant verifies two calls on a frozen clock still
// produce distinct subjects and two entries.
func TestRecordOutbound_SameInstant(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			c := New(store, testPrefix, WithClock(fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))))

			s1, err := c.RecordOutbound(ctx, original("a"))
			if err != nil {
				t.Fatal(err)
			}
			s2, err := c.RecordOutbound(ctx, original("b"))
			if err != nil {
				t.Fatal(err)
			}
			if s1 == s2 {
				t.Fatalf("subjects collide: %q", s1)
			}
			if !strings.HasSuffix(s2, "00:00:00.001Z") {
				t.Errorf("second subject = %q, want bumped by 1ms", s2)
			}

			entries, err := store.List(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 2 {
				t.Errorf("entries = %d, want 2", len(entries))
			}
		})
	}
}

// TestRecordOutbound_Eviction verifies the map returns to the cap and keeps the newest entry.
func TestRecordOutbound_Eviction(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)
			c := New(store, testPrefix, WithMaxEntries(3))

			var subjects []string
			for i := 0; i < 5; i++ {
				s, err := c.RecordOutbound(ctx, original(fmt.Sprintf("m%d", i)))
				if err != nil {
					t.Fatal(err)
				}
				subjects = append(subjects, s)
			}

			entries, err := store.List(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 3 {
				t.Fatalf("entries = %d, want 3", len(entries))
			}
			for i, e := range entries {
				if e.Subject != subjects[i+2] {
					t.Errorf("entry %d = %q, want %q", i, e.Subject, subjects[i+2])
				}
			}
			if _, ok, _ := c.ResolveOriginal(ctx, subjects[0]); ok {
				t.Error("oldest entry survived eviction")
			}
			if id, ok, _ := c.ResolveOriginal(ctx, subjects[4]); !ok || id != "m4" {
				t.Error("newest entry was evicted")
			}
		})
	}
}

// TestRecordOutbound_EvictsByInsertionOrder verifies that eviction follows
// insertion order even when it disagrees with key order.
func TestRecordOutbound_EvictsByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Put(ctx, "zzz", "first")
	store.Put(ctx, "aaa", "second")

	if _, err := store.Trim(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Get(ctx, "zzz"); ok {
		t.Error("zzz should have been evicted as the oldest entry")
	}
	if _, ok, _ := store.Get(ctx, "aaa"); !ok {
		t.Error("aaa should survive")
	}
}

// TestRecordOutbound_RequiresRestID verifies an original without a REST id is rejected.
func TestRecordOutbound_RequiresRestID(t *testing.T) {
	c := New(NewMemoryStore(), testPrefix)
	if _, err := c.RecordOutbound(context.Background(), models.MessageRef{}); err == nil {
		t.Error("expected error")
	}
}

// TestSQLiteStore_Persists verifies entries survive reopening the file.
func TestSQLiteStore_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "rfq.db")

	s, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "subject-1", "id-1"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got, ok, err := s.Get(ctx, "subject-1")
	if err != nil || !ok || got != "id-1" {
		t.Errorf("Get after reopen = %q, %v, %v", got, ok, err)
	}
}

// TestCorrelator_Properties checks subject uniqueness and the eviction bound
// over random sequences of recordings.
func TestCorrelator_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		max := rapid.IntRange(1, 10).Draw(t, "max")
		n := rapid.IntRange(1, 40).Draw(t, "n")

		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		var offsets []time.Duration
		for i := 0; i < n; i++ {
			offsets = append(offsets, time.Duration(rapid.IntRange(-5, 5).Draw(t, "offset"))*time.Millisecond)
		}
		i := 0
		clock := func() time.Time {
			ts := base.Add(offsets[i%len(offsets)])
			return ts
		}

		store := NewMemoryStore()
		c := New(store, testPrefix, WithClock(clock), WithMaxEntries(max))

		seen := map[string]bool{}
		for i = 0; i < n; i++ {
			subject, err := c.RecordOutbound(ctx, original(fmt.Sprintf("m%d", i)))
			if err != nil {
				t.Fatal(err)
			}
			if seen[subject] {
				t.Fatalf("duplicate subject %q", subject)
			}
			seen[subject] = true

			entries, _ := store.List(ctx)
			want := i + 1
			if want > max {
				want = max
			}
			if len(entries) != want {
				t.Fatalf("after %d inserts: %d entries, want %d", i+1, len(entries), want)
			}
			if entries[len(entries)-1].Subject != subject {
				t.Fatalf("newest entry %q missing", subject)
			}
		}
	})
}
