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

// Package subscription keeps a Graph change-notification subscription alive
// for the sales inbox so new mail reaches the active-item stream without
// waiting for the next poll.
package subscription

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Subscription statuses.
const (
	StatusActive  = "active"
	StatusRemoved = "removed"
)

// Record is the desk's view of one Graph subscription.
type Record struct {
	SubscriptionID   string
	Mailbox          string
	ClientState      string
	ExpiresAt        time.Time
	Status           string
	LastNotification *time.Time
}

// Store persists subscription records, one per mailbox.
type Store interface {
	Upsert(ctx context.Context, r Record) error
	// Get returns nil, nil when the mailbox has no record.
	Get(ctx context.Context, mailbox string) (*Record, error)
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*Record, error)
	ListExpiringSoon(ctx context.Context, buffer time.Duration) ([]Record, error)
	UpdateExpiry(ctx context.Context, subscriptionID string, expiry time.Time) error
	MarkStatus(ctx context.Context, subscriptionID, status string) error
	TouchNotification(ctx context.Context, mailbox string) error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record // keyed by mailbox
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record), now: time.Now}
}

func (s *MemoryStore) Upsert(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.Mailbox] = r
	return nil
}

func (s *MemoryStore) Get(_ context.Context, mailbox string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[mailbox]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *MemoryStore) GetBySubscriptionID(_ context.Context, subscriptionID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.SubscriptionID == subscriptionID {
			return &r, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ListExpiringSoon(_ context.Context, buffer time.Duration) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(buffer)
	var out []Record
	for _, r := range s.records {
		if r.Status == StatusActive && r.ExpiresAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (s *MemoryStore) UpdateExpiry(_ context.Context, subscriptionID string, expiry time.Time) error {
	return s.update(subscriptionID, func(r *Record) { r.ExpiresAt = expiry })
}

func (s *MemoryStore) MarkStatus(_ context.Context, subscriptionID, status string) error {
	return s.update(subscriptionID, func(r *Record) { r.Status = status })
}

func (s *MemoryStore) TouchNotification(_ context.Context, mailbox string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.records[mailbox]; ok {
		now := s.now().UTC()
		r.LastNotification = &now
		s.records[mailbox] = r
	}
	return nil
}

func (s *MemoryStore) update(subscriptionID string, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, r := range s.records {
		if r.SubscriptionID == subscriptionID {
			fn(&r)
			s.records[k] = r
		}
	}
	return nil
}
