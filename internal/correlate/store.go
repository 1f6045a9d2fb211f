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
	"sync"
	"time"
)

// Entry is one outbound subject and the original message it points back to.
type Entry struct {
	Subject   string
	RestID    string
	CreatedAt time.Time
}

// Store persists the original-message map. Entries are ordered by first
// insertion; re-putting an existing subject updates its REST id in place.
type Store interface {
	Put(ctx context.Context, subject, restID string) error
	Get(ctx context.Context, subject string) (restID string, ok bool, err error)
	// Trim deletes the oldest entries until at most max remain and returns
	// how many were deleted.
	Trim(ctx context.Context, max int) (int, error)
	// List returns all entries, oldest first.
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	order   []string
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Put(_ context.Context, subject, restID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[subject]; ok {
		e.RestID = restID
		s.entries[subject] = e
		return nil
	}
	s.order = append(s.order, subject)
	s.entries[subject] = Entry{Subject: subject, RestID: restID, CreatedAt: time.Now().UTC()}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, subject string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[subject]
	return e.RestID, ok, nil
}

func (s *MemoryStore) Trim(_ context.Context, max int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	excess := len(s.order) - max
	if max < 0 || excess <= 0 {
		return 0, nil
	}
	for _, subject := range s.order[:excess] {
		delete(s.entries, subject)
	}
	s.order = append([]string(nil), s.order[excess:]...)
	return excess, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.order))
	for _, subject := range s.order {
		out = append(out, s.entries[subject])
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
