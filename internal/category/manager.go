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

// Package category stamps messages with the four mutually exclusive RFQ
// status categories while leaving any other categories untouched.
package category

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hexa/rfqdesk/internal/dedup"
	"github.com/hexa/rfqdesk/internal/graph"
	"github.com/hexa/rfqdesk/internal/models"
)

// conversationTop caps how many messages of a thread are scanned for its root.
const conversationTop = 50

// Graph is the subset of the Graph client the manager needs.
type Graph interface {
	GetMessage(ctx context.Context, mailbox, id string) (*graph.Message, error)
	ListConversation(ctx context.Context, mailbox, conversationID string, top int) ([]graph.Message, error)
	UpdateCategories(ctx context.Context, mailbox, id string, categories []string) error
	ListMasterCategories(ctx context.Context, mailbox string) ([]graph.MasterCategory, error)
	CreateMasterCategory(ctx context.Context, mailbox, displayName, color string) error
	UpdateMasterCategoryColor(ctx context.Context, mailbox, id, color string) error
}

// Manager applies RFQ categories to messages in one mailbox.
type Manager struct {
	graph    Graph
	mailbox  string
	customer string
	seen     dedup.Filter

	mu          sync.Mutex
	ensured     bool
	lastID      string
	lastCat     models.Category
	haveLastSet bool
}

// NewManager creates a category manager for mailbox. customer is the address
// whose first non-reply message is a thread's root. seen dedups conversation
// propagation; nil uses an in-memory filter.
func NewManager(g Graph, mailbox, customer string, seen dedup.Filter) *Manager {
	if seen == nil {
		seen = dedup.NewMemoryFilter()
	}
	return &Manager{
		graph:    g,
		mailbox:  mailbox,
		customer: strings.ToLower(strings.TrimSpace(customer)),
		seen:     seen,
	}
}

// EnsureCategoriesExist creates missing RFQ categories in the master list and
// corrects mismatched colors. It runs once per Manager; individual failures
// are logged and do not prevent the guard from being set.
func (m *Manager) EnsureCategoriesExist(ctx context.Context) error {
	m.mu.Lock()
	if m.ensured {
		m.mu.Unlock()
		return nil
	}
	m.ensured = true
	m.mu.Unlock()

	existing, err := m.graph.ListMasterCategories(ctx, m.mailbox)
	if err != nil {
		return fmt.Errorf("ensure categories: %w", err)
	}

	byName := make(map[string]graph.MasterCategory, len(existing))
	for _, mc := range existing {
		byName[mc.DisplayName] = mc
	}

	for _, cat := range models.Categories {
		mc, ok := byName[cat.DisplayName()]
		switch {
		case !ok:
			if err := m.graph.CreateMasterCategory(ctx, m.mailbox, cat.DisplayName(), cat.Color()); err != nil {
				slog.Warn("failed to create category", "category", cat.DisplayName(), "mailbox", m.mailbox, "error", err)
				continue
			}
			slog.Info("created category", "category", cat.DisplayName(), "mailbox", m.mailbox)
		case !strings.EqualFold(mc.Color, cat.Color()):
			if err := m.graph.UpdateMasterCategoryColor(ctx, m.mailbox, mc.ID, cat.Color()); err != nil {
				slog.Warn("failed to update category color", "category", cat.DisplayName(), "mailbox", m.mailbox, "error", err)
				continue
			}
			slog.Info("updated category color", "category", cat.DisplayName(), "color", cat.Color())
		}
	}
	return nil
}

// SetCategory replaces any RFQ category on the message with cat. Repeating
// the last applied (message, category) pair is a no-op.
func (m *Manager) SetCategory(ctx context.Context, restID string, cat models.Category) error {
	m.mu.Lock()
	skip := m.haveLastSet && m.lastID == restID && m.lastCat == cat
	m.mu.Unlock()
	if skip {
		slog.Debug("category already applied", "message_id", restID, "category", cat.String())
		return nil
	}

	if err := m.rewrite(ctx, restID, &cat); err != nil {
		return fmt.Errorf("set category %s: %w", cat, err)
	}

	m.mu.Lock()
	m.lastID, m.lastCat, m.haveLastSet = restID, cat, true
	m.mu.Unlock()

	slog.Info("category applied", "message_id", restID, "category", cat.String(), "mailbox", m.mailbox)
	return nil
}

// RemoveAllRfqCategories strips every RFQ category from the message.
func (m *Manager) RemoveAllRfqCategories(ctx context.Context, restID string) error {
	if err := m.rewrite(ctx, restID, nil); err != nil {
		return fmt.Errorf("remove categories: %w", err)
	}

	m.mu.Lock()
	if m.lastID == restID {
		m.lastID, m.haveLastSet = "", false
	}
	m.mu.Unlock()

	slog.Info("RFQ categories removed", "message_id", restID, "mailbox", m.mailbox)
	return nil
}

// PropagateToOriginalInConversation marks the root customer message of the
// current message's thread DETAILS_COMPLETE. Each conversation is handled
// once; a thread without a root completes silently.
func (m *Manager) PropagateToOriginalInConversation(ctx context.Context, currentRestID, normalizedSubject string) error {
	current, err := m.graph.GetMessage(ctx, m.mailbox, currentRestID)
	if err != nil {
		return fmt.Errorf("propagate: %w", err)
	}
	if current.ConversationID == "" {
		return nil
	}

	isNew, err := m.seen.IsNew(ctx, "conversation:"+current.ConversationID)
	if err != nil {
		slog.Warn("dedup check failed, proceeding", "error", err)
	} else if !isNew {
		slog.Debug("conversation already propagated", "conversation_id", current.ConversationID)
		return nil
	}

	thread, err := m.graph.ListConversation(ctx, m.mailbox, current.ConversationID, conversationTop)
	if err != nil {
		return fmt.Errorf("propagate: %w", err)
	}

	for _, msg := range thread {
		if !strings.EqualFold(strings.TrimSpace(msg.From.Address), m.customer) {
			continue
		}
		if models.HasReplyPrefix(strings.ToLower(msg.Subject)) {
			continue
		}
		slog.Info("propagating details-complete to thread root",
			"root_id", msg.ID,
			"conversation_id", current.ConversationID,
			"subject", normalizedSubject,
		)
		return m.SetCategory(ctx, msg.ID, models.CategoryDetailsComplete)
	}

	slog.Debug("no root customer message in conversation", "conversation_id", current.ConversationID)
	return nil
}

// rewrite reads the message's categories, drops the RFQ ones, appends
// replacement when non-nil and writes the list back.
func (m *Manager) rewrite(ctx context.Context, restID string, replacement *models.Category) error {
	msg, err := m.graph.GetMessage(ctx, m.mailbox, restID)
	if err != nil {
		return err
	}

	next := make([]string, 0, len(msg.Categories)+1)
	for _, name := range msg.Categories {
		if !models.IsRFQCategory(name) {
			next = append(next, name)
		}
	}
	if replacement != nil {
		next = append(next, replacement.DisplayName())
	}

	return m.graph.UpdateCategories(ctx, m.mailbox, restID, next)
}
