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

package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// MasterCategory is an entry of a mailbox's outlook/masterCategories list.
type MasterCategory struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
}

// ListMasterCategories returns the mailbox's master category list.
func (c *Client) ListMasterCategories(ctx context.Context, mailbox string) ([]MasterCategory, error) {
	var list struct {
		Value []MasterCategory `json:"value"`
	}
	if err := c.Request(ctx, http.MethodGet, mailboxPath(mailbox)+"/outlook/masterCategories", nil, &list); err != nil {
		return nil, fmt.Errorf("list master categories: %w", err)
	}
	return list.Value, nil
}

// CreateMasterCategory adds a category to the master list.
func (c *Client) CreateMasterCategory(ctx context.Context, mailbox, displayName, color string) error {
	body := MasterCategory{DisplayName: displayName, Color: color}
	if err := c.Request(ctx, http.MethodPost, mailboxPath(mailbox)+"/outlook/masterCategories", body, nil); err != nil {
		return fmt.Errorf("create master category %q: %w", displayName, err)
	}
	return nil
}

// UpdateMasterCategoryColor changes the color of an existing master category.
func (c *Client) UpdateMasterCategoryColor(ctx context.Context, mailbox, id, color string) error {
	body := map[string]string{"color": color}
	path := mailboxPath(mailbox) + "/outlook/masterCategories/" + url.PathEscape(id)
	if err := c.Request(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("update master category %s: %w", id, err)
	}
	return nil
}
