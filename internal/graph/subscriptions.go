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
	"time"
)

// SubscriptionRequest describes a change-notification subscription.
type SubscriptionRequest struct {
	ChangeType               string `json:"changeType"`
	NotificationURL          string `json:"notificationUrl"`
	LifecycleNotificationURL string `json:"lifecycleNotificationUrl,omitempty"`
	Resource                 string `json:"resource"`
	ExpirationDateTime       string `json:"expirationDateTime"`
	ClientState              string `json:"clientState"`
}

// Subscription is Graph's view of a created subscription.
type Subscription struct {
	ID        string
	ExpiresAt time.Time
}

type subscriptionResponse struct {
	ID                 string `json:"id"`
	ExpirationDateTime string `json:"expirationDateTime"`
}

func (r subscriptionResponse) toSubscription(fallback time.Time) Subscription {
	expiry, _ := time.Parse(time.RFC3339, r.ExpirationDateTime)
	if expiry.IsZero() {
		expiry = fallback
	}
	return Subscription{ID: r.ID, ExpiresAt: expiry}
}

// CreateSubscription registers a new change-notification subscription.
func (c *Client) CreateSubscription(ctx context.Context, req SubscriptionRequest, expiry time.Time) (Subscription, error) {
	req.ExpirationDateTime = expiry.UTC().Format(time.RFC3339)

	var resp subscriptionResponse
	if err := c.Request(ctx, http.MethodPost, "/subscriptions", req, &resp); err != nil {
		return Subscription{}, fmt.Errorf("create subscription: %w", err)
	}
	return resp.toSubscription(expiry), nil
}

// RenewSubscription extends a subscription's expiry.
func (c *Client) RenewSubscription(ctx context.Context, id string, expiry time.Time) (Subscription, error) {
	body := map[string]string{"expirationDateTime": expiry.UTC().Format(time.RFC3339)}

	var resp subscriptionResponse
	if err := c.Request(ctx, http.MethodPatch, "/subscriptions/"+url.PathEscape(id), body, &resp); err != nil {
		return Subscription{}, fmt.Errorf("renew subscription %s: %w", id, err)
	}
	if resp.ID == "" {
		resp.ID = id
	}
	return resp.toSubscription(expiry), nil
}

// DeleteSubscription removes a subscription.
func (c *Client) DeleteSubscription(ctx context.Context, id string) error {
	if err := c.Request(ctx, http.MethodDelete, "/subscriptions/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete subscription %s: %w", id, err)
	}
	return nil
}
