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
	"strconv"
	"strings"

	"github.com/hexa/rfqdesk/internal/models"
)

const messageFields = "id,subject,categories,conversationId,from,receivedDateTime"

// OutgoingMessage is a new message for sendMail.
type OutgoingMessage struct {
	Subject     string
	Body        string
	HTML        bool
	To          []string
	Attachments []models.Attachment
}

func mailboxPath(mailbox string) string {
	return "/users/" + url.PathEscape(mailbox)
}

func messagePath(mailbox, id string) string {
	return mailboxPath(mailbox) + "/messages/" + url.PathEscape(id)
}

// quote escapes a value for an OData string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// GetMessage fetches a single message's subject, sender, categories and conversation.
func (c *Client) GetMessage(ctx context.Context, mailbox, id string) (*Message, error) {
	var g graphMessage
	path := messagePath(mailbox, id) + "?$select=" + messageFields
	if err := c.Request(ctx, http.MethodGet, path, nil, &g); err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	msg := g.toMessage()
	return &msg, nil
}

// ListConversation returns up to top messages of a conversation, oldest
// first, following @odata.nextLink until top messages are collected.
func (c *Client) ListConversation(ctx context.Context, mailbox, conversationID string, top int) ([]Message, error) {
	q := url.Values{}
	q.Set("$filter", "conversationId eq "+quote(conversationID))
	q.Set("$orderby", "receivedDateTime")
	q.Set("$select", messageFields)
	q.Set("$top", strconv.Itoa(top))

	var out []Message
	nextURL := mailboxPath(mailbox) + "/messages?" + q.Encode()
	for nextURL != "" && len(out) < top {
		var page messageList
		if err := c.Request(ctx, http.MethodGet, nextURL, nil, &page); err != nil {
			return nil, fmt.Errorf("list conversation %s: %w", conversationID, err)
		}
		out = append(out, toMessages(page.Value)...)
		nextURL = page.NextLink
	}
	if len(out) > top {
		out = out[:top]
	}
	return out, nil
}

// ListFolder returns the newest top messages of a well-known folder such as "inbox".
func (c *Client) ListFolder(ctx context.Context, mailbox, folder string, top int) ([]Message, error) {
	q := url.Values{}
	q.Set("$orderby", "receivedDateTime desc")
	q.Set("$select", messageFields)
	q.Set("$top", strconv.Itoa(top))

	var list messageList
	path := mailboxPath(mailbox) + "/mailFolders/" + url.PathEscape(folder) + "/messages?" + q.Encode()
	if err := c.Request(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, fmt.Errorf("list %s folder: %w", folder, err)
	}
	return toMessages(list.Value), nil
}

// FindBySubject returns messages in folder whose subject equals subject, newest first.
func (c *Client) FindBySubject(ctx context.Context, mailbox, folder, subject string, top int) ([]Message, error) {
	q := url.Values{}
	q.Set("$filter", "subject eq "+quote(subject))
	q.Set("$select", messageFields)
	q.Set("$top", strconv.Itoa(top))

	var list messageList
	path := mailboxPath(mailbox) + "/mailFolders/" + url.PathEscape(folder) + "/messages?" + q.Encode()
	if err := c.Request(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, fmt.Errorf("search %s for subject: %w", folder, err)
	}
	return toMessages(list.Value), nil
}

// Reply sends a reply to the message's sender with comment as the body.
func (c *Client) Reply(ctx context.Context, mailbox, id, comment string) error {
	body := map[string]string{"comment": comment}
	if err := c.Request(ctx, http.MethodPost, messagePath(mailbox, id)+"/reply", body, nil); err != nil {
		return fmt.Errorf("reply to %s: %w", id, err)
	}
	return nil
}

// ReplyWithAttachments creates a reply draft, attaches files and sends it.
func (c *Client) ReplyWithAttachments(ctx context.Context, mailbox, id, comment string, attachments []models.Attachment) error {
	var draft struct {
		ID string `json:"id"`
	}
	body := map[string]string{"comment": comment}
	if err := c.Request(ctx, http.MethodPost, messagePath(mailbox, id)+"/createReply", body, &draft); err != nil {
		return fmt.Errorf("create reply to %s: %w", id, err)
	}
	if draft.ID == "" {
		return fmt.Errorf("create reply to %s: empty draft id", id)
	}

	for _, a := range attachments {
		if err := c.Request(ctx, http.MethodPost, messagePath(mailbox, draft.ID)+"/attachments", fileAttachment(a), nil); err != nil {
			return fmt.Errorf("attach %s: %w", a.Name, err)
		}
	}

	if err := c.Request(ctx, http.MethodPost, messagePath(mailbox, draft.ID)+"/send", nil, nil); err != nil {
		return fmt.Errorf("send reply draft %s: %w", draft.ID, err)
	}
	return nil
}

// SendMail sends a new message from mailbox and saves it to Sent Items.
func (c *Client) SendMail(ctx context.Context, mailbox string, msg OutgoingMessage) error {
	contentType := "Text"
	if msg.HTML {
		contentType = "HTML"
	}

	to := make([]graphRecipient, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, recipient(addr))
	}

	message := map[string]any{
		"subject":      msg.Subject,
		"body":         map[string]string{"contentType": contentType, "content": msg.Body},
		"toRecipients": to,
	}
	if len(msg.Attachments) > 0 {
		atts := make([]map[string]any, 0, len(msg.Attachments))
		for _, a := range msg.Attachments {
			atts = append(atts, fileAttachment(a))
		}
		message["attachments"] = atts
	}

	body := map[string]any{
		"message":         message,
		"saveToSentItems": true,
	}
	if err := c.Request(ctx, http.MethodPost, mailboxPath(mailbox)+"/sendMail", body, nil); err != nil {
		return fmt.Errorf("send mail as %s: %w", mailbox, err)
	}
	return nil
}

// UpdateCategories replaces the message's category list.
func (c *Client) UpdateCategories(ctx context.Context, mailbox, id string, categories []string) error {
	if categories == nil {
		categories = []string{}
	}
	body := map[string][]string{"categories": categories}
	if err := c.Request(ctx, http.MethodPatch, messagePath(mailbox, id), body, nil); err != nil {
		return fmt.Errorf("patch categories on %s: %w", id, err)
	}
	return nil
}

func fileAttachment(a models.Attachment) map[string]any {
	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return map[string]any{
		"@odata.type":  "#microsoft.graph.fileAttachment",
		"name":         a.Name,
		"contentType":  contentType,
		"contentBytes": a.Content, // []byte marshals as base64
	}
}
