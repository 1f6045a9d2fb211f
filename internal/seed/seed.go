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

// Package seed sends a sample RFQ from the customer mailbox to the sales
// mailbox so the desk has something to work on.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/hexa/rfqdesk/internal/graph"
	"github.com/hexa/rfqdesk/internal/models"
)

const defaultBody = "This RFQ was sent by rfqdesk seed so the desk can classify it and notify engineering."

// Message is the RFQ to send.
type Message struct {
	Subject     string
	Body        string
	HTML        bool
	Attachments []models.Attachment
}

// Sender is the part of the Graph client seed uses.
type Sender interface {
	SendMail(ctx context.Context, mailbox string, msg graph.OutgoingMessage) error
}

// Default returns a timestamped test RFQ.
func Default(now time.Time) *Message {
	return &Message{
		Subject: "RFQ – Add-in test " + now.UTC().Format("2006-01-02 15:04:05"),
		Body:    defaultBody,
	}
}

// ParseEML reads an RFC 5322 message. The plain text body is preferred over
// HTML; attachments are carried over.
func ParseEML(r io.Reader) (*Message, error) {
	reader, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse eml: %w", err)
	}
	defer reader.Close()

	msg := &Message{}
	if subject, err := reader.Header.Subject(); err == nil {
		msg.Subject = strings.TrimSpace(subject)
	}

	var text, html string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read eml part: %w", err)
		}

		switch header := part.Header.(type) {
		case *mail.InlineHeader:
			mediaType, _, _ := header.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch {
			case strings.HasPrefix(mediaType, "text/plain") || mediaType == "":
				text = joinBody(text, string(body))
			case strings.HasPrefix(mediaType, "text/html"):
				html = joinBody(html, string(body))
			}
		case *mail.AttachmentHeader:
			filename, _ := header.Filename()
			if strings.TrimSpace(filename) == "" {
				filename = "attachment"
			}
			contentType, _, _ := header.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			msg.Attachments = append(msg.Attachments, models.Attachment{
				Name:        filename,
				ContentType: contentType,
				Content:     body,
			})
		}
	}

	switch {
	case text != "":
		msg.Body = text
	case html != "":
		msg.Body, msg.HTML = html, true
	}
	if msg.Subject == "" {
		return nil, errors.New("parse eml: message has no subject")
	}
	return msg, nil
}

func joinBody(existing, next string) string {
	if existing == "" {
		return next
	}
	return existing + "\n" + next
}

// Send mails msg from the customer mailbox to the sales mailbox.
func Send(ctx context.Context, s Sender, from, to string, msg *Message) error {
	err := s.SendMail(ctx, from, graph.OutgoingMessage{
		Subject:     msg.Subject,
		Body:        msg.Body,
		HTML:        msg.HTML,
		To:          []string{to},
		Attachments: msg.Attachments,
	})
	if err != nil {
		return fmt.Errorf("seed RFQ: %w", err)
	}
	return nil
}

// Hint returns a remediation hint for a failed Send, or "" when none applies.
func Hint(err error, from string) string {
	var apiErr *graph.APIError
	if !errors.As(err, &apiErr) {
		return ""
	}
	switch apiErr.Status {
	case http.StatusUnauthorized:
		return "the client id and secret must belong to the app registration that was granted Mail.Send (Application) with admin consent"
	case http.StatusForbidden:
		return "grant the app Mail.Send (Application) and admin consent"
	case http.StatusNotFound:
		return fmt.Sprintf("check graph.tenant_id and that user %s exists", from)
	}
	return ""
}
