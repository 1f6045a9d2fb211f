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

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/hexa/rfqdesk/internal/graph"
	"github.com/hexa/rfqdesk/internal/models"
)

// Action names used in events and on the command line.
const (
	ActionNotifyEngineering = "notify_engineering"
	ActionReplyOriginal     = "reply_original"
	ActionSendQuote         = "send_quote"
	ActionClearCategories   = "clear_categories"
	ActionEnsureCategories  = "ensure_categories"
)

// NotifyEngineering sends the engineering review request for the open
// message under a fresh outbound subject and records that subject against
// the message. The original is stamped MISSING_DETAILS and, once the
// notification shows up in the engineering inbox, it is stamped
// PENDING_ENGINEERING there.
func (s *Session) NotifyEngineering(ctx context.Context) (string, error) {
	ref, _, _, err := s.active()
	if err != nil {
		return "", err
	}

	subject, err := s.corr.RecordOutbound(ctx, ref)
	if err != nil {
		return "", s.result(ctx, ActionNotifyEngineering, ref.RestID, "", err)
	}

	body, err := render(s.tmpl.EngineeringReview, TemplateData{
		OriginalSubject: ref.Subject,
		Customer:        ref.FromAddress,
	})
	if err != nil {
		return "", s.result(ctx, ActionNotifyEngineering, ref.RestID, subject, err)
	}

	err = s.graph.SendMail(ctx, s.opts.SalesMailbox, graph.OutgoingMessage{
		Subject: subject,
		Body:    body,
		To:      []string{s.opts.EngineeringMailbox},
	})
	if err != nil {
		err = fmt.Errorf("notify engineering: %w", classifyErr(err, s.opts.SalesMailbox))
		return "", s.result(ctx, ActionNotifyEngineering, ref.RestID, subject, err)
	}

	slog.Info("engineering notified",
		"original_id", ref.RestID,
		"subject", subject,
	)

	s.stamp(ref.RestID, models.CategoryMissingDetails)
	s.background("stamp engineering notification", func(ctx context.Context) error {
		id, err := s.locate(ctx, s.opts.EngineeringMailbox, subject)
		if err != nil {
			return err
		}
		return s.engineeringCats.SetCategory(ctx, id, models.CategoryPendingEngineering)
	})

	return subject, s.result(ctx, ActionNotifyEngineering, ref.RestID, subject, nil)
}

// ReplyOriginal replies to the customer's original message with the
// clarification request. The open message must be an engineering reply whose
// subject resolves to an original.
func (s *Session) ReplyOriginal(ctx context.Context) error {
	ref, _, originalID, err := s.active()
	if err != nil {
		return err
	}

	if originalID == "" {
		id, ok, err := s.corr.ResolveOriginal(ctx, ref.NormalizedSubject)
		if err != nil {
			return s.result(ctx, ActionReplyOriginal, ref.RestID, ref.Subject, err)
		}
		if !ok {
			return s.result(ctx, ActionReplyOriginal, ref.RestID, ref.Subject, ErrOriginalNotFound)
		}
		originalID = id
	}

	body, err := render(s.tmpl.Clarification, TemplateData{
		OriginalSubject: ref.NormalizedSubject,
		Customer:        s.opts.CustomerMailbox,
	})
	if err != nil {
		return s.result(ctx, ActionReplyOriginal, originalID, ref.Subject, err)
	}

	if err := s.graph.Reply(ctx, s.opts.SalesMailbox, originalID, body); err != nil {
		err = fmt.Errorf("reply to original: %w", classifyErr(err, s.opts.SalesMailbox))
		return s.result(ctx, ActionReplyOriginal, originalID, ref.Subject, err)
	}

	slog.Info("clarification sent to customer", "original_id", originalID)
	s.stamp(originalID, models.CategoryClarification)
	return s.result(ctx, ActionReplyOriginal, originalID, ref.Subject, nil)
}

// SendQuote replies to the open message with the quote body and the
// configured quote files attached.
func (s *Session) SendQuote(ctx context.Context) error {
	ref, _, _, err := s.active()
	if err != nil {
		return err
	}

	attachments, err := loadAttachments(s.opts.QuoteFiles)
	if err != nil {
		return s.result(ctx, ActionSendQuote, ref.RestID, ref.Subject, err)
	}

	names := make([]string, 0, len(attachments))
	for _, a := range attachments {
		names = append(names, a.Name)
	}
	body, err := render(s.tmpl.Quote, TemplateData{
		OriginalSubject: ref.NormalizedSubject,
		Customer:        ref.FromAddress,
		Attachments:     names,
	})
	if err != nil {
		return s.result(ctx, ActionSendQuote, ref.RestID, ref.Subject, err)
	}

	if err := s.graph.ReplyWithAttachments(ctx, s.opts.SalesMailbox, ref.RestID, body, attachments); err != nil {
		err = fmt.Errorf("send quote: %w", classifyErr(err, s.opts.SalesMailbox))
		return s.result(ctx, ActionSendQuote, ref.RestID, ref.Subject, err)
	}

	slog.Info("quote sent", "message_id", ref.RestID, "attachments", len(attachments))
	return s.result(ctx, ActionSendQuote, ref.RestID, ref.Subject, nil)
}

// ClearCategories removes every RFQ category from restID in the sales mailbox.
func (s *Session) ClearCategories(ctx context.Context, restID string) error {
	if s.graph == nil {
		return ErrNotSignedIn
	}
	err := s.salesCats.RemoveAllRfqCategories(ctx, restID)
	if err != nil {
		err = fmt.Errorf("clear categories: %w", classifyErr(err, s.opts.SalesMailbox))
	}
	return s.result(ctx, ActionClearCategories, restID, "", err)
}

// EnsureCategories makes sure the RFQ categories exist in the sales and
// engineering master lists.
func (s *Session) EnsureCategories(ctx context.Context) error {
	if s.graph == nil {
		return ErrNotSignedIn
	}
	err := s.salesCats.EnsureCategoriesExist(ctx)
	if err == nil {
		err = s.engineeringCats.EnsureCategoriesExist(ctx)
	}
	if err != nil {
		err = fmt.Errorf("ensure categories: %w", classifyErr(err, s.opts.SalesMailbox))
	}
	return s.result(ctx, ActionEnsureCategories, "", "", err)
}

// locate finds a just-sent message by exact subject in mailbox's inbox,
// retrying a fixed number of times with a fixed delay.
func (s *Session) locate(ctx context.Context, mailbox, subject string) (string, error) {
	for attempt := 1; attempt <= s.opts.LocateAttempts; attempt++ {
		msgs, err := s.graph.FindBySubject(ctx, mailbox, "inbox", subject, 1)
		if err != nil {
			slog.Debug("locate attempt failed",
				"mailbox", mailbox,
				"attempt", attempt,
				"error", err,
			)
		} else if len(msgs) > 0 {
			return msgs[0].ID, nil
		}

		if attempt == s.opts.LocateAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.opts.LocateDelay):
		}
	}
	return "", fmt.Errorf("locate %q in %s after %d attempts: %w",
		subject, mailbox, s.opts.LocateAttempts, ErrMessageNotFound)
}

// loadAttachments reads the quote files produced by the document generator.
func loadAttachments(paths []string) ([]models.Attachment, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no quote files configured (workflow.quote_files)")
	}

	out := make([]models.Attachment, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read quote file: %w", err)
		}
		contentType := mime.TypeByExtension(filepath.Ext(p))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		out = append(out, models.Attachment{
			Name:        filepath.Base(p),
			ContentType: contentType,
			Content:     data,
		})
	}
	return out, nil
}
