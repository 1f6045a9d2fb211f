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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hexa/rfqdesk/internal/models"
	"github.com/hexa/rfqdesk/internal/status"
	"github.com/hexa/rfqdesk/internal/workflow"
)

// withSession opens messageID (when non-empty) and runs fn. Errors are
// rendered as a status line and returned so the exit code reflects them.
func withSession(cmd *cobra.Command, messageID string, fn func(ctx context.Context, s *workflow.Session) (string, error)) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	a, err := newApp(ctx)
	if err != nil {
		report(out, err)
		return err
	}
	defer a.Close()

	if messageID != "" {
		stage, err := a.session.Open(ctx, messageID)
		if err != nil {
			report(out, err)
			return err
		}
		status.Fprint(out, status.Info, "stage "+stage.String(), messageID)
	}

	msg, err := fn(ctx, a.session)
	if err != nil {
		report(out, err)
		return err
	}
	// Let the queued category updates land before exiting.
	a.fx.Flush()
	if msg != "" {
		status.Fprint(out, status.Success, msg, "")
	}
	return nil
}

var classifyCmd = &cobra.Command{
	Use:   "classify <message-id>",
	Short: "Classify a sales mailbox message and apply its stage category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, args[0], func(ctx context.Context, s *workflow.Session) (string, error) {
			ref, stage, originalID, _ := s.Current()
			switch {
			case originalID != "":
				return fmt.Sprintf("%s from %s, original %s", stage, ref.FromAddress, originalID), nil
			case stage == models.StageEngineeringReply:
				return "", workflow.ErrOriginalNotFound
			}
			return fmt.Sprintf("%s from %s", stage, ref.FromAddress), nil
		})
	},
}

var notifyEngineeringCmd = &cobra.Command{
	Use:   "notify-engineering <message-id>",
	Short: "Send the engineering review request for a customer RFQ",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, args[0], func(ctx context.Context, s *workflow.Session) (string, error) {
			subject, err := s.NotifyEngineering(ctx)
			if err != nil {
				return "", err
			}
			return "engineering notified: " + subject, nil
		})
	},
}

var replyOriginalCmd = &cobra.Command{
	Use:   "reply-original <engineering-reply-id>",
	Short: "Reply to the customer's original RFQ with the clarification request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, args[0], func(ctx context.Context, s *workflow.Session) (string, error) {
			if err := s.ReplyOriginal(ctx); err != nil {
				return "", err
			}
			return "clarification sent to customer", nil
		})
	},
}

var sendQuoteCmd = &cobra.Command{
	Use:   "send-quote <customer-reply-id>",
	Short: "Reply to the customer with the quote and the generated documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, args[0], func(ctx context.Context, s *workflow.Session) (string, error) {
			if err := s.SendQuote(ctx); err != nil {
				return "", err
			}
			return "quote sent", nil
		})
	},
}

var clearCategoriesCmd = &cobra.Command{
	Use:   "clear-categories <message-id>",
	Short: "Remove every RFQ category from a message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, "", func(ctx context.Context, s *workflow.Session) (string, error) {
			if err := s.ClearCategories(ctx, args[0]); err != nil {
				return "", err
			}
			return "RFQ categories removed from " + args[0], nil
		})
	},
}

var ensureCategoriesCmd = &cobra.Command{
	Use:   "ensure-categories",
	Short: "Create the RFQ categories in the sales and engineering mailboxes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, "", func(ctx context.Context, s *workflow.Session) (string, error) {
			if err := s.EnsureCategories(ctx); err != nil {
				return "", err
			}
			return "RFQ categories ready", nil
		})
	},
}

func init() {
	rootCmd.AddCommand(
		classifyCmd,
		notifyEngineeringCmd,
		replyOriginalCmd,
		sendQuoteCmd,
		clearCategoriesCmd,
		ensureCategoriesCmd,
	)
}

// report renders err as an error status line with a remediation hint.
func report(w io.Writer, err error) {
	status.Fprint(w, status.Error, err.Error(), exitHint(err))
}

// exitHint is appended to errors that need operator action.
func exitHint(err error) string {
	var perm *workflow.PermissionError
	switch {
	case workflow.IsNotSignedIn(err):
		return "set graph.client_secret or run: rfqdesk secret set"
	case errors.As(err, &perm):
		return "an Exchange admin can run Add-MailboxPermission for " + perm.Mailbox
	}
	return ""
}
