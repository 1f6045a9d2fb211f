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
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hexa/rfqdesk/internal/seed"
	"github.com/hexa/rfqdesk/internal/status"
	"github.com/hexa/rfqdesk/internal/workflow"
)

var seedEML string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Send a test RFQ from the customer mailbox to the sales mailbox",
	Long: `seed sends an RFQ as the customer using app-only Mail.Send, so there is a
message in the sales inbox to start the workflow with. The RFQ is read from
--eml when given, otherwise a timestamped test subject is used.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		msg := seed.Default(time.Now())
		if seedEML != "" {
			f, err := os.Open(seedEML)
			if err != nil {
				status.Err(out, err)
				return err
			}
			defer f.Close()
			if msg, err = seed.ParseEML(f); err != nil {
				status.Err(out, err)
				return err
			}
		}

		a, err := newApp(ctx)
		if err != nil {
			status.Err(out, err)
			return err
		}
		defer a.Close()
		if a.graph == nil {
			report(out, workflow.ErrNotSignedIn)
			return workflow.ErrNotSignedIn
		}

		from, to := a.cfg.Mailboxes.Customer, a.cfg.Mailboxes.Sales
		status.Fprint(out, status.Info, fmt.Sprintf("sending from %s to %s", from, to), msg.Subject)
		if err := seed.Send(ctx, a.graph, from, to, msg); err != nil {
			status.Fprint(out, status.Error, err.Error(), seed.Hint(err, from))
			return err
		}
		status.Fprint(out, status.Success, "RFQ sent", "open it in "+to+" to start the workflow")
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedEML, "eml", "", "path to an .eml file to send as the RFQ")
	rootCmd.AddCommand(seedCmd)
}
