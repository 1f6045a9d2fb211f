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
	"io"

	"github.com/spf13/cobra"

	"github.com/hexa/rfqdesk/internal/correlate"
	"github.com/hexa/rfqdesk/internal/status"
)

var correlationsCmd = &cobra.Command{
	Use:   "correlations",
	Short: "List outbound engineering subjects and the originals they resolve to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		a, err := newApp(ctx)
		if err != nil {
			report(out, err)
			return err
		}
		defer a.Close()

		entries, err := a.corr.Entries(ctx)
		if err != nil {
			report(out, err)
			return err
		}
		printEntries(out, entries)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(correlationsCmd)
}

// printEntries writes one line per entry, oldest first.
func printEntries(w io.Writer, entries []correlate.Entry) {
	if len(entries) == 0 {
		status.Fprint(w, status.Info, "no outbound subjects recorded", "")
		return
	}
	for _, e := range entries {
		detail := "original " + e.RestID
		if !e.CreatedAt.IsZero() {
			detail += ", " + e.CreatedAt.UTC().Format("2006-01-02 15:04:05")
		}
		status.Fprint(w, status.Info, e.Subject, detail)
	}
	status.Fprint(w, status.Success, fmt.Sprintf("%d %s", len(entries), plural(len(entries), "entry", "entries")), "")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
