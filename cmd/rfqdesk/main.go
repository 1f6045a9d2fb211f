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

// rfqdesk is the RFQ email desk.
//
// It watches the sales inbox for the active message, classifies it into a
// workflow stage, keeps the thread correlation between engineering
// notifications and the customer's original RFQ, and stamps the RFQ status
// categories as the workflow advances. One-shot subcommands run the desk's
// actions on a given message.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
