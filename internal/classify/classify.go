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

// Package classify maps an open message to its RFQ workflow stage.
package classify

import (
	"strings"

	"github.com/hexa/rfqdesk/internal/models"
)

// Addresses are the parties and subject prefix the classifier matches against.
type Addresses struct {
	Engineering    string
	Customer       string
	OutboundPrefix string
}

// Classify returns the workflow stage of msg. Rules are evaluated in order
// and the first match wins:
//
//  1. engineering_reply: sender is engineering and the normalized subject
//     starts with the outbound prefix (case-sensitive).
//  2. customer_reply_with_details: sender is the customer and the raw
//     subject starts with "re:" in any casing.
//  3. initial_rfq: sender is the customer.
//  4. neutral: anything else, including a nil message or missing sender.
func Classify(msg *models.MessageRef, a Addresses) models.Stage {
	if msg == nil {
		return models.StageNeutral
	}
	from := strings.TrimSpace(msg.FromAddress)
	if from == "" {
		return models.StageNeutral
	}

	normalized := msg.NormalizedSubject
	if normalized == "" {
		normalized = models.NormalizeSubject(msg.Subject)
	}

	fromEngineering := sameAddress(from, a.Engineering)
	fromCustomer := sameAddress(from, a.Customer)

	switch {
	case fromEngineering && a.OutboundPrefix != "" && strings.HasPrefix(normalized, a.OutboundPrefix):
		return models.StageEngineeringReply
	case fromCustomer && models.HasReplyPrefix(msg.Subject):
		return models.StageCustomerReplyWithDetails
	case fromCustomer:
		return models.StageInitialRFQ
	default:
		return models.StageNeutral
	}
}

func sameAddress(a, b string) bool {
	b = strings.TrimSpace(b)
	return b != "" && strings.EqualFold(a, b)
}
