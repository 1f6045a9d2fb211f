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

package classify

import (
	"strings"
	"testing"

	"github.com/hexa/rfqdesk/internal/models"
	"pgregory.net/rapid"
)

const prefix = "Technical Review Required - RFQ #41260018 (NRL - 2 FBG Arrays)"

var addrs = Addresses{
	Engineering:    "engineering@example.com",
	Customer:       "customer-1@example.com",
	OutboundPrefix: prefix,
}

func ref(subject, from string) *models.MessageRef {
	r := models.NewMessageRef("id", "conv", subject, from)
	return &r
}

// TestClassify verifies each rule and the precedence between them.
func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		msg  *models.MessageRef
		want models.Stage
	}{
		{"nil message", nil, models.StageNeutral},
		{"missing sender", ref("RFQ for Widgets", ""), models.StageNeutral},
		{"unknown sender", ref("RFQ for Widgets", "someone@example.com"), models.StageNeutral},
		{"customer rfq", ref("RFQ for Widgets", "customer-1@example.com"), models.StageInitialRFQ},
		{"customer rfq uppercase sender", ref("RFQ for Widgets", "Customer-1@Example.COM"), models.StageInitialRFQ},
		{"customer reply", ref("RE: RFQ for Widgets", "customer-1@example.com"), models.StageCustomerReplyWithDetails},
		{"customer reply lowercase", ref("re: details", "customer-1@example.com"), models.StageCustomerReplyWithDetails},
		{"customer reply leading space is not a reply", ref(" Re: details", "customer-1@example.com"), models.StageInitialRFQ},
		{"engineering reply", ref("RE: "+prefix+" – 2024-01-01T00:00:00.000Z", "engineering@example.com"), models.StageEngineeringReply},
		{"engineering without prefix", ref("RE: lunch", "engineering@example.com"), models.StageNeutral},
		{"engineering prefix is case-sensitive", ref("RE: "+strings.ToLower(prefix), "engineering@example.com"), models.StageNeutral},
		{"customer sending outbound prefix", ref(prefix, "customer-1@example.com"), models.StageInitialRFQ},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.msg, addrs); got != tt.want {
				t.Errorf("Classify = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestClassify_SameAddressForBoth verifies rule order wins when engineering and customer coincide.
func TestClassify_SameAddressForBoth(t *testing.T) {
	a := addrs
	a.Customer = a.Engineering

	msg := ref("Re: "+prefix+" – x", "engineering@example.com")
	if got := Classify(msg, a); got != models.StageEngineeringReply {
		t.Errorf("Classify = %v, want engineering_reply", got)
	}

	msg = ref("Re: something else", "engineering@example.com")
	if got := Classify(msg, a); got != models.StageCustomerReplyWithDetails {
		t.Errorf("Classify = %v, want customer_reply_with_details", got)
	}
}

// TestClassify_DerivesNormalizedSubject verifies a ref without NormalizedSubject still classifies.
func TestClassify_DerivesNormalizedSubject(t *testing.T) {
	msg := &models.MessageRef{Subject: "Re: " + prefix, FromAddress: "engineering@example.com"}
	if got := Classify(msg, addrs); got != models.StageEngineeringReply {
		t.Errorf("Classify = %v, want engineering_reply", got)
	}
}

// TestClassify_EngineeringPrefixProperty checks that an engineering sender with the
// outbound prefix is always an engineering reply whatever follows the prefix.
func TestClassify_EngineeringPrefixProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		suffix := rapid.String().Draw(t, "suffix")
		reply := rapid.Bool().Draw(t, "reply")

		subject := prefix + suffix
		if reply {
			subject = "RE: " + subject
		}
		msg := ref(subject, "ENGINEERING@example.com")
		if !strings.HasPrefix(msg.NormalizedSubject, prefix) {
			t.Skip("trailing whitespace trimmed into the prefix")
		}
		if got := Classify(msg, addrs); got != models.StageEngineeringReply {
			t.Fatalf("Classify(%q) = %v, want engineering_reply", subject, got)
		}
	})
}

// TestClassify_CustomerReplyProperty checks that any customer subject starting
// with "re:" in any casing is a detailed reply.
func TestClassify_CustomerReplyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		re := rapid.SampledFrom([]string{"re:", "Re:", "RE:", "rE:"}).Draw(t, "re")
		rest := rapid.String().Draw(t, "rest")

		msg := ref(re+rest, "customer-1@example.com")
		if got := Classify(msg, addrs); got != models.StageCustomerReplyWithDetails {
			t.Fatalf("Classify(%q) = %v, want customer_reply_with_details", re+rest, got)
		}
	})
}

// TestClassify_NeverPanics checks arbitrary input yields one of the four stages.
func TestClassify_NeverPanics(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		subject := rapid.String().Draw(t, "subject")
		from := rapid.SampledFrom([]string{"", "x@y", addrs.Customer, addrs.Engineering}).Draw(t, "from")

		got := Classify(ref(subject, from), addrs)
		if got < models.StageNeutral || got > models.StageCustomerReplyWithDetails {
			t.Fatalf("Classify returned out-of-range stage %d", got)
		}
		if from == "" && got != models.StageNeutral {
			t.Fatalf("missing sender classified as %v", got)
		}
	})
}
