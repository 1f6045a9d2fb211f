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

// Package models defines the data structures shared across the RFQ desk.
package models

import "strings"

// EmailAddress represents a sender or recipient with an address and optional name.
type EmailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// Attachment is a file sent along with an outgoing message.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"-"`
}

// MessageRef is an email as seen by the classifier and the correlator.
type MessageRef struct {
	Subject           string `json:"subject"`
	NormalizedSubject string `json:"normalized_subject"`
	FromAddress       string `json:"from_address"`
	RestID            string `json:"rest_id"`
	ConversationID    string `json:"conversation_id"`
}

// NewMessageRef builds a MessageRef, lowercasing the sender and deriving the
// normalized subject.
func NewMessageRef(restID, conversationID, subject, from string) MessageRef {
	return MessageRef{
		Subject:           subject,
		NormalizedSubject: NormalizeSubject(subject),
		FromAddress:       strings.ToLower(strings.TrimSpace(from)),
		RestID:            restID,
		ConversationID:    conversationID,
	}
}

// NormalizeSubject strips at most one leading case-insensitive "Re:" and trims
// surrounding whitespace.
func NormalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	if HasReplyPrefix(s) {
		s = strings.TrimSpace(s[3:])
	}
	return s
}

// HasReplyPrefix reports whether subject starts with "re:" in any casing.
// The subject is not trimmed first.
func HasReplyPrefix(subject string) bool {
	return len(subject) >= 3 && strings.EqualFold(subject[:3], "re:")
}
