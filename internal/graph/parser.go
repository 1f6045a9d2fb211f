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
	"time"

	"github.com/hexa/rfqdesk/internal/models"
)

// Message is the subset of a Graph message the desk reads.
type Message struct {
	ID               string
	Subject          string
	ConversationID   string
	From             models.EmailAddress
	Categories       []string
	ReceivedDateTime time.Time
}

// Ref converts the message into the classifier's view of it.
func (m *Message) Ref() models.MessageRef {
	return models.NewMessageRef(m.ID, m.ConversationID, m.Subject, m.From.Address)
}

// graphRecipient is Graph's {"emailAddress": {...}} wrapper.
type graphRecipient struct {
	EmailAddress struct {
		Address string `json:"address"`
		Name    string `json:"name,omitempty"`
	} `json:"emailAddress"`
}

func recipient(address string) graphRecipient {
	var r graphRecipient
	r.EmailAddress.Address = address
	return r
}

// graphMessage represents the relevant fields from a Graph API message response.
type graphMessage struct {
	ID               string          `json:"id"`
	Subject          string          `json:"subject"`
	ConversationID   string          `json:"conversationId"`
	From             *graphRecipient `json:"from"`
	Categories       []string        `json:"categories"`
	ReceivedDateTime string          `json:"receivedDateTime"`
}

type messageList struct {
	Value    []graphMessage `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
}

// toMessage converts a Graph API message response into a Message.
func (g graphMessage) toMessage() Message {
	msg := Message{
		ID:             g.ID,
		Subject:        g.Subject,
		ConversationID: g.ConversationID,
		Categories:     g.Categories,
	}
	if g.From != nil {
		msg.From = models.EmailAddress{
			Address: g.From.EmailAddress.Address,
			Name:    g.From.EmailAddress.Name,
		}
	}
	if t, err := time.Parse(time.RFC3339, g.ReceivedDateTime); err == nil {
		msg.ReceivedDateTime = t
	}
	if msg.Categories == nil {
		msg.Categories = []string{}
	}
	return msg
}

func toMessages(list []graphMessage) []Message {
	out := make([]Message, 0, len(list))
	for _, g := range list {
		out = append(out, g.toMessage())
	}
	return out
}
