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

// Package activeitem is the single "active item changed" stream. The inbox
// poller and the webhook handler publish into it; one consumer drains it.
package activeitem

import (
	"context"
	"log/slog"
	"time"
)

// Source names the producer of an event.
type Source string

const (
	SourcePoll    Source = "poll"
	SourceWebhook Source = "webhook"
)

// Event says that MessageID is now the item to work on.
type Event struct {
	MessageID string
	Mailbox   string
	Source    Source
	At        time.Time
}

// Stream fans producers into one consumer.
type Stream struct {
	events chan Event
}

// NewStream creates a stream buffering up to size events.
func NewStream(size int) *Stream {
	if size <= 0 {
		size = 16
	}
	return &Stream{events: make(chan Event, size)}
}

// Publish queues ev without blocking. A full buffer drops the event; the
// next poll tick republishes whatever is current, so poll drops log at debug.
func (s *Stream) Publish(ev Event) bool {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	select {
	case s.events <- ev:
		return true
	default:
		level := slog.LevelWarn
		if ev.Source == SourcePoll {
			level = slog.LevelDebug
		}
		slog.Log(context.Background(), level, "active-item stream full, dropping event",
			"message_id", ev.MessageID,
			"source", ev.Source,
		)
		return false
	}
}

// Consume calls handle for each event, one at a time, until ctx is done.
// Back-to-back events for a message that was already handled successfully
// are collapsed. A failed message is handled again on its next event.
func (s *Stream) Consume(ctx context.Context, handle func(ctx context.Context, ev Event) error) {
	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			if ev.MessageID == "" || ev.MessageID == last {
				continue
			}
			if err := handle(ctx, ev); err != nil {
				last = ""
				continue
			}
			last = ev.MessageID
		}
	}
}
