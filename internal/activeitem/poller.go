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

package activeitem

import (
	"context"
	"log/slog"
	"time"

	"github.com/hexa/rfqdesk/internal/graph"
)

// Lister lists a folder newest first.
type Lister interface {
	ListFolder(ctx context.Context, mailbox, folder string, top int) ([]graph.Message, error)
}

// Poller publishes the newest inbox message on every tick. The stream
// collapses repeats, so an item whose handling failed is retried on the
// next tick.
type Poller struct {
	lister   Lister
	mailbox  string
	folder   string
	interval time.Duration
	stream   *Stream
}

// NewPoller creates a poller over mailbox's inbox.
func NewPoller(lister Lister, mailbox string, interval time.Duration, stream *Stream) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{
		lister:   lister,
		mailbox:  mailbox,
		folder:   "inbox",
		interval: interval,
		stream:   stream,
	}
}

// Run starts the polling loop. It blocks until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("active-item poller starting",
		"mailbox", p.mailbox,
		"interval", p.interval,
	)

	// Do an initial poll immediately
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("active-item poller stopping")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	msgs, err := p.lister.ListFolder(ctx, p.mailbox, p.folder, 1)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("failed to poll inbox", "mailbox", p.mailbox, "error", err)
		}
		return
	}
	if len(msgs) == 0 {
		return
	}
	p.stream.Publish(Event{MessageID: msgs[0].ID, Mailbox: p.mailbox, Source: SourcePoll})
}
