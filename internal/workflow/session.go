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

// Package workflow drives one RFQ desk session: it classifies the active
// message, keeps the thread correlation and runs the desk's actions.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hexa/rfqdesk/internal/activeitem"
	"github.com/hexa/rfqdesk/internal/category"
	"github.com/hexa/rfqdesk/internal/classify"
	"github.com/hexa/rfqdesk/internal/correlate"
	"github.com/hexa/rfqdesk/internal/dedup"
	"github.com/hexa/rfqdesk/internal/graph"
	"github.com/hexa/rfqdesk/internal/models"
	"github.com/hexa/rfqdesk/internal/queue"
	"github.com/hexa/rfqdesk/internal/sidefx"
)

// Graph is the subset of the Graph client a session needs.
type Graph interface {
	category.Graph
	SendMail(ctx context.Context, mailbox string, msg graph.OutgoingMessage) error
	Reply(ctx context.Context, mailbox, id, comment string) error
	ReplyWithAttachments(ctx context.Context, mailbox, id, comment string, attachments []models.Attachment) error
	FindBySubject(ctx context.Context, mailbox, folder, subject string, top int) ([]graph.Message, error)
}

// EventSink receives workflow events. *queue.Publisher satisfies it.
type EventSink interface {
	Publish(ctx context.Context, event queue.Event) error
}

// Options configures a Session.
type Options struct {
	SalesMailbox       string
	EngineeringMailbox string
	CustomerMailbox    string

	LocateAttempts int
	LocateDelay    time.Duration
	QuoteFiles     []string

	// Optional.
	Templates *Templates
	Events    EventSink
	Seen      dedup.Filter
	SessionID string
}

// Session is the state of one desk run: the open message, its stage and the
// resolved original, plus the collaborators that act on them.
type Session struct {
	id     string
	graph  Graph
	corr   *correlate.Correlator
	fx     *sidefx.Queue
	events EventSink
	tmpl   *Templates
	opts   Options
	addrs  classify.Addresses

	salesCats       *category.Manager
	engineeringCats *category.Manager

	mu         sync.Mutex
	current    *models.MessageRef
	stage      models.Stage
	originalID string
}

// New creates a session. A nil g yields a session whose every action fails
// with ErrNotSignedIn.
func New(g Graph, corr *correlate.Correlator, fx *sidefx.Queue, opts Options) *Session {
	if opts.LocateAttempts <= 0 {
		opts.LocateAttempts = 5
	}
	if opts.LocateDelay <= 0 {
		opts.LocateDelay = 3 * time.Second
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}

	s := &Session{
		id:     opts.SessionID,
		graph:  g,
		corr:   corr,
		fx:     fx,
		events: opts.Events,
		tmpl:   opts.Templates,
		opts:   opts,
		addrs: classify.Addresses{
			Engineering:    opts.EngineeringMailbox,
			Customer:       opts.CustomerMailbox,
			OutboundPrefix: corr.Prefix(),
		},
	}
	if s.tmpl == nil {
		s.tmpl = DefaultTemplates()
	}
	if g != nil {
		s.salesCats = category.NewManager(g, opts.SalesMailbox, opts.CustomerMailbox, opts.Seen)
		s.engineeringCats = category.NewManager(g, opts.EngineeringMailbox, opts.CustomerMailbox, nil)
	}
	return s
}

// ID returns the session id used in events and dedup keys.
func (s *Session) ID() string { return s.id }

// Current returns the open message, its stage and the resolved original id.
// ok is false when nothing is open.
func (s *Session) Current() (ref models.MessageRef, stage models.Stage, originalID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return models.MessageRef{}, models.StageNeutral, "", false
	}
	return *s.current, s.stage, s.originalID, true
}

// HandleEvent opens the message named by an active-item event. It is the
// stream consumer; a returned error makes the stream retry the message on
// its next event.
func (s *Session) HandleEvent(ctx context.Context, ev activeitem.Event) error {
	stage, err := s.Open(ctx, ev.MessageID)
	if err != nil {
		slog.Error("failed to open active item",
			"message_id", ev.MessageID,
			"source", ev.Source,
			"error", err,
		)
		return err
	}
	slog.Info("active item classified",
		"message_id", ev.MessageID,
		"source", ev.Source,
		"stage", stage.String(),
	)
	return nil
}

// Open makes messageID the active item, classifies it and queues the
// stage's category side effects.
func (s *Session) Open(ctx context.Context, messageID string) (models.Stage, error) {
	if s.graph == nil {
		return models.StageNeutral, ErrNotSignedIn
	}

	msg, err := s.graph.GetMessage(ctx, s.opts.SalesMailbox, messageID)
	if err != nil {
		return models.StageNeutral, fmt.Errorf("open message %s: %w", messageID, classifyErr(err, s.opts.SalesMailbox))
	}

	ref := msg.Ref()
	stage := classify.Classify(&ref, s.addrs)

	var originalID string
	if stage == models.StageEngineeringReply {
		id, ok, err := s.corr.ResolveOriginal(ctx, ref.NormalizedSubject)
		switch {
		case err != nil:
			slog.Warn("failed to resolve original message", "subject", ref.NormalizedSubject, "error", err)
		case !ok:
			slog.Info(ErrOriginalNotFound.Error(), "subject", ref.NormalizedSubject)
		default:
			originalID = id
		}
	}

	s.mu.Lock()
	s.current = &ref
	s.stage = stage
	s.originalID = originalID
	s.mu.Unlock()

	s.publish(ctx, queue.Event{
		Type:      queue.EventStageClassified,
		MessageID: ref.RestID,
		Stage:     stage.String(),
		Subject:   ref.Subject,
	})

	s.applyStageCategories(ref, stage)
	return stage, nil
}

// applyStageCategories queues the best-effort stamping for stage.
func (s *Session) applyStageCategories(ref models.MessageRef, stage models.Stage) {
	switch stage {
	case models.StageInitialRFQ:
		s.stamp(ref.RestID, models.CategoryMissingDetails)
	case models.StageEngineeringReply:
		s.stamp(ref.RestID, models.CategoryClarification)
	case models.StageCustomerReplyWithDetails:
		s.stamp(ref.RestID, models.CategoryDetailsComplete)
		s.background("propagate details complete", func(ctx context.Context) error {
			return s.salesCats.PropagateToOriginalInConversation(ctx, ref.RestID, ref.NormalizedSubject)
		})
	case models.StageNeutral:
	}
}

// stamp queues a SetCategory on the sales mailbox.
func (s *Session) stamp(restID string, cat models.Category) {
	s.background("set category "+cat.String(), func(ctx context.Context) error {
		return s.salesCats.SetCategory(ctx, restID, cat)
	})
}

// background hands fn to the side-effect queue, or runs it inline when the
// session has no queue.
func (s *Session) background(name string, fn func(ctx context.Context) error) {
	if s.fx != nil {
		s.fx.Enqueue(name, fn)
		return
	}
	if err := fn(context.Background()); err != nil {
		slog.Warn("side effect failed", "task", name, "error", err)
	}
}

// active returns the open message or ErrNoActiveItem.
func (s *Session) active() (models.MessageRef, models.Stage, string, error) {
	if s.graph == nil {
		return models.MessageRef{}, models.StageNeutral, "", ErrNotSignedIn
	}
	ref, stage, originalID, ok := s.Current()
	if !ok {
		return ref, stage, "", ErrNoActiveItem
	}
	return ref, stage, originalID, nil
}

// publish sends an event to the sink; failures are logged.
func (s *Session) publish(ctx context.Context, ev queue.Event) {
	if s.events == nil {
		return
	}
	ev.Session = s.id
	if err := s.events.Publish(ctx, ev); err != nil {
		slog.Warn("failed to publish workflow event", "type", ev.Type, "error", err)
	}
}

// result publishes the outcome of an action and passes err through.
func (s *Session) result(ctx context.Context, action, messageID, subject string, err error) error {
	ev := queue.Event{
		Type:      queue.EventActionSucceeded,
		Action:    action,
		MessageID: messageID,
		Subject:   subject,
	}
	if err != nil {
		ev.Type = queue.EventActionFailed
		ev.Error = err.Error()
	}
	s.publish(ctx, ev)
	return err
}

// IsNotSignedIn reports whether err blocks every action until sign-in.
func IsNotSignedIn(err error) bool {
	return errors.Is(err, ErrNotSignedIn)
}
