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

package seed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hexa/rfqdesk/internal/graph"
)

const sampleEML = "From: Customer One <customer-1@example.com>\r\n" +
	"To: sales@example.com\r\n" +
	"Subject: RFQ for 2 FBG Arrays\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please quote 10x 2 FBG arrays.\r\n" +
	"--b1\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"specs.pdf\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"JVBERi0=\r\n" +
	"--b1--\r\n"

// TestParseEML verifies subject, body and attachments are extracted.
func TestParseEML(t *testing.T) {
	msg, err := ParseEML(strings.NewReader(sampleEML))
	if err != nil {
		t.Fatalf("ParseEML: %v", err)
	}
	if msg.Subject != "RFQ for 2 FBG Arrays" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, "10x 2 FBG arrays") || msg.HTML {
		t.Errorf("Body = %q, HTML = %v", msg.Body, msg.HTML)
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("Attachments = %d, want 1", len(msg.Attachments))
	}
	a := msg.Attachments[0]
	if a.Name != "specs.pdf" || a.ContentType != "application/pdf" || string(a.Content) != "%PDF-" {
		t.Errorf("attachment = %q %q %q", a.Name, a.ContentType, a.Content)
	}
}

// TestParseEML_NoSubject verifies a subject is required.
func TestParseEML_NoSubject(t *testing.T) {
	_, err := ParseEML(strings.NewReader("From: a@example.com\r\n\r\nbody\r\n"))
	if err == nil {
		t.Fatal("expected error")
	}
}

// TestDefault verifies the default subject carries the send time.
func TestDefault(t *testing.T) {
	msg := Default(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))
	if msg.Subject != "RFQ – Add-in test 2026-03-01 09:30:00" {
		t.Errorf("Subject = %q", msg.Subject)
	}
}

type fakeSender struct {
	from string
	msg  graph.OutgoingMessage
	err  error
}

func (f *fakeSender) SendMail(_ context.Context, mailbox string, msg graph.OutgoingMessage) error {
	f.from, f.msg = mailbox, msg
	return f.err
}

// TestSend verifies the RFQ goes from the customer to sales.
func TestSend(t *testing.T) {
	s := &fakeSender{}
	err := Send(context.Background(), s, "customer-1@example.com", "sales@example.com", Default(time.Now()))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if s.from != "customer-1@example.com" || len(s.msg.To) != 1 || s.msg.To[0] != "sales@example.com" {
		t.Errorf("sent %+v from %s", s.msg, s.from)
	}
}

// TestHint verifies remediation hints for auth and lookup failures.
func TestHint(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{401, "Mail.Send"},
		{403, "admin consent"},
		{404, "customer-1@example.com exists"},
		{500, ""},
	}
	for _, tt := range tests {
		s := &fakeSender{err: &graph.APIError{Status: tt.status}}
		err := Send(context.Background(), s, "customer-1@example.com", "sales@example.com", Default(time.Now()))
		got := Hint(err, "customer-1@example.com")
		if tt.want == "" && got != "" || !strings.Contains(got, tt.want) {
			t.Errorf("Hint(%d) = %q, want containing %q", tt.status, got, tt.want)
		}
	}
	if Hint(errors.New("boom"), "x") != "" {
		t.Error("Hint on non-Graph error should be empty")
	}
}
