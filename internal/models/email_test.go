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

package models

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// TestNormalizeSubject verifies only one leading reply prefix is stripped.
func TestNormalizeSubject(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"RFQ for Widgets", "RFQ for Widgets"},
		{"Re: RFQ for Widgets", "RFQ for Widgets"},
		{"RE:RFQ", "RFQ"},
		{"  re:  RFQ  ", "RFQ"},
		{"Re: Re: RFQ", "Re: RFQ"},
		{"Fwd: RFQ", "Fwd: RFQ"},
		{"", ""},
		{"Re", "Re"},
	}
	for _, tt := range tests {
		if got := NormalizeSubject(tt.in); got != tt.want {
			t.Errorf("NormalizeSubject(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestNormalizeSubject_Property checks the output is trimmed and is a suffix of the input.
func TestNormalizeSubject_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "subject")
		got := NormalizeSubject(s)
		if got != strings.TrimSpace(got) {
			t.Fatalf("NormalizeSubject(%q) = %q is not trimmed", s, got)
		}
		if !strings.Contains(s, got) {
			t.Fatalf("NormalizeSubject(%q) = %q is not a substring", s, got)
		}
	})
}

// TestNewMessageRef verifies sender lowercasing and derived normalized subject.
func TestNewMessageRef(t *testing.T) {
	r := NewMessageRef("id1", "c1", "RE: hello", " Customer@Example.com ")
	if r.FromAddress != "customer@example.com" {
		t.Errorf("FromAddress = %q", r.FromAddress)
	}
	if r.NormalizedSubject != "hello" {
		t.Errorf("NormalizedSubject = %q", r.NormalizedSubject)
	}
}

// TestCategory_Names verifies every category round-trips through ParseCategory.
func TestCategory_Names(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range Categories {
		if seen[c.DisplayName()] {
			t.Errorf("duplicate display name %q", c.DisplayName())
		}
		seen[c.DisplayName()] = true

		for _, name := range []string{c.String(), c.DisplayName()} {
			got, err := ParseCategory(name)
			if err != nil || got != c {
				t.Errorf("ParseCategory(%q) = %v, %v", name, got, err)
			}
		}
		if !IsRFQCategory(c.DisplayName()) {
			t.Errorf("IsRFQCategory(%q) = false", c.DisplayName())
		}
		if !strings.HasPrefix(c.Color(), "preset") {
			t.Errorf("Color(%v) = %q", c, c.Color())
		}
	}
	if IsRFQCategory("Blue category") {
		t.Error("IsRFQCategory(Blue category) = true")
	}
}

// TestParseStage verifies stage names round-trip.
func TestParseStage(t *testing.T) {
	for _, s := range Stages {
		got, err := ParseStage(s.String())
		if err != nil || got != s {
			t.Errorf("ParseStage(%q) = %v, %v", s.String(), got, err)
		}
	}
	if _, err := ParseStage("bogus"); err == nil {
		t.Error("ParseStage(bogus) should fail")
	}
}
