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

// Package status renders one-line results of desk actions for the terminal.
package status

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Kind selects the style of a status line.
type Kind int

const (
	Info Kind = iota
	Success
	Error
)

var (
	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#005FAF", Dark: "#5FAFFF"})
	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#008700", Dark: "#5FD75F"})
	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"})
	detailStyle = lipgloss.NewStyle().Faint(true)
)

func (k Kind) style() lipgloss.Style {
	switch k {
	case Success:
		return successStyle
	case Error:
		return errorStyle
	}
	return infoStyle
}

func (k Kind) marker() string {
	switch k {
	case Success:
		return "✓"
	case Error:
		return "✗"
	}
	return "•"
}

// Line renders msg with the kind's marker and style. detail, when non-empty,
// is appended faint.
func Line(kind Kind, msg, detail string) string {
	out := kind.style().Render(kind.marker() + " " + msg)
	if detail != "" {
		out += " " + detailStyle.Render(detail)
	}
	return out
}

// Fprint writes a status line followed by a newline.
func Fprint(w io.Writer, kind Kind, msg, detail string) {
	fmt.Fprintln(w, Line(kind, msg, detail))
}

// Err renders err as an error line.
func Err(w io.Writer, err error) {
	Fprint(w, Error, err.Error(), "")
}
