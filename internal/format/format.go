// Package format renders a report.Report to bytes (spec.md §6): a text
// formatter in the teacher's verbose/result-printing register, and a JSON
// formatter whose schema is a stable public interface.
package format

import (
	"io"

	"github.com/jdoe/dupescan/internal/report"
)

// Kind selects a Formatter implementation.
type Kind string

const (
	Text Kind = "text"
	JSON Kind = "json"
)

// Formatter renders a Report to w.
type Formatter interface {
	Render(w io.Writer, rep report.Report) error
}

// New returns the Formatter for kind, defaulting to Text for unknown values.
func New(kind Kind) Formatter {
	if kind == JSON {
		return jsonFormatter{}
	}
	return textFormatter{}
}
