package buildwire

import (
	"fmt"
	"strings"
)

// summaryLineLimit bounds how many formatted diagnostic lines the
// composite summary carries before it is cut with a truncation marker.
const summaryLineLimit = 6

// BuildError aggregates the diagnostics of a failed call into one error.
// The summary is for humans; Errors and Warnings keep the full structured
// lists for programmatic consumers.
type BuildError struct {
	summary  string
	Errors   []Message
	Warnings []Message
}

func (e *BuildError) Error() string {
	return e.summary
}

// aggregateErrors builds a BuildError whose summary is the label, the
// error count, and up to summaryLineLimit formatted lines
// ("file:line:column: error: text", or "error: text" without a location),
// followed by a bare "..." line when more remain.
func aggregateErrors(label string, errs, warns []Message) *BuildError {
	var b strings.Builder
	b.WriteString(label)
	fmt.Fprintf(&b, " with %d error", len(errs))
	if len(errs) != 1 {
		b.WriteString("s")
	}
	b.WriteString(":")

	shown := len(errs)
	if shown > summaryLineLimit {
		shown = summaryLineLimit
	}
	for _, m := range errs[:shown] {
		if m.Location != nil {
			fmt.Fprintf(&b, "\n%s:%d:%d: error: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text)
		} else {
			fmt.Fprintf(&b, "\nerror: %s", m.Text)
		}
	}
	if len(errs) > summaryLineLimit {
		b.WriteString("\n...")
	}

	return &BuildError{
		summary:  b.String(),
		Errors:   sanitizeMessages(errs),
		Warnings: sanitizeMessages(warns),
	}
}
