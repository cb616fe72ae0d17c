package sat

import (
	"fmt"
	"io"
)

// SearchPosition describes where in the search tree a conflict was
// encountered: the variables assumed so far and the constraints the
// solver reported as conflicting.
type SearchPosition interface {
	Variables() []Variable
	Conflicts() []AppliedConstraint
}

// Tracer receives a callback for every conflict hit during the guided
// search. The default tracer discards them.
type Tracer interface {
	Trace(p SearchPosition)
}

type DefaultTracer struct{}

func (DefaultTracer) Trace(_ SearchPosition) {
}

// LoggingTracer writes a human-readable account of each conflict to
// Writer.
type LoggingTracer struct {
	Writer io.Writer
}

func (t LoggingTracer) Trace(p SearchPosition) {
	fmt.Fprintf(t.Writer, "---\nAssumptions:\n")
	for _, i := range p.Variables() {
		fmt.Fprintf(t.Writer, "- %s\n", i.Identifier())
	}
	fmt.Fprintf(t.Writer, "Conflicts:\n")
	for _, a := range p.Conflicts() {
		fmt.Fprintf(t.Writer, "- %s\n", a)
	}
}
