// Package diag models diagnostics as values: a severity, a message, an
// optional source location, and a structured code. Verification passes push
// diagnostics into a Sink instead of writing to a text stream, which keeps
// capture decoupled from control flow.
package diag

import (
	"fmt"
	"strings"
)

// Severity classifies a diagnostic.
type Severity uint8

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNote
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	default:
		return "unknown"
	}
}

// SourceLoc points into the textual IL. The zero value means "no location".
type SourceLoc struct {
	File   uint32
	Line   uint32
	Column uint32
}

// IsValid reports whether the location carries real coordinates.
func (l SourceLoc) IsValid() bool { return l.Line != 0 }

// Code identifies structured verifier failures so tooling can filter without
// parsing message text.
type Code uint8

const (
	CodeUnknown Code = iota
	EhStackUnderflow
	EhStackLeak
	EhResumeTokenMissing
	EhResumeLabelInvalidTarget
	EhHandlerNotDominant
	EhHandlerUnreachable
)

var codeNames = [...]string{
	CodeUnknown:                "Unknown",
	EhStackUnderflow:           "EhStackUnderflow",
	EhStackLeak:                "EhStackLeak",
	EhResumeTokenMissing:       "EhResumeTokenMissing",
	EhResumeLabelInvalidTarget: "EhResumeLabelInvalidTarget",
	EhHandlerNotDominant:       "EhHandlerNotDominant",
	EhHandlerUnreachable:       "EhHandlerUnreachable",
}

func (c Code) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return "Unknown"
}

// Diagnostic is one verifier finding. It satisfies error so fatal diagnostics
// travel through ordinary error returns.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Loc      SourceLoc
}

// Error implements the error interface.
func (d *Diagnostic) Error() string { return d.Message }

// Format renders "<file>:<line>:<col>: <severity>: <message>", omitting the
// location prefix when absent.
func (d *Diagnostic) Format() string {
	if !d.Loc.IsValid() {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%d:%d:%d: %s: %s", d.Loc.File, d.Loc.Line, d.Loc.Column, d.Severity, d.Message)
}

// Errorf builds an error diagnostic at loc.
func Errorf(loc SourceLoc, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Severity: SeverityError, Message: fmt.Sprintf(format, args...), Loc: loc}
}

// CodedError builds an error diagnostic carrying a structured code.
func CodedError(code Code, loc SourceLoc, message string) *Diagnostic {
	return &Diagnostic{Severity: SeverityError, Code: code, Message: message, Loc: loc}
}

// Warningf builds a warning diagnostic at loc.
func Warningf(loc SourceLoc, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Severity: SeverityWarning, Message: fmt.Sprintf(format, args...), Loc: loc}
}

// Sink receives non-fatal diagnostics during a verification run.
type Sink interface {
	Report(d *Diagnostic)
}

// CollectingSink accumulates diagnostics in memory.
type CollectingSink struct {
	diags []*Diagnostic
}

// Report appends d to the collected list.
func (s *CollectingSink) Report(d *Diagnostic) { s.diags = append(s.diags, d) }

// Diagnostics returns the collected diagnostics in report order.
func (s *CollectingSink) Diagnostics() []*Diagnostic { return s.diags }

// Clear drops all collected diagnostics.
func (s *CollectingSink) Clear() { s.diags = nil }

// Aggregate prepends the collected warnings to a fatal diagnostic, matching
// the pipeline contract that the first failure carries any warnings already
// gathered.
func Aggregate(failure *Diagnostic, collected []*Diagnostic) *Diagnostic {
	if len(collected) == 0 {
		return failure
	}
	var sb strings.Builder
	for _, w := range collected {
		sb.WriteString(w.Format())
		sb.WriteString("\n")
	}
	sb.WriteString(failure.Format())
	combined := *failure
	combined.Message = sb.String()
	return &combined
}
