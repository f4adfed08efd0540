package domain

import "log/slog"

// DiagnosticKind classifies a non-fatal event reported alongside results.
type DiagnosticKind string

const (
	DiagRowSkipped   DiagnosticKind = "row-skip"
	DiagRowWidth     DiagnosticKind = "row-width"
	DiagBadDate      DiagnosticKind = "bad-date"
	DiagEntityFailed DiagnosticKind = "entity-failed"
)

// Diagnostic is a warning or error produced while cleaning or estimating.
// Row is the zero-based body row index, or -1 when not row specific.
type Diagnostic struct {
	Level   slog.Level
	Kind    DiagnosticKind
	Row     int
	Entity  string
	Message string
}

// Diagnostics is an ordered collection of reported events.
type Diagnostics []Diagnostic

// Warn appends a warning-level diagnostic for a body row.
func (d *Diagnostics) Warn(kind DiagnosticKind, row int, msg string) {
	*d = append(*d, Diagnostic{Level: slog.LevelWarn, Kind: kind, Row: row, Message: msg})
}

// Count returns how many diagnostics of the given kind were recorded.
func (d Diagnostics) Count(kind DiagnosticKind) int {
	n := 0
	for _, item := range d {
		if item.Kind == kind {
			n++
		}
	}
	return n
}

// Attrs renders the diagnostic as slog key/value pairs.
func (d Diagnostic) Attrs() []any {
	args := []any{"kind", string(d.Kind)}
	if d.Row >= 0 {
		args = append(args, "row", d.Row)
	}
	if d.Entity != "" {
		args = append(args, "entity", d.Entity)
	}
	return args
}
