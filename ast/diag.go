package ast

import "strings"

// Diagnostic codes reserved by the pass manager. A pass must use one of
// these, never an ad hoc string.
const (
	ErrUndefinedRule    = "E-UNDEFINED-RULE"
	ErrDuplicateRule    = "E-DUPLICATE-RULE"
	ErrUnknownAnnot     = "E-UNKNOWN-ANNOTATION"
	ErrEmptyGrammar     = "E-EMPTY-GRAMMAR"
	ErrInvalidRange     = "E-INVALID-RANGE"
	ErrTypeConflict     = "E-TYPE-CONFLICT"
)

// Diagnostic is the shape every pass reports problems in.
type Diagnostic struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Location Location `json:"location"`
	Fatal    bool     `json:"-"`
}

func (d Diagnostic) Error() string {
	return d.Code + ": " + d.Message + " (" + d.Location.String() + ")"
}

// Diagnostics accumulates diagnostics across a pass, or across a whole
// pipeline run. Messages are deduplicated and joined with a newline.
type Diagnostics []Diagnostic

func (d *Diagnostics) Add(diag Diagnostic) {
	*d = append(*d, diag)
}

// Fatal reports whether any diagnostic in the list is fatal.
func (d Diagnostics) Fatal() bool {
	for _, diag := range d {
		if diag.Fatal {
			return true
		}
	}
	return false
}

// Err returns the diagnostics as an error, deduplicated by message, or nil
// if the list is empty.
func (d Diagnostics) Err() error {
	if len(d) == 0 {
		return nil
	}
	return d.dedupe()
}

func (d Diagnostics) dedupe() Diagnostics {
	seen := make(map[string]bool, len(d))
	var out Diagnostics
	for _, diag := range d {
		if !seen[diag.Error()] {
			seen[diag.Error()] = true
			out = append(out, diag)
		}
	}
	return out
}

func (d Diagnostics) Error() string {
	var b strings.Builder
	for i, diag := range d {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(diag.Error())
	}
	return b.String()
}
