package skeleton

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tildaslashalef/partnest/internal/musicxml"
)

// Severity classifies a diagnostic
type Severity int

const (
	// SeverityWarning is recoverable: the tree is still produced
	SeverityWarning Severity = iota + 1
	// SeverityFatal aborts the build: no tree is produced
	SeverityFatal
	// SeverityInternal is a broken builder invariant
	SeverityInternal
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityFatal:
		return "fatal"
	case SeverityInternal:
		return "internal"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseSeverity is the inverse of Severity.String
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warning":
		return SeverityWarning, nil
	case "fatal":
		return SeverityFatal, nil
	case "internal":
		return SeverityInternal, nil
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

// Diagnostic codes
const (
	CodeEmptyPartID          = "empty-part-id"
	CodeDuplicatePartID      = "duplicate-part-id"
	CodeNumericPartID        = "numeric-part-id"
	CodeUnopenedGroupStop    = "unopened-group-stop"
	CodeGroupAlreadyOpen     = "group-already-open"
	CodeOverlappingGroups    = "overlapping-groups"
	CodeCrossingMarkers      = "crossing-markers"
	CodeEmptyPartGroup       = "empty-part-group"
	CodeUnclosedGroup        = "unclosed-group"
	CodeEmptyPartList        = "empty-part-list"
	CodeNoEnclosingGroup     = "no-enclosing-group"
	CodeUnknownPart          = "unknown-part"
	CodeUnattachedEmptyGroup = "unattached-empty-group"
	CodeUnknownGroupSymbol   = "unknown-group-symbol"
	CodeUnknownGroupBarline  = "unknown-group-barline"
	CodePartListClosed       = "part-list-closed"
)

var (
	// ErrEmptyPartID is returned for a score-part without an id
	ErrEmptyPartID = errors.New("empty part id")

	// ErrOverlappingGroups is returned when two part groups overlap without nesting
	ErrOverlappingGroups = errors.New("overlapping part groups")

	// ErrUnclosedGroup is returned when part groups are still open at the end of the part list
	ErrUnclosedGroup = errors.New("unclosed part group")

	// ErrGroupAlreadyOpen is returned when a group number is started twice without a stop
	ErrGroupAlreadyOpen = errors.New("part group already open")

	// ErrNoEnclosingGroup is returned when a part has no group to live in
	ErrNoEnclosingGroup = errors.New("no enclosing part group")

	// ErrPartListClosed is returned when part-list operations arrive after EndPartList
	ErrPartListClosed = errors.New("part list already closed")

	// ErrNotFinished is returned when the tree is requested before the build completed
	ErrNotFinished = errors.New("skeleton not finished")
)

// Diagnostic is one problem found while building the skeleton
type Diagnostic struct {
	Severity Severity          `json:"severity"`
	Code     string            `json:"code"`
	Location musicxml.Location `json:"location"`
	Message  string            `json:"message"`
	Subjects []string          `json:"subjects,omitempty"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s [%s]", d.Location, d.Severity, d.Message, d.Code)
}

// Error is the error returned for fatal and internal diagnostics
type Error struct {
	Diagnostic Diagnostic
	err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at %s: %s", e.err, e.Diagnostic.Location, e.Diagnostic.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Count returns the number of diagnostics with the given severity
func Count(diags []Diagnostic, sev Severity) int {
	n := 0
	for _, d := range diags {
		if d.Severity == sev {
			n++
		}
	}
	return n
}
