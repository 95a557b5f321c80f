// Package runs stores skeleton builds ("runs") so their trees and diagnostics
// can be listed and re-rendered later.
package runs

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tildaslashalef/partnest/internal/musicxml"
	"github.com/tildaslashalef/partnest/internal/score"
	"github.com/tildaslashalef/partnest/internal/skeleton"
	"github.com/tildaslashalef/partnest/internal/ulid"
)

// Status is the outcome of a run
type Status string

// Run outcomes
const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// NodeKind is the stored form of score.Kind
type NodeKind string

// Stored node kinds
const (
	NodeKindGroup NodeKind = "group"
	NodeKindPart  NodeKind = "part"
)

// Run is one skeleton build of a MusicXML file
type Run struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SourcePath   string    `json:"source_path"`
	Status       Status    `json:"status"`
	Lenient      bool      `json:"lenient"`
	PartCount    int       `json:"part_count"`
	GroupCount   int       `json:"group_count"`
	WarningCount int       `json:"warning_count"`
	FatalCount   int       `json:"fatal_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// RunNode is one tree node of a run, stored in pre-order
type RunNode struct {
	ID            string      `json:"id"`
	RunID         string      `json:"run_id"`
	NodeIndex     int         `json:"node_index"`
	ParentIndex   int         `json:"parent_index"` // -1 for the root
	Kind          NodeKind    `json:"kind"`
	Label         string      `json:"label,omitempty"`
	Implicit      bool        `json:"implicit,omitempty"`
	GroupNumber   int         `json:"group_number,omitempty"`
	Symbol        string      `json:"symbol,omitempty"`
	CreationOrder int         `json:"creation_order,omitempty"`
	PartID        string      `json:"part_id,omitempty"`
	StartPosition int         `json:"start_position"`
	StopPosition  int         `json:"stop_position"`
	Position      int         `json:"position"` // -1 for groups
	Details       NodeDetails `json:"details"`
}

// NodeDetails holds the attributes of a node that have no column of their
// own. It is stored as a JSON document.
type NodeDetails struct {
	// Groups
	NameDisplay string `json:"name_display,omitempty"`
	Barline     string `json:"barline,omitempty"`
	GroupTime   bool   `json:"group_time,omitempty"`
	StopLine    int    `json:"stop_line,omitempty"`

	// Both
	Abbreviation string `json:"abbreviation,omitempty"`
	Line         int    `json:"line,omitempty"`

	// Parts
	InstrumentNames []string `json:"instrument_names,omitempty"`
	MeasureCount    int      `json:"measure_count,omitempty"`
	FirstMeasure    string   `json:"first_measure,omitempty"`
	LastMeasure     string   `json:"last_measure,omitempty"`
	StaffCount      int      `json:"staff_count,omitempty"`
	Voices          []int    `json:"voices,omitempty"`
}

// Value implements driver.Valuer
func (d NodeDetails) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encoding node details: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (d *NodeDetails) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*d = NodeDetails{}
		return nil
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("node details: unsupported type %T", src)
	}
	if len(b) == 0 {
		*d = NodeDetails{}
		return nil
	}
	return json.Unmarshal(b, d)
}

// RunDiagnostic is one stored diagnostic of a run
type RunDiagnostic struct {
	ID       string   `json:"id"`
	RunID    string   `json:"run_id"`
	Seq      int      `json:"seq"`
	Severity string   `json:"severity"`
	Code     string   `json:"code"`
	Line     int      `json:"line"`
	Column   int      `json:"column"`
	Message  string   `json:"message"`
	Subjects []string `json:"subjects,omitempty"`
}

// NewRun creates a run record for the file at path
func NewRun(path, name string, lenient bool) (*Run, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	return &Run{
		ID:         ulid.RunID(),
		Name:       name,
		SourcePath: absPath,
		Status:     StatusSucceeded,
		Lenient:    lenient,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Record copies the counters of a build result onto the run. buildErr is the
// error returned by the build, if any.
func (r *Run) Record(res *skeleton.Result, buildErr error, elapsed time.Duration) {
	r.DurationMS = elapsed.Milliseconds()
	r.Status = StatusSucceeded
	r.ErrorMessage = ""
	if buildErr != nil {
		r.Status = StatusFailed
		r.ErrorMessage = buildErr.Error()
	}
	if res == nil {
		return
	}
	r.PartCount = res.PartCount
	r.GroupCount = res.GroupCount
	r.WarningCount = res.Warnings()
	r.FatalCount = res.Fatals()
}

// Succeeded reports whether the run produced a tree
func (r *Run) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// NodesFromTree flattens tree into pre-order rows. Parents always precede their children.
func NodesFromTree(runID string, tree *score.Tree) []*RunNode {
	if tree == nil || tree.Root() == score.NoNode {
		return nil
	}

	var nodes []*RunNode
	var visit func(id score.NodeID, parent int)
	visit = func(id score.NodeID, parent int) {
		n := &RunNode{
			ID:          ulid.NodeID(),
			RunID:       runID,
			NodeIndex:   len(nodes),
			ParentIndex: parent,
			Position:    -1,
		}
		if g := tree.Group(id); g != nil {
			n.Kind = NodeKindGroup
			n.Label = g.Name
			n.Implicit = g.Implicit
			n.GroupNumber = g.Number
			n.Symbol = string(g.Symbol)
			n.CreationOrder = g.CreationOrder
			n.StartPosition = g.StartPosition
			n.StopPosition = g.StopPosition
			n.Details = NodeDetails{
				NameDisplay:  g.NameDisplay,
				Abbreviation: g.Abbreviation,
				Barline:      string(g.Barline),
				GroupTime:    g.GroupTime,
				Line:         g.StartLine,
				StopLine:     g.StopLine,
			}
		} else if p := tree.Part(id); p != nil {
			n.Kind = NodeKindPart
			n.Label = p.Name
			n.PartID = p.ID
			n.Position = p.Position
			n.StartPosition = p.Position
			n.StopPosition = p.Position + 1
			n.Details = NodeDetails{
				Abbreviation:    p.Abbreviation,
				Line:            p.Line,
				InstrumentNames: p.InstrumentNames,
				MeasureCount:    p.MeasureCount,
				FirstMeasure:    p.FirstMeasure,
				LastMeasure:     p.LastMeasure,
				StaffCount:      p.StaffCount,
				Voices:          p.Voices,
			}
		}
		nodes = append(nodes, n)

		self := n.NodeIndex
		for _, c := range tree.Children(id) {
			visit(c, self)
		}
	}
	visit(tree.Root(), -1)

	return nodes
}

// TreeFromNodes rebuilds a tree from stored rows
func TreeFromNodes(nodes []*RunNode) (*score.Tree, error) {
	sorted := make([]*RunNode, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].NodeIndex < sorted[j].NodeIndex })

	tree := score.NewTree()
	ids := make(map[int]score.NodeID, len(sorted))

	for _, n := range sorted {
		var id score.NodeID
		switch n.Kind {
		case NodeKindGroup:
			// the implicit group has neither symbol nor barline
			var (
				symbol  score.GroupSymbol
				barline score.GroupBarline
			)
			if n.Symbol != "" {
				symbol, _ = score.ParseGroupSymbol(n.Symbol)
			}
			if n.Details.Barline != "" {
				barline, _ = score.ParseGroupBarline(n.Details.Barline)
			}
			id = tree.AddPartGroup(score.PartGroup{
				Number:        n.GroupNumber,
				Name:          n.Label,
				NameDisplay:   n.Details.NameDisplay,
				Abbreviation:  n.Details.Abbreviation,
				Symbol:        symbol,
				Barline:       barline,
				GroupTime:     n.Details.GroupTime,
				Implicit:      n.Implicit,
				CreationOrder: n.CreationOrder,
				StartPosition: n.StartPosition,
				StopPosition:  n.StopPosition,
				StartLine:     n.Details.Line,
				StopLine:      n.Details.StopLine,
			})
		case NodeKindPart:
			id = tree.AddPart(score.Part{
				ID:              n.PartID,
				Name:            n.Label,
				Abbreviation:    n.Details.Abbreviation,
				InstrumentNames: n.Details.InstrumentNames,
				Position:        n.Position,
				Line:            n.Details.Line,
				MeasureCount:    n.Details.MeasureCount,
				FirstMeasure:    n.Details.FirstMeasure,
				LastMeasure:     n.Details.LastMeasure,
				StaffCount:      n.Details.StaffCount,
				Voices:          n.Details.Voices,
			})
		default:
			return nil, fmt.Errorf("node %d: unknown kind %q", n.NodeIndex, n.Kind)
		}
		ids[n.NodeIndex] = id

		if n.ParentIndex < 0 {
			if err := tree.SetRoot(id); err != nil {
				return nil, fmt.Errorf("node %d: %w", n.NodeIndex, err)
			}
			continue
		}
		parent, ok := ids[n.ParentIndex]
		if !ok {
			return nil, fmt.Errorf("node %d: parent %d not stored before it", n.NodeIndex, n.ParentIndex)
		}
		if err := tree.AppendChild(parent, id); err != nil {
			return nil, fmt.Errorf("node %d: %w", n.NodeIndex, err)
		}
	}

	return tree, nil
}

// DiagnosticsFromResult converts builder diagnostics into rows, keeping their order
func DiagnosticsFromResult(runID string, diags []skeleton.Diagnostic) []*RunDiagnostic {
	rows := make([]*RunDiagnostic, 0, len(diags))
	for i, d := range diags {
		rows = append(rows, &RunDiagnostic{
			ID:       ulid.DiagnosticID(),
			RunID:    runID,
			Seq:      i,
			Severity: d.Severity.String(),
			Code:     d.Code,
			Line:     d.Location.Line,
			Column:   d.Location.Column,
			Message:  d.Message,
			Subjects: d.Subjects,
		})
	}
	return rows
}

// ToDiagnostic converts a stored row back into a builder diagnostic
func (d *RunDiagnostic) ToDiagnostic() skeleton.Diagnostic {
	sev, err := skeleton.ParseSeverity(d.Severity)
	if err != nil {
		sev = skeleton.SeverityInternal
	}
	return skeleton.Diagnostic{
		Severity: sev,
		Code:     d.Code,
		Location: musicxml.Location{Line: d.Line, Column: d.Column},
		Message:  d.Message,
		Subjects: d.Subjects,
	}
}

// subjects are stored as one newline separated column
func joinSubjects(s []string) string {
	return strings.Join(s, "\n")
}

func splitSubjects(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
