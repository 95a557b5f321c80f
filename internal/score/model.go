// Package score provides the score skeleton tree: part groups and parts stored in an
// index-addressed arena, with parent/child links kept as node indices.
package score

import (
	"fmt"
	"strings"
)

// Kind tells which variant a Node carries
type Kind uint8

// Node kinds
const (
	KindPartGroup Kind = iota + 1
	KindPart
)

func (k Kind) String() string {
	switch k {
	case KindPartGroup:
		return "part-group"
	case KindPart:
		return "part"
	default:
		return "unknown"
	}
}

// GroupSymbol is the bracket kind drawn in front of a part group
type GroupSymbol string

// Group symbols as spelled in MusicXML
const (
	SymbolNone    GroupSymbol = "none"
	SymbolBrace   GroupSymbol = "brace"
	SymbolLine    GroupSymbol = "line"
	SymbolBracket GroupSymbol = "bracket"
	SymbolSquare  GroupSymbol = "square"
)

// ParseGroupSymbol maps a MusicXML group-symbol value, reporting whether it was recognized
func ParseGroupSymbol(s string) (GroupSymbol, bool) {
	switch GroupSymbol(strings.TrimSpace(s)) {
	case SymbolNone:
		return SymbolNone, true
	case SymbolBrace:
		return SymbolBrace, true
	case SymbolLine:
		return SymbolLine, true
	case SymbolBracket:
		return SymbolBracket, true
	case SymbolSquare:
		return SymbolSquare, true
	}
	return SymbolNone, false
}

// GroupBarline is the bar-line policy of a part group
type GroupBarline string

// Bar-line policies as spelled in MusicXML
const (
	BarlineYes          GroupBarline = "yes"
	BarlineNo           GroupBarline = "no"
	BarlineMensurstrich GroupBarline = "Mensurstrich"
)

// ParseGroupBarline maps a MusicXML group-barline value, reporting whether it was recognized
func ParseGroupBarline(s string) (GroupBarline, bool) {
	switch GroupBarline(strings.TrimSpace(s)) {
	case BarlineYes:
		return BarlineYes, true
	case BarlineNo:
		return BarlineNo, true
	case BarlineMensurstrich:
		return BarlineMensurstrich, true
	}
	return BarlineYes, false
}

// PartGroup is a bracket or brace grouping parts and nested groups
type PartGroup struct {
	Number        int          `json:"number"`
	Name          string       `json:"name,omitempty"`
	NameDisplay   string       `json:"name_display,omitempty"`
	Abbreviation  string       `json:"abbreviation,omitempty"`
	Symbol        GroupSymbol  `json:"symbol,omitempty"`
	Barline       GroupBarline `json:"barline,omitempty"`
	GroupTime     bool         `json:"group_time,omitempty"`
	Implicit      bool         `json:"implicit,omitempty"`
	CreationOrder int          `json:"creation_order"`
	StartPosition int          `json:"start_position"`
	StopPosition  int          `json:"stop_position"`
	StartLine     int          `json:"start_line,omitempty"`
	StopLine      int          `json:"stop_line,omitempty"`
}

// Label returns a short human readable name for the group
func (g *PartGroup) Label() string {
	if g.Implicit {
		return "implicit outer-most group"
	}
	if g.Name != "" {
		return fmt.Sprintf("group %d %q", g.Number, g.Name)
	}
	return fmt.Sprintf("group %d", g.Number)
}

// Contains reports whether the group's position range encloses other's range
func (g *PartGroup) Contains(other *PartGroup) bool {
	return g.StartPosition <= other.StartPosition && other.StopPosition <= g.StopPosition
}

// Part is one instrument line of the score
type Part struct {
	ID              string   `json:"id"`
	Name            string   `json:"name,omitempty"`
	Abbreviation    string   `json:"abbreviation,omitempty"`
	InstrumentNames []string `json:"instrument_names,omitempty"`
	Position        int      `json:"position"`
	Line            int      `json:"line,omitempty"`

	// Filled from the part body
	MeasureCount int    `json:"measure_count"`
	FirstMeasure string `json:"first_measure,omitempty"`
	LastMeasure  string `json:"last_measure,omitempty"`
	StaffCount   int    `json:"staff_count"`
	Voices       []int  `json:"voices,omitempty"`
}

// Label returns a short human readable name for the part
func (p *Part) Label() string {
	if p.Name != "" {
		return fmt.Sprintf("%s %q", p.ID, p.Name)
	}
	return p.ID
}

// AddVoice records a voice number, keeping Voices sorted and unique
func (p *Part) AddVoice(n int) {
	for i, v := range p.Voices {
		if v == n {
			return
		}
		if v > n {
			p.Voices = append(p.Voices, 0)
			copy(p.Voices[i+1:], p.Voices[i:])
			p.Voices[i] = n
			return
		}
	}
	p.Voices = append(p.Voices, n)
}

// GroupRange is the flattened form of one part group
type GroupRange struct {
	Number   int  `json:"number"`
	Start    int  `json:"start"`
	Stop     int  `json:"stop"`
	Implicit bool `json:"implicit,omitempty"`
	Depth    int  `json:"depth"`
}
