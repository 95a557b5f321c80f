// Package musicxml streams MusicXML documents as a linear sequence of notation events
package musicxml

import "fmt"

// Location is a position in the source document
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// Event is one notation event in document order
type Event interface {
	Pos() Location
	event()
}

// GroupAttrs holds the display attributes of a part-group start marker
type GroupAttrs struct {
	Name                string
	NameDisplay         string
	Abbreviation        string
	AbbreviationDisplay string
	Symbol              string
	Barline             string
	GroupTime           bool
}

// PartAttrs holds the display attributes of a score-part declaration
type PartAttrs struct {
	Name            string
	Abbreviation    string
	InstrumentNames []string
}

// PartListStart opens the part list
type PartListStart struct {
	Location Location
}

// PartGroupStart is a <part-group type="start"> marker
type PartGroupStart struct {
	Number   int
	Attrs    GroupAttrs
	Location Location
}

// PartGroupStop is a <part-group type="stop"> marker
type PartGroupStop struct {
	Number   int
	Location Location
}

// ScorePartDeclared is a <score-part> declaration in the part list
type ScorePartDeclared struct {
	ID       string
	Attrs    PartAttrs
	Location Location
}

// PartListEnd closes the part list
type PartListEnd struct {
	Location Location
}

// PartBodyStart opens the music of one part
type PartBodyStart struct {
	ID       string
	Location Location
}

// PartBodyEnd closes the music of one part
type PartBodyEnd struct {
	ID       string
	Location Location
}

// MeasureStart opens a measure of the current part
type MeasureStart struct {
	Number   string
	Location Location
}

// StavesDeclared carries an <attributes><staves> count
type StavesDeclared struct {
	Count    int
	Location Location
}

// StaffIndicated carries a note's <staff> number
type StaffIndicated struct {
	Number   int
	Location Location
}

// VoiceIndicated carries a note's <voice> number
type VoiceIndicated struct {
	Number   int
	Location Location
}

func (e PartListStart) Pos() Location     { return e.Location }
func (e PartGroupStart) Pos() Location    { return e.Location }
func (e PartGroupStop) Pos() Location     { return e.Location }
func (e ScorePartDeclared) Pos() Location { return e.Location }
func (e PartListEnd) Pos() Location       { return e.Location }
func (e PartBodyStart) Pos() Location     { return e.Location }
func (e PartBodyEnd) Pos() Location       { return e.Location }
func (e MeasureStart) Pos() Location      { return e.Location }
func (e StavesDeclared) Pos() Location    { return e.Location }
func (e StaffIndicated) Pos() Location    { return e.Location }
func (e VoiceIndicated) Pos() Location    { return e.Location }

func (PartListStart) event()     {}
func (PartGroupStart) event()    {}
func (PartGroupStop) event()     {}
func (ScorePartDeclared) event() {}
func (PartListEnd) event()       {}
func (PartBodyStart) event()     {}
func (PartBodyEnd) event()       {}
func (MeasureStart) event()      {}
func (StavesDeclared) event()    {}
func (StaffIndicated) event()    {}
func (VoiceIndicated) event()    {}

// Warning is a recoverable problem found while reading the document
type Warning struct {
	Code     string
	Message  string
	Location Location
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s (%s)", w.Location, w.Message, w.Code)
}
