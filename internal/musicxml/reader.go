package musicxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

var (
	// ErrNotMusicXML is returned when the root element is not a MusicXML score
	ErrNotMusicXML = errors.New("not a MusicXML score")

	errNilReader = errors.New("nil MusicXML reader")
)

// Root element names
const (
	RootPartwise = "score-partwise"
	RootTimewise = "score-timewise"
)

type xmlDisplay struct {
	Texts []string `xml:"display-text"`
}

type xmlPartGroup struct {
	Type                string      `xml:"type,attr"`
	Number              string      `xml:"number,attr"`
	Name                string      `xml:"group-name"`
	NameDisplay         *xmlDisplay `xml:"group-name-display"`
	Abbreviation        string      `xml:"group-abbreviation"`
	AbbreviationDisplay *xmlDisplay `xml:"group-abbreviation-display"`
	Symbol              string      `xml:"group-symbol"`
	Barline             string      `xml:"group-barline"`
	GroupTime           *struct{}   `xml:"group-time"`
}

type xmlScorePart struct {
	ID           string `xml:"id,attr"`
	Name         string `xml:"part-name"`
	Abbreviation string `xml:"part-abbreviation"`
	Instruments  []struct {
		Name string `xml:"instrument-name"`
	} `xml:"score-instrument"`
}

// Option configures a Reader
type Option func(*Reader)

// WithStrict toggles strict XML well-formedness checks (on by default)
func WithStrict(strict bool) Option {
	return func(r *Reader) {
		r.dec.Strict = strict
	}
}

// Reader turns a MusicXML document into notation events
type Reader struct {
	dec      *xml.Decoder
	pending  []Event
	warnings []Warning
	stack    []string

	root         string
	inPartList   bool
	currentPart  string
	measure      string
	partListSeen bool
}

// NewReader creates a streaming reader for r
func NewReader(r io.Reader, opts ...Option) (*Reader, error) {
	if r == nil {
		return nil, errNilReader
	}

	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader
	dec.Entity = xml.HTMLEntity

	reader := &Reader{dec: dec}
	for _, opt := range opts {
		opt(reader)
	}
	return reader, nil
}

// charsetReader decodes non UTF-8 documents through golang.org/x/text
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// Root returns the root element name once it has been read
func (r *Reader) Root() string {
	return r.root
}

// Warnings returns the recoverable problems met so far, in document order
func (r *Reader) Warnings() []Warning {
	return r.warnings
}

func (r *Reader) location() Location {
	line, col := r.dec.InputPos()
	return Location{Line: line, Column: col}
}

func (r *Reader) warn(code string, loc Location, format string, args ...any) {
	r.warnings = append(r.warnings, Warning{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	})
}

func (r *Reader) emit(events ...Event) {
	r.pending = append(r.pending, events...)
}

func (r *Reader) inside(name string) bool {
	for i := len(r.stack) - 1; i >= 0; i-- {
		if r.stack[i] == name {
			return true
		}
	}
	return false
}

func (r *Reader) parent() string {
	if len(r.stack) == 0 {
		return ""
	}
	return r.stack[len(r.stack)-1]
}

// Next returns the next event, or io.EOF once the document is exhausted
func (r *Reader) Next() (Event, error) {
	for len(r.pending) == 0 {
		tok, err := r.dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if r.root == "" {
					return nil, ErrNotMusicXML
				}
				return nil, io.EOF
			}
			return nil, fmt.Errorf("reading MusicXML at %s: %w", r.location(), err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if err := r.startElement(t); err != nil {
				return nil, err
			}
		case xml.EndElement:
			r.endElement(t)
		}
	}

	ev := r.pending[0]
	r.pending = r.pending[1:]
	return ev, nil
}

func (r *Reader) startElement(t xml.StartElement) error {
	loc := r.location()
	name := t.Name.Local

	if r.root == "" {
		if name != RootPartwise && name != RootTimewise {
			return fmt.Errorf("%w: root element <%s>", ErrNotMusicXML, name)
		}
		r.root = name
		r.stack = append(r.stack, name)
		return nil
	}

	switch {
	case name == "part-list":
		r.inPartList = true
		r.partListSeen = true
		r.emit(PartListStart{Location: loc})

	case name == "part-group" && r.inPartList:
		return r.readPartGroup(t, loc)

	case name == "score-part" && r.inPartList:
		return r.readScorePart(t, loc)

	case name == "measure":
		number := attr(t, "number")
		if r.root == RootTimewise {
			r.measure = number
		} else {
			r.emit(MeasureStart{Number: number, Location: loc})
		}

	case name == "part" && !r.inPartList:
		id := attr(t, "id")
		r.currentPart = id
		r.emit(PartBodyStart{ID: id, Location: loc})
		if r.root == RootTimewise {
			r.emit(MeasureStart{Number: r.measure, Location: loc})
		}

	case name == "staves" && r.parent() == "attributes":
		if n, ok := r.readInt(t, loc); ok {
			r.emit(StavesDeclared{Count: n, Location: loc})
		}
		return nil

	case (name == "staff" || name == "voice") && r.inside("part") && !r.inPartList:
		n, ok := r.readInt(t, loc)
		if !ok {
			return nil
		}
		if name == "staff" {
			r.emit(StaffIndicated{Number: n, Location: loc})
		} else {
			r.emit(VoiceIndicated{Number: n, Location: loc})
		}
		return nil
	}

	r.stack = append(r.stack, name)
	return nil
}

func (r *Reader) endElement(t xml.EndElement) {
	if len(r.stack) > 0 {
		r.stack = r.stack[:len(r.stack)-1]
	}

	switch t.Name.Local {
	case "part-list":
		r.inPartList = false
		r.emit(PartListEnd{Location: r.location()})
	case "part":
		if !r.inPartList {
			r.emit(PartBodyEnd{ID: r.currentPart, Location: r.location()})
			r.currentPart = ""
		}
	}
}

func (r *Reader) readPartGroup(t xml.StartElement, loc Location) error {
	var pg xmlPartGroup
	if err := r.dec.DecodeElement(&pg, &t); err != nil {
		return fmt.Errorf("decoding part-group at %s: %w", loc, err)
	}

	raw := strings.TrimSpace(pg.Number)
	if raw == "" {
		raw = "1"
	}
	number, err := strconv.Atoi(raw)
	if err != nil || number < 0 {
		r.warn("invalid-group-number", loc, "part-group number %q is not a non-negative integer, marker ignored", pg.Number)
		return nil
	}

	switch strings.TrimSpace(pg.Type) {
	case "start":
		attrs := GroupAttrs{
			Name:         strings.TrimSpace(pg.Name),
			Abbreviation: strings.TrimSpace(pg.Abbreviation),
			Symbol:       strings.TrimSpace(pg.Symbol),
			Barline:      strings.TrimSpace(pg.Barline),
			GroupTime:    pg.GroupTime != nil,
		}
		if pg.NameDisplay != nil {
			attrs.NameDisplay = strings.Join(pg.NameDisplay.Texts, "")
		}
		if pg.AbbreviationDisplay != nil {
			attrs.AbbreviationDisplay = strings.Join(pg.AbbreviationDisplay.Texts, "")
		}
		r.emit(PartGroupStart{Number: number, Attrs: attrs, Location: loc})
	case "stop":
		r.emit(PartGroupStop{Number: number, Location: loc})
	default:
		r.warn("invalid-group-type", loc, "part-group %d has type %q, marker ignored", number, pg.Type)
	}
	return nil
}

func (r *Reader) readScorePart(t xml.StartElement, loc Location) error {
	var sp xmlScorePart
	if err := r.dec.DecodeElement(&sp, &t); err != nil {
		return fmt.Errorf("decoding score-part at %s: %w", loc, err)
	}

	attrs := PartAttrs{
		Name:         strings.TrimSpace(sp.Name),
		Abbreviation: strings.TrimSpace(sp.Abbreviation),
	}
	for _, inst := range sp.Instruments {
		if n := strings.TrimSpace(inst.Name); n != "" {
			attrs.InstrumentNames = append(attrs.InstrumentNames, n)
		}
	}

	r.emit(ScorePartDeclared{ID: strings.TrimSpace(sp.ID), Attrs: attrs, Location: loc})
	return nil
}

func (r *Reader) readInt(t xml.StartElement, loc Location) (int, bool) {
	var s string
	if err := r.dec.DecodeElement(&s, &t); err != nil {
		r.warn("invalid-number", loc, "<%s>: %v", t.Name.Local, err)
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		r.warn("invalid-number", loc, "<%s> value %q is not a positive integer", t.Name.Local, s)
		return 0, false
	}
	return n, true
}

func attr(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// ReadAll drains r into a slice of events
func ReadAll(r *Reader) ([]Event, error) {
	var events []Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}
