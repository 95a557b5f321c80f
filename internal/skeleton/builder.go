// Package skeleton rebuilds the part-group/part tree of a score from the flat
// start/stop markers and part declarations of its part list.
//
// Building takes two passes. The first pass consumes the part list in document
// order, numbering parts and recording where each group starts and stops. The
// second pass, run by EndPartList, walks the part positions in order with an
// explicit stack of open groups and nests every part and group under its
// container.
package skeleton

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tildaslashalef/partnest/internal/loggy"
	"github.com/tildaslashalef/partnest/internal/musicxml"
	"github.com/tildaslashalef/partnest/internal/score"
)

var numericID = regexp.MustCompile(`^[0-9]+$`)

// Options tunes how strictly the builder treats malformed part lists
type Options struct {
	// LenientCrossings turns crossing start/stop markers into warnings
	LenientCrossings bool
}

// PartHandle identifies a registered part
type PartHandle struct {
	ID       string
	Position int
	Node     score.NodeID
}

// Builder builds the skeleton of one document. It is not safe for concurrent use.
type Builder struct {
	logger *loggy.Logger
	opts   Options

	tree     *score.Tree
	tables   *tables
	implicit *descriptor

	position  int
	seq       int
	parts     []score.NodeID
	partsByID map[string]PartHandle

	diagnostics []Diagnostic
	err         error
	listClosed  bool
	finished    bool

	body *score.Part
}

// NewBuilder creates a builder for a single document
func NewBuilder(logger *loggy.Logger, opts Options) *Builder {
	if logger == nil {
		logger = loggy.GetGlobalLogger()
	}
	return &Builder{
		logger:    logger,
		opts:      opts,
		tree:      score.NewTree(),
		tables:    newTables(),
		partsByID: make(map[string]PartHandle),
	}
}

// CurrentPosition returns the position the next declared part will get
func (b *Builder) CurrentPosition() int {
	return b.position
}

// Diagnostics returns the diagnostics recorded so far, in the order they were found
func (b *Builder) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(b.diagnostics))
	copy(out, b.diagnostics)
	return out
}

// Err returns the fatal error that stopped the builder, if any
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) nextSeq() int {
	s := b.seq
	b.seq++
	return s
}

func (b *Builder) warn(code string, loc musicxml.Location, subjects []string, format string, args ...any) {
	d := Diagnostic{
		Severity: SeverityWarning,
		Code:     code,
		Location: loc,
		Message:  fmt.Sprintf(format, args...),
		Subjects: subjects,
	}
	b.diagnostics = append(b.diagnostics, d)
	b.logger.Warn("Skeleton warning", "code", code, "location", loc.String(), "message", d.Message)
}

// fail records a fatal or internal diagnostic and poisons the builder
func (b *Builder) fail(sev Severity, sentinel error, code string, loc musicxml.Location, subjects []string, format string, args ...any) error {
	d := Diagnostic{
		Severity: sev,
		Code:     code,
		Location: loc,
		Message:  fmt.Sprintf(format, args...),
		Subjects: subjects,
	}
	b.diagnostics = append(b.diagnostics, d)
	b.err = &Error{Diagnostic: d, err: sentinel}
	b.logger.Error("Skeleton build failed", "code", code, "location", loc.String(), "message", d.Message)
	return b.err
}

// checkOpen rejects part-list events once the builder failed or the list was closed at loc
func (b *Builder) checkOpen(loc musicxml.Location) error {
	if b.err != nil {
		return b.err
	}
	if b.listClosed {
		return b.fail(SeverityFatal, ErrPartListClosed, CodePartListClosed, loc, nil,
			"part-list content after the part list was closed")
	}
	return nil
}

// ensureImplicit synthesizes the implicit outer-most group before the first
// group or part of the document, and pushes it on the stack right away
func (b *Builder) ensureImplicit(loc musicxml.Location) {
	if b.implicit != nil {
		return
	}

	d := &descriptor{
		number:   0,
		creation: len(b.tables.all),
		implicit: true,
		start:    b.position,
		stop:     unknownPosition,
		startLoc: loc,
		startSeq: b.nextSeq(),
	}
	d.node = b.tree.AddPartGroup(score.PartGroup{
		Implicit:      true,
		CreationOrder: d.creation,
		StartPosition: d.start,
		StopPosition:  unknownPosition,
		StartLine:     loc.Line,
	})

	b.tables.register(d)
	b.tables.ensure(d.start)
	b.tables.push(d)
	b.implicit = d

	b.logger.Debug("Synthesized implicit outer-most group", "position", d.start)
}

// StartPartGroup handles a part-group start marker
func (b *Builder) StartPartGroup(number int, loc musicxml.Location, attrs musicxml.GroupAttrs) error {
	if err := b.checkOpen(loc); err != nil {
		return err
	}
	b.ensureImplicit(loc)

	if open, ok := b.tables.isOpen(number); ok {
		return b.fail(SeverityFatal, ErrGroupAlreadyOpen, CodeGroupAlreadyOpen, loc,
			[]string{open.String()},
			"part group %d is started again while still open since line %d", number, open.startLoc.Line)
	}

	d := &descriptor{
		number:   number,
		creation: len(b.tables.all),
		start:    b.position,
		stop:     unknownPosition,
		startLoc: loc,
		startSeq: b.nextSeq(),
	}

	symbol, ok := score.ParseGroupSymbol(attrs.Symbol)
	if !ok && attrs.Symbol != "" {
		b.warn(CodeUnknownGroupSymbol, loc, nil, "part group %d has unknown symbol %q", number, attrs.Symbol)
	}
	barline, ok := score.ParseGroupBarline(attrs.Barline)
	if !ok && attrs.Barline != "" {
		b.warn(CodeUnknownGroupBarline, loc, nil, "part group %d has unknown barline %q", number, attrs.Barline)
	}

	d.node = b.tree.AddPartGroup(score.PartGroup{
		Number:        number,
		Name:          attrs.Name,
		NameDisplay:   attrs.NameDisplay,
		Abbreviation:  attrs.Abbreviation,
		Symbol:        symbol,
		Barline:       barline,
		GroupTime:     attrs.GroupTime,
		CreationOrder: d.creation,
		StartPosition: d.start,
		StopPosition:  unknownPosition,
		StartLine:     loc.Line,
	})

	b.tables.register(d)
	b.tables.open[number] = d

	b.logger.Debug("Part group started", "number", number, "creation", d.creation, "position", d.start)
	return nil
}

// StopPartGroup handles a part-group stop marker
func (b *Builder) StopPartGroup(number int, loc musicxml.Location) error {
	if err := b.checkOpen(loc); err != nil {
		return err
	}

	d, ok := b.tables.isOpen(number)
	if !ok {
		b.warn(CodeUnopenedGroupStop, loc, []string{fmt.Sprintf("group %d", number)},
			"part group %d is stopped but not open, marker ignored", number)
		return nil
	}

	b.close(d, b.position, loc)
	delete(b.tables.open, number)

	if d.empty() {
		d.container = b.innermostOpen()
		b.tables.addEmpty(d)
		b.warn(CodeEmptyPartGroup, loc, []string{d.String()},
			"part group %d contains no part", number)
	}

	b.logger.Debug("Part group stopped", "number", number, "creation", d.creation, "start", d.start, "stop", d.stop)
	return nil
}

// close fixes the stop of d and files it in the position tables
func (b *Builder) close(d *descriptor, stop int, loc musicxml.Location) {
	d.stop = stop
	d.stopLoc = loc
	d.stopSeq = b.nextSeq()

	g := b.tree.Group(d.node)
	g.StopPosition = stop
	g.StopLine = loc.Line

	b.tables.insertStarting(d)
	b.tables.insertStopping(d)
}

// innermostOpen returns the most recently started group that is still open
func (b *Builder) innermostOpen() *descriptor {
	best := b.implicit
	for _, d := range b.tables.open {
		if d.startSeq > best.startSeq {
			best = d
		}
	}
	return best
}

// RegisterPart handles a score-part declaration and gives the part the next position
func (b *Builder) RegisterPart(id string, loc musicxml.Location, attrs musicxml.PartAttrs) (PartHandle, error) {
	if err := b.checkOpen(loc); err != nil {
		return PartHandle{}, err
	}
	b.ensureImplicit(loc)

	if strings.TrimSpace(id) == "" {
		return PartHandle{}, b.fail(SeverityFatal, ErrEmptyPartID, CodeEmptyPartID, loc,
			[]string{fmt.Sprintf("position %d", b.position)},
			"score-part at position %d has an empty id", b.position)
	}

	if existing, ok := b.partsByID[id]; ok {
		b.warn(CodeDuplicatePartID, loc, []string{id, fmt.Sprintf("position %d", existing.Position)},
			"part %q is declared again, keeping the declaration at position %d", id, existing.Position)
		return existing, nil
	}

	if numericID.MatchString(id) {
		b.warn(CodeNumericPartID, loc, []string{id}, "part id %q is purely numeric", id)
	}

	handle := PartHandle{ID: id, Position: b.position}
	handle.Node = b.tree.AddPart(score.Part{
		ID:              id,
		Name:            attrs.Name,
		Abbreviation:    attrs.Abbreviation,
		InstrumentNames: attrs.InstrumentNames,
		Position:        b.position,
		Line:            loc.Line,
	})

	b.parts = append(b.parts, handle.Node)
	b.partsByID[id] = handle
	b.position++
	b.tables.ensure(b.position)

	b.logger.Debug("Part registered", "id", id, "position", handle.Position)
	return handle, nil
}

// EndPartList closes the part list and runs the nesting pass
func (b *Builder) EndPartList(loc musicxml.Location) error {
	if err := b.checkOpen(loc); err != nil {
		return err
	}
	b.listClosed = true

	b.ensureImplicit(loc)
	if len(b.parts) == 0 {
		b.warn(CodeEmptyPartList, loc, nil, "part list declares no part")
	}

	if unclosed := b.tables.unclosed(); len(unclosed) > 0 {
		subjects := make([]string, 0, len(unclosed))
		numbers := make([]string, 0, len(unclosed))
		for _, d := range unclosed {
			subjects = append(subjects, d.String())
			numbers = append(numbers, fmt.Sprint(d.number))
		}
		return b.fail(SeverityFatal, ErrUnclosedGroup, CodeUnclosedGroup, loc, subjects,
			"part list ends with part groups still open: %s", strings.Join(numbers, ", "))
	}

	b.close(b.implicit, b.position, loc)

	b.logger.Debug("Part list scanned", "parts", len(b.parts), "groups", len(b.tables.all))
	return b.nest()
}
