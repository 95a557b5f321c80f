package skeleton

import (
	"fmt"

	"github.com/tildaslashalef/partnest/internal/musicxml"
)

// nest is the second pass. At every position p it attaches part p-1 to the
// innermost open group, closes the groups stopping at p innermost first, then
// opens the groups starting at p outermost first.
func (b *Builder) nest() error {
	t := b.tables
	last := b.position

	for p := 0; p <= last; p++ {
		if p > 0 {
			if err := b.attachPart(p - 1); err != nil {
				return err
			}
		}
		if err := b.closeGroupsAt(p); err != nil {
			return err
		}
		for _, d := range t.stack {
			b.attachEmpties(p, d)
		}
		if err := b.openGroupsAt(p); err != nil {
			return err
		}
		for _, e := range t.emptyAt[p] {
			if !e.attached {
				return b.fail(SeverityInternal, ErrNoEnclosingGroup, CodeUnattachedEmptyGroup, e.stopLoc,
					[]string{e.String(), e.container.String()},
					"empty part group %d found no open container at position %d", e.number, p)
			}
		}
	}

	if len(t.stack) > 0 {
		subjects := make([]string, 0, len(t.stack))
		for _, d := range t.stack {
			subjects = append(subjects, d.String())
		}
		return b.fail(SeverityFatal, ErrUnclosedGroup, CodeUnclosedGroup, t.top().startLoc, subjects,
			"%d part groups remain open after the last part", len(t.stack))
	}

	if err := b.tree.SetRoot(b.implicit.node); err != nil {
		return b.fail(SeverityInternal, ErrNoEnclosingGroup, CodeNoEnclosingGroup, b.implicit.startLoc, nil,
			"cannot root the tree: %v", err)
	}

	b.logger.Debug("Skeleton nested", "parts", len(b.parts), "groups", len(t.all))
	return nil
}

func (b *Builder) attachPart(pos int) error {
	node := b.parts[pos]
	top := b.tables.top()
	if top == nil {
		part := b.tree.Part(node)
		return b.fail(SeverityInternal, ErrNoEnclosingGroup, CodeNoEnclosingGroup,
			lineLocation(part.Line), []string{part.ID, fmt.Sprintf("position %d", pos)},
			"part %q at position %d has no enclosing part group", part.ID, pos)
	}
	if err := b.tree.AppendChild(top.node, node); err != nil {
		return b.fail(SeverityInternal, ErrNoEnclosingGroup, CodeNoEnclosingGroup, top.startLoc,
			[]string{top.String()}, "attaching part at position %d: %v", pos, err)
	}
	return nil
}

func (b *Builder) closeGroupsAt(p int) error {
	t := b.tables
	var prev *descriptor

	for _, d := range t.stoppingAt[p] {
		// the implicit group is on the stack even when it holds no part
		if d.empty() && !d.implicit {
			continue
		}
		if prev != nil && d.stopSeq < prev.stopSeq {
			if err := b.crossing(d, prev, d.stopLoc); err != nil {
				return err
			}
		}
		prev = d

		top := t.top()
		if top != d {
			subjects := []string{d.String()}
			other := "no open group"
			if top != nil {
				subjects = append(subjects, top.String())
				other = top.String()
			}
			return b.fail(SeverityFatal, ErrOverlappingGroups, CodeOverlappingGroups, d.stopLoc, subjects,
				"%s stops while %s is still open: the groups overlap without nesting", d, other)
		}

		b.attachEmpties(p, d)
		t.pop()
		if d.implicit {
			continue
		}

		parent := t.top()
		if parent == nil {
			return b.fail(SeverityInternal, ErrNoEnclosingGroup, CodeNoEnclosingGroup, d.stopLoc,
				[]string{d.String()}, "%s closes with no group left to hold it", d)
		}
		if err := b.tree.AppendChild(parent.node, d.node); err != nil {
			return b.fail(SeverityInternal, ErrNoEnclosingGroup, CodeNoEnclosingGroup, d.stopLoc,
				[]string{d.String(), parent.String()}, "nesting %s: %v", d, err)
		}
	}
	return nil
}

func (b *Builder) openGroupsAt(p int) error {
	t := b.tables
	var prev *descriptor

	for _, d := range t.startingAt[p] {
		// the implicit group is on the stack since the first event
		if d.implicit || d.empty() {
			continue
		}
		if prev != nil && d.creation < prev.creation {
			if err := b.crossing(prev, d, d.stopLoc); err != nil {
				return err
			}
		}
		prev = d

		t.push(d)
		b.attachEmpties(p, d)
	}
	return nil
}

// crossing handles two groups whose ranges nest but whose markers do not:
// inner was started before outer, or inner is stopped after outer
func (b *Builder) crossing(outer, inner *descriptor, loc musicxml.Location) error {
	subjects := []string{outer.String(), inner.String()}
	if b.opts.LenientCrossings {
		b.warn(CodeCrossingMarkers, loc, subjects,
			"markers of %s and %s cross, nesting by position range", outer, inner)
		return nil
	}
	return b.fail(SeverityFatal, ErrOverlappingGroups, CodeOverlappingGroups, loc, subjects,
		"%s and %s overlap: their start and stop markers cross", outer, inner)
}

// attachEmpties hangs the zero-width groups of position p whose container is c
func (b *Builder) attachEmpties(p int, c *descriptor) {
	for _, e := range b.tables.emptyAt[p] {
		if e.attached || e.container != c {
			continue
		}
		if err := b.tree.AppendChild(c.node, e.node); err != nil {
			continue
		}
		e.attached = true
		b.attachEmpties(p, e)
	}
}

func lineLocation(line int) musicxml.Location {
	return musicxml.Location{Line: line}
}
