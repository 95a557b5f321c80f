package skeleton

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/tildaslashalef/partnest/internal/loggy"
	"github.com/tildaslashalef/partnest/internal/musicxml"
	"github.com/tildaslashalef/partnest/internal/score"
)

// EventSource yields notation events in document order and io.EOF at the end
type EventSource interface {
	Next() (musicxml.Event, error)
}

type warningSource interface {
	Warnings() []musicxml.Warning
}

// Result is a finished skeleton
type Result struct {
	Tree        *score.Tree  `json:"-"`
	Diagnostics []Diagnostic `json:"diagnostics"`
	PartCount   int          `json:"part_count"`
	GroupCount  int          `json:"group_count"`
}

// Warnings returns the number of warning diagnostics
func (r *Result) Warnings() int {
	return Count(r.Diagnostics, SeverityWarning)
}

// Fatals returns the number of fatal and internal diagnostics
func (r *Result) Fatals() int {
	return Count(r.Diagnostics, SeverityFatal) + Count(r.Diagnostics, SeverityInternal)
}

// Finish closes the part list if needed and returns the finished skeleton
func (b *Builder) Finish() (*Result, error) {
	if b.err == nil && !b.listClosed {
		_ = b.EndPartList(musicxml.Location{})
	}
	b.body = nil
	if b.err != nil {
		return nil, b.err
	}

	b.finished = true
	return &Result{
		Tree:        b.tree,
		Diagnostics: b.Diagnostics(),
		PartCount:   len(b.parts),
		GroupCount:  len(b.tables.all),
	}, nil
}

// FinishedTree returns the tree once Finish succeeded
func (b *Builder) FinishedTree() (*score.Tree, error) {
	if b.err != nil {
		return nil, b.err
	}
	if !b.finished {
		return nil, ErrNotFinished
	}
	return b.tree, nil
}

// Build reads src to the end and builds its skeleton. On a fatal error the
// returned Result holds the diagnostics found so far and a nil Tree.
func Build(ctx context.Context, src EventSource, logger *loggy.Logger, opts Options) (*Result, error) {
	if logger == nil {
		logger = loggy.FromContext(ctx)
	}
	b := NewBuilder(logger, opts)

	err := b.consume(ctx, src)
	if err == nil {
		var res *Result
		res, err = b.Finish()
		if err == nil {
			res.Diagnostics = mergeReaderWarnings(res.Diagnostics, src)
			return res, nil
		}
	}

	return &Result{
		Diagnostics: mergeReaderWarnings(b.Diagnostics(), src),
		PartCount:   len(b.parts),
		GroupCount:  len(b.tables.all),
	}, err
}

func (b *Builder) consume(ctx context.Context, src EventSource) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read score: %w", err)
		}

		if err := b.dispatch(ev); err != nil {
			return err
		}
	}
}

func (b *Builder) dispatch(ev musicxml.Event) error {
	switch e := ev.(type) {
	case musicxml.PartListStart:
		// a second part list
		if b.listClosed {
			return b.checkOpen(e.Location)
		}
	case musicxml.PartGroupStart:
		return b.StartPartGroup(e.Number, e.Location, e.Attrs)
	case musicxml.PartGroupStop:
		return b.StopPartGroup(e.Number, e.Location)
	case musicxml.ScorePartDeclared:
		_, err := b.RegisterPart(e.ID, e.Location, e.Attrs)
		return err
	case musicxml.PartListEnd:
		if b.listClosed {
			return nil
		}
		return b.EndPartList(e.Location)
	case musicxml.PartBodyStart:
		if !b.listClosed {
			if err := b.EndPartList(e.Location); err != nil {
				return err
			}
		}
		b.BeginPartBody(e.ID, e.Location)
	case musicxml.PartBodyEnd:
		b.EndPartBody()
	case musicxml.MeasureStart:
		b.StartMeasure(e.Number)
	case musicxml.StavesDeclared:
		b.DeclareStaves(e.Count)
	case musicxml.StaffIndicated:
		b.IndicateStaff(e.Number)
	case musicxml.VoiceIndicated:
		b.IndicateVoice(e.Number)
	}
	return nil
}

// mergeReaderWarnings folds the source's own warnings into diags, in document order
func mergeReaderWarnings(diags []Diagnostic, src EventSource) []Diagnostic {
	ws, ok := src.(warningSource)
	if !ok || len(ws.Warnings()) == 0 {
		return diags
	}

	out := make([]Diagnostic, 0, len(diags)+len(ws.Warnings()))
	out = append(out, diags...)
	for _, w := range ws.Warnings() {
		out = append(out, Diagnostic{
			Severity: SeverityWarning,
			Code:     w.Code,
			Location: w.Location,
			Message:  w.Message,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Location, out[j].Location
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return out
}
