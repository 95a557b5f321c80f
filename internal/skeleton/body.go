package skeleton

import (
	"github.com/tildaslashalef/partnest/internal/musicxml"
)

// BeginPartBody starts collecting statistics for the music of part id
func (b *Builder) BeginPartBody(id string, loc musicxml.Location) {
	if b.err != nil {
		return
	}
	h, ok := b.partsByID[id]
	if !ok {
		b.body = nil
		b.warn(CodeUnknownPart, loc, []string{id}, "music for undeclared part %q is ignored", id)
		return
	}
	b.body = b.tree.Part(h.Node)
}

// StartMeasure counts a measure of the current part body
func (b *Builder) StartMeasure(number string) {
	if b.body == nil {
		return
	}
	if b.body.MeasureCount == 0 {
		b.body.FirstMeasure = number
	}
	b.body.MeasureCount++
	b.body.LastMeasure = number
}

// DeclareStaves records the staff count of the current part body
func (b *Builder) DeclareStaves(n int) {
	if b.body != nil && n > b.body.StaffCount {
		b.body.StaffCount = n
	}
}

// IndicateStaff records a staff number used by the current part body
func (b *Builder) IndicateStaff(n int) {
	if b.body != nil && n > b.body.StaffCount {
		b.body.StaffCount = n
	}
}

// IndicateVoice records a voice number used by the current part body
func (b *Builder) IndicateVoice(n int) {
	if b.body != nil {
		b.body.AddVoice(n)
	}
}

// EndPartBody stops collecting statistics
func (b *Builder) EndPartBody() {
	b.body = nil
}
