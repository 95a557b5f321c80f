// Package report renders a built score skeleton as a text tree, a markdown
// document or JSON.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tildaslashalef/partnest/internal/score"
	"github.com/tildaslashalef/partnest/internal/skeleton"
)

// Summary returns a one line count of parts, groups and diagnostics
func Summary(res *skeleton.Result) string {
	if res == nil {
		return "no result"
	}
	return fmt.Sprintf("%s, %s, %s, %s",
		plural(res.PartCount, "part"),
		plural(res.GroupCount, "group"),
		plural(res.Warnings(), "warning"),
		plural(res.Fatals(), "fatal error"),
	)
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}

// groupDetails lists the symbol, bar-line and position range of a group
func groupDetails(g *score.PartGroup, positions bool) []string {
	var details []string
	if g.Symbol != "" && g.Symbol != score.SymbolNone {
		details = append(details, string(g.Symbol))
	}
	if g.Barline == score.BarlineNo || g.Barline == score.BarlineMensurstrich {
		details = append(details, "barline "+string(g.Barline))
	}
	if g.GroupTime {
		details = append(details, "group time")
	}
	if positions {
		details = append(details, rangeLabel(g.StartPosition, g.StopPosition))
	}
	return details
}

// partDetails lists the body statistics of a part
func partDetails(p *score.Part, positions bool) []string {
	var details []string
	if positions {
		details = append(details, "#"+strconv.Itoa(p.Position))
	}
	if p.MeasureCount > 0 {
		m := plural(p.MeasureCount, "measure")
		if p.FirstMeasure != "" && p.LastMeasure != "" && p.FirstMeasure != p.LastMeasure {
			m += " " + p.FirstMeasure + "-" + p.LastMeasure
		}
		details = append(details, m)
	}
	if p.StaffCount > 1 {
		details = append(details, strconv.Itoa(p.StaffCount)+" staves")
	}
	if len(p.Voices) > 0 {
		voices := make([]string, len(p.Voices))
		for i, v := range p.Voices {
			voices[i] = strconv.Itoa(v)
		}
		details = append(details, "voices "+strings.Join(voices, ","))
	}
	return details
}

// rangeLabel shows the half-open part range of a group
func rangeLabel(start, stop int) string {
	if stop < 0 {
		return fmt.Sprintf("parts %d..?", start)
	}
	if stop <= start {
		return fmt.Sprintf("empty at %d", start)
	}
	return fmt.Sprintf("parts %d..%d", start, stop-1)
}

func location(d skeleton.Diagnostic) string {
	if d.Location.Line == 0 {
		return "-"
	}
	return d.Location.String()
}
