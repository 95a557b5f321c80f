package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/muesli/reflow/wordwrap"
	"github.com/tildaslashalef/partnest/internal/score"
	"github.com/tildaslashalef/partnest/internal/skeleton"
	"github.com/tildaslashalef/partnest/internal/utils"
)

// TextOptions controls the text renderer
type TextOptions struct {
	WrapWidth     int  // width diagnostic messages are wrapped to, 0 disables wrapping
	ShowPositions bool // print part positions and group ranges
	Color         bool // use terminal colors
}

// messageWidthRatio is the share of the wrap width given to the message column
const messageWidthRatio = 0.6

// Text writes the tree as an indented list followed by a diagnostics table
func Text(w io.Writer, res *skeleton.Result, opts TextOptions) error {
	if res == nil {
		return fmt.Errorf("nothing to render")
	}

	paint := func(c text.Colors, s string) string {
		if !opts.Color {
			return s
		}
		return c.Sprint(s)
	}

	fmt.Fprintln(w, paint(utils.Theme.Heading, "Score skeleton"))
	fmt.Fprintln(w, paint(utils.Theme.Subtle, Summary(res)))
	fmt.Fprintln(w)

	if res.Tree == nil {
		fmt.Fprintln(w, paint(utils.Theme.Error, "No tree: the build stopped on a fatal error"))
	} else {
		tree, err := textTree(res.Tree, opts, paint)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, tree)
	}

	if len(res.Diagnostics) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, diagnosticsTable(res.Diagnostics, opts, paint))
	return nil
}

func textTree(tree *score.Tree, opts TextOptions, paint func(text.Colors, string) string) (string, error) {
	l := utils.CreateList(nil)

	err := tree.Walk(score.VisitorFuncs{
		OnEnter: func(g *score.PartGroup, depth int) error {
			label := paint(utils.Theme.Important, g.Label())
			if details := groupDetails(g, opts.ShowPositions); len(details) > 0 {
				label += " " + paint(utils.Theme.Subtle, "("+strings.Join(details, ", ")+")")
			}
			l.AppendItem(label)
			l.Indent()
			return nil
		},
		OnLeave: func(g *score.PartGroup, depth int) error {
			l.UnIndent()
			return nil
		},
		OnPart: func(p *score.Part, depth int) error {
			label := paint(utils.Theme.Accent, p.Label())
			if details := partDetails(p, opts.ShowPositions); len(details) > 0 {
				label += " " + paint(utils.Theme.Subtle, "("+strings.Join(details, ", ")+")")
			}
			l.AppendItem(label)
			return nil
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to render tree: %w", err)
	}

	return l.Render(), nil
}

func diagnosticsTable(diags []skeleton.Diagnostic, opts TextOptions, paint func(text.Colors, string) string) string {
	t := table.NewWriter()
	t.SetTitle("Diagnostics")

	style := table.StyleLight
	if opts.Color {
		style = table.StyleDouble
		style.Color.Header = utils.Theme.TableHeader
		style.Color.Border = utils.Theme.TableBorder
		style.Title.Colors = utils.Theme.Title
	}
	style.Title.Align = text.AlignCenter
	t.SetStyle(style)

	t.AppendHeader(table.Row{"Severity", "Code", "Line", "Message"})

	width := 0
	if opts.WrapWidth > 0 {
		width = max(int(float64(opts.WrapWidth)*messageWidthRatio), 20)
	}

	for _, d := range diags {
		msg := d.Message
		for _, s := range d.Subjects {
			msg += "\n- " + s
		}
		if width > 0 {
			msg = wordwrap.String(msg, width)
		}
		t.AppendRow(table.Row{severityLabel(d.Severity, paint), d.Code, location(d), msg})
	}

	return t.Render()
}

func severityLabel(sev skeleton.Severity, paint func(text.Colors, string) string) string {
	switch sev {
	case skeleton.SeverityWarning:
		return paint(utils.Theme.Warning, sev.String())
	default:
		return paint(utils.Theme.Error, sev.String())
	}
}
