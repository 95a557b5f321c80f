package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/tildaslashalef/partnest/internal/score"
	"github.com/tildaslashalef/partnest/internal/skeleton"
)

// MarkdownOptions controls the markdown renderer
type MarkdownOptions struct {
	Title         string // document heading, "Score skeleton" when empty
	ShowPositions bool
}

// Markdown renders the skeleton as a markdown document with a nested bullet
// tree and a diagnostics table
func Markdown(res *skeleton.Result, opts MarkdownOptions) string {
	var b strings.Builder

	title := opts.Title
	if title == "" {
		title = "Score skeleton"
	}
	fmt.Fprintf(&b, "# %s\n\n", escapeMarkdown(title))

	if res == nil {
		b.WriteString("_No result._\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%s\n\n", Summary(res))

	b.WriteString("## Tree\n\n")
	if res.Tree == nil {
		b.WriteString("_No tree: the build stopped on a fatal error._\n")
	} else {
		writeMarkdownTree(&b, res.Tree, opts.ShowPositions)
	}

	if len(res.Diagnostics) > 0 {
		b.WriteString("\n## Diagnostics\n\n")
		b.WriteString("| Severity | Code | Line | Message |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, d := range res.Diagnostics {
			msg := escapeMarkdown(d.Message)
			if len(d.Subjects) > 0 {
				subjects := make([]string, len(d.Subjects))
				for i, s := range d.Subjects {
					subjects[i] = escapeMarkdown(s)
				}
				msg += "<br>" + strings.Join(subjects, "<br>")
			}
			fmt.Fprintf(&b, "| %s | `%s` | %s | %s |\n", severityMarkdown(d.Severity), d.Code, location(d), msg)
		}
	}

	return b.String()
}

func writeMarkdownTree(b *strings.Builder, tree *score.Tree, positions bool) {
	_ = tree.Walk(score.VisitorFuncs{
		OnEnter: func(g *score.PartGroup, depth int) error {
			fmt.Fprintf(b, "%s- **%s**", indent(depth), escapeMarkdown(g.Label()))
			if details := groupDetails(g, positions); len(details) > 0 {
				fmt.Fprintf(b, " _%s_", strings.Join(details, ", "))
			}
			b.WriteString("\n")
			return nil
		},
		OnPart: func(p *score.Part, depth int) error {
			fmt.Fprintf(b, "%s- `%s`", indent(depth), p.ID)
			if p.Name != "" {
				fmt.Fprintf(b, " %s", escapeMarkdown(p.Name))
			}
			if details := partDetails(p, positions); len(details) > 0 {
				fmt.Fprintf(b, " _%s_", strings.Join(details, ", "))
			}
			b.WriteString("\n")
			return nil
		},
	})
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}

func severityMarkdown(sev skeleton.Severity) string {
	if sev == skeleton.SeverityWarning {
		return sev.String()
	}
	return "**" + sev.String() + "**"
}

var markdownEscaper = strings.NewReplacer(
	"|", "\\|",
	"*", "\\*",
	"_", "\\_",
	"`", "\\`",
	"\n", " ",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// RenderMarkdown renders markdown for the terminal using glamour
func RenderMarkdown(md string, wrapWidth int) (string, error) {
	if wrapWidth <= 0 {
		wrapWidth = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}
