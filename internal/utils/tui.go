package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/list"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Palette is the set of colors every terminal printer in partnest draws from
type Palette struct {
	Success   text.Colors
	Info      text.Colors
	Warning   text.Colors
	Error     text.Colors
	Heading   text.Colors
	Subtle    text.Colors
	Important text.Colors // group labels
	Accent    text.Colors // part labels and bullets
	Badge     text.Colors

	Title       text.Colors
	Divider     text.Colors
	TableHeader text.Colors
	TableBorder text.Colors
	TableRow    text.Colors
	TableAltRow text.Colors
}

// Theme is a gruvbox-flavoured Palette on the basic ANSI colors
var Theme = Palette{
	Success:   text.Colors{text.FgGreen},
	Info:      text.Colors{text.FgBlue},
	Warning:   text.Colors{text.FgYellow},
	Error:     text.Colors{text.FgRed},
	Heading:   text.Colors{text.FgHiCyan, text.Bold},
	Subtle:    text.Colors{text.FgHiBlack},
	Important: text.Colors{text.FgHiMagenta, text.Bold},
	Accent:    text.Colors{text.FgCyan},
	Badge:     text.Colors{text.FgHiYellow, text.Bold},

	Title:       text.Colors{text.FgHiCyan, text.Bold},
	Divider:     text.Colors{text.FgHiBlack},
	TableHeader: text.Colors{text.FgHiBlue, text.Bold},
	TableBorder: text.Colors{text.FgBlue},
	TableRow:    text.Colors{text.FgWhite},
	TableAltRow: text.Colors{text.FgWhite, text.Faint},
}

var bold = text.Colors{text.Bold}

func printMarked(w io.Writer, mark string, colors text.Colors, message string) {
	fmt.Fprintln(w, colors.Sprint(mark+" ")+message)
}

func PrintHeading(title string) { fmt.Println(Theme.Heading.Sprint(title)) }

func PrintSuccess(message string) { printMarked(os.Stdout, "✓", Theme.Success, message) }

func PrintInfo(message string) { printMarked(os.Stdout, "ℹ", Theme.Info, message) }

func PrintWarning(message string) { printMarked(os.Stdout, "⚠", Theme.Warning, message) }

// PrintError writes to stderr so it survives piped output
func PrintError(message string) { printMarked(os.Stderr, "✗", Theme.Error, message) }

func PrintKeyValue(key, value string) {
	fmt.Printf("%s: %s\n", bold.Sprint(key), value)
}

func PrintKeyValueWithColor(key, value string, colors text.Colors) {
	PrintKeyValue(key, colors.Sprint(value))
}

func PrintDivider() {
	fmt.Println(Theme.Divider.Sprint(strings.Repeat("-", 51)))
}

// Badge pads message and highlights it, for names inside a sentence
func Badge(message string) string {
	return Theme.Badge.Sprint(" " + message + " ")
}

// TableOptions defines options for table creation
type TableOptions struct {
	Title  string
	Output io.Writer // defaults to stdout
	// Pagination display, rows are expected to be one page already
	Page       int
	TotalPages int
}

func tableStyle() table.Style {
	style := table.StyleDouble
	style.Color.Header = Theme.TableHeader
	style.Color.Border = Theme.TableBorder
	style.Color.Row = Theme.TableRow
	style.Color.RowAlternate = Theme.TableAltRow
	style.Title.Colors = Theme.Title
	style.Title.Align = text.AlignCenter
	style.Options.SeparateRows = false
	return style
}

// PrintTable renders headers and rows as a left-aligned table
func PrintTable(headers []string, rows [][]string, opts TableOptions) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle(opts.Title)
	t.SetStyle(tableStyle())

	t.AppendHeader(toRow(headers))
	for _, row := range rows {
		t.AppendRow(toRow(row))
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range headers {
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter}
	}
	t.SetColumnConfigs(configs)
	t.Render()

	if opts.TotalPages > 1 {
		fmt.Fprintln(out, Theme.Subtle.Sprintf("Page %d of %d", opts.Page, opts.TotalPages))
	}
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}

// FormatList formats items one per line behind bullet, "•" when empty
func FormatList(items []string, bullet string) string {
	if bullet == "" {
		bullet = "•"
	}
	mark := Theme.Accent.Sprint(bullet)

	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "%s %s\n", mark, item)
	}
	return b.String()
}

func PrintList(items []string, bullet string) {
	fmt.Print(FormatList(items, bullet))
}

// CreateList returns a tree list writer in the connected rounded style,
// mirrored to w when it is not nil
func CreateList(w io.Writer) list.Writer {
	l := list.NewWriter()
	l.SetStyle(list.StyleConnectedRounded)
	if w != nil {
		l.SetOutputMirror(w)
	}
	return l
}
