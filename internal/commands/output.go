package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/partnest/internal/config"
	"github.com/tildaslashalef/partnest/internal/report"
	"github.com/tildaslashalef/partnest/internal/runs"
	"github.com/tildaslashalef/partnest/internal/skeleton"
)

// Exit codes of the skeleton command
const (
	exitFatal           = 1
	exitWarningsAsError = 2
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: text, markdown or json (default from PARTNEST_OUTPUT_FORMAT)",
	}
}

// outputOptions resolves the output settings of a command from its flags and the configuration
type outputOptions struct {
	Format        string
	WrapWidth     int
	ShowPositions bool
}

func resolveOutput(c *cli.Context, cfg *config.Config) (outputOptions, error) {
	opts := outputOptions{
		Format:        cfg.Output.Format,
		WrapWidth:     cfg.Output.WrapWidth,
		ShowPositions: cfg.Output.ShowPositions,
	}
	if c.IsSet("format") {
		opts.Format = strings.ToLower(strings.TrimSpace(c.String("format")))
	}
	if c.IsSet("wrap") {
		opts.WrapWidth = c.Int("wrap")
	}
	if c.IsSet("positions") {
		opts.ShowPositions = c.Bool("positions")
	}
	if !config.ValidFormat(opts.Format) {
		return opts, fmt.Errorf("invalid format %q: must be one of %s, %s, %s",
			opts.Format, config.FormatText, config.FormatMarkdown, config.FormatJSON)
	}
	return opts, nil
}

// renderResult writes res in the requested format. title names the score in
// markdown output.
func renderResult(w io.Writer, res *skeleton.Result, title string, opts outputOptions) error {
	switch opts.Format {
	case config.FormatJSON:
		return report.JSON(w, res)
	case config.FormatMarkdown:
		md := report.Markdown(res, report.MarkdownOptions{Title: title, ShowPositions: opts.ShowPositions})
		// Raw markdown when piped
		if color.NoColor {
			_, err := io.WriteString(w, md)
			return err
		}
		out, err := report.RenderMarkdown(md, opts.WrapWidth)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		return report.Text(w, res, report.TextOptions{
			WrapWidth:     opts.WrapWidth,
			ShowPositions: opts.ShowPositions,
			Color:         !color.NoColor,
		})
	}
}

// runJSON is the JSON form of a stored run
type runJSON struct {
	Run      *runs.Run        `json:"run"`
	Skeleton *report.Document `json:"skeleton"`
}

func statusColor(status runs.Status) func(format string, a ...interface{}) string {
	if status == runs.StatusSucceeded {
		return color.GreenString
	}
	return color.RedString
}

func scoreTitle(path string) string {
	return filepath.Base(path)
}
