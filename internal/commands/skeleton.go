package commands

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/partnest/internal/app"
	"github.com/tildaslashalef/partnest/internal/config"
	"github.com/tildaslashalef/partnest/internal/loggy"
	"github.com/tildaslashalef/partnest/internal/runs"
	"github.com/tildaslashalef/partnest/internal/utils"
)

// SkeletonCommand returns the CLI command that builds the part-group skeleton of a score
func SkeletonCommand() *cli.Command {
	return &cli.Command{
		Name:      "skeleton",
		Aliases:   []string{"sk"},
		Usage:     "Build the part-group tree of a MusicXML score",
		ArgsUsage: "FILE",
		Description: "Reads a MusicXML file (.musicxml, .xml or compressed .mxl), builds the tree of\n" +
			"part groups and parts and prints it with the diagnostics found on the way.\n\n" +
			"The exit status is 1 when a fatal diagnostic stops the build, and 2 when\n" +
			"--warnings-as-errors is set and warnings were reported.",
		Flags:  SkeletonFlags(),
		Action: skeletonAction,
	}
}

// SkeletonFlags are shared by the skeleton command and the default action
func SkeletonFlags() []cli.Flag {
	return []cli.Flag{
		formatFlag(),
		&cli.BoolFlag{
			Name:    "lenient",
			Aliases: []string{"l"},
			Usage:   "Resolve crossing group markers by their ranges instead of failing",
		},
		&cli.BoolFlag{
			Name:    "save",
			Aliases: []string{"s"},
			Usage:   "Store the run in the database (default from PARTNEST_SKELETON_AUTO_SAVE)",
		},
		&cli.BoolFlag{
			Name:    "warnings-as-errors",
			Aliases: []string{"W"},
			Usage:   "Exit with a non-zero status when warnings are reported",
		},
		&cli.StringFlag{
			Name:    "name",
			Aliases: []string{"n"},
			Usage:   "Name of the stored run (generated when empty)",
		},
		&cli.IntFlag{
			Name:  "wrap",
			Usage: "Wrap width of diagnostic messages",
		},
		&cli.BoolFlag{
			Name:  "positions",
			Usage: "Show part positions and group ranges",
		},
	}
}

// skeletonOptions merges the skeleton flags over the configuration
func skeletonOptions(c *cli.Context, cfg *config.Config) (runs.AnalyzeOptions, bool) {
	opts := runs.AnalyzeOptions{
		Name:    c.String("name"),
		Lenient: cfg.Skeleton.LenientCrossings,
		Save:    cfg.Skeleton.AutoSave,
	}
	if c.IsSet("lenient") {
		opts.Lenient = c.Bool("lenient")
	}
	if c.IsSet("save") {
		opts.Save = c.Bool("save")
	}

	warningsAsErrors := cfg.Skeleton.WarningsAsErrors
	if c.IsSet("warnings-as-errors") {
		warningsAsErrors = c.Bool("warnings-as-errors")
	}
	return opts, warningsAsErrors
}

func skeletonAction(c *cli.Context) error {
	if c.NArg() != 1 {
		utils.PrintError("Expected exactly one MusicXML file")
		return cli.ShowSubcommandHelp(c)
	}
	path := c.Args().First()

	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	output, err := resolveOutput(c, application.Config)
	if err != nil {
		return err
	}
	opts, warningsAsErrors := skeletonOptions(c, application.Config)

	loggy.Debug("Building skeleton", "path", path, "lenient", opts.Lenient, "save", opts.Save)

	analysis, err := application.Runs.Analyze(c.Context, path, opts)
	if err != nil {
		if analysis == nil {
			return fmt.Errorf("failed to analyze %s: %w", path, err)
		}
		// The build itself is rendered below, only storing failed
		utils.PrintWarning(fmt.Sprintf("Could not save run: %s", err))
	}

	if err := renderResult(os.Stdout, analysis.Result, scoreTitle(path), output); err != nil {
		return err
	}

	if analysis.Saved && output.Format != config.FormatJSON {
		utils.PrintSuccess(fmt.Sprintf("Saved run %s %s", utils.Badge(analysis.Run.Name), analysis.Run.ID))
	}

	return exitStatus(analysis, warningsAsErrors)
}

// exitStatus turns the outcome of an analysis into the command's exit error
func exitStatus(analysis *runs.Analysis, warningsAsErrors bool) error {
	if analysis.BuildErr != nil {
		return cli.Exit(fmt.Sprintf("skeleton failed: %v", analysis.BuildErr), exitFatal)
	}
	if warningsAsErrors && analysis.Run.WarningCount > 0 {
		return cli.Exit(fmt.Sprintf("%d warning(s) treated as errors", analysis.Run.WarningCount), exitWarningsAsError)
	}
	return nil
}
