package commands

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/partnest/internal/app"
	"github.com/tildaslashalef/partnest/internal/commands/view"
	"github.com/tildaslashalef/partnest/internal/loggy"
)

// ViewCommand returns the CLI command for the interactive skeleton viewer
func ViewCommand() *cli.Command {
	return &cli.Command{
		Name:      "view",
		Usage:     "Browse the skeleton of a score or a stored run interactively",
		ArgsUsage: "[FILE]",
		Description: "Opens a full-screen viewer on the part-group tree and diagnostics of FILE,\n" +
			"or of a stored run with --run. Press 'r' to re-read the file after editing it\n" +
			"and '?' for the other keys.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "run",
				Usage: "ID of a stored run to view instead of a file",
			},
			&cli.BoolFlag{
				Name:    "lenient",
				Aliases: []string{"l"},
				Usage:   "Resolve crossing group markers by their ranges instead of failing",
			},
			&cli.BoolFlag{
				Name:  "positions",
				Usage: "Show part positions and group ranges",
			},
		},
		Action: viewAction,
	}
}

func viewAction(c *cli.Context) error {
	runID := c.String("run")
	if (runID == "") == (c.NArg() != 1) {
		return cli.ShowSubcommandHelp(c)
	}

	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	var loader view.Loader
	if runID != "" {
		loader = view.RunLoader{Runs: application.Runs, ID: runID}
	} else {
		lenient := application.Config.Skeleton.LenientCrossings
		if c.IsSet("lenient") {
			lenient = c.Bool("lenient")
		}
		loader = view.FileLoader{Runs: application.Runs, Path: c.Args().First(), Lenient: lenient}
	}

	positions := application.Config.Output.ShowPositions
	if c.IsSet("positions") {
		positions = c.Bool("positions")
	}

	loggy.Info("Starting viewer", "run", runID, "file", c.Args().First())

	if err := view.Run(c.Context, loader, view.Options{ShowPositions: positions}); err != nil {
		return fmt.Errorf("error running viewer: %w", err)
	}
	return nil
}
