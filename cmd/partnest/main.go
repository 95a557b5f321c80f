package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/partnest/internal/app"
	"github.com/tildaslashalef/partnest/internal/commands"
)

// Version information - populated at build time
var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "unknown"
	Author     = "unknown"
	Email      = "unknown"
)

func main() {
	cliApp := &cli.App{
		Name:  "partnest",
		Usage: "Part-group skeletons for MusicXML scores",
		Description: "Partnest reads the part list of a MusicXML score and rebuilds the nesting of\n" +
			"its part groups and parts, reporting malformed group markers on the way.\n\n" +
			"When run with a FILE and no subcommand, partnest prints the skeleton of FILE\n" +
			"(same as 'partnest skeleton FILE'). Runs can be stored, listed and browsed.",
		Version: fmt.Sprintf("%s (%s)", Version, CommitHash),
		Compiled: func() time.Time {
			t, err := time.Parse(time.RFC3339, BuildTime)
			if err != nil {
				return time.Now()
			}
			return t
		}(),
		Authors: []*cli.Author{
			{
				Name:  Author,
				Email: Email,
			},
		},
		ArgsUsage: "[FILE]",
		Flags:     commands.SkeletonFlags(),
		Before: func(c *cli.Context) error {
			application, err := app.New(Version)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			application.Attach(c)
			return nil
		},
		After: func(c *cli.Context) error {
			if application, err := app.FromContext(c); err == nil {
				return application.Shutdown()
			}
			return nil
		},
		Commands: []*cli.Command{
			commands.SkeletonCommand(),
			commands.ViewCommand(),
			commands.RunsCommand(),
			commands.SettingsCommand(),
			commands.InitCommand(),
			commands.MigrateCommand(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.ShowAppHelp(c)
			}
			return commands.SkeletonCommand().Action(c)
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
