package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/partnest/internal/app"
	"github.com/tildaslashalef/partnest/internal/config"
	"github.com/tildaslashalef/partnest/internal/report"
	"github.com/tildaslashalef/partnest/internal/runs"
	"github.com/tildaslashalef/partnest/internal/utils"
)

// RunsCommand returns the CLI command for stored skeleton runs
func RunsCommand() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List, show and delete stored skeleton runs",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List stored runs, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "page",
						Aliases: []string{"p"},
						Usage:   "Page number",
						Value:   1,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Runs per page (max 100)",
						Value: 10,
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Only list runs of this MusicXML file",
					},
				},
				Action: runsListAction,
			},
			{
				Name:      "show",
				Usage:     "Show the tree and diagnostics of a stored run",
				ArgsUsage: "RUN_ID",
				Flags: []cli.Flag{
					formatFlag(),
					&cli.IntFlag{
						Name:  "wrap",
						Usage: "Wrap width of diagnostic messages",
					},
					&cli.BoolFlag{
						Name:  "positions",
						Usage: "Show part positions and group ranges",
					},
				},
				Action: runsShowAction,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a stored run",
				ArgsUsage: "RUN_ID",
				Action:    runsDeleteAction,
			},
		},
	}
}

func runsListAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	var (
		list       []*runs.Run
		page       = 1
		totalPages = 1
	)

	if source := c.String("source"); source != "" {
		list, err = application.Runs.FindBySource(c.Context, source)
		if err != nil {
			return fmt.Errorf("failed to find runs: %w", err)
		}
	} else {
		params := runs.NewPaginationParams(c.Int("page"), c.Int("limit"))
		var total int
		list, total, err = application.Runs.List(c.Context, params)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		page = params.Page
		totalPages = max((total+params.Limit-1)/params.Limit, 1)
	}

	if len(list) == 0 {
		utils.PrintInfo("No runs stored yet. Use " + color.CyanString("partnest skeleton --save FILE") + " to store one.")
		return nil
	}

	headers := []string{"ID", "Name", "Status", "Parts", "Groups", "Warnings", "Created"}
	rows := make([][]string, 0, len(list))
	for _, r := range list {
		rows = append(rows, []string{
			r.ID,
			r.Name,
			statusColor(r.Status)("%s", r.Status),
			strconv.Itoa(r.PartCount),
			strconv.Itoa(r.GroupCount),
			strconv.Itoa(r.WarningCount),
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}

	utils.PrintTable(headers, rows, utils.TableOptions{
		Title:      "Runs",
		Output:     os.Stdout,
		Page:       page,
		TotalPages: totalPages,
	})
	return nil
}

func runsShowAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowSubcommandHelp(c)
	}
	id := c.Args().First()

	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	output, err := resolveOutput(c, application.Config)
	if err != nil {
		return err
	}

	run, res, err := application.Runs.LoadResult(c.Context, id)
	if err != nil {
		if errors.Is(err, runs.ErrRunNotFound) {
			utils.PrintError("No run found with ID " + id)
		}
		return err
	}

	if output.Format == config.FormatJSON {
		return report.WriteJSON(os.Stdout, runJSON{Run: run, Skeleton: report.NewDocument(res)})
	}

	if output.Format == config.FormatText {
		utils.PrintHeading(run.Name)
		utils.PrintKeyValue("ID", run.ID)
		utils.PrintKeyValue("Source", run.SourcePath)
		utils.PrintKeyValue("Status", statusColor(run.Status)("%s", run.Status))
		utils.PrintKeyValue("Lenient", strconv.FormatBool(run.Lenient))
		utils.PrintKeyValue("Created", run.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		utils.PrintKeyValue("Duration", fmt.Sprintf("%d ms", run.DurationMS))
		if run.ErrorMessage != "" {
			utils.PrintKeyValueWithColor("Error", run.ErrorMessage, utils.Theme.Error)
		}
		utils.PrintDivider()
	}

	return renderResult(os.Stdout, res, run.Name, output)
}

func runsDeleteAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowSubcommandHelp(c)
	}
	id := c.Args().First()

	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if err := application.Runs.Delete(c.Context, id); err != nil {
		if errors.Is(err, runs.ErrRunNotFound) {
			utils.PrintError("No run found with ID " + id)
		}
		return err
	}

	utils.PrintSuccess("Deleted run " + id)
	return nil
}
