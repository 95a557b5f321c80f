package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/fatih/color"
	"github.com/tildaslashalef/partnest/internal/database"
	"github.com/tildaslashalef/partnest/internal/utils"
	"github.com/urfave/cli/v2"
)

// MigrateCommand returns the CLI command for database migrations
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "Manage the run database schema",
		Hidden: true,
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: func(c *cli.Context) error {
					utils.PrintInfo("Applying embedded migrations")

					migrationsApplied, err := database.RunMigrations()
					if err != nil {
						utils.PrintError(fmt.Sprintf("Failed to apply migrations: %s", err))
						return fmt.Errorf("failed to apply migrations: %w", err)
					}

					if migrationsApplied > 0 {
						utils.PrintSuccess(fmt.Sprintf("Applied %d migration(s) successfully!", migrationsApplied))
					} else {
						utils.PrintSuccess("Database schema is already up-to-date")
					}
					return nil
				},
			},
			{
				Name:  "down",
				Usage: "Revert the last migration",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "steps",
						Usage: "Number of migrations to revert",
						Value: 1,
					},
				},
				Action: func(c *cli.Context) error {
					steps := c.Int("steps")
					if steps < 1 {
						return fmt.Errorf("steps must be at least 1, got %d", steps)
					}

					utils.PrintWarning(fmt.Sprintf("Reverting %d embedded migration(s)", steps))
					utils.PrintWarning("Reverting the runs migration deletes every stored run")

					if err := database.RevertMigrations(steps); err != nil {
						utils.PrintError(fmt.Sprintf("Failed to revert migrations: %s", err))
						return fmt.Errorf("failed to revert migrations: %w", err)
					}

					utils.PrintSuccess("Migration(s) reverted successfully!")
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "Show the applied schema version",
				Action: func(c *cli.Context) error {
					version, dirty, err := database.MigrationVersion()
					if err != nil {
						utils.PrintError(fmt.Sprintf("Failed to read schema version: %s", err))
						return err
					}

					if version == 0 {
						utils.PrintWarning("No migration applied yet, run " + color.CyanString("partnest init"))
						return nil
					}
					utils.PrintKeyValue("Schema version", strconv.FormatUint(uint64(version), 10))
					if dirty {
						utils.PrintKeyValueWithColor("State", "dirty", utils.Theme.Error)
					} else {
						utils.PrintKeyValueWithColor("State", "clean", utils.Theme.Success)
					}
					return nil
				},
			},
			{
				Name:      "create",
				Usage:     "Scaffold a new pair of migration files (development only)",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Directory holding the SQL migrations",
						Value: filepath.Join("internal", "migrations", "sql"),
					},
				},
				Action: migrateCreateAction,
			},
		},
	}
}

func migrateCreateAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowSubcommandHelp(c)
	}
	name := utils.SanitizeName(c.Args().First())
	dir := c.String("dir")

	version, err := nextMigrationVersion(dir)
	if err != nil {
		utils.PrintError(fmt.Sprintf("Failed to scan %s: %s", dir, err))
		return err
	}

	files := map[string]string{
		"up":   "-- " + name + "\n",
		"down": "-- revert " + name + "\n",
	}
	for _, direction := range []string{"up", "down"} {
		path := filepath.Join(dir, fmt.Sprintf("%06d_%s.%s.sql", version, name, direction))
		if err := os.WriteFile(path, []byte(files[direction]), 0644); err != nil {
			utils.PrintError(fmt.Sprintf("Failed to write %s: %s", path, err))
			return fmt.Errorf("failed to write migration: %w", err)
		}
		utils.PrintSuccess("Created " + color.YellowString("%s", path))
	}

	utils.PrintWarning("Migrations are embedded at build time, rebuild partnest to apply it")
	return nil
}

var migrationFile = regexp.MustCompile(`^(\d+)_.+\.up\.sql$`)

// nextMigrationVersion returns one past the highest version found in dir
func nextMigrationVersion(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	highest := 0
	for _, entry := range entries {
		m := migrationFile.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		if v, err := strconv.Atoi(m[1]); err == nil && v > highest {
			highest = v
		}
	}
	return highest + 1, nil
}
