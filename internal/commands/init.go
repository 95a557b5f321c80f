package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/tildaslashalef/partnest/internal/config"
	"github.com/tildaslashalef/partnest/internal/database"
	"github.com/tildaslashalef/partnest/internal/utils"
	"github.com/urfave/cli/v2"
)

// InitCommand returns the CLI command for initializing partnest
func InitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize or update the partnest environment",
		Description: "Sets up the configuration directory (~/.partnest), extracts a sample .env file " +
			"and creates or migrates the run database. Run it once after installing and again " +
			"after upgrading partnest.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-backup",
				Usage: "Overwrite an existing .env file without keeping a dated backup",
			},
		},
		Action: func(c *cli.Context) error {
			utils.PrintHeading("Initializing partnest")

			configDir, err := config.DefaultConfigDir()
			if err != nil {
				utils.PrintError(err.Error())
				return err
			}
			utils.PrintInfo("Configuration directory: " + color.YellowString("%s", configDir))

			utils.PrintInfo("Extracting default configuration file")
			configFilePath, err := config.SetupConfigDirectory(configDir, !c.Bool("no-backup"))
			if err != nil {
				utils.PrintError(fmt.Sprintf("Failed to set up configuration files: %s", err))
				return fmt.Errorf("failed to set up configuration files: %w", err)
			}

			cfg, err := config.LoadFromEnv(configDir, configFilePath, true)
			if err != nil {
				utils.PrintError(fmt.Sprintf("Failed to load configuration: %s", err))
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			utils.PrintInfo("Initializing database...")
			if err := database.InitDB(cfg); err != nil {
				utils.PrintError(fmt.Sprintf("Failed to initialize database: %s", err))
				return fmt.Errorf("failed to initialize database: %w", err)
			}

			utils.PrintInfo("Applying database migrations...")
			migrationsApplied, err := database.RunMigrations()
			if err != nil {
				utils.PrintError(fmt.Sprintf("Failed to apply migrations: %s", err))
				return fmt.Errorf("failed to apply migrations: %w", err)
			}

			utils.PrintSuccess("partnest initialized successfully!")

			if migrationsApplied > 0 {
				utils.PrintSuccess(fmt.Sprintf("Applied %d new migration(s)", migrationsApplied))
			} else {
				utils.PrintInfo("Database schema is already up-to-date")
			}

			utils.PrintInfo("Configuration file: " + color.YellowString("%s", configFilePath))
			utils.PrintInfo("Database location: " + color.YellowString("%s", cfg.Database.Path))
			utils.PrintInfo("Log file location: " + color.YellowString("%s", cfg.Logging.Output))
			fmt.Println("")
			utils.PrintInfo("You can now run " + color.CyanString("partnest skeleton FILE") + " on a MusicXML score.")

			return nil
		},
	}
}
