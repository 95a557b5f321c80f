package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/partnest/internal/app"
	"github.com/tildaslashalef/partnest/internal/config"
	"github.com/tildaslashalef/partnest/internal/utils"
)

// SettingsCommand returns the CLI command for database-backed settings
func SettingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Manage settings stored in the database",
		Description: "Stored settings override the environment configuration for the\n" +
			"skeleton.* and output.* keys. Use 'unset' to fall back to the environment.",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List every setting with its effective value",
				Action: settingsListAction,
			},
			{
				Name:      "get",
				Usage:     "Print the effective value of a setting",
				ArgsUsage: "KEY",
				Action:    settingsGetAction,
			},
			{
				Name:      "set",
				Usage:     "Store a setting",
				ArgsUsage: "KEY VALUE",
				Action:    settingsSetAction,
			},
			{
				Name:      "unset",
				Usage:     "Remove a stored setting",
				ArgsUsage: "KEY",
				Action:    settingsUnsetAction,
			},
			{
				Name:   "save",
				Usage:  "Store every current value, pinning the environment configuration",
				Action: settingsSaveAction,
			},
		},
	}
}

func settingsListAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	values, err := application.Settings.List(c.Context)
	if err != nil {
		return fmt.Errorf("failed to list settings: %w", err)
	}

	rows := make([][]string, 0, len(values))
	for _, v := range values {
		source := "env"
		if v.Stored {
			source = color.YellowString("database")
		}
		rows = append(rows, []string{v.Key, v.Value, source, v.Description})
	}

	utils.PrintTable([]string{"Key", "Value", "Source", "Description"}, rows, utils.TableOptions{
		Title:  "Settings",
		Output: os.Stdout,
	})
	return nil
}

func settingsGetAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowSubcommandHelp(c)
	}

	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	value, err := application.Settings.Get(c.Args().First())
	if err != nil {
		return unknownSetting(err)
	}
	fmt.Println(value)
	return nil
}

func settingsSetAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.ShowSubcommandHelp(c)
	}
	key, value := c.Args().Get(0), c.Args().Get(1)

	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if err := application.Settings.Set(c.Context, key, value); err != nil {
		return unknownSetting(err)
	}

	stored, _ := application.Settings.Get(key)
	utils.PrintSuccess(fmt.Sprintf("%s = %s", key, color.CyanString("%s", stored)))
	return nil
}

func settingsUnsetAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.ShowSubcommandHelp(c)
	}
	key := c.Args().First()

	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if err := application.Settings.Delete(c.Context, key); err != nil {
		return unknownSetting(err)
	}

	utils.PrintSuccess("Removed stored value of " + key)
	return nil
}

func settingsSaveAction(c *cli.Context) error {
	application, err := app.FromContext(c)
	if err != nil {
		return err
	}

	if err := application.Settings.SaveSkeletonSettings(c.Context); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	utils.PrintSuccess(fmt.Sprintf("Stored %d settings", len(config.SettingKeys())))
	return nil
}

func unknownSetting(err error) error {
	if errors.Is(err, config.ErrUnknownSetting) {
		utils.PrintError(err.Error())
		utils.PrintList(config.SettingKeys(), "")
	}
	return err
}
