package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/decbridge/internal/app"
	"github.com/tildaslashalef/decbridge/internal/utils"
)

// ConfigCommand returns the CLI commands for inspecting and updating settings
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect and update bridge settings",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Action: func(c *cli.Context) error {
					application, err := app.FromContext(c)
					if err != nil {
						return err
					}
					cfg := application.Config

					dir := cfg.DecSync.Directory
					if dir == "" {
						dir = "(not set)"
					}

					utils.PrintHeading("decbridge configuration")
					utils.PrintKeyValue("Storage directory", dir)
					utils.PrintKeyValue("Instance name", cfg.DecSync.InstanceName)
					utils.PrintKeyValue("App ID", application.Engine.AppID())
					utils.PrintKeyValue("Database", cfg.Database.Path)
					utils.PrintKeyValue("Log output", cfg.Logging.Output)
					utils.PrintKeyValue("Log level", cfg.Logging.Level)
					return nil
				},
			},
			{
				Name:      "set-dir",
				Usage:     "Set the DecSync storage directory",
				ArgsUsage: "<path>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("expected exactly one directory path")
					}
					dir := c.Args().First()

					application, err := app.FromContext(c)
					if err != nil {
						return err
					}

					if err := application.Settings.SetDirectory(c.Context, dir); err != nil {
						return fmt.Errorf("updating storage directory: %w", err)
					}

					utils.PrintSuccess("Storage directory set to " + color.YellowString("%s", dir))

					// The new location takes effect immediately; refresh the
					// stored hierarchy against it.
					if err := application.PIM.FullSync(c.Context, application.Bridge); err != nil {
						utils.PrintWarning(fmt.Sprintf("Initial synchronization failed: %s", err))
						return nil
					}
					utils.PrintSuccess("Initial synchronization complete")
					return nil
				},
			},
		},
	}
}
