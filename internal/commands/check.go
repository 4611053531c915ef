package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/decbridge/internal/app"
	"github.com/tildaslashalef/decbridge/internal/utils"
)

// CheckCommand returns the CLI command for verifying the storage location
func CheckCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Verify the DecSync storage location",
		Action: func(c *cli.Context) error {
			application, err := app.FromContext(c)
			if err != nil {
				return err
			}

			dir := application.Config.DecSync.Directory
			if dir == "" {
				utils.PrintWarning("No storage directory configured")
				utils.PrintInfo("Set one with " + color.CyanString("decbridge config set-dir <path>"))
				return nil
			}

			utils.PrintInfo("Checking storage location: " + color.YellowString("%s", dir))

			if err := application.Bridge.CheckStorage(); err != nil {
				status := application.PIM.CurrentStatus()
				utils.PrintError(fmt.Sprintf("Storage check failed: %s", status.Message))
				if status.TemporaryOffline {
					utils.PrintWarning(fmt.Sprintf("Bridge is offline; retry after %s", status.RetryAfter))
				}
				return fmt.Errorf("storage check failed: %w", err)
			}

			utils.PrintSuccess("Storage location is valid")
			return nil
		},
	}
}
