package commands

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/decbridge/internal/app"
	"github.com/tildaslashalef/decbridge/internal/utils"
)

// SyncCommand returns the CLI command running a full synchronization pass
func SyncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Synchronize collections and items from the DecSync storage",
		Action: func(c *cli.Context) error {
			application, err := app.FromContext(c)
			if err != nil {
				return err
			}

			if application.Config.DecSync.Directory == "" {
				utils.PrintWarning("No storage directory configured; nothing to synchronize")
				return nil
			}

			utils.PrintInfo("Starting synchronization")

			if err := application.PIM.FullSync(c.Context, application.Bridge); err != nil {
				utils.PrintError(fmt.Sprintf("Synchronization failed: %s", err))
				return err
			}

			collections, err := application.PIM.Repository().ListCollections(c.Context)
			if err != nil {
				return fmt.Errorf("listing synchronized collections: %w", err)
			}

			rows := make([][]string, 0, len(collections))
			for _, coll := range collections {
				if coll.Folder {
					continue
				}
				items, err := application.PIM.Repository().ListItems(c.Context, coll.RemoteID)
				if err != nil {
					return fmt.Errorf("listing items of %s: %w", coll.RemoteID, err)
				}
				rows = append(rows, []string{
					coll.RemoteID,
					utils.TruncateString(coll.Name, 40),
					fmt.Sprintf("%d", len(items)),
				})
			}

			utils.PrintTable("Synchronized Collections", []string{"ID", "Name", "Items"}, rows)
			utils.PrintSuccess("Synchronization complete")
			return nil
		},
	}
}
