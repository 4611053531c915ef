package commands

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/decbridge/internal/app"
	"github.com/tildaslashalef/decbridge/internal/bridge"
	"github.com/tildaslashalef/decbridge/internal/pathmap"
	"github.com/tildaslashalef/decbridge/internal/utils"
)

// ItemsCommand returns the CLI commands for inspecting and mutating items
func ItemsCommand() *cli.Command {
	return &cli.Command{
		Name:  "items",
		Usage: "Inspect and change items in a collection",
		Subcommands: []*cli.Command{
			itemsListCommand(),
			itemsShowCommand(),
			itemsPutCommand(),
			itemsRemoveCommand(),
		},
	}
}

func itemsListCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List items of a collection",
		ArgsUsage: "<collection-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one collection id")
			}
			collectionID := c.Args().First()

			application, err := app.FromContext(c)
			if err != nil {
				return err
			}

			items, err := application.PIM.Repository().ListItems(c.Context, collectionID)
			if err != nil {
				return err
			}

			if len(items) == 0 {
				utils.PrintInfo("No items stored for " + collectionID)
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					item.RemoteID,
					item.MimeType,
					fmt.Sprintf("%d", len(item.Payload)),
				})
			}

			utils.PrintTable(collectionID, []string{"ID", "MIME Type", "Size"}, rows)
			return nil
		},
	}
}

func itemsShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Print one item's payload",
		ArgsUsage: "<collection-id> <item-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("expected collection id and item id")
			}

			application, err := app.FromContext(c)
			if err != nil {
				return err
			}

			item, err := application.PIM.Repository().GetItem(c.Context, c.Args().Get(0), c.Args().Get(1))
			if err != nil {
				return err
			}

			_, err = os.Stdout.Write(item.Payload)
			return err
		},
	}
}

func itemsPutCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "Create or update an item from a file and push it to the log",
		ArgsUsage: "<collection-id> <item-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "File holding the item payload",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "mime",
				Usage: "Payload MIME type (defaults to the collection type's primary MIME type)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("expected collection id and item id")
			}
			collectionID := c.Args().Get(0)
			itemID := c.Args().Get(1)

			application, err := app.FromContext(c)
			if err != nil {
				return err
			}

			payload, err := os.ReadFile(c.String("file"))
			if err != nil {
				return fmt.Errorf("reading payload file: %w", err)
			}

			mimeType := c.String("mime")
			if mimeType == "" {
				collType, _, err := pathmap.SplitCollectionID(collectionID)
				if err != nil {
					return err
				}
				mimeType = bridge.CollectionType(collType).PrimaryMimeType()
			}

			if err := application.PIM.AddLocalItem(c.Context, collectionID, itemID, mimeType, payload); err != nil {
				return err
			}

			if err := application.PIM.ReplayPendingChanges(c.Context, application.Bridge); err != nil {
				utils.PrintWarning(fmt.Sprintf("Item stored locally but not yet committed: %s", err))
				return nil
			}

			utils.PrintSuccess(fmt.Sprintf("Item %s written to %s", itemID, collectionID))
			return nil
		},
	}
}

func itemsRemoveCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Delete an item and push the deletion to the log",
		ArgsUsage: "<collection-id> <item-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("expected collection id and item id")
			}
			collectionID := c.Args().Get(0)
			itemID := c.Args().Get(1)

			application, err := app.FromContext(c)
			if err != nil {
				return err
			}

			if err := application.PIM.RemoveLocalItem(c.Context, collectionID, itemID); err != nil {
				return err
			}

			if err := application.PIM.ReplayPendingChanges(c.Context, application.Bridge); err != nil {
				utils.PrintWarning(fmt.Sprintf("Item removed locally but deletion not yet committed: %s", err))
				return nil
			}

			utils.PrintSuccess(fmt.Sprintf("Item %s removed from %s", itemID, collectionID))
			return nil
		},
	}
}
