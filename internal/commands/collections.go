package commands

import (
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/tildaslashalef/decbridge/internal/app"
	"github.com/tildaslashalef/decbridge/internal/utils"
)

// CollectionsCommand returns the CLI command listing stored collections
func CollectionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "collections",
		Usage: "List the stored collection hierarchy",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "folders",
				Usage: "Include synthetic type folders",
			},
		},
		Action: func(c *cli.Context) error {
			application, err := app.FromContext(c)
			if err != nil {
				return err
			}

			collections, err := application.PIM.Repository().ListCollections(c.Context)
			if err != nil {
				return err
			}

			if len(collections) == 0 {
				utils.PrintInfo("No collections stored; run " + "decbridge sync" + " first")
				return nil
			}

			rows := make([][]string, 0, len(collections))
			for _, coll := range collections {
				if coll.Folder && !c.Bool("folders") {
					continue
				}
				kind := "collection"
				if coll.Folder {
					kind = "folder"
				}
				rows = append(rows, []string{
					coll.RemoteID,
					utils.TruncateString(coll.Name, 40),
					kind,
					strings.Join(coll.MimeTypes, ", "),
				})
			}

			utils.PrintTable("Collections", []string{"ID", "Name", "Kind", "MIME Types"}, rows)
			return nil
		},
	}
}
