package main

import (
	"fmt"

	"albumzip/pkg/ui"

	"github.com/spf13/cobra"
)

var listItems bool

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <spreadsheet>",
	Short: "Validate a spreadsheet without starting the browser",
	Long: `Read and validate a spreadsheet the same way "run" does, then report how
many albums would be exported and which rows would be skipped.`,
	Example: `  albumzip check assets.xlsx
  albumzip check assets.csv --list`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	addInputFlags(checkCmd)
	checkCmd.Flags().BoolVarP(&listItems, "list", "l", false, "print every album that would be exported")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	inv, err := loadInventory(cfg, args[0])
	if err != nil {
		return err
	}

	if listItems {
		for item := range inv.Items() {
			ui.PrintInfo(fmt.Sprintf("row %d %s", item.Row, item.Identifier), item.AlbumURL)
		}
	}

	ui.PrintInfo("Albums", fmt.Sprint(inv.Len()))
	ui.PrintInfo("Skipped rows", fmt.Sprint(len(inv.Invalid)))
	ui.PrintSuccess("Spreadsheet is valid")
	return nil
}
