package main

import (
	"github.com/spf13/cobra"
)

var favoriteCmd = &cobra.Command{
	Use:   "favorite <slot>",
	Short: "Mark or unmark a slot as a favorite",
	Long: `Favorite toggles the local favorite marker shown in 'savesync slots'.
The marker travels with the save metadata on the next backup.`,
	Example: `  savesync favorite 2
  savesync favorite 2 --unset`,
	Args: cobra.ExactArgs(1),
	RunE: runFavorite,
}

var favoriteUnset bool

func init() {
	rootCmd.AddCommand(favoriteCmd)

	favoriteCmd.Flags().BoolVar(&favoriteUnset, "unset", false,
		"Remove the favorite marker")
}

func runFavorite(cmd *cobra.Command, args []string) error {
	slot, err := parseSlotArg(args[0])
	if err != nil {
		return err
	}

	if err := appClient.Sync.SetFavorite(slot, !favoriteUnset); err != nil {
		return err
	}

	if favoriteUnset {
		printSuccess("Slot %d unmarked", slot)
	} else {
		printSuccess("Slot %d marked as favorite", slot)
	}
	return nil
}
