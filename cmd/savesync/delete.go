package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/savesync/internal/models"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <slot>",
	Short: "Delete a slot's cloud save",
	Long: `Delete removes the cloud copy of a slot. With --local the local copy
is removed as well. Deletion always asks for confirmation unless --yes
is given.`,
	Example: `  savesync delete 2
  savesync delete 2 --local --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

var (
	deleteLocal bool
	deleteYes   bool
)

func init() {
	rootCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().BoolVar(&deleteLocal, "local", false,
		"Also delete the local copy")
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false,
		"Skip the confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	slot, err := parseSlotArg(args[0])
	if err != nil {
		return err
	}

	if !deleteYes {
		target := "cloud save"
		if deleteLocal {
			target = "cloud AND local saves"
		}
		fmt.Printf("Delete the %s for slot %d? [y/N]: ", target, slot)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	err = appClient.Sync.DeleteCloudSave(context.Background(), slot, deleteLocal)

	var partial *models.PartialFailureError
	if errors.As(err, &partial) {
		printWarning("Cloud copy deleted, but the local delete failed: %v", partial.LocalErr)
		printWarning("Retry with: savesync delete %d --local", slot)
		return err
	}
	if err != nil {
		return err
	}

	printSuccess("Slot %d deleted", slot)
	return nil
}
