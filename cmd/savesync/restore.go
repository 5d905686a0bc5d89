package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	syncsvc "github.com/TheMichaelB/savesync/internal/services/sync"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <slot>",
	Short: "Download a slot's cloud save over the local copy",
	Long: `Restore copies the cloud save in the given slot into the local store,
replacing the local copy. If the local copy is newer than the cloud one
the restore is refused unless --overwrite-newer is given.`,
	Example: `  savesync restore 2
  savesync restore 2 --overwrite-newer`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

var restoreOverwrite bool

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().BoolVar(&restoreOverwrite, "overwrite-newer", false,
		"Overwrite a newer local copy")
}

func runRestore(cmd *cobra.Command, args []string) error {
	slot, err := parseSlotArg(args[0])
	if err != nil {
		return err
	}

	err = appClient.Sync.Restore(context.Background(), slot,
		syncsvc.RestoreOptions{OverwriteNewer: restoreOverwrite})
	if err != nil {
		return err
	}

	printSuccess("Slot %d restored", slot)
	return nil
}

// parseSlotArg parses a slot number argument. Range checking happens in the
// registry so the CLI and API agree on bounds.
func parseSlotArg(arg string) (int, error) {
	slot, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid slot number %q", arg)
	}
	return slot, nil
}
