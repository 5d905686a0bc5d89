package main

import (
	"context"

	"github.com/spf13/cobra"

	syncsvc "github.com/TheMichaelB/savesync/internal/services/sync"
)

var backupCmd = &cobra.Command{
	Use:   "backup <slot>",
	Short: "Upload a slot's local save to the cloud",
	Long: `Backup copies the local save in the given slot to the cloud, replacing
the cloud copy. If the cloud copy is newer than the local one the backup
is refused unless --overwrite-newer is given.`,
	Example: `  savesync backup 2
  savesync backup 2 --overwrite-newer`,
	Args: cobra.ExactArgs(1),
	RunE: runBackup,
}

var backupOverwrite bool

func init() {
	rootCmd.AddCommand(backupCmd)

	backupCmd.Flags().BoolVar(&backupOverwrite, "overwrite-newer", false,
		"Overwrite a newer cloud copy")
}

func runBackup(cmd *cobra.Command, args []string) error {
	slot, err := parseSlotArg(args[0])
	if err != nil {
		return err
	}

	err = appClient.Sync.Backup(context.Background(), slot,
		syncsvc.BackupOptions{OverwriteNewer: backupOverwrite})
	if err != nil {
		return err
	}

	printSuccess("Slot %d backed up", slot)
	return nil
}
