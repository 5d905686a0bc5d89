package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <slot> <file>",
	Short: "Export a slot's local save to a portable file",
	Long: `Export writes the local save in the given slot to a self-contained
file that can be imported on another machine with 'savesync import'.`,
	Example: `  savesync export 2 hero.sav`,
	Args:    cobra.ExactArgs(2),
	RunE:    runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file> <slot>",
	Short: "Import an exported save file into a local slot",
	Long: `Import validates an exported save file and installs it into the given
local slot, replacing any existing local save there. Corrupt or
tampered files are rejected without touching the slot.`,
	Example: `  savesync import hero.sav 3`,
	Args:    cobra.ExactArgs(2),
	RunE:    runImport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	slot, err := parseSlotArg(args[0])
	if err != nil {
		return err
	}
	path := args[1]

	blob, err := appClient.Sync.ExportSlot(slot)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, blob, 0644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}

	printSuccess("Slot %d exported to %s (%s)", slot, path, formatBytes(int64(len(blob))))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	slot, err := parseSlotArg(args[1])
	if err != nil {
		return err
	}

	blob, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}

	if err := appClient.Sync.ImportSlot(blob, slot); err != nil {
		return err
	}

	printSuccess("Imported %s into slot %d", path, slot)
	return nil
}
