package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/savesync/internal/models"
)

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "List save slots and their sync status",
	RunE:  runSlots,
}

var slotsJSON bool

func init() {
	rootCmd.AddCommand(slotsCmd)

	slotsCmd.Flags().BoolVar(&slotsJSON, "json", false,
		"Output as JSON")
}

func runSlots(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	slots, err := appClient.Sync.Slots(ctx)
	if err != nil {
		return err
	}

	if slotsJSON {
		printJSON(slots)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLOT\tSTATUS\tPLAYER\tLEVEL\tAREA\tPLAYED\tSIZE")
	for _, slot := range slots {
		meta := slot.Local
		if meta == nil {
			meta = slot.Cloud
		}

		if meta == nil {
			fmt.Fprintf(w, "%d\t%s\t-\t-\t-\t-\t-\n",
				slot.SlotNumber, statusLabel(slot))
			continue
		}

		name := meta.Player.Name
		if meta.Favorite {
			name = "* " + name
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			slot.SlotNumber, statusLabel(slot), name,
			meta.Player.Level, meta.Player.Area,
			formatPlayTime(meta.Player.PlayTimeSeconds),
			formatBytes(meta.SizeBytes))
	}
	w.Flush()

	usage, err := appClient.Quota.Usage(ctx)
	if err != nil {
		printWarning("Quota unavailable: %v", err)
		return nil
	}
	fmt.Println()
	numPrinter.Printf("Cloud storage: %s of %s used (%d bytes free)\n",
		formatBytes(usage.UsedBytes), formatBytes(usage.TotalBytes),
		usage.Remaining())

	return nil
}

func statusLabel(slot *models.SaveSlot) string {
	label := string(slot.Status)
	if slot.CloudStale {
		label += " (stale)"
	}

	switch slot.Status {
	case models.StatusSynced:
		return successColor.Sprint(label)
	case models.StatusConflict, models.StatusSyncFailed:
		return errorColor.Sprint(label)
	case models.StatusLocalNewer, models.StatusCloudNewer:
		return warnColor.Sprint(label)
	case models.StatusEmpty:
		return dimColor.Sprint(label)
	default:
		return label
	}
}
