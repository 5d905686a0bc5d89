package main

import (
	"context"

	"github.com/spf13/cobra"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show cloud storage usage",
	RunE:  runQuota,
}

var quotaJSON bool

func init() {
	rootCmd.AddCommand(quotaCmd)

	quotaCmd.Flags().BoolVar(&quotaJSON, "json", false,
		"Output as JSON")
}

func runQuota(cmd *cobra.Command, args []string) error {
	usage, err := appClient.Quota.Usage(context.Background())
	if err != nil {
		return err
	}

	if quotaJSON {
		printJSON(map[string]int64{
			"used_bytes":      usage.UsedBytes,
			"total_bytes":     usage.TotalBytes,
			"remaining_bytes": usage.Remaining(),
		})
		return nil
	}

	numPrinter.Printf("Used:      %s (%d bytes)\n", formatBytes(usage.UsedBytes), usage.UsedBytes)
	numPrinter.Printf("Total:     %s (%d bytes)\n", formatBytes(usage.TotalBytes), usage.TotalBytes)
	numPrinter.Printf("Remaining: %s (%d bytes)\n", formatBytes(usage.Remaining()), usage.Remaining())

	if usage.TotalBytes > 0 {
		pct := float64(usage.UsedBytes) * 100 / float64(usage.TotalBytes)
		switch {
		case pct >= 90:
			printWarning("Storage %.0f%% full", pct)
		default:
			dimColor.Printf("Storage %.0f%% full\n", pct)
		}
	}
	return nil
}
