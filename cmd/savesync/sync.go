package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"

	"github.com/spf13/cobra"

	syncsvc "github.com/TheMichaelB/savesync/internal/services/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile all save slots with the cloud",
	Long: `Sync reconciles every slot that needs action: newer local saves are
backed up, newer cloud saves are restored, and conflicts are reported
for manual resolution.

By default the cached slot states are used. Use --full to re-query the
cloud for every slot first.`,
	Example: `  savesync sync
  savesync sync --full`,
	RunE: runSync,
}

var syncFull bool

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVarP(&syncFull, "full", "f", false,
		"Re-query every slot before reconciling")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		printWarning("\nSync interrupted, cancelling...")
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range appClient.Sync.Events() {
			renderEvent(event)
			if event.Phase == syncsvc.PhaseCompleted || event.Phase == syncsvc.PhaseCancelled {
				return
			}
		}
	}()

	var result *syncsvc.BatchResult
	var err error
	if syncFull {
		result, err = appClient.Sync.FullSync(ctx)
	} else {
		result, err = appClient.Sync.QuickSync(ctx)
	}
	if err != nil {
		// A refresh failure aborts before any terminal event is emitted, so
		// do not wait for the event consumer.
		return err
	}
	<-done

	printBatchSummary(result)
	if !result.Ok() {
		return fmt.Errorf("sync finished with %d failure(s)", len(result.Failures))
	}
	return nil
}

func renderEvent(event syncsvc.Event) {
	switch event.Phase {
	case syncsvc.PhaseStarted:
		fmt.Println(event.Message)
	case syncsvc.PhaseSlotStarted:
		dimColor.Printf("  slot %d: %s\n", event.Slot, event.Message)
	case syncsvc.PhaseSlotCompleted:
		successColor.Printf("  slot %d: done (%d%%)\n", event.Slot, event.Percent)
	case syncsvc.PhaseSlotSkipped:
		dimColor.Printf("  slot %d: skipped\n", event.Slot)
	case syncsvc.PhaseSlotConflict:
		warnColor.Printf("  slot %d: conflict, resolve manually\n", event.Slot)
	case syncsvc.PhaseSlotFailed:
		errorColor.Printf("  slot %d: %v\n", event.Slot, event.Err)
	case syncsvc.PhaseCancelled:
		printWarning("Cancelled")
	}
}

func printBatchSummary(result *syncsvc.BatchResult) {
	fmt.Printf("\nSynced %d of %d slot(s), %d skipped\n",
		len(result.Completed), result.Total, len(result.Skipped))

	if len(result.Conflicts) > 0 {
		warnColor.Printf("Conflicts: %v (run 'savesync resolve <slot>')\n", result.Conflicts)
	}
	if len(result.Failures) > 0 {
		failed := make([]int, 0, len(result.Failures))
		for slot := range result.Failures {
			failed = append(failed, slot)
		}
		sort.Ints(failed)
		for _, slot := range failed {
			printError("slot %d: %v", slot, result.Failures[slot])
		}
	}
}
