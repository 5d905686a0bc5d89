package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow cloud save changes in real time",
	Long: `Watch subscribes to the save service's change feed and marks changed
slots stale so the next sync re-checks them. Runs until interrupted.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		cancel()
	}()

	fmt.Println("Watching for cloud save changes (Ctrl-C to stop)...")
	err := appClient.WatchCloud(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
