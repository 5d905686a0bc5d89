package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/savesync/internal/models"
	syncsvc "github.com/TheMichaelB/savesync/internal/services/sync"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <slot>",
	Short: "Resolve a conflicted slot",
	Long: `Resolve collapses a slot whose local and cloud copies have diverged.

Policies:
  keep-local   upload the local copy over the cloud copy
  keep-cloud   download the cloud copy over the local copy
  keep-newest  keep whichever copy has the later timestamp
  manual       show both copies and prompt for a choice`,
	Example: `  savesync resolve 2 --policy keep-newest
  savesync resolve 2 --policy manual`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

var resolvePolicy string

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVar(&resolvePolicy, "policy", "manual",
		"Resolution policy (keep-local, keep-cloud, keep-newest, manual)")
}

func runResolve(cmd *cobra.Command, args []string) error {
	slot, err := parseSlotArg(args[0])
	if err != nil {
		return err
	}

	policy, err := parsePolicy(resolvePolicy)
	if err != nil {
		return err
	}
	ctx := context.Background()

	resolution, choice, err := appClient.Sync.Resolve(ctx, slot, policy)
	if errors.Is(err, models.ErrManualChoiceRequired) {
		picked, perr := promptManualChoice(choice)
		if perr != nil {
			return perr
		}
		resolution, _, err = appClient.Sync.Resolve(ctx, slot, picked)
	}
	if errors.Is(err, models.ErrAmbiguousResolution) {
		return fmt.Errorf("timestamps too close to pick a newest copy, use keep-local or keep-cloud")
	}
	if err != nil {
		return err
	}

	switch resolution.Winner {
	case models.DirectionBackup:
		printSuccess("Slot %d resolved: local copy kept", slot)
	case models.DirectionRestore:
		printSuccess("Slot %d resolved: cloud copy kept", slot)
	default:
		printSuccess("Slot %d already in sync", slot)
	}
	return nil
}

func parsePolicy(name string) (syncsvc.Policy, error) {
	switch name {
	case "keep-local":
		return syncsvc.PolicyKeepLocal, nil
	case "keep-cloud":
		return syncsvc.PolicyKeepCloud, nil
	case "keep-newest":
		return syncsvc.PolicyKeepNewest, nil
	case "manual":
		return syncsvc.PolicyManual, nil
	default:
		return "", fmt.Errorf("unknown policy %q", name)
	}
}

// promptManualChoice shows both candidates and asks which to keep.
func promptManualChoice(choice *syncsvc.PendingManualChoice) (syncsvc.Policy, error) {
	fmt.Printf("Slot %d has diverged:\n\n", choice.Slot)
	printCandidate("local", choice.Local)
	printCandidate("cloud", choice.Cloud)

	for {
		fmt.Print("Keep which copy? [local/cloud]: ")
		var answer string
		if _, err := fmt.Scanln(&answer); err != nil {
			return "", fmt.Errorf("read choice: %w", err)
		}
		switch answer {
		case "local", "l":
			return syncsvc.PolicyKeepLocal, nil
		case "cloud", "c":
			return syncsvc.PolicyKeepCloud, nil
		}
		printWarning("Please answer 'local' or 'cloud'.")
	}
}

func printCandidate(side string, meta *models.SlotMetadata) {
	fmt.Printf("  %s: %s, level %d, %s, played %s, saved %s\n",
		side, meta.Player.Name, meta.Player.Level, meta.Player.Area,
		formatPlayTime(meta.Player.PlayTimeSeconds),
		meta.LastModified.Format("2006-01-02 15:04:05"))
}
