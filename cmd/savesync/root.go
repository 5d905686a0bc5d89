package main

import (
	"context"
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/TheMichaelB/savesync/internal/client"
	"github.com/TheMichaelB/savesync/internal/config"
	"github.com/TheMichaelB/savesync/internal/events"
)

var rootCmd = &cobra.Command{
	Use:   "savesync",
	Short: "Synchronize game saves between local and cloud storage",
	Long: `Savesync keeps the game's save slots in sync between the local store
and the cloud save service: backup, restore, conflict resolution, and
quota reporting.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	configPath string
	logLevel   string

	cfg       *config.Config
	logger    *events.Logger
	appClient *client.Client
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")

	rootCmd.PersistentPreRunE = setup
}

// setup loads config and wires the client before any subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	var err error

	cfg, err = config.NewLoader(configPath).Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger, err = events.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	appClient, err = client.New(context.Background(), cfg, logger)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	return nil
}

// promptPassword reads a password without echo.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(password), nil
}
