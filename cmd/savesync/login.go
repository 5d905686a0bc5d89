package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with the cloud save service",
	Long: `Login authenticates with the save service and stores the session
token for subsequent commands.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session",
	RunE:  runLogout,
}

var (
	loginEmail    string
	loginPassword string
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "",
		"Account email")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "",
		"Account password (will prompt if not provided)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	if appClient.Auth == nil {
		return fmt.Errorf("the %s backend does not use login", cfg.API.Backend)
	}

	if loginEmail == "" {
		fmt.Print("Email: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read email: %w", err)
		}
		loginEmail = strings.TrimSpace(line)
	}

	if loginPassword == "" {
		var err error
		loginPassword, err = promptPassword("Password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	if err := appClient.Auth.Login(context.Background(), loginEmail, loginPassword); err != nil {
		return err
	}

	printSuccess("Logged in as %s", loginEmail)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	if appClient.Auth == nil {
		return fmt.Errorf("the %s backend does not use login", cfg.API.Backend)
	}
	if err := appClient.Auth.Logout(); err != nil {
		return err
	}
	printSuccess("Logged out")
	return nil
}
