package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"taskmirror/internal/config"
	"taskmirror/internal/credentials"
)

// newCredentialsCmd creates the credentials command with its subcommands
func newCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage remote API tokens",
		Long: `Securely manage remote API tokens.

Tokens are resolved in priority order:
  1. System keyring (most secure) - recommended
  2. Environment variables (good for CI/CD):
       TASKMIRROR_<ACCOUNT>_TOKEN

Examples:
  # Store a token in the keyring (interactive prompt)
  taskmirror credentials set personal

  # Check which source a token comes from
  taskmirror credentials get personal

  # Remove a token from the keyring
  taskmirror credentials delete personal`,
	}

	cmd.AddCommand(newCredentialsSetCmd())
	cmd.AddCommand(newCredentialsGetCmd())
	cmd.AddCommand(newCredentialsDeleteCmd())

	return cmd
}

func newCredentialsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <account>",
		Short: "Store an API token in the system keyring",
		Long: `Store the remote API token for an account in the system keyring.
The token is read interactively so it never appears in shell history.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountName := args[0]
			if _, err := config.GetConfig().GetAccount(accountName); err != nil {
				return err
			}

			fmt.Printf("Enter API token for account %q: ", accountName)
			tokenBytes, err := term.ReadPassword(int(syscall.Stdin))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("failed to read token: %w", err)
			}
			token := string(tokenBytes)
			if token == "" {
				return fmt.Errorf("token cannot be empty")
			}

			if err := credentials.SetToken(accountName, token); err != nil {
				return fmt.Errorf("keyring unavailable, use the environment instead:\n  export %s=<token>\n(%v)",
					credentials.EnvTokenVar(accountName), err)
			}

			fmt.Printf("✓ Token stored for account %q\n", accountName)
			fmt.Printf("  Verify with: taskmirror status --account %s\n", accountName)
			return nil
		},
	}
}

func newCredentialsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <account>",
		Short: "Check which token source an account uses",
		Long: `Report where the account's API token is found (keyring or environment)
without printing the token itself.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountName := args[0]

			_, source, err := credentials.ResolveToken(accountName)
			if err != nil {
				fmt.Printf("✗ No token found for account %q\n", accountName)
				fmt.Println("\nStore one with:")
				fmt.Printf("  taskmirror credentials set %s\n", accountName)
				fmt.Println("or:")
				fmt.Printf("  export %s=<token>\n", credentials.EnvTokenVar(accountName))
				return err
			}

			fmt.Printf("✓ Token found for account %q\n", accountName)
			fmt.Printf("  Source: %s\n", source)
			if source == credentials.SourceEnv {
				fmt.Println("\n⚠ Consider the keyring for better security:")
				fmt.Printf("    taskmirror credentials set %s\n", accountName)
			}
			return nil
		},
	}
}

func newCredentialsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <account>",
		Short: "Remove an API token from the system keyring",
		Long: `Remove the stored API token from the system keyring. Tokens provided
through environment variables are not affected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountName := args[0]
			if err := credentials.DeleteToken(accountName); err != nil {
				return err
			}
			fmt.Printf("✓ Token removed for account %q\n", accountName)
			return nil
		},
	}
}
