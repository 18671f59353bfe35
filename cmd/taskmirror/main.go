package main

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"taskmirror/engine"
	"taskmirror/internal/config"
	"taskmirror/internal/credentials"
	"taskmirror/internal/utils"
	"taskmirror/store"
)

// App wires the record store, credential gate and sync engine for one command
// invocation.
type App struct {
	cfg    *config.Config
	store  *store.SQLiteStore
	engine *engine.Engine
}

// newApp builds the application around the named account. An empty account
// name is allowed for commands that operate on all accounts (e.g. serve).
func newApp(accountName string) (*App, func(), error) {
	cfg := config.GetConfig()

	dbPath, err := cfg.GetDatabasePath()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open record store: %w", err)
	}

	if err := seedAccountStates(cfg, st); err != nil {
		_ = st.Close()
		return nil, nil, err
	}

	listTitle := ""
	if accountName != "" {
		if account, err := cfg.GetAccount(accountName); err == nil && account.ListTitle != "" {
			listTitle = account.ListTitle
		}
	}

	eng := engine.New(st, credentials.NewGate(cfg), engine.Config{
		Concurrency:        cfg.Sync.Concurrency,
		MaxRetries:         cfg.Sync.MaxRetries,
		BaseBackoff:        cfg.BaseBackoff(),
		CheckpointInterval: cfg.Sync.CheckpointInterval,
		SyncDeadline:       cfg.SyncDeadline(),
		ListTitle:          listTitle,
	}, utils.GetLogger())

	app := &App{cfg: cfg, store: st, engine: eng}
	cleanup := func() {
		_ = st.Close()
	}
	return app, cleanup, nil
}

// seedAccountStates makes sure every configured account has a persisted state
// row carrying its owner id before the engine touches it.
func seedAccountStates(cfg *config.Config, st *store.SQLiteStore) error {
	ctx := context.Background()
	for name, account := range cfg.Accounts {
		state, err := st.LoadAccountState(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to load state for account %q: %w", name, err)
		}
		if state.OwnerID == account.OwnerID && state.Enabled == account.Enabled {
			continue
		}
		state.OwnerID = account.OwnerID
		state.Enabled = account.Enabled
		if err := st.SaveAccountState(ctx, state); err != nil {
			return fmt.Errorf("failed to seed state for account %q: %w", name, err)
		}
	}
	return nil
}

// resolveAccount picks the target account: an explicit flag wins, a single
// configured account is implied, anything else needs disambiguation.
func resolveAccount(cfg *config.Config, flagValue string) (string, error) {
	if flagValue != "" {
		if _, err := cfg.GetAccount(flagValue); err != nil {
			return "", err
		}
		return flagValue, nil
	}
	if len(cfg.Accounts) == 1 {
		for name := range cfg.Accounts {
			return name, nil
		}
	}

	names := make([]string, 0, len(cfg.Accounts))
	for name := range cfg.Accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return "", fmt.Errorf("multiple accounts configured, pick one with --account (%s)",
		strings.Join(names, ", "))
}

func main() {
	var configPath string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "taskmirror",
		Short: "Mirror local tasks into a remote task-tracking service",
		Long: `taskmirror pushes local task records into a remote task-tracking
service through its rate-limited API, tracks what has been synced, and
pulls completion state back.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configPath != "" {
				config.SetCustomConfigPath(configPath)
			}
			utils.SetVerboseMode(verbose)
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newPullCmd())
	rootCmd.AddCommand(newDedupCmd())
	rootCmd.AddCommand(newResetCmd())
	rootCmd.AddCommand(newCredentialsCmd())
	rootCmd.AddCommand(newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
