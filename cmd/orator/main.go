// Package main provides the CLI entrypoint for orator.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/orator/internal/config"
	"github.com/verte-zerg/orator/internal/game"
	"github.com/verte-zerg/orator/internal/logger"
	"github.com/verte-zerg/orator/internal/store"
)

var (
	configPath string
	dbDriver   string
	dbDSN      string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "orator",
		Short:         "Public speaking practice game",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "config file path")
	rootCmd.PersistentFlags().StringVar(&dbDriver, "db-driver", "", "database driver (sqlite or postgres)")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "db-dsn", "", "database path or connection string")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newPracticeCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newScoreCmd())
	rootCmd.AddCommand(newLevelsCmd())
	rootCmd.AddCommand(newLeaderboardCmd())
	rootCmd.AddCommand(newKeysCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// loadSettings resolves configuration with flags over environment over the
// config file over defaults.
func loadSettings(cmd *cobra.Command, overrides func(*config.FileConfig)) (config.Settings, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return config.Settings{}, err
	}
	fileCfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	fileCfg.ApplyEnv(os.LookupEnv)
	overrideString(cmd, "db-driver", dbDriver, &fileCfg.DB.Driver)
	overrideString(cmd, "db-dsn", dbDSN, &fileCfg.DB.DSN)
	if overrides != nil {
		overrides(&fileCfg)
	}
	settings, err := config.Resolve(fileCfg)
	if err != nil {
		return config.Settings{}, fmt.Errorf("invalid config: %w", err)
	}
	return settings, nil
}

func openStore(settings config.Settings) (*store.Store, error) {
	st, err := store.OpenDSN(settings.DBDriver, settings.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

// withService opens the configured store and runs fn against a game service.
func withService(cmd *cobra.Command, overrides func(*config.FileConfig), fn func(config.Settings, *store.Store, *game.Service) error) error {
	settings, err := loadSettings(cmd, overrides)
	if err != nil {
		return err
	}
	st, err := openStore(settings)
	if err != nil {
		return err
	}
	defer closeStore(st)
	return fn(settings, st, game.New(st, logger.Nop()))
}

func overrideString(cmd *cobra.Command, name, value string, target **string) {
	if !cmd.Flags().Changed(name) {
		return
	}
	*target = &value
}

func overrideInt(cmd *cobra.Command, name string, value int, target **int) {
	if !cmd.Flags().Changed(name) {
		return
	}
	*target = &value
}

func overrideBool(cmd *cobra.Command, name string, value bool, target **bool) {
	if !cmd.Flags().Changed(name) {
		return
	}
	*target = &value
}

func parseSince(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid --since value: %w", err)
	}
	return &parsed, nil
}

func requireKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("--key is required (or set key in the [practice] config section)")
	}
	return key, nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
