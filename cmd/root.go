package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/prepdeck/internal/app"
	"github.com/abhisek/prepdeck/internal/config"
	"github.com/abhisek/prepdeck/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:          "prepdeck",
	Short:        "Interview prep progress tracker",
	Long:         "prepdeck tracks interview preparation progress: points, streaks, achievements and spaced-repetition flashcards.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ./prepdeck.yaml or $XDG_CONFIG_HOME/prepdeck/prepdeck.yaml)")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides PREPDECK_DATABASE_PATH)")
	rootCmd.PersistentFlags().String("backend", "", "Persistence backend: sqlite, postgres, redis, mongo or memory")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(deckCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig merges defaults, config file, environment and flags, with
// flags taking precedence.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	loader := config.NewLoader()
	v := loader.Viper()
	flags := cmd.Flags()
	for key, name := range map[string]string{
		"database.path": "db",
		"backend":       "backend",
		"log.level":     "log-level",
		"server.addr":   "addr",
	} {
		if f := flags.Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return config.Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	path, _ := flags.GetString("config")
	cfg, err := loader.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// openApp builds the application from the command's configuration. The
// caller must Close it.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cmd.Context(), app.Options{Config: cfg, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("start app: %w", err)
	}
	return a, nil
}

// userFlag registers the --user flag on commands that act for one user.
func userFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("user", "u", os.Getenv("USER"), "User id")
}

func userID(cmd *cobra.Command) (string, error) {
	u, _ := cmd.Flags().GetString("user")
	if u == "" {
		return "", fmt.Errorf("--user is required")
	}
	return u, nil
}
