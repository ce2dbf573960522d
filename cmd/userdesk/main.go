package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eion/userdesk/internal/config"
)

var (
	// Global flags
	configFile string
	verbose    bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "userdesk",
	Short: "userdesk - browse, search and edit users of a REST user collection",
	Long: `userdesk hosts a user list and a user form over a JSON REST user
collection.

  serve     run the JSON API hosting the list and the form
  upstream  run a local user collection backed by memory or PostgreSQL
  users     call the user collection directly`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			config.LoadWith(configFile)
		} else {
			config.Load()
		}

		var err error
		logger, err = initLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default $USERDESK_CONFIG_FILE or "+config.DefaultFile+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd, upstreamCmd, usersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
