// Package main provides the memora CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"memora/internal/config"
	"memora/internal/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool
	roomID     string

	cfg *config.Config
)

// rootCmd represents the base command. Run without arguments it starts
// the interactive chat interface.
var rootCmd = &cobra.Command{
	Use:   "memora",
	Short: "memora - personal knowledge assistant",
	Long: `memora answers questions from your own notes, profile, and
conversation history, optionally pulling in external sources, and asks
a language model to compose the final answer.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		opts := logging.Options{
			DebugMode:  verbose || cfg.Logging.DebugMode,
			Level:      cfg.Logging.Level,
			Categories: cfg.Logging.Categories,
			JSONFormat: cfg.Logging.JSONFormat,
		}
		if verbose {
			opts.Level = "debug"
		}
		if err := logging.Initialize(opts); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".memora/config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&roomID, "room", "", "conversation room to bind queries to")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
