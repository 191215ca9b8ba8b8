// Command intentctl analyzes text from the terminal and manages the archive.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"intentdash/internal/cli"
	"intentdash/internal/config"
	"intentdash/internal/log"
)

var (
	cfg    *config.Config
	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:           "intentctl",
	Short:         "Financial intent dashboard tools",
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cli.LoadEnvFile()
		cfg = config.Load()
		logger = cli.SetupLogger(cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd, historyCmd, exportCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %s", err))
		os.Exit(1)
	}
}
