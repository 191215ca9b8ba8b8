package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"intentdash/internal/storage"
)

var rollbackSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the archive schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Opening the archive applies pending migrations.
		repo, err := openArchive(cmd.Context())
		if err != nil {
			return err
		}
		defer repo.Close()
		return printMigrationStatus(cmd, repo, "Schema is up to date")
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openArchive(cmd.Context())
		if err != nil {
			return err
		}
		defer repo.Close()
		if err := repo.Rollback(rollbackSteps); err != nil {
			return err
		}
		return printMigrationStatus(cmd, repo, fmt.Sprintf("Rolled back %d step(s)", rollbackSteps))
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openArchive(cmd.Context())
		if err != nil {
			return err
		}
		defer repo.Close()
		return printMigrationStatus(cmd, repo, "")
	},
}

func printMigrationStatus(cmd *cobra.Command, repo *storage.Repository, headline string) error {
	status, err := repo.MigrationStatus()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if headline != "" {
		fmt.Fprintln(out, color.GreenString(headline))
	}
	line := fmt.Sprintf("%s schema version %d", repo.Dialect(), status.Version)
	if status.Dirty {
		fmt.Fprintln(out, color.RedString("%s (dirty)", line))
		return nil
	}
	fmt.Fprintln(out, line)
	return nil
}

func init() {
	migrateDownCmd.Flags().IntVar(&rollbackSteps, "steps", 1, "number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
}
