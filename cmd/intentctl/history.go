package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"intentdash/internal/core"
	"intentdash/internal/storage"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived communications, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openArchive(cmd.Context())
		if err != nil {
			return err
		}
		defer repo.Close()

		recs, err := repo.ListRecent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		stats, err := repo.Stats(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(recs) == 0 {
			fmt.Fprintln(out, "No archived communications.")
			return nil
		}

		comms := make([]core.Communication, 0, len(recs))
		var insights []core.Insight
		for _, rec := range recs {
			printRecord(out, rec)
			comms = append(comms, rec.Communication)
			insights = append(insights, rec.Insights...)
		}
		printSummary(out, core.Summarize(comms, insights))
		fmt.Fprintf(out, "%d archived, %d awaiting export\n", stats.Communications, stats.Unexported)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of communications to list")
}

// openArchive opens the configured archive database, running migrations.
func openArchive(ctx context.Context) (*storage.Repository, error) {
	switch cfg.ArchiveBackend {
	case "sqlite":
		return storage.OpenSQLite(cfg.SQLiteDBPath, logger)
	case "postgres":
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return storage.OpenPostgres(ctx, cfg.DatabaseURL, logger)
	default:
		return nil, fmt.Errorf("no archive configured (ARCHIVE_BACKEND=%q)", cfg.ArchiveBackend)
	}
}
