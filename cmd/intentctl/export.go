package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"intentdash/internal/services"
	gsheet "intentdash/internal/sheets/google"
	"intentdash/internal/worker"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export archived communications that are not yet in the spreadsheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.ExportEnabled() {
			return fmt.Errorf("GOOGLE_SPREADSHEET_ID is not set")
		}

		repo, err := openArchive(cmd.Context())
		if err != nil {
			return err
		}
		defer repo.Close()

		exporter, err := gsheet.NewClient(cmd.Context(), gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			return err
		}

		before, err := repo.Stats(cmd.Context())
		if err != nil {
			return err
		}

		processor := services.NewExportProcessor(repo, exporter, services.ExportProcessorConfig{BatchSize: cfg.ExportBatchSize}, logger)
		if err := worker.NewArchiveWorker(repo, processor, cfg.ExportBatchSize, logger).ProcessPendingExports(cmd.Context()); err != nil {
			return err
		}

		after, err := repo.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d, %d still pending\n", before.Unexported-after.Unexported, after.Unexported)
		return nil
	},
}
