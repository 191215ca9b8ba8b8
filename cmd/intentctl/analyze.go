package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"intentdash/internal/analysis"
	"intentdash/internal/core"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text]",
	Short: "Analyze a communication and print its intents and insights",
	Long: `Analyze sends the text to the analysis service and prints the result.
With no argument, or "-", the text is read from standard input.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readText(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		if err := core.ValidateText(text); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.AnalysisTimeout)
		defer cancel()

		comm, err := analysis.NewClient(cfg.AnalysisURL, cfg.AnalysisTimeout).Analyze(ctx, text)
		if err != nil {
			return fmt.Errorf("analyze: %w", err)
		}

		insights := core.DeriveInsights(comm, core.NewInsightID)
		printCommunication(cmd.OutOrStdout(), comm, insights)
		return nil
	},
}

func readText(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	if stdin == nil {
		stdin = os.Stdin
	}
	data, err := io.ReadAll(io.LimitReader(stdin, int64(core.MaxTextLength)*4+1))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
