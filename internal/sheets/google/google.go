package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"intentdash/internal/core"
	"intentdash/internal/log"
	ports "intentdash/internal/sheets"
	"intentdash/internal/store"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Header is the column layout of the export sheet.
var Header = []any{
	"Analyzed At", "Session", "Text", "Categories",
	"Sentiment", "Urgency", "Insights", "High Priority",
}

type Config struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
}

type appender interface {
	Append(ctx context.Context, spreadsheetID, rng string, row []any) (updatedRange string, err error)
}

type Client struct {
	values        appender
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// Ensure interface conformance
var _ ports.CommunicationExporter = (*Client)(nil)

// NewClient creates a Sheets client authenticated with a service account.
func NewClient(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(cfg.SheetName) == "" {
		return nil, errors.New("missing sheet name")
	}
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	credentialsJSON, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger.Info("Google Sheets service created",
		"spreadsheet_id", cfg.SpreadsheetID,
		"sheet", cfg.SheetName)

	return &Client{
		values:        &valuesAPI{svc: svc},
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		logger:        logger,
	}, nil
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// Export appends one row for the record after the last row of the sheet.
func (c *Client) Export(ctx context.Context, rec store.Record) (string, error) {
	if rec.Communication.ID == "" {
		return "", errors.New("record has no communication id")
	}
	if c.values == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:H", c.sheetName)
	ref, err := c.values.Append(ctx, c.spreadsheetID, rng, Row(rec))
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	c.logger.DebugContext(ctx, "Appended communication row",
		log.FieldCommunicationID, rec.Communication.ID,
		log.FieldSheetsRef, ref)
	return ref, nil
}

// Row formats a record in Header column order.
func Row(rec store.Record) []any {
	comm := rec.Communication

	categories := make([]string, 0, len(comm.FinancialIntents.DetectedIntents))
	seen := map[core.Category]bool{}
	for _, cat := range comm.Categories() {
		if seen[cat] {
			continue
		}
		seen[cat] = true
		categories = append(categories, cat.Label())
	}

	return []any{
		comm.Timestamp.UTC().Format(time.RFC3339),
		rec.SessionID,
		comm.DisplayText(),
		strings.Join(categories, ", "),
		comm.Sentiment().Label(),
		comm.UrgencyAnalysis.UrgencyLevel,
		len(rec.Insights),
		len(core.HighPriority(rec.Insights)),
	}
}

type valuesAPI struct {
	svc *gsheet.Service
}

func (v *valuesAPI) Append(ctx context.Context, spreadsheetID, rng string, row []any) (string, error) {
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	resp, err := v.svc.Spreadsheets.Values.Append(spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if resp.Updates == nil {
		return rng, nil
	}
	return resp.Updates.UpdatedRange, nil
}
