package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"intentdash/internal/log"
	"intentdash/internal/sheets"
	"intentdash/internal/store"
)

// ExportArchive is the archive side of the export loop.
type ExportArchive interface {
	ListUnexported(ctx context.Context, limit int) ([]store.Record, error)
	MarkExported(ctx context.Context, communicationID string, at time.Time) error
}

// ExportProcessorConfig holds configuration for the export processor
type ExportProcessorConfig struct {
	// PollInterval is how often to look for unexported rows (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of rows exported per poll cycle (default: 10)
	BatchSize int
}

// DefaultExportProcessorConfig returns sensible defaults
func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    10,
	}
}

// ExportProcessor copies archived communications to the spreadsheet. Rows
// that fail to export stay unexported and are retried on the next poll.
type ExportProcessor struct {
	archive  ExportArchive
	exporter sheets.CommunicationExporter
	config   ExportProcessorConfig
	logger   *log.Logger
	now      func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewExportProcessor(
	archive ExportArchive,
	exporter sheets.CommunicationExporter,
	config ExportProcessorConfig,
	logger *log.Logger,
) *ExportProcessor {
	defaults := DefaultExportProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportProcessor{
		archive:  archive,
		exporter: exporter,
		config:   config,
		logger:   logger.WithComponent(log.ComponentSheets),
		now:      time.Now,
	}
}

// Start begins the polling loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Export processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop signals the loop and waits for the current batch to finish.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Export processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ExportProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx, p.config.BatchSize); err != nil {
				p.logger.ErrorContext(ctx, "Export batch failed", log.FieldError, err)
			}
		}
	}
}

// ProcessBatch exports up to limit unexported rows, oldest first, and returns
// how many were exported. Per-row failures are logged and skipped.
func (p *ExportProcessor) ProcessBatch(ctx context.Context, limit int) (int, error) {
	pending, err := p.archive.ListUnexported(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list unexported: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	p.logger.DebugContext(ctx, "Processing export batch", "count", len(pending))

	exported := 0
	for _, rec := range pending {
		if ctx.Err() != nil {
			return exported, ctx.Err()
		}
		if err := p.ExportOne(ctx, rec); err != nil {
			p.logger.WarnContext(ctx, "Export failed, will retry",
				log.FieldCommunicationID, rec.Communication.ID,
				log.FieldError, err)
			continue
		}
		exported++
	}
	return exported, nil
}

// ExportOne appends the record to the spreadsheet and marks it exported.
func (p *ExportProcessor) ExportOne(ctx context.Context, rec store.Record) error {
	ref, err := p.exporter.Export(ctx, rec)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if err := p.archive.MarkExported(ctx, rec.Communication.ID, p.now()); err != nil {
		// The row is in the sheet; a retry would append it again.
		return fmt.Errorf("mark exported (row %s): %w", ref, err)
	}

	p.logger.InfoContext(ctx, "Exported communication",
		log.FieldCommunicationID, rec.Communication.ID,
		log.FieldSheetsRef, ref)
	return nil
}
