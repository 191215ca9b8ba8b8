// Package worker consumes archive events and keeps the spreadsheet export
// in step with the archive.
package worker

import (
	"context"
	"fmt"

	"intentdash/internal/amqp"
	"intentdash/internal/log"
	"intentdash/internal/store"
)

// Saver persists a record and reports whether it was new.
type Saver interface {
	SaveCommunication(ctx context.Context, rec store.Record) (inserted bool, err error)
}

// Exports is the export side of the worker; see services.ExportProcessor.
type Exports interface {
	ExportOne(ctx context.Context, rec store.Record) error
	ProcessBatch(ctx context.Context, limit int) (int, error)
}

// ArchiveWorker handles archive events from AMQP
type ArchiveWorker struct {
	archive   Saver
	exports   Exports
	batchSize int
	logger    *log.Logger
}

// NewArchiveWorker builds a worker. exports may be nil when no spreadsheet
// is configured.
func NewArchiveWorker(archive Saver, exports Exports, batchSize int, logger *log.Logger) *ArchiveWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &ArchiveWorker{
		archive:   archive,
		exports:   exports,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleAnalyzedMessage archives one communication and exports it when it is
// new. A returned error requeues the message; export failures do not, since
// the periodic export loop picks the row up again.
func (w *ArchiveWorker) HandleAnalyzedMessage(ctx context.Context, msg *amqp.CommunicationAnalyzedMessage) error {
	rec := msg.Record()

	w.logger.InfoContext(ctx, "Processing analyzed communication",
		log.FieldCommunicationID, rec.Communication.ID,
		log.FieldSessionID, rec.SessionID,
		log.FieldInsightCount, len(rec.Insights))

	inserted, err := w.archive.SaveCommunication(ctx, rec)
	if err != nil {
		return fmt.Errorf("save communication: %w", err)
	}
	if !inserted {
		w.logger.DebugContext(ctx, "Communication already archived",
			log.FieldCommunicationID, rec.Communication.ID)
		return nil
	}

	if w.exports == nil {
		return nil
	}
	if err := w.exports.ExportOne(ctx, rec); err != nil {
		w.logger.WarnContext(ctx, "Export failed, left for the export loop",
			log.FieldCommunicationID, rec.Communication.ID,
			log.FieldError, err)
	}
	return nil
}

// ProcessPendingExports exports rows that missed their export, for example
// because the spreadsheet was unreachable when the message was handled.
func (w *ArchiveWorker) ProcessPendingExports(ctx context.Context) error {
	if w.exports == nil {
		return nil
	}
	n, err := w.exports.ProcessBatch(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("process pending exports: %w", err)
	}
	if n > 0 {
		w.logger.InfoContext(ctx, "Exported pending communications", "count", n)
	}
	return nil
}

// StartupCheck drains a larger batch of pending exports at worker startup,
// recovering from downtime.
func (w *ArchiveWorker) StartupCheck(ctx context.Context) error {
	if w.exports == nil {
		w.logger.InfoContext(ctx, "Spreadsheet export disabled, skipping startup check")
		return nil
	}

	n, err := w.exports.ProcessBatch(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup export check: %w", err)
	}

	w.logger.InfoContext(ctx, "Startup export check completed", "exported", n)
	return nil
}
