// Package services orchestrates the archive pipeline: recording analyzed
// communications and exporting archived rows to a spreadsheet.
package services

import (
	"context"
	"errors"
	"fmt"

	"intentdash/internal/amqp"
	"intentdash/internal/log"
	"intentdash/internal/store"
)

// Publisher sends archive events to the broker.
type Publisher interface {
	PublishAnalyzed(ctx context.Context, msg *amqp.CommunicationAnalyzedMessage) error
	Close() error
}

// Archive persists analyzed communications.
type Archive interface {
	SaveCommunication(ctx context.Context, rec store.Record) (inserted bool, err error)
	Close() error
}

// Archiver records every communication accepted into a session store. With a
// publisher the record travels through the broker to the worker; without one,
// or when publishing fails, it is written straight to the archive.
type Archiver struct {
	publisher Publisher
	archive   Archive
	logger    *log.Logger
}

var _ store.Recorder = (*Archiver)(nil)

// NewArchiver accepts nil for either collaborator. With both nil Record is a no-op.
func NewArchiver(publisher Publisher, archive Archive, logger *log.Logger) *Archiver {
	if logger == nil {
		logger = log.Discard()
	}
	return &Archiver{
		publisher: publisher,
		archive:   archive,
		logger:    logger.WithComponent(log.ComponentArchive),
	}
}

// Record implements store.Recorder.
func (a *Archiver) Record(ctx context.Context, rec store.Record) error {
	if a.publisher != nil {
		err := a.publisher.PublishAnalyzed(ctx, amqp.NewCommunicationAnalyzedMessage(rec))
		if err == nil {
			return nil
		}
		if a.archive == nil {
			return fmt.Errorf("publish communication %s: %w", rec.Communication.ID, err)
		}
		a.logger.WarnContext(ctx, "Publish failed, archiving directly",
			log.FieldCommunicationID, rec.Communication.ID,
			log.FieldError, err)
	}

	if a.archive == nil {
		return nil
	}

	inserted, err := a.archive.SaveCommunication(ctx, rec)
	if err != nil {
		return fmt.Errorf("archive communication %s: %w", rec.Communication.ID, err)
	}
	a.logger.DebugContext(ctx, "Communication archived",
		log.FieldCommunicationID, rec.Communication.ID,
		log.FieldSessionID, rec.SessionID,
		"inserted", inserted)
	return nil
}

// Close closes both the archive and the broker connection.
func (a *Archiver) Close() error {
	var errs []error

	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			errs = append(errs, fmt.Errorf("archive: %w", err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close archiver: %w", errors.Join(errs...))
	}

	return nil
}
