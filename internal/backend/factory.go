package backend

import (
	"context"
	"errors"
	"fmt"

	"intentdash/internal/amqp"
	"intentdash/internal/log"
	"intentdash/internal/services"
	gsheet "intentdash/internal/sheets/google"
	"intentdash/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend opens the archive, the broker and the exporter that config
// asks for. A broker that cannot be reached is logged and skipped; the
// archiver then writes straight to the archive.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	result := &BackendResult{}

	archive, err := f.openArchive(ctx, config)
	if err != nil {
		return nil, err
	}
	result.Archive = archive

	if config.AMQPURL != "" {
		broker, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, archiving directly", log.FieldError, err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			result.Broker = broker
		}
	}

	if config.Export && config.GoogleSpreadsheetID != "" {
		exporter, err := gsheet.NewClient(ctx, gsheet.Config{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			SheetName:       config.GoogleSheetName,
			CredentialsJSON: config.GoogleServiceAccountJSON,
			CredentialsFile: config.GoogleServiceAccountFile,
		}, f.logger)
		if err != nil {
			_ = result.close()
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		result.Exporter = exporter
	}

	result.Cleanup = result.close

	f.logger.Info("Initialized archive backend",
		log.FieldArchiveBackend, config.Type.String(),
		"amqp_enabled", result.Broker != nil,
		"export_enabled", result.Exporter != nil)

	return result, nil
}

func (f *DefaultFactory) openArchive(ctx context.Context, config Config) (*storage.Repository, error) {
	switch config.Type {
	case SQLiteArchive:
		repo, err := storage.OpenSQLite(config.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite archive: %w", err)
		}
		return repo, nil
	case PostgresArchive:
		repo, err := storage.OpenPostgres(ctx, config.DatabaseURL, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres archive: %w", err)
		}
		return repo, nil
	default:
		return nil, nil
	}
}

// Recorder returns the store.Recorder that feeds the archive pipeline.
func (r *BackendResult) Recorder(logger *log.Logger) *services.Archiver {
	var (
		publisher services.Publisher
		archive   services.Archive
	)
	if r.Broker != nil {
		publisher = r.Broker
	}
	if r.Archive != nil {
		archive = r.Archive
	}
	return services.NewArchiver(publisher, archive, logger)
}

// HealthChecks lists a readiness probe per opened dependency.
func (r *BackendResult) HealthChecks() map[string]HealthCheck {
	checks := map[string]HealthCheck{}
	if r.Archive != nil {
		checks["archive"] = r.Archive.Ping
	}
	if r.Broker != nil {
		checks["amqp"] = r.Broker.Healthy
	}
	return checks
}

func (r *BackendResult) close() error {
	var errs []error
	if r.Broker != nil {
		if err := r.Broker.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if r.Archive != nil {
		if err := r.Archive.Close(); err != nil {
			errs = append(errs, fmt.Errorf("archive: %w", err))
		}
	}
	return errors.Join(errs...)
}
