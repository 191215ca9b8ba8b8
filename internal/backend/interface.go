package backend

import (
	"context"

	"intentdash/internal/amqp"
	"intentdash/internal/sheets"
	"intentdash/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// HealthCheck reports whether a dependency can serve traffic.
type HealthCheck func(ctx context.Context) error

// BackendResult holds the archive pipeline collaborators. Any of them may be
// nil depending on configuration.
type BackendResult struct {
	Archive  *storage.Repository
	Broker   *amqp.Client
	Exporter sheets.CommunicationExporter
	Cleanup  CleanupFunc
}

// Factory creates the archive pipeline based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Archive
	Type         ArchiveType
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export, opened only when Export is set
	Export                   bool
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

// ArchiveType represents the archive database
type ArchiveType string

const (
	NoArchive       ArchiveType = "none"
	SQLiteArchive   ArchiveType = "sqlite"
	PostgresArchive ArchiveType = "postgres"
)

// String implements fmt.Stringer
func (t ArchiveType) String() string {
	return string(t)
}

// IsValid returns true if the archive type is valid
func (t ArchiveType) IsValid() bool {
	switch t {
	case NoArchive, SQLiteArchive, PostgresArchive:
		return true
	default:
		return false
	}
}
