package sheets

import (
	"context"

	"intentdash/internal/store"
)

// Ports for outbound adapters.
type (
	// CommunicationExporter appends one archived communication to an
	// external spreadsheet and returns a reference to the written row.
	CommunicationExporter interface {
		Export(ctx context.Context, rec store.Record) (rowRef string, err error)
	}
)
