// -----------------------------------------------------------------------
// Backend Adapter - Raw table extraction from PDF documents
// -----------------------------------------------------------------------

package interfaces

import (
	"context"

	"github.com/ternarybob/tabanchor/internal/models"
)

// BackendAdapter turns a document into backend-neutral raw tables.
//
// A malformed table or page is skipped, counted in RawExtraction.SkippedTables
// or SkippedPages and logged. Extract fails only when the document cannot be opened at all, with a
// *DocumentError. On cancellation the tables gathered so far are returned
// together with ctx.Err().
type BackendAdapter interface {
	ID() models.BackendID
	Info() models.BackendInfo

	// Available returns nil when the backend can run on this host
	Available() error

	Extract(ctx context.Context, path string, opts models.BackendOptions) (*models.RawExtraction, error)
}

// BackendProvider resolves adapters by id
type BackendProvider interface {
	Adapter(id models.BackendID) (BackendAdapter, error)
	Adapters() []BackendAdapter
	Options(id models.BackendID, override models.BackendOptions) models.BackendOptions
}
