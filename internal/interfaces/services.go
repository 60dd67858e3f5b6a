package interfaces

import (
	"context"
	"io"
	"time"

	"github.com/ternarybob/tabanchor/internal/models"
)

// ExtractionService runs backends over documents and returns normalized results
type ExtractionService interface {
	Extract(ctx context.Context, path string, backend models.BackendID, opts models.BackendOptions) (*models.ExtractionResult, error)
	Compare(ctx context.Context, path string, backends []models.BackendID) (map[models.BackendID]*models.ExtractionResult, map[models.BackendID]error)
}

// ImportReport summarises a relationship import
type ImportReport struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// RelationshipService manages the relationship lifecycle and replay
type RelationshipService interface {
	Define(ctx context.Context, table *models.TableData, anchor, value models.CellRef, keyName string, opts models.DefineOptions) (*models.RelationshipConfig, error)
	Save(ctx context.Context, id string) (*models.RelationshipConfig, error)
	Archive(ctx context.Context, id string) (*models.RelationshipConfig, error)
	Revise(ctx context.Context, id string) (*models.RelationshipConfig, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.RelationshipConfig, error)
	List(ctx context.Context, state models.RelationshipState) ([]*models.RelationshipConfig, error)
	ListByTemplate(ctx context.Context, template string) ([]*models.RelationshipConfig, error)
	Statistics(ctx context.Context, since time.Time) (*models.RelationshipStats, error)
	ApplyTemplate(ctx context.Context, template string, result *models.ExtractionResult) ([]models.AppliedExtraction, error)
	Export(ctx context.Context, w io.Writer, format string) (int, error)
	Import(ctx context.Context, r io.Reader, format string) (*ImportReport, error)
}

// ReportService renders extraction results for people
type ReportService interface {
	RenderMarkdown(result *models.ExtractionResult, applied []models.AppliedExtraction) string
	RenderPDF(result *models.ExtractionResult, applied []models.AppliedExtraction) ([]byte, error)
	RenderCSV(result *models.ExtractionResult, applied []models.AppliedExtraction) ([]byte, error)
}
