package models

import (
	"fmt"
	"time"
)

// TablePosition is the coarse vertical placement of a table on its page
type TablePosition string

const (
	PositionTop    TablePosition = "TOP"
	PositionMiddle TablePosition = "MIDDLE"
	PositionBottom TablePosition = "BOTTOM"
	PositionFull   TablePosition = "FULL"
)

// TableMetadata describes how a table was extracted and how much to trust it
type TableMetadata struct {
	Confidence            float64       `json:"confidence"`
	Position              TablePosition `json:"position"`
	BoundingBox           []float64     `json:"bounding_box,omitempty"` // [x0, y0, x1, y1]
	ExtractionMethod      string        `json:"extraction_method"`
	ProcessingTimeSeconds float64       `json:"processing_time_seconds"`
	EmptyCellRatio        float64       `json:"empty_cell_ratio"`
	BackendConfidence     *float64      `json:"backend_confidence,omitempty"`
	StructuralRegularity  float64       `json:"structural_regularity"`
}

// TableData is one normalized table. It is not modified after normalization.
type TableData struct {
	TableID          string        `json:"table_id"`
	PageNumber       int           `json:"page_number"`
	Headers          []string      `json:"headers"`
	Rows             [][]string    `json:"rows"` // data rows only, each padded to Grid.Cols
	Grid             *GridData     `json:"grid"` // header row included as row 0 when detected
	Metadata         TableMetadata `json:"metadata"`
	Backend          BackendID     `json:"backend"`
	SourceRowLengths []int         `json:"source_row_lengths,omitempty"`
	ExtractedAt      time.Time     `json:"extracted_at"`
}

// HasHeader reports whether a header row was detected
func (t *TableData) HasHeader() bool {
	return len(t.Headers) > 0
}

// PageTableData groups the tables found on one page
type PageTableData struct {
	PageNumber int          `json:"page_number"`
	PageWidth  float64      `json:"page_width,omitempty"`
	PageHeight float64      `json:"page_height,omitempty"`
	Tables     []*TableData `json:"tables"`
}

// ExtractionResult is the outcome of running one backend over one document
type ExtractionResult struct {
	FileID                string           `json:"file_id"`
	FilePath              string           `json:"file_path,omitempty"`
	Backend               BackendID        `json:"backend"`
	Pages                 []*PageTableData `json:"pages"`
	TotalPages            int              `json:"total_pages"`
	TotalTables           int              `json:"total_tables"`
	SkippedTables         int              `json:"skipped_tables"`
	SkippedPages          int              `json:"skipped_pages"`
	Warnings              []string         `json:"warnings,omitempty"`
	ProcessingTimeSeconds float64          `json:"processing_time_seconds"`
	Partial               bool             `json:"partial"`
	Error                 string           `json:"error,omitempty"`
	ExtractedAt           time.Time        `json:"extracted_at"`
}

// AllTables returns every table in page order
func (r *ExtractionResult) AllTables() []*TableData {
	var out []*TableData
	for _, p := range r.Pages {
		out = append(out, p.Tables...)
	}
	return out
}

// Table finds a table by id
func (r *ExtractionResult) Table(tableID string) (*TableData, bool) {
	for _, p := range r.Pages {
		for _, t := range p.Tables {
			if t.TableID == tableID {
				return t, true
			}
		}
	}
	return nil, false
}

// Summary returns a one-line description for logs and CLI output
func (r *ExtractionResult) Summary() string {
	s := fmt.Sprintf("%s: %d table(s) on %d page(s) via %s in %.2fs",
		r.FileID, r.TotalTables, r.TotalPages, r.Backend, r.ProcessingTimeSeconds)
	if r.SkippedTables > 0 {
		s += fmt.Sprintf(", %d table(s) skipped", r.SkippedTables)
	}
	if r.SkippedPages > 0 {
		s += fmt.Sprintf(", %d page(s) skipped", r.SkippedPages)
	}
	if r.Partial {
		s += " (partial)"
	}
	return s
}

// StructureCheck is the outcome of validating a table's shape
type StructureCheck struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}
