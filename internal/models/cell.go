package models

// CellType classifies a grid cell
type CellType string

const (
	CellTypeHeader CellType = "HEADER"
	CellTypeData   CellType = "DATA"
	CellTypeEmpty  CellType = "EMPTY"
	CellTypeMerged CellType = "MERGED"
)

// MergeSpan is the rectangle a merged cell occupies, anchored at its top-left cell
type MergeSpan struct {
	RowSpan int `json:"row_span"`
	ColSpan int `json:"col_span"`
}

// CellData is one primary cell of a grid.
// A MERGED cell is stored once at its top-left coordinate; the coordinates it
// covers resolve to it through GridData lookups.
type CellData struct {
	Row       int        `json:"row"`
	Col       int        `json:"col"`
	Content   string     `json:"content"`
	Type      CellType   `json:"type"`
	MergeSpan *MergeSpan `json:"merge_span,omitempty"`
}

// IsEmpty reports whether the cell carries no content
func (c CellData) IsEmpty() bool {
	return c.Type == CellTypeEmpty || c.Content == ""
}

// Covers reports whether the cell occupies (row, col), including merged coverage
func (c CellData) Covers(row, col int) bool {
	if c.Row == row && c.Col == col {
		return true
	}
	if c.Type != CellTypeMerged || c.MergeSpan == nil {
		return false
	}
	return row >= c.Row && row < c.Row+c.MergeSpan.RowSpan &&
		col >= c.Col && col < c.Col+c.MergeSpan.ColSpan
}

// CellRef addresses a coordinate within a table grid
type CellRef struct {
	Row int `json:"row"`
	Col int `json:"col"`
}
