package models

import (
	"encoding/json"
)

// GridData is a rectangular rows x cols cell grid.
// Every in-bounds coordinate resolves to exactly one cell: an explicit primary
// entry, the merged cell covering it, or an implicit EMPTY cell.
type GridData struct {
	Rows  int        `json:"rows"`
	Cols  int        `json:"cols"`
	Cells []CellData `json:"cells"` // primary entries, row-major

	// coordinate -> index into Cells, covered coordinates included
	index map[CellRef]int
}

// NewGridData builds a grid and its lookup index. Cells are expected in row-major order.
func NewGridData(rows, cols int, cells []CellData) *GridData {
	g := &GridData{Rows: rows, Cols: cols, Cells: cells}
	g.buildIndex()
	return g
}

func (g *GridData) buildIndex() {
	g.index = make(map[CellRef]int, len(g.Cells))
	for i, c := range g.Cells {
		rowSpan, colSpan := 1, 1
		if c.Type == CellTypeMerged && c.MergeSpan != nil {
			rowSpan, colSpan = c.MergeSpan.RowSpan, c.MergeSpan.ColSpan
		}
		for r := c.Row; r < c.Row+rowSpan; r++ {
			for col := c.Col; col < c.Col+colSpan; col++ {
				ref := CellRef{Row: r, Col: col}
				if _, taken := g.index[ref]; !taken {
					g.index[ref] = i
				}
			}
		}
	}
}

// UnmarshalJSON decodes the grid and rebuilds its lookup index
func (g *GridData) UnmarshalJSON(data []byte) error {
	type plain GridData
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*g = GridData(p)
	g.buildIndex()
	return nil
}

// Contains reports whether (row, col) lies inside the grid
func (g *GridData) Contains(row, col int) bool {
	return g != nil && row >= 0 && col >= 0 && row < g.Rows && col < g.Cols
}

// Cell returns the cell at (row, col). A coordinate covered by a merged cell
// returns the merged cell. ok is false only when the coordinate is out of bounds.
func (g *GridData) Cell(row, col int) (CellData, bool) {
	if !g.Contains(row, col) {
		return CellData{}, false
	}

	if g.index != nil {
		if i, found := g.index[CellRef{Row: row, Col: col}]; found {
			return g.Cells[i], true
		}
	} else {
		// Grids decoded by non-JSON codecs carry no index
		for _, c := range g.Cells {
			if c.Covers(row, col) {
				return c, true
			}
		}
	}

	return CellData{Row: row, Col: col, Type: CellTypeEmpty}, true
}

// Row returns the cells of one row, one per column
func (g *GridData) Row(row int) []CellData {
	if g == nil || row < 0 || row >= g.Rows {
		return nil
	}
	out := make([]CellData, 0, g.Cols)
	for c := 0; c < g.Cols; c++ {
		cell, _ := g.Cell(row, c)
		out = append(out, cell)
	}
	return out
}

// Column returns the cells of one column, one per row
func (g *GridData) Column(col int) []CellData {
	if g == nil || col < 0 || col >= g.Cols {
		return nil
	}
	out := make([]CellData, 0, g.Rows)
	for r := 0; r < g.Rows; r++ {
		cell, _ := g.Cell(r, col)
		out = append(out, cell)
	}
	return out
}

// PrimaryCells returns the explicit cells in row-major order
func (g *GridData) PrimaryCells() []CellData {
	if g == nil {
		return nil
	}
	return g.Cells
}

// Matrix returns a dense rows x cols copy of the contents.
// Merged content appears once at the top-left; covered coordinates are "".
func (g *GridData) Matrix() [][]string {
	if g == nil {
		return nil
	}
	m := make([][]string, g.Rows)
	for r := range m {
		m[r] = make([]string, g.Cols)
	}
	for _, c := range g.Cells {
		if g.Contains(c.Row, c.Col) {
			m[c.Row][c.Col] = c.Content
		}
	}
	return m
}
