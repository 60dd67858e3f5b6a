package normalizer

import (
	"fmt"

	"github.com/ternarybob/tabanchor/internal/models"
)

// CheckStructure validates a normalized table: a non-empty grid, every cell
// and merge span inside it, no coordinate claimed twice, and header and data
// rows padded to the grid width.
func CheckStructure(table *models.TableData) models.StructureCheck {
	var check models.StructureCheck
	fail := func(format string, args ...any) {
		check.Errors = append(check.Errors, fmt.Sprintf(format, args...))
	}

	if table == nil || table.Grid == nil {
		fail("table has no grid")
		return check
	}
	g := table.Grid
	if g.Rows == 0 {
		fail("table has no rows")
	}
	if g.Cols == 0 {
		fail("table has no columns")
	}

	owner := make(map[models.CellRef]int)
	for i, cell := range g.Cells {
		rowSpan, colSpan := 1, 1
		if cell.Type == models.CellTypeMerged && cell.MergeSpan != nil {
			rowSpan, colSpan = cell.MergeSpan.RowSpan, cell.MergeSpan.ColSpan
		}
		if !g.Contains(cell.Row, cell.Col) || rowSpan < 1 || colSpan < 1 ||
			cell.Row+rowSpan > g.Rows || cell.Col+colSpan > g.Cols {
			fail("cell (%d,%d) span %dx%d lies outside the %dx%d grid", cell.Row, cell.Col, rowSpan, colSpan, g.Rows, g.Cols)
			continue
		}

	span:
		for r := cell.Row; r < cell.Row+rowSpan; r++ {
			for c := cell.Col; c < cell.Col+colSpan; c++ {
				ref := models.CellRef{Row: r, Col: c}
				if j, taken := owner[ref]; taken {
					first := g.Cells[j]
					fail("cell (%d,%d) overlaps cell (%d,%d) at (%d,%d)", cell.Row, cell.Col, first.Row, first.Col, r, c)
					break span
				}
				owner[ref] = i
			}
		}
	}

	bodyRows := g.Rows
	if table.HasHeader() {
		bodyRows--
		if len(table.Headers) != g.Cols {
			fail("header has %d column(s), grid has %d", len(table.Headers), g.Cols)
		}
	}
	if bodyRows >= 0 && len(table.Rows) != bodyRows {
		fail("table has %d data row(s), grid has %d", len(table.Rows), bodyRows)
	}
	for i, row := range table.Rows {
		if len(row) != g.Cols {
			fail("data row %d has %d cell(s), grid has %d column(s)", i, len(row), g.Cols)
		}
	}

	if len(check.Errors) == 0 && bodyRows > 0 && table.Metadata.EmptyCellRatio >= 1 {
		check.Warnings = append(check.Warnings, "every data cell is empty")
	}

	check.Valid = len(check.Errors) == 0
	return check
}
