package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/tabanchor/internal/models"
)

func TestCheckStructure_NormalizedTablesAreValid(t *testing.T) {
	raws := []models.RawTable{
		{Rows: [][]string{{"Name", "Age"}, {"Kim", ""}, {"Lee", "30"}}},
		{Rows: [][]string{{"a"}, {"b", "c", "d"}}},
		{
			Rows:   [][]string{{"Total", "", ""}, {"a", "1", "2"}, {"b", "3", "4"}},
			Merges: []models.RawMerge{{Row: 0, Col: 0, RowSpan: 1, ColSpan: 3}},
		},
	}
	for _, raw := range raws {
		tbl, ok := Normalize(raw, 1, models.BackendTabula)
		require.True(t, ok)
		check := CheckStructure(tbl)
		assert.True(t, check.Valid, "%v", check.Errors)
		assert.Empty(t, check.Errors)
	}
}

func TestCheckStructure_Rejects(t *testing.T) {
	valid := func() *models.TableData {
		return &models.TableData{
			TableID: "tbl_x",
			Headers: []string{"Item", "Value"},
			Rows:    [][]string{{"Height", "181cm"}},
			Grid: models.NewGridData(2, 2, []models.CellData{
				{Row: 0, Col: 0, Content: "Item", Type: models.CellTypeHeader},
				{Row: 0, Col: 1, Content: "Value", Type: models.CellTypeHeader},
				{Row: 1, Col: 0, Content: "Height", Type: models.CellTypeData},
				{Row: 1, Col: 1, Content: "181cm", Type: models.CellTypeData},
			}),
		}
	}
	require.True(t, CheckStructure(valid()).Valid)

	tests := []struct {
		name   string
		mutate func(*models.TableData)
		want   string
	}{
		{"no grid", func(tbl *models.TableData) { tbl.Grid = nil }, "no grid"},
		{"no columns", func(tbl *models.TableData) {
			tbl.Grid = models.NewGridData(2, 0, nil)
			tbl.Headers = nil
			tbl.Rows = [][]string{{}, {}}
		}, "no columns"},
		{"cell outside grid", func(tbl *models.TableData) {
			tbl.Grid.Cells = append(tbl.Grid.Cells, models.CellData{Row: 2, Col: 0, Content: "x", Type: models.CellTypeData})
		}, "outside"},
		{"span outside grid", func(tbl *models.TableData) {
			tbl.Grid.Cells[2].Type = models.CellTypeMerged
			tbl.Grid.Cells[2].MergeSpan = &models.MergeSpan{RowSpan: 1, ColSpan: 3}
		}, "outside"},
		{"overlapping merge", func(tbl *models.TableData) {
			tbl.Grid.Cells[2].Type = models.CellTypeMerged
			tbl.Grid.Cells[2].MergeSpan = &models.MergeSpan{RowSpan: 1, ColSpan: 2}
		}, "overlaps"},
		{"ragged row", func(tbl *models.TableData) { tbl.Rows = [][]string{{"Height"}} }, "data row 0"},
		{"header width", func(tbl *models.TableData) { tbl.Headers = []string{"Item"} }, "header"},
		{"row count", func(tbl *models.TableData) { tbl.Rows = nil }, "data row(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := valid()
			tt.mutate(tbl)
			check := CheckStructure(tbl)
			assert.False(t, check.Valid)
			require.NotEmpty(t, check.Errors)
			assert.Contains(t, check.Errors[0], tt.want)
		})
	}
}

func TestCheckStructure_WarnsOnEmptyBody(t *testing.T) {
	tbl, ok := Normalize(models.RawTable{Rows: [][]string{{"Height", "181cm"}}}, 1, models.BackendTabula)
	require.True(t, ok)
	tbl.Metadata.EmptyCellRatio = 1

	check := CheckStructure(tbl)
	assert.True(t, check.Valid)
	assert.Equal(t, []string{"every data cell is empty"}, check.Warnings)
}
