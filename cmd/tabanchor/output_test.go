package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tabanchor/internal/app"
	"github.com/ternarybob/tabanchor/internal/models"
	"github.com/ternarybob/tabanchor/internal/services/normalizer"
	"github.com/ternarybob/tabanchor/internal/services/report"
)

func TestParseCellRef(t *testing.T) {
	tests := []struct {
		in      string
		want    models.CellRef
		wantErr bool
	}{
		{in: "0,1", want: models.CellRef{Row: 0, Col: 1}},
		{in: " 3 , 2 ", want: models.CellRef{Row: 3, Col: 2}},
		{in: "1", wantErr: true},
		{in: "a,1", wantErr: true},
		{in: "1,b", wantErr: true},
		{in: "-1,0", wantErr: true},
		{in: "1,2,3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseCellRef(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectTable(t *testing.T) {
	result := &models.ExtractionResult{
		Pages: []*models.PageTableData{
			{PageNumber: 1, Tables: []*models.TableData{{TableID: "tbl_a"}, {TableID: "tbl_b"}}},
			{PageNumber: 3, Tables: []*models.TableData{{TableID: "tbl_c"}}},
		},
	}

	tbl, err := selectTable(result, 1, "")
	require.NoError(t, err)
	assert.Equal(t, "tbl_a", tbl.TableID)

	tbl, err = selectTable(result, 1, "2")
	require.NoError(t, err)
	assert.Equal(t, "tbl_b", tbl.TableID)

	tbl, err = selectTable(result, 1, "tbl_c")
	require.NoError(t, err)
	assert.Equal(t, "tbl_c", tbl.TableID, "ids are looked up across pages")

	_, err = selectTable(result, 1, "3")
	assert.Error(t, err)
	_, err = selectTable(result, 2, "1")
	assert.Error(t, err)
	_, err = selectTable(result, 1, "zero")
	assert.Error(t, err)
	_, err = selectTable(result, 1, "tbl_missing")
	assert.Error(t, err)
}

func TestEncode(t *testing.T) {
	cfg := models.AppliedExtraction{KeyName: "total", Value: "10", Status: models.ApplyMatched}

	data, err := encode(cfg, formatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"key_name": "total"`)

	data, err = encode(cfg, formatYAML)
	require.NoError(t, err)
	assert.Contains(t, string(data), "key_name: total")

	_, err = encode(cfg, "xml")
	assert.Error(t, err)
}

func TestBackendOptions(t *testing.T) {
	assert.Nil(t, backendOptions(nil))

	opts := backendOptions(map[string]string{"min_rows": "3", "use_lines": "false"})
	assert.Equal(t, 3, opts.Int("min_rows", 0))
	assert.False(t, opts.Bool("use_lines", true))
}

func TestRenderResult_CSV(t *testing.T) {
	prev := application
	t.Cleanup(func() { application = prev })
	application = &app.App{ReportService: report.NewService(arbor.NewLogger())}

	tbl, ok := normalizer.Normalize(models.RawTable{Rows: [][]string{{"Name", "Age"}, {"Lee", "30"}}}, 1, models.BackendTabula)
	require.True(t, ok)
	result := &models.ExtractionResult{
		Pages: []*models.PageTableData{{PageNumber: 1, Tables: []*models.TableData{tbl}}},
	}

	data, err := renderResult(result, nil, "CSV")
	require.NoError(t, err)
	assert.Equal(t, "Name,Age\nLee,30\n", string(data))

	applied := []models.AppliedExtraction{{KeyName: "age", Value: "30", Confidence: 0.95, Status: models.ApplyMatched}}
	data, err = renderResult(result, applied, formatCSV)
	require.NoError(t, err)
	assert.Equal(t, "key,value,confidence,status,page,table_id,row,col\nage,30,0.95,matched,,,,\n", string(data))
}

func TestStatsText(t *testing.T) {
	stats := &models.RelationshipStats{
		Total:            3,
		Recent:           1,
		ByState:          map[models.RelationshipState]int{models.StateSaved: 2, models.StateDraft: 1},
		ByTemplate:       map[string]int{"receipt": 1, "invoice": 2},
		TopAnchors:       []models.AnchorCount{{Pattern: "Total", Count: 2}, {Pattern: "Date", Count: 1}},
		AveragePerAnchor: 1.5,
	}

	out := statsText(stats, 7*24*time.Hour)
	assert.Contains(t, out, "total 3, created in the last 168h0m0s: 1")
	assert.Contains(t, out, "  SAVED     2\n")
	assert.Contains(t, out, "  ARCHIVED  0\n")
	assert.Contains(t, out, "templates:\n  invoice 2\n  receipt 1\n")
	assert.Contains(t, out, "  \"Total\" 2\n")
	assert.Contains(t, out, "average per anchor 1.50")
}

func TestTextSummary(t *testing.T) {
	result := &models.ExtractionResult{FileID: "file_a", Backend: models.BackendTabula, SkippedPages: 1}
	applied := []models.AppliedExtraction{{KeyName: "total", Value: "10", Status: models.ApplyMatched, Confidence: 0.9}}

	out := textSummary(result, applied)
	assert.Contains(t, out, "1 page(s) skipped")
	assert.Contains(t, out, "  tabula: Geometric table detection")
	assert.Contains(t, out, `total = "10"  (matched, confidence 0.90)`)
}
