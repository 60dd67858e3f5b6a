// -----------------------------------------------------------------------
// Tabula backend - geometric table detection
// Uses tsawler/tabula's GeometricDetector over text fragments and ruling lines
// -----------------------------------------------------------------------

package backends

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/tsawler/tabula/graphicsstate"
	"github.com/tsawler/tabula/model"
	"github.com/tsawler/tabula/tables"

	"github.com/ternarybob/tabanchor/internal/common"
	"github.com/ternarybob/tabanchor/internal/interfaces"
	"github.com/ternarybob/tabanchor/internal/models"
)

// Tabula detects tables from fragment alignment, using ruling lines when present.
// It is the fast general-purpose backend.
type Tabula struct {
	base
}

// Compile-time interface assertion
var _ interfaces.BackendAdapter = (*Tabula)(nil)

// NewTabula creates the tabula backend
func NewTabula(enabled bool, logger arbor.ILogger) *Tabula {
	return &Tabula{base: base{
		info: models.BackendInfo{
			ID:          models.BackendTabula,
			Name:        "Tabula",
			Description: "Geometric detection from text alignment and ruling lines; fast on large documents",
			Library:     "github.com/tsawler/tabula",
			Mode:        "stream",
		},
		enabled: enabled,
		logger:  logger,
	}}
}

// Extract implements interfaces.BackendAdapter
func (t *Tabula) Extract(ctx context.Context, path string, opts models.BackendOptions) (*models.RawExtraction, error) {
	if _, err := Probe(path); err != nil {
		return nil, err
	}

	r, count, err := openTabula(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	detector := tables.NewGeometricDetector()
	if err := detector.Configure(tabulaConfig(opts)); err != nil {
		return nil, fmt.Errorf("invalid tabula options: %w", err)
	}

	out := &models.RawExtraction{Backend: models.BackendTabula, PageCount: count}

	for i := 1; i <= count; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		pageNum := i
		start := time.Now()
		var found []models.RawTable
		err := common.SafeCall(t.logger, fmt.Sprintf("tabula page %d", pageNum), func() error {
			page, err := loadTabulaPage(r, pageNum)
			if err != nil {
				return err
			}
			found, err = t.detect(detector, page)
			return err
		})
		if err != nil {
			out.SkippedPages++
			out.Warn("page %d skipped: %v", pageNum, err)
			t.logger.Warn().Str("path", path).Int("page", pageNum).Err(err).Msg("Tabula page skipped")
			continue
		}

		elapsed := time.Since(start).Seconds()
		for j := range found {
			found[j].ProcessingTime = elapsed
		}
		out.Tables = append(out.Tables, found...)
	}

	t.logger.Debug().
		Str("path", path).
		Int("pages", count).
		Int("tables", len(out.Tables)).
		Int("skipped_pages", out.SkippedPages).
		Msg("Tabula extraction complete")

	return out, nil
}

func (t *Tabula) detect(detector *tables.GeometricDetector, page *tabulaPage) ([]models.RawTable, error) {
	mp := model.NewPage(page.Width, page.Height)
	mp.Number = page.Number
	for _, f := range page.Fragments {
		mp.RawText = append(mp.RawText, model.TextFragment{
			Text:     f.Text,
			BBox:     model.BBox{X: f.X, Y: f.Y, Width: f.Width, Height: f.Height},
			FontSize: f.FontSize,
			FontName: f.FontName,
		})
	}

	if len(page.Content) > 0 {
		ge := graphicsstate.NewGraphicsExtractor()
		if err := ge.ExtractFromBytes(page.Content); err == nil {
			mp.RawLines = append(mp.RawLines, ge.ToModelLines()...)
			mp.RawLines = append(mp.RawLines, ge.ToModelRectangles()...)
		}
	}

	detected, err := detector.Detect(mp)
	if err != nil {
		return nil, err
	}

	out := make([]models.RawTable, 0, len(detected))
	for _, tbl := range detected {
		if tbl == nil {
			continue
		}
		out = append(out, t.toRaw(tbl, page))
	}
	return out, nil
}

// toRaw flattens a detected table. Cells sit at their grid position; a cell
// spanning more than one position is reported as a merge.
func (t *Tabula) toRaw(tbl *model.Table, page *tabulaPage) models.RawTable {
	raw := models.RawTable{
		Rows:        make([][]string, len(tbl.Rows)),
		BoundingBox: []float64{tbl.BBox.X, tbl.BBox.Y, tbl.BBox.X + tbl.BBox.Width, tbl.BBox.Y + tbl.BBox.Height},
		PageNumber:  page.Number,
		PageWidth:   page.Width,
		PageHeight:  page.Height,
		Method:      t.info.Method(),
	}
	conf := tbl.Confidence
	raw.NativeConfidence = &conf

	for i, row := range tbl.Rows {
		cells := make([]string, len(row))
		header := len(row) > 0
		for j, c := range row {
			cells[j] = c.Text
			if !c.IsHeader {
				header = false
			}
			if c.RowSpan > 1 || c.ColSpan > 1 {
				raw.Merges = append(raw.Merges, models.RawMerge{
					Row:     i,
					Col:     j,
					RowSpan: max(c.RowSpan, 1),
					ColSpan: max(c.ColSpan, 1),
				})
			}
		}
		if header {
			raw.HeaderRows = append(raw.HeaderRows, i)
		}
		raw.Rows[i] = cells
	}
	return raw
}

func tabulaConfig(opts models.BackendOptions) tables.Config {
	return tables.Config{
		MinRows:            opts.Int("min_rows", 2),
		MinCols:            opts.Int("min_cols", 2),
		MinConfidence:      opts.Float("min_confidence", 0.5),
		UseLines:           opts.Bool("use_lines", true),
		UseWhitespace:      opts.Bool("use_whitespace", true),
		MaxCellGap:         opts.Float("max_cell_gap", 5),
		AlignmentTolerance: opts.Float("alignment_tolerance", 2),
		DetectMergedCells:  opts.Bool("detect_merged_cells", true),
	}
}
