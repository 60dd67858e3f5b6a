// -----------------------------------------------------------------------
// Lattice backend - ruled-grid table detection
// Uses tsawler/tabula's graphics extractor and grid detector
// -----------------------------------------------------------------------

package backends

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/tsawler/tabula/graphicsstate"
	"github.com/tsawler/tabula/tables"

	"github.com/ternarybob/tabanchor/internal/common"
	"github.com/ternarybob/tabanchor/internal/interfaces"
	"github.com/ternarybob/tabanchor/internal/models"
)

// Lattice reads tables whose cells are drawn with ruling lines. It is the
// most accurate backend on bordered tables and finds nothing on borderless ones.
type Lattice struct {
	base
}

// Compile-time interface assertion
var _ interfaces.BackendAdapter = (*Lattice)(nil)

// NewLattice creates the lattice backend
func NewLattice(enabled bool, logger arbor.ILogger) *Lattice {
	return &Lattice{base: base{
		info: models.BackendInfo{
			ID:          models.BackendLattice,
			Name:        "Lattice",
			Description: "Ruling-line grid detection; most accurate on bordered tables",
			Library:     "github.com/tsawler/tabula/tables",
			Mode:        "lattice",
		},
		enabled: enabled,
		logger:  logger,
	}}
}

// Extract implements interfaces.BackendAdapter
func (l *Lattice) Extract(ctx context.Context, path string, opts models.BackendOptions) (*models.RawExtraction, error) {
	if _, err := Probe(path); err != nil {
		return nil, err
	}

	r, count, err := openTabula(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	minRows := opts.Int("min_rows", 1)
	minCols := opts.Int("min_cols", 1)
	minConfidence := opts.Float("min_confidence", 0.3)

	out := &models.RawExtraction{Backend: models.BackendLattice, PageCount: count}

	for i := 1; i <= count; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		pageNum := i
		start := time.Now()
		var found []models.RawTable
		err := common.SafeCall(l.logger, fmt.Sprintf("lattice page %d", pageNum), func() error {
			page, err := loadTabulaPage(r, pageNum)
			if err != nil {
				return err
			}
			found, err = l.detect(page, minRows, minCols, minConfidence)
			return err
		})
		if err != nil {
			out.SkippedPages++
			out.Warn("page %d skipped: %v", pageNum, err)
			l.logger.Warn().Str("path", path).Int("page", pageNum).Err(err).Msg("Lattice page skipped")
			continue
		}

		elapsed := time.Since(start).Seconds()
		for j := range found {
			found[j].ProcessingTime = elapsed
		}
		out.Tables = append(out.Tables, found...)
	}

	l.logger.Debug().
		Str("path", path).
		Int("pages", count).
		Int("tables", len(out.Tables)).
		Int("skipped_pages", out.SkippedPages).
		Msg("Lattice extraction complete")

	return out, nil
}

func (l *Lattice) detect(page *tabulaPage, minRows, minCols int, minConfidence float64) ([]models.RawTable, error) {
	if len(page.Content) == 0 {
		return nil, nil
	}

	ge := graphicsstate.NewGraphicsExtractor()
	if err := ge.ExtractFromBytes(page.Content); err != nil {
		return nil, fmt.Errorf("failed to read graphics: %w", err)
	}

	result := tables.DetectGrids(ge)
	if result == nil {
		return nil, nil
	}

	glyphs := fragmentGlyphs(page.Fragments)
	var out []models.RawTable
	for _, h := range result.Hypotheses {
		if h == nil || h.Confidence < minConfidence {
			continue
		}
		rows := fillGrid(glyphs, h.HorizontalLines, h.VerticalLines)
		if len(rows) < minRows || len(rows[0]) < minCols {
			continue
		}
		conf := h.Confidence
		out = append(out, models.RawTable{
			Rows:             rows,
			BoundingBox:      []float64{h.BBox.X, h.BBox.Y, h.BBox.X + h.BBox.Width, h.BBox.Y + h.BBox.Height},
			NativeConfidence: &conf,
			PageNumber:       page.Number,
			PageWidth:        page.Width,
			PageHeight:       page.Height,
			Method:           l.info.Method(),
		})
	}
	return out, nil
}
