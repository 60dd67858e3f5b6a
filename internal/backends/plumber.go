// -----------------------------------------------------------------------
// Plumber backend - whitespace table analysis over positioned glyphs
// Uses ledongthuc/pdf for glyph extraction
// -----------------------------------------------------------------------

package backends

import (
	"context"
	"fmt"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tabanchor/internal/common"
	"github.com/ternarybob/tabanchor/internal/interfaces"
	"github.com/ternarybob/tabanchor/internal/models"
)

// Plumber finds tables by clustering glyph positions into lines and columns.
// It handles borderless layouts and CJK text well.
type Plumber struct {
	base
}

// Compile-time interface assertion
var _ interfaces.BackendAdapter = (*Plumber)(nil)

// NewPlumber creates the plumber backend
func NewPlumber(enabled bool, logger arbor.ILogger) *Plumber {
	return &Plumber{base: base{
		info: models.BackendInfo{
			ID:          models.BackendPlumber,
			Name:        "Plumber",
			Description: "Whitespace analysis of glyph positions; strong on borderless and Korean text layouts",
			Library:     "github.com/ledongthuc/pdf",
			Mode:        "text",
		},
		enabled: enabled,
		logger:  logger,
	}}
}

// Extract implements interfaces.BackendAdapter
func (p *Plumber) Extract(ctx context.Context, path string, opts models.BackendOptions) (*models.RawExtraction, error) {
	doc, err := Probe(path)
	if err != nil {
		return nil, err
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, interfaces.NewDocumentError(path, interfaces.ErrUnreadableDocument, err)
	}
	defer f.Close()

	layout := plumberLayout(opts)
	out := &models.RawExtraction{Backend: models.BackendPlumber, PageCount: doc.PageCount}

	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		pageNum := i
		start := time.Now()
		var tables []models.RawTable
		err := common.SafeCall(p.logger, fmt.Sprintf("plumber page %d", pageNum), func() error {
			page := r.Page(pageNum)
			if page.V.IsNull() {
				return fmt.Errorf("page object missing")
			}
			tables = p.extractPage(page, pageNum, layout)
			return nil
		})
		if err != nil {
			out.SkippedPages++
			out.Warn("page %d skipped: %v", pageNum, err)
			p.logger.Warn().Str("path", path).Int("page", pageNum).Err(err).Msg("Plumber page skipped")
			continue
		}

		elapsed := time.Since(start).Seconds()
		for j := range tables {
			tables[j].ProcessingTime = elapsed
		}
		out.Tables = append(out.Tables, tables...)
	}

	p.logger.Debug().
		Str("path", path).
		Int("pages", out.PageCount).
		Int("tables", len(out.Tables)).
		Int("skipped_pages", out.SkippedPages).
		Msg("Plumber extraction complete")

	return out, nil
}

func (p *Plumber) extractPage(page pdf.Page, pageNum int, layout layoutOptions) []models.RawTable {
	width, height := mediaBox(page)

	texts := page.Content().Text
	glyphs := make([]glyph, 0, len(texts))
	for _, t := range texts {
		glyphs = append(glyphs, glyph{X: t.X, Y: t.Y, W: t.W, H: t.FontSize, S: t.S})
	}

	lines := groupLines(glyphs, layout)
	var tables []models.RawTable
	for _, region := range splitRegions(lines, layout) {
		anchors := columnAnchors(region, layout.ColumnGap)
		if len(anchors) < layout.MinCols {
			continue
		}
		tables = append(tables, models.RawTable{
			Rows:        regionRows(region, anchors),
			BoundingBox: regionBBox(region),
			PageNumber:  pageNum,
			PageWidth:   width,
			PageHeight:  height,
			Method:      p.info.Method(),
		})
	}
	return tables
}

func plumberLayout(opts models.BackendOptions) layoutOptions {
	return layoutOptions{
		YTolerance: opts.Float("y_tolerance", 2),
		WordGap:    opts.Float("word_gap", 1.5),
		ColumnGap:  opts.Float("column_gap", 8),
		RegionGap:  opts.Float("region_gap", 30),
		MinRows:    opts.Int("min_rows", 2),
		MinCols:    opts.Int("min_cols", 2),
	}
}

// mediaBox reads the page size, or zeros when the box is missing
func mediaBox(page pdf.Page) (width, height float64) {
	box := page.V.Key("MediaBox")
	if box.Len() != 4 {
		return 0, 0
	}
	return box.Index(2).Float64() - box.Index(0).Float64(),
		box.Index(3).Float64() - box.Index(1).Float64()
}
