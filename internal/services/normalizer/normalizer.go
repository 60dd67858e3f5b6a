// -----------------------------------------------------------------------
// Grid Normalizer - Raw backend tables to canonical TableData
// -----------------------------------------------------------------------

package normalizer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tabanchor/internal/common"
	"github.com/ternarybob/tabanchor/internal/models"
	"github.com/ternarybob/tabanchor/internal/services/scoring"
)

// Normalizer converts raw tables into rectangular, typed, scored tables.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	cfg    common.NormalizerConfig
	scorer *scoring.Scorer
	logger arbor.ILogger
}

// NewNormalizer creates a normalizer. A nil scorer uses the default weights.
func NewNormalizer(cfg common.NormalizerConfig, scorer *scoring.Scorer, logger arbor.ILogger) *Normalizer {
	if cfg.HeaderWindow < 1 {
		cfg.HeaderWindow = 3
	}
	if cfg.HeaderNumericGap <= 0 {
		cfg.HeaderNumericGap = 0.25
	}
	if scorer == nil {
		scorer = scoring.NewDefaultScorer()
	}
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Normalizer{cfg: cfg, scorer: scorer, logger: logger}
}

// Normalize converts one raw table. It returns false when the raw table has
// zero rows or zero columns; such tables are dropped by the caller.
func (n *Normalizer) Normalize(raw models.RawTable, pageNumber int, backend models.BackendID) (*models.TableData, bool) {
	rows := cleanRows(raw.Rows)
	sourceLengths := make([]int, len(rows))
	cols := 0
	for i, r := range rows {
		sourceLengths[i] = len(r)
		if len(r) > cols {
			cols = len(r)
		}
	}

	if len(rows) == 0 || cols == 0 {
		n.logger.Debug().
			Str("backend", string(backend)).
			Int("page", pageNumber).
			Int("rows", len(rows)).
			Int("cols", cols).
			Msg("Dropping degenerate table")
		return nil, false
	}

	for i := range rows {
		for len(rows[i]) < cols {
			rows[i] = append(rows[i], "")
		}
	}

	merges := raw.Merges
	headerRow, hasHeader := n.detectHeader(rows, raw.HeaderRows)
	if hasHeader && headerRow > 0 {
		// Rows above the header are empty; drop them so the header is row 0
		rows = rows[headerRow:]
		sourceLengths = sourceLengths[headerRow:]
		merges = shiftMerges(merges, headerRow)
	}

	accepted := n.acceptMerges(merges, len(rows), cols)
	grid := buildGrid(rows, cols, accepted, hasHeader)
	matrix := grid.Matrix()

	table := &models.TableData{
		TableID:          common.NewTableID(),
		PageNumber:       resolvePage(pageNumber, raw.PageNumber),
		Headers:          []string{},
		Rows:             matrix,
		Grid:             grid,
		Backend:          backend,
		SourceRowLengths: sourceLengths,
		ExtractedAt:      time.Now(),
	}
	if hasHeader {
		table.Headers = matrix[0]
		table.Rows = matrix[1:]
	}

	table.Metadata = models.TableMetadata{
		Position:              Position(raw.BoundingBox, raw.PageHeight),
		BoundingBox:           raw.BoundingBox,
		ExtractionMethod:      extractionMethod(raw.Method, backend),
		ProcessingTimeSeconds: math.Max(0, raw.ProcessingTime),
		EmptyCellRatio:        emptyCellRatio(grid, hasHeader),
	}

	b := n.scorer.Evaluate(table, raw.NativeConfidence)
	table.Metadata.Confidence = b.Confidence
	table.Metadata.StructuralRegularity = b.Regularity
	table.Metadata.BackendConfidence = b.BackendConfidence

	return table, true
}

// Normalize converts one raw table with default settings
func Normalize(raw models.RawTable, pageNumber int, backend models.BackendID) (*models.TableData, bool) {
	return NewNormalizer(common.NormalizerConfig{}, nil, nil).Normalize(raw, pageNumber, backend)
}

// detectHeader decides whether the first non-empty row is a header.
// Flagged by the backend, or markedly less numeric than the rows below it.
func (n *Normalizer) detectHeader(rows [][]string, flagged []int) (int, bool) {
	h := -1
	for i, r := range rows {
		if !rowEmpty(r) {
			h = i
			break
		}
	}
	if h < 0 {
		return 0, false
	}

	for _, f := range flagged {
		if f == h {
			return h, true
		}
	}

	headerNumeric, headerCount := numericCounts(rows[h])
	if headerCount == 0 {
		return h, false
	}

	bodyNumeric, bodyCount, seen := 0, 0, 0
	for i := h + 1; i < len(rows) && seen < n.cfg.HeaderWindow; i++ {
		if rowEmpty(rows[i]) {
			continue
		}
		num, cnt := numericCounts(rows[i])
		bodyNumeric += num
		bodyCount += cnt
		seen++
	}
	if bodyCount == 0 {
		return h, false
	}

	headerRatio := float64(headerNumeric) / float64(headerCount)
	bodyRatio := float64(bodyNumeric) / float64(bodyCount)
	return h, bodyRatio-headerRatio >= n.cfg.HeaderNumericGap
}

// acceptMerges clamps merges to the grid and drops degenerate or overlapping ones.
// The first merge claiming a coordinate wins.
func (n *Normalizer) acceptMerges(merges []models.RawMerge, rows, cols int) []models.RawMerge {
	if len(merges) == 0 {
		return nil
	}

	claimed := make(map[models.CellRef]bool)
	var accepted []models.RawMerge

	for _, m := range merges {
		if m.Row < 0 || m.Col < 0 || m.Row >= rows || m.Col >= cols {
			continue
		}
		m.RowSpan = clampSpan(m.RowSpan, rows-m.Row)
		m.ColSpan = clampSpan(m.ColSpan, cols-m.Col)
		if m.RowSpan == 1 && m.ColSpan == 1 {
			continue
		}

		overlap := false
		for r := m.Row; r < m.Row+m.RowSpan && !overlap; r++ {
			for c := m.Col; c < m.Col+m.ColSpan; c++ {
				if claimed[models.CellRef{Row: r, Col: c}] {
					overlap = true
					break
				}
			}
		}
		if overlap {
			n.logger.Debug().
				Int("row", m.Row).
				Int("col", m.Col).
				Msg("Ignoring merge overlapping an earlier merge")
			continue
		}

		for r := m.Row; r < m.Row+m.RowSpan; r++ {
			for c := m.Col; c < m.Col+m.ColSpan; c++ {
				claimed[models.CellRef{Row: r, Col: c}] = true
			}
		}
		accepted = append(accepted, m)
	}

	return accepted
}

func buildGrid(rows [][]string, cols int, merges []models.RawMerge, hasHeader bool) *models.GridData {
	owner := make(map[models.CellRef]int) // covered coordinate -> merge index
	tops := make(map[models.CellRef]int)  // top-left coordinate -> merge index
	for i, m := range merges {
		tops[models.CellRef{Row: m.Row, Col: m.Col}] = i
		for r := m.Row; r < m.Row+m.RowSpan; r++ {
			for c := m.Col; c < m.Col+m.ColSpan; c++ {
				if r != m.Row || c != m.Col {
					owner[models.CellRef{Row: r, Col: c}] = i
				}
			}
		}
	}

	cells := make([]models.CellData, 0, len(rows)*cols)
	for r := range rows {
		for c := 0; c < cols; c++ {
			ref := models.CellRef{Row: r, Col: c}
			if _, covered := owner[ref]; covered {
				continue
			}

			cell := models.CellData{Row: r, Col: c, Content: rows[r][c]}
			if i, isTop := tops[ref]; isTop {
				m := merges[i]
				if cell.Content == "" {
					cell.Content = firstContent(rows, m)
				}
				cell.Type = models.CellTypeMerged
				cell.MergeSpan = &models.MergeSpan{RowSpan: m.RowSpan, ColSpan: m.ColSpan}
			} else {
				cell.Type = cellType(cell.Content, hasHeader && r == 0)
			}
			cells = append(cells, cell)
		}
	}

	return models.NewGridData(len(rows), cols, cells)
}

func cellType(content string, headerRow bool) models.CellType {
	switch {
	case content == "":
		return models.CellTypeEmpty
	case headerRow:
		return models.CellTypeHeader
	default:
		return models.CellTypeData
	}
}

// firstContent returns the first non-empty text inside a merged region
func firstContent(rows [][]string, m models.RawMerge) string {
	for r := m.Row; r < m.Row+m.RowSpan; r++ {
		for c := m.Col; c < m.Col+m.ColSpan; c++ {
			if rows[r][c] != "" {
				return rows[r][c]
			}
		}
	}
	return ""
}

// emptyCellRatio is computed over the data body; a header-only table uses the whole grid
func emptyCellRatio(grid *models.GridData, hasHeader bool) float64 {
	start := 0
	if hasHeader && grid.Rows > 1 {
		start = 1
	}
	total := (grid.Rows - start) * grid.Cols
	if total <= 0 {
		return 0
	}

	empty := 0
	for r := start; r < grid.Rows; r++ {
		for c := 0; c < grid.Cols; c++ {
			if cell, _ := grid.Cell(r, c); cell.IsEmpty() {
				empty++
			}
		}
	}
	return float64(empty) / float64(total)
}

// Position classifies a bounding box [x0, y0, x1, y1] in PDF space (y up).
// Unknown page height falls back to absolute thresholds.
func Position(bbox []float64, pageHeight float64) models.TablePosition {
	if len(bbox) != 4 {
		return models.PositionMiddle
	}
	y0, y1 := math.Min(bbox[1], bbox[3]), math.Max(bbox[1], bbox[3])
	center := (y0 + y1) / 2

	top, bottom := 600.0, 200.0
	if pageHeight > 0 {
		if y1-y0 >= 0.8*pageHeight {
			return models.PositionFull
		}
		top, bottom = pageHeight*2/3, pageHeight/3
	}

	switch {
	case center > top:
		return models.PositionTop
	case center < bottom:
		return models.PositionBottom
	default:
		return models.PositionMiddle
	}
}

// CleanCell trims a cell and folds line breaks and runs of whitespace into single spaces
func CleanCell(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func cleanRows(raw [][]string) [][]string {
	rows := make([][]string, len(raw))
	for i, r := range raw {
		rows[i] = make([]string, len(r))
		for j, c := range r {
			rows[i][j] = CleanCell(c)
		}
	}
	return rows
}

// IsNumeric reports whether a cell reads as a number once separators,
// percent and currency signs are removed
func IsNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	s = strings.NewReplacer(",", "", "%", "", "$", "", "€", "", "£", "", "¥", "", "₩", "", " ", "").Replace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
}

func numericCounts(row []string) (numeric, nonEmpty int) {
	for _, c := range row {
		if c == "" {
			continue
		}
		nonEmpty++
		if IsNumeric(c) {
			numeric++
		}
	}
	return numeric, nonEmpty
}

func rowEmpty(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

func shiftMerges(merges []models.RawMerge, by int) []models.RawMerge {
	out := make([]models.RawMerge, 0, len(merges))
	for _, m := range merges {
		m.Row -= by
		if m.Row < 0 {
			m.RowSpan += m.Row
			m.Row = 0
		}
		if m.RowSpan > 0 {
			out = append(out, m)
		}
	}
	return out
}

func clampSpan(span, max int) int {
	if span < 1 {
		return 1
	}
	if span > max {
		return max
	}
	return span
}

func resolvePage(page, rawPage int) int {
	if page >= 1 {
		return page
	}
	if rawPage >= 1 {
		return rawPage
	}
	return 1
}

func extractionMethod(method string, backend models.BackendID) string {
	if method != "" {
		return method
	}
	return fmt.Sprintf("%s_default", backend)
}
