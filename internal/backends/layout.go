package backends

import (
	"math"
	"sort"
	"strings"
)

// glyph is a positioned piece of text in PDF user space (y grows upwards)
type glyph struct {
	X, Y, W, H float64
	S          string
}

// chunk is a run of glyphs on one line with no column-sized gap inside
type chunk struct {
	X0, X1 float64
	Y      float64
	Text   string
}

// textLine is a baseline's worth of chunks, left to right
type textLine struct {
	Y      float64
	Height float64
	Chunks []chunk
}

// layoutOptions are the whitespace-analysis thresholds, in points
type layoutOptions struct {
	YTolerance float64
	WordGap    float64
	ColumnGap  float64
	RegionGap  float64
	MinRows    int
	MinCols    int
}

// groupLines buckets glyphs into lines by baseline, top of page first
func groupLines(glyphs []glyph, opts layoutOptions) []textLine {
	if len(glyphs) == 0 {
		return nil
	}

	sorted := make([]glyph, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].Y-sorted[j].Y) > opts.YTolerance {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var buckets [][]glyph
	var bucketY []float64
	for _, g := range sorted {
		n := len(buckets)
		if n > 0 && math.Abs(bucketY[n-1]-g.Y) <= opts.YTolerance {
			buckets[n-1] = append(buckets[n-1], g)
			continue
		}
		buckets = append(buckets, []glyph{g})
		bucketY = append(bucketY, g.Y)
	}

	lines := make([]textLine, 0, len(buckets))
	for i, b := range buckets {
		sort.SliceStable(b, func(x, y int) bool { return b[x].X < b[y].X })
		chunks := chunkLine(b, opts)
		if len(chunks) == 0 {
			continue
		}
		height := 0.0
		for _, g := range b {
			height = math.Max(height, g.H)
		}
		lines = append(lines, textLine{Y: bucketY[i], Height: height, Chunks: chunks})
	}
	return lines
}

// chunkLine joins left-to-right glyphs into chunks. A gap wider than
// ColumnGap starts a new chunk; a gap wider than WordGap or a blank glyph
// inserts a space.
func chunkLine(glyphs []glyph, opts layoutOptions) []chunk {
	var out []chunk
	var b strings.Builder
	var cur *chunk
	pendingSpace := false

	flush := func() {
		if cur != nil {
			cur.Text = strings.TrimSpace(b.String())
			if cur.Text != "" {
				out = append(out, *cur)
			}
		}
		cur = nil
		b.Reset()
		pendingSpace = false
	}

	for _, g := range glyphs {
		if strings.TrimSpace(g.S) == "" {
			pendingSpace = true
			continue
		}
		if cur != nil {
			gap := g.X - cur.X1
			if gap > opts.ColumnGap {
				flush()
			} else if gap > opts.WordGap {
				pendingSpace = true
			}
		}
		if cur == nil {
			cur = &chunk{X0: g.X, X1: g.X + g.W, Y: g.Y}
		} else if pendingSpace {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteString(g.S)
		cur.X1 = math.Max(cur.X1, g.X+g.W)
	}
	flush()
	return out
}

// splitRegions returns runs of consecutive multi-chunk lines separated by
// less than RegionGap. Runs shorter than MinRows are dropped.
func splitRegions(lines []textLine, opts layoutOptions) [][]textLine {
	var regions [][]textLine
	var cur []textLine

	closeRegion := func() {
		if len(cur) >= opts.MinRows {
			regions = append(regions, cur)
		}
		cur = nil
	}

	for _, l := range lines {
		if len(l.Chunks) < opts.MinCols {
			closeRegion()
			continue
		}
		if n := len(cur); n > 0 && cur[n-1].Y-l.Y > opts.RegionGap {
			closeRegion()
		}
		cur = append(cur, l)
	}
	closeRegion()
	return regions
}

// columnAnchors clusters chunk left edges into column positions
func columnAnchors(lines []textLine, tolerance float64) []float64 {
	var xs []float64
	for _, l := range lines {
		for _, c := range l.Chunks {
			xs = append(xs, c.X0)
		}
	}
	return clusterValues(xs, tolerance)
}

// clusterValues sorts values and merges those within tolerance of the
// running cluster mean
func clusterValues(values []float64, tolerance float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var centers []float64
	sum, n := sorted[0], 1
	for _, v := range sorted[1:] {
		if v-sum/float64(n) <= tolerance {
			sum += v
			n++
			continue
		}
		centers = append(centers, sum/float64(n))
		sum, n = v, 1
	}
	return append(centers, sum/float64(n))
}

// nearest returns the index of the anchor closest to v
func nearest(anchors []float64, v float64) int {
	best, dist := 0, math.Inf(1)
	for i, a := range anchors {
		if d := math.Abs(a - v); d < dist {
			best, dist = i, d
		}
	}
	return best
}

// regionRows lays a region's chunks onto the column anchors. Chunks landing
// in the same column are joined with a space.
func regionRows(lines []textLine, anchors []float64) [][]string {
	rows := make([][]string, len(lines))
	for i, l := range lines {
		row := make([]string, len(anchors))
		for _, c := range l.Chunks {
			col := nearest(anchors, c.X0)
			if row[col] != "" {
				row[col] += " " + c.Text
			} else {
				row[col] = c.Text
			}
		}
		rows[i] = row
	}
	return rows
}

// regionBBox returns [x0, y0, x1, y1] around a region's chunks
func regionBBox(lines []textLine) []float64 {
	x0, y0 := math.Inf(1), math.Inf(1)
	x1, y1 := math.Inf(-1), math.Inf(-1)
	for _, l := range lines {
		for _, c := range l.Chunks {
			x0 = math.Min(x0, c.X0)
			x1 = math.Max(x1, c.X1)
		}
		y0 = math.Min(y0, l.Y)
		y1 = math.Max(y1, l.Y+l.Height)
	}
	return []float64{x0, y0, x1, y1}
}

// fillGrid assigns glyphs to the cells of a ruled grid by their centre point.
// hLines are sorted top to bottom (descending y), vLines left to right.
func fillGrid(glyphs []glyph, hLines, vLines []float64) [][]string {
	rows, cols := len(hLines)-1, len(vLines)-1
	if rows < 1 || cols < 1 {
		return nil
	}

	sorted := make([]glyph, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	cells := make([][]strings.Builder, rows)
	for i := range cells {
		cells[i] = make([]strings.Builder, cols)
	}

	for _, g := range sorted {
		cx, cy := g.X+g.W/2, g.Y+g.H/2
		r := band(cy, hLines, true)
		c := band(cx, vLines, false)
		if r < 0 || c < 0 {
			continue
		}
		cell := &cells[r][c]
		if cell.Len() > 0 {
			cell.WriteByte(' ')
		}
		cell.WriteString(g.S)
	}

	out := make([][]string, rows)
	for i := range cells {
		out[i] = make([]string, cols)
		for j := range cells[i] {
			out[i][j] = cells[i][j].String()
		}
	}
	return out
}

// band returns the interval of lines that contains v, or -1
func band(v float64, lines []float64, descending bool) int {
	for i := 0; i+1 < len(lines); i++ {
		lo, hi := lines[i], lines[i+1]
		if descending {
			lo, hi = hi, lo
		}
		if v >= lo && v <= hi {
			return i
		}
	}
	return -1
}
