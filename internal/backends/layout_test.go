package backends

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLayout = layoutOptions{
	YTolerance: 2,
	WordGap:    1.5,
	ColumnGap:  8,
	RegionGap:  30,
	MinRows:    2,
	MinCols:    2,
}

// word lays out s as one glyph per rune, 5pt wide
func word(s string, x, y float64) []glyph {
	var out []glyph
	for _, r := range s {
		out = append(out, glyph{X: x, Y: y, W: 5, H: 10, S: string(r)})
		x += 5
	}
	return out
}

func concat(parts ...[]glyph) []glyph {
	var out []glyph
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestChunkLine(t *testing.T) {
	glyphs := concat(
		word("Net", 10, 100),
		[]glyph{{X: 25, Y: 100, W: 3, H: 10, S: " "}},
		word("Sales", 28, 100),
		word("1200", 100, 100),
	)

	chunks := chunkLine(glyphs, testLayout)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Net Sales", chunks[0].Text)
	assert.Equal(t, 10.0, chunks[0].X0)
	assert.Equal(t, "1200", chunks[1].Text)
}

func TestChunkLine_WordGapInsertsSpace(t *testing.T) {
	glyphs := concat(word("ab", 0, 0), word("cd", 13, 0))
	chunks := chunkLine(glyphs, testLayout)
	require.Len(t, chunks, 1)
	assert.Equal(t, "ab cd", chunks[0].Text)
}

func TestGroupLines_TopFirst(t *testing.T) {
	glyphs := concat(
		word("low", 10, 100),
		word("high", 10, 700),
		word("mid", 10, 401),
		word("x", 60, 400),
	)

	lines := groupLines(glyphs, testLayout)
	require.Len(t, lines, 3)
	assert.Equal(t, "high", lines[0].Chunks[0].Text)
	assert.Equal(t, "mid", lines[1].Chunks[0].Text)
	require.Len(t, lines[1].Chunks, 2, "glyphs within y tolerance share a line")
	assert.Equal(t, "x", lines[1].Chunks[1].Text)
	assert.Equal(t, "low", lines[2].Chunks[0].Text)
}

func TestSplitRegionsAndRows(t *testing.T) {
	glyphs := concat(
		// title line, single chunk
		word("Report", 10, 760),
		// table one
		word("Name", 10, 700), word("Age", 100, 700),
		word("Alice", 10, 685), word("30", 100, 685),
		word("Bob", 10, 670), word("25", 102, 670),
		// far below: table two
		word("Key", 10, 300), word("Value", 120, 300),
		word("Height", 10, 285), word("181cm", 120, 285),
		// lone line between regions
		word("note", 10, 500),
	)

	lines := groupLines(glyphs, testLayout)
	regions := splitRegions(lines, testLayout)
	require.Len(t, regions, 2)

	anchors := columnAnchors(regions[0], testLayout.ColumnGap)
	require.Len(t, anchors, 2)
	assert.Equal(t, [][]string{
		{"Name", "Age"},
		{"Alice", "30"},
		{"Bob", "25"},
	}, regionRows(regions[0], anchors))

	anchors = columnAnchors(regions[1], testLayout.ColumnGap)
	assert.Equal(t, [][]string{
		{"Key", "Value"},
		{"Height", "181cm"},
	}, regionRows(regions[1], anchors))

	bbox := regionBBox(regions[1])
	require.Len(t, bbox, 4)
	assert.Equal(t, 10.0, bbox[0])
	assert.Equal(t, 285.0, bbox[1])
	assert.Equal(t, 145.0, bbox[2])
	assert.Equal(t, 310.0, bbox[3])
}

func TestSplitRegions_DropsShortRuns(t *testing.T) {
	glyphs := concat(word("a", 10, 700), word("b", 100, 700))
	regions := splitRegions(groupLines(glyphs, testLayout), testLayout)
	assert.Empty(t, regions)
}

func TestClusterValues(t *testing.T) {
	assert.Nil(t, clusterValues(nil, 5))
	assert.Equal(t, []float64{11, 100}, clusterValues([]float64{100, 10, 12, 11}, 5))
}

func TestFillGrid(t *testing.T) {
	h := []float64{200, 150, 100}
	v := []float64{0, 100, 200}
	glyphs := []glyph{
		{X: 10, Y: 170, W: 20, H: 10, S: "Name"},
		{X: 110, Y: 170, W: 20, H: 10, S: "Age"},
		{X: 10, Y: 120, W: 20, H: 10, S: "Alice"},
		{X: 40, Y: 120, W: 20, H: 10, S: "Smith"},
		{X: 500, Y: 120, W: 20, H: 10, S: "outside"},
	}

	assert.Equal(t, [][]string{
		{"Name", "Age"},
		{"Alice Smith", ""},
	}, fillGrid(glyphs, h, v))

	assert.Nil(t, fillGrid(glyphs, []float64{200}, v))
}

func TestBand(t *testing.T) {
	assert.Equal(t, 0, band(175, []float64{200, 150, 100}, true))
	assert.Equal(t, 1, band(120, []float64{200, 150, 100}, true))
	assert.Equal(t, -1, band(50, []float64{200, 150, 100}, true))
	assert.Equal(t, 1, band(150, []float64{0, 100, 200}, false))
}
