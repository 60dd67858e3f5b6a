package relationships

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/tabanchor/internal/common"
	"github.com/ternarybob/tabanchor/internal/models"
	"github.com/ternarybob/tabanchor/internal/services/normalizer"
)

func table(t *testing.T, rows ...[]string) *models.TableData {
	t.Helper()
	tbl, ok := normalizer.Normalize(models.RawTable{Rows: rows}, 1, models.BackendTabula)
	require.True(t, ok)
	return tbl
}

func cell(t *testing.T, tbl *models.TableData, row, col int) models.CellData {
	t.Helper()
	c, ok := tbl.Grid.Cell(row, col)
	require.True(t, ok)
	return c
}

func TestRoundTrip_HeightRightOfAnchor(t *testing.T) {
	tbl := table(t, []string{"Height", "181cm"})

	cfg, err := Define(cell(t, tbl, 0, 0), cell(t, tbl, 0, 1), "height", models.DefineOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.PositionRight, cfg.ValuePosition.RelativePosition)
	assert.Equal(t, 1, cfg.ValuePosition.Offset)
	assert.True(t, cfg.ValuePosition.SameRow)
	assert.False(t, cfg.ValuePosition.Diagonal)
	assert.Equal(t, "Height", cfg.AnchorPattern)
	assert.Equal(t, models.StateDraft, cfg.State)
	assert.Contains(t, cfg.RelationshipID, "rel_")

	got := Apply(cfg, tbl)
	assert.Equal(t, "height", got.KeyName)
	assert.Equal(t, "181cm", got.Value)
	assert.Equal(t, models.ApplyMatched, got.Status)
	assert.Equal(t, &models.CellRef{Row: 0, Col: 0}, got.SourceCell)
	assert.Equal(t, tbl.TableID, got.SourceTableID)
	assert.InDelta(t, 0.85, got.Confidence, 1e-9)
}

func TestDefine_Directions(t *testing.T) {
	tests := []struct {
		name       string
		anchor     models.CellRef
		value      models.CellRef
		policy     string
		wantPos    models.RelativePosition
		wantOffset int
		diagonal   bool
	}{
		{"right", models.CellRef{Row: 1, Col: 1}, models.CellRef{Row: 1, Col: 3}, "", models.PositionRight, 2, false},
		{"left", models.CellRef{Row: 1, Col: 3}, models.CellRef{Row: 1, Col: 0}, "", models.PositionLeft, 3, false},
		{"below", models.CellRef{Row: 0, Col: 2}, models.CellRef{Row: 2, Col: 2}, "", models.PositionBelow, 2, false},
		{"above", models.CellRef{Row: 3, Col: 0}, models.CellRef{Row: 2, Col: 0}, "", models.PositionAbove, 1, false},
		{"diagonal mostly horizontal", models.CellRef{Row: 0, Col: 0}, models.CellRef{Row: 1, Col: 3}, "", models.PositionRight, 3, true},
		{"diagonal mostly vertical", models.CellRef{Row: 0, Col: 2}, models.CellRef{Row: 3, Col: 1}, "", models.PositionBelow, 3, true},
		{"diagonal tie horizontal", models.CellRef{Row: 2, Col: 2}, models.CellRef{Row: 1, Col: 1}, "horizontal", models.PositionLeft, 1, true},
		{"diagonal tie vertical", models.CellRef{Row: 2, Col: 2}, models.CellRef{Row: 1, Col: 1}, "vertical", models.PositionAbove, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := common.DefaultMatchingConfig()
			if tt.policy != "" {
				cfg.DiagonalTiePolicy = tt.policy
			}
			m := NewMatcher(cfg)

			anchor := models.CellData{Row: tt.anchor.Row, Col: tt.anchor.Col, Content: "Key", Type: models.CellTypeData}
			value := models.CellData{Row: tt.value.Row, Col: tt.value.Col, Content: "v", Type: models.CellTypeData}

			rel, err := m.Define(anchor, value, "k", models.DefineOptions{})
			require.NoError(t, err)

			vp := rel.ValuePosition
			assert.Equal(t, tt.wantPos, vp.RelativePosition)
			assert.Equal(t, tt.wantOffset, vp.Offset)
			assert.Equal(t, tt.diagonal, vp.Diagonal)
			assert.Equal(t, tt.value.Row-tt.anchor.Row, vp.RowDelta)
			assert.Equal(t, tt.value.Col-tt.anchor.Col, vp.ColDelta)
			assert.Equal(t, vp.RelativePosition.IsHorizontal(), vp.SameRow)
			assert.Equal(t, !vp.RelativePosition.IsHorizontal(), vp.SameCol)
		})
	}
}

func TestDefine_Rejects(t *testing.T) {
	a := models.CellData{Row: 0, Col: 0, Content: "Height", Type: models.CellTypeData}
	b := models.CellData{Row: 0, Col: 1, Content: "181cm", Type: models.CellTypeData}
	empty := models.CellData{Row: 1, Col: 0, Type: models.CellTypeEmpty}

	_, err := Define(a, a, "k", models.DefineOptions{})
	assert.True(t, IsInvalid(err), "same cell")

	_, err = Define(a, b, "  ", models.DefineOptions{})
	assert.True(t, IsInvalid(err), "blank key")

	_, err = Define(empty, b, "k", models.DefineOptions{})
	assert.True(t, IsInvalid(err), "empty anchor")

	_, err = Define(a, b, "k", models.DefineOptions{Pattern: "([", PatternType: models.PatternRegex})
	assert.True(t, IsInvalid(err), "bad regex")

	cfg, err := Define(empty, b, "k", models.DefineOptions{Pattern: "Total"})
	require.NoError(t, err, "explicit pattern replaces an empty anchor")
	assert.Equal(t, "Total", cfg.AnchorPattern)
}

func TestValidate_StructRules(t *testing.T) {
	m := NewDefaultMatcher()
	base := func() *models.RelationshipConfig {
		return &models.RelationshipConfig{
			RelationshipID: "rel_1",
			KeyName:        "k",
			AnchorPattern:  "Height",
			ValuePosition: models.ValuePosition{
				RelativePosition: models.PositionRight, Offset: 1, SameRow: true,
			},
		}
	}

	assert.NoError(t, m.Validate(base()))

	cfg := base()
	cfg.ValuePosition.SameRow = false
	assert.Error(t, m.Validate(cfg), "RIGHT requires same_row")

	cfg = base()
	cfg.ValuePosition = models.ValuePosition{RelativePosition: models.PositionBelow, Offset: 1, SameRow: true}
	assert.Error(t, m.Validate(cfg), "BELOW requires same_col")

	cfg = base()
	cfg.ValuePosition.Offset = 0
	assert.Error(t, m.Validate(cfg), "offset must be positive")

	cfg = base()
	cfg.ValuePosition.RelativePosition = "DIAGONAL"
	assert.Error(t, m.Validate(cfg))

	cfg = base()
	cfg.State = "PUBLISHED"
	assert.Error(t, m.Validate(cfg))

	assert.Error(t, m.Validate(nil))
}

func TestApply_OutOfBounds(t *testing.T) {
	tbl := table(t, []string{"Name", "Value"}, []string{"Height", "181"})

	cfg, err := Define(
		models.CellData{Row: 0, Col: 0, Content: "Height"},
		models.CellData{Row: 0, Col: 5, Content: "x"},
		"height", models.DefineOptions{},
	)
	require.NoError(t, err)

	got := Apply(cfg, tbl)
	assert.Equal(t, "", got.Value)
	assert.Equal(t, 0.0, got.Confidence)
	assert.Equal(t, models.ApplyOutOfBounds, got.Status)
	assert.NotNil(t, got.SourceCell)
	assert.Nil(t, got.ValueCell)

	above, err := Define(
		models.CellData{Row: 5, Col: 0, Content: "Name"},
		models.CellData{Row: 2, Col: 0, Content: "x"},
		"name", models.DefineOptions{},
	)
	require.NoError(t, err)
	got = Apply(above, tbl)
	assert.Equal(t, models.ApplyOutOfBounds, got.Status)
}

func TestApply_AmbiguousAnchor(t *testing.T) {
	tbl := table(t,
		[]string{"Height", "181cm"},
		[]string{"Height", "175cm"},
	)

	cfg, err := Define(cell(t, tbl, 0, 0), cell(t, tbl, 0, 1), "height", models.DefineOptions{})
	require.NoError(t, err)

	got := Apply(cfg, tbl)
	assert.Equal(t, "181cm", got.Value, "first match in row-major order")
	assert.Equal(t, models.ApplyAmbiguousAnchor, got.Status)
	assert.Equal(t, 2, got.AnchorMatches)
	assert.InDelta(t, 0.85*0.8, got.Confidence, 1e-9)
}

func TestApply_AnchorNotFound(t *testing.T) {
	tbl := table(t, []string{"Weight", "70kg"})
	cfg, err := Define(
		models.CellData{Row: 0, Col: 0, Content: "Height"},
		models.CellData{Row: 0, Col: 1},
		"height", models.DefineOptions{},
	)
	require.NoError(t, err)

	got := Apply(cfg, tbl)
	assert.Equal(t, models.ApplyAnchorNotFound, got.Status)
	assert.Equal(t, "", got.Value)
	assert.Equal(t, 0.0, got.Confidence)
}

func TestApply_InvalidConfigNeverPanics(t *testing.T) {
	tbl := table(t, []string{"Height", "181cm"})

	assert.Equal(t, models.ApplyInvalidConfig, Apply(nil, tbl).Status)
	assert.Equal(t, models.ApplyInvalidConfig, Apply(&models.RelationshipConfig{}, tbl).Status)
	assert.Equal(t, models.ApplyInvalidConfig, Apply(&models.RelationshipConfig{
		RelationshipID: "rel_x", KeyName: "k", AnchorPattern: "Height",
		ValuePosition: models.ValuePosition{RelativePosition: models.PositionRight, Offset: 1, SameRow: true},
	}, nil).Status)
	assert.Equal(t, models.ApplyInvalidConfig, Apply(&models.RelationshipConfig{
		RelationshipID: "rel_x", KeyName: "k", AnchorPattern: "(", PatternType: models.PatternRegex,
		ValuePosition: models.ValuePosition{RelativePosition: models.PositionRight, Offset: 1, SameRow: true},
	}, tbl).Status)
}

func TestApply_MatchingPasses(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		pattern  string
		ptype    models.PatternType
		wantConf float64
	}{
		// 0.5 + (sim-0.5)*0.3 + 0.2 non-empty + 0.1 numeric
		{"exact", "Height", "Height", models.PatternLiteral, 0.95},
		{"substring", "Height (cm)", "Height", models.PatternLiteral, 0.86},
		{"case folded", "HEIGHT", "height", models.PatternLiteral, 0.92},
		{"nfc composed vs decomposed", "Caf\u00e9", "Cafe\u0301", models.PatternLiteral, 0.92},
		{"split by whitespace", "Hei ght", "Height", models.PatternLiteral, 0.74},
		{"regex full", "Invoice No", `^Invoice\s+No$`, models.PatternRegex, 0.95},
		{"regex partial", "Invoice No.", `Invoice`, models.PatternRegex, 0.86},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := table(t, []string{tt.content, "181"})
			cfg := &models.RelationshipConfig{
				RelationshipID: "rel_t",
				KeyName:        "k",
				AnchorPattern:  tt.pattern,
				PatternType:    tt.ptype,
				ValuePosition:  models.ValuePosition{RelativePosition: models.PositionRight, Offset: 1, SameRow: true},
			}

			got := Apply(cfg, tbl)
			require.Equal(t, models.ApplyMatched, got.Status)
			assert.Equal(t, "181", got.Value)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
		})
	}
}

func TestApply_DiagonalPenalty(t *testing.T) {
	tbl := table(t, []string{"Total", ""}, []string{"", "500"})

	cfg, err := Define(cell(t, tbl, 0, 0), cell(t, tbl, 1, 1), "total", models.DefineOptions{})
	require.NoError(t, err)
	require.True(t, cfg.ValuePosition.Diagonal)

	// Tie resolves horizontally: the value is read from (0,1), which is empty
	got := Apply(cfg, tbl)
	assert.Equal(t, models.ApplyMatched, got.Status)
	assert.Equal(t, "", got.Value)
	assert.InDelta(t, 0.65*0.7, got.Confidence, 1e-9)
}

func TestApply_ConfidenceBounded(t *testing.T) {
	cfg := common.DefaultMatchingConfig()
	cfg.BaseConfidence = 1
	cfg.NonEmptyBonus = 1
	m := NewMatcher(cfg)

	tbl := table(t, []string{"Height", "181"})
	rel := &models.RelationshipConfig{
		RelationshipID: "rel_t", KeyName: "k", AnchorPattern: "Height",
		ValuePosition: models.ValuePosition{RelativePosition: models.PositionRight, Offset: 1, SameRow: true},
	}

	got := m.Apply(rel, tbl)
	assert.LessOrEqual(t, got.Confidence, 1.0)
	assert.GreaterOrEqual(t, got.Confidence, 0.0)
}

func TestApplyToResult_BestPerKey(t *testing.T) {
	first := table(t, []string{"Height", ""})
	second := table(t, []string{"Height", "181"})
	third := table(t, []string{"Weight", "70"})

	result := &models.ExtractionResult{Pages: []*models.PageTableData{
		{PageNumber: 1, Tables: []*models.TableData{first}},
		{PageNumber: 2, Tables: []*models.TableData{second, third}},
	}}

	height := &models.RelationshipConfig{
		RelationshipID: "rel_h", KeyName: "height", AnchorPattern: "Height",
		ValuePosition: models.ValuePosition{RelativePosition: models.PositionRight, Offset: 1, SameRow: true},
	}
	missing := &models.RelationshipConfig{
		RelationshipID: "rel_m", KeyName: "age", AnchorPattern: "Age",
		ValuePosition: models.ValuePosition{RelativePosition: models.PositionRight, Offset: 1, SameRow: true},
	}

	got := NewDefaultMatcher().ApplyToResult([]*models.RelationshipConfig{height, missing}, result)
	require.Len(t, got, 2)

	assert.Equal(t, "181", got[0].Value)
	assert.Equal(t, second.TableID, got[0].SourceTableID)

	assert.Equal(t, "age", got[1].KeyName)
	assert.Equal(t, models.ApplyAnchorNotFound, got[1].Status)

	empty := NewDefaultMatcher().ApplyToResult([]*models.RelationshipConfig{height}, &models.ExtractionResult{})
	require.Len(t, empty, 1)
	assert.Equal(t, models.ApplyAnchorNotFound, empty[0].Status)
}

func TestApply_MergedAnchorSpan(t *testing.T) {
	plain := table(t, []string{"Height", "181cm"})
	cfg, err := Define(cell(t, plain, 0, 0), cell(t, plain, 0, 1), "height", models.DefineOptions{})
	require.NoError(t, err)

	merged, ok := normalizer.Normalize(models.RawTable{
		Rows:   [][]string{{"Item", "", "Value"}, {"Height", "", "181cm"}},
		Merges: []models.RawMerge{{Row: 1, Col: 0, RowSpan: 1, ColSpan: 2}},
	}, 1, models.BackendTabula)
	require.True(t, ok)

	got := Apply(cfg, merged)
	assert.Equal(t, models.ApplyMatched, got.Status)
	assert.Equal(t, "181cm", got.Value)
	assert.Equal(t, &models.CellRef{Row: 1, Col: 0}, got.SourceCell)
	assert.Equal(t, &models.CellRef{Row: 1, Col: 2}, got.ValueCell)
	assert.InDelta(t, 0.85, got.Confidence, 1e-9)

	// authored on the merged layout, the offset counts from the span edge
	anchor := cell(t, merged, 1, 0)
	require.Equal(t, models.CellTypeMerged, anchor.Type)
	again, err := Define(anchor, cell(t, merged, 1, 2), "height", models.DefineOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, again.ValuePosition.Offset)
	assert.Equal(t, "181cm", Apply(again, plain).Value)

	_, err = Define(anchor, models.CellData{Row: 1, Col: 1}, "height", models.DefineOptions{})
	assert.True(t, IsInvalid(err), "value inside the anchor's span")
}

func TestSpanTarget(t *testing.T) {
	anchor := models.CellData{Row: 1, Col: 1, Content: "Total", Type: models.CellTypeMerged,
		MergeSpan: &models.MergeSpan{RowSpan: 2, ColSpan: 3}}
	vp := func(p models.RelativePosition) models.ValuePosition {
		return models.ValuePosition{RelativePosition: p, Offset: 1}
	}
	assert.Equal(t, models.CellRef{Row: 1, Col: 4}, SpanTarget(anchor, vp(models.PositionRight)))
	assert.Equal(t, models.CellRef{Row: 3, Col: 1}, SpanTarget(anchor, vp(models.PositionBelow)))
	assert.Equal(t, models.CellRef{Row: 1, Col: 0}, SpanTarget(anchor, vp(models.PositionLeft)))
	assert.Equal(t, models.CellRef{Row: 0, Col: 1}, SpanTarget(anchor, vp(models.PositionAbove)))
}

func TestTarget(t *testing.T) {
	vp := func(p models.RelativePosition, k int) models.ValuePosition {
		return models.ValuePosition{RelativePosition: p, Offset: k}
	}
	assert.Equal(t, models.CellRef{Row: 2, Col: 5}, Target(2, 3, vp(models.PositionRight, 2)))
	assert.Equal(t, models.CellRef{Row: 2, Col: 1}, Target(2, 3, vp(models.PositionLeft, 2)))
	assert.Equal(t, models.CellRef{Row: 4, Col: 3}, Target(2, 3, vp(models.PositionBelow, 2)))
	assert.Equal(t, models.CellRef{Row: 0, Col: 3}, Target(2, 3, vp(models.PositionAbove, 2)))
}
