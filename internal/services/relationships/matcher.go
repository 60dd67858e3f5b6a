// -----------------------------------------------------------------------
// Relationship Matcher - Anchor/value definition and replay
// -----------------------------------------------------------------------

package relationships

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/ternarybob/tabanchor/internal/common"
	"github.com/ternarybob/tabanchor/internal/interfaces"
	"github.com/ternarybob/tabanchor/internal/models"
	"github.com/ternarybob/tabanchor/internal/services/normalizer"
)

// Matcher defines relationships from example cells and applies them to tables.
// It holds only read-only configuration and is safe for concurrent use.
type Matcher struct {
	cfg      common.MatchingConfig
	validate *validator.Validate
}

// NewMatcher creates a matcher from the matching configuration
func NewMatcher(cfg common.MatchingConfig) *Matcher {
	if cfg.DiagonalTiePolicy == "" {
		cfg.DiagonalTiePolicy = "horizontal"
	}
	return &Matcher{
		cfg:      cfg,
		validate: newValidator(),
	}
}

// NewDefaultMatcher creates a matcher with the default constants
func NewDefaultMatcher() *Matcher {
	return NewMatcher(common.DefaultMatchingConfig())
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateValuePosition, models.ValuePosition{})
	v.RegisterStructValidation(validatePattern, models.RelationshipConfig{})
	return v
}

// validateValuePosition requires the alignment flag that matches the direction
func validateValuePosition(sl validator.StructLevel) {
	vp := sl.Current().Interface().(models.ValuePosition)
	switch vp.RelativePosition {
	case models.PositionRight, models.PositionLeft:
		if !vp.SameRow {
			sl.ReportError(vp.SameRow, "SameRow", "same_row", "required_for_horizontal", "")
		}
	case models.PositionAbove, models.PositionBelow:
		if !vp.SameCol {
			sl.ReportError(vp.SameCol, "SameCol", "same_col", "required_for_vertical", "")
		}
	}
}

// validatePattern requires regex patterns to compile and patterns to be non-blank
func validatePattern(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(models.RelationshipConfig)
	if strings.TrimSpace(cfg.AnchorPattern) == "" {
		sl.ReportError(cfg.AnchorPattern, "AnchorPattern", "anchor_pattern", "not_blank", "")
		return
	}
	if cfg.EffectivePatternType() == models.PatternRegex {
		if _, err := regexp.Compile(cfg.AnchorPattern); err != nil {
			sl.ReportError(cfg.AnchorPattern, "AnchorPattern", "anchor_pattern", "regex", "")
		}
	}
	if strings.TrimSpace(cfg.KeyName) == "" {
		sl.ReportError(cfg.KeyName, "KeyName", "key_name", "not_blank", "")
	}
}

// Validate checks a relationship config, wrapping failures in ErrInvalidRelationship
func (m *Matcher) Validate(cfg *models.RelationshipConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", interfaces.ErrInvalidRelationship)
	}
	if err := m.validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrInvalidRelationship, err)
	}
	return nil
}

// Define derives a DRAFT relationship from an anchor cell and a value cell.
//
// A row-aligned pair becomes RIGHT/LEFT, a column-aligned pair BELOW/ABOVE.
// A diagonal pair resolves to its dominant axis; equal deltas follow the
// configured tie policy. The raw deltas are kept on the value position.
func (m *Matcher) Define(anchor, value models.CellData, keyName string, opts models.DefineOptions) (*models.RelationshipConfig, error) {
	keyName = strings.TrimSpace(keyName)
	if keyName == "" {
		return nil, fmt.Errorf("%w: key name is required", interfaces.ErrInvalidRelationship)
	}
	if anchor.Covers(value.Row, value.Col) {
		return nil, fmt.Errorf("%w: value (%d,%d) lies inside anchor cell (%d,%d)", interfaces.ErrInvalidRelationship, value.Row, value.Col, anchor.Row, anchor.Col)
	}

	pattern := strings.TrimSpace(opts.Pattern)
	if pattern == "" {
		pattern = anchor.Content
	}
	if pattern == "" {
		return nil, fmt.Errorf("%w: anchor cell (%d,%d) is empty", interfaces.ErrInvalidRelationship, anchor.Row, anchor.Col)
	}

	dr := value.Row - anchor.Row
	dc := value.Col - anchor.Col
	vp := models.ValuePosition{RowDelta: dr, ColDelta: dc, Diagonal: dr != 0 && dc != 0}

	horizontal := dr == 0 ||
		(dc != 0 && (absInt(dc) > absInt(dr) ||
			(absInt(dc) == absInt(dr) && m.cfg.DiagonalTiePolicy != "vertical")))

	// RIGHT and BELOW offsets count from the far edge of a merged anchor
	spanRows, spanCols := 0, 0
	if anchor.Type == models.CellTypeMerged && anchor.MergeSpan != nil {
		spanRows, spanCols = anchor.MergeSpan.RowSpan-1, anchor.MergeSpan.ColSpan-1
	}

	if horizontal {
		vp.SameRow = true
		vp.Offset = absInt(dc)
		vp.RelativePosition = models.PositionRight
		if dc < 0 {
			vp.RelativePosition = models.PositionLeft
		} else {
			vp.Offset = max(1, dc-spanCols)
		}
	} else {
		vp.SameCol = true
		vp.Offset = absInt(dr)
		vp.RelativePosition = models.PositionBelow
		if dr < 0 {
			vp.RelativePosition = models.PositionAbove
		} else {
			vp.Offset = max(1, dr-spanRows)
		}
	}

	now := time.Now()
	cfg := &models.RelationshipConfig{
		RelationshipID: common.NewRelationshipID(),
		KeyName:        keyName,
		AnchorPattern:  pattern,
		PatternType:    opts.PatternType,
		ValuePosition:  vp,
		FileTemplate:   strings.TrimSpace(opts.FileTemplate),
		Description:    opts.Description,
		State:          models.StateDraft,
		Version:        1,
		AnchorSample:   anchor.Content,
		ValueSample:    value.Content,
		SourceTableID:  opts.SourceTableID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if cfg.PatternType == "" {
		cfg.PatternType = models.PatternLiteral
	}

	if err := m.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// anchorMatch is a candidate anchor cell with its match similarity
type anchorMatch struct {
	cell       models.CellData
	similarity float64
}

// Apply locates the anchor in the table and reads the value cell.
// It never panics and never errors: failures are reported through Status
// with an empty value and zero confidence.
func (m *Matcher) Apply(cfg *models.RelationshipConfig, table *models.TableData) (result models.AppliedExtraction) {
	if cfg != nil {
		result.KeyName = cfg.KeyName
		result.RelationshipID = cfg.RelationshipID
	}
	if table != nil {
		result.SourceTableID = table.TableID
		result.PageNumber = table.PageNumber
	}

	defer func() {
		if r := recover(); r != nil {
			result.Value = ""
			result.Confidence = 0
			result.Status = models.ApplyInvalidConfig
		}
	}()

	if err := m.Validate(cfg); err != nil || table == nil || table.Grid == nil {
		result.Status = models.ApplyInvalidConfig
		return result
	}

	matches, err := m.findAnchors(cfg, table.Grid)
	if err != nil {
		result.Status = models.ApplyInvalidConfig
		return result
	}
	result.AnchorMatches = len(matches)
	if len(matches) == 0 {
		result.Status = models.ApplyAnchorNotFound
		return result
	}

	anchor := matches[0]
	result.SourceCell = &models.CellRef{Row: anchor.cell.Row, Col: anchor.cell.Col}

	target := SpanTarget(anchor.cell, cfg.ValuePosition)
	if !table.Grid.Contains(target.Row, target.Col) {
		result.Status = models.ApplyOutOfBounds
		return result
	}
	result.ValueCell = &target

	valueCell, _ := table.Grid.Cell(target.Row, target.Col)
	if valueCell.Row == anchor.cell.Row && valueCell.Col == anchor.cell.Col {
		// target is covered by the anchor's own merge
		result.Status = models.ApplyOutOfBounds
		return result
	}
	result.Value = valueCell.Content
	result.Confidence = m.confidence(anchor.similarity, result.Value)
	result.Status = models.ApplyMatched

	if len(matches) > 1 {
		result.Status = models.ApplyAmbiguousAnchor
		result.Confidence *= m.cfg.AmbiguityPenalty
	}
	if cfg.ValuePosition.Diagonal {
		result.Confidence *= m.cfg.DiagonalPenalty
	}
	result.Confidence = clamp01(result.Confidence)

	return result
}

// ApplyAll applies each config to one table, one result per config
func (m *Matcher) ApplyAll(cfgs []*models.RelationshipConfig, table *models.TableData) []models.AppliedExtraction {
	out := make([]models.AppliedExtraction, 0, len(cfgs))
	for _, cfg := range cfgs {
		out = append(out, m.Apply(cfg, table))
	}
	return out
}

// ApplyToResult applies each config across every table of an extraction and
// keeps the best hit per config. Ties go to the earlier page and table.
func (m *Matcher) ApplyToResult(cfgs []*models.RelationshipConfig, result *models.ExtractionResult) []models.AppliedExtraction {
	var tables []*models.TableData
	if result != nil {
		tables = result.AllTables()
	}

	out := make([]models.AppliedExtraction, 0, len(cfgs))
	for _, cfg := range cfgs {
		var best *models.AppliedExtraction
		for _, table := range tables {
			cur := m.Apply(cfg, table)
			if best == nil || better(cur, *best) {
				c := cur
				best = &c
			}
		}
		if best == nil {
			best = &models.AppliedExtraction{Status: models.ApplyAnchorNotFound}
			if cfg != nil {
				best.KeyName = cfg.KeyName
				best.RelationshipID = cfg.RelationshipID
			}
		}
		out = append(out, *best)
	}
	return out
}

func better(cur, best models.AppliedExtraction) bool {
	if cur.Found() != best.Found() {
		return cur.Found()
	}
	return cur.Confidence > best.Confidence
}

// SpanTarget returns the value coordinate for an anchor cell. RIGHT and BELOW
// offsets are measured from the far edge of a merged anchor's span.
func SpanTarget(anchor models.CellData, vp models.ValuePosition) models.CellRef {
	row, col := anchor.Row, anchor.Col
	if anchor.Type == models.CellTypeMerged && anchor.MergeSpan != nil {
		switch vp.RelativePosition {
		case models.PositionRight:
			col += anchor.MergeSpan.ColSpan - 1
		case models.PositionBelow:
			row += anchor.MergeSpan.RowSpan - 1
		}
	}
	return Target(row, col, vp)
}

// Target returns the value coordinate for an anchor at (row, col)
func Target(row, col int, vp models.ValuePosition) models.CellRef {
	k := vp.Offset
	switch vp.RelativePosition {
	case models.PositionRight:
		return models.CellRef{Row: row, Col: col + k}
	case models.PositionLeft:
		return models.CellRef{Row: row, Col: col - k}
	case models.PositionBelow:
		return models.CellRef{Row: row + k, Col: col}
	case models.PositionAbove:
		return models.CellRef{Row: row - k, Col: col}
	}
	return models.CellRef{Row: -1, Col: -1}
}

// findAnchors returns the matching cells in row-major order.
// Literal patterns try an exact-case substring first, then a case-folded
// NFC comparison, then a whitespace-insensitive comparison.
func (m *Matcher) findAnchors(cfg *models.RelationshipConfig, grid *models.GridData) ([]anchorMatch, error) {
	cells := make([]models.CellData, 0, len(grid.PrimaryCells()))
	for _, c := range grid.PrimaryCells() {
		if !c.IsEmpty() {
			cells = append(cells, c)
		}
	}

	if cfg.EffectivePatternType() == models.PatternRegex {
		re, err := regexp.Compile(cfg.AnchorPattern)
		if err != nil {
			return nil, err
		}
		var out []anchorMatch
		for _, c := range cells {
			loc := re.FindStringIndex(c.Content)
			if loc == nil {
				continue
			}
			sim := m.cfg.PartialSimilarity
			if loc[0] == 0 && loc[1] == len(c.Content) {
				sim = m.cfg.ExactSimilarity
			}
			out = append(out, anchorMatch{cell: c, similarity: sim})
		}
		return out, nil
	}

	pattern := cfg.AnchorPattern
	passes := []func(content string) (bool, float64){
		func(content string) (bool, float64) {
			if content == pattern {
				return true, m.cfg.ExactSimilarity
			}
			return strings.Contains(content, pattern), m.cfg.PartialSimilarity
		},
		func(content string) (bool, float64) {
			fc, fp := m.fold(content), m.fold(pattern)
			if fc == fp {
				return true, m.cfg.CaseFoldSimilarity
			}
			return strings.Contains(fc, fp), m.cfg.PartialSimilarity
		},
		func(content string) (bool, float64) {
			fp := squash(m.fold(pattern))
			return fp != "" && strings.Contains(squash(m.fold(content)), fp), m.cfg.FallbackSimilarity
		},
	}

	for _, pass := range passes {
		var out []anchorMatch
		for _, c := range cells {
			if ok, sim := pass(c.Content); ok {
				out = append(out, anchorMatch{cell: c, similarity: sim})
			}
		}
		if len(out) > 0 {
			return out, nil
		}
	}
	return nil, nil
}

// fold case-folds NFC-normalized text. Casers are stateful, so one is made per call.
func (m *Matcher) fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// confidence combines anchor similarity with value quality
func (m *Matcher) confidence(similarity float64, value string) float64 {
	c := m.cfg.BaseConfidence + (similarity-0.5)*m.cfg.SimilarityWeight
	if value != "" {
		c += m.cfg.NonEmptyBonus
		if normalizer.IsNumeric(value) {
			c += m.cfg.NumericBonus
		}
	}
	return clamp01(c)
}

// squash removes all whitespace
func squash(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// IsInvalid reports whether err is a relationship validation failure
func IsInvalid(err error) bool {
	return errors.Is(err, interfaces.ErrInvalidRelationship)
}

// Define derives a relationship with the default matching constants
func Define(anchor, value models.CellData, keyName string, opts models.DefineOptions) (*models.RelationshipConfig, error) {
	return NewDefaultMatcher().Define(anchor, value, keyName, opts)
}

// Apply applies a relationship with the default matching constants
func Apply(cfg *models.RelationshipConfig, table *models.TableData) models.AppliedExtraction {
	return NewDefaultMatcher().Apply(cfg, table)
}
