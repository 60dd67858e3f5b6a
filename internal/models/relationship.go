package models

import (
	"time"
)

// RelativePosition is the direction from an anchor cell to its value cell
type RelativePosition string

const (
	PositionRight RelativePosition = "RIGHT"
	PositionLeft  RelativePosition = "LEFT"
	PositionAbove RelativePosition = "ABOVE"
	PositionBelow RelativePosition = "BELOW"
)

// IsHorizontal reports whether the position moves along a row
func (p RelativePosition) IsHorizontal() bool {
	return p == PositionRight || p == PositionLeft
}

// PatternType selects how an anchor pattern is matched
type PatternType string

const (
	PatternLiteral PatternType = "literal"
	PatternRegex   PatternType = "regex"
)

// RelationshipState is the lifecycle state of a relationship config
type RelationshipState string

const (
	StateDraft    RelationshipState = "DRAFT"
	StateSaved    RelationshipState = "SAVED"
	StateArchived RelationshipState = "ARCHIVED"
)

// ValuePosition locates the value cell relative to the anchor
type ValuePosition struct {
	RelativePosition RelativePosition `json:"relative_position" yaml:"relative_position" validate:"required,oneof=RIGHT LEFT ABOVE BELOW"`
	Offset           int              `json:"offset" yaml:"offset" validate:"gte=1"`
	SameRow          bool             `json:"same_row" yaml:"same_row"`
	SameCol          bool             `json:"same_col" yaml:"same_col"`
	Diagonal         bool             `json:"diagonal,omitempty" yaml:"diagonal,omitempty"`
	RowDelta         int              `json:"row_delta,omitempty" yaml:"row_delta,omitempty"`
	ColDelta         int              `json:"col_delta,omitempty" yaml:"col_delta,omitempty"`
}

// RelationshipConfig is a reusable anchor -> value rule.
// SAVED configs are never modified; revisions create a new DRAFT.
type RelationshipConfig struct {
	RelationshipID string            `json:"relationship_id" yaml:"relationship_id" validate:"required"`
	KeyName        string            `json:"key_name" yaml:"key_name" validate:"required"`
	AnchorPattern  string            `json:"anchor_pattern" yaml:"anchor_pattern" validate:"required"`
	PatternType    PatternType       `json:"pattern_type" yaml:"pattern_type" validate:"omitempty,oneof=literal regex"`
	ValuePosition  ValuePosition     `json:"value_position" yaml:"value_position"`
	FileTemplate   string            `json:"file_template,omitempty" yaml:"file_template,omitempty"`
	Description    string            `json:"description,omitempty" yaml:"description,omitempty"`
	State          RelationshipState `json:"state" yaml:"state" validate:"omitempty,oneof=DRAFT SAVED ARCHIVED"`
	Version        int               `json:"version" yaml:"version" validate:"gte=0"`
	PreviousID     string            `json:"previous_id,omitempty" yaml:"previous_id,omitempty"`
	AnchorSample   string            `json:"anchor_sample,omitempty" yaml:"anchor_sample,omitempty"`
	ValueSample    string            `json:"value_sample,omitempty" yaml:"value_sample,omitempty"`
	SourceTableID  string            `json:"source_table_id,omitempty" yaml:"source_table_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at" yaml:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" yaml:"updated_at"`
	ArchivedAt     *time.Time        `json:"archived_at,omitempty" yaml:"archived_at,omitempty"`
}

// EffectivePatternType defaults an unset pattern type to literal
func (c *RelationshipConfig) EffectivePatternType() PatternType {
	if c.PatternType == "" {
		return PatternLiteral
	}
	return c.PatternType
}

// DefineOptions are the optional inputs when authoring a relationship
type DefineOptions struct {
	Pattern       string      // overrides the anchor cell content as the pattern
	PatternType   PatternType // literal (default) or regex
	FileTemplate  string
	Description   string
	SourceTableID string
}

// ApplyStatus explains the outcome of applying a relationship to a table
type ApplyStatus string

const (
	ApplyMatched         ApplyStatus = "matched"
	ApplyAmbiguousAnchor ApplyStatus = "ambiguous_anchor"
	ApplyAnchorNotFound  ApplyStatus = "anchor_not_found"
	ApplyOutOfBounds     ApplyStatus = "out_of_bounds"
	ApplyInvalidConfig   ApplyStatus = "invalid_config"
)

// AppliedExtraction is the result of applying one relationship to one table
type AppliedExtraction struct {
	KeyName        string      `json:"key_name" yaml:"key_name"`
	Value          string      `json:"value" yaml:"value"`
	Confidence     float64     `json:"confidence" yaml:"confidence"`
	SourceTableID  string      `json:"source_table_id" yaml:"source_table_id"`
	SourceCell     *CellRef    `json:"source_cell,omitempty" yaml:"source_cell,omitempty"`
	ValueCell      *CellRef    `json:"value_cell,omitempty" yaml:"value_cell,omitempty"`
	RelationshipID string      `json:"relationship_id" yaml:"relationship_id"`
	Status         ApplyStatus `json:"status" yaml:"status"`
	AnchorMatches  int         `json:"anchor_matches" yaml:"anchor_matches"`
	PageNumber     int         `json:"page_number,omitempty" yaml:"page_number,omitempty"`
}

// Found reports whether the anchor was located and a value was read
func (a AppliedExtraction) Found() bool {
	return a.Status == ApplyMatched || a.Status == ApplyAmbiguousAnchor
}

// AnchorCount is how many relationships share one anchor pattern
type AnchorCount struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Count   int    `json:"count" yaml:"count"`
}

// RelationshipStats summarises the stored relationships
type RelationshipStats struct {
	Total            int                       `json:"total" yaml:"total"`
	Recent           int                       `json:"recent" yaml:"recent"` // created at or after the requested cut-off
	ByState          map[RelationshipState]int `json:"by_state" yaml:"by_state"`
	ByTemplate       map[string]int            `json:"by_template,omitempty" yaml:"by_template,omitempty"`
	TopAnchors       []AnchorCount             `json:"top_anchors" yaml:"top_anchors"`
	AveragePerAnchor float64                   `json:"average_per_anchor" yaml:"average_per_anchor"`
}
