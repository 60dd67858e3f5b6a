package models

import (
	"fmt"
	"strconv"
	"strings"
)

// BackendID identifies an extraction backend
type BackendID string

const (
	BackendPlumber BackendID = "plumber"
	BackendTabula  BackendID = "tabula"
	BackendLattice BackendID = "lattice"
)

// BackendInfo describes a backend for listings and recommendations
type BackendInfo struct {
	ID          BackendID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Library     string    `json:"library"`
	Mode        string    `json:"mode"` // used in extraction_method, e.g. "tabula_stream"
}

// Method returns the extraction_method label for tables produced by the backend
func (b BackendInfo) Method() string {
	return fmt.Sprintf("%s_%s", b.ID, b.Mode)
}

// BackendOptions is an opaque per-backend option map.
// Values may be native types or strings from the command line.
type BackendOptions map[string]any

// Merge returns a copy of o with override applied on top
func (o BackendOptions) Merge(override BackendOptions) BackendOptions {
	out := make(BackendOptions, len(o)+len(override))
	for k, v := range o {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

// Float returns a numeric option or def when absent or unparseable
func (o BackendOptions) Float(key string, def float64) float64 {
	switch v := o[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

// Int returns an integer option or def when absent or unparseable
func (o BackendOptions) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

// Bool returns a boolean option or def when absent or unparseable
func (o BackendOptions) Bool(key string, def bool) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// RawMerge is a merged region reported by a backend, in raw row/col coordinates
type RawMerge struct {
	Row     int `json:"row"`
	Col     int `json:"col"`
	RowSpan int `json:"row_span"`
	ColSpan int `json:"col_span"`
}

// RawTable is backend output before normalization. Rows may be ragged.
type RawTable struct {
	Rows             [][]string `json:"rows"`
	Merges           []RawMerge `json:"merges,omitempty"`
	HeaderRows       []int      `json:"header_rows,omitempty"` // rows the backend flagged as header
	BoundingBox      []float64  `json:"bounding_box,omitempty"`
	NativeConfidence *float64   `json:"native_confidence,omitempty"`
	PageNumber       int        `json:"page_number"`
	PageWidth        float64    `json:"page_width,omitempty"`
	PageHeight       float64    `json:"page_height,omitempty"`
	Method           string     `json:"method"`
	ProcessingTime   float64    `json:"processing_time_seconds"`
}

// RawExtraction is everything a backend produced for one document
type RawExtraction struct {
	Backend   BackendID  `json:"backend"`
	PageCount int        `json:"page_count"`
	Tables    []RawTable `json:"tables"`
	// SkippedTables counts malformed tables dropped by the backend,
	// SkippedPages pages that failed as a whole
	SkippedTables int      `json:"skipped_tables"`
	SkippedPages  int      `json:"skipped_pages"`
	Warnings      []string `json:"warnings,omitempty"`
}

// Warn records a non-fatal problem
func (r *RawExtraction) Warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
