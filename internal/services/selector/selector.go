// -----------------------------------------------------------------------
// Backend Selector - Requirement-driven backend recommendation
// -----------------------------------------------------------------------

package selector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/tabanchor/internal/models"
)

// bonus adds points when a requirement predicate holds
type bonus struct {
	applies func(models.Requirements) bool
	points  int
	reason  string
}

// capability is one row of the static capability matrix
type capability struct {
	id          models.BackendID
	base        int
	description string
	accuracy    string
	speed       string
	korean      string
	complex     string
	gridLines   string
	bonuses     []bonus
}

// matrix is hand-authored from observed backend behaviour
var matrix = []capability{
	{
		id:          models.BackendPlumber,
		base:        30,
		description: "Text-position extraction: words grouped into rows and columns by coordinates",
		accuracy:    "medium", speed: "medium", korean: "good", complex: "good", gridLines: "not required",
		bonuses: []bonus{
			{func(r models.Requirements) bool { return r.KoreanText }, 20, "reads Korean and other CJK text runs directly"},
			{func(r models.Requirements) bool { return r.ComplexLayout }, 15, "tolerates irregular and borderless layouts"},
			{func(r models.Requirements) bool { return !r.SpeedPriority }, 10, "thorough when speed is not a priority"},
		},
	},
	{
		id:          models.BackendLattice,
		base:        25,
		description: "Ruling-line grid detection: cells taken from drawn table borders",
		accuracy:    "high", speed: "medium", korean: "fair", complex: "fair", gridLines: "required",
		bonuses: []bonus{
			{func(r models.Requirements) bool { return r.AccuracyPriority }, 25, "cell boundaries come from drawn lines"},
			{func(r models.Requirements) bool { return r.HasGridLines }, 20, "uses the document's grid lines directly"},
			{func(r models.Requirements) bool { return !r.KoreanText }, 5, "no CJK text handling needed"},
		},
	},
	{
		id:          models.BackendTabula,
		base:        20,
		description: "Geometric table detection over text fragments and lines with a native confidence",
		accuracy:    "high", speed: "fast", korean: "fair", complex: "fair", gridLines: "optional",
		bonuses: []bonus{
			{func(r models.Requirements) bool { return r.SpeedPriority }, 20, "fastest backend"},
			{func(r models.Requirements) bool { return r.AccuracyPriority }, 15, "reports a detection confidence per table"},
			{func(r models.Requirements) bool { return r.LargeDocument }, 10, "scales to large documents"},
			{func(models.Requirements) bool { return true }, 10, "good general-purpose default"},
		},
	},
}

// Recommend ranks the backends available in the snapshot for the given requirements.
// Backends missing from or unavailable in the snapshot are never returned.
func Recommend(req models.Requirements, available models.Availability) []models.Recommendation {
	var out []models.Recommendation

	for _, c := range matrix {
		if !available.IsAvailable(c.id) {
			continue
		}

		score := c.base
		reasons := []string{fmt.Sprintf("base %d", c.base)}
		for _, b := range c.bonuses {
			if b.applies(req) {
				score += b.points
				reasons = append(reasons, fmt.Sprintf("+%d %s", b.points, b.reason))
			}
		}

		out = append(out, models.Recommendation{
			Backend:       c.id,
			Score:         score,
			Justification: strings.Join(reasons, "; "),
			Description:   c.description,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Backend < out[j].Backend
	})

	return out
}

// Description returns the capability description of a backend
func Description(id models.BackendID) string {
	for _, c := range matrix {
		if c.id == id {
			return c.description
		}
	}
	return ""
}

// CapabilityRow is one backend's entry in the comparison table
type CapabilityRow struct {
	Backend   models.BackendID `json:"backend"`
	Accuracy  string           `json:"accuracy"`
	Speed     string           `json:"speed"`
	Korean    string           `json:"korean_text"`
	Complex   string           `json:"complex_layout"`
	GridLines string           `json:"grid_lines"`
	Available bool             `json:"available"`
}

// CapabilityMatrix returns the static comparison of all known backends
func CapabilityMatrix(available models.Availability) []CapabilityRow {
	rows := make([]CapabilityRow, 0, len(matrix))
	for _, c := range matrix {
		rows = append(rows, CapabilityRow{
			Backend:   c.id,
			Accuracy:  c.accuracy,
			Speed:     c.speed,
			Korean:    c.korean,
			Complex:   c.complex,
			GridLines: c.gridLines,
			Available: available.IsAvailable(c.id),
		})
	}
	return rows
}
