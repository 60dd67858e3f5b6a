// -----------------------------------------------------------------------
// Confidence Scorer - Table-level confidence in [0, 1]
// -----------------------------------------------------------------------

package scoring

import (
	"math"

	"github.com/ternarybob/tabanchor/internal/common"
	"github.com/ternarybob/tabanchor/internal/models"
)

// Weights combine the three confidence signals
type Weights struct {
	Backend    float64
	Regularity float64
	Density    float64
}

// DefaultWeights returns 0.5 backend, 0.3 regularity, 0.2 density
func DefaultWeights() Weights {
	return Weights{Backend: 0.5, Regularity: 0.3, Density: 0.2}
}

// normalized rescales the weights to sum to 1, ignoring the backend weight when
// no native confidence is available
func (w Weights) normalized(withBackend bool) Weights {
	if w.Backend < 0 || w.Regularity < 0 || w.Density < 0 {
		w = DefaultWeights()
	}
	if !withBackend {
		w.Backend = 0
	}
	sum := w.Backend + w.Regularity + w.Density
	if sum <= 0 {
		if withBackend {
			return DefaultWeights()
		}
		return Weights{Regularity: 0.6, Density: 0.4}
	}
	return Weights{Backend: w.Backend / sum, Regularity: w.Regularity / sum, Density: w.Density / sum}
}

// Breakdown is a scored table with its component signals
type Breakdown struct {
	Confidence        float64
	Regularity        float64
	Density           float64
	BackendConfidence *float64
}

// Scorer computes table confidence. It holds no mutable state.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer from configuration
func NewScorer(cfg common.ScoringConfig) *Scorer {
	return &Scorer{weights: Weights{
		Backend:    cfg.BackendWeight,
		Regularity: cfg.RegularityWeight,
		Density:    cfg.DensityWeight,
	}}
}

// NewDefaultScorer creates a scorer with the default weights
func NewDefaultScorer() *Scorer {
	return &Scorer{weights: DefaultWeights()}
}

// Score returns the table confidence in [0, 1].
// A nil or NaN native confidence means the backend did not report one.
func (s *Scorer) Score(table *models.TableData, native *float64) float64 {
	return s.Evaluate(table, native).Confidence
}

// Evaluate scores the table and returns the component signals
func (s *Scorer) Evaluate(table *models.TableData, native *float64) Breakdown {
	if table == nil {
		return Breakdown{}
	}

	b := Breakdown{
		Regularity: Regularity(rowLengths(table)),
		Density:    clamp01(1 - table.Metadata.EmptyCellRatio),
	}

	hasNative := native != nil && !math.IsNaN(*native)
	w := s.weights.normalized(hasNative)

	score := w.Regularity*b.Regularity + w.Density*b.Density
	if hasNative {
		n := clamp01(*native)
		b.BackendConfidence = &n
		score += w.Backend * n
	}

	b.Confidence = clamp01(score)
	return b
}

// Score scores a table with the default weights
func Score(table *models.TableData, native *float64) float64 {
	return NewDefaultScorer().Score(table, native)
}

// Regularity is the fraction of rows whose length equals the modal row length.
// Ties between modes go to the longer length. No rows scores 0.
func Regularity(lengths []int) float64 {
	if len(lengths) == 0 {
		return 0
	}

	counts := make(map[int]int)
	for _, l := range lengths {
		counts[l]++
	}

	mode, best := 0, -1
	for l, n := range counts {
		if n > best || (n == best && l > mode) {
			mode, best = l, n
		}
	}

	return float64(best) / float64(len(lengths))
}

// rowLengths prefers the pre-padding lengths recorded by the normalizer
func rowLengths(table *models.TableData) []int {
	if len(table.SourceRowLengths) > 0 {
		return table.SourceRowLengths
	}
	if table.Grid == nil {
		return nil
	}
	lengths := make([]int, table.Grid.Rows)
	for i := range lengths {
		lengths[i] = table.Grid.Cols
	}
	return lengths
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
