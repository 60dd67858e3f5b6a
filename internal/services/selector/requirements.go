package selector

import (
	"strings"

	"github.com/ternarybob/tabanchor/internal/models"
)

// ParseRequirements reads a loosely typed requirements map.
// Values may be bools or strings such as "true", "yes", "high". Unknown keys are ignored.
func ParseRequirements(raw map[string]any) models.Requirements {
	return models.Requirements{
		KoreanText:       truthy(raw["korean_text"]),
		AccuracyPriority: truthy(raw["accuracy_priority"]),
		ComplexLayout:    truthy(raw["complex_layout"]),
		LargeDocument:    truthy(raw["large_document"]),
		HasGridLines:     truthy(raw["has_grid_lines"]),
		SpeedPriority:    truthy(raw["speed_priority"]),
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "high", "1", "on":
			return true
		}
	}
	return false
}
