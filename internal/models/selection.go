package models

import (
	"time"
)

// Requirements are the caller's document characteristics and priorities
type Requirements struct {
	KoreanText       bool `json:"korean_text"`
	AccuracyPriority bool `json:"accuracy_priority"`
	ComplexLayout    bool `json:"complex_layout"`
	LargeDocument    bool `json:"large_document"`
	HasGridLines     bool `json:"has_grid_lines"`
	SpeedPriority    bool `json:"speed_priority"`
}

// Recommendation is one ranked backend suggestion
type Recommendation struct {
	Backend       BackendID `json:"backend"`
	Score         int       `json:"score"`
	Justification string    `json:"justification"`
	Description   string    `json:"description"`
}

// BackendStatus is the availability of one backend at check time
type BackendStatus struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Availability is a snapshot of which backends can run
type Availability struct {
	Backends  map[BackendID]BackendStatus `json:"backends"`
	CheckedAt time.Time                   `json:"checked_at"`
}

// IsAvailable reports whether a backend was available in the snapshot
func (a Availability) IsAvailable(id BackendID) bool {
	s, ok := a.Backends[id]
	return ok && s.Available
}

// AvailableCount returns the number of available backends
func (a Availability) AvailableCount() int {
	n := 0
	for _, s := range a.Backends {
		if s.Available {
			n++
		}
	}
	return n
}
