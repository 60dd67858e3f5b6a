package selector

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tabanchor/internal/interfaces"
	"github.com/ternarybob/tabanchor/internal/models"
)

type fakeAdapter struct {
	id     models.BackendID
	err    error
	checks *int64
}

func (f *fakeAdapter) ID() models.BackendID     { return f.id }
func (f *fakeAdapter) Info() models.BackendInfo { return models.BackendInfo{ID: f.id} }
func (f *fakeAdapter) Available() error {
	if f.checks != nil {
		atomic.AddInt64(f.checks, 1)
	}
	return f.err
}
func (f *fakeAdapter) Extract(context.Context, string, models.BackendOptions) (*models.RawExtraction, error) {
	return &models.RawExtraction{Backend: f.id}, nil
}

func allAvailable() models.Availability {
	return models.Availability{Backends: map[models.BackendID]models.BackendStatus{
		models.BackendPlumber: {Available: true},
		models.BackendTabula:  {Available: true},
		models.BackendLattice: {Available: true},
	}}
}

func TestParseRequirements(t *testing.T) {
	req := ParseRequirements(map[string]any{
		"korean_text":       true,
		"accuracy_priority": "high",
		"complex_layout":    "no",
		"large_document":    "yes",
		"has_grid_lines":    1,
		"speed_priority":    "low",
		"unknown":           true,
	})

	assert.Equal(t, models.Requirements{
		KoreanText:       true,
		AccuracyPriority: true,
		LargeDocument:    true,
		HasGridLines:     true,
	}, req)

	assert.Equal(t, models.Requirements{}, ParseRequirements(nil))
}

func TestRecommend_Defaults(t *testing.T) {
	recs := Recommend(models.Requirements{}, allAvailable())
	require.Len(t, recs, 3)

	assert.Equal(t, models.BackendPlumber, recs[0].Backend)
	assert.Equal(t, 40, recs[0].Score)
	// lattice and tabula tie at 30 and are ordered by id
	assert.Equal(t, models.BackendLattice, recs[1].Backend)
	assert.Equal(t, models.BackendTabula, recs[2].Backend)
	for _, r := range recs {
		assert.NotEmpty(t, r.Justification)
		assert.NotEmpty(t, r.Description)
	}
}

func TestRecommend_Requirements(t *testing.T) {
	tests := []struct {
		name string
		req  models.Requirements
		want models.BackendID
	}{
		{"korean text", models.Requirements{KoreanText: true}, models.BackendPlumber},
		{"ruled accurate tables", models.Requirements{AccuracyPriority: true, HasGridLines: true}, models.BackendLattice},
		{"speed", models.Requirements{SpeedPriority: true, LargeDocument: true}, models.BackendTabula},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := Recommend(tt.req, allAvailable())
			require.NotEmpty(t, recs)
			assert.Equal(t, tt.want, recs[0].Backend)
		})
	}
}

func TestRecommend_OnlyAvailable(t *testing.T) {
	avail := models.Availability{Backends: map[models.BackendID]models.BackendStatus{
		models.BackendPlumber: {Available: false, Reason: "disabled"},
		models.BackendTabula:  {Available: true},
	}}

	recs := Recommend(models.Requirements{KoreanText: true}, avail)
	require.Len(t, recs, 1)
	assert.Equal(t, models.BackendTabula, recs[0].Backend)

	assert.Empty(t, Recommend(models.Requirements{}, models.Availability{}))
}

func TestAvailabilityCache_SnapshotIsCached(t *testing.T) {
	var checks int64
	adapters := []interfaces.BackendAdapter{
		&fakeAdapter{id: models.BackendPlumber, checks: &checks},
		&fakeAdapter{id: models.BackendTabula, err: errors.New("missing"), checks: &checks},
	}
	cache := NewAvailabilityCache(func() []interfaces.BackendAdapter { return adapters }, arbor.NewLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Snapshot(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(2), atomic.LoadInt64(&checks), "computed once")

	snap, err := cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.IsAvailable(models.BackendPlumber))
	assert.False(t, snap.IsAvailable(models.BackendTabula))
	assert.Equal(t, "missing", snap.Backends[models.BackendTabula].Reason)

	cache.Invalidate()
	_, err = cache.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), atomic.LoadInt64(&checks))

	_, err = cache.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), atomic.LoadInt64(&checks))
}

func TestSelector_Best(t *testing.T) {
	adapters := []interfaces.BackendAdapter{&fakeAdapter{id: models.BackendTabula}}
	sel := NewSelector(NewAvailabilityCache(func() []interfaces.BackendAdapter { return adapters }, arbor.NewLogger()))

	best, err := sel.Best(context.Background(), models.Requirements{KoreanText: true}, models.BackendPlumber)
	require.NoError(t, err)
	assert.Equal(t, models.BackendTabula, best)

	empty := NewSelector(NewAvailabilityCache(func() []interfaces.BackendAdapter { return nil }, arbor.NewLogger()))
	best, err = empty.Best(context.Background(), models.Requirements{}, models.BackendPlumber)
	require.NoError(t, err)
	assert.Equal(t, models.BackendPlumber, best)
}

func TestCapabilityMatrix(t *testing.T) {
	rows := CapabilityMatrix(allAvailable())
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.True(t, r.Available)
		assert.NotEmpty(t, r.Accuracy)
	}
}
