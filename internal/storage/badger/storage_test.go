package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tabanchor/internal/common"
	"github.com/ternarybob/tabanchor/internal/interfaces"
	"github.com/ternarybob/tabanchor/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()
	db, err := NewBadgerDB(arbor.NewLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func relationship(id, template string, state models.RelationshipState, created time.Time) *models.RelationshipConfig {
	return &models.RelationshipConfig{
		RelationshipID: id,
		KeyName:        "total",
		AnchorPattern:  "Total",
		PatternType:    models.PatternLiteral,
		ValuePosition: models.ValuePosition{
			RelativePosition: models.PositionRight,
			Offset:           1,
			SameRow:          true,
		},
		FileTemplate: template,
		State:        state,
		Version:      1,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestRelationshipStorage_CRUD(t *testing.T) {
	storage := NewRelationshipStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, storage.SaveRelationship(ctx, relationship("rel_b", "invoice", models.StateSaved, base.Add(time.Minute))))
	require.NoError(t, storage.SaveRelationship(ctx, relationship("rel_a", "invoice", models.StateSaved, base)))
	require.NoError(t, storage.SaveRelationship(ctx, relationship("rel_c", "invoice", models.StateDraft, base.Add(2*time.Minute))))
	require.NoError(t, storage.SaveRelationship(ctx, relationship("rel_d", "receipt", models.StateSaved, base.Add(3*time.Minute))))

	assert.Error(t, storage.SaveRelationship(ctx, &models.RelationshipConfig{}))

	got, err := storage.GetRelationship(ctx, "rel_a")
	require.NoError(t, err)
	assert.Equal(t, "Total", got.AnchorPattern)
	assert.Equal(t, models.PositionRight, got.ValuePosition.RelativePosition)
	assert.True(t, got.CreatedAt.Equal(base))

	_, err = storage.GetRelationship(ctx, "rel_missing")
	assert.ErrorIs(t, err, interfaces.ErrRelationshipNotFound)

	all, err := storage.ListRelationships(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "rel_a", all[0].RelationshipID, "ordered by creation time")

	saved, err := storage.ListByTemplate(ctx, "invoice", models.StateSaved)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "rel_a", saved[0].RelationshipID)
	assert.Equal(t, "rel_b", saved[1].RelationshipID)

	anyState, err := storage.ListByTemplate(ctx, "invoice", "")
	require.NoError(t, err)
	assert.Len(t, anyState, 3)

	drafts, err := storage.ListByState(ctx, models.StateDraft)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "rel_c", drafts[0].RelationshipID)

	count, err := storage.CountRelationships(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	require.NoError(t, storage.DeleteRelationship(ctx, "rel_c"))
	require.NoError(t, storage.DeleteRelationship(ctx, "rel_c"), "deleting a missing id is not an error")
	count, err = storage.CountRelationships(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRelationshipStorage_UpsertReplaces(t *testing.T) {
	storage := NewRelationshipStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	cfg := relationship("rel_a", "invoice", models.StateDraft, time.Now())
	require.NoError(t, storage.SaveRelationship(ctx, cfg))

	cfg.State = models.StateSaved
	require.NoError(t, storage.SaveRelationship(ctx, cfg))

	got, err := storage.GetRelationship(ctx, "rel_a")
	require.NoError(t, err)
	assert.Equal(t, models.StateSaved, got.State)

	count, err := storage.CountRelationships(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func sampleResult() *models.ExtractionResult {
	grid := models.NewGridData(2, 2, []models.CellData{
		{Row: 0, Col: 0, Content: "Height", Type: models.CellTypeData},
		{Row: 0, Col: 1, Content: "181cm", Type: models.CellTypeData},
		{Row: 1, Col: 0, Content: "Weight", Type: models.CellTypeData},
		{Row: 1, Col: 1, Content: "", Type: models.CellTypeEmpty},
	})
	return &models.ExtractionResult{
		FileID:  "file_1",
		Backend: models.BackendTabula,
		Pages: []*models.PageTableData{{
			PageNumber: 1,
			Tables: []*models.TableData{{
				TableID:    "tbl_1",
				PageNumber: 1,
				Rows:       [][]string{{"Height", "181cm"}, {"Weight", ""}},
				Grid:       grid,
			}},
		}},
		TotalPages:  1,
		TotalTables: 1,
	}
}

func TestExtractionCache_PutGet(t *testing.T) {
	cache := NewExtractionCacheStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	_, err := cache.Get(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)

	require.NoError(t, cache.Put(ctx, "k1", sampleResult(), time.Hour))

	got, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "file_1", got.FileID)
	require.Len(t, got.AllTables(), 1)

	cell, ok := got.AllTables()[0].Grid.Cell(0, 1)
	require.True(t, ok)
	assert.Equal(t, "181cm", cell.Content)

	require.NoError(t, cache.Delete(ctx, "k1"))
	_, err = cache.Get(ctx, "k1")
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)
}

func TestExtractionCache_Expiry(t *testing.T) {
	cache := NewExtractionCacheStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "short", sampleResult(), time.Second))
	require.NoError(t, cache.Put(ctx, "forever", sampleResult(), 0))

	// badger TTLs have one-second resolution
	time.Sleep(2100 * time.Millisecond)

	_, err := cache.Get(ctx, "short")
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)

	_, err = cache.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestExtractionCache_Clear(t *testing.T) {
	db := newTestDB(t)
	cache := NewExtractionCacheStorage(db, arbor.NewLogger())
	rels := NewRelationshipStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, rels.SaveRelationship(ctx, relationship("rel_a", "invoice", models.StateSaved, time.Now())))
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, cache.Put(ctx, k, sampleResult(), time.Hour))
	}

	n, err := cache.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = cache.Get(ctx, "a")
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)

	count, err := rels.CountRelationships(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "clearing the cache leaves relationships alone")
}

func TestManager(t *testing.T) {
	m, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	defer m.Close()

	assert.NotNil(t, m.RelationshipStorage())
	assert.NotNil(t, m.ExtractionCacheStorage())
}
