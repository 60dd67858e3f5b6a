package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/tabanchor/internal/interfaces"
	"github.com/ternarybob/tabanchor/internal/models"
)

// RelationshipStorage implements the RelationshipStorage interface for Badger
type RelationshipStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRelationshipStorage creates a new RelationshipStorage instance
func NewRelationshipStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RelationshipStorage {
	return &RelationshipStorage{
		db:     db,
		logger: logger,
	}
}

func (s *RelationshipStorage) SaveRelationship(ctx context.Context, cfg *models.RelationshipConfig) error {
	if cfg.RelationshipID == "" {
		return fmt.Errorf("relationship ID is required")
	}

	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now()
	}
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = cfg.CreatedAt
	}

	if err := s.db.Store().Upsert(cfg.RelationshipID, cfg); err != nil {
		return fmt.Errorf("failed to save relationship: %w", err)
	}
	return nil
}

func (s *RelationshipStorage) GetRelationship(ctx context.Context, id string) (*models.RelationshipConfig, error) {
	var cfg models.RelationshipConfig
	if err := s.db.Store().Get(id, &cfg); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrRelationshipNotFound, id)
		}
		return nil, fmt.Errorf("failed to get relationship: %w", err)
	}
	return &cfg, nil
}

func (s *RelationshipStorage) ListRelationships(ctx context.Context) ([]*models.RelationshipConfig, error) {
	return s.find(badgerhold.Where("RelationshipID").Ne("").SortBy("CreatedAt", "RelationshipID"))
}

func (s *RelationshipStorage) ListByTemplate(ctx context.Context, template string, state models.RelationshipState) ([]*models.RelationshipConfig, error) {
	query := badgerhold.Where("FileTemplate").Eq(template)
	if state != "" {
		query = query.And("State").Eq(state)
	}
	return s.find(query.SortBy("CreatedAt", "RelationshipID"))
}

func (s *RelationshipStorage) ListByState(ctx context.Context, state models.RelationshipState) ([]*models.RelationshipConfig, error) {
	return s.find(badgerhold.Where("State").Eq(state).SortBy("CreatedAt", "RelationshipID"))
}

func (s *RelationshipStorage) find(query *badgerhold.Query) ([]*models.RelationshipConfig, error) {
	var cfgs []models.RelationshipConfig
	if err := s.db.Store().Find(&cfgs, query); err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}

	result := make([]*models.RelationshipConfig, len(cfgs))
	for i := range cfgs {
		result[i] = &cfgs[i]
	}
	return result, nil
}

func (s *RelationshipStorage) DeleteRelationship(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.RelationshipConfig{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete relationship: %w", err)
	}
	return nil
}

func (s *RelationshipStorage) CountRelationships(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.RelationshipConfig{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count relationships: %w", err)
	}
	return int(count), nil
}
