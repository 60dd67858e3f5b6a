package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/tabanchor/internal/models"
)

// RelationshipStorage persists relationship configs
type RelationshipStorage interface {
	SaveRelationship(ctx context.Context, cfg *models.RelationshipConfig) error
	GetRelationship(ctx context.Context, id string) (*models.RelationshipConfig, error)
	ListRelationships(ctx context.Context) ([]*models.RelationshipConfig, error)
	ListByTemplate(ctx context.Context, template string, state models.RelationshipState) ([]*models.RelationshipConfig, error)
	ListByState(ctx context.Context, state models.RelationshipState) ([]*models.RelationshipConfig, error)
	DeleteRelationship(ctx context.Context, id string) error
	CountRelationships(ctx context.Context) (int, error)
}

// ExtractionCacheStorage caches extraction results with a time-to-live
type ExtractionCacheStorage interface {
	// Get returns ErrCacheMiss when the key is absent or expired
	Get(ctx context.Context, key string) (*models.ExtractionResult, error)
	Put(ctx context.Context, key string, result *models.ExtractionResult, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) (int, error)
}

// StorageManager aggregates the storages behind one database
type StorageManager interface {
	RelationshipStorage() RelationshipStorage
	ExtractionCacheStorage() ExtractionCacheStorage
	Close() error
}
