package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tabanchor/internal/common"
	"github.com/ternarybob/tabanchor/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db            *BadgerDB
	relationships interfaces.RelationshipStorage
	cache         interfaces.ExtractionCacheStorage
	logger        arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:            db,
		relationships: NewRelationshipStorage(db, logger),
		cache:         NewExtractionCacheStorage(db, logger),
		logger:        logger,
	}

	logger.Debug().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

// RelationshipStorage returns the Relationship storage interface
func (m *Manager) RelationshipStorage() interfaces.RelationshipStorage {
	return m.relationships
}

// ExtractionCacheStorage returns the extraction cache storage interface
func (m *Manager) ExtractionCacheStorage() interfaces.ExtractionCacheStorage {
	return m.cache
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
