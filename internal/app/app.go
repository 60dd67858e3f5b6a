// -----------------------------------------------------------------------
// Application wiring - storage, backends and engine services
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tabanchor/internal/backends"
	"github.com/ternarybob/tabanchor/internal/common"
	"github.com/ternarybob/tabanchor/internal/interfaces"
	"github.com/ternarybob/tabanchor/internal/models"
	"github.com/ternarybob/tabanchor/internal/services/extraction"
	"github.com/ternarybob/tabanchor/internal/services/normalizer"
	"github.com/ternarybob/tabanchor/internal/services/relationships"
	"github.com/ternarybob/tabanchor/internal/services/report"
	"github.com/ternarybob/tabanchor/internal/services/scoring"
	"github.com/ternarybob/tabanchor/internal/services/selector"
	"github.com/ternarybob/tabanchor/internal/storage"
)

// AutoBackend asks the selector to pick the backend
const AutoBackend = "auto"

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Backends
	Registry     *backends.Registry
	Availability *selector.AvailabilityCache
	Selector     *selector.Selector

	// Engine
	Scorer     *scoring.Scorer
	Normalizer *normalizer.Normalizer
	Matcher    *relationships.Matcher

	// Services
	ExtractionService   *extraction.Service
	RelationshipService *relationships.Service
	ReportService       *report.Service
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Debug().
		Str("default_backend", cfg.Extraction.DefaultBackend).
		Bool("cache_enabled", cfg.Extraction.CacheEnabled).
		Int("backends", len(app.Registry.Adapters())).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices builds the engine bottom-up: backends, scorer, normalizer, matcher, services
func (a *App) initServices() error {
	a.Registry = backends.NewRegistry(a.Config, a.Logger)
	a.Availability = selector.NewAvailabilityCache(a.Registry.Adapters, a.Logger)
	a.Selector = selector.NewSelector(a.Availability)

	a.Scorer = scoring.NewScorer(a.Config.Scoring)
	a.Normalizer = normalizer.NewNormalizer(a.Config.Normalizer, a.Scorer, a.Logger)
	a.Matcher = relationships.NewMatcher(a.Config.Matching)

	opts, err := extraction.OptionsFromConfig(a.Config)
	if err != nil {
		return err
	}
	a.ExtractionService = extraction.NewService(
		a.Registry,
		a.Normalizer,
		a.StorageManager.ExtractionCacheStorage(),
		opts,
		a.Logger,
	)

	a.RelationshipService = relationships.NewService(
		a.StorageManager.RelationshipStorage(),
		a.Matcher,
		a.Logger,
	)

	a.ReportService = report.NewService(a.Logger)

	a.Logger.Debug().Msg("Services initialized")
	return nil
}

// ResolveBackend maps a requested backend id to a runnable one.
// An empty request uses the configured default; "auto" asks the selector.
func (a *App) ResolveBackend(ctx context.Context, requested string, req models.Requirements) (models.BackendID, error) {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested == "" {
		requested = a.Config.Extraction.DefaultBackend
	}
	if requested != AutoBackend {
		return models.BackendID(requested), nil
	}

	fallback := models.BackendID(a.Config.Extraction.DefaultBackend)
	if fallback == AutoBackend {
		fallback = models.BackendTabula
	}
	id, err := a.Selector.Best(ctx, req, fallback)
	if err != nil {
		return "", err
	}
	a.Logger.Debug().Str("backend", string(id)).Msg("Backend selected")
	return id, nil
}

// Close releases the storage layer
func (a *App) Close() error {
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
			return err
		}
		a.Logger.Debug().Msg("Storage closed")
	}
	return nil
}
