package selector

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tabanchor/internal/interfaces"
	"github.com/ternarybob/tabanchor/internal/models"
)

// AvailabilityCache holds a snapshot of backend availability.
// It is owned by the caller; there is no process-wide instance.
// Recomputing is idempotent, so concurrent refreshes are harmless.
type AvailabilityCache struct {
	mu       sync.Mutex
	adapters func() []interfaces.BackendAdapter
	snapshot *models.Availability
	logger   arbor.ILogger
}

// NewAvailabilityCache creates a cache that checks the adapters returned by adapters
func NewAvailabilityCache(adapters func() []interfaces.BackendAdapter, logger arbor.ILogger) *AvailabilityCache {
	return &AvailabilityCache{adapters: adapters, logger: logger}
}

// Snapshot returns the cached availability, computing it on first use
func (c *AvailabilityCache) Snapshot(ctx context.Context) (models.Availability, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot != nil {
		return *c.snapshot, nil
	}
	return c.computeLocked(ctx)
}

// Refresh recomputes the snapshot unconditionally
func (c *AvailabilityCache) Refresh(ctx context.Context) (models.Availability, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.computeLocked(ctx)
}

// Invalidate drops the snapshot; the next Snapshot call recomputes it
func (c *AvailabilityCache) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()
}

func (c *AvailabilityCache) computeLocked(ctx context.Context) (models.Availability, error) {
	avail := models.Availability{Backends: make(map[models.BackendID]models.BackendStatus)}

	for _, a := range c.adapters() {
		if err := ctx.Err(); err != nil {
			return models.Availability{}, err
		}

		status := models.BackendStatus{Available: true}
		if err := a.Available(); err != nil {
			status = models.BackendStatus{Available: false, Reason: err.Error()}
			if c.logger != nil {
				c.logger.Debug().Str("backend", string(a.ID())).Err(err).Msg("Backend unavailable")
			}
		}
		avail.Backends[a.ID()] = status
	}
	avail.CheckedAt = time.Now()

	c.snapshot = &avail
	if c.logger != nil {
		c.logger.Debug().
			Int("available", avail.AvailableCount()).
			Int("total", len(avail.Backends)).
			Msg("Backend availability computed")
	}
	return avail, nil
}

// Selector recommends backends using a caller-owned availability cache
type Selector struct {
	cache *AvailabilityCache
}

// NewSelector creates a selector over the cache
func NewSelector(cache *AvailabilityCache) *Selector {
	return &Selector{cache: cache}
}

// Recommend ranks available backends for the requirements
func (s *Selector) Recommend(ctx context.Context, req models.Requirements) ([]models.Recommendation, error) {
	avail, err := s.cache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return Recommend(req, avail), nil
}

// Best returns the top recommendation, or fallback when nothing is available
func (s *Selector) Best(ctx context.Context, req models.Requirements, fallback models.BackendID) (models.BackendID, error) {
	recs, err := s.Recommend(ctx, req)
	if err != nil {
		return "", err
	}
	if len(recs) == 0 {
		return fallback, nil
	}
	return recs[0].Backend, nil
}

// Availability returns the cached snapshot
func (s *Selector) Availability(ctx context.Context) (models.Availability, error) {
	return s.cache.Snapshot(ctx)
}
