package backends

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tabanchor/internal/common"
	"github.com/ternarybob/tabanchor/internal/interfaces"
	"github.com/ternarybob/tabanchor/internal/models"
)

// Registry resolves backend adapters and their configured default options.
// It is owned by the caller and safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.BackendID]interfaces.BackendAdapter
	defaults map[models.BackendID]models.BackendOptions
	logger   arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.BackendProvider = (*Registry)(nil)

// NewRegistry builds the registry of built-in backends from configuration
func NewRegistry(config *common.Config, logger arbor.ILogger) *Registry {
	reg := &Registry{
		adapters: make(map[models.BackendID]interfaces.BackendAdapter),
		defaults: make(map[models.BackendID]models.BackendOptions),
		logger:   logger,
	}

	reg.Register(NewPlumber(config.BackendEnabled(string(models.BackendPlumber)), logger),
		config.BackendOptions(string(models.BackendPlumber)))
	reg.Register(NewTabula(config.BackendEnabled(string(models.BackendTabula)), logger),
		config.BackendOptions(string(models.BackendTabula)))
	reg.Register(NewLattice(config.BackendEnabled(string(models.BackendLattice)), logger),
		config.BackendOptions(string(models.BackendLattice)))

	return reg
}

// NewEmptyRegistry creates a registry with no adapters
func NewEmptyRegistry(logger arbor.ILogger) *Registry {
	return &Registry{
		adapters: make(map[models.BackendID]interfaces.BackendAdapter),
		defaults: make(map[models.BackendID]models.BackendOptions),
		logger:   logger,
	}
}

// Register adds or replaces an adapter with its default options
func (r *Registry) Register(adapter interfaces.BackendAdapter, defaults map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.ID()] = adapter
	r.defaults[adapter.ID()] = models.BackendOptions(defaults)
	r.logger.Debug().Str("backend", string(adapter.ID())).Msg("Backend registered")
}

// Adapter implements interfaces.BackendProvider
func (r *Registry) Adapter(id models.BackendID) (interfaces.BackendAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", interfaces.ErrUnknownBackend, id)
	}
	return a, nil
}

// Adapters implements interfaces.BackendProvider, ordered by id
func (r *Registry) Adapters() []interfaces.BackendAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]interfaces.BackendAdapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Options implements interfaces.BackendProvider: configured defaults with override on top
func (r *Registry) Options(id models.BackendID, override models.BackendOptions) models.BackendOptions {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults[id].Merge(override)
}
