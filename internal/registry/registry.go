// Package registry holds the immutable source table and the selector that
// turns request context into an ordered candidate chain.
package registry

import (
	"fmt"

	"github.com/streamforge/resolver/internal/core/domain"
)

// Registry is the immutable table of configured sources, built once at
// startup from configuration plus the extractor table.
type Registry struct {
	byID    map[string]*domain.SourceConfig
	ordered []*domain.SourceConfig
}

// Build binds each source's configured extractor name to a function from
// the table. A source naming an unknown extractor is a startup error, not
// a runtime surprise.
func Build(sources []domain.SourceConfig, extractors map[string]domain.Extractor) (*Registry, error) {
	r := &Registry{
		byID:    make(map[string]*domain.SourceConfig, len(sources)),
		ordered: make([]*domain.SourceConfig, 0, len(sources)),
	}

	for i := range sources {
		src := sources[i] // copy; the registry owns its configs
		ext, ok := extractors[src.ExtractorName]
		if !ok {
			return nil, fmt.Errorf("source %q references unknown extractor %q", src.ID, src.ExtractorName)
		}
		src.Extractor = ext

		if _, dup := r.byID[src.ID]; dup {
			return nil, fmt.Errorf("duplicate source id %q", src.ID)
		}
		r.byID[src.ID] = &src
		r.ordered = append(r.ordered, &src)
	}

	return r, nil
}

// Get returns the source with the given id.
func (r *Registry) Get(id string) (*domain.SourceConfig, bool) {
	src, ok := r.byID[id]
	return src, ok
}

// All returns every source in configuration order.
func (r *Registry) All() []*domain.SourceConfig {
	out := make([]*domain.SourceConfig, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	return len(r.ordered)
}
