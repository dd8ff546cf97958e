package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"curator/internal/media"
)

// ShapeForLot returns the canonical request shape for a full metadata fetch
// of the given lot. Sources serving a single lot may ignore the shape;
// multi-lot sources branch on it. Adapters may define further shapes (search
// pages, edition lists) of their own.
func ShapeForLot(lot media.Lot) string { return string(lot) }

// Provider is the capability every metadata source implements. FetchRaw
// performs I/O under the shared limits; Normalize is pure and side-effect
// free so it can be unit tested against crafted payloads.
type Provider interface {
	Source() media.Source
	Supports(lot media.Lot) bool
	FetchRaw(ctx context.Context, identifier, shape string) ([]byte, error)
	Normalize(raw []byte, lot media.Lot) (*media.Record, error)
}

// Searcher is implemented by sources that expose free-text search.
type Searcher interface {
	Search(ctx context.Context, query string, page int) ([]media.SearchItem, error)
}

// Registry dispatches by source tag.
type Registry struct {
	mu        sync.RWMutex
	providers map[media.Source]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[media.Source]Provider)}
}

// Register adds or replaces the adapter for its source.
func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Source()] = p
}

// Lookup returns the adapter registered for source.
func (r *Registry) Lookup(source media.Source) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	return p, nil
}

// ForLot returns every registered adapter that serves lot, in stable source
// order.
func (r *Registry) ForLot(lot media.Lot) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []Provider
	for _, p := range r.providers {
		if p.Supports(lot) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Source() < matched[j].Source()
	})
	return matched
}

// Sources lists the registered source tags in stable order.
func (r *Registry) Sources() []media.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sources := make([]media.Source, 0, len(r.providers))
	for source := range r.providers {
		sources = append(sources, source)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	return sources
}
