// Package source holds the adapter capability contract and the name->adapter
// registry, generalized from the teacher's internal/scanner.Registry
// (single Arxiv strategy) into the closed family of four provider adapters
// named in spec §4.2.
package source

import (
	"fmt"
	"sort"

	"github.com/archivecast/podgen/internal/ports"
)

// Registry maps a configured source name to its adapter implementation.
type Registry struct {
	adapters map[string]ports.SourceAdapter
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: map[string]ports.SourceAdapter{}}
}

// Register adds or replaces an adapter under its own Name().
func (r *Registry) Register(adapter ports.SourceAdapter) {
	if r.adapters == nil {
		r.adapters = map[string]ports.SourceAdapter{}
	}
	r.adapters[adapter.Name()] = adapter
}

// Resolve returns the named adapter or an error if it isn't registered.
func (r *Registry) Resolve(name string) (ports.SourceAdapter, error) {
	if a, ok := r.adapters[name]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("source adapter %q is not registered", name)
}

// All returns every registered adapter, for fan-out.
func (r *Registry) All() []ports.SourceAdapter {
	out := make([]ports.SourceAdapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}

// Names returns every registered adapter name, sorted for deterministic
// logging/output.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
