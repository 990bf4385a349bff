package render

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry holds the host objects templates may call on in proxy
// isolation. Registration happens during wiring, before any render;
// templates only ever read.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]any
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]any)}
}

// Register stores v under alias. The alias must be non-blank and may
// not be the reserved accessor name; double registration fails with
// ErrDuplicateAlias so wiring mistakes surface at startup.
func (r *Registry) Register(alias string, v any) error {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return errors.New("empty collaborator alias")
	}
	if alias == ReservedAccessor {
		return fmt.Errorf("%w: %q", ErrReservedName, alias)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[alias]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateAlias, alias)
	}
	r.entries[alias] = v
	return nil
}

// Get returns the collaborator under alias.
func (r *Registry) Get(alias string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[alias]
	return v, ok
}

// Use is the template-facing lookup: unlike Get it fails on an
// unknown alias, which aborts the executing template instead of
// handing it nil.
func (r *Registry) Use(alias string) (any, error) {
	if v, ok := r.Get(alias); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoAlias, alias)
}

// Aliases returns the registered aliases, sorted.
func (r *Registry) Aliases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for a := range r.entries {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
