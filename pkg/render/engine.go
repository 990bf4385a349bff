package render

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/CTAG07/folio/pkg/minify"
)

// Engine executes views of one templating technology. Implementations
// hold their own parsed state; the pipeline talks to them only through
// this contract and pushes its configuration down at wiring time. An
// engine is free to ignore the parts that do not apply to it.
type Engine interface {
	// Name identifies the engine in configuration.
	Name() string

	// SetRoot points the engine at the views tree and reloads.
	// Engines that do not read the filesystem ignore it.
	SetRoot(dir string) error

	// ConfigureCache hands the engine the response-cache policy, for
	// engines that memoize rendered bodies internally.
	ConfigureCache(enabled bool, ttl time.Duration)

	// SetMinify hands the engine the minification options.
	SetMinify(opts minify.Options)

	// RegisterCollaborators exposes the collaborator registry to
	// engine-native constructs.
	RegisterCollaborators(reg *Registry)

	// IsCached reports whether the engine holds a fresh internal
	// response for the view.
	IsCached(view string) bool

	// Resolve maps a view name and type to the template the engine
	// would execute, relative to its root, and verifies it exists.
	// Missing views fail with a ViewNotFoundError.
	Resolve(view string, typ ViewType) (string, error)

	// Render executes the view into w with the shaped variable map.
	Render(ctx context.Context, w io.Writer, view string, typ ViewType, data map[string]any) error
}

// Engines is the set of registered engines a pipeline can dispatch
// to.
type Engines struct {
	mu      sync.RWMutex
	entries map[string]Engine
}

// NewEngines returns an empty engine set.
func NewEngines() *Engines {
	return &Engines{entries: make(map[string]Engine)}
}

// Register adds e under its name, failing on duplicates so wiring
// mistakes surface at startup.
func (s *Engines) Register(e Engine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[e.Name()]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateEngine, e.Name())
	}
	s.entries[e.Name()] = e
	return nil
}

// Get returns the engine registered under name.
func (s *Engines) Get(name string) (Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEngineUnavailable, name)
	}
	return e, nil
}

// All returns the registered engines ordered by name.
func (s *Engines) All() []Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.entries))
	for n := range s.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]Engine, 0, len(names))
	for _, n := range names {
		out = append(out, s.entries[n])
	}
	return out
}
