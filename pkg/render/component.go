package render

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/a-h/templ"

	"github.com/CTAG07/folio/pkg/minify"
)

// ComponentName is the engine name compiled component views register
// under.
const ComponentName = "component"

// ComponentFunc builds the component for one render call from the
// collaborator registry and the shaped variable map.
type ComponentFunc func(reg *Registry, data map[string]any) templ.Component

// ComponentEngine serves pre-compiled component views. Each view
// registers a constructor up front; Render builds the component and
// streams it. The engine memoizes rendered bodies per view and
// variable fingerprint when caching is configured, which serves
// deployments that run without a response store.
type ComponentEngine struct {
	views    map[string]ComponentFunc
	memo     map[string]componentMemo
	reg      *Registry
	cacheOn  bool
	cacheTTL time.Duration
	mu       sync.RWMutex
}

type componentMemo struct {
	body    []byte
	savedAt time.Time
}

// NewComponentEngine returns an engine with no views registered.
func NewComponentEngine() *ComponentEngine {
	return &ComponentEngine{
		views: make(map[string]ComponentFunc),
		memo:  make(map[string]componentMemo),
	}
}

// Name identifies the engine in configuration.
func (e *ComponentEngine) Name() string { return ComponentName }

// SetRoot is a no-op: components are compiled in, not read from disk.
func (e *ComponentEngine) SetRoot(string) error { return nil }

// ConfigureCache switches the internal body memo. Disabling drops any
// memoized bodies.
func (e *ComponentEngine) ConfigureCache(enabled bool, ttl time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cacheOn = enabled
	e.cacheTTL = ttl
	if !enabled {
		e.memo = make(map[string]componentMemo)
	}
}

// SetMinify is a no-op: component output minifies in the pipeline's
// post-processing stage.
func (e *ComponentEngine) SetMinify(minify.Options) {}

// RegisterCollaborators stores the registry handed to every component
// constructor.
func (e *ComponentEngine) RegisterCollaborators(reg *Registry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reg = reg
}

// Register binds view to its component constructor. Double
// registration fails with ErrDuplicateView so wiring mistakes surface
// at startup.
func (e *ComponentEngine) Register(view string, fn ComponentFunc) error {
	if err := ValidateViewName(view); err != nil {
		return err
	}
	if fn == nil {
		return errors.New("nil component func")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.views[view]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateView, view)
	}
	e.views[view] = fn
	return nil
}

// Views returns the registered view names, sorted.
func (e *ComponentEngine) Views() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.views))
	for v := range e.views {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// IsCached reports whether any fresh memoized body exists for the
// view.
func (e *ComponentEngine) IsCached(view string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.cacheOn {
		return false
	}
	prefix := view + "\x00"
	now := time.Now()
	for key, m := range e.memo {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix && e.fresh(m, now) {
			return true
		}
	}
	return false
}

// Resolve verifies the view is registered. The returned path is a
// synthetic identifier; nothing on disk backs it.
func (e *ComponentEngine) Resolve(view string, _ ViewType) (string, error) {
	if err := ValidateViewName(view); err != nil {
		return "", err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, ok := e.views[view]; !ok {
		return "", &ViewNotFoundError{View: view, Path: "component:" + view}
	}
	return "component:" + view, nil
}

// Render builds the view's component and streams it into w, serving a
// fresh memoized body instead when one exists.
func (e *ComponentEngine) Render(ctx context.Context, w io.Writer, view string, _ ViewType, data map[string]any) error {
	e.mu.RLock()
	fn, ok := e.views[view]
	reg := e.reg
	cacheOn := e.cacheOn
	e.mu.RUnlock()
	if !ok {
		return &ViewNotFoundError{View: view, Path: "component:" + view}
	}

	key := view + "\x00" + fingerprint(data)
	if cacheOn {
		if body, hit := e.lookupMemo(key); hit {
			_, err := w.Write(body)
			return err
		}
	}

	var buf bytes.Buffer
	if err := fn(reg, data).Render(ctx, &buf); err != nil {
		return fmt.Errorf("render component %s: %w", view, err)
	}
	if cacheOn {
		e.storeMemo(key, buf.Bytes())
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func (e *ComponentEngine) lookupMemo(key string) ([]byte, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.memo[key]
	if !ok || !e.fresh(m, time.Now()) {
		return nil, false
	}
	return m.body, true
}

func (e *ComponentEngine) storeMemo(key string, body []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.memo[key] = componentMemo{body: body, savedAt: time.Now()}
}

// fresh must hold at least a read lock.
func (e *ComponentEngine) fresh(m componentMemo, now time.Time) bool {
	if e.cacheTTL <= 0 {
		return true
	}
	return now.Before(m.savedAt.Add(e.cacheTTL))
}

// fingerprint reduces a variable map to a stable digest so memo keys
// distinguish calls by their data.
func fingerprint(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v;", k, data[k])
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
