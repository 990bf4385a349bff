package render

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	texttemplate "text/template"
	"time"

	"github.com/CTAG07/folio/pkg/layout"
	"github.com/CTAG07/folio/pkg/minify"
)

// NativeName is the engine name the default configuration points at.
const NativeName = "native"

// Template actions use square delimiters so that {{ name }} placeholder
// markers pass through execution untouched for the substitution layer.
const (
	actionOpen  = "[["
	actionClose = "]]"
)

// NativeEngine executes Go template view files from a directory tree.
// Views are named by their path relative to the root without the
// .tmpl.<ext> suffix; files named *.part.<ext> parse into the set as
// includable partials but are not addressable as views. HTML views run
// through html/template with contextual escaping, every other type
// through text/template.
//
// When a layout is set, html views compose through it: the view runs a
// capture pass that collects its sections, then the layout executes
// and pulls them in with yield and content. All methods are
// concurrent-safe; Refresh swaps the parsed sets atomically so
// in-flight renders finish on the old ones.
type NativeEngine struct {
	logger    *slog.Logger
	root      string
	layout    string
	baseHref  string
	assetHref string
	htmlSet   *template.Template
	textSet   *texttemplate.Template
	viewNames []string
	reg       *Registry
	minifyOpt minify.Options
	cacheOn   bool
	cacheTTL  time.Duration
	mu        sync.RWMutex
}

// NewNativeEngine creates the engine rooted at dir and performs an
// initial Refresh to load all view templates.
func NewNativeEngine(logger *slog.Logger, dir string) (*NativeEngine, error) {
	e := &NativeEngine{
		logger:    logger,
		baseHref:  "/",
		assetHref: "/assets/",
	}
	if err := e.SetRoot(dir); err != nil {
		return nil, err
	}
	logger.Info("Native engine initialized", "root", dir)
	return e, nil
}

// Name identifies the engine in configuration.
func (e *NativeEngine) Name() string { return NativeName }

// SetRoot points the engine at a new views tree and reloads. Setting
// the root it already has is a no-op; use Refresh to force a reload.
func (e *NativeEngine) SetRoot(dir string) error {
	clean := filepath.Clean(dir)
	if _, err := os.Stat(clean); err != nil {
		return fmt.Errorf("views root: %w", err)
	}
	e.mu.Lock()
	if clean == e.root {
		e.mu.Unlock()
		return nil
	}
	e.root = clean
	e.mu.Unlock()
	return e.Refresh()
}

// SetLayout names the view whose sections wrap html pages. An empty
// name disables composition and pages render standalone.
func (e *NativeEngine) SetLayout(view string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.layout = view
}

// SetHrefs configures the prefixes behind the href and asset template
// funcs.
func (e *NativeEngine) SetHrefs(base, asset string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.baseHref = base
	e.assetHref = asset
}

// ConfigureCache records the response-cache policy. Cached delivery
// for this engine lives in the pipeline's response store, so the
// values are informational here.
func (e *NativeEngine) ConfigureCache(enabled bool, ttl time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cacheOn = enabled
	e.cacheTTL = ttl
}

// SetMinify records the minification options. Output minification for
// this engine happens in the pipeline's post-processing stage.
func (e *NativeEngine) SetMinify(opts minify.Options) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.minifyOpt = opts
}

// RegisterCollaborators records the registry. Templates reach it
// through the data map in proxy isolation, so the engine only holds
// the reference.
func (e *NativeEngine) RegisterCollaborators(reg *Registry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reg = reg
}

// IsCached always reports false: the engine keeps no internal response
// memo, cached delivery is the pipeline's job.
func (e *NativeEngine) IsCached(string) bool { return false }

// Refresh reloads every template under the root. The new sets swap in
// atomically, so concurrent renders finish on the old ones. Parsed
// sets are never executed directly; each render clones them to bind
// its live funcs, which keeps html/template's clone-before-execute
// rule satisfied.
func (e *NativeEngine) Refresh() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Info("Loading view templates...", "root", e.root)

	htmlSet := template.New("").Delims(actionOpen, actionClose).Funcs(parseFuncs(true))
	textSet := texttemplate.New("").Delims(actionOpen, actionClose).Funcs(parseFuncs(false))

	var views []string
	err := filepath.WalkDir(e.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(e.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		base := path.Base(rel)
		isView := strings.Contains(base, ".tmpl.")
		if !isView && !strings.Contains(base, ".part.") {
			return nil
		}
		raw, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read template %s: %w", rel, err)
		}
		if strings.HasSuffix(rel, ".html") {
			if _, err = htmlSet.New(rel).Parse(string(raw)); err != nil {
				return fmt.Errorf("parse template %s: %w", rel, err)
			}
		} else {
			if _, err = textSet.New(rel).Parse(string(raw)); err != nil {
				return fmt.Errorf("parse template %s: %w", rel, err)
			}
		}
		if isView {
			views = append(views, strings.SplitN(rel, ".tmpl.", 2)[0])
		}
		return nil
	})
	if err != nil {
		e.logger.Error("failed to load view templates", "error", err)
		return err
	}

	sort.Strings(views)
	if len(views) == 0 {
		e.logger.Warn("No view templates found under root", "root", e.root)
	}

	e.htmlSet = htmlSet
	e.textSet = textSet
	e.viewNames = views
	e.logger.Info("Loaded view templates", "views", len(views))
	return nil
}

// Views returns the addressable view names currently parsed, sorted.
// This mainly exists for concurrency-safety reasons.
func (e *NativeEngine) Views() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.viewNames))
	copy(out, e.viewNames)
	return out
}

// Root returns the views root the engine reads from.
// This mainly exists for concurrency-safety reasons as well.
func (e *NativeEngine) Root() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.root
}

// Resolve maps a view name and type to the template file the engine
// would execute, relative to the root. The template must be in the
// currently parsed set.
func (e *NativeEngine) Resolve(view string, typ ViewType) (string, error) {
	if err := ValidateViewName(view); err != nil {
		return "", err
	}
	rel := view + ".tmpl." + typ.Ext()
	e.mu.RLock()
	defer e.mu.RUnlock()
	var found bool
	if typ.HTML() {
		found = e.htmlSet != nil && e.htmlSet.Lookup(rel) != nil
	} else {
		found = e.textSet != nil && e.textSet.Lookup(rel) != nil
	}
	if !found {
		return "", &ViewNotFoundError{View: view, Path: filepath.Join(e.root, rel)}
	}
	return rel, nil
}

// Render produces the full response body for view. HTML views compose
// through the configured layout when one is set; other types, and the
// layout itself, render standalone through the compositor's whole
// pass, which leaves section text inline and substitutes placeholder
// markers.
func (e *NativeEngine) Render(ctx context.Context, w io.Writer, view string, typ ViewType, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.RLock()
	layoutName := e.layout
	e.mu.RUnlock()

	if typ.HTML() && layoutName != "" && view != layoutName {
		return e.renderComposed(w, layoutName, view, typ, data)
	}
	comp, err := e.Compositor(view, typ, data)
	if err != nil {
		return err
	}
	out, err := comp.Whole(nil)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

// renderComposed runs the view's capture pass eagerly, so structural
// errors surface even when the layout pulls nothing, then executes the
// layout with the section funcs bound.
func (e *NativeEngine) renderComposed(w io.Writer, layoutName, view string, typ ViewType, data map[string]any) error {
	layoutRel, err := e.Resolve(layoutName, typ)
	if err != nil {
		return err
	}
	comp, err := e.Compositor(view, typ, data)
	if err != nil {
		return err
	}
	if _, err = comp.Sections(nil); err != nil {
		return err
	}
	return e.executeTemplate(w, layoutRel, typ, data, layoutFuncs(comp, typ.HTML()))
}

// Compositor returns a section compositor bound to the view's file,
// ready for host-side reads: Section, Content, Whole and friends
// trigger the capture pass through this engine. The data map seeds
// both execution and placeholder substitution.
func (e *NativeEngine) Compositor(view string, typ ViewType, data map[string]any) (*layout.Compositor, error) {
	rel, err := e.Resolve(view, typ)
	if err != nil {
		return nil, err
	}
	comp := layout.New(&nativeExecutor{engine: e, typ: typ, rel: rel})
	if err = comp.Select(filepath.Join(e.Root(), rel)); err != nil {
		return nil, err
	}
	comp.SetVars(data)
	return comp, nil
}

// RenderString parses and executes a raw view string with the
// engine's function map, section declarations inert. This is ideal
// for previewing a view without saving it to disk.
func (e *NativeEngine) RenderString(w io.Writer, content string, typ ViewType, data map[string]any) error {
	funcs := e.execBase(typ)
	for k, v := range inertFuncs(typ.HTML()) {
		funcs[k] = v
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if typ.HTML() {
		set, err := e.htmlSet.Clone()
		if err != nil {
			return fmt.Errorf("clone template set: %w", err)
		}
		t, err := set.New("_string").Funcs(funcs).Parse(content)
		if err != nil {
			return fmt.Errorf("parse string view: %w", err)
		}
		return t.Execute(w, data)
	}
	set, err := e.textSet.Clone()
	if err != nil {
		return fmt.Errorf("clone template set: %w", err)
	}
	t, err := set.New("_string").Funcs(funcs).Parse(content)
	if err != nil {
		return fmt.Errorf("parse string view: %w", err)
	}
	return t.Execute(w, data)
}

// executeTemplate clones the parsed set and binds the live funcs, so
// concurrent renders never share execution state.
func (e *NativeEngine) executeTemplate(w io.Writer, rel string, typ ViewType, data map[string]any, live map[string]any) error {
	funcs := e.execBase(typ)
	for k, v := range live {
		funcs[k] = v
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if typ.HTML() {
		set, err := e.htmlSet.Clone()
		if err != nil {
			return fmt.Errorf("clone template set: %w", err)
		}
		return set.Funcs(funcs).ExecuteTemplate(w, rel, data)
	}
	set, err := e.textSet.Clone()
	if err != nil {
		return fmt.Errorf("clone template set: %w", err)
	}
	return set.Funcs(funcs).ExecuteTemplate(w, rel, data)
}

// execBase builds the per-execution function map: the static helpers
// plus the href builders and the escaping-aware safe func.
func (e *NativeEngine) execBase(typ ViewType) map[string]any {
	e.mu.RLock()
	base, asset := e.baseHref, e.assetHref
	e.mu.RUnlock()

	funcs := staticFuncs()
	funcs["href"] = func(p string) string { return joinHref(base, p) }
	funcs["asset"] = func(p string) string { return joinHref(asset, p) }
	if typ.HTML() {
		funcs["safe"] = func(s string) template.HTML { return template.HTML(s) }
	} else {
		funcs["safe"] = func(s string) string { return s }
	}
	return funcs
}

// nativeExecutor adapts the engine to the compositor's executor
// contract for one resolved view.
type nativeExecutor struct {
	engine *NativeEngine
	typ    ViewType
	rel    string
}

func (x *nativeExecutor) ExecuteFile(c *layout.Compositor, w io.Writer, _ string, data map[string]any) error {
	return x.engine.executeTemplate(w, x.rel, x.typ, data, passFuncs(c, x.typ.HTML()))
}

// inertFuncs carry the section vocabulary with no-op bodies, for
// contexts where declarations should vanish and yields produce
// nothing: standalone renders and parse time.
func inertFuncs(html bool) map[string]any {
	funcs := map[string]any{
		"section":    func(string) string { return "" },
		"endsection": func(...string) string { return "" },
		"hassection": func(string) bool { return false },
	}
	if html {
		funcs["yield"] = func(string) template.HTML { return "" }
		funcs["content"] = func() template.HTML { return "" }
	} else {
		funcs["yield"] = func(string) string { return "" }
		funcs["content"] = func() string { return "" }
	}
	return funcs
}

// parseFuncs carry every template-visible name so parsing resolves;
// execution rebinds them per render.
func parseFuncs(html bool) map[string]any {
	funcs := staticFuncs()
	for k, v := range inertFuncs(html) {
		funcs[k] = v
	}
	funcs["href"] = func(string) string { return "" }
	funcs["asset"] = func(string) string { return "" }
	if html {
		funcs["safe"] = func(s string) template.HTML { return template.HTML(s) }
	} else {
		funcs["safe"] = func(s string) string { return s }
	}
	return funcs
}

// passFuncs bind the section declarations to the live compositor for
// the capture pass; the layout-side funcs stay inert.
func passFuncs(c *layout.Compositor, html bool) map[string]any {
	funcs := inertFuncs(html)
	funcs["section"] = func(name string) (string, error) { return "", c.Begin(name) }
	funcs["endsection"] = func(name ...string) (string, error) { return "", c.End(firstName(name)) }
	return funcs
}

// layoutFuncs pull the captured sections into the outer page.
func layoutFuncs(c *layout.Compositor, html bool) map[string]any {
	funcs := map[string]any{
		"section":    func(string) string { return "" },
		"endsection": func(...string) string { return "" },
		"hassection": func(name string) bool { return c.Has(name) },
	}
	if html {
		funcs["yield"] = func(name string) (template.HTML, error) {
			s, err := c.Section(name, nil)
			return template.HTML(s), err
		}
		funcs["content"] = func() (template.HTML, error) {
			s, err := c.Content(nil)
			return template.HTML(s), err
		}
	} else {
		funcs["yield"] = func(name string) (string, error) { return c.Section(name, nil) }
		funcs["content"] = func() (string, error) { return c.Content(nil) }
	}
	return funcs
}

func firstName(names []string) string {
	if len(names) > 0 {
		return names[0]
	}
	return ""
}
