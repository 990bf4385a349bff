package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/CTAG07/folio/pkg/layout"
	"github.com/CTAG07/folio/pkg/minify"
	"github.com/CTAG07/folio/pkg/vcache"
)

// Status classifies the outcome of one render.
type Status int

const (
	// StatusSuccess means a body was produced and delivered.
	StatusSuccess Status = iota

	// StatusSilentFailure means a recognized failure was suppressed by
	// the silent configuration: no body, nothing emitted.
	StatusSilentFailure

	// StatusNotFound means a recognized failure was reported with a
	// substitute body.
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSilentFailure:
		return "silent_failure"
	case StatusNotFound:
		return "not_found"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (s Status) httpCode() int {
	switch s {
	case StatusSilentFailure:
		return http.StatusNoContent
	case StatusNotFound:
		return http.StatusNotFound
	}
	return http.StatusOK
}

// Result reports one render: its status, the exact bytes produced, the
// headers they carry and whether they came from the response cache.
// Err holds the recognized failure behind a substitute body, nil on
// success.
type Result struct {
	Status    Status
	Body      []byte
	Headers   map[string]string
	View      string
	FromCache bool
	Err       error
}

// Pipeline renders views through a configured engine, with response
// caching, post-processing and failure substitution around the
// execution. A Pipeline carries no per-render state and is safe for
// concurrent use.
type Pipeline struct {
	cfg     *Config
	engines *Engines
	store   vcache.Store
	reg     *Registry
	logger  *slog.Logger
}

// New wires a Pipeline and pushes the configuration down to every
// registered engine. A nil store disables response caching; a nil
// registry starts empty. Configuration mistakes (a reserved VarPrefix,
// no engines) surface here, before any render.
func New(cfg *Config, engines *Engines, store vcache.Store, reg *Registry, logger *slog.Logger) (*Pipeline, error) {
	if cfg == nil {
		c := DefaultConfig()
		cfg = &c
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if reg == nil {
		reg = NewRegistry()
	}
	if engines == nil || len(engines.All()) == 0 {
		return nil, fmt.Errorf("%w: no engines registered", ErrEngineUnavailable)
	}
	if cfg.VarPrefix == ReservedAccessor {
		return nil, fmt.Errorf("%w: var prefix %q", ErrReservedName, cfg.VarPrefix)
	}

	p := &Pipeline{cfg: cfg, engines: engines, store: store, reg: reg, logger: logger}
	for _, e := range engines.All() {
		if cfg.ViewsDir != "" {
			if err := e.SetRoot(cfg.ViewsDir); err != nil {
				return nil, fmt.Errorf("engine %s: %w", e.Name(), err)
			}
		}
		e.ConfigureCache(cfg.Cache.Enabled, cfg.Cache.TTL())
		e.SetMinify(minify.Options{
			SkipCodeBlocks: cfg.Minify.SkipCodeBlocks,
			CopyButton:     cfg.Minify.CopyButton,
		})
		e.RegisterCollaborators(reg)
		if la, ok := e.(layoutAware); ok {
			la.SetLayout(cfg.Layout)
			la.SetHrefs(cfg.BaseHref, cfg.AssetHref)
		}
	}
	return p, nil
}

// layoutAware engines compose pages through a configured layout and
// build links from the configured prefixes. The pipeline pushes those
// settings down when the engine supports them.
type layoutAware interface {
	SetLayout(view string)
	SetHrefs(base, asset string)
}

// Render produces the view's body without an HTTP exchange. The cache
// identity is synthesized from the view name, so direct renders and
// request-addressed renders never share entries.
func (p *Pipeline) Render(ctx context.Context, view string, typ ViewType, vars Options) (*Result, error) {
	return p.display(ctx, nil, "view:///"+view, view, typ, vars)
}

// Emit renders the view and writes status, headers and body to w. The
// cache identity is the request URI, so equivalent spellings of the
// same request share an entry.
func (p *Pipeline) Emit(w http.ResponseWriter, r *http.Request, view string, typ ViewType, vars Options) (*Result, error) {
	return p.display(r.Context(), w, r.URL.RequestURI(), view, typ, vars)
}

// display runs the full pipeline: resolve, cache check, execute,
// post-process, cache write, then emit or return. Recognized failures
// come back as substitute results with a nil error; everything else
// propagates as a RuntimeError.
func (p *Pipeline) display(ctx context.Context, w http.ResponseWriter, identity, view string, typ ViewType, vars Options) (*Result, error) {
	if err := p.checkReserved(vars); err != nil {
		return nil, err
	}

	parsed, err := ParseViewType(string(typ))
	if err != nil {
		return p.failPage(ctx, w, view, TypeHTML, vars, err)
	}
	typ = parsed

	eng, err := p.engines.Get(p.cfg.Engine)
	if err != nil {
		return nil, &RuntimeError{Op: "resolve", Err: err}
	}
	if err = ValidateViewName(view); err != nil {
		return p.failPage(ctx, w, view, typ, vars, err)
	}
	if _, err = eng.Resolve(view, typ); err != nil {
		if recognized(err) {
			return p.failPage(ctx, w, view, typ, vars, err)
		}
		return nil, &RuntimeError{Op: "resolve", Err: err}
	}

	key := vcache.Key(identity, typ.String())
	cacheable := p.store != nil && p.shouldCache(view)
	if cacheable {
		if entry, gerr := p.store.Get(ctx, key); gerr == nil {
			if entry.Fresh(time.Now()) && entry.ViewType == typ.String() {
				return p.finish(w, &Result{
					Status:    StatusSuccess,
					Body:      entry.Body,
					Headers:   entry.Headers,
					View:      view,
					FromCache: true,
				})
			}
		} else if !errors.Is(gerr, vcache.ErrNoEntry) {
			p.logger.Warn("cache read failed, rendering anyway", "view", view, "error", gerr)
		}
	}

	data := p.shapeData(p.assemble(view, vars))
	var buf bytes.Buffer
	if err = eng.Render(ctx, &buf, view, typ, data); err != nil {
		if recognized(err) {
			return p.failPage(ctx, w, view, typ, vars, err)
		}
		return nil, &RuntimeError{Op: "execute", Err: err}
	}

	body := buf.Bytes()
	if p.cfg.Debug && typ.HTML() {
		if banner := scanErrorBanner(body); banner != "" {
			return nil, &RuntimeError{Op: "post-process", Err: fmt.Errorf("inline error banner: %s", banner)}
		}
	}
	if typ.HTML() && p.cfg.Minify.Enabled {
		min, merr := minify.HTML(body, minify.Options{
			SkipCodeBlocks: p.cfg.Minify.SkipCodeBlocks,
			CopyButton:     p.cfg.Minify.CopyButton,
		})
		if merr != nil {
			p.logger.Warn("minify failed, serving unminified output", "view", view, "error", merr)
		} else {
			body = min
		}
	}
	headers := map[string]string{
		"Content-Type":   typ.ContentType(),
		"Content-Length": strconv.Itoa(len(body)),
	}

	// Cache write failures never block delivery.
	if cacheable && len(body) > 0 {
		entry := &vcache.Entry{
			Body:     body,
			Headers:  headers,
			ViewType: typ.String(),
			TTL:      p.cacheTTL(),
		}
		if serr := p.store.Save(ctx, key, entry); serr != nil {
			p.logger.Warn("cache write failed", "view", view, "error", serr)
		}
	}

	return p.finish(w, &Result{Status: StatusSuccess, Body: body, Headers: headers, View: view})
}

// finish performs the emit half of the final stage when a writer is
// present and hands the result back either way.
func (p *Pipeline) finish(w http.ResponseWriter, res *Result) (*Result, error) {
	if w == nil {
		return res, nil
	}
	for k, v := range res.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(res.Status.httpCode())
	if len(res.Body) > 0 {
		if _, err := w.Write(res.Body); err != nil {
			return res, &RuntimeError{Op: "emit", Err: err}
		}
	}
	return res, nil
}

// failPage converts a recognized failure into its substitute response:
// nothing under the silent configuration, the error view or built-in
// page in production, a verbose diagnostic otherwise. The cause lands
// on the result, never in the error return.
func (p *Pipeline) failPage(ctx context.Context, w http.ResponseWriter, view string, typ ViewType, vars Options, cause error) (*Result, error) {
	p.logger.Error("render failed", "view", view, "error", cause)

	if p.cfg.Silent {
		return p.finish(w, &Result{Status: StatusSilentFailure, View: view, Err: cause})
	}

	var body []byte
	if p.cfg.Production {
		body = p.errorViewBody(ctx, typ, vars)
	} else if typ.HTML() {
		body = renderDiagnostic(view, cause)
	}
	headers := map[string]string{}
	if len(body) > 0 {
		headers["Content-Type"] = TypeHTML.ContentType()
		headers["Content-Length"] = strconv.Itoa(len(body))
	}
	return p.finish(w, &Result{Status: StatusNotFound, Body: body, Headers: headers, View: view, Err: cause})
}

// errorViewBody renders the configured error view, falling back to
// the built-in page when the error view itself is missing or broken.
// Non-html types get no substitute body.
func (p *Pipeline) errorViewBody(ctx context.Context, typ ViewType, vars Options) []byte {
	if !typ.HTML() {
		return nil
	}
	if eng, err := p.engines.Get(p.cfg.Engine); err == nil {
		if _, rerr := eng.Resolve(p.cfg.ErrorView, typ); rerr == nil {
			var buf bytes.Buffer
			data := p.shapeData(p.assemble(p.cfg.ErrorView, vars))
			if rerr = eng.Render(ctx, &buf, p.cfg.ErrorView, typ, data); rerr == nil {
				return buf.Bytes()
			}
			p.logger.Warn("error view failed, using built-in page", "view", p.cfg.ErrorView, "error", rerr)
		}
	}
	return []byte(builtinNotFound)
}

// shouldCache decides whether a view participates in the response
// cache. Force wins over everything; a non-empty allow list is
// decisive for every view; the ignore list then excludes; what
// remains follows the enable flag and a positive TTL.
func (p *Pipeline) shouldCache(view string) bool {
	c := p.cfg.Cache
	if c.Force {
		return true
	}
	if len(c.Only) > 0 {
		return containsView(c.Only, view)
	}
	if containsView(c.Ignore, view) {
		return false
	}
	return c.Enabled && c.TTLSeconds > 0
}

// cacheTTL resolves the effective entry lifetime, falling back to
// DefaultCacheTTL when caching is demanded with a non-positive TTL.
func (p *Pipeline) cacheTTL() time.Duration {
	if ttl := p.cfg.Cache.TTL(); ttl > 0 {
		return ttl
	}
	return DefaultCacheTTL
}

func containsView(list []string, view string) bool {
	for _, v := range list {
		if v == view {
			return true
		}
	}
	return false
}

// recognized separates content-level failures, which route to
// substitute pages, from everything else, which propagates as a
// RuntimeError.
func recognized(err error) bool {
	var nf *ViewNotFoundError
	var lnf *layout.NotFoundError
	var mm *layout.MismatchError
	return errors.Is(err, ErrUnsupportedViewType) ||
		errors.Is(err, ErrInvalidViewName) ||
		errors.Is(err, layout.ErrEmptySection) ||
		errors.Is(err, layout.ErrNoOpenSection) ||
		errors.Is(err, layout.ErrUnclosedSection) ||
		errors.Is(err, layout.ErrNoTemplate) ||
		errors.As(err, &nf) || errors.As(err, &lnf) || errors.As(err, &mm)
}

var (
	bannerComment = regexp.MustCompile(`<!--\s*render:error\b[^>]*-->`)
	bannerMarkup  = regexp.MustCompile(`<b>(?:Fatal error|Parse error|Warning)</b>:[^<]*`)
)

// scanErrorBanner finds inline failure banners an engine or an
// upstream component may have printed into otherwise-successful
// output. Debug mode escalates such bodies to hard failures instead
// of serving them.
func scanErrorBanner(body []byte) string {
	if m := bannerComment.Find(body); m != nil {
		return string(m)
	}
	if m := bannerMarkup.Find(body); m != nil {
		return string(m)
	}
	return ""
}
