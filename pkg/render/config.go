package render

import "time"

// DefaultCacheTTL applies when caching is demanded for a view (forced
// or allow-listed) but the configured TTL is not positive.
const DefaultCacheTTL = 5 * time.Minute

// CacheConfig controls the response cache consulted before template
// execution.
type CacheConfig struct {
	// Enabled turns the cache on for every view not excluded below.
	Enabled bool

	// TTLSeconds is how long a cached response stays servable. Values
	// of zero or less disable caching unless a view is forced or
	// allow-listed, which then falls back to DefaultCacheTTL.
	TTLSeconds int

	// Force caches every view regardless of the lists and the TTL gate.
	Force bool

	// Only, when non-empty, is decisive: exactly the listed views
	// cache and every other view does not.
	Only []string

	// Ignore lists views excluded from caching. It is consulted only
	// when Only is empty.
	Ignore []string
}

// TTL returns the configured lifetime as a duration.
func (c CacheConfig) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }

// MinifyConfig controls HTML post-processing.
type MinifyConfig struct {
	// Enabled turns on minification for html views. Other types pass
	// through untouched.
	Enabled bool

	// SkipCodeBlocks preserves whitespace inside pre, code and
	// textarea elements.
	SkipCodeBlocks bool

	// CopyButton injects a copy-to-clipboard button into pre blocks
	// that wrap code.
	CopyButton bool
}

// IsolationMode selects how caller variables reach the template.
type IsolationMode string

const (
	// IsolationDirect hands the variable map to the template as its
	// data, optionally nested under VarPrefix.
	IsolationDirect IsolationMode = "direct"

	// IsolationProxy additionally exposes registered collaborators
	// under the reserved accessor.
	IsolationProxy IsolationMode = "proxy"
)

// Config holds all configuration options for the render pipeline.
type Config struct {
	// ViewsDir is the root of the view template tree.
	ViewsDir string

	// Layout names the view whose sections compose the outer page for
	// html renders. Empty disables composition.
	Layout string

	// Engine names the registered engine that executes views.
	Engine string

	// Production switches recognized failures to the ErrorView instead
	// of verbose diagnostics.
	Production bool

	// Debug additionally scans rendered html for inline error banners
	// and escalates them to hard failures.
	Debug bool

	// Silent suppresses failure bodies entirely: recognized failures
	// return a silent-failure status with no output.
	Silent bool

	// Isolation selects direct or proxy variable exposure.
	Isolation IsolationMode

	// VarPrefix, when set in direct isolation, nests the variable map
	// under this key instead of splicing it at the top level.
	VarPrefix string

	// ErrorView names the view served in production when the requested
	// one fails.
	ErrorView string

	// BaseHref is the prefix the href template func builds links from.
	BaseHref string

	// AssetHref is the prefix the asset template func builds links from.
	AssetHref string

	// Title seeds the computed title variable available to every view.
	Title string

	// Subtitle seeds the computed subtitle variable.
	Subtitle string

	Cache  CacheConfig
	Minify MinifyConfig
}

// DefaultConfig returns a Config with safe default values: the native
// engine, direct isolation, caching and minification off.
func DefaultConfig() Config {
	return Config{
		ViewsDir:  "views",
		Layout:    "layout/base",
		Engine:    NativeName,
		Isolation: IsolationDirect,
		ErrorView: "404",
		BaseHref:  "/",
		AssetHref: "/assets/",
		Title:     "folio",
		Cache: CacheConfig{
			TTLSeconds: 300,
		},
		Minify: MinifyConfig{
			SkipCodeBlocks: true,
		},
	}
}
