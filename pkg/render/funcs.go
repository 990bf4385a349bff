package render

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// staticFuncs are the helpers available to every template of every
// type, in both the capture pass and the layout context.
func staticFuncs() map[string]any {
	return map[string]any{
		"upper":     strings.ToUpper,
		"lower":     strings.ToLower,
		"trim":      strings.TrimSpace,
		"titlecase": titlecase,
		"join":      join,
		"now":       time.Now,
		"year":      year,
		"default":   dfault,
	}
}

// titlecase upper-cases the first letter of each word using English
// casing rules. A fresh caser is built per call; casers carry state
// and must not be shared across goroutines.
func titlecase(s string) string {
	return cases.Title(language.English).String(s)
}

func join(items []string, sep string) string { return strings.Join(items, sep) }

func year() int { return time.Now().Year() }

// dfault substitutes def for nil or empty-string values, pipe-style:
// [[ .title | default "Untitled" ]].
func dfault(def, val any) any {
	if val == nil {
		return def
	}
	if s, ok := val.(string); ok && s == "" {
		return def
	}
	return val
}

// joinHref glues a configured prefix and a relative path with exactly
// one slash between them.
func joinHref(prefix, p string) string {
	if prefix == "" {
		return p
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(p, "/")
}
