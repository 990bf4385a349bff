package render

import (
	"fmt"
)

// ReservedAccessor is the variable name templates use to reach
// registered collaborators in proxy isolation. Caller variables may
// never shadow it.
const ReservedAccessor = "self"

// Options carries the variables for one render call. The pipeline
// merges them over its computed variables before execution; caller
// keys win on collision.
type Options map[string]any

// assemble builds the full variable map for a render: the computed
// variables first, then the caller's on top.
func (p *Pipeline) assemble(view string, vars Options) Options {
	opts := Options{
		"view":       view,
		"base_href":  p.cfg.BaseHref,
		"asset_href": p.cfg.AssetHref,
		"title":      p.cfg.Title,
		"subtitle":   p.cfg.Subtitle,
	}
	for k, v := range vars {
		opts[k] = v
	}
	return opts
}

// shapeData applies the isolation mode: proxy adds the collaborator
// registry under the reserved accessor, direct optionally nests the
// whole map under VarPrefix.
func (p *Pipeline) shapeData(opts Options) map[string]any {
	if p.cfg.Isolation == IsolationProxy {
		data := make(map[string]any, len(opts)+1)
		for k, v := range opts {
			data[k] = v
		}
		data[ReservedAccessor] = p.reg
		return data
	}
	if p.cfg.VarPrefix != "" {
		return map[string]any{p.cfg.VarPrefix: map[string]any(opts)}
	}
	return opts
}

// checkReserved rejects caller variables that would land at the
// template's top level under the reserved accessor's name. With a
// VarPrefix in direct isolation the variables are nested away and
// cannot collide.
func (p *Pipeline) checkReserved(vars Options) error {
	if p.cfg.Isolation == IsolationDirect && p.cfg.VarPrefix != "" {
		return nil
	}
	if _, ok := vars[ReservedAccessor]; ok {
		return fmt.Errorf("%w: %q", ErrReservedName, ReservedAccessor)
	}
	return nil
}
