package render

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedViewType rejects type names outside the closed set.
	ErrUnsupportedViewType = errors.New("unsupported view type")

	// ErrInvalidViewName rejects view names with empty or illegal path
	// segments.
	ErrInvalidViewName = errors.New("invalid view name")

	// ErrReservedName rejects caller variables (and configuration)
	// that would shadow the collaborator accessor.
	ErrReservedName = errors.New("reserved variable name")

	// ErrDuplicateAlias rejects double registration of a collaborator
	// alias.
	ErrDuplicateAlias = errors.New("duplicate collaborator alias")

	// ErrDuplicateEngine rejects double registration of an engine
	// name.
	ErrDuplicateEngine = errors.New("duplicate engine")

	// ErrDuplicateView rejects double registration of a component
	// view.
	ErrDuplicateView = errors.New("duplicate view registration")

	// ErrEngineUnavailable signals that the configured engine is not
	// registered.
	ErrEngineUnavailable = errors.New("engine unavailable")

	// ErrNoAlias is returned by Registry.Use for an unknown alias, so
	// a typo in a template aborts execution instead of passing nil
	// around.
	ErrNoAlias = errors.New("unknown collaborator alias")
)

// ViewNotFoundError reports a view that resolved to no template.
type ViewNotFoundError struct {
	View string
	Path string // the path that was tried
}

func (e *ViewNotFoundError) Error() string {
	return fmt.Sprintf("view %q not found (tried %s)", e.View, e.Path)
}

// RuntimeError wraps an unrecognized failure from a render stage. Op
// names the stage that failed.
type RuntimeError struct {
	Op  string
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }
