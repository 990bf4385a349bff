package layout

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySection is returned when a section operation is given an
	// empty or whitespace-only name.
	ErrEmptySection = errors.New("empty section name")

	// ErrNoOpenSection is returned by End when no section is open.
	ErrNoOpenSection = errors.New("no open section")

	// ErrUnclosedSection is returned when a capture pass finishes with
	// one or more sections still open.
	ErrUnclosedSection = errors.New("unclosed section")

	// ErrNoTemplate is returned by Whole when no template file has been
	// selected.
	ErrNoTemplate = errors.New("no template selected")
)

// MismatchError is returned by End when the named section is not the
// innermost open one. The mismatched close is rejected outright: nothing
// is popped from the stack and nothing is stored in the table.
type MismatchError struct {
	Open   string // the section actually open
	Closed string // the section the caller tried to close
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("section mismatch: closing %q while %q is open", e.Closed, e.Open)
}

// NotFoundError is returned by Select when the template file does not
// exist on disk.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("template not found: %s", e.Path)
}
