package layout

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Executor runs a template file, writing its output to w. The calling
// Compositor is passed through so that template-visible functions can
// open and close sections on it mid-pass.
type Executor interface {
	ExecuteFile(c *Compositor, w io.Writer, path string, data map[string]any) error
}

// Compositor executes one template file and captures named fragments of
// its output into a section table. The capture pass runs lazily on the
// first read and is memoized per selected file, so a template executes
// at most once no matter how many sections are read from it. Whole
// renders the same file with capture disabled and memoizes that pass
// separately.
//
// A Compositor can also be driven imperatively, without a selected
// file: Begin, Write and End capture host-produced output into the same
// table. Selecting a file resets all captured state.
//
// A Compositor serves a single render and is not safe for concurrent
// use.
type Compositor struct {
	exec Executor

	path     string         // cleaned path of the selected template
	vars     map[string]any // base variables for execution and substitution
	buf      Buffer
	stack    []string // names of open sections, innermost last
	sections map[string]string
	whole    string

	capture   bool // Begin/End act only while true
	captured  bool // capture pass has completed for path
	wholeDone bool // whole-output pass has completed for path
}

// New returns a Compositor that executes template files through exec.
// A nil exec is allowed for purely imperative use, where no file is
// ever selected.
func New(exec Executor) *Compositor {
	return &Compositor{
		exec:     exec,
		sections: make(map[string]string),
		capture:  true,
	}
}

// SetVars replaces the base variable map used for pass execution and
// placeholder substitution. Per-call variables passed to read methods
// are merged over these.
func (c *Compositor) SetVars(vars map[string]any) {
	c.vars = vars
}

// Select chooses the template file the compositor will execute. The
// path is cleaned and must exist on disk. Selecting a new path resets
// the section table, the open-section stack and both pass memos;
// selecting the already-selected path is a no-op, so repeated Select
// calls stay cheap. Use Invalidate to force re-execution of the same
// file.
func (c *Compositor) Select(path string) error {
	clean := filepath.Clean(path)
	if _, err := os.Stat(clean); err != nil {
		if os.IsNotExist(err) {
			return &NotFoundError{Path: clean}
		}
		return fmt.Errorf("stat template: %w", err)
	}
	if clean == c.path {
		return nil
	}
	c.path = clean
	c.reset()
	return nil
}

// Path returns the cleaned path of the selected template, or "" when
// none is selected.
func (c *Compositor) Path() string { return c.path }

// Invalidate discards all captured state and clears both pass memos so
// the next read re-executes the selected file.
func (c *Compositor) Invalidate() {
	c.reset()
}

func (c *Compositor) reset() {
	c.buf.Reset()
	c.stack = c.stack[:0]
	c.sections = make(map[string]string)
	c.whole = ""
	c.captured = false
	c.wholeDone = false
}

// Begin opens a section. Writes made through the compositor (or by the
// executing template) accumulate under name until the matching End.
// Sections nest LIFO. A blank name is rejected with ErrEmptySection.
// During a whole-output pass Begin is a no-op.
func (c *Compositor) Begin(name string) error {
	if !c.capture {
		return nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptySection
	}
	c.stack = append(c.stack, name)
	c.buf.Push()
	return nil
}

// End closes the innermost open section and stores its captured text in
// the section table, overwriting any previous capture under that name.
// When expect is non-empty it must match the innermost open section; a
// mismatch is rejected with a MismatchError and the section stays open
// with nothing stored. Closing with no section open returns
// ErrNoOpenSection. During a whole-output pass End is a no-op.
func (c *Compositor) End(expect string) error {
	if !c.capture {
		return nil
	}
	n := len(c.stack)
	if n == 0 {
		return ErrNoOpenSection
	}
	top := c.stack[n-1]
	if expect = strings.TrimSpace(expect); expect != "" && expect != top {
		return &MismatchError{Open: top, Closed: expect}
	}
	c.stack = c.stack[:n-1]
	c.sections[top] = c.buf.Pop()
	return nil
}

// Write forwards p into the innermost open section, or into the
// unsectioned base output when none is open. It lets a host capture its
// own writes between Begin and End without a template file.
func (c *Compositor) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

// run performs the capture pass: it executes the selected file once,
// with extra merged over the base variables, recording sections as the
// template opens and closes them. With no file selected it does
// nothing, leaving any imperatively captured sections in place.
func (c *Compositor) run(extra map[string]any) error {
	if c.captured || c.path == "" {
		return nil
	}
	if c.exec == nil {
		return fmt.Errorf("no executor for %s", c.path)
	}
	c.buf.Reset()
	c.stack = c.stack[:0]
	c.sections = make(map[string]string)
	if err := c.exec.ExecuteFile(c, &c.buf, c.path, mergeVars(c.vars, extra)); err != nil {
		return fmt.Errorf("capture pass for %s: %w", c.path, err)
	}
	if n := len(c.stack); n > 0 {
		return fmt.Errorf("%w: %q still open at end of %s", ErrUnclosedSection, c.stack[n-1], c.path)
	}
	c.captured = true
	return nil
}

// runWhole executes the selected file with capture disabled, so Begin
// and End are inert and the full output lands in one string.
func (c *Compositor) runWhole(extra map[string]any) error {
	if c.wholeDone {
		return nil
	}
	if c.path == "" {
		return ErrNoTemplate
	}
	if c.exec == nil {
		return fmt.Errorf("no executor for %s", c.path)
	}
	var out bytes.Buffer
	c.capture = false
	err := c.exec.ExecuteFile(c, &out, c.path, mergeVars(c.vars, extra))
	c.capture = true
	if err != nil {
		return fmt.Errorf("whole pass for %s: %w", c.path, err)
	}
	c.whole = out.String()
	c.wholeDone = true
	return nil
}

// Section returns the captured text of name with placeholders
// substituted from the base variables merged with vars. The capture
// pass runs on the first read; later reads reuse the memoized table,
// re-substituting with whatever vars they bring. An uncaptured name
// yields "".
func (c *Compositor) Section(name string, vars map[string]any) (string, error) {
	if err := c.run(vars); err != nil {
		return "", err
	}
	return Substitute(c.sections[name], mergeVars(c.vars, vars)), nil
}

// SectionRaw is Section without placeholder substitution.
func (c *Compositor) SectionRaw(name string) (string, error) {
	if err := c.run(nil); err != nil {
		return "", err
	}
	return c.sections[name], nil
}

// Sections returns a copy of the section table with placeholders in
// every entry substituted from the base variables merged with vars.
func (c *Compositor) Sections(vars map[string]any) (map[string]string, error) {
	if err := c.run(vars); err != nil {
		return nil, err
	}
	merged := mergeVars(c.vars, vars)
	out := make(map[string]string, len(c.sections))
	for name, text := range c.sections {
		out[name] = Substitute(text, merged)
	}
	return out, nil
}

// SectionsRaw returns a copy of the section table without substitution.
func (c *Compositor) SectionsRaw() (map[string]string, error) {
	if err := c.run(nil); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(c.sections))
	for name, text := range c.sections {
		out[name] = text
	}
	return out, nil
}

// Content returns the text the capture pass produced outside any
// section, substituted like Section. For a page template this is the
// main body surrounding its section declarations.
func (c *Compositor) Content(vars map[string]any) (string, error) {
	if err := c.run(vars); err != nil {
		return "", err
	}
	return Substitute(c.buf.String(), mergeVars(c.vars, vars)), nil
}

// ContentRaw is Content without placeholder substitution.
func (c *Compositor) ContentRaw() (string, error) {
	if err := c.run(nil); err != nil {
		return "", err
	}
	return c.buf.String(), nil
}

// Whole executes the selected file with section capture disabled and
// returns the full output with placeholders substituted. The pass is
// memoized separately from the capture pass. Whole requires a selected
// template and returns ErrNoTemplate otherwise.
func (c *Compositor) Whole(vars map[string]any) (string, error) {
	if err := c.runWhole(vars); err != nil {
		return "", err
	}
	return Substitute(c.whole, mergeVars(c.vars, vars)), nil
}

// WholeRaw is Whole without placeholder substitution.
func (c *Compositor) WholeRaw() (string, error) {
	if err := c.runWhole(nil); err != nil {
		return "", err
	}
	return c.whole, nil
}

// Has reports whether name was captured. It triggers the capture pass
// if needed and swallows any pass error, reporting false instead; use
// Section when the error matters.
func (c *Compositor) Has(name string) bool {
	if err := c.run(nil); err != nil {
		return false
	}
	_, ok := c.sections[name]
	return ok
}

// Prepend splices text in front of the captured section, running the
// capture pass first. An uncaptured name starts empty, so Prepend on a
// missing section creates it. Calls accumulate.
func (c *Compositor) Prepend(name, text string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptySection
	}
	if err := c.run(nil); err != nil {
		return err
	}
	c.sections[name] = text + c.sections[name]
	return nil
}

// Append splices text after the captured section, mirroring Prepend.
func (c *Compositor) Append(name, text string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptySection
	}
	if err := c.run(nil); err != nil {
		return err
	}
	c.sections[name] += text
	return nil
}

// Default stores text under name only when the section is missing or
// was captured empty. A non-empty capture is left alone.
func (c *Compositor) Default(name, text string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptySection
	}
	if err := c.run(nil); err != nil {
		return err
	}
	if c.sections[name] == "" {
		c.sections[name] = text
	}
	return nil
}

// Replace rewrites every match of re in the captured section with repl,
// using regexp replacement syntax ($1 expansion). It never triggers a
// pass: with nothing captured yet it is a no-op, and an uncaptured name
// is left untouched.
func (c *Compositor) Replace(name string, re *regexp.Regexp, repl string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptySection
	}
	if re == nil {
		return errors.New("nil replace pattern")
	}
	text, ok := c.sections[name]
	if !ok {
		return nil
	}
	c.sections[name] = re.ReplaceAllString(text, repl)
	return nil
}

// ReplaceAll applies re to every captured section and to the memoized
// whole output. Like Replace it never triggers a pass.
func (c *Compositor) ReplaceAll(re *regexp.Regexp, repl string) error {
	if re == nil {
		return errors.New("nil replace pattern")
	}
	for name, text := range c.sections {
		c.sections[name] = re.ReplaceAllString(text, repl)
	}
	if c.wholeDone {
		c.whole = re.ReplaceAllString(c.whole, repl)
	}
	return nil
}

// mergeVars overlays extra on base, leaving both inputs untouched. With
// nothing to overlay the base map is returned as-is.
func mergeVars(base, extra map[string]any) map[string]any {
	if len(extra) == 0 {
		return base
	}
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
