package layout

import "bytes"

// Buffer is a writable capture stack. Writes land in the innermost open
// scope, or in the base scope when no scope is open. Popping a scope
// returns its accumulated text without disturbing the scopes below it,
// so nested captures stay isolated from one another.
//
// A Buffer is not safe for concurrent use.
type Buffer struct {
	base   bytes.Buffer
	scopes []*bytes.Buffer
}

// Write appends p to the innermost open scope, or to the base scope
// when none is open. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	if n := len(b.scopes); n > 0 {
		return b.scopes[n-1].Write(p)
	}
	return b.base.Write(p)
}

// WriteString appends s to the innermost open scope, mirroring Write.
func (b *Buffer) WriteString(s string) (int, error) {
	if n := len(b.scopes); n > 0 {
		return b.scopes[n-1].WriteString(s)
	}
	return b.base.WriteString(s)
}

// Push opens a new capture scope. Subsequent writes accumulate there
// until the matching Pop.
func (b *Buffer) Push() {
	b.scopes = append(b.scopes, new(bytes.Buffer))
}

// Pop closes the innermost scope and returns its text. The text is
// removed from the stack entirely; it does not flow into the enclosing
// scope. Popping with no open scope returns "".
func (b *Buffer) Pop() string {
	n := len(b.scopes)
	if n == 0 {
		return ""
	}
	s := b.scopes[n-1].String()
	b.scopes = b.scopes[:n-1]
	return s
}

// Depth returns the number of open scopes.
func (b *Buffer) Depth() int { return len(b.scopes) }

// String returns the text accumulated in the base scope.
func (b *Buffer) String() string { return b.base.String() }

// Reset discards the base scope's text and all open scopes.
func (b *Buffer) Reset() {
	b.base.Reset()
	b.scopes = nil
}
