package layout

import "testing"

func TestBuffer_BaseWrites(t *testing.T) {
	var b Buffer
	if _, err := b.WriteString("hello "); err != nil {
		t.Fatalf("WriteString failed: %v", err)
	}
	if _, err := b.Write([]byte("world")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := b.String(); got != "hello world" {
		t.Errorf("expected base text 'hello world', got %q", got)
	}
	if b.Depth() != 0 {
		t.Errorf("expected depth 0, got %d", b.Depth())
	}
}

func TestBuffer_ScopeRouting(t *testing.T) {
	var b Buffer
	_, _ = b.WriteString("base1 ")

	b.Push()
	_, _ = b.WriteString("outer1 ")

	b.Push()
	_, _ = b.WriteString("inner")
	if b.Depth() != 2 {
		t.Fatalf("expected depth 2, got %d", b.Depth())
	}
	if got := b.Pop(); got != "inner" {
		t.Errorf("inner Pop returned %q, expected 'inner'", got)
	}

	// The popped scope's text must not leak into the outer scope.
	_, _ = b.WriteString("outer2")
	if got := b.Pop(); got != "outer1 outer2" {
		t.Errorf("outer Pop returned %q, expected 'outer1 outer2'", got)
	}

	_, _ = b.WriteString("base2")
	if got := b.String(); got != "base1 base2" {
		t.Errorf("base text is %q, expected 'base1 base2'", got)
	}
}

func TestBuffer_PopEmpty(t *testing.T) {
	var b Buffer
	if got := b.Pop(); got != "" {
		t.Errorf("Pop on empty stack returned %q, expected empty string", got)
	}
}

func TestBuffer_Reset(t *testing.T) {
	var b Buffer
	_, _ = b.WriteString("base")
	b.Push()
	_, _ = b.WriteString("scoped")

	b.Reset()
	if b.String() != "" {
		t.Errorf("base text survived Reset: %q", b.String())
	}
	if b.Depth() != 0 {
		t.Errorf("open scopes survived Reset: depth %d", b.Depth())
	}
}
