package render

import (
	"testing"
)

func TestJoinHref(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   string
	}{
		{"/", "docs", "/docs"},
		{"/", "/docs", "/docs"},
		{"/app/", "docs", "/app/docs"},
		{"/app", "/docs", "/app/docs"},
		{"https://cdn.example.com/s/", "a.css", "https://cdn.example.com/s/a.css"},
		{"", "docs", "docs"},
	}
	for _, tc := range tests {
		if got := joinHref(tc.prefix, tc.path); got != tc.want {
			t.Errorf("joinHref(%q, %q) = %q, expected %q", tc.prefix, tc.path, got, tc.want)
		}
	}
}

func TestDfault(t *testing.T) {
	if got := dfault("fb", nil); got != "fb" {
		t.Errorf("nil should fall back, got %v", got)
	}
	if got := dfault("fb", ""); got != "fb" {
		t.Errorf("empty string should fall back, got %v", got)
	}
	if got := dfault("fb", "set"); got != "set" {
		t.Errorf("set strings must pass through, got %v", got)
	}
	if got := dfault("fb", 0); got != 0 {
		t.Errorf("a zero int is still a value, got %v", got)
	}
}

func TestTitlecase(t *testing.T) {
	if got := titlecase("hello world"); got != "Hello World" {
		t.Errorf("expected 'Hello World', got %q", got)
	}
	if got := titlecase(""); got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
}

func TestJoin(t *testing.T) {
	if got := join([]string{"a", "b", "c"}, ", "); got != "a, b, c" {
		t.Errorf("expected 'a, b, c', got %q", got)
	}
	if got := join(nil, ","); got != "" {
		t.Errorf("expected empty output for nil items, got %q", got)
	}
}
