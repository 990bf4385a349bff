package render

import (
	"errors"
	"testing"
)

func TestRegistry_RegisterAndUse(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("db", 42); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	v, ok := reg.Get("db")
	if !ok || v != 42 {
		t.Errorf("Get returned (%v, %v), expected (42, true)", v, ok)
	}

	v, err := reg.Use("db")
	if err != nil || v != 42 {
		t.Errorf("Use returned (%v, %v), expected (42, nil)", v, err)
	}

	if _, err = reg.Use("ghost"); !errors.Is(err, ErrNoAlias) {
		t.Errorf("expected ErrNoAlias for an unknown alias, got %v", err)
	}
}

func TestRegistry_Duplicate(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("db", 1); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := reg.Register("db", 2); !errors.Is(err, ErrDuplicateAlias) {
		t.Fatalf("expected ErrDuplicateAlias, got %v", err)
	}

	// The original registration survives the collision.
	if v, _ := reg.Get("db"); v != 1 {
		t.Errorf("expected the first value to survive, got %v", v)
	}
}

func TestRegistry_ReservedAndEmpty(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(ReservedAccessor, 1); !errors.Is(err, ErrReservedName) {
		t.Errorf("expected ErrReservedName for the accessor alias, got %v", err)
	}
	if err := reg.Register("  ", 1); err == nil {
		t.Error("expected an error for a blank alias, got nil")
	}
}

func TestRegistry_Aliases(t *testing.T) {
	reg := NewRegistry()
	for _, a := range []string{"zeta", "alpha", "mid"} {
		if err := reg.Register(a, a); err != nil {
			t.Fatalf("Register(%q) failed: %v", a, err)
		}
	}
	got := reg.Aliases()
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("expected %d aliases, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("alias %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
