package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a-h/templ"
)

func textComponent(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

func TestComponentEngine_RegisterAndRender(t *testing.T) {
	e := NewComponentEngine()
	err := e.Register("widgets/greeting", func(_ *Registry, data map[string]any) templ.Component {
		return textComponent(fmt.Sprintf("<p>Hi %v</p>", data["name"]))
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	var buf bytes.Buffer
	err = e.Render(context.Background(), &buf, "widgets/greeting", TypeHTML, map[string]any{"name": "Ann"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.String() != "<p>Hi Ann</p>" {
		t.Errorf("unexpected component output: %q", buf.String())
	}
}

func TestComponentEngine_DuplicateAndMissing(t *testing.T) {
	e := NewComponentEngine()
	fn := func(*Registry, map[string]any) templ.Component { return textComponent("x") }

	if err := e.Register("w", fn); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := e.Register("w", fn); !errors.Is(err, ErrDuplicateView) {
		t.Fatalf("expected ErrDuplicateView, got %v", err)
	}
	if err := e.Register("../up", fn); !errors.Is(err, ErrInvalidViewName) {
		t.Fatalf("expected ErrInvalidViewName, got %v", err)
	}

	var nf *ViewNotFoundError
	if _, err := e.Resolve("ghost", TypeHTML); !errors.As(err, &nf) {
		t.Fatalf("expected ViewNotFoundError from Resolve, got %v", err)
	}
	var buf bytes.Buffer
	if err := e.Render(context.Background(), &buf, "ghost", TypeHTML, nil); !errors.As(err, &nf) {
		t.Fatalf("expected ViewNotFoundError from Render, got %v", err)
	}
}

func TestComponentEngine_CollaboratorAccess(t *testing.T) {
	e := NewComponentEngine()
	reg := NewRegistry()
	if err := reg.Register("greeter", "hello"); err != nil {
		t.Fatalf("collaborator Register failed: %v", err)
	}
	e.RegisterCollaborators(reg)

	err := e.Register("w", func(r *Registry, _ map[string]any) templ.Component {
		v, err := r.Use("greeter")
		if err != nil {
			return textComponent("no greeter")
		}
		return textComponent(v.(string))
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	var buf bytes.Buffer
	if err = e.Render(context.Background(), &buf, "w", TypeHTML, nil); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.String() != "hello" {
		t.Errorf("component should reach the registry, got %q", buf.String())
	}
}

func TestComponentEngine_Memo(t *testing.T) {
	e := NewComponentEngine()
	e.ConfigureCache(true, time.Hour)

	var builds atomic.Int64
	err := e.Register("w", func(_ *Registry, data map[string]any) templ.Component {
		builds.Add(1)
		return textComponent(fmt.Sprintf("n=%v", data["n"]))
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	ctx := context.Background()
	render := func(n int) string {
		t.Helper()
		var buf bytes.Buffer
		if err := e.Render(ctx, &buf, "w", TypeHTML, map[string]any{"n": n}); err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		return buf.String()
	}

	if got := render(1); got != "n=1" {
		t.Fatalf("unexpected output: %q", got)
	}
	if got := render(1); got != "n=1" {
		t.Fatalf("unexpected memoized output: %q", got)
	}
	if builds.Load() != 1 {
		t.Errorf("expected 1 build for repeated data, got %d", builds.Load())
	}

	if got := render(2); got != "n=2" {
		t.Fatalf("unexpected output for new data: %q", got)
	}
	if builds.Load() != 2 {
		t.Errorf("different data must rebuild, got %d builds", builds.Load())
	}

	if !e.IsCached("w") {
		t.Error("IsCached should report a fresh memo")
	}

	// Disabling caching drops the memo.
	e.ConfigureCache(false, 0)
	if e.IsCached("w") {
		t.Error("IsCached should report false after disabling")
	}
	if got := render(1); got != "n=1" {
		t.Fatalf("unexpected output after disable: %q", got)
	}
	if builds.Load() != 3 {
		t.Errorf("disabled cache must rebuild, got %d builds", builds.Load())
	}
}

func TestComponentEngine_ThroughPipeline(t *testing.T) {
	e := NewComponentEngine()
	err := e.Register("panel", func(_ *Registry, data map[string]any) templ.Component {
		return textComponent(fmt.Sprintf("<div>%v</div>", data["title"]))
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	engines := NewEngines()
	if err = engines.Register(e); err != nil {
		t.Fatalf("engine Register failed: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Engine = ComponentName
	cfg.ViewsDir = ""
	cfg.Title = "Panel"
	p, err := New(&cfg, engines, nil, nil, discardLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res, err := p.Render(context.Background(), "panel", TypeHTML, nil)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if string(res.Body) != "<div>Panel</div>" {
		t.Errorf("unexpected pipeline output: %q", res.Body)
	}
}
