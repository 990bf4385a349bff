package render

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeView(tb testing.TB, root, rel, content string) {
	tb.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		tb.Fatalf("failed to create dir for %s: %v", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		tb.Fatalf("failed to write %s: %v", rel, err)
	}
}

// setupNative builds a small view tree and returns an engine over it.
func setupNative(tb testing.TB) *NativeEngine {
	tb.Helper()
	root := tb.TempDir()
	writeView(tb, root, "layout/base.tmpl.html",
		`<html><head><title>[[ yield "title" ]]</title></head><body>[[ template "nav.part.html" . ]][[ content ]][[ if hassection "aside" ]]<aside>[[ yield "aside" ]]</aside>[[ end ]]</body></html>`)
	writeView(tb, root, "nav.part.html", `<nav>Nav</nav>`)
	writeView(tb, root, "home.tmpl.html",
		`[[ section "title" ]]{{ title }} | Home[[ endsection "title" ]]<h1>Hello [[ .name ]]</h1>`)
	writeView(tb, root, "about.tmpl.html",
		`[[ upper .word ]]|[[ titlecase "hello world" ]]|[[ .missing | default "fb" ]]|[[ href "docs" ]]|[[ asset "app.css" ]]|[[ join .tags ", " ]]`)
	writeView(tb, root, "escape.tmpl.html", `<p>[[ .raw ]]</p>`)
	writeView(tb, root, "feed.tmpl.rss",
		`<?xml version="1.0"?><rss><title>{{ title }}</title><desc>[[ .raw ]]</desc></rss>`)

	e, err := NewNativeEngine(discardLogger(), root)
	if err != nil {
		tb.Fatalf("NewNativeEngine failed: %v", err)
	}
	return e
}

func TestNativeEngine_Views(t *testing.T) {
	e := setupNative(t)
	want := []string{"about", "escape", "feed", "home", "layout/base"}
	got := e.Views()
	if len(got) != len(want) {
		t.Fatalf("expected %d views, got %d: %v", len(want), len(got), got)
	}
	for i, name := range want {
		if got[i] != name {
			t.Errorf("view %d: expected %q, got %q", i, name, got[i])
		}
	}
}

func TestNativeEngine_Resolve(t *testing.T) {
	e := setupNative(t)

	rel, err := e.Resolve("home", TypeHTML)
	if err != nil {
		t.Fatalf("Resolve failed for existing view: %v", err)
	}
	if rel != "home.tmpl.html" {
		t.Errorf("expected 'home.tmpl.html', got %q", rel)
	}

	if _, err = e.Resolve("feed", TypeRSS); err != nil {
		t.Errorf("Resolve failed for rss view: %v", err)
	}

	var nf *ViewNotFoundError
	if _, err = e.Resolve("ghost", TypeHTML); !errors.As(err, &nf) {
		t.Fatalf("expected ViewNotFoundError for missing view, got %v", err)
	}
	if nf.View != "ghost" {
		t.Errorf("expected View 'ghost' on error, got %q", nf.View)
	}

	// A view present only in the other template set must not resolve.
	if _, err = e.Resolve("home", TypeRSS); err == nil {
		t.Error("expected an error resolving an html view as rss, got nil")
	}

	if _, err = e.Resolve("../etc/passwd", TypeHTML); !errors.Is(err, ErrInvalidViewName) {
		t.Errorf("expected ErrInvalidViewName for traversal name, got %v", err)
	}
}

func TestNativeEngine_RenderComposed(t *testing.T) {
	e := setupNative(t)
	e.SetLayout("layout/base")

	var buf bytes.Buffer
	data := map[string]any{"title": "Folio", "name": "Ann"}
	if err := e.Render(context.Background(), &buf, "home", TypeHTML, data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	want := `<html><head><title>Folio | Home</title></head><body><nav>Nav</nav><h1>Hello Ann</h1></body></html>`
	if buf.String() != want {
		t.Errorf("composed output mismatch:\n got: %s\nwant: %s", buf.String(), want)
	}
}

func TestNativeEngine_RenderStandalone(t *testing.T) {
	e := setupNative(t)
	// No layout set: the page renders whole, with section text inline.

	var buf bytes.Buffer
	data := map[string]any{"title": "Folio", "name": "Ann"}
	if err := e.Render(context.Background(), &buf, "home", TypeHTML, data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	want := `Folio | Home<h1>Hello Ann</h1>`
	if buf.String() != want {
		t.Errorf("standalone output mismatch:\n got: %s\nwant: %s", buf.String(), want)
	}
}

func TestNativeEngine_FuncHelpers(t *testing.T) {
	e := setupNative(t)

	var buf bytes.Buffer
	data := map[string]any{"word": "go", "tags": []string{"a", "b"}}
	if err := e.Render(context.Background(), &buf, "about", TypeHTML, data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	want := `GO|Hello World|fb|/docs|/assets/app.css|a, b`
	if buf.String() != want {
		t.Errorf("helper output mismatch:\n got: %s\nwant: %s", buf.String(), want)
	}
}

func TestNativeEngine_HrefsConfigurable(t *testing.T) {
	e := setupNative(t)
	e.SetHrefs("/app/", "https://cdn.example.com/static")

	var buf bytes.Buffer
	data := map[string]any{"word": "x", "tags": []string{}}
	if err := e.Render(context.Background(), &buf, "about", TypeHTML, data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "/app/docs") {
		t.Errorf("expected href prefix '/app/docs' in output, got %s", out)
	}
	if !strings.Contains(out, "https://cdn.example.com/static/app.css") {
		t.Errorf("expected asset prefix in output, got %s", out)
	}
}

func TestNativeEngine_HTMLEscapes(t *testing.T) {
	e := setupNative(t)

	var buf bytes.Buffer
	if err := e.Render(context.Background(), &buf, "escape", TypeHTML, map[string]any{"raw": "<b>&"}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	want := `<p>&lt;b&gt;&amp;</p>`
	if buf.String() != want {
		t.Errorf("expected escaped output %q, got %q", want, buf.String())
	}
}

func TestNativeEngine_TextTypesUnescaped(t *testing.T) {
	e := setupNative(t)

	var buf bytes.Buffer
	data := map[string]any{"title": "My Feed", "raw": "<b>&"}
	if err := e.Render(context.Background(), &buf, "feed", TypeRSS, data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	want := `<?xml version="1.0"?><rss><title>My Feed</title><desc><b>&</desc></rss>`
	if buf.String() != want {
		t.Errorf("rss output mismatch:\n got: %s\nwant: %s", buf.String(), want)
	}
}

func TestNativeEngine_Refresh(t *testing.T) {
	e := setupNative(t)

	if _, err := e.Resolve("fresh", TypeHTML); err == nil {
		t.Fatal("expected 'fresh' to be unknown before the file exists")
	}

	writeView(t, e.Root(), "fresh.tmpl.html", `New Content`)
	if err := e.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if _, err := e.Resolve("fresh", TypeHTML); err != nil {
		t.Errorf("expected 'fresh' to resolve after Refresh, got %v", err)
	}

	var buf bytes.Buffer
	if err := e.Render(context.Background(), &buf, "fresh", TypeHTML, nil); err != nil {
		t.Fatalf("Render failed after refresh: %v", err)
	}
	if buf.String() != "New Content" {
		t.Errorf("expected 'New Content', got %q", buf.String())
	}
}

func TestNativeEngine_Compositor(t *testing.T) {
	e := setupNative(t)

	comp, err := e.Compositor("home", TypeHTML, map[string]any{"title": "Folio", "name": ""})
	if err != nil {
		t.Fatalf("Compositor failed: %v", err)
	}

	got, err := comp.Section("title", nil)
	if err != nil {
		t.Fatalf("Section failed: %v", err)
	}
	if got != "Folio | Home" {
		t.Errorf("expected section 'Folio | Home', got %q", got)
	}

	raw, err := comp.SectionRaw("title")
	if err != nil {
		t.Fatalf("SectionRaw failed: %v", err)
	}
	if raw != "{{ title }} | Home" {
		t.Errorf("expected raw section with marker intact, got %q", raw)
	}

	content, err := comp.Content(nil)
	if err != nil {
		t.Fatalf("Content failed: %v", err)
	}
	if content != "<h1>Hello </h1>" {
		t.Errorf("expected content around sections, got %q", content)
	}
}

func TestNativeEngine_RenderString(t *testing.T) {
	e := setupNative(t)

	var buf bytes.Buffer
	err := e.RenderString(&buf, `[[ upper .w ]] [[ template "nav.part.html" . ]]`, TypeHTML, map[string]any{"w": "hi"})
	if err != nil {
		t.Fatalf("RenderString failed: %v", err)
	}
	if buf.String() != "HI <nav>Nav</nav>" {
		t.Errorf("expected 'HI <nav>Nav</nav>', got %q", buf.String())
	}

	buf.Reset()
	if err = e.RenderString(&buf, `[[ upper`, TypeHTML, nil); err == nil {
		t.Error("expected a parse error for a broken view string, got nil")
	}
}

func TestNativeEngine_SetRootMissing(t *testing.T) {
	if _, err := NewNativeEngine(discardLogger(), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected an error for a missing views root, got nil")
	}
}

func BenchmarkNativeEngine_RenderComposed(b *testing.B) {
	e := setupNative(b)
	e.SetLayout("layout/base")
	data := map[string]any{"title": "Folio", "name": "Ann"}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		if err := e.Render(context.Background(), &buf, "home", TypeHTML, data); err != nil {
			b.Fatalf("Render failed: %v", err)
		}
	}
}
