package tobject

import (
	"errors"
	"testing"
	"testing/fstest"
)

// countingLoader records how often each path reaches the wrapped loader.
type countingLoader struct {
	Loader
	loads map[string]int
}

func (c *countingLoader) Load(path string) (Source, error) {
	c.loads[path]++
	return c.Loader.Load(path)
}

func TestCachingLoader(t *testing.T) {
	inner := &countingLoader{
		Loader: NewFSLoader(fstest.MapFS{
			"page.html": {Data: []byte(`<!-- INCLUDE part.html -->{{X}}`)},
			"part.html": {Data: []byte(`part`)},
		}),
		loads: map[string]int{},
	}
	loader := NewCachingLoader(inner, 8)

	for i := 0; i < 3; i++ {
		tmpl, err := Load("page.html", WithLoader(loader))
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got := tmpl.Output(); got != "part" {
			t.Errorf("Output() = %q, want %q", got, "part")
		}
	}
	if inner.loads["page.html"] != 1 || inner.loads["part.html"] != 1 {
		t.Errorf("expected one load per path, got %v", inner.loads)
	}
	if loader.Len() != 2 {
		t.Errorf("Len() = %d, want 2", loader.Len())
	}

	loader.Forget("part.html")
	if _, err := Load("page.html", WithLoader(loader)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if inner.loads["part.html"] != 2 {
		t.Errorf("expected part.html to be reloaded after Forget, got %d loads", inner.loads["part.html"])
	}

	if _, err := loader.Load("gone.html"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := loader.Load("gone.html"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if inner.loads["gone.html"] != 2 {
		t.Errorf("failed loads must not be cached, got %d loads", inner.loads["gone.html"])
	}

	loader.Purge()
	if loader.Len() != 0 {
		t.Errorf("Len() after Purge = %d, want 0", loader.Len())
	}
}

func TestJoinSlash(t *testing.T) {
	tests := []struct {
		base, name, want string
	}{
		{".", "page.html", "page.html"},
		{"tpl", "parts/head.html", "tpl/parts/head.html"},
		{"tpl/sub", "../x.html", "tpl/x.html"},
		{"tpl", "/root.html", "root.html"},
		{"", "a.html", "a.html"},
		{".", "../../escape.html", "escape.html"},
	}
	for _, tt := range tests {
		if got := JoinSlash(tt.base, tt.name); got != tt.want {
			t.Errorf("JoinSlash(%q, %q) = %q, want %q", tt.base, tt.name, got, tt.want)
		}
	}
}
