package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

const (
	baseMarkup = `<title>{{TITLE}}</title><!-- BEGIN content -->default<!-- END content -->` +
		`<!-- BEGIN items -->[{{NAME}}]<!-- EMPTY items -->none<!-- END items -->`
	pageMarkup = `<!-- EXTEND base.html --><!-- BEGIN content -->{{BODY|sanitize}}<!-- END content -->`
	pageData   = `TITLE: "A & B"
content:
  BODY: "<b>hi</b><script>x</script>"
items:
  - NAME: one
  - NAME: two
`
	pageWant = `<title>A &amp; B</title><b>hi</b>[one][two]`
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

// setupWorkspace lays out templates, a data file and a config whose store
// lives in the temp dir.
func setupWorkspace(t *testing.T) (dir, configPath string) {
	t.Helper()
	dir = t.TempDir()
	writeFile(t, filepath.Join(dir, "tpl", "base.html"), baseMarkup)
	writeFile(t, filepath.Join(dir, "tpl", "page.html"), pageMarkup)
	writeFile(t, filepath.Join(dir, "tpl", "notes.txt"), "not a template")
	writeFile(t, filepath.Join(dir, "data.yaml"), pageData)

	configPath = filepath.Join(dir, "config.json")
	cfg := map[string]any{
		"cli_config": map[string]any{
			"log_level":     "error",
			"database_path": filepath.Join(dir, "db", "tobject.db"),
			"cache_size":    16,
		},
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, configPath, string(data))
	return dir, configPath
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Template.DefaultFilter != "html" || cfg.CLI.LogLevel != "info" || !cfg.Filters.Markdown {
		t.Errorf("unexpected defaults: %+v %+v %+v", cfg.CLI, cfg.Template, cfg.Filters)
	}
	if _, err = os.Stat(path); err != nil {
		t.Errorf("expected the default config to be written: %v", err)
	}

	writeFile(t, path, `{"cli_config": {"log_level": "debug"}, "template_config": {"default_filter": "raw"}, "filters_config": null}`)
	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.CLI.LogLevel != "debug" || cfg.CLI.CacheSize != DefaultCLIConfig().CacheSize {
		t.Errorf("partial cli_config not merged over defaults: %+v", cfg.CLI)
	}
	if cfg.Template.DefaultFilter != "raw" || cfg.Template.BaseDir != "." {
		t.Errorf("partial template_config not merged over defaults: %+v", cfg.Template)
	}
	if cfg.Filters == nil || !cfg.Filters.Sanitize {
		t.Errorf("null filters_config should fall back to defaults, got %+v", cfg.Filters)
	}

	writeFile(t, path, `null`)
	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig on a null file failed: %v", err)
	}
	if cfg.CLI == nil || cfg.CLI.LogLevel != "info" || cfg.Template == nil || cfg.Filters == nil {
		t.Errorf("a null file should leave the defaults in place, got %+v", cfg)
	}

	writeFile(t, path, `{not json`)
	if _, err = LoadConfig(path); err == nil {
		t.Error("expected an error for a malformed config")
	}
}

func TestRun_Usage(t *testing.T) {
	_, configPath := setupWorkspace(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no command", []string{"-config", configPath}, 2},
		{"unknown command", []string{"-config", configPath, "frobnicate"}, 2},
		{"render without template", []string{"-config", configPath, "render"}, 2},
		{"import without source", []string{"-config", configPath, "import", "-pattern", "*.x"}, 2},
		{"version", []string{"version"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _, _ := runCLI(t, tt.args...); code != tt.want {
				t.Errorf("exit code = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestRun_Render(t *testing.T) {
	dir, configPath := setupWorkspace(t)
	page := filepath.Join(dir, "tpl", "page.html")
	data := filepath.Join(dir, "data.yaml")

	code, stdout, stderr := runCLI(t, "-config", configPath, "render", "-t", page, "-data", data)
	if code != 0 {
		t.Fatalf("render exited %d: %s", code, stderr)
	}
	if stdout != pageWant {
		t.Errorf("render output = %q, want %q", stdout, pageWant)
	}

	code, stdout, _ = runCLI(t, "-config", configPath, "render", "-t", page)
	if code != 0 {
		t.Fatalf("render without data exited %d", code)
	}
	if want := "<title></title>none"; stdout != want {
		t.Errorf("render without data = %q, want %q", stdout, want)
	}

	if code, _, _ = runCLI(t, "-config", configPath, "render", "-t", filepath.Join(dir, "missing.html")); code != 1 {
		t.Errorf("rendering a missing template exited %d, want 1", code)
	}
}

func TestRun_RenderToFile(t *testing.T) {
	dir, configPath := setupWorkspace(t)
	page := filepath.Join(dir, "tpl", "page.html")
	data := filepath.Join(dir, "data.yaml")

	plain := filepath.Join(dir, "out", "page.html")
	if err := os.MkdirAll(filepath.Dir(plain), 0o755); err != nil {
		t.Fatal(err)
	}
	if code, _, stderr := runCLI(t, "-config", configPath, "render", "-t", page, "-data", data, "-out", plain); code != 0 {
		t.Fatalf("render exited %d: %s", code, stderr)
	}
	got, err := os.ReadFile(plain)
	if err != nil {
		t.Fatalf("reading output failed: %v", err)
	}
	if string(got) != pageWant {
		t.Errorf("file output = %q, want %q", got, pageWant)
	}

	compressed := filepath.Join(dir, "out", "page.html.gz")
	if code, _, stderr := runCLI(t, "-config", configPath, "render", "-t", page, "-data", data, "-out", compressed); code != 0 {
		t.Fatalf("render exited %d: %s", code, stderr)
	}
	f, err := os.Open(compressed)
	if err != nil {
		t.Fatalf("opening gzip output failed: %v", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("output is not gzip: %v", err)
	}
	got, err = io.ReadAll(zr)
	if err != nil {
		t.Fatalf("reading gzip output failed: %v", err)
	}
	if string(got) != pageWant {
		t.Errorf("gzip output = %q, want %q", got, pageWant)
	}
}

func TestRun_Inspect(t *testing.T) {
	dir, configPath := setupWorkspace(t)

	code, stdout, stderr := runCLI(t, "-config", configPath, "inspect", "-t", filepath.Join(dir, "tpl", "page.html"))
	if code != 0 {
		t.Fatalf("inspect exited %d: %s", code, stderr)
	}
	for _, want := range []string{
		"filters  html, js, markdown, nl2br, raw, sanitize, strip\n",
		"{{TITLE}} (default)\n",
		"block content\n  {{BODY}} sanitize\n",
		"block items +empty\n  {{NAME}} (default)\n",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("inspect output missing %q:\n%s", want, stdout)
		}
	}
}

func TestRun_StoreRoundTrip(t *testing.T) {
	dir, configPath := setupWorkspace(t)
	data := filepath.Join(dir, "data.yaml")

	code, stdout, stderr := runCLI(t, "-config", configPath, "import", "-dir", filepath.Join(dir, "tpl"))
	if code != 0 {
		t.Fatalf("import exited %d: %s", code, stderr)
	}
	if stdout != "imported 2 templates\n" {
		t.Errorf("import output = %q", stdout)
	}

	code, stdout, stderr = runCLI(t, "-config", configPath, "render", "-store", "-t", "page.html", "-data", data)
	if code != 0 {
		t.Fatalf("render -store exited %d: %s", code, stderr)
	}
	if stdout != pageWant {
		t.Errorf("render -store output = %q, want %q", stdout, pageWant)
	}

	export := filepath.Join(dir, "export.json")
	if code, _, stderr = runCLI(t, "-config", configPath, "export", "-out", export); code != 0 {
		t.Fatalf("export exited %d: %s", code, stderr)
	}

	// a second workspace starts from the export alone
	_, otherConfig := setupWorkspace(t)
	if code, _, stderr = runCLI(t, "-config", otherConfig, "import", "-json", export); code != 0 {
		t.Fatalf("import -json exited %d: %s", code, stderr)
	}
	code, stdout, stderr = runCLI(t, "-config", otherConfig, "render", "-store", "-t", "/page.html", "-data", data)
	if code != 0 {
		t.Fatalf("render from imported store exited %d: %s", code, stderr)
	}
	if stdout != pageWant {
		t.Errorf("render from imported store = %q, want %q", stdout, pageWant)
	}
}
