// Command tobject renders block templates from disk or from a SQLite
// template store, and manages the store's contents.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/CTAG07/tobject/pkg/filters"
	"github.com/CTAG07/tobject/pkg/store"
	"github.com/CTAG07/tobject/pkg/tobject"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const usage = `usage: tobject [-config file] <command> [flags]

commands:
  render   -t template [-data file] [-out file] [-store]
  import   -dir dir [-pattern glob] | -json file
  export   [-out file]
  inspect  -t template [-store]
  version
`

var errUsage = errors.New("invalid usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// app carries what every command needs.
type app struct {
	config *Config
	logger *slog.Logger
	stdout io.Writer
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tobject", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { _, _ = io.WriteString(stderr, usage) }
	configPath := fs.String("config", "./config.json", "path to the JSON config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	if cmd == "version" {
		_, _ = fmt.Fprintf(stdout, "tobject %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		return 0
	}

	config, err := LoadConfig(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return 1
	}
	a := &app{config: config, logger: config.CLI.Logger(stderr), stdout: stdout}

	ctx := context.Background()
	switch cmd {
	case "render":
		err = a.render(ctx, cmdArgs)
	case "import":
		err = a.importTemplates(ctx, cmdArgs)
	case "export":
		err = a.export(ctx, cmdArgs)
	case "inspect":
		err = a.inspect(ctx, cmdArgs)
	default:
		a.logger.Error("Unknown command", "command", cmd)
		fs.Usage()
		return 2
	}

	switch {
	case errors.Is(err, errUsage):
		fs.Usage()
		return 2
	case err != nil:
		a.logger.Error("Command failed", "command", cmd, "error", err)
		return 1
	}
	return 0
}

// openStore opens the configured database and prepares the template store.
func (a *app) openStore() (*store.Store, func(), error) {
	dsn := a.config.CLI.DatabasePath
	file, _, _ := strings.Cut(dsn, "?")
	if dir := filepath.Dir(file); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := openDB(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err = store.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to setup template schema: %w", err)
	}
	s, err := store.New(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to create template store: %w", err)
	}
	s.SetLogger(a.logger)

	return s, func() {
		s.Close()
		if err := db.Close(); err != nil {
			a.logger.Error("Failed to close database", "error", err)
		}
	}, nil
}

// loadTemplate loads name from the filesystem, or from the store when
// fromStore is set, with the configured filters installed.
func (a *app) loadTemplate(name string, fromStore bool) (*tobject.Template, func(), error) {
	opts := []tobject.Option{
		tobject.WithConfig(*a.config.Template),
		tobject.WithLogger(a.logger),
	}

	var next tobject.Loader = tobject.NewFileSystemLoader()
	closeFn := func() {}
	if fromStore {
		s, closeStore, err := a.openStore()
		if err != nil {
			return nil, nil, err
		}
		next, closeFn = s, closeStore
		// store paths are rooted at the store, not the working directory
		opts = append(opts, tobject.WithBaseDir("."))
	}
	opts = append(opts, tobject.WithLoader(tobject.NewCachingLoader(next, a.config.CLI.CacheSize)))

	tmpl, err := tobject.Load(name, opts...)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	if err = filters.Install(tmpl, *a.config.Filters, false); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("failed to install filters: %w", err)
	}
	return tmpl, closeFn, nil
}

func (a *app) render(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	name := fs.String("t", "", "template to render")
	dataPath := fs.String("data", "", "YAML or JSON data file")
	out := fs.String("out", "", "output file (stdout when empty)")
	fromStore := fs.Bool("store", false, "load templates from the store")
	if err := fs.Parse(args); err != nil || *name == "" {
		return errUsage
	}

	data, err := loadData(*dataPath)
	if err != nil {
		return err
	}

	tmpl, closeFn, err := a.loadTemplate(*name, *fromStore)
	if err != nil {
		return err
	}
	defer closeFn()

	if err = tmpl.SetVarArray(data); err != nil {
		// unbound entries render as empty; the rest of the page is still useful
		a.logger.Warn("Some data could not be bound", "template", *name, "error", err)
	}

	text := tmpl.Output()
	if err = writeOutput(*out, text, a.stdout); err != nil {
		return err
	}
	a.logger.Debug("Template rendered", "template", *name, "bytes", len(text), "out", *out)
	return nil
}

func (a *app) importTemplates(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dir := fs.String("dir", "", "directory to import")
	pattern := fs.String("pattern", "*.html", "file name pattern")
	jsonPath := fs.String("json", "", "JSON export to import")
	if err := fs.Parse(args); err != nil || (*dir == "") == (*jsonPath == "") {
		return errUsage
	}

	s, closeFn, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	if *jsonPath != "" {
		f, err := os.Open(*jsonPath)
		if err != nil {
			return err
		}
		defer func(f *os.File) {
			_ = f.Close()
		}(f)
		return s.Import(ctx, f)
	}

	n, err := s.ImportDir(ctx, *dir, *pattern)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.stdout, "imported %d templates\n", n)
	return err
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	out := fs.String("out", "", "output file (stdout when empty)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	s, closeFn, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeFn()

	var buf bytes.Buffer
	if err = s.Export(ctx, &buf); err != nil {
		return err
	}
	return writeOutput(*out, buf.String(), a.stdout)
}

func (a *app) inspect(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	name := fs.String("t", "", "template to inspect")
	fromStore := fs.Bool("store", false, "load templates from the store")
	if err := fs.Parse(args); err != nil || *name == "" {
		return errUsage
	}

	tmpl, closeFn, err := a.loadTemplate(*name, *fromStore)
	if err != nil {
		return err
	}
	defer closeFn()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "template %s\n", tmpl.Source().Path)
	fmt.Fprintf(&buf, "filters  %s\n", strings.Join(tmpl.Filters(), ", "))
	if err = describe(&buf, tmpl, 0, nil); err != nil {
		return err
	}
	_, err = buf.WriteTo(a.stdout)
	return err
}

// describe prints the variable and block manifests of t, descending into
// each block through a throwaway instance. Blocks already on the current
// path are listed but not expanded again.
func describe(w io.Writer, t *tobject.Template, depth int, path []string) error {
	indent := strings.Repeat("  ", depth)
	for _, v := range t.Variables() {
		chains := t.VariableChains(v)
		for i, c := range chains {
			if c == "" {
				chains[i] = "(default)"
			}
		}
		fmt.Fprintf(w, "%s{{%s}} %s\n", indent, v, strings.Join(chains, ", "))
	}
	for _, name := range t.Blocks() {
		def, _ := t.Block(name)
		line := indent + "block " + name
		if len(def.Options) > 0 {
			line += " [" + strings.Join(def.Options, " ") + "]"
		}
		if def.HasEmpty {
			line += " +empty"
		}
		fmt.Fprintln(w, line)

		if containsFold(path, name) {
			continue
		}
		child, err := t.SetBlock(name)
		if err != nil {
			return err
		}
		if err = describe(w, child, depth+1, append(path, name)); err != nil {
			return err
		}
	}
	return nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
