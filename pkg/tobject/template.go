package tobject

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math/rand/v2"
	"slices"
	"sync"
)

// Template is a parsed template together with the data bound to it. The
// manifests of blocks and variables are fixed at construction; variable
// values, global values, filters and block instances change afterwards.
type Template struct {
	source Source
	dir    string
	markup string

	loader Loader
	logger *slog.Logger
	config Config

	blocks    map[string]*BlockDefinition
	variables map[string][]string

	instances map[string][]*Template
	vars      map[string]string
	globals   map[string]string
	filters   Filters

	parent *Template
	nonce  string

	// rev counts mutations of this template and of every instance below it.
	rev uint64

	mu        sync.Mutex
	out       string
	cached    bool
	cachedRev uint64
}

func newTemplate(opts ...Option) *Template {
	t := &Template{
		loader:    NewFileSystemLoader(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		config:    DefaultConfig(),
		blocks:    make(map[string]*BlockDefinition),
		variables: make(map[string][]string),
		instances: make(map[string][]*Template),
		vars:      make(map[string]string),
		globals:   make(map[string]string),
		filters:   DefaultFilters(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// New parses markup held in memory. Relative EXTEND and INCLUDE paths are
// resolved against the configured BaseDir.
func New(markup string, opts ...Option) (*Template, error) {
	t := newTemplate(opts...)
	if err := t.checkConfig(); err != nil {
		return nil, err
	}
	if err := t.parse(Source{Dir: t.config.BaseDir, Markup: markup}); err != nil {
		return nil, err
	}
	return t, nil
}

// Load reads the template at name through the configured Loader and parses
// it. Its own directory becomes the base for relative paths.
func Load(name string, opts ...Option) (*Template, error) {
	t := newTemplate(opts...)
	if err := t.checkConfig(); err != nil {
		return nil, err
	}
	src, err := t.loader.Load(t.loader.Resolve(t.config.BaseDir, name))
	if err != nil {
		return nil, err
	}
	if err = t.parse(src); err != nil {
		return nil, err
	}
	return t, nil
}

// parse runs the five passes in their fixed order.
func (t *Template) parse(src Source) error {
	t.source = src
	t.nonce = fmt.Sprintf("%016x", rand.Uint64())
	markup, dir, err := newResolver(t.loader, t.logger, src).resolve(src.Markup, src.Dir)
	if err != nil {
		return err
	}
	t.dir = dir
	markup = t.parseBlocks(markup)
	markup = t.parseRecursion(markup)
	t.markup = t.parseVariables(markup)
	return nil
}

// touch invalidates the output cache of t and of every ancestor.
func (t *Template) touch() {
	for n := t; n != nil; n = n.parent {
		n.rev++
	}
}

func (t *Template) checkConfig() error {
	if err := checkChain(t.config.DefaultFilter); err != nil {
		return fmt.Errorf("default filter: %w", err)
	}
	if err := checkChain(t.config.ForcedFilter); err != nil {
		return fmt.Errorf("forced filter: %w", err)
	}
	return nil
}

func (t *Template) notice(msg string, args ...any) {
	t.logger.Warn(msg, args...)
}

// SetBlock creates a new instance of the named block and returns it for
// binding. Repeated calls produce ordered siblings; blocks declared with
// the rsort option receive new instances at the front.
func (t *Template) SetBlock(name string) (*Template, error) {
	def, ok := t.blocks[name]
	if !ok {
		t.notice("Unknown block", "block", name)
		return nil, fmt.Errorf("%w %q", ErrUnknownBlock, name)
	}

	child := &Template{
		parent:    t,
		loader:    t.loader,
		logger:    t.logger,
		config:    t.config,
		blocks:    make(map[string]*BlockDefinition),
		variables: make(map[string][]string),
		instances: make(map[string][]*Template),
		vars:      make(map[string]string),
		globals:   maps.Clone(t.globals),
		filters:   t.filters.Clone(),
	}
	if err := child.parse(Source{Dir: def.dir, Markup: def.Body}); err != nil {
		return nil, fmt.Errorf("block %q: %w", name, err)
	}

	if def.Reverse() {
		t.instances[name] = slices.Insert(t.instances[name], 0, child)
	} else {
		t.instances[name] = append(t.instances[name], child)
	}
	t.touch()
	return child, nil
}

// SetVariable binds value to a variable used by this template.
func (t *Template) SetVariable(name, value string) error {
	if _, ok := t.variables[name]; !ok {
		t.notice("Unknown variable", "variable", name)
		return fmt.Errorf("%w %q", ErrUnknownVariable, name)
	}
	t.vars[name] = value
	t.touch()
	return nil
}

// SetGlobalVariable binds value in this template and in every block
// instance created from it afterwards. Instances that already exist keep
// the scope they were created with.
func (t *Template) SetGlobalVariable(name, value string) {
	t.globals[name] = value
	t.touch()
}

// AddFilter registers f under name. An existing filter is only replaced
// when overwrite is true.
func (t *Template) AddFilter(name string, f Filter, overwrite bool) error {
	if !ValidFilterName(name) {
		t.notice("Invalid filter name", "filter", name)
		return fmt.Errorf("%w %q", ErrInvalidFilterName, name)
	}
	if _, exists := t.filters[name]; exists && !overwrite {
		t.notice("Filter already exists", "filter", name)
		return fmt.Errorf("%w %q", ErrFilterExists, name)
	}
	if f == nil {
		t.notice("Filter is not callable", "filter", name)
		return fmt.Errorf("%w %q", ErrInvalidFilter, name)
	}
	if fn, ok := f.(FilterFunc); ok && fn == nil {
		t.notice("Filter is not callable", "filter", name)
		return fmt.Errorf("%w %q", ErrInvalidFilter, name)
	}
	t.filters[name] = f
	t.touch()
	return nil
}

// RemoveFilter unregisters a filter.
func (t *Template) RemoveFilter(name string) error {
	if _, ok := t.filters[name]; !ok {
		t.notice("Unknown filter", "filter", name)
		return fmt.Errorf("%w %q", ErrUnknownFilter, name)
	}
	delete(t.filters, name)
	t.touch()
	return nil
}

// SetDefaultFilter sets the chain applied to variables written without one.
// The chain must be well formed; its filters may be registered later.
func (t *Template) SetDefaultFilter(chain string) error {
	if err := checkChain(chain); err != nil {
		t.notice("Invalid default filter chain", "chain", chain)
		return err
	}
	t.config.DefaultFilter = chain
	t.touch()
	return nil
}

// SetForcedFilter sets a chain applied to every variable in place of its
// own chain. An empty chain turns forcing off.
func (t *Template) SetForcedFilter(chain string) error {
	if err := checkChain(chain); err != nil {
		t.notice("Invalid forced filter chain", "chain", chain)
		return err
	}
	t.config.ForcedFilter = chain
	t.touch()
	return nil
}

// Config returns the template's current settings.
func (t *Template) Config() Config {
	return t.config
}

// Source returns the markup and location the template was built from.
func (t *Template) Source() Source {
	return t.source
}

// Dir returns the directory relative paths resolve against after extending.
func (t *Template) Dir() string {
	return t.dir
}

// Blocks returns the names of all defined blocks, sorted.
func (t *Template) Blocks() []string {
	return slices.Sorted(maps.Keys(t.blocks))
}

// Block returns the definition of the named block.
func (t *Template) Block(name string) (BlockDefinition, bool) {
	def, ok := t.blocks[name]
	if !ok {
		return BlockDefinition{}, false
	}
	d := *def
	d.Options = slices.Clone(def.Options)
	return d, true
}

// Variables returns the names of all variables used, sorted.
func (t *Template) Variables() []string {
	return slices.Sorted(maps.Keys(t.variables))
}

// VariableChains returns the distinct filter chains a variable is written
// with, in the order they first appear.
func (t *Template) VariableChains(name string) []string {
	return slices.Clone(t.variables[name])
}

// Filters returns the registered filter names, sorted.
func (t *Template) Filters() []string {
	return t.filters.Names()
}

// Instances returns the live instances of a block in render order.
func (t *Template) Instances(name string) []*Template {
	return slices.Clone(t.instances[name])
}
