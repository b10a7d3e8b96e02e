package tobject

import "log/slog"

// Config holds the per-template settings that are copied into every block
// instance at the moment it is created.
type Config struct {
	// DefaultFilter is the filter chain used for {{VAR}} occurrences written
	// without an explicit chain.
	DefaultFilter string `json:"default_filter"`

	// ForcedFilter, when set, replaces the chain of every variable occurrence,
	// explicit or not.
	ForcedFilter string `json:"forced_filter"`

	// BaseDir is the directory relative EXTEND and INCLUDE paths of a
	// template built from memory are resolved against.
	BaseDir string `json:"base_dir"`
}

// DefaultConfig returns a Config that HTML-escapes variables by default and
// resolves relative paths against the working directory.
func DefaultConfig() Config {
	return Config{
		DefaultFilter: FilterHTML,
		ForcedFilter:  "",
		BaseDir:       ".",
	}
}

// Option configures a Template during construction.
type Option func(*Template)

// WithConfig replaces the template's whole Config.
func WithConfig(cfg Config) Option {
	return func(t *Template) {
		t.config = cfg
	}
}

// WithLoader sets the collaborator used to fetch EXTEND and INCLUDE targets.
func WithLoader(loader Loader) Option {
	return func(t *Template) {
		if loader != nil {
			t.loader = loader
		}
	}
}

// WithLogger sets the notice channel. By default, all notices are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Template) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithBaseDir sets the directory relative paths are resolved against.
func WithBaseDir(dir string) Option {
	return func(t *Template) {
		t.config.BaseDir = dir
	}
}

// WithDefaultFilter sets the chain used for variables without one.
func WithDefaultFilter(chain string) Option {
	return func(t *Template) {
		t.config.DefaultFilter = chain
	}
}

// WithForcedFilter sets a chain that overrides every variable's own chain.
func WithForcedFilter(chain string) Option {
	return func(t *Template) {
		t.config.ForcedFilter = chain
	}
}
