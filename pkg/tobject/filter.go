package tobject

import (
	"fmt"
	"html"
	"maps"
	"regexp"
	"slices"
	"strings"
)

// Names of the filters every template starts with.
const (
	FilterRaw   = "raw"
	FilterHTML  = "html"
	FilterNl2br = "nl2br"
	FilterJS    = "js"
)

// ChainSeparator separates filter names inside {{VAR|a|b}}.
const ChainSeparator = "|"

var filterNameRegex = regexp.MustCompile(`(?i)^[a-z][a-z0-9]*$`)

// Filter is a named text transform applied to a variable's value.
type Filter interface {
	Apply(s string) string
}

// FilterFunc adapts an ordinary function to the Filter interface.
type FilterFunc func(string) string

func (f FilterFunc) Apply(s string) string {
	return f(s)
}

type rawFilter struct{}

func (rawFilter) Apply(s string) string { return s }

// Raw is the no-op marker. A chain segment resolving to Raw passes the value
// through without invoking anything.
var Raw Filter = rawFilter{}

// Filters is a name-keyed filter registry. Each Template owns one; block
// instances receive a copy.
type Filters map[string]Filter

// DefaultFilters returns a fresh registry holding raw, html, nl2br and js.
func DefaultFilters() Filters {
	return Filters{
		FilterRaw:   Raw,
		FilterHTML:  FilterFunc(EscapeHTML),
		FilterNl2br: FilterFunc(Nl2br),
		FilterJS:    FilterFunc(AddSlashes),
	}
}

// Clone returns a copy of the registry that shares no map with f.
func (f Filters) Clone() Filters {
	return maps.Clone(f)
}

// Names returns the registered filter names in sorted order.
func (f Filters) Names() []string {
	return slices.Sorted(maps.Keys(f))
}

// Apply runs value through every filter of chain, left to right. An empty
// chain must be resolved to a default by the caller.
func (f Filters) Apply(chain, value string) (string, error) {
	for _, name := range strings.Split(chain, ChainSeparator) {
		filter, ok := f[name]
		if !ok {
			return "", fmt.Errorf("%w %q in chain %q", ErrUnknownFilter, name, chain)
		}
		if filter == Raw {
			continue
		}
		value = filter.Apply(value)
	}
	return value, nil
}

// ValidFilterName reports whether name can be registered as a filter.
func ValidFilterName(name string) bool {
	return filterNameRegex.MatchString(name)
}

// checkChain reports a malformed chain. The empty chain is well formed.
func checkChain(chain string) error {
	if chain == "" {
		return nil
	}
	for _, name := range strings.Split(chain, ChainSeparator) {
		if !ValidFilterName(name) {
			return fmt.Errorf("%w %q in chain %q", ErrInvalidFilterName, name, chain)
		}
	}
	return nil
}

// EscapeHTML converts the characters <, >, &, ' and " to HTML entities.
func EscapeHTML(s string) string {
	return html.EscapeString(s)
}

var nl2brReplacer = strings.NewReplacer(
	"\r\n", "<br />\r\n",
	"\n\r", "<br />\n\r",
	"\n", "<br />\n",
	"\r", "<br />\r",
)

// Nl2br inserts an HTML line break before every line ending.
func Nl2br(s string) string {
	return nl2brReplacer.Replace(s)
}

var slashReplacer = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	"\x00", `\0`,
)

// AddSlashes backslash-escapes quotes, backslashes and NUL bytes so the value
// can be placed inside a quoted script string.
func AddSlashes(s string) string {
	return slashReplacer.Replace(s)
}
