// Package filters provides optional tobject filters backed by third-party
// Markdown and HTML sanitizing libraries.
package filters

import (
	"errors"

	"github.com/CTAG07/tobject/pkg/tobject"
	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday"
)

// Names under which Install registers the filters.
const (
	NameMarkdown = "markdown"
	NameSanitize = "sanitize"
	NameStrip    = "strip"
)

// Config selects which filters Install registers.
type Config struct {
	Markdown bool `json:"markdown"`
	Sanitize bool `json:"sanitize"`
	Strip    bool `json:"strip"`
}

// DefaultConfig enables every filter.
func DefaultConfig() Config {
	return Config{Markdown: true, Sanitize: true, Strip: true}
}

// Registry is anything filters can be added to; *tobject.Template is one.
type Registry interface {
	AddFilter(name string, f tobject.Filter, overwrite bool) error
}

const markdownExtensions = blackfriday.EXTENSION_NO_INTRA_EMPHASIS |
	blackfriday.EXTENSION_TABLES |
	blackfriday.EXTENSION_AUTOLINK |
	blackfriday.EXTENSION_FENCED_CODE |
	blackfriday.EXTENSION_HEADER_IDS |
	blackfriday.EXTENSION_LAX_HTML_BLOCKS

var (
	markdownRenderer blackfriday.Renderer
	ugcPolicy        *bluemonday.Policy
	strictPolicy     *bluemonday.Policy
)

func init() {
	markdownRenderer = blackfriday.HtmlRenderer(blackfriday.HTML_SAFELINK|
		blackfriday.HTML_NOFOLLOW_LINKS, "", "")
	ugcPolicy = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()
}

// Markdown renders s as Markdown and sanitizes the resulting HTML.
func Markdown(s string) string {
	md := blackfriday.Markdown([]byte(s), markdownRenderer, markdownExtensions)
	return ugcPolicy.Sanitize(string(md))
}

// Sanitize removes elements and attributes that are unsafe in user
// generated content, keeping ordinary formatting.
func Sanitize(s string) string {
	return ugcPolicy.Sanitize(s)
}

// Strip removes all HTML markup, leaving escaped text.
func Strip(s string) string {
	return strictPolicy.Sanitize(s)
}

// Install registers the enabled filters on r, replacing filters of the same
// name when overwrite is true.
func Install(r Registry, cfg Config, overwrite bool) error {
	var errs []error
	if cfg.Markdown {
		errs = append(errs, r.AddFilter(NameMarkdown, tobject.FilterFunc(Markdown), overwrite))
	}
	if cfg.Sanitize {
		errs = append(errs, r.AddFilter(NameSanitize, tobject.FilterFunc(Sanitize), overwrite))
	}
	if cfg.Strip {
		errs = append(errs, r.AddFilter(NameStrip, tobject.FilterFunc(Strip), overwrite))
	}
	return errors.Join(errs...)
}
