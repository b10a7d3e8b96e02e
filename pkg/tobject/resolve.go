package tobject

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// resolver walks the EXTEND and INCLUDE graph of a single construction.
// Its visited sets live only as long as the resolver itself.
type resolver struct {
	loader Loader
	logger *slog.Logger

	extendChain  []string
	includeRoots []string

	// overrides holds the block spans collected from every more-derived
	// level seen so far, in capture order.
	overrides     map[string]string
	overrideOrder []string
}

func newResolver(loader Loader, logger *slog.Logger, src Source) *resolver {
	r := &resolver{
		loader:    loader,
		logger:    logger,
		overrides: make(map[string]string),
	}
	if src.Path != "" {
		r.extendChain = []string{src.Path}
		r.includeRoots = []string{src.Path}
	}
	return r
}

// resolve runs the EXTEND and INCLUDE phases and returns the resulting
// markup together with the base directory it must be read against.
func (r *resolver) resolve(markup, dir string) (string, string, error) {
	markup, dir, err := r.extend(markup, dir)
	if err != nil {
		return "", "", err
	}
	for includeRegex.MatchString(markup) {
		if markup, err = r.include(markup, dir, r.includeRoots); err != nil {
			return "", "", err
		}
		// an included fragment may have put an EXTEND at the very start
		if markup, dir, err = r.extend(markup, dir); err != nil {
			return "", "", err
		}
	}
	return markup, dir, nil
}

// extend replaces markup with its ancestor for as long as it starts with an
// EXTEND directive, carrying the blocks of every descendant level down.
func (r *resolver) extend(markup, dir string) (string, string, error) {
	for {
		m := extendRegex.FindStringSubmatchIndex(markup)
		if m == nil {
			return markup, dir, nil
		}
		name := strings.TrimSpace(markup[m[2]:m[3]])
		target := r.loader.Resolve(dir, name)
		if slices.Contains(r.extendChain, target) {
			return "", "", &CycleError{Kind: CycleExtend, Path: target, Chain: slices.Clone(r.extendChain)}
		}
		r.extendChain = append(r.extendChain, target)

		r.captureOverrides(markup[m[1]:])

		src, err := r.loader.Load(target)
		if err != nil {
			return "", "", fmt.Errorf("extend %q: %w", name, err)
		}
		markup = r.applyOverrides(src.Markup)
		dir = src.Dir
	}
}

// captureOverrides records every top-level block of a descendant. A block
// seen again at a less-derived level replaces the stored span, which is
// already the more-derived version once applyOverrides has run.
func (r *resolver) captureOverrides(markup string) {
	scanBlocks(markup, func(span blockSpan) string {
		text := span.text(markup)
		if _, ok := r.overrides[span.def.Name]; !ok {
			r.overrideOrder = append(r.overrideOrder, span.def.Name)
		}
		r.overrides[span.def.Name] = text
		return text
	})
}

// applyOverrides swaps the ancestor's blocks for the collected overrides.
// Overrides naming a block the ancestor does not have are left for the
// next level, or ignored.
func (r *resolver) applyOverrides(markup string) string {
	for _, name := range r.overrideOrder {
		markup, _ = replaceNamedBlocks(markup, name, r.overrides[name])
	}
	return markup
}

// include expands every INCLUDE directive in markup depth-first. chain
// holds the paths whose content is currently being expanded.
func (r *resolver) include(markup, dir string, chain []string) (string, error) {
	locs := includeRegex.FindAllStringSubmatchIndex(markup, -1)
	if locs == nil {
		return markup, nil
	}

	var b strings.Builder
	pos := 0
	for _, loc := range locs {
		b.WriteString(markup[pos:loc[0]])
		pos = loc[1]

		name := strings.TrimSpace(markup[loc[2]:loc[3]])
		target := r.loader.Resolve(dir, name)
		if slices.Contains(chain, target) {
			return "", &CycleError{Kind: CycleInclude, Path: target, Chain: slices.Clone(chain)}
		}

		src, err := r.loader.Load(target)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				r.logger.Warn("Included template not found", "path", target, "include", name)
			} else {
				r.logger.Warn("Failed to load included template", "path", target, "include", name, "error", err)
			}
			continue
		}

		// blocks arriving through an ancestor's includes are overridable too
		content, err := r.include(r.applyOverrides(src.Markup), dir, append(slices.Clone(chain), target))
		if err != nil {
			return "", err
		}
		b.WriteString(content)
	}
	b.WriteString(markup[pos:])
	return b.String(), nil
}
