package tobject

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// OptionReverse is the BEGIN option that inserts new instances in front of
// their siblings instead of after them.
const OptionReverse = "rsort"

var (
	extendRegex    = regexp.MustCompile(`(?is)^\s*<!--\s*EXTEND\s+(\S.*?)\s*-->`)
	includeRegex   = regexp.MustCompile(`(?is)<!--\s*INCLUDE\s+(\S.*?)\s*-->`)
	beginRegex     = regexp.MustCompile(`(?is)<!--\s*BEGIN\s+([a-z][a-z0-9_]*)((?:\s+[a-z]+)*)\s*-->`)
	emptyRegex     = regexp.MustCompile(`(?is)<!--\s*EMPTY\s+([a-z][a-z0-9_]*)\s*-->`)
	endRegex       = regexp.MustCompile(`(?is)<!--\s*END\s+([a-z][a-z0-9_]*)\s*-->`)
	recursionRegex = regexp.MustCompile(`(?is)<!--\s*RECURSION\s+([a-z][a-z0-9_]*)\s*-->`)
	variableRegex  = regexp.MustCompile(`(?i)\{\{([a-z][a-z0-9_]*)((?:\|[a-z][a-z0-9]*)*)\}\}`)

	placeholderRegex = regexp.MustCompile(`<!--__tobject_([0-9a-f]{16})_(block|var)\[([^\]]*)\]__-->`)
)

// Placeholders carry the parsing template's nonce so that look-alike text
// written by the author is never resolved.
func (t *Template) blockPlaceholder(name string) string {
	return fmt.Sprintf("<!--__tobject_%s_block[%s]__-->", t.nonce, name)
}

func (t *Template) variablePlaceholder(name, chain string) string {
	return fmt.Sprintf("<!--__tobject_%s_var[%s%s%s]__-->", t.nonce, name, ChainSeparator, chain)
}

// BlockDefinition is the static part of a block: its unparsed body and the
// optional fallback rendered when no instance exists.
type BlockDefinition struct {
	Name     string
	Body     string
	Empty    string
	HasEmpty bool
	Options  []string

	// dir is the base directory the body is parsed against on instantiation.
	dir string
}

// Reverse reports whether new instances go in front of existing ones.
func (d *BlockDefinition) Reverse() bool {
	return slices.Contains(d.Options, OptionReverse)
}

// blockSpan is one matched BEGIN...END construct.
type blockSpan struct {
	def        BlockDefinition
	start, end int
}

// text returns the full directive text of the span within markup.
func (s blockSpan) text(markup string) string {
	return markup[s.start:s.end]
}

// findNamed returns the bounds of the first match of re in s at or after
// from whose first group equals name, ignoring case.
func findNamed(re *regexp.Regexp, s string, from int, name string) (int, int) {
	for from <= len(s) {
		loc := re.FindStringSubmatchIndex(s[from:])
		if loc == nil {
			break
		}
		if strings.EqualFold(s[from+loc[2]:from+loc[3]], name) {
			return from + loc[0], from + loc[1]
		}
		from += loc[1]
	}
	return -1, -1
}

// matchBlockAt tries to complete a block whose BEGIN directive was matched
// at loc (absolute offsets). The body stops at the first EMPTY or END with
// the same name; an EMPTY with another name is ordinary body content.
func matchBlockAt(markup string, loc []int) (blockSpan, bool) {
	name := markup[loc[2]:loc[3]]
	endStart, endEnd := findNamed(endRegex, markup, loc[1], name)
	if endStart < 0 {
		return blockSpan{}, false
	}

	def := BlockDefinition{
		Name:    name,
		Options: parseOptions(markup[loc[4]:loc[5]]),
	}
	body := markup[loc[1]:endStart]
	if es, ee := findNamed(emptyRegex, body, 0, name); es >= 0 {
		def.Body = body[:es]
		def.Empty = body[ee:]
		def.HasEmpty = true
	} else {
		def.Body = body
	}
	return blockSpan{def: def, start: loc[0], end: endEnd}, true
}

func parseOptions(s string) []string {
	var opts []string
	for _, f := range strings.Fields(s) {
		f = strings.ToLower(f)
		if !slices.Contains(opts, f) {
			opts = append(opts, f)
		}
	}
	return opts
}

// scanBlocks walks markup once, left to right, and hands every top-level
// block to replace. Blocks nested inside a matched body are not visited.
func scanBlocks(markup string, replace func(span blockSpan) string) string {
	var b strings.Builder
	pos := 0
	for pos < len(markup) {
		loc := beginRegex.FindStringSubmatchIndex(markup[pos:])
		if loc == nil {
			break
		}
		for i := range loc {
			loc[i] += pos
		}
		span, ok := matchBlockAt(markup, loc)
		if !ok {
			// unterminated BEGIN stays as plain content
			b.WriteString(markup[pos:loc[1]])
			pos = loc[1]
			continue
		}
		b.WriteString(markup[pos:span.start])
		b.WriteString(replace(span))
		pos = span.end
	}
	b.WriteString(markup[pos:])
	return b.String()
}

// replaceNamedBlocks replaces every block called name, at any depth, with
// replacement. Matching restarts after each inserted replacement.
func replaceNamedBlocks(markup, name, replacement string) (string, int) {
	var b strings.Builder
	count := 0
	pos := 0
	for pos < len(markup) {
		loc := beginRegex.FindStringSubmatchIndex(markup[pos:])
		if loc == nil {
			break
		}
		for i := range loc {
			loc[i] += pos
		}
		if !strings.EqualFold(markup[loc[2]:loc[3]], name) {
			b.WriteString(markup[pos:loc[1]])
			pos = loc[1]
			continue
		}
		span, ok := matchBlockAt(markup, loc)
		if !ok {
			b.WriteString(markup[pos:loc[1]])
			pos = loc[1]
			continue
		}
		b.WriteString(markup[pos:span.start])
		b.WriteString(replacement)
		pos = span.end
		count++
	}
	b.WriteString(markup[pos:])
	return b.String(), count
}

// parseBlocks is the third pass. Block bodies are stored unparsed.
func (t *Template) parseBlocks(markup string) string {
	return scanBlocks(markup, func(span blockSpan) string {
		def := span.def
		def.dir = t.dir
		if _, dup := t.blocks[def.Name]; dup {
			t.logger.Debug("Block redefined, last definition wins", "block", def.Name)
		}
		t.blocks[def.Name] = &def
		return t.blockPlaceholder(def.Name)
	})
}

// parseRecursion is the fourth pass. Every RECURSION directive becomes a
// block whose body is the template's markup as it was before parsing.
func (t *Template) parseRecursion(markup string) string {
	return recursionRegex.ReplaceAllStringFunc(markup, func(m string) string {
		name := recursionRegex.FindStringSubmatch(m)[1]
		if _, dup := t.blocks[name]; dup {
			t.logger.Debug("Block redefined by recursion, last definition wins", "block", name)
		}
		t.blocks[name] = &BlockDefinition{
			Name: name,
			Body: t.source.Markup,
			dir:  t.source.Dir,
		}
		return t.blockPlaceholder(name)
	})
}

// parseVariables is the last pass. Each distinct chain literal used with a
// variable gets its own placeholder.
func (t *Template) parseVariables(markup string) string {
	return variableRegex.ReplaceAllStringFunc(markup, func(m string) string {
		sub := variableRegex.FindStringSubmatch(m)
		name := sub[1]
		chain := strings.TrimPrefix(sub[2], ChainSeparator)
		if !slices.Contains(t.variables[name], chain) {
			t.variables[name] = append(t.variables[name], chain)
		}
		return t.variablePlaceholder(name, chain)
	})
}
