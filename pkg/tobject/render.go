package tobject

import (
	"io"
	"strings"
)

// Output renders the template. The result is memoized and returned as is
// until the template or one of its instances is mutated.
func (t *Template) Output() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	rev := t.rev
	if t.cached && t.cachedRev == rev {
		return t.out
	}

	values := make(map[string]string, len(t.globals)+len(t.vars))
	for k, v := range t.globals {
		values[k] = v
	}
	for k, v := range t.vars {
		values[k] = v
	}

	var b strings.Builder
	pos := 0
	for _, loc := range placeholderRegex.FindAllStringSubmatchIndex(t.markup, -1) {
		b.WriteString(t.markup[pos:loc[0]])
		pos = loc[1]

		if t.markup[loc[2]:loc[3]] != t.nonce {
			b.WriteString(t.markup[loc[0]:loc[1]])
			continue
		}
		key := t.markup[loc[6]:loc[7]]
		if t.markup[loc[4]:loc[5]] == "block" {
			t.renderBlock(&b, key)
			continue
		}
		name, chain, _ := strings.Cut(key, ChainSeparator)
		value, ok := values[name]
		if !ok {
			continue
		}
		b.WriteString(t.filterValue(name, chain, value))
	}
	b.WriteString(t.markup[pos:])

	t.out = b.String()
	t.cached = true
	t.cachedRev = rev
	if t.out == "" {
		t.logger.Debug("Template output is empty")
	}
	return t.out
}

func (t *Template) renderBlock(b *strings.Builder, name string) {
	list := t.instances[name]
	if len(list) == 0 {
		if def, ok := t.blocks[name]; ok && def.HasEmpty {
			b.WriteString(def.Empty)
		}
		return
	}
	for _, child := range list {
		b.WriteString(child.Output())
	}
}

// filterValue resolves the effective chain for one occurrence and applies
// it. A failing chain renders as an empty string.
func (t *Template) filterValue(name, chain, value string) string {
	switch {
	case t.config.ForcedFilter != "":
		chain = t.config.ForcedFilter
	case chain == "":
		chain = t.config.DefaultFilter
	}
	if chain == "" {
		return value
	}
	out, err := t.filters.Apply(chain, value)
	if err != nil {
		t.notice("Failed to apply filter chain", "variable", name, "chain", chain, "error", err)
		return ""
	}
	return out
}

// Execute writes the rendered template to w.
func (t *Template) Execute(w io.Writer) error {
	_, err := io.WriteString(w, t.Output())
	return err
}
