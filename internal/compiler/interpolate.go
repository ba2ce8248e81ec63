package compiler

import (
	"regexp"
	"strings"

	hakaierrors "github.com/KevTale/hakai/internal/errors"
	"github.com/KevTale/hakai/internal/markup"
	"github.com/KevTale/hakai/internal/types"
)

// interpolate substitutes every {{ name }} token of c.template with the
// bound literal. Values are not HTML-escaped. The first unbound token fails
// with UndefinedTemplateVariable located in the file that introduced it.
func interpolate(c composed) (string, error) {
	matches := tokenPattern.FindAllStringSubmatchIndex(c.template, -1)
	if len(matches) == 0 {
		return c.template, nil
	}

	var b strings.Builder
	b.Grow(len(c.template))
	last := 0

	for _, m := range matches {
		name := c.template[m[2]:m[3]]
		value, ok := c.context[name]
		if !ok {
			return "", undefinedVariable(c, name, m[0])
		}
		b.WriteString(c.template[last:m[0]])
		b.WriteString(value.String())
		last = m[1]
	}
	b.WriteString(c.template[last:])

	return b.String(), nil
}

// undefinedVariable locates name in the raw source of the first unit that
// spells it, using the declared name for renamed variables. Without a match
// the position falls back to the merged template within the leaf page.
func undefinedVariable(c composed, name string, offset int) error {
	for _, u := range c.units {
		written := name
		if original, ok := u.original[name]; ok {
			written = original
		}
		pattern := regexp.MustCompile(`\{\{\s*` + regexp.QuoteMeta(written) + `\s*\}\}`)
		if loc := pattern.FindStringIndex(u.unit.Raw); loc != nil {
			line, col := markup.LineColumn(u.unit.Raw, loc[0])
			return hakaierrors.NewUndefinedTemplateVariable(written, u.unit.Path, line, col)
		}
	}

	file := ""
	if leaf := leafPage(c.units); leaf != nil {
		file = leaf.unit.Path
	}
	line, col := markup.LineColumn(c.template, offset)
	return hakaierrors.NewUndefinedTemplateVariable(name, file, line, col)
}

func leafPage(units []*prefixed) *prefixed {
	var leaf *prefixed
	for _, u := range units {
		if u.unit.Kind == types.UnitPage {
			leaf = u
		}
	}
	return leaf
}
