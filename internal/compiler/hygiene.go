package compiler

import (
	"context"
	"errors"
	"regexp"
	"strings"

	hakaierrors "github.com/KevTale/hakai/internal/errors"
	"github.com/KevTale/hakai/internal/markup"
	"github.com/KevTale/hakai/internal/script"
	"github.com/KevTale/hakai/internal/types"
)

// tokenPattern matches an interpolation token and captures its name.
var tokenPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Snake replaces every byte outside [A-Za-z0-9] with an underscore.
func Snake(s string) string {
	b := []byte(s)
	for i, c := range b {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			b[i] = '_'
		}
	}
	return string(b)
}

// Prefix derives the hygiene prefix of a unit. Pages use their name,
// components are qualified by their scope ("global" for design-system ones).
func Prefix(kind types.UnitKind, scopeName, name string) string {
	if kind == types.UnitComponent {
		return Snake(scopeName) + "_" + Snake(name)
	}
	return Snake(name)
}

// annotation returns the data attribute marking a unit's top-level elements.
func annotation(u *types.Unit) (string, string) {
	if u.Kind == types.UnitPage {
		return "data-page", Snake(u.Name)
	}
	if u.Scope == types.ScopeGlobal {
		return "data-component", Snake(u.Name)
	}
	return "data-component", u.ScopeName + "/" + Snake(u.Name)
}

// prefixed is a unit after hygiene.
type prefixed struct {
	unit   *types.Unit
	prefix string
	// original maps renamed identifiers back to the declared name.
	original map[string]string
	literals map[string]script.Literal
}

// applyHygiene renames the unit's top-level script variables and the
// matching template tokens, annotates its top-level elements and collects
// its constant literals under their renamed keys.
func (c *Compiler) applyHygiene(ctx context.Context, u *types.Unit) (*prefixed, error) {
	analysis, err := c.analyzer.Analyze(ctx, u.Sections.Script)
	if err != nil {
		var syntaxErr *script.SyntaxError
		if errors.As(err, &syntaxErr) {
			line, col := scriptPosition(u.Raw, u.Sections.Script, syntaxErr.Line, syntaxErr.Column)
			return nil, hakaierrors.NewScriptSyntax(u.Path, line, col)
		}
		return nil, err
	}

	p := &prefixed{
		unit:     u,
		prefix:   Prefix(u.Kind, u.ScopeName, u.Name),
		original: make(map[string]string),
		literals: make(map[string]script.Literal),
	}

	declared := make(map[string]bool)
	for _, name := range analysis.Names() {
		declared[name] = true
		p.original[p.prefix+"_"+name] = name
	}

	u.Sections.Script = analysis.Rename(p.prefix)
	u.Sections.Template = tokenPattern.ReplaceAllStringFunc(u.Sections.Template, func(token string) string {
		name := tokenPattern.FindStringSubmatch(token)[1]
		if !declared[name] {
			return token
		}
		return "{{ " + p.prefix + "_" + name + " }}"
	})
	attr, value := annotation(u)
	u.Sections.Template = markup.AnnotateTopLevel(u.Sections.Template, attr, value)

	literals, unsupported := analysis.ConstLiterals()
	for name, lit := range literals {
		p.literals[p.prefix+"_"+name] = lit
	}
	for _, name := range unsupported {
		c.logger.Warn(ctx, hakaierrors.NewUnsupportedLiteral(name, u.Path),
			"Unsupported type for variable", "file", u.Path, "variable", name)
	}

	return p, nil
}

// scriptPosition maps a position inside the script section to the file.
func scriptPosition(raw, section string, line, col int) (int, int) {
	idx := strings.Index(raw, section)
	if idx < 0 || section == "" {
		return line, col
	}
	startLine, startCol := markup.LineColumn(raw, idx)
	if line == 1 {
		return startLine, startCol + col - 1
	}
	return startLine + line - 1, col
}
