package script

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(8)
	require.NoError(t, err)
	return a
}

func TestDeclarations(t *testing.T) {
	a := newAnalyzer(t)
	analysis, err := a.Analyze(context.Background(), `
import { Button } from "./button";
const title = "Hello";
let count = 0, step = 2;
var legacy;
export const shared = true;
const { a, b } = obj;
function helper() { const inner = 1; return inner; }
`)
	require.NoError(t, err)

	assert.Equal(t, []string{"title", "count", "step", "legacy", "shared"}, analysis.Names())
	assert.Equal(t, "const", analysis.Declarations[0].Kind)
	assert.Equal(t, `"Hello"`, analysis.Declarations[0].Init)
	assert.Equal(t, "let", analysis.Declarations[1].Kind)
	assert.Equal(t, "var", analysis.Declarations[3].Kind)
	assert.Empty(t, analysis.Declarations[3].Init)

	require.Len(t, analysis.Imports, 1)
	assert.Equal(t, "./button", analysis.Imports[0].Source)
	assert.Equal(t, []string{"Button"}, analysis.Imports[0].Names)
}

func TestRename(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		expected string
	}{
		{
			name:     "declaration and references",
			source:   "const x = 5;\nconsole.log(x + 1);",
			expected: "const home_x = 5;\nconsole.log(home_x + 1);",
		},
		{
			name:     "property names untouched",
			source:   "const count = 1;\nobj.count = count;\nconst o = { count: count };",
			expected: "const home_count = 1;\nobj.count = home_count;\nconst home_o = { count: home_count };",
		},
		{
			name:     "shorthand property keeps key",
			source:   "const count = 1;\nsend({ count });",
			expected: "const home_count = 1;\nsend({ count: home_count });",
		},
		{
			name:     "destructuring assignment",
			source:   "let count = 0;\n({ count } = next());",
			expected: "let home_count = 0;\n({ count: home_count } = next());",
		},
		{
			name:     "destructuring assignment with default",
			source:   "let count = 0;\n({ count = 1 } = obj);",
			expected: "let home_count = 0;\n({ count: home_count = 1 } = obj);",
		},
		{
			name:     "destructuring declaration shadows",
			source:   "let count = 0;\nfunction f() { const { count } = obj; return count; }",
			expected: "let home_count = 0;\nfunction f() { const { count } = obj; return count; }",
		},
		{
			name:     "destructured parameter shadows",
			source:   "let count = 0;\nconst g = ({ count }) => count;",
			expected: "let home_count = 0;\nconst home_g = ({ count }) => count;",
		},
		{
			name:     "parameter shadows",
			source:   "let count = 0;\nfunction inc(count) { return count + 1; }\nfunction bump() { count++; }",
			expected: "let home_count = 0;\nfunction inc(count) { return count + 1; }\nfunction bump() { home_count++; }",
		},
		{
			name:     "block declaration shadows",
			source:   "const n = 1;\nif (ok) { const n = 2; use(n); }\nuse(n);",
			expected: "const home_n = 1;\nif (ok) { const n = 2; use(n); }\nuse(home_n);",
		},
		{
			name:     "catch parameter shadows",
			source:   "const e = 1;\ntry { run(e); } catch (e) { log(e); }",
			expected: "const home_e = 1;\ntry { run(home_e); } catch (e) { log(e); }",
		},
		{
			name:     "arrow parameter shadows",
			source:   "const v = 1;\nconst f = v => v * 2;\nf(v);",
			expected: "const home_v = 1;\nconst home_f = v => v * 2;\nhome_f(home_v);",
		},
		{
			name:     "identifier boundary",
			source:   "const x = 1;\nconst xx = x;",
			expected: "const home_x = 1;\nconst home_xx = home_x;",
		},
		{
			name:     "strings untouched",
			source:   `const msg = "msg";`,
			expected: `const home_msg = "msg";`,
		},
		{
			name:     "export specifier keeps exported name",
			source:   "const total = 3;\nexport { total };",
			expected: "const home_total = 3;\nexport { home_total as total };",
		},
		{
			name:     "no declarations",
			source:   "console.log(1);",
			expected: "console.log(1);",
		},
	}

	a := newAnalyzer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analysis, err := a.Analyze(context.Background(), tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, analysis.Rename("home"))
		})
	}
}

func TestSyntaxError(t *testing.T) {
	a := newAnalyzer(t)
	_, err := a.Analyze(context.Background(), "const a = 1;\nconst b = ;")
	require.Error(t, err)

	var syntaxErr *SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	assert.Equal(t, 2, syntaxErr.Line)
	assert.GreaterOrEqual(t, syntaxErr.Column, 1)
}

func TestConstLiterals(t *testing.T) {
	a := newAnalyzer(t)
	analysis, err := a.Analyze(context.Background(), strings.Join([]string{
		`const s = "text";`,
		`const n = 42;`,
		`const f = -1.5;`,
		`const b = false;`,
		`const z = null;`,
		`const obj = { a: 1 };`,
		`const single = 'quoted';`,
		`let mutable = 1;`,
	}, "\n"))
	require.NoError(t, err)

	literals, unsupported := analysis.ConstLiterals()
	assert.Equal(t, "text", literals["s"].String())
	assert.Equal(t, "42", literals["n"].String())
	assert.Equal(t, "-1.5", literals["f"].String())
	assert.Equal(t, "false", literals["b"].String())
	assert.Equal(t, "null", literals["z"].String())
	assert.NotContains(t, literals, "mutable")
	assert.Equal(t, []string{"obj", "single"}, unsupported)
}

func TestLiteralString(t *testing.T) {
	tests := []struct {
		text     string
		expected string
	}{
		{`5`, "5"},
		{`5.0`, "5"},
		{`0.1`, "0.1"},
		{`1e21`, "1e+21"},
		{`1e-7`, "1e-7"},
		{`true`, "true"},
		{`""`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			lit, ok := ParseLiteral(tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.expected, lit.String())
		})
	}

	for _, bad := range []string{`[1]`, `{}`, `5 }`, `x`, `'a'`} {
		_, ok := ParseLiteral(bad)
		assert.False(t, ok, bad)
	}
}

func TestAnalyzerCache(t *testing.T) {
	a := newAnalyzer(t)
	first, err := a.Analyze(context.Background(), "const a = 1;")
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), "const a = 1;")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, a.Len())

	empty, err := a.Analyze(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, empty.Names())
	assert.Equal(t, "  ", empty.Rename("p"))
}
