package script

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// Declaration is a top-level variable binding.
type Declaration struct {
	Name string
	// Kind is "const", "let" or "var".
	Kind string
	// Init is the initializer source text, empty when absent.
	Init string
}

// Import is one import statement.
type Import struct {
	Source string
	Names  []string
}

// SyntaxError locates the first parse error of a script.
type SyntaxError struct {
	Line   int
	Column int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d", e.Line, e.Column)
}

type occurrence struct {
	start, end uint32
	name       string
	// form selects how the occurrence is rewritten.
	form occurrenceForm
}

type occurrenceForm int

const (
	formPlain occurrenceForm = iota
	formShorthand
	formExport
)

// Analysis is the result of parsing one script. It is immutable and safe to
// share between goroutines.
type Analysis struct {
	source       string
	Declarations []Declaration
	Imports      []Import
	occurrences  []occurrence
}

// Names returns the declared top-level names in source order.
func (a *Analysis) Names() []string {
	names := make([]string, 0, len(a.Declarations))
	for _, d := range a.Declarations {
		names = append(names, d.Name)
	}
	return names
}

// Rename rewrites every reference to a top-level declaration as
// prefix_name. Property names, import bindings and names shadowed by inner
// scopes are left alone. Shorthand properties keep their key.
func (a *Analysis) Rename(prefix string) string {
	if len(a.occurrences) == 0 {
		return a.source
	}

	occ := make([]occurrence, len(a.occurrences))
	copy(occ, a.occurrences)
	sort.Slice(occ, func(i, j int) bool { return occ[i].start > occ[j].start })

	out := a.source
	for _, o := range occ {
		renamed := prefix + "_" + o.name
		var replacement string
		switch o.form {
		case formShorthand:
			replacement = o.name + ": " + renamed
		case formExport:
			replacement = renamed + " as " + o.name
		default:
			replacement = renamed
		}
		out = out[:o.start] + replacement + out[o.end:]
	}
	return out
}

func parse(ctx context.Context, src []byte) (*sitter.Node, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	return tree.RootNode(), nil
}

func analyze(ctx context.Context, source string) (*Analysis, error) {
	src := []byte(source)
	root, err := parse(ctx, src)
	if err != nil {
		return nil, err
	}

	if root.HasError() {
		return nil, firstError(root)
	}

	a := &Analysis{source: source}
	targets := make(map[string]bool)

	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		switch stmt.Type() {
		case "import_statement":
			a.Imports = append(a.Imports, importOf(stmt, src))
		case "export_statement":
			if decl := stmt.ChildByFieldName("declaration"); decl != nil {
				a.collectDeclarations(decl, src, targets)
			}
		default:
			a.collectDeclarations(stmt, src, targets)
		}
	}

	if len(targets) > 0 {
		w := &walker{src: src, targets: targets}
		w.visit(root, nil)
		a.occurrences = w.found
	}

	return a, nil
}

func (a *Analysis) collectDeclarations(stmt *sitter.Node, src []byte, targets map[string]bool) {
	if stmt.Type() != "lexical_declaration" && stmt.Type() != "variable_declaration" {
		return
	}
	kind := "var"
	if stmt.ChildCount() > 0 {
		kind = stmt.Child(0).Type()
	}

	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		declarator := stmt.NamedChild(i)
		if declarator.Type() != "variable_declarator" {
			continue
		}
		nameNode := declarator.ChildByFieldName("name")
		if nameNode == nil || nameNode.Type() != "identifier" {
			continue
		}
		decl := Declaration{Name: nameNode.Content(src), Kind: kind}
		if value := declarator.ChildByFieldName("value"); value != nil {
			decl.Init = value.Content(src)
		}
		if targets[decl.Name] {
			continue
		}
		targets[decl.Name] = true
		a.Declarations = append(a.Declarations, decl)
	}
}

func importOf(stmt *sitter.Node, src []byte) Import {
	var imp Import
	if source := stmt.ChildByFieldName("source"); source != nil {
		imp.Source = strings.Trim(source.Content(src), "'\"`")
	}

	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		clause := stmt.NamedChild(i)
		if clause.Type() != "import_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			child := clause.NamedChild(j)
			switch child.Type() {
			case "identifier":
				imp.Names = append(imp.Names, child.Content(src))
			case "named_imports":
				for k := 0; k < int(child.NamedChildCount()); k++ {
					spec := child.NamedChild(k)
					if spec.Type() != "import_specifier" {
						continue
					}
					name := spec.ChildByFieldName("alias")
					if name == nil {
						name = spec.ChildByFieldName("name")
					}
					if name != nil {
						imp.Names = append(imp.Names, name.Content(src))
					}
				}
			}
		}
	}
	return imp
}

func firstError(root *sitter.Node) error {
	var found *sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if found != nil {
			return
		}
		if n.IsError() || n.IsMissing() {
			found = n
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if child := n.Child(i); child != nil && (child.HasError() || child.IsMissing()) {
				walk(child)
			}
		}
	}
	walk(root)

	if found == nil {
		return &SyntaxError{Line: 1, Column: 1}
	}
	p := found.StartPoint()
	return &SyntaxError{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}
