package script

import (
	sitter "github.com/smacker/go-tree-sitter"
)

type scope map[string]bool

// walker collects the identifier nodes that refer to top-level targets.
// scopes holds every scope nested below the program; a name declared in any
// of them shadows the target.
type walker struct {
	src     []byte
	targets map[string]bool
	found   []occurrence
}

var functionTypes = map[string]bool{
	"function":                       true,
	"function_expression":            true,
	"function_declaration":           true,
	"generator_function":             true,
	"generator_function_declaration": true,
	"arrow_function":                 true,
	"method_definition":              true,
}

func (w *walker) visit(n *sitter.Node, scopes []scope) {
	switch t := n.Type(); {
	case t == "import_statement":
		return
	case functionTypes[t]:
		scopes = append(scopes, w.functionScope(n))
	case t == "statement_block" || t == "switch_body" || t == "class_body":
		scopes = append(scopes, w.blockScope(n))
	case t == "catch_clause":
		s := scope{}
		if param := n.ChildByFieldName("parameter"); param != nil {
			w.bindings(param, s)
		}
		scopes = append(scopes, s)
	case t == "for_statement":
		s := scope{}
		if init := n.ChildByFieldName("initializer"); init != nil {
			w.declarationBindings(init, s)
		}
		scopes = append(scopes, s)
	case t == "for_in_statement":
		s := scope{}
		if n.ChildByFieldName("kind") != nil {
			if left := n.ChildByFieldName("left"); left != nil {
				w.bindings(left, s)
			}
		}
		scopes = append(scopes, s)
	case t == "identifier":
		w.reference(n, scopes)
		return
	case t == "shorthand_property_identifier" || t == "shorthand_property_identifier_pattern":
		// A pattern that declares the name puts it in an inner scope, so
		// one that still resolves here assigns to the target.
		w.shorthand(n, scopes)
		return
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child != nil {
			w.visit(child, scopes)
		}
	}
}

func (w *walker) resolvesToTarget(name string, scopes []scope) bool {
	if !w.targets[name] {
		return false
	}
	for i := len(scopes) - 1; i >= 0; i-- {
		if scopes[i][name] {
			return false
		}
	}
	return true
}

func (w *walker) reference(n *sitter.Node, scopes []scope) {
	name := n.Content(w.src)
	if !w.resolvesToTarget(name, scopes) {
		return
	}

	form := formPlain
	if parent := n.Parent(); parent != nil && parent.Type() == "export_specifier" {
		if alias := parent.ChildByFieldName("alias"); alias != nil {
			if alias.StartByte() == n.StartByte() {
				// exported name, not a reference
				return
			}
		} else {
			form = formExport
		}
	}

	w.found = append(w.found, occurrence{start: n.StartByte(), end: n.EndByte(), name: name, form: form})
}

func (w *walker) shorthand(n *sitter.Node, scopes []scope) {
	name := n.Content(w.src)
	if !w.resolvesToTarget(name, scopes) {
		return
	}
	w.found = append(w.found, occurrence{start: n.StartByte(), end: n.EndByte(), name: name, form: formShorthand})
}

// functionScope declares parameters, the function's own name for function
// expressions, and var declarations hoisted out of nested blocks.
func (w *walker) functionScope(n *sitter.Node) scope {
	s := scope{}
	if params := n.ChildByFieldName("parameters"); params != nil {
		w.bindings(params, s)
	}
	if param := n.ChildByFieldName("parameter"); param != nil {
		w.bindings(param, s)
	}
	switch n.Type() {
	case "function", "function_expression", "generator_function":
		if name := n.ChildByFieldName("name"); name != nil {
			s[name.Content(w.src)] = true
		}
	}
	if body := n.ChildByFieldName("body"); body != nil {
		w.hoistVars(body, s)
	}
	return s
}

func (w *walker) hoistVars(n *sitter.Node, s scope) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if functionTypes[child.Type()] {
			continue
		}
		if child.Type() == "variable_declaration" {
			w.declarationBindings(child, s)
		}
		w.hoistVars(child, s)
	}
}

// blockScope declares the lexical names introduced directly in a block.
func (w *walker) blockScope(n *sitter.Node) scope {
	s := scope{}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "lexical_declaration", "variable_declaration":
			w.declarationBindings(child, s)
		case "function_declaration", "generator_function_declaration", "class_declaration":
			if name := child.ChildByFieldName("name"); name != nil {
				s[name.Content(w.src)] = true
			}
		case "switch_case", "switch_default":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				if stmt := child.NamedChild(j); stmt.Type() == "lexical_declaration" {
					w.declarationBindings(stmt, s)
				}
			}
		}
	}
	return s
}

func (w *walker) declarationBindings(n *sitter.Node, s scope) {
	if n.Type() != "lexical_declaration" && n.Type() != "variable_declaration" {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		declarator := n.NamedChild(i)
		if declarator.Type() != "variable_declarator" {
			continue
		}
		if name := declarator.ChildByFieldName("name"); name != nil {
			w.bindings(name, s)
		}
	}
}

// bindings adds every name bound by a pattern.
func (w *walker) bindings(n *sitter.Node, s scope) {
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		s[n.Content(w.src)] = true
	case "pair_pattern":
		if value := n.ChildByFieldName("value"); value != nil {
			w.bindings(value, s)
		}
	case "assignment_pattern", "object_assignment_pattern":
		if left := n.ChildByFieldName("left"); left != nil {
			w.bindings(left, s)
		}
	case "formal_parameters", "object_pattern", "array_pattern", "rest_pattern", "required_parameter":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			w.bindings(n.NamedChild(i), s)
		}
	}
}
