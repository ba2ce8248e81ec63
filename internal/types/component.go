// Package types provides the domain types shared by the hakai compile
// pipeline, the route resolver and the live reload coordinator. It exists to
// avoid circular dependencies between those packages.
package types

// Sections holds the three blocks extracted from one component file. Each
// field is the trimmed inner text of the first matching block, or empty when
// the block is absent.
type Sections struct {
	Template string
	Script   string
	Style    string
}

// ScopeKind distinguishes components living next to the page that uses them
// from those shared through the design-system directory.
type ScopeKind string

const (
	ScopeLocal  ScopeKind = "local"
	ScopeGlobal ScopeKind = "global"
)

// UnitKind tells pages and components apart for prefixing and annotation.
type UnitKind int

const (
	UnitPage UnitKind = iota
	UnitComponent
)

// ComponentRef is a resolved reference from a template tag to a component file.
type ComponentRef struct {
	// TagName is the tag exactly as written in the template (e.g. "Button").
	TagName string
	// Path is the project-relative, slash separated file path.
	Path string
	// Scope is local or global.
	Scope ScopeKind
	// ScopeName is the owning scope directory name for local components.
	ScopeName string
}

// Unit is one page or component that takes part in a compile, after
// components have been substituted into its template.
type Unit struct {
	Kind      UnitKind
	Path      string
	Name      string
	Scope     ScopeKind
	ScopeName string
	Sections  Sections
	// Raw is the file text the sections came from, used to map diagnostics
	// back to file positions.
	Raw string
}

// CompiledPage is the output of the pipeline for one page chain.
type CompiledPage struct {
	Content string `json:"content"`
	Script  string `json:"script"`
	Style   string `json:"style,omitempty"`
}

// Route maps a URL path to its page chain and the component files that chain
// depends on.
type Route struct {
	URLPath    string
	Pages      []string
	Components []string
}

// Paths returns the page chain followed by the component closure.
func (r Route) Paths() []string {
	out := make([]string, 0, len(r.Pages)+len(r.Components))
	out = append(out, r.Pages...)
	out = append(out, r.Components...)
	return out
}
