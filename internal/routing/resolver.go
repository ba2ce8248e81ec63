// Package routing maps URL paths to page chains.
//
// A URL path /a/b resolves inside a single scope directory to the pages
// a.page.kai and a_b.page.kai: nesting is encoded by underscore-joined file
// names. Scopes are tried in lexical order and the first scope holding the
// complete chain wins. "/" maps to the configured root scope and page.
package routing

import (
	"context"
	"sort"
	"strings"

	hakaierrors "github.com/KevTale/hakai/internal/errors"
	"github.com/KevTale/hakai/internal/markup"
	"github.com/KevTale/hakai/internal/project"
	"github.com/KevTale/hakai/internal/script"
	"github.com/KevTale/hakai/internal/types"
)

// Resolver resolves routes against a project.
type Resolver struct {
	project  *project.Project
	analyzer *script.Analyzer
}

// NewResolver creates a resolver. The analyzer may be shared with the
// compiler so both reuse cached script analyses.
func NewResolver(p *project.Project, analyzer *script.Analyzer) (*Resolver, error) {
	if analyzer == nil {
		var err error
		if analyzer, err = script.NewAnalyzer(script.DefaultCacheSize); err != nil {
			return nil, err
		}
	}
	return &Resolver{project: p, analyzer: analyzer}, nil
}

// Segments splits a URL path into its non-empty segments.
func Segments(urlPath string) []string {
	var segments []string
	for _, s := range strings.Split(urlPath, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// Resolve returns the page chain for urlPath and its component closure.
func (r *Resolver) Resolve(ctx context.Context, urlPath string) (types.Route, error) {
	if urlPath == "" {
		urlPath = "/"
	}

	pages, err := r.ResolvePages(ctx, urlPath)
	if err != nil {
		return types.Route{}, err
	}

	components, err := r.Closure(ctx, pages)
	if err != nil {
		return types.Route{}, err
	}

	return types.Route{URLPath: urlPath, Pages: pages, Components: components}, nil
}

// ResolvePages returns the page chain for urlPath, root first.
func (r *Resolver) ResolvePages(ctx context.Context, urlPath string) ([]string, error) {
	segments := Segments(urlPath)

	if len(segments) == 0 {
		root := r.project.RootPagePath()
		if !r.project.Exists(ctx, root) {
			return nil, hakaierrors.NewPageNotFound(urlPath)
		}
		return []string{root}, nil
	}

	scopes, err := r.project.Scopes(ctx)
	if err != nil {
		return nil, err
	}

	for _, scope := range scopes {
		if chain := r.chainIn(ctx, scope, segments); chain != nil {
			return chain, nil
		}
	}

	return nil, hakaierrors.NewPageNotFound(urlPath)
}

// chainIn builds the chain for segments inside one scope, or returns nil
// when any link is missing.
func (r *Resolver) chainIn(ctx context.Context, scope string, segments []string) []string {
	chain := make([]string, 0, len(segments))
	name := ""

	for i, segment := range segments {
		if i == 0 {
			name = segment
		} else {
			name += "_" + segment
		}
		page := r.project.PagePath(scope, name)
		if !r.project.Exists(ctx, page) {
			return nil
		}
		chain = append(chain, page)
	}

	return chain
}

// Closure returns every component file reachable from files, through
// import statements in scripts and component tags in templates, in
// discovery order. Each file is visited once. Files that cannot be read or
// parsed contribute nothing; compiling them reports the problem.
func (r *Resolver) Closure(ctx context.Context, files []string) ([]string, error) {
	inputs := make(map[string]bool, len(files))
	for _, f := range files {
		inputs[f] = true
	}
	visited := make(map[string]bool)
	var components []string

	var visit func(rel string) error
	visit = func(rel string) error {
		if visited[rel] {
			return nil
		}
		visited[rel] = true
		if err := ctx.Err(); err != nil {
			return err
		}

		for _, dep := range r.dependencies(ctx, rel) {
			if !visited[dep] && !inputs[dep] {
				components = append(components, dep)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}

	for _, f := range files {
		if err := visit(f); err != nil {
			return nil, err
		}
	}

	return components, nil
}

func (r *Resolver) dependencies(ctx context.Context, rel string) []string {
	raw, err := r.project.ReadFile(ctx, rel)
	if err != nil {
		return nil
	}
	sections, err := markup.ExtractSections(raw)
	if err != nil {
		return nil
	}

	var deps []string
	seen := make(map[string]bool)
	add := func(dep string) {
		if !seen[dep] && dep != rel {
			seen[dep] = true
			deps = append(deps, dep)
		}
	}

	if analysis, err := r.analyzer.Analyze(ctx, sections.Script); err == nil {
		for _, imp := range analysis.Imports {
			if dep, ok := r.project.LocateImport(ctx, rel, imp.Source); ok {
				add(dep)
			}
		}
	}

	for _, tag := range markup.ComponentTags(sections.Template) {
		if ref, err := r.project.LocateComponent(ctx, rel, tag); err == nil {
			add(ref.Path)
		}
	}

	return deps
}

// Routes lists every route the project's pages can serve, sorted by URL
// path. The root page is listed as "/".
func (r *Resolver) Routes(ctx context.Context) ([]types.Route, error) {
	pages, err := r.project.Pages(ctx)
	if err != nil {
		return nil, err
	}

	candidates := map[string]bool{"/": true}
	for _, page := range pages {
		candidates["/"+strings.ReplaceAll(page.Name, "_", "/")] = true
	}

	urls := make([]string, 0, len(candidates))
	for u := range candidates {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	var routes []types.Route
	for _, u := range urls {
		route, err := r.Resolve(ctx, u)
		if err != nil {
			if hakaierrors.HasCode(err, hakaierrors.CodePageNotFound) {
				continue
			}
			return nil, err
		}
		routes = append(routes, route)
	}
	return routes, nil
}
