// Package project knows where things live in a hakai project: scope
// directories holding pages and local components, and the shared
// design-system directory holding global components. Paths handed out by
// this package are project-relative and slash separated, which is the form
// used in diagnostics, route listings and live reload contexts.
package project

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/KevTale/hakai/internal/config"
	hakaierrors "github.com/KevTale/hakai/internal/errors"
	"github.com/KevTale/hakai/internal/types"
)

// Project couples the directory layout with file access.
type Project struct {
	root            string
	scopesDir       string
	designSystemDir string
	extension       string
	rootScope       string
	rootPage        string
	fs              FS
}

// New builds a Project from configuration. A nil fs uses the afs backend.
func New(cfg *config.Config, fs FS) (*Project, error) {
	root, err := filepath.Abs(cfg.Project.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	if fs == nil {
		fs = NewFS()
	}
	return &Project{
		root:            root,
		scopesDir:       path.Clean(filepath.ToSlash(cfg.Project.ScopesDir)),
		designSystemDir: path.Clean(filepath.ToSlash(cfg.Project.DesignSystemDir)),
		extension:       cfg.Project.Extension,
		rootScope:       cfg.Root.Scope,
		rootPage:        cfg.Root.Page,
		fs:              fs,
	}, nil
}

func (p *Project) Root() string            { return p.root }
func (p *Project) ScopesDir() string       { return p.scopesDir }
func (p *Project) DesignSystemDir() string { return p.designSystemDir }
func (p *Project) Extension() string       { return p.extension }

// PageSuffix is ".page" plus the extension.
func (p *Project) PageSuffix() string { return ".page" + p.extension }

// ComponentSuffix is ".component" plus the extension.
func (p *Project) ComponentSuffix() string { return ".component" + p.extension }

// Abs converts a project-relative path to an absolute OS path.
func (p *Project) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(p.root, filepath.FromSlash(rel))
}

// Rel converts an absolute OS path to a project-relative slash path. Paths
// outside the project are returned slash separated but otherwise unchanged.
func (p *Project) Rel(abs string) string {
	if !filepath.IsAbs(abs) {
		return path.Clean(filepath.ToSlash(abs))
	}
	rel, err := filepath.Rel(p.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

// RootPagePath is the page backing "/".
func (p *Project) RootPagePath() string {
	return p.PagePath(p.rootScope, p.rootPage)
}

// PagePath returns scopes/<scope>/<name>.page<ext>.
func (p *Project) PagePath(scope, name string) string {
	return path.Join(p.scopesDir, scope, name+p.PageSuffix())
}

// ComponentPath returns <dir>/<name>.component<ext>.
func (p *Project) ComponentPath(dir, name string) string {
	return path.Join(dir, name+p.ComponentSuffix())
}

// GlobalComponentPath returns the design-system location of a component.
func (p *Project) GlobalComponentPath(name string) string {
	return p.ComponentPath(p.designSystemDir, name)
}

// HasExtension reports whether rel ends with the component file extension.
func (p *Project) HasExtension(rel string) bool {
	return strings.HasSuffix(rel, p.extension)
}

func (p *Project) IsPage(rel string) bool {
	return strings.HasSuffix(rel, p.PageSuffix())
}

func (p *Project) IsComponent(rel string) bool {
	return strings.HasSuffix(rel, p.ComponentSuffix())
}

// UnitName strips the directory and the page/component suffix.
func (p *Project) UnitName(rel string) string {
	base := path.Base(rel)
	if name, ok := strings.CutSuffix(base, p.PageSuffix()); ok {
		return name
	}
	if name, ok := strings.CutSuffix(base, p.ComponentSuffix()); ok {
		return name
	}
	return strings.TrimSuffix(base, p.extension)
}

// IsGlobal reports whether rel lives in the design-system directory.
func (p *Project) IsGlobal(rel string) bool {
	return path.Dir(rel) == p.designSystemDir
}

// ScopeKindOf classifies the file at rel.
func (p *Project) ScopeKindOf(rel string) (types.ScopeKind, string) {
	if p.IsGlobal(rel) {
		return types.ScopeGlobal, "global"
	}
	return types.ScopeLocal, path.Base(path.Dir(rel))
}

// ReadFile reads a project-relative file.
func (p *Project) ReadFile(ctx context.Context, rel string) (string, error) {
	data, err := p.fs.ReadFile(ctx, p.Abs(rel))
	if err != nil {
		return "", hakaierrors.NewReadFailed(rel, err)
	}
	return string(data), nil
}

// Exists reports whether a project-relative file exists.
func (p *Project) Exists(ctx context.Context, rel string) bool {
	return p.fs.Exists(ctx, p.Abs(rel))
}

// Scopes lists the scope directory names in lexical order.
func (p *Project) Scopes(ctx context.Context) ([]string, error) {
	if !p.fs.Exists(ctx, p.Abs(p.scopesDir)) {
		return nil, nil
	}
	return p.fs.ListDirs(ctx, p.Abs(p.scopesDir))
}

// Page is one page file found in a scope.
type Page struct {
	Scope string
	Name  string
	Path  string
}

// Pages lists every page file, scope by scope in lexical order.
func (p *Project) Pages(ctx context.Context) ([]Page, error) {
	scopes, err := p.Scopes(ctx)
	if err != nil {
		return nil, err
	}

	var pages []Page
	for _, scope := range scopes {
		files, err := p.fs.ListFiles(ctx, p.Abs(path.Join(p.scopesDir, scope)))
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			name, ok := strings.CutSuffix(file, p.PageSuffix())
			if !ok || name == "" {
				continue
			}
			pages = append(pages, Page{Scope: scope, Name: name, Path: p.PagePath(scope, name)})
		}
	}
	return pages, nil
}

// ValidateUniquePageNames fails when two scopes define a page with the same
// name, since URL paths could not tell them apart.
func (p *Project) ValidateUniquePageNames(ctx context.Context) error {
	pages, err := p.Pages(ctx)
	if err != nil {
		return err
	}

	owners := make(map[string]string, len(pages))
	for _, page := range pages {
		if other, exists := owners[page.Name]; exists {
			return hakaierrors.NewDuplicatePageName(page.Name, page.Scope, other)
		}
		owners[page.Name] = page.Scope
	}
	return nil
}
