package project

import (
	"context"
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	hakaierrors "github.com/KevTale/hakai/internal/errors"
	"github.com/KevTale/hakai/internal/types"
)

var lower = cases.Lower(language.Und)

// ComponentFileName maps a tag to its file base name: "DatePicker" becomes
// "datepicker".
func ComponentFileName(tag string) string {
	return lower.String(tag)
}

// LocateComponent resolves a component tag used by the file at owner. The
// owner's directory is searched first, then the design-system directory.
func (p *Project) LocateComponent(ctx context.Context, owner, tag string) (types.ComponentRef, error) {
	name := ComponentFileName(tag)
	local := p.ComponentPath(path.Dir(owner), name)
	global := p.GlobalComponentPath(name)

	for _, candidate := range []string{local, global} {
		if p.Exists(ctx, candidate) {
			kind, scope := p.ScopeKindOf(candidate)
			return types.ComponentRef{TagName: tag, Path: candidate, Scope: kind, ScopeName: scope}, nil
		}
	}

	return types.ComponentRef{}, hakaierrors.NewComponentNotFound(tag, local, global)
}

// LocateImport resolves the source of an import statement in the file at
// owner to a component file: <ownerDir>/<source>.component<ext>, then the
// same name under the design-system directory.
func (p *Project) LocateImport(ctx context.Context, owner, source string) (string, bool) {
	if source == "" || strings.HasSuffix(source, "/") {
		return "", false
	}
	candidates := []string{
		path.Join(path.Dir(owner), source+p.ComponentSuffix()),
		path.Join(p.designSystemDir, source+p.ComponentSuffix()),
	}
	for _, candidate := range candidates {
		if strings.HasPrefix(candidate, "../") {
			continue
		}
		if p.Exists(ctx, candidate) {
			return candidate, true
		}
	}
	return "", false
}
