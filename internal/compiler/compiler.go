// Package compiler turns a chain of page files into one rendered page.
//
// For every page of the chain, root to leaf, the compiler extracts the
// template, script and style sections, applies variable hygiene (renaming
// top-level script variables with a prefix derived from the file and
// annotating top-level elements for the browser-side updater), then resolves
// component tags recursively and substitutes their compiled templates. The
// pages are composed through their Slot elements and the final template is
// interpolated with the constant literals declared by every unit.
package compiler

import (
	"context"

	hakaierrors "github.com/KevTale/hakai/internal/errors"
	"github.com/KevTale/hakai/internal/logging"
	"github.com/KevTale/hakai/internal/project"
	"github.com/KevTale/hakai/internal/script"
	"github.com/KevTale/hakai/internal/types"
)

// Compiler runs the compile pipeline. It holds no per-compile state and is
// safe for concurrent use.
type Compiler struct {
	project  *project.Project
	analyzer *script.Analyzer
	logger   logging.Logger
}

// New creates a compiler. A nil analyzer gets a default sized cache.
func New(p *project.Project, analyzer *script.Analyzer, logger logging.Logger) (*Compiler, error) {
	if analyzer == nil {
		var err error
		if analyzer, err = script.NewAnalyzer(script.DefaultCacheSize); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Compiler{
		project:  p,
		analyzer: analyzer,
		logger:   logger.WithComponent("compiler"),
	}, nil
}

// Project returns the project the compiler reads from.
func (c *Compiler) Project() *project.Project {
	return c.project
}

// Compile compiles the page chain pages, root first.
func (c *Compiler) Compile(ctx context.Context, pages []string) (types.CompiledPage, error) {
	if len(pages) == 0 {
		return types.CompiledPage{}, hakaierrors.NewNoPages()
	}

	op := logging.StartOperation(c.logger, "compile")
	s := newSession(c)
	chain := make([]pageUnits, 0, len(pages))

	for _, rel := range pages {
		before := len(s.order)
		page, err := s.page(ctx, rel)
		if err != nil {
			op.EndWithError(ctx, err, "page", rel)
			return types.CompiledPage{}, err
		}
		chain = append(chain, pageUnits{page: page, components: s.order[before:]})
	}

	merged := compose(chain)
	content, err := interpolate(merged)
	if err != nil {
		op.EndWithError(ctx, err, "pages", pages)
		return types.CompiledPage{}, err
	}

	op.End(ctx, "pages", pages, "components", len(s.order))
	return types.CompiledPage{
		Content: content,
		Script:  merged.script,
		Style:   merged.style,
	}, nil
}
