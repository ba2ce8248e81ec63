package compiler

import (
	"context"
	"slices"

	hakaierrors "github.com/KevTale/hakai/internal/errors"
	"github.com/KevTale/hakai/internal/markup"
	"github.com/KevTale/hakai/internal/types"
)

// session holds the per-compile state of component resolution. Each
// component file is compiled at most once per session; active is the chain
// of files currently being resolved and detects cycles.
type session struct {
	c          *Compiler
	components map[string]*prefixed
	active     []string
	// order lists components in the order their compilation finished, so
	// dependencies come before the components that use them.
	order []*prefixed
}

func newSession(c *Compiler) *session {
	return &session{c: c, components: make(map[string]*prefixed)}
}

// page compiles one page of the chain with its components substituted.
func (s *session) page(ctx context.Context, rel string) (*prefixed, error) {
	_, scope := s.c.project.ScopeKindOf(rel)
	return s.unit(ctx, rel, types.Unit{
		Kind:      types.UnitPage,
		Path:      rel,
		Name:      s.c.project.UnitName(rel),
		Scope:     types.ScopeLocal,
		ScopeName: scope,
	})
}

func (s *session) component(ctx context.Context, ref types.ComponentRef) (*prefixed, error) {
	if done, ok := s.components[ref.Path]; ok {
		return done, nil
	}

	p, err := s.unit(ctx, ref.Path, types.Unit{
		Kind:      types.UnitComponent,
		Path:      ref.Path,
		Name:      s.c.project.UnitName(ref.Path),
		Scope:     ref.Scope,
		ScopeName: ref.ScopeName,
	})
	if err != nil {
		return nil, err
	}

	s.components[ref.Path] = p
	s.order = append(s.order, p)
	return p, nil
}

func (s *session) unit(ctx context.Context, rel string, u types.Unit) (*prefixed, error) {
	if i := slices.Index(s.active, rel); i >= 0 {
		chain := append(slices.Clone(s.active[i:]), rel)
		return nil, hakaierrors.NewCyclicComponentReference(chain)
	}
	s.active = append(s.active, rel)
	defer func() { s.active = s.active[:len(s.active)-1] }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sections, raw, err := s.c.Extract(ctx, rel)
	if err != nil {
		return nil, err
	}
	u.Sections = sections
	u.Raw = raw

	tags := markup.ComponentTags(sections.Template)

	p, err := s.c.applyHygiene(ctx, &u)
	if err != nil {
		return nil, err
	}

	for _, tag := range tags {
		ref, err := s.c.project.LocateComponent(ctx, rel, tag)
		if err != nil {
			return nil, err
		}
		component, err := s.component(ctx, ref)
		if err != nil {
			return nil, err
		}
		u.Sections.Template = markup.ReplaceElement(u.Sections.Template, tag, component.unit.Sections.Template)
	}

	return p, nil
}
