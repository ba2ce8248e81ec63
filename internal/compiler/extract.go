package compiler

import (
	"context"
	"errors"

	hakaierrors "github.com/KevTale/hakai/internal/errors"
	"github.com/KevTale/hakai/internal/markup"
	"github.com/KevTale/hakai/internal/types"
)

// Extract reads the file at rel and splits it into its sections. It returns
// the raw file text alongside so diagnostics can be mapped to file lines.
func (c *Compiler) Extract(ctx context.Context, rel string) (types.Sections, string, error) {
	if !c.project.HasExtension(rel) {
		return types.Sections{}, "", hakaierrors.NewInvalidExtension(rel, c.project.Extension())
	}

	raw, err := c.project.ReadFile(ctx, rel)
	if err != nil {
		return types.Sections{}, "", err
	}

	sections, err := markup.ExtractSections(raw)
	if err != nil {
		var unterminated *markup.UnterminatedError
		if errors.As(err, &unterminated) {
			return types.Sections{}, "", hakaierrors.NewUnterminatedSection(unterminated.Section, rel, unterminated.Line)
		}
		return types.Sections{}, "", err
	}

	return sections, raw, nil
}
