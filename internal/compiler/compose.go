package compiler

import (
	"strings"

	"github.com/KevTale/hakai/internal/markup"
	"github.com/KevTale/hakai/internal/script"
)

// pageUnits is one page of a chain with the components first resolved
// while compiling it.
type pageUnits struct {
	page       *prefixed
	components []*prefixed
}

// composed is the merged result of a page chain before interpolation.
type composed struct {
	template string
	script   string
	style    string
	context  map[string]script.Literal
	// units lists every unit in merge order, for diagnostics.
	units []*prefixed
}

// compose merges a page chain root to leaf. Every Slot of the accumulated
// template receives the next page's template; Slots left after the leaf,
// or in a single page chain, are removed. Scripts and styles are joined with
// newlines in chain order, each page followed by its components. Contexts
// merge left to right, later keys overriding earlier ones.
func compose(chain []pageUnits) composed {
	out := composed{context: make(map[string]script.Literal)}
	var scripts, styles []string

	for i, pu := range chain {
		units := append([]*prefixed{pu.page}, pu.components...)
		for _, u := range units {
			scripts = appendNonEmpty(scripts, u.unit.Sections.Script)
			styles = appendNonEmpty(styles, u.unit.Sections.Style)
			for k, v := range u.literals {
				out.context[k] = v
			}
			out.units = append(out.units, u)
		}

		if i == 0 {
			out.template = pu.page.unit.Sections.Template
			continue
		}
		out.template = markup.FillSlots(out.template, pu.page.unit.Sections.Template)
	}

	out.template = markup.StripSlots(out.template)
	out.script = strings.Join(scripts, "\n")
	out.style = strings.Join(styles, "\n")
	return out
}

func appendNonEmpty(list []string, s string) []string {
	if s == "" {
		return list
	}
	return append(list, s)
}
