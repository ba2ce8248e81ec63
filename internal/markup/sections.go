package markup

import (
	"fmt"
	"strings"

	"github.com/KevTale/hakai/internal/types"
)

const (
	SectionTemplate = "template"
	SectionScript   = "script"
	SectionStyle    = "style"
)

// UnterminatedError reports a section whose opening tag has no matching
// closing tag.
type UnterminatedError struct {
	Section string
	Line    int
}

func (e *UnterminatedError) Error() string {
	return fmt.Sprintf("<%s> section opened on line %d is never closed", e.Section, e.Line)
}

// ExtractSections returns the trimmed inner text of the first top-level
// template, script and style blocks of src. Nested <template> elements inside
// the template section are balanced, so they do not end it early. Missing
// sections are empty.
func ExtractSections(src string) (types.Sections, error) {
	var sections types.Sections
	found := map[string]bool{}
	tokens := Tokenize(src)

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if tok.Kind != StartTagToken {
			continue
		}

		section := ""
		for _, name := range []string{SectionTemplate, SectionScript, SectionStyle} {
			if SameName(tok.Name, name) {
				section = name
				break
			}
		}
		if section == "" || found[section] {
			continue
		}

		closeIdx := matchingClose(tokens, i)
		if closeIdx < 0 {
			return types.Sections{}, &UnterminatedError{Section: section, Line: LineAt(src, tok.Offset)}
		}

		inner := strings.TrimSpace(src[tok.End():tokens[closeIdx].Offset])
		switch section {
		case SectionTemplate:
			sections.Template = inner
		case SectionScript:
			sections.Script = inner
		case SectionStyle:
			sections.Style = inner
		}
		found[section] = true
		i = closeIdx
	}

	return sections, nil
}

// matchingClose returns the index of the end tag balancing the start tag at
// open, counting nested elements of the same name, or -1.
func matchingClose(tokens []Token, open int) int {
	name := tokens[open].Name
	depth := 0
	for j := open + 1; j < len(tokens); j++ {
		t := tokens[j]
		if !SameName(t.Name, name) {
			continue
		}
		switch t.Kind {
		case StartTagToken:
			depth++
		case EndTagToken:
			if depth == 0 {
				return j
			}
			depth--
		}
	}
	return -1
}
