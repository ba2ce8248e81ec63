package markup

import (
	"fmt"
	"strings"
)

// SlotTag marks where a nested page is inserted.
const SlotTag = "Slot"

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// ComponentTags returns the distinct component tag names used in template,
// in order of first appearance. Names are compared case-insensitively and
// the first spelling wins. Slot is not a component.
func ComponentTags(template string) []string {
	var names []string
	seen := make(map[string]bool)

	for _, tok := range Tokenize(template) {
		if !tok.IsTag() || !IsComponentName(tok.Name) || SameName(tok.Name, SlotTag) {
			continue
		}
		key := fold.String(tok.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, tok.Name)
	}

	return names
}

// ReplaceElement replaces every component marker named name with
// replacement. Markers are matched case-insensitively but must start with
// an uppercase letter, so native elements such as <button> or <slot> are
// never touched. A self-closing marker is replaced on its own; an opening
// marker is replaced together with everything up to its matching closing
// marker. An opening marker without a closing marker is replaced alone.
func ReplaceElement(template, name, replacement string) string {
	tokens := Tokenize(template)
	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if !isMarker(tok, name) {
			b.WriteString(tok.Raw)
			continue
		}

		b.WriteString(replacement)
		if tok.Kind == StartTagToken {
			if closeIdx := matchingMarkerClose(tokens, i); closeIdx >= 0 {
				i = closeIdx
			}
		}
	}

	return b.String()
}

func isMarker(tok Token, name string) bool {
	return tok.Name != "" && IsComponentName(tok.Name) && SameName(tok.Name, name)
}

// matchingMarkerClose is matchingClose restricted to markers: lowercase
// elements of the same name neither open nor close the marker.
func matchingMarkerClose(tokens []Token, open int) int {
	name := tokens[open].Name
	depth := 0
	for j := open + 1; j < len(tokens); j++ {
		t := tokens[j]
		if !isMarker(t, name) {
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

// StripSlots removes every Slot marker, fallback content included.
func StripSlots(template string) string {
	return ReplaceElement(template, SlotTag, "")
}

// FillSlots replaces every Slot marker with child.
func FillSlots(template, child string) string {
	return ReplaceElement(template, SlotTag, child)
}

// AnnotateTopLevel adds attr="value" to every top-level element of template.
// Component markers, Slot included, are left untouched since they are
// replaced later. Self-closing tags keep their "/>".
func AnnotateTopLevel(template, attr, value string) string {
	tokens := Tokenize(template)
	insert := fmt.Sprintf(` %s="%s"`, attr, value)
	depth := 0

	var b strings.Builder
	b.Grow(len(template) + len(insert)*4)

	for _, tok := range tokens {
		switch tok.Kind {
		case StartTagToken, SelfClosingTagToken:
			if depth == 0 && !IsComponentName(tok.Name) {
				b.WriteString(withAttribute(tok, insert))
			} else {
				b.WriteString(tok.Raw)
			}
			if tok.Kind == StartTagToken && !voidElements[fold.String(tok.Name)] {
				depth++
			}
		case EndTagToken:
			b.WriteString(tok.Raw)
			if depth > 0 {
				depth--
			}
		default:
			b.WriteString(tok.Raw)
		}
	}

	return b.String()
}

func withAttribute(tok Token, insert string) string {
	raw := tok.Raw
	cut := len(raw) - 1 // before ">"
	if tok.Kind == SelfClosingTagToken {
		cut = strings.LastIndex(raw, "/")
		// Keep a space between the attribute and "/>" if the author had one.
		for cut > 0 && isSpace(raw[cut-1]) {
			cut--
		}
	}
	if cut < 0 {
		return raw
	}
	return raw[:cut] + insert + raw[cut:]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
