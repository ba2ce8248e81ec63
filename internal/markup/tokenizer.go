// Package markup scans component source text with the x/net/html tokenizer.
//
// The tokenizer lower-cases tag names, so every Token keeps the raw bytes it
// was produced from and re-derives the name with its original casing: the
// distinction between `<button>` and `<Button>` is what separates plain HTML
// from a component reference. Token offsets are contiguous, which lets the
// rewriting helpers splice replacements into the original text without
// re-serializing anything the caller wrote.
package markup

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"
)

// TokenKind classifies a markup token.
type TokenKind int

const (
	TextToken TokenKind = iota
	StartTagToken
	EndTagToken
	SelfClosingTagToken
	CommentToken
	DoctypeToken
)

// Token is one lexical unit of the source with its byte offset.
type Token struct {
	Kind TokenKind
	// Name is the tag name in its original case. Empty for non-tag tokens.
	Name   string
	Raw    string
	Offset int
}

// End returns the offset just past the token.
func (t Token) End() int {
	return t.Offset + len(t.Raw)
}

// IsTag reports whether the token opens an element.
func (t Token) IsTag() bool {
	return t.Kind == StartTagToken || t.Kind == SelfClosingTagToken
}

var fold = cases.Fold()

// SameName compares tag names case-insensitively.
func SameName(a, b string) bool {
	return fold.String(a) == fold.String(b)
}

// Tokenize splits src into tokens covering every byte of src in order.
func Tokenize(src string) []Token {
	z := html.NewTokenizer(strings.NewReader(src))
	var tokens []Token
	offset := 0

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := string(z.Raw())

		tok := Token{Raw: raw, Offset: offset}
		switch tt {
		case html.StartTagToken:
			tok.Kind = StartTagToken
			tok.Name = rawTagName(raw)
		case html.EndTagToken:
			tok.Kind = EndTagToken
			tok.Name = rawTagName(raw)
		case html.SelfClosingTagToken:
			tok.Kind = SelfClosingTagToken
			tok.Name = rawTagName(raw)
		case html.CommentToken:
			tok.Kind = CommentToken
		case html.DoctypeToken:
			tok.Kind = DoctypeToken
		default:
			tok.Kind = TextToken
		}

		tokens = append(tokens, tok)
		offset += len(raw)
	}

	// Anything the tokenizer did not hand back is trailing text.
	if offset < len(src) {
		tokens = append(tokens, Token{Kind: TextToken, Raw: src[offset:], Offset: offset})
	}

	return tokens
}

func rawTagName(raw string) string {
	s := strings.TrimPrefix(raw, "<")
	s = strings.TrimPrefix(s, "/")
	end := strings.IndexAny(s, " \t\n\r\f/>")
	if end < 0 {
		return s
	}
	return s[:end]
}

// IsComponentName reports whether a tag name refers to a component: its
// first byte is an uppercase ASCII letter.
func IsComponentName(name string) bool {
	return name != "" && name[0] >= 'A' && name[0] <= 'Z'
}

// LineAt returns the 1-based line of offset in src.
func LineAt(src string, offset int) int {
	if offset > len(src) {
		offset = len(src)
	}
	return strings.Count(src[:offset], "\n") + 1
}

// LineColumn returns the 1-based line and column of offset in src.
func LineColumn(src string, offset int) (int, int) {
	if offset > len(src) {
		offset = len(src)
	}
	before := src[:offset]
	line := strings.Count(before, "\n") + 1
	col := offset - strings.LastIndex(before, "\n")
	return line, col
}
