package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KevTale/hakai/internal/types"
)

func TestTokenizeCoversSource(t *testing.T) {
	src := `<div class="a"><Button label="x"/>{{ title }}</div><script>if (a < b) {}</script>`
	tokens := Tokenize(src)

	var joined strings.Builder
	for i, tok := range tokens {
		if i > 0 {
			assert.Equal(t, tokens[i-1].End(), tok.Offset)
		}
		joined.WriteString(tok.Raw)
	}
	assert.Equal(t, src, joined.String())

	var names []string
	for _, tok := range tokens {
		if tok.IsTag() {
			names = append(names, tok.Name)
		}
	}
	assert.Equal(t, []string{"div", "Button", "script"}, names)
}

func TestExtractSections(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected types.Sections
	}{
		{
			name: "all sections",
			src: `<template>
  <h1>{{ title }}</h1>
</template>
<script>
const title = "Hi";
</script>
<style>
h1 { color: red; }
</style>`,
			expected: types.Sections{
				Template: "<h1>{{ title }}</h1>",
				Script:   `const title = "Hi";`,
				Style:    "h1 { color: red; }",
			},
		},
		{
			name:     "missing sections are empty",
			src:      `<template><p>only</p></template>`,
			expected: types.Sections{Template: "<p>only</p>"},
		},
		{
			name:     "nested template does not close the section",
			src:      `<template><ul><template><li/></template></ul></template>`,
			expected: types.Sections{Template: "<ul><template><li/></template></ul>"},
		},
		{
			name:     "script containing markup",
			src:      `<script>const s = "</div><template>";</script><template><p/></template>`,
			expected: types.Sections{Template: "<p/>", Script: `const s = "</div><template>";`},
		},
		{
			name:     "first block wins",
			src:      `<style>a{}</style><style>b{}</style>`,
			expected: types.Sections{Style: "a{}"},
		},
		{
			name:     "empty file",
			src:      "",
			expected: types.Sections{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections, err := ExtractSections(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, sections)
		})
	}
}

func TestExtractSectionsUnterminated(t *testing.T) {
	_, err := ExtractSections("<script>const a = 1;</script>\n\n<template>\n<p>open")
	require.Error(t, err)

	var unterminated *UnterminatedError
	require.ErrorAs(t, err, &unterminated)
	assert.Equal(t, SectionTemplate, unterminated.Section)
	assert.Equal(t, 3, unterminated.Line)
}

func TestComponentTags(t *testing.T) {
	template := `<div><Button/><Card title="x"><Button /></Card><Slot /><span/><BUTTON/></div>`
	assert.Equal(t, []string{"Button", "Card"}, ComponentTags(template))
	assert.Empty(t, ComponentTags(`<p>no components</p>`))
}

func TestReplaceElement(t *testing.T) {
	tests := []struct {
		name        string
		template    string
		tag         string
		replacement string
		expected    string
	}{
		{
			name:        "self closing",
			template:    `<div><Button/> and <Button label="a" /></div>`,
			tag:         "Button",
			replacement: "<button>ok</button>",
			expected:    "<div><button>ok</button> and <button>ok</button></div>",
		},
		{
			name:        "open and close drops inner content",
			template:    `<main><Slot><p>fallback</p></Slot></main>`,
			tag:         "Slot",
			replacement: "<section/>",
			expected:    "<main><section/></main>",
		},
		{
			name:        "uppercase spelling variants",
			template:    `<BUTTON/><Button></Button>`,
			tag:         "Button",
			replacement: "X",
			expected:    "XX",
		},
		{
			name:        "native element of the same name survives",
			template:    `<main><Button/><button class="save" onclick="save()">Save draft</button></main>`,
			tag:         "Button",
			replacement: `<a class="btn">Styled</a>`,
			expected:    `<main><a class="btn">Styled</a><button class="save" onclick="save()">Save draft</button></main>`,
		},
		{
			name:        "native element inside a marker",
			template:    `<Button><button>inner</button></Button>after`,
			tag:         "Button",
			replacement: "B",
			expected:    "Bafter",
		},
		{
			name:        "nested same name",
			template:    `<Box><Box>inner</Box></Box>after`,
			tag:         "Box",
			replacement: "B",
			expected:    "Bafter",
		},
		{
			name:        "unclosed open tag",
			template:    `<Card>rest`,
			tag:         "Card",
			replacement: "C",
			expected:    "Crest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ReplaceElement(tt.template, tt.tag, tt.replacement))
		})
	}
}

func TestSlots(t *testing.T) {
	parent := `<header/><Slot />`
	assert.Equal(t, "<header/>", StripSlots(parent))
	assert.Equal(t, "<header/><p>child</p>", FillSlots(parent, "<p>child</p>"))

	shadow := `<template shadowrootmode="open"><slot name="x">fallback</slot></template><Slot/>`
	assert.Equal(t, `<template shadowrootmode="open"><slot name="x">fallback</slot></template>`, StripSlots(shadow))
	assert.Equal(t,
		`<template shadowrootmode="open"><slot name="x">fallback</slot></template><p>child</p>`,
		FillSlots(shadow, "<p>child</p>"))
}

func TestAnnotateTopLevel(t *testing.T) {
	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "top level only",
			template: `<div><p>x</p></div><section class="a">y</section>`,
			expected: `<div data-page="home"><p>x</p></div><section class="a" data-page="home">y</section>`,
		},
		{
			name:     "self closing keeps slash",
			template: `<img src="a.png"/><br />`,
			expected: `<img src="a.png" data-page="home"/><br data-page="home" />`,
		},
		{
			name:     "void element does not nest",
			template: `<input type="text"><p>after</p>`,
			expected: `<input type="text" data-page="home"><p data-page="home">after</p>`,
		},
		{
			name:     "components and slot untouched",
			template: `<Slot /><Button/><nav></nav>`,
			expected: `<Slot /><Button/><nav data-page="home"></nav>`,
		},
		{
			name:     "text preserved",
			template: `{{ home_title }} <b>bold</b>`,
			expected: `{{ home_title }} <b data-page="home">bold</b>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AnnotateTopLevel(tt.template, "data-page", "home"))
		})
	}
}

func TestLineColumn(t *testing.T) {
	src := "ab\ncd\nef"
	line, col := LineColumn(src, 0)
	assert.Equal(t, []int{1, 1}, []int{line, col})
	line, col = LineColumn(src, 4)
	assert.Equal(t, []int{2, 2}, []int{line, col})
	line, col = LineColumn(src, 6)
	assert.Equal(t, []int{3, 1}, []int{line, col})
	assert.Equal(t, 3, LineAt(src, 100))
}
