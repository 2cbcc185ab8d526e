package parser

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gubarz/dungeon/internal/document"
)

var epoch = time.Unix(1700000000, 0)

// ordered returns the document's elements in key order
func ordered(doc *document.Document) []document.Element {
	var out []document.Element
	for _, k := range doc.Keys() {
		out = append(out, doc.Elements[k])
	}
	return out
}

func TestParseDefaults(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected document.Element
	}{
		{
			name:     "empty file is one empty text box",
			input:    "",
			expected: &document.TextBox{X: -350, Y: 30, Width: 700},
		},
		{
			name:     "bare text header",
			input:    "!!!!Text!!!!",
			expected: &document.TextBox{X: -350, Y: 30, Width: 700},
		},
		{
			name:  "bare rect header",
			input: "!!!!Rect!!!!",
			expected: &document.Rect{
				X: -400, Y: 0, Width: 800, Height: 600, Z: -1, Color: "#00827c",
			},
		},
		{
			name:  "rectangle spelling and lower case",
			input: "!!!!rectangle!z:3!color:red!!!!",
			expected: &document.Rect{
				X: -400, Y: 0, Width: 800, Height: 600, Z: 3, Color: "red",
			},
		},
		{
			name:     "later duplicate property wins",
			input:    "!!!!Text!x:1!x:2!!!!",
			expected: &document.TextBox{X: 2, Y: 30, Width: 700},
		},
		{
			name:  "line",
			input: "!!!!Line!x1:0.5!y1:1!x2:-2!y2:3.25!!!!\n",
			expected: &document.Line{
				X1: 0.5, Y1: 1, X2: -2, Y2: 3.25,
			},
		},
		{
			name:  "unterminated header is text",
			input: "!!!!Text!x:1\n",
			expected: &document.TextBox{
				X: -350, Y: 30, Width: 700,
				RawContent: "!!!!Text!x:1\n",
				Data:       []document.Block{para(text("!!!!Text!x:1"))},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(tt.input, epoch)
			require.NoError(t, err)
			assert.Equal(t, []document.Element{tt.expected}, ordered(doc))
			assert.Equal(t, epoch.Unix(), doc.Created)
		})
	}
}

func TestParseSegments(t *testing.T) {
	input := "intro\n" +
		"!!!!Text!x:1.0!y:2.0!width:3.0!!!!\n" +
		"body\n" +
		"!!!!Line!x1:0!y1:0!x2:1!y2:1!!!!\n"

	doc, err := Parse(input, epoch)
	require.NoError(t, err)

	keys := doc.Keys()
	require.Len(t, keys, 3)
	assert.True(t, strings.HasPrefix(keys[0], "0_"))
	assert.True(t, strings.HasPrefix(keys[1], "1_"))
	assert.True(t, strings.HasPrefix(keys[2], "2_"))

	intro := doc.Elements[keys[0]].(*document.TextBox)
	assert.Equal(t, "intro\n", intro.RawContent)
	assert.Equal(t, []document.Block{para(text("intro"))}, intro.Data)

	box := doc.Elements[keys[1]].(*document.TextBox)
	assert.Equal(t, 1.0, box.X)
	assert.Equal(t, "body\n", box.RawContent)

	assert.IsType(t, &document.Line{}, doc.Elements[keys[2]])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		target  error
		element int
		line    int
	}{
		{
			name:    "missing line coordinate",
			input:   "ok\n!!!!Line!x1:1!y1:2!x2:3!!!!\n",
			target:  ErrMissingProperty,
			element: 1,
			line:    2,
		},
		{
			name:   "invalid number",
			input:  "!!!!Text!x:abc!!!!",
			target: ErrInvalidPropertyValue,
			line:   1,
		},
		{
			name:   "non integer z",
			input:  "!!!!Rect!z:1.5!!!!",
			target: ErrInvalidPropertyValue,
			line:   1,
		},
		{
			name:   "nan coordinate",
			input:  "!!!!Rect!x:nan!!!!\n!!!!Text!!!!\nhello\n",
			target: ErrInvalidPropertyValue,
			line:   1,
		},
		{
			name:    "infinite width",
			input:   "ok\n!!!!Text!width:-Inf!!!!\n",
			target:  ErrInvalidPropertyValue,
			element: 1,
			line:    2,
		},
		{
			name:   "math failure in implicit box",
			input:  "hello $\\frac{a$\n",
			target: ErrMathRender,
			line:   0,
		},
		{
			name:   "math block failure",
			input:  "!!!!Text!!!!\n$$\n\\frac{a\n$$\n",
			target: ErrMathRender,
			line:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(tt.input, epoch)
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.True(t, errors.Is(err, tt.target))

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.element, pe.Element)
			assert.Equal(t, tt.line, pe.Line)
		})
	}
}

func TestParseErrorMessage(t *testing.T) {
	_, err := Parse("ok\n!!!!Line!x1:1!y1:2!x2:3!!!!\n", epoch)
	require.Error(t, err)
	assert.Equal(t, "element 1 (line 2): missing property: y2", err.Error())
}

func TestBuildUnknownType(t *testing.T) {
	p := precursor{kind: "circle", props: map[string]string{}, header: 0, start: 1, end: 0}
	_, err := p.build(nil)
	assert.True(t, errors.Is(err, ErrUnknownElementType))
}

func TestParseTotal(t *testing.T) {
	inputs := []string{
		"",
		"\n",
		"!!!!Text!!!!",
		"!!!!Text!!!!\n!!!!Text!!!!\n!!!!Rect!!!!",
		"- a\n\n- b",
		strings.Repeat("> ", 100) + "x",
		strings.Repeat("**a ", 100),
		strings.Repeat("[", 100) + "](" + strings.Repeat(")", 100),
		"!!!!Text!!!!\n" + strings.Repeat("*", 101),
		"!!!!Text!!!!\n$$\n\\begin{pmatrix} a \\\\ b \\end{pmatrix}\n$$\n",
		"!!!!Text!!!!\n$$\n|x| = \\begin{cases} x & x \\ge 0 \\\\ -x & x < 0 \\end{cases}\n$$\n",
		"choose $\\binom{n}{k}$ of them",
		"$\\displaystyle \\sum x$ and $\\lvert x \\rvert$ and $\\overbrace{x}$",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input, epoch)
			assert.NoError(t, err)
		})
	}
}

func TestKeyStability(t *testing.T) {
	before, err := Parse("a\n!!!!Text!!!!\nb\n", epoch)
	require.NoError(t, err)
	again, err := Parse("a\n!!!!Text!!!!\nb\n", epoch)
	require.NoError(t, err)
	edited, err := Parse("a\n!!!!Text!!!!\nchanged\n", epoch)
	require.NoError(t, err)

	assert.Equal(t, before.Keys(), again.Keys())
	assert.Equal(t, before.Keys()[0], edited.Keys()[0])

	moved, err := Parse("!!!!Text!x:5!!!!\na\n!!!!Text!!!!\nb\n", epoch)
	require.NoError(t, err)
	assert.NotEqual(t, before.Keys()[1], moved.Keys()[1])
}

func TestParseFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/canvas.md", []byte("!!!!Rect!!!!\n"), 0o644))

	doc, err := ParseFile(fsys, "/canvas.md")
	require.NoError(t, err)
	assert.Len(t, doc.Elements, 1)

	_, err = ParseFile(fsys, "/missing.md")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
