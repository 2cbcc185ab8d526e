package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gubarz/dungeon/internal/document"
	"github.com/gubarz/dungeon/internal/parser"
)

const canvas = "!!!!Text!x:10.0!y:20.0!width:300.0!!!!\n" +
	"# Groceries\n" +
	"- milk\n" +
	"- eggs\n" +
	"!!!!Rect!x:0.0!y:0.0!width:100.0!height:50.0!z:-1!color:red!!!!\n" +
	"!!!!Line!x1:1.0!y1:2.0!x2:3.0!y2:4.0!!!!\n" +
	"!!!!Text!!!!\n" +
	"Call **Ana** about the `deploy`\n"

func parse(t *testing.T, text string) *document.Document {
	t.Helper()
	doc, err := parser.Parse(text, time.Unix(100, 0))
	require.NoError(t, err)
	return doc
}

func key(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func TestNewElementItem(t *testing.T) {
	doc := parse(t, canvas)
	items := itemsFor(doc)
	require.Len(t, items, 4)

	tests := []struct {
		kind     string
		position string
		summary  string
	}{
		{"TextBox", "10,20", "Groceries"},
		{"Rect", "0,0", "100×50 red z-1"},
		{"Line", "1,2", "to 3,4"},
		{"TextBox", "-350,30", "Call Ana about the deploy"},
	}

	for i, tt := range tests {
		t.Run(tt.kind+"/"+tt.summary, func(t *testing.T) {
			assert.Equal(t, tt.kind, items[i].kind)
			assert.Equal(t, tt.position, items[i].position)
			assert.Equal(t, tt.summary, items[i].summary)
		})
	}
}

func TestFilterElements(t *testing.T) {
	doc := parse(t, canvas)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"empty query keeps all", "", []string{"TextBox", "Rect", "Line", "TextBox"}},
		{"by kind", "rect", []string{"Rect"}},
		{"by raw text", "eggs", []string{"TextBox"}},
		{"all words must match", "call deploy", []string{"TextBox"}},
		{"no match", "nothing here", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMainModel("canvas.md", doc)
			m.textInput.SetValue(tt.query)
			m.filterElements()

			var kinds []string
			for _, item := range m.filtered {
				kinds = append(kinds, item.kind)
			}
			assert.Equal(t, tt.want, kinds)
		})
	}
}

func TestNavigationAndSelect(t *testing.T) {
	m := newMainModel("canvas.md", parse(t, canvas))

	next, _ := m.Update(key(tea.KeyDown))
	next, _ = next.Update(key(tea.KeyDown))
	next, _ = next.Update(key(tea.KeyUp))
	m = next.(mainModel)
	assert.Equal(t, 1, m.cursor)

	next, cmd := m.Update(key(tea.KeyEnter))
	m = next.(mainModel)
	require.NotNil(t, cmd)
	require.NotNil(t, m.selected)
	assert.Equal(t, "Rect", m.selected.kind)
}

func TestCursorClamps(t *testing.T) {
	m := newMainModel("canvas.md", parse(t, canvas))

	m.moveCursor(-5)
	assert.Equal(t, 0, m.cursor)
	m.moveCursor(50)
	assert.Equal(t, 3, m.cursor)
}

func TestEscQuits(t *testing.T) {
	m := newMainModel("canvas.md", parse(t, canvas))
	next, cmd := m.Update(key(tea.KeyEsc))
	require.NotNil(t, cmd)
	assert.True(t, next.(mainModel).quitting)
	assert.Nil(t, next.(mainModel).selected)
	assert.Empty(t, next.View())
}

func TestReplaceDocumentKeepsCursor(t *testing.T) {
	doc := parse(t, canvas)
	m := newMainModel("canvas.md", doc)
	m.textInput.SetValue("textbox")
	m.filterElements()
	m.moveCursor(1)
	boxKey := m.filtered[m.cursor].key

	// editing a body without adding lines keeps every key
	edited := strings.Replace(canvas, "Call **Ana**", "Call Bea", 1)
	next, _ := m.Update(documentMsg{doc: parse(t, edited)})
	m = next.(mainModel)

	require.Len(t, m.filtered, 2)
	assert.Equal(t, boxKey, m.filtered[m.cursor].key)
	assert.Equal(t, "Call Bea about the deploy", m.filtered[m.cursor].summary)
}

func TestReplaceDocumentClampsCursor(t *testing.T) {
	m := newMainModel("canvas.md", parse(t, canvas))
	m.moveCursor(3)

	next, _ := m.Update(documentMsg{doc: parse(t, "!!!!Rect!!!!\n")})
	m = next.(mainModel)

	require.Len(t, m.items, 1)
	assert.Equal(t, 0, m.cursor)
}

func TestRenderBlocks(t *testing.T) {
	doc := parse(t, "!!!!Text!!!!\n"+
		"## Plan\n"+
		"1. first\n"+
		"2. second\n"+
		"> quoted\n"+
		"---\n"+
		"see [docs](http://x.io)<br>done\n"+
		"![map](http://x.io/m.png)\n")
	tb := doc.Elements[doc.Keys()[0]].(*document.TextBox)

	got := ansi.Strip(renderBlocks(tb.Data))
	want := "## Plan\n" +
		"1. first\n" +
		"2. second\n" +
		"│ quoted\n" +
		"────────────────────\n" +
		"see docs <http://x.io>\n" +
		"done\n" +
		"[image: map]"
	assert.Equal(t, want, got)
}

func TestRenderNestedList(t *testing.T) {
	blocks := []document.Block{
		document.UnorderedList{Items: []document.Block{
			document.Paragraph{Chunks: []document.Chunk{document.Text("outer")}},
			document.UnorderedList{Items: []document.Block{
				document.Paragraph{Chunks: []document.Chunk{document.Text("inner")}},
			}},
		}},
	}
	assert.Equal(t, "• outer\n  • inner", ansi.Strip(renderBlocks(blocks)))
}

func TestRenderElement(t *testing.T) {
	tests := []struct {
		name string
		el   document.Element
		want string
	}{
		{"rect", &document.Rect{Width: 80, Height: 60.5, Color: "#fff"}, "size 80 × 60.5\nfill #fff"},
		{"line", &document.Line{X1: 1, Y1: 2, X2: 3, Y2: 4}, "from (1, 2) → (3, 4)"},
		{"empty text", &document.TextBox{}, "(empty)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ansi.Strip(renderElement(tt.el)))
		})
	}
}

func TestView(t *testing.T) {
	m := newMainModel("canvas.md", parse(t, canvas))
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	view := ansi.Strip(next.View())
	assert.Contains(t, view, "TextBox @ 10,20")
	assert.Contains(t, view, "# Groceries")
	assert.Contains(t, view, "• milk")
	assert.Contains(t, view, "4/4")
	assert.Contains(t, view, "canvas.md")
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"a longer line", 6, "a lon…"},
		{"ünïcödé text", 4, "ünï…"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, truncateString(tt.in, tt.max))
		})
	}
}
