package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gubarz/dungeon/internal/document"
	"github.com/gubarz/dungeon/internal/mathml"
)

// headerWidth is the column headers are padded to with '!'
const headerWidth = 80

// Render serializes one element: its header line and, for text boxes, the
// body. A text box without raw content gets markup regenerated from its
// blocks.
func Render(el document.Element) string {
	switch el := el.(type) {
	case *document.TextBox:
		body := el.RawContent
		if body == "" && len(el.Data) > 0 {
			body = Markup(el.Data)
		}
		return header("Text",
			prop("x", num(el.X)),
			prop("y", num(el.Y)),
			prop("width", num(el.Width)),
		) + body

	case *document.Rect:
		return header("Rect",
			prop("x", num(el.X)),
			prop("y", num(el.Y)),
			prop("width", num(el.Width)),
			prop("height", num(el.Height)),
			prop("z", strconv.Itoa(el.Z)),
			prop("color", el.Color),
		)

	case *document.Line:
		return header("Line",
			prop("x1", num(el.X1)),
			prop("y1", num(el.Y1)),
			prop("x2", num(el.X2)),
			prop("y2", num(el.Y2)),
		)
	}
	return ""
}

// RenderDocument serializes every element in document order
func RenderDocument(doc *document.Document) string {
	var b strings.Builder
	for _, key := range doc.Keys() {
		b.WriteString(Render(doc.Elements[key]))
	}
	return b.String()
}

func header(kind string, props ...string) string {
	line := "!!!!" + kind + strings.Join(props, "")
	// always close with at least three '!' so the line still reads as a header
	pad := max(headerWidth-utf8.RuneCountInString(line), 3)
	return line + strings.Repeat("!", pad) + "\n"
}

// prop writes one header property. Empty values are left out since the
// header grammar has no way to express them.
func prop(name, value string) string {
	if value == "" {
		return ""
	}
	return "!" + name + ":" + value
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}

// Markup writes blocks back as rich text. Blocks are separated by a blank
// line and every VerticalSpace adds one more.
func Markup(blocks []document.Block) string {
	var b strings.Builder
	for _, block := range blocks {
		if _, ok := block.(document.VerticalSpace); ok {
			b.WriteByte('\n')
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(blockMarkup(block))
		b.WriteByte('\n')
	}
	return b.String()
}

func blockMarkup(block document.Block) string {
	switch block := block.(type) {
	case document.Paragraph:
		return chunkMarkup(block.Chunks)
	case document.Header:
		return strings.Repeat("#", block.Level) + " " + chunkMarkup(block.Chunks)
	case document.CodeBlock:
		return "```\n" + block.Text + "\n```"
	case document.MathBlock:
		tex, _ := mathml.Source(block.Text)
		return "$$\n" + tex + "\n$$"
	case document.UnorderedList:
		return listMarkup(block.Items, func(int) string { return "- " })
	case document.OrderedList:
		return listMarkup(block.Items, func(i int) string { return fmt.Sprintf("%d. ", i+1) })
	case document.BlockQuote:
		inner := strings.TrimSuffix(Markup(block.Inner), "\n")
		return prefixLines(inner, "> ", ">")
	case document.Image:
		return "![" + block.Alt + "](" + block.URL + ")"
	case document.HorizontalRule:
		return "---"
	}
	return ""
}

// listMarkup writes one item per block. Nested lists are indented under
// the previous item instead of getting a marker of their own.
func listMarkup(items []document.Block, marker func(int) string) string {
	var lines []string
	n := 0
	for _, item := range items {
		switch item.(type) {
		case document.UnorderedList, document.OrderedList:
			lines = append(lines, indentLines(blockMarkup(item), "  "))
			continue
		}
		m := marker(n)
		n++
		text := blockMarkup(item)
		first, rest, found := strings.Cut(text, "\n")
		if found {
			rest = "\n" + indentLines(rest, strings.Repeat(" ", len(m)))
		}
		lines = append(lines, m+first+rest)
	}
	return strings.Join(lines, "\n")
}

func indentLines(text, indent string) string {
	return prefixLines(text, indent, "")
}

func prefixLines(text, prefix, blank string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = blank
			continue
		}
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func chunkMarkup(chunks []document.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		switch c := c.(type) {
		case document.Text:
			b.WriteString(string(c))
		case document.Code:
			b.WriteString("`" + c.Text + "`")
		case document.Math:
			tex, _ := mathml.Source(c.Text)
			b.WriteString("$" + tex + "$")
		case document.Link:
			b.WriteString("[" + chunkMarkup(c.Title) + "](" + c.URL + ")")
		case document.Bold:
			b.WriteString("**" + chunkMarkup(c.Chunks) + "**")
		case document.Italic:
			b.WriteString("*" + chunkMarkup(c.Chunks) + "*")
		case document.Underline:
			b.WriteString("__" + chunkMarkup(c.Chunks) + "__")
		case document.Strikethrough:
			b.WriteString("~~" + chunkMarkup(c.Chunks) + "~~")
		case document.NewLine:
			b.WriteString("<br>")
		}
	}
	return b.String()
}
