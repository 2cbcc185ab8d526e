package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gubarz/dungeon/internal/document"
	"github.com/gubarz/dungeon/internal/mathml"
)

// renderElement renders the preview pane body for one element
func renderElement(el document.Element) string {
	switch el := el.(type) {
	case *document.TextBox:
		if len(el.Data) == 0 {
			return styles.Dim.Render("(empty)")
		}
		return renderBlocks(el.Data)
	case *document.Rect:
		return fmt.Sprintf("%s %s\n%s %s",
			styles.Dim.Render("size"), fmt.Sprintf("%s × %s", num(el.Width), num(el.Height)),
			styles.Dim.Render("fill"), lipgloss.NewStyle().Foreground(lipgloss.Color(el.Color)).Render(el.Color))
	case *document.Line:
		return fmt.Sprintf("%s (%s, %s) → (%s, %s)",
			styles.Dim.Render("from"), num(el.X1), num(el.Y1), num(el.X2), num(el.Y2))
	}
	return ""
}

func renderBlocks(blocks []document.Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, renderBlock(b))
	}
	return strings.Join(parts, "\n")
}

func renderBlock(b document.Block) string {
	switch b := b.(type) {
	case document.Paragraph:
		return renderChunks(b.Chunks, lipgloss.NewStyle())
	case document.Header:
		return styles.Heading.Render(strings.Repeat("#", b.Level)+" ") + renderChunks(b.Chunks, styles.Heading)
	case document.CodeBlock:
		return styles.Code.Render(b.Text)
	case document.MathBlock:
		return styles.Math.Render(mathSource(b.Text))
	case document.UnorderedList:
		return renderItems(b.Items, func(int) string { return "• " })
	case document.OrderedList:
		return renderItems(b.Items, func(i int) string { return strconv.Itoa(i+1) + ". " })
	case document.BlockQuote:
		return prefix(renderBlocks(b.Inner), styles.Quote.Render("│ "))
	case document.Image:
		label := b.Alt
		if label == "" {
			label = b.URL
		}
		return styles.Image.Render("[image: " + label + "]")
	case document.HorizontalRule:
		return styles.Divider.Render(strings.Repeat("─", 20))
	case document.VerticalSpace:
		return ""
	}
	return ""
}

func renderItems(items []document.Block, marker func(int) string) string {
	lines := make([]string, 0, len(items))
	n := 0
	for _, item := range items {
		switch item.(type) {
		case document.UnorderedList, document.OrderedList:
			// nested lists hang under the previous item without a marker
			lines = append(lines, prefix(renderBlock(item), "  "))
			continue
		}
		m := marker(n)
		n++
		body := prefix(renderBlock(item), strings.Repeat(" ", len([]rune(m))))
		lines = append(lines, m+body[len([]rune(m)):])
	}
	return strings.Join(lines, "\n")
}

// prefix puts p in front of every line of text
func prefix(text, p string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = p + l
	}
	return strings.Join(lines, "\n")
}

// renderChunks renders inline chunks, each style nesting inside the one
// around it
func renderChunks(chunks []document.Chunk, style lipgloss.Style) string {
	var b strings.Builder
	for _, c := range chunks {
		switch c := c.(type) {
		case document.Text:
			b.WriteString(style.Render(string(c)))
		case document.Code:
			b.WriteString(styles.Code.Render(c.Text))
		case document.Math:
			b.WriteString(styles.Math.Render(mathSource(c.Text)))
		case document.Link:
			b.WriteString(renderChunks(c.Title, styles.Link))
			b.WriteString(styles.Dim.Render(" <" + c.URL + ">"))
		case document.Bold:
			b.WriteString(renderChunks(c.Chunks, style.Bold(true)))
		case document.Italic:
			b.WriteString(renderChunks(c.Chunks, style.Italic(true)))
		case document.Underline:
			b.WriteString(renderChunks(c.Chunks, style.Underline(true)))
		case document.Strikethrough:
			b.WriteString(renderChunks(c.Chunks, style.Strikethrough(true)))
		case document.NewLine:
			b.WriteString("\n")
		}
	}
	return b.String()
}

// mathSource shows TeX rather than MathML when the source is recoverable
func mathSource(markup string) string {
	if src, ok := mathml.Source(markup); ok {
		return src
	}
	return markup
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
