package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/gubarz/dungeon/internal/document"
	"github.com/gubarz/dungeon/internal/mathml"
)

var (
	unorderedListRe = regexp.MustCompile(`^[ \t]*([*+-][ \t]+)`)
	// roman numerals and plain numbers; which one is used doesn't change the output
	orderedListRe = regexp.MustCompile(`^[ \t]*((?:[ivx]+|\d+)\.[ \t]+)`)
	blockquoteRe  = regexp.MustCompile(`^[ \t]*>(.*)$`)
	imageRe       = regexp.MustCompile(`^[ \t]*!\[([^\]\n]*)\]\(([^)\n]*)\)`)
)

// blockBuilder collects blocks while a paragraph may still be growing.
// Paragraph text is only chunked once it is closed, so emphasis can span
// the merged lines.
type blockBuilder struct {
	blocks []document.Block
	para   []string
}

func (b *blockBuilder) paragraph(line string) {
	b.para = append(b.para, line)
}

// closeParagraph ends the paragraph in progress, if any
func (b *blockBuilder) closeParagraph() error {
	if len(b.para) == 0 {
		return nil
	}
	chunks, err := parseChunks(strings.Join(b.para, " "))
	b.para = nil
	if err != nil {
		return err
	}
	b.blocks = append(b.blocks, document.Paragraph{Chunks: chunks})
	return nil
}

func (b *blockBuilder) add(blocks ...document.Block) error {
	if err := b.closeParagraph(); err != nil {
		return err
	}
	b.blocks = append(b.blocks, blocks...)
	return nil
}

// parseBlocks is the recursive-descent block parser. Rules are tried in a
// fixed order against the start of the remaining text; each one consumes a
// prefix and none backtracks.
func parseBlocks(text string) ([]document.Block, error) {
	var b blockBuilder

	text = skipBlankLines(strings.TrimRightFunc(text, unicode.IsSpace))

	for {
		trimmed := trimIndent(text)
		if trimmed == "" {
			break
		}

		// header: "# " .. "###### ", first level that matches wins
		if level := headerLevel(trimmed); level > 0 {
			line, rest := cutLine(trimIndent(trimmed[level+1:]))
			chunks, err := parseChunks(trimLineEnd(line))
			if err != nil {
				return nil, err
			}
			if err := b.add(document.Header{Level: level, Chunks: chunks}); err != nil {
				return nil, err
			}
			text = rest
			continue
		}

		if code, rest, ok := fenced(trimmed, "```"); ok {
			if err := b.add(document.CodeBlock{Text: code}); err != nil {
				return nil, err
			}
			text = rest
			continue
		}

		if tex, rest, ok := fenced(trimmed, "$$"); ok {
			rendered, err := mathml.Render(tex, true)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrMathRender, err)
			}
			if err := b.add(document.MathBlock{Text: rendered}); err != nil {
				return nil, err
			}
			text = rest
			continue
		}

		if strings.HasPrefix(trimmed, "---") {
			_, rest := cutLine(trimmed)
			if err := b.add(document.HorizontalRule{}); err != nil {
				return nil, err
			}
			text = rest
			continue
		}

		items, rest, found, err := parseList(text, unorderedListRe)
		if err != nil {
			return nil, err
		}
		if found {
			if err := b.add(document.UnorderedList{Items: items}); err != nil {
				return nil, err
			}
			text = rest
			continue
		}

		items, rest, found, err = parseList(text, orderedListRe)
		if err != nil {
			return nil, err
		}
		if found {
			if err := b.add(document.OrderedList{Items: items}); err != nil {
				return nil, err
			}
			text = rest
			continue
		}

		if quoted, rest, ok := collectQuote(text); ok {
			inner, err := parseBlocks(quoted)
			if err != nil {
				return nil, err
			}
			if err := b.add(document.BlockQuote{Inner: inner}); err != nil {
				return nil, err
			}
			text = rest
			continue
		}

		// images only consume their own span; the rest of the line is parsed
		// again unless it is blank
		if m := imageRe.FindStringSubmatch(text); m != nil {
			if err := b.add(document.Image{URL: m[2], Alt: m[1]}); err != nil {
				return nil, err
			}
			text = text[len(m[0]):]
			if line, rest := cutLine(text); isBlank(line) {
				text = rest
			}
			continue
		}

		// n blank lines in a row give n-1 vertical spaces
		if trimmed[0] == '\n' {
			if err := b.closeParagraph(); err != nil {
				return nil, err
			}
			text = trimmed[1:]
			for {
				next := trimIndent(text)
				if !strings.HasPrefix(next, "\n") {
					break
				}
				b.blocks = append(b.blocks, document.VerticalSpace{})
				text = next[1:]
			}
			continue
		}

		line, rest := cutLine(trimmed)
		b.paragraph(trimLineEnd(line))
		text = rest
	}

	if err := b.closeParagraph(); err != nil {
		return nil, err
	}
	return b.blocks, nil
}

func headerLevel(text string) int {
	for level := 1; level <= 6; level++ {
		if strings.HasPrefix(text, strings.Repeat("#", level)+" ") {
			return level
		}
	}
	return 0
}

// fenced matches a block opened and closed by delim. The body is trimmed and
// whatever follows the closing delimiter on its line is dropped.
func fenced(text, delim string) (body, rest string, ok bool) {
	if !strings.HasPrefix(text, delim) {
		return "", "", false
	}
	inner := text[len(delim):]
	end := strings.Index(inner, delim)
	if end < 0 {
		return "", "", false
	}
	_, rest = cutLine(inner[end+len(delim):])
	return strings.TrimSpace(inner[:end]), rest, true
}

// parseList collects sibling items matching marker. Each item owns every
// following line indented deeper than its marker; item bodies are parsed
// recursively and their blocks become the list's items.
func parseList(text string, marker *regexp.Regexp) ([]document.Block, string, bool, error) {
	var items []document.Block
	found := false

	for {
		m := marker.FindStringSubmatchIndex(text)
		if m == nil {
			break
		}
		found = true

		indent := countIndent(text) + (m[3] - m[2])
		scope, rest := splitScope(text, indent)

		blocks, err := parseBlocks(scope[m[1]:])
		if err != nil {
			return nil, "", false, err
		}
		items = append(items, blocks...)
		text = rest
	}

	return items, text, found, nil
}

// collectQuote gathers consecutive "> " lines with the marker stripped.
// Blank lines between two quote lines stay part of the quote.
func collectQuote(text string) (string, string, bool) {
	var buf strings.Builder
	found := false

	for text != "" {
		line, rest := cutLine(text)
		if m := blockquoteRe.FindStringSubmatch(line); m != nil {
			buf.WriteString(m[1])
			buf.WriteByte('\n')
			text = rest
			found = true
			continue
		}
		if !found || !isBlank(line) {
			break
		}

		blanks, after := 0, text
		for after != "" {
			l, r := cutLine(after)
			if !isBlank(l) {
				break
			}
			blanks++
			after = r
		}
		next, _ := cutLine(after)
		if after == "" || !blockquoteRe.MatchString(next) {
			break
		}
		buf.WriteString(strings.Repeat("\n", blanks))
		text = after
	}

	return buf.String(), text, found
}

// splitScope splits text at the first line, after the first, that is
// indented less than indent
func splitScope(text string, indent int) (string, string) {
	idx := 0
	for first := true; idx < len(text); first = false {
		line, _ := cutLine(text[idx:])
		if !first && countIndent(line) < indent {
			break
		}
		idx += len(line)
		if idx < len(text) {
			idx++ // newline
		}
	}
	return text[:idx], text[idx:]
}

// countIndent counts leading spaces, tabs as four
func countIndent(text string) int {
	n := 0
	for _, c := range text {
		switch c {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}

func cutLine(text string) (line, rest string) {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i], text[i+1:]
	}
	return text, ""
}

// trimIndent drops leading horizontal whitespace but never a newline
func trimIndent(text string) string {
	return strings.TrimLeft(text, " \t\r")
}

func trimLineEnd(line string) string {
	return strings.TrimRight(line, " \t\r")
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func skipBlankLines(text string) string {
	for text != "" {
		line, rest := cutLine(text)
		if !isBlank(line) {
			return text
		}
		text = rest
	}
	return text
}
