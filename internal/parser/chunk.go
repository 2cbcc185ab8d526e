package parser

import (
	"fmt"
	"strings"

	"github.com/gubarz/dungeon/internal/document"
	"github.com/gubarz/dungeon/internal/mathml"
)

// chunkList accumulates inline chunks, merging neighbouring text runs
type chunkList struct {
	chunks []document.Chunk
}

func (l *chunkList) add(c document.Chunk) {
	t, ok := c.(document.Text)
	if !ok {
		l.chunks = append(l.chunks, c)
		return
	}
	if t == "" {
		return
	}
	if n := len(l.chunks); n > 0 {
		if prev, ok := l.chunks[n-1].(document.Text); ok {
			l.chunks[n-1] = prev + t
			return
		}
	}
	l.chunks = append(l.chunks, t)
}

func (l *chunkList) text(s string) {
	l.add(document.Text(s))
}

// parseChunks splits one line of rich text into inline chunks. Stages run
// links, then <br>, code spans, math spans and finally emphasis; each stage
// hands the text around its matches to the next one.
func parseChunks(text string) ([]document.Chunk, error) {
	var l chunkList
	if err := chunkLinks(&l, text); err != nil {
		return nil, err
	}
	return l.chunks, nil
}

// chunkLinks matches [title](url), pairing each "](" with the closest "["
// before it and the first ")" after it
func chunkLinks(l *chunkList, text string) error {
	from := 0
	for {
		mid := strings.Index(text[from:], "](")
		if mid < 0 {
			break
		}
		mid += from

		end := strings.IndexByte(text[mid+2:], ')')
		if end < 0 {
			break
		}
		open := strings.LastIndexByte(text[:mid], '[')
		if open < 0 {
			from = mid + 2
			continue
		}

		if err := chunkBreaks(l, text[:open]); err != nil {
			return err
		}
		var title chunkList
		if err := chunkBreaks(&title, text[open+1:mid]); err != nil {
			return err
		}
		l.add(document.Link{
			Title: title.chunks,
			URL:   text[mid+2 : mid+2+end],
		})

		text = text[mid+2+end+1:]
		from = 0
	}
	return chunkBreaks(l, text)
}

func chunkBreaks(l *chunkList, text string) error {
	for i, part := range strings.Split(text, "<br>") {
		if i > 0 {
			l.add(document.NewLine{})
		}
		if err := chunkCode(l, part); err != nil {
			return err
		}
	}
	return nil
}

// chunkCode cuts `code` spans. Like math, an empty pair stays literal.
func chunkCode(l *chunkList, text string) error {
	from := 0
	for {
		open := strings.IndexByte(text[from:], '`')
		if open < 0 {
			break
		}
		open += from
		end := strings.IndexByte(text[open+1:], '`')
		if end < 0 {
			break
		}
		if end == 0 {
			from = open + 2
			continue
		}

		if err := chunkMath(l, text[:open]); err != nil {
			return err
		}
		l.add(document.Code{Text: text[open+1 : open+1+end]})

		text = text[open+1+end+1:]
		from = 0
	}
	return chunkMath(l, text)
}

// chunkMath renders $...$ spans. An empty pair "$$" stays literal.
func chunkMath(l *chunkList, text string) error {
	from := 0
	for {
		open := strings.IndexByte(text[from:], '$')
		if open < 0 {
			break
		}
		open += from
		end := strings.IndexByte(text[open+1:], '$')
		if end < 0 {
			break
		}
		if end == 0 {
			from = open + 2
			continue
		}

		chunkStyles(l, text[:open])
		rendered, err := mathml.Render(text[open+1:open+1+end], false)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMathRender, err)
		}
		l.add(document.Math{Text: rendered})

		text = text[open+1+end+1:]
		from = 0
	}
	chunkStyles(l, text)
	return nil
}

var styleDelims = []string{"**", "__", "~~", "*"}

// chunkStyles wraps matched emphasis pairs around their recursively parsed
// interior. An opener without a closer is kept as text.
func chunkStyles(l *chunkList, text string) {
	pos := 0
	for {
		open, delim := findStyle(text, pos)
		if open < 0 {
			break
		}
		inner := open + len(delim)
		end := findCloser(text, inner, delim)
		if end < 0 {
			pos = inner
			continue
		}

		l.text(text[:open])
		var sub chunkList
		chunkStyles(&sub, text[inner:end])
		l.add(wrapStyle(delim, sub.chunks))

		text = text[end+len(delim):]
		pos = 0
	}
	l.text(text)
}

// findStyle returns the earliest emphasis opener at or after from
func findStyle(text string, from int) (int, string) {
	best, delim := -1, ""
	for _, d := range styleDelims {
		i := findCloser(text, from, d)
		if i >= 0 && (best < 0 || i < best) {
			best, delim = i, d
		}
	}
	return best, delim
}

func findCloser(text string, from int, delim string) int {
	if delim == "*" {
		return findLoneStar(text, from)
	}
	i := strings.Index(text[from:], delim)
	if i < 0 {
		return -1
	}
	return i + from
}

// findLoneStar finds a '*' not touching another '*'. Position from is
// treated as the start of the string.
func findLoneStar(text string, from int) int {
	for i := from; i < len(text); i++ {
		if text[i] != '*' {
			continue
		}
		if i > from && text[i-1] == '*' {
			continue
		}
		if i+1 < len(text) && text[i+1] == '*' {
			continue
		}
		return i
	}
	return -1
}

func wrapStyle(delim string, chunks []document.Chunk) document.Chunk {
	switch delim {
	case "**":
		return document.Bold{Chunks: chunks}
	case "__":
		return document.Underline{Chunks: chunks}
	case "~~":
		return document.Strikethrough{Chunks: chunks}
	default:
		return document.Italic{Chunks: chunks}
	}
}
