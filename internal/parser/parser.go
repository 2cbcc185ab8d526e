// Package parser turns canvas files into document trees and back.
package parser

import (
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/gubarz/dungeon/internal/document"
)

// Parse builds a document from file text. created stamps the result and is
// what later updates are checked against.
func Parse(text string, created time.Time) (*document.Document, error) {
	lines := splitLines(text)
	doc := document.NewAt(created)

	for i, p := range segment(lines) {
		el, err := p.build(lines)
		if err != nil {
			return nil, &ParseError{Element: i, Line: p.header + 1, Err: err}
		}
		doc.Elements[p.key(i)] = el
	}

	return doc, nil
}

// ParseFile reads and parses a single canvas file
func ParseFile(fs afero.Fs, path string) (*document.Document, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(string(data), time.Now())
}

func (p precursor) build(lines []string) (document.Element, error) {
	r := &propertyReader{props: p.props}
	var el document.Element

	switch p.kind {
	case "text":
		body := p.body(lines)
		box := &document.TextBox{
			X:          r.floatProp("x", -350),
			Y:          r.floatProp("y", 30),
			Width:      r.floatProp("width", 700),
			RawContent: body,
		}
		if r.err != nil {
			return nil, r.err
		}
		blocks, err := parseBlocks(body)
		if err != nil {
			return nil, err
		}
		box.Data = blocks
		el = box

	case "rect", "rectangle":
		el = &document.Rect{
			X:      r.floatProp("x", -400),
			Y:      r.floatProp("y", 0),
			Width:  r.floatProp("width", 800),
			Height: r.floatProp("height", 600),
			Z:      r.intProp("z", -1),
			Color:  r.stringProp("color", "#00827c"),
		}

	case "line":
		el = &document.Line{
			X1: r.requiredFloat("x1"),
			Y1: r.requiredFloat("y1"),
			X2: r.requiredFloat("x2"),
			Y2: r.requiredFloat("y2"),
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownElementType, p.kind)
	}

	if r.err != nil {
		return nil, r.err
	}
	return el, nil
}
