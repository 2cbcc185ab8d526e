// Package document holds the canvas document tree shared by the parser, the
// store and the HTTP layer.
package document

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Document is one parsed canvas file
type Document struct {
	Elements map[string]Element `json:"elements"`
	Created  int64              `json:"created"` // unix seconds, set when materialized
}

// New creates an empty document stamped with the current time
func New() *Document {
	return NewAt(time.Now())
}

// NewAt creates an empty document stamped with t
func NewAt(t time.Time) *Document {
	return &Document{
		Elements: make(map[string]Element),
		Created:  t.Unix(),
	}
}

// Keys returns element keys in document order.
// Keys of the form "{index}_{hash}" sort by their numeric index so that a file
// with ten or more elements is written back in its original order; any other
// key sorts after them lexicographically.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.Elements))
	for k := range d.Elements {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keyLess(keys[i], keys[j])
	})
	return keys
}

func keyLess(a, b string) bool {
	ai, aok := keyIndex(a)
	bi, bok := keyIndex(b)
	switch {
	case aok && bok && ai != bi:
		return ai < bi
	case aok != bok:
		return aok
	}
	return a < b
}

func keyIndex(key string) (int, bool) {
	prefix, _, found := strings.Cut(key, "_")
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(prefix)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Clone returns a shallow copy with its own element map.
// Elements themselves are immutable once built and are shared.
func (d *Document) Clone() *Document {
	elements := make(map[string]Element, len(d.Elements))
	for k, v := range d.Elements {
		elements[k] = v
	}
	return &Document{Elements: elements, Created: d.Created}
}

// Element is one positioned canvas object: *Line, *Rect or *TextBox
type Element interface {
	Kind() string
	element()
}

// Line is a straight connector between two canvas points
type Line struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Rect is a filled background rectangle
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Z      int     `json:"z"`
	Color  string  `json:"color"`
}

// TextBox is a rich-text box.
// RawContent is the verbatim body from the file; it is never sent over the
// wire and is what gets written back on save.
type TextBox struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Data       []Block `json:"data"`
	RawContent string  `json:"-"`
}

func (*Line) Kind() string    { return "Line" }
func (*Rect) Kind() string    { return "Rect" }
func (*TextBox) Kind() string { return "TextBox" }

func (*Line) element()    {}
func (*Rect) element()    {}
func (*TextBox) element() {}

// DocumentUpdate is an edit to one element sent by the renderer
type DocumentUpdate struct {
	ID         string  `json:"id" validate:"required"`
	Element    Element `json:"element" validate:"required"`
	DocCreated int64   `json:"doc_created"`
}
