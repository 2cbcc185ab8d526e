package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Variants are externally tagged on the wire: {"TextBox":{...}} for records,
// {"Text":"..."} for newtypes and a bare string ("NewLine") for unit variants.

// ErrUnknownVariant is returned when a tagged value names no known variant
var ErrUnknownVariant = errors.New("unknown variant")

func tagged(tag string, v any) ([]byte, error) {
	inner, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{tag: inner})
}

func nonNilBlocks(b []Block) []Block {
	if b == nil {
		return []Block{}
	}
	return b
}

func nonNilChunks(c []Chunk) []Chunk {
	if c == nil {
		return []Chunk{}
	}
	return c
}

func (l Line) MarshalJSON() ([]byte, error) {
	type plain Line
	return tagged("Line", plain(l))
}

func (r Rect) MarshalJSON() ([]byte, error) {
	type plain Rect
	return tagged("Rect", plain(r))
}

func (t TextBox) MarshalJSON() ([]byte, error) {
	type plain TextBox
	t.Data = nonNilBlocks(t.Data)
	return tagged("TextBox", plain(t))
}

func (p Paragraph) MarshalJSON() ([]byte, error) {
	type plain Paragraph
	p.Chunks = nonNilChunks(p.Chunks)
	return tagged("Paragraph", plain(p))
}

func (h Header) MarshalJSON() ([]byte, error) {
	type plain Header
	h.Chunks = nonNilChunks(h.Chunks)
	return tagged("Header", plain(h))
}

func (c CodeBlock) MarshalJSON() ([]byte, error) {
	type plain CodeBlock
	return tagged("CodeBlock", plain(c))
}

func (m MathBlock) MarshalJSON() ([]byte, error) {
	type plain MathBlock
	return tagged("MathBlock", plain(m))
}

func (l UnorderedList) MarshalJSON() ([]byte, error) {
	type plain UnorderedList
	l.Items = nonNilBlocks(l.Items)
	return tagged("UnorderedList", plain(l))
}

func (l OrderedList) MarshalJSON() ([]byte, error) {
	type plain OrderedList
	l.Items = nonNilBlocks(l.Items)
	return tagged("OrderedList", plain(l))
}

func (q BlockQuote) MarshalJSON() ([]byte, error) {
	type plain BlockQuote
	q.Inner = nonNilBlocks(q.Inner)
	return tagged("BlockQuote", plain(q))
}

func (i Image) MarshalJSON() ([]byte, error) {
	type plain Image
	return tagged("Image", plain(i))
}

func (VerticalSpace) MarshalJSON() ([]byte, error)  { return []byte(`"VerticalSpace"`), nil }
func (HorizontalRule) MarshalJSON() ([]byte, error) { return []byte(`"HorizontalRule"`), nil }

func (t Text) MarshalJSON() ([]byte, error) { return tagged("Text", string(t)) }

func (c Code) MarshalJSON() ([]byte, error) {
	type plain Code
	return tagged("Code", plain(c))
}

func (m Math) MarshalJSON() ([]byte, error) {
	type plain Math
	return tagged("Math", plain(m))
}

func (l Link) MarshalJSON() ([]byte, error) {
	type plain Link
	l.Title = nonNilChunks(l.Title)
	return tagged("Link", plain(l))
}

func (b Bold) MarshalJSON() ([]byte, error) {
	return tagged("Bold", struct {
		Chunks []Chunk `json:"chunks"`
	}{nonNilChunks(b.Chunks)})
}

func (i Italic) MarshalJSON() ([]byte, error) {
	return tagged("Italic", struct {
		Chunks []Chunk `json:"chunks"`
	}{nonNilChunks(i.Chunks)})
}

func (u Underline) MarshalJSON() ([]byte, error) {
	return tagged("Underline", struct {
		Chunks []Chunk `json:"chunks"`
	}{nonNilChunks(u.Chunks)})
}

func (s Strikethrough) MarshalJSON() ([]byte, error) {
	return tagged("Strikethrough", struct {
		Chunks []Chunk `json:"chunks"`
	}{nonNilChunks(s.Chunks)})
}

func (NewLine) MarshalJSON() ([]byte, error) { return []byte(`"NewLine"`), nil }

// splitTag unpacks an externally tagged value into its tag and payload.
// Unit variants come back with a nil payload.
func splitTag(data []byte) (string, json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return "", nil, err
		}
		return tag, nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", nil, err
	}
	if len(obj) != 1 {
		return "", nil, fmt.Errorf("tagged value must have exactly one key, got %d", len(obj))
	}
	for tag, inner := range obj {
		return tag, inner, nil
	}
	return "", nil, nil
}

// UnmarshalElement decodes one tagged element
func UnmarshalElement(data []byte) (Element, error) {
	tag, inner, err := splitTag(data)
	if err != nil {
		return nil, err
	}
	if inner == nil {
		return nil, fmt.Errorf("element %q: missing payload", tag)
	}
	switch tag {
	case "Line":
		var l Line
		type plain Line
		if err := json.Unmarshal(inner, (*plain)(&l)); err != nil {
			return nil, fmt.Errorf("line: %w", err)
		}
		return &l, nil
	case "Rect":
		var r Rect
		type plain Rect
		if err := json.Unmarshal(inner, (*plain)(&r)); err != nil {
			return nil, fmt.Errorf("rect: %w", err)
		}
		return &r, nil
	case "TextBox":
		var raw struct {
			X     float64           `json:"x"`
			Y     float64           `json:"y"`
			Width float64           `json:"width"`
			Data  []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(inner, &raw); err != nil {
			return nil, fmt.Errorf("text box: %w", err)
		}
		data, err := unmarshalBlocks(raw.Data)
		if err != nil {
			return nil, fmt.Errorf("text box: %w", err)
		}
		return &TextBox{X: raw.X, Y: raw.Y, Width: raw.Width, Data: data}, nil
	}
	return nil, fmt.Errorf("element %q: %w", tag, ErrUnknownVariant)
}

func unmarshalBlocks(raws []json.RawMessage) ([]Block, error) {
	blocks := make([]Block, 0, len(raws))
	for _, raw := range raws {
		b, err := unmarshalBlock(raw)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func unmarshalBlock(data []byte) (Block, error) {
	tag, inner, err := splitTag(data)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "VerticalSpace":
		return VerticalSpace{}, nil
	case "HorizontalRule":
		return HorizontalRule{}, nil
	}
	if inner == nil {
		return nil, fmt.Errorf("block %q: missing payload", tag)
	}

	var raw struct {
		Chunks []json.RawMessage `json:"chunks"`
		Level  int               `json:"level"`
		Text   string            `json:"text"`
		Items  []json.RawMessage `json:"items"`
		Inner  []json.RawMessage `json:"inner"`
		URL    string            `json:"url"`
		Alt    string            `json:"alt"`
	}
	if err := json.Unmarshal(inner, &raw); err != nil {
		return nil, fmt.Errorf("block %q: %w", tag, err)
	}

	switch tag {
	case "Paragraph":
		chunks, err := unmarshalChunks(raw.Chunks)
		return Paragraph{Chunks: chunks}, err
	case "Header":
		chunks, err := unmarshalChunks(raw.Chunks)
		return Header{Level: raw.Level, Chunks: chunks}, err
	case "CodeBlock":
		return CodeBlock{Text: raw.Text}, nil
	case "MathBlock":
		return MathBlock{Text: raw.Text}, nil
	case "UnorderedList":
		items, err := unmarshalBlocks(raw.Items)
		return UnorderedList{Items: items}, err
	case "OrderedList":
		items, err := unmarshalBlocks(raw.Items)
		return OrderedList{Items: items}, err
	case "BlockQuote":
		inner, err := unmarshalBlocks(raw.Inner)
		return BlockQuote{Inner: inner}, err
	case "Image":
		return Image{URL: raw.URL, Alt: raw.Alt}, nil
	}
	return nil, fmt.Errorf("block %q: %w", tag, ErrUnknownVariant)
}

func unmarshalChunks(raws []json.RawMessage) ([]Chunk, error) {
	chunks := make([]Chunk, 0, len(raws))
	for _, raw := range raws {
		c, err := unmarshalChunk(raw)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func unmarshalChunk(data []byte) (Chunk, error) {
	tag, inner, err := splitTag(data)
	if err != nil {
		return nil, err
	}
	if tag == "NewLine" {
		return NewLine{}, nil
	}
	if inner == nil {
		return nil, fmt.Errorf("chunk %q: missing payload", tag)
	}
	if tag == "Text" {
		var s string
		if err := json.Unmarshal(inner, &s); err != nil {
			return nil, fmt.Errorf("chunk Text: %w", err)
		}
		return Text(s), nil
	}

	var raw struct {
		Text   string            `json:"text"`
		URL    string            `json:"url"`
		Title  []json.RawMessage `json:"title"`
		Chunks []json.RawMessage `json:"chunks"`
	}
	if err := json.Unmarshal(inner, &raw); err != nil {
		return nil, fmt.Errorf("chunk %q: %w", tag, err)
	}

	switch tag {
	case "Code":
		return Code{Text: raw.Text}, nil
	case "Math":
		return Math{Text: raw.Text}, nil
	case "Link":
		title, err := unmarshalChunks(raw.Title)
		return Link{Title: title, URL: raw.URL}, err
	}

	children, err := unmarshalChunks(raw.Chunks)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "Bold":
		return Bold{Chunks: children}, nil
	case "Italic":
		return Italic{Chunks: children}, nil
	case "Underline":
		return Underline{Chunks: children}, nil
	case "Strikethrough":
		return Strikethrough{Chunks: children}, nil
	}
	return nil, fmt.Errorf("chunk %q: %w", tag, ErrUnknownVariant)
}

// UnmarshalJSON decodes a document as served by /fetch
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw struct {
		Elements map[string]json.RawMessage `json:"elements"`
		Created  int64                      `json:"created"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Created = raw.Created
	d.Elements = make(map[string]Element, len(raw.Elements))
	for key, el := range raw.Elements {
		e, err := UnmarshalElement(el)
		if err != nil {
			return fmt.Errorf("element %s: %w", key, err)
		}
		d.Elements[key] = e
	}
	return nil
}

// UnmarshalJSON decodes an update posted by the renderer
func (u *DocumentUpdate) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         string          `json:"id"`
		Element    json.RawMessage `json:"element"`
		DocCreated int64           `json:"doc_created"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u.ID = raw.ID
	u.DocCreated = raw.DocCreated
	u.Element = nil
	if len(raw.Element) == 0 || string(raw.Element) == "null" {
		return nil
	}
	el, err := UnmarshalElement(raw.Element)
	if err != nil {
		return err
	}
	u.Element = el
	return nil
}
