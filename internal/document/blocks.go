package document

// Block is one structural unit of rich text inside a text box
type Block interface {
	Kind() string
	block()
}

type Paragraph struct {
	Chunks []Chunk `json:"chunks"`
}

type Header struct {
	Level  int     `json:"level"`
	Chunks []Chunk `json:"chunks"`
}

type CodeBlock struct {
	Text string `json:"text"`
}

// MathBlock holds display math already rendered to MathML
type MathBlock struct {
	Text string `json:"text"`
}

type UnorderedList struct {
	Items []Block `json:"items"`
}

type OrderedList struct {
	Items []Block `json:"items"`
}

type BlockQuote struct {
	Inner []Block `json:"inner"`
}

type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

// VerticalSpace is one extra blank line of separation
type VerticalSpace struct{}

type HorizontalRule struct{}

func (Paragraph) Kind() string      { return "Paragraph" }
func (Header) Kind() string         { return "Header" }
func (CodeBlock) Kind() string      { return "CodeBlock" }
func (MathBlock) Kind() string      { return "MathBlock" }
func (UnorderedList) Kind() string  { return "UnorderedList" }
func (OrderedList) Kind() string    { return "OrderedList" }
func (BlockQuote) Kind() string     { return "BlockQuote" }
func (Image) Kind() string          { return "Image" }
func (VerticalSpace) Kind() string  { return "VerticalSpace" }
func (HorizontalRule) Kind() string { return "HorizontalRule" }

func (Paragraph) block()      {}
func (Header) block()         {}
func (CodeBlock) block()      {}
func (MathBlock) block()      {}
func (UnorderedList) block()  {}
func (OrderedList) block()    {}
func (BlockQuote) block()     {}
func (Image) block()          {}
func (VerticalSpace) block()  {}
func (HorizontalRule) block() {}

// Chunk is one inline run of styled text
type Chunk interface {
	Kind() string
	chunk()
}

// Text is a plain run
type Text string

type Code struct {
	Text string `json:"text"`
}

// Math holds inline math already rendered to MathML
type Math struct {
	Text string `json:"text"`
}

type Link struct {
	Title []Chunk `json:"title"`
	URL   string  `json:"url"`
}

type Bold struct {
	Chunks []Chunk `json:"chunks"`
}

type Italic struct {
	Chunks []Chunk `json:"chunks"`
}

type Underline struct {
	Chunks []Chunk `json:"chunks"`
}

type Strikethrough struct {
	Chunks []Chunk `json:"chunks"`
}

// NewLine is an explicit <br>
type NewLine struct{}

func (Text) Kind() string          { return "Text" }
func (Code) Kind() string          { return "Code" }
func (Math) Kind() string          { return "Math" }
func (Link) Kind() string          { return "Link" }
func (Bold) Kind() string          { return "Bold" }
func (Italic) Kind() string        { return "Italic" }
func (Underline) Kind() string     { return "Underline" }
func (Strikethrough) Kind() string { return "Strikethrough" }
func (NewLine) Kind() string       { return "NewLine" }

func (Text) chunk()          {}
func (Code) chunk()          {}
func (Math) chunk()          {}
func (Link) chunk()          {}
func (Bold) chunk()          {}
func (Italic) chunk()        {}
func (Underline) chunk()     {}
func (Strikethrough) chunk() {}
func (NewLine) chunk()       {}

// PlainText flattens chunks to their visible text, dropping markup.
// Math chunks contribute nothing since they hold rendered markup.
func PlainText(chunks []Chunk) string {
	var out []byte
	for _, c := range chunks {
		switch c := c.(type) {
		case Text:
			out = append(out, c...)
		case Code:
			out = append(out, c.Text...)
		case Link:
			out = append(out, PlainText(c.Title)...)
		case Bold:
			out = append(out, PlainText(c.Chunks)...)
		case Italic:
			out = append(out, PlainText(c.Chunks)...)
		case Underline:
			out = append(out, PlainText(c.Chunks)...)
		case Strikethrough:
			out = append(out, PlainText(c.Chunks)...)
		case NewLine:
			out = append(out, '\n')
		}
	}
	return string(out)
}
