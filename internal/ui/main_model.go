package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gubarz/dungeon/internal/document"
)

// ============================================================================
// String Builder Pool - reduces GC pressure from rendering
// ============================================================================

var builderPool = sync.Pool{
	New: func() interface{} {
		return &strings.Builder{}
	},
}

func getBuilder() *strings.Builder {
	b := builderPool.Get().(*strings.Builder)
	b.Reset()
	return b
}

func putBuilder(b *strings.Builder) {
	if b.Cap() < 64*1024 {
		builderPool.Put(b)
	}
}

// ============================================================================
// Element Item
// ============================================================================

// elementItem wraps an element with display metadata
type elementItem struct {
	key      string
	element  document.Element
	kind     string
	position string
	summary  string
	search   string // lowercased text matched by the filter
}

func newElementItem(key string, el document.Element) elementItem {
	item := elementItem{key: key, element: el, kind: el.Kind()}

	switch el := el.(type) {
	case *document.TextBox:
		item.position = fmt.Sprintf("%s,%s", num(el.X), num(el.Y))
		item.summary = textSummary(el.Data)
	case *document.Rect:
		item.position = fmt.Sprintf("%s,%s", num(el.X), num(el.Y))
		item.summary = fmt.Sprintf("%s×%s %s z%d", num(el.Width), num(el.Height), el.Color, el.Z)
	case *document.Line:
		item.position = fmt.Sprintf("%s,%s", num(el.X1), num(el.Y1))
		item.summary = fmt.Sprintf("to %s,%s", num(el.X2), num(el.Y2))
	}

	item.search = strings.ToLower(item.key + " " + item.kind + " " + item.summary)
	if tb, ok := el.(*document.TextBox); ok {
		item.search += " " + strings.ToLower(tb.RawContent)
	}
	return item
}

// textSummary is the first line of visible text in a text box
func textSummary(blocks []document.Block) string {
	for _, b := range blocks {
		var text string
		switch b := b.(type) {
		case document.Paragraph:
			text = document.PlainText(b.Chunks)
		case document.Header:
			text = document.PlainText(b.Chunks)
		case document.CodeBlock:
			text = b.Text
		case document.UnorderedList:
			text = textSummary(b.Items)
		case document.OrderedList:
			text = textSummary(b.Items)
		case document.BlockQuote:
			text = textSummary(b.Inner)
		case document.Image:
			text = b.Alt
		}
		if text = strings.TrimSpace(firstLine(text)); text != "" {
			return text
		}
	}
	return ""
}

func itemsFor(doc *document.Document) []elementItem {
	keys := doc.Keys()
	items := make([]elementItem, len(keys))
	for i, k := range keys {
		items[i] = newElementItem(k, doc.Elements[k])
	}
	return items
}

// ============================================================================
// Messages
// ============================================================================

// filterMsg triggers filtering after debounce
type filterMsg struct{}

func debounceFilter() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg {
		return filterMsg{}
	})
}

// documentMsg replaces the browsed document, sent when the file is reloaded
type documentMsg struct {
	doc *document.Document
}

// ============================================================================
// Main Model
// ============================================================================

// mainModel is the Bubble Tea model for browsing the elements of a canvas
type mainModel struct {
	width     int
	height    int
	textInput textinput.Model
	quitting  bool

	path     string
	created  int64
	items    []elementItem
	filtered []elementItem
	cursor   int
	offset   int // viewport scroll offset
	selected *elementItem
}

func newMainModel(path string, doc *document.Document) mainModel {
	ti := textinput.New()
	ti.Placeholder = "Type to filter elements..."
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 50

	items := itemsFor(doc)
	return mainModel{
		textInput: ti,
		path:      path,
		created:   doc.Created,
		items:     items,
		filtered:  items,
	}
}

// Init implements tea.Model
func (m mainModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model
func (m mainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textInput.Width = msg.Width - 4
	case tea.KeyMsg:
		if cmd := m.handleKey(msg); cmd != nil {
			return m, cmd
		}
	case filterMsg:
		m.filterElements()
		return m, nil
	case documentMsg:
		m.replaceDocument(msg.doc)
		return m, nil
	}

	prevQuery := m.textInput.Value()
	var tiCmd tea.Cmd
	m.textInput, tiCmd = m.textInput.Update(msg)
	cmds = append(cmds, tiCmd)

	if m.textInput.Value() != prevQuery {
		cmds = append(cmds, debounceFilter())
	}

	return m, tea.Batch(cmds...)
}

// handleKey processes navigation keys; other keys go to the filter input
func (m *mainModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return tea.Quit
	case "enter":
		if m.cursor < len(m.filtered) {
			item := m.filtered[m.cursor]
			m.selected = &item
			return tea.Quit
		}
	case "up", "ctrl+p":
		m.moveCursor(-1)
	case "down", "ctrl+n":
		m.moveCursor(1)
	case "pgup":
		m.moveCursor(-10)
	case "pgdown":
		m.moveCursor(10)
	case "home", "ctrl+a":
		m.cursor = 0
		m.adjustOffset()
	case "end", "ctrl+e":
		m.cursor = max(0, len(m.filtered)-1)
		m.adjustOffset()
	}
	return nil
}

func (m *mainModel) moveCursor(delta int) {
	m.cursor += delta
	m.cursor = clamp(m.cursor, 0, max(0, len(m.filtered)-1))
	m.adjustOffset()
}

// adjustOffset ensures cursor is visible within viewport
func (m *mainModel) adjustOffset() {
	viewHeight := maxInt(m.height-14, 3)
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+viewHeight {
		m.offset = m.cursor - viewHeight + 1
	}
	m.offset = clamp(m.offset, 0, max(0, len(m.filtered)-viewHeight))
}

// filterElements keeps the items containing every word of the query
func (m *mainModel) filterElements() {
	query := strings.TrimSpace(m.textInput.Value())

	if query == "" {
		m.filtered = m.items
	} else {
		words := strings.Fields(strings.ToLower(query))
		m.filtered = make([]elementItem, 0, len(m.items))
		for _, item := range m.items {
			if matchesAllWords(item.search, words) {
				m.filtered = append(m.filtered, item)
			}
		}
	}

	m.cursor = clamp(m.cursor, 0, max(0, len(m.filtered)-1))
	m.adjustOffset()
}

// replaceDocument swaps in a reloaded document, keeping the cursor on the
// same element when it still exists
func (m *mainModel) replaceDocument(doc *document.Document) {
	var current string
	if m.cursor < len(m.filtered) {
		current = m.filtered[m.cursor].key
	}

	m.items = itemsFor(doc)
	m.created = doc.Created
	m.filterElements()

	for i, item := range m.filtered {
		if item.key == current {
			m.cursor = i
			break
		}
	}
	m.adjustOffset()
}

// View implements tea.Model
func (m mainModel) View() string {
	if m.quitting {
		return ""
	}

	width := maxInt(m.width, 80)
	height := maxInt(m.height, 24)

	preview := m.renderPreview(width)
	previewLines := countLines(preview)

	inputLines := 3 // divider + info + input
	listHeight := maxInt(height-previewLines-inputLines, 3)
	list := m.renderList(listHeight, width)
	listLines := countLines(list)

	padding := maxInt(height-previewLines-listLines-inputLines, 0)

	b := getBuilder()
	defer putBuilder(b)
	b.WriteString(preview)
	b.WriteString(list)
	b.WriteString(strings.Repeat("\n", padding))
	b.WriteString(m.renderInput(width))

	return b.String()
}

// renderPreview renders the selected element at a fixed height
func (m mainModel) renderPreview(width int) string {
	const maxLines = 10

	b := getBuilder()
	defer putBuilder(b)
	lines := 0

	if m.cursor < len(m.filtered) {
		item := m.filtered[m.cursor]
		b.WriteString(styles.Kind.Render(item.kind))
		b.WriteString(" ")
		b.WriteString(styles.Position.Render("@ " + item.position))
		b.WriteString(" ")
		b.WriteString(styles.Key.Render(item.key))
		b.WriteString("\n\n")
		lines += 2

		body := truncateLines(renderElement(item.element), maxLines-lines)
		b.WriteString(body)
		b.WriteString("\n")
		lines += countLines(body)
	}

	for lines < maxLines {
		b.WriteString("\n")
		lines++
	}

	b.WriteString(styles.Divider.Render(strings.Repeat("─", width)))
	b.WriteString("\n")

	return b.String()
}

// renderList renders the scrollable list of elements
func (m *mainModel) renderList(maxHeight, width int) string {
	if len(m.filtered) == 0 {
		return ""
	}

	start, end := scrollWindow(m.cursor, len(m.filtered), maxHeight, &m.offset)

	b := getBuilder()
	defer putBuilder(b)
	for i := start; i < end; i++ {
		b.WriteString(m.renderListItem(m.filtered[i], i == m.cursor, width))
		b.WriteString("\n")
	}

	return b.String()
}

const (
	kindWidth     = 8
	positionWidth = 16
)

func (m mainModel) renderListItem(item elementItem, selected bool, width int) string {
	kStyle, pStyle, sStyle := styles.Kind, styles.Position, styles.Summary
	gap := "  "
	if selected {
		kStyle = styles.WithSelection(kStyle)
		pStyle = styles.WithSelection(pStyle)
		sStyle = styles.WithSelection(sStyle)
		gap = styles.Selected.Render(gap)
	}

	kind := fmt.Sprintf("%-*s", kindWidth, truncateString(item.kind, kindWidth))
	pos := fmt.Sprintf("%-*s", positionWidth, truncateString(item.position, positionWidth))
	summary := truncateString(item.summary, maxInt(width-kindWidth-positionWidth-8, 10))

	line := kStyle.Render(kind) + gap + pStyle.Render(pos) + gap + sStyle.Render(summary)
	if selected {
		return styles.Cursor.Render("▶ ") + line
	}
	return "  " + line
}

func (m mainModel) renderInput(width int) string {
	b := getBuilder()
	defer putBuilder(b)
	b.WriteString(styles.Divider.Render(strings.Repeat("─", width)))
	b.WriteString("\n")
	b.WriteString(styles.Dim.Render(fmt.Sprintf("  %d/%d", len(m.filtered), len(m.items))))
	b.WriteString(" • ")
	b.WriteString(styles.Dim.Render(m.path))
	b.WriteString(" • ")
	b.WriteString(styles.Dim.Render("Enter print key"))
	b.WriteString(" • ")
	b.WriteString(styles.Dim.Render("ESC exit"))
	b.WriteString("\n")
	b.WriteString(m.textInput.View())
	return b.String()
}

// ============================================================================
// Helpers
// ============================================================================

// clamp restricts v to the range [minV, maxV]
func clamp(v, minV, maxV int) int {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// countLines counts the number of lines in a string, ignoring a trailing
// newline
func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(s, "\n"), "\n") + 1
}

// scrollWindow calculates the visible range for a scrollable list
func scrollWindow(cursor, total, height int, offset *int) (start, end int) {
	if cursor < *offset {
		*offset = cursor
	}
	if cursor >= *offset+height {
		*offset = cursor - height + 1
	}
	*offset = clamp(*offset, 0, max(0, total-height))

	start = *offset
	end = min(start+height, total)
	return
}

// truncateString truncates a string to maxLen runes with an ellipsis
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 1 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-1]) + "…"
}

// truncateLines keeps at most maxLines lines
func truncateLines(text string, maxLines int) string {
	lines := strings.Split(text, "\n")
	if maxLines > 0 && len(lines) > maxLines {
		return strings.Join(lines[:maxLines-1], "\n") + "\n" + styles.Dim.Render("…")
	}
	return text
}

// matchesAllWords returns true if text contains all words
func matchesAllWords(text string, words []string) bool {
	for _, word := range words {
		if !strings.Contains(text, word) {
			return false
		}
	}
	return true
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
