package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		expected []string
	}{
		{
			name:     "numeric prefix beats lexicographic order",
			keys:     []string{"10_a", "2_b", "1_c"},
			expected: []string{"1_c", "2_b", "10_a"},
		},
		{
			name:     "same index falls back to the whole key",
			keys:     []string{"3_ff", "3_0a"},
			expected: []string{"3_0a", "3_ff"},
		},
		{
			name:     "foreign keys sort last",
			keys:     []string{"zzz", "0_x", "new", "-1_y"},
			expected: []string{"0_x", "-1_y", "new", "zzz"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := New()
			for _, k := range tt.keys {
				doc.Elements[k] = &Line{}
			}
			assert.Equal(t, tt.expected, doc.Keys())
		})
	}
}

func TestNewAt(t *testing.T) {
	doc := NewAt(time.Unix(42, 999))
	assert.Equal(t, int64(42), doc.Created)
	assert.Empty(t, doc.Elements)
}

func TestClone(t *testing.T) {
	doc := NewAt(time.Unix(1, 0))
	doc.Elements["0_a"] = &Rect{Color: "red"}

	clone := doc.Clone()
	clone.Elements["1_b"] = &Line{}

	assert.Len(t, doc.Elements, 1)
	assert.Len(t, clone.Elements, 2)
	assert.Same(t, doc.Elements["0_a"], clone.Elements["0_a"])
	assert.Equal(t, doc.Created, clone.Created)
}

func TestPlainText(t *testing.T) {
	chunks := []Chunk{
		Text("a "),
		Bold{Chunks: []Chunk{Text("b")}},
		NewLine{},
		Link{Title: []Chunk{Italic{Chunks: []Chunk{Text("l")}}}, URL: "u"},
		Code{Text: "c"},
		Math{Text: "<math/>"},
	}
	assert.Equal(t, "a b\nlc", PlainText(chunks))
}
