package store

import (
	"errors"
	"io/fs"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gubarz/dungeon/internal/document"
	"github.com/gubarz/dungeon/internal/metrics"
	"github.com/gubarz/dungeon/internal/parser"
)

const canvasPath = "/notes/canvas.md"

var t0 = time.Unix(1700000000, 0)

const canvas = "!!!!Text!x:1.0!y:2.0!width:3.0!!!!\n" +
	"hello *world*\n" +
	"!!!!Rect!x:0.0!y:0.0!width:10.0!height:10.0!z:-1!color:red!!!!\n"

func newStore(t *testing.T, content string, opts ...Option) (*Store, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, canvasPath, []byte(content), 0o644))
	opts = append([]Option{WithClock(func() time.Time { return t0 })}, opts...)
	return New(fsys, canvasPath, opts...), fsys
}

// keyOf returns the key of the first element of the given kind
func keyOf(t *testing.T, doc *document.Document, kind string) string {
	t.Helper()
	for _, k := range doc.Keys() {
		if doc.Elements[k].Kind() == kind {
			return k
		}
	}
	t.Fatalf("no %s element", kind)
	return ""
}

func TestLoad(t *testing.T) {
	s, _ := newStore(t, canvas)

	var events []Event
	s.OnChange(func(ev Event) { events = append(events, ev) })

	require.NoError(t, s.Load())

	doc := s.Current()
	assert.Len(t, doc.Elements, 2)
	assert.Equal(t, t0.Unix(), doc.Created)

	require.Len(t, events, 1)
	assert.Equal(t, Reloaded, events[0].Kind)
	assert.Same(t, doc, events[0].Doc)
}

func TestLoadMissingFile(t *testing.T) {
	s := New(afero.NewMemMapFs(), "/nope.md")
	err := s.Load()
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Empty(t, s.Current().Elements)
}

func TestReloadFailureKeepsDocument(t *testing.T) {
	s, _ := newStore(t, canvas)
	require.NoError(t, s.Load())
	before := s.Current()

	called := false
	s.OnChange(func(Event) { called = true })

	_, err := s.Reload("!!!!Line!x1:1!!!!\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, parser.ErrMissingProperty))
	assert.Same(t, before, s.Current())
	assert.False(t, called)
}

func TestApply(t *testing.T) {
	m := metrics.New("test")
	s, fsys := newStore(t, canvas, WithMetrics(m))
	require.NoError(t, s.Load())

	var events []Event
	s.OnChange(func(ev Event) { events = append(events, ev) })

	key := keyOf(t, s.Current(), "Rect")
	err := s.Apply(document.DocumentUpdate{
		ID:         key,
		Element:    &document.Rect{X: 5, Y: 6, Width: 7, Height: 8, Z: 2, Color: "blue"},
		DocCreated: t0.Unix(),
	})
	require.NoError(t, err)

	doc := s.Current()
	assert.Equal(t, &document.Rect{X: 5, Y: 6, Width: 7, Height: 8, Z: 2, Color: "blue"}, doc.Elements[key])

	data, err := afero.ReadFile(fsys, canvasPath)
	require.NoError(t, err)
	assert.Equal(t, parser.RenderDocument(doc), string(data))
	assert.Contains(t, string(data), "!color:blue!")

	require.Len(t, events, 1)
	assert.Equal(t, Updated, events[0].Kind)
	assert.Equal(t, key, events[0].ID)

	// no temp files left behind
	entries, err := afero.ReadDir(fsys, "/notes")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestApplyKeepsRawContent(t *testing.T) {
	s, fsys := newStore(t, canvas)
	require.NoError(t, s.Load())

	key := keyOf(t, s.Current(), "TextBox")
	err := s.Apply(document.DocumentUpdate{
		ID:         key,
		Element:    &document.TextBox{X: 100, Y: 200, Width: 300},
		DocCreated: t0.Unix(),
	})
	require.NoError(t, err)

	data, err := afero.ReadFile(fsys, canvasPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "!!!!Text!x:100.0!y:200.0!width:300.0!"))
	assert.Contains(t, string(data), "\nhello *world*\n")
}

func TestApplyStale(t *testing.T) {
	s, fsys := newStore(t, canvas)
	require.NoError(t, s.Load())
	before := s.Current()

	err := s.Apply(document.DocumentUpdate{
		ID:         keyOf(t, before, "Rect"),
		Element:    &document.Rect{},
		DocCreated: t0.Unix() - 1,
	})
	assert.ErrorIs(t, err, document.ErrStale)
	assert.Same(t, before, s.Current())

	data, err := afero.ReadFile(fsys, canvasPath)
	require.NoError(t, err)
	assert.Equal(t, canvas, string(data))
	assert.False(t, s.SelfWriteActive(t0))
}

func TestApplyWriteFailure(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, canvasPath, []byte(canvas), 0o644))
	s := New(afero.NewReadOnlyFs(mem), canvasPath)
	require.NoError(t, s.Load())
	before := s.Current()

	err := s.Apply(document.DocumentUpdate{
		ID:         keyOf(t, before, "Rect"),
		Element:    &document.Rect{},
		DocCreated: before.Created,
	})
	require.Error(t, err)
	assert.Same(t, before, s.Current())
}

func TestSelfWriteWindow(t *testing.T) {
	s, _ := newStore(t, canvas, WithGrace(time.Second))
	require.NoError(t, s.Load())
	assert.False(t, s.SelfWriteActive(t0))

	err := s.Apply(document.DocumentUpdate{
		ID:         keyOf(t, s.Current(), "Rect"),
		Element:    &document.Rect{},
		DocCreated: t0.Unix(),
	})
	require.NoError(t, err)

	assert.True(t, s.SelfWriteActive(t0))
	assert.True(t, s.SelfWriteActive(t0.Add(999*time.Millisecond)))
	assert.False(t, s.SelfWriteActive(t0.Add(time.Second)))
}

func TestConcurrentAccess(t *testing.T) {
	s, _ := newStore(t, canvas)
	require.NoError(t, s.Load())
	key := keyOf(t, s.Current(), "Rect")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Apply(document.DocumentUpdate{
				ID:         key,
				Element:    &document.Rect{X: float64(i)},
				DocCreated: t0.Unix(),
			}))
		}(i)
		go func() {
			defer wg.Done()
			assert.NotNil(t, s.Current())
		}()
		go func() {
			defer wg.Done()
			_, err := s.Reload(canvas)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, s.Current().Elements, 2)
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "reloaded", Reloaded.String())
	assert.Equal(t, "updated", Updated.String())
	assert.Equal(t, "unknown", EventKind(9).String())
}
