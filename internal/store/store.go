// Package store owns the current document and keeps it in sync with the
// canvas file on disk.
package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/gubarz/dungeon/internal/document"
	"github.com/gubarz/dungeon/internal/metrics"
	"github.com/gubarz/dungeon/internal/parser"
)

// writeGrace covers the write itself; it is shortened to the configured
// grace once the file is in place
const writeGrace = 10 * time.Second

// DefaultGrace is how long file events are ignored after a save
const DefaultGrace = time.Second

// EventKind says why the document changed
type EventKind int

const (
	Reloaded EventKind = iota // parsed again from text
	Updated                   // an element update was applied and saved
)

func (k EventKind) String() string {
	switch k {
	case Reloaded:
		return "reloaded"
	case Updated:
		return "updated"
	}
	return "unknown"
}

// Event is delivered to OnChange listeners
type Event struct {
	Kind EventKind
	Doc  *document.Document
	ID   string // updated element, empty on reload
}

// Store guards the current document. Documents handed out are never
// modified afterwards.
type Store struct {
	fs      afero.Fs
	path    string
	grace   time.Duration
	log     zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu         sync.Mutex
	doc        *document.Document
	blockUntil time.Time
	listeners  []func(Event)
}

// Option configures a Store
type Option func(*Store)

func WithGrace(d time.Duration) Option {
	return func(s *Store) { s.grace = d }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store for the file at path. The document starts empty until
// Load or Reload succeeds.
func New(fs afero.Fs, path string, opts ...Option) *Store {
	s := &Store{
		fs:    fs,
		path:  path,
		grace: DefaultGrace,
		log:   zerolog.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.doc = document.NewAt(s.now())
	return s
}

// Path returns the canvas file location
func (s *Store) Path() string {
	return s.path
}

// OnChange registers fn to run after every successful reload or update.
// Listeners run on the goroutine that made the change, outside the lock.
func (s *Store) OnChange(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Current returns the current document
func (s *Store) Current() *document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Load reads the canvas file and reparses it
func (s *Store) Load() error {
	// The file is read before the lock is taken. An Apply that lands between
	// the read and the reparse is replaced in memory by the older text until
	// the file next changes, although its save is already on disk.
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		s.log.Error().Err(err).Str("path", s.path).Msg("Failed to read canvas file")
		return fmt.Errorf("read %s: %w", s.path, err)
	}
	_, err = s.reload(string(data), "load")
	return err
}

// Reload replaces the document with one parsed from text. On failure the
// previous document stays current.
func (s *Store) Reload(text string) (*document.Document, error) {
	return s.reload(text, "reload")
}

func (s *Store) reload(text, source string) (*document.Document, error) {
	s.mu.Lock()

	start := time.Now()
	doc, err := parser.Parse(text, s.now())
	s.metrics.ObserveParse(source, time.Since(start), err)
	if err != nil {
		s.mu.Unlock()
		s.log.Error().Err(err).Str("path", s.path).Msg("Failed to parse canvas file, keeping previous document")
		return nil, err
	}

	s.doc = doc
	s.metrics.SetElements(len(doc.Elements))
	listeners := s.listeners
	s.mu.Unlock()

	s.log.Info().
		Str("path", s.path).
		Int("elements", len(doc.Elements)).
		Dur("took", time.Since(start)).
		Msg("Loaded canvas")

	notify(listeners, Event{Kind: Reloaded, Doc: doc})
	return doc, nil
}

// Apply merges an update and saves the result. A stale update returns
// document.ErrStale and changes nothing; a failed save keeps the previous
// document.
func (s *Store) Apply(update document.DocumentUpdate) error {
	s.mu.Lock()

	next, err := s.doc.Apply(update)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, document.ErrStale) {
			s.metrics.ObserveUpdate("stale")
			s.log.Info().Str("id", update.ID).Msg("Ignoring stale update")
		} else {
			s.metrics.ObserveUpdate("error")
		}
		return err
	}

	s.blockUntil = s.now().Add(writeGrace)
	err = s.write(parser.RenderDocument(next))
	s.blockUntil = s.now().Add(s.grace)
	s.metrics.ObserveSave(err)
	if err != nil {
		s.mu.Unlock()
		s.metrics.ObserveUpdate("error")
		s.log.Error().Err(err).Str("path", s.path).Msg("Failed to save canvas file")
		return fmt.Errorf("save %s: %w", s.path, err)
	}

	s.doc = next
	s.metrics.SetElements(len(next.Elements))
	s.metrics.ObserveUpdate("ok")
	listeners := s.listeners
	s.mu.Unlock()

	s.log.Debug().Str("id", update.ID).Str("kind", update.Element.Kind()).Msg("Updated element")

	notify(listeners, Event{Kind: Updated, Doc: next, ID: update.ID})
	return nil
}

// SelfWriteActive reports whether a file event seen at t is most likely
// caused by our own save
func (s *Store) SelfWriteActive(t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.Before(s.blockUntil)
}

// write replaces the file through a temp file and a rename so readers never
// see a partial document
func (s *Store) write(text string) error {
	dir, base := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+base+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		s.fs.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(name)
		return err
	}
	if err := s.fs.Rename(name, s.path); err != nil {
		s.fs.Remove(name)
		return err
	}
	return nil
}

func notify(listeners []func(Event), ev Event) {
	for _, fn := range listeners {
		fn(ev)
	}
}
