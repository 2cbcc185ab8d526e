// Package watch reloads the canvas when its file changes on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce collapses the burst of events a single save produces
const DefaultDebounce = 500 * time.Millisecond

// Target is what the watcher keeps up to date
type Target interface {
	Load() error
	SelfWriteActive(t time.Time) bool
}

// Watcher watches the directory holding the file, since editors and our
// own saves replace the file by renaming over it.
type Watcher struct {
	target   Target
	path     string
	name     string
	debounce time.Duration
	log      zerolog.Logger
	fsw      *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer
}

// New starts watching the directory of path
func New(target Target, path string, debounce time.Duration, log zerolog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return newWatcher(target, abs, debounce, log, fsw), nil
}

func newWatcher(target Target, path string, debounce time.Duration, log zerolog.Logger, fsw *fsnotify.Watcher) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		target:   target,
		path:     path,
		name:     filepath.Base(path),
		debounce: debounce,
		log:      log,
		fsw:      fsw,
	}
}

// Run handles file events until ctx is done. The watcher is closed on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()

	w.log.Info().Str("path", w.path).Dur("debounce", w.debounce).Msg("Watching canvas file")

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev, time.Now())

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Error().Err(err).Msg("File watcher error")
		}
	}
}

// handle schedules a reload for events on the watched file, unless they
// arrive while our own save is in progress
func (w *Watcher) handle(ev fsnotify.Event, at time.Time) {
	if filepath.Base(ev.Name) != w.name {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return
	}
	if w.target.SelfWriteActive(at) {
		w.log.Debug().Str("op", ev.Op.String()).Msg("Ignoring event from own save")
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	if err := w.target.Load(); err != nil {
		// the store keeps the previous document
		w.log.Warn().Err(err).Msg("Reload failed")
		return
	}
	w.log.Debug().Str("path", w.path).Msg("Reloaded after file change")
}

func (w *Watcher) stop() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	if w.fsw != nil {
		w.fsw.Close()
	}
}
