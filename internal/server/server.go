// Package server exposes the canvas document over HTTP: the document itself,
// element updates from the renderer and change notifications.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/gubarz/dungeon/internal/document"
	"github.com/gubarz/dungeon/internal/metrics"
	"github.com/gubarz/dungeon/internal/notify"
)

const (
	maxUpdateBytes   = 4 << 20
	defaultKeepAlive = 15 * time.Second
	writeWait        = 10 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// DocumentStore is the part of the store the server needs
type DocumentStore interface {
	Current() *document.Document
	Apply(update document.DocumentUpdate) error
}

// Options configures a Server
type Options struct {
	Store   DocumentStore
	Hub     *notify.Hub
	Metrics *metrics.Metrics
	Logger  zerolog.Logger

	// Fs and Front locate the renderer's static files; nothing is served
	// when Front is empty
	Fs    afero.Fs
	Front string

	CORSOrigins []string
	KeepAlive   time.Duration
}

type Server struct {
	store       DocumentStore
	hub         *notify.Hub
	metrics     *metrics.Metrics
	log         zerolog.Logger
	static      http.Handler
	corsOrigins []string
	keepAlive   time.Duration
	upgrader    websocket.Upgrader
}

func New(opts Options) *Server {
	s := &Server{
		store:       opts.Store,
		hub:         opts.Hub,
		metrics:     opts.Metrics,
		log:         opts.Logger,
		corsOrigins: opts.CORSOrigins,
		keepAlive:   opts.KeepAlive,
	}
	if s.keepAlive <= 0 {
		s.keepAlive = defaultKeepAlive
	}
	if opts.Front != "" {
		fs := opts.Fs
		if fs == nil {
			fs = afero.NewOsFs()
		}
		s.static = http.FileServer(afero.NewHttpFs(fs).Dir(opts.Front))
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.log))
	if s.metrics != nil {
		r.Use(instrument(s.metrics))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/fetch", s.handleFetch)
	r.Post("/update/{id}", s.handleUpdate)
	r.Get("/file_change", s.handleFileChange)
	r.Get("/ws", s.handleWebSocket)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	if s.static != nil {
		r.Handle("/*", s.static)
	}

	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Serving canvas")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// checkOrigin accepts same-host connections and any configured CORS origin
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host {
		return true
	}
	for _, allowed := range s.corsOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// writeJSON encodes v before writing any headers, so an encoding failure
// still reaches the client as a 500
func writeJSON(w http.ResponseWriter, status int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"failed to encode response"}` + "\n"))
		return fmt.Errorf("encode response: %w", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(append(data, '\n'))
	return err
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
