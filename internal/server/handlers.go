package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/gubarz/dungeon/internal/document"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	doc := s.store.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"elements": len(doc.Elements),
		"created":  doc.Created,
	})
}

// handleFetch sends the whole current document
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if err := writeJSON(w, http.StatusOK, s.store.Current()); err != nil {
		s.log.Error().Err(err).Msg("Failed to send document")
	}
}

// handleUpdate applies one element update. A stale update is answered with
// 304 so the renderer knows to fetch again.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var update document.DocumentUpdate
	r.Body = http.MaxBytesReader(w, r.Body, maxUpdateBytes)
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid update: "+err.Error())
		return
	}
	// the path names the element, whatever the body says
	update.ID = id

	if err := validateStruct(update); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := s.store.Apply(update)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, document.ErrStale):
		w.WriteHeader(http.StatusNotModified)
	default:
		s.log.Error().Err(err).Str("id", id).Msg("Update failed")
		writeError(w, http.StatusInternalServerError, "failed to save update")
	}
}

// handleFileChange streams a server-sent event every time the file is
// reloaded from disk
func (s *Server) handleFileChange(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	_, ch, cancel := s.hub.Subscribe()
	defer cancel()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprint(w, "data:\n\n")
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ":\n\n")
			flusher.Flush()
		}
	}
}

// handleWebSocket pushes change messages as JSON over a websocket
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Failed to upgrade connection")
		return
	}
	defer conn.Close()

	id, ch, cancel := s.hub.Subscribe()
	defer cancel()
	log := s.log.With().Str("subscriber", id).Logger()

	// clients never send anything meaningful; reading only notices the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("Websocket write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
