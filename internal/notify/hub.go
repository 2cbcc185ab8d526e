// Package notify fans document change signals out to connected clients.
package notify

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gubarz/dungeon/internal/metrics"
)

// Message tells a client the canvas changed on disk and should be fetched
// again
type Message struct {
	Type    string `json:"type"`
	Created int64  `json:"created"`
}

// TypeFileChange is the only message type sent today
const TypeFileChange = "file_change"

// Hub tracks subscribers. Each subscriber has a one-slot buffer: a client
// that has not caught up yet only needs to know that something changed, so
// further messages are dropped until it reads.
type Hub struct {
	mu      sync.Mutex
	subs    map[string]chan Message
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewHub(log zerolog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		subs:    make(map[string]chan Message),
		log:     log,
		metrics: m,
	}
}

// Subscribe registers a new subscriber. cancel must be called when the
// subscriber goes away; it closes the channel.
func (h *Hub) Subscribe() (id string, ch <-chan Message, cancel func()) {
	id = uuid.New().String()
	c := make(chan Message, 1)

	h.mu.Lock()
	h.subs[id] = c
	n := len(h.subs)
	h.mu.Unlock()

	h.metrics.SetSubscribers(n)
	h.log.Debug().Str("subscriber", id).Int("subscribers", n).Msg("Subscriber connected")

	var once sync.Once
	cancel = func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			n := len(h.subs)
			h.mu.Unlock()
			close(c)

			h.metrics.SetSubscribers(n)
			h.log.Debug().Str("subscriber", id).Int("subscribers", n).Msg("Subscriber disconnected")
		})
	}
	return id, c, cancel
}

// Publish delivers msg to every subscriber without blocking
func (h *Hub) Publish(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.subs {
		select {
		case c <- msg:
		default:
			h.log.Debug().Str("subscriber", id).Msg("Subscriber busy, change already pending")
		}
	}
}

// Len returns the number of subscribers
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
