// Package realtime pushes events to browsers over server-sent events.
//
// Producers publish through Postgres (lp_publish -> pg_notify on
// lp_events) so every API process receives every event; each process then
// delivers it to the clients of the listed recipients it holds.
package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lapublica/platform/internal/metrics"
	"github.com/lapublica/platform/internal/pkg/logger"
	"github.com/lapublica/platform/internal/service/outbound"
)

// Channel is the Postgres NOTIFY channel carrying events.
const Channel = "lp_events"

const (
	defaultHeartbeat = 25 * time.Second
	clientBuffer     = 32
)

type client struct {
	userID string
	ch     chan []byte
}

// Hub tracks connected clients per user.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]map[*client]struct{}
	heartbeat time.Duration
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*client]struct{}), heartbeat: defaultHeartbeat}
}

func (h *Hub) add(userID string) *client {
	c := &client{userID: userID, ch: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
	metrics.SSEClients.Inc()
	return c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if set, ok := h.clients[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	h.mu.Unlock()
	metrics.SSEClients.Dec()
}

// Clients returns the number of open streams for userID.
func (h *Hub) Clients(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Deliver sends ev to every stream of its recipients. Slow clients drop
// the event.
func (h *Hub) Deliver(ev outbound.Event) int {
	msg, err := json.Marshal(ev)
	if err != nil {
		logger.Warn("realtime: marshal event", "type", ev.Type, "error", err)
		return 0
	}
	delivered := 0
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, uid := range ev.Recipients {
		for c := range h.clients[uid] {
			select {
			case c.ch <- msg:
				delivered++
			default:
				logger.Debug("realtime: dropping event for slow client", "user_id", uid, "type", ev.Type)
			}
		}
	}
	return delivered
}

// DeliverRaw decodes a NOTIFY payload and delivers it.
func (h *Hub) DeliverRaw(payload string) {
	var ev outbound.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		logger.Warn("realtime: bad event payload", "error", err)
		return
	}
	h.Deliver(ev)
}

// Serve streams events for userID until the request is done.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	c := h.add(userID)
	defer h.remove(c)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case msg := <-c.ch:
			var head struct {
				Type string `json:"type"`
			}
			_ = json.Unmarshal(msg, &head)
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", head.Type, msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
