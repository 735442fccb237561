// Package statusserver implements the optional, localhost-oriented live
// status feed: a websocket broadcast of GameResults and move events as the
// Match runner produces them, plus a gzip-compressed snapshot endpoint.
// Disabled unless wired up by the caller; emits nothing when unused, so it
// never participates in the core's sequential single-threaded game loop
// (spec §5).
package statusserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/dumbarb/dumbarb/internal/model"
	"github.com/dumbarb/dumbarb/internal/util/slogx"
	"github.com/dumbarb/dumbarb/internal/util/sliceutil"
	"github.com/gorilla/websocket"
)

// Event is one broadcast frame, JSON-encoded to every connected client.
type Event struct {
	Kind   string            `json:"kind"` // "move" or "result"
	Seq    int               `json:"seq"`
	Move   *model.MoveRecord `json:"move,omitempty"`
	Result *model.GameResult `json:"result,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans out Events to every connected websocket client and keeps every
// published GameResult, in publish order, for the snapshot endpoint.
type Hub struct {
	log *slog.Logger
	o   Options

	mu       sync.Mutex
	clients  map[*client]bool
	snapshot []model.GameResult

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
}

// NewHub creates a Hub; call Run to start its event loop.
func NewHub(log *slog.Logger, o Options) *Hub {
	if log == nil {
		log = slogx.DiscardLogger()
	}
	o.FillDefaults()
	return &Hub{
		log:        log,
		o:          o,
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
	}
}

// Run drives the hub's event loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
			}
			h.clients = nil
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case data := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// Slow reader: drop rather than block the match loop's
					// publisher goroutine.
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Warn("statusserver: marshal event failed", slogx.Err(err))
		return
	}
	select {
	case h.broadcast <- data:
	case <-time.After(time.Second):
		h.log.Warn("statusserver: broadcast channel full, dropping event")
	}
}

// PublishMove broadcasts one live move as it is recorded by the Game driver.
func (h *Hub) PublishMove(seq int, m model.MoveRecord) {
	h.publish(Event{Kind: "move", Seq: seq, Move: &m})
}

// PublishResult broadcasts a completed GameResult and records it in the
// snapshot served by the status endpoint.
func (h *Hub) PublishResult(res *model.GameResult) {
	h.mu.Lock()
	h.snapshot = append(h.snapshot, *res)
	h.mu.Unlock()
	h.publish(Event{Kind: "result", Seq: res.Seq, Result: res})
}

// Snapshot returns every GameResult published so far, for the status
// endpoint's initial payload.
func (h *Hub) Snapshot() []model.GameResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return sliceutil.Map(h.snapshot, func(r model.GameResult) model.GameResult { return r })
}
