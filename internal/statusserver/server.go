package statusserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/dumbarb/dumbarb/internal/model"
	"github.com/dumbarb/dumbarb/internal/util/slogx"
	wsopt "github.com/dumbarb/dumbarb/internal/util/websocket"
	"github.com/gorilla/websocket"
)

// Options is the websocket tuning knobs, kept as the teacher's
// internal/util/websocket.Options shape (upgrader sizing, ping/pong
// deadlines) rather than re-declared.
type Options = wsopt.Options

const pongWait = 60 * time.Second

// Server is the optional localhost live-status feed: GET /status returns a
// gzip-compressed JSON snapshot of every GameResult produced so far, and
// GET /ws upgrades to a websocket streaming live move and result events.
// A Server that is never started (spec: "disabled unless --status-addr is
// passed") emits nothing and costs nothing beyond its own construction.
type Server struct {
	log      *slog.Logger
	hub      *Hub
	upgrader websocket.Upgrader
	opts     Options
	mux      *http.ServeMux
}

// New builds a Server. Call Run to start both the hub's event loop and an
// HTTP server bound to addr; the caller is expected to do so in a
// goroutine and cancel ctx on shutdown.
func New(log *slog.Logger, o Options) *Server {
	if log == nil {
		log = slogx.DiscardLogger()
	}
	o.FillDefaults()
	s := &Server{
		log:      log,
		hub:      NewHub(log, o),
		upgrader: o.Upgrader(),
		opts:     o,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWS)
	s.mux = mux
	return s
}

// PublishMove forwards a live move event to connected clients.
func (s *Server) PublishMove(seq int, m model.MoveRecord) { s.hub.PublishMove(seq, m) }

// PublishResult forwards a completed game result to connected clients and
// records it in the snapshot.
func (s *Server) PublishResult(res *model.GameResult) { s.hub.PublishResult(res) }

// Handler returns the gzip-wrapped HTTP handler for /status and /ws.
// Gzip has no effect on the websocket upgrade itself (gziphandler passes
// hijacked connections through untouched) but compresses the JSON
// snapshot response.
func (s *Server) Handler() http.Handler {
	return gziphandler.GzipHandler(s.mux)
}

// Run starts the hub loop and an HTTP server on addr, blocking until ctx
// is cancelled or the server fails to start.
func (s *Server) Run(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.hub.Snapshot()); err != nil {
		s.log.Warn("statusserver: encode snapshot failed", slogx.Err(err))
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("statusserver: websocket upgrade failed", slogx.Err(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 32)}
	s.hub.register <- c
	go s.readPump(c)
	go s.writePump(c)
}

// readPump drains and discards client frames, refreshing the read deadline
// on every pong, the same idle-detection scheme as the teacher's
// websockutil session.
func (s *Server) readPump(c *client) {
	defer func() {
		s.hub.unregister <- c
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(s.opts.ReadMsgLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteDeadline))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
