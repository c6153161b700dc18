// Package ws implements the bidirectional event channel over
// gorilla/websocket: one *websocket.Conn per session, JSON text frames
// `{event, payload}`. Grounded on
// pkg/engine/console/console.go's Driver (iox.AsyncCloser embedding, a
// read loop handing lines to a process goroutine, a buffered out channel
// drained by a writer), generalized from stdin/stdout text lines to a
// socket's read/write pumps.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/herohde/shogiserver/internal/session"
	"github.com/seekerror/logw"
	"github.com/seekerror/stdlib/pkg/util/iox"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1 << 16
)

// Frame is the wire envelope for both inbound and outbound events.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Server upgrades HTTP connections to websockets, dispatches inbound
// frames to a session.Router and fans outbound events back out. It
// implements session.Broadcaster.
type Server struct {
	upgrader websocket.Upgrader
	router   *session.Router

	mu       sync.Mutex
	sessions map[string]*conn
	nextID   uint64
}

// NewServer creates a Server dispatching through router. allowedOrigins,
// if non-empty, restricts CheckOrigin to that list; empty allows any
// origin (suitable for same-origin or reverse-proxied deployments).
func NewServer(router *session.Router, allowedOrigins []string) *Server {
	s := &Server{
		router:   router,
		sessions: map[string]*conn{},
	}
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = true
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(originSet) == 0 {
				return true
			}
			return originSet[r.Header.Get("Origin")]
		},
	}
	return s
}

// conn is one session's socket plumbing.
type conn struct {
	iox.AsyncCloser

	id     string
	ws     *websocket.Conn
	server *Server

	out chan Frame
}

// ServeHTTP upgrades the request to a websocket and runs the session
// until the socket closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logw.Errorf(r.Context(), "ws upgrade failed: %v", err)
		return
	}

	c := &conn{
		AsyncCloser: iox.NewAsyncCloser(),
		id:          s.newSessionID(),
		ws:          wsConn,
		server:      s,
		out:         make(chan Frame, 64),
	}

	s.mu.Lock()
	s.sessions[c.id] = c
	s.mu.Unlock()

	go c.writePump()
	c.readPump(context.Background())
}

func (s *Server) newSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return time.Now().Format("20060102150405") + "-" + itoa(s.nextID)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func (c *conn) readPump(ctx context.Context) {
	defer func() {
		c.server.router.Dispatch(ctx, c.id, session.EventDisconnect, nil)
		c.server.remove(c.id)
		c.Close()
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logw.Errorf(ctx, "ws read error, session %v: %v", c.id, err)
			}
			return
		}
		c.server.router.Dispatch(ctx, c.id, f.Event, f.Payload)
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(frame); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.Closed():
			return
		}
	}
}

func (s *Server) remove(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func (s *Server) send(sessionID, event string, payload any) {
	s.mu.Lock()
	c, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return
	}
	frame, err := encodeFrame(event, payload)
	if err != nil {
		return
	}
	select {
	case c.out <- frame:
	default:
		// Slow consumer: drop rather than block the fan-out goroutine.
	}
}

func encodeFrame(event string, payload any) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Payload: raw}, nil
}

// SendSession implements room.Broadcaster/session.Broadcaster.
func (s *Server) SendSession(ctx context.Context, sessionID string, event string, payload any) {
	s.send(sessionID, event, payload)
}

// BroadcastRoom implements room.Broadcaster/session.Broadcaster. The
// Server does not itself track room membership; it relies on the
// session.Router's roomSessions bookkeeping via SessionIDsInRoom.
func (s *Server) BroadcastRoom(ctx context.Context, roomID string, event string, payload any) {
	for _, id := range s.router.SessionIDsInRoom(roomID) {
		s.send(id, event, payload)
	}
}

// BroadcastGlobal implements session.Broadcaster, fanning out to every
// currently connected session.
func (s *Server) BroadcastGlobal(ctx context.Context, event string, payload any) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.send(id, event, payload)
	}
}
