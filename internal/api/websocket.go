package api

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"push-arena/internal/config"
	"push-arena/internal/protocol"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	// MaxWSConnectionsPerIP is the maximum WebSocket connections per IP
	MaxWSConnectionsPerIP = 10

	pongWait   = 30 * time.Second
	pingPeriod = pongWait * 9 / 10

	// Frames queued per participant before deliveries to it are dropped.
	clientSendBuffer = 256
)

// wsClient is one participant connection inside a room.
type wsClient struct {
	conn    *websocket.Conn
	ip      string
	send    chan []byte
	limiter *rate.Limiter

	room  *Room
	actor protocol.ActorID

	closing   chan struct{}
	closeOnce sync.Once
}

func newWSClient(conn *websocket.Conn, ip string, cfg config.ServerConfig) *wsClient {
	limit := rate.Inf
	if cfg.MessagesPerSecond > 0 {
		limit = rate.Limit(cfg.MessagesPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &wsClient{
		conn:    conn,
		ip:      ip,
		send:    make(chan []byte, clientSendBuffer),
		limiter: rate.NewLimiter(limit, burst),
		closing: make(chan struct{}),
	}
}

// Send queues data for the write pump. It never blocks.
func (c *wsClient) Send(data []byte) bool {
	select {
	case <-c.closing:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() { close(c.closing) })
}

// RelayHub accepts participant connections and fans their frames out to
// everyone in the same room, the sender included. It never inspects frame
// bodies: targeting and filtering happen on the participants.
type RelayHub struct {
	rooms    *RoomManager
	cfg      config.ServerConfig
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool

	conns *ConnectionLimiter
}

// NewRelayHub creates a hub serving the rooms of rm.
func NewRelayHub(rm *RoomManager, cfg config.ServerConfig) *RelayHub {
	h := &RelayHub{
		rooms:   rm,
		cfg:     cfg,
		clients: make(map[*wsClient]struct{}),
		conns:   NewConnectionLimiter(MaxWSConnectionsTotal, MaxWSConnectionsPerIP),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if IsAllowedOrigin(origin, cfg.CORSOrigins) {
				return true
			}
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// ClientCount returns the number of connected participants.
func (h *RelayHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every participant and refuses new ones.
func (h *RelayHub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *RelayHub) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	UpdateRelayConnections(len(h.clients))
	return true
}

func (h *RelayHub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		h.conns.Release(c.ip)
	}
	count := len(h.clients)
	h.mu.Unlock()
	UpdateRelayConnections(count)
}

// HandleWebSocket handles GET /ws?room=CODE with DoS protection.
func (h *RelayHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	code, err := NormalizeRoomCode(r.URL.Query().Get("room"))
	if err != nil {
		RecordConnectionRejected("room")
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.conns.Acquire(ip); err != nil {
		if errors.Is(err, ErrTooManyFromIP) {
			log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
			RecordConnectionRejected("ws_ip_limit")
			http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
			return
		}
		log.Printf("⚠️ WebSocket connection rejected: total limit reached")
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.conns.Release(ip)
		return
	}

	c := newWSClient(conn, ip, h.cfg)
	if !h.register(c) {
		h.conns.Release(ip)
		h.reject(c, websocket.CloseGoingAway, "server shutting down")
		return
	}

	room, actor, err := h.rooms.Join(code, c)
	if err != nil {
		reason := "join failed"
		if errors.Is(err, ErrRoomFull) {
			reason = "room full"
			RecordConnectionRejected("room_full")
		}
		log.Printf("⚠️ %s rejected from room %s: %v", ip, code, err)
		h.reject(c, websocket.CloseTryAgainLater, reason)
		return
	}
	c.room, c.actor = room, actor
	log.Printf("📱 Actor %d joined room %s from %s (%d connected, %d from this address)",
		actor, code, ip, h.conns.Active(), h.conns.ActiveFrom(ip))

	go c.writePump()
	go h.readPump(c)
}

func (h *RelayHub) reject(c *wsClient, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.conn.Close()
	h.unregister(c)
}

// readPump relays inbound frames until the participant leaves or drops.
func (h *RelayHub) readPump(c *wsClient) {
	defer func() {
		h.rooms.Leave(c.room, c.actor)
		c.close()
		h.unregister(c)
		log.Printf("📱 Actor %d left room %s", c.actor, c.room.Code())
	}()

	c.conn.SetReadLimit(protocol.MaxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("⚠️ actor %d read: %v", c.actor, err)
			}
			return
		}
		if kind != websocket.BinaryMessage {
			RecordFrameRejected("text")
			continue
		}
		f, err := protocol.DecodeFrame(data)
		if err != nil {
			RecordFrameRejected("malformed")
			continue
		}

		switch {
		case f.Type.Relayed():
			if !c.limiter.Allow() {
				RecordFrameRejected("rate_limit")
				continue
			}
			c.room.Broadcast(data)
			RecordRelayed(f.Type.String())
		case f.Type == protocol.MsgLeave:
			if l, err := protocol.Decode[protocol.Leave](f.Body); err == nil && l.Reason != "" {
				log.Printf("👋 Actor %d leaving room %s: %s", c.actor, c.room.Code(), l.Reason)
			}
			return
		default:
			RecordFrameRejected("unexpected")
		}
	}
}

// writePump owns all writes to the connection and closes it on exit.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(protocol.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(protocol.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.closing:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(protocol.WriteTimeout))
			return
		}
	}
}
