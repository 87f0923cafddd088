// Package wsclient connects a participant to the relay server over a
// websocket. One binary message carries one protocol frame.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"push-arena/internal/config"
	"push-arena/internal/protocol"
	"push-arena/internal/relay"
)

// ErrSendBufferFull is returned by Publish when the writer is behind.
var ErrSendBufferFull = errors.New("wsclient: send buffer full")

const (
	pongWait   = 30 * time.Second
	pingPeriod = pongWait * 9 / 10
	leaveGrace = 250 * time.Millisecond
)

// Client is one participant's connection. It implements relay.Bus and
// forwards session membership frames to a relay.SessionListener.
type Client struct {
	relay.Dispatcher

	conn *websocket.Conn
	room string
	send chan []byte

	actor    atomic.Int32
	listener relay.SessionListener

	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	exitOnce  sync.Once
	startOnce sync.Once

	dropped atomic.Uint64
}

// Dial connects to the relay server and joins cfg.Room.
func Dial(ctx context.Context, cfg config.NetConfig) (*Client, error) {
	u, err := roomURL(cfg.ServerURL, cfg.Room)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(dialCtx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("wsclient: dial %s: %w", u, err)
	}
	conn.SetReadLimit(protocol.MaxFrameSize)

	buf := cfg.SendBuffer
	if buf <= 0 {
		buf = config.DefaultNet().SendBuffer
	}
	return &Client{
		conn:    conn,
		room:    cfg.Room,
		send:    make(chan []byte, buf),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

func roomURL(server, room string) (string, error) {
	if !strings.HasPrefix(server, "ws://") && !strings.HasPrefix(server, "wss://") {
		return "", fmt.Errorf("wsclient: invalid ws url: %s", server)
	}
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("wsclient: parse %s: %w", server, err)
	}
	q := u.Query()
	q.Set("room", room)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Join starts the read and write pumps. l receives Welcome, then peer
// joins and leaves as the server announces them.
func (c *Client) Join(l relay.SessionListener) {
	c.startOnce.Do(func() {
		c.listener = l
		go c.writePump()
		go c.readPump()
	})
}

// Actor returns the actor number from Welcome, or 0 before it arrived.
func (c *Client) Actor() protocol.ActorID { return protocol.ActorID(c.actor.Load()) }

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

// Dropped returns the number of outbound frames dropped on a full buffer.
func (c *Client) Dropped() uint64 { return c.dropped.Load() }

// Publish queues f for the relay. It never blocks.
func (c *Client) Publish(f protocol.Frame) error {
	data, err := protocol.EncodeFrame(f)
	if err != nil {
		return err
	}
	select {
	case <-c.closing:
		return relay.ErrClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.dropped.Add(1)
		return ErrSendBufferFull
	}
}

// RequestSessionExit tells the server this participant is leaving and
// closes the connection once the notice is flushed.
func (c *Client) RequestSessionExit() {
	c.exitOnce.Do(func() {
		f, err := protocol.NewFrame(protocol.MsgLeave, c.Actor(), protocol.Leave{Reason: "health depleted"})
		if err == nil {
			if err := c.Publish(f); err != nil {
				log.Printf("⚠️ leave notice not sent: %v", err)
			}
		}
		go func() {
			select {
			case <-c.done:
			case <-time.After(leaveGrace):
				c.Close()
			}
		}()
	})
}

// Close shuts the connection down.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closing)
	})
	return nil
}

func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("⚠️ relay read: %v", err)
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		f, err := protocol.DecodeFrame(data)
		if err != nil {
			log.Printf("⚠️ relay frame rejected: %v", err)
			continue
		}
		c.handle(f)
	}
}

func (c *Client) handle(f protocol.Frame) {
	switch f.Type {
	case protocol.MsgWelcome:
		w, err := protocol.Decode[protocol.Welcome](f.Body)
		if err != nil {
			log.Printf("⚠️ bad welcome: %v", err)
			return
		}
		c.actor.Store(int32(w.Actor))
		log.Printf("✅ Joined room %s as actor %d (%d peers)", w.Room, w.Actor, len(w.Peers))
		if c.listener != nil {
			c.listener.OnWelcome(w)
		}
	case protocol.MsgPeerJoined, protocol.MsgPeerLeft:
		ev, err := protocol.Decode[protocol.PeerEvent](f.Body)
		if err != nil || c.listener == nil {
			return
		}
		if f.Type == protocol.MsgPeerJoined {
			c.listener.OnPeerJoined(ev.Actor)
		} else {
			c.listener.OnPeerLeft(ev.Actor)
		}
	default:
		if f.Type.Relayed() {
			c.Dispatch(f)
		}
	}
}

// writePump owns all writes to the connection and closes it on exit.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.conn.Close()
		close(c.done)
		log.Printf("📴 Disconnected from room %s", c.room)
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(protocol.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
			if isLeave(data) {
				c.closeNormally()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(protocol.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closing:
			c.closeNormally()
			return
		}
	}
}

func (c *Client) closeNormally() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(protocol.WriteTimeout))
}

func isLeave(data []byte) bool {
	f, err := protocol.DecodeFrame(data)
	return err == nil && f.Type == protocol.MsgLeave
}

var _ relay.Bus = (*Client)(nil)
