// Package inproc is an in-process relay: every endpoint receives every
// published frame, the publisher included. It also plays the session
// collaborator, assigning actor numbers and announcing joins and leaves.
package inproc

import (
	"sync"

	"push-arena/internal/config"
	"push-arena/internal/protocol"
	"push-arena/internal/relay"
)

// DropFunc decides whether a frame from one endpoint to another is lost.
type DropFunc func(from, to protocol.ActorID, f protocol.Frame) bool

// Network is one in-process room.
type Network struct {
	mu        sync.RWMutex
	sim       config.SimConfig
	room      string
	nextActor protocol.ActorID
	endpoints map[protocol.ActorID]*Endpoint
	order     []protocol.ActorID
	drop      DropFunc
}

// NewNetwork creates an empty room.
func NewNetwork(room string, sim config.SimConfig) *Network {
	return &Network{
		sim:       sim,
		room:      room,
		endpoints: make(map[protocol.ActorID]*Endpoint),
	}
}

// SetDrop installs a loss model. nil delivers everything.
func (n *Network) SetDrop(fn DropFunc) {
	n.mu.Lock()
	n.drop = fn
	n.mu.Unlock()
}

// Connect allocates an endpoint with the next actor number. The endpoint
// receives frames immediately but is announced to peers only on Join.
func (n *Network) Connect() *Endpoint {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextActor++
	e := &Endpoint{net: n, actor: n.nextActor}
	n.endpoints[e.actor] = e
	return e
}

// Members returns the actors of joined endpoints in join order.
func (n *Network) Members() []protocol.ActorID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]protocol.ActorID(nil), n.order...)
}

func (n *Network) join(e *Endpoint, l relay.SessionListener) {
	n.mu.Lock()
	peers := append([]protocol.ActorID(nil), n.order...)
	others := make([]*Endpoint, 0, len(peers))
	for _, id := range peers {
		if other := n.endpoints[id]; other != nil {
			others = append(others, other)
		}
	}
	e.listener = l
	n.order = append(n.order, e.actor)
	n.mu.Unlock()

	l.OnWelcome(protocol.Welcome{
		Actor:      e.actor,
		Room:       n.room,
		Peers:      peers,
		TickHz:     n.sim.TickHz,
		SnapshotHz: n.sim.SnapshotHz,
	})
	for _, other := range others {
		if other.listener != nil {
			other.listener.OnPeerJoined(e.actor)
		}
	}
}

func (n *Network) leave(e *Endpoint) {
	n.mu.Lock()
	if _, ok := n.endpoints[e.actor]; !ok {
		n.mu.Unlock()
		return
	}
	delete(n.endpoints, e.actor)
	joined := false
	for i, id := range n.order {
		if id == e.actor {
			n.order = append(n.order[:i], n.order[i+1:]...)
			joined = true
			break
		}
	}
	others := make([]*Endpoint, 0, len(n.endpoints))
	for _, id := range n.order {
		others = append(others, n.endpoints[id])
	}
	n.mu.Unlock()

	if !joined {
		return
	}
	for _, other := range others {
		if other.listener != nil {
			other.listener.OnPeerLeft(e.actor)
		}
	}
}

// deliver fans f out to every endpoint. Listeners are called without the
// network lock held.
func (n *Network) deliver(from protocol.ActorID, f protocol.Frame) error {
	n.mu.RLock()
	if _, ok := n.endpoints[from]; !ok {
		n.mu.RUnlock()
		return relay.ErrClosed
	}
	targets := make([]*Endpoint, 0, len(n.endpoints))
	for _, e := range n.endpoints {
		if n.drop != nil && n.drop(from, e.actor, f) {
			continue
		}
		targets = append(targets, e)
	}
	n.mu.RUnlock()

	for _, e := range targets {
		e.Dispatch(f)
	}
	return nil
}

// Endpoint is one participant's connection to the Network. It implements
// relay.Bus and the session exit request.
type Endpoint struct {
	relay.Dispatcher

	net      *Network
	actor    protocol.ActorID
	listener relay.SessionListener

	exitOnce sync.Once
	exits    int
}

// Actor returns the actor number assigned to this endpoint.
func (e *Endpoint) Actor() protocol.ActorID { return e.actor }

// Join announces the endpoint: l receives Welcome, existing peers receive
// PeerJoined.
func (e *Endpoint) Join(l relay.SessionListener) { e.net.join(e, l) }

// Publish relays f to every endpoint, this one included.
func (e *Endpoint) Publish(f protocol.Frame) error { return e.net.deliver(e.actor, f) }

// RequestSessionExit leaves the room.
func (e *Endpoint) RequestSessionExit() {
	e.exitOnce.Do(func() {
		e.exits++
		e.net.leave(e)
	})
}

// Close leaves the room without counting as a requested exit.
func (e *Endpoint) Close() { e.net.leave(e) }

// ExitRequests returns how many exit requests took effect.
func (e *Endpoint) ExitRequests() int { return e.exits }

var _ relay.Bus = (*Endpoint)(nil)
