package api

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"push-arena/internal/config"
	"push-arena/internal/protocol"
)

var (
	ErrRoomFull    = errors.New("api: room is full")
	ErrBadRoomCode = errors.New("api: invalid room code")
)

// DefaultRoom is joined when a participant does not name one.
const DefaultRoom = "LOBBY"

const maxRoomCodeLen = 16

// Member is one participant connection as seen by a room.
// Send must not block; it reports false when the frame was not queued.
type Member interface {
	Send(data []byte) bool
}

// RoomInfo is the public view of a room.
type RoomInfo struct {
	Code         string             `json:"code"`
	Participants int                `json:"participants"`
	Actors       []protocol.ActorID `json:"actors"`
	CreatedAt    time.Time          `json:"createdAt"`
}

// Room is one relay session. Actor numbers start at 1 and are never reused
// while the room exists.
type Room struct {
	code      string
	createdAt time.Time

	mu        sync.Mutex
	members   map[protocol.ActorID]Member
	nextActor protocol.ActorID
}

func newRoom(code string) *Room {
	return &Room{
		code:      code,
		createdAt: time.Now(),
		members:   make(map[protocol.ActorID]Member),
	}
}

// Code returns the room code.
func (r *Room) Code() string { return r.code }

// Broadcast delivers one encoded frame to every member, the sender
// included. It returns the number of members the frame was queued for.
func (r *Room) Broadcast(data []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.broadcastLocked(data, 0)
}

func (r *Room) broadcastLocked(data []byte, except protocol.ActorID) int {
	n := 0
	for id, m := range r.members {
		if id == except {
			continue
		}
		if m.Send(data) {
			n++
		} else {
			RecordDeliveryDropped()
		}
	}
	return n
}

func (r *Room) actorsLocked() []protocol.ActorID {
	ids := make([]protocol.ActorID, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Info returns a snapshot of the room.
func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.actorsLocked()
	return RoomInfo{
		Code:         r.code,
		Participants: len(ids),
		Actors:       ids,
		CreatedAt:    r.createdAt,
	}
}

// RoomManager owns all rooms of the relay server.
type RoomManager struct {
	mu         sync.Mutex
	rooms      map[string]*Room
	maxPlayers int
	sim        config.SimConfig
}

// NewRoomManager creates a manager. maxPlayers <= 0 means unlimited.
func NewRoomManager(maxPlayers int, sim config.SimConfig) *RoomManager {
	return &RoomManager{
		rooms:      make(map[string]*Room),
		maxPlayers: maxPlayers,
		sim:        sim,
	}
}

// NormalizeRoomCode upper-cases and validates a room code. An empty code
// selects DefaultRoom.
func NormalizeRoomCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultRoom, nil
	}
	if len(code) > maxRoomCodeLen {
		return "", fmt.Errorf("%w: %q longer than %d", ErrBadRoomCode, code, maxRoomCodeLen)
	}
	for _, c := range code {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '-' && c != '_' {
			return "", fmt.Errorf("%w: %q", ErrBadRoomCode, code)
		}
	}
	return code, nil
}

// Join adds m to the room named code, creating the room on first use.
// The new member is queued its Welcome before any other frame of the room,
// and every existing member is told about the newcomer.
func (rm *RoomManager) Join(code string, m Member) (*Room, protocol.ActorID, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	r, ok := rm.rooms[code]
	if !ok {
		r = newRoom(code)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rm.maxPlayers > 0 && len(r.members) >= rm.maxPlayers {
		return nil, 0, fmt.Errorf("%w: %s has %d participants", ErrRoomFull, code, len(r.members))
	}

	r.nextActor++
	actor := r.nextActor

	welcome, err := protocol.NewFrame(protocol.MsgWelcome, actor, protocol.Welcome{
		Actor:      actor,
		Room:       code,
		Peers:      r.actorsLocked(),
		TickHz:     rm.sim.TickHz,
		SnapshotHz: rm.sim.SnapshotHz,
	})
	if err != nil {
		r.nextActor--
		return nil, 0, err
	}
	data, err := protocol.EncodeFrame(welcome)
	if err != nil {
		r.nextActor--
		return nil, 0, err
	}
	if !m.Send(data) {
		r.nextActor--
		return nil, 0, fmt.Errorf("api: welcome for %s not queued", code)
	}

	if joined, err := peerFrame(protocol.MsgPeerJoined, actor); err == nil {
		r.broadcastLocked(joined, 0)
	}
	r.members[actor] = m

	if !ok {
		rm.rooms[code] = r
		UpdateRooms(len(rm.rooms))
		log.Printf("🏠 Room %s opened", code)
	}
	return r, actor, nil
}

// Leave removes actor from r and tells the remaining members. Empty rooms
// are closed.
func (rm *RoomManager) Leave(r *Room, actor protocol.ActorID) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[actor]; !ok {
		return
	}
	delete(r.members, actor)

	if left, err := peerFrame(protocol.MsgPeerLeft, actor); err == nil {
		r.broadcastLocked(left, actor)
	}

	if len(r.members) == 0 && rm.rooms[r.code] == r {
		delete(rm.rooms, r.code)
		UpdateRooms(len(rm.rooms))
		log.Printf("🏚️ Room %s closed", r.code)
	}
}

// Get returns the room named code.
func (rm *RoomManager) Get(code string) (*Room, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	r, ok := rm.rooms[code]
	return r, ok
}

// List returns every open room ordered by code.
func (rm *RoomManager) List() []RoomInfo {
	rm.mu.Lock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, r := range rm.rooms {
		rooms = append(rooms, r)
	}
	rm.mu.Unlock()

	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Count returns the number of open rooms.
func (rm *RoomManager) Count() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.rooms)
}

func peerFrame(t protocol.MsgType, actor protocol.ActorID) ([]byte, error) {
	f, err := protocol.NewFrame(t, 0, protocol.PeerEvent{Actor: actor})
	if err != nil {
		return nil, err
	}
	return protocol.EncodeFrame(f)
}
