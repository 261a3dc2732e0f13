package realtime

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/pharmacy-realtime-api/internal/models"
)

var (
	// ErrConnectionNotFound indicates the connection id is not registered.
	ErrConnectionNotFound = errors.New("connection not found")
	// ErrConnectionExists indicates the connection id is already registered.
	ErrConnectionExists = errors.New("connection already registered")
	// ErrInvalidConnection indicates a connection without id or sink.
	ErrInvalidConnection = errors.New("connection id and sink are required")
	// ErrInvalidRoom indicates an empty room name.
	ErrInvalidRoom = errors.New("room name is required")
)

// Transports a connection may arrive through.
const (
	TransportWebSocket = "websocket"
	TransportSSE       = "sse"
)

// Connection is a snapshot of a live transport session.
type Connection struct {
	ID          string
	UserID      uint
	Role        models.Role
	Group       string
	Room        string
	Transport   string
	ConnectedAt time.Time
	Sink        Sink
}

// Anonymous reports whether the connection carries no resolved identity.
func (c Connection) Anonymous() bool {
	return c.UserID == 0
}

type connectionSet map[string]struct{}

// Registry maps connection ids to identities, role groups and conversation rooms.
// All methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Connection
	users  map[uint]connectionSet
	rooms  map[string]connectionSet
	groups map[string]connectionSet
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]*Connection),
		users:  make(map[uint]connectionSet),
		rooms:  make(map[string]connectionSet),
		groups: make(map[string]connectionSet),
	}
}

// Connect records a new connection together with its identity and group.
func (r *Registry) Connect(conn Connection) error {
	conn.ID = strings.TrimSpace(conn.ID)
	if conn.ID == "" || conn.Sink == nil {
		return ErrInvalidConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[conn.ID]; exists {
		return ErrConnectionExists
	}
	if conn.ConnectedAt.IsZero() {
		conn.ConnectedAt = time.Now().UTC()
	}
	conn.Room = ""

	stored := conn
	r.conns[conn.ID] = &stored
	if conn.UserID != 0 {
		addMember(r.users, conn.UserID, conn.ID)
	}
	if conn.Group != "" {
		addMember(r.groups, conn.Group, conn.ID)
	}
	return nil
}

// Disconnect removes the connection, its identity mapping and every membership.
func (r *Registry) Disconnect(id string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}

	delete(r.conns, id)
	if conn.UserID != 0 {
		removeMember(r.users, conn.UserID, id)
	}
	if conn.Group != "" {
		removeMember(r.groups, conn.Group, id)
	}
	if conn.Room != "" {
		removeMember(r.rooms, conn.Room, id)
	}
	return *conn, true
}

// Join moves the connection into room, leaving any room it was in before.
func (r *Registry) Join(id, room string) error {
	room = strings.TrimSpace(room)
	if room == "" {
		return ErrInvalidRoom
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return ErrConnectionNotFound
	}
	if conn.Room == room {
		return nil
	}
	if conn.Room != "" {
		removeMember(r.rooms, conn.Room, id)
	}
	conn.Room = room
	addMember(r.rooms, room, id)
	return nil
}

// Leave clears the connection's room and returns the room it left.
func (r *Registry) Leave(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok || conn.Room == "" {
		return "", false
	}
	room := conn.Room
	removeMember(r.rooms, room, id)
	conn.Room = ""
	return room, true
}

// RoomFor returns the conversation room the connection currently belongs to.
func (r *Registry) RoomFor(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	if !ok || conn.Room == "" {
		return "", false
	}
	return conn.Room, true
}

// Lookup returns a snapshot of the connection.
func (r *Registry) Lookup(id string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}
	return *conn, true
}

// UserConnections lists the live connections of a user.
func (r *Registry) UserConnections(userID uint) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(r.users[userID])
}

// RoomConnections lists the connections that joined room.
func (r *Registry) RoomConnections(room string) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(r.rooms[room])
}

// GroupConnections lists the connections assigned to a role group.
func (r *Registry) GroupConnections(group string) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot(r.groups[group])
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) snapshot(ids connectionSet) []Connection {
	out := make([]Connection, 0, len(ids))
	for id := range ids {
		if conn, ok := r.conns[id]; ok {
			out = append(out, *conn)
		}
	}
	return out
}

func addMember[K comparable](index map[K]connectionSet, key K, id string) {
	members, ok := index[key]
	if !ok {
		members = make(connectionSet)
		index[key] = members
	}
	members[id] = struct{}{}
}

func removeMember[K comparable](index map[K]connectionSet, key K, id string) {
	members, ok := index[key]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(index, key)
	}
}
