package websocket

import (
	"sync"

	"go.uber.org/zap"

	"classsync/pkg/interfaces"
)

// Registry is the room registry: it maps each classroom to the set of
// currently connected members. Rooms are ephemeral; the registry is rebuilt
// from scratch on process restart and never persisted. It is a constructed,
// injectable component so tests and a future broker-backed deployment can
// hold independent instances.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]interfaces.Connection            // connectionID -> Connection
	rooms       map[string]map[string]interfaces.Connection // classroomID -> connectionID -> Connection
	log         *zap.SugaredLogger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.SugaredLogger) *Registry {
	return &Registry{
		connections: make(map[string]interfaces.Connection),
		rooms:       make(map[string]map[string]interfaces.Connection),
		log:         log,
	}
}

// Track records a connection in the global index at upgrade time. The
// connection is not yet a member of any room; Join does that.
func (r *Registry) Track(conn interfaces.Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[conn.ConnectionID()] = conn
	return nil
}

// Join adds the connection to its classroom's room, creating the room on
// first join. Idempotent per connection: re-joining replaces membership,
// never duplicates it.
func (r *Registry) Join(conn interfaces.Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	classroomID := conn.ClassroomID()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[conn.ConnectionID()] = conn

	room := r.rooms[classroomID]
	if room == nil {
		room = make(map[string]interfaces.Connection)
		r.rooms[classroomID] = room
	}
	room[conn.ConnectionID()] = conn

	r.log.Infow("connection joined room",
		"classroomId", classroomID,
		"userId", conn.UserID(),
		"connectionId", conn.ConnectionID(),
		"members", len(room))
	return nil
}

// Leave removes the connection from its room and the global index. No-op
// when the connection was never tracked or already left; called
// unconditionally on every disconnect, clean or abnormal.
func (r *Registry) Leave(conn interfaces.Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	connID := conn.ConnectionID()
	if _, exists := r.connections[connID]; !exists {
		return
	}
	delete(r.connections, connID)

	classroomID := conn.ClassroomID()
	if room, exists := r.rooms[classroomID]; exists {
		delete(room, connID)
		if len(room) == 0 {
			delete(r.rooms, classroomID)
		}
	}

	r.log.Infow("connection left room",
		"classroomId", classroomID,
		"userId", conn.UserID(),
		"connectionId", connID)
}

// MembersOf returns a snapshot of the room's members, empty for unknown
// rooms. Iteration order is unspecified.
func (r *Registry) MembersOf(classroomID string) []interfaces.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[classroomID]
	if !exists {
		return nil
	}

	members := make([]interfaces.Connection, 0, len(room))
	for _, conn := range room {
		members = append(members, conn)
	}
	return members
}

// IsMember reports whether the connection has joined its classroom's room.
// The relay uses this as the unbound-session check.
func (r *Registry) IsMember(conn interfaces.Connection) bool {
	if conn == nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[conn.ClassroomID()]
	if !exists {
		return false
	}
	_, member := room[conn.ConnectionID()]
	return member
}

// Stats returns connection and room counts for the health endpoint.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int{
		"total_connections": len(r.connections),
		"active_rooms":      len(r.rooms),
	}
}
