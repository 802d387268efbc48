package rooms

import (
	"fmt"
	"log"
	"sync"

	"waregate/pkg/interfaces"
	"waregate/pkg/types"
)

// AdminRoom is the broadcast group for admin-console connections.
const AdminRoom = "admin_dashboard"

// ShelfRoom names the broadcast group for a shelf.
func ShelfRoom(shelfID string) string {
	return "shelf_" + shelfID
}

// Directory maps room names to the set of live connections subscribed to
// them. Membership has no persistence: it is reconstructed from live
// connection state and lost on restart, and clients re-join on reconnect.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]map[string]interfaces.Connection // room -> connectionID -> connection
	conns map[string]interfaces.Connection            // connectionID -> connection
	// shelfRoom tracks which shelf room each connection currently occupies;
	// a connection belongs to at most one shelf room at a time.
	shelfRoom map[string]string
}

// NewDirectory creates an empty room directory.
func NewDirectory() *Directory {
	return &Directory{
		rooms:     make(map[string]map[string]interfaces.Connection),
		conns:     make(map[string]interfaces.Connection),
		shelfRoom: make(map[string]string),
	}
}

// Register adds a connection to the directory's global set. Admin-role
// principals are placed in the admin room immediately; workers join shelf
// rooms explicitly later.
func (d *Directory) Register(conn interfaces.Connection) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.conns[conn.ID()] = conn
	if conn.Principal().Role == types.RoleAdmin {
		d.joinLocked(AdminRoom, conn)
	}
}

// JoinShelf moves a connection into a shelf room, leaving any shelf room it
// previously occupied.
func (d *Directory) JoinShelf(conn interfaces.Connection, shelfID string) error {
	if conn == nil {
		return fmt.Errorf("nil connection")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, known := d.conns[conn.ID()]; !known {
		return fmt.Errorf("connection %s is not registered", conn.ID())
	}

	if previous, ok := d.shelfRoom[conn.ID()]; ok {
		d.leaveLocked(previous, conn.ID())
	}

	room := ShelfRoom(shelfID)
	d.joinLocked(room, conn)
	d.shelfRoom[conn.ID()] = room
	log.Printf("Connection joined room: conn=%s room=%s", conn.ID(), room)
	return nil
}

// Leave removes a connection from one room.
func (d *Directory) Leave(room string, connectionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.leaveLocked(room, connectionID)
	if d.shelfRoom[connectionID] == room {
		delete(d.shelfRoom, connectionID)
	}
}

// Remove drops a connection from every room and the global set. Called on
// transport-level disconnect; idempotent.
func (d *Directory) Remove(connectionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if room, ok := d.shelfRoom[connectionID]; ok {
		d.leaveLocked(room, connectionID)
		delete(d.shelfRoom, connectionID)
	}
	d.leaveLocked(AdminRoom, connectionID)
	delete(d.conns, connectionID)
}

// BroadcastToRoom emits a labeled payload to every member of a room and
// returns how many writes failed. Broadcast is fire-and-forget: a slow or
// dead member never blocks the others.
func (d *Directory) BroadcastToRoom(room, label string, payload interface{}) int {
	members := d.members(room)

	failed := 0
	for _, conn := range members {
		if err := conn.WriteJSON(types.Push(label, payload)); err != nil {
			failed++
		}
	}
	return failed
}

// BroadcastAll emits to every connection regardless of room. Reserved for
// outage-class critical alerts.
func (d *Directory) BroadcastAll(label string, payload interface{}) int {
	d.mu.RLock()
	all := make([]interfaces.Connection, 0, len(d.conns))
	for _, conn := range d.conns {
		all = append(all, conn)
	}
	d.mu.RUnlock()

	failed := 0
	for _, conn := range all {
		if err := conn.WriteJSON(types.Push(label, payload)); err != nil {
			failed++
		}
	}
	return failed
}

// Count returns the number of members in a room.
func (d *Directory) Count(room string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms[room])
}

// Stats reports connection and room counts for monitoring.
func (d *Directory) Stats() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return map[string]int{
		"total_connections": len(d.conns),
		"active_rooms":      len(d.rooms),
		"admin_connections": len(d.rooms[AdminRoom]),
	}
}

func (d *Directory) members(room string) []interfaces.Connection {
	d.mu.RLock()
	defer d.mu.RUnlock()

	members := make([]interfaces.Connection, 0, len(d.rooms[room]))
	for _, conn := range d.rooms[room] {
		members = append(members, conn)
	}
	return members
}

func (d *Directory) joinLocked(room string, conn interfaces.Connection) {
	if d.rooms[room] == nil {
		d.rooms[room] = make(map[string]interfaces.Connection)
	}
	d.rooms[room][conn.ID()] = conn
}

// leaveLocked removes membership and cleans up empty room maps to prevent
// unbounded growth across shelf churn.
func (d *Directory) leaveLocked(room, connectionID string) {
	if members, ok := d.rooms[room]; ok {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(d.rooms, room)
		}
	}
}
