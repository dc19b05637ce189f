package server

import "sync"

// roomTable tracks which connections joined which room within one namespace.
// Reads (broadcast enumeration) vastly outnumber writes (join/leave), so it
// sits behind an RWMutex.
type roomTable struct {
	mu    sync.RWMutex
	rooms map[string]map[*connection]struct{}
}

func newRoomTable() *roomTable {
	return &roomTable{rooms: make(map[string]map[*connection]struct{})}
}

// join adds the connection to a room. Joining twice is a no-op.
func (t *roomTable) join(room string, c *connection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	members, ok := t.rooms[room]
	if !ok {
		members = make(map[*connection]struct{})
		t.rooms[room] = members
	}
	members[c] = struct{}{}
}

// leaveAll removes the connection from every room it joined.
func (t *roomTable) leaveAll(c *connection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for room, members := range t.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(t.rooms, room)
		}
	}
}

// members snapshots the connections currently joined to a room. The
// snapshot decouples fan-out from joins racing in behind it.
func (t *roomTable) members(room string) []*connection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	members := t.rooms[room]
	if len(members) == 0 {
		return nil
	}
	snapshot := make([]*connection, 0, len(members))
	for c := range members {
		snapshot = append(snapshot, c)
	}
	return snapshot
}
