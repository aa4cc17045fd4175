package chat

import (
	"sort"
	"sync"

	"chathub/internal/v1/metrics"
	"chathub/internal/v1/protocol"
)

// Registry owns the three process-wide tables: live clients, rooms, and the
// unique-name index. One mutex covers all three so cross-table operations
// (register, unregister, join, leave, eviction) are observed atomically.
type Registry struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	rooms   map[string]*Room
	names   map[string]*Client
}

func newRegistry() *Registry {
	return &Registry{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]*Room),
		names:   make(map[string]*Client),
	}
}

type reserveResult int

const (
	reserveOK reserveResult = iota
	reserveTaken
	reserveAlreadySet
	reserveUnregistered
)

type joinResult int

const (
	joinOK joinResult = iota
	joinRoomNotFound
	joinAlreadyMember
	joinUnregistered
)

type privateResult int

const (
	privateOK privateResult = iota
	privateUnregistered
	privateRecipientNotFound
)

// AddClient registers a freshly accepted connection with a null name.
func (reg *Registry) AddClient(c *Client) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.clients[c] = struct{}{}
}

// RemoveClient performs the unregister critical section: drops the client
// from the clients table, releases its reserved name, and removes it from
// every joined room's member set. Returns the rooms it left and the display
// name to announce. Idempotent; the second call reports ok=false.
func (reg *Registry) RemoveClient(c *Client) (ok bool, name string, left []*Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, present := reg.clients[c]; !present {
		return false, "", nil
	}
	delete(reg.clients, c)

	name = c.displayName
	if c.nameReserved && reg.names[name] == c {
		delete(reg.names, name)
	}

	for roomID := range c.joined {
		room, present := reg.rooms[roomID]
		if !present {
			continue
		}
		delete(room.members, c)
		metrics.RoomMembers.WithLabelValues(room.id).Set(float64(len(room.members)))
		left = append(left, room)
	}
	c.joined = make(map[string]struct{})

	return true, name, left
}

// ReserveName claims a display name for a client. A client keeps its first
// successfully reserved name for the whole connection.
func (reg *Registry) ReserveName(c *Client, name string) reserveResult {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, taken := reg.names[name]; taken {
		return reserveTaken
	}
	if _, registered := reg.clients[c]; !registered {
		return reserveUnregistered
	}
	if c.nameReserved {
		return reserveAlreadySet
	}

	c.displayName = name
	c.nameReserved = true
	reg.names[name] = c
	return reserveOK
}

// AddRoom inserts a room. Returns false on an ID collision.
func (reg *Registry) AddRoom(room *Room) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, exists := reg.rooms[room.id]; exists {
		return false
	}
	reg.rooms[room.id] = room
	return true
}

// Room looks up a room by ID.
func (reg *Registry) Room(roomID string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room, ok := reg.rooms[roomID]
	return room, ok
}

// ListRooms snapshots every room with its current member count.
func (reg *Registry) ListRooms() []protocol.RoomSummary {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	summaries := make([]protocol.RoomSummary, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		summaries = append(summaries, protocol.RoomSummary{
			ID:      room.id,
			Name:    room.name,
			Members: len(room.members),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries
}

// Join adds a client to a room's member set and the room to the client's
// joined set as one step. Returns the display name to broadcast. The member
// is in the set before the caller posts user_joined, which is what makes the
// join-then-broadcast ordering hold.
func (reg *Registry) Join(c *Client, roomID, requestedName string) (joinResult, *Room, string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, present := reg.rooms[roomID]
	if !present {
		return joinRoomNotFound, nil, ""
	}
	if _, member := room.members[c]; member {
		return joinAlreadyMember, nil, ""
	}
	if _, registered := reg.clients[c]; !registered {
		return joinUnregistered, nil, ""
	}

	room.members[c] = struct{}{}
	c.joined[roomID] = struct{}{}

	// A reserved name always wins. An unnamed client may pick up an in-room
	// display name from the request, defaulting to Anon; that name is never
	// entered into the unique-name index.
	if !c.nameReserved {
		if requestedName != "" {
			c.displayName = requestedName
		}
		if c.displayName == "" {
			c.displayName = "Anon"
		}
	}

	metrics.RoomMembers.WithLabelValues(room.id).Set(float64(len(room.members)))
	return joinOK, room, c.displayName
}

// Leave removes a client from a room. Unknown rooms report ok=false; leaving
// a room the client is not in succeeds silently.
func (reg *Registry) Leave(c *Client, roomID string) (room *Room, name string, ok bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, present := reg.rooms[roomID]
	if !present {
		return nil, "", false
	}

	if _, member := room.members[c]; member {
		delete(room.members, c)
		metrics.RoomMembers.WithLabelValues(room.id).Set(float64(len(room.members)))
	}
	delete(c.joined, roomID)

	return room, c.displayName, true
}

// Membership resolves a room and the client's standing in it for the message
// path. A nil room means the room is unknown.
func (reg *Registry) Membership(c *Client, roomID string) (room *Room, isMember bool, name string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, present := reg.rooms[roomID]
	if !present {
		return nil, false, ""
	}
	_, isMember = room.members[c]
	return room, isMember, c.displayName
}

// ResolvePrivate checks the sender is registered and resolves the recipient
// through the unique-name index.
func (reg *Registry) ResolvePrivate(sender *Client, to string) (senderName string, recipient *Client, res privateResult) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, registered := reg.clients[sender]; !registered {
		return "", nil, privateUnregistered
	}
	senderName = sender.displayName
	if senderName == "" {
		senderName = "Anon"
	}
	recipient, present := reg.names[to]
	if !present {
		return "", nil, privateRecipientNotFound
	}
	return senderName, recipient, privateOK
}

// MembersSnapshot copies a room's member set for one fan-out pass.
func (reg *Registry) MembersSnapshot(room *Room) []*Client {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	members := make([]*Client, 0, len(room.members))
	for member := range room.members {
		members = append(members, member)
	}
	return members
}

// Clients snapshots the live client set.
func (reg *Registry) Clients() []*Client {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	clients := make([]*Client, 0, len(reg.clients))
	for c := range reg.clients {
		clients = append(clients, c)
	}
	return clients
}

// Rooms snapshots the room table.
func (reg *Registry) Rooms() []*Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// Stats reports live client and room counts for the readiness probe.
func (reg *Registry) Stats() (clients int, rooms int) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.clients), len(reg.rooms)
}
