package chat

import (
	"context"
	"strings"

	"chathub/internal/v1/logging"
	"chathub/internal/v1/protocol"

	"github.com/google/uuid"
)

// Room is a named fan-out group. Events posted to its inbound queue reach
// every member current at fan-out time. The member set is guarded by the
// Registry's mutex; the dispatcher goroutine is the queue's only consumer.
type Room struct {
	id      string
	name    string
	members map[*Client]struct{} // guarded by Registry.mu
	inbound *eventQueue

	registry     *Registry
	onSlowClient func(*Room, *Client)

	done chan struct{}
}

// newRoomID draws an 8-hex-character room ID from a random UUID.
func newRoomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func newRoom(id, name string, registry *Registry, onSlowClient func(*Room, *Client)) *Room {
	return &Room{
		id:           id,
		name:         name,
		members:      make(map[*Client]struct{}),
		inbound:      newEventQueue(),
		registry:     registry,
		onSlowClient: onSlowClient,
		done:         make(chan struct{}),
	}
}

// ID returns the room's 8-hex identifier.
func (r *Room) ID() string {
	return r.id
}

// Name returns the room's display name.
func (r *Room) Name() string {
	return r.name
}

// Info returns the room's wire identity.
func (r *Room) Info() protocol.RoomInfo {
	return protocol.RoomInfo{ID: r.id, Name: r.name}
}

// logCtx returns a context carrying the room ID for the structured logger.
func (r *Room) logCtx() context.Context {
	return context.WithValue(context.Background(), logging.RoomIDKey, r.id)
}

// post serializes an event once and appends it to the inbound queue. Never
// blocks: the queue is unbounded, which is also what lets an eviction
// triggered mid-fan-out post user_left back into the same room safely.
func (r *Room) post(event any) {
	r.inbound.Put(protocol.MustMarshal(event))
}

// run is the room dispatcher: the single consumer of the inbound queue. Each
// event is fanned out to a one-time snapshot of the member set with a
// non-blocking enqueue; a member whose outbound queue is full is handed to
// the slow-client eviction path. Exits when the queue is closed, discarding
// anything still queued.
func (r *Room) run() {
	defer close(r.done)
	logging.GetLogger().Debug("room dispatcher started")

	for {
		event, ok := r.inbound.Get()
		if !ok {
			logging.Info(r.logCtx(), "room dispatcher stopped")
			return
		}

		for _, member := range r.registry.MembersSnapshot(r) {
			if member.tryEnqueue(event) {
				continue
			}
			r.onSlowClient(r, member)
		}
	}
}

// Close stops the dispatcher and awaits its exit. Further posts are dropped.
func (r *Room) Close() {
	r.inbound.Close()
	<-r.done
}
