package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"chathub/internal/v1/logging"
	"chathub/internal/v1/metrics"
	"chathub/internal/v1/protocol"

	"go.uber.org/zap"
)

// defaultRoomName labels rooms created without a name.
const defaultRoomName = "Untitled"

// anonName is the in-room fallback for clients that never reserved a name.
const anonName = "Anon"

// actionHandler is one entry of the fixed action dispatch table. Client-input
// errors are answered inside the handler with an error frame and a nil
// return; a non-nil error (or a panic) means the handler itself failed and is
// reported generically by the dispatch wrapper.
type actionHandler func(ctx context.Context, c *Client, req *protocol.ClientRequest) error

func nowTS() int64 {
	return time.Now().Unix()
}

// sendError queues an error frame to the sender.
func (h *Hub) sendError(c *Client, message string) {
	c.enqueue(protocol.MustMarshal(protocol.NewError(message)))
}

// handleSetUsername reserves a globally unique display name for the sender.
func (h *Hub) handleSetUsername(ctx context.Context, c *Client, req *protocol.ClientRequest) error {
	username := strings.TrimSpace(req.Username)

	if username == "" {
		h.sendError(c, "Username cannot be empty")
		return nil
	}
	if utf8.RuneCountInString(username) < 3 {
		h.sendError(c, "Username must be at least 3 characters long")
		return nil
	}
	if utf8.RuneCountInString(username) > 20 {
		h.sendError(c, "Username must be less than 20 characters")
		return nil
	}

	switch h.registry.ReserveName(c, username) {
	case reserveTaken:
		h.sendError(c, fmt.Sprintf("Username %q is already taken. Please choose another.", username))
	case reserveAlreadySet:
		// The first reservation holds for the connection's lifetime.
		h.sendError(c, "Username is already set")
	case reserveUnregistered:
		h.sendError(c, "Client not registered")
	case reserveOK:
		logging.Info(ctx, "username set", zap.String("username", username))
		c.enqueue(protocol.MustMarshal(protocol.UsernameSet{
			Action:   protocol.ActionUsernameSet,
			Username: username,
			Message:  fmt.Sprintf("Welcome, %s!", username),
		}))
	}
	return nil
}

// handleCreateRoom makes a new room with a running dispatcher. Creation does
// not join the creator.
func (h *Hub) handleCreateRoom(ctx context.Context, c *Client, req *protocol.ClientRequest) error {
	name := req.Name
	if name == "" {
		name = defaultRoomName
	}

	var room *Room
	for {
		room = newRoom(newRoomID(), name, h.registry, h.evictSlowClient)
		if h.registry.AddRoom(room) {
			break
		}
		// 8-hex collision; draw again.
	}
	go room.run()
	metrics.ActiveRooms.Inc()

	logging.Info(ctx, "room created", zap.String("room_id", room.id), zap.String("name", name))
	c.enqueue(protocol.MustMarshal(protocol.RoomCreated{
		Action: protocol.ActionRoomCreated,
		Room:   room.Info(),
	}))
	return nil
}

// handleListRooms replies with a point-in-time snapshot of all rooms.
func (h *Hub) handleListRooms(ctx context.Context, c *Client, req *protocol.ClientRequest) error {
	c.enqueue(protocol.MustMarshal(protocol.RoomsList{
		Action: protocol.ActionRoomsList,
		Rooms:  h.registry.ListRooms(),
	}))
	return nil
}

// handleJoin adds the sender to a room and announces it to the members.
func (h *Hub) handleJoin(ctx context.Context, c *Client, req *protocol.ClientRequest) error {
	if req.RoomID == "" {
		h.sendError(c, "join requires room_id")
		return nil
	}

	result, room, name := h.registry.Join(c, req.RoomID, req.DisplayName)
	switch result {
	case joinRoomNotFound:
		h.sendError(c, fmt.Sprintf("Room %s not found", req.RoomID))
	case joinAlreadyMember:
		h.sendError(c, "Already in this room")
	case joinUnregistered:
		h.sendError(c, "Client not registered")
	case joinOK:
		c.enqueue(protocol.MustMarshal(protocol.Joined{
			Action: protocol.ActionJoined,
			Room:   room.Info(),
		}))
		// The member set already contains the sender, so everyone in the
		// room (the sender included) sees this broadcast.
		room.post(protocol.UserJoined{
			Action: protocol.ActionUserJoined,
			RoomID: room.id,
			User:   name,
			Ts:     nowTS(),
		})
	}
	return nil
}

// handleLeave removes the sender from a room. Leaving a room the sender is
// not in, or an unknown room, succeeds silently.
func (h *Hub) handleLeave(ctx context.Context, c *Client, req *protocol.ClientRequest) error {
	if req.RoomID == "" {
		h.sendError(c, "leave requires room_id")
		return nil
	}

	room, name, ok := h.registry.Leave(c, req.RoomID)
	if ok && name != "" {
		room.post(protocol.UserLeft{
			Action: protocol.ActionUserLeft,
			RoomID: room.id,
			User:   name,
			Ts:     nowTS(),
		})
	}
	return nil
}

// handleMessage posts a room broadcast. Empty text is accepted.
func (h *Hub) handleMessage(ctx context.Context, c *Client, req *protocol.ClientRequest) error {
	if req.RoomID == "" {
		h.sendError(c, "message requires room_id")
		return nil
	}

	room, isMember, name := h.registry.Membership(c, req.RoomID)
	if room == nil {
		h.sendError(c, "room not found")
		return nil
	}
	if !isMember {
		h.sendError(c, "not joined to room")
		return nil
	}
	if name == "" {
		name = anonName
	}

	room.post(protocol.ChatMessage{
		Action: protocol.ActionMessage,
		RoomID: room.id,
		From:   name,
		Text:   req.Text,
		Ts:     nowTS(),
	})
	return nil
}

// handlePrivateMessage delivers a point-to-point message through the
// recipient's outbound queue, never through a room.
func (h *Hub) handlePrivateMessage(ctx context.Context, c *Client, req *protocol.ClientRequest) error {
	if req.To == "" {
		h.sendError(c, "private message requires recipient name")
		return nil
	}
	if req.Text == "" {
		h.sendError(c, "private message text is empty")
		return nil
	}

	senderName, recipient, result := h.registry.ResolvePrivate(c, req.To)
	switch result {
	case privateUnregistered:
		h.sendError(c, "client not registered")
	case privateRecipientNotFound:
		h.sendError(c, fmt.Sprintf("User %q not found or offline", req.To))
	case privateOK:
		recipient.enqueue(protocol.MustMarshal(protocol.PrivateMessage{
			Action: protocol.ActionPrivateMessage,
			From:   senderName,
			To:     req.To,
			Text:   req.Text,
			Ts:     nowTS(),
		}))
		c.enqueue(protocol.MustMarshal(protocol.PrivateMessageSent{
			Action: protocol.ActionPrivateMessageSent,
			To:     req.To,
			Text:   req.Text,
			Ts:     nowTS(),
		}))
	}
	return nil
}
