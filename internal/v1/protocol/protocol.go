// Package protocol defines the JSON wire envelopes exchanged between the chat
// server and its clients. Every frame is a single JSON object carrying an
// "action" field plus action-specific payload.
package protocol

import (
	"bytes"
	"encoding/json"
)

// Client-to-server actions.
const (
	ActionSetUsername    = "set_username"
	ActionCreateRoom     = "create_room"
	ActionListRooms      = "list_rooms"
	ActionJoin           = "join"
	ActionLeave          = "leave"
	ActionMessage        = "message"
	ActionPrivateMessage = "private_message"
)

// Server-to-client actions.
const (
	ActionWelcome            = "welcome"
	ActionUsernameSet        = "username_set"
	ActionRoomCreated        = "room_created"
	ActionRoomsList          = "rooms_list"
	ActionJoined             = "joined"
	ActionUserJoined         = "user_joined"
	ActionUserLeft           = "user_left"
	ActionPrivateMessageSent = "private_message_sent"
	ActionError              = "error"
)

// ClientRequest is the inbound envelope. Fields not relevant to the requested
// action are left at their zero value.
type ClientRequest struct {
	Action      string `json:"action"`
	Username    string `json:"username"`
	Name        string `json:"name"`
	RoomID      string `json:"room_id"`
	DisplayName string `json:"display_name"`
	To          string `json:"to"`
	Text        string `json:"text"`
}

// RoomInfo identifies a room in replies to its creator or joiners.
type RoomInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoomSummary is one entry of a rooms_list reply.
type RoomSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Members int    `json:"members"`
}

type Welcome struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

type UsernameSet struct {
	Action   string `json:"action"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

type RoomCreated struct {
	Action string   `json:"action"`
	Room   RoomInfo `json:"room"`
}

type RoomsList struct {
	Action string        `json:"action"`
	Rooms  []RoomSummary `json:"rooms"`
}

type Joined struct {
	Action string   `json:"action"`
	Room   RoomInfo `json:"room"`
}

type UserJoined struct {
	Action string `json:"action"`
	RoomID string `json:"room_id"`
	User   string `json:"user"`
	Ts     int64  `json:"ts"`
}

type UserLeft struct {
	Action string `json:"action"`
	RoomID string `json:"room_id"`
	User   string `json:"user"`
	Ts     int64  `json:"ts"`
}

// ChatMessage is a room broadcast. The wire action is "message".
type ChatMessage struct {
	Action string `json:"action"`
	RoomID string `json:"room_id"`
	From   string `json:"from"`
	Text   string `json:"text"`
	Ts     int64  `json:"ts"`
}

type PrivateMessage struct {
	Action string `json:"action"`
	From   string `json:"from"`
	To     string `json:"to"`
	Text   string `json:"text"`
	Ts     int64  `json:"ts"`
}

type PrivateMessageSent struct {
	Action string `json:"action"`
	To     string `json:"to"`
	Text   string `json:"text"`
	Ts     int64  `json:"ts"`
}

type ErrorFrame struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

// NewError builds an error envelope with the given message.
func NewError(message string) ErrorFrame {
	return ErrorFrame{Action: ActionError, Message: message}
}

// Marshal encodes an envelope to its wire form. Non-ASCII characters are
// preserved literally; HTML escaping is disabled so text payloads round-trip
// byte-for-byte.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encode appends a newline; the transport frames messages itself.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MustMarshal is Marshal for envelopes built from static structs, where an
// encoding failure is a programming error.
func MustMarshal(v any) []byte {
	data, err := Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// ParseRequest decodes an inbound frame.
func ParseRequest(raw []byte) (*ClientRequest, error) {
	var req ClientRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
