package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_NoTrailingNewline(t *testing.T) {
	data, err := Marshal(NewError("boom"))
	require.NoError(t, err)
	assert.Equal(t, `{"action":"error","message":"boom"}`, string(data))
}

func TestMarshal_NoHTMLEscaping(t *testing.T) {
	data, err := Marshal(ChatMessage{
		Action: ActionMessage,
		RoomID: "r1",
		From:   "alice",
		Text:   "<b>hi</b> & bye",
	})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"text":"<b>hi</b> & bye"`)
}

func TestMarshal_PreservesNonASCII(t *testing.T) {
	data, err := Marshal(ChatMessage{Action: ActionMessage, Text: "héllo 世界"})
	require.NoError(t, err)
	assert.Contains(t, string(data), "héllo 世界")
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest([]byte(`{"action":"join","room_id":"abc123","display_name":"guest"}`))
	require.NoError(t, err)
	assert.Equal(t, ActionJoin, req.Action)
	assert.Equal(t, "abc123", req.RoomID)
	assert.Equal(t, "guest", req.DisplayName)
	assert.Empty(t, req.Text)
}

func TestParseRequest_UnknownFieldsIgnored(t *testing.T) {
	req, err := ParseRequest([]byte(`{"action":"list_rooms","extra":42}`))
	require.NoError(t, err)
	assert.Equal(t, ActionListRooms, req.Action)
}

func TestParseRequest_Invalid(t *testing.T) {
	_, err := ParseRequest([]byte(`{not json`))
	assert.Error(t, err)

	// A bare array is valid JSON but not a request object.
	_, err = ParseRequest([]byte(`[1,2,3]`))
	assert.Error(t, err)
}

func TestRoomsList_WireShape(t *testing.T) {
	data, err := Marshal(RoomsList{
		Action: ActionRoomsList,
		Rooms: []RoomSummary{
			{ID: "a1b2c3d4", Name: "general", Members: 2},
		},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"rooms_list","rooms":[{"id":"a1b2c3d4","name":"general","members":2}]}`, string(data))
}

func TestMustMarshal_PanicsOnUnencodable(t *testing.T) {
	assert.Panics(t, func() {
		MustMarshal(map[string]any{"bad": make(chan int)})
	})
}
