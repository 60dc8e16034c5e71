package server

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/npezzotti/go-meet/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClientMessage(t *testing.T) {
	enabled, disabled := true, false

	tcases := []struct {
		name    string
		raw     string
		want    ClientEvent
		wantErr error
	}{
		{
			name: "join room",
			raw:  `{"type":"join-room","payload":{"room_id":" abc ","display_name":" alice ","user_id":"u1"}}`,
			want: &JoinRoom{RoomId: "abc", DisplayName: "alice", UserId: "u1"},
		},
		{
			name: "join room default name",
			raw:  `{"type":"join-room","payload":{"room_id":"abc"}}`,
			want: &JoinRoom{RoomId: "abc", DisplayName: defaultDisplayName},
		},
		{
			name:    "join room without id",
			raw:     `{"type":"join-room","payload":{"display_name":"alice"}}`,
			wantErr: ErrMalformedPayload,
		},
		{
			name:    "join room id too long",
			raw:     `{"type":"join-room","payload":{"room_id":"` + strings.Repeat("a", maxRoomIdLength+1) + `"}}`,
			wantErr: ErrMalformedPayload,
		},
		{
			name: "send offer",
			raw:  `{"type":"send-offer","payload":{"target_id":"p2","signal":{"sdp":"X"}}}`,
			want: &SendOffer{Negotiation{TargetId: "p2", Signal: json.RawMessage(`{"sdp":"X"}`)}},
		},
		{
			name:    "send answer without signal",
			raw:     `{"type":"send-answer","payload":{"target_id":"p1"}}`,
			wantErr: ErrMalformedPayload,
		},
		{
			name:    "send answer without target",
			raw:     `{"type":"send-answer","payload":{"signal":{"sdp":"Y"}}}`,
			wantErr: ErrMalformedPayload,
		},
		{
			name: "toggle media",
			raw:  `{"type":"toggle-media","payload":{"kind":"screen","enabled":true}}`,
			want: &ToggleMedia{Kind: types.MediaScreen, Enabled: &enabled},
		},
		{
			name: "toggle media off",
			raw:  `{"type":"toggle-media","payload":{"kind":"audio","enabled":false}}`,
			want: &ToggleMedia{Kind: types.MediaAudio, Enabled: &disabled},
		},
		{
			name:    "toggle media without enabled",
			raw:     `{"type":"toggle-media","payload":{"kind":"audio"}}`,
			wantErr: ErrMalformedPayload,
		},
		{
			name:    "toggle unknown media",
			raw:     `{"type":"toggle-media","payload":{"kind":"hologram","enabled":true}}`,
			wantErr: ErrMalformedPayload,
		},
		{
			name: "chat message",
			raw:  `{"type":"chat-message","payload":{"room_id":"abc","text":"  hello  "}}`,
			want: &SendChat{RoomId: "abc", Text: "hello"},
		},
		{
			name:    "blank chat message",
			raw:     `{"type":"chat-message","payload":{"text":"   "}}`,
			wantErr: ErrMalformedPayload,
		},
		{
			name:    "chat message too long",
			raw:     `{"type":"chat-message","payload":{"text":"` + strings.Repeat("é", maxChatTextLength+1) + `"}}`,
			wantErr: ErrMalformedPayload,
		},
		{
			name: "whiteboard draw without strokes",
			raw:  `{"type":"whiteboard-draw","payload":{}}`,
			want: &PublishWhiteboard{Strokes: []types.Stroke{}},
		},
		{
			name:    "whiteboard draw with bad stroke",
			raw:     `{"type":"whiteboard-draw","payload":{"strokes":[{"tool":"brush","width":1}]}}`,
			wantErr: ErrMalformedPayload,
		},
		{
			name: "whiteboard clear",
			raw:  `{"type":"whiteboard-clear","payload":{"room_id":"abc"}}`,
			want: &ClearWhiteboard{RoomId: "abc"},
		},
		{
			name: "get whiteboard data",
			raw:  `{"type":"get-whiteboard-data"}`,
			want: &RequestWhiteboard{},
		},
		{
			name: "leave room with null payload",
			raw:  `{"type":"leave-room","payload":null}`,
			want: &LeaveRoom{},
		},
		{
			name:    "unknown type",
			raw:     `{"type":"disconnect"}`,
			wantErr: ErrUnknownEvent,
		},
		{
			name:    "payload of wrong shape",
			raw:     `{"type":"toggle-media","payload":"audio"}`,
			wantErr: ErrMalformedPayload,
		},
		{
			name:    "not json",
			raw:     `hello`,
			wantErr: ErrMalformedPayload,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := DecodeClientMessage([]byte(tc.raw))
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, ev)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, ev)
		})
	}
}

func TestServerMessage_Serialization(t *testing.T) {
	msg := NewUserMediaChanged("p1", types.MediaAudio, false)
	msg.Timestamp = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	bytes, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"user-media-changed","payload":{"connection_id":"p1","kind":"audio","enabled":false},"timestamp":"2024-05-01T12:00:00Z"}`,
		string(bytes))

	wc := NewWhiteboardClear()
	bytes, err = json.Marshal(wc)
	require.NoError(t, err)
	assert.NotContains(t, string(bytes), "payload", "expected empty payload to be omitted")
}

func TestServerMessage_EmptyCollections(t *testing.T) {
	for _, msg := range []*ServerMessage{
		NewExistingUsers(nil),
		NewChatHistory(nil),
		NewWhiteboardData(nil),
		NewWhiteboardDraw(nil),
	} {
		bytes, err := json.Marshal(msg)
		require.NoError(t, err)
		assert.NotContains(t, string(bytes), "null", "expected %s to encode an empty list", msg.Type)
	}
}

func TestNewErrorMessage(t *testing.T) {
	tcases := []struct {
		err  error
		code string
	}{
		{ErrRoomNotFound, CodeNotFound},
		{ErrParticipantNotFound, CodeNotFound},
		{ErrNotInRoom, CodeNotInRoom},
		{ErrAlreadyJoined, CodeAlreadyJoined},
		{ErrMalformedPayload, CodeInvalidMessage},
		{ErrUnknownEvent, CodeInvalidMessage},
		{errors.New("boom"), CodeInternal},
	}

	for _, tc := range tcases {
		msg := NewErrorMessage(EventChatMessage, tc.err)
		assert.Equal(t, EventError, msg.Type)

		payload := msg.Payload.(ErrorPayload)
		assert.Equal(t, tc.code, payload.Code, "unexpected code for %v", tc.err)
		assert.Equal(t, EventChatMessage, payload.Event)
		assert.Equal(t, tc.err.Error(), payload.Message)
	}
}

func TestNow(t *testing.T) {
	now := Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.Zero(t, now.Nanosecond()%int(time.Millisecond), "expected millisecond precision")
}
