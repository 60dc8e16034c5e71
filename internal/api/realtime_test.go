package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-meet/internal/config"
	"github.com/npezzotti/go-meet/internal/database"
	"github.com/npezzotti/go-meet/internal/server"
	"github.com/npezzotti/go-meet/internal/stats"
	"github.com/npezzotti/go-meet/internal/testutil"
	"github.com/npezzotti/go-meet/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wireEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newRealtimeServer(t *testing.T) (*httptest.Server, *server.Relay) {
	t.Helper()

	su := new(stats.MockStatsUpdater).AllowAll()

	logger := testutil.TestLogger(t)
	relay := server.NewRelay(logger, su, server.Options{})
	app := NewMeetApp(chi.NewRouter(), logger, relay, new(database.MockMeetRepository), nil, &config.Config{
		SigningKey: testSigningKey,
	})

	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)
	return srv, relay
}

type wsPeer struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func dialPeer(t *testing.T, srv *httptest.Server, query string) *wsPeer {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	p := &wsPeer{t: t, conn: conn}
	var hello struct {
		ConnectionId string `json:"connection_id"`
	}
	p.expect("connected", &hello)
	p.id = hello.ConnectionId
	require.NotEmpty(t, p.id, "expected the greeting to carry a connection id")
	return p
}

func (p *wsPeer) send(eventType string, payload any) {
	p.t.Helper()
	require.NoError(p.t, p.conn.WriteJSON(map[string]any{"type": eventType, "payload": payload}))
}

// expect reads the next event, asserts its type and decodes its payload
// into v when v is non-nil.
func (p *wsPeer) expect(eventType string, v any) {
	p.t.Helper()

	p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev wireEvent
	require.NoError(p.t, p.conn.ReadJSON(&ev))
	require.Equal(p.t, eventType, ev.Type, "unexpected event, payload: %s", ev.Payload)
	if v != nil {
		require.NoError(p.t, json.Unmarshal(ev.Payload, v))
	}
}

func TestRealtime_EndToEnd(t *testing.T) {
	srv, relay := newRealtimeServer(t)

	alice := dialPeer(t, srv, "")
	alice.send("join-room", map[string]any{"room_id": "standup", "display_name": "alice"})
	var existing []types.Participant
	alice.expect("existing-users", &existing)
	assert.Empty(t, existing)
	alice.expect("chat-history", nil)
	alice.expect("whiteboard-data", nil)

	bob := dialPeer(t, srv, "?access_token="+signToken(t, memberIdentity))
	bob.send("join-room", map[string]any{"room_id": "standup", "display_name": "bob", "user_id": "spoofed"})
	bob.expect("existing-users", &existing)
	require.Len(t, existing, 1)
	assert.Equal(t, alice.id, existing[0].ConnectionId)
	bob.expect("chat-history", nil)
	bob.expect("whiteboard-data", nil)

	var joined types.Participant
	alice.expect("user-joined", &joined)
	assert.Equal(t, bob.id, joined.ConnectionId)
	assert.Equal(t, memberIdentity.UserId, joined.UserId, "expected the token to override the claimed user id")

	resp, err := http.Get(srv.URL + "/api/room/standup")
	require.NoError(t, err)
	var room types.Room
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&room))
	resp.Body.Close()
	assert.Equal(t, types.Room{Id: "standup", Exists: true, ParticipantCount: 2}, room)

	var offer server.Negotiation
	bob.send("send-offer", map[string]any{"target_id": alice.id, "signal": map[string]string{"sdp": "offer-sdp"}})
	alice.expect("receive-offer", &offer)
	assert.Equal(t, bob.id, offer.CallerId)
	assert.JSONEq(t, `{"sdp":"offer-sdp"}`, string(offer.Signal))

	var answer server.Negotiation
	alice.send("send-answer", map[string]any{"target_id": bob.id, "signal": map[string]string{"sdp": "answer-sdp"}})
	bob.expect("receive-answer", &answer)
	assert.Equal(t, alice.id, answer.CallerId)

	var chat types.ChatMessage
	alice.send("chat-message", map[string]any{"text": "hi bob"})
	alice.expect("chat-message", &chat)
	assert.Equal(t, "alice", chat.SenderName)
	bob.expect("chat-message", &chat)
	assert.Equal(t, "hi bob", chat.Text)

	bob.conn.Close()
	var left server.UserLeft
	alice.expect("user-left", &left)
	assert.Equal(t, bob.id, left.ConnectionId)

	alice.send("leave-room", nil)
	assert.Eventually(t, func() bool {
		return !relay.Registry().Exists("standup")
	}, 2*time.Second, 20*time.Millisecond, "expected the last leave to remove the room")
}

func TestRealtime_RejectsInvalidToken(t *testing.T) {
	srv, relay := newRealtimeServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?access_token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, relay.SessionCount())
}
